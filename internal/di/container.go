package di

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/tthaingoc/EcoFashion-sub009/internal/handlers"
	"github.com/tthaingoc/EcoFashion-sub009/internal/payments"
	"github.com/tthaingoc/EcoFashion-sub009/internal/platform/auth"
	"github.com/tthaingoc/EcoFashion-sub009/internal/platform/config"
	"github.com/tthaingoc/EcoFashion-sub009/internal/platform/events"
	pfirestore "github.com/tthaingoc/EcoFashion-sub009/internal/platform/firestore"
	"github.com/tthaingoc/EcoFashion-sub009/internal/platform/idempotency"
	"github.com/tthaingoc/EcoFashion-sub009/internal/platform/observability"
	"github.com/tthaingoc/EcoFashion-sub009/internal/repositories"
	fsrepo "github.com/tthaingoc/EcoFashion-sub009/internal/repositories/firestore"
	"github.com/tthaingoc/EcoFashion-sub009/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Cart      services.CartService
	Checkout  services.CheckoutService
	Wallet    services.WalletService
	Inventory services.InventoryService
	Orders    services.OrderService
}

// Container wires repositories, services, and transport infrastructure for runtime use.
type Container struct {
	Config        config.Config
	Logger        *zap.Logger
	Repositories  repositories.Registry
	Services      Services
	Events        events.Publisher
	Gateway       payments.Provider
	Authenticator *auth.Authenticator
	Idempotency   idempotency.Store

	closers []func(context.Context) error
}

// ContainerOption customises container construction, primarily for tests.
type ContainerOption func(*containerConfig)

type containerConfig struct {
	registry    repositories.Registry
	publisher   events.Publisher
	gateway     payments.Provider
	idempotency idempotency.Store
	clock       func() time.Time
}

// WithRegistry injects a pre-built repository registry instead of dialing Firestore.
func WithRegistry(reg repositories.Registry) ContainerOption {
	return func(cfg *containerConfig) {
		cfg.registry = reg
	}
}

// WithPublisher injects a notification publisher instead of a Pub/Sub topic.
func WithPublisher(pub events.Publisher) ContainerOption {
	return func(cfg *containerConfig) {
		cfg.publisher = pub
	}
}

// WithGateway injects a payment provider instead of the configured VNPay one.
func WithGateway(gw payments.Provider) ContainerOption {
	return func(cfg *containerConfig) {
		cfg.gateway = gw
	}
}

// WithIdempotencyStore injects an idempotency store instead of the
// Firestore-backed one.
func WithIdempotencyStore(store idempotency.Store) ContainerOption {
	return func(cfg *containerConfig) {
		cfg.idempotency = store
	}
}

// WithClock overrides the time source used by all services.
func WithClock(clock func() time.Time) ContainerOption {
	return func(cfg *containerConfig) {
		if clock != nil {
			cfg.clock = clock
		}
	}
}

// NewContainer constructs the runtime dependencies from configuration.
func NewContainer(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...ContainerOption) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	options := containerConfig{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	c := &Container{Config: cfg, Logger: logger}

	reg := options.registry
	c.Idempotency = options.idempotency
	if reg == nil {
		provider := pfirestore.NewProvider(cfg.Firestore)
		built, err := fsrepo.NewRegistry(provider)
		if err != nil {
			return nil, fmt.Errorf("build repository registry: %w", err)
		}
		reg = built
		if c.Idempotency == nil {
			store, err := idempotency.NewFirestoreStore(provider)
			if err != nil {
				return nil, fmt.Errorf("build idempotency store: %w", err)
			}
			c.Idempotency = store
		}
	}
	c.Repositories = reg
	c.closers = append(c.closers, reg.Close)

	publisher, err := c.buildPublisher(ctx, options.publisher)
	if err != nil {
		_ = c.Close(ctx)
		return nil, err
	}
	c.Events = publisher

	gateway := options.gateway
	if gateway == nil && cfg.Gateway.MerchantCode != "" {
		vnpay, err := payments.NewVNPayProvider(cfg.Gateway)
		if err != nil {
			_ = c.Close(ctx)
			return nil, fmt.Errorf("build payment gateway: %w", err)
		}
		gateway = vnpay
	}
	c.Gateway = gateway

	if cfg.Auth.SigningKey != "" {
		authn, err := auth.NewAuthenticator(cfg.Auth.SigningKey, cfg.Auth.Issuer)
		if err != nil {
			_ = c.Close(ctx)
			return nil, fmt.Errorf("build authenticator: %w", err)
		}
		c.Authenticator = authn
	}

	svc, err := buildServices(cfg, reg, publisher, gateway, options.clock, logger)
	if err != nil {
		_ = c.Close(ctx)
		return nil, err
	}
	c.Services = svc

	return c, nil
}

// Handler assembles the HTTP router over the wired services.
func (c *Container) Handler() http.Handler {
	cartHandlers := handlers.NewCartHandlers(c.Services.Cart)
	checkoutHandlers := handlers.NewCheckoutHandlers(c.Services.Checkout)
	walletHandlers := handlers.NewWalletHandlers(c.Services.Wallet)
	orderHandlers := handlers.NewOrderHandlers(c.Services.Orders)
	inventoryHandlers := handlers.NewInventoryHandlers(c.Services.Inventory)

	opts := []handlers.Option{
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(c.Logger),
			observability.RequestLoggerMiddleware(),
			middleware.Recoverer,
		),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(
			handlers.WithHealthPinger(c.Repositories.Health()),
		)),
		handlers.WithCartRoutes(cartHandlers.Routes),
		handlers.WithCheckoutRoutes(checkoutHandlers.Routes),
		handlers.WithWalletRoutes(walletHandlers.Routes),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithInventoryRoutes(inventoryHandlers.Routes),
		handlers.WithPaymentRoutes(checkoutHandlers.GatewayReturnRoutes),
	}
	if c.Authenticator != nil {
		opts = append(opts, handlers.WithAuthMiddleware(c.Authenticator.Middleware()))
	}
	if c.Idempotency != nil {
		opts = append(opts, handlers.WithIdempotencyMiddleware(idempotency.Middleware(c.Idempotency)))
	}

	return handlers.NewRouter(opts...)
}

// Close releases repository clients and messaging resources.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

func (c *Container) buildPublisher(ctx context.Context, injected events.Publisher) (events.Publisher, error) {
	if injected != nil {
		return injected, nil
	}
	if !c.Config.Events.Enabled {
		return events.NoopPublisher{}, nil
	}

	client, err := pubsub.NewClient(ctx, c.Config.Events.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("build pubsub client: %w", err)
	}
	topic := client.Topic(c.Config.Events.Topic)
	c.closers = append(c.closers, func(context.Context) error {
		topic.Stop()
		return client.Close()
	})

	publisher, err := events.NewPubSubPublisher(topic)
	if err != nil {
		return nil, fmt.Errorf("build event publisher: %w", err)
	}
	return publisher, nil
}

func buildServices(cfg config.Config, reg repositories.Registry, publisher events.Publisher, gateway payments.Provider, clock func() time.Time, logger *zap.Logger) (Services, error) {
	var svc Services
	logFn := serviceLogger(logger)

	cart, err := services.NewCartService(services.CartServiceDeps{
		Repository: reg.Carts(),
		MaxItems:   cfg.Checkout.MaxCartItems,
		Clock:      clock,
		Logger:     logFn,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart service: %w", err)
	}
	svc.Cart = cart

	wallet, err := services.NewWalletService(services.WalletServiceDeps{
		Repository: reg.Wallets(),
		Events:     publisher,
		Clock:      clock,
		Logger:     logFn,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build wallet service: %w", err)
	}
	svc.Wallet = wallet

	inventory, err := services.NewInventoryService(services.InventoryServiceDeps{
		Repository: reg.Inventory(),
		Sessions:   reg.Sessions(),
		Events:     publisher,
		Clock:      clock,
		Logger:     logFn,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build inventory service: %w", err)
	}
	svc.Inventory = inventory

	orders, err := services.NewOrderService(services.OrderServiceDeps{
		Repository: reg.Orders(),
		Wallets:    reg.Wallets(),
		Events:     publisher,
		Clock:      clock,
		Logger:     logFn,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orders

	checkout, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Sessions:  reg.Sessions(),
		Carts:     reg.Carts(),
		Inventory: reg.Inventory(),
		Orders:    reg.Orders(),
		Wallets:   reg.Wallets(),
		Gateway:   gateway,
		Events:    publisher,
		HoldTTL:   cfg.Checkout.HoldTTL,
		Clock:     clock,
		Logger:    logFn,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build checkout service: %w", err)
	}
	svc.Checkout = checkout

	return svc, nil
}

func serviceLogger(logger *zap.Logger) func(context.Context, string, map[string]any) {
	return func(_ context.Context, msg string, fields map[string]any) {
		if logger == nil {
			return
		}
		zapFields := make([]zap.Field, 0, len(fields))
		for key, value := range fields {
			zapFields = append(zapFields, zap.Any(key, value))
		}
		logger.Info(msg, zapFields...)
	}
}
