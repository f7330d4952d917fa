package services

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/tthaingoc/EcoFashion-sub009/internal/domain"
	"github.com/tthaingoc/EcoFashion-sub009/internal/platform/events"
	"github.com/tthaingoc/EcoFashion-sub009/internal/repositories"
)

var (
	errInventoryRepositoryRequired = errors.New("inventory service: repository is required")
	errInventoryClockRequired      = errors.New("inventory service: clock is required")
)

// ErrInventoryInvalidInput indicates the caller supplied invalid input.
var ErrInventoryInvalidInput = errors.New("inventory service: invalid input")

// ErrInventoryUnavailable indicates the stock backend cannot fulfil the request.
var ErrInventoryUnavailable = errors.New("inventory service: unavailable")

// ErrInventoryStockNotFound indicates the item has no stock record.
var ErrInventoryStockNotFound = errors.New("inventory service: stock not found")

// ErrInventoryInsufficientStock indicates the adjustment would break stock invariants.
var ErrInventoryInsufficientStock = errors.New("inventory service: insufficient stock")

const defaultExpirySweepLimit = 20

// InventoryServiceDeps wires stock persistence and the optional session
// repository used when sweeping expired holds.
type InventoryServiceDeps struct {
	Repository  repositories.InventoryRepository
	Sessions    repositories.SessionRepository
	Events      events.Publisher
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

type inventoryService struct {
	repo     repositories.InventoryRepository
	sessions repositories.SessionRepository
	events   events.Publisher
	now      func() time.Time
	newID    func() string
	logger   func(context.Context, string, map[string]any)
}

// NewInventoryService constructs an InventoryService enforcing dependency validation.
func NewInventoryService(deps InventoryServiceDeps) (InventoryService, error) {
	if deps.Repository == nil {
		return nil, errInventoryRepositoryRequired
	}
	if deps.Clock == nil {
		return nil, errInventoryClockRequired
	}

	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	publisher := deps.Events
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}

	return &inventoryService{
		repo:     deps.Repository,
		sessions: deps.Sessions,
		events:   publisher,
		now:      func() time.Time { return deps.Clock().UTC() },
		newID:    newID,
		logger:   logger,
	}, nil
}

// GetStock returns the current counter projection for one item.
func (s *inventoryService) GetStock(ctx context.Context, ref ItemRef) (InventoryStock, error) {
	if s == nil || s.repo == nil {
		return InventoryStock{}, ErrInventoryUnavailable
	}
	if !ref.Valid() {
		return InventoryStock{}, ErrInventoryInvalidInput
	}
	stock, err := s.repo.GetStock(ctx, ref.Key())
	if err != nil {
		return InventoryStock{}, s.translate(err)
	}
	return stock, nil
}

// AdjustStock applies a manual on-hand correction with a ledger row.
func (s *inventoryService) AdjustStock(ctx context.Context, cmd AdjustStockCommand) (InventoryStock, error) {
	if s == nil || s.repo == nil {
		return InventoryStock{}, ErrInventoryUnavailable
	}
	if !cmd.Item.Valid() || cmd.Delta == 0 {
		return InventoryStock{}, ErrInventoryInvalidInput
	}

	stock, err := s.repo.AdjustStock(ctx, repositories.InventoryAdjustRequest{
		ItemKey: cmd.Item.Key(),
		Delta:   int(cmd.Delta),
		Now:     s.now(),
		TxnID:   s.newID(),
	})
	if err != nil {
		return InventoryStock{}, s.translate(err)
	}
	s.logger(ctx, "inventory.adjusted", map[string]any{
		"item":   cmd.Item.Key(),
		"delta":  cmd.Delta,
		"reason": cmd.Reason,
		"onHand": stock.OnHand,
	})
	return stock, nil
}

// ListTransactions returns the item's ledger rows, newest first.
func (s *inventoryService) ListTransactions(ctx context.Context, cmd InventoryHistoryCommand) ([]InventoryTransaction, error) {
	if s == nil || s.repo == nil {
		return nil, ErrInventoryUnavailable
	}
	if !cmd.Item.Valid() {
		return nil, ErrInventoryInvalidInput
	}
	txns, err := s.repo.ListTransactions(ctx, cmd.Item.Key(), cmd.Limit)
	if err != nil {
		return nil, s.translate(err)
	}
	return txns, nil
}

// ReleaseExpired sweeps reserved holds whose expiry has passed, expiring the
// owning session and returning stock to availability. It reports how many
// reservations were released. Each hold is handled independently so one
// failure does not block the rest of the sweep.
func (s *inventoryService) ReleaseExpired(ctx context.Context, limit int) (int, error) {
	if s == nil || s.repo == nil {
		return 0, ErrInventoryUnavailable
	}
	if limit <= 0 {
		limit = defaultExpirySweepLimit
	}

	now := s.now()
	expired, err := s.repo.ListExpiredReservations(ctx, now, limit)
	if err != nil {
		return 0, s.translate(err)
	}

	released := 0
	for _, reservation := range expired {
		if s.sessions != nil && reservation.SessionID != "" {
			_, err := s.sessions.Transition(ctx, repositories.SessionTransitionRequest{
				SessionID: reservation.SessionID,
				From:      domain.SessionOpen,
				To:        domain.SessionExpired,
				Now:       now,
			})
			if err != nil && !isSessionStateError(err) {
				s.logger(ctx, "inventory.expiry_session_failed", map[string]any{
					"sessionID":     reservation.SessionID,
					"reservationID": reservation.ID,
					"error":         err.Error(),
				})
				continue
			}
		}

		txnIDs := make([]string, len(reservation.Lines))
		for i := range txnIDs {
			txnIDs[i] = s.newID()
		}
		result, err := s.repo.Release(ctx, repositories.InventoryReleaseRequest{
			ReservationID: reservation.ID,
			Now:           now,
			TxnIDs:        txnIDs,
		})
		if err != nil {
			s.logger(ctx, "inventory.expiry_release_failed", map[string]any{
				"reservationID": reservation.ID,
				"error":         err.Error(),
			})
			continue
		}
		// A hold that was committed by a concurrent payment is left alone.
		if result.Status != domain.ReservationReleased {
			continue
		}
		released++

		if _, err := s.events.Publish(ctx, events.Notification{
			Type:       events.TypeSessionExpired,
			OwnerID:    reservation.OwnerID,
			SessionID:  reservation.SessionID,
			OccurredAt: now,
			Payload:    map[string]any{"reservationId": reservation.ID},
		}); err != nil {
			s.logger(ctx, "inventory.notification_failed", map[string]any{
				"sessionID": reservation.SessionID,
				"error":     err.Error(),
			})
		}
	}
	return released, nil
}

func (s *inventoryService) translate(err error) error {
	if err == nil {
		return nil
	}
	var invErr *repositories.InventoryError
	if errors.As(err, &invErr) {
		switch invErr.Code {
		case repositories.InventoryErrorStockNotFound:
			return errors.Join(ErrInventoryStockNotFound, err)
		case repositories.InventoryErrorInsufficientStock:
			return errors.Join(ErrInventoryInsufficientStock, err)
		}
	}
	return errors.Join(ErrInventoryUnavailable, err)
}

// isSessionStateError reports whether err is a session transition rejected for
// already being in a terminal state, which the sweeper treats as done.
func isSessionStateError(err error) bool {
	var sessErr *repositories.SessionError
	if !errors.As(err, &sessErr) {
		return false
	}
	return sessErr.Code == repositories.SessionErrorInvalidState || sessErr.Code == repositories.SessionErrorNotFound
}
