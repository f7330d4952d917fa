package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/tthaingoc/EcoFashion-sub009/internal/domain"
	"github.com/tthaingoc/EcoFashion-sub009/internal/platform/events"
	"github.com/tthaingoc/EcoFashion-sub009/internal/repositories"
)

var (
	errWalletRepositoryRequired = errors.New("wallet service: repository is required")
	errWalletClockRequired      = errors.New("wallet service: clock is required")
)

// ErrWalletInvalidInput indicates the caller supplied invalid input.
var ErrWalletInvalidInput = errors.New("wallet service: invalid input")

// ErrWalletUnavailable indicates the ledger backend cannot fulfil the request.
var ErrWalletUnavailable = errors.New("wallet service: unavailable")

// ErrWalletInsufficientBalance indicates the withdrawal exceeds the current balance.
var ErrWalletInsufficientBalance = errors.New("wallet service: insufficient balance")

const defaultWalletHistoryLimit = 50

// WalletServiceDeps wires the ledger repository and notification pipeline.
type WalletServiceDeps struct {
	Repository  repositories.WalletRepository
	Events      events.Publisher
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

type walletService struct {
	repo   repositories.WalletRepository
	events events.Publisher
	now    func() time.Time
	newID  func() string
	logger func(context.Context, string, map[string]any)
}

// NewWalletService constructs a WalletService enforcing dependency validation.
func NewWalletService(deps WalletServiceDeps) (WalletService, error) {
	if deps.Repository == nil {
		return nil, errWalletRepositoryRequired
	}
	if deps.Clock == nil {
		return nil, errWalletClockRequired
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

	return &walletService{
		repo:   deps.Repository,
		events: publisher,
		now:    func() time.Time { return deps.Clock().UTC() },
		newID:  newID,
		logger: logger,
	}, nil
}

// GetBalance derives the owner's balance from the latest ledger row.
func (s *walletService) GetBalance(ctx context.Context, ownerID string) (int64, error) {
	if s == nil || s.repo == nil {
		return 0, ErrWalletUnavailable
	}
	uid := strings.TrimSpace(ownerID)
	if uid == "" {
		return 0, ErrWalletInvalidInput
	}
	balance, err := s.repo.Balance(ctx, uid)
	if err != nil {
		return 0, s.translate(err)
	}
	return balance, nil
}

// Deposit appends a positive ledger row for the owner.
func (s *walletService) Deposit(ctx context.Context, cmd WalletMutationCommand) (WalletTransaction, error) {
	return s.mutate(ctx, cmd, domain.WalletDeposit)
}

// Withdraw appends a negative ledger row after the repository verifies balance.
func (s *walletService) Withdraw(ctx context.Context, cmd WalletMutationCommand) (WalletTransaction, error) {
	return s.mutate(ctx, cmd, domain.WalletWithdrawal)
}

func (s *walletService) mutate(ctx context.Context, cmd WalletMutationCommand, txnType domain.WalletTransactionType) (WalletTransaction, error) {
	if s == nil || s.repo == nil {
		return WalletTransaction{}, ErrWalletUnavailable
	}
	uid := strings.TrimSpace(cmd.OwnerID)
	if uid == "" || cmd.Amount <= 0 {
		return WalletTransaction{}, ErrWalletInvalidInput
	}

	req := repositories.WalletEntryRequest{
		TxnID:       s.newID(),
		OwnerID:     uid,
		Amount:      cmd.Amount,
		Type:        txnType,
		ReferenceID: strings.TrimSpace(cmd.ReferenceID),
		Now:         s.now(),
	}

	var (
		txn domain.WalletTransaction
		err error
	)
	if txnType.SignedAmount(1) > 0 {
		txn, err = s.repo.Credit(ctx, req)
	} else {
		txn, err = s.repo.Debit(ctx, req)
	}
	if err != nil {
		return WalletTransaction{}, s.translate(err)
	}

	s.publish(ctx, txn)
	return txn, nil
}

// ListTransactions returns the owner's ledger rows, newest first.
func (s *walletService) ListTransactions(ctx context.Context, cmd WalletHistoryCommand) ([]WalletTransaction, error) {
	if s == nil || s.repo == nil {
		return nil, ErrWalletUnavailable
	}
	uid := strings.TrimSpace(cmd.OwnerID)
	if uid == "" {
		return nil, ErrWalletInvalidInput
	}
	limit := cmd.Limit
	if limit <= 0 {
		limit = defaultWalletHistoryLimit
	}
	txns, err := s.repo.ListTransactions(ctx, uid, limit)
	if err != nil {
		return nil, s.translate(err)
	}
	return txns, nil
}

// publish emits the ledger notification without failing the caller. The row is
// already durable; a lost notification is recoverable downstream.
func (s *walletService) publish(ctx context.Context, txn domain.WalletTransaction) {
	notification := events.Notification{
		Type:       events.TypeWalletTransaction,
		OwnerID:    txn.WalletOwnerID,
		OccurredAt: txn.CreatedAt,
		Payload: map[string]any{
			"txnId":        txn.ID,
			"type":         string(txn.Type),
			"amount":       txn.Amount,
			"balanceAfter": txn.BalanceAfter,
			"referenceId":  txn.ReferenceID,
		},
	}
	if _, err := s.events.Publish(ctx, notification); err != nil {
		s.logger(ctx, "wallet.notification_failed", map[string]any{
			"ownerID": txn.WalletOwnerID,
			"txnID":   txn.ID,
			"error":   err.Error(),
		})
	}
}

func (s *walletService) translate(err error) error {
	if err == nil {
		return nil
	}
	var walletErr *repositories.WalletError
	if errors.As(err, &walletErr) {
		switch walletErr.Code {
		case repositories.WalletErrorInsufficientBalance:
			return errors.Join(ErrWalletInsufficientBalance, err)
		case repositories.WalletErrorTransactionNotFound:
			return errors.Join(ErrWalletInvalidInput, err)
		}
	}
	return errors.Join(ErrWalletUnavailable, err)
}
