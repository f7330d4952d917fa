package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/tthaingoc/EcoFashion-sub009/internal/domain"
	"github.com/tthaingoc/EcoFashion-sub009/internal/platform/events"
	"github.com/tthaingoc/EcoFashion-sub009/internal/repositories"
)

func TestWalletServiceDepositCreditsLedger(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	publisher := &capturePublisher{}
	var captured repositories.WalletEntryRequest
	repo := &stubWalletRepo{
		creditFn: func(_ context.Context, req repositories.WalletEntryRequest) (domain.WalletTransaction, error) {
			captured = req
			return domain.WalletTransaction{
				ID:            req.TxnID,
				WalletOwnerID: req.OwnerID,
				Amount:        req.Amount,
				BalanceBefore: 0,
				BalanceAfter:  req.Amount,
				Type:          req.Type,
				Sequence:      1,
				CreatedAt:     req.Now,
			}, nil
		},
	}

	svc, err := NewWalletService(WalletServiceDeps{
		Repository:  repo,
		Events:      publisher,
		Clock:       fixedClock(now),
		IDGenerator: sequentialIDs("txn"),
	})
	if err != nil {
		t.Fatalf("new wallet service: %v", err)
	}

	txn, err := svc.Deposit(context.Background(), WalletMutationCommand{
		OwnerID: "buyer-1",
		Amount:  500000,
	})
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if captured.Type != domain.WalletDeposit {
		t.Fatalf("expected deposit type, got %s", captured.Type)
	}
	if captured.TxnID != "txn-1" {
		t.Fatalf("expected minted txn id, got %s", captured.TxnID)
	}
	if txn.BalanceAfter != 500000 {
		t.Fatalf("expected balance 500000, got %d", txn.BalanceAfter)
	}
	if len(publisher.published) != 1 || publisher.published[0].Type != events.TypeWalletTransaction {
		t.Fatalf("expected one wallet notification, got %+v", publisher.published)
	}
}

func TestWalletServiceWithdrawMapsInsufficientBalance(t *testing.T) {
	repo := &stubWalletRepo{
		debitFn: func(_ context.Context, req repositories.WalletEntryRequest) (domain.WalletTransaction, error) {
			return domain.WalletTransaction{}, repositories.NewWalletError(repositories.WalletErrorInsufficientBalance, "balance too low", nil)
		},
	}

	svc, err := NewWalletService(WalletServiceDeps{Repository: repo, Clock: time.Now})
	if err != nil {
		t.Fatalf("new wallet service: %v", err)
	}

	_, err = svc.Withdraw(context.Background(), WalletMutationCommand{OwnerID: "buyer-1", Amount: 100000})
	if !errors.Is(err, ErrWalletInsufficientBalance) {
		t.Fatalf("expected ErrWalletInsufficientBalance, got %v", err)
	}
}

func TestWalletServiceRejectsNonPositiveAmount(t *testing.T) {
	svc, err := NewWalletService(WalletServiceDeps{Repository: &stubWalletRepo{}, Clock: time.Now})
	if err != nil {
		t.Fatalf("new wallet service: %v", err)
	}

	if _, err := svc.Deposit(context.Background(), WalletMutationCommand{OwnerID: "buyer-1", Amount: 0}); !errors.Is(err, ErrWalletInvalidInput) {
		t.Fatalf("expected ErrWalletInvalidInput for zero, got %v", err)
	}
	if _, err := svc.Withdraw(context.Background(), WalletMutationCommand{OwnerID: "buyer-1", Amount: -5}); !errors.Is(err, ErrWalletInvalidInput) {
		t.Fatalf("expected ErrWalletInvalidInput for negative, got %v", err)
	}
}

func TestWalletServiceGetBalance(t *testing.T) {
	repo := &stubWalletRepo{
		balanceFn: func(_ context.Context, ownerID string) (int64, error) {
			if ownerID != "buyer-1" {
				t.Fatalf("unexpected owner %s", ownerID)
			}
			return 720000, nil
		},
	}

	svc, err := NewWalletService(WalletServiceDeps{Repository: repo, Clock: time.Now})
	if err != nil {
		t.Fatalf("new wallet service: %v", err)
	}

	balance, err := svc.GetBalance(context.Background(), "buyer-1")
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance != 720000 {
		t.Fatalf("expected 720000, got %d", balance)
	}
}

func TestWalletServiceSurvivesPublishFailure(t *testing.T) {
	publisher := &capturePublisher{err: errors.New("pubsub down")}
	svc, err := NewWalletService(WalletServiceDeps{
		Repository: &stubWalletRepo{},
		Events:     publisher,
		Clock:      time.Now,
	})
	if err != nil {
		t.Fatalf("new wallet service: %v", err)
	}

	if _, err := svc.Deposit(context.Background(), WalletMutationCommand{OwnerID: "buyer-1", Amount: 1000}); err != nil {
		t.Fatalf("deposit should succeed despite publish failure, got %v", err)
	}
}
