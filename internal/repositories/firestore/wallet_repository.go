package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/tthaingoc/EcoFashion-sub009/internal/domain"
	pfirestore "github.com/tthaingoc/EcoFashion-sub009/internal/platform/firestore"
	"github.com/tthaingoc/EcoFashion-sub009/internal/repositories"
)

const walletLedgerCollection = "walletTransactions"

// WalletRepository maintains the append-only wallet ledger within Firestore.
// The balance of a wallet is the balanceAfter of the owner's highest-sequence
// row; no separate balance document exists to drift out of sync.
type WalletRepository struct {
	provider *pfirestore.Provider
	ledger   *pfirestore.BaseRepository[walletLedgerDocument]
}

// NewWalletRepository constructs a Firestore-backed wallet repository.
func NewWalletRepository(provider *pfirestore.Provider) (*WalletRepository, error) {
	if provider == nil {
		return nil, errors.New("wallet repository requires firestore provider")
	}
	return &WalletRepository{
		provider: provider,
		ledger:   pfirestore.NewBaseRepository[walletLedgerDocument](provider, walletLedgerCollection, nil, nil),
	}, nil
}

// Balance returns the owner's current balance, zero when no rows exist.
func (r *WalletRepository) Balance(ctx context.Context, ownerID string) (int64, error) {
	if r == nil || r.ledger == nil {
		return 0, errors.New("wallet repository not initialised")
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return 0, errors.New("wallet balance: owner id is required")
	}

	docs, err := r.ledger.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("ownerId", "==", ownerID).OrderBy("sequence", firestore.Desc).Limit(1)
	})
	if err != nil {
		return 0, wrapWalletError("wallets.balance", err)
	}
	if len(docs) == 0 {
		return 0, nil
	}
	return docs[0].Data.BalanceAfter, nil
}

// Debit appends a negative-direction row after verifying sufficient balance.
func (r *WalletRepository) Debit(ctx context.Context, req repositories.WalletEntryRequest) (domain.WalletTransaction, error) {
	return r.append(ctx, req, true)
}

// Credit appends a positive-direction row.
func (r *WalletRepository) Credit(ctx context.Context, req repositories.WalletEntryRequest) (domain.WalletTransaction, error) {
	return r.append(ctx, req, false)
}

func (r *WalletRepository) append(ctx context.Context, req repositories.WalletEntryRequest, debit bool) (domain.WalletTransaction, error) {
	if r == nil || r.provider == nil {
		return domain.WalletTransaction{}, errors.New("wallet repository not initialised")
	}
	ownerID := strings.TrimSpace(req.OwnerID)
	if ownerID == "" {
		return domain.WalletTransaction{}, errors.New("wallet append: owner id is required")
	}
	txnID := strings.TrimSpace(req.TxnID)
	if txnID == "" {
		return domain.WalletTransaction{}, errors.New("wallet append: txn id is required")
	}
	if req.Amount <= 0 {
		return domain.WalletTransaction{}, repositories.NewWalletError(repositories.WalletErrorUnknown, "wallet append: amount must be > 0", nil)
	}
	signed := req.Type.SignedAmount(req.Amount)
	if signed == 0 {
		return domain.WalletTransaction{}, repositories.NewWalletError(repositories.WalletErrorUnknown, fmt.Sprintf("wallet append: unknown transaction type %q", req.Type), nil)
	}
	if debit != (signed < 0) {
		return domain.WalletTransaction{}, repositories.NewWalletError(repositories.WalletErrorUnknown, fmt.Sprintf("wallet append: type %q does not match entry direction", req.Type), nil)
	}

	now := req.Now.UTC()
	var created domain.WalletTransaction
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		txnRef, err := r.ledger.DocumentRef(ctx, txnID)
		if err != nil {
			return err
		}
		if _, err := tx.Get(txnRef); err == nil {
			return repositories.NewWalletError(repositories.WalletErrorDuplicateTransaction, fmt.Sprintf("wallet transaction %s already exists", txnID), nil)
		} else if status.Code(err) != codes.NotFound {
			return err
		}

		coll, err := r.ledger.CollectionRef(ctx)
		if err != nil {
			return err
		}
		last, ok, err := latestLedgerRow(tx, coll, ownerID)
		if err != nil {
			return err
		}

		var before int64
		var sequence int64 = 1
		if ok {
			before = last.BalanceAfter
			sequence = last.Sequence + 1
		}
		after := before + signed
		if after < 0 {
			return repositories.NewWalletError(repositories.WalletErrorInsufficientBalance, fmt.Sprintf("wallet %s balance %d is insufficient for %d", ownerID, before, req.Amount), nil)
		}

		doc := walletLedgerDocument{
			OwnerID:       ownerID,
			Amount:        req.Amount,
			BalanceBefore: before,
			BalanceAfter:  after,
			Type:          string(req.Type),
			Status:        string(domain.WalletTxnReleased),
			ReferenceID:   strings.TrimSpace(req.ReferenceID),
			Sequence:      sequence,
			CreatedAt:     now,
		}
		if err := tx.Create(txnRef, doc); err != nil {
			if status.Code(err) == codes.AlreadyExists {
				return repositories.NewWalletError(repositories.WalletErrorDuplicateTransaction, fmt.Sprintf("wallet transaction %s already exists", txnID), err)
			}
			return err
		}

		created = doc.toDomain(txnID)
		return nil
	})
	if err != nil {
		return domain.WalletTransaction{}, wrapWalletError("wallets.append", err)
	}
	return created, nil
}

// ListTransactions returns the owner's ledger rows, newest first.
func (r *WalletRepository) ListTransactions(ctx context.Context, ownerID string, limit int) ([]domain.WalletTransaction, error) {
	if r == nil || r.ledger == nil {
		return nil, errors.New("wallet repository not initialised")
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, errors.New("wallet list transactions: owner id is required")
	}
	if limit <= 0 {
		limit = defaultLedgerListLimit
	}
	if limit > maxLedgerListLimit {
		limit = maxLedgerListLimit
	}

	docs, err := r.ledger.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("ownerId", "==", ownerID).OrderBy("sequence", firestore.Desc).Limit(limit)
	})
	if err != nil {
		return nil, wrapWalletError("wallets.listTransactions", err)
	}

	txns := make([]domain.WalletTransaction, len(docs))
	for i, doc := range docs {
		txns[i] = doc.Data.toDomain(doc.ID)
	}
	return txns, nil
}

// FindTransaction fetches one ledger row by ID.
func (r *WalletRepository) FindTransaction(ctx context.Context, txnID string) (domain.WalletTransaction, error) {
	if r == nil || r.ledger == nil {
		return domain.WalletTransaction{}, errors.New("wallet repository not initialised")
	}
	txnID = strings.TrimSpace(txnID)
	if txnID == "" {
		return domain.WalletTransaction{}, errors.New("wallet find transaction: txn id is required")
	}

	doc, err := r.ledger.Get(ctx, txnID)
	if err != nil {
		if pfirestore.IsNotFound(err) {
			return domain.WalletTransaction{}, repositories.NewWalletError(repositories.WalletErrorTransactionNotFound, fmt.Sprintf("wallet transaction %s not found", txnID), err)
		}
		return domain.WalletTransaction{}, wrapWalletError("wallets.findTransaction", err)
	}
	return doc.Data.toDomain(doc.ID), nil
}

func latestLedgerRow(tx *firestore.Transaction, coll *firestore.CollectionRef, ownerID string) (walletLedgerDocument, bool, error) {
	query := coll.Where("ownerId", "==", ownerID).OrderBy("sequence", firestore.Desc).Limit(1)
	iter := tx.Documents(query)
	defer iter.Stop()

	snap, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return walletLedgerDocument{}, false, nil
	}
	if err != nil {
		return walletLedgerDocument{}, false, err
	}
	var doc walletLedgerDocument
	if err := snap.DataTo(&doc); err != nil {
		return walletLedgerDocument{}, false, fmt.Errorf("decode wallet transaction %s: %w", snap.Ref.ID, err)
	}
	return doc, true, nil
}

// Helper structures ---------------------------------------------------------

type walletLedgerDocument struct {
	OwnerID       string    `firestore:"ownerId"`
	Amount        int64     `firestore:"amount"`
	BalanceBefore int64     `firestore:"balanceBefore"`
	BalanceAfter  int64     `firestore:"balanceAfter"`
	Type          string    `firestore:"type"`
	Status        string    `firestore:"status"`
	ReferenceID   string    `firestore:"referenceId,omitempty"`
	Sequence      int64     `firestore:"sequence"`
	CreatedAt     time.Time `firestore:"createdAt"`
}

func (d walletLedgerDocument) toDomain(id string) domain.WalletTransaction {
	return domain.WalletTransaction{
		ID:            id,
		WalletOwnerID: d.OwnerID,
		Amount:        d.Amount,
		BalanceBefore: d.BalanceBefore,
		BalanceAfter:  d.BalanceAfter,
		Type:          domain.WalletTransactionType(d.Type),
		Status:        domain.WalletTransactionStatus(d.Status),
		ReferenceID:   d.ReferenceID,
		Sequence:      d.Sequence,
		CreatedAt:     d.CreatedAt,
	}
}

func wrapWalletError(op string, err error) error {
	if err == nil {
		return nil
	}
	var walletErr *repositories.WalletError
	if errors.As(err, &walletErr) {
		if walletErr.Op == "" {
			walletErr.Op = op
		}
		return walletErr
	}
	return pfirestore.WrapError(op, err)
}
