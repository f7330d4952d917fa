package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/tthaingoc/EcoFashion-sub009/internal/domain"
	pfirestore "github.com/tthaingoc/EcoFashion-sub009/internal/platform/firestore"
	"github.com/tthaingoc/EcoFashion-sub009/internal/repositories"
)

const (
	stockCollection        = "inventoryStocks"
	reservationCollection  = "inventoryReservations"
	stockLedgerCollection  = "inventoryTransactions"
	defaultLedgerListLimit = 50
	maxLedgerListLimit     = 200
)

// InventoryRepository maintains stock counters, reservations, and the
// append-only stock ledger within Firestore.
type InventoryRepository struct {
	provider     *pfirestore.Provider
	stocks       *pfirestore.BaseRepository[stockDocument]
	reservations *pfirestore.BaseRepository[reservationDocument]
	ledger       *pfirestore.BaseRepository[stockLedgerDocument]
}

// NewInventoryRepository constructs a Firestore-backed inventory repository.
func NewInventoryRepository(provider *pfirestore.Provider) (*InventoryRepository, error) {
	if provider == nil {
		return nil, errors.New("inventory repository requires firestore provider")
	}
	return &InventoryRepository{
		provider:     provider,
		stocks:       pfirestore.NewBaseRepository[stockDocument](provider, stockCollection, nil, nil),
		reservations: pfirestore.NewBaseRepository[reservationDocument](provider, reservationCollection, nil, nil),
		ledger:       pfirestore.NewBaseRepository[stockLedgerDocument](provider, stockLedgerCollection, nil, nil),
	}, nil
}

// GetStock returns the current counter projection for one item.
func (r *InventoryRepository) GetStock(ctx context.Context, itemKey string) (domain.InventoryStock, error) {
	if r == nil || r.stocks == nil {
		return domain.InventoryStock{}, errors.New("inventory repository not initialised")
	}
	itemKey = strings.TrimSpace(itemKey)
	if itemKey == "" {
		return domain.InventoryStock{}, errors.New("inventory get stock: item key is required")
	}

	doc, err := r.stocks.Get(ctx, itemKey)
	if err != nil {
		if pfirestore.IsNotFound(err) {
			return domain.InventoryStock{}, repositories.NewInventoryError(repositories.InventoryErrorStockNotFound, fmt.Sprintf("stock %s not found", itemKey), err)
		}
		return domain.InventoryStock{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// AdjustStock moves the on-hand counter by delta and appends an adjust ledger
// row in the same transaction. A missing stock document is created on positive delta.
func (r *InventoryRepository) AdjustStock(ctx context.Context, req repositories.InventoryAdjustRequest) (domain.InventoryStock, error) {
	if r == nil || r.provider == nil {
		return domain.InventoryStock{}, errors.New("inventory repository not initialised")
	}
	itemKey := strings.TrimSpace(req.ItemKey)
	if itemKey == "" {
		return domain.InventoryStock{}, errors.New("inventory adjust: item key is required")
	}
	if req.Delta == 0 {
		return domain.InventoryStock{}, repositories.NewInventoryError(repositories.InventoryErrorUnknown, "inventory adjust: delta must be non-zero", nil)
	}
	if strings.TrimSpace(req.TxnID) == "" {
		return domain.InventoryStock{}, errors.New("inventory adjust: txn id is required")
	}

	now := req.Now.UTC()
	var updated domain.InventoryStock
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		stockRef, err := r.stocks.DocumentRef(ctx, itemKey)
		if err != nil {
			return err
		}
		var doc stockDocument
		snap, err := tx.Get(stockRef)
		if err != nil {
			if status.Code(err) != codes.NotFound {
				return err
			}
			if req.Delta < 0 {
				return repositories.NewInventoryError(repositories.InventoryErrorStockNotFound, fmt.Sprintf("stock %s not found", itemKey), err)
			}
			doc = stockDocument{}
		} else if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode inventory stock %s: %w", itemKey, err)
		}

		before := doc.OnHand
		after := before + req.Delta
		if after < 0 {
			return repositories.NewInventoryError(repositories.InventoryErrorInsufficientStock, fmt.Sprintf("onHand for %s cannot drop below zero", itemKey), nil)
		}
		if after-doc.Reserved < 0 {
			return repositories.NewInventoryError(repositories.InventoryErrorInsufficientStock, fmt.Sprintf("adjust would leave %s below its reserved quantity", itemKey), nil)
		}

		doc.OnHand = after
		doc.UpdatedAt = now
		doc.recalculate()
		if err := tx.Set(stockRef, doc); err != nil {
			return err
		}

		ledgerRef, err := r.ledger.DocumentRef(ctx, req.TxnID)
		if err != nil {
			return err
		}
		entry := stockLedgerDocument{
			ItemKey:       itemKey,
			QuantityDelta: req.Delta,
			BeforeQty:     before,
			AfterQty:      after,
			Type:          string(domain.InventoryAdjust),
			CreatedAt:     now,
		}
		if err := tx.Create(ledgerRef, entry); err != nil {
			return err
		}

		updated = doc.toDomain(itemKey)
		return nil
	})
	if err != nil {
		return domain.InventoryStock{}, wrapInventoryError("inventory.adjust", err)
	}
	return updated, nil
}

// Reserve atomically checks availability across all lines, increments the
// reserved counters, creates the reservation, and appends one reserve ledger
// row per line. All lines succeed or none do.
func (r *InventoryRepository) Reserve(ctx context.Context, req repositories.InventoryReserveRequest) (domain.InventoryReservation, error) {
	if r == nil || r.provider == nil {
		return domain.InventoryReservation{}, errors.New("inventory repository not initialised")
	}
	reservation := req.Reservation
	if strings.TrimSpace(reservation.ID) == "" {
		return domain.InventoryReservation{}, errors.New("inventory reserve: reservation id is required")
	}
	if len(reservation.Lines) == 0 {
		return domain.InventoryReservation{}, errors.New("inventory reserve: at least one line is required")
	}
	if len(req.TxnIDs) != len(reservation.Lines) {
		return domain.InventoryReservation{}, errors.New("inventory reserve: one txn id per line is required")
	}

	now := req.Now.UTC()
	reservation.Status = domain.ReservationReserved
	if reservation.CreatedAt.IsZero() {
		reservation.CreatedAt = now
	}
	reservation.UpdatedAt = now

	var created domain.InventoryReservation
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		resRef, err := r.reservations.DocumentRef(ctx, reservation.ID)
		if err != nil {
			return err
		}
		if _, err := tx.Get(resRef); err == nil {
			return repositories.NewInventoryError(repositories.InventoryErrorInvalidReservationState, fmt.Sprintf("reservation %s already exists", reservation.ID), nil)
		} else if status.Code(err) != codes.NotFound {
			return err
		}

		// All reads must precede writes inside a Firestore transaction.
		stockRefs := make([]*firestore.DocumentRef, len(reservation.Lines))
		stockDocs := make([]stockDocument, len(reservation.Lines))
		for i, line := range reservation.Lines {
			itemKey := line.ItemRef.Key()
			if itemKey == "" {
				return repositories.NewInventoryError(repositories.InventoryErrorStockNotFound, "inventory reserve: item ref is required", nil)
			}
			if line.Quantity <= 0 {
				return repositories.NewInventoryError(repositories.InventoryErrorUnknown, fmt.Sprintf("inventory reserve: quantity for %s must be > 0", itemKey), nil)
			}

			stockRef, err := r.stocks.DocumentRef(ctx, itemKey)
			if err != nil {
				return err
			}
			snap, err := tx.Get(stockRef)
			if err != nil {
				if status.Code(err) == codes.NotFound {
					return repositories.NewInventoryError(repositories.InventoryErrorStockNotFound, fmt.Sprintf("stock %s not found", itemKey), err)
				}
				return err
			}
			var stockDoc stockDocument
			if err := snap.DataTo(&stockDoc); err != nil {
				return fmt.Errorf("decode inventory stock %s: %w", itemKey, err)
			}
			if stockDoc.Available < line.Quantity {
				return repositories.NewInventoryError(repositories.InventoryErrorInsufficientStock, fmt.Sprintf("insufficient stock for %s", itemKey), nil)
			}
			stockRefs[i] = stockRef
			stockDocs[i] = stockDoc
		}

		for i, line := range reservation.Lines {
			itemKey := line.ItemRef.Key()
			stockDoc := stockDocs[i]
			before := stockDoc.Reserved
			stockDoc.Reserved += line.Quantity
			stockDoc.UpdatedAt = now
			stockDoc.recalculate()
			if err := tx.Set(stockRefs[i], stockDoc); err != nil {
				return err
			}

			ledgerRef, err := r.ledger.DocumentRef(ctx, req.TxnIDs[i])
			if err != nil {
				return err
			}
			entry := stockLedgerDocument{
				ItemKey:       itemKey,
				QuantityDelta: line.Quantity,
				BeforeQty:     before,
				AfterQty:      stockDoc.Reserved,
				Type:          string(domain.InventoryReserve),
				ReservationID: reservation.ID,
				CreatedAt:     now,
			}
			if err := tx.Create(ledgerRef, entry); err != nil {
				return err
			}
		}

		resDoc := newReservationDocument(reservation)
		if err := tx.Create(resRef, resDoc); err != nil {
			if status.Code(err) == codes.AlreadyExists {
				return repositories.NewInventoryError(repositories.InventoryErrorInvalidReservationState, fmt.Sprintf("reservation %s already exists", reservation.ID), err)
			}
			return err
		}

		created = resDoc.toDomain(reservation.ID)
		return nil
	})
	if err != nil {
		return domain.InventoryReservation{}, wrapInventoryError("inventory.reserve", err)
	}
	return created, nil
}

// Release returns reserved quantities to availability and appends release
// ledger rows. A reservation that is no longer in the reserved state is left
// untouched, making the operation safe to repeat.
func (r *InventoryRepository) Release(ctx context.Context, req repositories.InventoryReleaseRequest) (domain.InventoryReservation, error) {
	if r == nil || r.provider == nil {
		return domain.InventoryReservation{}, errors.New("inventory repository not initialised")
	}
	reservationID := strings.TrimSpace(req.ReservationID)
	if reservationID == "" {
		return domain.InventoryReservation{}, errors.New("inventory release: reservation id is required")
	}

	now := req.Now.UTC()
	var result domain.InventoryReservation
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		resRef, err := r.reservations.DocumentRef(ctx, reservationID)
		if err != nil {
			return err
		}
		resSnap, err := tx.Get(resRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return repositories.NewInventoryError(repositories.InventoryErrorReservationNotFound, fmt.Sprintf("reservation %s not found", reservationID), err)
			}
			return err
		}
		resDoc, err := decodeReservation(resSnap)
		if err != nil {
			return err
		}
		if resDoc.Status != string(domain.ReservationReserved) {
			// Already released or committed; repeatable without effect.
			result = resDoc.toDomain(reservationID)
			return nil
		}
		if len(req.TxnIDs) != len(resDoc.Lines) {
			return errors.New("inventory release: one txn id per line is required")
		}

		stockRefs := make([]*firestore.DocumentRef, len(resDoc.Lines))
		stockDocs := make([]stockDocument, len(resDoc.Lines))
		for i, line := range resDoc.Lines {
			itemKey := line.ItemRef.Key()
			stockRef, err := r.stocks.DocumentRef(ctx, itemKey)
			if err != nil {
				return err
			}
			snap, err := tx.Get(stockRef)
			if err != nil {
				if status.Code(err) == codes.NotFound {
					return repositories.NewInventoryError(repositories.InventoryErrorStockNotFound, fmt.Sprintf("stock %s not found", itemKey), err)
				}
				return err
			}
			var stockDoc stockDocument
			if err := snap.DataTo(&stockDoc); err != nil {
				return fmt.Errorf("decode inventory stock %s: %w", itemKey, err)
			}
			if stockDoc.Reserved < line.Quantity {
				return repositories.NewInventoryError(repositories.InventoryErrorInvalidReservationState, fmt.Sprintf("reserved quantity for %s is insufficient", itemKey), nil)
			}
			stockRefs[i] = stockRef
			stockDocs[i] = stockDoc
		}

		for i, line := range resDoc.Lines {
			itemKey := line.ItemRef.Key()
			stockDoc := stockDocs[i]
			before := stockDoc.Reserved
			stockDoc.Reserved -= line.Quantity
			stockDoc.UpdatedAt = now
			stockDoc.recalculate()
			if err := tx.Set(stockRefs[i], stockDoc); err != nil {
				return err
			}

			ledgerRef, err := r.ledger.DocumentRef(ctx, req.TxnIDs[i])
			if err != nil {
				return err
			}
			entry := stockLedgerDocument{
				ItemKey:       itemKey,
				QuantityDelta: -line.Quantity,
				BeforeQty:     before,
				AfterQty:      stockDoc.Reserved,
				Type:          string(domain.InventoryRelease),
				ReservationID: reservationID,
				CreatedAt:     now,
			}
			if err := tx.Create(ledgerRef, entry); err != nil {
				return err
			}
		}

		resDoc.Status = string(domain.ReservationReleased)
		resDoc.UpdatedAt = now
		resDoc.ReleasedAt = &now
		if err := tx.Set(resRef, resDoc); err != nil {
			return err
		}

		result = resDoc.toDomain(reservationID)
		return nil
	})
	if err != nil {
		return domain.InventoryReservation{}, wrapInventoryError("inventory.release", err)
	}
	return result, nil
}

// GetReservation fetches the reservation document.
func (r *InventoryRepository) GetReservation(ctx context.Context, reservationID string) (domain.InventoryReservation, error) {
	if r == nil || r.reservations == nil {
		return domain.InventoryReservation{}, errors.New("inventory repository not initialised")
	}
	reservationID = strings.TrimSpace(reservationID)
	if reservationID == "" {
		return domain.InventoryReservation{}, errors.New("inventory get reservation: id is required")
	}

	doc, err := r.reservations.Get(ctx, reservationID)
	if err != nil {
		if pfirestore.IsNotFound(err) {
			return domain.InventoryReservation{}, repositories.NewInventoryError(repositories.InventoryErrorReservationNotFound, fmt.Sprintf("reservation %s not found", reservationID), err)
		}
		return domain.InventoryReservation{}, wrapInventoryError("inventory.getReservation", err)
	}
	return doc.Data.toDomain(doc.ID), nil
}

// ListExpiredReservations returns reserved holds whose expiry lies at or
// before the cutoff, oldest first. Used by the expiry sweeper.
func (r *InventoryRepository) ListExpiredReservations(ctx context.Context, cutoff time.Time, limit int) ([]domain.InventoryReservation, error) {
	if r == nil || r.reservations == nil {
		return nil, errors.New("inventory repository not initialised")
	}
	if limit <= 0 {
		limit = defaultLedgerListLimit
	}
	if limit > maxLedgerListLimit {
		limit = maxLedgerListLimit
	}

	docs, err := r.reservations.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.
			Where("status", "==", string(domain.ReservationReserved)).
			Where("expiresAt", "<=", cutoff.UTC()).
			OrderBy("expiresAt", firestore.Asc).
			Limit(limit)
	})
	if err != nil {
		return nil, wrapInventoryError("inventory.listExpiredReservations", err)
	}

	reservations := make([]domain.InventoryReservation, len(docs))
	for i, doc := range docs {
		reservations[i] = doc.Data.toDomain(doc.ID)
	}
	return reservations, nil
}

// ListTransactions returns the item's ledger rows, newest first.
func (r *InventoryRepository) ListTransactions(ctx context.Context, itemKey string, limit int) ([]domain.InventoryTransaction, error) {
	if r == nil || r.ledger == nil {
		return nil, errors.New("inventory repository not initialised")
	}
	itemKey = strings.TrimSpace(itemKey)
	if itemKey == "" {
		return nil, errors.New("inventory list transactions: item key is required")
	}
	if limit <= 0 {
		limit = defaultLedgerListLimit
	}
	if limit > maxLedgerListLimit {
		limit = maxLedgerListLimit
	}

	docs, err := r.ledger.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("itemKey", "==", itemKey).OrderBy("createdAt", firestore.Desc).Limit(limit)
	})
	if err != nil {
		return nil, wrapInventoryError("inventory.listTransactions", err)
	}

	txns := make([]domain.InventoryTransaction, len(docs))
	for i, doc := range docs {
		txns[i] = doc.Data.toDomain(doc.ID)
	}
	return txns, nil
}

// Helper structures ---------------------------------------------------------

type stockDocument struct {
	OnHand    int       `firestore:"onHand"`
	Reserved  int       `firestore:"reserved"`
	Available int       `firestore:"available"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func (s *stockDocument) recalculate() {
	s.Available = s.OnHand - s.Reserved
}

func (s stockDocument) toDomain(id string) domain.InventoryStock {
	return domain.InventoryStock{
		ItemKey:   id,
		OnHand:    s.OnHand,
		Reserved:  s.Reserved,
		Available: s.Available,
		UpdatedAt: s.UpdatedAt,
	}
}

type reservationDocument struct {
	SessionID   string                    `firestore:"sessionId"`
	OwnerID     string                    `firestore:"ownerId"`
	Status      string                    `firestore:"status"`
	Lines       []reservationLineDocument `firestore:"lines"`
	ExpiresAt   time.Time                 `firestore:"expiresAt"`
	CreatedAt   time.Time                 `firestore:"createdAt"`
	UpdatedAt   time.Time                 `firestore:"updatedAt"`
	ReleasedAt  *time.Time                `firestore:"releasedAt,omitempty"`
	CommittedAt *time.Time                `firestore:"committedAt,omitempty"`
}

type reservationLineDocument struct {
	ItemRef  domain.ItemRef `firestore:"itemRef"`
	Quantity int            `firestore:"qty"`
}

func newReservationDocument(res domain.InventoryReservation) reservationDocument {
	lines := make([]reservationLineDocument, len(res.Lines))
	for i, line := range res.Lines {
		lines[i] = reservationLineDocument{
			ItemRef:  line.ItemRef,
			Quantity: line.Quantity,
		}
	}
	return reservationDocument{
		SessionID:   strings.TrimSpace(res.SessionID),
		OwnerID:     strings.TrimSpace(res.OwnerID),
		Status:      string(res.Status),
		Lines:       lines,
		ExpiresAt:   res.ExpiresAt.UTC(),
		CreatedAt:   res.CreatedAt.UTC(),
		UpdatedAt:   res.UpdatedAt.UTC(),
		ReleasedAt:  res.ReleasedAt,
		CommittedAt: res.CommittedAt,
	}
}

func (d reservationDocument) toDomain(id string) domain.InventoryReservation {
	lines := make([]domain.ReservationLine, len(d.Lines))
	for i, line := range d.Lines {
		lines[i] = domain.ReservationLine{
			ItemRef:  line.ItemRef,
			Quantity: line.Quantity,
		}
	}
	return domain.InventoryReservation{
		ID:          id,
		SessionID:   d.SessionID,
		OwnerID:     d.OwnerID,
		Status:      domain.ReservationStatus(d.Status),
		Lines:       lines,
		ExpiresAt:   d.ExpiresAt,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
		ReleasedAt:  d.ReleasedAt,
		CommittedAt: d.CommittedAt,
	}
}

func decodeReservation(snap *firestore.DocumentSnapshot) (reservationDocument, error) {
	var doc reservationDocument
	if err := snap.DataTo(&doc); err != nil {
		return reservationDocument{}, fmt.Errorf("decode reservation %s: %w", snap.Ref.ID, err)
	}
	return doc, nil
}

type stockLedgerDocument struct {
	ItemKey       string    `firestore:"itemKey"`
	QuantityDelta int       `firestore:"qtyDelta"`
	BeforeQty     int       `firestore:"beforeQty"`
	AfterQty      int       `firestore:"afterQty"`
	Type          string    `firestore:"type"`
	ReservationID string    `firestore:"reservationId,omitempty"`
	CreatedAt     time.Time `firestore:"createdAt"`
}

func (d stockLedgerDocument) toDomain(id string) domain.InventoryTransaction {
	return domain.InventoryTransaction{
		ID:            id,
		ItemKey:       d.ItemKey,
		QuantityDelta: d.QuantityDelta,
		BeforeQty:     d.BeforeQty,
		AfterQty:      d.AfterQty,
		Type:          domain.InventoryTransactionType(d.Type),
		ReservationID: d.ReservationID,
		CreatedAt:     d.CreatedAt,
	}
}

func wrapInventoryError(op string, err error) error {
	if err == nil {
		return nil
	}
	var invErr *repositories.InventoryError
	if errors.As(err, &invErr) {
		if invErr.Op == "" {
			invErr.Op = op
		}
		return invErr
	}
	return pfirestore.WrapError(op, err)
}
