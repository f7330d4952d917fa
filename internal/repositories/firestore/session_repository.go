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

const sessionCollection = "checkoutSessions"

// SessionRepository persists checkout session documents within Firestore.
type SessionRepository struct {
	base     *pfirestore.BaseRepository[sessionDocument]
	provider *pfirestore.Provider
}

// NewSessionRepository constructs a Firestore-backed session repository.
func NewSessionRepository(provider *pfirestore.Provider) (*SessionRepository, error) {
	if provider == nil {
		return nil, errors.New("session repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[sessionDocument](provider, sessionCollection, nil, nil)
	return &SessionRepository{
		base:     base,
		provider: provider,
	}, nil
}

// Insert creates the session document, failing when the ID is already taken.
func (r *SessionRepository) Insert(ctx context.Context, session domain.CheckoutSession) error {
	if r == nil || r.base == nil {
		return errors.New("session repository not initialised")
	}
	sessionID := strings.TrimSpace(session.ID)
	if sessionID == "" {
		return errors.New("session repository: session id is required")
	}

	docRef, err := r.base.DocumentRef(ctx, sessionID)
	if err != nil {
		return err
	}
	doc := newSessionDocument(session)
	if _, err := docRef.Create(ctx, doc); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return repositories.NewSessionError(repositories.SessionErrorDuplicate, fmt.Sprintf("session %s already exists", sessionID), err)
		}
		return pfirestore.WrapError("checkoutSessions.insert", err)
	}
	return nil
}

// FindByID fetches the session document.
func (r *SessionRepository) FindByID(ctx context.Context, sessionID string) (domain.CheckoutSession, error) {
	if r == nil || r.base == nil {
		return domain.CheckoutSession{}, errors.New("session repository not initialised")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.CheckoutSession{}, errors.New("session repository: session id is required")
	}

	doc, err := r.base.Get(ctx, sessionID)
	if err != nil {
		if pfirestore.IsNotFound(err) {
			return domain.CheckoutSession{}, repositories.NewSessionError(repositories.SessionErrorNotFound, fmt.Sprintf("session %s not found", sessionID), err)
		}
		return domain.CheckoutSession{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// FindByTxnRef looks the session up by its opaque gateway reference.
func (r *SessionRepository) FindByTxnRef(ctx context.Context, txnRef string) (domain.CheckoutSession, error) {
	if r == nil || r.base == nil {
		return domain.CheckoutSession{}, errors.New("session repository not initialised")
	}
	txnRef = strings.TrimSpace(txnRef)
	if txnRef == "" {
		return domain.CheckoutSession{}, errors.New("session repository: txn ref is required")
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("txnRef", "==", txnRef).Limit(1)
	})
	if err != nil {
		return domain.CheckoutSession{}, err
	}
	if len(docs) == 0 {
		return domain.CheckoutSession{}, repositories.NewSessionError(repositories.SessionErrorNotFound, fmt.Sprintf("session for txn ref %s not found", txnRef), nil)
	}
	return docs[0].Data.toDomain(docs[0].ID), nil
}

// ListByOwner returns the owner's sessions, newest first.
func (r *SessionRepository) ListByOwner(ctx context.Context, ownerID string, filter repositories.SessionListFilter) ([]domain.CheckoutSession, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("session repository not initialised")
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, errors.New("session repository: owner id is required")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		query = query.Where("ownerId", "==", ownerID)
		if filter.Status != "" {
			query = query.Where("status", "==", string(filter.Status))
		}
		return query.OrderBy("createdAt", firestore.Desc).Limit(limit)
	})
	if err != nil {
		return nil, err
	}

	sessions := make([]domain.CheckoutSession, len(docs))
	for i, doc := range docs {
		sessions[i] = doc.Data.toDomain(doc.ID)
	}
	return sessions, nil
}

// UpdateItems replaces the session lines while the stored status is still open.
func (r *SessionRepository) UpdateItems(ctx context.Context, sessionID string, items []domain.CheckoutSessionItem, now time.Time) (domain.CheckoutSession, error) {
	if r == nil || r.provider == nil {
		return domain.CheckoutSession{}, errors.New("session repository not initialised")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.CheckoutSession{}, errors.New("session repository: session id is required")
	}

	var updated domain.CheckoutSession
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, docRef, err := r.getForUpdate(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if doc.Status != string(domain.SessionOpen) {
			return repositories.NewSessionError(repositories.SessionErrorInvalidState, fmt.Sprintf("session %s is %s, not open", sessionID, doc.Status), nil)
		}

		doc.Items = newSessionItemDocuments(items)
		doc.UpdatedAt = now.UTC()
		if err := tx.Set(docRef, doc); err != nil {
			return err
		}
		updated = doc.toDomain(sessionID)
		return nil
	})
	if err != nil {
		return domain.CheckoutSession{}, wrapSessionError("checkoutSessions.updateItems", err)
	}
	return updated, nil
}

// Transition moves the session status inside a transaction, failing with
// SessionErrorInvalidState when the stored status differs from the expected one.
func (r *SessionRepository) Transition(ctx context.Context, req repositories.SessionTransitionRequest) (domain.CheckoutSession, error) {
	if r == nil || r.provider == nil {
		return domain.CheckoutSession{}, errors.New("session repository not initialised")
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		return domain.CheckoutSession{}, errors.New("session repository: session id is required")
	}
	if !domain.CanTransitionSession(req.From, req.To) {
		return domain.CheckoutSession{}, repositories.NewSessionError(repositories.SessionErrorInvalidState, fmt.Sprintf("transition %s -> %s is not allowed", req.From, req.To), nil)
	}

	now := req.Now.UTC()
	var updated domain.CheckoutSession
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, docRef, err := r.getForUpdate(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if doc.Status != string(req.From) {
			return repositories.NewSessionError(repositories.SessionErrorInvalidState, fmt.Sprintf("session %s is %s, expected %s", sessionID, doc.Status, req.From), nil)
		}

		doc.Status = string(req.To)
		doc.UpdatedAt = now
		if req.To == domain.SessionPaid {
			doc.PaidAt = &now
		}
		if err := tx.Set(docRef, doc); err != nil {
			return err
		}
		updated = doc.toDomain(sessionID)
		return nil
	})
	if err != nil {
		return domain.CheckoutSession{}, wrapSessionError("checkoutSessions.transition", err)
	}
	return updated, nil
}

func (r *SessionRepository) getForUpdate(ctx context.Context, tx *firestore.Transaction, sessionID string) (sessionDocument, *firestore.DocumentRef, error) {
	docRef, err := r.base.DocumentRef(ctx, sessionID)
	if err != nil {
		return sessionDocument{}, nil, err
	}
	snap, err := tx.Get(docRef)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return sessionDocument{}, nil, repositories.NewSessionError(repositories.SessionErrorNotFound, fmt.Sprintf("session %s not found", sessionID), err)
		}
		return sessionDocument{}, nil, err
	}
	var doc sessionDocument
	if err := snap.DataTo(&doc); err != nil {
		return sessionDocument{}, nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return doc, docRef, nil
}

// Helper structures ---------------------------------------------------------

type sessionDocument struct {
	OwnerID         string                `firestore:"ownerId"`
	Status          string                `firestore:"status"`
	TxnRef          string                `firestore:"txnRef"`
	ReservationID   string                `firestore:"reservationId"`
	ShippingAddress string                `firestore:"shippingAddress,omitempty"`
	Items           []sessionItemDocument `firestore:"items"`
	CreatedAt       time.Time             `firestore:"createdAt"`
	ExpiresAt       time.Time             `firestore:"expiresAt"`
	UpdatedAt       time.Time             `firestore:"updatedAt"`
	PaidAt          *time.Time            `firestore:"paidAt,omitempty"`
}

type sessionItemDocument struct {
	ItemRef      domain.ItemRef `firestore:"itemRef"`
	ProviderID   string         `firestore:"providerId"`
	ProviderType string         `firestore:"providerType"`
	Quantity     int            `firestore:"qty"`
	UnitPrice    int64          `firestore:"unitPrice"`
	IsSelected   bool           `firestore:"isSelected"`
}

func newSessionDocument(session domain.CheckoutSession) sessionDocument {
	return sessionDocument{
		OwnerID:         strings.TrimSpace(session.OwnerID),
		Status:          string(session.Status),
		TxnRef:          strings.TrimSpace(session.TxnRef),
		ReservationID:   strings.TrimSpace(session.ReservationID),
		ShippingAddress: strings.TrimSpace(session.ShippingAddress),
		Items:           newSessionItemDocuments(session.Items),
		CreatedAt:       session.CreatedAt.UTC(),
		ExpiresAt:       session.ExpiresAt.UTC(),
		UpdatedAt:       session.UpdatedAt.UTC(),
		PaidAt:          session.PaidAt,
	}
}

func newSessionItemDocuments(items []domain.CheckoutSessionItem) []sessionItemDocument {
	docs := make([]sessionItemDocument, len(items))
	for i, item := range items {
		docs[i] = sessionItemDocument{
			ItemRef:      item.ItemRef,
			ProviderID:   strings.TrimSpace(item.ProviderID),
			ProviderType: string(item.ProviderType),
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			IsSelected:   item.IsSelected,
		}
	}
	return docs
}

func (d sessionDocument) toDomain(id string) domain.CheckoutSession {
	items := make([]domain.CheckoutSessionItem, len(d.Items))
	for i, item := range d.Items {
		items[i] = domain.CheckoutSessionItem{
			ItemRef:      item.ItemRef,
			ProviderID:   item.ProviderID,
			ProviderType: domain.ProviderType(item.ProviderType),
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			IsSelected:   item.IsSelected,
		}
	}
	return domain.CheckoutSession{
		ID:              id,
		OwnerID:         d.OwnerID,
		Status:          domain.SessionStatus(d.Status),
		TxnRef:          d.TxnRef,
		ReservationID:   d.ReservationID,
		ShippingAddress: d.ShippingAddress,
		Items:           items,
		CreatedAt:       d.CreatedAt,
		ExpiresAt:       d.ExpiresAt,
		UpdatedAt:       d.UpdatedAt,
		PaidAt:          d.PaidAt,
	}
}

func wrapSessionError(op string, err error) error {
	if err == nil {
		return nil
	}
	var sessErr *repositories.SessionError
	if errors.As(err, &sessErr) {
		if sessErr.Op == "" {
			sessErr.Op = op
		}
		return sessErr
	}
	return pfirestore.WrapError(op, err)
}
