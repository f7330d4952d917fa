package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/tthaingoc/EcoFashion-sub009/internal/domain"
	pfirestore "github.com/tthaingoc/EcoFashion-sub009/internal/platform/firestore"
)

const cartCollection = "carts"

// CartRepository persists the per-owner cart document within Firestore.
// The owner ID doubles as the document identifier.
type CartRepository struct {
	base     *pfirestore.BaseRepository[cartDocument]
	provider *pfirestore.Provider
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[cartDocument](provider, cartCollection, nil, nil)
	return &CartRepository{
		base:     base,
		provider: provider,
	}, nil
}

// FindByOwner returns the owner's cart, or an empty cart when none has been saved yet.
func (r *CartRepository) FindByOwner(ctx context.Context, ownerID string) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return domain.Cart{}, errors.New("cart repository: owner id is required")
	}

	doc, err := r.base.Get(ctx, ownerID)
	if err != nil {
		if pfirestore.IsNotFound(err) {
			return domain.Cart{ID: ownerID, OwnerID: ownerID}, nil
		}
		return domain.Cart{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// Save upserts the whole cart document.
func (r *CartRepository) Save(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	ownerID := strings.TrimSpace(cart.OwnerID)
	if ownerID == "" {
		return domain.Cart{}, errors.New("cart repository: owner id is required")
	}

	doc := newCartDocument(cart)
	if _, err := r.base.Set(ctx, ownerID, doc); err != nil {
		return domain.Cart{}, err
	}
	return doc.toDomain(ownerID), nil
}

// RemoveItems deletes the given item references from the cart inside a transaction,
// so a concurrent cart edit is not lost. Unknown references are ignored.
func (r *CartRepository) RemoveItems(ctx context.Context, ownerID string, refs []domain.ItemRef, now time.Time) (domain.Cart, error) {
	if r == nil || r.provider == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return domain.Cart{}, errors.New("cart repository: owner id is required")
	}
	if len(refs) == 0 {
		return r.FindByOwner(ctx, ownerID)
	}

	remove := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		if key := ref.Key(); key != "" {
			remove[key] = struct{}{}
		}
	}

	var updated domain.Cart
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		cartRef, err := r.base.DocumentRef(ctx, ownerID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(cartRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				updated = domain.Cart{ID: ownerID, OwnerID: ownerID}
				return nil
			}
			return err
		}
		var doc cartDocument
		if err := snap.DataTo(&doc); err != nil {
			return err
		}

		kept := doc.Items[:0]
		for _, item := range doc.Items {
			if _, drop := remove[item.ItemRef.Key()]; !drop {
				kept = append(kept, item)
			}
		}
		doc.Items = kept
		doc.UpdatedAt = now.UTC()
		if err := tx.Set(cartRef, doc); err != nil {
			return err
		}
		updated = doc.toDomain(ownerID)
		return nil
	})
	if err != nil {
		return domain.Cart{}, pfirestore.WrapError("carts.removeItems", err)
	}
	return updated, nil
}

// Helper structures ---------------------------------------------------------

type cartDocument struct {
	Items     []cartItemDocument `firestore:"items"`
	CreatedAt time.Time          `firestore:"createdAt"`
	UpdatedAt time.Time          `firestore:"updatedAt"`
}

type cartItemDocument struct {
	ItemRef      domain.ItemRef `firestore:"itemRef"`
	ProviderID   string         `firestore:"providerId"`
	ProviderType string         `firestore:"providerType"`
	Quantity     int            `firestore:"qty"`
	UnitPrice    int64          `firestore:"unitPrice"`
	AddedAt      time.Time      `firestore:"addedAt"`
}

func newCartDocument(cart domain.Cart) cartDocument {
	items := make([]cartItemDocument, len(cart.Items))
	for i, item := range cart.Items {
		items[i] = cartItemDocument{
			ItemRef:      item.ItemRef,
			ProviderID:   strings.TrimSpace(item.ProviderID),
			ProviderType: string(item.ProviderType),
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			AddedAt:      item.AddedAt.UTC(),
		}
	}
	createdAt := cart.CreatedAt.UTC()
	updatedAt := cart.UpdatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = updatedAt
	}
	return cartDocument{
		Items:     items,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
}

func (d cartDocument) toDomain(ownerID string) domain.Cart {
	items := make([]domain.CartItem, len(d.Items))
	for i, item := range d.Items {
		items[i] = domain.CartItem{
			ItemRef:      item.ItemRef,
			ProviderID:   item.ProviderID,
			ProviderType: domain.ProviderType(item.ProviderType),
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			AddedAt:      item.AddedAt,
		}
	}
	return domain.Cart{
		ID:        ownerID,
		OwnerID:   ownerID,
		Items:     items,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}
