package firestore

import (
	"context"
	"errors"
	"time"

	pfirestore "github.com/tthaingoc/EcoFashion-sub009/internal/platform/firestore"
)

const healthProbeTimeout = 1500 * time.Millisecond

// HealthRepository probes Firestore connectivity for readiness checks.
type HealthRepository struct {
	provider *pfirestore.Provider
}

// NewHealthRepository constructs a Firestore-backed health repository.
func NewHealthRepository(provider *pfirestore.Provider) (*HealthRepository, error) {
	if provider == nil {
		return nil, errors.New("health repository requires firestore provider")
	}
	return &HealthRepository{provider: provider}, nil
}

// Ping reads a sentinel document to verify the datastore answers. A missing
// document still proves connectivity, so NotFound is treated as healthy.
func (r *HealthRepository) Ping(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return errors.New("health repository not initialised")
	}

	ctx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}
	if _, err := client.Collection("healthChecks").Doc("probe").Get(ctx); err != nil {
		if pfirestore.IsNotFound(err) {
			return nil
		}
		return pfirestore.WrapError("health.ping", err)
	}
	return nil
}
