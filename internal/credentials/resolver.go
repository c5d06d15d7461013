package credentials

import (
	"context"
	"errors"
	"fmt"

	"github.com/mikey/email-housekeeper/internal/core"
	"go.uber.org/zap"
)

// ErrNotFound is returned by a Store when the owner has no credential for a service
var ErrNotFound = errors.New("credential not found")

// Store persists per-owner credentials
type Store interface {
	// GetCredential returns the owner's credential or ErrNotFound
	GetCredential(ctx context.Context, ownerID string, service string) (string, error)

	// SetCredential creates or replaces the owner's credential
	SetCredential(ctx context.Context, ownerID string, service string, secret string) error

	// DeleteCredential removes the owner's credential
	DeleteCredential(ctx context.Context, ownerID string, service string) error

	// ListCredentialServices returns the services the owner has credentials for
	ListCredentialServices(ctx context.Context, ownerID string) ([]string, error)
}

// Resolver picks the credential to use for an owner and service
type Resolver struct {
	store    Store
	defaults map[Service]string
	logger   *zap.Logger
}

// NewResolver creates a resolver with system-wide default credentials
func NewResolver(store Store, defaults map[Service]string, logger *zap.Logger) *Resolver {
	if defaults == nil {
		defaults = map[Service]string{}
	}
	return &Resolver{
		store:    store,
		defaults: defaults,
		logger:   logger,
	}
}

// Resolve returns the owner's own credential first, then the system default
// when the service allows it. core.ErrCredentialMissing is returned otherwise.
func (r *Resolver) Resolve(ctx context.Context, ownerID string, service Service) (string, error) {
	if r.store != nil {
		secret, err := r.store.GetCredential(ctx, ownerID, service.String())
		switch {
		case err == nil && secret != "":
			return secret, nil
		case err != nil && !errors.Is(err, ErrNotFound):
			return "", fmt.Errorf("failed to load %s credential: %w", service, err)
		}
	}

	if service.RequiresUserCredential() {
		return "", fmt.Errorf("%w: %s requires a user-supplied credential", core.ErrCredentialMissing, service)
	}

	if secret := r.defaults[service]; secret != "" {
		r.logger.Debug("Using system default credential",
			zap.String("owner_id", ownerID),
			zap.String("service", service.String()))
		return secret, nil
	}

	return "", fmt.Errorf("%w: %s", core.ErrCredentialMissing, service)
}

// Store returns the underlying credential store
func (r *Resolver) Store() Store {
	return r.store
}
