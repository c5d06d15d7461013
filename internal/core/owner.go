package core

import "context"

type ownerKey struct{}

// WithOwner attaches the owner being processed to ctx so that adapters can
// pick owner specific credentials
func WithOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerKey{}, ownerID)
}

// OwnerFromContext returns the owner attached with WithOwner
func OwnerFromContext(ctx context.Context) (string, bool) {
	ownerID, ok := ctx.Value(ownerKey{}).(string)
	return ownerID, ok && ownerID != ""
}
