package auth

import "context"

// Identity is the authenticated caller attached to a request context.
type Identity struct {
	Principal   string
	Authorities []string
	RemoteAddr  string
	RequestID   string
	TokenID     string
}

type ctxKey string

const identityKey ctxKey = "payables.identity"

// WithIdentity stores the identity in ctx.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromCtx fetches the identity attached by the gate, if any.
func IdentityFromCtx(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok && id != nil
}
