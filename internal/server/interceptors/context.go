package interceptors

import (
	"context"

	identitydomain "vehicle-marketplace/backend/internal/identity/domain"
)

type contextKey struct{ name string }

var callerKey = contextKey{"caller"}

// WithCaller returns a context carrying the verified caller identity.
func WithCaller(ctx context.Context, caller identitydomain.CallerIdentity) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// CallerFromContext returns the caller set by AuthUnary and true, or a zero identity and false.
func CallerFromContext(ctx context.Context) (identitydomain.CallerIdentity, bool) {
	c, ok := ctx.Value(callerKey).(identitydomain.CallerIdentity)
	if !ok || !c.Valid() {
		return identitydomain.CallerIdentity{}, false
	}
	return c, true
}

// GetUserID returns the caller's user id and true if set; otherwise "", false.
func GetUserID(ctx context.Context) (string, bool) {
	c, ok := CallerFromContext(ctx)
	return c.UserID, ok
}

// GetSessionID returns the caller's session id and true if set; otherwise "", false.
func GetSessionID(ctx context.Context) (string, bool) {
	c, ok := CallerFromContext(ctx)
	return c.SessionID, ok
}
