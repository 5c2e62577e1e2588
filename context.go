package actionkit

import (
	"context"
)

// Context keys for actionkit values.
type contextKey string

const (
	contextKeyAuthority contextKey = "actionkit:authority"
	contextKeyRequestID contextKey = "actionkit:request_id"
	contextKeyChecker   contextKey = "actionkit:checker"
)

// WithAuthority adds the authority whose permissions are evaluated to the context.
func WithAuthority(ctx context.Context, authority Authority) context.Context {
	return context.WithValue(ctx, contextKeyAuthority, authority)
}

// GetAuthority retrieves the authority from context.
func GetAuthority(ctx context.Context) (Authority, bool) {
	if v := ctx.Value(contextKeyAuthority); v != nil {
		if a, ok := v.(Authority); ok && !a.IsZero() {
			return a, true
		}
	}
	return Authority{}, false
}

// MustGetAuthority retrieves the authority from context.
// Panics if not set.
func MustGetAuthority(ctx context.Context) Authority {
	a, ok := GetAuthority(ctx)
	if !ok {
		panic("actionkit: authority not in context")
	}
	return a
}

// WithRequestID adds a request ID to the context for log correlation.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, requestID)
}

// GetRequestID retrieves the request ID from context.
func GetRequestID(ctx context.Context) string {
	if v := ctx.Value(contextKeyRequestID); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// WithChecker adds a Checker to the context.
// This is set by middleware and can be retrieved in handlers.
func WithChecker(ctx context.Context, checker *Checker) context.Context {
	return context.WithValue(ctx, contextKeyChecker, checker)
}

// GetChecker retrieves the Checker from context.
// Returns nil if not set.
func GetChecker(ctx context.Context) *Checker {
	if v := ctx.Value(contextKeyChecker); v != nil {
		if c, ok := v.(*Checker); ok {
			return c
		}
	}
	return nil
}

// FromContext retrieves the Checker from context.
// Alias for GetChecker for convenience.
func FromContext(ctx context.Context) *Checker {
	return GetChecker(ctx)
}
