package tokenauth

import "context"

type clientIPContextKey struct{}
type requestIdentityContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The Engine uses it
// for per-IP login throttling and audit events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithRequestIdentity attaches the authenticated identity to ctx. The gate
// calls it before running the wrapped operation.
func WithRequestIdentity(ctx context.Context, id RequestIdentity) context.Context {
	return context.WithValue(ctx, requestIdentityContextKey{}, id)
}

// RequestIdentityFromContext returns the identity attached by the gate.
func RequestIdentityFromContext(ctx context.Context) (RequestIdentity, bool) {
	if ctx == nil {
		return RequestIdentity{}, false
	}
	id, ok := ctx.Value(requestIdentityContextKey{}).(RequestIdentity)
	return id, ok
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}
