package tokenauth

import "context"

// Guard runs op only when authorization carries a valid bearer access token.
//
// On success op is called exactly once with a context holding the
// [RequestIdentity]. On any failure op is not called and Guard returns
// ErrUnauthenticated. The engine's configured ValidationMode applies.
func (e *Engine) Guard(ctx context.Context, authorization string, op func(context.Context) error) error {
	return e.GuardWithMode(ctx, authorization, ModeInherit, op)
}

// GuardWithMode is Guard with a per-route validation mode.
func (e *Engine) GuardWithMode(ctx context.Context, authorization string, mode RouteMode, op func(context.Context) error) error {
	ctx, err := e.Admit(ctx, authorization, mode)
	if err != nil {
		return err
	}
	return op(ctx)
}

// GuardFunc wraps an operation returning a value so that it runs only for
// authenticated callers.
func GuardFunc[T any](e *Engine, mode RouteMode, op func(context.Context) (T, error)) func(context.Context, string) (T, error) {
	return func(ctx context.Context, authorization string) (T, error) {
		ctx, err := e.Admit(ctx, authorization, mode)
		if err != nil {
			var zero T
			return zero, err
		}
		return op(ctx)
	}
}

// Admit is the gate step shared by Guard, GuardFunc and the HTTP middleware.
// It returns ctx carrying the [RequestIdentity] when authorization holds a
// valid bearer access token under mode. Every rejection is recorded as a gate
// rejection and returned as ErrUnauthenticated. Mode resolution errors
// (ErrInvalidRouteMode, or ErrEngineNotReady on a nil Engine) are returned
// as-is and record nothing.
func (e *Engine) Admit(ctx context.Context, authorization string, mode RouteMode) (context.Context, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	resolved, err := e.resolveMode(mode)
	if err != nil {
		return nil, err
	}
	token, ok := BearerToken(authorization)
	if !ok {
		e.gateRejected(ctx, "", ErrUnauthenticated)
		return nil, ErrUnauthenticated
	}
	id, _, err := e.authorize(ctx, token, resolved)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	return WithRequestIdentity(ctx, id), nil
}
