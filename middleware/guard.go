package middleware

import (
	"net/http"

	"github.com/MrEthical07/tokenauth"
)

// Guard returns middleware that admits a request only when its Authorization
// header carries a valid bearer access token under routeMode. Rejected
// requests get 401 and never reach next. Admitted requests carry the
// [tokenauth.RequestIdentity] in their context.
func Guard(engine *tokenauth.Engine, routeMode tokenauth.RouteMode) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx, err := engine.Admit(r.Context(), r.Header.Get("Authorization"), routeMode)
			if err != nil {
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireStrict overrides the route to [tokenauth.ModeStrict].
func RequireStrict(engine *tokenauth.Engine) func(http.Handler) http.Handler {
	return Guard(engine, tokenauth.ModeStrict)
}

// RequireStateless overrides the route to [tokenauth.ModeStateless], skipping
// the identity store entirely.
func RequireStateless(engine *tokenauth.Engine) func(http.Handler) http.Handler {
	return Guard(engine, tokenauth.ModeStateless)
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}
