package httpapi

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/MrEthical07/tokenauth"
	"github.com/MrEthical07/tokenauth/middleware"
)

// Options configures NewRouter.
type Options struct {
	// Metrics is mounted at GET /metrics when non-nil.
	Metrics http.Handler
	// RequestTimeout bounds each request. Zero disables the timeout.
	RequestTimeout time.Duration
	// TrustProxy takes the client address from True-Client-IP, X-Real-IP or
	// X-Forwarded-For. Enable it only behind a proxy that overwrites them;
	// otherwise clients choose their own login throttle bucket.
	TrustProxy bool
}

// NewRouter returns the HTTP surface for engine.
func NewRouter(engine *tokenauth.Engine, logger *zap.Logger, opts Options) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{engine: engine, logger: logger.Named("httpapi")}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	if opts.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(requestLogger(h.logger))
	r.Use(chimw.Recoverer)
	r.Use(clientIP)
	if opts.RequestTimeout > 0 {
		r.Use(chimw.Timeout(opts.RequestTimeout))
	}

	r.Get("/healthz", h.Healthz)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/refresh_token", h.RefreshToken)
	r.Get("/me", h.Me)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Guard(engine, tokenauth.ModeInherit))
		r.Post("/revoke", h.Revoke)
		r.Get("/bye", h.Bye)
	})

	return r
}

// clientIP copies the remote address into the request context for login
// throttling. With TrustProxy, RealIP has already rewritten it from proxy headers.
func clientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		next.ServeHTTP(w, r.WithContext(tokenauth.WithClientIP(r.Context(), ip)))
	})
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", chimw.GetReqID(r.Context())),
			)
		})
	}
}
