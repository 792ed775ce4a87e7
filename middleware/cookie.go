package middleware

import (
	"net/http"
	"time"

	"github.com/MrEthical07/tokenauth"
)

// SetRefreshCookie writes the refresh token as an HttpOnly cookie described
// by cfg. The cookie expires with the token.
func SetRefreshCookie(w http.ResponseWriter, cfg tokenauth.CookieConfig, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.Name,
		Value:    token,
		Path:     cfg.Path,
		Domain:   cfg.Domain,
		MaxAge:   int(ttl / time.Second),
		Secure:   cfg.Secure,
		HttpOnly: true,
		SameSite: cfg.SameSite,
	})
}

// ClearRefreshCookie expires the refresh cookie.
func ClearRefreshCookie(w http.ResponseWriter, cfg tokenauth.CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.Name,
		Value:    "",
		Path:     cfg.Path,
		Domain:   cfg.Domain,
		MaxAge:   -1,
		Secure:   cfg.Secure,
		HttpOnly: true,
		SameSite: cfg.SameSite,
	})
}

// RefreshTokenFromRequest returns the refresh token carried by the cookie, if any.
func RefreshTokenFromRequest(r *http.Request, cfg tokenauth.CookieConfig) (string, bool) {
	c, err := r.Cookie(cfg.Name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}
