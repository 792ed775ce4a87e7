package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/MrEthical07/tokenauth"
	"github.com/MrEthical07/tokenauth/middleware"
)

const maxBodyBytes = 1 << 16

// Handler serves the auth endpoints for one Engine.
type Handler struct {
	engine *tokenauth.Engine
	logger *zap.Logger
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string                    `json:"accessToken"`
	User        *tokenauth.PublicIdentity `json:"user"`
}

type refreshResponse struct {
	OK          bool   `json:"ok"`
	AccessToken string `json:"accessToken"`
}

type registerResponse struct {
	OK     bool                      `json:"ok"`
	User   *tokenauth.PublicIdentity `json:"user,omitempty"`
	Error  string                    `json:"error,omitempty"`
	Fields []string                  `json:"fields,omitempty"`
}

type revokeResponse struct {
	Revoked           bool   `json:"revoked"`
	RevocationCounter uint64 `json:"revocationCounter"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Register handles POST /register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req tokenauth.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, registerResponse{Error: "malformed request body"})
		return
	}

	res := h.engine.Register(r.Context(), req)
	switch res.Outcome {
	case tokenauth.RegisterCreated:
		writeJSON(w, http.StatusCreated, registerResponse{OK: true, User: res.Identity})
	case tokenauth.RegisterDuplicate:
		writeJSON(w, http.StatusConflict, registerResponse{Error: res.Err().Error()})
	case tokenauth.RegisterInvalid:
		writeJSON(w, http.StatusBadRequest, registerResponse{Error: res.Err().Error(), Fields: res.Fields})
	default:
		writeJSON(w, http.StatusInternalServerError, registerResponse{Error: res.Err().Error()})
	}
}

// Login handles POST /login. The refresh token travels only in the cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	res := h.engine.Login(r.Context(), req.Email, req.Password)
	switch res.Outcome {
	case tokenauth.LoginSucceeded:
		cfg := h.engine.Config()
		middleware.SetRefreshCookie(w, cfg.Cookie, res.RefreshToken, cfg.JWT.RefreshTTL)
		writeJSON(w, http.StatusOK, loginResponse{AccessToken: res.AccessToken, User: res.Identity})
	case tokenauth.LoginRateLimited:
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: res.Err().Error()})
	case tokenauth.LoginUnavailable:
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "service unavailable"})
	default:
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: res.Err().Error()})
	}
}

// RefreshToken handles POST /refresh_token: it reads the refresh cookie,
// rotates it and returns a new access token.
func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	cfg := h.engine.Config()
	token, ok := middleware.RefreshTokenFromRequest(r, cfg.Cookie)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, refreshResponse{})
		return
	}

	pair, err := h.engine.Refresh(r.Context(), token)
	if err != nil {
		middleware.ClearRefreshCookie(w, cfg.Cookie)
		writeJSON(w, http.StatusUnauthorized, refreshResponse{})
		return
	}

	middleware.SetRefreshCookie(w, cfg.Cookie, pair.RefreshToken, cfg.JWT.RefreshTTL)
	writeJSON(w, http.StatusOK, refreshResponse{OK: true, AccessToken: pair.AccessToken})
}

// Revoke handles POST /revoke. It invalidates every outstanding token of the
// authenticated caller, including the one used for this request.
func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	id, ok := tokenauth.RequestIdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: tokenauth.ErrUnauthenticated.Error()})
		return
	}

	counter, err := h.engine.Revoke(r.Context(), id.SubjectID)
	switch {
	case err == nil:
		middleware.ClearRefreshCookie(w, h.engine.Config().Cookie)
		writeJSON(w, http.StatusOK, revokeResponse{Revoked: true, RevocationCounter: counter})
	case errors.Is(err, tokenauth.ErrRevocationTargetNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	default:
		h.logger.Error("revoke failed", zap.String("subject_id", id.SubjectID), zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "service unavailable"})
	}
}

// Me handles GET /me. Any failure yields a null body rather than an error.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.CurrentIdentity(r.Context(), r.Header.Get("Authorization")))
}

// Bye handles GET /bye behind the gate.
func (h *Handler) Bye(w http.ResponseWriter, r *http.Request) {
	id, _ := tokenauth.RequestIdentityFromContext(r.Context())
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "your user id is: "+id.SubjectID)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
