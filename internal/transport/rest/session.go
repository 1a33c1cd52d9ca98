package rest

import (
	"log/slog"
	"net/http"

	"github.com/abgdnv/cartsync/internal/service"
	"github.com/abgdnv/cartsync/pkg/web"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// TokenStore holds the bearer token used towards the cart service.
type TokenStore interface {
	Set(token string)
	Clear()
}

// SessionDto carries a token issued by a fresh login.
type SessionDto struct {
	Token string `json:"token" validate:"required"`
}

// SessionHandler lets the UI hand over a renewed token after ErrSessionExpired, or log out.
type SessionHandler struct {
	tokens   TokenStore
	cart     service.CartService
	validate *validator.Validate
	logger   *slog.Logger
}

func NewSessionHandler(tokens TokenStore, cart service.CartService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		tokens:   tokens,
		cart:     cart,
		validate: validator.New(),
		logger:   logger.With("component", "rest-session"),
	}
}

func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Put("/api/v1/session", h.Renew)
	r.Delete("/api/v1/session", h.Logout)
}

// Renew replaces the session token.
func (h *SessionHandler) Renew(w http.ResponseWriter, r *http.Request) {
	var dto SessionDto
	if !web.DecodeValid(w, r, h.logger, h.validate, &dto) {
		return
	}
	h.tokens.Set(dto.Token)
	h.logger.InfoContext(r.Context(), "Session token renewed")
	w.WriteHeader(http.StatusNoContent)
}

// Logout ends the session: the local cart is dropped along with the token.
// Later calls to the cart service fail with a session error until Renew.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.tokens.Clear()
	h.cart.EndSession()
	h.logger.InfoContext(r.Context(), "Session ended, token and local cart cleared")
	w.WriteHeader(http.StatusNoContent)
}
