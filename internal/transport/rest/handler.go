// Package rest provides the HTTP event API the UI uses to drive the cart.
package rest

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/abgdnv/cartsync/internal/domain"
	carterrors "github.com/abgdnv/cartsync/internal/errors"
	"github.com/abgdnv/cartsync/internal/service"
	"github.com/abgdnv/cartsync/pkg/web"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

// QuantityDto is the body of a quantity change. A value below one asks for removal.
type QuantityDto struct {
	Quantity *int `json:"quantity" validate:"required"`
}

// MutationResponse is returned for every mutation that produced an answer from the coordinator.
// Dropped is true when the change was ignored because another one for the same line was in flight.
type MutationResponse struct {
	Cart    domain.Cart `json:"cart"`
	Dropped bool        `json:"dropped,omitempty"`
}

type Handler struct {
	service  service.CartService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler creates a new Handler backed by the given cart service.
func NewHandler(service service.CartService, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(),

		logger: logger.With("component", "rest"),
	}
}

// RegisterRoutes registers the HTTP routes of the cart event API.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Get("/", h.GetCart)
		r.Delete("/", h.EndSession)
		r.Post("/load", h.LoadCart)

		r.Route("/items/{id}", func(r chi.Router) {
			r.Put("/", h.UpdateQuantity)
			r.Delete("/", h.RemoveItem)
			r.Post("/increment", h.Increment)
			r.Post("/decrement", h.Decrement)
		})
	})
	r.Get("/healthz", h.HealthCheck)
}

// GetCart returns the current snapshot.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	web.RespondJSON(w, mLogger, http.StatusOK, h.service.Snapshot())
}

// LoadCart replaces the local cart with the cart service's copy.
func (h *Handler) LoadCart(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	mLogger.DebugContext(r.Context(), "Received request to load cart")
	if err := h.service.LoadCart(r.Context()); err != nil {
		mLogger.ErrorContext(r.Context(), "Error loading cart", "error", err)
		web.RespondJSON(w, mLogger, http.StatusBadGateway, errorBody(carterrors.KindTransport, carterrors.GenericFailureMessage))
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, h.service.Snapshot())
}

// UpdateQuantity sets the quantity of a line. A quantity below one is a removal and needs the
// X-Confirm-Removal header.
func (h *Handler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseCartID(w, r, mLogger)
	if !ok {
		return
	}
	var dto QuantityDto
	if !web.DecodeValid(w, r, mLogger, h.validate, &dto) {
		return
	}

	ctx := r.Context()
	if web.RemovalConfirmed(r) {
		ctx = service.WithRemovalConfirmed(ctx)
	}
	mLogger.DebugContext(ctx, "Received request to update quantity", "ID", id, "quantity", *dto.Quantity)
	h.respondMutation(w, r, mLogger, id, h.service.UpdateQuantity(ctx, id, *dto.Quantity))
}

// Increment adds one to the quantity of a line.
func (h *Handler) Increment(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseCartID(w, r, mLogger)
	if !ok {
		return
	}
	h.respondMutation(w, r, mLogger, id, h.service.Increment(r.Context(), id))
}

// Decrement subtracts one from the quantity of a line. Reaching zero needs the X-Confirm-Removal header.
func (h *Handler) Decrement(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseCartID(w, r, mLogger)
	if !ok {
		return
	}
	ctx := r.Context()
	if web.RemovalConfirmed(r) {
		ctx = service.WithRemovalConfirmed(ctx)
	}
	h.respondMutation(w, r, mLogger, id, h.service.Decrement(ctx, id))
}

// RemoveItem deletes a line. The DELETE request itself is the user's confirmation.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseCartID(w, r, mLogger)
	if !ok {
		return
	}
	mLogger.DebugContext(r.Context(), "Received request to remove item", "ID", id)
	h.respondMutation(w, r, mLogger, id, h.service.RemoveItem(service.WithRemovalConfirmed(r.Context()), id))
}

// EndSession drops the local cart.
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	h.service.EndSession()
	mLogger.InfoContext(r.Context(), "Session ended")
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck is a simple health check endpoint.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// respondMutation maps the result of a cart mutation to an HTTP response.
func (h *Handler) respondMutation(w http.ResponseWriter, r *http.Request, mLogger *slog.Logger, id string, err error) {
	ctx := r.Context()
	kind := carterrors.Kind(err)
	switch kind {
	case carterrors.KindNone:
		web.RespondJSON(w, mLogger, http.StatusOK, MutationResponse{Cart: h.service.Snapshot()})
	case carterrors.KindConcurrency:
		mLogger.DebugContext(ctx, "Change dropped, another one is in flight", "ID", id)
		web.RespondJSON(w, mLogger, http.StatusAccepted, MutationResponse{Cart: h.service.Snapshot(), Dropped: true})
	case carterrors.KindValidation:
		mLogger.WarnContext(ctx, "Quantity rejected", "ID", id, "error", err)
		web.RespondJSON(w, mLogger, http.StatusUnprocessableEntity, errorBody(kind, "Requested quantity exceeds available stock"))
	case carterrors.KindNotFound:
		mLogger.WarnContext(ctx, "Cart item not found", "ID", id)
		web.RespondJSON(w, mLogger, http.StatusNotFound, errorBody(kind, fmt.Sprintf("Cart item with ID %s not found", id)))
	case carterrors.KindDeclined:
		web.RespondJSON(w, mLogger, http.StatusConflict, errorBody(kind, fmt.Sprintf("Removal of cart item %s was not confirmed", id)))
	case carterrors.KindBusinessRejection:
		mLogger.WarnContext(ctx, "Cart service rejected the change", "ID", id, "error", err)
		web.RespondJSON(w, mLogger, http.StatusConflict, errorBody(kind, carterrors.UserMessage(err)))
	case carterrors.KindTransport:
		mLogger.ErrorContext(ctx, "Cart service unavailable", "ID", id, "error", err)
		web.RespondJSON(w, mLogger, http.StatusBadGateway, errorBody(kind, carterrors.GenericFailureMessage))
	default:
		mLogger.ErrorContext(ctx, "Error applying cart change", "ID", id, "error", err)
		web.RespondJSON(w, mLogger, http.StatusInternalServerError, errorBody(kind, fmt.Sprintf("Failed to update cart item with ID %s", id)))
	}
}

func errorBody(kind carterrors.ErrorKind, message string) map[string]string {
	return map[string]string{"error": message, "kind": kind.String()}
}

// loggerWithReqID creates a logger with the request ID from the context.
func (h *Handler) loggerWithReqID(r *http.Request) *slog.Logger {
	reqID := middleware.GetReqID(r.Context())
	return h.logger.With("request_id", reqID)
}
