package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"storefront-offers/internal/catalog"
	"storefront-offers/internal/database"
	"storefront-offers/internal/middleware"
	"storefront-offers/internal/models"
	"storefront-offers/internal/selector"
	"storefront-offers/internal/service"
	"storefront-offers/internal/validation"
)

// Handler provides HTTP handlers for the API.
type Handler struct {
	service     *service.Service
	maxBodySize int64
	logger      zerolog.Logger
}

// NewHandlerOptions holds options for creating a handler.
type NewHandlerOptions struct {
	MaxBodySize int64
	Logger      zerolog.Logger
}

// DefaultHandlerOptions returns default handler options.
func DefaultHandlerOptions() NewHandlerOptions {
	return NewHandlerOptions{
		MaxBodySize: 1 << 20,
		Logger:      zerolog.Nop(),
	}
}

// NewHandler creates a new handler instance.
func NewHandler(svc *service.Service) *Handler {
	return NewHandlerWithOptions(svc, DefaultHandlerOptions())
}

// NewHandlerWithOptions creates a new handler instance with custom options.
func NewHandlerWithOptions(svc *service.Service, opts NewHandlerOptions) *Handler {
	return &Handler{
		service:     svc,
		maxBodySize: opts.MaxBodySize,
		logger:      opts.Logger,
	}
}

// Routes mounts every endpoint on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.Health)

	r.Route("/offers", func(r chi.Router) {
		r.Get("/catalog", h.GetCatalog)
		r.Post("/draw", h.DrawOffer)
		r.Post("/special/{offer_id}", h.TriggerSpecial)
		r.Get("/active", h.GetActiveOffer)
		r.Delete("/active", h.ClearActiveOffer)
	})

	r.Post("/cart/price", h.PriceCart)
	r.Get("/shipping/quote", h.GetShippingQuote)
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// GetCatalog handles GET /offers/catalog. Without ?first_time the table is
// the one the requesting profile would draw from.
func (h *Handler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	var firstTime bool
	if raw := r.URL.Query().Get("first_time"); raw != "" {
		v, err := strconv.ParseBool(validation.SanitizeString(raw))
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid 'first_time' parameter, must be a boolean")
			return
		}
		firstTime = v
	} else {
		firstTime = h.service.FirstTime(r.Context(), middleware.ProfileFromContext(r.Context()))
	}

	h.respondJSON(w, http.StatusOK, h.service.Catalog(firstTime))
}

// DrawOffer handles POST /offers/draw
func (h *Handler) DrawOffer(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.DrawOffer(r.Context(), middleware.ProfileFromContext(r.Context()))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// TriggerSpecial handles POST /offers/special/{offer_id}
func (h *Handler) TriggerSpecial(w http.ResponseWriter, r *http.Request) {
	offerID := validation.SanitizeString(chi.URLParam(r, "offer_id"))
	if offerID == "" {
		h.respondError(w, http.StatusBadRequest, "offer_id is required")
		return
	}

	resp, err := h.service.TriggerSpecial(r.Context(), middleware.ProfileFromContext(r.Context()), offerID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// GetActiveOffer handles GET /offers/active
func (h *Handler) GetActiveOffer(w http.ResponseWriter, r *http.Request) {
	offer, err := h.service.ActiveOffer(r.Context(), middleware.ProfileFromContext(r.Context()))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if offer == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.respondJSON(w, http.StatusOK, offer)
}

// ClearActiveOffer handles DELETE /offers/active
func (h *Handler) ClearActiveOffer(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearOffer(r.Context(), middleware.ProfileFromContext(r.Context())); err != nil {
		h.respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// PriceCart handles POST /cart/price
func (h *Handler) PriceCart(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req models.PriceCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err == io.EOF {
			h.respondError(w, http.StatusBadRequest, "request body is required")
			return
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		return
	}

	for i := range req.Lines {
		req.Lines[i].Key = validation.SanitizeString(req.Lines[i].Key)
	}

	breakdown, err := h.service.PriceCart(r.Context(), middleware.ProfileFromContext(r.Context()), req)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, breakdown)
}

// GetShippingQuote handles GET /shipping/quote?pincode=&weight_grams=
func (h *Handler) GetShippingQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	weight := 0
	if raw := q.Get("weight_grams"); raw != "" {
		v, err := strconv.Atoi(validation.SanitizeString(raw))
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid 'weight_grams' parameter, must be an integer")
			return
		}
		weight = v
	}

	resp, err := h.service.Quote(r.Context(), q.Get("pincode"), weight)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// respondServiceError maps service errors onto status codes. Unexpected
// errors are logged and hidden from the client.
func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	var verr *validation.ValidationError
	switch {
	case errors.As(err, &verr),
		errors.Is(err, service.ErrProfileRequired):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, catalog.ErrOfferNotFound),
		errors.Is(err, selector.ErrNotSpecial),
		errors.Is(err, database.ErrProductNotFound):
		h.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrFeatureDisabled):
		h.respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		h.respondError(w, http.StatusServiceUnavailable, "shipping quotes are temporarily unavailable")
	default:
		h.logger.Error().Err(err).Msg("request failed")
		h.respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// respondJSON sends a JSON response with the given status code.
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response with the given status code and message.
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, models.ErrorResponse{Error: message})
}
