package optimization

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles HTTP requests for the optimization module.
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new optimization handler.
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("component", "optimizer_handler").Logger(),
	}
}

// RegisterRoutes registers the optimizer routes on the given router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/optimizer", func(r chi.Router) {
		r.Post("/frontier", h.HandleFrontier)
		r.Post("/allocation", h.HandleAllocation)
	})
}

// FrontierRequest is the payload for POST /api/optimizer/frontier.
type FrontierRequest struct {
	Assets []Asset `json:"assets"`
}

// AllocationRequest is the payload for POST /api/optimizer/allocation.
type AllocationRequest struct {
	Assets          []Asset `json:"assets"`
	TargetReturnPct float64 `json:"target_return_pct"`
	Amount          float64 `json:"amount"`
	UseFrontier     bool    `json:"use_frontier"`
}

// HandleFrontier handles POST /api/optimizer/frontier - computes the
// efficient frontier for the supplied assets.
func (h *Handler) HandleFrontier(w http.ResponseWriter, r *http.Request) {
	var req FrontierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	frontier, err := h.service.ComputeFrontier(req.Assets)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, frontier)
}

// HandleAllocation handles POST /api/optimizer/allocation - resolves a
// single allocation for a requested return and investment amount.
func (h *Handler) HandleAllocation(w http.ResponseWriter, r *http.Request) {
	var req AllocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	allocation, err := h.service.ResolveAllocation(req.Assets, req.TargetReturnPct, req.Amount, req.UseFrontier)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, allocation)
}

// writeServiceError maps engine errors to HTTP statuses: input problems are
// 400, an unresolvable allocation is 422, anything else is 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var validationErr *InputValidationError
	switch {
	case errors.As(err, &validationErr):
		h.writeError(w, http.StatusBadRequest, validationErr.Error())
	case errors.Is(err, ErrInsufficientData):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrUnresolvedAllocation):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.log.Error().Err(err).Msg("Optimization failed")
		h.writeError(w, http.StatusInternalServerError, "Optimization failed")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
