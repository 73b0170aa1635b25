package payments

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-retail/meridian/internal/platform/httpx"
)

// Handler wires HTTP endpoints for balance payments.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the payments handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers payment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/balance-payments", h.handleRecord)
	r.Get("/balance-payments", h.handleList)
}

type paymentRequest struct {
	PartyID int64     `json:"party_id" validate:"required"`
	Amount  float64   `json:"amount" validate:"required,gt=0"`
	Method  string    `json:"method"`
	Note    string    `json:"note"`
	PaidOn  time.Time `json:"paid_on"`
	ActorID int64     `json:"actor_id"`
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	p, err := h.service.RecordPayment(r.Context(), Input{
		PartyID: req.PartyID,
		Amount:  req.Amount,
		Method:  req.Method,
		Note:    req.Note,
		PaidOn:  req.PaidOn,
		ActorID: req.ActorID,
	})
	if err != nil {
		h.respondError(w, "record payment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	partyID, _ := strconv.ParseInt(q.Get("party_id"), 10, 64)
	limit, _ := strconv.Atoi(q.Get("limit"))
	payments, err := h.service.ListPayments(r.Context(), partyID, limit)
	if err != nil {
		h.respondError(w, "list payments", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": payments})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
