package party

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-retail/meridian/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the party directory.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the party handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers party routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/parties", h.handleList)
	r.Post("/parties", h.handleCreate)
	r.Get("/parties/{id}", h.handleGet)
	r.Put("/parties/{id}", h.handleUpdate)
	r.Get("/parties/{id}/movements", h.handleMovements)
}

type partyRequest struct {
	Kind           string  `json:"kind" validate:"required,oneof=CUSTOMER SUPPLIER"`
	Code           string  `json:"code" validate:"required"`
	Name           string  `json:"name" validate:"required"`
	Phone          string  `json:"phone"`
	OpeningBalance float64 `json:"opening_balance"`
}

type partyResponse struct {
	Party
	Outstanding float64 `json:"outstanding"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req partyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	p, err := h.service.CreateParty(r.Context(), Input{
		Kind:           Kind(req.Kind),
		Code:           req.Code,
		Name:           req.Name,
		Phone:          req.Phone,
		OpeningBalance: req.OpeningBalance,
	})
	if err != nil {
		h.respondError(w, "create party", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, partyResponse{Party: p, Outstanding: OutstandingBalance(p)})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var req partyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	p, err := h.service.UpdateParty(r.Context(), id, Input{
		Kind:           Kind(req.Kind),
		Code:           req.Code,
		Name:           req.Name,
		Phone:          req.Phone,
		OpeningBalance: req.OpeningBalance,
	})
	if err != nil {
		h.respondError(w, "update party", err)
		return
	}
	httpx.JSON(w, http.StatusOK, partyResponse{Party: p, Outstanding: OutstandingBalance(p)})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	p, err := h.service.GetParty(r.Context(), id)
	if err != nil {
		h.respondError(w, "get party", err)
		return
	}
	httpx.JSON(w, http.StatusOK, partyResponse{Party: p, Outstanding: OutstandingBalance(p)})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	parties, total, err := h.service.ListParties(r.Context(), ListFilter{
		Kind:   Kind(q.Get("kind")),
		Search: q.Get("search"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.respondError(w, "list parties", err)
		return
	}
	items := make([]partyResponse, 0, len(parties))
	for _, p := range parties {
		items = append(items, partyResponse{Party: p, Outstanding: OutstandingBalance(p)})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "total": total})
}

func (h *Handler) handleMovements(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	movements, err := h.service.GetMovements(r.Context(), id, limit)
	if err != nil {
		h.respondError(w, "party movements", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"party_id": id, "movements": movements})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicateCode):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
