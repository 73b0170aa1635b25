package ledger

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-retail/meridian/internal/party"
	"github.com/meridian-retail/meridian/internal/platform/httpx"
	"github.com/meridian-retail/meridian/internal/shared"
)

// Handler wires HTTP endpoints for the four transaction types.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the ledger handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers transaction routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/sales", func(r chi.Router) {
		r.Get("/", h.list(TxTypeSale))
		r.Post("/", h.create(h.service.CreateSale))
		r.Get("/{id}", h.get(TxTypeSale))
		r.Put("/{id}", h.update(h.service.UpdateSale))
		r.Delete("/{id}", h.remove(h.service.DeleteSale))
		r.Post("/{id}/status", h.handleSaleStatus)
	})
	r.Route("/purchases", func(r chi.Router) {
		r.Get("/", h.list(TxTypePurchase))
		r.Post("/", h.create(h.service.CreatePurchase))
		r.Get("/{id}", h.get(TxTypePurchase))
		r.Put("/{id}", h.update(h.service.UpdatePurchase))
		r.Delete("/{id}", h.remove(h.service.DeletePurchase))
		r.Post("/{id}/status", h.handlePurchaseStatus)
	})
	r.Route("/sales-returns", func(r chi.Router) {
		r.Get("/", h.list(TxTypeSalesReturn))
		r.Post("/", h.create(h.service.CreateSalesReturn))
		r.Get("/{id}", h.get(TxTypeSalesReturn))
		r.Put("/{id}", h.update(h.service.UpdateSalesReturn))
		r.Delete("/{id}", h.remove(h.service.DeleteSalesReturn))
	})
	r.Route("/purchase-returns", func(r chi.Router) {
		r.Get("/", h.list(TxTypePurchaseReturn))
		r.Post("/", h.create(h.service.CreatePurchaseReturn))
		r.Get("/{id}", h.get(TxTypePurchaseReturn))
		r.Put("/{id}", h.update(h.service.UpdatePurchaseReturn))
		r.Delete("/{id}", h.remove(h.service.DeletePurchaseReturn))
	})
}

type itemRequest struct {
	ProductID       int64   `json:"product_id" validate:"required"`
	Quantity        int64   `json:"quantity" validate:"required,gt=0"`
	UnitPrice       float64 `json:"unit_price" validate:"gte=0"`
	DiscountPercent float64 `json:"discount_percent" validate:"gte=0,lte=100"`
	TaxPercent      float64 `json:"tax_percent" validate:"gte=0,lte=100"`
}

type paymentRequest struct {
	Amount  float64    `json:"amount" validate:"gte=0"`
	PaidOn  time.Time  `json:"paid_on"`
	Method  string     `json:"method"`
	Note    string     `json:"note"`
	DueDate *time.Time `json:"due_date"`
}

type createRequest struct {
	Code     string           `json:"code"`
	PartyID  int64            `json:"party_id" validate:"required"`
	BranchID int64            `json:"branch_id"`
	Status   string           `json:"status"`
	Note     string           `json:"note"`
	Items    []itemRequest    `json:"items" validate:"required,min=1,dive"`
	Payments []paymentRequest `json:"payments" validate:"dive"`
	ActorID  int64            `json:"actor_id"`
}

type updateRequest struct {
	Status   string           `json:"status"`
	Note     string           `json:"note"`
	Items    []itemRequest    `json:"items" validate:"required,min=1,dive"`
	Payments []paymentRequest `json:"payments" validate:"dive"`
	ActorID  int64            `json:"actor_id"`
}

type statusRequest struct {
	Status  string `json:"status" validate:"required"`
	ActorID int64  `json:"actor_id"`
}

func (h *Handler) create(fn func(ctx context.Context, input CreateInput) (Transaction, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
			return
		}
		if err := h.validate.Struct(req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		tx, err := fn(r.Context(), CreateInput{
			Code:     req.Code,
			PartyID:  req.PartyID,
			BranchID: req.BranchID,
			Status:   req.Status,
			Note:     req.Note,
			Items:    toItemInputs(req.Items),
			Payments: toPaymentInputs(req.Payments),
			ActorID:  req.ActorID,
		})
		if err != nil {
			h.respondError(w, "create transaction", err)
			return
		}
		httpx.JSON(w, http.StatusCreated, tx)
	}
}

func (h *Handler) update(fn func(ctx context.Context, id int64, input UpdateInput) (Transaction, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
			return
		}
		var req updateRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
			return
		}
		if err := h.validate.Struct(req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		tx, err := fn(r.Context(), id, UpdateInput{
			Status:   req.Status,
			Note:     req.Note,
			Items:    toItemInputs(req.Items),
			Payments: toPaymentInputs(req.Payments),
			ActorID:  req.ActorID,
		})
		if err != nil {
			h.respondError(w, "update transaction", err)
			return
		}
		httpx.JSON(w, http.StatusOK, tx)
	}
}

func (h *Handler) remove(fn func(ctx context.Context, id, actorID int64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
			return
		}
		actorID, _ := strconv.ParseInt(r.URL.Query().Get("actor_id"), 10, 64)
		if err := fn(r.Context(), id, actorID); err != nil {
			h.respondError(w, "delete transaction", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) get(txType TxType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
			return
		}
		tx, err := h.service.Get(r.Context(), txType, id)
		if err != nil {
			h.respondError(w, "get transaction", err)
			return
		}
		httpx.JSON(w, http.StatusOK, tx)
	}
}

func (h *Handler) list(txType TxType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		offset, _ := strconv.Atoi(q.Get("offset"))
		partyID, _ := strconv.ParseInt(q.Get("party_id"), 10, 64)
		branchID, _ := strconv.ParseInt(q.Get("branch_id"), 10, 64)
		txs, total, err := h.service.List(r.Context(), ListFilter{
			Type:     txType,
			PartyID:  partyID,
			BranchID: branchID,
			Status:   q.Get("status"),
			Limit:    limit,
			Offset:   offset,
		})
		if err != nil {
			h.respondError(w, "list transactions", err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"items": txs, "total": total})
	}
}

func (h *Handler) handleSaleStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	tx, err := h.service.ChangeSaleStatus(r.Context(), id, SaleStatus(req.Status), req.ActorID)
	if err != nil {
		h.respondError(w, "sale status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, tx)
}

func (h *Handler) handlePurchaseStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	tx, err := h.service.ChangePurchaseStatus(r.Context(), id, PurchaseStatus(req.Status), req.ActorID)
	if err != nil {
		h.respondError(w, "purchase status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, tx)
}

func toItemInputs(reqs []itemRequest) []LineItemInput {
	items := make([]LineItemInput, 0, len(reqs))
	for _, it := range reqs {
		items = append(items, LineItemInput{
			ProductID:       it.ProductID,
			Quantity:        it.Quantity,
			UnitPrice:       it.UnitPrice,
			DiscountPercent: it.DiscountPercent,
			TaxPercent:      it.TaxPercent,
		})
	}
	return items
}

func toPaymentInputs(reqs []paymentRequest) []PaymentInput {
	payments := make([]PaymentInput, 0, len(reqs))
	for _, p := range reqs {
		payments = append(payments, PaymentInput{
			Amount:  p.Amount,
			PaidOn:  p.PaidOn,
			Method:  p.Method,
			Note:    p.Note,
			DueDate: p.DueDate,
		})
	}
	return payments
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation), errors.Is(err, ErrPartyKind), errors.Is(err, ErrProductMissing), errors.Is(err, party.ErrNotFound):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrInvalidTransition):
		httpx.Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
	case errors.Is(err, ErrInsufficientStock):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
