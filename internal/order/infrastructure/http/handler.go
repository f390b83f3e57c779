package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/msashop/order-service/internal/order/application"
	"github.com/msashop/order-service/internal/order/domain"
	"github.com/msashop/order-service/pkg/auth"
	"github.com/msashop/order-service/pkg/idempotency"
)

// Handler is the HTTP entry point of the order service. Callers arrive either
// through the gateway, which resolves identity into an X-User-Id header, or
// directly with a bearer token. Either way the saga below only ever sees a
// resolved buyer id.
type Handler struct {
	log     *slog.Logger
	service *application.Service
	tokens  *auth.TokenParser
	idem    *idempotency.Store
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service, tokens *auth.TokenParser, idem *idempotency.Store) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tokens:  tokens,
		idem:    idem,
		tracer:  otel.Tracer("order-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/orders", h.createOrder)
	r.Get("/orders/me", h.listMyOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Patch("/orders/{id}/cancel", h.cancelOrder)
	return r
}

type createOrderRequest struct {
	ProductID     int64  `json:"productId"`
	Quantity      int    `json:"quantity"`
	PaymentMethod string `json:"paymentMethod"`
}

type orderResponse struct {
	ID          string             `json:"id"`
	BuyerID     int64              `json:"buyerId"`
	ProductID   int64              `json:"productId"`
	Quantity    int                `json:"quantity"`
	TotalAmount int64              `json:"totalAmount"`
	Status      domain.OrderStatus `json:"status"`
	CreatedAt   time.Time          `json:"createdAt"`
}

func toResponse(o domain.Order) orderResponse {
	return orderResponse{
		ID:          o.ID,
		BuyerID:     o.BuyerID,
		ProductID:   o.ProductID,
		Quantity:    o.Quantity,
		TotalAmount: o.TotalAmount,
		Status:      o.Status,
		CreatedAt:   o.CreatedAt,
	}
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateOrder")
	defer span.End()

	buyerID, err := h.resolveBuyer(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "BAD_REQUEST", Message: "invalid body"})
		return
	}

	if key := r.Header.Get("Idempotency-Key"); h.idem != nil && key != "" {
		seen, err := h.idem.Seen(ctx, h.idem.Key(buyerID, key))
		if err != nil {
			// dedup store down: let the request through rather than refuse it
			h.log.Warn("idempotency check failed", "err", err)
		} else if seen {
			writeJSON(w, http.StatusConflict, errorBody{Error: "CONFLICT", Message: "duplicate request"})
			return
		}
	}

	order, err := h.service.CreateOrder(ctx, buyerID, req.ProductID, req.Quantity, req.PaymentMethod)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResponse(order))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetOrder")
	defer span.End()

	order, err := h.service.GetOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(order))
}

func (h *Handler) listMyOrders(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListMyOrders")
	defer span.End()

	buyerID, err := h.resolveBuyer(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	orders, err := h.service.ListOrders(ctx, buyerID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toResponse(o))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CancelOrder")
	defer span.End()

	buyerID, err := h.resolveBuyer(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	order, err := h.service.CancelOrder(ctx, chi.URLParam(r, "id"), buyerID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(order))
}

// resolveBuyer takes X-User-Id when the gateway already authenticated the
// caller, and falls back to verifying a bearer token itself.
func (h *Handler) resolveBuyer(r *http.Request) (int64, error) {
	if raw := strings.TrimSpace(r.Header.Get("X-User-Id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, auth.ErrInvalidToken
		}
		return id, nil
	}
	return h.tokens.BuyerFromBearer(r.Header.Get("Authorization"))
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var status int
	var code string

	switch {
	case errors.Is(err, auth.ErrInvalidToken):
		status, code = http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, application.ErrInsufficientStock):
		status, code = http.StatusConflict, "CONFLICT"
	case errors.Is(err, application.ErrPaymentFailed):
		status, code = http.StatusPaymentRequired, "PAYMENT_REQUIRED"
	case errors.Is(err, application.ErrOrderCannotBeCancelled):
		status, code = http.StatusConflict, "CONFLICT"
	case errors.Is(err, application.ErrOrderNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, application.ErrUpstreamUnavailable):
		status, code = http.StatusBadGateway, "BAD_GATEWAY"
		h.log.Warn("collaborator call failed", "err", err)
	case errors.Is(err, application.ErrInvalidRequest):
		status, code = http.StatusBadRequest, "BAD_REQUEST"
	default:
		status, code = http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"
		h.log.Error("order request failed", "err", err)
	}

	writeJSON(w, status, errorBody{Error: code, Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
