package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/msashop/order-service/pkg/outbox"
)

// CompensationHandler executes the corrective actions recorded in outbox
// events: cancel the captured payment, then release the reserved stock. Both
// collaborator operations are idempotent at their boundary, so re-executing
// an event after a crash is safe.
type CompensationHandler struct {
	log     *slog.Logger
	stock   StockClient
	payment PaymentClient
}

func NewCompensationHandler(log *slog.Logger, stock StockClient, payment PaymentClient) *CompensationHandler {
	return &CompensationHandler{log: log, stock: stock, payment: payment}
}

func (h *CompensationHandler) Compensate(ctx context.Context, e outbox.Event) error {
	switch e.Kind {
	case outbox.KindOrderSaveFailed:
		return h.orderSaveFailed(ctx, e)
	default:
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
}

func (h *CompensationHandler) orderSaveFailed(ctx context.Context, e outbox.Event) error {
	var p outbox.OrderSaveFailedPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return fmt.Errorf("decoding payload: %w", err)
	}

	if err := h.payment.Cancel(ctx, p.PaymentRef); err != nil {
		return fmt.Errorf("cancelling payment %d: %w", p.PaymentRef, err)
	}
	if err := h.stock.Release(ctx, p.BuyerID, p.ProductID, p.Quantity); err != nil {
		return fmt.Errorf("releasing stock for product %d: %w", p.ProductID, err)
	}

	h.log.Info("order save compensated", "event_id", e.ID, "payment_ref", p.PaymentRef)
	return nil
}
