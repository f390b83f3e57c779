package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/msashop/order-service/internal/order/domain"
	"github.com/msashop/order-service/pkg/outbox"
)

// Service drives the order create/cancel saga. Each call runs its collaborator
// steps strictly in sequence; there is no shared mutable state between
// concurrent sagas, so no locking here.
type Service struct {
	log     *slog.Logger
	orders  OrderRepository
	outbox  OutboxRepository
	catalog CatalogClient
	stock   StockClient
	payment PaymentClient
	events  EventPublisher
}

func NewService(
	log *slog.Logger,
	orders OrderRepository,
	ob OutboxRepository,
	catalog CatalogClient,
	stock StockClient,
	payment PaymentClient,
	events EventPublisher,
) *Service {
	return &Service{
		log:     log,
		orders:  orders,
		outbox:  ob,
		catalog: catalog,
		stock:   stock,
		payment: payment,
		events:  events,
	}
}

// CreateOrder runs the create saga:
//
//	price lookup -> stock reserve -> payment capture -> save PAID
//
// A failed capture releases the reservation synchronously before the failure
// surfaces. A failed save after a successful capture cannot be undone inline
// (money has moved), so a compensation record is appended to the outbox in an
// independent transaction and the save error is returned as-is.
func (s *Service) CreateOrder(ctx context.Context, buyerID, productID int64, quantity int, paymentMethod string) (domain.Order, error) {
	if quantity <= 0 {
		return domain.Order{}, fmt.Errorf("%w: quantity must be positive", ErrInvalidRequest)
	}
	if paymentMethod == "" {
		return domain.Order{}, fmt.Errorf("%w: payment method is required", ErrInvalidRequest)
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return domain.Order{}, err
	}
	totalAmount := product.Price * int64(quantity)

	reservation, err := s.stock.Reserve(ctx, buyerID, productID, quantity)
	if err != nil {
		return domain.Order{}, err
	}
	if !reservation.Success {
		return domain.Order{}, fmt.Errorf("%w: %s", ErrInsufficientStock, reservation.Reason)
	}

	payment, err := s.payment.Capture(ctx, buyerID, totalAmount, paymentMethod)
	if err != nil {
		s.releaseStock(ctx, buyerID, productID, quantity)
		return domain.Order{}, err
	}
	if !payment.Success {
		s.releaseStock(ctx, buyerID, productID, quantity)
		return domain.Order{}, fmt.Errorf("%w: %s", ErrPaymentFailed, payment.Reason)
	}

	order := domain.NewOrder(buyerID, productID, quantity, totalAmount, payment.PaymentRef)
	if err := s.orders.Create(ctx, order); err != nil {
		s.recordSaveFailed(ctx, payment.PaymentRef, buyerID, productID, quantity)
		return domain.Order{}, fmt.Errorf("saving order: %w", err)
	}

	if s.events != nil {
		if err := s.events.OrderCreated(ctx, order); err != nil {
			s.log.Warn("order created event publish failed", "order_id", order.ID, "err", err)
		}
	}
	return order, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	return s.orders.Get(ctx, orderID)
}

func (s *Service) ListOrders(ctx context.Context, buyerID int64) ([]domain.Order, error) {
	return s.orders.ListByBuyer(ctx, buyerID)
}

// CancelOrder reverses a PAID order. The payment cancellation is mandatory
// and aborts the whole operation on failure; the stock release afterwards is
// best-effort, since an inventory drift is reconcilable while an uncancelled
// payment is a financial liability.
func (s *Service) CancelOrder(ctx context.Context, orderID string, buyerID int64) (domain.Order, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	// a foreign buyer sees "not found", not "forbidden"
	if order.BuyerID != buyerID {
		return domain.Order{}, ErrOrderNotFound
	}
	if order.PaymentRef == nil {
		return domain.Order{}, fmt.Errorf("%w: no payment reference on record", ErrOrderCannotBeCancelled)
	}
	if order.Status != domain.StatusPaid {
		return domain.Order{}, fmt.Errorf("%w: status is %s", ErrOrderCannotBeCancelled, order.Status)
	}

	if err := s.payment.Cancel(ctx, *order.PaymentRef); err != nil {
		return domain.Order{}, fmt.Errorf("%w: cancelling payment %d: %w", ErrOrderCannotBeCancelled, *order.PaymentRef, err)
	}
	s.releaseStock(ctx, order.BuyerID, order.ProductID, order.Quantity)

	if err := order.Cancel(); err != nil {
		return domain.Order{}, fmt.Errorf("%w: %w", ErrOrderCannotBeCancelled, err)
	}
	if err := s.orders.UpdateStatus(ctx, order.ID, domain.StatusCancelled); err != nil {
		return domain.Order{}, fmt.Errorf("updating order status: %w", err)
	}

	if s.events != nil {
		if err := s.events.OrderCancelled(ctx, order); err != nil {
			s.log.Warn("order cancelled event publish failed", "order_id", order.ID, "err", err)
		}
	}
	return order, nil
}

// releaseStock is the best-effort compensation wrapper: a release failure is
// logged and swallowed so it never masks the error that triggered it.
func (s *Service) releaseStock(ctx context.Context, buyerID, productID int64, quantity int) {
	if err := s.stock.Release(ctx, buyerID, productID, quantity); err != nil {
		s.log.Warn("stock release failed, inventory will drift until reconciled",
			"buyer_id", buyerID, "product_id", productID, "quantity", quantity, "err", err)
	}
}

func (s *Service) recordSaveFailed(ctx context.Context, paymentRef, buyerID, productID int64, quantity int) {
	payload, err := json.Marshal(outbox.OrderSaveFailedPayload{
		PaymentRef: paymentRef,
		BuyerID:    buyerID,
		ProductID:  productID,
		Quantity:   quantity,
	})
	if err != nil {
		s.log.Error("compensation payload marshal failed", "payment_ref", paymentRef, "err", err)
		return
	}
	if err := s.outbox.Append(ctx, outbox.KindOrderSaveFailed, payload); err != nil {
		// The captured payment is now untracked. Nothing more this process
		// can do; the log line is the remaining trace.
		s.log.Error("compensation event append failed, captured payment is untracked",
			"payment_ref", paymentRef, "err", err)
	}
}
