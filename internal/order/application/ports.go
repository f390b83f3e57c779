package application

import (
	"context"

	"github.com/msashop/order-service/internal/order/domain"
)

type OrderRepository interface {
	Create(ctx context.Context, o domain.Order) error
	Get(ctx context.Context, id string) (domain.Order, error)
	ListByBuyer(ctx context.Context, buyerID int64) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error
}

// OutboxRepository appends compensation records. Append must commit in its
// own transaction: it is called precisely because another transaction failed.
type OutboxRepository interface {
	Append(ctx context.Context, kind string, payload []byte) error
}

type Product struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Price         int64  `json:"price"`
	StockQuantity int    `json:"stockQuantity"`
}

type Reservation struct {
	Success        bool   `json:"success"`
	Reason         string `json:"reason"`
	RemainingStock int    `json:"remainingStock"`
}

type Payment struct {
	Success    bool   `json:"success"`
	PaymentRef int64  `json:"paymentId"`
	Reason     string `json:"reason"`
}

type CatalogClient interface {
	GetProduct(ctx context.Context, productID int64) (Product, error)
}

type StockClient interface {
	Reserve(ctx context.Context, buyerID, productID int64, quantity int) (Reservation, error)
	Release(ctx context.Context, buyerID, productID int64, quantity int) error
}

type PaymentClient interface {
	Capture(ctx context.Context, buyerID, amount int64, method string) (Payment, error)
	Cancel(ctx context.Context, paymentRef int64) error
}

// EventPublisher announces completed sagas downstream. Best-effort.
type EventPublisher interface {
	OrderCreated(ctx context.Context, o domain.Order) error
	OrderCancelled(ctx context.Context, o domain.Order) error
}
