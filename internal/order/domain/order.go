package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	StatusPaid      OrderStatus = "PAID"
	StatusFailed    OrderStatus = "FAILED"
	StatusCancelled OrderStatus = "CANCELLED"
)

// ErrNotCancellable is returned by Cancel for any order that is not a PAID
// order with a payment reference attached.
var ErrNotCancellable = errors.New("order not cancellable")

// Order is the aggregate written once the create saga has fully succeeded.
// TotalAmount is computed once at creation and never recomputed. PaymentRef
// is nil for records that predate payment tracking; such orders cannot be
// cancelled because there is no payment to reverse.
type Order struct {
	ID          string
	BuyerID     int64
	ProductID   int64
	Quantity    int
	TotalAmount int64
	Status      OrderStatus
	PaymentRef  *int64
	CreatedAt   time.Time
}

func NewOrder(buyerID, productID int64, quantity int, totalAmount int64, paymentRef int64) Order {
	return Order{
		ID:          uuid.NewString(),
		BuyerID:     buyerID,
		ProductID:   productID,
		Quantity:    quantity,
		TotalAmount: totalAmount,
		Status:      StatusPaid,
		PaymentRef:  &paymentRef,
		CreatedAt:   time.Now().UTC(),
	}
}

// Cancellable reports whether Cancel would succeed.
func (o *Order) Cancellable() bool {
	return o.Status == StatusPaid && o.PaymentRef != nil
}

// Cancel transitions PAID -> CANCELLED. Every other transition is rejected.
func (o *Order) Cancel() error {
	if !o.Cancellable() {
		return ErrNotCancellable
	}
	o.Status = StatusCancelled
	return nil
}
