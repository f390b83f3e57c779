package outbox

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
	StatusFailed    Status = "failed"
)

// KindOrderSaveFailed records a payment that was captured for an order whose
// save never committed. The compensator cancels the payment and releases the
// reserved stock.
const KindOrderSaveFailed = "order-save-failed-after-payment"

// Event is a durable compensation record. Events are never deleted; processed
// and failed events stay behind as an audit trail, and a failed event is not
// retried automatically.
type Event struct {
	ID          int64
	Kind        string
	Payload     []byte
	Status      Status
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// OrderSaveFailedPayload is the JSON shape stored for KindOrderSaveFailed.
type OrderSaveFailedPayload struct {
	PaymentRef int64 `json:"paymentRef"`
	BuyerID    int64 `json:"buyerId"`
	ProductID  int64 `json:"productId"`
	Quantity   int   `json:"quantity"`
}
