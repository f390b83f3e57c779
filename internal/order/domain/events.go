package domain

// Lifecycle events published to downstream consumers (settlement, analytics)
// after a saga completes. Best-effort: losing one is tolerated.

type OrderCreated struct {
	OrderID     string `json:"orderId"`
	BuyerID     int64  `json:"buyerId"`
	ProductID   int64  `json:"productId"`
	Quantity    int    `json:"quantity"`
	TotalAmount int64  `json:"totalAmount"`
}

type OrderCancelled struct {
	OrderID    string `json:"orderId"`
	BuyerID    int64  `json:"buyerId"`
	PaymentRef int64  `json:"paymentRef"`
}
