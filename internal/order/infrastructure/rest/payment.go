package rest

import (
	"context"
	"fmt"
	"net/http"

	"github.com/msashop/order-service/internal/order/application"
	"github.com/msashop/order-service/pkg/resilience"
)

type captureRequest struct {
	UserID        int64  `json:"userId"`
	Amount        int64  `json:"amount"`
	PaymentMethod string `json:"paymentMethod"`
}

// PaymentClient talks to the payment service. Cancel on an already-cancelled
// payment is a no-op on the collaborator side.
type PaymentClient struct {
	c caller
}

func NewPaymentClient(httpClient *http.Client, baseURL string, policy *resilience.Policy) *PaymentClient {
	return &PaymentClient{c: caller{http: httpClient, base: baseURL, policy: policy}}
}

func (pc *PaymentClient) Capture(ctx context.Context, buyerID, amount int64, method string) (application.Payment, error) {
	req := captureRequest{UserID: buyerID, Amount: amount, PaymentMethod: method}
	var p application.Payment
	if err := pc.c.doJSON(ctx, http.MethodPost, "/payments", req, &p); err != nil {
		return application.Payment{}, err
	}
	return p, nil
}

func (pc *PaymentClient) Cancel(ctx context.Context, paymentRef int64) error {
	return pc.c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/payments/%d/cancel", paymentRef), nil, nil)
}
