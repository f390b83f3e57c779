package rest

import (
	"context"
	"net/http"

	"github.com/msashop/order-service/internal/order/application"
	"github.com/msashop/order-service/pkg/resilience"
)

type stockRequest struct {
	UserID    int64 `json:"userId"`
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// StockClient talks to the catalog service's internal stock endpoints.
// Release is idempotent on the collaborator side, which the compensator
// depends on.
type StockClient struct {
	c caller
}

func NewStockClient(httpClient *http.Client, baseURL string, policy *resilience.Policy) *StockClient {
	return &StockClient{c: caller{http: httpClient, base: baseURL, policy: policy}}
}

func (sc *StockClient) Reserve(ctx context.Context, buyerID, productID int64, quantity int) (application.Reservation, error) {
	req := stockRequest{UserID: buyerID, ProductID: productID, Quantity: quantity}
	var res application.Reservation
	if err := sc.c.doJSON(ctx, http.MethodPost, "/internal/stocks/reserve", req, &res); err != nil {
		return application.Reservation{}, err
	}
	return res, nil
}

func (sc *StockClient) Release(ctx context.Context, buyerID, productID int64, quantity int) error {
	req := stockRequest{UserID: buyerID, ProductID: productID, Quantity: quantity}
	return sc.c.doJSON(ctx, http.MethodPost, "/internal/stocks/release", req, nil)
}
