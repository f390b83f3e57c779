package rest

import (
	"context"
	"fmt"
	"net/http"

	"github.com/msashop/order-service/internal/order/application"
	"github.com/msashop/order-service/pkg/resilience"
)

type CatalogClient struct {
	c caller
}

func NewCatalogClient(httpClient *http.Client, baseURL string, policy *resilience.Policy) *CatalogClient {
	return &CatalogClient{c: caller{http: httpClient, base: baseURL, policy: policy}}
}

func (cc *CatalogClient) GetProduct(ctx context.Context, productID int64) (application.Product, error) {
	var p application.Product
	if err := cc.c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/products/%d", productID), nil, &p); err != nil {
		return application.Product{}, err
	}
	return p, nil
}
