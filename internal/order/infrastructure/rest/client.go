// Package rest holds the HTTP clients for the catalog, stock and payment
// collaborators. Every call goes through a per-collaborator resilience policy;
// only transport-level failures (connection errors, timeouts, 5xx) are retried
// or counted against the circuit breaker. A 2xx body reporting a business
// failure is returned to the caller untouched.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/msashop/order-service/internal/order/application"
	"github.com/msashop/order-service/pkg/resilience"
)

type caller struct {
	http   *http.Client
	base   string
	policy *resilience.Policy
}

// doJSON performs one logical request under the policy. Any failure that
// survives the policy is translated to ErrUpstreamUnavailable, which the
// HTTP layer maps to 502.
func (c *caller) doJSON(ctx context.Context, method, path string, body, out any) error {
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		return c.once(ctx, method, path, body, out)
	})
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", application.ErrUpstreamUnavailable, method, path, err)
	}
	return nil
}

func (c *caller) once(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return resilience.Permanent(fmt.Errorf("encoding request: %w", err))
		}
		rd = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return resilience.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("server error: %s", resp.Status)
	case resp.StatusCode >= 400:
		// the collaborator understood the request and rejected it; retrying
		// the same request cannot change its mind
		return resilience.Permanent(fmt.Errorf("client error: %s", resp.Status))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
