// Package oracle talks to the external trading decision service.
//
// The oracle is an opaque signal source: it returns BUY/SELL/HOLD plus a
// reference price per coin. Its output is untrusted input and is validated
// before use. Failures are recoverable; callers retry on their next tick.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/josh-wjp/hodlbot-engine/internal/coin"
	"github.com/josh-wjp/hodlbot-engine/internal/model"
)

// ErrInvalidSignal is returned when the oracle's response fails validation
// (unknown decision or non-positive price).
var ErrInvalidSignal = errors.New("oracle: invalid signal")

// Client fetches a trading signal for one coin.
type Client interface {
	Decision(ctx context.Context, symbol string) (model.Signal, error)
}

// Toggler propagates auto-trading enable/disable to the decision service.
type Toggler interface {
	Start(ctx context.Context, symbol string) error
	Stop(ctx context.Context, symbol string) error
}

// HTTPClient implements Client and Toggler against the decision service's
// REST API:
//
//	GET  {base}/api/trading/decision/{coin}
//	POST {base}/api/trading/start  {"coin": ...}
//	POST {base}/api/trading/stop   {"coin": ...}
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a client for the decision service at baseURL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type decisionResponse struct {
	Decision string          `json:"decision"`
	Price    decimal.Decimal `json:"price"`
	Coin     string          `json:"coin"`
}

// Decision fetches and validates the current signal for a coin.
func (c *HTTPClient) Decision(ctx context.Context, symbol string) (model.Signal, error) {
	s, err := coin.Normalize(symbol)
	if err != nil {
		return model.Signal{}, err
	}

	endpoint := c.baseURL + "/api/trading/decision/" + url.PathEscape(s)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.Signal{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return model.Signal{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return model.Signal{}, fmt.Errorf("oracle: status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var dr decisionResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return model.Signal{}, fmt.Errorf("oracle: decode: %w", err)
	}

	decision := model.Decision(strings.ToUpper(strings.TrimSpace(dr.Decision)))
	switch decision {
	case model.DecisionBuy, model.DecisionSell, model.DecisionHold:
	default:
		return model.Signal{}, fmt.Errorf("%w: decision %q", ErrInvalidSignal, dr.Decision)
	}
	if decision != model.DecisionHold && dr.Price.LessThanOrEqual(decimal.Zero) {
		return model.Signal{}, fmt.Errorf("%w: price %s", ErrInvalidSignal, dr.Price)
	}

	return model.Signal{Coin: s, Decision: decision, Price: dr.Price}, nil
}

// Start propagates an auto-trading enable for a coin.
func (c *HTTPClient) Start(ctx context.Context, symbol string) error {
	return c.toggle(ctx, symbol, "start")
}

// Stop propagates an auto-trading disable for a coin.
func (c *HTTPClient) Stop(ctx context.Context, symbol string) error {
	return c.toggle(ctx, symbol, "stop")
}

func (c *HTTPClient) toggle(ctx context.Context, symbol, action string) error {
	s, err := coin.Normalize(symbol)
	if err != nil {
		return err
	}

	body, err := json.Marshal(map[string]string{"coin": s})
	if err != nil {
		return err
	}

	endpoint := c.baseURL + "/api/trading/" + action
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("oracle: %s %s: status %d: %s",
			action, s, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return nil
}
