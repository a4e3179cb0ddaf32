package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const defaultFeedBaseURL = "https://api.coingecko.com/api/v3"

// Feed fetches the full current price set from an external source.
type Feed interface {
	FetchPrices(ctx context.Context) (map[string]decimal.Decimal, error)
}

// marketEntry is one row of the feed's markets response.
type marketEntry struct {
	ID           string          `json:"id"`
	CurrentPrice decimal.Decimal `json:"current_price"`
}

// CoinGeckoFeed fetches coin prices from a CoinGecko-compatible markets
// endpoint: GET {base}/coins/markets?vs_currency=usd.
type CoinGeckoFeed struct {
	baseURL    string
	client     *http.Client
	vsCurrency string
	perPage    int
}

// NewCoinGeckoFeed creates a feed client. An empty baseURL selects the
// public CoinGecko API.
func NewCoinGeckoFeed(baseURL string) *CoinGeckoFeed {
	resolved := strings.TrimRight(baseURL, "/")
	if resolved == "" {
		resolved = defaultFeedBaseURL
	}
	return &CoinGeckoFeed{
		baseURL: resolved,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		vsCurrency: "usd",
		perPage:    100,
	}
}

// FetchPrices returns the current price per coin id. Any transport or
// decode failure is returned to the caller; the poller treats it as
// recoverable and keeps the stale cache.
func (f *CoinGeckoFeed) FetchPrices(ctx context.Context) (map[string]decimal.Decimal, error) {
	endpoint, err := url.Parse(f.baseURL + "/coins/markets")
	if err != nil {
		return nil, err
	}
	query := endpoint.Query()
	query.Set("vs_currency", f.vsCurrency)
	query.Set("order", "market_cap_desc")
	query.Set("per_page", fmt.Sprintf("%d", f.perPage))
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("price feed: status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var entries []marketEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("price feed: decode: %w", err)
	}

	out := make(map[string]decimal.Decimal, len(entries))
	for _, e := range entries {
		if e.ID == "" || e.CurrentPrice.LessThanOrEqual(decimal.Zero) {
			continue
		}
		out[e.ID] = e.CurrentPrice
	}
	return out, nil
}
