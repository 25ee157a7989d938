package geapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Craigmuzza/PVPStore-sub000/internal/logging"
)

const (
	mappingPath    = "/mapping"
	latestPath     = "/latest"
	timeseriesPath = "/timeseries"
)

// ErrRateLimited marks an HTTP 429 from the price API. Callers skip the tick
// and retry on the next scheduled one; the client never busy-retries.
var ErrRateLimited = errors.New("geapi: rate limited")

// ItemMapping is one catalog entry from /mapping.
type ItemMapping struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Limit    int    `json:"limit"`
	HighAlch int    `json:"highalch"`
	Value    int    `json:"value"`
	Members  bool   `json:"members"`
}

// LatestPrice is one entry from /latest. Either side may be absent; times are
// epoch seconds.
type LatestPrice struct {
	High     *int64 `json:"high"`
	HighTime *int64 `json:"highTime"`
	Low      *int64 `json:"low"`
	LowTime  *int64 `json:"lowTime"`
}

// TimeseriesPoint is one bucket from /timeseries.
type TimeseriesPoint struct {
	Timestamp       int64  `json:"timestamp"`
	AvgHighPrice    *int64 `json:"avgHighPrice"`
	AvgLowPrice     *int64 `json:"avgLowPrice"`
	HighPriceVolume int64  `json:"highPriceVolume"`
	LowPriceVolume  int64  `json:"lowPriceVolume"`
}

// CatalogFetcher retrieves the full item catalog.
type CatalogFetcher interface {
	FetchMapping(ctx context.Context) ([]ItemMapping, error)
}

// LatestFetcher retrieves the latest price snapshot for all items.
type LatestFetcher interface {
	FetchLatest(ctx context.Context) (map[int]LatestPrice, error)
}

// TimeseriesFetcher retrieves windowed history for a single item.
type TimeseriesFetcher interface {
	FetchTimeseries(ctx context.Context, itemID int, step string) ([]TimeseriesPoint, error)
}

// Options parameterise the price API client.
type Options struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	RateRPS   float64
	RateBurst int
}

// Client talks to the public GE price API.
type Client struct {
	opts    Options
	logger  zerolog.Logger
	client  *http.Client
	limiter *rate.Limiter
	baseURL string
}

// NewClient constructs a price API client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://prices.runescape.wiki/api/v1/osrs"
	}

	rps := opts.RateRPS
	if rps <= 0 {
		rps = 2
	}
	burst := opts.RateBurst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		opts:    opts,
		logger:  logging.Component(logger, "geapi"),
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		baseURL: baseURL,
	}
}

// FetchMapping retrieves the item catalog.
func (c *Client) FetchMapping(ctx context.Context) ([]ItemMapping, error) {
	var items []ItemMapping
	if err := c.getJSON(ctx, mappingPath, nil, &items); err != nil {
		return nil, fmt.Errorf("fetch mapping: %w", err)
	}
	return items, nil
}

// FetchLatest retrieves the latest instant buy/sell prices for all items.
func (c *Client) FetchLatest(ctx context.Context) (map[int]LatestPrice, error) {
	var payload struct {
		Data map[string]LatestPrice `json:"data"`
	}
	if err := c.getJSON(ctx, latestPath, nil, &payload); err != nil {
		return nil, fmt.Errorf("fetch latest: %w", err)
	}

	prices := make(map[int]LatestPrice, len(payload.Data))
	for key, price := range payload.Data {
		id, err := strconv.Atoi(key)
		if err != nil {
			c.logger.Warn().Str("item_key", key).Msg("skipping non-numeric item id in latest snapshot")
			continue
		}
		prices[id] = price
	}
	return prices, nil
}

// FetchTimeseries retrieves windowed average prices for one item. Step is one
// of "5m", "1h", "6h", "24h".
func (c *Client) FetchTimeseries(ctx context.Context, itemID int, step string) ([]TimeseriesPoint, error) {
	query := url.Values{}
	query.Set("id", strconv.Itoa(itemID))
	query.Set("timestep", step)

	var payload struct {
		Data []TimeseriesPoint `json:"data"`
	}
	if err := c.getJSON(ctx, timeseriesPath, query, &payload); err != nil {
		return nil, fmt.Errorf("fetch timeseries for item %d: %w", itemID, err)
	}
	return payload.Data, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent())

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w (http 429)", ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return parseHTTPError(resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) userAgent() string {
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		return ua
	}
	return "gewatcher/1.0"
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Error != "" {
			return fmt.Errorf("price api error (%d): %s", status, apiErr.Error)
		}
		if apiErr.Message != "" {
			return fmt.Errorf("price api error (%d): %s", status, apiErr.Message)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("price api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("price api error (%d)", status)
}

var _ CatalogFetcher = (*Client)(nil)
var _ LatestFetcher = (*Client)(nil)
var _ TimeseriesFetcher = (*Client)(nil)
