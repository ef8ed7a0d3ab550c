// Package nse provides a client for the NSE India public market-data API.
package nse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"nseingest/internal/dateutil"
	"nseingest/internal/models"
	"nseingest/internal/retry"
)

const (
	DefaultBaseURL   = "https://www.nseindia.com/api"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 2 // requests per second

	indexEndpoint      = "/equity-stockIndices"
	historicalEndpoint = "/historical/securityArchives"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
)

// Client talks to the NSE API. The endpoints reject requests without
// browser-like headers and a session cookie, so the client carries a
// cookie jar warmed by a visit to the site root before the first call.
type Client struct {
	baseURL    string
	siteURL    string
	httpClient *http.Client
	logger     zerolog.Logger
	limiter    *rate.Limiter
	retryDelay time.Duration
	warmup     sync.Once
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
		c.siteURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithRetryDelay sets the base delay between retry attempts
func WithRetryDelay(delay time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = delay
	}
}

// NewClient creates a new NSE client
func NewClient(opts ...ClientOption) *Client {
	jar, _ := cookiejar.New(nil)
	c := &Client{
		baseURL: DefaultBaseURL,
		siteURL: "https://www.nseindia.com",
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			Jar:     jar,
		},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:     zerolog.Nop(),
		retryDelay: time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents a non-2xx response from the provider.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("NSE API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

func (c *Client) headers(referer string) http.Header {
	h := http.Header{}
	h.Set("User-Agent", userAgent)
	h.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("X-Requested-With", "XMLHttpRequest")
	h.Set("Referer", referer)
	return h
}

// warm loads the session cookie the API endpoints require. A failure is
// logged and ignored, the main request may still succeed.
func (c *Client) warm(ctx context.Context) {
	c.warmup.Do(func() {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.siteURL, nil)
		if err != nil {
			return
		}
		req.Header = c.headers(c.siteURL)
		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Warn().Err(err).Msg("failed to load session cookies")
			return
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		c.logger.Debug().Msg("loaded session cookies")
	})
}

// get performs a rate-limited GET request with bounded retry.
func (c *Client) get(ctx context.Context, path string, params url.Values, referer string, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	c.warm(ctx)

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	return retry.Do(ctx, 3, c.retryDelay, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header = c.headers(referer)

		c.logger.Debug().Str("url", c.baseURL+path).Msg("NSE API request")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to execute request: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return &APIError{
				StatusCode: resp.StatusCode,
				Message:    string(body),
				Endpoint:   path,
			}
		}

		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		if err := dec.Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	})
}

// indexResponse is the shape of the equity-stockIndices endpoint.
type indexResponse struct {
	Data []models.IndexEntry `json:"data"`
}

// FetchIndexConstituents retrieves the constituent list for an index.
func (c *Client) FetchIndexConstituents(ctx context.Context, indexName string) ([]models.IndexEntry, error) {
	params := url.Values{}
	params.Set("index", indexName)

	var resp indexResponse
	referer := c.siteURL + "/market-data/live-equity-market"
	if err := c.get(ctx, indexEndpoint, params, referer, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch index constituents for %s: %w", indexName, err)
	}

	c.logger.Info().Str("index", indexName).Int("constituents", len(resp.Data)).Msg("fetched index constituents")
	return resp.Data, nil
}

// historicalResponse is the shape of the securityArchives endpoint.
type historicalResponse struct {
	Data []models.PriceRecord `json:"data"`
}

// FetchPriceHistory retrieves daily price records for a symbol over an
// inclusive date range. Records come back with the provider's raw field
// names (CH_TIMESTAMP, CH_OPENING_PRICE and so on).
func (c *Client) FetchPriceHistory(ctx context.Context, symbol string, from, to time.Time) ([]models.PriceRecord, error) {
	params := url.Values{}
	params.Set("from", dateutil.FormatDMY(from))
	params.Set("to", dateutil.FormatDMY(to))
	params.Set("symbol", symbol)
	params.Set("dataType", "priceVolumeDeliverable")
	params.Set("series", "ALL")

	var resp historicalResponse
	referer := c.siteURL + "/get-quotes/equity?symbol=" + url.QueryEscape(symbol)
	if err := c.get(ctx, historicalEndpoint, params, referer, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch price history for %s: %w", symbol, err)
	}

	c.logger.Debug().Str("symbol", symbol).
		Str("from", dateutil.FormatDMY(from)).
		Str("to", dateutil.FormatDMY(to)).
		Int("records", len(resp.Data)).
		Msg("fetched price history")
	return resp.Data, nil
}
