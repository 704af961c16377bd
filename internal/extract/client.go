package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/vvka-141/stageswap/pkg/stageswap"
)

// maxBodyBytes caps how much of a response is read.
const maxBodyBytes = 16 << 20

// DefaultRateInterval matches the free-tier allowance of five calls per minute.
const DefaultRateInterval = 12 * time.Second

// Config configures the Alpha Vantage client.
type Config struct {
	// BaseURL is the endpoint root (default: stageswap.DefaultAPIBaseURL).
	BaseURL string

	// APIKey is sent as the apikey query parameter. Required.
	APIKey string

	// Timeout bounds one request (default: stageswap.DefaultAPITimeout).
	Timeout time.Duration

	// RateInterval is the minimum spacing between calls (default: DefaultRateInterval).
	RateInterval time.Duration

	// Transport allows injecting a custom HTTP transport (for tests/stubs).
	Transport http.RoundTripper
}

// AlphaVantageClient fetches TIME_SERIES_DAILY windows.
// Safe for concurrent use; calls are spaced by the rate limiter.
type AlphaVantageClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     stageswap.Logger
}

// NewAlphaVantageClient validates config and builds a client.
func NewAlphaVantageClient(config Config, logger stageswap.Logger) (*AlphaVantageClient, error) {
	if logger == nil {
		panic("logger cannot be nil")
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("api key is required (set VANTAGE_API_KEY): %w", stageswap.ErrInvalidConfig)
	}
	if config.BaseURL == "" {
		config.BaseURL = stageswap.DefaultAPIBaseURL
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid api base url %q: %w", config.BaseURL, stageswap.ErrInvalidConfig)
	}
	if config.Timeout == 0 {
		config.Timeout = stageswap.DefaultAPITimeout
	}
	if config.RateInterval == 0 {
		config.RateInterval = DefaultRateInterval
	}

	return &AlphaVantageClient{
		baseURL: strings.TrimSuffix(config.BaseURL, "/"),
		apiKey:  config.APIKey,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: config.Transport,
		},
		limiter: rate.NewLimiter(rate.Every(config.RateInterval), 1),
		logger:  logger,
	}, nil
}

// FetchDaily requests the daily series for symbol and returns its most
// recent limit days, newest first.
func (c *AlphaVantageClient) FetchDaily(ctx context.Context, symbol string, limit int) (stageswap.RunWindow, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return stageswap.RunWindow{}, stageswap.NewSourceUnavailable("rate limiter: " + err.Error())
	}

	body, err := c.get(ctx, symbol)
	if err != nil {
		return stageswap.RunWindow{}, err
	}

	records, err := ParseDaily(body, symbol)
	if err != nil {
		return stageswap.RunWindow{}, err
	}
	if len(records) > limit {
		records = records[:limit]
	}
	c.logger.Verbose("extracted %d daily records for %s", len(records), symbol)

	return stageswap.RunWindow{Symbol: symbol, Records: records, Raw: body}, nil
}

func (c *AlphaVantageClient) get(ctx context.Context, symbol string) ([]byte, error) {
	query := url.Values{}
	query.Set("function", "TIME_SERIES_DAILY")
	query.Set("symbol", symbol)
	query.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/query?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Verbose("GET %s/query function=TIME_SERIES_DAILY symbol=%s", c.baseURL, symbol)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, stageswap.NewSourceUnavailable("request failed: " + redact(err).Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, stageswap.NewSourceUnavailable("read response: " + err.Error())
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, stageswap.NewSourceUnavailable(fmt.Sprintf("HTTP %d: %s", resp.StatusCode, body))
	}
	return body, nil
}

// redact drops the request URL, which carries the API key, from transport errors.
func redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	return err
}
