package extract

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/stageswap/internal/logging"
	"github.com/vvka-141/stageswap/internal/testhelper"
	"github.com/vvka-141/stageswap/pkg/stageswap"
)

var lastDay = time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...func(*Config)) *AlphaVantageClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := Config{BaseURL: srv.URL, APIKey: "secret-key", RateInterval: time.Millisecond}
	for _, opt := range opts {
		opt(&cfg)
	}
	client, err := NewAlphaVantageClient(cfg, logging.NewNullLogger())
	require.NoError(t, err)
	return client
}

func requireSourceUnavailable(t *testing.T, err error) *stageswap.SourceUnavailableError {
	t.Helper()
	require.Error(t, err)
	var su *stageswap.SourceUnavailableError
	require.True(t, errors.As(err, &su), "expected SourceUnavailableError, got %T: %v", err, err)
	assert.True(t, errors.Is(err, stageswap.ErrSourceUnavailable))
	return su
}

func TestFetchDaily_KeepsMostRecentWindow(t *testing.T) {
	var gotQuery map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/query", r.URL.Path)
		gotQuery = map[string]string{
			"function": r.URL.Query().Get("function"),
			"symbol":   r.URL.Query().Get("symbol"),
			"apikey":   r.URL.Query().Get("apikey"),
		}
		w.Write(testhelper.DailySeriesJSON("IBM", 120, lastDay))
	})

	window, err := client.FetchDaily(context.Background(), "IBM", 90)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"function": "TIME_SERIES_DAILY", "symbol": "IBM", "apikey": "secret-key"}, gotQuery)
	require.Len(t, window.Records, 90)
	assert.Equal(t, "IBM", window.Symbol)
	assert.NotEmpty(t, window.Raw)
	assert.True(t, window.Records[0].Date.Equal(lastDay))
	assert.True(t, window.Records[89].Date.Equal(lastDay.AddDate(0, 0, -89)))
	for i := 1; i < len(window.Records); i++ {
		assert.True(t, window.Records[i-1].Date.After(window.Records[i].Date), "records must be newest first")
	}
	assert.Equal(t, "IBM", window.Records[0].Symbol)
	assert.Equal(t, int64(1000000), window.Records[0].Volume)
}

func TestFetchDaily_ShortSeriesIsNotPadded(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(testhelper.DailySeriesJSON("IBM", 5, lastDay))
	})

	window, err := client.FetchDaily(context.Background(), "IBM", 90)

	require.NoError(t, err)
	assert.Len(t, window.Records, 5)
}

func TestFetchDaily_ProviderDiagnostics(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantDiag string
	}{
		{
			name:     "throttle note",
			body:     `{"Note": "Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute."}`,
			wantDiag: "Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute.",
		},
		{
			name:     "error message",
			body:     `{"Error Message": "Invalid API call."}`,
			wantDiag: "Invalid API call.",
		},
		{
			name:     "information",
			body:     `{"Information": "premium endpoint"}`,
			wantDiag: "premium endpoint",
		},
		{
			name:     "note wins over information",
			body:     `{"Information": "second", "Note": "first"}`,
			wantDiag: "first",
		},
		{
			name:     "unknown shape falls back to body",
			body:     `{"unexpected": true}`,
			wantDiag: `{"unexpected": true}`,
		},
		{
			name:     "not json",
			body:     `<html>maintenance</html>`,
			wantDiag: `<html>maintenance</html>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			})

			window, err := client.FetchDaily(context.Background(), "IBM", 90)

			su := requireSourceUnavailable(t, err)
			assert.Equal(t, tt.wantDiag, su.Diagnostic)
			assert.Empty(t, window.Records, "no partial window on error")
		})
	}
}

func TestFetchDaily_DiagnosticTruncated(t *testing.T) {
	long := strings.Repeat("z", 1000)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"Note": %q}`, long)
	})

	_, err := client.FetchDaily(context.Background(), "IBM", 90)

	su := requireSourceUnavailable(t, err)
	assert.Len(t, su.Diagnostic, stageswap.MaxDiagnosticLength)
}

func TestFetchDaily_NonSuccessStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "upstream down")
	})

	_, err := client.FetchDaily(context.Background(), "IBM", 90)

	su := requireSourceUnavailable(t, err)
	assert.Equal(t, "HTTP 503: upstream down", su.Diagnostic)
}

func TestFetchDaily_UnparseableField(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Time Series (Daily)": {"2024-06-28": {"1. open": "n/a", "2. high": "1", "3. low": "1", "4. close": "1", "5. volume": "1"}}}`)
	})

	_, err := client.FetchDaily(context.Background(), "IBM", 90)

	su := requireSourceUnavailable(t, err)
	assert.Contains(t, su.Diagnostic, "invalid open")
}

func TestFetchDaily_Timeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}, func(c *Config) { c.Timeout = 20 * time.Millisecond })

	_, err := client.FetchDaily(context.Background(), "IBM", 90)

	su := requireSourceUnavailable(t, err)
	assert.NotContains(t, su.Diagnostic, "secret-key")
}

type failingTransport struct{}

func (failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("dial tcp: no such host")
}

func TestFetchDaily_TransportErrorHidesAPIKey(t *testing.T) {
	client, err := NewAlphaVantageClient(Config{
		BaseURL:   "https://provider.invalid",
		APIKey:    "secret-key",
		Transport: failingTransport{},
	}, logging.NewNullLogger())
	require.NoError(t, err)

	_, err = client.FetchDaily(context.Background(), "IBM", 90)

	su := requireSourceUnavailable(t, err)
	assert.Contains(t, su.Diagnostic, "no such host")
	assert.NotContains(t, err.Error(), "secret-key")
}

func TestFetchDaily_RateLimiterRespectsContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(testhelper.DailySeriesJSON("IBM", 1, lastDay))
	}, func(c *Config) { c.RateInterval = time.Hour })

	_, err := client.FetchDaily(context.Background(), "IBM", 90)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = client.FetchDaily(ctx, "MSFT", 90)

	su := requireSourceUnavailable(t, err)
	assert.Contains(t, su.Diagnostic, "rate limiter")
	assert.Equal(t, stageswap.ExitSourceUnavailable, stageswap.ExitCodeForError(err))
}

func TestNewAlphaVantageClient_RequiresAPIKey(t *testing.T) {
	_, err := NewAlphaVantageClient(Config{}, logging.NewNullLogger())

	assert.True(t, errors.Is(err, stageswap.ErrInvalidConfig))
}
