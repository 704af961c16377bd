package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/stageswap/internal/testhelper"
	"github.com/vvka-141/stageswap/pkg/stageswap"
)

func resetExtractFlags() {
	extractFlags.configPath = ""
	extractFlags.symbols = nil
	extractFlags.days = stageswap.DefaultLookbackDays
	extractFlags.timeout = stageswap.DefaultRunTimeout
	extractFlags.quiet = false
}

func newOutputCmd(out *bytes.Buffer) *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Flags().Bool("verbose", false, "")
	cmd.SetOut(out)
	return cmd
}

func TestRunExtract_PrintsWindows(t *testing.T) {
	clearEnv(t)
	resetExtractFlags()
	t.Cleanup(resetExtractFlags)

	var gotSymbol string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSymbol = r.URL.Query().Get("symbol")
		_, _ = w.Write(testhelper.DailySeriesJSON("MSFT", 10, time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC)))
	}))
	defer server.Close()

	t.Setenv(envAPIKey, "test-key")
	extractFlags.configPath = writeConfig(t, "stock_price:\n  api_base_url: "+server.URL+"\n")
	extractFlags.symbols = []string{"msft"}
	extractFlags.days = 3
	extractFlags.quiet = true

	var out bytes.Buffer
	require.NoError(t, runExtract(newOutputCmd(&out), nil))

	assert.Equal(t, "MSFT", gotSymbol)
	var windows []stageswap.RunWindow
	require.NoError(t, json.Unmarshal(out.Bytes(), &windows))
	require.Len(t, windows, 1)
	assert.Equal(t, "MSFT", windows[0].Symbol)
	require.Len(t, windows[0].Records, 3)
	assert.Equal(t, "2024-06-28", windows[0].Records[0].Date.Format("2006-01-02"))
}

func TestRunExtract_ProviderNote(t *testing.T) {
	clearEnv(t)
	resetExtractFlags()
	t.Cleanup(resetExtractFlags)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Note": "Thank you for using Alpha Vantage! Please consider spreading out your free API requests more sparingly."}`))
	}))
	defer server.Close()

	t.Setenv(envAPIKey, "test-key")
	extractFlags.configPath = writeConfig(t, "stock_price:\n  api_base_url: "+server.URL+"\n")
	extractFlags.quiet = true

	var out bytes.Buffer
	err := runExtract(newOutputCmd(&out), nil)

	require.Error(t, err)
	assert.Equal(t, stageswap.ExitSourceUnavailable, stageswap.ExitCodeForError(err))
	assert.Contains(t, err.Error(), "Thank you for using Alpha Vantage")
	assert.Empty(t, out.String())
}

func TestRunExtract_RejectsNonPositiveDays(t *testing.T) {
	resetExtractFlags()
	t.Cleanup(resetExtractFlags)
	extractFlags.days = 0

	err := runExtract(newOutputCmd(&bytes.Buffer{}), nil)

	assert.True(t, errors.Is(err, stageswap.ErrInvalidConfig))
}

func TestRunStockPrice_RequiresAPIKey(t *testing.T) {
	clearEnv(t)
	resetRunFlags()
	t.Cleanup(resetRunFlags)
	runFlags.configPath = writeConfig(t, "stock_price:\n  symbol: IBM\n")

	err := runStockPrice(newOutputCmd(&bytes.Buffer{}), nil)

	require.Error(t, err)
	assert.Equal(t, stageswap.ExitConfigError, stageswap.ExitCodeForError(err))
	assert.Contains(t, err.Error(), envAPIKey)
}

func TestRunSessionSummary_IncompleteConfig(t *testing.T) {
	clearEnv(t)
	resetRunFlags()
	t.Cleanup(resetRunFlags)
	runFlags.configPath = writeConfig(t, "session_summary:\n  schema: analytics\n  table: session_summary\n")

	err := runSessionSummary(newOutputCmd(&bytes.Buffer{}), nil)

	require.Error(t, err)
	assert.Equal(t, stageswap.ExitConfigError, stageswap.ExitCodeForError(err))
	assert.Contains(t, err.Error(), "select_sql is required")
	assert.NotContains(t, err.Error(), "business key")
}

func TestRunCommands_RejectPositionalArgs(t *testing.T) {
	for _, cmd := range []*cobra.Command{stockPriceCmd, sessionSummaryCmd, extractCmd} {
		err := cmd.Args(cmd, []string{"unexpected"})
		require.Error(t, err, cmd.Name())
		assert.Equal(t, stageswap.ExitUsageError, stageswap.ExitCodeForError(err), cmd.Name())
	}
}

func TestExtractSymbols(t *testing.T) {
	clearEnv(t)

	assert.Equal(t, []string{"IBM", "MSFT"}, extractSymbols([]string{" ibm", "MSFT", "ibm", ""}, "AAPL"))
	assert.Equal(t, []string{"AAPL"}, extractSymbols(nil, "aapl"))
	assert.Equal(t, []string{"IBM"}, extractSymbols(nil, ""))

	t.Setenv(envSymbol, "orcl")
	assert.Equal(t, []string{"ORCL"}, extractSymbols(nil, "aapl"))
}

func TestWriteJSON_LoadResult(t *testing.T) {
	var out bytes.Buffer

	require.NoError(t, writeJSON(&out, stageswap.LoadResult{InsertedRows: 90, Table: "RAW.STOCK_PRICE"}))

	assert.JSONEq(t, `{"inserted_rows": 90, "table": "RAW.STOCK_PRICE"}`, out.String())
}
