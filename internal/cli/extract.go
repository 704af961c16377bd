package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vvka-141/stageswap/internal/extract"
	"github.com/vvka-141/stageswap/internal/logging"
	"github.com/vvka-141/stageswap/pkg/stageswap"
)

var extractFlags struct {
	configPath string
	symbols    []string
	days       int
	timeout    time.Duration
	quiet      bool
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Fetch daily price windows and print them as JSON",
	Long: `Fetch the most recent daily prices for one or more symbols and print the
windows to stdout as a JSON array. Nothing is written to the warehouse.

Calls are spaced to respect the provider's free-tier rate limit, so several
symbols take several seconds each.`,
	Example: `  stageswap extract --symbol IBM
  stageswap extract --symbol IBM --symbol MSFT --days 5 --quiet`,
	Args: cobra.NoArgs,
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVar(&extractFlags.configPath, "config", "",
		"Path to stageswap.yaml (default: ./stageswap.yaml if present)")
	extractCmd.Flags().StringSliceVar(&extractFlags.symbols, "symbol", nil,
		"Ticker to fetch (repeatable; default: $STOCK_SYMBOL, stageswap.yaml, or IBM)")
	extractCmd.Flags().IntVar(&extractFlags.days, "days", stageswap.DefaultLookbackDays,
		"Number of most recent days per symbol")
	extractCmd.Flags().DurationVar(&extractFlags.timeout, "timeout", stageswap.DefaultRunTimeout,
		"Overall timeout for all fetches")
	extractCmd.Flags().BoolVarP(&extractFlags.quiet, "quiet", "q", false,
		"Suppress progress output on stderr")
}

func runExtract(cmd *cobra.Command, args []string) error {
	if extractFlags.days <= 0 {
		return fmt.Errorf("--days must be positive, got %d: %w", extractFlags.days, stageswap.ErrInvalidConfig)
	}

	projectCfg, err := loadProjectConfig(extractFlags.configPath)
	if err != nil {
		return err
	}
	clientCfg, err := buildExtractConfig(projectCfg)
	if err != nil {
		return err
	}

	var logger stageswap.Logger = logging.NewConsoleLogger(getVerboseFlag(cmd))
	if extractFlags.quiet {
		logger = logging.NewNullLogger()
	}

	client, err := extract.NewAlphaVantageClient(clientCfg, logger)
	if err != nil {
		return err
	}

	symbols := extractSymbols(extractFlags.symbols, projectCfg.StockPrice.Symbol)

	ctx, cancel := runContext(extractFlags.timeout)
	defer cancel()

	windows := make([]stageswap.RunWindow, 0, len(symbols))
	for _, symbol := range symbols {
		window, err := client.FetchDaily(ctx, symbol, extractFlags.days)
		if err != nil {
			return fmt.Errorf("extract %s failed: %w", symbol, err)
		}
		logger.Info("✓ %s: %d daily records", symbol, len(window.Records))
		windows = append(windows, window)
	}

	return writeJSON(cmd.OutOrStdout(), windows)
}

// extractSymbols normalizes the requested tickers, falling back to
// $STOCK_SYMBOL, then the configured symbol, then the default.
func extractSymbols(flagSymbols []string, configured string) []string {
	var symbols []string
	seen := make(map[string]bool)
	for _, s := range flagSymbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		symbols = append(symbols, s)
	}
	if len(symbols) > 0 {
		return symbols
	}
	return []string{strings.ToUpper(strings.TrimSpace(firstNonEmpty(os.Getenv(envSymbol), configured, stageswap.DefaultSymbol)))}
}
