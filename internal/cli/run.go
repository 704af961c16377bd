package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/vvka-141/stageswap/internal/db"
	"github.com/vvka-141/stageswap/internal/db/manager"
	"github.com/vvka-141/stageswap/internal/extract"
	"github.com/vvka-141/stageswap/internal/logging"
	"github.com/vvka-141/stageswap/internal/services"
	"github.com/vvka-141/stageswap/pkg/stageswap"
)

// runFlags holds the flags shared by the run subcommands.
var runFlags struct {
	configPath string
	connection string
	timeout    time.Duration
	dryRun     bool
}

var stockPriceFlags struct {
	symbol       string
	lookbackDays int
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a load pipeline",
	Long: `Run one load pipeline end to end. On success the load result is printed
to stdout as JSON, for example:

  {"inserted_rows":90,"table":"RAW.STOCK_PRICE"}

Configuration is read from stageswap.yaml in the working directory (or --config),
the environment, and a .env file if present.`,
}

var stockPriceCmd = &cobra.Command{
	Use:   "stock-price",
	Short: "Fetch daily prices and fully refresh the price table",
	Long: `Fetch the most recent daily prices for one symbol from Alpha Vantage and
replace the contents of the price table in a single transaction.

The API key is read from $VANTAGE_API_KEY only.

Environment:
  VANTAGE_API_KEY   Provider API key (required)
  STOCK_SYMBOL      Ticker (default: IBM)
  LOOKBACK_DAYS     Days kept (default: 90)
  TARGET_DB         Warehouse database (default: from the connection)
  TARGET_SCHEMA     Target schema (default: RAW)
  TARGET_TABLE      Target table (default: STOCK_PRICE)`,
	Example: `  stageswap run stock-price
  stageswap run stock-price --symbol MSFT --dry-run
  stageswap run stock-price --connection "postgresql://loader@warehouse/analytics"`,
	Args: cobra.NoArgs,
	RunE: runStockPrice,
}

var sessionSummaryCmd = &cobra.Command{
	Use:   "session-summary",
	Short: "Materialize the configured select and swap it into the target",
	Long: `Create a scratch table from session_summary.select_sql, validate it against
the configured keys, and swap it with the target table in one transaction.
Readers of the target never see a partial or empty table.`,
	Example: `  stageswap run session-summary
  stageswap run session-summary --config /etc/stageswap/stageswap.yaml --dry-run`,
	Args: cobra.NoArgs,
	RunE: runSessionSummary,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.AddCommand(stockPriceCmd)
	runCmd.AddCommand(sessionSummaryCmd)

	runCmd.PersistentFlags().StringVar(&runFlags.configPath, "config", "",
		"Path to stageswap.yaml (default: ./stageswap.yaml if present)")
	runCmd.PersistentFlags().StringVar(&runFlags.connection, "connection", "",
		"PostgreSQL connection string (overrides $STAGESWAP_CONNECTION_STRING, $DATABASE_URL and PG* variables)")
	runCmd.PersistentFlags().DurationVar(&runFlags.timeout, "timeout", stageswap.DefaultRunTimeout,
		"Catastrophic failure protection timeout for the whole run")
	runCmd.PersistentFlags().BoolVar(&runFlags.dryRun, "dry-run", false,
		"Stage and validate, then discard instead of committing")

	stockPriceCmd.Flags().StringVar(&stockPriceFlags.symbol, "symbol", "",
		"Ticker to load (overrides $STOCK_SYMBOL)")
	stockPriceCmd.Flags().IntVar(&stockPriceFlags.lookbackDays, "lookback-days", 0,
		"Number of most recent days to keep (overrides $LOOKBACK_DAYS)")
}

func runStockPrice(cmd *cobra.Command, args []string) error {
	verbose := getVerboseFlag(cmd)

	projectCfg, err := loadProjectConfig(runFlags.configPath)
	if err != nil {
		return err
	}
	cfg, err := buildStockPriceConfig(cmd, projectCfg)
	if err != nil {
		return err
	}
	clientCfg, err := buildExtractConfig(projectCfg)
	if err != nil {
		return err
	}
	timeout, err := resolveTimeout(cmd, projectCfg, runFlags.timeout)
	if err != nil {
		return err
	}

	logger := logging.NewConsoleLogger(verbose)
	client, err := extract.NewAlphaVantageClient(clientCfg, logger)
	if err != nil {
		return err
	}
	archiver, err := buildArchiver(projectCfg, logger)
	if err != nil {
		return err
	}

	pipeline := services.NewPipelineService(
		services.NewScopeManager(db.NewConnector, logger),
		manager.New(),
		logger,
		services.WithExtractor(client),
		services.WithArchiver(archiver),
	)

	ctx, cancel := runContext(timeout)
	defer cancel()

	result, err := pipeline.RunStockPrice(ctx, cfg)
	if err != nil {
		return fmt.Errorf("stock price load failed: %w", err)
	}
	return writeJSON(cmd.OutOrStdout(), result)
}

func runSessionSummary(cmd *cobra.Command, args []string) error {
	verbose := getVerboseFlag(cmd)

	projectCfg, err := loadProjectConfig(runFlags.configPath)
	if err != nil {
		return err
	}
	cfg, err := buildSessionSummaryConfig(projectCfg)
	if err != nil {
		return err
	}
	timeout, err := resolveTimeout(cmd, projectCfg, runFlags.timeout)
	if err != nil {
		return err
	}

	logger := logging.NewConsoleLogger(verbose)
	pipeline := services.NewPipelineService(
		services.NewScopeManager(db.NewConnector, logger),
		manager.New(),
		logger,
	)

	ctx, cancel := runContext(timeout)
	defer cancel()

	result, err := pipeline.RunSessionSummary(ctx, cfg)
	if err != nil {
		return fmt.Errorf("session summary load failed: %w", err)
	}
	return writeJSON(cmd.OutOrStdout(), result)
}

// writeJSON prints v as one line of JSON.
func writeJSON(w io.Writer, v any) error {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}
