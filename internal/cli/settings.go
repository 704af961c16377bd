package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vvka-141/stageswap/internal/archive"
	"github.com/vvka-141/stageswap/internal/config"
	"github.com/vvka-141/stageswap/internal/db"
	"github.com/vvka-141/stageswap/internal/extract"
	"github.com/vvka-141/stageswap/pkg/stageswap"
)

// Environment variables read by the commands, on top of the PG*/cloud
// variables handled by the connection resolver.
const (
	envAPIKey        = "VANTAGE_API_KEY"
	envSymbol        = "STOCK_SYMBOL"
	envTargetDB      = "TARGET_DB"
	envTargetSchema  = "TARGET_SCHEMA"
	envTargetTable   = "TARGET_TABLE"
	envLookbackDays  = "LOOKBACK_DAYS"
	envArchiveAccess = "STAGESWAP_ARCHIVE_ACCESS_KEY"
	envArchiveSecret = "STAGESWAP_ARCHIVE_SECRET_KEY"
)

// loadProjectConfig reads stageswap.yaml. With no explicit path a missing
// file in the working directory yields an empty config; an explicit path
// must exist.
func loadProjectConfig(path string) (*config.ProjectConfig, error) {
	if path == "" {
		cfg, err := config.Load(".")
		if errors.Is(err, config.ErrConfigNotFound) {
			return &config.ProjectConfig{}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w: %w", config.ConfigFileName, stageswap.ErrInvalidConfig, err)
		}
		return cfg, nil
	}

	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w: %w", path, stageswap.ErrInvalidConfig, err)
	}
	return cfg, nil
}

// resolveTimeout returns the effective run timeout, preferring stageswap.yaml if the flag wasn't set.
func resolveTimeout(cmd *cobra.Command, projectCfg *config.ProjectConfig, flagTimeout time.Duration) (time.Duration, error) {
	if cmd.Flags().Changed("timeout") {
		return flagTimeout, nil
	}
	timeout, err := config.ParseDuration("timeout", projectCfg.Timeout, flagTimeout)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", stageswap.ErrInvalidConfig, err)
	}
	return timeout, nil
}

// resolveRunConnection resolves the warehouse connection. A non-empty
// database overrides the one from the connection sources, since a session
// can only reach tables in its own database.
func resolveRunConnection(connFlag string, projectCfg *config.ProjectConfig, database string) (*stageswap.ConnectionConfig, error) {
	connConfig, err := db.ResolveConnection(connFlag, db.LoadFromEnvironment(), &projectCfg.Connection)
	if err != nil {
		return nil, err
	}
	if database != "" {
		connConfig.Database = database
	}
	return connConfig, nil
}

// buildStockPriceConfig assembles the price run config.
// Precedence: flag > environment > stageswap.yaml > default.
func buildStockPriceConfig(cmd *cobra.Command, projectCfg *config.ProjectConfig) (stageswap.StockPriceConfig, error) {
	file := projectCfg.StockPrice

	symbol := firstNonEmpty(os.Getenv(envSymbol), file.Symbol, stageswap.DefaultSymbol)
	if cmd.Flags().Changed("symbol") {
		symbol = stockPriceFlags.symbol
	}

	lookback := stageswap.DefaultLookbackDays
	if file.LookbackDays != 0 {
		lookback = file.LookbackDays
	}
	if v := os.Getenv(envLookbackDays); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return stageswap.StockPriceConfig{}, fmt.Errorf("invalid $%s value %q: %w", envLookbackDays, v, stageswap.ErrInvalidConfig)
		}
		lookback = n
	}
	if cmd.Flags().Changed("lookback-days") {
		lookback = stockPriceFlags.lookbackDays
	}

	target := stageswap.TableRef{
		Database: firstNonEmpty(os.Getenv(envTargetDB), file.Database),
		Schema:   firstNonEmpty(os.Getenv(envTargetSchema), file.Schema, stageswap.DefaultTargetSchema),
		Name:     firstNonEmpty(os.Getenv(envTargetTable), file.Table, stageswap.DefaultTargetTable),
	}

	connConfig, err := resolveRunConnection(runFlags.connection, projectCfg, target.Database)
	if err != nil {
		return stageswap.StockPriceConfig{}, err
	}

	return stageswap.StockPriceConfig{
		Connection:   connConfig,
		Symbol:       strings.ToUpper(strings.TrimSpace(symbol)),
		Target:       target,
		LookbackDays: lookback,
		DryRun:       runFlags.dryRun,
	}, nil
}

// buildSessionSummaryConfig assembles the swap run config from stageswap.yaml,
// filling in the analytics defaults for target and keys. select_sql has no default.
func buildSessionSummaryConfig(projectCfg *config.ProjectConfig) (stageswap.SessionSummaryConfig, error) {
	file := projectCfg.SessionSummary

	target := stageswap.TableRef{
		Database: file.Database,
		Schema:   firstNonEmpty(file.Schema, stageswap.DefaultSessionSchema),
		Name:     firstNonEmpty(file.Table, stageswap.DefaultSessionTable),
	}
	connConfig, err := resolveRunConnection(runFlags.connection, projectCfg, target.Database)
	if err != nil {
		return stageswap.SessionSummaryConfig{}, err
	}

	// An explicit empty primary_key list disables the uniqueness check.
	primaryKey := file.PrimaryKey
	if primaryKey == nil {
		primaryKey = slices.Clone(stageswap.DefaultSessionPrimaryKey)
	}
	businessKey := file.BusinessKey
	if len(businessKey) == 0 {
		businessKey = slices.Clone(stageswap.DefaultSessionBusinessKey)
	}

	return stageswap.SessionSummaryConfig{
		Connection:    connConfig,
		Target:        target,
		SelectSQL:     file.SelectSQL,
		ScratchPrefix: file.ScratchPrefix,
		Validation: stageswap.ValidationSpec{
			PrimaryKey:  primaryKey,
			BusinessKey: businessKey,
		},
		DryRun: runFlags.dryRun,
	}, nil
}

// buildExtractConfig assembles the provider client config. The API key is
// only read from the environment.
func buildExtractConfig(projectCfg *config.ProjectConfig) (extract.Config, error) {
	file := projectCfg.StockPrice

	timeout, err := config.ParseDuration("api_timeout", file.APITimeout, stageswap.DefaultAPITimeout)
	if err != nil {
		return extract.Config{}, fmt.Errorf("%w: %w", stageswap.ErrInvalidConfig, err)
	}

	return extract.Config{
		BaseURL: firstNonEmpty(file.APIBaseURL, stageswap.DefaultAPIBaseURL),
		APIKey:  os.Getenv(envAPIKey),
		Timeout: timeout,
	}, nil
}

// buildArchiver returns the configured payload archiver, or a no-op one when
// archiving is disabled.
func buildArchiver(projectCfg *config.ProjectConfig, logger stageswap.Logger) (stageswap.Archiver, error) {
	file := projectCfg.Archive
	if !file.Enabled {
		return archive.NopArchiver{}, nil
	}

	archiver, err := archive.NewMinioArchiver(archive.Config{
		Endpoint:  file.Endpoint,
		Bucket:    file.Bucket,
		Region:    file.Region,
		Prefix:    file.Prefix,
		AccessKey: os.Getenv(envArchiveAccess),
		SecretKey: os.Getenv(envArchiveSecret),
		UseSSL:    file.UseSSL,
	}, logger)
	if err != nil {
		return nil, err
	}
	return archiver, nil
}

// runContext bounds a run by timeout and cancels it on SIGINT/SIGTERM.
// Commit and swap steps detach from this context, so an interrupt cannot
// leave them half-applied.
func runContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(os.Stderr, "\n[INTERRUPT] Received interrupt signal, cancelling run...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
