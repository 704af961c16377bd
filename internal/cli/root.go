package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "stageswap",
	Short: "Staged warehouse loads with validate-then-swap",
	Long: `stageswap loads a table in three steps: stage the new data next to the
target, validate it, and only then make it visible. Readers see either the
previous content or the new content, never a partial load.

Two pipelines are available:
  run stock-price       Fetch daily prices and fully refresh the price table
  run session-summary   Materialize a select into a scratch table and swap it in

stageswap is meant to be invoked by a scheduler that allows one run per
target at a time.

Exit Codes:
  0  - Success (or dry run validated)
  1  - General error
  2  - CLI usage error (invalid arguments or flags)
  3  - Panic or unexpected system error
  10 - Invalid configuration
  11 - Warehouse connection failed
  20 - Source unavailable (provider error, throttle notice, or unrecognized payload)
  21 - Primary key uniqueness failed
  22 - Duplicate rows detected
  23 - Store operation failed`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A missing .env file is normal.
		_ = godotenv.Load()
	},
}

// Execute runs the root command
func Execute() error {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		printVersionInfo()
		return nil
	}
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output for all commands")
}

// getVerboseFlag safely retrieves the verbose flag value
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to get verbose flag: %v\n", err)
		return false
	}
	return verbose
}
