// Command protectag classifies catalog products for protection eligibility
// and keeps their marker tags in sync.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/cognicore/protectag/internal/logger"
	"github.com/cognicore/protectag/internal/settings"
)

var (
	configPath string
	jsonLogs   bool
	cfg        *settings.Settings
)

var rootCmd = &cobra.Command{
	Use:   "protectag",
	Short: "Protection eligibility tagging for product catalogs",
	Long: `protectag decides which catalog products can be sold with a protection
plan, picks their protection category and writes the protection_on,
protection_off and protection_cat<N> marker tags.

Examples:
  protectag serve
  protectag evaluate --shop demo.myshopify.com --clean-sweep
  protectag clear-tags --shop demo.myshopify.com
  protectag classify --title "Samsung 55in OLED TV"
  protectag seed --file seed.yaml`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("json-logs") {
			s.Log.JSON = jsonLogs
		}
		if err := logger.Initialize(s.Log.JSON, s.Log.Level); err != nil {
			return errors.Wrap(err, "initialize logger")
		}
		cfg = s
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./protectag.yaml when present)")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "write JSON logs to stderr")

	rootCmd.AddCommand(serveCmd, evaluateCmd, clearTagsCmd, classifyCmd, seedCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
