package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "commerce-api",
	Short: "Commerce API - products, orders and stock reconciliation",
	Long: `Commerce API serves the product catalogue and order placement over HTTP.

Orders are checked against product stock and stored together with the stock
decrement in one database transaction. Order events are published to Kafka
when a broker is configured.

Configuration is read from an optional YAML file (--config) and overridden by
environment variables such as DATABASE_URL, KAFKA_BROKER and REDIS_URL.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML configuration file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
}
