package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "pricecast",
	Short:         "Stock price forecasting service",
	Long:          "PriceCast fetches price history, forecasts it with a decomposition or LSTM model and scores market sentiment.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (defaults and environment only when empty)")
	rootCmd.AddCommand(serveCmd, forecastCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "pricecast: %v\n", err)
		os.Exit(1)
	}
}
