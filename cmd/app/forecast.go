package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"PriceCast/internal/di"
	"PriceCast/internal/domain/models"
	"PriceCast/pkg/config"
	pkghttp "PriceCast/pkg/http"
)

var forecastReq models.ForecastRequest

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Run one forecast and print the response as JSON",
	RunE:  runForecast,
}

func init() {
	f := forecastCmd.Flags()
	f.StringVar(&forecastReq.Ticker, "ticker", "", "ticker symbol, e.g. AAPL")
	f.IntVar(&forecastReq.HorizonDays, "horizon", 7, "days to forecast (1-30)")
	f.StringVar(&forecastReq.Backend, "backend", "", "decomposition or sequence (config default when empty)")
	f.StringVar(&forecastReq.Sentiment, "sentiment", "news", "sentiment source: news, social, feed or none")
	_ = forecastCmd.MarkFlagRequired("ticker")
}

func runForecast(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	// Keep stdout for the JSON document.
	cfg.Logger.Output = "stderr"
	cfg.Kafka.Enabled = false

	req := forecastReq
	if req.Backend == "" {
		req.Backend = cfg.Forecast.DefaultBackend
	}
	if verr := pkghttp.ValidateStruct(cmd.Context(), &req); verr != nil {
		b, _ := json.Marshal(verr)
		return fmt.Errorf("invalid request: %s", b)
	}

	cli, err := di.InitializeCLI(cfg)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	defer cli.Close()

	resp, err := cli.Pipeline.Run(cmd.Context(), req)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
