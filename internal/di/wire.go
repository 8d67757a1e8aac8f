//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"PriceCast/pkg/config"
	"PriceCast/pkg/server"
)

var infraSet = wire.NewSet(
	ProvideLogger,
	ProvideRegistry,
	ProvideMetrics,
	ProvideCache,
	ProvideQuotaCounter,
	ProvideClickHouseClient,
	ProvideKafkaProducer,
)

var pipelineSet = wire.NewSet(
	ProvideMarketData,
	ProvideSentiment,
	ProvideGenerator,
	ProvideOrchestrator,
	ProvidePublisher,
	ProvidePipeline,
)

// InitializeApp wires up all dependencies and returns the application.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		infraSet,
		pipelineSet,
		ProvideLimiter,
		ProvideForecastHandler,
		ProvideHTTPServer,
		ProvideKafkaConsumer,
		ProvideApp,
	)
	return &server.App{}, nil
}

// InitializeCLI wires the pipeline for a single forecast run.
func InitializeCLI(cfg *config.Config) (*CLI, error) {
	wire.Build(
		infraSet,
		pipelineSet,
		ProvideCLI,
	)
	return &CLI{}, nil
}
