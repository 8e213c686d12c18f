//go:build wireinject
// +build wireinject

package di

import (
	"StratGate/pkg/config"
	"StratGate/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients (nil when disabled in config)
		ProvideReportStore,
		ProvidePublisher,
		ProvideSeriesProvider,

		// Use cases
		ProvidePipeline,
		ProvideOrchestrator,

		// HTTP surface
		ProvideReportsHandler,
		ProvideApp,
	)
	return nil, nil
}
