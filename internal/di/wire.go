//go:build wireinject
// +build wireinject

package di

import (
	"SignalDesk/pkg/config"
	"SignalDesk/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideCache,
		ProvidePlatformAPI,
		ProvideScheduler,
		ProvideKafkaProducer,
		ProvideClickHouseClient,

		// Repositories
		ProvideCommitmentStore,
		ProvideArchive,
		ProvideWalletCache,
		ProvideHistoryView,

		// Event fan-out
		ProvideStreamHub,
		ProvideEventPipeline,

		// Use cases
		ProvideOrchestrator,

		// HTTP
		ProvideTradingHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
