//go:build wireinject
// +build wireinject

package di

import (
	"github.com/aleksgain/crypto-market-analyzer/pkg/config"
	"github.com/aleksgain/crypto-market-analyzer/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideCache,
		ProvidePublisher,
		ProvideStore,

		// Scheduling
		ProvideLimiter,
		ProvideQueue,

		// Signal engines
		ProvideAggregator,
		ProvideTechnicalEngine,

		// Use cases
		ProvideMarketData,
		ProvidePredictionEngine,
		ProvideAccuracyTracker,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil, nil
}
