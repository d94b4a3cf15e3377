//go:build wireinject
// +build wireinject

package di

import (
	"FinRank/internal/usecase"
	"FinRank/pkg/config"
	"FinRank/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,
		ProvideCache,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvidePriceSource,
		ProvideArtifactStore,
		ProvideRecommendationSink,
		ProvideEventPublisher,

		// Use cases
		ProvideRegistry,
		ProvideTrainer,
		ProvideRecommender,
		ProvideUniverse,
		ProvideOrchestrator,
		ProvideRecommendationsUseCase,
		ProvideRetrainScheduler,
		ProvideRetrainCommandHandler,

		// Application server
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeOrchestrator wires the retrain path only, for one-shot runs.
func InitializeOrchestrator(cfg *config.Config) (*usecase.Orchestrator, func(), error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,
		ProvideCache,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvidePriceSource,
		ProvideArtifactStore,
		ProvideEventPublisher,
		ProvideRegistry,
		ProvideTrainer,
		ProvideRecommender,
		ProvideUniverse,
		ProvideOrchestrator,
	)
	return nil, nil, nil
}
