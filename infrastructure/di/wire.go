//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"librefind/application/ports"
	"librefind/infrastructure/cache"
	"librefind/infrastructure/config"

	"github.com/google/wire"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideAWSConfig,
	ProvideRetryConfig,
	ProvideCatalogStore,
	ProvideEventPublisher,
	ProvideMetrics,
	ProvideCollector,
	ProvideTracer,
	ProvideCache,
	wire.Bind(new(ports.Cache), new(*cache.InMemoryCache)),
	ProvideDomainConfig,
	ProvideBreakerConfig,
	ProvideClassifier,
	ProvideDuplicateChecker,
	ProvideDebouncedChecker,
	ProvideCommandBus,
	ProvideQueryBus,
	ProvideJWTValidator,
	ProvideErrorHandler,
	ProvideRouter,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container. The returned
// cleanup releases background goroutines and flushes the logger.
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil // Wire will replace this
}
