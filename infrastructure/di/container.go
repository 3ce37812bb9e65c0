package di

import (
	"librefind/application/commands/bus"
	"librefind/application/ports"
	querybus "librefind/application/queries/bus"
	"librefind/application/services"
	domainconfig "librefind/domain/config"
	"librefind/infrastructure/cache"
	"librefind/infrastructure/config"
	"librefind/interfaces/http/rest"
	"librefind/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config         *config.Config
	Logger         *zap.Logger
	AWSConfig      aws.Config
	Store          ports.CatalogStore
	Publisher      ports.EventPublisher
	Cache          *cache.InMemoryCache
	Metrics        *observability.Metrics
	Collector      *observability.Collector
	Tracer         *observability.Tracer
	DomainConfig   *domainconfig.DomainConfig
	Classifier     *services.PackageClassifier
	DuplicateCheck *services.DebouncedChecker
	CommandBus     *bus.CommandBus
	QueryBus       *querybus.QueryBus
	Router         *rest.Router
}
