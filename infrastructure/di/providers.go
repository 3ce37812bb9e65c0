package di

import (
	"context"
	"fmt"
	"time"

	"librefind/application/commands"
	"librefind/application/commands/bus"
	commandhandlers "librefind/application/commands/handlers"
	"librefind/application/ports"
	querybus "librefind/application/queries/bus"
	queryhandlers "librefind/application/queries/handlers"
	"librefind/application/services"
	domainconfig "librefind/domain/config"
	"librefind/domain/core/validators"
	"librefind/infrastructure/cache"
	"librefind/infrastructure/config"
	"librefind/infrastructure/messaging"
	"librefind/infrastructure/messaging/eventbridge"
	"librefind/infrastructure/persistence/abstractions"
	"librefind/infrastructure/persistence/dynamodb"
	"librefind/infrastructure/persistence/memory"
	"librefind/interfaces/http/rest"
	"librefind/pkg/auth"
	apperrors "librefind/pkg/errors"
	"librefind/pkg/observability"
	"librefind/pkg/utils"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
)

// devJWTSecret lets a development server start without JWT_SECRET. Config
// validation refuses to run production without a real one.
const devJWTSecret = "librefind-development-secret"

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.IsProduction() {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, nil, err
	}
	logger = logger.With(zap.String("environment", cfg.Environment))
	return logger, func() { _ = logger.Sync() }, nil
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWS.Region),
	)
}

// ProvideRetryConfig maps the rating retry settings onto the store's
// optimistic-transaction policy.
func ProvideRetryConfig(cfg *config.Config) abstractions.RetryConfig {
	return abstractions.RetryConfig{
		MaxAttempts:   cfg.Retry.MaxAttempts,
		BaseDelay:     cfg.Retry.BaseDelay,
		MaxDelay:      cfg.Retry.MaxDelay,
		BackoffFactor: cfg.Retry.BackoffFactor,
		JitterFactor:  cfg.Retry.JitterFactor,
	}
}

// ProvideCatalogStore picks DynamoDB when a table is configured and the
// in-memory store otherwise, seeded from CATALOG_SEED when set.
func ProvideCatalogStore(awsCfg aws.Config, cfg *config.Config, retry abstractions.RetryConfig, logger *zap.Logger) (ports.CatalogStore, error) {
	if cfg.UsesDynamoDB() {
		logger.Info("Using DynamoDB catalog", zap.String("table", cfg.AWS.TableName))
		return dynamodb.NewCatalogStore(awsdynamodb.NewFromConfig(awsCfg), cfg.AWS.TableName, retry, logger), nil
	}

	store := memory.NewCatalogStore(retry, logger)
	if cfg.AWS.CatalogSeedPath != "" {
		if err := store.LoadSeedFile(cfg.AWS.CatalogSeedPath); err != nil {
			return nil, fmt.Errorf("failed to seed catalog: %w", err)
		}
	}
	logger.Info("Using in-memory catalog", zap.String("seed", cfg.AWS.CatalogSeedPath))
	return store, nil
}

// ProvideEventPublisher publishes to EventBridge when a bus is configured.
// Without one, events are only logged.
func ProvideEventPublisher(awsCfg aws.Config, cfg *config.Config, logger *zap.Logger) ports.EventPublisher {
	if cfg.AWS.EventBusName == "" {
		return messaging.NewLogPublisher(logger)
	}
	return eventbridge.NewPublisher(awseventbridge.NewFromConfig(awsCfg), cfg.AWS.EventBusName, logger)
}

// ProvideMetrics creates the CloudWatch reporter. It is inert unless
// metrics are enabled.
func ProvideMetrics(awsCfg aws.Config, cfg *config.Config, logger *zap.Logger) *observability.Metrics {
	namespace := fmt.Sprintf("%s/%s", cfg.AWS.MetricsNamespace, cfg.Environment)
	if !cfg.Features.EnableMetrics {
		return observability.NewMetrics(namespace, nil, logger)
	}
	return observability.NewMetrics(namespace, awscloudwatch.NewFromConfig(awsCfg), logger)
}

func ProvideCollector() *observability.Collector {
	return observability.NewCollector("librefind")
}

func ProvideTracer() *observability.Tracer {
	return observability.NewTracer("librefind-api")
}

// ProvideCache creates the process-local cache for target lookups and
// query results.
func ProvideCache() (*cache.InMemoryCache, func()) {
	c := cache.NewInMemoryCache(time.Minute)
	return c, c.Close
}

// ProvideDomainConfig applies the configured scan settings on top of the
// default business rules.
func ProvideDomainConfig(cfg *config.Config) *domainconfig.DomainConfig {
	d := domainconfig.DefaultDomainConfig()
	d.ScanWorkers = cfg.Classifier.ScanWorkers
	d.TargetCacheTTL = cfg.Classifier.CacheTTL
	return d
}

func ProvideBreakerConfig(cfg *config.Config) services.BreakerConfig {
	b := services.DefaultBreakerConfig()
	b.Timeout = cfg.Classifier.BreakerTimeout
	b.Interval = cfg.Classifier.BreakerInterval
	b.FailureThreshold = cfg.Classifier.BreakerThreshold
	return b
}

func ProvideClassifier(
	store ports.CatalogStore,
	c ports.Cache,
	breaker services.BreakerConfig,
	collector *observability.Collector,
	domainCfg *domainconfig.DomainConfig,
	logger *zap.Logger,
) *services.PackageClassifier {
	return services.NewPackageClassifier(store, store, c, breaker, collector, domainCfg, logger)
}

// ProvideCommandBus creates a command bus with every write handler
// registered.
func ProvideCommandBus(
	store ports.CatalogStore,
	publisher ports.EventPublisher,
	collector *observability.Collector,
	metrics *observability.Metrics,
	tracer *observability.Tracer,
	domainCfg *domainconfig.DomainConfig,
	logger *zap.Logger,
) (*bus.CommandBus, error) {
	commandBus := bus.NewCommandBus(
		bus.LoggingMiddleware(logger),
		bus.TracingMiddleware(tracer),
		bus.MetricsMiddleware(metrics),
	)
	clock := utils.SystemClock{}

	ratings := services.NewRatingService(store, publisher, collector, clock, logger)
	if err := commandBus.Register(commands.RateAlternativeCommand{}, commandhandlers.NewRateAlternativeHandler(ratings)); err != nil {
		return nil, err
	}
	if err := commandBus.Register(commands.CastVoteCommand{}, commandhandlers.NewCastVoteHandler(ratings)); err != nil {
		return nil, err
	}

	community := commandhandlers.NewCommunityHandler(
		store,
		publisher,
		validators.NewContributionValidator(domainCfg),
		collector,
		clock,
		logger,
	)
	if err := community.Register(commandBus); err != nil {
		return nil, err
	}
	return commandBus, nil
}

func ProvideDuplicateChecker(store ports.CatalogStore, logger *zap.Logger) *services.DuplicateChecker {
	return services.NewDuplicateChecker(store, store, logger)
}

// ProvideDebouncedChecker serves duplicate checks for input that is still
// being typed.
func ProvideDebouncedChecker(checker *services.DuplicateChecker, domainCfg *domainconfig.DomainConfig) *services.DebouncedChecker {
	return services.NewDebouncedChecker(checker, domainCfg.DuplicateCheckDebounce)
}

// ProvideQueryBus creates a query bus with every catalog read registered.
func ProvideQueryBus(
	store ports.CatalogStore,
	classifier *services.PackageClassifier,
	duplicates *services.DuplicateChecker,
	c ports.Cache,
	collector *observability.Collector,
	domainCfg *domainconfig.DomainConfig,
	logger *zap.Logger,
) (*querybus.QueryBus, error) {
	queryBus := querybus.NewQueryBus()
	handler := queryhandlers.NewCatalogHandler(
		store,
		classifier,
		services.NewAlternativeCatalog(classifier, store, logger),
		duplicates,
		domainCfg,
		logger,
	)
	err := handler.Register(
		queryBus,
		querybus.NewCachingMiddleware(c, domainCfg.TargetCacheTTL),
		querybus.NewMetricsMiddleware(collector),
	)
	if err != nil {
		return nil, err
	}
	return queryBus, nil
}

// ProvideJWTValidator validates the bearer tokens issued by the identity
// provider.
func ProvideJWTValidator(cfg *config.Config, logger *zap.Logger) (*auth.JWTValidator, error) {
	secret := cfg.Auth.JWTSecret
	if secret == "" && cfg.Auth.JWTAlgorithm == "HS256" && !cfg.IsProduction() {
		logger.Warn("JWT_SECRET not set, using the development secret")
		secret = devJWTSecret
	}
	return auth.NewJWTValidator(auth.JWTConfig{
		SigningMethod: cfg.Auth.JWTAlgorithm,
		PublicKey:     cfg.Auth.JWTPublicKey,
		SecretKey:     secret,
		Issuer:        cfg.Auth.JWTIssuer,
		Audience:      cfg.Auth.JWTAudience,
	})
}

func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger) *apperrors.ErrorHandler {
	return apperrors.NewErrorHandler(logger, cfg.IsDevelopment())
}

// ProvideRouter creates the HTTP surface. The cleanup stops the write
// limiter's sweep.
func ProvideRouter(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	validator *auth.JWTValidator,
	collector *observability.Collector,
	errs *apperrors.ErrorHandler,
	cfg *config.Config,
	logger *zap.Logger,
) (*rest.Router, func()) {
	router := rest.NewRouter(commandBus, queryBus, validator, collector, errs, rest.RouterConfig{
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		EnableCORS:        cfg.Features.EnableCORS,
		WriteRateLimitRPM: cfg.Auth.WriteRateLimitRPM,
		RequestTimeout:    cfg.Server.WriteTimeout,
	}, logger)
	return router, router.Close
}
