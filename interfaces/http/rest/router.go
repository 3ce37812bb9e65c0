package rest

import (
	"net/http"
	"time"

	"librefind/application/commands/bus"
	querybus "librefind/application/queries/bus"
	"librefind/interfaces/http/rest/handlers"
	"librefind/interfaces/http/rest/middleware"
	"librefind/pkg/auth"
	"librefind/pkg/common"
	apperrors "librefind/pkg/errors"
	"librefind/pkg/observability"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// RouterConfig holds the knobs the HTTP surface needs from configuration.
type RouterConfig struct {
	AllowedOrigins    []string
	EnableCORS        bool
	WriteRateLimitRPM int
	RequestTimeout    time.Duration
}

// Router creates and configures the HTTP router
type Router struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	validator  *auth.JWTValidator
	collector  *observability.Collector
	errs       *apperrors.ErrorHandler
	writes     *auth.UserRateLimiter
	cfg        RouterConfig
	logger     *zap.Logger
}

// NewRouter creates a new router instance. A nil collector disables
// /metrics and request instrumentation.
func NewRouter(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	validator *auth.JWTValidator,
	collector *observability.Collector,
	errs *apperrors.ErrorHandler,
	cfg RouterConfig,
	logger *zap.Logger,
) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	if errs == nil {
		errs = apperrors.NewErrorHandler(logger, false)
	}
	if cfg.WriteRateLimitRPM <= 0 {
		cfg.WriteRateLimitRPM = 30
	}
	return &Router{
		commandBus: commandBus,
		queryBus:   queryBus,
		validator:  validator,
		collector:  collector,
		errs:       errs,
		writes:     auth.NewUserRateLimiter(cfg.WriteRateLimitRPM),
		cfg:        cfg,
		logger:     logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.Logger(rt.logger))
	router.Use(rt.errs.Middleware)
	if rt.collector != nil {
		router.Use(rt.collector.Middleware)
	}
	if rt.cfg.RequestTimeout > 0 {
		router.Use(chimiddleware.Timeout(rt.cfg.RequestTimeout))
	}
	router.Use(versionMiddleware)

	if rt.cfg.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   rt.cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	router.Get("/health", rt.healthCheck)
	if rt.collector != nil {
		router.Method(http.MethodGet, "/metrics", rt.collector.Handler())
	}

	catalog := handlers.NewCatalogHandler(rt.commandBus, rt.queryBus, rt.errs, rt.logger)
	community := handlers.NewCommunityHandler(rt.commandBus, rt.queryBus, rt.errs, rt.logger)

	router.Route("/api/"+common.APIVersion, func(r chi.Router) {
		// Anonymous reads. A valid token still identifies the viewer so
		// alternatives carry their rating.
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuthenticate(rt.validator, rt.errs, rt.logger))

			r.Post("/inventory/classify", catalog.ClassifyInventory)
			r.Get("/targets", catalog.ListTargets)
			r.Get("/targets/{package}/alternatives", catalog.GetAlternatives)
			r.Get("/alternatives/{id}/feedback", catalog.ListFeedback)
			r.Get("/duplicates", catalog.CheckDuplicate)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(rt.validator, rt.errs, rt.logger))

			r.Get("/submissions/mine", community.MySubmissions)
			r.Get("/reports/mine", community.MyReports)
			r.Get("/profile", community.GetProfile)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimit(rt.writes, middleware.UserKey, rt.errs, rt.logger))

				r.Put("/alternatives/{id}/rating", community.RateAlternative)
				r.Post("/alternatives/{id}/votes", community.CastVote)
				r.Post("/alternatives/{id}/feedback", community.SubmitFeedback)
				r.Post("/alternatives/{id}/feedback/{feedbackID}/helpful", community.VoteHelpful)
				r.Post("/submissions", community.SubmitApp)
				r.Post("/proposals", community.ProposeAlternative)
				r.Post("/reports", community.SubmitReport)
				r.Put("/profile", community.SetupProfile)
			})
		})
	})

	return router
}

// Close releases the rate limiter's background sweep.
func (rt *Router) Close() {
	rt.writes.Stop()
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, r *http.Request) {
	common.RespondJSON(w, r, http.StatusOK, map[string]string{"status": "healthy"})
}

// versionMiddleware adds the API version header to all responses
func versionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-API-Version", common.APIVersion)
		next.ServeHTTP(w, r)
	})
}
