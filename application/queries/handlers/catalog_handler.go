package handlers

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"

	"librefind/application/pipeline"
	"librefind/application/ports"
	"librefind/application/queries"
	"librefind/application/queries/bus"
	"librefind/application/services"
	"librefind/domain/config"
	"librefind/domain/core/entities"
	"librefind/pkg/errors"

	"go.uber.org/zap"
)

// ErrUnexpectedQuery is returned when a handler receives the wrong query type.
var ErrUnexpectedQuery = stderrors.New("unexpected query type")

// CatalogHandler answers every read of the catalog and the inventory.
type CatalogHandler struct {
	store        ports.CatalogStore
	classifier   *services.PackageClassifier
	alternatives *services.AlternativeCatalog
	duplicates   *services.DuplicateChecker
	cfg          *config.DomainConfig
	logger       *zap.Logger
}

func NewCatalogHandler(
	store ports.CatalogStore,
	classifier *services.PackageClassifier,
	alternatives *services.AlternativeCatalog,
	duplicates *services.DuplicateChecker,
	cfg *config.DomainConfig,
	logger *zap.Logger,
) *CatalogHandler {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogHandler{
		store:        store,
		classifier:   classifier,
		alternatives: alternatives,
		duplicates:   duplicates,
		cfg:          cfg,
		logger:       logger,
	}
}

// Register binds every catalog query to b. The target list is viewer
// independent, so it goes through caching when a middleware is given.
func (h *CatalogHandler) Register(b *bus.QueryBus, caching *bus.CachingMiddleware, metrics *bus.MetricsMiddleware) error {
	wrap := func(fn bus.QueryHandlerFunc, cached bool) bus.QueryHandler {
		var handler bus.QueryHandler = fn
		if cached && caching != nil {
			handler = caching.Wrap(handler)
		}
		if metrics != nil {
			handler = metrics.Wrap(handler)
		}
		return handler
	}

	routes := []struct {
		query  bus.Query
		fn     bus.QueryHandlerFunc
		cached bool
	}{
		{queries.ListTargetsQuery{}, h.listTargets, true},
		{queries.GetAlternativesQuery{}, h.getAlternatives, false},
		{queries.ListFeedbackQuery{}, h.listFeedback, false},
		{queries.MySubmissionsQuery{}, h.mySubmissions, false},
		{queries.MyReportsQuery{}, h.myReports, false},
		{queries.GetProfileQuery{}, h.getProfile, false},
		{queries.CheckDuplicateQuery{}, h.checkDuplicate, false},
		{queries.ClassifyInventoryQuery{}, h.classifyInventory, false},
	}
	for _, r := range routes {
		if err := b.Register(r.query, wrap(r.fn, r.cached)); err != nil {
			return err
		}
	}
	return nil
}

// listTargets returns []*entities.ProprietaryTarget ordered by name.
func (h *CatalogHandler) listTargets(ctx context.Context, query bus.Query) (interface{}, error) {
	targets, err := h.store.ListTargets(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(targets, func(i, j int) bool {
		return strings.ToLower(targets[i].Name) < strings.ToLower(targets[j].Name)
	})
	return targets, nil
}

// getAlternatives returns []entities.Alternative. An unknown target is an
// empty list, not an error.
func (h *CatalogHandler) getAlternatives(ctx context.Context, query bus.Query) (interface{}, error) {
	q, ok := query.(queries.GetAlternativesQuery)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedQuery, query)
	}
	alts := h.alternatives.ForTarget(ctx, strings.TrimSpace(q.PackageName), viewer(q.ViewerID))
	if alts == nil {
		alts = []entities.Alternative{}
	}
	return alts, nil
}

// listFeedback returns approved []*entities.Feedback, most helpful first
// and oldest first among equals.
func (h *CatalogHandler) listFeedback(ctx context.Context, query bus.Query) (interface{}, error) {
	q, ok := query.(queries.ListFeedbackQuery)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedQuery, query)
	}
	items, err := h.store.ListFeedback(ctx, q.AlternativeID, entities.ReviewApproved)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].VotesHelpful != items[j].VotesHelpful {
			return items[i].VotesHelpful > items[j].VotesHelpful
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if items == nil {
		items = []*entities.Feedback{}
	}
	return items, nil
}

func (h *CatalogHandler) mySubmissions(ctx context.Context, query bus.Query) (interface{}, error) {
	q, ok := query.(queries.MySubmissionsQuery)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedQuery, query)
	}
	subs, err := h.store.ListSubmissionsByUser(ctx, q.UserID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(subs, func(i, j int) bool {
		return subs[i].CreatedAt.After(subs[j].CreatedAt)
	})
	if subs == nil {
		subs = []*entities.Submission{}
	}
	return subs, nil
}

func (h *CatalogHandler) myReports(ctx context.Context, query bus.Query) (interface{}, error) {
	q, ok := query.(queries.MyReportsQuery)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedQuery, query)
	}
	reports, err := h.store.ListReportsByUser(ctx, q.UserID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].CreatedAt.After(reports[j].CreatedAt)
	})
	if reports == nil {
		reports = []*entities.Report{}
	}
	return reports, nil
}

func (h *CatalogHandler) getProfile(ctx context.Context, query bus.Query) (interface{}, error) {
	q, ok := query.(queries.GetProfileQuery)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedQuery, query)
	}
	profile, err := h.store.GetProfile(ctx, q.UserID)
	if errors.IsNotFound(err) {
		return nil, errors.ErrProfileNotSetUp.Clone()
	}
	return profile, err
}

func (h *CatalogHandler) checkDuplicate(ctx context.Context, query bus.Query) (interface{}, error) {
	q, ok := query.(queries.CheckDuplicateQuery)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedQuery, query)
	}
	return h.duplicates.Check(ctx, q.Name, q.PackageName), nil
}

// classifyInventory returns a queries.InventoryReport.
func (h *CatalogHandler) classifyInventory(ctx context.Context, query bus.Query) (interface{}, error) {
	q, ok := query.(queries.ClassifyInventoryQuery)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedQuery, query)
	}
	if err := q.CheckSize(h.cfg.MaxPackagesPerScan); err != nil {
		return nil, err
	}

	apps, err := h.classifier.ClassifyAll(ctx, q.Packages)
	if err != nil {
		return nil, err
	}

	ignored := make(map[string]struct{}, len(q.Ignored))
	for _, pkg := range q.Ignored {
		ignored[strings.TrimSpace(pkg)] = struct{}{}
	}

	state := pipeline.Evaluate(apps, ignored, q.Query, q.Status)
	h.logger.Debug("Inventory classified",
		zap.Int("packages", len(q.Packages)),
		zap.Int("visible", len(state.Apps)),
	)
	return queries.InventoryReport{Apps: state.Apps, Score: state.Score}, nil
}

// viewer adapts a request's user id to the session port.
type viewer string

func (v viewer) CurrentUserID() (string, bool) { return string(v), v != "" }
