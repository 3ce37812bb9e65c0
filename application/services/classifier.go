package services

import (
	"context"
	stderrors "errors"
	"sort"
	"strings"
	"sync"
	"time"

	"librefind/application/ports"
	"librefind/domain/config"
	"librefind/domain/core/entities"
	"librefind/domain/core/valueobjects"
	"librefind/pkg/errors"
	"librefind/pkg/observability"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig tunes the circuit breaker in front of catalog lookups.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns a default configuration for circuit breaker
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "catalog-lookup",
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// PackageClassifier maps installed packages to a sovereignty status by
// looking them up in the proprietary-target catalog.
//
// Read failures never surface: a failed or rejected lookup is treated as
// "not in the catalog" so a scan always completes with whatever it could
// resolve.
type PackageClassifier struct {
	targets      ports.TargetReader
	alternatives ports.AlternativeReader
	cache        ports.Cache
	breaker      *gobreaker.CircuitBreaker
	collector    *observability.Collector
	cfg          *config.DomainConfig
	logger       *zap.Logger
}

func NewPackageClassifier(
	targets ports.TargetReader,
	alternatives ports.AlternativeReader,
	cache ports.Cache,
	breakerCfg BreakerConfig,
	collector *observability.Collector,
	cfg *config.DomainConfig,
	logger *zap.Logger,
) *PackageClassifier {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PackageClassifier{
		targets:      targets,
		alternatives: alternatives,
		cache:        cache,
		breaker:      newLookupBreaker(breakerCfg, logger),
		collector:    collector,
		cfg:          cfg,
		logger:       logger,
	}
}

func newLookupBreaker(c BreakerConfig, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        c.Name,
		MaxRequests: c.MaxRequests,
		Interval:    c.Interval,
		Timeout:     c.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < c.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= c.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		// A missing record is an answer, not a fault. A lookup abandoned
		// because its scan was superseded says nothing about the catalog.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.IsNotFound(err) ||
				stderrors.Is(err, context.Canceled) ||
				stderrors.Is(err, context.DeadlineExceeded)
		},
	})
}

// Classify resolves one package. A KnownFOSS package is FOSS without any
// lookup; otherwise the presence of a proprietary-target record decides.
func (c *PackageClassifier) Classify(ctx context.Context, pkg entities.InstalledPackage) entities.AppItem {
	item := entities.AppItem{
		PackageName: pkg.PackageName,
		Label:       pkg.Label,
		Status:      entities.StatusUnknown,
	}
	if item.Label == "" {
		item.Label = pkg.PackageName
	}

	switch {
	case pkg.KnownFOSS:
		item.Status = entities.StatusFOSS
	case strings.TrimSpace(pkg.PackageName) == "":
	default:
		if target := c.lookupTarget(ctx, pkg.PackageName); target != nil {
			item.Status = entities.StatusProprietary
		}
	}

	if c.collector != nil {
		c.collector.Classifications.WithLabelValues(string(item.Status)).Inc()
	}
	return item
}

// ClassifyAll classifies pkgs with a bounded worker pool and returns the
// items in input order. Cancelling ctx abandons the scan: the result is
// ctx.Err() and no partial list.
func (c *PackageClassifier) ClassifyAll(ctx context.Context, pkgs []entities.InstalledPackage) ([]entities.AppItem, error) {
	items := make([]entities.AppItem, len(pkgs))
	workers := c.cfg.ScanWorkers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(pkgs) {
		workers = len(pkgs)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				items[i] = c.Classify(ctx, pkgs[i])
			}
		}()
	}

feed:
	for i := range pkgs {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// GetAlternatives resolves the target's alternatives concurrently. Ids that
// fail to resolve are dropped; the rest keep the target's curator order.
func (c *PackageClassifier) GetAlternatives(ctx context.Context, packageName string) []entities.Alternative {
	target := c.lookupTarget(ctx, packageName)
	if target == nil || len(target.Alternatives) == 0 {
		return nil
	}

	resolved := make([]*entities.Alternative, len(target.Alternatives))
	var wg sync.WaitGroup
	for i, id := range target.Alternatives {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			alt, err := c.fetch(ctx, func() (interface{}, error) {
				return c.alternatives.GetAlternative(ctx, id)
			})
			if err != nil {
				if !errors.IsNotFound(err) {
					c.logger.Debug("Dropping unresolved alternative",
						zap.String("package", packageName),
						zap.String("alternativeID", id),
						zap.Error(err),
					)
				}
				return
			}
			if a, ok := alt.(*entities.Alternative); ok && a != nil {
				resolved[i] = a
			}
		}(i, id)
	}
	wg.Wait()

	out := make([]entities.Alternative, 0, len(resolved))
	for _, a := range resolved {
		if a != nil {
			out = append(out, *a)
		}
	}
	return out
}

// lookupTarget returns nil for "not a proprietary target", which includes
// every kind of lookup failure.
func (c *PackageClassifier) lookupTarget(ctx context.Context, packageName string) *entities.ProprietaryTarget {
	key := "target:" + valueobjects.SanitizeKey(packageName)
	if c.cache != nil {
		if v, ok := c.cache.Get(ctx, key); ok {
			if t, ok := v.(*entities.ProprietaryTarget); ok {
				c.cacheHit(true)
				return t
			}
		}
		c.cacheHit(false)
	}

	v, err := c.fetch(ctx, func() (interface{}, error) {
		return c.targets.GetTarget(ctx, packageName)
	})
	if err != nil {
		if !errors.IsNotFound(err) {
			c.logger.Debug("Target lookup failed, classifying as unknown",
				zap.String("package", packageName),
				zap.Error(err),
			)
		}
		return nil
	}
	target, ok := v.(*entities.ProprietaryTarget)
	if !ok || target == nil {
		return nil
	}
	if c.cache != nil {
		_ = c.cache.Set(ctx, key, target, c.cfg.TargetCacheTTL)
	}
	return target
}

func (c *PackageClassifier) fetch(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.breaker.Execute(fn)
}

func (c *PackageClassifier) cacheHit(hit bool) {
	if c.collector == nil {
		return
	}
	if hit {
		c.collector.CacheHits.Inc()
	} else {
		c.collector.CacheMisses.Inc()
	}
}

// statusPriority orders an inventory so the apps needing attention come
// first.
var statusPriority = map[entities.AppStatus]int{
	entities.StatusProprietary: 0,
	entities.StatusUnknown:     1,
	entities.StatusFOSS:        2,
}

// SortInventory orders items proprietary, unknown, FOSS, then by label
// ignoring case. It sorts in place.
func SortInventory(items []entities.AppItem) {
	sort.SliceStable(items, func(i, j int) bool {
		pi, pj := priorityOf(items[i].Status), priorityOf(items[j].Status)
		if pi != pj {
			return pi < pj
		}
		return strings.ToLower(items[i].Label) < strings.ToLower(items[j].Label)
	})
}

func priorityOf(s entities.AppStatus) int {
	if p, ok := statusPriority[s]; ok {
		return p
	}
	return statusPriority[entities.StatusUnknown]
}
