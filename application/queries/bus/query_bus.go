package bus

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"librefind/application/ports"
	"librefind/pkg/observability"
)

// ErrNoHandler is returned by Ask for a query type nobody registered.
var ErrNoHandler = errors.New("no handler registered")

// Query is a read-only request. Validate runs before dispatch.
type Query interface {
	Validate() error
}

// CacheKeyer lets a query choose its own cache key. Queries without one are
// keyed by their type and field values.
type CacheKeyer interface {
	CacheKey() string
}

type QueryHandler interface {
	Handle(ctx context.Context, query Query) (interface{}, error)
}

type QueryHandlerFunc func(ctx context.Context, query Query) (interface{}, error)

func (f QueryHandlerFunc) Handle(ctx context.Context, query Query) (interface{}, error) {
	return f(ctx, query)
}

// QueryBus routes each query type to exactly one handler.
type QueryBus struct {
	mu     sync.RWMutex
	routes map[reflect.Type]QueryHandler
}

func NewQueryBus() *QueryBus {
	return &QueryBus{routes: make(map[reflect.Type]QueryHandler)}
}

func (b *QueryBus) Register(query Query, handler QueryHandler) error {
	t := reflect.TypeOf(query)

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, taken := b.routes[t]; taken {
		return fmt.Errorf("query %s already has a handler", queryName(query))
	}
	b.routes[t] = handler
	return nil
}

// Ask validates query and runs its handler. Errors keep their chain so
// callers can match AppError and ValidationErrors with errors.As.
func (b *QueryBus) Ask(ctx context.Context, query Query) (interface{}, error) {
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", queryName(query), err)
	}

	b.mu.RLock()
	handler, ok := b.routes[reflect.TypeOf(query)]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w for %s", ErrNoHandler, queryName(query))
	}

	result, err := handler.Handle(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", queryName(query), err)
	}
	return result, nil
}

func queryName(query Query) string {
	t := reflect.TypeOf(query)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// CachingMiddleware serves repeated queries from cache. Only wrap handlers
// whose result does not depend on who is asking. Errors are never cached.
type CachingMiddleware struct {
	cache ports.Cache
	ttl   time.Duration
}

func NewCachingMiddleware(cache ports.Cache, ttl time.Duration) *CachingMiddleware {
	return &CachingMiddleware{cache: cache, ttl: ttl}
}

func (m *CachingMiddleware) Wrap(next QueryHandler) QueryHandler {
	return QueryHandlerFunc(func(ctx context.Context, query Query) (interface{}, error) {
		key := cacheKey(query)
		if cached, found := m.cache.Get(ctx, key); found {
			return cached, nil
		}

		result, err := next.Handle(ctx, query)
		if err != nil {
			return nil, err
		}
		_ = m.cache.Set(ctx, key, result, m.ttl)
		return result, nil
	})
}

func cacheKey(query Query) string {
	if k, ok := query.(CacheKeyer); ok {
		return "query:" + k.CacheKey()
	}
	return fmt.Sprintf("query:%s:%+v", queryName(query), query)
}

// MetricsMiddleware observes query latency by query name and outcome.
type MetricsMiddleware struct {
	collector *observability.Collector
}

func NewMetricsMiddleware(collector *observability.Collector) *MetricsMiddleware {
	return &MetricsMiddleware{collector: collector}
}

func (m *MetricsMiddleware) Wrap(next QueryHandler) QueryHandler {
	if m.collector == nil {
		return next
	}
	return QueryHandlerFunc(func(ctx context.Context, query Query) (interface{}, error) {
		start := time.Now()
		result, err := next.Handle(ctx, query)

		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		m.collector.Queries.WithLabelValues(queryName(query), outcome).Observe(time.Since(start).Seconds())
		return result, err
	})
}
