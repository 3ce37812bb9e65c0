package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"librefind/application/ports"
	"librefind/domain/core/entities"
	"librefind/domain/events"
	"librefind/pkg/auth"
	"librefind/pkg/observability"

	"go.uber.org/zap"
)

// Classifier is the part of the package classifier a scan needs.
type Classifier interface {
	ClassifyAll(ctx context.Context, pkgs []entities.InstalledPackage) ([]entities.AppItem, error)
}

// SessionSource reports who is signed in. Subscribe must deliver the
// current state first and then every change. *auth.SessionTracker
// satisfies it.
type SessionSource interface {
	Subscribe(ctx context.Context) <-chan auth.SessionState
}

// Options carries the optional collaborators of a Pipeline.
type Options struct {
	// SessionID identifies the owning client in published events while
	// nobody is signed in through Session.
	SessionID string
	Session   SessionSource
	Publisher ports.EventPublisher
	Metrics   *observability.Metrics
	Logger    *zap.Logger
}

// ErrStopped is returned by inputs sent after Run has returned.
var ErrStopped = errors.New("pipeline stopped")

// Pipeline runs the inventory view for the lifetime of one client.
type Pipeline struct {
	classifier Classifier
	source     ports.InventorySource
	ignores    ports.IgnoreListStore
	opts       Options
	logger     *zap.Logger

	inputs  chan Event
	rescans chan struct{}
	done    chan struct{}

	mu    sync.Mutex
	state State
	subs  map[chan State]struct{}
}

func New(classifier Classifier, source ports.InventorySource, ignores ports.IgnoreListStore, opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		classifier: classifier,
		source:     source,
		ignores:    ignores,
		opts:       opts,
		logger:     logger,
		inputs:     make(chan Event, 16),
		rescans:    make(chan struct{}, 1),
		done:       make(chan struct{}),
		state:      Initial(),
		subs:       make(map[chan State]struct{}),
	}
}

// Run starts the first scan and processes inputs until ctx ends. It must be
// called once.
func (p *Pipeline) Run(ctx context.Context) error {
	defer close(p.done)

	var ignoreUpdates <-chan map[string]struct{}
	if p.ignores != nil {
		ignoreUpdates = p.ignores.Watch(ctx)
		if set, err := p.ignores.Ignored(ctx); err != nil {
			p.logger.Warn("Ignore list unavailable, scoring every app", zap.Error(err))
		} else {
			p.apply(IgnoreListChanged{Ignored: set})
		}
	}

	// The first scan is attributed to whoever is signed in when it starts.
	var sessions <-chan auth.SessionState
	if p.opts.Session != nil {
		sessions = p.opts.Session.Subscribe(ctx)
		select {
		case s, ok := <-sessions:
			if ok {
				p.apply(SessionChanged{UserID: s.UserID})
			}
		case <-ctx.Done():
		}
	}

	var (
		generation uint64
		cancelScan context.CancelFunc = func() {}
		scans      sync.WaitGroup
	)
	defer func() {
		cancelScan()
		scans.Wait()
	}()

	startScan := func() {
		cancelScan()
		generation++
		gen := generation
		scanCtx, cancel := context.WithCancel(ctx)
		cancelScan = cancel

		p.apply(ScanStarted{Generation: gen})
		scans.Add(1)
		go func() {
			defer scans.Done()
			apps, err := p.scan(scanCtx)
			if scanCtx.Err() != nil {
				// Superseded or shutting down; the result is stale.
				return
			}
			select {
			case p.inputs <- ScanCompleted{Generation: gen, Apps: apps, Err: err}:
			case <-ctx.Done():
			}
		}()
	}

	startScan()
	for {
		select {
		case <-ctx.Done():
			p.closeSubscribers()
			return ctx.Err()
		case <-p.rescans:
			startScan()
		case set, ok := <-ignoreUpdates:
			if !ok {
				ignoreUpdates = nil
				continue
			}
			p.apply(IgnoreListChanged{Ignored: set})
		case s, ok := <-sessions:
			if !ok {
				sessions = nil
				continue
			}
			if s.UserID != p.State().UserID {
				p.logger.Info("Session changed", zap.Bool("signedIn", s.SignedIn))
			}
			p.apply(SessionChanged{UserID: s.UserID})
		case ev := <-p.inputs:
			next := p.apply(ev)
			if done, ok := ev.(ScanCompleted); ok && done.Err == nil && done.Generation == next.Generation {
				p.reportScan(ctx, next)
			}
		}
	}
}

func (p *Pipeline) scan(ctx context.Context) ([]entities.AppItem, error) {
	start := time.Now()
	pkgs, err := p.source.InstalledPackages(ctx)
	if err != nil {
		return nil, err
	}
	apps, err := p.classifier.ClassifyAll(ctx, pkgs)
	p.opts.Metrics.RecordCommandExecution(ctx, "ScanInventory", time.Since(start), err)
	return apps, err
}

// Rescan cancels any scan in flight and starts a new one.
func (p *Pipeline) Rescan() {
	select {
	case p.rescans <- struct{}{}:
	default:
		// A rescan is already queued.
	}
}

func (p *Pipeline) SetQuery(query string) error {
	return p.send(QueryChanged{Query: query})
}

func (p *Pipeline) SetFilter(status *entities.AppStatus) error {
	return p.send(FilterChanged{Status: status})
}

// Ignore and Restore edit the ignore list; the view follows through the
// store's Watch stream.
func (p *Pipeline) Ignore(ctx context.Context, packageName string) error {
	return p.ignores.Ignore(ctx, packageName)
}

func (p *Pipeline) Restore(ctx context.Context, packageName string) error {
	return p.ignores.Restore(ctx, packageName)
}

func (p *Pipeline) send(ev Event) error {
	select {
	case <-p.done:
		return ErrStopped
	default:
	}
	select {
	case p.inputs <- ev:
		return nil
	case <-p.done:
		return ErrStopped
	}
}

// State returns the latest snapshot.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Subscribe delivers the current state and then every change until ctx
// ends or the pipeline stops. A slow subscriber skips intermediate states.
func (p *Pipeline) Subscribe(ctx context.Context) <-chan State {
	ch := make(chan State, 1)

	p.mu.Lock()
	select {
	case <-p.done:
		p.mu.Unlock()
		close(ch)
		return ch
	default:
	}
	p.subs[ch] = struct{}{}
	ch <- p.state
	p.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-p.done:
		}
		p.mu.Lock()
		if _, ok := p.subs[ch]; ok {
			delete(p.subs, ch)
			close(ch)
		}
		p.mu.Unlock()
	}()
	return ch
}

func (p *Pipeline) apply(ev Event) State {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = Reduce(p.state, ev)
	for ch := range p.subs {
		select {
		case <-ch:
		default:
		}
		ch <- p.state
	}
	return p.state
}

func (p *Pipeline) closeSubscribers() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for ch := range p.subs {
		delete(p.subs, ch)
		close(ch)
	}
}

func (p *Pipeline) reportScan(ctx context.Context, s State) {
	if s.Score == nil {
		return
	}
	p.logger.Info("Inventory scanned",
		zap.Uint64("generation", s.Generation),
		zap.Int("totalApps", s.Score.TotalApps),
		zap.Float64("percentage", s.Score.Percentage),
	)
	p.opts.Metrics.RecordSovereigntyScore(ctx, int(s.Score.Percentage), string(s.Score.Tier))
	if p.opts.Publisher == nil {
		return
	}
	owner := s.UserID
	if owner == "" {
		owner = p.opts.SessionID
	}
	ev := events.NewInventoryScanned(owner, s.Score.SovereigntyScore, time.Now().UTC())
	if err := p.opts.Publisher.Publish(ctx, ev); err != nil {
		p.logger.Warn("Failed to publish scan event", zap.Error(err))
	}
}

// UntilSettled forwards states up to and including the first one that is
// no longer loading, then closes. One-shot clients use it to stop after a
// single scan. It also closes when ctx ends.
func UntilSettled(ctx context.Context, states <-chan State) <-chan State {
	out := make(chan State, 1)
	go func() {
		defer close(out)
		for s := range states {
			select {
			case out <- s:
			case <-ctx.Done():
				return
			}
			if !s.Loading {
				return
			}
		}
	}()
	return out
}
