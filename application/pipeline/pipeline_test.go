package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"librefind/domain/core/entities"
	"librefind/domain/events"
	domain "librefind/domain/services"
	"librefind/infrastructure/inventory"
	"librefind/infrastructure/persistence/ignorelist"
	"librefind/pkg/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func app(pkg, label string, status entities.AppStatus) entities.AppItem {
	return entities.AppItem{PackageName: pkg, Label: label, Status: status}
}

func TestReduce_InitialState(t *testing.T) {
	s := Initial()
	assert.True(t, s.Loading)
	assert.Empty(t, s.Apps)
	assert.Nil(t, s.Score)
}

func TestReduce_MapsScenario(t *testing.T) {
	s := Evaluate([]entities.AppItem{
		app("com.google.maps", "Maps", entities.StatusProprietary),
		app("org.osmand", "OsmAnd", entities.StatusFOSS),
	}, nil, "", nil)

	require.NotNil(t, s.Score)
	assert.Equal(t, domain.SovereigntyScore{TotalApps: 2, FOSSCount: 1, ProprietaryCount: 1}, s.Score.SovereigntyScore)
	assert.Equal(t, domain.TierTransitioning, s.Score.Tier)
	assert.False(t, s.Loading)
}

func TestReduce_ScoreIgnoresFiltersButNotIgnoreList(t *testing.T) {
	prop := entities.StatusProprietary
	apps := []entities.AppItem{
		app("com.a", "Alpha", entities.StatusProprietary),
		app("com.b", "Beta", entities.StatusFOSS),
		app("com.c", "Gamma", entities.StatusFOSS),
		app("com.d", "Delta", entities.StatusUnknown),
	}

	s := Evaluate(apps, map[string]struct{}{"com.d": {}}, "", nil)
	assert.Equal(t, 3, s.Score.TotalApps)
	assert.Len(t, s.Apps, 3)

	filtered := Reduce(s, FilterChanged{Status: &prop})
	assert.Len(t, filtered.Apps, 1)
	assert.Equal(t, s.Score, filtered.Score)

	searched := Reduce(s, QueryChanged{Query: "GAM"})
	require.Len(t, searched.Apps, 1)
	assert.Equal(t, "Gamma", searched.Apps[0].Label)
	assert.Equal(t, 3, searched.Score.TotalApps)

	// The input state is untouched.
	assert.Len(t, s.Apps, 3)
}

func TestReduce_DropsStaleScan(t *testing.T) {
	s := Reduce(Initial(), ScanStarted{Generation: 1})
	s = Reduce(s, ScanStarted{Generation: 2})
	s = Reduce(s, ScanCompleted{Generation: 1, Apps: []entities.AppItem{app("com.old", "Old", entities.StatusFOSS)}})

	assert.True(t, s.Loading)
	assert.Nil(t, s.Score)

	s = Reduce(s, ScanCompleted{Generation: 2, Apps: []entities.AppItem{app("com.new", "New", entities.StatusFOSS)}})
	require.Len(t, s.Apps, 1)
	assert.Equal(t, "com.new", s.Apps[0].PackageName)
}

func TestReduce_ScanErrorKeepsPreviousResult(t *testing.T) {
	s := Evaluate([]entities.AppItem{app("com.a", "A", entities.StatusFOSS)}, nil, "", nil)
	s = Reduce(s, ScanStarted{Generation: 2})
	s = Reduce(s, ScanCompleted{Generation: 2, Err: errors.New("source offline")})

	assert.False(t, s.Loading)
	assert.Equal(t, "source offline", s.Error)
	assert.Len(t, s.Apps, 1)
}

// gatedClassifier blocks its first call until released and counts calls.
type gatedClassifier struct {
	calls   atomic.Int32
	release chan struct{}
	first   sync.Once
}

func (g *gatedClassifier) ClassifyAll(ctx context.Context, pkgs []entities.InstalledPackage) ([]entities.AppItem, error) {
	n := g.calls.Add(1)
	items := make([]entities.AppItem, len(pkgs))
	for i, p := range pkgs {
		items[i] = app(p.PackageName, p.Label, entities.StatusUnknown)
		if n == 1 {
			items[i].Label = "stale"
		}
	}
	if n == 1 {
		select {
		case <-g.release:
		case <-ctx.Done():
			// Pretend the catalog ignored cancellation and finished anyway.
			<-g.release
		}
	}
	return items, nil
}

func waitFor(t *testing.T, ch <-chan State, pred func(State) bool) State {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case s, ok := <-ch:
			require.True(t, ok, "subscription closed early")
			if pred(s) {
				return s
			}
		case <-timeout:
			t.Fatal("state never reached")
		}
	}
}

func TestPipeline_RescanSupersedesInFlightScan(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	classifier := &gatedClassifier{release: make(chan struct{})}
	src := inventory.NewStaticSource(entities.InstalledPackage{PackageName: "com.a", Label: "fresh"})
	p := New(classifier, src, ignorelist.NewMemoryStore(), Options{})

	states := p.Subscribe(ctx)
	go p.Run(ctx)

	waitFor(t, states, func(s State) bool { return s.Generation == 1 && s.Loading })
	p.Rescan()

	final := waitFor(t, states, func(s State) bool { return s.Generation == 2 && !s.Loading })
	close(classifier.release)

	require.Len(t, final.Apps, 1)
	assert.Equal(t, "fresh", final.Apps[0].Label)

	// The first scan's late result must not replace the second.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, "fresh", p.State().Apps[0].Label)
	assert.Equal(t, uint64(2), p.State().Generation)
}

func TestPipeline_IgnoreChangesRefilterWithoutRescan(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	classifier := &gatedClassifier{release: make(chan struct{})}
	close(classifier.release)
	src := inventory.NewStaticSource(
		entities.InstalledPackage{PackageName: "com.a", Label: "A"},
		entities.InstalledPackage{PackageName: "com.b", Label: "B"},
	)
	ignores := ignorelist.NewMemoryStore()
	p := New(classifier, src, ignores, Options{})

	states := p.Subscribe(ctx)
	go p.Run(ctx)
	waitFor(t, states, func(s State) bool { return !s.Loading && s.Score != nil })

	require.NoError(t, p.Ignore(ctx, "com.a"))
	s := waitFor(t, states, func(s State) bool { return s.Score != nil && s.Score.TotalApps == 1 })
	assert.Equal(t, "com.b", s.Apps[0].PackageName)

	require.NoError(t, p.SetQuery("zzz"))
	s = waitFor(t, states, func(s State) bool { return s.Query == "zzz" })
	assert.Empty(t, s.Apps)
	assert.Equal(t, 1, s.Score.TotalApps)

	assert.Equal(t, int32(1), classifier.calls.Load())
}

func TestPipeline_StopClosesSubscribers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	classifier := &gatedClassifier{release: make(chan struct{})}
	close(classifier.release)
	p := New(classifier, inventory.NewStaticSource(), nil, Options{})

	states := p.Subscribe(context.Background())
	done := make(chan error)
	go func() { done <- p.Run(ctx) }()
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Eventually(t, func() bool {
		for {
			select {
			case _, ok := <-states:
				if !ok {
					return true
				}
			default:
				return false
			}
		}
	}, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, p.SetQuery("x"), ErrStopped)
}

func TestUntilSettled_StopsAfterFirstCompletedScan(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	classifier := &gatedClassifier{release: make(chan struct{})}
	close(classifier.release)
	p := New(classifier, inventory.NewStaticSource(entities.InstalledPackage{PackageName: "com.a"}), nil, Options{})

	settled := UntilSettled(ctx, p.Subscribe(ctx))
	go p.Run(ctx)

	var got []State
	for s := range settled {
		got = append(got, s)
	}
	require.NotEmpty(t, got)
	assert.True(t, got[0].Loading)
	last := got[len(got)-1]
	assert.False(t, last.Loading)
	assert.Len(t, last.Apps, 1)
}

type scanEvents struct {
	mu     sync.Mutex
	owners []string
}

func (r *scanEvents) Publish(ctx context.Context, e events.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owners = append(r.owners, e.GetAggregateID())
	return nil
}

func (r *scanEvents) PublishBatch(ctx context.Context, es []events.DomainEvent) error {
	for _, e := range es {
		_ = r.Publish(ctx, e)
	}
	return nil
}

func (r *scanEvents) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.owners) == 0 {
		return ""
	}
	return r.owners[len(r.owners)-1]
}

func TestPipeline_FollowsSignInChanges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	classifier := &gatedClassifier{release: make(chan struct{})}
	close(classifier.release)
	session := auth.NewSessionTracker()
	session.SetUser("ada")
	published := &scanEvents{}

	p := New(classifier, inventory.NewStaticSource(entities.InstalledPackage{PackageName: "com.a"}), nil, Options{
		SessionID: "device-1",
		Session:   session,
		Publisher: published,
	})
	states := p.Subscribe(ctx)
	go p.Run(ctx)

	waitFor(t, states, func(s State) bool { return s.UserID == "ada" && !s.Loading })
	assert.Eventually(t, func() bool { return published.last() == "ada" }, time.Second, 5*time.Millisecond)

	session.SignOut()
	waitFor(t, states, func(s State) bool { return s.UserID == "" })
	p.Rescan()
	assert.Eventually(t, func() bool { return published.last() == "device-1" }, time.Second, 5*time.Millisecond,
		"a signed-out scan falls back to the client id")

	session.SetUser("grace")
	waitFor(t, states, func(s State) bool { return s.UserID == "grace" })
	p.Rescan()
	assert.Eventually(t, func() bool { return published.last() == "grace" }, time.Second, 5*time.Millisecond)
}
