package services

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"librefind/application/ports"
	"librefind/domain/core/entities"
	"librefind/domain/events"
	"librefind/infrastructure/persistence/abstractions"
	"librefind/infrastructure/persistence/memory"
	"librefind/pkg/errors"
	"librefind/pkg/observability"
	"librefind/pkg/utils"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func newRatingFixture(t *testing.T, retry abstractions.RetryConfig, alt entities.Alternative) (*memory.CatalogStore, *RatingService, *recordingPublisher) {
	t.Helper()
	store := memory.NewCatalogStore(retry, zap.NewNop())
	store.PutAlternative(alt)
	pub := &recordingPublisher{}
	svc := NewRatingService(store, pub, nil, utils.FixedClock{T: testNow}, zap.NewNop())
	return store, svc, pub
}

func TestRate_NewRaterScenario(t *testing.T) {
	_, svc, pub := newRatingFixture(t, abstractions.DefaultRetryConfig(),
		entities.Alternative{ID: "organic-maps", RatingAvg: 4.0, RatingCount: 2})

	res, err := svc.Rate(context.Background(), "organic-maps", "uid-new", 2)
	require.NoError(t, err)
	assert.True(t, res.IsNew)
	assert.Equal(t, 3, res.Count)
	assert.InDelta(t, 10.0/3.0, res.Average, 1e-9)

	require.Equal(t, 1, pub.count())
	rated, ok := pub.events[0].(events.AlternativeRated)
	require.True(t, ok)
	assert.Equal(t, "alternative.rated", rated.GetEventType())
	assert.Equal(t, 3, rated.RatingCount)
}

func TestRate_ChangedRatingScenario(t *testing.T) {
	store, svc, _ := newRatingFixture(t, abstractions.DefaultRetryConfig(),
		entities.Alternative{ID: "signal", RatingAvg: 3.0, RatingCount: 3})
	ctx := context.Background()

	// uid-1 is the fourth rater: {3.0,3} + 5 = {3.5,4}.
	_, err := svc.Rate(ctx, "signal", "uid-1", 5)
	require.NoError(t, err)
	alt, err := store.GetAlternative(ctx, "signal")
	require.NoError(t, err)
	require.Equal(t, 4, alt.RatingCount)

	// Force the documented starting point {3.0, 4} with a stored 5.
	alt.RatingAvg = 3.0
	store.PutAlternative(*alt)

	res, err := svc.Rate(ctx, "signal", "uid-1", 1)
	require.NoError(t, err)
	assert.False(t, res.IsNew)
	assert.Equal(t, 5, res.PreviousStars)
	assert.Equal(t, 4, res.Count)
	assert.InDelta(t, 2.0, res.Average, 1e-9)
}

func TestRate_ReRatingIsIdempotentOnCount(t *testing.T) {
	store, svc, _ := newRatingFixture(t, abstractions.DefaultRetryConfig(), entities.Alternative{ID: "k9"})
	ctx := context.Background()

	first, err := svc.Rate(ctx, "k9", "uid-1", 4)
	require.NoError(t, err)
	second, err := svc.Rate(ctx, "k9", "uid-1", 4)
	require.NoError(t, err)

	assert.Equal(t, first.Count, second.Count)
	assert.InDelta(t, 4.0, second.Average, 1e-9)
	assert.Len(t, store.RatingsFor("k9"), 1)

	r, err := store.GetRating(ctx, "k9", "uid-1")
	require.NoError(t, err)
	assert.Equal(t, testNow, r.CreatedAt)
}

// panicStore fails the test if any I/O is attempted.
type panicStore struct{ t *testing.T }

func (p panicStore) RunTransaction(ctx context.Context, fn ports.TransactionFunc) error {
	p.t.Fatal("store must not be touched")
	return nil
}

func TestRate_RejectsBeforeIO(t *testing.T) {
	svc := NewRatingService(panicStore{t}, nil, nil, nil, nil)
	ctx := context.Background()

	tests := []struct {
		name   string
		altID  string
		userID string
		stars  int
		check  func(error) bool
	}{
		{"unauthenticated", "a", "", 4, errors.IsUnauthorized},
		{"unauthenticated wins over bad stars", "a", "", 9, errors.IsUnauthorized},
		{"stars too low", "a", "uid", 0, isDomainCode("STARS_OUT_OF_RANGE")},
		{"stars too high", "a", "uid", 6, isDomainCode("STARS_OUT_OF_RANGE")},
		{"blank id", "  ", "uid", 3, isDomainCode("FIELD_REQUIRED")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Rate(ctx, tt.altID, tt.userID, tt.stars)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error %v", err)
		})
	}
}

func isDomainCode(code string) func(error) bool {
	return func(err error) bool {
		var de *errors.DomainError
		return asDomain(err, &de) && de.Code == code
	}
}

func TestRate_MissingAlternative(t *testing.T) {
	store, svc, pub := newRatingFixture(t, abstractions.DefaultRetryConfig(), entities.Alternative{ID: "exists"})

	_, err := svc.Rate(context.Background(), "ghost", "uid-1", 3)
	assert.True(t, isDomainCode("ALTERNATIVE_NOT_FOUND")(err))
	assert.Empty(t, store.RatingsFor("ghost"))
	assert.Zero(t, pub.count())
}

func TestRate_PublishFailureDoesNotFailRating(t *testing.T) {
	_, svc, pub := newRatingFixture(t, abstractions.DefaultRetryConfig(), entities.Alternative{ID: "a"})
	pub.err = fmt.Errorf("eventbridge down")

	res, err := svc.Rate(context.Background(), "a", "uid-1", 5)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
}

// jitteryStore sleeps between a transaction's reads and its commit so
// concurrent raters interleave.
type jitteryStore struct {
	*memory.CatalogStore
	mu  sync.Mutex
	rng *rand.Rand
}

func (j *jitteryStore) RunTransaction(ctx context.Context, fn ports.TransactionFunc) error {
	return j.CatalogStore.RunTransaction(ctx, func(ctx context.Context, tx ports.RatingTransaction) error {
		if err := fn(ctx, tx); err != nil {
			return err
		}
		j.mu.Lock()
		d := time.Duration(j.rng.Intn(300)) * time.Microsecond
		j.mu.Unlock()
		time.Sleep(d)
		return nil
	})
}

func TestRate_ConcurrentRatersConverge(t *testing.T) {
	const raters = 40
	retry := abstractions.RetryConfig{MaxAttempts: 10000, BaseDelay: 10 * time.Microsecond, MaxDelay: time.Millisecond, BackoffFactor: 2, JitterFactor: 0.9}

	for seed := int64(1); seed <= 3; seed++ {
		t.Run(fmt.Sprintf("seed-%d", seed), func(t *testing.T) {
			base := memory.NewCatalogStore(retry, zap.NewNop())
			base.PutAlternative(entities.Alternative{ID: "osmand"})
			store := &jitteryStore{CatalogStore: base, rng: rand.New(rand.NewSource(seed))}

			collector := observability.NewCollector("test")
			svc := NewRatingService(store, nil, collector, nil, zap.NewNop())

			rng := rand.New(rand.NewSource(seed))
			plans := make([][]int, raters)
			for i := range plans {
				// Some raters change their mind once.
				plans[i] = []int{rng.Intn(5) + 1}
				if rng.Intn(2) == 0 {
					plans[i] = append(plans[i], rng.Intn(5)+1)
				}
			}

			var wg sync.WaitGroup
			for i := 0; i < raters; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					for _, stars := range plans[i] {
						_, err := svc.Rate(context.Background(), "osmand", fmt.Sprintf("uid-%d", i), stars)
						assert.NoError(t, err)
					}
				}(i)
			}
			wg.Wait()

			sum := 0
			for _, p := range plans {
				sum += p[len(p)-1]
			}
			alt, err := base.GetAlternative(context.Background(), "osmand")
			require.NoError(t, err)
			assert.Equal(t, raters, alt.RatingCount)
			assert.Len(t, base.RatingsFor("osmand"), raters)
			assert.True(t, math.Abs(alt.RatingAvg-float64(sum)/raters) < 1e-4,
				"avg %f, want %f", alt.RatingAvg, float64(sum)/raters)

			ratings := 0
			for _, p := range plans {
				ratings += len(p)
			}
			assert.Equal(t, float64(ratings), testutil.ToFloat64(collector.RatingTransactions.WithLabelValues("committed")))
		})
	}
}

func TestVote_RejectsBeforeIO(t *testing.T) {
	svc := NewRatingService(panicStore{t}, nil, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Vote(ctx, "a", "", entities.VotePrivacy)
	assert.True(t, errors.IsUnauthorized(err))

	_, err = svc.Vote(ctx, "a", "uid", "speed")
	assert.True(t, isDomainCode("INVALID_VOTE_CATEGORY")(err))

	_, err = svc.Vote(ctx, " ", "uid", entities.VotePrivacy)
	assert.True(t, isDomainCode("FIELD_REQUIRED")(err))
}

func TestVote_OncePerCategory(t *testing.T) {
	_, svc, pub := newRatingFixture(t, abstractions.DefaultRetryConfig(),
		entities.Alternative{ID: "signal", RatingAvg: 4, RatingCount: 1, Votes: map[string]int{"privacy": 7}})
	ctx := context.Background()

	res, err := svc.Vote(ctx, "signal", "uid-1", entities.VotePrivacy)
	require.NoError(t, err)
	assert.Equal(t, 8, res.Votes["privacy"])

	_, err = svc.Vote(ctx, "signal", "uid-1", entities.VotePrivacy)
	assert.True(t, isDomainCode("ALREADY_VOTED")(err))

	require.Equal(t, 1, pub.count())
	voted, ok := pub.events[0].(events.AlternativeVoted)
	require.True(t, ok)
	assert.Equal(t, 8, voted.Total)
}

func TestVote_ConcurrentVotersConverge(t *testing.T) {
	const voters = 30
	retry := abstractions.RetryConfig{MaxAttempts: 10000, BaseDelay: 10 * time.Microsecond, MaxDelay: time.Millisecond, BackoffFactor: 2, JitterFactor: 0.9}
	base := memory.NewCatalogStore(retry, zap.NewNop())
	base.PutAlternative(entities.Alternative{ID: "osmand"})
	store := &jitteryStore{CatalogStore: base, rng: rand.New(rand.NewSource(7))}
	svc := NewRatingService(store, nil, nil, nil, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			category := entities.VoteCategories()[i%3]
			_, err := svc.Vote(context.Background(), "osmand", fmt.Sprintf("uid-%d", i), category)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	alt, err := base.GetAlternative(context.Background(), "osmand")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"usability": 10, "privacy": 10, "features": 10}, alt.Votes)
}
