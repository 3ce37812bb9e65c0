package handlers

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"testing"
	"time"

	"librefind/application/commands"
	"librefind/application/commands/bus"
	"librefind/application/ports"
	"librefind/application/services"
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

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.DomainEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) PublishBatch(ctx context.Context, es []events.DomainEvent) error {
	for _, e := range es {
		_ = p.Publish(ctx, e)
	}
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.GetEventType())
	}
	return out
}

// brokenUsernameLookup fails every uniqueness check.
type brokenUsernameLookup struct {
	*memory.CatalogStore
}

func (brokenUsernameLookup) IsUsernameTaken(ctx context.Context, username string) (bool, error) {
	return false, stderrors.New("index unavailable")
}

type fixture struct {
	store     *memory.CatalogStore
	bus       *bus.CommandBus
	publisher *recordingPublisher
	collector *observability.Collector
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWrapping(t, func(s *memory.CatalogStore) ports.CatalogStore { return s })
}

// newFixtureWrapping lets a test swap in a store decorator for the community
// handler while assertions still read the in-memory store directly.
func newFixtureWrapping(t *testing.T, wrap func(*memory.CatalogStore) ports.CatalogStore) *fixture {
	t.Helper()
	store := memory.NewCatalogStore(abstractions.DefaultRetryConfig(), zap.NewNop())
	store.PutTarget(entities.ProprietaryTarget{PackageName: "com.google.android.apps.maps", Name: "Google Maps", Alternatives: []string{"osmand"}})
	store.PutAlternative(entities.Alternative{ID: "osmand", PackageName: "net.osmand.plus", Name: "OsmAnd", RatingAvg: 4, RatingCount: 2})

	f := &fixture{
		store:     store,
		bus:       bus.NewCommandBus(bus.LoggingMiddleware(zap.NewNop())),
		publisher: &recordingPublisher{},
		collector: observability.NewCollector("test"),
	}
	clock := utils.FixedClock{T: fixedNow}

	ratings := services.NewRatingService(store, f.publisher, f.collector, clock, zap.NewNop())
	require.NoError(t, f.bus.Register(commands.RateAlternativeCommand{}, NewRateAlternativeHandler(ratings)))
	require.NoError(t, f.bus.Register(commands.CastVoteCommand{}, NewCastVoteHandler(ratings)))

	community := NewCommunityHandler(wrap(store), f.publisher, nil, f.collector, clock, zap.NewNop())
	require.NoError(t, community.Register(f.bus))
	return f
}

func (f *fixture) send(t *testing.T, cmd bus.Command) (interface{}, error) {
	t.Helper()
	return f.bus.Send(context.Background(), cmd)
}

func (f *fixture) withProfile(t *testing.T, uid, username string) {
	t.Helper()
	_, err := f.send(t, commands.SetupProfileCommand{UserID: uid, Username: username})
	require.NoError(t, err)
}

func requireDomainCode(t *testing.T, err error, code string) {
	t.Helper()
	var de *errors.DomainError
	require.True(t, stderrors.As(err, &de), "expected domain error, got %v", err)
	assert.Equal(t, code, de.Code)
}

func TestRateAlternative_ThroughBus(t *testing.T) {
	f := newFixture(t)

	got, err := f.send(t, commands.RateAlternativeCommand{UserID: "u1", AlternativeID: "osmand", Stars: 1})
	require.NoError(t, err)

	res := got.(*services.RatingResult)
	assert.Equal(t, 3, res.Count)
	assert.InDelta(t, 3.0, res.Average, 1e-9)
	assert.True(t, res.IsNew)
	assert.Contains(t, f.publisher.types(), "alternative.rated")
}

func TestRateAlternative_UnknownAlternative(t *testing.T) {
	f := newFixture(t)

	_, err := f.send(t, commands.RateAlternativeCommand{UserID: "u1", AlternativeID: "ghost", Stars: 4})
	requireDomainCode(t, err, "ALTERNATIVE_NOT_FOUND")
	assert.Empty(t, f.store.RatingsFor("ghost"))
}

func TestCastVote(t *testing.T) {
	t.Run("tallies per category", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.send(t, commands.CastVoteCommand{UserID: "u1", AlternativeID: "osmand", Category: entities.VotePrivacy})
		require.NoError(t, err)
		got, err := f.send(t, commands.CastVoteCommand{UserID: "u2", AlternativeID: "osmand", Category: entities.VotePrivacy})
		require.NoError(t, err)

		res := got.(*services.VoteResult)
		assert.Equal(t, 2, res.Votes["privacy"])

		alt, err := f.store.GetAlternative(context.Background(), "osmand")
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"privacy": 2}, alt.Votes)
		assert.Contains(t, f.publisher.types(), "alternative.voted")
	})

	t.Run("second vote in a category is refused", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.send(t, commands.CastVoteCommand{UserID: "u1", AlternativeID: "osmand", Category: entities.VoteFeatures})
		require.NoError(t, err)
		_, err = f.send(t, commands.CastVoteCommand{UserID: "u1", AlternativeID: "osmand", Category: entities.VoteFeatures})
		requireDomainCode(t, err, "ALREADY_VOTED")

		_, err = f.send(t, commands.CastVoteCommand{UserID: "u1", AlternativeID: "osmand", Category: entities.VoteUsability})
		require.NoError(t, err)

		alt, err := f.store.GetAlternative(context.Background(), "osmand")
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"features": 1, "usability": 1}, alt.Votes)
	})

	t.Run("unknown alternative", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.send(t, commands.CastVoteCommand{UserID: "u1", AlternativeID: "ghost", Category: entities.VotePrivacy})
		requireDomainCode(t, err, "ALTERNATIVE_NOT_FOUND")
		assert.NotContains(t, f.publisher.types(), "alternative.voted")
	})
}

func TestSubmitReport(t *testing.T) {
	cmd := commands.SubmitReportCommand{UserID: "u1", Title: " Scan hangs ", Description: "Stuck at 90%", Type: entities.ReportBug}

	t.Run("files an open low priority report without a profile", func(t *testing.T) {
		f := newFixture(t)

		got, err := f.send(t, cmd)
		require.NoError(t, err)
		r := got.(*entities.Report)
		assert.NotEmpty(t, r.ID)
		assert.Equal(t, "Scan hangs", r.Title)
		assert.Equal(t, entities.ReportOpen, r.Status)
		assert.Equal(t, entities.PriorityLow, r.Priority)
		assert.Empty(t, r.SubmitterUsername)
		assert.Equal(t, fixedNow, r.CreatedAt)

		mine, err := f.store.ListReportsByUser(context.Background(), "u1")
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Contains(t, f.publisher.types(), "report.submitted")
		assert.Equal(t, 1.0, testutil.ToFloat64(f.collector.Contributions.WithLabelValues("report")))
	})

	t.Run("copies the username and keeps the priority", func(t *testing.T) {
		f := newFixture(t)
		f.withProfile(t, "u1", "ada")

		urgent := cmd
		urgent.Priority = entities.PriorityHigh
		got, err := f.send(t, urgent)
		require.NoError(t, err)
		r := got.(*entities.Report)
		assert.Equal(t, "ada", r.SubmitterUsername)
		assert.Equal(t, entities.PriorityHigh, r.Priority)
	})

	t.Run("over-long description", func(t *testing.T) {
		f := newFixture(t)

		long := cmd
		long.Description = strings.Repeat("d", 2001)
		_, err := f.send(t, long)
		var verrs *errors.ValidationErrors
		require.True(t, stderrors.As(err, &verrs))
		assert.Contains(t, verrs.ToMap(), "description")
	})
}

func TestSubmitApp(t *testing.T) {
	cmd := commands.SubmitAppCommand{
		UserID:              "u1",
		Type:                entities.SubmissionNewAlternative,
		ProprietaryPackages: []string{"com.google.android.apps.maps"},
		App: commands.SubmittedAppInput{
			Name:        " Organic Maps ",
			PackageName: "app.organicmaps",
			RepoURL:     "https://github.com/organicmaps/organicmaps",
			Description: "Offline maps from OSM",
		},
	}

	t.Run("requires a profile", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.send(t, cmd)
		requireDomainCode(t, err, "PROFILE_NOT_SET_UP")
		subs, err := f.store.ListSubmissionsByUser(context.Background(), "u1")
		require.NoError(t, err)
		assert.Empty(t, subs)
	})

	t.Run("stores a pending submission", func(t *testing.T) {
		f := newFixture(t)
		f.withProfile(t, "u1", "ada")

		got, err := f.send(t, cmd)
		require.NoError(t, err)
		sub := got.(*entities.Submission)
		assert.NotEmpty(t, sub.ID)
		assert.Equal(t, entities.ReviewPending, sub.Status)
		assert.Equal(t, "Organic Maps", sub.App.Name)
		assert.Equal(t, "ada", sub.SubmitterUsername)
		assert.Equal(t, fixedNow, sub.CreatedAt)

		mine, err := f.store.ListSubmissionsByUser(context.Background(), "u1")
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Equal(t, sub.ID, mine[0].ID)

		assert.Contains(t, f.publisher.types(), "submission.created")
		assert.Equal(t, 1.0, testutil.ToFloat64(f.collector.Contributions.WithLabelValues("submission")))
	})

	t.Run("config limits apply after tag validation", func(t *testing.T) {
		f := newFixture(t)
		f.withProfile(t, "u1", "ada")

		long := cmd
		long.App.Name = strings.Repeat("x", 101)
		_, err := f.send(t, long)
		var verrs *errors.ValidationErrors
		require.True(t, stderrors.As(err, &verrs))
		assert.Contains(t, verrs.ToMap(), "name")
	})
}

func TestProposeAlternative(t *testing.T) {
	f := newFixture(t)

	got, err := f.send(t, commands.ProposeAlternativeCommand{
		UserID:             "u1",
		ProprietaryPackage: "com.whatsapp",
		AlternativeID:      "signal",
	})
	require.NoError(t, err)
	p := got.(*entities.Proposal)
	assert.Equal(t, entities.ReviewPending, p.Status)
	assert.Equal(t, "u1", p.UserID)
	assert.Contains(t, f.publisher.types(), "proposal.created")
}

func TestSubmitFeedbackAndVote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.send(t, commands.SubmitFeedbackCommand{UserID: "u1", AlternativeID: "osmand", Type: entities.FeedbackPro, Text: "Great offline"})
	requireDomainCode(t, err, "PROFILE_NOT_SET_UP")

	f.withProfile(t, "u1", "ada")
	got, err := f.send(t, commands.SubmitFeedbackCommand{UserID: "u1", AlternativeID: "osmand", Type: entities.FeedbackPro, Text: "  Great offline  "})
	require.NoError(t, err)
	fb := got.(*entities.Feedback)
	assert.Equal(t, "ada", fb.Username)
	assert.Equal(t, "Great offline", fb.Text)
	assert.Equal(t, 0, fb.VotesHelpful)
	assert.Equal(t, entities.ReviewPending, fb.Status)

	_, err = f.send(t, commands.VoteHelpfulCommand{UserID: "u2", AlternativeID: "osmand", FeedbackID: fb.ID})
	require.NoError(t, err)
	_, err = f.send(t, commands.VoteHelpfulCommand{UserID: "u3", AlternativeID: "osmand", FeedbackID: fb.ID})
	require.NoError(t, err)

	all, err := f.store.ListFeedback(ctx, "osmand", "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 2, all[0].VotesHelpful)

	_, err = f.send(t, commands.VoteHelpfulCommand{UserID: "u2", AlternativeID: "osmand", FeedbackID: "missing"})
	assert.True(t, errors.IsNotFound(err))

	assert.Contains(t, f.publisher.types(), "feedback.submitted")
	assert.Contains(t, f.publisher.types(), "feedback.voted")
}

func TestSetupProfile(t *testing.T) {
	t.Run("creates then renames", func(t *testing.T) {
		f := newFixture(t)
		f.withProfile(t, "u1", "ada")

		got, err := f.send(t, commands.SetupProfileCommand{UserID: "u1", Username: "Ada", Email: "ada@example.org"})
		require.NoError(t, err)
		p := got.(*entities.UserProfile)
		assert.Equal(t, "Ada", p.Username)
		assert.Equal(t, "ada@example.org", p.Email)
		assert.Equal(t, fixedNow, p.JoinedAt)
	})

	t.Run("username taken by someone else", func(t *testing.T) {
		f := newFixture(t)
		f.withProfile(t, "u1", "ada")

		_, err := f.send(t, commands.SetupProfileCommand{UserID: "u2", Username: "ADA"})
		requireDomainCode(t, err, "USERNAME_TAKEN")
	})

	t.Run("too short", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.send(t, commands.SetupProfileCommand{UserID: "u1", Username: "al"})
		var verrs *errors.ValidationErrors
		require.True(t, stderrors.As(err, &verrs))
		assert.Contains(t, verrs.ToMap(), "username")
	})

	t.Run("failed lookup counts as taken", func(t *testing.T) {
		f := newFixtureWrapping(t, func(s *memory.CatalogStore) ports.CatalogStore {
			return brokenUsernameLookup{s}
		})

		_, err := f.send(t, commands.SetupProfileCommand{UserID: "u1", Username: "grace"})
		requireDomainCode(t, err, "USERNAME_TAKEN")
		_, err = f.store.GetProfile(context.Background(), "u1")
		assert.True(t, errors.IsNotFound(err))
	})
}
