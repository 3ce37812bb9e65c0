package handlers

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"librefind/application/queries"
	"librefind/application/queries/bus"
	"librefind/application/services"
	"librefind/domain/config"
	"librefind/domain/core/entities"
	domain "librefind/domain/services"
	"librefind/infrastructure/cache"
	"librefind/infrastructure/persistence/abstractions"
	"librefind/infrastructure/persistence/memory"
	"librefind/pkg/errors"
	"librefind/pkg/observability"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type queryFixture struct {
	store     *memory.CatalogStore
	bus       *bus.QueryBus
	collector *observability.Collector
}

func newQueryFixture(t *testing.T) *queryFixture {
	t.Helper()
	return newQueryFixtureWith(t, config.DefaultDomainConfig())
}

func newQueryFixtureWith(t *testing.T, cfg *config.DomainConfig) *queryFixture {
	t.Helper()
	store := memory.NewCatalogStore(abstractions.DefaultRetryConfig(), zap.NewNop())
	store.PutTarget(entities.ProprietaryTarget{PackageName: "com.google.android.apps.maps", Name: "Google Maps", Alternatives: []string{"osmand", "organic"}})
	store.PutTarget(entities.ProprietaryTarget{PackageName: "com.whatsapp", Name: "WhatsApp", Alternatives: []string{"signal"}})
	store.PutTarget(entities.ProprietaryTarget{PackageName: "com.facebook.katana", Name: "facebook"})
	store.PutAlternative(entities.Alternative{ID: "osmand", PackageName: "net.osmand.plus", Name: "OsmAnd", RatingAvg: 3.5, RatingCount: 2})
	store.PutAlternative(entities.Alternative{ID: "organic", PackageName: "app.organicmaps", Name: "Organic Maps", RatingAvg: 4.5, RatingCount: 4})
	store.PutAlternative(entities.Alternative{ID: "signal", PackageName: "org.thoughtcrime.securesms", Name: "Signal"})

	c := cache.NewInMemoryCache(time.Minute)
	t.Cleanup(c.Close)
	collector := observability.NewCollector("test")

	classifier := services.NewPackageClassifier(store, store, c, services.DefaultBreakerConfig(), collector, nil, zap.NewNop())
	h := NewCatalogHandler(
		store,
		classifier,
		services.NewAlternativeCatalog(classifier, store, zap.NewNop()),
		services.NewDuplicateChecker(store, store, zap.NewNop()),
		cfg,
		zap.NewNop(),
	)

	b := bus.NewQueryBus()
	require.NoError(t, h.Register(b, bus.NewCachingMiddleware(c, time.Minute), bus.NewMetricsMiddleware(collector)))
	return &queryFixture{store: store, bus: b, collector: collector}
}

func (f *queryFixture) ask(t *testing.T, q bus.Query) interface{} {
	t.Helper()
	got, err := f.bus.Ask(context.Background(), q)
	require.NoError(t, err)
	return got
}

func TestListTargets_SortedAndCached(t *testing.T) {
	f := newQueryFixture(t)

	got := f.ask(t, queries.ListTargetsQuery{}).([]*entities.ProprietaryTarget)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"facebook", "Google Maps", "WhatsApp"}, []string{got[0].Name, got[1].Name, got[2].Name})

	f.store.PutTarget(entities.ProprietaryTarget{PackageName: "com.spotify.music", Name: "Spotify"})
	again := f.ask(t, queries.ListTargetsQuery{}).([]*entities.ProprietaryTarget)
	assert.Len(t, again, 3, "second read is served from cache")

	assert.Equal(t, 1, testutil.CollectAndCount(f.collector.Queries))
}

func TestGetAlternatives(t *testing.T) {
	f := newQueryFixture(t)
	ctx := context.Background()

	ratings := services.NewRatingService(f.store, nil, nil, nil, zap.NewNop())
	_, err := ratings.Rate(ctx, "osmand", "u1", 5)
	require.NoError(t, err)

	t.Run("anonymous", func(t *testing.T) {
		alts := f.ask(t, queries.GetAlternativesQuery{PackageName: "com.google.android.apps.maps"}).([]entities.Alternative)
		require.Len(t, alts, 2)
		assert.Equal(t, "organic", alts[0].ID)
		assert.Nil(t, alts[0].UserRating)
		assert.Nil(t, alts[1].UserRating)
	})

	t.Run("signed in viewer", func(t *testing.T) {
		alts := f.ask(t, queries.GetAlternativesQuery{PackageName: "com.google.android.apps.maps", ViewerID: "u1"}).([]entities.Alternative)
		require.Len(t, alts, 2)
		assert.Equal(t, "organic", alts[0].ID)
		assert.Nil(t, alts[0].UserRating)
		require.NotNil(t, alts[1].UserRating)
		assert.Equal(t, 5, *alts[1].UserRating)
		assert.InDelta(t, 4.0, alts[1].RatingAvg, 1e-9)
	})

	t.Run("unknown target is empty", func(t *testing.T) {
		alts := f.ask(t, queries.GetAlternativesQuery{PackageName: "com.example.nothing"}).([]entities.Alternative)
		assert.Empty(t, alts)
	})

	t.Run("invalid package", func(t *testing.T) {
		_, err := f.bus.Ask(ctx, queries.GetAlternativesQuery{PackageName: "Maps"})
		assert.Error(t, err)
	})
}

func TestListFeedback_ApprovedByVotes(t *testing.T) {
	f := newQueryFixture(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	add := func(text string, votes int, status entities.ReviewStatus, at time.Time) {
		_, err := f.store.AddFeedback(ctx, &entities.Feedback{
			AlternativeID: "osmand", Type: entities.FeedbackPro, Text: text,
			VotesHelpful: votes, Status: status, CreatedAt: at,
		})
		require.NoError(t, err)
	}
	add("older tie", 2, entities.ReviewApproved, base)
	add("top", 7, entities.ReviewApproved, base.Add(time.Hour))
	add("newer tie", 2, entities.ReviewApproved, base.Add(2*time.Hour))
	add("pending", 50, entities.ReviewPending, base)

	got := f.ask(t, queries.ListFeedbackQuery{AlternativeID: "osmand"}).([]*entities.Feedback)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"top", "older tie", "newer tie"}, []string{got[0].Text, got[1].Text, got[2].Text})

	none := f.ask(t, queries.ListFeedbackQuery{AlternativeID: "signal"}).([]*entities.Feedback)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestMySubmissionsAndProfile(t *testing.T) {
	f := newQueryFixture(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, uid := range []string{"u1", "u2", "u1"} {
		_, err := f.store.AddSubmission(ctx, &entities.Submission{
			Type: entities.SubmissionNewProprietary, SubmitterUID: uid,
			App:       entities.SubmittedApp{Name: uid},
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	mine := f.ask(t, queries.MySubmissionsQuery{UserID: "u1"}).([]*entities.Submission)
	require.Len(t, mine, 2)
	assert.True(t, mine[0].CreatedAt.After(mine[1].CreatedAt))

	_, err := f.bus.Ask(ctx, queries.MySubmissionsQuery{})
	assert.True(t, errors.HasCode(err, errors.CodeNotSignedIn))

	_, err = f.bus.Ask(ctx, queries.GetProfileQuery{UserID: "u1"})
	assert.ErrorIs(t, err, errors.ErrProfileNotSetUp)

	require.NoError(t, f.store.PutProfile(ctx, &entities.UserProfile{UID: "u1", Username: "ada"}))
	p := f.ask(t, queries.GetProfileQuery{UserID: "u1"}).(*entities.UserProfile)
	assert.Equal(t, "ada", p.Username)
}

func TestMyReports(t *testing.T) {
	f := newQueryFixture(t)
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	empty := f.ask(t, queries.MyReportsQuery{UserID: "u1"}).([]*entities.Report)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	for i, title := range []string{"older", "newer"} {
		_, err := f.store.AddReport(ctx, &entities.Report{
			Title: title, Type: entities.ReportBug, SubmitterUID: "u1",
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}
	_, err := f.store.AddReport(ctx, &entities.Report{Title: "theirs", SubmitterUID: "u2", CreatedAt: base})
	require.NoError(t, err)

	mine := f.ask(t, queries.MyReportsQuery{UserID: "u1"}).([]*entities.Report)
	require.Len(t, mine, 2)
	assert.Equal(t, "newer", mine[0].Title)

	_, err = f.bus.Ask(ctx, queries.MyReportsQuery{})
	assert.True(t, errors.HasCode(err, errors.CodeNotSignedIn))
}

func TestCheckDuplicate(t *testing.T) {
	f := newQueryFixture(t)

	tests := []struct {
		name  string
		query queries.CheckDuplicateQuery
		want  services.DuplicateResult
	}{
		{"proprietary package", queries.CheckDuplicateQuery{PackageName: "com.whatsapp"}, services.DuplicateResult{Kind: services.MatchProprietary, Name: "WhatsApp"}},
		{"foss by name", queries.CheckDuplicateQuery{Name: "signal"}, services.DuplicateResult{Kind: services.MatchFOSS, Name: "Signal"}},
		{"blank", queries.CheckDuplicateQuery{}, services.DuplicateResult{Kind: services.MatchNone}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.ask(t, tt.query))
		})
	}
}

func TestClassifyInventory(t *testing.T) {
	f := newQueryFixture(t)
	prop := entities.StatusProprietary

	q := queries.ClassifyInventoryQuery{
		Packages: []entities.InstalledPackage{
			{PackageName: "com.google.android.apps.maps", Label: "Maps"},
			{PackageName: "com.whatsapp", Label: "WhatsApp"},
			{PackageName: "org.fdroid.fdroid", Label: "F-Droid", KnownFOSS: true},
			{PackageName: "net.osmand.plus", Label: "OsmAnd", KnownFOSS: true},
			{PackageName: "com.example.notes", Label: "Notes"},
		},
		Ignored: []string{"com.example.notes"},
	}

	report := f.ask(t, q).(queries.InventoryReport)
	require.NotNil(t, report.Score)
	assert.Equal(t, 4, report.Score.TotalApps)
	assert.Equal(t, 2, report.Score.FOSSCount)
	assert.Equal(t, 2, report.Score.ProprietaryCount)
	assert.InDelta(t, 50.0, report.Score.Percentage, 1e-9)
	assert.Equal(t, domain.TierTransitioning, report.Score.Tier)
	require.Len(t, report.Apps, 4)
	assert.Equal(t, entities.StatusProprietary, report.Apps[0].Status)

	q.Status = &prop
	q.Query = "whats"
	filtered := f.ask(t, q).(queries.InventoryReport)
	require.Len(t, filtered.Apps, 1)
	assert.Equal(t, "com.whatsapp", filtered.Apps[0].PackageName)
	assert.Equal(t, 4, filtered.Score.TotalApps, "filters do not change the score")

	bad := entities.AppStatus("MAYBE")
	_, err := f.bus.Ask(context.Background(), queries.ClassifyInventoryQuery{Status: &bad})
	assert.True(t, isValidationErrors(err))
}

func TestClassifyInventory_CapsPackagesPerScan(t *testing.T) {
	cfg := config.DefaultDomainConfig()
	cfg.MaxPackagesPerScan = 2
	f := newQueryFixtureWith(t, cfg)

	pkgs := []entities.InstalledPackage{
		{PackageName: "com.whatsapp", Label: "WhatsApp"},
		{PackageName: "net.osmand.plus", Label: "OsmAnd", KnownFOSS: true},
	}
	report := f.ask(t, queries.ClassifyInventoryQuery{Packages: pkgs}).(queries.InventoryReport)
	assert.Equal(t, 2, report.Score.TotalApps)

	pkgs = append(pkgs, entities.InstalledPackage{PackageName: "com.example.notes", Label: "Notes"})
	_, err := f.bus.Ask(context.Background(), queries.ClassifyInventoryQuery{Packages: pkgs})
	var verrs *errors.ValidationErrors
	require.True(t, stderrors.As(err, &verrs))
	assert.Contains(t, verrs.ToMap(), "packages")
}

func isValidationErrors(err error) bool {
	var verrs *errors.ValidationErrors
	return stderrors.As(err, &verrs)
}
