package services

import (
	"context"
	"sort"
	"sync"

	"librefind/application/ports"
	"librefind/domain/core/aggregates"
	"librefind/domain/core/entities"
	"librefind/pkg/errors"

	"go.uber.org/zap"
)

// AlternativeList is a viewer's local copy of a target's alternatives. It
// applies a rating optimistically before the server answers and reconciles
// with the committed aggregate afterwards.
type AlternativeList struct {
	mu    sync.RWMutex
	items []entities.Alternative
}

// RatingSnapshot undoes one ApplyOptimistic.
type RatingSnapshot struct {
	AlternativeID string
	Aggregate     aggregates.RatingAggregate
	UserRating    *int
	found         bool
}

func NewAlternativeList(items []entities.Alternative) *AlternativeList {
	return &AlternativeList{items: append([]entities.Alternative(nil), items...)}
}

// Items returns a copy in display order.
func (l *AlternativeList) Items() []entities.Alternative {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]entities.Alternative(nil), l.items...)
}

// ApplyOptimistic folds stars into the local aggregate using the same rule
// as the server, treating the viewer's current userRating as the previous
// vote.
func (l *AlternativeList) ApplyOptimistic(alternativeID string, stars int) RatingSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.indexOf(alternativeID)
	if i < 0 {
		return RatingSnapshot{AlternativeID: alternativeID}
	}
	alt := &l.items[i]
	snap := RatingSnapshot{
		AlternativeID: alternativeID,
		Aggregate:     aggregates.RatingAggregate{Average: alt.RatingAvg, Count: alt.RatingCount},
		UserRating:    alt.UserRating,
		found:         true,
	}

	previous := 0
	if alt.UserRating != nil {
		previous = *alt.UserRating
	}
	next := snap.Aggregate.Apply(previous, stars)
	alt.RatingAvg, alt.RatingCount = next.Average, next.Count
	*alt = alt.WithUserRating(stars)
	return snap
}

// Reconcile overwrites the local aggregate with the committed one.
func (l *AlternativeList) Reconcile(result RatingResult) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if i := l.indexOf(result.AlternativeID); i >= 0 {
		alt := &l.items[i]
		alt.RatingAvg, alt.RatingCount = result.Average, result.Count
		*alt = alt.WithUserRating(result.Stars)
	}
}

// Revert restores the state captured by snap after a failed rating.
func (l *AlternativeList) Revert(snap RatingSnapshot) {
	if !snap.found {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if i := l.indexOf(snap.AlternativeID); i >= 0 {
		alt := &l.items[i]
		alt.RatingAvg, alt.RatingCount = snap.Aggregate.Average, snap.Aggregate.Count
		alt.UserRating = snap.UserRating
	}
}

func (l *AlternativeList) indexOf(id string) int {
	for i := range l.items {
		if l.items[i].ID == id {
			return i
		}
	}
	return -1
}

// SortByRating orders alternatives best rated first, keeping curator order
// between equals.
func SortByRating(alts []entities.Alternative) {
	sort.SliceStable(alts, func(i, j int) bool {
		return alts[i].RatingAvg > alts[j].RatingAvg
	})
}

// AlternativeCatalog serves alternatives as a particular viewer sees them.
type AlternativeCatalog struct {
	classifier *PackageClassifier
	ratings    ports.AlternativeReader
	logger     *zap.Logger
}

func NewAlternativeCatalog(classifier *PackageClassifier, ratings ports.AlternativeReader, logger *zap.Logger) *AlternativeCatalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlternativeCatalog{classifier: classifier, ratings: ratings, logger: logger}
}

// ForTarget returns the alternatives of packageName sorted by rating, each
// carrying the viewer's own stars when the viewer is signed in and has
// rated it.
func (c *AlternativeCatalog) ForTarget(ctx context.Context, packageName string, viewer ports.SessionProvider) []entities.Alternative {
	alts := c.classifier.GetAlternatives(ctx, packageName)
	SortByRating(alts)

	uid, signedIn := "", false
	if viewer != nil {
		uid, signedIn = viewer.CurrentUserID()
	}
	if !signedIn {
		return alts
	}

	var wg sync.WaitGroup
	for i := range alts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := c.ratings.GetRating(ctx, alts[i].ID, uid)
			if err != nil {
				if !errors.IsNotFound(err) {
					c.logger.Debug("User rating unavailable",
						zap.String("alternativeID", alts[i].ID),
						zap.Error(err),
					)
				}
				return
			}
			alts[i] = alts[i].WithUserRating(r.Stars)
		}(i)
	}
	wg.Wait()
	return alts
}
