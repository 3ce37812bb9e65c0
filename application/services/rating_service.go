package services

import (
	"context"
	"strings"
	"time"

	"librefind/application/ports"
	"librefind/domain/core/aggregates"
	"librefind/domain/core/entities"
	"librefind/domain/core/valueobjects"
	"librefind/domain/events"
	"librefind/pkg/errors"
	"librefind/pkg/observability"
	"librefind/pkg/utils"

	"go.uber.org/zap"
)

// RatingResult is the committed outcome of one Rate call.
type RatingResult struct {
	AlternativeID string  `json:"alternativeId"`
	Stars         int     `json:"stars"`
	PreviousStars int     `json:"previousStars,omitempty"`
	Average       float64 `json:"ratingAvg"`
	Count         int     `json:"ratingCount"`
	IsNew         bool    `json:"isNew"`
}

// Aggregate returns the committed aggregate.
func (r RatingResult) Aggregate() aggregates.RatingAggregate {
	return aggregates.RatingAggregate{Average: r.Average, Count: r.Count}
}

// RatingService applies user ratings to alternatives.
//
// The rating record and the alternative's aggregate are updated in one
// optimistic transaction: concurrent raters on the same alternative either
// commit against the state they read or start over, so the count always
// equals the number of distinct raters and the average their mean.
type RatingService struct {
	store     ports.RatingStore
	publisher ports.EventPublisher
	collector *observability.Collector
	clock     utils.Clock
	logger    *zap.Logger
}

func NewRatingService(
	store ports.RatingStore,
	publisher ports.EventPublisher,
	collector *observability.Collector,
	clock utils.Clock,
	logger *zap.Logger,
) *RatingService {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RatingService{
		store:     store,
		publisher: publisher,
		collector: collector,
		clock:     clock,
		logger:    logger,
	}
}

// Rate records userID's stars for alternativeID. Callers without a user,
// stars outside the scale and a blank id are rejected before any I/O.
func (s *RatingService) Rate(ctx context.Context, alternativeID, userID string, stars int) (*RatingResult, error) {
	if userID == "" {
		return nil, errors.NewNotSignedInError()
	}
	st, err := valueobjects.NewStars(stars)
	if err != nil {
		return nil, err
	}
	alternativeID = strings.TrimSpace(alternativeID)
	if alternativeID == "" {
		return nil, errors.ErrFieldRequired.Clone().WithDetail("field", "alternativeId")
	}

	var result RatingResult
	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx ports.RatingTransaction) error {
		now := s.clock.Now()
		previous, createdAt := 0, now

		existing, err := tx.GetRating(ctx, alternativeID, userID)
		switch {
		case err == nil:
			previous, createdAt = existing.Stars, existing.CreatedAt
		case !errors.IsNotFound(err):
			return err
		}

		alt, err := tx.GetAlternative(ctx, alternativeID)
		if err != nil {
			if errors.IsNotFound(err) {
				return errors.ErrAlternativeNotFound.Clone().WithDetail("alternativeId", alternativeID)
			}
			return err
		}

		current := aggregates.RatingAggregate{Average: alt.RatingAvg, Count: alt.RatingCount}
		next := current.Apply(previous, st.Int())

		tx.PutRating(&entities.Rating{
			AlternativeID: alternativeID,
			UserID:        userID,
			Stars:         st.Int(),
			CreatedAt:     createdAt,
			UpdatedAt:     now,
		})
		tx.SetRatingAggregate(alternativeID, next)

		result = RatingResult{
			AlternativeID: alternativeID,
			Stars:         st.Int(),
			PreviousStars: previous,
			Average:       next.Average,
			Count:         next.Count,
			IsNew:         previous == 0,
		}
		return nil
	})
	s.recordOutcome(err)
	if err != nil {
		s.logger.Warn("Rating not applied",
			zap.String("alternativeID", alternativeID),
			zap.String("userID", userID),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("Rating applied",
		zap.String("alternativeID", alternativeID),
		zap.Int("stars", result.Stars),
		zap.Bool("isNew", result.IsNew),
		zap.Int("count", result.Count),
	)
	s.publish(ctx, events.NewAlternativeRated(alternativeID, userID, result.Stars, result.PreviousStars, result.Average, result.Count, s.clock.Now()))
	return &result, nil
}

// VoteResult is the committed tally after one Vote call.
type VoteResult struct {
	AlternativeID string                `json:"alternativeId"`
	Category      entities.VoteCategory `json:"category"`
	Votes         map[string]int        `json:"votes"`
}

// Vote endorses alternativeID for one category. The vote record and the
// alternative's tally commit together, and a second vote by the same user in
// the same category is refused with ErrAlreadyVoted.
func (s *RatingService) Vote(ctx context.Context, alternativeID, userID string, category entities.VoteCategory) (*VoteResult, error) {
	if userID == "" {
		return nil, errors.NewNotSignedInError()
	}
	if !category.IsValid() {
		return nil, errors.ErrInvalidVoteCategory.Clone().WithDetail("category", string(category))
	}
	alternativeID = strings.TrimSpace(alternativeID)
	if alternativeID == "" {
		return nil, errors.ErrFieldRequired.Clone().WithDetail("field", "alternativeId")
	}

	var result VoteResult
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx ports.RatingTransaction) error {
		_, err := tx.GetVote(ctx, alternativeID, userID, category)
		switch {
		case err == nil:
			return errors.ErrAlreadyVoted.Clone().WithDetail("category", string(category))
		case !errors.IsNotFound(err):
			return err
		}

		alt, err := tx.GetAlternative(ctx, alternativeID)
		if err != nil {
			if errors.IsNotFound(err) {
				return errors.ErrAlternativeNotFound.Clone().WithDetail("alternativeId", alternativeID)
			}
			return err
		}

		votes := make(map[string]int, len(alt.Votes)+1)
		for k, n := range alt.Votes {
			votes[k] = n
		}
		votes[string(category)]++

		tx.PutVote(&entities.CategoryVote{
			AlternativeID: alternativeID,
			UserID:        userID,
			Category:      category,
			CreatedAt:     s.clock.Now(),
		})
		tx.SetCategoryVotes(alternativeID, votes)

		result = VoteResult{AlternativeID: alternativeID, Category: category, Votes: votes}
		return nil
	})
	s.recordOutcome(err)
	if err != nil {
		s.logger.Warn("Vote not applied",
			zap.String("alternativeID", alternativeID),
			zap.String("category", string(category)),
			zap.Error(err),
		)
		return nil, err
	}

	total := result.Votes[string(category)]
	s.logger.Info("Vote applied",
		zap.String("alternativeID", alternativeID),
		zap.String("category", string(category)),
		zap.Int("total", total),
	)
	s.publish(ctx, events.NewAlternativeVoted(alternativeID, userID, string(category), total, s.clock.Now()))
	return &result, nil
}

func (s *RatingService) recordOutcome(err error) {
	if s.collector == nil {
		return
	}
	outcome := "committed"
	switch {
	case err == nil:
	case errors.HasCode(err, errors.CodeTransactionAborted):
		outcome = "aborted"
	default:
		outcome = "failed"
	}
	s.collector.RatingTransactions.WithLabelValues(outcome).Inc()
}

// publish is best effort: the rating is already committed.
func (s *RatingService) publish(ctx context.Context, event events.DomainEvent) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish event",
			zap.String("eventType", event.GetEventType()),
			zap.String("aggregateID", event.GetAggregateID()),
			zap.Error(err),
		)
	}
}
