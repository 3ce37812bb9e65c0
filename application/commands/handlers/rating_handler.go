package handlers

import (
	"context"
	"errors"
	"fmt"

	"librefind/application/commands"
	"librefind/application/commands/bus"
	"librefind/application/services"
)

// ErrUnexpectedCommand is returned when a handler is registered for the
// wrong command type.
var ErrUnexpectedCommand = errors.New("unexpected command type")

// RateAlternativeHandler applies a rating through the optimistic rating
// service and returns the committed *services.RatingResult.
type RateAlternativeHandler struct {
	ratings *services.RatingService
}

func NewRateAlternativeHandler(ratings *services.RatingService) *RateAlternativeHandler {
	return &RateAlternativeHandler{ratings: ratings}
}

func (h *RateAlternativeHandler) Handle(ctx context.Context, cmd bus.Command) (interface{}, error) {
	c, ok := cmd.(commands.RateAlternativeCommand)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedCommand, cmd)
	}
	return h.ratings.Rate(ctx, c.AlternativeID, c.UserID, c.Stars)
}

// CastVoteHandler applies a category vote and returns the committed
// *services.VoteResult.
type CastVoteHandler struct {
	ratings *services.RatingService
}

func NewCastVoteHandler(ratings *services.RatingService) *CastVoteHandler {
	return &CastVoteHandler{ratings: ratings}
}

func (h *CastVoteHandler) Handle(ctx context.Context, cmd bus.Command) (interface{}, error) {
	c, ok := cmd.(commands.CastVoteCommand)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedCommand, cmd)
	}
	return h.ratings.Vote(ctx, c.AlternativeID, c.UserID, c.Category)
}
