package commands

import (
	"librefind/domain/core/entities"
	"librefind/pkg/errors"
	"librefind/pkg/utils"
)

// RateAlternativeCommand sets the caller's stars for one alternative.
type RateAlternativeCommand struct {
	UserID        string `json:"-"`
	AlternativeID string `json:"alternativeId" validate:"notblank"`
	Stars         int    `json:"stars" validate:"min=1,max=5"`
}

// Validate rejects a missing user before looking at the payload.
func (c RateAlternativeCommand) Validate() error {
	if c.UserID == "" {
		return errors.NewNotSignedInError()
	}
	return utils.ValidateStruct(c)
}

// CastVoteCommand endorses an alternative for one quality category.
type CastVoteCommand struct {
	UserID        string                `json:"-"`
	AlternativeID string                `json:"alternativeId" validate:"notblank"`
	Category      entities.VoteCategory `json:"category" validate:"oneof=usability privacy features"`
}

func (c CastVoteCommand) Validate() error {
	if c.UserID == "" {
		return errors.NewNotSignedInError()
	}
	return utils.ValidateStruct(c)
}
