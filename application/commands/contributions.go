package commands

import (
	"librefind/domain/core/entities"
	"librefind/pkg/errors"
	"librefind/pkg/utils"
)

// Every contribution needs a signed-in user. Field rules that depend on
// configured limits are checked again by the handler's ContributionValidator.

// SubmittedAppInput describes the app a submission proposes.
type SubmittedAppInput struct {
	Name        string `json:"name" validate:"notblank"`
	PackageName string `json:"packageName" validate:"pkgname"`
	RepoURL     string `json:"repoUrl,omitempty" validate:"omitempty,httpsurl"`
	FdroidID    string `json:"fdroidId,omitempty"`
	Description string `json:"description" validate:"notblank"`
	License     string `json:"license,omitempty"`
}

// SubmitAppCommand asks curators to add a new FOSS alternative or a new
// proprietary target.
type SubmitAppCommand struct {
	UserID              string                  `json:"-"`
	Type                entities.SubmissionType `json:"type" validate:"oneof=NEW_ALTERNATIVE NEW_PROPRIETARY"`
	ProprietaryPackages []string                `json:"proprietaryPackages,omitempty" validate:"required_if=Type NEW_ALTERNATIVE,dive,pkgname"`
	App                 SubmittedAppInput       `json:"submittedApp"`
}

func (c SubmitAppCommand) Validate() error {
	if c.UserID == "" {
		return errors.NewNotSignedInError()
	}
	return utils.ValidateStruct(c)
}

// ProposeAlternativeCommand links an existing alternative to a target.
type ProposeAlternativeCommand struct {
	UserID             string `json:"-"`
	ProprietaryPackage string `json:"proprietaryPackage" validate:"pkgname"`
	AlternativeID      string `json:"alternativeId" validate:"notblank"`
}

func (c ProposeAlternativeCommand) Validate() error {
	if c.UserID == "" {
		return errors.NewNotSignedInError()
	}
	return utils.ValidateStruct(c)
}

// SubmitFeedbackCommand adds a pro or con comment to an alternative.
type SubmitFeedbackCommand struct {
	UserID        string                `json:"-"`
	AlternativeID string                `json:"alternativeId" validate:"notblank"`
	Type          entities.FeedbackType `json:"type" validate:"oneof=PRO CON"`
	Text          string                `json:"text" validate:"notblank,max=500"`
}

func (c SubmitFeedbackCommand) Validate() error {
	if c.UserID == "" {
		return errors.NewNotSignedInError()
	}
	return utils.ValidateStruct(c)
}

// VoteHelpfulCommand marks a feedback record helpful.
type VoteHelpfulCommand struct {
	UserID        string `json:"-"`
	AlternativeID string `json:"alternativeId" validate:"notblank"`
	FeedbackID    string `json:"feedbackId" validate:"notblank"`
}

func (c VoteHelpfulCommand) Validate() error {
	if c.UserID == "" {
		return errors.NewNotSignedInError()
	}
	return utils.ValidateStruct(c)
}

// SetupProfileCommand creates or renames the caller's public profile.
type SetupProfileCommand struct {
	UserID   string `json:"-"`
	Username string `json:"username" validate:"notblank"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
}

func (c SetupProfileCommand) Validate() error {
	if c.UserID == "" {
		return errors.NewNotSignedInError()
	}
	return utils.ValidateStruct(c)
}

// SubmitReportCommand files a bug report, suggestion or question with the
// maintainers. Priority defaults to LOW.
type SubmitReportCommand struct {
	UserID      string                  `json:"-"`
	Title       string                  `json:"title" validate:"notblank"`
	Description string                  `json:"description" validate:"notblank"`
	Type        entities.ReportType     `json:"type" validate:"oneof=BUG SUGGESTION QUESTION OTHER"`
	Priority    entities.ReportPriority `json:"priority,omitempty" validate:"omitempty,oneof=LOW MEDIUM HIGH CRITICAL"`
}

func (c SubmitReportCommand) Validate() error {
	if c.UserID == "" {
		return errors.NewNotSignedInError()
	}
	return utils.ValidateStruct(c)
}
