package queries

import (
	"fmt"

	"librefind/domain/core/entities"
	"librefind/domain/services"
	"librefind/pkg/errors"
	"librefind/pkg/utils"
)

// ListTargetsQuery lists every catalogued proprietary app.
type ListTargetsQuery struct{}

func (ListTargetsQuery) Validate() error { return nil }

func (ListTargetsQuery) CacheKey() string { return "targets" }

// GetAlternativesQuery returns the alternatives for one proprietary app as
// ViewerID sees them. An empty ViewerID is an anonymous viewer.
type GetAlternativesQuery struct {
	PackageName string `validate:"pkgname"`
	ViewerID    string `json:"-"`
}

func (q GetAlternativesQuery) Validate() error { return utils.ValidateStruct(q) }

// ListFeedbackQuery returns approved feedback for an alternative, most
// helpful first.
type ListFeedbackQuery struct {
	AlternativeID string `json:"alternativeId" validate:"notblank"`
}

func (q ListFeedbackQuery) Validate() error { return utils.ValidateStruct(q) }

// MySubmissionsQuery returns the caller's own submissions, newest first.
type MySubmissionsQuery struct {
	UserID string
}

func (q MySubmissionsQuery) Validate() error {
	if q.UserID == "" {
		return errors.NewNotSignedInError()
	}
	return nil
}

// MyReportsQuery returns the caller's own issue reports, newest first.
type MyReportsQuery struct {
	UserID string
}

func (q MyReportsQuery) Validate() error {
	if q.UserID == "" {
		return errors.NewNotSignedInError()
	}
	return nil
}

// GetProfileQuery returns the caller's profile.
type GetProfileQuery struct {
	UserID string
}

func (q GetProfileQuery) Validate() error {
	if q.UserID == "" {
		return errors.NewNotSignedInError()
	}
	return nil
}

// CheckDuplicateQuery asks whether an app being submitted already exists.
// Both fields blank is a valid query with a NO_MATCH answer.
type CheckDuplicateQuery struct {
	Name        string
	PackageName string
}

func (CheckDuplicateQuery) Validate() error { return nil }

// ClassifyInventoryQuery runs one synchronous pipeline pass over a posted
// package list. The handler caps the list at the configured scan size.
type ClassifyInventoryQuery struct {
	Packages []entities.InstalledPackage `json:"packages" validate:"dive"`
	Ignored  []string                    `json:"ignored"`
	Query    string                      `json:"query"`
	Status   *entities.AppStatus         `json:"status"`
}

func (q ClassifyInventoryQuery) Validate() error {
	if q.Status != nil && !q.Status.IsValid() {
		errs := errors.NewValidationErrors()
		errs.Add("status", "status must be one of: FOSS PROP UNKN")
		return errs
	}
	return utils.ValidateStruct(q)
}

// CheckSize rejects a package list longer than limit. A limit of zero or
// less means no cap.
func (q ClassifyInventoryQuery) CheckSize(limit int) error {
	if limit <= 0 || len(q.Packages) <= limit {
		return nil
	}
	errs := errors.NewValidationErrors()
	errs.Add("packages", fmt.Sprintf("at most %d packages per scan", limit))
	return errs
}

// InventoryReport is the visible inventory and the score of a scan.
type InventoryReport struct {
	Apps  []entities.AppItem     `json:"apps"`
	Score *services.ScoreReport `json:"score"`
}
