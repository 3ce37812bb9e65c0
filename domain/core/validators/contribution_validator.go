package validators

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"librefind/domain/config"
	"librefind/domain/core/entities"
	"librefind/domain/core/valueobjects"
	"librefind/pkg/errors"
)

// ContributionValidator enforces the rules every community record must meet
// before it is written. All checks run without I/O and report every failing
// field at once.
type ContributionValidator struct {
	cfg *config.DomainConfig
}

// NewContributionValidator creates a validator bound to the given limits.
func NewContributionValidator(cfg *config.DomainConfig) *ContributionValidator {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &ContributionValidator{cfg: cfg}
}

// ValidateSubmission checks a new-app submission.
func (v *ContributionValidator) ValidateSubmission(s *entities.Submission) error {
	errs := errors.NewValidationErrors()

	v.requireText(errs, "name", s.App.Name, v.cfg.MaxAppNameLength)
	v.requireText(errs, "description", s.App.Description, v.cfg.MaxDescriptionLength)

	if _, err := valueobjects.NewPackageName(s.App.PackageName); err != nil {
		errs.AddFieldError("packageName", err)
	}
	if _, err := valueobjects.NewRepoURL(s.App.RepoURL); err != nil {
		errs.AddFieldError("repoUrl", err)
	}

	switch s.Type {
	case entities.SubmissionNewAlternative:
		if len(s.ProprietaryPackages) == 0 {
			errs.Add("proprietaryPackages", "at least one proprietary app must be selected")
		}
	case entities.SubmissionNewProprietary:
	default:
		errs.Add("type", fmt.Sprintf("unsupported submission type %q", s.Type))
	}

	if len(s.ProprietaryPackages) > v.cfg.MaxTargetsPerSubmit {
		errs.Add("proprietaryPackages", fmt.Sprintf("at most %d proprietary apps per submission", v.cfg.MaxTargetsPerSubmit))
	}
	for i, pkg := range s.ProprietaryPackages {
		if _, err := valueobjects.NewPackageName(pkg); err != nil {
			errs.AddFieldError(fmt.Sprintf("proprietaryPackages[%d]", i), err)
		}
	}

	return errs.ErrorOrNil()
}

// ValidateProposal checks a request to link an alternative to a target.
func (v *ContributionValidator) ValidateProposal(p *entities.Proposal) error {
	errs := errors.NewValidationErrors()

	if _, err := valueobjects.NewPackageName(p.ProprietaryPackage); err != nil {
		errs.AddFieldError("proprietaryPackage", err)
	}
	if strings.TrimSpace(p.AlternativeID) == "" {
		errs.Add("alternativeId", "alternativeId is required")
	}

	return errs.ErrorOrNil()
}

// ValidateFeedback checks a pro/con comment.
func (v *ContributionValidator) ValidateFeedback(f *entities.Feedback) error {
	errs := errors.NewValidationErrors()

	if strings.TrimSpace(f.AlternativeID) == "" {
		errs.Add("alternativeId", "alternativeId is required")
	}
	if f.Type != entities.FeedbackPro && f.Type != entities.FeedbackCon {
		errs.Add("type", "type must be one of: PRO CON")
	}
	v.requireText(errs, "text", f.Text, v.cfg.MaxFeedbackLength)

	return errs.ErrorOrNil()
}

// ValidateReport checks a user issue report. Titles share the app name limit.
func (v *ContributionValidator) ValidateReport(r *entities.Report) error {
	errs := errors.NewValidationErrors()

	v.requireText(errs, "title", r.Title, v.cfg.MaxAppNameLength)
	v.requireText(errs, "description", r.Description, v.cfg.MaxDescriptionLength)
	switch r.Type {
	case entities.ReportBug, entities.ReportSuggestion, entities.ReportQuestion, entities.ReportOther:
	default:
		errs.Add("type", fmt.Sprintf("unsupported report type %q", r.Type))
	}

	return errs.ErrorOrNil()
}

// ValidateUsername checks the public name chosen during profile setup.
func (v *ContributionValidator) ValidateUsername(username string) error {
	errs := errors.NewValidationErrors()
	name := strings.TrimSpace(username)
	n := utf8.RuneCountInString(name)

	switch {
	case name == "":
		errs.Add("username", "username is required")
	case n < v.cfg.MinUsernameLength || n > v.cfg.MaxUsernameLength:
		errs.Add("username", fmt.Sprintf("username must be %d-%d characters", v.cfg.MinUsernameLength, v.cfg.MaxUsernameLength))
	case strings.ContainsAny(name, " \t\n"):
		errs.Add("username", "username must not contain whitespace")
	}

	return errs.ErrorOrNil()
}

func (v *ContributionValidator) requireText(errs *errors.ValidationErrors, field, value string, max int) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		errs.Add(field, fmt.Sprintf("%s is required", field))
		return
	}
	if max > 0 && utf8.RuneCountInString(trimmed) > max {
		errs.Add(field, fmt.Sprintf("%s must be at most %d characters", field, max))
	}
}
