package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"librefind/application/commands"
	"librefind/application/commands/bus"
	"librefind/application/ports"
	"librefind/domain/core/entities"
	"librefind/domain/core/validators"
	"librefind/domain/core/valueobjects"
	"librefind/domain/events"
	"librefind/pkg/errors"
	"librefind/pkg/observability"
	"librefind/pkg/utils"

	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// CommunityHandler handles the community write commands: submissions,
// proposals, feedback, helpful votes, issue reports and profile setup. None
// of these writes is retried.
type CommunityHandler struct {
	submissions ports.SubmissionRepository
	feedback    ports.FeedbackRepository
	reports     ports.ReportRepository
	profiles    ports.ProfileRepository
	publisher   ports.EventPublisher
	validator   *validators.ContributionValidator
	collector   *observability.Collector
	clock       utils.Clock
	logger      *zap.Logger
}

// NewCommunityHandler wires the handler. publisher and collector may be nil.
func NewCommunityHandler(
	store ports.CatalogStore,
	publisher ports.EventPublisher,
	validator *validators.ContributionValidator,
	collector *observability.Collector,
	clock utils.Clock,
	logger *zap.Logger,
) *CommunityHandler {
	if validator == nil {
		validator = validators.NewContributionValidator(nil)
	}
	if clock == nil {
		clock = utils.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommunityHandler{
		submissions: store,
		feedback:    store,
		reports:     store,
		profiles:    store,
		publisher:   publisher,
		validator:   validator,
		collector:   collector,
		clock:       clock,
		logger:      logger,
	}
}

// Register binds every community command to b.
func (h *CommunityHandler) Register(b *bus.CommandBus) error {
	routes := []struct {
		cmd bus.Command
		fn  bus.CommandHandlerFunc
	}{
		{commands.SubmitAppCommand{}, h.submitApp},
		{commands.ProposeAlternativeCommand{}, h.proposeAlternative},
		{commands.SubmitFeedbackCommand{}, h.submitFeedback},
		{commands.VoteHelpfulCommand{}, h.voteHelpful},
		{commands.SubmitReportCommand{}, h.submitReport},
		{commands.SetupProfileCommand{}, h.setupProfile},
	}
	for _, r := range routes {
		if err := b.Register(r.cmd, r.fn); err != nil {
			return err
		}
	}
	return nil
}

// submitApp returns the stored *entities.Submission.
func (h *CommunityHandler) submitApp(ctx context.Context, cmd bus.Command) (interface{}, error) {
	c, ok := cmd.(commands.SubmitAppCommand)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedCommand, cmd)
	}

	profile, err := h.requireProfile(ctx, c.UserID)
	if err != nil {
		return nil, err
	}

	sub := &entities.Submission{
		ID:                  valueobjects.NewRecordID().String(),
		Type:                c.Type,
		ProprietaryPackages: trimAll(c.ProprietaryPackages),
		SubmitterUID:        c.UserID,
		SubmitterUsername:   profile.Username,
		App: entities.SubmittedApp{
			Name:        strings.TrimSpace(c.App.Name),
			PackageName: strings.TrimSpace(c.App.PackageName),
			RepoURL:     strings.TrimSpace(c.App.RepoURL),
			FdroidID:    strings.TrimSpace(c.App.FdroidID),
			Description: strings.TrimSpace(c.App.Description),
			License:     strings.TrimSpace(c.App.License),
		},
		Status:    entities.ReviewPending,
		CreatedAt: h.clock.Now(),
	}
	if err := h.validator.ValidateSubmission(sub); err != nil {
		return nil, err
	}

	id, err := h.submissions.AddSubmission(ctx, sub)
	if err != nil {
		return nil, errors.Wrap(err, "failed to store submission")
	}
	sub.ID = id

	h.accepted("submission")
	h.publish(ctx, events.NewSubmissionCreated(id, string(sub.Type), sub.App.PackageName, c.UserID, sub.CreatedAt))
	h.logger.Info("Submission created",
		zap.String("submissionID", id),
		zap.String("type", string(sub.Type)),
		zap.String("packageName", sub.App.PackageName),
	)
	return sub, nil
}

// proposeAlternative returns the stored *entities.Proposal.
func (h *CommunityHandler) proposeAlternative(ctx context.Context, cmd bus.Command) (interface{}, error) {
	c, ok := cmd.(commands.ProposeAlternativeCommand)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedCommand, cmd)
	}

	p := &entities.Proposal{
		ID:                 valueobjects.NewRecordID().String(),
		ProprietaryPackage: strings.TrimSpace(c.ProprietaryPackage),
		AlternativeID:      strings.TrimSpace(c.AlternativeID),
		UserID:             c.UserID,
		Status:             entities.ReviewPending,
		CreatedAt:          h.clock.Now(),
	}
	if err := h.validator.ValidateProposal(p); err != nil {
		return nil, err
	}

	id, err := h.submissions.AddProposal(ctx, p)
	if err != nil {
		return nil, errors.Wrap(err, "failed to store proposal")
	}
	p.ID = id

	h.accepted("proposal")
	h.publish(ctx, events.NewProposalCreated(id, p.ProprietaryPackage, p.AlternativeID, c.UserID, p.CreatedAt))
	return p, nil
}

// submitFeedback returns the stored *entities.Feedback.
func (h *CommunityHandler) submitFeedback(ctx context.Context, cmd bus.Command) (interface{}, error) {
	c, ok := cmd.(commands.SubmitFeedbackCommand)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedCommand, cmd)
	}

	profile, err := h.requireProfile(ctx, c.UserID)
	if err != nil {
		return nil, err
	}

	f := &entities.Feedback{
		ID:            valueobjects.NewRecordID().String(),
		AlternativeID: strings.TrimSpace(c.AlternativeID),
		UID:           c.UserID,
		Username:      profile.Username,
		Type:          c.Type,
		Text:          strings.TrimSpace(c.Text),
		Status:        entities.ReviewPending,
		CreatedAt:     h.clock.Now(),
	}
	if err := h.validator.ValidateFeedback(f); err != nil {
		return nil, err
	}

	id, err := h.feedback.AddFeedback(ctx, f)
	if err != nil {
		return nil, errors.Wrap(err, "failed to store feedback")
	}
	f.ID = id

	h.accepted("feedback")
	h.publish(ctx, events.NewFeedbackSubmitted(id, f.AlternativeID, string(f.Type), c.UserID, f.CreatedAt))
	return f, nil
}

// voteHelpful returns nil on success. A missing feedback record is NOT_FOUND.
func (h *CommunityHandler) voteHelpful(ctx context.Context, cmd bus.Command) (interface{}, error) {
	c, ok := cmd.(commands.VoteHelpfulCommand)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedCommand, cmd)
	}

	if err := h.feedback.IncrementHelpful(ctx, c.AlternativeID, c.FeedbackID); err != nil {
		return nil, err
	}

	h.accepted("helpful_vote")
	h.publish(ctx, events.NewFeedbackVoted(c.FeedbackID, c.AlternativeID, c.UserID, h.clock.Now()))
	return nil, nil
}

// submitReport returns the stored *entities.Report. A profile is not
// required; when one exists its username is copied onto the report.
func (h *CommunityHandler) submitReport(ctx context.Context, cmd bus.Command) (interface{}, error) {
	c, ok := cmd.(commands.SubmitReportCommand)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedCommand, cmd)
	}

	r := &entities.Report{
		ID:           valueobjects.NewRecordID().String(),
		Title:        strings.TrimSpace(c.Title),
		Description:  strings.TrimSpace(c.Description),
		Type:         c.Type,
		Status:       entities.ReportOpen,
		Priority:     c.Priority,
		SubmitterUID: c.UserID,
		CreatedAt:    h.clock.Now(),
	}
	if r.Priority == "" {
		r.Priority = entities.PriorityLow
	}
	if err := h.validator.ValidateReport(r); err != nil {
		return nil, err
	}

	profile, err := h.profiles.GetProfile(ctx, c.UserID)
	switch {
	case err == nil:
		r.SubmitterUsername = profile.Username
	case !errors.IsNotFound(err):
		h.logger.Warn("Profile lookup failed, filing report without username",
			zap.String("userID", c.UserID),
			zap.Error(err),
		)
	}

	id, err := h.reports.AddReport(ctx, r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to store report")
	}
	r.ID = id

	h.accepted("report")
	h.publish(ctx, events.NewReportSubmitted(id, string(r.Type), string(r.Priority), c.UserID, r.CreatedAt))
	h.logger.Info("Report filed",
		zap.String("reportID", id),
		zap.String("type", string(r.Type)),
		zap.String("priority", string(r.Priority)),
	)
	return r, nil
}

// setupProfile returns the stored *entities.UserProfile. A failed username
// lookup counts as taken so a flaky store never lets a duplicate through.
func (h *CommunityHandler) setupProfile(ctx context.Context, cmd bus.Command) (interface{}, error) {
	c, ok := cmd.(commands.SetupProfileCommand)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedCommand, cmd)
	}

	username := strings.TrimSpace(c.Username)
	if err := h.validator.ValidateUsername(username); err != nil {
		return nil, err
	}

	profile, err := h.profiles.GetProfile(ctx, c.UserID)
	switch {
	case errors.IsNotFound(err):
		profile = &entities.UserProfile{UID: c.UserID, JoinedAt: h.clock.Now()}
	case err != nil:
		return nil, errors.Wrap(err, "failed to load profile")
	}

	if !strings.EqualFold(profile.Username, username) {
		taken, err := h.profiles.IsUsernameTaken(ctx, username)
		if err != nil {
			h.logger.Warn("Username lookup failed, treating as taken",
				zap.String("username", username),
				zap.Error(err),
			)
			taken = true
		}
		if taken {
			return nil, usernameTaken(username)
		}
	}

	profile.Username = username
	if email := strings.TrimSpace(c.Email); email != "" {
		profile.Email = email
	}
	if err := h.profiles.PutProfile(ctx, profile); err != nil {
		if errors.HasCode(err, errors.CodeUsernameTaken) {
			return nil, usernameTaken(username)
		}
		return nil, errors.Wrap(err, "failed to store profile")
	}

	h.accepted("profile")
	return profile, nil
}

func (h *CommunityHandler) requireProfile(ctx context.Context, uid string) (*entities.UserProfile, error) {
	profile, err := h.profiles.GetProfile(ctx, uid)
	if errors.IsNotFound(err) {
		return nil, errors.ErrProfileNotSetUp.Clone()
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load profile")
	}
	return profile, nil
}

func (h *CommunityHandler) accepted(kind string) {
	if h.collector != nil {
		h.collector.Contributions.WithLabelValues(kind).Inc()
	}
}

// publish is best-effort: the record is already stored.
func (h *CommunityHandler) publish(ctx context.Context, event events.DomainEvent) {
	if h.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := h.publisher.Publish(ctx, event); err != nil {
		h.logger.Warn("Failed to publish event",
			zap.String("eventType", event.GetEventType()),
			zap.String("aggregateID", event.GetAggregateID()),
			zap.Error(err),
		)
	}
}

func usernameTaken(username string) error {
	return errors.ErrUsernameTaken.Clone().WithDetail("username", username)
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, strings.TrimSpace(v))
	}
	return out
}
