package events

import (
	"time"

	"librefind/domain/services"
)

// SourceCatalog is the EventBridge source for every event this service emits.
const SourceCatalog = "librefind.catalog"

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

func newBase(aggregateID, eventType string, at time.Time) BaseEvent {
	return BaseEvent{AggregateID: aggregateID, EventType: eventType, Timestamp: at, Version: 1}
}

// Rating Events

// AlternativeRated is raised after a rating transaction commits.
type AlternativeRated struct {
	BaseEvent
	UserID        string  `json:"user_id"`
	Stars         int     `json:"stars"`
	PreviousStars int     `json:"previous_stars,omitempty"`
	RatingAvg     float64 `json:"rating_avg"`
	RatingCount   int     `json:"rating_count"`
}

// NewAlternativeRated creates an AlternativeRated event
func NewAlternativeRated(alternativeID, userID string, stars, previous int, avg float64, count int, at time.Time) AlternativeRated {
	return AlternativeRated{
		BaseEvent:     newBase(alternativeID, "alternative.rated", at),
		UserID:        userID,
		Stars:         stars,
		PreviousStars: previous,
		RatingAvg:     avg,
		RatingCount:   count,
	}
}

// AlternativeVoted is raised after a category vote commits.
type AlternativeVoted struct {
	BaseEvent
	UserID   string `json:"user_id"`
	Category string `json:"category"`
	Total    int    `json:"total"`
}

func NewAlternativeVoted(alternativeID, userID, category string, total int, at time.Time) AlternativeVoted {
	return AlternativeVoted{
		BaseEvent: newBase(alternativeID, "alternative.voted", at),
		UserID:    userID,
		Category:  category,
		Total:     total,
	}
}

// Community Events

// SubmissionCreated is raised when a user submits a new app for review.
type SubmissionCreated struct {
	BaseEvent
	SubmissionType string `json:"submission_type"`
	PackageName    string `json:"package_name"`
	SubmitterUID   string `json:"submitter_uid"`
}

func NewSubmissionCreated(id, submissionType, packageName, uid string, at time.Time) SubmissionCreated {
	return SubmissionCreated{
		BaseEvent:      newBase(id, "submission.created", at),
		SubmissionType: submissionType,
		PackageName:    packageName,
		SubmitterUID:   uid,
	}
}

// ProposalCreated is raised when a user proposes an alternative for a target.
type ProposalCreated struct {
	BaseEvent
	ProprietaryPackage string `json:"proprietary_package"`
	AlternativeID      string `json:"alternative_id"`
	UserID             string `json:"user_id"`
}

func NewProposalCreated(id, proprietaryPackage, alternativeID, userID string, at time.Time) ProposalCreated {
	return ProposalCreated{
		BaseEvent:          newBase(id, "proposal.created", at),
		ProprietaryPackage: proprietaryPackage,
		AlternativeID:      alternativeID,
		UserID:             userID,
	}
}

// FeedbackSubmitted is raised when a pro/con comment enters moderation.
type FeedbackSubmitted struct {
	BaseEvent
	AlternativeID string `json:"alternative_id"`
	FeedbackType  string `json:"feedback_type"`
	UserID        string `json:"user_id"`
}

func NewFeedbackSubmitted(id, alternativeID, feedbackType, userID string, at time.Time) FeedbackSubmitted {
	return FeedbackSubmitted{
		BaseEvent:     newBase(id, "feedback.submitted", at),
		AlternativeID: alternativeID,
		FeedbackType:  feedbackType,
		UserID:        userID,
	}
}

// FeedbackVoted is raised when a feedback record is marked helpful.
type FeedbackVoted struct {
	BaseEvent
	AlternativeID string `json:"alternative_id"`
	UserID        string `json:"user_id"`
}

func NewFeedbackVoted(feedbackID, alternativeID, userID string, at time.Time) FeedbackVoted {
	return FeedbackVoted{
		BaseEvent:     newBase(feedbackID, "feedback.voted", at),
		AlternativeID: alternativeID,
		UserID:        userID,
	}
}

// ReportSubmitted is raised when a user files a bug report or suggestion.
type ReportSubmitted struct {
	BaseEvent
	ReportType   string `json:"report_type"`
	Priority     string `json:"priority"`
	SubmitterUID string `json:"submitter_uid"`
}

func NewReportSubmitted(id, reportType, priority, uid string, at time.Time) ReportSubmitted {
	return ReportSubmitted{
		BaseEvent:    newBase(id, "report.submitted", at),
		ReportType:   reportType,
		Priority:     priority,
		SubmitterUID: uid,
	}
}

// Inventory Events

// InventoryScanned summarises a completed scan. Package names are not
// included.
type InventoryScanned struct {
	BaseEvent
	Score services.SovereigntyScore `json:"score"`
	Tier  services.Tier             `json:"tier"`
}

func NewInventoryScanned(sessionID string, score services.SovereigntyScore, at time.Time) InventoryScanned {
	return InventoryScanned{
		BaseEvent: newBase(sessionID, "inventory.scanned", at),
		Score:     score,
		Tier:      score.Tier(),
	}
}
