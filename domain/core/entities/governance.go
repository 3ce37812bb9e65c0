package entities

import "time"

// ReviewStatus is the moderation state of a community record. Moderation
// itself happens outside this service.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "PENDING"
	ReviewApproved ReviewStatus = "APPROVED"
	ReviewRejected ReviewStatus = "REJECTED"
)

// SubmissionType says what a user submission asks curators to add.
type SubmissionType string

const (
	SubmissionNewAlternative SubmissionType = "NEW_ALTERNATIVE"
	SubmissionNewProprietary SubmissionType = "NEW_PROPRIETARY"
)

// SubmittedApp is the app described by a submission.
type SubmittedApp struct {
	Name        string `json:"name"`
	PackageName string `json:"packageName"`
	RepoURL     string `json:"repoUrl,omitempty"`
	FdroidID    string `json:"fdroidId,omitempty"`
	Description string `json:"description"`
	License     string `json:"license,omitempty"`
}

// Submission is an append-only request to extend the catalog.
type Submission struct {
	ID                  string         `json:"id"`
	Type                SubmissionType `json:"type"`
	ProprietaryPackages []string       `json:"proprietaryPackages,omitempty"`
	SubmitterUID        string         `json:"submitterUid"`
	SubmitterUsername   string         `json:"submitterUsername"`
	App                 SubmittedApp   `json:"submittedApp"`
	Status              ReviewStatus   `json:"status"`
	CreatedAt           time.Time      `json:"createdAt"`
}

// Proposal links an existing alternative to a proprietary target.
type Proposal struct {
	ID                 string       `json:"id"`
	ProprietaryPackage string       `json:"proprietaryPackage"`
	AlternativeID      string       `json:"alternativeId"`
	UserID             string       `json:"userId"`
	Status             ReviewStatus `json:"status"`
	CreatedAt          time.Time    `json:"createdAt"`
}

// FeedbackType marks feedback as an argument for or against an alternative.
type FeedbackType string

const (
	FeedbackPro FeedbackType = "PRO"
	FeedbackCon FeedbackType = "CON"
)

// Feedback is a moderated pro/con comment on an alternative.
type Feedback struct {
	ID            string       `json:"id"`
	AlternativeID string       `json:"alternativeId"`
	UID           string       `json:"uid"`
	Username      string       `json:"username"`
	Type          FeedbackType `json:"type"`
	Text          string       `json:"text"`
	VotesHelpful  int          `json:"votesHelpful"`
	Status        ReviewStatus `json:"status"`
	CreatedAt     time.Time    `json:"createdAt"`
}

// UserProfile is the public identity a contributor submits under.
type UserProfile struct {
	UID             string    `json:"uid"`
	Username        string    `json:"username"`
	Email           string    `json:"email,omitempty"`
	JoinedAt        time.Time `json:"joinedAt"`
	SubmissionCount int       `json:"submissionCount"`
	ApprovedCount   int       `json:"approvedCount"`
}

// ReportType says what kind of issue a user report raises.
type ReportType string

const (
	ReportBug        ReportType = "BUG"
	ReportSuggestion ReportType = "SUGGESTION"
	ReportQuestion   ReportType = "QUESTION"
	ReportOther      ReportType = "OTHER"
)

// ReportStatus is the triage state of a report. Only OPEN is set here;
// maintainers move reports along outside this service.
type ReportStatus string

const (
	ReportOpen       ReportStatus = "OPEN"
	ReportInProgress ReportStatus = "IN_PROGRESS"
	ReportResolved   ReportStatus = "RESOLVED"
	ReportWontFix    ReportStatus = "WONTFIX"
	ReportDuplicate  ReportStatus = "DUPLICATE"
	ReportClosed     ReportStatus = "CLOSED"
)

type ReportPriority string

const (
	PriorityLow      ReportPriority = "LOW"
	PriorityMedium   ReportPriority = "MEDIUM"
	PriorityHigh     ReportPriority = "HIGH"
	PriorityCritical ReportPriority = "CRITICAL"
)

// Report is a bug report, suggestion or question sent to the maintainers.
// AdminResponse and ResolvedAt are filled in by triage.
type Report struct {
	ID                string         `json:"id"`
	Title             string         `json:"title"`
	Description       string         `json:"description"`
	Type              ReportType     `json:"type"`
	Status            ReportStatus   `json:"status"`
	Priority          ReportPriority `json:"priority"`
	SubmitterUID      string         `json:"submitterUid"`
	SubmitterUsername string         `json:"submitterUsername,omitempty"`
	AdminResponse     string         `json:"adminResponse,omitempty"`
	ResolvedAt        *time.Time     `json:"resolvedAt,omitempty"`
	CreatedAt         time.Time      `json:"createdAt"`
}
