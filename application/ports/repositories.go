package ports

import (
	"context"

	"librefind/domain/core/aggregates"
	"librefind/domain/core/entities"
)

// Store methods return an AppError of type NOT_FOUND for a missing record.
// Callers on read paths treat that as a negative answer, not a failure.

// TargetReader reads the proprietary-target collection.
type TargetReader interface {
	// GetTarget looks up a target by package name. The store derives the
	// sanitized document key itself.
	GetTarget(ctx context.Context, packageName string) (*entities.ProprietaryTarget, error)

	// ListTargets returns every proprietary target.
	ListTargets(ctx context.Context) ([]*entities.ProprietaryTarget, error)
}

// AlternativeReader reads the FOSS solution collection.
type AlternativeReader interface {
	GetAlternative(ctx context.Context, id string) (*entities.Alternative, error)

	// GetRating returns the caller's rating record for an alternative.
	GetRating(ctx context.Context, alternativeID, userID string) (*entities.Rating, error)

	// FindAlternativeByPackage and FindAlternativeByName back the duplicate
	// check. Name matching ignores case.
	FindAlternativeByPackage(ctx context.Context, packageName string) (*entities.Alternative, error)
	FindAlternativeByName(ctx context.Context, name string) (*entities.Alternative, error)
}

// RatingTransaction is the view of the catalog inside one optimistic attempt.
// Reads are recorded with their version; writes are buffered until commit.
type RatingTransaction interface {
	GetAlternative(ctx context.Context, id string) (*entities.Alternative, error)
	GetRating(ctx context.Context, alternativeID, userID string) (*entities.Rating, error)
	PutRating(rating *entities.Rating)
	SetRatingAggregate(alternativeID string, aggregate aggregates.RatingAggregate)

	// GetVote returns the user's vote in one category, NOT_FOUND if none.
	GetVote(ctx context.Context, alternativeID, userID string, category entities.VoteCategory) (*entities.CategoryVote, error)
	PutVote(vote *entities.CategoryVote)
	// SetCategoryVotes replaces the alternative's whole vote tally.
	SetCategoryVotes(alternativeID string, votes map[string]int)
}

// TransactionFunc is a read-modify function run by RunTransaction. It may run
// several times and must not have effects outside tx.
type TransactionFunc func(ctx context.Context, tx RatingTransaction) error

// RatingStore exposes the optimistic read-modify-write primitive.
//
// RunTransaction runs fn and commits its writes only if nothing fn read has
// changed meanwhile. On a conflict fn is run again from scratch, up to the
// store's retry limit; exhaustion yields a CONFLICT error with code
// TRANSACTION_ABORTED. An error from fn aborts immediately without writing.
type RatingStore interface {
	RunTransaction(ctx context.Context, fn TransactionFunc) error
}

// FeedbackRepository persists pro/con feedback under an alternative.
type FeedbackRepository interface {
	AddFeedback(ctx context.Context, feedback *entities.Feedback) (string, error)
	ListFeedback(ctx context.Context, alternativeID string, status entities.ReviewStatus) ([]*entities.Feedback, error)
	// IncrementHelpful atomically adds one helpful vote.
	IncrementHelpful(ctx context.Context, alternativeID, feedbackID string) error
}

// SubmissionRepository persists append-only submissions and proposals.
type SubmissionRepository interface {
	AddSubmission(ctx context.Context, submission *entities.Submission) (string, error)
	ListSubmissionsByUser(ctx context.Context, uid string) ([]*entities.Submission, error)
	AddProposal(ctx context.Context, proposal *entities.Proposal) (string, error)
}

// ReportRepository persists append-only user reports.
type ReportRepository interface {
	AddReport(ctx context.Context, report *entities.Report) (string, error)
	ListReportsByUser(ctx context.Context, uid string) ([]*entities.Report, error)
}

// ProfileRepository persists user profiles.
type ProfileRepository interface {
	GetProfile(ctx context.Context, uid string) (*entities.UserProfile, error)
	// PutProfile creates or replaces a profile, failing with CONFLICT code
	// USERNAME_TAKEN when another uid owns the username.
	PutProfile(ctx context.Context, profile *entities.UserProfile) error
	IsUsernameTaken(ctx context.Context, username string) (bool, error)
}

// CatalogStore is the full document store.
type CatalogStore interface {
	TargetReader
	AlternativeReader
	RatingStore
	FeedbackRepository
	SubmissionRepository
	ReportRepository
	ProfileRepository
}
