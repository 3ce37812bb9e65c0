package dynamodb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"librefind/domain/core/entities"
	"librefind/domain/core/valueobjects"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// API is the subset of the DynamoDB client the catalog store uses.
// *dynamodb.Client satisfies it.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Single-table key layout.
//
//	TARGET#<sanitized pkg>   METADATA          proprietary target   GSI1PK=TARGETS
//	ALT#<id>                 METADATA          alternative          GSI1PK=PKG#<pkg> GSI2PK=NAME#<lower name>
//	ALT#<id>                 RATING#<uid>      rating
//	ALT#<id>                 FEEDBACK#<fid>    feedback
//	ALT#<id>                 VOTE#<cat>#<uid>  category vote
//	SUBMISSION#<id>          METADATA          submission           GSI1PK=SUBMITTER#<uid>
//	PROPOSAL#<id>            METADATA          proposal
//	REPORT#<id>              METADATA          issue report         GSI1PK=REPORTER#<uid>
//	USER#<uid>               PROFILE           profile
//	USERNAME#<lower name>    CLAIM             username ownership
const (
	skMetadata = "METADATA"
	skProfile  = "PROFILE"
	skClaim    = "CLAIM"

	gsi1 = "GSI1"
	gsi2 = "GSI2"

	targetsPartition = "TARGETS"
)

func targetPK(packageName string) string { return "TARGET#" + valueobjects.SanitizeKey(packageName) }
func alternativePK(id string) string      { return "ALT#" + id }
func ratingSK(uid string) string          { return "RATING#" + uid }
func feedbackSK(id string) string         { return "FEEDBACK#" + id }
func submissionPK(id string) string       { return "SUBMISSION#" + id }
func proposalPK(id string) string         { return "PROPOSAL#" + id }
func reportPK(id string) string           { return "REPORT#" + id }
func userPK(uid string) string            { return "USER#" + uid }
func usernamePK(name string) string       { return "USERNAME#" + strings.ToLower(strings.TrimSpace(name)) }
func packageGSI(pkg string) string        { return "PKG#" + strings.TrimSpace(pkg) }
func nameGSI(name string) string          { return "NAME#" + strings.ToLower(strings.TrimSpace(name)) }
func submitterGSI(uid string) string      { return "SUBMITTER#" + uid }
func reporterGSI(uid string) string       { return "REPORTER#" + uid }

func voteSK(category entities.VoteCategory, uid string) string {
	return "VOTE#" + string(category) + "#" + uid
}

type targetItem struct {
	PK           string   `dynamodbav:"PK"`
	SK           string   `dynamodbav:"SK"`
	GSI1PK       string   `dynamodbav:"GSI1PK"`
	GSI1SK       string   `dynamodbav:"GSI1SK"`
	EntityType   string   `dynamodbav:"EntityType"`
	PackageName  string   `dynamodbav:"PackageName"`
	Name         string   `dynamodbav:"Name"`
	Category     string   `dynamodbav:"Category,omitempty"`
	Alternatives []string `dynamodbav:"Alternatives"`
}

func (i targetItem) toEntity() *entities.ProprietaryTarget {
	return &entities.ProprietaryTarget{
		PackageName:  i.PackageName,
		Name:         i.Name,
		Category:     i.Category,
		Alternatives: i.Alternatives,
	}
}

type alternativeItem struct {
	PK          string         `dynamodbav:"PK"`
	SK          string         `dynamodbav:"SK"`
	GSI1PK      string         `dynamodbav:"GSI1PK"`
	GSI2PK      string         `dynamodbav:"GSI2PK"`
	EntityType  string         `dynamodbav:"EntityType"`
	ID          string         `dynamodbav:"ID"`
	PackageName string         `dynamodbav:"PackageName"`
	Name        string         `dynamodbav:"Name"`
	License     string         `dynamodbav:"License"`
	RepoURL     string         `dynamodbav:"RepoURL"`
	FdroidID    string         `dynamodbav:"FdroidID"`
	IconURL     string         `dynamodbav:"IconURL,omitempty"`
	Description string         `dynamodbav:"Description"`
	Website     string         `dynamodbav:"Website"`
	Features    []string       `dynamodbav:"Features"`
	Pros        []string       `dynamodbav:"Pros"`
	Cons        []string       `dynamodbav:"Cons"`
	RatingAvg   float64        `dynamodbav:"RatingAvg"`
	RatingCount int            `dynamodbav:"RatingCount"`
	Votes       map[string]int `dynamodbav:"Votes,omitempty"`
	Version     int64          `dynamodbav:"Version"`
}

func newAlternativeItem(a *entities.Alternative) alternativeItem {
	return alternativeItem{
		PK:          alternativePK(a.ID),
		SK:          skMetadata,
		GSI1PK:      packageGSI(a.PackageName),
		GSI2PK:      nameGSI(a.Name),
		EntityType:  "ALTERNATIVE",
		ID:          a.ID,
		PackageName: a.PackageName,
		Name:        a.Name,
		License:     a.License,
		RepoURL:     a.RepoURL,
		FdroidID:    a.FdroidID,
		IconURL:     a.IconURL,
		Description: a.Description,
		Website:     a.Website,
		Features:    a.Features,
		Pros:        a.Pros,
		Cons:        a.Cons,
		RatingAvg:   a.RatingAvg,
		RatingCount: a.RatingCount,
		Votes:       a.Votes,
		Version:     1,
	}
}

func (i alternativeItem) toEntity() *entities.Alternative {
	return &entities.Alternative{
		ID:          i.ID,
		PackageName: i.PackageName,
		Name:        i.Name,
		License:     i.License,
		RepoURL:     i.RepoURL,
		FdroidID:    i.FdroidID,
		IconURL:     i.IconURL,
		Description: i.Description,
		Website:     i.Website,
		Features:    i.Features,
		Pros:        i.Pros,
		Cons:        i.Cons,
		RatingAvg:   i.RatingAvg,
		RatingCount: i.RatingCount,
		Votes:       i.Votes,
	}
}

type ratingItem struct {
	PK            string `dynamodbav:"PK"`
	SK            string `dynamodbav:"SK"`
	EntityType    string `dynamodbav:"EntityType"`
	AlternativeID string `dynamodbav:"AlternativeID"`
	UserID        string `dynamodbav:"UserID"`
	Stars         int    `dynamodbav:"Stars"`
	CreatedAt     string `dynamodbav:"CreatedAt"`
	UpdatedAt     string `dynamodbav:"UpdatedAt"`
	Version       int64  `dynamodbav:"Version"`
}

func newRatingItem(r *entities.Rating, version int64) ratingItem {
	return ratingItem{
		PK:            alternativePK(r.AlternativeID),
		SK:            ratingSK(r.UserID),
		EntityType:    "RATING",
		AlternativeID: r.AlternativeID,
		UserID:        r.UserID,
		Stars:         r.Stars,
		CreatedAt:     r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     r.UpdatedAt.Format(time.RFC3339),
		Version:       version,
	}
}

func (i ratingItem) toEntity() *entities.Rating {
	created, _ := time.Parse(time.RFC3339, i.CreatedAt)
	updated, _ := time.Parse(time.RFC3339, i.UpdatedAt)
	return &entities.Rating{
		AlternativeID: i.AlternativeID,
		UserID:        i.UserID,
		Stars:         i.Stars,
		CreatedAt:     created,
		UpdatedAt:     updated,
	}
}

type voteItem struct {
	PK            string `dynamodbav:"PK"`
	SK            string `dynamodbav:"SK"`
	EntityType    string `dynamodbav:"EntityType"`
	AlternativeID string `dynamodbav:"AlternativeID"`
	UserID        string `dynamodbav:"UserID"`
	Category      string `dynamodbav:"Category"`
	CreatedAt     string `dynamodbav:"CreatedAt"`
	Version       int64  `dynamodbav:"Version"`
}

func (i voteItem) toEntity() *entities.CategoryVote {
	created, _ := time.Parse(time.RFC3339, i.CreatedAt)
	return &entities.CategoryVote{
		AlternativeID: i.AlternativeID,
		UserID:        i.UserID,
		Category:      entities.VoteCategory(i.Category),
		CreatedAt:     created,
	}
}

type feedbackItem struct {
	PK            string `dynamodbav:"PK"`
	SK            string `dynamodbav:"SK"`
	EntityType    string `dynamodbav:"EntityType"`
	ID            string `dynamodbav:"ID"`
	AlternativeID string `dynamodbav:"AlternativeID"`
	UID           string `dynamodbav:"UID"`
	Username      string `dynamodbav:"Username"`
	Type          string `dynamodbav:"Type"`
	Text          string `dynamodbav:"Text"`
	VotesHelpful  int    `dynamodbav:"VotesHelpful"`
	Status        string `dynamodbav:"Status"`
	CreatedAt     string `dynamodbav:"CreatedAt"`
}

func (i feedbackItem) toEntity() *entities.Feedback {
	created, _ := time.Parse(time.RFC3339, i.CreatedAt)
	return &entities.Feedback{
		ID:            i.ID,
		AlternativeID: i.AlternativeID,
		UID:           i.UID,
		Username:      i.Username,
		Type:          entities.FeedbackType(i.Type),
		Text:          i.Text,
		VotesHelpful:  i.VotesHelpful,
		Status:        entities.ReviewStatus(i.Status),
		CreatedAt:     created,
	}
}

type submissionItem struct {
	PK                  string                `dynamodbav:"PK"`
	SK                  string                `dynamodbav:"SK"`
	GSI1PK              string                `dynamodbav:"GSI1PK"`
	GSI1SK              string                `dynamodbav:"GSI1SK"`
	EntityType          string                `dynamodbav:"EntityType"`
	ID                  string                `dynamodbav:"ID"`
	Type                string                `dynamodbav:"Type"`
	ProprietaryPackages []string              `dynamodbav:"ProprietaryPackages"`
	SubmitterUID        string                `dynamodbav:"SubmitterUID"`
	SubmitterUsername   string                `dynamodbav:"SubmitterUsername"`
	App                 entities.SubmittedApp `dynamodbav:"SubmittedApp"`
	Status              string                `dynamodbav:"Status"`
	CreatedAt           string                `dynamodbav:"CreatedAt"`
}

func (i submissionItem) toEntity() *entities.Submission {
	created, _ := time.Parse(time.RFC3339, i.CreatedAt)
	return &entities.Submission{
		ID:                  i.ID,
		Type:                entities.SubmissionType(i.Type),
		ProprietaryPackages: i.ProprietaryPackages,
		SubmitterUID:        i.SubmitterUID,
		SubmitterUsername:   i.SubmitterUsername,
		App:                 i.App,
		Status:              entities.ReviewStatus(i.Status),
		CreatedAt:           created,
	}
}

type proposalItem struct {
	PK                 string `dynamodbav:"PK"`
	SK                 string `dynamodbav:"SK"`
	EntityType         string `dynamodbav:"EntityType"`
	ID                 string `dynamodbav:"ID"`
	ProprietaryPackage string `dynamodbav:"ProprietaryPackage"`
	AlternativeID      string `dynamodbav:"AlternativeID"`
	UserID             string `dynamodbav:"UserID"`
	Status             string `dynamodbav:"Status"`
	CreatedAt          string `dynamodbav:"CreatedAt"`
}

type reportItem struct {
	PK                string `dynamodbav:"PK"`
	SK                string `dynamodbav:"SK"`
	GSI1PK            string `dynamodbav:"GSI1PK"`
	GSI1SK            string `dynamodbav:"GSI1SK"`
	EntityType        string `dynamodbav:"EntityType"`
	ID                string `dynamodbav:"ID"`
	Title             string `dynamodbav:"Title"`
	Description       string `dynamodbav:"Description"`
	Type              string `dynamodbav:"Type"`
	Status            string `dynamodbav:"Status"`
	Priority          string `dynamodbav:"Priority"`
	SubmitterUID      string `dynamodbav:"SubmitterUID"`
	SubmitterUsername string `dynamodbav:"SubmitterUsername,omitempty"`
	AdminResponse     string `dynamodbav:"AdminResponse,omitempty"`
	ResolvedAt        string `dynamodbav:"ResolvedAt,omitempty"`
	CreatedAt         string `dynamodbav:"CreatedAt"`
}

func (i reportItem) toEntity() *entities.Report {
	created, _ := time.Parse(time.RFC3339, i.CreatedAt)
	r := &entities.Report{
		ID:                i.ID,
		Title:             i.Title,
		Description:       i.Description,
		Type:              entities.ReportType(i.Type),
		Status:            entities.ReportStatus(i.Status),
		Priority:          entities.ReportPriority(i.Priority),
		SubmitterUID:      i.SubmitterUID,
		SubmitterUsername: i.SubmitterUsername,
		AdminResponse:     i.AdminResponse,
		CreatedAt:         created,
	}
	if resolved, err := time.Parse(time.RFC3339, i.ResolvedAt); err == nil {
		r.ResolvedAt = &resolved
	}
	return r
}

type profileItem struct {
	PK              string `dynamodbav:"PK"`
	SK              string `dynamodbav:"SK"`
	EntityType      string `dynamodbav:"EntityType"`
	UID             string `dynamodbav:"UID"`
	Username        string `dynamodbav:"Username"`
	Email           string `dynamodbav:"Email,omitempty"`
	JoinedAt        string `dynamodbav:"JoinedAt"`
	SubmissionCount int    `dynamodbav:"SubmissionCount"`
	ApprovedCount   int    `dynamodbav:"ApprovedCount"`
}

func (i profileItem) toEntity() *entities.UserProfile {
	joined, _ := time.Parse(time.RFC3339, i.JoinedAt)
	return &entities.UserProfile{
		UID:             i.UID,
		Username:        i.Username,
		Email:           i.Email,
		JoinedAt:        joined,
		SubmissionCount: i.SubmissionCount,
		ApprovedCount:   i.ApprovedCount,
	}
}

type usernameClaimItem struct {
	PK    string `dynamodbav:"PK"`
	SK    string `dynamodbav:"SK"`
	Owner string `dynamodbav:"Owner"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	return t.UTC().Format(time.RFC3339)
}

func describeKey(pk, sk string) string { return fmt.Sprintf("%s/%s", pk, sk) }
