package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"librefind/application/ports"
	"librefind/domain/core/entities"
	"librefind/infrastructure/persistence/abstractions"
	apperrors "librefind/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// CatalogStore implements ports.CatalogStore on a single DynamoDB table.
type CatalogStore struct {
	client    API
	tableName string
	retry     abstractions.RetryConfig
	logger    *zap.Logger
}

var _ ports.CatalogStore = (*CatalogStore)(nil)

// NewCatalogStore creates a new CatalogStore
func NewCatalogStore(client API, tableName string, retry abstractions.RetryConfig, logger *zap.Logger) *CatalogStore {
	return &CatalogStore{
		client:    client,
		tableName: tableName,
		retry:     retry,
		logger:    logger,
	}
}

func (s *CatalogStore) key(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

// getItem loads one item into out. It returns false when the item is absent.
func (s *CatalogStore) getItem(ctx context.Context, pk, sk string, consistent bool, out interface{}) (bool, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            s.key(pk, sk),
		ConsistentRead: aws.Bool(consistent),
	})
	if err != nil {
		return false, apperrors.NewDatabaseError("GetItem", err)
	}
	if result.Item == nil {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(result.Item, out); err != nil {
		return false, apperrors.NewDatabaseError("UnmarshalMap", err).WithDetails(map[string]interface{}{"key": describeKey(pk, sk)})
	}
	return true, nil
}

// queryIndex runs a key-condition query and unmarshals every page into out,
// which must be a pointer to a slice of items.
func (s *CatalogStore) queryIndex(ctx context.Context, index string, keyCond expression.KeyConditionBuilder, filter *expression.ConditionBuilder, limit int32, out interface{}) error {
	builder := expression.NewBuilder().WithKeyCondition(keyCond)
	if filter != nil {
		builder = builder.WithFilter(*filter)
	}
	expr, err := builder.Build()
	if err != nil {
		return apperrors.NewInternalError("failed to build query expression").WithCause(err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}
	if index != "" {
		input.IndexName = aws.String(index)
	}
	if limit > 0 {
		input.Limit = aws.Int32(limit)
	}

	var items []map[string]types.AttributeValue
	for {
		result, err := s.client.Query(ctx, input)
		if err != nil {
			return apperrors.NewDatabaseError("Query", err)
		}
		items = append(items, result.Items...)
		if len(result.LastEvaluatedKey) == 0 || (limit > 0 && int32(len(items)) >= limit) {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	if err := attributevalue.UnmarshalListOfMaps(items, out); err != nil {
		return apperrors.NewDatabaseError("UnmarshalListOfMaps", err)
	}
	return nil
}

// putNew writes item only if no item with the same key exists.
func (s *CatalogStore) putNew(ctx context.Context, item interface{}) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return apperrors.NewInternalError("failed to marshal item").WithCause(err)
	}
	cond := expression.AttributeNotExists(expression.Name("PK"))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return apperrors.NewInternalError("failed to build condition").WithCause(err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.tableName),
		Item:                     av,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return apperrors.NewConflictError("record already exists")
		}
		return apperrors.NewDatabaseError("PutItem", err)
	}
	return nil
}

// Proprietary targets

func (s *CatalogStore) GetTarget(ctx context.Context, packageName string) (*entities.ProprietaryTarget, error) {
	var item targetItem
	found, err := s.getItem(ctx, targetPK(packageName), skMetadata, false, &item)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.NewNotFoundError("proprietary target")
	}
	return item.toEntity(), nil
}

func (s *CatalogStore) ListTargets(ctx context.Context) ([]*entities.ProprietaryTarget, error) {
	var items []targetItem
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(targetsPartition))
	if err := s.queryIndex(ctx, gsi1, keyCond, nil, 0, &items); err != nil {
		return nil, err
	}
	out := make([]*entities.ProprietaryTarget, 0, len(items))
	for _, item := range items {
		out = append(out, item.toEntity())
	}
	return out, nil
}

// PutTarget creates or replaces a proprietary target. Used by catalog import.
func (s *CatalogStore) PutTarget(ctx context.Context, target *entities.ProprietaryTarget) error {
	item := targetItem{
		PK:           targetPK(target.PackageName),
		SK:           skMetadata,
		GSI1PK:       targetsPartition,
		GSI1SK:       target.PackageName,
		EntityType:   "TARGET",
		PackageName:  target.PackageName,
		Name:         target.Name,
		Category:     target.Category,
		Alternatives: target.Alternatives,
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return apperrors.NewInternalError("failed to marshal target").WithCause(err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(s.tableName), Item: av}); err != nil {
		return apperrors.NewDatabaseError("PutItem", err)
	}
	return nil
}

// Alternatives

func (s *CatalogStore) GetAlternative(ctx context.Context, id string) (*entities.Alternative, error) {
	var item alternativeItem
	found, err := s.getItem(ctx, alternativePK(id), skMetadata, false, &item)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.NewNotFoundError("alternative")
	}
	return item.toEntity(), nil
}

// PutAlternative creates an alternative. Existing alternatives are left alone
// so their rating aggregate is never reset by an import.
func (s *CatalogStore) PutAlternative(ctx context.Context, alt *entities.Alternative) error {
	return s.putNew(ctx, newAlternativeItem(alt))
}

func (s *CatalogStore) GetRating(ctx context.Context, alternativeID, userID string) (*entities.Rating, error) {
	var item ratingItem
	found, err := s.getItem(ctx, alternativePK(alternativeID), ratingSK(userID), false, &item)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.NewNotFoundError("rating")
	}
	return item.toEntity(), nil
}

func (s *CatalogStore) FindAlternativeByPackage(ctx context.Context, packageName string) (*entities.Alternative, error) {
	return s.findAlternative(ctx, gsi1, "GSI1PK", packageGSI(packageName))
}

func (s *CatalogStore) FindAlternativeByName(ctx context.Context, name string) (*entities.Alternative, error) {
	return s.findAlternative(ctx, gsi2, "GSI2PK", nameGSI(name))
}

func (s *CatalogStore) findAlternative(ctx context.Context, index, attr, value string) (*entities.Alternative, error) {
	var items []alternativeItem
	keyCond := expression.Key(attr).Equal(expression.Value(value))
	filter := expression.Name("EntityType").Equal(expression.Value("ALTERNATIVE"))
	if err := s.queryIndex(ctx, index, keyCond, &filter, 0, &items); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperrors.NewNotFoundError("alternative")
	}
	return items[0].toEntity(), nil
}

// Feedback

func (s *CatalogStore) AddFeedback(ctx context.Context, f *entities.Feedback) (string, error) {
	item := feedbackItem{
		PK:            alternativePK(f.AlternativeID),
		SK:            feedbackSK(f.ID),
		EntityType:    "FEEDBACK",
		ID:            f.ID,
		AlternativeID: f.AlternativeID,
		UID:           f.UID,
		Username:      f.Username,
		Type:          string(f.Type),
		Text:          f.Text,
		VotesHelpful:  f.VotesHelpful,
		Status:        string(f.Status),
		CreatedAt:     formatTime(f.CreatedAt),
	}
	if f.ID == "" {
		return "", apperrors.NewValidationError("feedback id must be generated before write")
	}
	if err := s.putNew(ctx, item); err != nil {
		return "", err
	}
	return f.ID, nil
}

func (s *CatalogStore) ListFeedback(ctx context.Context, alternativeID string, status entities.ReviewStatus) ([]*entities.Feedback, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(alternativePK(alternativeID))).
		And(expression.Key("SK").BeginsWith("FEEDBACK#"))

	var filter *expression.ConditionBuilder
	if status != "" {
		f := expression.Name("Status").Equal(expression.Value(string(status)))
		filter = &f
	}

	var items []feedbackItem
	if err := s.queryIndex(ctx, "", keyCond, filter, 0, &items); err != nil {
		return nil, err
	}
	out := make([]*entities.Feedback, 0, len(items))
	for _, item := range items {
		out = append(out, item.toEntity())
	}
	return out, nil
}

func (s *CatalogStore) IncrementHelpful(ctx context.Context, alternativeID, feedbackID string) error {
	update := expression.Add(expression.Name("VotesHelpful"), expression.Value(1))
	cond := expression.AttributeExists(expression.Name("PK"))
	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return apperrors.NewInternalError("failed to build update").WithCause(err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       s.key(alternativePK(alternativeID), feedbackSK(feedbackID)),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return apperrors.NewNotFoundError("feedback")
		}
		return apperrors.NewDatabaseError("UpdateItem", err)
	}
	return nil
}

// Submissions and proposals

func (s *CatalogStore) AddSubmission(ctx context.Context, sub *entities.Submission) (string, error) {
	if sub.ID == "" {
		return "", apperrors.NewValidationError("submission id must be generated before write")
	}
	created := formatTime(sub.CreatedAt)
	item := submissionItem{
		PK:                  submissionPK(sub.ID),
		SK:                  skMetadata,
		GSI1PK:              submitterGSI(sub.SubmitterUID),
		GSI1SK:              created,
		EntityType:          "SUBMISSION",
		ID:                  sub.ID,
		Type:                string(sub.Type),
		ProprietaryPackages: sub.ProprietaryPackages,
		SubmitterUID:        sub.SubmitterUID,
		SubmitterUsername:   sub.SubmitterUsername,
		App:                 sub.App,
		Status:              string(sub.Status),
		CreatedAt:           created,
	}
	if err := s.putNew(ctx, item); err != nil {
		return "", err
	}
	return sub.ID, nil
}

func (s *CatalogStore) ListSubmissionsByUser(ctx context.Context, uid string) ([]*entities.Submission, error) {
	var items []submissionItem
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(submitterGSI(uid)))
	if err := s.queryIndex(ctx, gsi1, keyCond, nil, 0, &items); err != nil {
		return nil, err
	}
	out := make([]*entities.Submission, 0, len(items))
	for _, item := range items {
		out = append(out, item.toEntity())
	}
	return out, nil
}

func (s *CatalogStore) AddProposal(ctx context.Context, p *entities.Proposal) (string, error) {
	if p.ID == "" {
		return "", apperrors.NewValidationError("proposal id must be generated before write")
	}
	item := proposalItem{
		PK:                 proposalPK(p.ID),
		SK:                 skMetadata,
		EntityType:         "PROPOSAL",
		ID:                 p.ID,
		ProprietaryPackage: p.ProprietaryPackage,
		AlternativeID:      p.AlternativeID,
		UserID:             p.UserID,
		Status:             string(p.Status),
		CreatedAt:          formatTime(p.CreatedAt),
	}
	if err := s.putNew(ctx, item); err != nil {
		return "", err
	}
	return p.ID, nil
}

// Reports

func (s *CatalogStore) AddReport(ctx context.Context, r *entities.Report) (string, error) {
	if r.ID == "" {
		return "", apperrors.NewValidationError("report id must be generated before write")
	}
	created := formatTime(r.CreatedAt)
	item := reportItem{
		PK:                reportPK(r.ID),
		SK:                skMetadata,
		GSI1PK:            reporterGSI(r.SubmitterUID),
		GSI1SK:            created,
		EntityType:        "REPORT",
		ID:                r.ID,
		Title:             r.Title,
		Description:       r.Description,
		Type:              string(r.Type),
		Status:            string(r.Status),
		Priority:          string(r.Priority),
		SubmitterUID:      r.SubmitterUID,
		SubmitterUsername: r.SubmitterUsername,
		AdminResponse:     r.AdminResponse,
		CreatedAt:         created,
	}
	if r.ResolvedAt != nil {
		item.ResolvedAt = formatTime(*r.ResolvedAt)
	}
	if err := s.putNew(ctx, item); err != nil {
		return "", err
	}
	return r.ID, nil
}

func (s *CatalogStore) ListReportsByUser(ctx context.Context, uid string) ([]*entities.Report, error) {
	var items []reportItem
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(reporterGSI(uid)))
	if err := s.queryIndex(ctx, gsi1, keyCond, nil, 0, &items); err != nil {
		return nil, err
	}
	out := make([]*entities.Report, 0, len(items))
	for _, item := range items {
		out = append(out, item.toEntity())
	}
	return out, nil
}

// Profiles

func (s *CatalogStore) GetProfile(ctx context.Context, uid string) (*entities.UserProfile, error) {
	var item profileItem
	found, err := s.getItem(ctx, userPK(uid), skProfile, false, &item)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.NewNotFoundError("profile")
	}
	return item.toEntity(), nil
}

// PutProfile writes the profile and claims its username in one transaction.
// A claim owned by another uid cancels the write.
func (s *CatalogStore) PutProfile(ctx context.Context, profile *entities.UserProfile) error {
	previous, err := s.GetProfile(ctx, profile.UID)
	if err != nil && !apperrors.IsNotFound(err) {
		return err
	}

	profileAV, err := attributevalue.MarshalMap(profileItem{
		PK:              userPK(profile.UID),
		SK:              skProfile,
		EntityType:      "PROFILE",
		UID:             profile.UID,
		Username:        profile.Username,
		Email:           profile.Email,
		JoinedAt:        formatTime(profile.JoinedAt),
		SubmissionCount: profile.SubmissionCount,
		ApprovedCount:   profile.ApprovedCount,
	})
	if err != nil {
		return apperrors.NewInternalError("failed to marshal profile").WithCause(err)
	}
	claimAV, err := attributevalue.MarshalMap(usernameClaimItem{PK: usernamePK(profile.Username), SK: skClaim, Owner: profile.UID})
	if err != nil {
		return apperrors.NewInternalError("failed to marshal username claim").WithCause(err)
	}

	claimCond := expression.AttributeNotExists(expression.Name("PK")).
		Or(expression.Name("Owner").Equal(expression.Value(profile.UID)))
	claimExpr, err := expression.NewBuilder().WithCondition(claimCond).Build()
	if err != nil {
		return apperrors.NewInternalError("failed to build claim condition").WithCause(err)
	}

	items := []types.TransactWriteItem{
		{Put: &types.Put{
			TableName:                 aws.String(s.tableName),
			Item:                      claimAV,
			ConditionExpression:       claimExpr.Condition(),
			ExpressionAttributeNames:  claimExpr.Names(),
			ExpressionAttributeValues: claimExpr.Values(),
		}},
		{Put: &types.Put{TableName: aws.String(s.tableName), Item: profileAV}},
	}
	if previous != nil && usernamePK(previous.Username) != usernamePK(profile.Username) {
		items = append(items, types.TransactWriteItem{Delete: &types.Delete{
			TableName: aws.String(s.tableName),
			Key:       s.key(usernamePK(previous.Username), skClaim),
		}})
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		if isConditionFailure(err) {
			return apperrors.NewConflictError("username already taken").WithCode(apperrors.CodeUsernameTaken)
		}
		return apperrors.NewDatabaseError("TransactWriteItems", err)
	}
	return nil
}

func (s *CatalogStore) IsUsernameTaken(ctx context.Context, username string) (bool, error) {
	var claim usernameClaimItem
	return s.getItem(ctx, usernamePK(username), skClaim, true, &claim)
}

// isConditionFailure reports whether a transactional write was cancelled by
// a failed condition or a concurrent transaction on the same item.
func isConditionFailure(err error) bool {
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		for _, reason := range tce.CancellationReasons {
			code := aws.ToString(reason.Code)
			if code == "ConditionalCheckFailed" || code == "TransactionConflict" {
				return true
			}
		}
		return false
	}
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return true
	}
	return strings.Contains(err.Error(), "TransactionConflict")
}

func (s *CatalogStore) describe() string {
	return fmt.Sprintf("dynamodb:%s", s.tableName)
}
