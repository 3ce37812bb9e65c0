package dynamodb

import (
	"context"
	"time"

	"librefind/application/ports"
	"librefind/domain/core/aggregates"
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

// RunTransaction implements ports.RatingStore. Reads are strongly consistent
// and remember each item's Version; the commit is one TransactWriteItems call
// whose conditions fail if any of those versions moved.
func (s *CatalogStore) RunTransaction(ctx context.Context, fn ports.TransactionFunc) error {
	return abstractions.RunOptimistic(ctx, s.retry, func(ctx context.Context, n int) error {
		tx := &transaction{
			store:   s,
			reads:   abstractions.ReadSet{},
			keys:    make(map[string][2]string),
			aggs:    make(map[string]aggregates.RatingAggregate),
			tallies: make(map[string]map[string]int),
		}
		if err := fn(ctx, tx); err != nil {
			return err
		}
		err := tx.commit(ctx)
		if apperrors.IsTransactionConflict(err) {
			s.logger.Debug("Rating transaction conflict",
				zap.String("store", s.describe()),
				zap.Int("attempt", n),
			)
		}
		return err
	})
}

type transaction struct {
	store   *CatalogStore
	reads   abstractions.ReadSet
	keys    map[string][2]string
	ratings []*entities.Rating
	aggs    map[string]aggregates.RatingAggregate
	votes   []*entities.CategoryVote
	tallies map[string]map[string]int
}

// versionAbsent marks a key that had no item when it was read. Version 0 is
// left for items written before versioning, which carry no Version attribute.
const versionAbsent int64 = -1

func (t *transaction) record(pk, sk string, version int64) {
	k := describeKey(pk, sk)
	t.reads.Record(k, version)
	t.keys[k] = [2]string{pk, sk}
}

func (t *transaction) GetAlternative(ctx context.Context, id string) (*entities.Alternative, error) {
	var item alternativeItem
	found, err := t.store.getItem(ctx, alternativePK(id), skMetadata, true, &item)
	if err != nil {
		return nil, err
	}
	if !found {
		t.record(alternativePK(id), skMetadata, versionAbsent)
		return nil, apperrors.NewNotFoundError("alternative")
	}
	t.record(alternativePK(id), skMetadata, item.Version)
	return item.toEntity(), nil
}

func (t *transaction) GetRating(ctx context.Context, alternativeID, userID string) (*entities.Rating, error) {
	var item ratingItem
	found, err := t.store.getItem(ctx, alternativePK(alternativeID), ratingSK(userID), true, &item)
	if err != nil {
		return nil, err
	}
	if !found {
		t.record(alternativePK(alternativeID), ratingSK(userID), versionAbsent)
		return nil, apperrors.NewNotFoundError("rating")
	}
	t.record(alternativePK(alternativeID), ratingSK(userID), item.Version)
	return item.toEntity(), nil
}

func (t *transaction) PutRating(rating *entities.Rating) {
	r := *rating
	t.ratings = append(t.ratings, &r)
}

func (t *transaction) SetRatingAggregate(alternativeID string, aggregate aggregates.RatingAggregate) {
	t.aggs[alternativeID] = aggregate
}

func (t *transaction) GetVote(ctx context.Context, alternativeID, userID string, category entities.VoteCategory) (*entities.CategoryVote, error) {
	pk, sk := alternativePK(alternativeID), voteSK(category, userID)
	var item voteItem
	found, err := t.store.getItem(ctx, pk, sk, true, &item)
	if err != nil {
		return nil, err
	}
	if !found {
		t.record(pk, sk, versionAbsent)
		return nil, apperrors.NewNotFoundError("vote")
	}
	t.record(pk, sk, item.Version)
	return item.toEntity(), nil
}

func (t *transaction) PutVote(vote *entities.CategoryVote) {
	v := *vote
	t.votes = append(t.votes, &v)
}

func (t *transaction) SetCategoryVotes(alternativeID string, votes map[string]int) {
	tally := make(map[string]int, len(votes))
	for k, n := range votes {
		tally[k] = n
	}
	t.tallies[alternativeID] = tally
}

// versionCondition is the guard for an item read at version v.
func versionCondition(v int64) expression.ConditionBuilder {
	switch v {
	case versionAbsent:
		return expression.AttributeNotExists(expression.Name("PK"))
	case 0:
		return expression.AttributeExists(expression.Name("PK")).And(
			expression.AttributeNotExists(expression.Name("Version")).
				Or(expression.Name("Version").Equal(expression.Value(v))),
		)
	}
	return expression.Name("Version").Equal(expression.Value(v))
}

// nextVersion is the Version written over an item read at version v.
func nextVersion(v int64) int64 {
	if v < 0 {
		return 1
	}
	return v + 1
}

func (t *transaction) commit(ctx context.Context) error {
	if len(t.ratings) == 0 && len(t.aggs) == 0 && len(t.votes) == 0 && len(t.tallies) == 0 {
		return nil
	}

	table := aws.String(t.store.tableName)
	written := make(map[string]bool)
	var items []types.TransactWriteItem

	now := time.Now().UTC()
	for _, r := range t.ratings {
		if r.UpdatedAt.IsZero() {
			r.UpdatedAt = now
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = r.UpdatedAt
		}
		pk, sk := alternativePK(r.AlternativeID), ratingSK(r.UserID)
		k := describeKey(pk, sk)
		seen, wasRead := t.reads[k]

		av, err := attributevalue.MarshalMap(newRatingItem(r, nextVersion(seen)))
		if err != nil {
			return apperrors.NewInternalError("failed to marshal rating").WithCause(err)
		}
		put := &types.Put{TableName: table, Item: av}
		if wasRead {
			expr, err := expression.NewBuilder().WithCondition(versionCondition(seen)).Build()
			if err != nil {
				return apperrors.NewInternalError("failed to build rating condition").WithCause(err)
			}
			put.ConditionExpression = expr.Condition()
			put.ExpressionAttributeNames = expr.Names()
			put.ExpressionAttributeValues = expr.Values()
		}
		items = append(items, types.TransactWriteItem{Put: put})
		written[k] = true
	}

	for _, v := range t.votes {
		if v.CreatedAt.IsZero() {
			v.CreatedAt = now
		}
		pk, sk := alternativePK(v.AlternativeID), voteSK(v.Category, v.UserID)
		k := describeKey(pk, sk)
		seen, wasRead := t.reads[k]
		if !wasRead {
			seen = versionAbsent
		}

		av, err := attributevalue.MarshalMap(voteItem{
			PK:            pk,
			SK:            sk,
			EntityType:    "VOTE",
			AlternativeID: v.AlternativeID,
			UserID:        v.UserID,
			Category:      string(v.Category),
			CreatedAt:     v.CreatedAt.Format(time.RFC3339),
			Version:       nextVersion(seen),
		})
		if err != nil {
			return apperrors.NewInternalError("failed to marshal vote").WithCause(err)
		}
		expr, err := expression.NewBuilder().WithCondition(versionCondition(seen)).Build()
		if err != nil {
			return apperrors.NewInternalError("failed to build vote condition").WithCause(err)
		}
		items = append(items, types.TransactWriteItem{Put: &types.Put{
			TableName:                 table,
			Item:                      av,
			ConditionExpression:       expr.Condition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		}})
		written[k] = true
	}

	// An alternative gets one Update carrying both its rating aggregate and
	// its vote tally; a transaction may touch each item only once.
	altIDs := make(map[string]bool, len(t.aggs)+len(t.tallies))
	for id := range t.aggs {
		altIDs[id] = true
	}
	for id := range t.tallies {
		altIDs[id] = true
	}
	for id := range altIDs {
		pk := alternativePK(id)
		k := describeKey(pk, skMetadata)
		seen, wasRead := t.reads[k]

		update := expression.Set(expression.Name("Version"), expression.Value(nextVersion(seen)))
		if agg, ok := t.aggs[id]; ok {
			update = update.Set(expression.Name("RatingAvg"), expression.Value(agg.Average)).
				Set(expression.Name("RatingCount"), expression.Value(agg.Count))
		}
		if tally, ok := t.tallies[id]; ok {
			update = update.Set(expression.Name("Votes"), expression.Value(tally))
		}
		cond := expression.AttributeExists(expression.Name("PK"))
		if wasRead {
			cond = versionCondition(seen)
		}
		expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
		if err != nil {
			return apperrors.NewInternalError("failed to build aggregate update").WithCause(err)
		}
		items = append(items, types.TransactWriteItem{Update: &types.Update{
			TableName:                 table,
			Key:                       t.store.key(pk, skMetadata),
			UpdateExpression:          expr.Update(),
			ConditionExpression:       expr.Condition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		}})
		written[k] = true
	}

	// Items read but not written still have to be unchanged at commit.
	for k, seen := range t.reads {
		if written[k] {
			continue
		}
		key := t.keys[k]
		expr, err := expression.NewBuilder().WithCondition(versionCondition(seen)).Build()
		if err != nil {
			return apperrors.NewInternalError("failed to build read check").WithCause(err)
		}
		items = append(items, types.TransactWriteItem{ConditionCheck: &types.ConditionCheck{
			TableName:                 table,
			Key:                       t.store.key(key[0], key[1]),
			ConditionExpression:       expr.Condition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		}})
	}

	_, err := t.store.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		if isConditionFailure(err) {
			return apperrors.NewTransactionConflict("alternative").WithCause(err)
		}
		return apperrors.NewDatabaseError("TransactWriteItems", err)
	}
	return nil
}
