// Package memory is a process-local CatalogStore. It backs the CLI when no
// table is configured and stands in for DynamoDB in tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"librefind/application/ports"
	"librefind/domain/core/aggregates"
	"librefind/domain/core/entities"
	"librefind/domain/core/valueobjects"
	"librefind/infrastructure/persistence/abstractions"
	"librefind/pkg/errors"

	"go.uber.org/zap"
)

type alternativeDoc struct {
	alt     entities.Alternative
	version int64
}

type ratingDoc struct {
	rating  entities.Rating
	version int64
}

type voteDoc struct {
	vote    entities.CategoryVote
	version int64
}

// CatalogStore keeps every collection in maps guarded by one RWMutex.
// Alternatives, ratings and votes carry versions so RunTransaction can
// detect concurrent writers the same way the DynamoDB store does.
type CatalogStore struct {
	mu           sync.RWMutex
	targets      map[string]entities.ProprietaryTarget
	alternatives map[string]*alternativeDoc
	ratings      map[string]*ratingDoc
	votes        map[string]*voteDoc
	feedback     map[string][]*entities.Feedback
	submissions  []*entities.Submission
	proposals    []*entities.Proposal
	reports      []*entities.Report
	profiles     map[string]entities.UserProfile

	retry  abstractions.RetryConfig
	logger *zap.Logger
}

var _ ports.CatalogStore = (*CatalogStore)(nil)

// NewCatalogStore creates an empty store.
func NewCatalogStore(retry abstractions.RetryConfig, logger *zap.Logger) *CatalogStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogStore{
		targets:      make(map[string]entities.ProprietaryTarget),
		alternatives: make(map[string]*alternativeDoc),
		ratings:      make(map[string]*ratingDoc),
		votes:        make(map[string]*voteDoc),
		feedback:     make(map[string][]*entities.Feedback),
		profiles:     make(map[string]entities.UserProfile),
		retry:        retry,
		logger:       logger,
	}
}

// PutTarget inserts or replaces a proprietary target.
func (s *CatalogStore) PutTarget(target entities.ProprietaryTarget) {
	s.mu.Lock()
	defer s.mu.Unlock()
	target.Alternatives = append([]string(nil), target.Alternatives...)
	s.targets[valueobjects.SanitizeKey(target.PackageName)] = target
}

// PutAlternative inserts or replaces an alternative, bumping its version.
func (s *CatalogStore) PutAlternative(alt entities.Alternative) {
	s.mu.Lock()
	defer s.mu.Unlock()
	alt.UserRating = nil
	version := int64(1)
	if doc, ok := s.alternatives[alt.ID]; ok {
		version = doc.version + 1
	}
	s.alternatives[alt.ID] = &alternativeDoc{alt: alt, version: version}
}

// DeleteAlternative removes an alternative. Targets keep referencing it.
func (s *CatalogStore) DeleteAlternative(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.alternatives, id)
}

func (s *CatalogStore) GetTarget(ctx context.Context, packageName string) (*entities.ProprietaryTarget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.targets[valueobjects.SanitizeKey(packageName)]
	if !ok {
		return nil, errors.NewNotFoundError("proprietary target")
	}
	t.Alternatives = append([]string(nil), t.Alternatives...)
	return &t, nil
}

func (s *CatalogStore) ListTargets(ctx context.Context) ([]*entities.ProprietaryTarget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entities.ProprietaryTarget, 0, len(s.targets))
	for _, t := range s.targets {
		t := t
		t.Alternatives = append([]string(nil), t.Alternatives...)
		out = append(out, &t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PackageName < out[j].PackageName })
	return out, nil
}

func (s *CatalogStore) GetAlternative(ctx context.Context, id string) (*entities.Alternative, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.alternatives[id]
	if !ok {
		return nil, errors.NewNotFoundError("alternative")
	}
	alt := copyAlternative(doc.alt)
	return &alt, nil
}

func (s *CatalogStore) GetRating(ctx context.Context, alternativeID, userID string) (*entities.Rating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.ratings[ratingKey(alternativeID, userID)]
	if !ok {
		return nil, errors.NewNotFoundError("rating")
	}
	r := doc.rating
	return &r, nil
}

// RatingsFor returns every rating stored for an alternative.
func (s *CatalogStore) RatingsFor(alternativeID string) []entities.Rating {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []entities.Rating
	for _, doc := range s.ratings {
		if doc.rating.AlternativeID == alternativeID {
			out = append(out, doc.rating)
		}
	}
	return out
}

func (s *CatalogStore) FindAlternativeByPackage(ctx context.Context, packageName string) (*entities.Alternative, error) {
	return s.findAlternative(func(a entities.Alternative) bool {
		return a.PackageName == strings.TrimSpace(packageName)
	})
}

func (s *CatalogStore) FindAlternativeByName(ctx context.Context, name string) (*entities.Alternative, error) {
	return s.findAlternative(func(a entities.Alternative) bool {
		return strings.EqualFold(a.Name, strings.TrimSpace(name))
	})
}

func (s *CatalogStore) findAlternative(match func(entities.Alternative) bool) (*entities.Alternative, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.alternatives))
	for id := range s.alternatives {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if alt := s.alternatives[id].alt; match(alt) {
			found := copyAlternative(alt)
			return &found, nil
		}
	}
	return nil, errors.NewNotFoundError("alternative")
}

// Feedback

func (s *CatalogStore) AddFeedback(ctx context.Context, feedback *entities.Feedback) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := *feedback
	if f.ID == "" {
		f.ID = valueobjects.NewRecordID().String()
	}
	s.feedback[f.AlternativeID] = append(s.feedback[f.AlternativeID], &f)
	return f.ID, nil
}

func (s *CatalogStore) ListFeedback(ctx context.Context, alternativeID string, status entities.ReviewStatus) ([]*entities.Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*entities.Feedback
	for _, f := range s.feedback[alternativeID] {
		if status == "" || f.Status == status {
			c := *f
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *CatalogStore) IncrementHelpful(ctx context.Context, alternativeID, feedbackID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.feedback[alternativeID] {
		if f.ID == feedbackID {
			f.VotesHelpful++
			return nil
		}
	}
	return errors.NewNotFoundError("feedback")
}

// SetFeedbackStatus stands in for the external moderation step.
func (s *CatalogStore) SetFeedbackStatus(alternativeID, feedbackID string, status entities.ReviewStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.feedback[alternativeID] {
		if f.ID == feedbackID {
			f.Status = status
			return true
		}
	}
	return false
}

// Submissions

func (s *CatalogStore) AddSubmission(ctx context.Context, submission *entities.Submission) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *submission
	c.ProprietaryPackages = append([]string(nil), submission.ProprietaryPackages...)
	if c.ID == "" {
		c.ID = valueobjects.NewRecordID().String()
	}
	s.submissions = append(s.submissions, &c)
	return c.ID, nil
}

func (s *CatalogStore) ListSubmissionsByUser(ctx context.Context, uid string) ([]*entities.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*entities.Submission
	for _, sub := range s.submissions {
		if sub.SubmitterUID == uid {
			c := *sub
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *CatalogStore) AddProposal(ctx context.Context, proposal *entities.Proposal) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *proposal
	if c.ID == "" {
		c.ID = valueobjects.NewRecordID().String()
	}
	s.proposals = append(s.proposals, &c)
	return c.ID, nil
}

// Reports

func (s *CatalogStore) AddReport(ctx context.Context, report *entities.Report) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *report
	if c.ID == "" {
		c.ID = valueobjects.NewRecordID().String()
	}
	s.reports = append(s.reports, &c)
	return c.ID, nil
}

func (s *CatalogStore) ListReportsByUser(ctx context.Context, uid string) ([]*entities.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*entities.Report
	for _, r := range s.reports {
		if r.SubmitterUID == uid {
			c := *r
			out = append(out, &c)
		}
	}
	return out, nil
}

// Profiles

func (s *CatalogStore) GetProfile(ctx context.Context, uid string) (*entities.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[uid]
	if !ok {
		return nil, errors.NewNotFoundError("profile")
	}
	return &p, nil
}

func (s *CatalogStore) PutProfile(ctx context.Context, profile *entities.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for uid, p := range s.profiles {
		if uid != profile.UID && strings.EqualFold(p.Username, profile.Username) {
			return errors.NewConflictError("username already taken").WithCode(errors.CodeUsernameTaken)
		}
	}
	s.profiles[profile.UID] = *profile
	return nil
}

func (s *CatalogStore) IsUsernameTaken(ctx context.Context, username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.profiles {
		if strings.EqualFold(p.Username, strings.TrimSpace(username)) {
			return true, nil
		}
	}
	return false, nil
}

// Transactions

// RunTransaction implements ports.RatingStore.
func (s *CatalogStore) RunTransaction(ctx context.Context, fn ports.TransactionFunc) error {
	return abstractions.RunOptimistic(ctx, s.retry, func(ctx context.Context, n int) error {
		tx := &transaction{
			store:   s,
			reads:   abstractions.ReadSet{},
			aggs:    make(map[string]aggregates.RatingAggregate),
			tallies: make(map[string]map[string]int),
		}
		if err := fn(ctx, tx); err != nil {
			return err
		}
		err := s.commit(tx)
		if errors.IsTransactionConflict(err) {
			s.logger.Debug("Rating transaction conflict", zap.Int("attempt", n))
		}
		return err
	})
}

func (s *CatalogStore) commit(tx *transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, seen := range tx.reads {
		if s.versionOf(key) != seen {
			return errors.NewTransactionConflict(key)
		}
	}

	for id := range tx.aggs {
		if _, ok := s.alternatives[id]; !ok {
			return errors.NewNotFoundError("alternative")
		}
	}
	for id := range tx.tallies {
		if _, ok := s.alternatives[id]; !ok {
			return errors.NewNotFoundError("alternative")
		}
	}

	now := time.Now().UTC()
	for _, r := range tx.ratings {
		key := ratingKey(r.AlternativeID, r.UserID)
		doc, ok := s.ratings[key]
		if !ok {
			doc = &ratingDoc{}
			s.ratings[key] = doc
		}
		doc.rating = *r
		if doc.rating.UpdatedAt.IsZero() {
			doc.rating.UpdatedAt = now
		}
		doc.version++
	}
	for _, v := range tx.votes {
		key := voteKey(v.AlternativeID, v.UserID, v.Category)
		doc, ok := s.votes[key]
		if !ok {
			doc = &voteDoc{}
			s.votes[key] = doc
		}
		doc.vote = *v
		if doc.vote.CreatedAt.IsZero() {
			doc.vote.CreatedAt = now
		}
		doc.version++
	}

	// One version bump per alternative, however many of its fields changed.
	touched := make(map[string]bool, len(tx.aggs)+len(tx.tallies))
	for id, agg := range tx.aggs {
		doc := s.alternatives[id]
		doc.alt.RatingAvg = agg.Average
		doc.alt.RatingCount = agg.Count
		touched[id] = true
	}
	for id, votes := range tx.tallies {
		s.alternatives[id].alt.Votes = copyVotes(votes)
		touched[id] = true
	}
	for id := range touched {
		s.alternatives[id].version++
	}
	return nil
}

// versionOf must be called with s.mu held.
func (s *CatalogStore) versionOf(key string) int64 {
	kind, rest, _ := strings.Cut(key, "#")
	switch kind {
	case "alt":
		if doc, ok := s.alternatives[rest]; ok {
			return doc.version
		}
	case "rating":
		if doc, ok := s.ratings[rest]; ok {
			return doc.version
		}
	case "vote":
		if doc, ok := s.votes[rest]; ok {
			return doc.version
		}
	}
	return 0
}

type transaction struct {
	store   *CatalogStore
	reads   abstractions.ReadSet
	ratings []*entities.Rating
	aggs    map[string]aggregates.RatingAggregate
	votes   []*entities.CategoryVote
	tallies map[string]map[string]int
}

func (t *transaction) GetAlternative(ctx context.Context, id string) (*entities.Alternative, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	doc, ok := t.store.alternatives[id]
	if !ok {
		t.reads.Record("alt#"+id, 0)
		return nil, errors.NewNotFoundError("alternative")
	}
	t.reads.Record("alt#"+id, doc.version)
	alt := copyAlternative(doc.alt)
	return &alt, nil
}

func (t *transaction) GetRating(ctx context.Context, alternativeID, userID string) (*entities.Rating, error) {
	key := ratingKey(alternativeID, userID)
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	doc, ok := t.store.ratings[key]
	if !ok {
		t.reads.Record("rating#"+key, 0)
		return nil, errors.NewNotFoundError("rating")
	}
	t.reads.Record("rating#"+key, doc.version)
	r := doc.rating
	return &r, nil
}

func (t *transaction) PutRating(rating *entities.Rating) {
	r := *rating
	t.ratings = append(t.ratings, &r)
}

func (t *transaction) SetRatingAggregate(alternativeID string, aggregate aggregates.RatingAggregate) {
	t.aggs[alternativeID] = aggregate
}

func (t *transaction) GetVote(ctx context.Context, alternativeID, userID string, category entities.VoteCategory) (*entities.CategoryVote, error) {
	key := voteKey(alternativeID, userID, category)
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	doc, ok := t.store.votes[key]
	if !ok {
		t.reads.Record("vote#"+key, 0)
		return nil, errors.NewNotFoundError("vote")
	}
	t.reads.Record("vote#"+key, doc.version)
	v := doc.vote
	return &v, nil
}

func (t *transaction) PutVote(vote *entities.CategoryVote) {
	v := *vote
	t.votes = append(t.votes, &v)
}

func (t *transaction) SetCategoryVotes(alternativeID string, votes map[string]int) {
	t.tallies[alternativeID] = copyVotes(votes)
}

func ratingKey(alternativeID, userID string) string {
	return alternativeID + "/" + userID
}

func voteKey(alternativeID, userID string, category entities.VoteCategory) string {
	return alternativeID + "/" + string(category) + "/" + userID
}

func copyVotes(in map[string]int) map[string]int {
	if in == nil {
		return nil
	}
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyAlternative(a entities.Alternative) entities.Alternative {
	a.Features = append([]string(nil), a.Features...)
	a.Pros = append([]string(nil), a.Pros...)
	a.Cons = append([]string(nil), a.Cons...)
	a.Votes = copyVotes(a.Votes)
	a.UserRating = nil
	return a
}
