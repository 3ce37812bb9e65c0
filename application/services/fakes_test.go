package services

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"

	"librefind/domain/core/entities"
	"librefind/domain/events"
	"librefind/pkg/errors"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.DomainEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) PublishBatch(ctx context.Context, es []events.DomainEvent) error {
	for _, e := range es {
		if err := p.Publish(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// flakyCatalog fails every lookup with an I/O error and counts calls.
type flakyCatalog struct {
	calls atomic.Int64
}

func (f *flakyCatalog) fail() error {
	f.calls.Add(1)
	return errors.NewUnavailableError("catalog")
}

func (f *flakyCatalog) GetTarget(ctx context.Context, packageName string) (*entities.ProprietaryTarget, error) {
	return nil, f.fail()
}

func (f *flakyCatalog) ListTargets(ctx context.Context) ([]*entities.ProprietaryTarget, error) {
	return nil, f.fail()
}

func (f *flakyCatalog) GetAlternative(ctx context.Context, id string) (*entities.Alternative, error) {
	return nil, f.fail()
}

func (f *flakyCatalog) GetRating(ctx context.Context, alternativeID, userID string) (*entities.Rating, error) {
	return nil, f.fail()
}

func (f *flakyCatalog) FindAlternativeByPackage(ctx context.Context, packageName string) (*entities.Alternative, error) {
	return nil, f.fail()
}

func (f *flakyCatalog) FindAlternativeByName(ctx context.Context, name string) (*entities.Alternative, error) {
	return nil, f.fail()
}

type staticSession struct {
	uid string
}

func (s staticSession) CurrentUserID() (string, bool) { return s.uid, s.uid != "" }

func asDomain(err error, target **errors.DomainError) bool {
	return stderrors.As(err, target)
}
