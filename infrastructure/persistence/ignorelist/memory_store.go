package ignorelist

import (
	"context"
	"sync"

	"librefind/application/ports"
)

// MemoryStore is an IgnoreListStore without persistence.
type MemoryStore struct {
	mu       sync.RWMutex
	ignored  map[string]struct{}
	watchers *broadcaster
}

var _ ports.IgnoreListStore = (*MemoryStore)(nil)

func NewMemoryStore(initial ...string) *MemoryStore {
	s := &MemoryStore{ignored: make(map[string]struct{}), watchers: newBroadcaster()}
	for _, pkg := range initial {
		s.ignored[pkg] = struct{}{}
	}
	return s
}

func (s *MemoryStore) Ignored(ctx context.Context) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySet(s.ignored), nil
}

func (s *MemoryStore) Ignore(ctx context.Context, packageName string) error {
	s.mu.Lock()
	s.ignored[packageName] = struct{}{}
	snapshot := copySet(s.ignored)
	s.mu.Unlock()
	s.watchers.publish(snapshot)
	return nil
}

func (s *MemoryStore) Restore(ctx context.Context, packageName string) error {
	s.mu.Lock()
	delete(s.ignored, packageName)
	snapshot := copySet(s.ignored)
	s.mu.Unlock()
	s.watchers.publish(snapshot)
	return nil
}

func (s *MemoryStore) Watch(ctx context.Context) <-chan map[string]struct{} {
	return s.watchers.subscribe(ctx)
}

// broadcaster fans ignore-set snapshots out to subscribers. Each subscriber
// holds at most one pending snapshot; a newer one replaces it.
type broadcaster struct {
	mu   sync.Mutex
	subs map[chan map[string]struct{}]struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[chan map[string]struct{}]struct{})}
}

func (b *broadcaster) subscribe(ctx context.Context) <-chan map[string]struct{} {
	ch := make(chan map[string]struct{}, 1)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, ch)
		close(ch)
		b.mu.Unlock()
	}()
	return ch
}

func (b *broadcaster) publish(set map[string]struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case <-ch:
		default:
		}
		ch <- copySet(set)
	}
}
