package auth

import (
	"context"
	"sync"
)

// SessionState is a snapshot of who is signed in.
type SessionState struct {
	UserID   string
	SignedIn bool
}

// SessionTracker holds the signed-in user of a long-lived client such as the
// CLI or a websocket connection, and lets observers follow changes.
type SessionTracker struct {
	mu    sync.Mutex
	state SessionState
	subs  map[chan SessionState]struct{}
}

func NewSessionTracker() *SessionTracker {
	return &SessionTracker{subs: make(map[chan SessionState]struct{})}
}

func (t *SessionTracker) CurrentUserID() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.UserID, t.state.SignedIn
}

func (t *SessionTracker) SetUser(userID string) {
	t.set(SessionState{UserID: userID, SignedIn: userID != ""})
}

func (t *SessionTracker) SignOut() {
	t.set(SessionState{})
}

func (t *SessionTracker) set(next SessionState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if next == t.state {
		return
	}
	t.state = next
	for ch := range t.subs {
		deliverLatest(ch, next)
	}
}

// Subscribe emits the current state immediately and then every change. The
// registration is removed and the channel closed once ctx is done, whichever
// way the caller's scope ends.
func (t *SessionTracker) Subscribe(ctx context.Context) <-chan SessionState {
	ch := make(chan SessionState, 1)

	t.mu.Lock()
	t.subs[ch] = struct{}{}
	ch <- t.state
	t.mu.Unlock()

	go func() {
		<-ctx.Done()
		t.mu.Lock()
		delete(t.subs, ch)
		close(ch)
		t.mu.Unlock()
	}()
	return ch
}

// Subscribers reports how many observers are registered.
func (t *SessionTracker) Subscribers() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

// deliverLatest replaces any undelivered value so slow observers only ever
// see the newest state.
func deliverLatest(ch chan SessionState, s SessionState) {
	select {
	case <-ch:
	default:
	}
	ch <- s
}
