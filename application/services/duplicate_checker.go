package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"librefind/application/ports"
	"librefind/pkg/errors"

	"go.uber.org/zap"
)

// MatchKind classifies a candidate submission against the catalog.
type MatchKind string

const (
	MatchProprietary MatchKind = "PROPRIETARY_MATCH"
	MatchFOSS        MatchKind = "FOSS_MATCH"
	MatchNone        MatchKind = "NO_MATCH"
	MatchCheckFailed MatchKind = "CHECK_FAILED"
)

// DuplicateResult is advisory and never blocks a submission.
type DuplicateResult struct {
	Kind MatchKind `json:"kind"`
	// Name is the matching catalog entry's display name.
	Name string `json:"name,omitempty"`
}

// DuplicateChecker looks a candidate app up among proprietary targets and
// FOSS solutions.
type DuplicateChecker struct {
	targets      ports.TargetReader
	alternatives ports.AlternativeReader
	logger       *zap.Logger
}

func NewDuplicateChecker(targets ports.TargetReader, alternatives ports.AlternativeReader, logger *zap.Logger) *DuplicateChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DuplicateChecker{targets: targets, alternatives: alternatives, logger: logger}
}

// Check tries the proprietary catalog by package, then FOSS solutions by
// package, then FOSS solutions by name.
func (d *DuplicateChecker) Check(ctx context.Context, name, packageName string) DuplicateResult {
	name, packageName = strings.TrimSpace(name), strings.TrimSpace(packageName)
	if name == "" && packageName == "" {
		return DuplicateResult{Kind: MatchNone}
	}

	failed := false
	miss := func(err error) bool {
		if err == nil {
			return false
		}
		if !errors.IsNotFound(err) {
			failed = true
			d.logger.Debug("Duplicate lookup failed", zap.Error(err))
		}
		return true
	}

	if packageName != "" {
		if t, err := d.targets.GetTarget(ctx, packageName); !miss(err) {
			return DuplicateResult{Kind: MatchProprietary, Name: t.Name}
		}
		if a, err := d.alternatives.FindAlternativeByPackage(ctx, packageName); !miss(err) {
			return DuplicateResult{Kind: MatchFOSS, Name: a.Name}
		}
	}
	if name != "" {
		if a, err := d.alternatives.FindAlternativeByName(ctx, name); !miss(err) {
			return DuplicateResult{Kind: MatchFOSS, Name: a.Name}
		}
	}

	if ctx.Err() != nil || failed {
		return DuplicateResult{Kind: MatchCheckFailed}
	}
	return DuplicateResult{Kind: MatchNone}
}

// DebouncedChecker runs Check for form input as the user types. Each field
// key has at most one live request: a new Request for the key cancels the
// pending or in-flight one, whose channel then closes without a value.
type DebouncedChecker struct {
	checker *DuplicateChecker
	delay   time.Duration

	mu      sync.Mutex
	pending map[string]*pendingCheck
}

type pendingCheck struct {
	cancel context.CancelFunc
}

func NewDebouncedChecker(checker *DuplicateChecker, delay time.Duration) *DebouncedChecker {
	return &DebouncedChecker{
		checker: checker,
		delay:   delay,
		pending: make(map[string]*pendingCheck),
	}
}

// Request schedules a check after the debounce delay. The channel yields
// at most one result and is then closed.
func (d *DebouncedChecker) Request(ctx context.Context, key, name, packageName string) <-chan DuplicateResult {
	out := make(chan DuplicateResult, 1)
	ctx, cancel := context.WithCancel(ctx)
	p := &pendingCheck{cancel: cancel}

	d.mu.Lock()
	if prev, ok := d.pending[key]; ok {
		prev.cancel()
	}
	d.pending[key] = p
	d.mu.Unlock()

	go func() {
		defer close(out)
		defer d.release(key, p)

		timer := time.NewTimer(d.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		result := d.checker.Check(ctx, name, packageName)
		if ctx.Err() != nil {
			return
		}
		out <- result
	}()
	return out
}

func (d *DebouncedChecker) release(key string, p *pendingCheck) {
	p.cancel()
	d.mu.Lock()
	if d.pending[key] == p {
		delete(d.pending, key)
	}
	d.mu.Unlock()
}
