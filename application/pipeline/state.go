// Package pipeline turns an installed-package inventory into the filtered,
// scored view a client renders.
//
// All state changes go through Reduce, a pure function of the previous
// state and one event. The Pipeline type owns the goroutines: it runs scans,
// cancels superseded ones and feeds their results back as events.
package pipeline

import (
	"librefind/application/services"
	"librefind/domain/core/entities"
	domain "librefind/domain/services"
)

// State is one snapshot of the inventory view.
type State struct {
	Loading bool               `json:"loading"`
	Apps    []entities.AppItem `json:"apps"`
	// Score covers every scanned app that is not ignored, whatever the
	// query or status filter. It is nil until the first scan completes.
	Score *domain.ScoreReport `json:"score"`
	Error string              `json:"error,omitempty"`

	Query      string              `json:"query,omitempty"`
	Status     *entities.AppStatus `json:"status,omitempty"`
	Generation uint64              `json:"generation"`
	// UserID is the signed-in user, empty when signed out.
	UserID string `json:"userId,omitempty"`

	ignored map[string]struct{}
	scanned []entities.AppItem
}

// Initial is the state before any scan: loading, nothing listed, no score.
func Initial() State {
	return State{Loading: true, Apps: []entities.AppItem{}}
}

// Event is an input to Reduce.
type Event interface {
	isEvent()
}

// ScanStarted marks a new scan; results of older scans are ignored from
// here on.
type ScanStarted struct {
	Generation uint64
}

type ScanCompleted struct {
	Generation uint64
	Apps       []entities.AppItem
	Err        error
}

type IgnoreListChanged struct {
	Ignored map[string]struct{}
}

type QueryChanged struct {
	Query string
}

// FilterChanged selects one status, or every status when Status is nil.
type FilterChanged struct {
	Status *entities.AppStatus
}

// SessionChanged follows sign-in and sign-out. It does not touch the view.
type SessionChanged struct {
	UserID string
}

func (ScanStarted) isEvent()       {}
func (ScanCompleted) isEvent()     {}
func (IgnoreListChanged) isEvent() {}
func (QueryChanged) isEvent()      {}
func (FilterChanged) isEvent()     {}
func (SessionChanged) isEvent()    {}

// Reduce applies ev to s. It does not modify s or anything s refers to.
func Reduce(s State, ev Event) State {
	switch e := ev.(type) {
	case ScanStarted:
		s.Generation = e.Generation
		s.Loading = true
		s.Error = ""
		return s

	case ScanCompleted:
		if e.Generation != s.Generation {
			return s
		}
		s.Loading = false
		if e.Err != nil {
			s.Error = e.Err.Error()
			return s
		}
		s.Error = ""
		s.scanned = append([]entities.AppItem(nil), e.Apps...)

	case IgnoreListChanged:
		s.ignored = copySet(e.Ignored)

	case QueryChanged:
		s.Query = e.Query

	case FilterChanged:
		if e.Status != nil {
			st := *e.Status
			s.Status = &st
		} else {
			s.Status = nil
		}

	case SessionChanged:
		s.UserID = e.UserID
		return s

	default:
		return s
	}
	return recompute(s)
}

// recompute derives Apps and Score from the last scan and the inputs.
func recompute(s State) State {
	if s.scanned == nil {
		return s
	}

	base := make([]entities.AppItem, 0, len(s.scanned))
	for _, app := range s.scanned {
		if _, skip := s.ignored[app.PackageName]; !skip {
			base = append(base, app)
		}
	}
	report := domain.Score(base).Report()
	s.Score = &report

	visible := make([]entities.AppItem, 0, len(base))
	for _, app := range base {
		if s.Status != nil && app.Status != *s.Status {
			continue
		}
		if !app.Matches(s.Query) {
			continue
		}
		visible = append(visible, app)
	}
	services.SortInventory(visible)
	s.Apps = visible
	return s
}

// Evaluate is a single synchronous pass: one completed scan combined with
// the given inputs.
func Evaluate(apps []entities.AppItem, ignored map[string]struct{}, query string, status *entities.AppStatus) State {
	s := Initial()
	for _, ev := range []Event{
		IgnoreListChanged{Ignored: ignored},
		QueryChanged{Query: query},
		FilterChanged{Status: status},
		ScanStarted{Generation: 1},
		ScanCompleted{Generation: 1, Apps: apps},
	} {
		s = Reduce(s, ev)
	}
	return s
}

// Ignored returns a copy of the ignore set the state was computed with.
func (s State) Ignored() map[string]struct{} {
	return copySet(s.ignored)
}

func copySet(in map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for k := range in {
		out[k] = struct{}{}
	}
	return out
}
