// Package timetable assigns teaching sessions to lecturers, groups, venues and time slots,
// detects constraint violations and repairs or optimizes existing schedules.
//
// The package is a pure computation over an in-memory Snapshot. Every operation works on
// its own copy of the session list and returns a new one.
package timetable

import (
	"errors"
	"fmt"
	"sort"

	"github.com/samber/lo"
)

// ErrInvalidConfiguration reports malformed input detected before any search starts.
var ErrInvalidConfiguration = errors.New("invalid timetable configuration")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}

type catalogKey struct {
	day   Weekday
	start Clock
	end   Clock
}

// Engine schedules against one snapshot. It is read-only after New and safe for
// concurrent use; each call owns its working session list.
type Engine struct {
	snapshot  Snapshot
	units     map[string]Unit
	lecturers map[string]Lecturer
	groups    map[string]Group
	venueByID map[string]Venue
	venues    []Venue
	slots     []TimeSlot
	catalog   map[catalogKey]TimeSlot
	weights   Weights
}

// Option customizes an Engine.
type Option func(*Engine)

// WithWeights overrides the default severity weights.
func WithWeights(w Weights) Option {
	return func(e *Engine) {
		e.weights = w
	}
}

// New validates the snapshot and builds the lookup indexes.
func New(snapshot Snapshot, opts ...Option) (*Engine, error) {
	if len(snapshot.Slots) == 0 {
		return nil, invalidf("time slot catalog is empty")
	}
	if len(snapshot.Venues) == 0 {
		return nil, invalidf("venue catalog is empty")
	}
	for _, slot := range snapshot.Slots {
		if slot.ID == "" {
			return nil, invalidf("time slot without id")
		}
		if !slot.Day.Valid() {
			return nil, invalidf("time slot %s has day %d outside 1-7", slot.ID, int(slot.Day))
		}
		if slot.End <= slot.Start {
			return nil, invalidf("time slot %s ends before it starts", slot.ID)
		}
	}
	for _, unit := range snapshot.Units {
		if _, err := BlocksFor(unit.CreditHours); err != nil {
			return nil, fmt.Errorf("unit %s: %w", unit.Code, err)
		}
	}
	for _, group := range snapshot.Groups {
		if group.StudentCount < 0 {
			return nil, invalidf("group %s has negative student count", group.ID)
		}
	}
	if err := uniqueIDs("slot", lo.Map(snapshot.Slots, func(s TimeSlot, _ int) string { return s.ID })); err != nil {
		return nil, err
	}
	if err := uniqueIDs("venue", lo.Map(snapshot.Venues, func(v Venue, _ int) string { return v.ID })); err != nil {
		return nil, err
	}
	if err := uniqueIDs("unit", lo.Map(snapshot.Units, func(u Unit, _ int) string { return u.ID })); err != nil {
		return nil, err
	}
	// generated session ids are built from unit codes
	if err := uniqueIDs("unit code", lo.Map(snapshot.Units, func(u Unit, _ int) string { return u.Code })); err != nil {
		return nil, err
	}

	e := &Engine{
		snapshot:  snapshot,
		units:     lo.KeyBy(snapshot.Units, func(u Unit) string { return u.ID }),
		lecturers: lo.KeyBy(snapshot.Lecturers, func(l Lecturer) string { return l.ID }),
		groups:    lo.KeyBy(snapshot.Groups, func(g Group) string { return g.ID }),
		venueByID: lo.KeyBy(snapshot.Venues, func(v Venue) string { return v.ID }),
		catalog:   make(map[catalogKey]TimeSlot, len(snapshot.Slots)),
		weights:   DefaultWeights(),
	}

	e.venues = append([]Venue(nil), snapshot.Venues...)
	sort.Slice(e.venues, func(i, j int) bool { return lessID(e.venues[i].ID, e.venues[j].ID) })
	e.slots = append([]TimeSlot(nil), snapshot.Slots...)
	sort.Slice(e.slots, func(i, j int) bool { return lessID(e.slots[i].ID, e.slots[j].ID) })
	for _, slot := range e.slots {
		e.catalog[catalogKey{day: slot.Day, start: slot.Start, end: slot.End}] = slot
	}

	for _, opt := range opts {
		opt(e)
	}
	if !e.weights.valid() {
		return nil, invalidf("weights must satisfy high >= medium >= low > 0")
	}
	return e, nil
}

// Snapshot returns the snapshot the engine was built from.
func (e *Engine) Snapshot() Snapshot {
	return e.snapshot
}

// Weights returns the engine's severity weights.
func (e *Engine) Weights() Weights {
	return e.weights
}

func uniqueIDs(kind string, ids []string) error {
	if dupes := lo.FindDuplicates(ids); len(dupes) > 0 {
		return invalidf("duplicate %s ids: %v", kind, dupes)
	}
	return nil
}

// inCatalog reports whether the session sits on a cataloged window.
func (e *Engine) inCatalog(s Session) bool {
	_, ok := e.catalog[catalogKey{day: s.Day, start: s.Start, end: s.End}]
	return ok
}
