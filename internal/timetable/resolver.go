package timetable

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Strategy selects how Resolve repairs a schedule.
type Strategy string

const (
	StrategyReschedule  Strategy = "reschedule"
	StrategySplitGroups Strategy = "split_groups"
	StrategyAuto        Strategy = "auto"
)

// ParseStrategy maps a user supplied name to a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch s := Strategy(strings.ToLower(strings.TrimSpace(name))); s {
	case StrategyReschedule, StrategySplitGroups, StrategyAuto:
		return s, nil
	case "split", "split-groups":
		return StrategySplitGroups, nil
	case "":
		return StrategyAuto, nil
	default:
		return "", invalidf("unknown resolution strategy %q", name)
	}
}

// ResolveResult is the repaired schedule, what was done to it and what is left.
type ResolveResult struct {
	Sessions  []Session  `json:"sessions"`
	Actions   []string   `json:"actions"`
	Remaining []Conflict `json:"remaining"`
	// Cancelled marks a run stopped by its context; the repairs made so far are kept.
	Cancelled bool `json:"cancelled,omitempty"`
}

// Resolve repairs conflicts with the chosen strategy. When conflicts is nil the schedule is
// scanned first. A schedule without conflicts comes back unchanged with no actions.
// split_groups halves a group only when neither session of a group_overlap or
// capacity_exceeded conflict can be moved whole.
func (e *Engine) Resolve(ctx context.Context, sessions []Session, conflicts []Conflict, strategy Strategy) (ResolveResult, error) {
	switch strategy {
	case StrategyReschedule, StrategySplitGroups, StrategyAuto:
	default:
		return ResolveResult{}, invalidf("unknown resolution strategy %q", strategy)
	}
	if conflicts == nil {
		conflicts = e.Detect(sessions)
	}
	if len(conflicts) == 0 {
		return ResolveResult{
			Sessions:  CloneSessions(sessions),
			Actions:   make([]string, 0),
			Remaining: e.Detect(sessions),
		}, nil
	}

	r := &resolution{engine: e, board: newBoard(sessions), actions: make([]string, 0)}
	work := ordered(conflicts)

	var err error
	switch strategy {
	case StrategyReschedule:
		err = r.reschedule(ctx, work)
	case StrategySplitGroups:
		err = r.split(ctx, work)
	case StrategyAuto:
		if err = r.reschedule(ctx, work); err == nil {
			err = r.split(ctx, ordered(e.Detect(r.board.sessions)))
		}
	}
	return ResolveResult{
		Sessions:  r.board.sessions,
		Actions:   r.actions,
		Remaining: e.Detect(r.board.sessions),
		Cancelled: err != nil,
	}, nil
}

// ordered returns the conflicts sorted by severity, keeping detection order within a level.
func ordered(conflicts []Conflict) []Conflict {
	out := append([]Conflict(nil), conflicts...)
	sort.SliceStable(out, func(i, j int) bool {
		return severityRank[out[i].Severity] < severityRank[out[j].Severity]
	})
	return out
}

type resolution struct {
	engine  *Engine
	board   *board
	actions []string
}

func (r *resolution) reschedule(ctx context.Context, work []Conflict) error {
	for _, c := range work {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !r.holds(c) {
			continue
		}
		r.move(c)
	}
	return nil
}

// move relocates one session of the conflict, trying the later session first.
func (r *resolution) move(c Conflict) bool {
	for i := len(c.SessionIDs) - 1; i >= 0; i-- {
		idx := r.board.indexOf(c.SessionIDs[i])
		if idx < 0 {
			continue
		}
		current := r.board.sessions[idx]
		next, ok := r.relocate(idx)
		if !ok {
			continue
		}
		r.board.set(idx, next)
		r.actions = append(r.actions, fmt.Sprintf("moved %s from %s @ %s to %s @ %s to clear %s",
			current.ID, current.window(), venueLabel(current), next.window(), venueLabel(next), c.Type))
		return true
	}
	return false
}

// relocate finds the first feasible placement other than the current one.
func (r *resolution) relocate(idx int) (Session, bool) {
	s := r.board.sessions[idx]
	for _, p := range r.engine.candidates(s) {
		if s.sitsAt(p) {
			continue
		}
		moved := s.at(p)
		if r.board.fits(moved, idx) {
			return moved, true
		}
	}
	return Session{}, false
}

func (r *resolution) split(ctx context.Context, work []Conflict) error {
	for _, c := range work {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !r.holds(c) {
			continue
		}
		// only split when no session of the conflict can be moved whole
		if r.move(c) {
			continue
		}
		if c.Type == ConflictGroupOverlap || c.Type == ConflictCapacityExceeded {
			r.splitOne(c)
		}
	}
	return nil
}

// splitOne halves the attendance of one involved physical session and places both halves.
func (r *resolution) splitOne(c Conflict) bool {
	e := r.engine
	for i := len(c.SessionIDs) - 1; i >= 0; i-- {
		idx := r.board.indexOf(c.SessionIDs[i])
		if idx < 0 {
			continue
		}
		original := r.board.sessions[idx]
		size := e.headcount(original)
		if original.Mode == ModeOnline || size < 2 {
			continue
		}

		first, second := original, original
		first.ID, second.ID = original.ID+"-A", original.ID+"-B"
		first.Subgroup, second.Subgroup = original.Subgroup+"A", original.Subgroup+"B"
		first.Attendance, second.Attendance = (size+1)/2, size/2

		placedFirst, ok := r.place(first, idx)
		if !ok {
			continue
		}
		r.board.set(idx, placedFirst)
		placedSecond, ok := r.place(second, -1)
		if !ok {
			r.board.set(idx, original)
			continue
		}
		r.board.add(placedSecond)
		r.actions = append(r.actions, fmt.Sprintf("split %s into %s (%d students, %s @ %s) and %s (%d students, %s @ %s) to clear %s",
			original.ID,
			placedFirst.ID, placedFirst.Attendance, placedFirst.window(), venueLabel(placedFirst),
			placedSecond.ID, placedSecond.Attendance, placedSecond.window(), venueLabel(placedSecond),
			c.Type))
		return true
	}
	return false
}

// place returns the first candidate for s that fits the board ignoring skip.
func (r *resolution) place(s Session, skip int) (Session, bool) {
	for _, p := range r.engine.candidates(s) {
		placed := s.at(p)
		if r.board.fits(placed, skip) {
			return placed, true
		}
	}
	return Session{}, false
}

// holds reports whether the conflict is still present on the board.
func (r *resolution) holds(c Conflict) bool {
	e := r.engine
	switch c.Type {
	case ConflictLecturerOverlap, ConflictVenueOverlap, ConflictGroupOverlap:
		if len(c.SessionIDs) < 2 {
			return false
		}
		a, b := r.board.indexOf(c.SessionIDs[0]), r.board.indexOf(c.SessionIDs[1])
		if a < 0 || b < 0 {
			return false
		}
		for _, found := range pairConflicts(r.board.sessions[a], r.board.sessions[b]) {
			if found.Type == c.Type {
				return true
			}
		}
		return false
	case ConflictCapacityExceeded:
		if len(c.SessionIDs) == 0 {
			return false
		}
		idx := r.board.indexOf(c.SessionIDs[0])
		if idx < 0 {
			return false
		}
		s := r.board.sessions[idx]
		return s.Mode != ModeOnline && e.headcount(s) > e.venueByID[s.VenueID].Capacity
	case ConflictInvalidSlot:
		if len(c.SessionIDs) == 0 {
			return false
		}
		idx := r.board.indexOf(c.SessionIDs[0])
		return idx >= 0 && !e.inCatalog(r.board.sessions[idx])
	default:
		return false
	}
}

func venueLabel(s Session) string {
	if s.VenueID == "" {
		return "-"
	}
	return s.VenueID
}
