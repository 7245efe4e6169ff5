package timetable

import (
	"fmt"
	"sort"
)

// Detect returns every constraint violation in the schedule. It never mutates its input and
// returns the same conflicts in the same order for the same input.
func (e *Engine) Detect(sessions []Session) []Conflict {
	conflicts := make([]Conflict, 0)

	buckets := make(map[Weekday][]int)
	for i, s := range sessions {
		buckets[s.Day] = append(buckets[s.Day], i)
	}
	for _, day := range sortedDays(buckets) {
		idx := buckets[day]
		sort.SliceStable(idx, func(a, b int) bool {
			sa, sb := sessions[idx[a]], sessions[idx[b]]
			if sa.Start != sb.Start {
				return sa.Start < sb.Start
			}
			if sa.End != sb.End {
				return sa.End < sb.End
			}
			return sa.ID < sb.ID
		})
		for i := 0; i < len(idx); i++ {
			a := sessions[idx[i]]
			for j := i + 1; j < len(idx); j++ {
				b := sessions[idx[j]]
				// sorted by start: nothing later can overlap a
				if b.Start >= a.End {
					break
				}
				conflicts = append(conflicts, pairConflicts(a, b)...)
			}
		}
	}

	for _, s := range sessions {
		if s.Mode != ModeOnline {
			capacity := 0
			if v, ok := e.venueByID[s.VenueID]; ok {
				capacity = v.Capacity
			}
			if size := e.headcount(s); size > capacity {
				conflicts = append(conflicts, Conflict{
					Type:        ConflictCapacityExceeded,
					Severity:    SeverityMedium,
					Description: fmt.Sprintf("session %s has %d students but venue %q holds %d", s.ID, size, s.VenueID, capacity),
					SessionIDs:  []string{s.ID},
				})
			}
		}
		if !e.inCatalog(s) {
			conflicts = append(conflicts, Conflict{
				Type:        ConflictInvalidSlot,
				Severity:    SeverityLow,
				Description: fmt.Sprintf("session %s runs %s which is not a cataloged time slot", s.ID, s.window()),
				SessionIDs:  []string{s.ID},
			})
		}
	}
	return conflicts
}

func pairConflicts(a, b Session) []Conflict {
	if !a.Overlaps(b) {
		return nil
	}
	ids := []string{a.ID, b.ID}
	var out []Conflict
	if a.LecturerID != "" && a.LecturerID == b.LecturerID {
		out = append(out, Conflict{
			Type:        ConflictLecturerOverlap,
			Severity:    SeverityHigh,
			Description: fmt.Sprintf("lecturer %s is double-booked: %s and %s", a.LecturerID, a, b),
			SessionIDs:  ids,
		})
	}
	if a.VenueID != "" && a.VenueID == b.VenueID {
		out = append(out, Conflict{
			Type:        ConflictVenueOverlap,
			Severity:    SeverityHigh,
			Description: fmt.Sprintf("venue %s hosts overlapping sessions: %s and %s", a.VenueID, a, b),
			SessionIDs:  ids,
		})
	}
	if a.SharesGroup(b) {
		out = append(out, Conflict{
			Type:        ConflictGroupOverlap,
			Severity:    SeverityHigh,
			Description: fmt.Sprintf("group %s is double-booked: %s and %s", a.GroupID, a, b),
			SessionIDs:  ids,
		})
	}
	return out
}

// Report summarizes a schedule's conflicts.
type Report struct {
	Conflicts     []Conflict           `json:"conflicts"`
	ByType        map[ConflictType]int `json:"byType"`
	BySeverity    map[Severity]int     `json:"bySeverity"`
	WeightedScore int                  `json:"weightedScore"`
	Satisfaction  float64              `json:"satisfaction"`
}

// HasHard reports whether any high-severity conflict remains.
func (r Report) HasHard() bool {
	return r.BySeverity[SeverityHigh] > 0
}

// Evaluate detects conflicts and scores them with the engine weights.
func (e *Engine) Evaluate(sessions []Session) Report {
	return e.evaluate(sessions, e.weights)
}

func (e *Engine) evaluate(sessions []Session, w Weights) Report {
	conflicts := e.Detect(sessions)
	report := Report{
		Conflicts:  conflicts,
		ByType:     make(map[ConflictType]int),
		BySeverity: make(map[Severity]int),
	}
	for _, c := range conflicts {
		report.ByType[c.Type]++
		report.BySeverity[c.Severity]++
	}
	report.WeightedScore = w.Score(conflicts)
	report.Satisfaction = satisfaction(sessions, report.WeightedScore, w)
	return report
}

// satisfaction is 1 - weighted/maxPossible, where maxPossible assumes every pair of sessions
// clashes on all three dimensions, every physical session is over capacity and every session
// is off-catalog.
func satisfaction(sessions []Session, weighted int, w Weights) float64 {
	n := len(sessions)
	physical := 0
	for _, s := range sessions {
		if s.Mode != ModeOnline {
			physical++
		}
	}
	maxPossible := 3*w.High*n*(n-1)/2 + w.Medium*physical + w.Low*n
	if maxPossible <= 0 {
		return 1
	}
	ratio := 1 - float64(weighted)/float64(maxPossible)
	if ratio < 0 {
		return 0
	}
	return ratio
}

// objective is the weighted conflict score of a schedule.
func (e *Engine) objective(sessions []Session, w Weights) int {
	return w.Score(e.Detect(sessions))
}
