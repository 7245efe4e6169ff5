package timetable

import "sort"

// ConflictType names the violated rule.
type ConflictType string

const (
	ConflictLecturerOverlap  ConflictType = "lecturer_overlap"
	ConflictVenueOverlap     ConflictType = "venue_overlap"
	ConflictGroupOverlap     ConflictType = "group_overlap"
	ConflictCapacityExceeded ConflictType = "capacity_exceeded"
	ConflictInvalidSlot      ConflictType = "invalid_slot"
)

// Severity ranks how bad a violation is.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

var severityRank = map[Severity]int{SeverityHigh: 0, SeverityMedium: 1, SeverityLow: 2}

// Conflict is a single detected violation.
type Conflict struct {
	Type        ConflictType `json:"type"`
	Severity    Severity     `json:"severity"`
	Description string       `json:"description"`
	SessionIDs  []string     `json:"sessionIds"`
}

// Weights prices each severity in the objective function.
type Weights struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// DefaultWeights keeps hard constraints far above soft ones.
func DefaultWeights() Weights {
	return Weights{High: 100, Medium: 10, Low: 1}
}

// Of returns the weight of a severity.
func (w Weights) Of(severity Severity) int {
	switch severity {
	case SeverityHigh:
		return w.High
	case SeverityMedium:
		return w.Medium
	default:
		return w.Low
	}
}

// Score is the weighted conflict sum; zero is a conflict-free schedule.
func (w Weights) Score(conflicts []Conflict) int {
	total := 0
	for _, c := range conflicts {
		total += w.Of(c.Severity)
	}
	return total
}

func (w Weights) valid() bool {
	return w.Low > 0 && w.High >= w.Medium && w.Medium >= w.Low
}

// headcount is the number of students attending the session.
func (e *Engine) headcount(s Session) int {
	if s.Attendance > 0 {
		return s.Attendance
	}
	return e.groups[s.GroupID].StudentCount
}

// suitable is the static half of the feasibility predicate: venue kind and capacity.
func (e *Engine) suitable(s Session, v Venue) bool {
	switch s.Mode {
	case ModeOnline:
		return v.OnlineCapable
	default:
		return v.Capacity > 0 && v.Capacity >= e.headcount(s)
	}
}

// clash reports a hard conflict between two sessions.
func clash(a, b Session) bool {
	if !a.Overlaps(b) {
		return false
	}
	if a.LecturerID != "" && a.LecturerID == b.LecturerID {
		return true
	}
	if a.VenueID != "" && a.VenueID == b.VenueID {
		return true
	}
	return a.SharesGroup(b)
}

// candidates lists every statically suitable placement for the session in search order:
// venue ID ascending, then slot ID ascending.
func (e *Engine) candidates(s Session) []placement {
	minutes := s.Minutes()
	out := make([]placement, 0, len(e.venues))
	for _, v := range e.venues {
		if !e.suitable(s, v) {
			continue
		}
		for _, slot := range e.slots {
			if slot.Minutes() != minutes {
				continue
			}
			out = append(out, placement{slot: slot, venue: v})
		}
	}
	return out
}

// board indexes a working session list by day for clash checks.
type board struct {
	sessions []Session
	byDay    map[Weekday][]int
}

func newBoard(sessions []Session) *board {
	b := &board{
		sessions: make([]Session, 0, len(sessions)),
		byDay:    make(map[Weekday][]int),
	}
	for _, s := range sessions {
		b.add(s)
	}
	return b
}

func (b *board) add(s Session) int {
	idx := len(b.sessions)
	b.sessions = append(b.sessions, s)
	b.byDay[s.Day] = append(b.byDay[s.Day], idx)
	return idx
}

// set replaces the session at idx, keeping the day index in sync.
func (b *board) set(idx int, s Session) {
	old := b.sessions[idx]
	if old.Day != s.Day {
		list := b.byDay[old.Day]
		for i, v := range list {
			if v == idx {
				b.byDay[old.Day] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
		b.byDay[s.Day] = append(b.byDay[s.Day], idx)
	}
	b.sessions[idx] = s
}

// fits reports whether s clashes with no session on the board other than skip.
func (b *board) fits(s Session, skip int) bool {
	for _, idx := range b.byDay[s.Day] {
		if idx == skip {
			continue
		}
		if clash(s, b.sessions[idx]) {
			return false
		}
	}
	return true
}

func (b *board) indexOf(id string) int {
	for i, s := range b.sessions {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// sortedDays returns the keys of a day-indexed map in ascending order.
func sortedDays[T any](m map[Weekday]T) []Weekday {
	days := make([]Weekday, 0, len(m))
	for d := range m {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return days
}
