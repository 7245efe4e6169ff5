package timetable

import "fmt"

// backtracker solves the schedule as a CSP: one variable per session, one value per
// suitable placement.
type backtracker struct {
	budget   budget
	base     []Session
	domains  [][]placement
	assigned []bool
	values   []Session
	nodes    int
	limit    int

	stopped bool
	status  Status
	note    string
}

// backtrack searches depth-first with most-constrained-first ordering and forward checking.
// It either returns a schedule free of hard conflicts or the input unchanged.
func (e *Engine) backtrack(b budget, sessions []Session, limit int) outcome {
	bt := &backtracker{
		budget:   b,
		base:     sessions,
		domains:  make([][]placement, len(sessions)),
		assigned: make([]bool, len(sessions)),
		values:   make([]Session, len(sessions)),
		limit:    limit,
	}
	for i, s := range sessions {
		bt.domains[i] = currentFirst(s, e.candidates(s))
	}

	if bt.solve(0) {
		return outcome{
			sessions:   bt.values,
			status:     StatusSolved,
			iterations: bt.nodes,
		}
	}

	out := outcome{sessions: CloneSessions(sessions), iterations: bt.nodes}
	switch {
	case bt.stopped:
		out.status, out.note = bt.status, bt.note
		if out.status == StatusCompleted {
			// a timed-out search found nothing complete either
			out.status = StatusSearchExhausted
		}
	case bt.nodes >= bt.limit:
		out.status = StatusSearchExhausted
		out.note = fmt.Sprintf("node budget of %d exhausted without a complete assignment", bt.limit)
	default:
		out.status = StatusSearchExhausted
		out.note = "no assignment satisfies every hard constraint"
	}
	return out
}

func (bt *backtracker) solve(depth int) bool {
	if depth == len(bt.base) {
		return true
	}
	if status, note, stop := bt.budget.stop(); stop {
		bt.stopped, bt.status, bt.note = true, status, note
		return false
	}

	v, options := bt.mostConstrained()
	if len(options) == 0 {
		return false
	}
	for _, s := range options {
		if bt.nodes >= bt.limit {
			return false
		}
		bt.nodes++
		bt.assigned[v] = true
		bt.values[v] = s
		if bt.solve(depth + 1) {
			return true
		}
		bt.assigned[v] = false
		if bt.stopped {
			return false
		}
	}
	return false
}

// mostConstrained picks the unassigned variable with the fewest consistent values, lowest
// index on ties, and returns those values in domain order.
func (bt *backtracker) mostConstrained() (int, []Session) {
	best := -1
	var bestOptions []Session
	for i := range bt.base {
		if bt.assigned[i] {
			continue
		}
		options := bt.consistent(i, len(bestOptions), best >= 0)
		if best < 0 || len(options) < len(bestOptions) {
			best, bestOptions = i, options
			if len(options) == 0 {
				break
			}
		}
	}
	return best, bestOptions
}

// consistent lists the values of variable i that clash with no assigned variable. With
// bounded set it stops as soon as the list cannot beat the current minimum.
func (bt *backtracker) consistent(i, bound int, bounded bool) []Session {
	out := make([]Session, 0, len(bt.domains[i]))
	for _, p := range bt.domains[i] {
		s := bt.base[i].at(p)
		ok := true
		for j := range bt.base {
			if bt.assigned[j] && clash(s, bt.values[j]) {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		out = append(out, s)
		if bounded && len(out) >= bound {
			return out
		}
	}
	return out
}

// currentFirst moves the session's present placement to the front of its domain.
func currentFirst(s Session, domain []placement) []placement {
	for i, p := range domain {
		if s.sitsAt(p) {
			out := make([]placement, 0, len(domain))
			out = append(out, p)
			out = append(out, domain[:i]...)
			return append(out, domain[i+1:]...)
		}
	}
	return domain
}
