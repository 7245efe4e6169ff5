package timetable

import (
	"math"
	"math/rand"
)

// anneal runs simulated annealing from the current schedule. Neighbors either move one
// session to another suitable placement or swap the time windows of two sessions of the
// same length. The best schedule seen is returned.
func (e *Engine) anneal(b budget, sessions []Session, w Weights, iterations int, p AnnealingParams, rng *rand.Rand) outcome {
	current := sessions
	score := e.objective(current, w)
	best := CloneSessions(current)
	bestScore := score
	domains := e.domains(current)

	movable := make([]int, 0, len(current))
	for i, d := range domains {
		if len(d) > 0 {
			movable = append(movable, i)
		}
	}

	out := outcome{status: StatusCompleted}
	temperature := p.InitialTemperature
	for out.iterations < iterations && bestScore > 0 {
		if temperature < p.MinTemperature {
			out.note = "temperature fell below the floor"
			break
		}
		if status, note, stop := b.stop(); stop {
			out.status, out.note = status, note
			break
		}
		out.iterations++

		undo, ok := neighbor(rng, current, domains, movable, p.SwapProbability)
		if !ok {
			temperature *= p.CoolingRate
			continue
		}
		candidate := e.objective(current, w)
		delta := candidate - score
		if delta <= 0 || rng.Float64() < math.Exp(-float64(delta)/temperature) {
			score = candidate
			if score < bestScore {
				bestScore = score
				best = CloneSessions(current)
			}
		} else {
			undo()
		}
		temperature *= p.CoolingRate
	}

	out.sessions = best
	return out
}

// neighbor perturbs sessions in place and returns a function restoring the previous state.
func neighbor(rng *rand.Rand, sessions []Session, domains [][]placement, movable []int, swapProbability float64) (func(), bool) {
	if len(movable) == 0 {
		return nil, false
	}
	if len(sessions) > 1 && rng.Float64() < swapProbability {
		i := rng.Intn(len(sessions))
		j := rng.Intn(len(sessions) - 1)
		if j >= i {
			j++
		}
		a, b := sessions[i], sessions[j]
		if a.Minutes() == b.Minutes() && (a.Day != b.Day || a.Start != b.Start) {
			sessions[i].Day, sessions[j].Day = b.Day, a.Day
			sessions[i].Start, sessions[j].Start = b.Start, a.Start
			sessions[i].End, sessions[j].End = b.End, a.End
			sessions[i].SlotID, sessions[j].SlotID = b.SlotID, a.SlotID
			return func() {
				sessions[i], sessions[j] = a, b
			}, true
		}
	}

	i := movable[rng.Intn(len(movable))]
	domain := domains[i]
	choice := domain[rng.Intn(len(domain))]
	if sessions[i].sitsAt(choice) {
		if len(domain) == 1 {
			return nil, false
		}
		choice = domain[(indexOf(domain, choice)+1+rng.Intn(len(domain)-1))%len(domain)]
	}
	old := sessions[i]
	sessions[i] = old.at(choice)
	return func() {
		sessions[i] = old
	}, true
}

func indexOf(domain []placement, p placement) int {
	for i, candidate := range domain {
		if candidate.slot.ID == p.slot.ID && candidate.venue.ID == p.venue.ID {
			return i
		}
	}
	return -1
}
