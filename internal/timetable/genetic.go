package timetable

import (
	"context"
	"math/rand"
	"sort"

	"golang.org/x/sync/errgroup"
)

// genome holds one gene per session: -1 keeps the session where it is, any other value
// indexes the session's placement domain.
type genome []int

func (g genome) decode(base []Session, domains [][]placement) []Session {
	out := make([]Session, len(base))
	for i, gene := range g {
		if gene < 0 {
			out[i] = base[i]
			continue
		}
		out[i] = base[i].at(domains[i][gene])
	}
	return out
}

// evolve runs a generational genetic algorithm seeded with the current schedule.
func (e *Engine) evolve(b budget, sessions []Session, w Weights, generations int, p GeneticParams, rng *rand.Rand) outcome {
	domains := e.domains(sessions)
	n := len(sessions)

	population := make([]genome, p.PopulationSize)
	population[0] = make(genome, n)
	for i := range population[0] {
		population[0][i] = -1
	}
	for k := 1; k < len(population); k++ {
		population[k] = randomGenome(rng, domains)
	}

	out := outcome{status: StatusCompleted}
	scores, err := e.fitness(b.ctx, population, sessions, domains, w, p.Workers)
	if err != nil {
		out.status, out.note = StatusCancelled, "cancelled before the budget was spent"
		out.sessions = CloneSessions(sessions)
		return out
	}
	best, bestScore := bestOf(population, scores)

	for out.iterations < generations && bestScore > 0 {
		if status, note, stop := b.stop(); stop {
			out.status, out.note = status, note
			break
		}
		out.iterations++

		next := make([]genome, 0, len(population))
		for _, k := range ranked(scores)[:p.Elitism] {
			next = append(next, append(genome(nil), population[k]...))
		}
		weights := fitnessWeights(scores)
		for len(next) < len(population) {
			mother := population[roulette(rng, weights)]
			father := population[roulette(rng, weights)]
			child := crossover(rng, mother, father)
			mutate(rng, child, domains, p.MutationRate)
			next = append(next, child)
		}
		population = next

		scores, err = e.fitness(b.ctx, population, sessions, domains, w, p.Workers)
		if err != nil {
			out.status, out.note = StatusCancelled, "cancelled before the budget was spent"
			break
		}
		if candidate, score := bestOf(population, scores); score < bestScore {
			best, bestScore = candidate, score
		}
	}

	out.sessions = best.decode(sessions, domains)
	return out
}

// fitness scores every individual. Scoring is spread over a bounded set of goroutines; each
// writes only its own slot so the result does not depend on scheduling.
func (e *Engine) fitness(ctx context.Context, population []genome, base []Session, domains [][]placement, w Weights, workers int) ([]int, error) {
	scores := make([]int, len(population))
	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for k := range population {
		k := k
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			scores[k] = e.objective(population[k].decode(base, domains), w)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}

func randomGenome(rng *rand.Rand, domains [][]placement) genome {
	g := make(genome, len(domains))
	for i, d := range domains {
		if len(d) == 0 {
			g[i] = -1
			continue
		}
		g[i] = rng.Intn(len(d))
	}
	return g
}

// ranked returns population indexes ordered by score, lower index first on ties.
func ranked(scores []int) []int {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] < scores[order[b]] })
	return order
}

func bestOf(population []genome, scores []int) (genome, int) {
	k := ranked(scores)[0]
	return append(genome(nil), population[k]...), scores[k]
}

// fitnessWeights is the inverse of the objective: 1/(1+score).
func fitnessWeights(scores []int) []float64 {
	out := make([]float64, len(scores))
	for i, s := range scores {
		out[i] = 1 / (1 + float64(s))
	}
	return out
}

// roulette picks an index with probability proportional to its weight.
func roulette(rng *rand.Rand, weights []float64) int {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	r := rng.Float64() * total
	for i, w := range weights {
		r -= w
		if r < 0 {
			return i
		}
	}
	return len(weights) - 1
}

func crossover(rng *rand.Rand, mother, father genome) genome {
	child := make(genome, len(mother))
	if len(mother) < 2 {
		copy(child, mother)
		return child
	}
	point := 1 + rng.Intn(len(mother)-1)
	copy(child, mother[:point])
	copy(child[point:], father[point:])
	return child
}

func mutate(rng *rand.Rand, g genome, domains [][]placement, rate float64) {
	for i := range g {
		if rng.Float64() >= rate || len(domains[i]) == 0 {
			continue
		}
		g[i] = rng.Intn(len(domains[i]))
	}
}
