package timetable

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Algorithm selects the optimizer search.
type Algorithm string

const (
	AlgorithmBacktracking       Algorithm = "backtracking"
	AlgorithmSimulatedAnnealing Algorithm = "simulated_annealing"
	AlgorithmGenetic            Algorithm = "genetic"
)

// Algorithms lists every supported optimizer.
func Algorithms() []Algorithm {
	return []Algorithm{AlgorithmBacktracking, AlgorithmSimulatedAnnealing, AlgorithmGenetic}
}

// ParseAlgorithm maps a user supplied name to an Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch a := Algorithm(strings.ToLower(strings.TrimSpace(name))); a {
	case AlgorithmBacktracking, AlgorithmSimulatedAnnealing, AlgorithmGenetic:
		return a, nil
	case "annealing", "sa":
		return AlgorithmSimulatedAnnealing, nil
	case "ga", "genetic_algorithm":
		return AlgorithmGenetic, nil
	case "csp":
		return AlgorithmBacktracking, nil
	default:
		return "", invalidf("unknown optimization algorithm %q", name)
	}
}

// Status is the outcome of an optimizer run.
type Status string

const (
	// StatusSolved means the search reached a schedule without any conflict.
	StatusSolved Status = "solved"
	// StatusCompleted means the budget ran out; the best schedule found is returned.
	StatusCompleted Status = "completed"
	// StatusSearchExhausted means backtracking proved no assignment exists within its budget.
	StatusSearchExhausted Status = "search_exhausted"
	// StatusCancelled means the caller aborted; the best schedule so far is returned.
	StatusCancelled Status = "cancelled"
)

// AnnealingParams tune simulated annealing. Zero values take the defaults.
type AnnealingParams struct {
	InitialTemperature float64 `json:"initialTemperature,omitempty"`
	CoolingRate        float64 `json:"coolingRate,omitempty"`
	MinTemperature     float64 `json:"minTemperature,omitempty"`
	SwapProbability    float64 `json:"swapProbability,omitempty"`
}

// GeneticParams tune the genetic algorithm. Zero values take the defaults.
type GeneticParams struct {
	PopulationSize int     `json:"populationSize,omitempty"`
	MutationRate   float64 `json:"mutationRate,omitempty"`
	Elitism        int     `json:"elitism,omitempty"`
	Workers        int     `json:"workers,omitempty"`
}

// OptimizeOptions configures one optimizer run.
type OptimizeOptions struct {
	Algorithm Algorithm
	// Seed fixes the random source; nil draws a fresh seed that is reported back in Metrics.
	Seed *int64
	// Iterations is the iteration, generation or node budget depending on the algorithm.
	Iterations int
	// TimeBudget stops the run early when positive. Runs cut by time are not reproducible.
	TimeBudget time.Duration
	Weights    *Weights
	Annealing  AnnealingParams
	Genetic    GeneticParams
}

func (o OptimizeOptions) normalize() (OptimizeOptions, error) {
	switch o.Algorithm {
	case AlgorithmBacktracking, AlgorithmSimulatedAnnealing, AlgorithmGenetic:
	default:
		return o, invalidf("unknown optimization algorithm %q", o.Algorithm)
	}
	if o.Iterations <= 0 {
		return o, invalidf("iteration budget must be positive, got %d", o.Iterations)
	}
	if o.TimeBudget < 0 {
		return o, invalidf("time budget must not be negative")
	}
	if o.Weights != nil && !o.Weights.valid() {
		return o, invalidf("weights must satisfy high >= medium >= low > 0")
	}

	a := &o.Annealing
	if a.InitialTemperature == 0 {
		a.InitialTemperature = 150
	}
	if a.CoolingRate == 0 {
		a.CoolingRate = 0.995
	}
	if a.MinTemperature == 0 {
		a.MinTemperature = 1e-3
	}
	if a.SwapProbability == 0 {
		a.SwapProbability = 0.3
	}
	if a.InitialTemperature < 0 || a.MinTemperature < 0 || a.CoolingRate <= 0 || a.CoolingRate >= 1 ||
		a.SwapProbability < 0 || a.SwapProbability > 1 {
		return o, invalidf("annealing parameters out of range")
	}

	g := &o.Genetic
	if g.PopulationSize == 0 {
		g.PopulationSize = 30
	}
	if g.MutationRate == 0 {
		g.MutationRate = 0.05
	}
	if g.Elitism == 0 {
		g.Elitism = 1
	}
	if g.Workers == 0 {
		g.Workers = 4
	}
	if g.PopulationSize < 2 || g.MutationRate < 0 || g.MutationRate > 1 || g.Elitism < 0 ||
		g.Elitism >= g.PopulationSize || g.Workers < 0 {
		return o, invalidf("genetic parameters out of range")
	}
	return o, nil
}

// Metrics describes an optimizer run.
type Metrics struct {
	Algorithm        Algorithm     `json:"algorithm"`
	Seed             *int64        `json:"seed,omitempty"`
	InitialConflicts int           `json:"initialConflicts"`
	FinalConflicts   int           `json:"finalConflicts"`
	InitialScore     int           `json:"initialScore"`
	FinalScore       int           `json:"finalScore"`
	Iterations       int           `json:"iterations"`
	Elapsed          time.Duration `json:"-"`
	ElapsedMillis    int64         `json:"elapsedMs"`
}

// OptimizeResult is the improved schedule with the run metrics.
type OptimizeResult struct {
	Sessions []Session `json:"sessions"`
	Status   Status    `json:"status"`
	Metrics  Metrics   `json:"metrics"`
	Report   Report    `json:"report"`
	Note     string    `json:"note,omitempty"`
}

// outcome is what an individual search hands back to Optimize.
type outcome struct {
	sessions   []Session
	status     Status
	iterations int
	note       string
}

// budget answers whether a search has to stop before its iteration budget.
type budget struct {
	ctx      context.Context
	deadline time.Time
}

func (b budget) stop() (Status, string, bool) {
	if b.ctx.Err() != nil {
		return StatusCancelled, "cancelled before the budget was spent", true
	}
	if !b.deadline.IsZero() && time.Now().After(b.deadline) {
		return StatusCompleted, "time budget reached", true
	}
	return "", "", false
}

// Optimize searches for a schedule with a lower weighted conflict score. The input is never
// modified. Search failure and cancellation are reported through Status, not as errors.
func (e *Engine) Optimize(ctx context.Context, sessions []Session, opts OptimizeOptions) (OptimizeResult, error) {
	opts, err := opts.normalize()
	if err != nil {
		return OptimizeResult{}, err
	}
	w := e.weights
	if opts.Weights != nil {
		w = *opts.Weights
	}

	started := time.Now()
	b := budget{ctx: ctx}
	if opts.TimeBudget > 0 {
		b.deadline = started.Add(opts.TimeBudget)
	}
	working := CloneSessions(sessions)
	if working == nil {
		working = make([]Session, 0)
	}
	initial := e.evaluate(working, w)

	var seed *int64
	var rng *rand.Rand
	if opts.Algorithm != AlgorithmBacktracking {
		value := time.Now().UnixNano()
		if opts.Seed != nil {
			value = *opts.Seed
		}
		seed = &value
		rng = rand.New(rand.NewSource(value))
	}

	var out outcome
	switch opts.Algorithm {
	case AlgorithmBacktracking:
		out = e.backtrack(b, working, opts.Iterations)
	case AlgorithmSimulatedAnnealing:
		out = e.anneal(b, working, w, opts.Iterations, opts.Annealing, rng)
	case AlgorithmGenetic:
		out = e.evolve(b, working, w, opts.Iterations, opts.Genetic, rng)
	}

	final := e.evaluate(out.sessions, w)
	if out.status == StatusCompleted && len(final.Conflicts) == 0 {
		out.status = StatusSolved
	}
	elapsed := time.Since(started)
	return OptimizeResult{
		Sessions: out.sessions,
		Status:   out.status,
		Report:   final,
		Note:     out.note,
		Metrics: Metrics{
			Algorithm:        opts.Algorithm,
			Seed:             seed,
			InitialConflicts: len(initial.Conflicts),
			FinalConflicts:   len(final.Conflicts),
			InitialScore:     initial.WeightedScore,
			FinalScore:       final.WeightedScore,
			Iterations:       out.iterations,
			Elapsed:          elapsed,
			ElapsedMillis:    elapsed.Milliseconds(),
		},
	}, nil
}

// GenerateFromScratch generates a fresh schedule and immediately optimizes it.
func (e *Engine) GenerateFromScratch(ctx context.Context, scope Scope, assignments LecturerAssignments, opts OptimizeOptions) (GenerateResult, OptimizeResult, error) {
	if _, err := opts.normalize(); err != nil {
		return GenerateResult{}, OptimizeResult{}, err
	}
	generated, err := e.Generate(ctx, scope, assignments)
	if err != nil {
		return GenerateResult{}, OptimizeResult{}, err
	}
	optimized, err := e.Optimize(ctx, generated.Sessions, opts)
	if err != nil {
		return GenerateResult{}, OptimizeResult{}, err
	}
	return generated, optimized, nil
}

// Compare runs several algorithms concurrently on independent copies of the schedule.
// Results come back in the order of algorithms.
func (e *Engine) Compare(ctx context.Context, sessions []Session, algorithms []Algorithm, opts OptimizeOptions) ([]OptimizeResult, error) {
	if len(algorithms) == 0 {
		algorithms = Algorithms()
	}
	results := make([]OptimizeResult, len(algorithms))
	g, gctx := errgroup.WithContext(ctx)
	for i, algorithm := range algorithms {
		i, algorithm := i, algorithm
		g.Go(func() error {
			run := opts
			run.Algorithm = algorithm
			result, err := e.Optimize(gctx, sessions, run)
			if err != nil {
				return fmt.Errorf("%s: %w", algorithm, err)
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Best picks the result with the lowest final score. Ties keep the earliest result.
func Best(results []OptimizeResult) (OptimizeResult, bool) {
	if len(results) == 0 {
		return OptimizeResult{}, false
	}
	best := results[0]
	for _, r := range results[1:] {
		if r.Status == StatusSearchExhausted || r.Status == StatusCancelled {
			continue
		}
		if best.Status == StatusSearchExhausted || best.Status == StatusCancelled || r.Metrics.FinalScore < best.Metrics.FinalScore {
			best = r
		}
	}
	return best, true
}

// domains lists the statically suitable placements of every session, in generator order.
func (e *Engine) domains(sessions []Session) [][]placement {
	out := make([][]placement, len(sessions))
	for i, s := range sessions {
		out[i] = e.candidates(s)
	}
	return out
}
