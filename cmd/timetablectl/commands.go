package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-engine/internal/models"
	"github.com/noah-isme/timetable-engine/internal/service"
	"github.com/noah-isme/timetable-engine/internal/timetable"
)

var errHardConflicts = errors.New("schedule has high-severity conflicts")

type optimizeFlags struct {
	algorithm  string
	seed       int64
	iterations int
	budget     time.Duration
}

func (f *optimizeFlags) bind(cmd *cobra.Command, algorithmUsage string) {
	cmd.Flags().StringVarP(&f.algorithm, "algorithm", "a", "", algorithmUsage)
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "random seed for reproducible runs")
	cmd.Flags().IntVarP(&f.iterations, "iterations", "n", 0, "iteration budget (default from TIMETABLE_DEFAULT_ITERATIONS)")
	cmd.Flags().DurationVarP(&f.budget, "budget", "t", 0, "wall-clock budget (default from TIMETABLE_TIME_BUDGET)")
}

// options resolves the run configuration, clamping it to the configured ceilings.
func (a *app) options(cmd *cobra.Command, f *optimizeFlags) (timetable.OptimizeOptions, error) {
	tc := a.cfg.Timetable
	name := f.algorithm
	if name == "" {
		name = tc.DefaultAlgorithm
	}
	algorithm, err := timetable.ParseAlgorithm(name)
	if err != nil {
		return timetable.OptimizeOptions{}, err
	}
	opts := timetable.OptimizeOptions{
		Algorithm:  algorithm,
		Iterations: f.iterations,
		TimeBudget: f.budget,
	}
	if opts.Iterations <= 0 {
		opts.Iterations = tc.DefaultIterations
	}
	if tc.MaxIterations > 0 && opts.Iterations > tc.MaxIterations {
		opts.Iterations = tc.MaxIterations
	}
	if opts.TimeBudget <= 0 {
		opts.TimeBudget = tc.TimeBudget
	}
	if tc.MaxTimeBudget > 0 && opts.TimeBudget > tc.MaxTimeBudget {
		opts.TimeBudget = tc.MaxTimeBudget
	}
	if cmd.Flags().Changed("seed") {
		seed := f.seed
		opts.Seed = &seed
	}
	return opts, nil
}

func (a *app) generateCmd() *cobra.Command {
	var (
		scope    timetable.Scope
		out      string
		optimize optimizeFlags
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Build a schedule from the snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ds, engine, err := a.load()
			if err != nil {
				return err
			}
			generated, err := engine.Generate(cmd.Context(), scope, ds.Assignments)
			if err != nil {
				return err
			}
			a.logger.Info("schedule generated",
				zap.Int("sessions", len(generated.Sessions)),
				zap.Int("unassignable", len(generated.Unassignable)),
				zap.Int("conflicts", len(generated.Report.Conflicts)),
			)
			if generated.Cancelled {
				a.logger.Warn("generation interrupted, writing the partial schedule")
			}
			sessions := generated.Sessions
			report := generated.Report

			if optimize.algorithm != "" {
				opts, err := a.options(cmd, &optimize)
				if err != nil {
					return err
				}
				result, err := engine.Optimize(cmd.Context(), sessions, opts)
				if err != nil {
					return err
				}
				a.logRun(result)
				printRun(a.out, result)
				sessions, report = result.Sessions, result.Report
			}

			if err := a.write(out, sessions); err != nil {
				return err
			}
			printUnassignable(a.out, generated.Unassignable)
			printReport(a.out, len(sessions), report)
			return nil
		},
	}
	cmd.Flags().IntVar(&scope.Semester, "semester", 0, "only schedule units of this semester")
	cmd.Flags().StringVar(&scope.ProgramID, "program", "", "only schedule units of this program")
	cmd.Flags().StringVar(&scope.ClassID, "class", "", "only schedule groups of this class")
	cmd.Flags().StringVar(&scope.GroupID, "group", "", "only schedule this group")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default <dir>/sessions.csv)")
	optimize.bind(cmd, "optimize the generated schedule with this algorithm")
	return cmd
}

func (a *app) detectCmd() *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Report conflicts in sessions.csv",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ds, engine, err := a.load()
			if err != nil {
				return err
			}
			sessions, err := a.existingSessions(ds)
			if err != nil {
				return err
			}
			report := engine.Evaluate(sessions)
			printReport(a.out, len(sessions), report)
			if strict && report.HasHard() {
				return errHardConflicts
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when high-severity conflicts remain")
	return cmd
}

func (a *app) resolveCmd() *cobra.Command {
	var strategy, out string
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Repair conflicts in sessions.csv",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parsed, err := timetable.ParseStrategy(strategy)
			if err != nil {
				return err
			}
			ds, engine, err := a.load()
			if err != nil {
				return err
			}
			sessions, err := a.existingSessions(ds)
			if err != nil {
				return err
			}
			result, err := engine.Resolve(cmd.Context(), sessions, engine.Detect(sessions), parsed)
			if err != nil {
				return err
			}
			a.logger.Info("conflicts resolved",
				zap.String("strategy", string(parsed)),
				zap.Int("actions", len(result.Actions)),
				zap.Int("remaining", len(result.Remaining)),
			)
			if result.Cancelled {
				a.logger.Warn("resolution interrupted, writing the repairs made so far")
			}
			if err := a.write(out, result.Sessions); err != nil {
				return err
			}
			for _, action := range result.Actions {
				fmt.Fprintf(a.out, "- %s\n", action)
			}
			printReport(a.out, len(result.Sessions), engine.Evaluate(result.Sessions))
			return nil
		},
	}
	cmd.Flags().StringVarP(&strategy, "strategy", "s", string(timetable.StrategyAuto), "reschedule, split_groups or auto")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default <dir>/sessions.csv)")
	return cmd
}

func (a *app) optimizeCmd() *cobra.Command {
	var (
		out     string
		compare bool
		flags   optimizeFlags
	)
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Improve sessions.csv with backtracking, simulated annealing or a genetic algorithm",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := a.options(cmd, &flags)
			if err != nil {
				return err
			}
			ds, engine, err := a.load()
			if err != nil {
				return err
			}
			sessions, err := a.existingSessions(ds)
			if err != nil {
				return err
			}

			var best timetable.OptimizeResult
			if compare {
				results, err := engine.Compare(cmd.Context(), sessions, nil, opts)
				if err != nil {
					return err
				}
				for _, result := range results {
					a.logRun(result)
					printRun(a.out, result)
				}
				best, _ = timetable.Best(results)
				fmt.Fprintf(a.out, "best: %s\n", best.Metrics.Algorithm)
			} else {
				best, err = engine.Optimize(cmd.Context(), sessions, opts)
				if err != nil {
					return err
				}
				a.logRun(best)
				printRun(a.out, best)
			}

			if err := a.write(out, best.Sessions); err != nil {
				return err
			}
			printReport(a.out, len(best.Sessions), best.Report)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default <dir>/sessions.csv)")
	cmd.Flags().BoolVar(&compare, "compare", false, "run every algorithm and keep the best result")
	flags.bind(cmd, "backtracking, simulated_annealing or genetic (default from TIMETABLE_DEFAULT_ALGORITHM)")
	return cmd
}

func (a *app) tokenCmd() *cobra.Command {
	var (
		userID string
		role   string
		email  string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for the timetable API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parsed := models.UserRole(strings.ToUpper(strings.TrimSpace(role)))
			switch parsed {
			case models.RoleSuperAdmin, models.RoleAdmin, models.RoleLecturer, models.RoleStudent:
			default:
				return fmt.Errorf("unknown role %q", role)
			}
			auth := service.NewAuthService(a.logger, service.AuthConfig{
				AccessTokenSecret: a.cfg.JWT.Secret,
				Issuer:            a.cfg.JWT.Issuer,
			})
			token, expiresAt, err := auth.IssueToken(userID, parsed, email, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, token)
			a.logger.Debug("token expires", zap.Time("expires_at", expiresAt))
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user ID placed in the token")
	cmd.Flags().StringVar(&role, "role", string(models.RoleAdmin), "SUPERADMIN, ADMIN, LECTURER or STUDENT")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func (a *app) logRun(result timetable.OptimizeResult) {
	m := result.Metrics
	a.logger.Info("optimization finished",
		zap.String("algorithm", string(m.Algorithm)),
		zap.String("status", string(result.Status)),
		zap.Int("iterations", m.Iterations),
		zap.Int("initial_score", m.InitialScore),
		zap.Int("final_score", m.FinalScore),
		zap.Duration("elapsed", m.Elapsed),
	)
}
