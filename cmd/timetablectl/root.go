package main

import (
	"fmt"
	"io"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-engine/internal/csvio"
	"github.com/noah-isme/timetable-engine/internal/timetable"
	"github.com/noah-isme/timetable-engine/pkg/config"
	"github.com/noah-isme/timetable-engine/pkg/logger"
)

// app carries state shared by every subcommand.
type app struct {
	out    io.Writer
	cfg    *config.Config
	logger *zap.Logger

	dir      string
	comma    string
	logLevel string
}

func newRootCmd(out io.Writer, log *zap.Logger) *cobra.Command {
	a := &app{out: out, logger: log}

	root := &cobra.Command{
		Use:   "timetablectl",
		Short: "Generate, check and optimize university timetables from CSV snapshots",
		Long: "timetablectl runs the scheduling engine against a directory of CSV files\n" +
			"(units, lecturers, groups, venues, slots, assignments and optionally sessions)\n" +
			"and writes the resulting schedule back as sessions.csv.",
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVarP(&a.dir, "dir", "d", ".", "snapshot directory")
	root.PersistentFlags().StringVar(&a.comma, "comma", ",", "CSV field delimiter")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")

	root.AddCommand(
		a.generateCmd(),
		a.detectCmd(),
		a.resolveCmd(),
		a.optimizeCmd(),
		a.tokenCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	a.cfg = cfg
	if a.logger == nil {
		cfg.Log.Format = "console"
		l, err := logger.New(cfg)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		a.logger = l
	}
	return nil
}

func (a *app) csvOptions() ([]csvio.Option, error) {
	if utf8.RuneCountInString(a.comma) != 1 {
		return nil, fmt.Errorf("--comma must be a single character, got %q", a.comma)
	}
	r, _ := utf8.DecodeRuneInString(a.comma)
	return []csvio.Option{csvio.WithComma(r)}, nil
}

// load reads the snapshot directory and builds an engine over it.
func (a *app) load() (*csvio.Dataset, *timetable.Engine, error) {
	opts, err := a.csvOptions()
	if err != nil {
		return nil, nil, err
	}
	start := time.Now()
	ds, err := csvio.Load(a.dir, opts...)
	if err != nil {
		return nil, nil, err
	}
	engine, err := timetable.New(ds.Snapshot)
	if err != nil {
		return nil, nil, err
	}
	a.logger.Debug("snapshot loaded",
		zap.String("dir", a.dir),
		zap.Int("units", len(ds.Snapshot.Units)),
		zap.Int("groups", len(ds.Snapshot.Groups)),
		zap.Int("venues", len(ds.Snapshot.Venues)),
		zap.Int("slots", len(ds.Snapshot.Slots)),
		zap.Int("sessions", len(ds.Sessions)),
		zap.Duration("took", time.Since(start)),
	)
	return ds, engine, nil
}

func (a *app) existingSessions(ds *csvio.Dataset) ([]timetable.Session, error) {
	if ds.Sessions == nil {
		return nil, fmt.Errorf("%s not found in %s; run generate first", csvio.SessionsFile, a.dir)
	}
	return ds.Sessions, nil
}

func (a *app) write(path string, sessions []timetable.Session) error {
	if path == "" {
		path = filepath.Join(a.dir, csvio.SessionsFile)
	}
	opts, err := a.csvOptions()
	if err != nil {
		return err
	}
	if err := csvio.WriteSessionsFile(path, sessions, opts...); err != nil {
		return err
	}
	a.logger.Info("schedule written", zap.String("path", path), zap.Int("sessions", len(sessions)))
	return nil
}
