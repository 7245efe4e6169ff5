package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-engine/internal/dto"
	"github.com/noah-isme/timetable-engine/internal/models"
	"github.com/noah-isme/timetable-engine/internal/timetable"
	"github.com/noah-isme/timetable-engine/pkg/cache"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
	"github.com/noah-isme/timetable-engine/pkg/export"
	"github.com/noah-isme/timetable-engine/pkg/jobs"
)

const optimizeJobType = "timetable.optimize"

// optimizeJob is the queued payload of an asynchronous optimization.
type optimizeJob struct {
	ProposalID string
	Revision   int
	Options    timetable.OptimizeOptions
	Compare    bool
}

type snapshotReader interface {
	Load(ctx context.Context, scope timetable.Scope) (timetable.Snapshot, error)
	LecturerAssignments(ctx context.Context, scope timetable.Scope) (timetable.LecturerAssignments, error)
}

type timetableRepository interface {
	CreateVersioned(ctx context.Context, exec sqlx.ExtContext, timetable *models.Timetable) error
	List(ctx context.Context, filter models.TimetableFilter) ([]models.Timetable, int, error)
	FindByID(ctx context.Context, id string) (*models.Timetable, error)
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.TimetableStatus, meta types.JSONText) error
}

type timetableSessionRepository interface {
	InsertBatch(ctx context.Context, exec sqlx.ExtContext, sessions []models.TimetableSession) error
	ListByTimetable(ctx context.Context, timetableID string) ([]models.TimetableSession, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type engineMetrics interface {
	ObserveEngineRun(operation, algorithm, status string, duration time.Duration, conflicts int)
	ObserveDBQuery(label string, duration time.Duration)
}

type jobQueue interface {
	Enqueue(job jobs.Job) error
	Status(id string) (jobs.Record, bool)
}

// TimetableConfig governs engine budgets and proposal lifetime.
type TimetableConfig struct {
	ProposalTTL       time.Duration
	CacheTTL          time.Duration
	DefaultAlgorithm  string
	DefaultIterations int
	MaxIterations     int
	TimeBudget        time.Duration
	MaxTimeBudget     time.Duration
}

// TimetableService builds timetable proposals, repairs and optimizes them, and persists
// the accepted ones.
type TimetableService struct {
	catalog   snapshotReader
	tables    timetableRepository
	sessions  timetableSessionRepository
	tx        txProvider
	cache     Cache
	metrics   engineMetrics
	validator *validator.Validate
	logger    *zap.Logger
	store     *proposalStore
	cfg       TimetableConfig

	queueMu sync.RWMutex
	queue   jobQueue
}

// NewTimetableService wires timetable dependencies.
func NewTimetableService(
	catalog snapshotReader,
	tables timetableRepository,
	sessions timetableSessionRepository,
	tx txProvider,
	cacheSvc Cache,
	metrics engineMetrics,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TimetableConfig,
) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProposalTTL <= 0 {
		cfg.ProposalTTL = 30 * time.Minute
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	if cfg.DefaultAlgorithm == "" {
		cfg.DefaultAlgorithm = string(timetable.AlgorithmSimulatedAnnealing)
	}
	if cfg.DefaultIterations <= 0 {
		cfg.DefaultIterations = 2000
	}
	if cfg.MaxIterations < cfg.DefaultIterations {
		cfg.MaxIterations = cfg.DefaultIterations
	}
	if cfg.TimeBudget <= 0 {
		cfg.TimeBudget = 10 * time.Second
	}
	if cfg.MaxTimeBudget < cfg.TimeBudget {
		cfg.MaxTimeBudget = cfg.TimeBudget
	}
	return &TimetableService{
		catalog:   catalog,
		tables:    tables,
		sessions:  sessions,
		tx:        tx,
		cache:     cacheSvc,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		store:     newProposalStore(cfg.ProposalTTL),
		cfg:       cfg,
	}
}

// AttachQueue enables asynchronous optimization. The queue handler must be HandleOptimizeJob.
func (s *TimetableService) AttachQueue(queue jobQueue) {
	s.queueMu.Lock()
	s.queue = queue
	s.queueMu.Unlock()
}

// Generate builds a schedule from scratch, optionally optimizes it, and stores it as a proposal.
func (s *TimetableService) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.ProposalResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable generation payload")
	}
	scope := req.Scope.Scope()

	var opts *timetable.OptimizeOptions
	if req.Optimize != nil {
		built, err := s.optimizeOptions(*req.Optimize)
		if err != nil {
			return nil, err
		}
		opts = &built
	}

	snapshot, assignments, err := s.loadCatalog(ctx, req.Snapshot, scope)
	if err != nil {
		return nil, err
	}
	if req.Assignments != nil {
		assignments = timetable.LecturerAssignments(req.Assignments)
	}
	engine, err := s.engine(snapshot, nil)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	generated, err := engine.Generate(ctx, scope, assignments)
	if err != nil {
		s.observe("generate", "", "error", start, 0)
		return nil, engineError(err, "failed to generate timetable")
	}
	if generated.Cancelled {
		s.observe("generate", "", "cancelled", start, len(generated.Report.Conflicts))
		return nil, engineError(ctx.Err(), "failed to generate timetable")
	}
	s.observe("generate", "", "completed", start, len(generated.Report.Conflicts))

	p := &proposal{
		ID:           uuid.NewString(),
		Scope:        scope,
		Snapshot:     snapshot,
		Sessions:     generated.Sessions,
		Unassignable: generated.Unassignable,
		Report:       generated.Report,
	}
	resp := &dto.ProposalResponse{}

	if opts != nil {
		summary, err := s.runOptimize(ctx, engine, p, *opts)
		if err != nil {
			return nil, err
		}
		resp.Optimization = summary
	}

	s.store.Save(p)
	s.logger.Info("timetable generated",
		zap.String("proposal_id", p.ID),
		zap.Int("sessions", len(p.Sessions)),
		zap.Int("unassignable", len(p.Unassignable)),
		zap.Int("conflicts", len(p.Report.Conflicts)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return s.proposalResponse(p, resp), nil
}

// Detect reports the conflicts of a proposal or of inline sessions.
func (s *TimetableService) Detect(ctx context.Context, req dto.DetectConflictsRequest) (*dto.ConflictReportResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid conflict detection payload")
	}
	p, engine, err := s.source(ctx, req.ScheduleSource)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	report := engine.Evaluate(p.Sessions)
	s.observe("detect", "", "completed", start, len(report.Conflicts))

	resp := &dto.ConflictReportResponse{Report: report}
	if req.ProposalID != "" {
		resp.ProposalID = req.ProposalID
	}
	return resp, nil
}

// Resolve repairs conflicts and stores the repaired schedule. Inline schedules become new proposals.
func (s *TimetableService) Resolve(ctx context.Context, req dto.ResolveConflictsRequest) (*dto.ProposalResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid conflict resolution payload")
	}
	strategy, err := timetable.ParseStrategy(req.Strategy)
	if err != nil {
		return nil, engineError(err, "invalid resolution strategy")
	}
	p, engine, err := s.source(ctx, req.ScheduleSource)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := engine.Resolve(ctx, p.Sessions, req.Conflicts, strategy)
	if err != nil {
		s.observe("resolve", string(strategy), "error", start, len(p.Report.Conflicts))
		return nil, engineError(err, "failed to resolve conflicts")
	}
	if result.Cancelled {
		s.observe("resolve", string(strategy), "cancelled", start, len(result.Remaining))
		return nil, engineError(ctx.Err(), "failed to resolve conflicts")
	}
	p.Sessions = result.Sessions
	p.Report = engine.Evaluate(result.Sessions)
	p.Actions = append(p.Actions, result.Actions...)
	s.observe("resolve", string(strategy), "completed", start, len(p.Report.Conflicts))

	s.store.Save(p)
	s.logger.Info("timetable conflicts resolved",
		zap.String("proposal_id", p.ID),
		zap.String("strategy", string(strategy)),
		zap.Int("actions", len(result.Actions)),
		zap.Int("remaining", len(result.Remaining)),
	)
	return s.proposalResponse(p, &dto.ProposalResponse{Actions: result.Actions}), nil
}

// Optimize improves a schedule with the configured algorithm, or compares all algorithms and
// keeps the best result.
func (s *TimetableService) Optimize(ctx context.Context, req dto.OptimizeTimetableRequest) (*dto.ProposalResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid optimization payload")
	}
	opts, err := s.optimizeOptions(req.Options)
	if err != nil {
		return nil, err
	}
	p, engine, err := s.source(ctx, req.ScheduleSource)
	if err != nil {
		return nil, err
	}

	resp := &dto.ProposalResponse{}
	if req.Compare {
		summaries, err := s.runCompare(ctx, engine, p, opts)
		if err != nil {
			return nil, err
		}
		resp.Comparison = summaries
	} else {
		summary, err := s.runOptimize(ctx, engine, p, opts)
		if err != nil {
			return nil, err
		}
		resp.Optimization = summary
	}

	s.store.Save(p)
	return s.proposalResponse(p, resp), nil
}

// EnqueueOptimize hands an optimization to the background worker pool.
func (s *TimetableService) EnqueueOptimize(ctx context.Context, req dto.OptimizeTimetableRequest) (*dto.OptimizeJobResponse, error) {
	queue := s.jobQueue()
	if queue == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "asynchronous optimization is disabled")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid optimization payload")
	}
	opts, err := s.optimizeOptions(req.Options)
	if err != nil {
		return nil, err
	}
	p, _, err := s.source(ctx, req.ScheduleSource)
	if err != nil {
		return nil, err
	}
	if req.ProposalID == "" {
		s.store.Save(p)
	}

	job := jobs.Job{
		ID:   uuid.NewString(),
		Type: optimizeJobType,
		Payload: optimizeJob{
			ProposalID: p.ID,
			Revision:   p.Revision,
			Options:    opts,
			Compare:    req.Compare,
		},
	}
	if err := queue.Enqueue(job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue optimization")
	}
	s.logger.Info("timetable optimization queued", zap.String("job_id", job.ID), zap.String("proposal_id", p.ID))
	return &dto.OptimizeJobResponse{JobID: job.ID, ProposalID: p.ID, State: jobs.StateQueued}, nil
}

// Job returns the status of an asynchronous optimization.
func (s *TimetableService) Job(ctx context.Context, id string) (*jobs.Record, error) {
	queue := s.jobQueue()
	if queue == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "asynchronous optimization is disabled")
	}
	record, ok := queue.Status(id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "optimization job not found or expired")
	}
	return &record, nil
}

// HandleOptimizeJob runs a queued optimization. The result is applied to the proposal only
// when nobody changed it while the job was waiting or running.
func (s *TimetableService) HandleOptimizeJob(ctx context.Context, job jobs.Job) (interface{}, error) {
	payload, ok := job.Payload.(optimizeJob)
	if !ok {
		return nil, jobs.Permanent(fmt.Errorf("unexpected payload %T for job %s", job.Payload, job.ID))
	}
	p, ok := s.store.Get(payload.ProposalID)
	if !ok {
		return nil, jobs.Permanent(appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired"))
	}
	engine, err := s.engine(p.Snapshot, nil)
	if err != nil {
		return nil, jobs.Permanent(err)
	}

	resp := &dto.ProposalResponse{}
	if payload.Compare {
		summaries, err := s.runCompare(ctx, engine, p, payload.Options)
		if err != nil {
			return nil, err
		}
		resp.Comparison = summaries
	} else {
		summary, err := s.runOptimize(ctx, engine, p, payload.Options)
		if err != nil {
			return nil, err
		}
		resp.Optimization = summary
	}

	if !s.store.SaveIfRevision(p, payload.Revision) {
		s.logger.Warn("proposal changed during optimization; result not applied",
			zap.String("job_id", job.ID), zap.String("proposal_id", p.ID))
		resp.Actions = []string{"proposal changed while optimizing; result not applied"}
	}
	return s.proposalResponse(p, resp), nil
}

// Save persists a proposal as a new timetable version. Proposals with hard conflicts are refused.
func (s *TimetableService) Save(ctx context.Context, req dto.SaveTimetableRequest) (*dto.SaveTimetableResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid save timetable payload")
	}
	p, ok := s.store.Get(req.ProposalID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	if p.Report.HasHard() {
		return nil, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrHardConflicts, fmt.Sprintf("proposal has %d high-severity conflicts", p.Report.BySeverity[timetable.SeverityHigh])),
			p.Report.BySeverity,
		)
	}
	if s.tx == nil || s.tables == nil || s.sessions == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "timetable persistence unavailable")
	}

	meta, err := json.Marshal(map[string]any{
		"actions":      p.Actions,
		"unassignable": p.Unassignable,
		"byType":       p.Report.ByType,
		"bySeverity":   p.Report.BySeverity,
		"note":         req.Note,
		"proposalId":   p.ID,
		"generatedAt":  p.CreatedAt,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode timetable metadata")
	}

	status := models.TimetableStatusDraft
	if req.Publish {
		status = models.TimetableStatusPublished
	}
	record := &models.Timetable{
		ScopeKey:      scopeKey(p.Scope),
		Semester:      p.Scope.Semester,
		ProgramID:     optional(p.Scope.ProgramID),
		ClassID:       optional(p.Scope.ClassID),
		Status:        status,
		Algorithm:     optional(p.Algorithm),
		WeightedScore: p.Report.WeightedScore,
		Satisfaction:  p.Report.Satisfaction,
		SessionCount:  len(p.Sessions),
		Meta:          types.JSONText(meta),
		CreatedBy:     optional(req.CreatedBy),
	}

	start := time.Now()
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.tables.CreateVersioned(ctx, tx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create timetable")
	}
	if err = s.sessions.InsertBatch(ctx, tx, sessionRows(record.ID, p.Sessions)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist timetable sessions")
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit timetable transaction")
	}
	s.observeDB("timetables.save", start)

	s.store.Delete(p.ID)
	s.logger.Info("timetable saved",
		zap.String("timetable_id", record.ID),
		zap.Int("version", record.Version),
		zap.String("scope", record.ScopeKey),
		zap.Int("sessions", record.SessionCount),
	)
	return &dto.SaveTimetableResponse{
		TimetableID: record.ID,
		Version:     record.Version,
		Status:      record.Status,
		Sessions:    record.SessionCount,
	}, nil
}

// List returns stored timetables with pagination metadata.
func (s *TimetableService) List(ctx context.Context, query dto.TimetableQuery) ([]models.Timetable, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable query")
	}
	filter := models.TimetableFilter{
		Semester:  query.Semester,
		ProgramID: query.ProgramID,
		ClassID:   query.ClassID,
		Status:    models.TimetableStatus(query.Status),
		Page:      query.Page,
		PageSize:  query.PageSize,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	start := time.Now()
	list, total, err := s.tables.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetables")
	}
	s.observeDB("timetables.list", start)
	if list == nil {
		list = []models.Timetable{}
	}
	return list, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns a stored timetable with its sessions.
func (s *TimetableService) Get(ctx context.Context, id string) (*dto.TimetableDetailResponse, error) {
	record, err := s.findTimetable(ctx, id)
	if err != nil {
		return nil, err
	}
	rows, err := s.sessions.ListByTimetable(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetable sessions")
	}
	sessions, err := sessionsFromRows(rows)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored timetable session is malformed")
	}
	return &dto.TimetableDetailResponse{Timetable: *record, Sessions: sessions}, nil
}

// Delete removes a draft timetable version.
func (s *TimetableService) Delete(ctx context.Context, id string) error {
	record, err := s.findTimetable(ctx, id)
	if err != nil {
		return err
	}
	if record.Status != models.TimetableStatusDraft {
		return appErrors.Clone(appErrors.ErrFinalized, "only draft timetables can be deleted")
	}
	if err := s.tables.Delete(ctx, nil, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete timetable")
	}
	s.logger.Info("timetable deleted", zap.String("timetable_id", id))
	return nil
}

// UpdateStatus publishes or archives a stored timetable. Drafts may be published or archived;
// published versions may only be archived.
func (s *TimetableService) UpdateStatus(ctx context.Context, id string, req dto.UpdateTimetableStatusRequest) (*models.Timetable, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable status payload")
	}
	record, err := s.findTimetable(ctx, id)
	if err != nil {
		return nil, err
	}
	target := models.TimetableStatus(req.Status)
	allowed := record.Status == models.TimetableStatusDraft ||
		(record.Status == models.TimetableStatusPublished && target == models.TimetableStatusArchived)
	if !allowed {
		return nil, appErrors.Clone(appErrors.ErrFinalized, fmt.Sprintf("cannot move timetable from %s to %s", record.Status, target))
	}

	start := time.Now()
	if err := s.tables.UpdateStatus(ctx, nil, id, target, nil); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update timetable status")
	}
	s.observeDB("timetables.status", start)
	s.logger.Info("timetable status changed",
		zap.String("timetable_id", id),
		zap.String("from", string(record.Status)),
		zap.String("to", string(target)),
	)
	record.Status = target
	return record, nil
}

// Export renders a stored timetable as CSV or PDF. Catalog names are used when the catalog
// can be loaded; identifiers are used otherwise.
func (s *TimetableService) Export(ctx context.Context, id string, query dto.ExportQuery) (*dto.ExportFile, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export query")
	}
	renderer, err := export.ForFormat(query.Format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	names := catalogNames{}
	scope := timetable.Scope{Semester: detail.Timetable.Semester}
	if detail.Timetable.ProgramID != nil {
		scope.ProgramID = *detail.Timetable.ProgramID
	}
	if snapshot, _, err := s.loadCatalog(ctx, nil, scope); err == nil {
		names = newCatalogNames(snapshot)
	} else {
		s.logger.Warn("export falls back to identifiers", zap.String("timetable_id", id), zap.Error(err))
	}

	doc := export.Document{
		Title: fmt.Sprintf("Timetable v%d", detail.Timetable.Version),
		Details: []string{
			fmt.Sprintf("Scope: %s", detail.Timetable.ScopeKey),
			fmt.Sprintf("Status: %s", detail.Timetable.Status),
			fmt.Sprintf("Weighted score: %d  Satisfaction: %.3f", detail.Timetable.WeightedScore, detail.Timetable.Satisfaction),
		},
	}
	for _, session := range detail.Sessions {
		doc.Rows = append(doc.Rows, names.row(session))
	}

	body, err := renderer.Render(doc)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render timetable export")
	}
	return &dto.ExportFile{
		Filename:    fmt.Sprintf("timetable-%s-v%d.%s", filenameSafe.Replace(detail.Timetable.ScopeKey), detail.Timetable.Version, renderer.Extension()),
		ContentType: renderer.ContentType(),
		Body:        body,
	}, nil
}

func (s *TimetableService) findTimetable(ctx context.Context, id string) (*models.Timetable, error) {
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "timetable id is required")
	}
	record, err := s.tables.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	return record, nil
}

func (s *TimetableService) runOptimize(ctx context.Context, engine *timetable.Engine, p *proposal, opts timetable.OptimizeOptions) (*dto.OptimizationSummary, error) {
	start := time.Now()
	result, err := engine.Optimize(ctx, p.Sessions, opts)
	if err != nil {
		s.observe("optimize", string(opts.Algorithm), "error", start, len(p.Report.Conflicts))
		return nil, engineError(err, "failed to optimize timetable")
	}
	s.observe("optimize", string(opts.Algorithm), string(result.Status), start, result.Metrics.FinalConflicts)
	s.logRun(p.ID, result)

	p.Sessions = result.Sessions
	p.Report = result.Report
	p.Algorithm = string(result.Metrics.Algorithm)
	summary := summarize(result)
	return &summary, nil
}

func (s *TimetableService) runCompare(ctx context.Context, engine *timetable.Engine, p *proposal, opts timetable.OptimizeOptions) ([]dto.OptimizationSummary, error) {
	start := time.Now()
	results, err := engine.Compare(ctx, p.Sessions, nil, opts)
	if err != nil {
		return nil, engineError(err, "failed to compare optimizers")
	}
	summaries := make([]dto.OptimizationSummary, 0, len(results))
	for _, result := range results {
		s.observe("optimize", string(result.Metrics.Algorithm), string(result.Status), start, result.Metrics.FinalConflicts)
		s.logRun(p.ID, result)
		summaries = append(summaries, summarize(result))
	}
	if best, ok := timetable.Best(results); ok {
		p.Sessions = best.Sessions
		p.Report = best.Report
		p.Algorithm = string(best.Metrics.Algorithm)
	}
	return summaries, nil
}

func (s *TimetableService) logRun(proposalID string, result timetable.OptimizeResult) {
	fields := []zap.Field{
		zap.String("proposal_id", proposalID),
		zap.String("algorithm", string(result.Metrics.Algorithm)),
		zap.String("status", string(result.Status)),
		zap.Int("conflicts_before", result.Metrics.InitialConflicts),
		zap.Int("conflicts_after", result.Metrics.FinalConflicts),
		zap.Int("iterations", result.Metrics.Iterations),
		zap.Duration("elapsed", result.Metrics.Elapsed),
	}
	if result.Metrics.Seed != nil {
		fields = append(fields, zap.Int64("seed", *result.Metrics.Seed))
	}
	s.logger.Info("timetable optimized", fields...)
}

// source resolves the schedule a request works on into a working proposal and an engine.
// The returned proposal is a copy; callers store it back to publish changes.
func (s *TimetableService) source(ctx context.Context, src dto.ScheduleSource) (*proposal, *timetable.Engine, error) {
	if src.ProposalID != "" {
		p, ok := s.store.Get(src.ProposalID)
		if !ok {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
		}
		engine, err := s.engine(p.Snapshot, nil)
		if err != nil {
			return nil, nil, err
		}
		return p, engine, nil
	}

	scope := src.Scope.Scope()
	snapshot, _, err := s.loadCatalog(ctx, src.Snapshot, scope)
	if err != nil {
		return nil, nil, err
	}
	engine, err := s.engine(snapshot, nil)
	if err != nil {
		return nil, nil, err
	}
	sessions := timetable.CloneSessions(src.Sessions)
	return &proposal{
		ID:       uuid.NewString(),
		Scope:    scope,
		Snapshot: snapshot,
		Sessions: sessions,
		Report:   engine.Evaluate(sessions),
	}, engine, nil
}

type cachedCatalog struct {
	Snapshot    timetable.Snapshot            `json:"snapshot"`
	Assignments timetable.LecturerAssignments `json:"assignments"`
}

func (s *TimetableService) loadCatalog(ctx context.Context, inline *timetable.Snapshot, scope timetable.Scope) (timetable.Snapshot, timetable.LecturerAssignments, error) {
	if inline != nil {
		return *inline, nil, nil
	}
	if s.catalog == nil {
		return timetable.Snapshot{}, nil, appErrors.Clone(appErrors.ErrValidation, "snapshot is required when no catalog database is configured")
	}

	key := cache.Key("catalog", scopeKey(scope))
	catalog, hit, err := Remember(ctx, s.cache, key, s.cfg.CacheTTL, func(ctx context.Context) (cachedCatalog, error) {
		start := time.Now()
		snapshot, err := s.catalog.Load(ctx, scope)
		if err != nil {
			return cachedCatalog{}, err
		}
		assignments, err := s.catalog.LecturerAssignments(ctx, scope)
		if err != nil {
			return cachedCatalog{}, err
		}
		s.observeDB("catalog.load", start)
		return cachedCatalog{Snapshot: snapshot, Assignments: assignments}, nil
	})
	if err != nil {
		return timetable.Snapshot{}, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scheduling catalog")
	}
	s.logger.Debug("scheduling catalog loaded", zap.String("key", key), zap.Bool("cache_hit", hit))
	return catalog.Snapshot, catalog.Assignments, nil
}

func (s *TimetableService) engine(snapshot timetable.Snapshot, weights *timetable.Weights) (*timetable.Engine, error) {
	var opts []timetable.Option
	if weights != nil {
		opts = append(opts, timetable.WithWeights(*weights))
	}
	engine, err := timetable.New(snapshot, opts...)
	if err != nil {
		return nil, engineError(err, "invalid scheduling catalog")
	}
	return engine, nil
}

func (s *TimetableService) optimizeOptions(req dto.OptimizeOptionsRequest) (timetable.OptimizeOptions, error) {
	name := req.Algorithm
	if name == "" {
		name = s.cfg.DefaultAlgorithm
	}
	algorithm, err := timetable.ParseAlgorithm(name)
	if err != nil {
		return timetable.OptimizeOptions{}, engineError(err, "invalid optimization algorithm")
	}

	iterations := req.Iterations
	if iterations <= 0 {
		iterations = s.cfg.DefaultIterations
	}
	if iterations > s.cfg.MaxIterations {
		iterations = s.cfg.MaxIterations
	}
	budget := time.Duration(req.TimeBudgetMs) * time.Millisecond
	if budget <= 0 {
		budget = s.cfg.TimeBudget
	}
	if budget > s.cfg.MaxTimeBudget {
		budget = s.cfg.MaxTimeBudget
	}

	return timetable.OptimizeOptions{
		Algorithm:  algorithm,
		Seed:       req.Seed,
		Iterations: iterations,
		TimeBudget: budget,
		Weights:    req.Weights,
		Annealing:  req.Annealing,
		Genetic:    req.Genetic,
	}, nil
}

func (s *TimetableService) proposalResponse(p *proposal, resp *dto.ProposalResponse) *dto.ProposalResponse {
	resp.ProposalID = p.ID
	resp.Scope = p.Scope
	resp.Sessions = p.Sessions
	resp.Unassignable = p.Unassignable
	resp.Report = p.Report
	resp.ExpiresAt = p.UpdatedAt.Add(s.cfg.ProposalTTL)
	return resp
}

func (s *TimetableService) jobQueue() jobQueue {
	s.queueMu.RLock()
	defer s.queueMu.RUnlock()
	return s.queue
}

func (s *TimetableService) observe(operation, algorithm, status string, start time.Time, conflicts int) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveEngineRun(operation, algorithm, status, time.Since(start), conflicts)
}

func (s *TimetableService) observeDB(label string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveDBQuery(label, time.Since(start))
}

// engineError maps engine failures onto API errors.
func engineError(err error, message string) error {
	switch {
	case errors.Is(err, timetable.ErrInvalidConfiguration):
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return appErrors.Wrap(err, appErrors.ErrCancelled.Code, appErrors.ErrCancelled.Status, "request cancelled before the run finished")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
	}
}

func summarize(result timetable.OptimizeResult) dto.OptimizationSummary {
	return dto.OptimizationSummary{Status: result.Status, Metrics: result.Metrics, Note: result.Note}
}

var filenameSafe = strings.NewReplacer("|", "_", ":", "-")

// scopeKey identifies a scope for versioning and caching, e.g. sem:3|prog:bit.
func scopeKey(scope timetable.Scope) string {
	var parts []string
	if scope.Semester > 0 {
		parts = append(parts, fmt.Sprintf("sem:%d", scope.Semester))
	}
	if scope.ProgramID != "" {
		parts = append(parts, "prog:"+scope.ProgramID)
	}
	if scope.ClassID != "" {
		parts = append(parts, "class:"+scope.ClassID)
	}
	if scope.GroupID != "" {
		parts = append(parts, "group:"+scope.GroupID)
	}
	if len(parts) == 0 {
		return "all"
	}
	return strings.Join(parts, "|")
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func sessionRows(timetableID string, sessions []timetable.Session) []models.TimetableSession {
	rows := make([]models.TimetableSession, 0, len(sessions))
	for _, session := range sessions {
		rows = append(rows, models.TimetableSession{
			TimetableID: timetableID,
			SessionKey:  session.ID,
			UnitID:      session.UnitID,
			LecturerID:  session.LecturerID,
			GroupID:     session.GroupID,
			Subgroup:    optional(session.Subgroup),
			Attendance:  session.Attendance,
			DayOfWeek:   int(session.Day),
			StartTime:   session.Start.String(),
			EndTime:     session.End.String(),
			SlotID:      optional(session.SlotID),
			VenueID:     session.VenueID,
			Mode:        string(session.Mode),
			Block:       session.Block,
		})
	}
	return rows
}

func sessionsFromRows(rows []models.TimetableSession) ([]timetable.Session, error) {
	sessions := make([]timetable.Session, 0, len(rows))
	for _, row := range rows {
		start, err := timetable.ParseClock(row.StartTime)
		if err != nil {
			return nil, fmt.Errorf("session %s: %w", row.SessionKey, err)
		}
		end, err := timetable.ParseClock(row.EndTime)
		if err != nil {
			return nil, fmt.Errorf("session %s: %w", row.SessionKey, err)
		}
		session := timetable.Session{
			ID:         row.SessionKey,
			UnitID:     row.UnitID,
			LecturerID: row.LecturerID,
			GroupID:    row.GroupID,
			Attendance: row.Attendance,
			Day:        timetable.Weekday(row.DayOfWeek),
			Start:      start,
			End:        end,
			VenueID:    row.VenueID,
			Mode:       timetable.DeliveryMode(row.Mode),
			Block:      row.Block,
		}
		if row.Subgroup != nil {
			session.Subgroup = *row.Subgroup
		}
		if row.SlotID != nil {
			session.SlotID = *row.SlotID
		}
		sessions = append(sessions, session)
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		if sessions[i].Day != sessions[j].Day {
			return sessions[i].Day < sessions[j].Day
		}
		if sessions[i].Start != sessions[j].Start {
			return sessions[i].Start < sessions[j].Start
		}
		return sessions[i].ID < sessions[j].ID
	})
	return sessions, nil
}

type catalogNames struct {
	units     map[string]string
	lecturers map[string]string
	groups    map[string]string
	venues    map[string]string
}

func newCatalogNames(snapshot timetable.Snapshot) catalogNames {
	names := catalogNames{
		units:     make(map[string]string, len(snapshot.Units)),
		lecturers: make(map[string]string, len(snapshot.Lecturers)),
		groups:    make(map[string]string, len(snapshot.Groups)),
		venues:    make(map[string]string, len(snapshot.Venues)),
	}
	for _, u := range snapshot.Units {
		names.units[u.ID] = u.Code
	}
	for _, l := range snapshot.Lecturers {
		names.lecturers[l.ID] = l.Code
	}
	for _, g := range snapshot.Groups {
		names.groups[g.ID] = g.Name
	}
	for _, v := range snapshot.Venues {
		names.venues[v.ID] = v.Name
	}
	return names
}

func (n catalogNames) row(session timetable.Session) export.Row {
	group := lookup(n.groups, session.GroupID)
	if session.Subgroup != "" {
		group += " (" + session.Subgroup + ")"
	}
	day := session.Day.String()
	if len(day) > 1 {
		day = day[:1] + strings.ToLower(day[1:])
	}
	return export.Row{
		Day:       day,
		Start:     session.Start.String(),
		End:       session.End.String(),
		Unit:      lookup(n.units, session.UnitID),
		Lecturer:  lookup(n.lecturers, session.LecturerID),
		Group:     group,
		Venue:     lookup(n.venues, session.VenueID),
		Mode:      string(session.Mode),
		SessionID: session.ID,
	}
}

func lookup(names map[string]string, id string) string {
	if name := names[id]; name != "" {
		return name
	}
	return id
}
