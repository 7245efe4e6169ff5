package dto

import (
	"time"

	"github.com/noah-isme/timetable-engine/internal/models"
	"github.com/noah-isme/timetable-engine/internal/timetable"
	"github.com/noah-isme/timetable-engine/pkg/jobs"
)

// ScopeRequest selects the units and groups a run covers.
type ScopeRequest struct {
	Semester  int    `json:"semester" validate:"gte=0,lte=16"`
	ProgramID string `json:"programId" validate:"omitempty,max=64"`
	ClassID   string `json:"classId" validate:"omitempty,max=64"`
	GroupID   string `json:"groupId" validate:"omitempty,max=64"`
}

// Scope converts the request into the engine scope.
func (s ScopeRequest) Scope() timetable.Scope {
	return timetable.Scope{Semester: s.Semester, ProgramID: s.ProgramID, ClassID: s.ClassID, GroupID: s.GroupID}
}

// OptimizeOptionsRequest configures an optimizer run. Zero values take the configured defaults.
type OptimizeOptionsRequest struct {
	Algorithm    string                    `json:"algorithm" validate:"omitempty,max=32"`
	Seed         *int64                    `json:"seed"`
	Iterations   int                       `json:"iterations" validate:"gte=0"`
	TimeBudgetMs int                       `json:"timeBudgetMs" validate:"gte=0"`
	Weights      *timetable.Weights        `json:"weights"`
	Annealing    timetable.AnnealingParams `json:"annealing"`
	Genetic      timetable.GeneticParams   `json:"genetic"`
}

// GenerateTimetableRequest builds a proposal from scratch. Without an inline snapshot the
// catalog is read from the database.
type GenerateTimetableRequest struct {
	Scope       ScopeRequest            `json:"scope"`
	Snapshot    *timetable.Snapshot     `json:"snapshot"`
	Assignments map[string]string       `json:"assignments"`
	Optimize    *OptimizeOptionsRequest `json:"optimize"`
}

// ScheduleSource names the schedule an operation works on: a stored proposal, or inline
// sessions plus an inline snapshot or a scope to load one for.
type ScheduleSource struct {
	ProposalID string              `json:"proposalId" validate:"omitempty,uuid"`
	Sessions   []timetable.Session `json:"sessions" validate:"required_without=ProposalID"`
	Snapshot   *timetable.Snapshot `json:"snapshot"`
	Scope      ScopeRequest        `json:"scope"`
}

// DetectConflictsRequest asks for a conflict report.
type DetectConflictsRequest struct {
	ScheduleSource
}

// ResolveConflictsRequest repairs conflicts with a strategy.
type ResolveConflictsRequest struct {
	ScheduleSource
	Strategy  string               `json:"strategy" validate:"omitempty,max=32"`
	Conflicts []timetable.Conflict `json:"conflicts"`
}

// OptimizeTimetableRequest improves a schedule with one algorithm, or all of them when Compare is set.
type OptimizeTimetableRequest struct {
	ScheduleSource
	Options OptimizeOptionsRequest `json:"options"`
	Compare bool                   `json:"compare"`
}

// SaveTimetableRequest persists a proposal.
type SaveTimetableRequest struct {
	ProposalID string `json:"proposalId" validate:"required,uuid"`
	Publish    bool   `json:"publish"`
	Note       string `json:"note" validate:"omitempty,max=500"`
	CreatedBy  string `json:"-"`
}

// UpdateTimetableStatusRequest moves a stored timetable through its lifecycle.
type UpdateTimetableStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=PUBLISHED ARCHIVED"`
}

// TimetableQuery filters stored timetables.
type TimetableQuery struct {
	Semester  int    `form:"semester" validate:"gte=0"`
	ProgramID string `form:"programId"`
	ClassID   string `form:"classId"`
	Status    string `form:"status" validate:"omitempty,oneof=DRAFT PUBLISHED ARCHIVED"`
	Page      int    `form:"page" validate:"gte=0"`
	PageSize  int    `form:"pageSize" validate:"gte=0,lte=100"`
}

// ExportQuery selects the export format.
type ExportQuery struct {
	Format string `form:"format" validate:"omitempty,oneof=csv pdf"`
}

// OptimizationSummary reports one optimizer run.
type OptimizationSummary struct {
	Status  timetable.Status  `json:"status"`
	Metrics timetable.Metrics `json:"metrics"`
	Note    string            `json:"note,omitempty"`
}

// ProposalResponse describes the current state of a proposal after an operation.
type ProposalResponse struct {
	ProposalID   string                        `json:"proposalId"`
	Scope        timetable.Scope               `json:"scope"`
	Sessions     []timetable.Session           `json:"sessions"`
	Unassignable []timetable.UnassignableBlock `json:"unassignable,omitempty"`
	Report       timetable.Report              `json:"report"`
	Actions      []string                      `json:"actions,omitempty"`
	Optimization *OptimizationSummary          `json:"optimization,omitempty"`
	Comparison   []OptimizationSummary         `json:"comparison,omitempty"`
	ExpiresAt    time.Time                     `json:"expiresAt"`
}

// ConflictReportResponse returns a conflict report.
type ConflictReportResponse struct {
	ProposalID string           `json:"proposalId,omitempty"`
	Report     timetable.Report `json:"report"`
}

// OptimizeJobResponse acknowledges an asynchronous optimization.
type OptimizeJobResponse struct {
	JobID      string     `json:"jobId"`
	ProposalID string     `json:"proposalId"`
	State      jobs.State `json:"state"`
}

// SaveTimetableResponse returns the stored timetable identity.
type SaveTimetableResponse struct {
	TimetableID string                 `json:"timetableId"`
	Version     int                    `json:"version"`
	Status      models.TimetableStatus `json:"status"`
	Sessions    int                    `json:"sessions"`
}

// TimetableDetailResponse is a stored timetable with its sessions.
type TimetableDetailResponse struct {
	Timetable models.Timetable    `json:"timetable"`
	Sessions  []timetable.Session `json:"sessions"`
}

// ExportFile is a rendered export.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}
