package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-engine/internal/dto"
	"github.com/noah-isme/timetable-engine/internal/middleware"
	"github.com/noah-isme/timetable-engine/internal/models"
	"github.com/noah-isme/timetable-engine/internal/service"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
	"github.com/noah-isme/timetable-engine/pkg/jobs"
	"github.com/noah-isme/timetable-engine/pkg/response"
)

type timetableService interface {
	Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.ProposalResponse, error)
	Detect(ctx context.Context, req dto.DetectConflictsRequest) (*dto.ConflictReportResponse, error)
	Resolve(ctx context.Context, req dto.ResolveConflictsRequest) (*dto.ProposalResponse, error)
	Optimize(ctx context.Context, req dto.OptimizeTimetableRequest) (*dto.ProposalResponse, error)
	EnqueueOptimize(ctx context.Context, req dto.OptimizeTimetableRequest) (*dto.OptimizeJobResponse, error)
	Job(ctx context.Context, id string) (*jobs.Record, error)
	Save(ctx context.Context, req dto.SaveTimetableRequest) (*dto.SaveTimetableResponse, error)
	List(ctx context.Context, query dto.TimetableQuery) ([]models.Timetable, *models.Pagination, error)
	Get(ctx context.Context, id string) (*dto.TimetableDetailResponse, error)
	UpdateStatus(ctx context.Context, id string, req dto.UpdateTimetableStatusRequest) (*models.Timetable, error)
	Delete(ctx context.Context, id string) error
	Export(ctx context.Context, id string, query dto.ExportQuery) (*dto.ExportFile, error)
}

// TimetableHandler exposes the scheduling engine over HTTP.
type TimetableHandler struct {
	service timetableService
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(svc *service.TimetableService) *TimetableHandler {
	return &TimetableHandler{service: svc}
}

// Generate godoc
// @Summary Generate a timetable proposal
// @Description Builds a schedule from the catalog (or an inline snapshot) using the credit-hour block policy. Optionally optimizes it in the same call.
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Generation payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /timetables/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return
	}
	result, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "proposal_id", result.ProposalID)
	response.JSON(c, http.StatusOK, result, nil, middleware.ExtractMeta(c))
}

// Detect godoc
// @Summary Detect conflicts in a schedule
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.DetectConflictsRequest true "Proposal ID or inline sessions"
// @Success 200 {object} response.Envelope
// @Router /timetables/detect [post]
func (h *TimetableHandler) Detect(c *gin.Context) {
	var req dto.DetectConflictsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid conflict detection payload"))
		return
	}
	result, err := h.service.Detect(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "conflicts", len(result.Report.Conflicts))
	response.JSON(c, http.StatusOK, result, nil, middleware.ExtractMeta(c))
}

// Resolve godoc
// @Summary Resolve conflicts
// @Description Repairs conflicts by rescheduling, splitting groups, or both (auto).
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.ResolveConflictsRequest true "Resolution payload"
// @Success 200 {object} response.Envelope
// @Router /timetables/resolve [post]
func (h *TimetableHandler) Resolve(c *gin.Context) {
	var req dto.ResolveConflictsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid resolution payload"))
		return
	}
	result, err := h.service.Resolve(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "proposal_id", result.ProposalID)
	response.JSON(c, http.StatusOK, result, nil, middleware.ExtractMeta(c))
}

// Optimize godoc
// @Summary Optimize a schedule
// @Description Runs backtracking, simulated annealing or a genetic algorithm. With compare=true all three run and the best result is kept.
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.OptimizeTimetableRequest true "Optimization payload"
// @Success 200 {object} response.Envelope
// @Failure 499 {object} response.Envelope
// @Router /timetables/optimize [post]
func (h *TimetableHandler) Optimize(c *gin.Context) {
	var req dto.OptimizeTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid optimization payload"))
		return
	}
	result, err := h.service.Optimize(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "proposal_id", result.ProposalID)
	response.JSON(c, http.StatusOK, result, nil, middleware.ExtractMeta(c))
}

// OptimizeAsync godoc
// @Summary Queue an optimization
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.OptimizeTimetableRequest true "Optimization payload"
// @Success 202 {object} response.Envelope
// @Router /timetables/optimize/async [post]
func (h *TimetableHandler) OptimizeAsync(c *gin.Context) {
	var req dto.OptimizeTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid optimization payload"))
		return
	}
	result, err := h.service.EnqueueOptimize(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, result)
}

// Job godoc
// @Summary Get optimization job status
// @Tags Timetables
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/jobs/{id} [get]
func (h *TimetableHandler) Job(c *gin.Context) {
	record, err := h.service.Job(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Save godoc
// @Summary Save a proposal as a new timetable version
// @Description Refused with 409 HARD_CONFLICTS while high-severity conflicts remain.
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.SaveTimetableRequest true "Save payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetables/save [post]
func (h *TimetableHandler) Save(c *gin.Context) {
	var req dto.SaveTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid save payload"))
		return
	}
	if claims := claimsFromContext(c); claims != nil {
		req.CreatedBy = claims.UserID
	}
	result, err := h.service.Save(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// List godoc
// @Summary List saved timetables
// @Tags Timetables
// @Produce json
// @Param semester query int false "Semester"
// @Param programId query string false "Program ID"
// @Param classId query string false "Class ID"
// @Param status query string false "DRAFT, PUBLISHED or ARCHIVED"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /timetables [get]
func (h *TimetableHandler) List(c *gin.Context) {
	var query dto.TimetableQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid timetable query"))
		return
	}
	list, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list, pagination)
}

// Get godoc
// @Summary Get a saved timetable with its sessions
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/sessions [get]
func (h *TimetableHandler) Get(c *gin.Context) {
	result, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// UpdateStatus godoc
// @Summary Publish or archive a saved timetable
// @Tags Timetables
// @Accept json
// @Produce json
// @Param id path string true "Timetable ID"
// @Param payload body dto.UpdateTimetableStatusRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetables/{id}/status [patch]
func (h *TimetableHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateTimetableStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	record, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Export godoc
// @Summary Export a saved timetable
// @Tags Timetables
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Timetable ID"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Router /timetables/{id}/export [get]
func (h *TimetableHandler) Export(c *gin.Context) {
	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export query"))
		return
	}
	file, err := h.service.Export(c.Request.Context(), c.Param("id"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}

// Delete godoc
// @Summary Delete a draft timetable
// @Tags Timetables
// @Param id path string true "Timetable ID"
// @Success 204
// @Router /timetables/{id} [delete]
func (h *TimetableHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Register mounts the timetable routes. Reads need any authenticated user; writes need an
// administrator.
func (h *TimetableHandler) Register(group *gin.RouterGroup, writers ...gin.HandlerFunc) {
	group.GET("", h.List)
	group.GET("/jobs/:id", h.Job)
	group.GET("/:id/sessions", h.Get)
	group.GET("/:id/export", h.Export)
	group.POST("/detect", h.Detect)

	write := group.Group("", writers...)
	write.POST("/generate", h.Generate)
	write.POST("/resolve", h.Resolve)
	write.POST("/optimize", h.Optimize)
	write.POST("/optimize/async", h.OptimizeAsync)
	write.POST("/save", h.Save)
	write.PATCH("/:id/status", h.UpdateStatus)
	write.DELETE("/:id", h.Delete)
}
