package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/edquest/proctor-backend/internal/model"
	"github.com/edquest/proctor-backend/internal/response"
	"github.com/edquest/proctor-backend/internal/service"
	"github.com/edquest/proctor-backend/internal/validator"
)

const defaultListLimit = 200

// AdminHandler serves the review dashboard.
type AdminHandler struct {
	activity   *service.ActivityLogService
	violations *service.ViolationService
	monitor    *service.MonitorService
	log        zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	activity *service.ActivityLogService,
	violations *service.ViolationService,
	monitor *service.MonitorService,
	log zerolog.Logger,
) *AdminHandler {
	return &AdminHandler{
		activity:   activity,
		violations: violations,
		monitor:    monitor,
		log:        log.With().Str("component", "admin_handler").Logger(),
	}
}

type listQuery struct {
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=1000"`
	TestID string `form:"test_id" binding:"omitempty,uuid"`
}

func (q listQuery) limit() int {
	if q.Limit == 0 {
		return defaultListLimit
	}
	return q.Limit
}

type violationQuery struct {
	Limit    int    `form:"limit" binding:"omitempty,min=1,max=1000"`
	Type     string `form:"type" binding:"omitempty,alert_action"`
	Severity string `form:"severity" binding:"omitempty,oneof=CRITICAL HIGH MEDIUM LOW"`
	Search   string `form:"q" binding:"max=200"`
}

// ListActivitySessions godoc
// GET /api/v1/admin/activity-sessions
// Returns the latest activity sessions of every test, or of one test
// when test_id is given.
func (h *AdminHandler) ListActivitySessions(c *gin.Context) {
	var q listQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	var (
		sessions []model.ActivitySession
		err      error
	)
	if q.TestID != "" {
		sessions, err = h.activity.ListByTest(c.Request.Context(), q.TestID)
	} else {
		sessions, err = h.activity.ListRecent(c.Request.Context(), q.limit())
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list activity sessions")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessList(c, http.StatusOK, sessions, len(sessions))
}

// ListAttempts godoc
// GET /api/v1/admin/attempts
func (h *AdminHandler) ListAttempts(c *gin.Context) {
	var q listQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	var testID *uuid.UUID
	if q.TestID != "" {
		id := uuid.MustParse(q.TestID)
		testID = &id
	}

	attempts, err := h.monitor.Attempts(c.Request.Context(), testID, q.limit())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list attempts")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessList(c, http.StatusOK, attempts, len(attempts))
}

// ViolationReport godoc
// GET /api/v1/admin/violations?type=&severity=&q=
// Returns the alert-worthy events of recent sessions with summary stats.
func (h *AdminHandler) ViolationReport(c *gin.Context) {
	var q violationQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrInvalidFilter, fields)
		return
	}

	limit := q.Limit
	if limit == 0 {
		limit = defaultListLimit
	}

	report, err := h.violations.Report(c.Request.Context(), limit, service.ViolationFilter{
		Type:     model.Action(q.Type),
		Severity: service.Severity(q.Severity),
		Search:   q.Search,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build violation report")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, report)
}
