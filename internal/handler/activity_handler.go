package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/edquest/proctor-backend/internal/model"
	"github.com/edquest/proctor-backend/internal/response"
	"github.com/edquest/proctor-backend/internal/service"
)

const (
	msgInvalidLogsPayload = "Invalid payload. Required: testId, logs[]"
	msgLogsSaved          = "Activity logs saved successfully"
	msgSaveLogsFailed     = "Failed to save activity logs"
	msgFetchLogsFailed    = "Failed to fetch activity logs"
	msgPayloadTooLarge    = "Payload too large"
)

// ActivityHandler serves the legacy /api activity-log endpoints.
// Bodies keep the camelCase shape existing clients post and read.
type ActivityHandler struct {
	activity *service.ActivityLogService
	maxBytes int64
	log      zerolog.Logger
}

// NewActivityHandler creates a new ActivityHandler. maxBytes caps the ingest body.
func NewActivityHandler(activity *service.ActivityLogService, maxBytes int64, log zerolog.Logger) *ActivityHandler {
	return &ActivityHandler{
		activity: activity,
		maxBytes: maxBytes,
		log:      log.With().Str("component", "activity_handler").Logger(),
	}
}

type saveLogsResponse struct {
	Message    string `json:"message"`
	InsertedID string `json:"insertedId"`
}

type listLogsResponse struct {
	TestID string                  `json:"testId"`
	Count  int                     `json:"count"`
	Logs   []model.ActivitySession `json:"logs"`
}

// SaveLogs godoc
// POST /api/activity-logs
// Stores one batch of activity events as a new session document.
func (h *ActivityHandler) SaveLogs(c *gin.Context) {
	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)
	}

	var req model.SaveActivityLogsRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Legacy(c, http.StatusRequestEntityTooLarge, msgPayloadTooLarge)
			return
		}
		response.Legacy(c, http.StatusBadRequest, msgInvalidLogsPayload)
		return
	}

	session, err := h.activity.SaveLegacy(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrMissingTestID) || errors.Is(err, service.ErrEmptyLogs) {
			response.Legacy(c, http.StatusBadRequest, msgInvalidLogsPayload)
			return
		}
		h.log.Error().Err(err).Str("test_id", req.TestID).Msg("Failed to save activity logs")
		response.Legacy(c, http.StatusInternalServerError, msgSaveLogsFailed)
		return
	}

	c.JSON(http.StatusCreated, saveLogsResponse{
		Message:    msgLogsSaved,
		InsertedID: session.ID.String(),
	})
}

// ListByTest godoc
// GET /api/activity-logs/:testId
// Returns every stored session of a test, newest first.
func (h *ActivityHandler) ListByTest(c *gin.Context) {
	testID := c.Param("testId")

	sessions, err := h.activity.ListByTest(c.Request.Context(), testID)
	if err != nil {
		h.log.Error().Err(err).Str("test_id", testID).Msg("Failed to fetch activity logs")
		response.Legacy(c, http.StatusInternalServerError, msgFetchLogsFailed)
		return
	}

	c.JSON(http.StatusOK, listLogsResponse{
		TestID: testID,
		Count:  len(sessions),
		Logs:   sessions,
	})
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Health godoc
// GET /api/health
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(model.TimestampLayout),
	})
}
