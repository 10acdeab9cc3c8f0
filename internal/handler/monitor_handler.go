package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/edquest/proctor-backend/internal/realtime"
	"github.com/edquest/proctor-backend/internal/response"
	"github.com/edquest/proctor-backend/internal/service"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second
)

var pingPayload = []byte(`{"type":"ping"}`)

// MonitorHandler streams live proctoring activity to admins over SSE.
type MonitorHandler struct {
	publisher      *realtime.Publisher
	monitorService *service.MonitorService
	log            zerolog.Logger
}

func NewMonitorHandler(publisher *realtime.Publisher, monitorService *service.MonitorService, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		publisher:      publisher,
		monitorService: monitorService,
		log:            log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorTestSSE godoc
// GET /api/v1/admin/tests/:test_id/monitor
// Sends a snapshot, then forwards every monitor message of the test.
func (h *MonitorHandler) MonitorTestSSE(c *gin.Context) {
	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	reqCtx := c.Request.Context()
	snapshot, err := h.snapshot(reqCtx, testID)
	if err != nil {
		if errors.Is(err, service.ErrTestNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		h.log.Error().Err(err).Str("test_id", testID.String()).Msg("Failed to build monitor snapshot")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	setSSEHeaders(c)
	c.SSEvent("message", gin.H{"type": "snapshot", "data": snapshot})
	c.Writer.Flush()

	pubsub := h.publisher.Subscribe(reqCtx, testID.String())
	defer pubsub.Close()

	h.log.Info().Str("test_id", testID.String()).Msg("Admin attached to live monitor SSE")
	h.stream(c, pubsub.Channel(), func() {
		if snap, err := h.snapshot(reqCtx, testID); err == nil {
			c.SSEvent("message", gin.H{"type": "refresh", "data": snap})
			c.Writer.Flush()
		} else {
			h.log.Warn().Err(err).Msg("Failed to refresh monitor snapshot")
		}
	})
	h.log.Info().Str("test_id", testID.String()).Msg("Admin disconnected from live monitor SSE")
}

// ActivityFeedSSE godoc
// GET /api/v1/admin/activity-feed
// Forwards monitor messages of every test.
func (h *MonitorHandler) ActivityFeedSSE(c *gin.Context) {
	setSSEHeaders(c)
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	pubsub := h.publisher.Subscribe(c.Request.Context(), "")
	defer pubsub.Close()

	h.stream(c, pubsub.Channel(), nil)
}

// stream forwards raw pubsub payloads until the client leaves. refresh runs
// periodically once at least one message has arrived.
func (h *MonitorHandler) stream(c *gin.Context, ch <-chan *redis.Message, refresh func()) {
	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	active := false
	for {
		select {
		case <-c.Request.Context().Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}
			writeSSEData(c, []byte(msg.Payload))
			active = true

		case <-refreshTicker.C:
			if refresh == nil || !active {
				continue
			}
			refresh()

		case <-keepAliveTicker.C:
			writeSSEData(c, pingPayload)
		}
	}
}

func (h *MonitorHandler) snapshot(parent context.Context, testID uuid.UUID) (*service.MonitorSnapshot, error) {
	ctx, cancel := context.WithTimeout(parent, refreshTimeout)
	defer cancel()
	return h.monitorService.Snapshot(ctx, testID)
}

func setSSEHeaders(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
}

func writeSSEData(c *gin.Context, payload []byte) {
	c.Writer.Write([]byte("data: "))
	c.Writer.Write(payload)
	c.Writer.Write([]byte("\n\n"))
	c.Writer.Flush()
}
