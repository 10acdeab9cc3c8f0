package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/edquest/proctor-backend/internal/gaze"
	"github.com/edquest/proctor-backend/internal/middleware"
	"github.com/edquest/proctor-backend/internal/proctor"
	"github.com/edquest/proctor-backend/internal/response"
	"github.com/edquest/proctor-backend/internal/service"
	ws "github.com/edquest/proctor-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler runs one proctoring session per exam WebSocket.
type WSHandler struct {
	testService *service.TestService
	deps        proctor.Deps
	log         zerolog.Logger
	upgrader    websocket.Upgrader
}

// NewWSHandler creates a new WSHandler. deps are shared by every session.
func NewWSHandler(testService *service.TestService, deps proctor.Deps, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		testService: testService,
		deps:        deps,
		log:         log.With().Str("component", "ws_handler").Logger(),
		upgrader:    buildUpgrader(allowedOrigins),
	}
}

// ProctorStream godoc
// WS /ws/v1/exams/:test_id/proctor?token=
// Streams client DOM events and detection frames in, proctoring decisions out.
func (h *WSHandler) ProctorStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	test, questions, err := h.testService.Load(c.Request.Context(), testID)
	if err != nil {
		if errors.Is(err, service.ErrTestNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		h.log.Error().Err(err).Str("test_id", testID.String()).Msg("Failed to load test")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if len(questions) == 0 {
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrNoQuestions)
		return
	}

	var userID *uuid.UUID
	if id, err := uuid.Parse(claims.UserID); err == nil {
		userID = &id
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	writer := ws.NewWriter(conn)
	defer writer.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	sess := proctor.New(proctor.Params{
		TestID:    test.ID,
		UserID:    userID,
		Questions: questions,
	}, h.deps, writer)
	sess.Start(ctx)
	defer sess.Stop()

	wsLog := h.log.With().
		Str("user_id", claims.UserID).
		Str("test_id", testID.String()).
		Str("session_id", sess.SessionID()).
		Logger()
	wsLog.Info().Msg("Candidate connected")

	_ = writer.Send(ws.ReadyResponse{
		Event:           ws.EventReady,
		SessionID:       sess.SessionID(),
		TestID:          testID.String(),
		QuestionCount:   sess.QuestionCount(),
		CurrentQuestion: sess.CurrentQuestion(),
	})

	for {
		data, err := ws.ReadMessage(conn)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		var msg ws.RequestPayload
		if err := json.Unmarshal(data, &msg); err != nil {
			wsLog.Warn().Err(err).Msg("Malformed message")
			_ = writer.Error("malformed message: " + err.Error())
			continue
		}
		h.handleMessage(ctx, wsLog, sess, writer, &msg)
	}
}

// handleMessage applies one client action to the session.
func (h *WSHandler) handleMessage(ctx context.Context, log zerolog.Logger, sess *proctor.Session, out *ws.Writer, msg *ws.RequestPayload) {
	switch msg.Action {
	case ws.ActionDOMEvent:
		if msg.Event == nil || msg.Event.Type == "" {
			_ = out.Error("event is required")
			return
		}
		_ = out.Send(sess.DispatchDOM(*msg.Event))

	case ws.ActionFrame:
		if len(msg.Frame) == 0 || string(msg.Frame) == "null" {
			_ = out.Error("frame is required")
			return
		}
		var frame gaze.Frame
		if err := json.Unmarshal(msg.Frame, &frame); err != nil {
			log.Warn().Err(err).Msg("Dropping malformed face frame")
			return
		}
		sess.PushFrame(frame)

	case ws.ActionSelectOption:
		if msg.QuestionIndex == nil || msg.OptionIndex == nil {
			_ = out.Error("question_index and option_index are required")
			return
		}
		if err := sess.SelectOption(*msg.QuestionIndex, *msg.OptionIndex); err != nil {
			_ = out.Error(err.Error())
			return
		}
		_ = out.Send(ws.SuccessResponse{Event: ws.EventSuccess, Status: "saved"})

	case ws.ActionNavigate:
		index, err := sess.Navigate(msg.Direction)
		if err != nil {
			_ = out.Error(err.Error())
			return
		}
		_ = out.Send(ws.QuestionResponse{Event: ws.EventQuestion, Index: index, Answer: sess.AnswerFor(index)})

	case ws.ActionDataLoaded:
		sess.ReportLoaded()

	case ws.ActionLoadError:
		sess.ReportLoadError(msg.Error)

	case ws.ActionSubmit:
		res, err := sess.Submit(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Submission rejected")
			switch {
			case errors.Is(err, proctor.ErrAlreadySubmitted), errors.Is(err, proctor.ErrSubmitInProgress):
				_ = out.Error(err.Error())
			default:
				_ = out.Error("submission failed")
			}
			return
		}
		log.Info().Float64("score", res.Score).Int("correct", res.Correct).Int("total", res.Total).Msg("Exam submitted and graded")
		_ = out.Send(ws.SubmittedResponse{
			Event:     ws.EventSubmitted,
			Status:    "completed",
			Score:     res.Score,
			Persisted: res.Persisted,
		})

	case ws.ActionPing:
		_ = out.Send(ws.PongResponse{Event: ws.EventPong})

	default:
		log.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
		_ = out.Error("unknown action: " + string(msg.Action))
	}
}
