// Package proctor wires the per-connection proctoring components of one exam
// attempt: the activity log, input interception, focus tracking, the gaze
// heuristic and the notification list.
package proctor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/edquest/proctor-backend/internal/activity"
	"github.com/edquest/proctor-backend/internal/clock"
	"github.com/edquest/proctor-backend/internal/dom"
	"github.com/edquest/proctor-backend/internal/focus"
	"github.com/edquest/proctor-backend/internal/gaze"
	"github.com/edquest/proctor-backend/internal/intercept"
	"github.com/edquest/proctor-backend/internal/metrics"
	"github.com/edquest/proctor-backend/internal/model"
	"github.com/edquest/proctor-backend/internal/notify"
	"github.com/edquest/proctor-backend/internal/realtime"
	"github.com/edquest/proctor-backend/internal/service"
	ws "github.com/edquest/proctor-backend/internal/websocket"
)

var (
	ErrAlreadySubmitted = errors.New("exam already submitted")
	ErrSubmitInProgress = errors.New("submission in progress")
	ErrInvalidQuestion  = errors.New("question index out of range")
	ErrInvalidOption    = errors.New("option index out of range")
	ErrInvalidDirection = errors.New("direction must be next or previous")
	ErrSessionClosed    = errors.New("session closed")
)

// Sender delivers server events to the client.
type Sender interface {
	Send(v any) error
}

// Submitter grades and stores a submission.
type Submitter interface {
	Submit(ctx context.Context, req service.SubmitRequest) (*service.SubmitResult, error)
}

// Flagger queues malpractice flags for persistence.
type Flagger interface {
	Enqueue(ctx context.Context, flag model.ProctorFlag) error
}

// Deps are the shared services a session is built from.
type Deps struct {
	Clock           clock.Clock
	Sink            activity.Sink
	Submitter       Submitter
	Flags           Flagger
	Publisher       *realtime.Publisher
	Metrics         *metrics.Metrics
	Log             zerolog.Logger
	NotificationTTL time.Duration
	FrameQueueSize  int
}

// Params identify the attempt.
type Params struct {
	TestID    uuid.UUID
	UserID    *uuid.UUID
	Questions []model.Question
}

// Session is the proctoring state of one connected candidate.
type Session struct {
	params Params
	deps   Deps
	out    Sender
	log    zerolog.Logger

	doc         *dom.Document
	logger      *activity.Logger
	emitter     *notify.Emitter
	interceptor *intercept.Interceptor
	monitor     *focus.Monitor
	heuristic   *gaze.Heuristic
	pipeline    *gaze.Pipeline
	frames      chan gaze.Frame

	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	unsubscribe func()

	mu         sync.Mutex
	current    int
	answers    map[int]string
	submitting bool
	submitted  bool
	started    bool
	stopped    bool
}

// New builds a session. Nothing is attached until Start.
func New(p Params, d Deps, out Sender) *Session {
	if d.Clock == nil {
		d.Clock = clock.Real{}
	}
	if d.FrameQueueSize <= 0 {
		d.FrameQueueSize = 1
	}

	s := &Session{
		params:  p,
		deps:    d,
		out:     out,
		doc:     dom.NewDocument(),
		answers: make(map[int]string),
		frames:  make(chan gaze.Frame, d.FrameQueueSize),
	}

	var opts []notify.Option
	if d.NotificationTTL > 0 {
		opts = append(opts, notify.WithTTL(d.NotificationTTL))
	}
	s.emitter = notify.New(d.Clock, opts...)
	s.logger = activity.NewLogger(d.Clock, p.TestID.String(), d.Sink, d.Log, d.Metrics)
	s.log = d.Log.With().
		Str("component", "proctor_session").
		Str("session_id", s.logger.SessionID()).
		Str("test_id", p.TestID.String()).
		Logger()

	s.interceptor = intercept.New(s.doc, s.logger, s.emitter, s.CurrentQuestion, d.Metrics)
	s.monitor = focus.New(s.doc, s.logger, s.CurrentQuestion)
	s.heuristic = gaze.NewHeuristic(d.Clock, s.emitter, s.log, d.Metrics)
	s.pipeline = gaze.NewPipeline(s.heuristic, s.log)

	s.monitor.OnOverlay = func(visible bool) {
		s.send(ws.OverlayResponse{Event: ws.EventOverlay, Visible: visible})
	}
	s.monitor.OnSuspicious = func(reason string) { s.heuristic.Trigger(reason) }
	s.heuristic.OnFlash = func(flashing bool) {
		s.send(ws.FlashResponse{Event: ws.EventFlash, Flashing: flashing})
	}
	s.heuristic.OnFlag = s.onFlag
	return s
}

// Start logs SESSION_INIT, attaches every monitor and starts the frame pipeline.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.ctx, s.cancel = context.WithCancel(ctx)

	s.logger.Log(model.ActionSessionInit, map[string]any{
		"userId":        s.userIDString(),
		"questionCount": len(s.params.Questions),
	})

	s.unsubscribe = s.emitter.Subscribe(func(c notify.Change) {
		s.send(ws.NotificationResponse{Event: ws.EventNotification, Kind: c.Kind, Notification: c.Notification})
	})
	s.interceptor.Start()
	s.monitor.Start()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.pipeline.Run(s.ctx, s.frames); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Warn().Err(err).Msg("Frame pipeline stopped")
		}
	}()

	s.deps.Metrics.SessionOpened()
	s.deps.Publisher.Publish(s.ctx, s.params.TestID.String(), realtime.EventSessionOpened, s.summary())
	s.log.Info().Msg("Proctor session started")
}

// Stop detaches every listener, stops the pipeline and cancels pending
// timers. The activity log is not flushed here.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.stopped = true
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	s.interceptor.Stop()
	s.monitor.Stop()
	s.cancel()
	s.wg.Wait()
	s.heuristic.Close()
	s.unsubscribe()
	s.emitter.Close()

	s.deps.Metrics.SessionClosed()
	s.deps.Publisher.Publish(context.WithoutCancel(s.ctx), s.params.TestID.String(), realtime.EventSessionClosed, s.summary())
	s.log.Info().Int("events", s.logger.Len()).Msg("Proctor session stopped")
}

// SessionID returns the activity session identifier.
func (s *Session) SessionID() string { return s.logger.SessionID() }

// Logger exposes the session's activity buffer.
func (s *Session) Logger() *activity.Logger { return s.logger }

// Notifications returns the displayed notifications.
func (s *Session) Notifications() []notify.Notification { return s.emitter.List() }

// Document is the event target client DOM events are dispatched on.
func (s *Session) Document() *dom.Document { return s.doc }

// QuestionCount returns the number of questions in the test.
func (s *Session) QuestionCount() int { return len(s.params.Questions) }

// CurrentQuestion returns the zero-based index of the displayed question.
func (s *Session) CurrentQuestion() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Answers returns a copy of the answer map.
func (s *Session) Answers() map[int]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]string, len(s.answers))
	for k, v := range s.answers {
		out[k] = v
	}
	return out
}

// DispatchDOM runs a client DOM event through the attached listeners and
// reports whether its default action must be cancelled.
func (s *Session) DispatchDOM(ev dom.Event) ws.DOMResultResponse {
	s.doc.Dispatch(&ev)
	return ws.DOMResultResponse{
		Event:          ws.EventDOMResult,
		Type:           ev.Type,
		Prevented:      ev.DefaultPrevented(),
		ClearClipboard: ev.ClipboardClearRequested(),
	}
}

// PushFrame queues a detection result. The frame is dropped when the queue is full.
func (s *Session) PushFrame(f gaze.Frame) {
	select {
	case s.frames <- f:
	default:
		s.deps.Metrics.ObserveFrameDropped()
	}
}

// SelectOption records the chosen option for a question.
func (s *Session) SelectOption(questionIndex, optionIndex int) error {
	if questionIndex < 0 || questionIndex >= len(s.params.Questions) {
		return ErrInvalidQuestion
	}
	q := s.params.Questions[questionIndex]
	if optionIndex < 0 || optionIndex >= len(q.Options) {
		return ErrInvalidOption
	}

	s.mu.Lock()
	if s.submitted {
		s.mu.Unlock()
		return ErrAlreadySubmitted
	}
	s.answers[questionIndex] = q.Options[optionIndex]
	s.mu.Unlock()

	s.logger.Log(model.ActionOptionSelected, map[string]any{
		"questionIndex":   questionIndex,
		"optionIndex":     optionIndex,
		"option":          q.Options[optionIndex],
		"currentQuestion": questionIndex,
	})
	return nil
}

// Navigate moves to the next or previous question and returns the new index.
// Moving past either end is a no-op.
func (s *Session) Navigate(direction string) (int, error) {
	var (
		action model.Action
		delta  int
	)
	switch direction {
	case ws.DirectionNext:
		action, delta = model.ActionNavigateNext, 1
	case ws.DirectionPrevious:
		action, delta = model.ActionNavigatePrevious, -1
	default:
		return 0, ErrInvalidDirection
	}

	s.mu.Lock()
	from := s.current
	to := from + delta
	if to < 0 || to >= len(s.params.Questions) {
		s.mu.Unlock()
		return from, nil
	}
	s.current = to
	s.mu.Unlock()

	s.logger.Log(action, map[string]any{"from": from, "to": to, "currentQuestion": to})
	return to, nil
}

// AnswerFor returns the recorded answer of a question.
func (s *Session) AnswerFor(index int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answers[index]
}

// ReportLoaded records that the client rendered the test.
func (s *Session) ReportLoaded() {
	s.logger.Log(model.ActionDataLoaded, map[string]any{"questionCount": len(s.params.Questions)})
}

// ReportLoadError records a client-side failure to load the test.
func (s *Session) ReportLoadError(msg string) {
	s.logger.Log(model.ActionLoadError, map[string]any{"error": msg})
}

// Submit grades the attempt. A failed submission leaves the session
// unsubmitted so the candidate can retry.
func (s *Session) Submit(ctx context.Context) (*service.SubmitResult, error) {
	s.mu.Lock()
	switch {
	case s.stopped:
		s.mu.Unlock()
		return nil, ErrSessionClosed
	case s.submitted:
		s.mu.Unlock()
		return nil, ErrAlreadySubmitted
	case s.submitting:
		s.mu.Unlock()
		return nil, ErrSubmitInProgress
	}
	s.submitting = true
	answers := make(map[int]string, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}
	s.mu.Unlock()

	res, err := s.deps.Submitter.Submit(ctx, service.SubmitRequest{
		TestID:    s.params.TestID,
		UserID:    s.params.UserID,
		Questions: s.params.Questions,
		Answers:   answers,
		Log:       s.logger,
		Notifier:  s.emitter,
	})

	s.mu.Lock()
	s.submitting = false
	if err == nil {
		s.submitted = true
	}
	s.mu.Unlock()
	return res, err
}

// Submitted reports whether the attempt was graded.
func (s *Session) Submitted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitted
}

func (s *Session) onFlag(reason string, at time.Time) {
	s.logger.Log(model.ActionMalpracticeFlagged, map[string]any{
		"reason":          reason,
		"currentQuestion": s.CurrentQuestion(),
	})

	if s.deps.Flags == nil {
		return
	}
	flag := model.ProctorFlag{
		TestID:    s.params.TestID.String(),
		UserID:    s.userIDString(),
		SessionID: s.logger.SessionID(),
		Reason:    reason,
		FlaggedAt: at.UTC(),
	}
	if err := s.deps.Flags.Enqueue(s.ctx, flag); err != nil {
		s.log.Error().Err(err).Str("reason", reason).Msg("Failed to queue proctor flag")
	}
}

func (s *Session) send(v any) {
	if s.out == nil {
		return
	}
	if err := s.out.Send(v); err != nil {
		s.log.Debug().Err(err).Str("event", fmt.Sprintf("%T", v)).Msg("Failed to send event")
	}
}

func (s *Session) userIDString() string {
	if s.params.UserID == nil {
		return ""
	}
	return s.params.UserID.String()
}

type sessionSummary struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id,omitempty"`
	Events    int    `json:"events"`
}

func (s *Session) summary() sessionSummary {
	return sessionSummary{
		SessionID: s.logger.SessionID(),
		UserID:    s.userIDString(),
		Events:    s.logger.Len(),
	}
}
