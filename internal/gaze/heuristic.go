package gaze

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/edquest/proctor-backend/internal/clock"
	"github.com/edquest/proctor-backend/internal/metrics"
	"github.com/edquest/proctor-backend/internal/notify"
)

const (
	AbsenceDwell  = 3000 * time.Millisecond
	LookAwayDwell = 1000 * time.Millisecond
	Cooldown      = 3000 * time.Millisecond
	FlashDuration = 5000 * time.Millisecond

	directionRatio = 1.5

	ReasonFaceAbsent = "Face not detected in frame"

	alertTitle     = "WARNING"
	alertSystemMsg = "PROCTOR SYSTEM"
)

var ErrDetector = errors.New("face detector failed")

// HeadTurnedReason formats the look-away trigger reason.
func HeadTurnedReason(direction string) string {
	return fmt.Sprintf("Head turned (%s)", direction)
}

// Notifier shows an alert to the student.
type Notifier interface {
	Add(t notify.Type, title, systemMsg, message string) notify.Notification
}

// Heuristic is the presence and head-direction state machine for one session.
// Every accepted trigger passes a single cooldown shared by all reasons.
type Heuristic struct {
	clk      clock.Clock
	notifier Notifier
	log      zerolog.Logger
	metrics  *metrics.Metrics

	// OnFlag is called for each accepted trigger.
	OnFlag func(reason string, at time.Time)
	// OnFlash is called when the flashing alert state changes.
	OnFlash func(flashing bool)

	mu           sync.Mutex
	absence      Dwell
	lookAway     Dwell
	lastTrigger  time.Time
	triggered    bool
	flashing     bool
	flashTimer   clock.Timer
	flashPending int
	closed       bool
}

// NewHeuristic builds a heuristic reading time from clk.
func NewHeuristic(clk clock.Clock, notifier Notifier, log zerolog.Logger, m *metrics.Metrics) *Heuristic {
	return &Heuristic{
		clk:      clk,
		notifier: notifier,
		log:      log,
		metrics:  m,
		absence:  Dwell{Threshold: AbsenceDwell},
		lookAway: Dwell{Threshold: LookAwayDwell},
	}
}

// Process feeds one detection result. Only the first face is considered.
func (h *Heuristic) Process(frame Frame) error {
	if frame.Error != "" {
		return fmt.Errorf("%w: %s", ErrDetector, frame.Error)
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	now := h.clk.Now()
	reason := ""
	if len(frame.Faces) == 0 {
		h.lookAway.Reset()
		if h.absence.Observe(now, true) {
			reason = ReasonFaceAbsent
		}
	} else {
		h.absence.Reset()
		direction := Classify(frame.Faces[0])
		if h.lookAway.Observe(now, direction != "") {
			reason = HeadTurnedReason(direction)
		}
	}
	h.mu.Unlock()

	if reason != "" {
		h.Trigger(reason)
	}
	return nil
}

// Trigger raises a malpractice alert unless one was accepted within the
// cooldown window. It reports whether the trigger was accepted.
func (h *Heuristic) Trigger(reason string) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	now := h.clk.Now()
	if h.triggered && now.Sub(h.lastTrigger) < Cooldown {
		h.mu.Unlock()
		h.log.Debug().Str("reason", reason).Msg("Malpractice trigger suppressed by cooldown")
		return false
	}
	h.triggered = true
	h.lastTrigger = now

	if h.flashTimer != nil {
		h.flashTimer.Stop()
	}
	startedFlash := !h.flashing
	h.flashing = true
	h.flashPending++
	gen := h.flashPending
	h.flashTimer = h.clk.AfterFunc(FlashDuration, func() { h.endFlash(gen) })
	h.mu.Unlock()

	h.log.Warn().Str("reason", reason).Msg("Malpractice detected")
	h.metrics.ObserveFlag(reason)
	if h.notifier != nil {
		h.notifier.Add(notify.TypeAlert, alertTitle, alertSystemMsg,
			fmt.Sprintf("Malpractice flagged: %s. Please keep focus on the exam window.", reason))
	}
	if startedFlash && h.OnFlash != nil {
		h.OnFlash(true)
	}
	if h.OnFlag != nil {
		h.OnFlag(reason, now)
	}
	return true
}

func (h *Heuristic) endFlash(gen int) {
	h.mu.Lock()
	if gen != h.flashPending || !h.flashing {
		h.mu.Unlock()
		return
	}
	h.flashing = false
	h.flashTimer = nil
	h.mu.Unlock()

	if h.OnFlash != nil {
		h.OnFlash(false)
	}
}

// Flashing reports whether the camera widget alert is active.
func (h *Heuristic) Flashing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.flashing
}

// Close stops the flash timer and ignores further frames and triggers.
func (h *Heuristic) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	if h.flashTimer != nil {
		h.flashTimer.Stop()
		h.flashTimer = nil
	}
	h.flashing = false
}
