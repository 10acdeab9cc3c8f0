// Package focus tracks window focus and tab visibility during an exam.
package focus

import (
	"sync"

	"github.com/edquest/proctor-backend/internal/dom"
	"github.com/edquest/proctor-backend/internal/model"
)

// EventLogger receives focus and visibility transitions.
type EventLogger interface {
	Log(action model.Action, details map[string]any)
}

const (
	ReasonFocusLost = "Window focus lost"
	ReasonTabSwitch = "Tab switching detected"
)

// Monitor holds two independent signals: window focus and tab visibility.
// Only window focus drives the blocking overlay.
type Monitor struct {
	doc      *dom.Document
	logger   EventLogger
	question func() int

	// OnOverlay is called with true when the blocking overlay must be shown
	// and false when it must be removed.
	OnOverlay func(visible bool)
	// OnSuspicious reports a malpractice reason for blur and hidden-tab transitions.
	OnSuspicious func(reason string)

	mu       sync.Mutex
	focused  bool
	visible  bool
	removers []func()
}

// New returns a monitor in the focused, visible state.
func New(doc *dom.Document, logger EventLogger, question func() int) *Monitor {
	return &Monitor{
		doc:      doc,
		logger:   logger,
		question: question,
		focused:  true,
		visible:  true,
	}
}

// Start subscribes to blur, focus and visibilitychange.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removers != nil {
		return
	}
	m.removers = []func(){
		m.doc.AddEventListener(dom.EventBlur, m.onBlur),
		m.doc.AddEventListener(dom.EventFocus, m.onFocus),
		m.doc.AddEventListener(dom.EventVisibilityChange, m.onVisibility),
	}
}

// Stop unsubscribes every handler. A shown overlay is removed.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.removers == nil {
		m.mu.Unlock()
		return
	}
	for _, remove := range m.removers {
		remove()
	}
	m.removers = nil
	wasBlurred := !m.focused
	m.focused = true
	m.mu.Unlock()

	if wasBlurred && m.OnOverlay != nil {
		m.OnOverlay(false)
	}
}

// Focused reports the window-focus signal.
func (m *Monitor) Focused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.focused
}

// Visible reports the tab-visibility signal.
func (m *Monitor) Visible() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visible
}

// OverlayShown reports whether the blocking overlay is up.
func (m *Monitor) OverlayShown() bool {
	return !m.Focused()
}

func (m *Monitor) onBlur(*dom.Event) {
	m.mu.Lock()
	m.focused = false
	m.mu.Unlock()

	m.logger.Log(model.ActionFocusLost, map[string]any{"currentQuestion": m.question()})
	if m.OnOverlay != nil {
		m.OnOverlay(true)
	}
	if m.OnSuspicious != nil {
		m.OnSuspicious(ReasonFocusLost)
	}
}

func (m *Monitor) onFocus(*dom.Event) {
	m.mu.Lock()
	m.focused = true
	m.mu.Unlock()

	m.logger.Log(model.ActionFocusRegained, map[string]any{"currentQuestion": m.question()})
	if m.OnOverlay != nil {
		m.OnOverlay(false)
	}
}

func (m *Monitor) onVisibility(ev *dom.Event) {
	m.mu.Lock()
	m.visible = !ev.Hidden
	m.mu.Unlock()

	m.logger.Log(model.ActionVisibilityChange, map[string]any{
		"hidden":          ev.Hidden,
		"currentQuestion": m.question(),
	})
	if ev.Hidden && m.OnSuspicious != nil {
		m.OnSuspicious(ReasonTabSwitch)
	}
}
