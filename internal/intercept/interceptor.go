package intercept

import (
	"sync"

	"github.com/edquest/proctor-backend/internal/dom"
	"github.com/edquest/proctor-backend/internal/metrics"
	"github.com/edquest/proctor-backend/internal/model"
	"github.com/edquest/proctor-backend/internal/notify"
)

// EventLogger receives intercepted attempts.
type EventLogger interface {
	Log(action model.Action, details map[string]any)
}

// Notifier shows alerts to the candidate.
type Notifier interface {
	Add(t notify.Type, title, systemMsg, message string) notify.Notification
}

const (
	noticeTitle     = "WARNING"
	noticeSystemMsg = "SECURITY POLICY"
)

var interceptedTypes = [...]dom.EventType{
	dom.EventCopy,
	dom.EventPaste,
	dom.EventCut,
	dom.EventContextMenu,
	dom.EventDragStart,
	dom.EventKeyDown,
}

// Interceptor applies the policy table to document events while started.
type Interceptor struct {
	doc      *dom.Document
	logger   EventLogger
	notifier Notifier
	question func() int
	metrics  *metrics.Metrics

	mu       sync.Mutex
	removers []func()
}

// New wires an Interceptor. question returns the current question index and
// is attached to every log entry.
func New(doc *dom.Document, logger EventLogger, notifier Notifier, question func() int, m *metrics.Metrics) *Interceptor {
	return &Interceptor{doc: doc, logger: logger, notifier: notifier, question: question, metrics: m}
}

// Start registers the document handlers and disables text selection.
// Starting twice is a no-op.
func (i *Interceptor) Start() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.removers != nil {
		return
	}
	for _, t := range interceptedTypes {
		i.removers = append(i.removers, i.doc.AddEventListener(t, i.handle))
	}
	i.doc.SetUserSelect(false)
}

// Stop removes every handler and restores text selection.
func (i *Interceptor) Stop() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.removers == nil {
		return
	}
	for _, remove := range i.removers {
		remove()
	}
	i.removers = nil
	i.doc.SetUserSelect(true)
}

func (i *Interceptor) handle(ev *dom.Event) {
	d := Evaluate(ev)

	if d.Prevent {
		ev.PreventDefault()
	}
	if d.ClearClipboard {
		ev.RequestClipboardClear()
	}
	if d.Log {
		details := make(map[string]any, len(d.Details)+1)
		for k, v := range d.Details {
			details[k] = v
		}
		details["currentQuestion"] = i.question()
		i.logger.Log(d.Action, details)

		if d.Prevent {
			i.metrics.ObserveIntercept("blocked")
		} else {
			i.metrics.ObserveIntercept("logged")
		}
	}
	if d.Notice != "" {
		i.notifier.Add(notify.TypeAlert, noticeTitle, noticeSystemMsg, d.Notice)
	}
}
