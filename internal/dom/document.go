// Package dom models the browser surface of one exam page: a document-level
// event target that client-reported events are dispatched through, plus the
// page side effects (text selection, clipboard) that handlers may request.
package dom

import (
	"sync"
)

// EventType names a browser event.
type EventType string

const (
	EventCopy             EventType = "copy"
	EventPaste            EventType = "paste"
	EventCut              EventType = "cut"
	EventContextMenu      EventType = "contextmenu"
	EventDragStart        EventType = "dragstart"
	EventKeyDown          EventType = "keydown"
	EventBlur             EventType = "blur"
	EventFocus            EventType = "focus"
	EventVisibilityChange EventType = "visibilitychange"
)

// Event is a client-reported browser event.
type Event struct {
	Type     EventType `json:"type" binding:"required"`
	Key      string    `json:"key,omitempty"`
	CtrlKey  bool      `json:"ctrlKey,omitempty"`
	MetaKey  bool      `json:"metaKey,omitempty"`
	ShiftKey bool      `json:"shiftKey,omitempty"`
	Hidden   bool      `json:"hidden,omitempty"`

	defaultPrevented bool
	clearClipboard   bool
}

// PreventDefault suppresses the browser's default behavior for this event.
func (e *Event) PreventDefault() { e.defaultPrevented = true }

// DefaultPrevented reports whether a handler blocked the event.
func (e *Event) DefaultPrevented() bool { return e.defaultPrevented }

// RequestClipboardClear asks the client to best-effort wipe the system clipboard.
func (e *Event) RequestClipboardClear() { e.clearClipboard = true }

// ClipboardClearRequested reports whether a handler asked for a clipboard wipe.
func (e *Event) ClipboardClearRequested() bool { return e.clearClipboard }

// Modifier reports whether Ctrl or Cmd was held.
func (e *Event) Modifier() bool { return e.CtrlKey || e.MetaKey }

// Listener handles a dispatched event.
type Listener func(*Event)

type registration struct {
	id int
	fn Listener
}

// Document is the per-session event target.
type Document struct {
	mu         sync.Mutex
	nextID     int
	listeners  map[EventType][]registration
	userSelect bool
}

// NewDocument returns a document with text selection enabled and no listeners.
func NewDocument() *Document {
	return &Document{
		listeners:  make(map[EventType][]registration),
		userSelect: true,
	}
}

// AddEventListener registers fn for t and returns its unsubscribe handle.
// Calling the handle more than once is harmless.
func (d *Document) AddEventListener(t EventType, fn Listener) func() {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.listeners[t] = append(d.listeners[t], registration{id: id, fn: fn})
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { d.remove(t, id) })
	}
}

func (d *Document) remove(t EventType, id int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	regs := d.listeners[t]
	for i, r := range regs {
		if r.id == id {
			d.listeners[t] = append(regs[:i:i], regs[i+1:]...)
			break
		}
	}
	if len(d.listeners[t]) == 0 {
		delete(d.listeners, t)
	}
}

// Dispatch delivers ev to every listener registered for its type, in
// registration order. It returns false if any listener prevented the default.
func (d *Document) Dispatch(ev *Event) bool {
	d.mu.Lock()
	regs := append([]registration(nil), d.listeners[ev.Type]...)
	d.mu.Unlock()

	for _, r := range regs {
		r.fn(ev)
	}
	return !ev.DefaultPrevented()
}

// ListenerCount returns the number of listeners registered for t.
func (d *Document) ListenerCount(t EventType) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners[t])
}

// SetUserSelect toggles text selection on the page.
func (d *Document) SetUserSelect(enabled bool) {
	d.mu.Lock()
	d.userSelect = enabled
	d.mu.Unlock()
}

// UserSelect reports whether text selection is enabled.
func (d *Document) UserSelect() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.userSelect
}
