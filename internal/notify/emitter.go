// Package notify holds the transient alerts shown to the candidate.
// Notifications are never persisted; each one expires on its own timer.
package notify

import (
	"sync"
	"time"

	"github.com/edquest/proctor-backend/internal/clock"
)

// Type selects the visual treatment of a notification.
type Type string

const (
	TypeAlert   Type = "alert"
	TypeSuccess Type = "success"
)

const (
	DefaultTTL   = 3000 * time.Millisecond
	DefaultGrace = 300 * time.Millisecond
)

// Notification is one entry of the display list.
type Notification struct {
	ID        int64     `json:"id"`
	Type      Type      `json:"type"`
	Title     string    `json:"title"`
	SystemMsg string    `json:"systemMsg"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
	// Leaving is set during the exit transition that precedes removal.
	Leaving bool `json:"leaving"`
}

// ChangeKind describes a display list transition.
type ChangeKind string

const (
	ChangeAdded   ChangeKind = "added"
	ChangeLeaving ChangeKind = "leaving"
	ChangeRemoved ChangeKind = "removed"
)

// Change is delivered to subscribers on every display list transition.
type Change struct {
	Kind         ChangeKind   `json:"kind"`
	Notification Notification `json:"notification"`
}

// Option configures an Emitter.
type Option func(*Emitter)

// WithTTL sets how long a notification is displayed. Zero or negative disables auto-dismiss.
func WithTTL(d time.Duration) Option {
	return func(e *Emitter) { e.ttl = d }
}

// WithGrace sets the exit transition length before removal.
func WithGrace(d time.Duration) Option {
	return func(e *Emitter) { e.grace = d }
}

type subscriber struct {
	id int
	fn func(Change)
}

// Emitter is an in-memory queue of transient alerts.
type Emitter struct {
	clock clock.Clock
	ttl   time.Duration
	grace time.Duration

	mu      sync.Mutex
	items   []Notification
	timers  map[int64]clock.Timer
	lastID  int64
	subs    []subscriber
	nextSub int
	closed  bool
}

// New creates an Emitter with the default 3000ms display and 300ms exit grace.
func New(clk clock.Clock, opts ...Option) *Emitter {
	e := &Emitter{
		clock:  clk,
		ttl:    DefaultTTL,
		grace:  DefaultGrace,
		timers: make(map[int64]clock.Timer),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Add appends a notification and schedules its removal. Identical calls
// produce separate entries.
func (e *Emitter) Add(t Type, title, systemMsg, message string) Notification {
	now := e.clock.Now()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return Notification{}
	}
	id := now.UnixMilli()
	if id <= e.lastID {
		id = e.lastID + 1
	}
	e.lastID = id

	n := Notification{
		ID:        id,
		Type:      t,
		Title:     title,
		SystemMsg: systemMsg,
		Message:   message,
		CreatedAt: now,
	}
	e.items = append(e.items, n)
	if e.ttl > 0 {
		e.timers[id] = e.clock.AfterFunc(e.ttl, func() { e.beginLeave(id) })
	}
	subs := e.snapshotSubs()
	e.mu.Unlock()

	publish(subs, Change{Kind: ChangeAdded, Notification: n})
	return n
}

func (e *Emitter) beginLeave(id int64) {
	e.mu.Lock()
	idx := e.indexOf(id)
	if e.closed || idx < 0 {
		e.mu.Unlock()
		return
	}
	e.items[idx].Leaving = true
	n := e.items[idx]
	e.timers[id] = e.clock.AfterFunc(e.grace, func() { e.Remove(id) })
	subs := e.snapshotSubs()
	e.mu.Unlock()

	publish(subs, Change{Kind: ChangeLeaving, Notification: n})
}

// Remove drops a notification immediately. It reports whether it was present.
func (e *Emitter) Remove(id int64) bool {
	e.mu.Lock()
	idx := e.indexOf(id)
	if idx < 0 {
		e.mu.Unlock()
		return false
	}
	n := e.items[idx]
	e.items = append(e.items[:idx], e.items[idx+1:]...)
	if t, ok := e.timers[id]; ok {
		t.Stop()
		delete(e.timers, id)
	}
	subs := e.snapshotSubs()
	e.mu.Unlock()

	publish(subs, Change{Kind: ChangeRemoved, Notification: n})
	return true
}

// List returns the current display list in insertion order.
func (e *Emitter) List() []Notification {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Notification, len(e.items))
	copy(out, e.items)
	return out
}

// Subscribe registers fn for display list changes. fn runs outside the
// emitter lock, possibly on a timer goroutine.
func (e *Emitter) Subscribe(fn func(Change)) func() {
	e.mu.Lock()
	e.nextSub++
	id := e.nextSub
	e.subs = append(e.subs, subscriber{id: id, fn: fn})
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, s := range e.subs {
			if s.id == id {
				e.subs = append(e.subs[:i:i], e.subs[i+1:]...)
				return
			}
		}
	}
}

// Close cancels every pending timer and ignores further Adds.
func (e *Emitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	for id, t := range e.timers {
		t.Stop()
		delete(e.timers, id)
	}
	e.subs = nil
}

func (e *Emitter) indexOf(id int64) int {
	for i := range e.items {
		if e.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (e *Emitter) snapshotSubs() []subscriber {
	return append([]subscriber(nil), e.subs...)
}

func publish(subs []subscriber, c Change) {
	for _, s := range subs {
		s.fn(c)
	}
}
