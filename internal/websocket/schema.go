package websocket

import (
	"encoding/json"

	"github.com/edquest/proctor-backend/internal/dom"
	"github.com/edquest/proctor-backend/internal/notify"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionDOMEvent     Action = "dom_event"
	ActionFrame        Action = "frame"
	ActionSelectOption Action = "select_option"
	ActionNavigate     Action = "navigate"
	ActionDataLoaded   Action = "data_loaded"
	ActionLoadError    Action = "load_error"
	ActionSubmit       Action = "submit"
	ActionPing         Action = "ping"
)

// Navigation directions.
const (
	DirectionNext     = "next"
	DirectionPrevious = "previous"
)

// RequestPayload is every client message. Fields not used by an action are omitted.
// Frame stays raw until the frame action decodes it, so a malformed face
// result fails that frame only.
type RequestPayload struct {
	Action        Action          `json:"action"`
	Event         *dom.Event      `json:"event,omitempty"`
	Frame         json.RawMessage `json:"frame,omitempty"`
	QuestionIndex *int            `json:"question_index,omitempty"`
	OptionIndex   *int            `json:"option_index,omitempty"`
	Direction     string          `json:"direction,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventReady        Event = "ready"
	EventDOMResult    Event = "dom_result"
	EventNotification Event = "notification"
	EventOverlay      Event = "overlay"
	EventFlash        Event = "flash"
	EventQuestion     Event = "question"
	EventSuccess      Event = "success"
	EventSubmitted    Event = "submitted"
	EventError        Event = "error"
	EventPong         Event = "pong"
)

type ReadyResponse struct {
	Event           Event  `json:"event"`
	SessionID       string `json:"session_id"`
	TestID          string `json:"test_id"`
	QuestionCount   int    `json:"question_count"`
	CurrentQuestion int    `json:"current_question"`
}

// DOMResultResponse tells the client whether to cancel the event's default action.
type DOMResultResponse struct {
	Event          Event         `json:"event"`
	Type           dom.EventType `json:"type"`
	Prevented      bool          `json:"prevented"`
	ClearClipboard bool          `json:"clear_clipboard"`
}

type NotificationResponse struct {
	Event        Event               `json:"event"`
	Kind         notify.ChangeKind   `json:"kind"`
	Notification notify.Notification `json:"notification"`
}

type OverlayResponse struct {
	Event   Event `json:"event"`
	Visible bool  `json:"visible"`
}

type FlashResponse struct {
	Event    Event `json:"event"`
	Flashing bool  `json:"flashing"`
}

type QuestionResponse struct {
	Event  Event  `json:"event"`
	Index  int    `json:"index"`
	Answer string `json:"answer,omitempty"`
}

type SuccessResponse struct {
	Event  Event  `json:"event"`
	Status string `json:"status"`
}

type SubmittedResponse struct {
	Event     Event   `json:"event"`
	Status    string  `json:"status"`
	Score     float64 `json:"score"`
	Persisted bool    `json:"persisted"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
