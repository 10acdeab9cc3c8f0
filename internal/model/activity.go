package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Action is the fixed vocabulary of behavioral events recorded during an exam.
type Action string

const (
	ActionSessionInit        Action = "SESSION_INIT"
	ActionDataLoaded         Action = "DATA_LOADED"
	ActionOptionSelected     Action = "OPTION_SELECTED"
	ActionNavigateNext       Action = "NAVIGATE_NEXT"
	ActionNavigatePrevious   Action = "NAVIGATE_PREVIOUS"
	ActionFocusLost          Action = "FOCUS_LOST"
	ActionFocusRegained      Action = "FOCUS_REGAINED"
	ActionVisibilityChange   Action = "VISIBILITY_CHANGE"
	ActionCopyAttempt        Action = "COPY_ATTEMPT"
	ActionPasteAttempt       Action = "PASTE_ATTEMPT"
	ActionRightClick         Action = "RIGHT_CLICK"
	ActionKeyCombo           Action = "KEY_COMBO"
	ActionSubmitInitiated    Action = "EXAM_SUBMIT_INITIATED"
	ActionSubmitSuccess      Action = "EXAM_SUBMIT_SUCCESS"
	ActionSubmitError        Action = "EXAM_SUBMIT_ERROR"
	ActionLoadError          Action = "EXAM_LOAD_ERROR"
	ActionMalpracticeFlagged Action = "MALPRACTICE_FLAGGED"
)

// TimestampLayout matches the browser's Date.toISOString output.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// ActivityEvent is one immutable entry of an activity session.
// Details are flattened next to the core fields on the wire. An event decoded
// from JSON keeps its source document and re-encodes to it unchanged; the typed
// fields are a best-effort view of it.
type ActivityEvent struct {
	Timestamp time.Time
	ElapsedMs int64
	Action    Action
	TestID    string
	Details   map[string]any

	raw json.RawMessage
}

var coreEventKeys = [...]string{"timestamp", "elapsedMs", "action", "testId"}

func (e ActivityEvent) MarshalJSON() ([]byte, error) {
	if e.raw != nil {
		return e.raw, nil
	}

	out := make(map[string]any, len(e.Details)+len(coreEventKeys))
	for k, v := range e.Details {
		out[k] = v
	}
	out["timestamp"] = e.Timestamp.UTC().Format(TimestampLayout)
	out["elapsedMs"] = e.ElapsedMs
	out["action"] = e.Action
	out["testId"] = e.TestID
	return json.Marshal(out)
}

// UnmarshalJSON accepts any JSON value. Core keys of the wrong type leave
// their typed field zero instead of failing the event.
func (e *ActivityEvent) UnmarshalJSON(data []byte) error {
	ev := ActivityEvent{raw: append(json.RawMessage(nil), data...)}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		*e = ev
		return nil
	}

	if v, ok := fields["timestamp"]; ok {
		ev.Timestamp = eventTime(v)
	}
	if v, ok := fields["elapsedMs"]; ok {
		var f float64
		if json.Unmarshal(v, &f) == nil {
			ev.ElapsedMs = int64(f)
		}
	}
	if v, ok := fields["action"]; ok {
		_ = json.Unmarshal(v, &ev.Action)
	}
	if v, ok := fields["testId"]; ok {
		ev.TestID = looseText(v)
	}

	for _, k := range coreEventKeys {
		delete(fields, k)
	}
	if len(fields) > 0 {
		ev.Details = make(map[string]any, len(fields))
		for k, v := range fields {
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				return fmt.Errorf("activity event %s: %w", k, err)
			}
			ev.Details[k] = val
		}
	}

	*e = ev
	return nil
}

// eventTime reads an ISO-8601 string or epoch milliseconds.
func eventTime(v json.RawMessage) time.Time {
	var s string
	if json.Unmarshal(v, &s) == nil {
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}
		}
		return ts
	}
	var ms float64
	if json.Unmarshal(v, &ms) == nil {
		return time.UnixMilli(int64(ms)).UTC()
	}
	return time.Time{}
}

// looseText renders a JSON scalar the way the browser client stringifies
// identifiers. Falsy values (null, false, 0, "") become "".
func looseText(v json.RawMessage) string {
	v = json.RawMessage(bytes.TrimSpace(v))
	if len(v) == 0 {
		return ""
	}
	switch v[0] {
	case '"':
		var s string
		if json.Unmarshal(v, &s) != nil {
			return ""
		}
		return s
	case 'n', 'f':
		return ""
	case 't':
		return "true"
	case '{', '[':
		return string(v)
	}
	var f float64
	if json.Unmarshal(v, &f) != nil || f == 0 {
		return ""
	}
	return string(v)
}

// Detail returns a detail field, or nil if absent.
func (e ActivityEvent) Detail(key string) any {
	if e.Details == nil {
		return nil
	}
	return e.Details[key]
}

// ActivitySession is the append-only record of one candidate's events during one
// exam attempt. It is persisted once and never updated.
type ActivitySession struct {
	ID        uuid.UUID       `json:"id"`
	SessionID string          `json:"sessionId"`
	TestID    string          `json:"testId"`
	UserID    *string         `json:"userId"`
	LogCount  int             `json:"logCount"`
	Logs      []ActivityEvent `json:"logs"`
	CreatedAt time.Time       `json:"createdAt"`
}

// SaveActivityLogsRequest is the legacy ingest payload. Identifiers may arrive
// as strings or numbers; falsy values decode to "".
type SaveActivityLogsRequest struct {
	TestID    string          `json:"testId"`
	UserID    string          `json:"userId"`
	SessionID string          `json:"sessionId"`
	Logs      []ActivityEvent `json:"logs"`
}

func (r *SaveActivityLogsRequest) UnmarshalJSON(data []byte) error {
	var wire struct {
		TestID    json.RawMessage `json:"testId"`
		UserID    json.RawMessage `json:"userId"`
		SessionID json.RawMessage `json:"sessionId"`
		Logs      []ActivityEvent `json:"logs"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("activity logs request: %w", err)
	}
	*r = SaveActivityLogsRequest{
		TestID:    looseText(wire.TestID),
		UserID:    looseText(wire.UserID),
		SessionID: looseText(wire.SessionID),
		Logs:      wire.Logs,
	}
	return nil
}
