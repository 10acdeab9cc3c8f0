// Package intercept blocks clipboard, context-menu, drag and shortcut input
// during an exam and records each attempt.
package intercept

import (
	"strings"

	"github.com/edquest/proctor-backend/internal/dom"
	"github.com/edquest/proctor-backend/internal/model"
)

// Decision is the outcome of evaluating one input event against the policy table.
type Decision struct {
	Prevent        bool
	Log            bool
	Action         model.Action
	Details        map[string]any
	Notice         string
	ClearClipboard bool
}

const (
	noticeCopy      = "Copy is disabled during the exam."
	noticePaste     = "Paste is disabled during the exam."
	noticeScreen    = "Screenshots disabled during the exam."
	noticeDevTools  = "Developer tools disabled during the exam."
	noticePrint     = "Printing is disabled during the exam."
	noticeSource    = "Viewing the page source is disabled during the exam."
	noticeSelectAll = "Select all is disabled during the exam."
	noticeSave      = "Saving the page is disabled during the exam."
)

var blockedCombos = map[string]string{
	"c": noticeCopy,
	"x": noticeCopy,
	"v": noticePaste,
	"a": noticeSelectAll,
	"p": noticePrint,
	"s": noticeSave,
	"u": noticeSource,
}

var devToolsCombos = map[string]bool{"i": true, "j": true, "c": true}

// Evaluate maps an input event to its policy decision. Event types outside
// the interceptor's scope yield the zero Decision.
func Evaluate(ev *dom.Event) Decision {
	switch ev.Type {
	case dom.EventCopy:
		return Decision{Prevent: true, Log: true, Action: model.ActionCopyAttempt, Notice: noticeCopy}
	case dom.EventCut:
		return Decision{
			Prevent: true, Log: true, Action: model.ActionCopyAttempt, Notice: noticeCopy,
			Details: map[string]any{"isCut": true},
		}
	case dom.EventPaste:
		return Decision{Prevent: true, Log: true, Action: model.ActionPasteAttempt, Notice: noticePaste}
	case dom.EventContextMenu:
		return Decision{Prevent: true, Log: true, Action: model.ActionRightClick}
	case dom.EventDragStart:
		return Decision{Prevent: true}
	case dom.EventKeyDown:
		return evaluateKey(ev)
	}
	return Decision{}
}

func evaluateKey(ev *dom.Event) Decision {
	switch ev.Key {
	case "PrintScreen":
		return Decision{
			Prevent: true, Log: true, Action: model.ActionKeyCombo, Notice: noticeScreen,
			Details: map[string]any{"key": ev.Key}, ClearClipboard: true,
		}
	case "F12":
		return Decision{
			Prevent: true, Log: true, Action: model.ActionKeyCombo, Notice: noticeDevTools,
			Details: map[string]any{"key": ev.Key},
		}
	}

	if !ev.Modifier() {
		return Decision{}
	}

	key := strings.ToLower(ev.Key)
	details := map[string]any{"key": key, "combo": comboLabel(ev, key)}

	if ev.ShiftKey && devToolsCombos[key] {
		return Decision{Prevent: true, Log: true, Action: model.ActionKeyCombo, Notice: noticeDevTools, Details: details}
	}
	if notice, ok := blockedCombos[key]; ok {
		return Decision{Prevent: true, Log: true, Action: model.ActionKeyCombo, Notice: notice, Details: details}
	}
	return Decision{Log: true, Action: model.ActionKeyCombo, Details: details}
}

func comboLabel(ev *dom.Event, key string) string {
	var b strings.Builder
	if ev.MetaKey {
		b.WriteString("Meta+")
	}
	if ev.CtrlKey {
		b.WriteString("Ctrl+")
	}
	if ev.ShiftKey {
		b.WriteString("Shift+")
	}
	b.WriteString(strings.ToUpper(key))
	return b.String()
}
