package intercept

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edquest/proctor-backend/internal/clock"
	"github.com/edquest/proctor-backend/internal/dom"
	"github.com/edquest/proctor-backend/internal/model"
	"github.com/edquest/proctor-backend/internal/notify"
)

type logEntry struct {
	action  model.Action
	details map[string]any
}

type fakeLogger struct{ entries []logEntry }

func (f *fakeLogger) Log(a model.Action, d map[string]any) {
	f.entries = append(f.entries, logEntry{a, d})
}

func setup(t *testing.T) (*dom.Document, *fakeLogger, *notify.Emitter, *Interceptor) {
	t.Helper()
	doc := dom.NewDocument()
	logs := &fakeLogger{}
	emitter := notify.New(clock.NewFake(time.Unix(0, 0)))
	i := New(doc, logs, emitter, func() int { return 4 }, nil)
	i.Start()
	t.Cleanup(i.Stop)
	return doc, logs, emitter, i
}

func TestCopyIsBlockedLoggedAndNotified(t *testing.T) {
	doc, logs, emitter, _ := setup(t)

	allowed := doc.Dispatch(&dom.Event{Type: dom.EventCopy})

	assert.False(t, allowed)
	require.Len(t, logs.entries, 1)
	assert.Equal(t, model.ActionCopyAttempt, logs.entries[0].action)
	assert.Equal(t, 4, logs.entries[0].details["currentQuestion"])
	require.Len(t, emitter.List(), 1)
	assert.Equal(t, noticeCopy, emitter.List()[0].Message)
}

func TestCutSetsVariantFlag(t *testing.T) {
	doc, logs, _, _ := setup(t)
	doc.Dispatch(&dom.Event{Type: dom.EventCut})

	require.Len(t, logs.entries, 1)
	assert.Equal(t, model.ActionCopyAttempt, logs.entries[0].action)
	assert.Equal(t, true, logs.entries[0].details["isCut"])
}

func TestRightClickAndDrag(t *testing.T) {
	doc, logs, emitter, _ := setup(t)

	assert.False(t, doc.Dispatch(&dom.Event{Type: dom.EventContextMenu}))
	assert.False(t, doc.Dispatch(&dom.Event{Type: dom.EventDragStart}))

	require.Len(t, logs.entries, 1)
	assert.Equal(t, model.ActionRightClick, logs.entries[0].action)
	assert.Empty(t, emitter.List())
}

func TestKeyPolicyTable(t *testing.T) {
	tests := []struct {
		name      string
		ev        dom.Event
		prevent   bool
		logged    bool
		notice    string
		clipboard bool
	}{
		{"print screen", dom.Event{Key: "PrintScreen"}, true, true, noticeScreen, true},
		{"f12", dom.Event{Key: "F12"}, true, true, noticeDevTools, false},
		{"ctrl+c", dom.Event{Key: "c", CtrlKey: true}, true, true, noticeCopy, false},
		{"cmd+v", dom.Event{Key: "v", MetaKey: true}, true, true, noticePaste, false},
		{"ctrl+x", dom.Event{Key: "x", CtrlKey: true}, true, true, noticeCopy, false},
		{"ctrl+a", dom.Event{Key: "a", CtrlKey: true}, true, true, noticeSelectAll, false},
		{"ctrl+p", dom.Event{Key: "P", CtrlKey: true}, true, true, noticePrint, false},
		{"ctrl+s", dom.Event{Key: "s", CtrlKey: true}, true, true, noticeSave, false},
		{"ctrl+u", dom.Event{Key: "u", CtrlKey: true}, true, true, noticeSource, false},
		{"ctrl+shift+i", dom.Event{Key: "I", CtrlKey: true, ShiftKey: true}, true, true, noticeDevTools, false},
		{"cmd+shift+j", dom.Event{Key: "j", MetaKey: true, ShiftKey: true}, true, true, noticeDevTools, false},
		{"ctrl+shift+c", dom.Event{Key: "C", CtrlKey: true, ShiftKey: true}, true, true, noticeDevTools, false},
		{"ctrl+z logs only", dom.Event{Key: "z", CtrlKey: true}, false, true, "", false},
		{"plain key", dom.Event{Key: "a"}, false, false, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, logs, emitter, _ := setup(t)
			ev := tt.ev
			ev.Type = dom.EventKeyDown

			allowed := doc.Dispatch(&ev)

			assert.Equal(t, tt.prevent, !allowed)
			assert.Equal(t, tt.clipboard, ev.ClipboardClearRequested())
			if tt.logged {
				require.Len(t, logs.entries, 1)
				assert.Equal(t, model.ActionKeyCombo, logs.entries[0].action)
			} else {
				assert.Empty(t, logs.entries)
			}
			if tt.notice != "" {
				require.Len(t, emitter.List(), 1)
				assert.Equal(t, tt.notice, emitter.List()[0].Message)
			} else {
				assert.Empty(t, emitter.List())
			}
		})
	}
}

func TestStopRemovesHandlersAndRestoresSelection(t *testing.T) {
	doc, logs, _, i := setup(t)
	assert.False(t, doc.UserSelect())

	i.Stop()
	i.Stop()

	assert.True(t, doc.UserSelect())
	assert.True(t, doc.Dispatch(&dom.Event{Type: dom.EventCopy}))
	assert.Empty(t, logs.entries)
	for _, et := range interceptedTypes {
		assert.Zero(t, doc.ListenerCount(et))
	}
}

func TestEvaluateIgnoresFocusEvents(t *testing.T) {
	assert.Equal(t, Decision{}, Evaluate(&dom.Event{Type: dom.EventBlur}))
}
