package focus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edquest/proctor-backend/internal/dom"
	"github.com/edquest/proctor-backend/internal/model"
)

type entry struct {
	action  model.Action
	details map[string]any
}

type fakeLogger struct{ entries []entry }

func (f *fakeLogger) Log(a model.Action, d map[string]any) {
	f.entries = append(f.entries, entry{a, d})
}

func start(t *testing.T) (*dom.Document, *fakeLogger, *Monitor, *[]bool) {
	t.Helper()
	doc := dom.NewDocument()
	logs := &fakeLogger{}
	m := New(doc, logs, func() int { return 2 })
	var overlay []bool
	m.OnOverlay = func(v bool) { overlay = append(overlay, v) }
	m.Start()
	t.Cleanup(m.Stop)
	return doc, logs, m, &overlay
}

func TestBlurThenFocusLogsInOrder(t *testing.T) {
	doc, logs, m, overlay := start(t)

	doc.Dispatch(&dom.Event{Type: dom.EventBlur})
	assert.True(t, m.OverlayShown())
	doc.Dispatch(&dom.Event{Type: dom.EventFocus})

	require.Len(t, logs.entries, 2)
	assert.Equal(t, model.ActionFocusLost, logs.entries[0].action)
	assert.Equal(t, model.ActionFocusRegained, logs.entries[1].action)
	assert.Equal(t, 2, logs.entries[0].details["currentQuestion"])
	assert.Equal(t, []bool{true, false}, *overlay)
	assert.False(t, m.OverlayShown())
}

func TestVisibilityDoesNotGateOverlay(t *testing.T) {
	doc, logs, m, overlay := start(t)

	doc.Dispatch(&dom.Event{Type: dom.EventVisibilityChange, Hidden: true})
	assert.False(t, m.Visible())
	assert.True(t, m.Focused())
	doc.Dispatch(&dom.Event{Type: dom.EventVisibilityChange, Hidden: false})

	require.Len(t, logs.entries, 2)
	assert.Equal(t, true, logs.entries[0].details["hidden"])
	assert.Equal(t, false, logs.entries[1].details["hidden"])
	assert.Empty(t, *overlay)
	assert.True(t, m.Visible())
}

func TestEveryTransitionIsLogged(t *testing.T) {
	doc, logs, _, _ := start(t)
	for i := 0; i < 3; i++ {
		doc.Dispatch(&dom.Event{Type: dom.EventBlur})
		doc.Dispatch(&dom.Event{Type: dom.EventFocus})
	}
	assert.Len(t, logs.entries, 6)
}

func TestSuspiciousReasons(t *testing.T) {
	doc, _, m, _ := start(t)
	var reasons []string
	m.OnSuspicious = func(r string) { reasons = append(reasons, r) }

	doc.Dispatch(&dom.Event{Type: dom.EventBlur})
	doc.Dispatch(&dom.Event{Type: dom.EventVisibilityChange, Hidden: true})
	doc.Dispatch(&dom.Event{Type: dom.EventVisibilityChange, Hidden: false})

	assert.Equal(t, []string{ReasonFocusLost, ReasonTabSwitch}, reasons)
}

func TestStopDetachesAndClearsOverlay(t *testing.T) {
	doc, logs, m, overlay := start(t)
	doc.Dispatch(&dom.Event{Type: dom.EventBlur})

	m.Stop()
	doc.Dispatch(&dom.Event{Type: dom.EventFocus})

	assert.Len(t, logs.entries, 1)
	assert.Equal(t, []bool{true, false}, *overlay)
	assert.Zero(t, doc.ListenerCount(dom.EventBlur))
}
