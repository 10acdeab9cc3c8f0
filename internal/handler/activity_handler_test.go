package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edquest/proctor-backend/internal/service"
)

func newActivityRouter(f *fixture, maxBytes int64) *gin.Engine {
	h := NewActivityHandler(f.activity, maxBytes, zerolog.Nop())
	r := gin.New()
	r.POST("/api/activity-logs", h.SaveLogs)
	r.GET("/api/activity-logs/:testId", h.ListByTest)
	r.GET("/api/health", Health)
	return r
}

const sampleLogs = `{
	"testId": "physics-101",
	"sessionId": "session_1747038600000_k3j9x2abc",
	"logs": [
		{"timestamp": "2026-05-12T08:30:00.000Z", "elapsedMs": 0, "action": "SESSION_INIT", "testId": "physics-101", "userId": "anonymous"},
		{"timestamp": "2026-05-12T08:30:04.250Z", "elapsedMs": 4250, "action": "COPY_ATTEMPT", "testId": "physics-101", "currentQuestion": 0}
	]
}`

func TestSaveLogsCreatesSession(t *testing.T) {
	f := newFixture(t)
	r := newActivityRouter(f, 1<<20)

	w := doRequest(r, http.MethodPost, "/api/activity-logs", sampleLogs)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Activity logs saved successfully", body["message"])

	stored := f.activityStore.stored()
	require.Len(t, stored, 1)
	assert.Equal(t, stored[0].ID.String(), body["insertedId"])
	assert.Equal(t, "session_1747038600000_k3j9x2abc", stored[0].SessionID)
	require.NotNil(t, stored[0].UserID)
	assert.Equal(t, service.AnonymousUserID, *stored[0].UserID)
	assert.Equal(t, 2, stored[0].LogCount)
	assert.Equal(t, float64(0), stored[0].Logs[1].Detail("currentQuestion"))
}

func TestSaveLogsRejectsInvalidPayload(t *testing.T) {
	f := newFixture(t)
	r := newActivityRouter(f, 1<<20)

	tests := []struct {
		name string
		body string
	}{
		{"missing testId", `{"logs":[{"action":"SESSION_INIT"}]}`},
		{"empty logs", `{"testId":"physics-101","logs":[]}`},
		{"logs not an array", `{"testId":"physics-101","logs":"nope"}`},
		{"malformed json", `{"testId":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(r, http.MethodPost, "/api/activity-logs", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.JSONEq(t, `{"error":"Invalid payload. Required: testId, logs[]"}`, w.Body.String())
		})
	}
	assert.Empty(t, f.activityStore.stored())
}

func TestSaveLogsStorageFailure(t *testing.T) {
	f := newFixture(t)
	f.activityStore.err = errStorage
	r := newActivityRouter(f, 1<<20)

	w := doRequest(r, http.MethodPost, "/api/activity-logs", sampleLogs)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Failed to save activity logs"}`, w.Body.String())
}

func TestSaveLogsBodyLimit(t *testing.T) {
	f := newFixture(t)
	r := newActivityRouter(f, 64)

	w := doRequest(r, http.MethodPost, "/api/activity-logs", sampleLogs+strings.Repeat(" ", 128))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Empty(t, f.activityStore.stored())
}

func TestListByTestNewestFirst(t *testing.T) {
	f := newFixture(t)
	r := newActivityRouter(f, 1<<20)

	for _, sid := range []string{"first", "second"} {
		body := `{"testId":"physics-101","sessionId":"` + sid + `","logs":[{"action":"SESSION_INIT"}]}`
		require.Equal(t, http.StatusCreated, doRequest(r, http.MethodPost, "/api/activity-logs", body).Code)
	}
	other := `{"testId":"chem-200","logs":[{"action":"SESSION_INIT"}]}`
	require.Equal(t, http.StatusCreated, doRequest(r, http.MethodPost, "/api/activity-logs", other).Code)

	w := doRequest(r, http.MethodGet, "/api/activity-logs/physics-101", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		TestID string `json:"testId"`
		Count  int    `json:"count"`
		Logs   []struct {
			SessionID string `json:"sessionId"`
			UserID    string `json:"userId"`
		} `json:"logs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "physics-101", body.TestID)
	assert.Equal(t, 2, body.Count)
	require.Len(t, body.Logs, 2)
	assert.Equal(t, "second", body.Logs[0].SessionID)
	assert.Equal(t, "first", body.Logs[1].SessionID)
	assert.Equal(t, "anonymous", body.Logs[0].UserID)
}

func TestListByTestUnknownIsEmpty(t *testing.T) {
	f := newFixture(t)
	w := doRequest(newActivityRouter(f, 0), http.MethodGet, "/api/activity-logs/nothing", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"testId":"nothing","count":0,"logs":[]}`, w.Body.String())
}

func TestListByTestStorageFailure(t *testing.T) {
	f := newFixture(t)
	f.activityStore.err = errStorage
	w := doRequest(newActivityRouter(f, 0), http.MethodGet, "/api/activity-logs/physics-101", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Failed to fetch activity logs"}`, w.Body.String())
}

func TestHealth(t *testing.T) {
	w := doRequest(newActivityRouter(newFixture(t), 0), http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	_, err := time.Parse(time.RFC3339Nano, body["timestamp"])
	assert.NoError(t, err)
}

func TestSaveLogsStoresEntriesVerbatim(t *testing.T) {
	f := newFixture(t)
	r := newActivityRouter(f, 1<<20)

	body := `{"testId":"physics-101","logs":[
		{"action":"COPY_ATTEMPT","currentQuestion":2},
		{"timestamp":1747038600000,"action":"FOCUS_LOST","testId":101}
	]}`
	require.Equal(t, http.StatusCreated, doRequest(r, http.MethodPost, "/api/activity-logs", body).Code)

	w := doRequest(r, http.MethodGet, "/api/activity-logs/physics-101", "")
	require.Equal(t, http.StatusOK, w.Code)

	var list struct {
		Logs []struct {
			Logs []json.RawMessage `json:"logs"`
		} `json:"logs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Logs, 1)
	require.Len(t, list.Logs[0].Logs, 2)
	assert.JSONEq(t, `{"action":"COPY_ATTEMPT","currentQuestion":2}`, string(list.Logs[0].Logs[0]))
	assert.JSONEq(t, `{"timestamp":1747038600000,"action":"FOCUS_LOST","testId":101}`, string(list.Logs[0].Logs[1]))

	stored := f.activityStore.stored()
	require.Len(t, stored, 1)
	assert.Equal(t, "101", stored[0].Logs[1].TestID)
	assert.True(t, stored[0].Logs[1].Timestamp.Equal(time.UnixMilli(1747038600000)))
}

func TestSaveLogsAcceptsLooseIdentifiers(t *testing.T) {
	f := newFixture(t)
	r := newActivityRouter(f, 1<<20)

	w := doRequest(r, http.MethodPost, "/api/activity-logs", `{"testId":42,"userId":7,"logs":[{"action":"SESSION_INIT"}]}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doRequest(r, http.MethodPost, "/api/activity-logs", `{"testId":"  ","logs":[{"action":"SESSION_INIT"}]}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doRequest(r, http.MethodPost, "/api/activity-logs", `{"testId":0,"logs":[{"action":"SESSION_INIT"}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	stored := f.activityStore.stored()
	require.Len(t, stored, 2)
	assert.Equal(t, "42", stored[0].TestID)
	require.NotNil(t, stored[0].UserID)
	assert.Equal(t, "7", *stored[0].UserID)
	assert.Equal(t, "  ", stored[1].TestID)

	w = doRequest(r, http.MethodGet, "/api/activity-logs/42", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)
}
