package handler

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/EternisAI/blinkup-bridge/internal/api/http/dto"
	"github.com/EternisAI/blinkup-bridge/internal/blinkup"
	"github.com/EternisAI/blinkup-bridge/internal/simulator"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type MockCoordinator struct {
	mock.Mock
}

func (m *MockCoordinator) Start(ctx context.Context, apiKey string, opts blinkup.Options, ch blinkup.Channel) (string, error) {
	args := m.Called(apiKey, opts)
	ch.Close()
	return args.String(0), args.Error(1)
}

func (m *MockCoordinator) Abort() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockCoordinator) ClearStoredData(ctx context.Context) blinkup.Result {
	args := m.Called()
	return args.Get(0).(blinkup.Result)
}

func (m *MockCoordinator) Status() blinkup.Snapshot {
	args := m.Called()
	return args.Get(0).(blinkup.Snapshot)
}

func setupBlinkUpRouter(c Coordinator) *gin.Engine {
	h := NewBlinkUpHandler(c)
	r := gin.New()
	r.POST("/blinkup/start", h.Start)
	r.POST("/blinkup/abort", h.Abort)
	r.POST("/blinkup/clear", h.Clear)
	r.GET("/blinkup/status", h.Status)
	r.GET("/health", NewHealthHandler(c).Check)
	return r
}

func postJSON(r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req, _ := http.NewRequest("POST", path, bytes.NewBuffer(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// parseEvents decodes the data lines of a server-sent event stream.
func parseEvents(t *testing.T, body string) []blinkup.Message {
	t.Helper()

	var msgs []blinkup.Message
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		var msg blinkup.Message
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data:")), &msg))
		msgs = append(msgs, msg)
	}
	require.NoError(t, scanner.Err())
	return msgs
}

func payload(t *testing.T, msg blinkup.Message) blinkup.Result {
	t.Helper()

	var r blinkup.Result
	require.NoError(t, json.Unmarshal(msg.Payload, &r))
	return r
}

func TestStartBlinkUp_StreamsResults(t *testing.T) {
	sdk := simulator.New(simulator.Config{StepDelay: time.Millisecond})
	r := setupBlinkUpRouter(blinkup.NewCoordinator(sdk, nil, blinkup.Config{}))

	w := postJSON(r, "/blinkup/start", dto.StartBlinkUpRequest{APIKey: "key1", TimeoutMs: 1000})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")
	callbackID := w.Header().Get(callbackIDHeader)
	assert.NotEmpty(t, callbackID)

	msgs := parseEvents(t, w.Body.String())
	require.Len(t, msgs, 2)
	for _, msg := range msgs {
		assert.Equal(t, callbackID, msg.CallbackID)
	}

	assert.True(t, msgs[0].KeepCallback)
	assert.Equal(t, blinkup.StateStarted, payload(t, msgs[0]).State)

	assert.False(t, msgs[1].KeepCallback)
	assert.Equal(t, blinkup.StatusOK, msgs[1].Status)
	done := payload(t, msgs[1])
	assert.Equal(t, blinkup.StateCompleted, done.State)
	require.NotNil(t, done.DeviceInfo)
}

func TestStartBlinkUp_MissingAPIKey(t *testing.T) {
	sdk := simulator.New(simulator.Config{StepDelay: time.Millisecond})
	r := setupBlinkUpRouter(blinkup.NewCoordinator(sdk, nil, blinkup.Config{}))

	w := postJSON(r, "/blinkup/start", dto.StartBlinkUpRequest{})

	assert.Equal(t, http.StatusOK, w.Code)
	msgs := parseEvents(t, w.Body.String())
	require.Len(t, msgs, 1)
	assert.Equal(t, blinkup.StatusError, msgs[0].Status)

	result := payload(t, msgs[0])
	assert.Equal(t, blinkup.ErrorTypePlugin, result.ErrorType)
	assert.Equal(t, blinkup.CodeAPIKeyMissing, result.ErrorCode)
}

func TestStartBlinkUp_InvalidBody(t *testing.T) {
	r := setupBlinkUpRouter(&MockCoordinator{})

	req, _ := http.NewRequest("POST", "/blinkup/start", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var result blinkup.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, blinkup.CodeInvalidArguments, result.ErrorCode)
}

func TestStartBlinkUp_PassesOptions(t *testing.T) {
	m := &MockCoordinator{}
	want := blinkup.Options{
		PlanID:          "dev-plan",
		TimeoutMs:       5000,
		IsInDevelopment: true,
		Strings:         map[string]string{"globalTitle": "Connect"},
	}
	m.On("Start", "key1", want).Return("cb-1", nil)
	r := setupBlinkUpRouter(m)

	w := postJSON(r, "/blinkup/start", dto.StartBlinkUpRequest{
		APIKey:          "key1",
		PlanID:          "dev-plan",
		TimeoutMs:       5000,
		IsInDevelopment: true,
		Strings:         map[string]string{"globalTitle": "Connect"},
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cb-1", w.Header().Get(callbackIDHeader))
	assert.Empty(t, parseEvents(t, w.Body.String()))
	m.AssertExpectations(t)
}

func TestAbortBlinkUp(t *testing.T) {
	for _, aborted := range []bool{true, false} {
		m := &MockCoordinator{}
		m.On("Abort").Return(aborted)
		r := setupBlinkUpRouter(m)

		w := postJSON(r, "/blinkup/abort", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp dto.AbortBlinkUpResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Acknowledged)
		assert.Equal(t, aborted, resp.Aborted)
	}
}

func TestAbortBlinkUp_EndsStream(t *testing.T) {
	sdk := simulator.New(simulator.Config{StepDelay: time.Hour})
	c := blinkup.NewCoordinator(sdk, nil, blinkup.Config{})
	r := setupBlinkUpRouter(c)

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- postJSON(r, "/blinkup/start", dto.StartBlinkUpRequest{APIKey: "key1"})
	}()

	require.Eventually(t, func() bool { return c.Status().Active }, time.Second, 5*time.Millisecond)

	w := postJSON(r, "/blinkup/abort", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	select {
	case start := <-done:
		assert.Empty(t, parseEvents(t, start.Body.String()))
	case <-time.After(2 * time.Second):
		t.Fatal("start stream did not end after abort")
	}
}

func TestClearBlinkUpData(t *testing.T) {
	m := &MockCoordinator{}
	m.On("ClearStoredData").Return(blinkup.ClearedResult(true)).Once()
	m.On("ClearStoredData").Return(blinkup.SDKErrorResult(&blinkup.SDKError{Code: 52, Message: "keychain"})).Once()
	r := setupBlinkUpRouter(m)

	w := postJSON(r, "/blinkup/clear", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var result blinkup.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, blinkup.StatusClearWifiAndCacheComplete, result.StatusCode)

	w = postJSON(r, "/blinkup/clear", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, blinkup.ErrorTypeSDK, result.ErrorType)
	m.AssertExpectations(t)
}

func TestBlinkUpStatusAndHealth(t *testing.T) {
	started := time.Now()
	m := &MockCoordinator{}
	m.On("Status").Return(blinkup.Snapshot{
		Active:     true,
		Phase:      blinkup.PhasePolling,
		CallbackID: "cb-7",
		StartedAt:  started,
	})
	r := setupBlinkUpRouter(m)

	req, _ := http.NewRequest("GET", "/blinkup/status", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp dto.BlinkUpStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Active)
	assert.Equal(t, "polling", resp.Phase)
	assert.Equal(t, "cb-7", resp.CallbackID)
	require.NotNil(t, resp.StartedAt)

	req, _ = http.NewRequest("GET", "/health", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var health dto.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "busy", health.BlinkUp)
}
