package tests

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/EternisAI/blinkup-bridge/internal/api/http/dto"
	"github.com/EternisAI/blinkup-bridge/internal/blinkup"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const BridgeKey = "system-test-bridge-key"

func TestHealthCheck(t *testing.T, router *gin.Engine) {
	rr := doJSON(router, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp dto.HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "idle", resp.BlinkUp)
}

func TestBridgeKey(t *testing.T, router *gin.Engine) {
	t.Run("missing key", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/blinkup/status", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("health needs no key", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/health", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

// TestBlinkUpFlow provisions repeatedly and checks plan id reuse across
// attempts and after a clear.
func TestBlinkUpFlow(t *testing.T, router *gin.Engine) {
	var planID string

	t.Run("first provisioning", func(t *testing.T) {
		results := start(t, router, dto.StartBlinkUpRequest{APIKey: "key1", TimeoutMs: 2000})
		require.Len(t, results, 2)
		assert.Equal(t, blinkup.StateStarted, results[0].State)
		assert.Equal(t, blinkup.StatusGatheringInfo, results[0].StatusCode)

		done := results[1]
		assert.Equal(t, blinkup.StateCompleted, done.State)
		assert.Equal(t, blinkup.StatusDeviceConnected, done.StatusCode)
		require.NotNil(t, done.DeviceInfo)
		assert.NotEmpty(t, done.DeviceInfo.DeviceID)
		assert.NotEmpty(t, done.DeviceInfo.PlanID)
		planID = done.DeviceInfo.PlanID
	})

	t.Run("second provisioning reuses plan", func(t *testing.T) {
		results := start(t, router, dto.StartBlinkUpRequest{APIKey: "key1"})
		require.Len(t, results, 2)
		require.NotNil(t, results[1].DeviceInfo)
		assert.Equal(t, planID, results[1].DeviceInfo.PlanID)
	})

	t.Run("developer plan wins", func(t *testing.T) {
		results := start(t, router, dto.StartBlinkUpRequest{
			APIKey:          "key1",
			PlanID:          "developer-plan",
			IsInDevelopment: true,
		})
		require.Len(t, results, 2)
		require.NotNil(t, results[1].DeviceInfo)
		assert.Equal(t, "developer-plan", results[1].DeviceInfo.PlanID)
	})

	t.Run("clear", func(t *testing.T) {
		rr := doJSON(router, "POST", "/blinkup/clear", nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var result blinkup.Result
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
		assert.Equal(t, blinkup.StatusClearWifiAndCacheComplete, result.StatusCode)

		// a cleared cache means the next attempt gets a fresh plan
		results := start(t, router, dto.StartBlinkUpRequest{APIKey: "key1"})
		require.Len(t, results, 2)
		require.NotNil(t, results[1].DeviceInfo)
		fresh := results[1].DeviceInfo.PlanID
		assert.NotEqual(t, "developer-plan", fresh)
		assert.NotEqual(t, planID, fresh)
	})

	t.Run("idle after all attempts", func(t *testing.T) {
		rr := doJSON(router, "GET", "/blinkup/status", nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp dto.BlinkUpStatusResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.False(t, resp.Active)
		assert.Nil(t, resp.StartedAt)
	})
}

func TestInvalidStart(t *testing.T, router *gin.Engine) {
	results := start(t, router, dto.StartBlinkUpRequest{
		APIKey:  "key1",
		Strings: map[string]string{"notAKey": "x"},
	})
	require.Len(t, results, 1)
	assert.Equal(t, blinkup.ErrorTypePlugin, results[0].ErrorType)
	assert.Equal(t, blinkup.CodeInvalidArguments, results[0].ErrorCode)
}

// TestPlanCache exercises a PlanCache implementation end to end.
func TestPlanCache(t *testing.T, cache blinkup.PlanCache) {
	ctx := context.Background()

	require.NoError(t, cache.Clear(ctx))
	_, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Put(ctx, "plan-a"))
	require.NoError(t, cache.Put(ctx, "plan-b"))
	planID, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "plan-b", planID)

	require.NoError(t, cache.Clear(ctx))
	require.NoError(t, cache.Clear(ctx))
	_, ok, err = cache.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func start(t *testing.T, router *gin.Engine, body dto.StartBlinkUpRequest) []blinkup.Result {
	t.Helper()

	rr := doJSON(router, "POST", "/blinkup/start", body)
	require.Equal(t, http.StatusOK, rr.Code)

	var results []blinkup.Result
	scanner := bufio.NewScanner(strings.NewReader(rr.Body.String()))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		var msg blinkup.Message
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data:")), &msg))
		assert.Equal(t, rr.Header().Get("X-Callback-Id"), msg.CallbackID)

		var result blinkup.Result
		require.NoError(t, json.Unmarshal(msg.Payload, &result))
		results = append(results, result)
	}
	return results
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var b []byte
	if body != nil {
		b, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", BridgeKey)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}
