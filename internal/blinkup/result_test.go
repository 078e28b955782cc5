package blinkup

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func marshalToMap(t *testing.T, r Result) map[string]any {
	t.Helper()

	b, err := json.Marshal(r)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	return m
}

func TestResultJSON_ErrorFieldsOnlyOnError(t *testing.T) {
	m := marshalToMap(t, SDKErrorResult(&SDKError{Code: 0, Message: ""}))
	assert.Equal(t, "Error", m["state"])
	assert.Equal(t, float64(StatusFailed), m["statusCode"])
	assert.Equal(t, "SdkError", m["errorType"])
	// a zero code is still a code
	assert.Equal(t, float64(0), m["errorCode"])
	assert.NotContains(t, m, "errorMsg")
	assert.NotContains(t, m, "deviceInfo")

	m = marshalToMap(t, StartedResult())
	assert.Equal(t, "Started", m["state"])
	assert.NotContains(t, m, "errorType")
	assert.NotContains(t, m, "errorCode")
	assert.NotContains(t, m, "deviceInfo")

	m = marshalToMap(t, ClearedResult(true))
	assert.Equal(t, float64(StatusClearWifiAndCacheComplete), m["statusCode"])
	assert.NotContains(t, m, "errorCode")
	assert.NotContains(t, m, "deviceInfo")
}

func TestResultJSON_DeviceInfoIgnoredOutsideCompleted(t *testing.T) {
	r := PluginErrorResult(CodePollTimeout, "late")
	r.DeviceInfo = &DeviceInfo{DeviceID: "stray"}

	m := marshalToMap(t, r)
	assert.NotContains(t, m, "deviceInfo")
	assert.Equal(t, "late", m["errorMsg"])
}

func TestResultJSON_VerificationDateOffset(t *testing.T) {
	zone := time.FixedZone("PDT", -7*60*60)
	r := CompletedResult(DeviceInfo{
		AgentURL:         "https://agent.electricimp.com/x",
		DeviceID:         "dev",
		PlanID:           "plan",
		VerificationDate: time.Date(2026, 1, 2, 3, 4, 5, 0, zone),
	})

	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"verificationDate":"2026-01-02T03:04:05-07:00"`)

	var decoded Result
	require.NoError(t, json.Unmarshal(b, &decoded))
	require.NotNil(t, decoded.DeviceInfo)
	assert.True(t, r.DeviceInfo.VerificationDate.Equal(decoded.DeviceInfo.VerificationDate))
	assert.Equal(t, StateCompleted, decoded.State)
}

func TestResult_CommandStatus(t *testing.T) {
	assert.Equal(t, StatusOK, StartedResult().CommandStatus())
	assert.Equal(t, StatusOK, CompletedResult(DeviceInfo{}).CommandStatus())
	assert.Equal(t, StatusError, PluginErrorResult(CodeUserCancelled, "").CommandStatus())
	assert.False(t, StartedResult().Terminal())
	assert.True(t, PluginErrorResult(CodeUserCancelled, "").Terminal())
}

func TestOptions_Timeout(t *testing.T) {
	assert.Equal(t, 60*time.Second, Options{}.Timeout())
	assert.Equal(t, 60*time.Second, Options{TimeoutMs: -5}.Timeout())
	assert.Equal(t, 5*time.Second, Options{TimeoutMs: 5000}.Timeout())
	assert.Equal(t, 60*time.Second, Options{TimeoutMs: 120000}.Timeout())
}

func TestValidateAPIKey(t *testing.T) {
	assert.ErrorIs(t, ValidateAPIKey("", false), ErrAPIKeyMissing)
	assert.ErrorIs(t, ValidateAPIKey("", true), ErrAPIKeyMissing)
	assert.NoError(t, ValidateAPIKey("key1", false))
	assert.ErrorIs(t, ValidateAPIKey("key1", true), ErrInvalidAPIKey)
	assert.ErrorIs(t, ValidateAPIKey("abcdefghijklmnopqrstuvwxyz12345!", true), ErrInvalidAPIKey)
	assert.NoError(t, ValidateAPIKey(testAPIKey, true))
}

func TestStreamChannel_SendAfterClose(t *testing.T) {
	ch := NewStreamChannel()
	msg, err := newMessage("cb", StartedResult())
	require.NoError(t, err)

	ch.Send(msg)
	ch.Close()
	ch.Close()
	ch.Send(msg)

	got := collect(t, ch)
	require.Len(t, got, 1)
	assert.Equal(t, "cb", got[0].CallbackID)
	assert.True(t, got[0].KeepCallback)
}
