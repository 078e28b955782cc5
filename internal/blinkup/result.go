package blinkup

import (
	"encoding/json"
	"time"
)

type State string

const (
	StateStarted   State = "Started"
	StateCompleted State = "Completed"
	StateError     State = "Error"
)

type ErrorType string

const (
	ErrorTypeSDK    ErrorType = "SdkError"
	ErrorTypePlugin ErrorType = "PluginError"
)

// Status codes carried in Result.StatusCode.
const (
	StatusDeviceConnected           = 0
	StatusGatheringInfo             = 200
	StatusClearWifiComplete         = 201
	StatusClearWifiAndCacheComplete = 202
	StatusFailed                    = 500
)

// Error codes in the PluginError namespace.
const (
	CodeInvalidArguments   = 100
	CodePollTimeout        = 101
	CodeUserCancelled      = 102
	CodeAPIKeyMissing      = 103
	CodeNoResponseExpected = 104
	CodeAlreadyInProgress  = 105
	CodeInvalidAPIKey      = 300
	CodePlanCacheFailure   = 303
)

// verificationDateLayout is ISO8601 with a numeric zone offset.
const verificationDateLayout = "2006-01-02T15:04:05-07:00"

type DeviceInfo struct {
	AgentURL         string
	DeviceID         string
	PlanID           string
	VerificationDate time.Time
}

// Result is the payload delivered to the caller for an attempt. Build it with
// the constructors below so DeviceInfo and the error fields stay consistent
// with State.
type Result struct {
	State        State
	StatusCode   int
	ErrorType    ErrorType
	ErrorCode    int
	ErrorMessage string
	DeviceInfo   *DeviceInfo
}

func StartedResult() Result {
	return Result{State: StateStarted, StatusCode: StatusGatheringInfo}
}

func CompletedResult(info DeviceInfo) Result {
	return Result{State: StateCompleted, StatusCode: StatusDeviceConnected, DeviceInfo: &info}
}

// ClearedResult reports a finished clear; cacheCleared selects 202 over 201.
// It is the one Completed result that carries no device info.
func ClearedResult(cacheCleared bool) Result {
	code := StatusClearWifiComplete
	if cacheCleared {
		code = StatusClearWifiAndCacheComplete
	}
	return Result{State: StateCompleted, StatusCode: code}
}

func PluginErrorResult(code int, msg string) Result {
	return Result{
		State:        StateError,
		StatusCode:   StatusFailed,
		ErrorType:    ErrorTypePlugin,
		ErrorCode:    code,
		ErrorMessage: msg,
	}
}

func SDKErrorResult(err *SDKError) Result {
	return Result{
		State:        StateError,
		StatusCode:   StatusFailed,
		ErrorType:    ErrorTypeSDK,
		ErrorCode:    err.Code,
		ErrorMessage: err.Message,
	}
}

func (r Result) Terminal() bool {
	return r.State != StateStarted
}

// CommandStatus classifies a result for the callback channel.
func (r Result) CommandStatus() CommandStatus {
	if r.State == StateError {
		return StatusError
	}
	return StatusOK
}

type resultJSON struct {
	State      State           `json:"state"`
	StatusCode int             `json:"statusCode"`
	ErrorType  ErrorType       `json:"errorType,omitempty"`
	ErrorCode  *int            `json:"errorCode,omitempty"`
	ErrorMsg   string          `json:"errorMsg,omitempty"`
	DeviceInfo *deviceInfoJSON `json:"deviceInfo,omitempty"`
}

type deviceInfoJSON struct {
	AgentURL         string `json:"agentURL"`
	DeviceID         string `json:"deviceId"`
	PlanID           string `json:"planId"`
	VerificationDate string `json:"verificationDate"`
}

func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{
		State:      r.State,
		StatusCode: r.StatusCode,
	}

	switch r.State {
	case StateError:
		code := r.ErrorCode
		out.ErrorType = r.ErrorType
		out.ErrorCode = &code
		out.ErrorMsg = r.ErrorMessage
	case StateCompleted:
		if r.DeviceInfo != nil {
			out.DeviceInfo = &deviceInfoJSON{
				AgentURL:         r.DeviceInfo.AgentURL,
				DeviceID:         r.DeviceInfo.DeviceID,
				PlanID:           r.DeviceInfo.PlanID,
				VerificationDate: r.DeviceInfo.VerificationDate.Format(verificationDateLayout),
			}
		}
	}

	return json.Marshal(out)
}

func (r *Result) UnmarshalJSON(data []byte) error {
	var in resultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	*r = Result{
		State:        in.State,
		StatusCode:   in.StatusCode,
		ErrorType:    in.ErrorType,
		ErrorMessage: in.ErrorMsg,
	}
	if in.ErrorCode != nil {
		r.ErrorCode = *in.ErrorCode
	}
	if in.DeviceInfo != nil {
		verified, err := time.Parse(verificationDateLayout, in.DeviceInfo.VerificationDate)
		if err != nil {
			return err
		}
		r.DeviceInfo = &DeviceInfo{
			AgentURL:         in.DeviceInfo.AgentURL,
			DeviceID:         in.DeviceInfo.DeviceID,
			PlanID:           in.DeviceInfo.PlanID,
			VerificationDate: verified,
		}
	}
	return nil
}
