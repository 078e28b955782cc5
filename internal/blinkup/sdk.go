package blinkup

import (
	"context"
	"fmt"
	"time"
)

type NetworkKind string

const (
	NetworkWifi  NetworkKind = "wifi"
	NetworkWPS   NetworkKind = "wps"
	NetworkClear NetworkKind = "clear"
)

// NetworkConfig is what the user picked on the network selection screen. The
// coordinator only hands it from SelectNetwork to Flash.
type NetworkConfig struct {
	Kind             NetworkKind
	SSID             string
	Password         string
	UseSavedPassword bool
	WPSPin           string
}

// Credentials configure the SDK controllers for a single attempt.
type Credentials struct {
	APIKey string
	// PlanID is empty when the SDK should request a fresh plan.
	PlanID  string
	Strings map[string]string
}

// PollHandle identifies the device poller produced by a flash. Its contents
// belong to the SDK.
type PollHandle interface {
	ConfigID() string
}

// SDKError is a failure reported by the provisioning SDK. Code and Message are
// forwarded to the caller untouched.
type SDKError struct {
	Code    int
	Message string
}

func (e *SDKError) Error() string {
	return fmt.Sprintf("sdk error %d: %s", e.Code, e.Message)
}

// SDK is the device provisioning capability driven by the coordinator. Every
// call blocks until the matching SDK completion fires or ctx is cancelled.
// After ForceDismiss the SDK must not complete a pending call successfully.
type SDK interface {
	// SelectNetwork presents the network selection screen.
	SelectNetwork(ctx context.Context, creds Credentials) (cfg *NetworkConfig, cancelled bool, err error)
	// Flash presents the flash screen and returns on resign-active.
	Flash(ctx context.Context, creds Credentials, cfg *NetworkConfig) (willRespond bool, handle PollHandle, err error)
	// Poll waits for the flashed device to report to the vendor cloud.
	Poll(ctx context.Context, handle PollHandle, timeout time.Duration) (info *DeviceInfo, timedOut bool, err error)
	// ForceDismiss tears down any visible SDK screen and stops polling.
	ForceDismiss()
	// ClearStoredData removes saved network credentials.
	ClearStoredData(ctx context.Context) error
}
