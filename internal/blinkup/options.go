package blinkup

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

const (
	DefaultTimeoutMs = 60000
	MaxTimeoutMs     = 60000
	apiKeyLength     = 32
)

var (
	ErrAPIKeyMissing      = errors.New("api key is required")
	ErrInvalidAPIKey      = errors.New("api key must be 32 alphanumeric characters")
	ErrAlreadyInProgress  = errors.New("a blinkup is already in progress")
	ErrUnknownStringParam = errors.New("unknown string parameter")
)

var apiKeyPattern = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// Options are the recognized fields of a start request.
type Options struct {
	// PlanID is the developer plan, only honoured when IsInDevelopment is set.
	PlanID          string
	TimeoutMs       int
	IsInDevelopment bool
	// Strings overrides SDK interface texts; keys must be in StringParamKeys.
	Strings map[string]string
}

// StringParamKeys lists the interface texts the SDK lets callers override.
var StringParamKeys = map[string]struct{}{
	// error screens
	"badFlashPacket":                {},
	"badPlanId":                     {},
	"badSetupToken":                 {},
	"emptySsid":                     {},
	"failedGettingPlanIdFromServer": {},
	"networkErrorDuringImpPoll":     {},
	"setupTokenFailure":             {},
	// flash screen
	"interstitialContinue": {},
	"preflashText":         {},
	// network selection
	"globalTitle":                            {},
	"globalFooter":                           {},
	"wifiDetailHidePassword":                 {},
	"wifiDetailInstructions":                 {},
	"wifiDetailNetwork":                      {},
	"wifiDetailNetworkPlaceholder":           {},
	"wifiDetailPassword":                     {},
	"wifiDetailPasswordPlaceholder":          {},
	"wifiDetailRememberPassword":             {},
	"wifiDetailSendBlinkUp":                  {},
	"wifiDetailShowPassword":                 {},
	"wifiSettingsCancel":                     {},
	"wifiSettingsClearWirelessConfiguration": {},
	"wifiSettingsConnectADevice":             {},
	"wifiSettingsConnectUsingWPS":            {},
	"wifiSettingsDisconnectADevice":          {},
	"wifiSettingsOtherNetwork":               {},
	"wpsDetailInformation":                   {},
	"wpsDetailSendBlinkUp":                   {},
	"wpsDetailInstructions":                  {},
	"wpsDetailWPSPIN":                        {},
	"wpsDetailWPSPINPlaceholder":             {},
}

// Timeout returns the poll timeout with the default and ceiling applied.
func (o Options) Timeout() time.Duration {
	ms := o.TimeoutMs
	if ms <= 0 {
		ms = DefaultTimeoutMs
	}
	if ms > MaxTimeoutMs {
		ms = MaxTimeoutMs
	}
	return time.Duration(ms) * time.Millisecond
}

func (o Options) validateStrings() error {
	var unknown []string
	for k := range o.Strings {
		if _, ok := StringParamKeys[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return fmt.Errorf("%w: %s", ErrUnknownStringParam, strings.Join(unknown, ", "))
}

// ValidateAPIKey checks presence and, when strict, the vendor key format.
func ValidateAPIKey(apiKey string, strict bool) error {
	key := strings.TrimSpace(apiKey)
	if key == "" {
		return ErrAPIKeyMissing
	}
	if strict && (len(key) != apiKeyLength || !apiKeyPattern.MatchString(key)) {
		return ErrInvalidAPIKey
	}
	return nil
}
