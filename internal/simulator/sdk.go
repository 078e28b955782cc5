// Package simulator provides a blinkup.SDK that runs the provisioning flow
// without a phone screen or a device, for development and integration tests.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/EternisAI/blinkup-bridge/internal/blinkup"
	"github.com/google/uuid"
)

type Outcome string

const (
	OutcomeSuccess    Outcome = "success"
	OutcomeCancel     Outcome = "cancel"
	OutcomeNoResponse Outcome = "no_response"
	OutcomeFlashError Outcome = "flash_error"
	OutcomeTimeout    Outcome = "timeout"
	OutcomePollError  Outcome = "poll_error"
)

// SDK error codes reported by the simulator, matching the vendor's.
const (
	codeNetworkError       = 10
	codeFlashPacketInvalid = 20
)

var errDismissed = errors.New("interface dismissed")

type Config struct {
	Outcome      Outcome       `mapstructure:"outcome"`
	StepDelay    time.Duration `mapstructure:"step_delay"`
	SSID         string        `mapstructure:"ssid"`
	AgentURLBase string        `mapstructure:"agent_url_base"`
}

func ParseOutcome(s string) (Outcome, error) {
	o := Outcome(strings.ToLower(strings.TrimSpace(s)))
	switch o {
	case "":
		return OutcomeSuccess, nil
	case OutcomeSuccess, OutcomeCancel, OutcomeNoResponse, OutcomeFlashError, OutcomeTimeout, OutcomePollError:
		return o, nil
	}
	return "", fmt.Errorf("unknown simulator outcome %q", s)
}

type handle struct {
	configID string
	planID   string
}

func (h handle) ConfigID() string { return h.configID }

type SDK struct {
	cfg Config

	mu        sync.Mutex
	dismissCh chan struct{}
	saved     map[string]string
}

func New(cfg Config) *SDK {
	if cfg.Outcome == "" {
		cfg.Outcome = OutcomeSuccess
	}
	if cfg.SSID == "" {
		cfg.SSID = "simulated-network"
	}
	if cfg.AgentURLBase == "" {
		cfg.AgentURLBase = "https://agent.electricimp.com"
	}
	return &SDK{
		cfg:       cfg,
		dismissCh: make(chan struct{}),
		saved:     make(map[string]string),
	}
}

func (s *SDK) SelectNetwork(ctx context.Context, creds blinkup.Credentials) (*blinkup.NetworkConfig, bool, error) {
	s.mu.Lock()
	s.dismissCh = make(chan struct{})
	s.mu.Unlock()

	slog.Debug("Simulator presenting network selection", "plan_id", creds.PlanID)
	if err := s.wait(ctx, s.cfg.StepDelay); err != nil {
		return nil, false, err
	}
	if s.cfg.Outcome == OutcomeCancel {
		return nil, true, nil
	}

	s.mu.Lock()
	password, remembered := s.saved[s.cfg.SSID]
	if !remembered {
		password = "simulated-password"
		s.saved[s.cfg.SSID] = password
	}
	s.mu.Unlock()

	return &blinkup.NetworkConfig{
		Kind:             blinkup.NetworkWifi,
		SSID:             s.cfg.SSID,
		Password:         password,
		UseSavedPassword: remembered,
	}, false, nil
}

func (s *SDK) Flash(ctx context.Context, creds blinkup.Credentials, cfg *blinkup.NetworkConfig) (bool, blinkup.PollHandle, error) {
	slog.Debug("Simulator flashing", "ssid", cfg.SSID, "kind", cfg.Kind)
	if err := s.wait(ctx, s.cfg.StepDelay); err != nil {
		return false, nil, err
	}

	switch s.cfg.Outcome {
	case OutcomeFlashError:
		return false, nil, &blinkup.SDKError{Code: codeFlashPacketInvalid, Message: "BadFlashPacket"}
	case OutcomeNoResponse:
		return false, nil, nil
	}

	planID := creds.PlanID
	if planID == "" {
		planID = uuid.NewString()
	}
	return true, handle{configID: uuid.NewString(), planID: planID}, nil
}

func (s *SDK) Poll(ctx context.Context, ph blinkup.PollHandle, timeout time.Duration) (*blinkup.DeviceInfo, bool, error) {
	h, ok := ph.(handle)
	if !ok {
		return nil, false, fmt.Errorf("foreign poll handle %T", ph)
	}

	switch s.cfg.Outcome {
	case OutcomeTimeout:
		if err := s.wait(ctx, timeout); err != nil {
			return nil, false, err
		}
		return nil, true, nil
	case OutcomePollError:
		if err := s.wait(ctx, s.cfg.StepDelay); err != nil {
			return nil, false, err
		}
		return nil, false, &blinkup.SDKError{Code: codeNetworkError, Message: "NetworkErrorDuringImpPoll"}
	}

	if err := s.wait(ctx, min(s.cfg.StepDelay, timeout)); err != nil {
		return nil, false, err
	}

	deviceID := strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	return &blinkup.DeviceInfo{
		AgentURL:         s.cfg.AgentURLBase + "/" + deviceID,
		DeviceID:         deviceID,
		PlanID:           h.planID,
		VerificationDate: time.Now(),
	}, false, nil
}

func (s *SDK) ForceDismiss() {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.dismissCh:
	default:
		close(s.dismissCh)
	}
}

func (s *SDK) ClearStoredData(ctx context.Context) error {
	s.mu.Lock()
	n := len(s.saved)
	s.saved = make(map[string]string)
	s.mu.Unlock()

	slog.Debug("Simulator cleared saved networks", "count", n)
	return nil
}

func (s *SDK) wait(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	dismissed := s.dismissCh
	s.mu.Unlock()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-dismissed:
		return errDismissed
	case <-ctx.Done():
		return ctx.Err()
	}
}
