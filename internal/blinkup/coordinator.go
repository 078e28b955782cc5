package blinkup

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// genericSDKErrorCode is used when the SDK fails without a code of its own.
const genericSDKErrorCode = 1

type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhaseNetworkSelecting Phase = "network_selecting"
	PhaseFlashing         Phase = "flashing"
	PhasePolling          Phase = "polling"
)

// Outcome names the terminal state an attempt ended in.
type Outcome string

const (
	OutcomeCancelled               Outcome = "cancelled"
	OutcomeSelectionError          Outcome = "selection_error"
	OutcomeResignedWithoutResponse Outcome = "resigned_without_response"
	OutcomeResignedWithError       Outcome = "resigned_with_error"
	OutcomeCompleted               Outcome = "completed"
	OutcomeTimedOut                Outcome = "timed_out"
	OutcomePollError               Outcome = "poll_error"
	OutcomeAborted                 Outcome = "aborted"
	OutcomeRejected                Outcome = "rejected"
)

// PlanCache remembers the plan id of the last provisioned device.
type PlanCache interface {
	Get(ctx context.Context) (string, bool, error)
	Put(ctx context.Context, planID string) error
	Clear(ctx context.Context) error
}

type Config struct {
	// StrictAPIKey enforces the 32 character alphanumeric key format.
	StrictAPIKey bool
}

type session struct {
	callbackID string
	channel    Channel
	creds      Credentials
	timeout    time.Duration
	phase      Phase
	startedAt  time.Time
	ctx        context.Context
	cancel     context.CancelFunc
}

// Snapshot describes the coordinator at one point in time.
type Snapshot struct {
	Active     bool
	Phase      Phase
	CallbackID string
	StartedAt  time.Time
}

// Coordinator owns at most one in-flight BlinkUp attempt and turns the SDK's
// completions into results on the attempt's callback channel.
type Coordinator struct {
	sdk    SDK
	plans  PlanCache
	config Config

	mu      sync.Mutex
	session *session
}

// NewCoordinator creates a Coordinator. plans is optional; without it no plan
// id is reused between attempts.
func NewCoordinator(sdk SDK, plans PlanCache, config Config) *Coordinator {
	return &Coordinator{
		sdk:    sdk,
		plans:  plans,
		config: config,
	}
}

// Start begins an attempt and returns its callback id. Rejections are
// delivered on ch as a terminal result and also returned as an error; in that
// case the active session, if any, is left alone.
func (c *Coordinator) Start(ctx context.Context, apiKey string, opts Options, ch Channel) (string, error) {
	callbackID := uuid.NewString()

	if err := ValidateAPIKey(apiKey, c.config.StrictAPIKey); err != nil {
		code := CodeAPIKeyMissing
		if errors.Is(err, ErrInvalidAPIKey) {
			code = CodeInvalidAPIKey
		}
		c.reject(callbackID, ch, PluginErrorResult(code, err.Error()))
		return callbackID, err
	}
	if err := opts.validateStrings(); err != nil {
		c.reject(callbackID, ch, PluginErrorResult(CodeInvalidArguments, err.Error()))
		return callbackID, err
	}

	c.mu.Lock()
	if c.session != nil {
		active := c.session.callbackID
		c.mu.Unlock()
		slog.Warn("BlinkUp already in progress, rejecting start",
			"callback_id", callbackID,
			"active_callback_id", active)
		c.reject(callbackID, ch, PluginErrorResult(CodeAlreadyInProgress, ErrAlreadyInProgress.Error()))
		return callbackID, ErrAlreadyInProgress
	}

	attemptCtx, cancel := context.WithCancel(context.Background())
	s := &session{
		callbackID: callbackID,
		channel:    ch,
		creds:      Credentials{APIKey: apiKey, Strings: opts.Strings},
		timeout:    opts.Timeout(),
		phase:      PhaseNetworkSelecting,
		startedAt:  time.Now(),
		ctx:        attemptCtx,
		cancel:     cancel,
	}
	c.session = s
	c.mu.Unlock()

	// The slot is claimed, so the cache is only read for accepted attempts.
	// run is the only reader of s.creds.
	s.creds.PlanID = c.resolvePlanID(ctx, opts)

	activeSessions.Set(1)
	slog.Info("BlinkUp started",
		"callback_id", callbackID,
		"timeout", s.timeout,
		"development", opts.IsInDevelopment,
		"reuse_plan", s.creds.PlanID != "")

	go c.run(s)
	return callbackID, nil
}

// Abort tears down the active session without delivering anything on its
// channel. It reports whether a session was active.
//
// The SDK is dismissed before the slot is released, so the dismissal can only
// reach the attempt being aborted.
func (c *Coordinator) Abort() bool {
	c.mu.Lock()
	s := c.session
	if s == nil {
		c.mu.Unlock()
		slog.Debug("Abort requested with no active BlinkUp")
		return false
	}
	c.sdk.ForceDismiss()
	c.endLocked(s)
	c.mu.Unlock()

	recordAttempt(OutcomeAborted, time.Since(s.startedAt).Seconds())
	slog.Info("BlinkUp aborted", "callback_id", s.callbackID, "phase", s.phase)
	return true
}

// ClearStoredData removes saved network credentials from the SDK and the
// cached plan id.
func (c *Coordinator) ClearStoredData(ctx context.Context) Result {
	if err := c.sdk.ClearStoredData(ctx); err != nil {
		slog.Error("Failed to clear SDK stored data", "error", err)
		recordClear("sdk_error")
		return SDKErrorResult(toSDKError(err))
	}

	if c.plans == nil {
		recordClear("ok")
		slog.Info("Cleared BlinkUp stored data")
		return ClearedResult(false)
	}

	if err := c.plans.Clear(ctx); err != nil {
		slog.Error("Failed to clear cached plan id", "error", err)
		recordClear("cache_error")
		return PluginErrorResult(CodePlanCacheFailure, err.Error())
	}

	recordClear("ok")
	slog.Info("Cleared BlinkUp stored data and plan cache")
	return ClearedResult(true)
}

func (c *Coordinator) Status() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return Snapshot{Phase: PhaseIdle}
	}
	return Snapshot{
		Active:     true,
		Phase:      c.session.phase,
		CallbackID: c.session.callbackID,
		StartedAt:  c.session.startedAt,
	}
}

func (c *Coordinator) run(s *session) {
	cfg, cancelled, err := c.sdk.SelectNetwork(s.ctx, s.creds)
	switch {
	case err != nil:
		c.finish(s, OutcomeSelectionError, SDKErrorResult(toSDKError(err)))
		return
	case cancelled || cfg == nil:
		c.finish(s, OutcomeCancelled, PluginErrorResult(CodeUserCancelled, "cancelled by user"))
		return
	}

	if !c.advance(s, PhaseFlashing) {
		return
	}
	willRespond, handle, err := c.sdk.Flash(s.ctx, s.creds, cfg)
	switch {
	case err != nil:
		c.finish(s, OutcomeResignedWithError, SDKErrorResult(toSDKError(err)))
		return
	case !willRespond || handle == nil:
		c.finish(s, OutcomeResignedWithoutResponse, PluginErrorResult(CodeNoResponseExpected, "device is not expected to respond"))
		return
	}

	if !c.advance(s, PhasePolling) {
		return
	}
	if !c.deliver(s, StartedResult()) {
		return
	}

	info, timedOut, err := c.sdk.Poll(s.ctx, handle, s.timeout)
	switch {
	case err != nil:
		c.finish(s, OutcomePollError, SDKErrorResult(toSDKError(err)))
	case timedOut || info == nil:
		c.finish(s, OutcomeTimedOut, PluginErrorResult(CodePollTimeout, "timed out waiting for device"))
	default:
		c.cachePlan(info.PlanID)
		c.finish(s, OutcomeCompleted, CompletedResult(*info))
	}
}

// advance moves s to the next phase, or reports false if s was aborted.
func (c *Coordinator) advance(s *session, phase Phase) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != s {
		return false
	}
	s.phase = phase
	slog.Debug("BlinkUp phase changed", "callback_id", s.callbackID, "phase", phase)
	return true
}

func (c *Coordinator) finish(s *session, outcome Outcome, result Result) {
	if !c.deliver(s, result) {
		return
	}
	recordAttempt(outcome, time.Since(s.startedAt).Seconds())
	slog.Info("BlinkUp finished",
		"callback_id", s.callbackID,
		"outcome", outcome,
		"error_type", result.ErrorType,
		"error_code", result.ErrorCode)
}

// deliver sends result on the session's channel if s is still the active
// session. A terminal result ends the session.
func (c *Coordinator) deliver(s *session, result Result) bool {
	msg, err := newMessage(s.callbackID, result)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != s {
		slog.Debug("Dropping result for inactive BlinkUp", "callback_id", s.callbackID, "state", result.State)
		return false
	}

	if err != nil {
		slog.Error("Failed to encode BlinkUp result", "callback_id", s.callbackID, "error", err)
		if result.Terminal() {
			c.endLocked(s)
		}
		return false
	}

	s.channel.Send(msg)
	if result.Terminal() {
		c.endLocked(s)
	}
	return true
}

// endLocked releases the slot held by s. c.mu must be held.
func (c *Coordinator) endLocked(s *session) {
	s.cancel()
	s.channel.Close()
	c.session = nil
	activeSessions.Set(0)
}

func (c *Coordinator) reject(callbackID string, ch Channel, result Result) {
	msg, err := newMessage(callbackID, result)
	if err != nil {
		slog.Error("Failed to encode BlinkUp result", "callback_id", callbackID, "error", err)
	} else {
		ch.Send(msg)
	}
	ch.Close()
	recordRejected()
}

func (c *Coordinator) resolvePlanID(ctx context.Context, opts Options) string {
	if opts.IsInDevelopment && opts.PlanID != "" {
		return opts.PlanID
	}
	if c.plans == nil {
		return ""
	}

	planID, ok, err := c.plans.Get(ctx)
	if err != nil {
		slog.Warn("Failed to load cached plan id, requesting a new one", "error", err)
		return ""
	}
	if !ok {
		return ""
	}
	return planID
}

func (c *Coordinator) cachePlan(planID string) {
	if c.plans == nil || planID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.plans.Put(ctx, planID); err != nil {
		slog.Warn("Failed to cache plan id", "plan_id", planID, "error", err)
	}
}

func toSDKError(err error) *SDKError {
	var sdkErr *SDKError
	if errors.As(err, &sdkErr) {
		return sdkErr
	}
	return &SDKError{Code: genericSDKErrorCode, Message: err.Error()}
}
