package dto

import "time"

type StartBlinkUpRequest struct {
	APIKey          string            `json:"apiKey"`
	PlanID          string            `json:"planId"`
	TimeoutMs       int               `json:"timeoutMs"`
	IsInDevelopment bool              `json:"isInDevelopment"`
	Strings         map[string]string `json:"strings"`
}

type AbortBlinkUpResponse struct {
	Acknowledged bool `json:"acknowledged"`
	// Aborted is false when no BlinkUp was running.
	Aborted bool `json:"aborted"`
}

type BlinkUpStatusResponse struct {
	Active     bool       `json:"active"`
	Phase      string     `json:"phase"`
	CallbackID string     `json:"callbackId,omitempty"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	BlinkUp string `json:"blinkup"`
}
