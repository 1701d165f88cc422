package models

import (
	"time"

	"qrcall/internal/platform/config"
)

// Class selects which limit applies to a request.
type Class string

const (
	// ClassCall: call initiation, keyed by (IP, qrId).
	ClassCall Class = "call"
	// ClassGeneral: every /calls route, keyed by IP.
	ClassGeneral Class = "general"
)

// Policy is a request budget over a sliding window.
type Policy struct {
	Limit  int
	Window time.Duration
}

// Policies maps each class to its budget.
type Policies map[Class]Policy

// PoliciesFromConfig applies the configured limits.
func PoliciesFromConfig(cfg config.RateLimitConfig) Policies {
	return Policies{
		ClassCall:    {Limit: cfg.CallLimit, Window: cfg.CallWindow},
		ClassGeneral: {Limit: cfg.GeneralLimit, Window: cfg.GeneralWindow},
	}
}

// Result is the outcome of a rate limit check.
type Result struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

// ExceededResponse is the 429 body.
type ExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}
