package model

import "time"

// RateDecision is the outcome of a single fixed-window admission check.
type RateDecision struct {
	Allowed   bool
	Count     int
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RateLimit is N requests per Window per key.
type RateLimit struct {
	Limit  int
	Window time.Duration
}
