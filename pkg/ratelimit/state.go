// Package ratelimit implements request budget tracking and gating for the
// allocation API. It monitors the X-RateLimit-Remaining and X-RateLimit-Reset
// response headers so that clients back off before the server starts rejecting
// requests for the whole tenant.
package ratelimit

import (
	"time"
)

// Redis keys for shared budget state.
const (
	RedisKeyRemaining      = "alloc:rate_limit:remaining"
	RedisKeyResetTimestamp = "alloc:rate_limit:reset_timestamp"
	RedisKeyLastUpdate     = "alloc:rate_limit:last_update"
)

// Thresholds for budget decisions.
const (
	// ThresholdCritical blocks all requests when the remaining budget falls
	// below this value. A tenant-wide lockout costs more than a delayed report.
	ThresholdCritical = 5

	// ThresholdWarning applies throttling when the remaining budget falls
	// below this value.
	ThresholdWarning = 20

	// ThresholdHealthy indicates normal operation; at or above it no
	// restrictions apply.
	ThresholdHealthy = 50
)

// BudgetState is the current request budget as last reported by the server.
// The state is shared across all client instances via Redis.
type BudgetState struct {
	// Remaining is the number of requests left in the current window,
	// from the X-RateLimit-Remaining header.
	Remaining int `json:"remaining"`

	// ResetAt is when the window resets, calculated from the
	// X-RateLimit-Reset header (seconds until reset).
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when this state was last refreshed from headers.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true when Remaining >= ThresholdHealthy.
	IsHealthy bool `json:"is_healthy"`
}

// IsStale returns true if the state data is older than the given duration.
func (s *BudgetState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsCriticalBlock returns true if requests should be blocked outright.
func (s *BudgetState) NeedsCriticalBlock() bool {
	return s.Remaining < ThresholdCritical
}

// NeedsThrottling returns true if requests should be slowed down.
func (s *BudgetState) NeedsThrottling() bool {
	return s.Remaining < ThresholdWarning && !s.NeedsCriticalBlock()
}

// TimeUntilReset returns the duration until the budget window resets.
// Returns 0 if the reset time has already passed.
func (s *BudgetState) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}

// UpdateHealth recomputes the IsHealthy flag from Remaining.
func (s *BudgetState) UpdateHealth() {
	s.IsHealthy = s.Remaining >= ThresholdHealthy
}
