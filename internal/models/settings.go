package models

import "time"

// Bounds for user-editable settings. Values outside these ranges are
// clamped, not rejected, so a hand-edited row can never wedge the engine.
const (
	MinSendIntervalSecs = 3
	MaxSendIntervalSecs = 30
	MinRetryAttempts    = 0
	MaxRetryAttempts    = 5
	MinRetryBackoffMs   = 1000
	MaxRetryBackoffMs   = 10000
)

// Settings holds the process-wide broadcast configuration, loaded at
// startup and rewritten whole on every update
type Settings struct {
	DefaultCountryCode string    `json:"default_country_code" db:"default_country_code"`
	SendIntervalSecs   int       `json:"send_interval_secs" db:"send_interval_secs"`
	EnableJitter       bool      `json:"enable_jitter" db:"enable_jitter"`
	RetryAttempts      int       `json:"retry_attempts" db:"retry_attempts"`
	RetryBackoffMs     int       `json:"retry_backoff_ms" db:"retry_backoff_ms"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// DefaultSettings returns the settings used before any user edit
func DefaultSettings() Settings {
	return Settings{
		DefaultCountryCode: "91",
		SendIntervalSecs:   5,
		EnableJitter:       true,
		RetryAttempts:      2,
		RetryBackoffMs:     2000,
	}
}

// Clamp forces all numeric fields into their allowed bounds
func (s *Settings) Clamp() {
	if s.DefaultCountryCode == "" {
		s.DefaultCountryCode = "91"
	}
	s.SendIntervalSecs = clampInt(s.SendIntervalSecs, MinSendIntervalSecs, MaxSendIntervalSecs)
	s.RetryAttempts = clampInt(s.RetryAttempts, MinRetryAttempts, MaxRetryAttempts)
	s.RetryBackoffMs = clampInt(s.RetryBackoffMs, MinRetryBackoffMs, MaxRetryBackoffMs)
}

// SendInterval returns the configured pacing interval as a duration
func (s *Settings) SendInterval() time.Duration {
	return time.Duration(s.SendIntervalSecs) * time.Second
}

// RetryBackoff returns the configured base backoff as a duration
func (s *Settings) RetryBackoff() time.Duration {
	return time.Duration(s.RetryBackoffMs) * time.Millisecond
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
