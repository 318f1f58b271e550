package models

import "time"

// FailurePattern is a recurring failure signature mined from the
// execution log. Derived on demand, never persisted.
type FailurePattern struct {
	PatternType   string
	Count         int
	LastSeen      time.Time
	ErrorMessages []string // up to 5 representative messages
}
