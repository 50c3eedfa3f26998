package policy

import "time"

// IsLate reports whether a cancellation at cancelledAt falls inside threshold
// of the appointment start. A start already in the past is always late.
func IsLate(start, cancelledAt time.Time, threshold time.Duration) bool {
	return start.Sub(cancelledAt) < threshold
}
