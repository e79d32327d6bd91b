package enums

import "fmt"

// PoolStatus tracks the lifecycle of a group-buying pool.
type PoolStatus string

const (
	PoolStatusOpen                PoolStatus = "open"
	PoolStatusPendingConfirmation PoolStatus = "pending_confirmation"
	PoolStatusConfirmed           PoolStatus = "confirmed"
	PoolStatusExpired             PoolStatus = "expired"
	PoolStatusCancelled           PoolStatus = "cancelled"
)

var validPoolStatuses = []PoolStatus{
	PoolStatusOpen,
	PoolStatusPendingConfirmation,
	PoolStatusConfirmed,
	PoolStatusExpired,
	PoolStatusCancelled,
}

// String implements fmt.Stringer.
func (v PoolStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is a known PoolStatus.
func (v PoolStatus) IsValid() bool {
	for _, candidate := range validPoolStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParsePoolStatus converts raw input into a PoolStatus.
func ParsePoolStatus(value string) (PoolStatus, error) {
	for _, candidate := range validPoolStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid pool status %q", value)
}

// IsJoinable reports whether shops may still commit to the pool.
func (v PoolStatus) IsJoinable() bool {
	return v == PoolStatusOpen || v == PoolStatusPendingConfirmation
}

// IsTerminal reports whether the pool can no longer change state.
func (v PoolStatus) IsTerminal() bool {
	return v == PoolStatusConfirmed || v == PoolStatusCancelled || v == PoolStatusExpired
}
