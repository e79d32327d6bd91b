package enums

import "fmt"

// DeliveryRunStatus tracks a shared delivery run.
type DeliveryRunStatus string

const (
	DeliveryRunStatusScheduled  DeliveryRunStatus = "scheduled"
	DeliveryRunStatusInProgress DeliveryRunStatus = "in_progress"
	DeliveryRunStatusCompleted  DeliveryRunStatus = "completed"
	DeliveryRunStatusCancelled  DeliveryRunStatus = "cancelled"
)

var validDeliveryRunStatuses = []DeliveryRunStatus{
	DeliveryRunStatusScheduled,
	DeliveryRunStatusInProgress,
	DeliveryRunStatusCompleted,
	DeliveryRunStatusCancelled,
}

// String implements fmt.Stringer.
func (v DeliveryRunStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is a known DeliveryRunStatus.
func (v DeliveryRunStatus) IsValid() bool {
	for _, candidate := range validDeliveryRunStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseDeliveryRunStatus converts raw input into a DeliveryRunStatus.
func ParseDeliveryRunStatus(value string) (DeliveryRunStatus, error) {
	for _, candidate := range validDeliveryRunStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery run status %q", value)
}

// IsTerminal reports whether the run accepts no further stop updates.
func (v DeliveryRunStatus) IsTerminal() bool {
	return v == DeliveryRunStatusCompleted || v == DeliveryRunStatusCancelled
}
