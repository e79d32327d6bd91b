package enums

import "fmt"

// DeliveryStopStatus tracks a single stop on a delivery run.
type DeliveryStopStatus string

const (
	DeliveryStopStatusScheduled DeliveryStopStatus = "scheduled"
	DeliveryStopStatusArrived   DeliveryStopStatus = "arrived"
	DeliveryStopStatusCompleted DeliveryStopStatus = "completed"
	DeliveryStopStatusFailed    DeliveryStopStatus = "failed"
)

var validDeliveryStopStatuses = []DeliveryStopStatus{
	DeliveryStopStatusScheduled,
	DeliveryStopStatusArrived,
	DeliveryStopStatusCompleted,
	DeliveryStopStatusFailed,
}

// String implements fmt.Stringer.
func (v DeliveryStopStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is a known DeliveryStopStatus.
func (v DeliveryStopStatus) IsValid() bool {
	for _, candidate := range validDeliveryStopStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseDeliveryStopStatus converts raw input into a DeliveryStopStatus.
func ParseDeliveryStopStatus(value string) (DeliveryStopStatus, error) {
	for _, candidate := range validDeliveryStopStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery stop status %q", value)
}

// IsTerminal reports whether the stop has been closed out.
func (v DeliveryStopStatus) IsTerminal() bool {
	return v == DeliveryStopStatusCompleted || v == DeliveryStopStatusFailed
}
