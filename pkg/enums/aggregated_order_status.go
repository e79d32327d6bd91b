package enums

import "fmt"

// AggregatedOrderStatus tracks the supplier-facing purchase order created on confirmation.
type AggregatedOrderStatus string

const (
	AggregatedOrderStatusSubmitted    AggregatedOrderStatus = "submitted"
	AggregatedOrderStatusAcknowledged AggregatedOrderStatus = "acknowledged"
	AggregatedOrderStatusDelivered    AggregatedOrderStatus = "delivered"
	AggregatedOrderStatusCancelled    AggregatedOrderStatus = "cancelled"
)

var validAggregatedOrderStatuses = []AggregatedOrderStatus{
	AggregatedOrderStatusSubmitted,
	AggregatedOrderStatusAcknowledged,
	AggregatedOrderStatusDelivered,
	AggregatedOrderStatusCancelled,
}

// String implements fmt.Stringer.
func (v AggregatedOrderStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is a known AggregatedOrderStatus.
func (v AggregatedOrderStatus) IsValid() bool {
	for _, candidate := range validAggregatedOrderStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseAggregatedOrderStatus converts raw input into a AggregatedOrderStatus.
func ParseAggregatedOrderStatus(value string) (AggregatedOrderStatus, error) {
	for _, candidate := range validAggregatedOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregated order status %q", value)
}
