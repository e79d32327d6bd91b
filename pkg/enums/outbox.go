package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregatePool            OutboxAggregateType = "pool"
	AggregateAggregatedOrder OutboxAggregateType = "aggregated_order"
	AggregateDeliveryRun     OutboxAggregateType = "delivery_run"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregatePool,
	AggregateAggregatedOrder,
	AggregateDeliveryRun,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventPoolCreated            OutboxEventType = "pool_created"
	EventPoolJoined             OutboxEventType = "pool_joined"
	EventPoolWithdrawn          OutboxEventType = "pool_withdrawn"
	EventPoolThresholdReached   OutboxEventType = "pool_threshold_reached"
	EventPoolConfirmed          OutboxEventType = "pool_confirmed"
	EventPoolExpired            OutboxEventType = "pool_expired"
	EventPoolCancelled          OutboxEventType = "pool_cancelled"
	EventPoolDeadlineExtended   OutboxEventType = "pool_deadline_extended"
	EventAggregatedOrderCreated OutboxEventType = "aggregated_order_created"
	EventDeliveryRunCreated     OutboxEventType = "delivery_run_created"
	EventDeliveryStopCompleted  OutboxEventType = "delivery_stop_completed"
	EventDeliveryRunCompleted   OutboxEventType = "delivery_run_completed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventPoolCreated,
	EventPoolJoined,
	EventPoolWithdrawn,
	EventPoolThresholdReached,
	EventPoolConfirmed,
	EventPoolExpired,
	EventPoolCancelled,
	EventPoolDeadlineExtended,
	EventAggregatedOrderCreated,
	EventDeliveryRunCreated,
	EventDeliveryStopCompleted,
	EventDeliveryRunCompleted,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OutboxDLQErrorReason records why the publisher parked an event.
type OutboxDLQErrorReason string

const (
	// OutboxDLQReasonMaxAttempts means retries ran out on a transient error.
	OutboxDLQReasonMaxAttempts OutboxDLQErrorReason = "max_attempts"
	// OutboxDLQReasonNonRetryable covers unknown event types and bad payloads.
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	switch r {
	case OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable:
		return true
	}
	return false
}
