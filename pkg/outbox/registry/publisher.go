package registry

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/groupbuy-backend/pkg/config"
	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
	"github.com/angelmondragon/groupbuy-backend/pkg/outbox"
	"github.com/angelmondragon/groupbuy-backend/pkg/outbox/payloads"
)

// EventDescriptor links an event type to its aggregate/topic/payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() interface{}
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    interface{}
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError signals the dispatcher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewEventRegistry builds the registry with the configured topic names.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.PoolsTopic == "" {
		return nil, fmt.Errorf("pools topic is required")
	}
	if cfg.DeliveryTopic == "" {
		return nil, fmt.Errorf("delivery topic is required")
	}
	if cfg.NotificationTopic == "" {
		return nil, fmt.Errorf("notification topic is required")
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	pools := cfg.PoolsTopic
	delivery := cfg.DeliveryTopic
	notify := cfg.NotificationTopic

	for _, desc := range []EventDescriptor{
		{
			EventType:      enums.EventPoolCreated,
			AggregateType:  enums.AggregatePool,
			Topic:          pools,
			PayloadFactory: func() interface{} { return &payloads.PoolCreatedEvent{} },
		},
		{
			EventType:      enums.EventPoolJoined,
			AggregateType:  enums.AggregatePool,
			Topic:          pools,
			PayloadFactory: func() interface{} { return &payloads.PoolJoinedEvent{} },
		},
		{
			EventType:      enums.EventPoolWithdrawn,
			AggregateType:  enums.AggregatePool,
			Topic:          pools,
			PayloadFactory: func() interface{} { return &payloads.PoolWithdrawnEvent{} },
		},
		{
			EventType:      enums.EventPoolDeadlineExtended,
			AggregateType:  enums.AggregatePool,
			Topic:          pools,
			PayloadFactory: func() interface{} { return &payloads.PoolDeadlineExtendedEvent{} },
		},
		{
			EventType:      enums.EventAggregatedOrderCreated,
			AggregateType:  enums.AggregateAggregatedOrder,
			Topic:          pools,
			PayloadFactory: func() interface{} { return &payloads.AggregatedOrderCreatedEvent{} },
		},
	} {
		reg.register(desc)
	}
	for _, desc := range []EventDescriptor{
		{
			EventType:      enums.EventDeliveryRunCreated,
			AggregateType:  enums.AggregateDeliveryRun,
			Topic:          delivery,
			PayloadFactory: func() interface{} { return &payloads.DeliveryRunCreatedEvent{} },
		},
		{
			EventType:      enums.EventDeliveryRunCompleted,
			AggregateType:  enums.AggregateDeliveryRun,
			Topic:          delivery,
			PayloadFactory: func() interface{} { return &payloads.DeliveryRunCompletedEvent{} },
		},
	} {
		reg.register(desc)
	}
	// Participant-facing events go to the notification topic.
	for _, desc := range []EventDescriptor{
		{
			EventType:      enums.EventPoolThresholdReached,
			AggregateType:  enums.AggregatePool,
			Topic:          notify,
			PayloadFactory: func() interface{} { return &payloads.PoolThresholdReachedEvent{} },
		},
		{
			EventType:      enums.EventPoolConfirmed,
			AggregateType:  enums.AggregatePool,
			Topic:          notify,
			PayloadFactory: func() interface{} { return &payloads.PoolConfirmedEvent{} },
		},
		{
			EventType:      enums.EventPoolExpired,
			AggregateType:  enums.AggregatePool,
			Topic:          notify,
			PayloadFactory: func() interface{} { return &payloads.PoolClosedEvent{} },
		},
		{
			EventType:      enums.EventPoolCancelled,
			AggregateType:  enums.AggregatePool,
			Topic:          notify,
			PayloadFactory: func() interface{} { return &payloads.PoolClosedEvent{} },
		},
		{
			EventType:      enums.EventDeliveryStopCompleted,
			AggregateType:  enums.AggregateDeliveryRun,
			Topic:          notify,
			PayloadFactory: func() interface{} { return &payloads.DeliveryStopCompletedEvent{} },
		},
	} {
		reg.register(desc)
	}

	return reg, nil
}

func (r *EventRegistry) register(desc EventDescriptor) {
	if desc.PayloadFactory == nil {
		return
	}
	r.entries[desc.EventType] = desc
}

// Topics lists the distinct topics the registry publishes to.
func (r *EventRegistry) Topics() []string {
	seen := map[string]struct{}{}
	var topics []string
	for _, desc := range r.entries {
		if _, ok := seen[desc.Topic]; ok {
			continue
		}
		seen[desc.Topic] = struct{}{}
		topics = append(topics, desc.Topic)
	}
	return topics
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	envelope, err := outbox.OpenEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("%s: %w", event.EventType, err))
	}
	payload := desc.PayloadFactory()
	if err := envelope.Decode(payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("%s: %w", event.EventType, err))
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Envelope:   envelope,
		Payload:    payload,
	}, nil
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}
