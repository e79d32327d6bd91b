package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/groupbuy-backend/pkg/config"
	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
	"github.com/angelmondragon/groupbuy-backend/pkg/outbox"
	"github.com/angelmondragon/groupbuy-backend/pkg/outbox/payloads"
)

func TestEventRegistryResolveSuccess(t *testing.T) {
	reg := newTestEventRegistry(t)

	orderID := uuid.New()
	event := models.OutboxEvent{
		EventType:     enums.EventPoolConfirmed,
		AggregateType: enums.AggregatePool,
		AggregateID:   uuid.New(),
		Payload: mustEnvelope(t, mustMarshal(t, payloads.PoolConfirmedEvent{
			OrderID:          orderID,
			OrderNumber:      "PO-20260212-0001",
			TotalQuantity:    15,
			Total:            decimal.RequireFromString("410.50"),
			ParticipantCount: 3,
		})),
	}

	resolved, err := reg.Resolve(event)
	require.NoError(t, err)
	assert.Equal(t, "notification-topic", resolved.Descriptor.Topic)
	payload, ok := resolved.Payload.(*payloads.PoolConfirmedEvent)
	require.True(t, ok, "unexpected payload type %T", resolved.Payload)
	assert.Equal(t, orderID, payload.OrderID)
	assert.True(t, payload.Total.Equal(decimal.RequireFromString("410.50")))
	assert.NotEmpty(t, resolved.Envelope.EventID)
}

func TestEventRegistryRoutesByConcern(t *testing.T) {
	reg := newTestEventRegistry(t)
	cases := map[enums.OutboxEventType]string{
		enums.EventPoolJoined:             "pools-topic",
		enums.EventAggregatedOrderCreated: "pools-topic",
		enums.EventDeliveryRunCreated:     "delivery-topic",
		enums.EventDeliveryStopCompleted:  "notification-topic",
		enums.EventPoolExpired:            "notification-topic",
	}
	for eventType, topic := range cases {
		desc, ok := reg.entries[eventType]
		require.True(t, ok, "missing %s", eventType)
		assert.Equal(t, topic, desc.Topic, "topic for %s", eventType)
	}
	assert.ElementsMatch(t, []string{"pools-topic", "delivery-topic", "notification-topic"}, reg.Topics())
}

func TestEventRegistryRejectsBadRows(t *testing.T) {
	reg := newTestEventRegistry(t)
	cases := []struct {
		name  string
		event models.OutboxEvent
	}{
		{
			name: "aggregate mismatch",
			event: models.OutboxEvent{
				EventType:     enums.EventPoolJoined,
				AggregateType: enums.AggregateDeliveryRun,
				AggregateID:   uuid.New(),
				Payload:       mustEnvelope(t, []byte(`{}`)),
			},
		},
		{
			name: "missing aggregate id",
			event: models.OutboxEvent{
				EventType:     enums.EventPoolJoined,
				AggregateType: enums.AggregatePool,
				Payload:       mustEnvelope(t, []byte(`{}`)),
			},
		},
		{
			name: "null payload",
			event: models.OutboxEvent{
				EventType:     enums.EventPoolJoined,
				AggregateType: enums.AggregatePool,
				AggregateID:   uuid.New(),
				Payload:       mustEnvelope(t, []byte("null")),
			},
		},
		{
			name: "unknown event",
			event: models.OutboxEvent{
				EventType:     enums.OutboxEventType("pool_teleported"),
				AggregateType: enums.AggregatePool,
				AggregateID:   uuid.New(),
				Payload:       mustEnvelope(t, []byte(`{}`)),
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := reg.Resolve(tc.event)
			require.Error(t, err)
			var nonRetry NonRetryableError
			assert.True(t, errors.As(err, &nonRetry))
		})
	}
}

func TestNewEventRegistryRequiresTopics(t *testing.T) {
	_, err := NewEventRegistry(config.PubSubConfig{PoolsTopic: "pools"})
	require.Error(t, err)
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{
		PoolsTopic:        "pools-topic",
		DeliveryTopic:     "delivery-topic",
		NotificationTopic: "notification-topic",
	})
	require.NoError(t, err)
	return reg
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func mustEnvelope(t *testing.T, payload []byte) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       payload,
	})
	require.NoError(t, err)
	return data
}
