package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePoolStatus(t *testing.T) {
	status, err := ParsePoolStatus("pending_confirmation")
	require.NoError(t, err)
	assert.Equal(t, PoolStatusPendingConfirmation, status)

	_, err = ParsePoolStatus("draft")
	require.Error(t, err)
}

func TestPoolStatusTransitionsHelpers(t *testing.T) {
	assert.True(t, PoolStatusOpen.IsJoinable())
	assert.True(t, PoolStatusPendingConfirmation.IsJoinable())
	assert.False(t, PoolStatusConfirmed.IsJoinable())

	for _, status := range []PoolStatus{PoolStatusConfirmed, PoolStatusCancelled, PoolStatusExpired} {
		assert.True(t, status.IsTerminal(), status.String())
	}
	assert.False(t, PoolStatusOpen.IsTerminal())
}

func TestDeliveryStatusesTerminal(t *testing.T) {
	assert.True(t, DeliveryRunStatusCompleted.IsTerminal())
	assert.False(t, DeliveryRunStatusInProgress.IsTerminal())
	assert.True(t, DeliveryStopStatusFailed.IsTerminal())
	assert.False(t, DeliveryStopStatusArrived.IsTerminal())
}

func TestOutboxEventTypes(t *testing.T) {
	assert.True(t, EventPoolConfirmed.IsValid())
	_, err := ParseOutboxEventType("order_created")
	require.Error(t, err)
	agg, err := ParseOutboxAggregateType("delivery_run")
	require.NoError(t, err)
	assert.Equal(t, AggregateDeliveryRun, agg)

	assert.True(t, OutboxDLQReasonMaxAttempts.IsValid())
	assert.False(t, OutboxDLQErrorReason("gave_up").IsValid())
}

func TestActorRole(t *testing.T) {
	role, err := ParseActorRole("driver")
	require.NoError(t, err)
	assert.False(t, role.ActsForShop())
	assert.True(t, ActorRoleShopStaff.ActsForShop())
	assert.False(t, ActorRole("root").IsValid())
}
