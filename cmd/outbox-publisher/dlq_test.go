package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/groupbuy-backend/pkg/db/dbtest"
	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
	"github.com/angelmondragon/groupbuy-backend/pkg/outbox"
)

func TestDLQCommandListsAndRequeues(t *testing.T) {
	client := dbtest.Open(t)
	repo := outbox.NewDLQRepository(client.DB())
	logg := logger.New(logger.Options{ServiceName: "dlq-test", Output: io.Discard})
	ctx := context.Background()

	eventID := uuid.New()
	msg := "topic not found"
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return repo.InsertTx(tx, models.OutboxDLQ{
			EventID:       eventID,
			EventType:     enums.EventPoolExpired,
			AggregateType: enums.AggregatePool,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{"version":1}`),
			ErrorReason:   enums.OutboxDLQReasonNonRetryable,
			ErrorMessage:  &msg,
			AttemptCount:  1,
			FailedAt:      time.Now().UTC(),
		})
	}))

	var out bytes.Buffer
	require.NoError(t, runDLQ(ctx, []string{"list", "-limit", "5"}, &out, repo, client, logg))
	require.Contains(t, out.String(), eventID.String())
	require.Contains(t, out.String(), "non_retryable")

	out.Reset()
	require.NoError(t, runDLQ(ctx, []string{"requeue", eventID.String()}, &out, repo, client, logg))
	require.Contains(t, out.String(), "requeued "+eventID.String())

	out.Reset()
	require.NoError(t, runDLQ(ctx, []string{"list"}, &out, repo, client, logg))
	require.NotContains(t, out.String(), eventID.String())
}

func TestDLQCommandRejectsBadInput(t *testing.T) {
	client := dbtest.Open(t)
	repo := outbox.NewDLQRepository(client.DB())
	logg := logger.New(logger.Options{ServiceName: "dlq-test", Output: io.Discard})
	ctx := context.Background()

	require.Error(t, runDLQ(ctx, nil, io.Discard, repo, client, logg))
	require.Error(t, runDLQ(ctx, []string{"purge"}, io.Discard, repo, client, logg))
	require.Error(t, runDLQ(ctx, []string{"requeue"}, io.Discard, repo, client, logg))
	require.Error(t, runDLQ(ctx, []string{"requeue", "not-a-uuid"}, io.Discard, repo, client, logg))
	require.ErrorIs(t, runDLQ(ctx, []string{"requeue", uuid.NewString()}, io.Discard, repo, client, logg), outbox.ErrNotDeadLettered)
}
