package outbox

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/groupbuy-backend/pkg/db/dbtest"
	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
)

func dlqEntry(eventID uuid.UUID, failedAt time.Time, message string) models.OutboxDLQ {
	return models.OutboxDLQ{
		EventID:       eventID,
		EventType:     enums.EventPoolConfirmed,
		AggregateType: enums.AggregatePool,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1}`),
		ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
		ErrorMessage:  &message,
		AttemptCount:  10,
		FailedAt:      failedAt,
	}
}

func TestDLQInsertTruncatesAndFinds(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewDLQRepository(client.DB())
	eventID := uuid.New()

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return repo.InsertTx(tx, dlqEntry(eventID, time.Now().UTC(), strings.Repeat("x", maxDLQErrorLen+50)))
	})
	require.NoError(t, err)

	found, err := repo.FindByEventID(context.Background(), eventID)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.NotNil(t, found.ErrorMessage)
	assert.Len(t, *found.ErrorMessage, maxDLQErrorLen)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, found.ErrorReason)

	missing, err := repo.FindByEventID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDLQInsertRequiresTransaction(t *testing.T) {
	repo := NewDLQRepository(nil)
	require.Error(t, repo.InsertTx(nil, models.OutboxDLQ{}))
}

func TestDLQListNewestFirst(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewDLQRepository(client.DB())
	base := time.Now().UTC().Add(-time.Hour)
	older, newer := uuid.New(), uuid.New()

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		if err := repo.InsertTx(tx, dlqEntry(older, base, "timeout")); err != nil {
			return err
		}
		return repo.InsertTx(tx, dlqEntry(newer, base.Add(30*time.Minute), "not found"))
	})
	require.NoError(t, err)

	rows, err := repo.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, newer, rows[0].EventID)

	rows, err = repo.List(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestDLQClipKeepsRunesWhole(t *testing.T) {
	msg := strings.Repeat("a", maxDLQErrorLen-1) + "é"
	clipped := clip(msg, maxDLQErrorLen)
	assert.Len(t, clipped, maxDLQErrorLen-1)
	assert.True(t, utf8.ValidString(clipped))
}

func TestDLQRequeueResetsOrRestoresOutboxRow(t *testing.T) {
	client := dbtest.Open(t)
	outboxRepo := NewRepository(client.DB())
	repo := NewDLQRepository(client.DB())
	ctx := context.Background()

	kept := models.OutboxEvent{ID: uuid.New(), EventType: enums.EventPoolConfirmed, AggregateType: enums.AggregatePool, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), AttemptCount: 10}
	require.NoError(t, client.DB().Create(&kept).Error)
	purged := uuid.New()

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := repo.InsertTx(tx, dlqEntry(kept.ID, time.Now().UTC(), "timeout")); err != nil {
			return err
		}
		return repo.InsertTx(tx, dlqEntry(purged, time.Now().UTC(), "timeout"))
	}))

	for _, id := range []uuid.UUID{kept.ID, purged} {
		require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
			event, err := repo.RequeueTx(tx, id)
			if err == nil {
				assert.Equal(t, id, event.ID)
			}
			return err
		}))
	}

	pending, err := outboxRepo.FetchUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	for _, row := range pending {
		assert.Zero(t, row.AttemptCount)
	}

	gone, err := repo.FindByEventID(ctx, kept.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	err = client.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := repo.RequeueTx(tx, uuid.New())
		return err
	})
	require.ErrorIs(t, err, ErrNotDeadLettered)
}
