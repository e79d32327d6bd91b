package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
	"github.com/angelmondragon/groupbuy-backend/pkg/metrics"
	"github.com/angelmondragon/groupbuy-backend/pkg/outbox/registry"
)

// delivery tracks one outbox row through publish and settlement.
type delivery struct {
	event    models.OutboxEvent
	resolved *registry.ResolvedEvent
	result   publishResult
	err      error
}

func (d *delivery) topic() string {
	if d.resolved == nil {
		return ""
	}
	return d.resolved.Descriptor.Topic
}

// processBatch claims a batch, publishes every row before waiting on any
// ack so the client can batch them, then records each outcome in the same
// transaction that holds the row locks.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	start := time.Now()
	processed := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil || len(events) == 0 {
			return err
		}
		processed = true
		for _, d := range s.dispatch(ctx, events) {
			if err := s.settle(ctx, tx, d); err != nil {
				return err
			}
		}
		return nil
	})
	if processed {
		s.metrics.Batch(time.Since(start))
	}
	return processed, err
}

func (s *Service) dispatch(ctx context.Context, events []models.OutboxEvent) []*delivery {
	ackCtx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()

	out := make([]*delivery, len(events))
	for i, event := range events {
		d := &delivery{event: event}
		out[i] = d
		if d.resolved, d.err = s.registry.Resolve(event); d.err != nil {
			continue
		}
		pub := s.topics.get(d.topic())
		if pub == nil {
			d.err = registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %q", d.topic()))
			continue
		}
		if d.result = pub.Publish(ackCtx, messageFor(d)); d.result == nil {
			d.err = registry.NewNonRetryableError(fmt.Errorf("publisher for %q returned no result", d.topic()))
		}
	}
	for _, d := range out {
		if d.result != nil && d.err == nil {
			_, d.err = d.result.Get(ackCtx)
		}
	}
	return out
}

func messageFor(d *delivery) *gcppubsub.Message {
	env := d.resolved.Envelope
	attrs := map[string]string{
		"event_id":       env.EventID,
		"event_type":     string(d.event.EventType),
		"aggregate_type": string(d.event.AggregateType),
		"aggregate_id":   d.event.AggregateID.String(),
		"created_at":     d.event.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if env.Actor != nil && env.Actor.TenantID != uuid.Nil {
		attrs["tenant_id"] = env.Actor.TenantID.String()
	}
	return &gcppubsub.Message{Data: d.event.Payload, Attributes: attrs}
}

// settle writes the outcome of d. It only fails when the row itself could
// not be updated, which aborts the batch.
func (s *Service) settle(ctx context.Context, tx *gorm.DB, d *delivery) error {
	fields := s.fields(d)
	eventType := string(d.event.EventType)

	if d.err == nil {
		if err := s.repo.MarkPublishedTx(tx, d.event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", d.event.ID, err)
		}
		s.metrics.Event(eventType, metrics.OutboxPublished)
		s.metrics.Lag(d.event.CreatedAt)
		s.logg.Info(s.logg.WithFields(ctx, fields), "outbox event published")
		return nil
	}

	var nonRetry registry.NonRetryableError
	if errors.As(d.err, &nonRetry) {
		return s.deadLetter(ctx, tx, d, enums.OutboxDLQReasonNonRetryable, d.err, fields)
	}
	attempt := d.event.AttemptCount + 1
	if attempt >= s.maxAttempts {
		return s.deadLetter(ctx, tx, d, enums.OutboxDLQReasonMaxAttempts,
			fmt.Errorf("gave up after %d attempts: %w", attempt, d.err), fields)
	}

	fields["attempt_count"] = attempt
	fields["error"] = d.err.Error()
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox publish failed, will retry")
	if err := s.repo.MarkFailedTx(tx, d.event.ID, d.err); err != nil {
		return fmt.Errorf("mark failed %s: %w", d.event.ID, err)
	}
	s.metrics.Event(eventType, metrics.OutboxRetried)
	return nil
}

func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, d *delivery, reason enums.OutboxDLQErrorReason, cause error, fields map[string]any) error {
	fields["error_reason"] = reason
	fields["error"] = cause.Error()
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox event dead-lettered")

	msg := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       d.event.ID,
		EventType:     d.event.EventType,
		AggregateType: d.event.AggregateType,
		AggregateID:   d.event.AggregateID,
		Payload:       d.event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  d.event.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}
	if err := s.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", d.event.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, d.event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", d.event.ID, err)
	}
	s.metrics.Event(string(d.event.EventType), metrics.OutboxDeadLettered)
	return nil
}

func (s *Service) fields(d *delivery) map[string]any {
	fields := map[string]any{
		"outbox_id":      d.event.ID.String(),
		"event_type":     d.event.EventType,
		"aggregate_type": d.event.AggregateType,
		"aggregate_id":   d.event.AggregateID.String(),
		"attempt_count":  d.event.AttemptCount,
	}
	if topic := d.topic(); topic != "" {
		fields["topic"] = topic
	}
	if d.resolved != nil && d.resolved.Envelope.EventID != "" {
		fields["event_id"] = d.resolved.Envelope.EventID
		fields["occurred_at"] = d.resolved.Envelope.OccurredAt.Format(time.RFC3339Nano)
	}
	return fields
}
