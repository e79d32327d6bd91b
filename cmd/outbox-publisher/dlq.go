package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
	"github.com/angelmondragon/groupbuy-backend/pkg/outbox"
)

type dlqStore interface {
	List(ctx context.Context, limit int) ([]models.OutboxDLQ, error)
	RequeueTx(tx *gorm.DB, eventID uuid.UUID) (*models.OutboxEvent, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// runDLQ serves `outbox-publisher dlq list|requeue`.
func runDLQ(ctx context.Context, args []string, out io.Writer, store dlqStore, db txRunner, logg *logger.Logger) error {
	if len(args) == 0 {
		return errors.New("usage: outbox-publisher dlq list [-limit N] | requeue <event-id>...")
	}
	switch args[0] {
	case "list":
		fs := flag.NewFlagSet("dlq list", flag.ContinueOnError)
		fs.SetOutput(out)
		limit := fs.Int("limit", 50, "max entries, newest first")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		entries, err := store.List(ctx, *limit)
		if err != nil {
			return fmt.Errorf("list dlq: %w", err)
		}
		return printDLQ(out, entries)
	case "requeue":
		if len(args) < 2 {
			return errors.New("requeue needs at least one event id")
		}
		for _, raw := range args[1:] {
			id, err := uuid.Parse(raw)
			if err != nil {
				return fmt.Errorf("event id %q: %w", raw, err)
			}
			if err := db.WithTx(ctx, func(tx *gorm.DB) error {
				_, err := store.RequeueTx(tx, id)
				return err
			}); err != nil {
				return fmt.Errorf("requeue %s: %w", id, err)
			}
			logg.Info(logg.WithField(ctx, "event_id", id.String()), "dead letter requeued")
			fmt.Fprintf(out, "requeued %s\n", id)
		}
		return nil
	}
	return fmt.Errorf("unknown dlq command %q", args[0])
}

func printDLQ(out io.Writer, entries []models.OutboxDLQ) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EVENT ID\tTYPE\tREASON\tATTEMPTS\tFAILED AT\tERROR")
	for _, e := range entries {
		msg := ""
		if e.ErrorMessage != nil {
			msg = *e.ErrorMessage
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n", e.EventID, e.EventType, e.ErrorReason, e.AttemptCount, e.FailedAt.UTC().Format(time.RFC3339), msg)
	}
	return tw.Flush()
}

var _ dlqStore = (*outbox.DLQRepository)(nil)
