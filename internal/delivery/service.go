// Package delivery allocates a shared delivery run across its stops and
// tracks each stop until the run completes.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/groupbuy-backend/internal/directory"
	"github.com/angelmondragon/groupbuy-backend/internal/sequence"
	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
	"github.com/angelmondragon/groupbuy-backend/pkg/locks"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
	"github.com/angelmondragon/groupbuy-backend/pkg/metrics"
	"github.com/angelmondragon/groupbuy-backend/pkg/money"
	"github.com/angelmondragon/groupbuy-backend/pkg/outbox"
	"github.com/angelmondragon/groupbuy-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/groupbuy-backend/pkg/types"
)

// ReasonEmptyRun marks the validation failure for a run without stops.
const ReasonEmptyRun = "empty_run"

var (
	openStopStatuses = []enums.DeliveryStopStatus{enums.DeliveryStopStatusScheduled, enums.DeliveryStopStatusArrived}
	openRunStatuses  = []enums.DeliveryRunStatus{enums.DeliveryRunStatusScheduled, enums.DeliveryRunStatusInProgress}
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	DB         txRunner
	Repository Repository
	Directory  directory.Directory
	Sequencer  sequence.Sequencer
	Outbox     outbox.Emitter
	Locker     locks.Locker
	Metrics    *metrics.PoolMetrics
	Logger     *logger.Logger
	Now        func() time.Time
}

type Service struct {
	db        txRunner
	repo      Repository
	directory directory.Directory
	sequencer sequence.Sequencer
	outbox    outbox.Emitter
	locker    locks.Locker
	metrics   *metrics.PoolMetrics
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(p ServiceParams) (*Service, error) {
	if p.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if p.Repository == nil {
		return nil, fmt.Errorf("delivery repository required")
	}
	if p.Directory == nil {
		return nil, fmt.Errorf("directory required")
	}
	if p.Sequencer == nil {
		return nil, fmt.Errorf("sequencer required")
	}
	if p.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if p.Locker == nil {
		return nil, fmt.Errorf("locker required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &Service{
		db:        p.DB,
		repo:      p.Repository,
		directory: p.Directory,
		sequencer: p.Sequencer,
		outbox:    p.Outbox,
		locker:    p.Locker,
		metrics:   p.Metrics,
		logg:      p.Logger,
		now:       p.Now,
	}, nil
}

// StopInput is one requested stop. Address and location default to the
// shop's directory entry.
type StopInput struct {
	ShopID   uuid.UUID
	Address  string
	Location *types.GeographyPoint
}

// CreateRunInput lists stops explicitly or derives them from a confirmed
// pool when Stops is empty and PoolID is set.
type CreateRunInput struct {
	PoolID            *uuid.UUID
	ScheduledDate     time.Time
	TotalDeliveryCost decimal.Decimal
	Stops             []StopInput
}

// DriverInput assigns a driver to a run.
type DriverInput struct {
	DriverID   uuid.UUID
	DriverName string
	VehicleRef string
}

// ProofInput is optional evidence captured on completion.
type ProofInput struct {
	Kind      enums.ProofKind
	Reference string
	SignedBy  string
	Note      string
}

// CreateRun schedules a run and splits its cost equally across the stops.
func (s *Service) CreateRun(ctx context.Context, actor types.Actor, input CreateRunInput) (*models.DeliveryRun, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if err := requireCoordinator(actor); err != nil {
		return nil, err
	}
	if input.ScheduledDate.IsZero() {
		return nil, validation("scheduled_date", "scheduled date is required")
	}
	if input.TotalDeliveryCost.IsNegative() {
		return nil, validation("total_delivery_cost", "delivery cost must not be negative")
	}
	if len(input.Stops) == 0 && input.PoolID == nil {
		return nil, emptyRun()
	}

	now := s.now().UTC()
	var run *models.DeliveryRun
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		stops := input.Stops
		if input.PoolID != nil {
			derived, err := s.poolStops(ctx, repo, actor.TenantID, *input.PoolID)
			if err != nil {
				return err
			}
			if len(stops) == 0 {
				stops = derived
			}
		}
		if len(stops) == 0 {
			return emptyRun()
		}

		resolved, err := s.resolveStops(ctx, tx, actor.TenantID, stops)
		if err != nil {
			return err
		}
		shares, err := money.SplitEvenly(input.TotalDeliveryCost, len(resolved))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "split delivery cost")
		}
		number, err := sequence.Allocate(ctx, s.sequencer, tx, sequence.ScopeDeliveryRun, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate run number")
		}

		run = &models.DeliveryRun{
			ID:                uuid.New(),
			RunNumber:         number,
			TenantID:          actor.TenantID,
			PoolID:            input.PoolID,
			ScheduledDate:     input.ScheduledDate.UTC(),
			TotalDeliveryCost: money.Round(input.TotalDeliveryCost),
			ParticipantCount:  len(resolved),
			CostPerStop:       shares[0],
			Status:            enums.DeliveryRunStatusScheduled,
		}
		shopIDs := make([]uuid.UUID, 0, len(resolved))
		for i, stop := range resolved {
			run.Stops = append(run.Stops, models.DeliveryStop{
				ID:             uuid.New(),
				RunID:          run.ID,
				ShopID:         stop.ShopID,
				SequenceNumber: i + 1,
				Address:        stop.Address,
				Location:       stop.Location,
				CostShare:      shares[i],
				Status:         enums.DeliveryStopStatusScheduled,
			})
			shopIDs = append(shopIDs, stop.ShopID)
		}
		if err := repo.CreateRun(ctx, run); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create delivery run")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDeliveryRunCreated,
			AggregateType: enums.AggregateDeliveryRun,
			AggregateID:   run.ID,
			Actor:         outbox.RefOf(actor),
			OccurredAt:    now,
			Data: payloads.DeliveryRunCreatedEvent{
				RunID:         run.ID,
				RunNumber:     run.RunNumber,
				PoolID:        run.PoolID,
				ScheduledDate: run.ScheduledDate,
				ShopIDs:       shopIDs,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(s.logg.WithRunID(ctx, run.ID.String()), map[string]any{
		"run_number": run.RunNumber,
		"stops":      len(run.Stops),
	})
	s.logg.Info(logCtx, "delivery run created")
	return run, nil
}

// AssignDriver sets or replaces the driver of a non-terminal run.
func (s *Service) AssignDriver(ctx context.Context, actor types.Actor, runID uuid.UUID, input DriverInput) (*models.DeliveryRun, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if err := requireCoordinator(actor); err != nil {
		return nil, err
	}
	if input.DriverID == uuid.Nil {
		return nil, validation("driver_id", "driver is required")
	}

	err := s.withRunLock(ctx, runID, func() error {
		return s.db.WithTx(ctx, func(tx *gorm.DB) error {
			updates := map[string]any{"driver_id": input.DriverID}
			if name := strings.TrimSpace(input.DriverName); name != "" {
				updates["driver_name"] = name
			}
			if vehicle := strings.TrimSpace(input.VehicleRef); vehicle != "" {
				updates["vehicle_ref"] = vehicle
			}
			return s.updateRun(ctx, tx, actor.TenantID, runID, openRunStatuses, updates, "driver can only be assigned to an open run")
		})
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithField(s.logg.WithRunID(ctx, runID.String()), "driver_id", input.DriverID.String()), "driver assigned")
	return s.repo.FindRun(ctx, actor.TenantID, runID)
}

// StartRun moves a scheduled run to in progress.
func (s *Service) StartRun(ctx context.Context, actor types.Actor, runID uuid.UUID) (*models.DeliveryRun, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	err := s.withRunLock(ctx, runID, func() error {
		return s.db.WithTx(ctx, func(tx *gorm.DB) error {
			run, err := s.loadRun(ctx, tx, actor.TenantID, runID)
			if err != nil {
				return err
			}
			if err := authorizeDriver(actor, run); err != nil {
				return err
			}
			return s.updateRun(ctx, tx, actor.TenantID, runID,
				[]enums.DeliveryRunStatus{enums.DeliveryRunStatusScheduled},
				map[string]any{"status": enums.DeliveryRunStatusInProgress, "started_at": s.now().UTC()},
				"only a scheduled run can be started")
		})
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithRunID(ctx, runID.String()), "delivery run started")
	return s.repo.FindRun(ctx, actor.TenantID, runID)
}

// RecordArrival stamps the driver's arrival at a stop.
func (s *Service) RecordArrival(ctx context.Context, actor types.Actor, stopID uuid.UUID, at time.Time) (*models.DeliveryStop, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	at = s.stamp(at)
	stop, err := s.mutateStop(ctx, actor, stopID, func(tx *gorm.DB, run *models.DeliveryRun, stop *models.DeliveryStop) error {
		if stop.Status != enums.DeliveryStopStatusScheduled {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "arrival already recorded or stop closed").
				WithDetails(map[string]any{"status": stop.Status})
		}
		if err := s.transitionStop(ctx, tx, stop, []enums.DeliveryStopStatus{enums.DeliveryStopStatusScheduled}, map[string]any{
			"status":     enums.DeliveryStopStatusArrived,
			"arrived_at": at,
		}); err != nil {
			return err
		}
		stop.Status = enums.DeliveryStopStatusArrived
		stop.ArrivedAt = &at
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncStop(string(enums.DeliveryStopStatusArrived))
	s.logg.Info(s.logg.WithRunID(ctx, stop.RunID.String()), "delivery stop arrival recorded")
	return stop, nil
}

// RecordCompletion closes a stop, storing proof when provided. The run
// completes once every stop is closed.
func (s *Service) RecordCompletion(ctx context.Context, actor types.Actor, stopID uuid.UUID, at time.Time, proof *ProofInput) (*models.DeliveryStop, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if proof != nil && !proof.Kind.IsValid() {
		return nil, validation("proof.kind", "unknown proof kind")
	}
	at = s.stamp(at)
	stop, err := s.mutateStop(ctx, actor, stopID, func(tx *gorm.DB, run *models.DeliveryRun, stop *models.DeliveryStop) error {
		if stop.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "stop already closed").
				WithDetails(map[string]any{"status": stop.Status})
		}
		updates := map[string]any{
			"status":       enums.DeliveryStopStatusCompleted,
			"completed_at": at,
		}
		if stop.ArrivedAt == nil {
			updates["arrived_at"] = at
			stop.ArrivedAt = &at
		}
		if err := s.transitionStop(ctx, tx, stop, openStopStatuses, updates); err != nil {
			return err
		}
		stop.Status = enums.DeliveryStopStatusCompleted
		stop.CompletedAt = &at

		kind := ""
		if proof != nil {
			row := &models.DeliveryProof{
				ID:         uuid.New(),
				StopID:     stop.ID,
				Kind:       proof.Kind,
				Reference:  strings.TrimSpace(proof.Reference),
				SignedBy:   optional(proof.SignedBy),
				Note:       optional(proof.Note),
				CapturedAt: at,
			}
			if err := s.repo.WithTx(tx).AddProof(ctx, row); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store proof")
			}
			stop.Proofs = append(stop.Proofs, *row)
			kind = proof.Kind.String()
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDeliveryStopCompleted,
			AggregateType: enums.AggregateDeliveryRun,
			AggregateID:   run.ID,
			Actor:         outbox.RefOf(actor),
			OccurredAt:    at,
			Data: payloads.DeliveryStopCompletedEvent{
				RunID:     run.ID,
				StopID:    stop.ID,
				ShopID:    stop.ShopID,
				ProofKind: kind,
				At:        at,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncStop(string(enums.DeliveryStopStatusCompleted))
	s.logg.Info(s.logg.WithRunID(ctx, stop.RunID.String()), "delivery stop completed")
	s.completeRunIfDone(ctx, actor, stop.RunID)
	return stop, nil
}

// FailStop closes a stop that could not be delivered.
func (s *Service) FailStop(ctx context.Context, actor types.Actor, stopID uuid.UUID, reason string) (*models.DeliveryStop, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, validation("reason", "failure reason is required")
	}
	stop, err := s.mutateStop(ctx, actor, stopID, func(tx *gorm.DB, run *models.DeliveryRun, stop *models.DeliveryStop) error {
		if stop.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "stop already closed").
				WithDetails(map[string]any{"status": stop.Status})
		}
		at := s.now().UTC()
		if err := s.transitionStop(ctx, tx, stop, openStopStatuses, map[string]any{
			"status":         enums.DeliveryStopStatusFailed,
			"failed_at":      at,
			"failure_reason": reason,
		}); err != nil {
			return err
		}
		stop.Status = enums.DeliveryStopStatusFailed
		stop.FailedAt = &at
		stop.FailureReason = &reason
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncStop(string(enums.DeliveryStopStatusFailed))
	s.logg.Warn(s.logg.WithField(s.logg.WithRunID(ctx, stop.RunID.String()), "reason", reason), "delivery stop failed")
	s.completeRunIfDone(ctx, actor, stop.RunID)
	return stop, nil
}

type stopMutation func(tx *gorm.DB, run *models.DeliveryRun, stop *models.DeliveryStop) error

// mutateStop serializes writes per stop. A scheduled run is moved to in
// progress by its first stop event.
func (s *Service) mutateStop(ctx context.Context, actor types.Actor, stopID uuid.UUID, op stopMutation) (*models.DeliveryStop, error) {
	unlock, err := s.lock(ctx, "stop:"+stopID.String())
	if err != nil {
		return nil, err
	}
	defer unlock()

	var out *models.DeliveryStop
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		stop, err := repo.FindStop(ctx, actor.TenantID, stopID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "delivery stop not found").
				WithDetails(map[string]any{"stop_id": stopID})
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load delivery stop")
		}
		run, err := s.loadRun(ctx, tx, actor.TenantID, stop.RunID)
		if err != nil {
			return err
		}
		if err := authorizeDriver(actor, run); err != nil {
			return err
		}
		if run.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "delivery run is closed").
				WithDetails(map[string]any{"status": run.Status})
		}
		if run.Status == enums.DeliveryRunStatusScheduled {
			if _, err := repo.UpdateRun(ctx, run.ID, []enums.DeliveryRunStatus{enums.DeliveryRunStatusScheduled}, map[string]any{
				"status":     enums.DeliveryRunStatusInProgress,
				"started_at": s.now().UTC(),
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "start delivery run")
			}
		}
		if err := op(tx, run, stop); err != nil {
			return err
		}
		out = stop
		return nil
	})
	return out, err
}

// completeRunIfDone runs after the stop write commits so the last stop to
// close always observes every other closed stop.
func (s *Service) completeRunIfDone(ctx context.Context, actor types.Actor, runID uuid.UUID) {
	err := s.withRunLock(ctx, runID, func() error {
		return s.db.WithTx(ctx, func(tx *gorm.DB) error {
			run, err := s.loadRun(ctx, tx, actor.TenantID, runID)
			if err != nil {
				return err
			}
			if run.Status.IsTerminal() {
				return nil
			}
			completed, failed := 0, 0
			for _, stop := range run.Stops {
				switch stop.Status {
				case enums.DeliveryStopStatusCompleted:
					completed++
				case enums.DeliveryStopStatusFailed:
					failed++
				default:
					return nil
				}
			}
			now := s.now().UTC()
			ok, err := s.repo.WithTx(tx).UpdateRun(ctx, runID, openRunStatuses, map[string]any{
				"status":       enums.DeliveryRunStatusCompleted,
				"completed_at": now,
			})
			if err != nil || !ok {
				return err
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventDeliveryRunCompleted,
				AggregateType: enums.AggregateDeliveryRun,
				AggregateID:   runID,
				Actor:         outbox.RefOf(actor),
				OccurredAt:    now,
				Data: payloads.DeliveryRunCompletedEvent{
					RunID:          runID,
					RunNumber:      run.RunNumber,
					CompletedStops: completed,
					FailedStops:    failed,
					CompletedAt:    now,
				},
			})
		})
	})
	if err != nil {
		s.logg.Error(s.logg.WithRunID(ctx, runID.String()), "delivery run completion check failed", err)
	}
}

func (s *Service) poolStops(ctx context.Context, repo Repository, tenantID, poolID uuid.UUID) ([]StopInput, error) {
	pool, err := repo.FindPool(ctx, tenantID, poolID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "pool not found").
			WithDetails(map[string]any{"pool_id": poolID})
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load pool")
	}
	if pool.Status != enums.PoolStatusConfirmed {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidState, "pool is not confirmed").
			WithDetails(map[string]any{"status": pool.Status})
	}
	existing, err := repo.FindRunByPool(ctx, tenantID, poolID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup pool run")
	}
	if existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "pool already has a delivery run").
			WithDetails(map[string]any{"run_id": existing.ID})
	}
	participants, err := repo.ConfirmedParticipants(ctx, poolID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list confirmed participants")
	}
	stops := make([]StopInput, 0, len(participants))
	for _, p := range participants {
		stops = append(stops, StopInput{ShopID: p.ShopID})
	}
	return stops, nil
}

// resolveStops fills addresses and locations from the directory and rejects
// unknown or repeated shops.
func (s *Service) resolveStops(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, stops []StopInput) ([]StopInput, error) {
	ids := make([]uuid.UUID, 0, len(stops))
	seen := make(map[uuid.UUID]struct{}, len(stops))
	for i, stop := range stops {
		if stop.ShopID == uuid.Nil {
			return nil, validation(fmt.Sprintf("stops[%d].shop_id", i), "shop is required")
		}
		if _, dup := seen[stop.ShopID]; dup {
			return nil, validation(fmt.Sprintf("stops[%d].shop_id", i), "shop appears more than once")
		}
		seen[stop.ShopID] = struct{}{}
		ids = append(ids, stop.ShopID)
	}
	shops, err := s.directory.WithTx(tx).Shops(ctx, tenantID, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup shops")
	}
	out := make([]StopInput, 0, len(stops))
	for _, stop := range stops {
		shop, ok := shops[stop.ShopID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shop not found").
				WithDetails(map[string]any{"shop_id": stop.ShopID})
		}
		if strings.TrimSpace(stop.Address) == "" {
			stop.Address = shop.Address
		}
		if stop.Location == nil {
			stop.Location = shop.Location
		}
		out = append(out, stop)
	}
	return out, nil
}

func (s *Service) withRunLock(ctx context.Context, runID uuid.UUID, fn func() error) error {
	unlock, err := s.lock(ctx, "run:"+runID.String())
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

func (s *Service) lock(ctx context.Context, key string) (func(), error) {
	unlock, err := s.locker.Lock(ctx, key)
	if err != nil {
		if errors.Is(err, locks.ErrNotAcquired) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConcurrencyConflict, err, "delivery record is busy")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire delivery lock")
	}
	return unlock, nil
}

func (s *Service) loadRun(ctx context.Context, tx *gorm.DB, tenantID, runID uuid.UUID) (*models.DeliveryRun, error) {
	run, err := s.repo.WithTx(tx).FindRun(ctx, tenantID, runID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery run not found").
			WithDetails(map[string]any{"run_id": runID})
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load delivery run")
	}
	return run, nil
}

func (s *Service) updateRun(ctx context.Context, tx *gorm.DB, tenantID, runID uuid.UUID, from []enums.DeliveryRunStatus, updates map[string]any, msg string) error {
	run, err := s.loadRun(ctx, tx, tenantID, runID)
	if err != nil {
		return err
	}
	ok, err := s.repo.WithTx(tx).UpdateRun(ctx, run.ID, from, updates)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update delivery run")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeInvalidState, msg).
			WithDetails(map[string]any{"status": run.Status})
	}
	return nil
}

func (s *Service) transitionStop(ctx context.Context, tx *gorm.DB, stop *models.DeliveryStop, from []enums.DeliveryStopStatus, updates map[string]any) error {
	ok, err := s.repo.WithTx(tx).UpdateStop(ctx, stop.ID, from, updates)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update delivery stop")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeConcurrencyConflict, "delivery stop changed concurrently")
	}
	return nil
}

func (s *Service) stamp(at time.Time) time.Time {
	if at.IsZero() {
		return s.now().UTC()
	}
	return at.UTC()
}

func requireCoordinator(actor types.Actor) error {
	if actor.Role != enums.ActorRoleCoordinator {
		return pkgerrors.New(pkgerrors.CodeForbidden, "coordinator role required")
	}
	return nil
}

// authorizeDriver allows coordinators, and drivers on their assigned run.
func authorizeDriver(actor types.Actor, run *models.DeliveryRun) error {
	if actor.Role == enums.ActorRoleCoordinator {
		return nil
	}
	if actor.Role == enums.ActorRoleDriver && run.DriverID != nil && *run.DriverID == actor.UserID {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "not assigned to this delivery run")
}

func validation(field, msg string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(map[string]any{"field": field})
}

func emptyRun() error {
	return pkgerrors.New(pkgerrors.CodeValidation, "delivery run needs at least one stop").
		WithDetails(map[string]any{"reason": ReasonEmptyRun})
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
