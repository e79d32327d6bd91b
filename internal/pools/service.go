// Package pools drives a pool through Open, PendingConfirmation and its
// terminal states. Every mutation runs under the per-pool lock inside one
// transaction and queues its outbox events in that transaction.
package pools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/groupbuy-backend/internal/directory"
	"github.com/angelmondragon/groupbuy-backend/internal/ledger"
	"github.com/angelmondragon/groupbuy-backend/internal/sequence"
	"github.com/angelmondragon/groupbuy-backend/internal/settlement"
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

const expiryBatchSize = 200

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// RetryPolicy bounds the internal retry of concurrency conflicts.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
}

// ServiceParams wires the lifecycle manager.
type ServiceParams struct {
	DB         txRunner
	Repository Repository
	Ledger     *ledger.Service
	Settler    settlement.Settler
	Directory  directory.Directory
	Sequencer  sequence.Sequencer
	Outbox     outbox.Emitter
	Locker     locks.Locker
	Metrics    *metrics.PoolMetrics
	Logger     *logger.Logger
	Retry      RetryPolicy
	Now        func() time.Time
}

type Service struct {
	db        txRunner
	repo      Repository
	ledger    *ledger.Service
	settler   settlement.Settler
	directory directory.Directory
	sequencer sequence.Sequencer
	outbox    outbox.Emitter
	locker    locks.Locker
	metrics   *metrics.PoolMetrics
	logg      *logger.Logger
	retry     RetryPolicy
	now       func() time.Time
}

func NewService(p ServiceParams) (*Service, error) {
	if p.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if p.Repository == nil {
		return nil, fmt.Errorf("pool repository required")
	}
	if p.Ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	if p.Settler == nil {
		return nil, fmt.Errorf("settler required")
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
	if p.Retry.Attempts <= 0 {
		p.Retry.Attempts = 3
	}
	if p.Retry.BaseDelay <= 0 {
		p.Retry.BaseDelay = 25 * time.Millisecond
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &Service{
		db:        p.DB,
		repo:      p.Repository,
		ledger:    p.Ledger,
		settler:   p.Settler,
		directory: p.Directory,
		sequencer: p.Sequencer,
		outbox:    p.Outbox,
		locker:    p.Locker,
		metrics:   p.Metrics,
		logg:      p.Logger,
		retry:     p.Retry,
		now:       p.Now,
	}, nil
}

// CreateInput describes a new pool. Exactly one of BulkDiscountPercentage and
// PoolPrice is set; the other is derived.
type CreateInput struct {
	ProductID              uuid.UUID
	SupplierID             uuid.UUID
	Title                  string
	MinimumQuantity        int64
	MaximumQuantity        *int64
	UnitPrice              decimal.Decimal
	BulkDiscountPercentage *decimal.Decimal
	PoolPrice              *decimal.Decimal
	EstimatedShippingCost  decimal.Decimal
	CloseDate              time.Time
	AreaGroup              string
}

// Detail is a pool with its active commitments.
type Detail struct {
	Pool         models.Pool
	Participants []models.PoolParticipation
}

// ConfirmResult is the committed outcome of Confirm.
type ConfirmResult struct {
	Pool         models.Pool
	Order        models.AggregatedPurchaseOrder
	Participants []models.PoolParticipation
}

// Create validates the offer, resolves its references and opens the pool.
func (s *Service) Create(ctx context.Context, actor types.Actor, input CreateInput) (*models.Pool, error) {
	if err := actor.RequireShop(); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	pct, err := validateCreate(input, now)
	if err != nil {
		return nil, err
	}

	var pool *models.Pool
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		dir := s.directory.WithTx(tx)
		shop, err := dir.Shop(ctx, actor.TenantID, actor.ShopID)
		if err != nil {
			return err
		}
		if _, err := dir.Supplier(ctx, actor.TenantID, input.SupplierID); err != nil {
			return err
		}
		product, err := dir.Product(ctx, actor.TenantID, input.ProductID)
		if err != nil {
			return err
		}
		if product.SupplierID != input.SupplierID {
			return pkgerrors.New(pkgerrors.CodeValidation, "product is not offered by supplier").
				WithDetails(map[string]any{"product_id": product.ID, "supplier_id": input.SupplierID})
		}

		number, err := sequence.Allocate(ctx, s.sequencer, tx, sequence.ScopePool, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate pool number")
		}
		areaGroup := strings.TrimSpace(input.AreaGroup)
		if areaGroup == "" {
			areaGroup = shop.AreaGroup
		}
		title := strings.TrimSpace(input.Title)
		if title == "" {
			title = product.Name
		}

		pool = &models.Pool{
			ID:                     uuid.New(),
			PoolNumber:             number,
			TenantID:               actor.TenantID,
			ProductID:              product.ID,
			SupplierID:             input.SupplierID,
			InitiatorShopID:        shop.ID,
			Title:                  title,
			MinimumQuantity:        input.MinimumQuantity,
			MaximumQuantity:        input.MaximumQuantity,
			UnitPrice:              money.Round(input.UnitPrice),
			BulkDiscountPercentage: pct,
			FinalUnitPrice:         money.ApplyDiscount(input.UnitPrice, pct),
			OpenDate:               now,
			CloseDate:              input.CloseDate.UTC(),
			EstimatedShippingCost:  money.Round(input.EstimatedShippingCost),
			AreaGroup:              areaGroup,
			Status:                 enums.PoolStatusOpen,
			Version:                1,
		}
		if err := s.repo.WithTx(tx).Create(ctx, pool); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create pool")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPoolCreated,
			AggregateType: enums.AggregatePool,
			AggregateID:   pool.ID,
			Actor:         outbox.RefOf(actor),
			OccurredAt:    now,
			Data: payloads.PoolCreatedEvent{
				PoolID:          pool.ID,
				PoolNumber:      pool.PoolNumber,
				TenantID:        pool.TenantID,
				ProductID:       pool.ProductID,
				SupplierID:      pool.SupplierID,
				InitiatorShopID: pool.InitiatorShopID,
				AreaGroup:       pool.AreaGroup,
				MinimumQuantity: pool.MinimumQuantity,
				MaximumQuantity: pool.MaximumQuantity,
				FinalUnitPrice:  pool.FinalUnitPrice,
				CloseDate:       pool.CloseDate,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(s.logg.WithPoolID(ctx, pool.ID.String()), map[string]any{
		"pool_number": pool.PoolNumber,
		"area_group":  pool.AreaGroup,
	})
	s.logg.Info(logCtx, "pool created")
	return pool, nil
}

// Join commits quantity on behalf of the actor's shop.
func (s *Service) Join(ctx context.Context, actor types.Actor, poolID uuid.UUID, quantity int64) (*models.PoolParticipation, error) {
	if err := actor.RequireShop(); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		s.metrics.IncJoin(outcome(pkgerrors.New(pkgerrors.CodeValidation, "")))
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	var (
		participation *models.PoolParticipation
		reached       bool
	)
	err := s.mutate(ctx, actor.TenantID, poolID, func(tx *gorm.DB, pool *models.Pool, now time.Time) error {
		if _, err := s.directory.WithTx(tx).Shop(ctx, actor.TenantID, actor.ShopID); err != nil {
			return err
		}
		before := pool.Status
		p, err := s.ledger.Join(ctx, tx, pool, actor.ShopID, quantity, now)
		if err != nil {
			return err
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPoolJoined,
			AggregateType: enums.AggregatePool,
			AggregateID:   pool.ID,
			Actor:         outbox.RefOf(actor),
			OccurredAt:    now,
			Data: payloads.PoolJoinedEvent{
				PoolID:          pool.ID,
				ShopID:          actor.ShopID,
				ParticipationID: p.ID,
				Quantity:        quantity,
				CurrentQuantity: pool.CurrentQuantity,
				Version:         pool.Version,
			},
		}); err != nil {
			return err
		}
		thresholdReached := before == enums.PoolStatusOpen && pool.Status == enums.PoolStatusPendingConfirmation
		if thresholdReached {
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPoolThresholdReached,
				AggregateType: enums.AggregatePool,
				AggregateID:   pool.ID,
				Actor:         outbox.RefOf(actor),
				OccurredAt:    now,
				Data: payloads.PoolThresholdReachedEvent{
					PoolID:          pool.ID,
					CurrentQuantity: pool.CurrentQuantity,
					MinimumQuantity: pool.MinimumQuantity,
				},
			}); err != nil {
				return err
			}
		}
		participation, reached = p, thresholdReached
		return nil
	})
	s.metrics.IncJoin(outcome(err))
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(s.logg.WithPoolID(ctx, poolID.String()), map[string]any{
		"shop_id":  actor.ShopID.String(),
		"quantity": quantity,
	})
	s.logg.Info(logCtx, "pool joined")
	if reached {
		s.logg.Info(logCtx, "pool reached minimum quantity")
	}
	return participation, nil
}

// Withdraw releases the actor shop's unconfirmed commitment.
func (s *Service) Withdraw(ctx context.Context, actor types.Actor, poolID uuid.UUID) (*models.PoolParticipation, error) {
	if err := actor.RequireShop(); err != nil {
		return nil, err
	}
	var participation *models.PoolParticipation
	err := s.mutate(ctx, actor.TenantID, poolID, func(tx *gorm.DB, pool *models.Pool, now time.Time) error {
		before := pool.Status
		p, err := s.ledger.Withdraw(ctx, tx, pool, actor.ShopID, now)
		if err != nil {
			return err
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPoolWithdrawn,
			AggregateType: enums.AggregatePool,
			AggregateID:   pool.ID,
			Actor:         outbox.RefOf(actor),
			OccurredAt:    now,
			Data: payloads.PoolWithdrawnEvent{
				PoolID:          pool.ID,
				ShopID:          actor.ShopID,
				Quantity:        p.QuantityCommitted,
				CurrentQuantity: pool.CurrentQuantity,
				Reopened:        before == enums.PoolStatusPendingConfirmation && pool.Status == enums.PoolStatusOpen,
			},
		}); err != nil {
			return err
		}
		participation = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithShopID(s.logg.WithPoolID(ctx, poolID.String()), actor.ShopID.String())
	s.logg.Info(logCtx, "pool commitment withdrawn")
	return participation, nil
}

// Confirm settles the pool and flips it to Confirmed in one transaction.
func (s *Service) Confirm(ctx context.Context, actor types.Actor, poolID uuid.UUID) (*ConfirmResult, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	var result *ConfirmResult
	err := s.mutate(ctx, actor.TenantID, poolID, func(tx *gorm.DB, pool *models.Pool, now time.Time) error {
		if err := authorizeOwner(actor, pool); err != nil {
			return err
		}
		if !pool.Status.IsJoinable() {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "pool cannot be confirmed").
				WithDetails(map[string]any{"status": pool.Status})
		}
		if !pool.ReachedMinimum() {
			return pkgerrors.New(pkgerrors.CodeThresholdNotMet, "minimum quantity not reached").
				WithDetails(map[string]any{
					"current_quantity": pool.CurrentQuantity,
					"minimum_quantity": pool.MinimumQuantity,
				})
		}

		settled, err := s.settler.Settle(ctx, tx, pool, now)
		if err != nil {
			return err
		}
		order := settled.Order
		if err := s.transition(ctx, tx, pool, map[string]any{
			"status":              enums.PoolStatusConfirmed,
			"confirmed_at":        now,
			"aggregated_order_id": order.ID,
		}); err != nil {
			return err
		}
		pool.Status = enums.PoolStatusConfirmed
		pool.ConfirmedAt = &now
		pool.AggregatedOrderID = &order.ID

		shopIDs := shopsOf(settled.Participants)
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPoolConfirmed,
			AggregateType: enums.AggregatePool,
			AggregateID:   pool.ID,
			Actor:         outbox.RefOf(actor),
			OccurredAt:    now,
			Data: payloads.PoolConfirmedEvent{
				PoolID:           pool.ID,
				OrderID:          order.ID,
				OrderNumber:      order.OrderNumber,
				TotalQuantity:    order.TotalQuantity,
				Total:            order.Total,
				ParticipantCount: order.ParticipantCount,
				ShopIDs:          shopIDs,
			},
		}); err != nil {
			return err
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAggregatedOrderCreated,
			AggregateType: enums.AggregateAggregatedOrder,
			AggregateID:   order.ID,
			Actor:         outbox.RefOf(actor),
			OccurredAt:    now,
			Data: payloads.AggregatedOrderCreatedEvent{
				OrderID:              order.ID,
				OrderNumber:          order.OrderNumber,
				PoolID:               pool.ID,
				SupplierID:           order.SupplierID,
				ProductID:            order.ProductID,
				TotalQuantity:        order.TotalQuantity,
				Subtotal:             order.Subtotal,
				TaxAmount:            order.TaxAmount,
				ShippingCost:         order.ShippingCost,
				Total:                order.Total,
				ExpectedDeliveryDate: order.ExpectedDeliveryDate,
			},
		}); err != nil {
			return err
		}
		result = &ConfirmResult{Pool: *pool, Order: *order, Participants: settled.Participants}
		return nil
	})
	s.metrics.IncConfirmation(outcome(err))
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(s.logg.WithPoolID(ctx, poolID.String()), map[string]any{
		"order_number": result.Order.OrderNumber,
		"participants": len(result.Participants),
		"total":        result.Order.Total.StringFixed(money.Places),
	})
	s.logg.Info(logCtx, "pool confirmed")
	return result, nil
}

// Cancel closes a pool without an order. Only the initiating shop or a
// coordinator may cancel.
func (s *Service) Cancel(ctx context.Context, actor types.Actor, poolID uuid.UUID, reason string) (*models.Pool, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	var cancelled *models.Pool
	err := s.mutate(ctx, actor.TenantID, poolID, func(tx *gorm.DB, pool *models.Pool, now time.Time) error {
		if err := authorizeOwner(actor, pool); err != nil {
			return err
		}
		if !pool.Status.IsJoinable() {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "pool cannot be cancelled").
				WithDetails(map[string]any{"status": pool.Status})
		}
		if err := s.transition(ctx, tx, pool, map[string]any{
			"status":       enums.PoolStatusCancelled,
			"cancelled_at": now,
		}); err != nil {
			return err
		}
		pool.Status = enums.PoolStatusCancelled
		pool.CancelledAt = &now
		if err := s.emitClosed(ctx, tx, outbox.RefOf(actor), pool, enums.EventPoolCancelled, strings.TrimSpace(reason), now); err != nil {
			return err
		}
		cancelled = pool
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithPoolID(ctx, poolID.String()), "pool cancelled")
	return cancelled, nil
}

// ExtendDeadline pushes the close date back once.
func (s *Service) ExtendDeadline(ctx context.Context, actor types.Actor, poolID uuid.UUID, newClose time.Time) (*models.Pool, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	newClose = newClose.UTC()
	var extended *models.Pool
	err := s.mutate(ctx, actor.TenantID, poolID, func(tx *gorm.DB, pool *models.Pool, now time.Time) error {
		if err := authorizeOwner(actor, pool); err != nil {
			return err
		}
		if pool.ExtendedOnce {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "deadline already extended")
		}
		if !pool.Status.IsJoinable() {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "pool deadline cannot be extended").
				WithDetails(map[string]any{"status": pool.Status})
		}
		if !newClose.After(pool.CloseDate) {
			return pkgerrors.New(pkgerrors.CodeValidation, "new close date must be after the current close date").
				WithDetails(map[string]any{"close_date": pool.CloseDate})
		}
		previous := pool.CloseDate
		if err := s.transition(ctx, tx, pool, map[string]any{
			"close_date":    newClose,
			"extended_once": true,
		}); err != nil {
			return err
		}
		pool.CloseDate = newClose
		pool.ExtendedOnce = true
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPoolDeadlineExtended,
			AggregateType: enums.AggregatePool,
			AggregateID:   pool.ID,
			Actor:         outbox.RefOf(actor),
			OccurredAt:    now,
			Data: payloads.PoolDeadlineExtendedEvent{
				PoolID:        pool.ID,
				PreviousClose: previous,
				NewClose:      newClose,
			},
		}); err != nil {
			return err
		}
		extended = pool
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithField(s.logg.WithPoolID(ctx, poolID.String()), "close_date", newClose)
	s.logg.Info(logCtx, "pool deadline extended")
	return extended, nil
}

// ExpireDue expires every pool past its close date that never reached the
// minimum. Each pool is handled under its own lock; failures are combined.
func (s *Service) ExpireDue(ctx context.Context) (int, error) {
	now := s.now().UTC()
	candidates, err := s.repo.ListExpiryCandidates(ctx, now, expiryBatchSize)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list expiry candidates")
	}

	var errs error
	expired := 0
	for _, candidate := range candidates {
		ok, err := s.expireOne(ctx, candidate.TenantID, candidate.ID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire pool %s: %w", candidate.ID, err))
			continue
		}
		if ok {
			expired++
		}
	}
	return expired, errs
}

func (s *Service) expireOne(ctx context.Context, tenantID, poolID uuid.UUID) (bool, error) {
	unlock, err := s.lock(ctx, poolID)
	if err != nil {
		return false, err
	}
	defer unlock()

	expired := false
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		pool, err := s.load(ctx, tx, tenantID, poolID)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		if !dueForExpiry(pool, now) {
			return nil
		}
		if err := s.expire(ctx, tx, pool, now); err != nil {
			return err
		}
		expired = true
		return nil
	})
	return expired, err
}

// Get returns the pool with its active commitments.
func (s *Service) Get(ctx context.Context, actor types.Actor, poolID uuid.UUID) (*Detail, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	pool, err := s.load(ctx, nil, actor.TenantID, poolID)
	if err != nil {
		return nil, err
	}
	snap, err := s.ledger.Snapshot(ctx, poolID)
	if err != nil {
		return nil, err
	}
	pool.CurrentQuantity = snap.CurrentQuantity
	pool.Version = snap.Version
	return &Detail{Pool: *pool, Participants: snap.Participants}, nil
}

// CurrentQuantity reads the committed quantity.
func (s *Service) CurrentQuantity(ctx context.Context, actor types.Actor, poolID uuid.UUID) (int64, error) {
	detail, err := s.Get(ctx, actor, poolID)
	if err != nil {
		return 0, err
	}
	return detail.Pool.CurrentQuantity, nil
}

// Participants lists active commitments in join order.
func (s *Service) Participants(ctx context.Context, actor types.Actor, poolID uuid.UUID) ([]models.PoolParticipation, error) {
	detail, err := s.Get(ctx, actor, poolID)
	if err != nil {
		return nil, err
	}
	return detail.Participants, nil
}

type mutation func(tx *gorm.DB, pool *models.Pool, now time.Time) error

// mutate runs op under the pool lock in a fresh transaction, retrying
// concurrency conflicts. A pool found due for expiry is expired and committed
// before op would run, and the caller gets InvalidState.
func (s *Service) mutate(ctx context.Context, tenantID, poolID uuid.UUID, op mutation) error {
	backoff := retry.NewExponential(s.retry.BaseDelay)
	backoff = retry.WithJitterPercent(20, backoff)
	backoff = retry.WithMaxRetries(uint64(s.retry.Attempts-1), backoff)

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := s.mutateOnce(ctx, tenantID, poolID, op)
		if pkgerrors.IsCode(err, pkgerrors.CodeConcurrencyConflict) {
			logCtx := s.logg.WithField(s.logg.WithPoolID(ctx, poolID.String()), "attempt", attempt)
			s.logg.Warn(logCtx, "pool update conflicted")
			return retry.RetryableError(err)
		}
		return err
	})
}

func (s *Service) mutateOnce(ctx context.Context, tenantID, poolID uuid.UUID, op mutation) error {
	unlock, err := s.lock(ctx, poolID)
	if err != nil {
		return err
	}
	defer unlock()

	expired := false
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		pool, err := s.load(ctx, tx, tenantID, poolID)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		if dueForExpiry(pool, now) {
			if err := s.expire(ctx, tx, pool, now); err != nil {
				return err
			}
			expired = true
			return nil
		}
		return op(tx, pool, now)
	})
	if err != nil {
		return err
	}
	if expired {
		return pkgerrors.New(pkgerrors.CodeInvalidState, "pool expired").
			WithDetails(map[string]any{"status": enums.PoolStatusExpired})
	}
	return nil
}

func (s *Service) lock(ctx context.Context, poolID uuid.UUID) (func(), error) {
	start := time.Now()
	unlock, err := s.locker.Lock(ctx, "pool:"+poolID.String())
	s.metrics.ObserveLockWait(time.Since(start))
	if err != nil {
		if errors.Is(err, locks.ErrNotAcquired) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConcurrencyConflict, err, "pool is busy")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire pool lock")
	}
	return unlock, nil
}

func (s *Service) load(ctx context.Context, tx *gorm.DB, tenantID, poolID uuid.UUID) (*models.Pool, error) {
	pool, err := s.repo.WithTx(tx).FindByID(ctx, tenantID, poolID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "pool not found").
			WithDetails(map[string]any{"pool_id": poolID})
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load pool")
	}
	return pool, nil
}

func (s *Service) transition(ctx context.Context, tx *gorm.DB, pool *models.Pool, updates map[string]any) error {
	ok, err := s.repo.WithTx(tx).Transition(ctx, pool.ID, pool.Version, updates)
	if err != nil {
		return pkgerrors.FromDatabase(err, "update pool")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeConcurrencyConflict, "pool was modified concurrently").
			WithDetails(map[string]any{"pool_id": pool.ID, "version": pool.Version})
	}
	pool.Version++
	return nil
}

func (s *Service) expire(ctx context.Context, tx *gorm.DB, pool *models.Pool, now time.Time) error {
	if err := s.transition(ctx, tx, pool, map[string]any{
		"status":     enums.PoolStatusExpired,
		"expired_at": now,
	}); err != nil {
		return err
	}
	pool.Status = enums.PoolStatusExpired
	pool.ExpiredAt = &now
	if err := s.emitClosed(ctx, tx, nil, pool, enums.EventPoolExpired, "minimum quantity not reached by close date", now); err != nil {
		return err
	}
	s.metrics.IncExpired()

	logCtx := s.logg.WithFields(s.logg.WithPoolID(ctx, pool.ID.String()), map[string]any{
		"current_quantity": pool.CurrentQuantity,
		"minimum_quantity": pool.MinimumQuantity,
	})
	s.logg.Info(logCtx, "pool expired")
	return nil
}

func (s *Service) emitClosed(ctx context.Context, tx *gorm.DB, ref *outbox.ActorRef, pool *models.Pool, eventType enums.OutboxEventType, reason string, now time.Time) error {
	participants, err := s.ledger.ActiveParticipants(ctx, tx, pool.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list participants")
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregatePool,
		AggregateID:   pool.ID,
		Actor:         ref,
		OccurredAt:    now,
		Once:          true,
		Data: payloads.PoolClosedEvent{
			PoolID:          pool.ID,
			Status:          pool.Status.String(),
			CurrentQuantity: pool.CurrentQuantity,
			Reason:          reason,
			ShopIDs:         shopsOf(participants),
		},
	})
}

func dueForExpiry(pool *models.Pool, now time.Time) bool {
	return pool.Status.IsJoinable() && pool.PastClose(now) && !pool.ReachedMinimum()
}

func authorizeOwner(actor types.Actor, pool *models.Pool) error {
	if actor.Role == enums.ActorRoleCoordinator {
		return nil
	}
	if actor.ShopID != uuid.Nil && actor.ShopID == pool.InitiatorShopID {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "only the initiating shop may manage this pool")
}

func validateCreate(input CreateInput, now time.Time) (decimal.Decimal, error) {
	fail := func(field, msg string) error {
		return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(map[string]any{"field": field})
	}
	if input.ProductID == uuid.Nil {
		return decimal.Zero, fail("product_id", "product is required")
	}
	if input.SupplierID == uuid.Nil {
		return decimal.Zero, fail("supplier_id", "supplier is required")
	}
	if input.MinimumQuantity <= 0 {
		return decimal.Zero, fail("minimum_quantity", "minimum quantity must be positive")
	}
	if input.MaximumQuantity != nil && *input.MaximumQuantity < input.MinimumQuantity {
		return decimal.Zero, fail("maximum_quantity", "maximum quantity must not be below the minimum")
	}
	if !input.CloseDate.After(now) {
		return decimal.Zero, fail("close_date", "close date must be in the future")
	}
	if !input.UnitPrice.IsPositive() {
		return decimal.Zero, fail("unit_price", "unit price must be positive")
	}
	if input.EstimatedShippingCost.IsNegative() {
		return decimal.Zero, fail("estimated_shipping_cost", "shipping cost must not be negative")
	}

	var pct decimal.Decimal
	switch {
	case input.BulkDiscountPercentage != nil && input.PoolPrice != nil:
		return decimal.Zero, fail("pool_price", "set either a discount percentage or a pool price")
	case input.BulkDiscountPercentage != nil:
		pct = *input.BulkDiscountPercentage
	case input.PoolPrice != nil:
		if !input.PoolPrice.LessThan(input.UnitPrice) {
			return decimal.Zero, fail("pool_price", "pool price must be below the current price")
		}
		derived, err := money.DiscountPercent(input.UnitPrice, *input.PoolPrice)
		if err != nil {
			return decimal.Zero, fail("pool_price", err.Error())
		}
		pct = derived
	default:
		return decimal.Zero, fail("bulk_discount_percentage", "a discount is required")
	}
	if !pct.IsPositive() || pct.GreaterThanOrEqual(decimal.NewFromInt(100)) {
		return decimal.Zero, fail("bulk_discount_percentage", "discount must be above 0% and below 100%")
	}
	return pct, nil
}

func shopsOf(participants []models.PoolParticipation) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.ShopID)
	}
	return ids
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if typed := pkgerrors.As(err); typed != nil {
		return strings.ToLower(string(typed.Code()))
	}
	return "error"
}
