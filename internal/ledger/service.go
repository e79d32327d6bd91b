// Package ledger keeps each pool's committed quantity and participant list
// consistent. Callers hold the pool lock and pass their transaction.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/groupbuy-backend/pkg/db"
	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
	"github.com/angelmondragon/groupbuy-backend/pkg/money"
)

// Service applies commitments against a pool row loaded by the caller.
type Service struct {
	repo Repository
	db   *gorm.DB
}

// Snapshot is a consistent view of a pool's commitments.
type Snapshot struct {
	PoolID          uuid.UUID
	CurrentQuantity int64
	Version         int64
	Participants    []models.PoolParticipation
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository, conn *gorm.DB) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if conn == nil {
		return nil, fmt.Errorf("ledger db required")
	}
	return &Service{repo: repo, db: conn}, nil
}

// Join records a commitment and increments the pool quantity in tx. The pool
// struct is updated in place on success.
func (s *Service) Join(ctx context.Context, tx *gorm.DB, pool *models.Pool, shopID uuid.UUID, quantity int64, now time.Time) (*models.PoolParticipation, error) {
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if !pool.Status.IsJoinable() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidState, "pool is not open for joining").
			WithDetails(map[string]any{"status": pool.Status})
	}
	if pool.PastClose(now) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidState, "pool is past its close date").
			WithDetails(map[string]any{"close_date": pool.CloseDate})
	}

	repo := s.repo.WithTx(tx)
	existing, err := repo.FindActive(ctx, pool.ID, shopID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup participation")
	}
	if existing != nil {
		return nil, duplicate(pool.ID, shopID)
	}
	if pool.MaximumQuantity != nil && pool.CurrentQuantity+quantity > *pool.MaximumQuantity {
		return nil, pkgerrors.New(pkgerrors.CodeCapacityExceeded, "commitment exceeds pool capacity").
			WithDetails(map[string]any{
				"current_quantity": pool.CurrentQuantity,
				"requested":        quantity,
				"maximum_quantity": *pool.MaximumQuantity,
			})
	}

	count, err := repo.CountActive(ctx, pool.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count participants")
	}

	subtotal := money.Mul(pool.FinalUnitPrice, quantity)
	// provisional; settlement recomputes every share at confirmation
	shipping := money.Round(pool.EstimatedShippingCost.Div(decimal.NewFromInt(count + 1)))
	participation := &models.PoolParticipation{
		ID:                uuid.New(),
		PoolID:            pool.ID,
		TenantID:          pool.TenantID,
		ShopID:            shopID,
		QuantityCommitted: quantity,
		UnitPrice:         pool.FinalUnitPrice,
		Subtotal:          subtotal,
		ShippingShare:     shipping,
		Total:             subtotal.Add(shipping),
		JoinedAt:          now,
	}
	if err := repo.Insert(ctx, participation); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, duplicate(pool.ID, shopID)
		}
		return nil, pkgerrors.FromDatabase(err, "insert participation")
	}

	next := ThresholdStatus(pool.Status, pool.CurrentQuantity+quantity, pool.MinimumQuantity)
	if err := s.applyDelta(ctx, repo, pool, quantity, next); err != nil {
		return nil, err
	}
	return participation, nil
}

// Withdraw marks the shop's active commitment withdrawn and decrements the
// pool quantity in tx.
func (s *Service) Withdraw(ctx context.Context, tx *gorm.DB, pool *models.Pool, shopID uuid.UUID, now time.Time) (*models.PoolParticipation, error) {
	if !pool.Status.IsJoinable() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidState, "commitments are frozen").
			WithDetails(map[string]any{"status": pool.Status})
	}

	repo := s.repo.WithTx(tx)
	participation, err := repo.FindActive(ctx, pool.ID, shopID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup participation")
	}
	if participation == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "participation not found").
			WithDetails(map[string]any{"pool_id": pool.ID, "shop_id": shopID})
	}
	if participation.IsConfirmed {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidState, "participation already confirmed")
	}

	if err := repo.MarkWithdrawn(ctx, participation.ID, now); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeConcurrencyConflict, "participation changed concurrently")
		}
		return nil, pkgerrors.FromDatabase(err, "withdraw participation")
	}
	withdrawnAt := now
	participation.WithdrawnAt = &withdrawnAt

	next := ThresholdStatus(pool.Status, pool.CurrentQuantity-participation.QuantityCommitted, pool.MinimumQuantity)
	if err := s.applyDelta(ctx, repo, pool, -participation.QuantityCommitted, next); err != nil {
		return nil, err
	}
	return participation, nil
}

func (s *Service) applyDelta(ctx context.Context, repo Repository, pool *models.Pool, delta int64, next enums.PoolStatus) error {
	ok, err := repo.ApplyDelta(ctx, pool.ID, pool.Version, delta, next)
	if err != nil {
		return pkgerrors.FromDatabase(err, "update pool quantity")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeConcurrencyConflict, "pool was modified concurrently").
			WithDetails(map[string]any{"pool_id": pool.ID, "version": pool.Version})
	}
	pool.CurrentQuantity += delta
	pool.Version++
	pool.Status = next
	return nil
}

// Snapshot reads the counters and active participants in one transaction.
func (s *Service) Snapshot(ctx context.Context, poolID uuid.UUID) (*Snapshot, error) {
	var snap *Snapshot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		counters, err := repo.Counters(ctx, poolID, true)
		if err != nil {
			return err
		}
		participants, err := repo.ListActive(ctx, poolID)
		if err != nil {
			return err
		}
		snap = &Snapshot{
			PoolID:          poolID,
			CurrentQuantity: counters.CurrentQuantity,
			Version:         counters.Version,
			Participants:    participants,
		}
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "pool not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "snapshot pool")
	}
	return snap, nil
}

// ActiveParticipants lists active commitments in join order within tx.
func (s *Service) ActiveParticipants(ctx context.Context, tx *gorm.DB, poolID uuid.UUID) ([]models.PoolParticipation, error) {
	return s.repo.WithTx(tx).ListActive(ctx, poolID)
}

// VerifyQuantity compares the stored quantity with the sum of active
// commitments.
func (s *Service) VerifyQuantity(ctx context.Context, poolID uuid.UUID) (stored, summed int64, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		counters, err := repo.Counters(ctx, poolID, true)
		if err != nil {
			return err
		}
		sum, err := repo.SumActive(ctx, poolID)
		if err != nil {
			return err
		}
		stored, summed = counters.CurrentQuantity, sum
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, 0, pkgerrors.New(pkgerrors.CodeNotFound, "pool not found")
	}
	return stored, summed, err
}

// ThresholdStatus moves an Open pool to PendingConfirmation once quantity
// reaches the minimum, and back when it drops below.
func ThresholdStatus(current enums.PoolStatus, quantity, minimum int64) enums.PoolStatus {
	switch {
	case current == enums.PoolStatusOpen && quantity >= minimum:
		return enums.PoolStatusPendingConfirmation
	case current == enums.PoolStatusPendingConfirmation && quantity < minimum:
		return enums.PoolStatusOpen
	default:
		return current
	}
}

func duplicate(poolID, shopID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeDuplicateParticipant, "shop already participates in pool").
		WithDetails(map[string]any{"pool_id": poolID, "shop_id": shopID})
}
