// Package settlement turns a confirmed pool's commitments into one
// aggregated purchase order.
package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/groupbuy-backend/internal/sequence"
	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
	"github.com/angelmondragon/groupbuy-backend/pkg/money"
)

// Settler builds and persists the aggregated order inside the caller's
// confirm transaction.
type Settler interface {
	Settle(ctx context.Context, tx *gorm.DB, pool *models.Pool, now time.Time) (*Result, error)
}

// Result is what a settlement wrote.
type Result struct {
	Order        *models.AggregatedPurchaseOrder
	Participants []models.PoolParticipation
}

// Repository persists settlement writes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ActiveParticipants(ctx context.Context, poolID uuid.UUID) ([]models.PoolParticipation, error)
	ConfirmParticipation(ctx context.Context, participation *models.PoolParticipation) error
	CreateOrder(ctx context.Context, order *models.AggregatedPurchaseOrder) error
}

type Config struct {
	TaxRate  decimal.Decimal
	LeadTime time.Duration
}

type service struct {
	repo      Repository
	sequencer sequence.Sequencer
	cfg       Config
}

// NewService wires a settler.
func NewService(repo Repository, sequencer sequence.Sequencer, cfg Config) (Settler, error) {
	if repo == nil {
		return nil, fmt.Errorf("settlement repository required")
	}
	if sequencer == nil {
		return nil, fmt.Errorf("sequencer required")
	}
	if cfg.TaxRate.IsNegative() {
		return nil, fmt.Errorf("tax rate must not be negative")
	}
	if cfg.LeadTime <= 0 {
		return nil, fmt.Errorf("lead time must be positive")
	}
	return &service{repo: repo, sequencer: sequencer, cfg: cfg}, nil
}

func (s *service) Settle(ctx context.Context, tx *gorm.DB, pool *models.Pool, now time.Time) (*Result, error) {
	if tx == nil {
		return nil, fmt.Errorf("settlement requires a transaction")
	}
	repo := s.repo.WithTx(tx)

	participants, err := repo.ActiveParticipants(ctx, pool.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "snapshot participants")
	}
	if len(participants) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeThresholdNotMet, "pool has no active participants")
	}

	if err := AllocateShipping(participants, pool.EstimatedShippingCost, now); err != nil {
		return nil, err
	}
	for i := range participants {
		if err := repo.ConfirmParticipation(ctx, &participants[i]); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "confirm participation")
		}
	}

	number, err := sequence.Allocate(ctx, s.sequencer, tx, sequence.ScopeAggregatedOrder, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate order number")
	}
	order := BuildOrder(pool, participants, s.cfg, now)
	order.OrderNumber = number
	if err := repo.CreateOrder(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create aggregated order")
	}

	return &Result{Order: order, Participants: participants}, nil
}

// AllocateShipping splits shipping equally over the participants and marks
// each confirmed at now.
func AllocateShipping(participants []models.PoolParticipation, shipping decimal.Decimal, now time.Time) error {
	shares, err := money.SplitEvenly(shipping, len(participants))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "split shipping")
	}
	confirmedAt := now
	for i := range participants {
		p := &participants[i]
		p.ShippingShare = shares[i]
		p.Total = p.Subtotal.Add(shares[i])
		p.IsConfirmed = true
		p.ConfirmedAt = &confirmedAt
	}
	return nil
}

// BuildOrder derives order totals from confirmed participants.
func BuildOrder(pool *models.Pool, participants []models.PoolParticipation, cfg Config, now time.Time) *models.AggregatedPurchaseOrder {
	subtotal := decimal.Zero
	for _, p := range participants {
		subtotal = subtotal.Add(p.Subtotal)
	}
	subtotal = money.Round(subtotal)
	tax := money.Percent(subtotal, cfg.TaxRate)
	shipping := money.Round(pool.EstimatedShippingCost)

	return &models.AggregatedPurchaseOrder{
		TenantID:             pool.TenantID,
		PoolID:               pool.ID,
		SupplierID:           pool.SupplierID,
		ProductID:            pool.ProductID,
		TotalQuantity:        pool.CurrentQuantity,
		UnitPrice:            pool.FinalUnitPrice,
		Subtotal:             subtotal,
		TaxRate:              cfg.TaxRate,
		TaxAmount:            tax,
		ShippingCost:         shipping,
		Total:                subtotal.Add(tax).Add(shipping),
		ParticipantCount:     len(participants),
		OrderDate:            now,
		ExpectedDeliveryDate: now.Add(cfg.LeadTime),
		Status:               enums.AggregatedOrderStatusSubmitted,
	}
}
