// Package discovery serves read-only views of pools a shop can still join.
package discovery

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/groupbuy-backend/internal/directory"
	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
	"github.com/angelmondragon/groupbuy-backend/pkg/pagination"
	"github.com/angelmondragon/groupbuy-backend/pkg/types"
)

var errDirectoryRequired = errors.New("directory required")

type ServiceParams struct {
	Repository Repository
	Directory  directory.Directory
	// Distance is optional. Without it nearby results carry no distance.
	Distance DistanceEstimator
	Logger   *logger.Logger
	Now      func() time.Time
}

type Service struct {
	repo      Repository
	directory directory.Directory
	distance  DistanceEstimator
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(p ServiceParams) (*Service, error) {
	if p.Repository == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "discovery repository required")
	}
	if p.Directory == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, errDirectoryRequired.Error())
	}
	if p.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &Service{
		repo:      p.Repository,
		directory: p.Directory,
		distance:  p.Distance,
		logg:      p.Logger,
		now:       p.Now,
	}, nil
}

// Filter narrows ListOpenPools.
type Filter struct {
	AreaGroup string
	ProductID *uuid.UUID
}

// PoolSummary is the list projection of a joinable pool.
type PoolSummary struct {
	ID                     uuid.UUID        `json:"id"`
	PoolNumber             string           `json:"pool_number"`
	Title                  string           `json:"title"`
	ProductID              uuid.UUID        `json:"product_id"`
	SupplierID             uuid.UUID        `json:"supplier_id"`
	AreaGroup              string           `json:"area_group"`
	Status                 enums.PoolStatus `json:"status"`
	MinimumQuantity        int64            `json:"minimum_quantity"`
	MaximumQuantity        *int64           `json:"maximum_quantity,omitempty"`
	CurrentQuantity        int64            `json:"current_quantity"`
	RemainingCapacity      *int64           `json:"remaining_capacity,omitempty"`
	ThresholdReached       bool             `json:"threshold_reached"`
	UnitPrice              decimal.Decimal  `json:"unit_price"`
	BulkDiscountPercentage decimal.Decimal  `json:"bulk_discount_percentage"`
	FinalUnitPrice         decimal.Decimal  `json:"final_unit_price"`
	CloseDate              time.Time        `json:"close_date"`
}

// ListResult wraps a page of pools and the cursor for the next page.
type ListResult struct {
	Items  []PoolSummary `json:"items"`
	Cursor string        `json:"cursor"`
}

// Opportunity is a pool near a shop that the shop has not joined.
type Opportunity struct {
	PoolSummary
	DistanceKm *float64 `json:"distance_km"`
}

// ListOpenPools pages through joinable pools that have not passed their
// close date, newest first.
func (s *Service) ListOpenPools(ctx context.Context, actor types.Actor, filter Filter, page pagination.Params) (*ListResult, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	params := listOpenParams{
		TenantID:  actor.TenantID,
		AreaGroup: strings.TrimSpace(filter.AreaGroup),
		ProductID: filter.ProductID,
		Now:       s.now().UTC(),
		Limit:     page.Limit,
	}
	if page.Cursor != "" {
		cursor, err := pagination.Decode(page.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		params.Cursor = cursor
	}

	rows, next, err := s.repo.ListOpen(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list open pools")
	}
	result := &ListResult{Items: make([]PoolSummary, 0, len(rows))}
	for i := range rows {
		result.Items = append(result.Items, summarize(&rows[i]))
	}
	if next != nil {
		result.Cursor = next.Encode()
	}
	return result, nil
}

// ListNearbyOpportunities returns pools in the shop's area group that it can
// still join. A non-positive maxKm disables the distance cut-off.
func (s *Service) ListNearbyOpportunities(ctx context.Context, actor types.Actor, shopID uuid.UUID, maxKm float64, productID *uuid.UUID) ([]Opportunity, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if shopID == uuid.Nil {
		shopID = actor.ShopID
	}
	if shopID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop is required").
			WithDetails(map[string]any{"field": "shop_id"})
	}
	if actor.Role.ActsForShop() && shopID != actor.ShopID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "shop does not belong to caller")
	}
	shop, err := s.directory.Shop(ctx, actor.TenantID, shopID)
	if err != nil {
		return nil, err
	}

	pools, err := s.repo.NearbyCandidates(ctx, nearbyParams{
		TenantID:  actor.TenantID,
		AreaGroup: shop.AreaGroup,
		ShopID:    shopID,
		ProductID: productID,
		Now:       s.now().UTC(),
		Limit:     pagination.MaxLimit,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list nearby pools")
	}

	var distances map[uuid.UUID]float64
	if s.distance != nil {
		distances, err = s.distance.DistanceKm(ctx, actor.TenantID, *shop, pools)
		if err != nil {
			// Distances are advisory; fall back to the unmeasured list.
			s.logg.Warn(s.logg.WithField(s.logg.WithShopID(ctx, shopID.String()), "error", err.Error()), "distance estimate failed")
			distances = nil
		}
	}

	out := make([]Opportunity, 0, len(pools))
	for i := range pools {
		opp := Opportunity{PoolSummary: summarize(&pools[i])}
		if km, ok := distances[pools[i].ID]; ok {
			if maxKm > 0 && km > maxKm {
				continue
			}
			opp.DistanceKm = &km
		}
		out = append(out, opp)
	}
	return out, nil
}

func summarize(pool *models.Pool) PoolSummary {
	return PoolSummary{
		ID:                     pool.ID,
		PoolNumber:             pool.PoolNumber,
		Title:                  pool.Title,
		ProductID:              pool.ProductID,
		SupplierID:             pool.SupplierID,
		AreaGroup:              pool.AreaGroup,
		Status:                 pool.Status,
		MinimumQuantity:        pool.MinimumQuantity,
		MaximumQuantity:        pool.MaximumQuantity,
		CurrentQuantity:        pool.CurrentQuantity,
		RemainingCapacity:      pool.RemainingCapacity(),
		ThresholdReached:       pool.ReachedMinimum(),
		UnitPrice:              pool.UnitPrice,
		BulkDiscountPercentage: pool.BulkDiscountPercentage,
		FinalUnitPrice:         pool.FinalUnitPrice,
		CloseDate:              pool.CloseDate,
	}
}
