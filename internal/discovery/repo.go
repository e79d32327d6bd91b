package discovery

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
	"github.com/angelmondragon/groupbuy-backend/pkg/pagination"
)

var joinableStatuses = []enums.PoolStatus{enums.PoolStatusOpen, enums.PoolStatusPendingConfirmation}

// Repository reads pool projections. It never writes.
type Repository interface {
	ListOpen(ctx context.Context, params listOpenParams) ([]models.Pool, *pagination.Cursor, error)
	NearbyCandidates(ctx context.Context, params nearbyParams) ([]models.Pool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a discovery repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

type listOpenParams struct {
	TenantID  uuid.UUID
	AreaGroup string
	ProductID *uuid.UUID
	Now       time.Time
	Limit     int
	Cursor    *pagination.Cursor
}

type nearbyParams struct {
	TenantID  uuid.UUID
	AreaGroup string
	ShopID    uuid.UUID
	ProductID *uuid.UUID
	Now       time.Time
	Limit     int
}

func (r *repository) joinable(ctx context.Context, tenantID uuid.UUID, now time.Time) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.Pool{}).
		Where("tenant_id = ? AND status IN ? AND close_date > ?", tenantID, joinableStatuses, now)
}

func (r *repository) ListOpen(ctx context.Context, params listOpenParams) ([]models.Pool, *pagination.Cursor, error) {
	query := r.joinable(ctx, params.TenantID, params.Now)
	if params.AreaGroup != "" {
		query = query.Where("area_group = ?", params.AreaGroup)
	}
	if params.ProductID != nil {
		query = query.Where("product_id = ?", *params.ProductID)
	}
	if params.Cursor != nil {
		query = query.Where("created_at < ? OR (created_at = ? AND id < ?)", params.Cursor.At, params.Cursor.At, params.Cursor.ID)
	}

	var pools []models.Pool
	if err := query.Order("created_at DESC, id DESC").Limit(pagination.FetchLimit(params.Limit)).Find(&pools).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Split(pools, params.Limit, func(p models.Pool) pagination.Cursor {
		return pagination.Cursor{At: p.CreatedAt, ID: p.ID}
	})
	return page, next, nil
}

// NearbyCandidates returns joinable pools in the area group the shop has no
// active commitment to, closing soonest first.
func (r *repository) NearbyCandidates(ctx context.Context, params nearbyParams) ([]models.Pool, error) {
	joined := r.db.Model(&models.PoolParticipation{}).
		Select("1").
		Where("pool_participations.pool_id = pools.id AND pool_participations.shop_id = ? AND pool_participations.withdrawn_at IS NULL", params.ShopID)
	query := r.joinable(ctx, params.TenantID, params.Now).
		Where("area_group = ?", params.AreaGroup).
		Where("NOT EXISTS (?)", joined)
	if params.ProductID != nil {
		query = query.Where("product_id = ?", *params.ProductID)
	}

	var pools []models.Pool
	err := query.Order("close_date ASC, id ASC").Limit(params.Limit).Find(&pools).Error
	return pools, err
}
