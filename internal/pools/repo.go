package pools

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
)

// Repository persists pool rows. Status changes go through Transition so the
// version guard is always applied.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, pool *models.Pool) error
	FindByID(ctx context.Context, tenantID, poolID uuid.UUID) (*models.Pool, error)
	Transition(ctx context.Context, poolID uuid.UUID, expectedVersion int64, updates map[string]any) (bool, error)
	ListExpiryCandidates(ctx context.Context, now time.Time, limit int) ([]models.Pool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, pool *models.Pool) error {
	return r.db.WithContext(ctx).Create(pool).Error
}

func (r *repository) FindByID(ctx context.Context, tenantID, poolID uuid.UUID) (*models.Pool, error) {
	var pool models.Pool
	err := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", poolID, tenantID).
		First(&pool).Error
	if err != nil {
		return nil, err
	}
	return &pool, nil
}

func (r *repository) Transition(ctx context.Context, poolID uuid.UUID, expectedVersion int64, updates map[string]any) (bool, error) {
	values := make(map[string]any, len(updates)+1)
	for k, v := range updates {
		values[k] = v
	}
	values["version"] = gorm.Expr("version + 1")
	res := r.db.WithContext(ctx).
		Model(&models.Pool{}).
		Where("id = ? AND version = ?", poolID, expectedVersion).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListExpiryCandidates returns joinable pools past their close date that never
// reached the minimum, across tenants.
func (r *repository) ListExpiryCandidates(ctx context.Context, now time.Time, limit int) ([]models.Pool, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.Pool
	err := r.db.WithContext(ctx).
		Where("status IN ?", []enums.PoolStatus{enums.PoolStatusOpen, enums.PoolStatusPendingConfirmation}).
		Where("close_date < ?", now).
		Where("current_quantity < minimum_quantity").
		Order("close_date ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
