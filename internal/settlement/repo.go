package settlement

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository returns a settlement repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ActiveParticipants(ctx context.Context, poolID uuid.UUID) ([]models.PoolParticipation, error) {
	var rows []models.PoolParticipation
	if err := r.db.WithContext(ctx).
		Where("pool_id = ? AND withdrawn_at IS NULL", poolID).
		Order("joined_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ConfirmParticipation(ctx context.Context, p *models.PoolParticipation) error {
	return r.db.WithContext(ctx).
		Model(&models.PoolParticipation{}).
		Where("id = ?", p.ID).
		Updates(map[string]any{
			"shipping_share": p.ShippingShare,
			"total":          p.Total,
			"is_confirmed":   true,
			"confirmed_at":   p.ConfirmedAt,
		}).Error
}

func (r *repository) CreateOrder(ctx context.Context, order *models.AggregatedPurchaseOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// FindOrderByPool loads the aggregated order created for poolID.
func FindOrderByPool(ctx context.Context, db *gorm.DB, poolID uuid.UUID) (*models.AggregatedPurchaseOrder, error) {
	var order models.AggregatedPurchaseOrder
	if err := db.WithContext(ctx).Where("pool_id = ?", poolID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}
