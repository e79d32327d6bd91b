package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PoolParticipation records one shop's commitment to a pool. Rows are never
// deleted; a withdrawal stamps WithdrawnAt.
type PoolParticipation struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	PoolID            uuid.UUID       `gorm:"column:pool_id;type:uuid;not null;index;uniqueIndex:ux_pool_participations_active,where:withdrawn_at IS NULL"`
	TenantID          uuid.UUID       `gorm:"column:tenant_id;type:uuid;not null"`
	ShopID            uuid.UUID       `gorm:"column:shop_id;type:uuid;not null;index;uniqueIndex:ux_pool_participations_active,where:withdrawn_at IS NULL"`
	QuantityCommitted int64           `gorm:"column:quantity_committed;not null"`
	UnitPrice         decimal.Decimal `gorm:"column:unit_price;type:numeric(14,2);not null"`
	Subtotal          decimal.Decimal `gorm:"column:subtotal;type:numeric(14,2);not null"`
	ShippingShare     decimal.Decimal `gorm:"column:shipping_share;type:numeric(14,2);not null"`
	Total             decimal.Decimal `gorm:"column:total;type:numeric(14,2);not null"`
	IsConfirmed       bool            `gorm:"column:is_confirmed;not null;default:false"`
	JoinedAt          time.Time       `gorm:"column:joined_at;not null"`
	ConfirmedAt       *time.Time      `gorm:"column:confirmed_at"`
	WithdrawnAt       *time.Time      `gorm:"column:withdrawn_at"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *PoolParticipation) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Active reports whether the commitment still counts toward the pool.
func (p *PoolParticipation) Active() bool {
	return p.WithdrawnAt == nil
}
