package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
)

// Pool is a shared supplier offer that shops commit quantities against.
type Pool struct {
	ID                     uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	PoolNumber             string           `gorm:"column:pool_number;not null;uniqueIndex"`
	TenantID               uuid.UUID        `gorm:"column:tenant_id;type:uuid;not null;index"`
	ProductID              uuid.UUID        `gorm:"column:product_id;type:uuid;not null;index"`
	SupplierID             uuid.UUID        `gorm:"column:supplier_id;type:uuid;not null"`
	InitiatorShopID        uuid.UUID        `gorm:"column:initiator_shop_id;type:uuid;not null"`
	Title                  string           `gorm:"column:title;not null;default:''"`
	MinimumQuantity        int64            `gorm:"column:minimum_quantity;not null"`
	MaximumQuantity        *int64           `gorm:"column:maximum_quantity"`
	UnitPrice              decimal.Decimal  `gorm:"column:unit_price;type:numeric(14,2);not null"`
	BulkDiscountPercentage decimal.Decimal  `gorm:"column:bulk_discount_percentage;type:numeric(5,2);not null"`
	FinalUnitPrice         decimal.Decimal  `gorm:"column:final_unit_price;type:numeric(14,2);not null"`
	CurrentQuantity        int64            `gorm:"column:current_quantity;not null;default:0"`
	OpenDate               time.Time        `gorm:"column:open_date;not null"`
	CloseDate              time.Time        `gorm:"column:close_date;not null;index"`
	EstimatedShippingCost  decimal.Decimal  `gorm:"column:estimated_shipping_cost;type:numeric(14,2);not null"`
	AreaGroup              string           `gorm:"column:area_group;not null;index"`
	Status                 enums.PoolStatus `gorm:"column:status;type:text;not null;default:'open';index"`
	ExtendedOnce           bool             `gorm:"column:extended_once;not null;default:false"`
	AggregatedOrderID      *uuid.UUID       `gorm:"column:aggregated_order_id;type:uuid"`
	Version                int64            `gorm:"column:version;not null;default:1"`
	ConfirmedAt            *time.Time       `gorm:"column:confirmed_at"`
	ExpiredAt              *time.Time       `gorm:"column:expired_at"`
	CancelledAt            *time.Time       `gorm:"column:cancelled_at"`
	CreatedAt              time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Pool) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// ReachedMinimum reports whether committed quantity satisfies the threshold.
func (p *Pool) ReachedMinimum() bool {
	return p.CurrentQuantity >= p.MinimumQuantity
}

// RemainingCapacity returns nil when the pool has no maximum.
func (p *Pool) RemainingCapacity() *int64 {
	if p.MaximumQuantity == nil {
		return nil
	}
	remaining := *p.MaximumQuantity - p.CurrentQuantity
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}

// PastClose reports whether the close date has passed at now.
func (p *Pool) PastClose(now time.Time) bool {
	return now.After(p.CloseDate)
}
