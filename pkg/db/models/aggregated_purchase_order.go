package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
)

// AggregatedPurchaseOrder is the single supplier order produced when a pool
// is confirmed.
type AggregatedPurchaseOrder struct {
	ID                   uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber          string                      `gorm:"column:order_number;not null;uniqueIndex"`
	TenantID             uuid.UUID                   `gorm:"column:tenant_id;type:uuid;not null;index"`
	PoolID               uuid.UUID                   `gorm:"column:pool_id;type:uuid;not null;uniqueIndex"`
	SupplierID           uuid.UUID                   `gorm:"column:supplier_id;type:uuid;not null"`
	ProductID            uuid.UUID                   `gorm:"column:product_id;type:uuid;not null"`
	TotalQuantity        int64                       `gorm:"column:total_quantity;not null"`
	UnitPrice            decimal.Decimal             `gorm:"column:unit_price;type:numeric(14,2);not null"`
	Subtotal             decimal.Decimal             `gorm:"column:subtotal;type:numeric(14,2);not null"`
	TaxRate              decimal.Decimal             `gorm:"column:tax_rate;type:numeric(5,4);not null"`
	TaxAmount            decimal.Decimal             `gorm:"column:tax_amount;type:numeric(14,2);not null"`
	ShippingCost         decimal.Decimal             `gorm:"column:shipping_cost;type:numeric(14,2);not null"`
	Total                decimal.Decimal             `gorm:"column:total;type:numeric(14,2);not null"`
	ParticipantCount     int                         `gorm:"column:participant_count;not null"`
	OrderDate            time.Time                   `gorm:"column:order_date;not null"`
	ExpectedDeliveryDate time.Time                   `gorm:"column:expected_delivery_date;not null"`
	Status               enums.AggregatedOrderStatus `gorm:"column:status;type:text;not null;default:'submitted'"`
	CreatedAt            time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *AggregatedPurchaseOrder) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
