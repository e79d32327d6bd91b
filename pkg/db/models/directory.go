package models

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/groupbuy-backend/pkg/types"
)

// DirectoryShop is the read model of a retail shop maintained by the
// account side of the platform.
type DirectoryShop struct {
	ID        uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	TenantID  uuid.UUID             `gorm:"column:tenant_id;type:uuid;not null;index"`
	Name      string                `gorm:"column:name;not null"`
	AreaGroup string                `gorm:"column:area_group;not null;index"`
	Address   string                `gorm:"column:address;not null;default:''"`
	Location  *types.GeographyPoint `gorm:"column:location;type:geography"`
	Active    bool                  `gorm:"column:active;not null;default:true"`
}

func (DirectoryShop) TableName() string { return "directory_shops" }

type DirectorySupplier struct {
	ID       uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	TenantID uuid.UUID `gorm:"column:tenant_id;type:uuid;not null;index"`
	Name     string    `gorm:"column:name;not null"`
	Active   bool      `gorm:"column:active;not null;default:true"`
}

func (DirectorySupplier) TableName() string { return "directory_suppliers" }

type DirectoryProduct struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	TenantID   uuid.UUID `gorm:"column:tenant_id;type:uuid;not null;index"`
	SupplierID uuid.UUID `gorm:"column:supplier_id;type:uuid;not null"`
	Name       string    `gorm:"column:name;not null"`
	SKU        string    `gorm:"column:sku;not null;default:''"`
	Active     bool      `gorm:"column:active;not null;default:true"`
}

func (DirectoryProduct) TableName() string { return "directory_products" }
