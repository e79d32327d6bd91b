package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
	"github.com/angelmondragon/groupbuy-backend/pkg/types"
)

// Shop is the subset of shop data the engine relies on.
type Shop struct {
	ID        uuid.UUID
	Name      string
	AreaGroup string
	Address   string
	Location  *types.GeographyPoint
}

type Supplier struct {
	ID   uuid.UUID
	Name string
}

type Product struct {
	ID         uuid.UUID
	SupplierID uuid.UUID
	Name       string
	SKU        string
}

// Directory resolves shops, suppliers and products owned by a tenant.
// Missing or inactive records surface as NOT_FOUND.
type Directory interface {
	WithTx(tx *gorm.DB) Directory
	Shop(ctx context.Context, tenantID, shopID uuid.UUID) (*Shop, error)
	Shops(ctx context.Context, tenantID uuid.UUID, shopIDs []uuid.UUID) (map[uuid.UUID]Shop, error)
	Supplier(ctx context.Context, tenantID, supplierID uuid.UUID) (*Supplier, error)
	Product(ctx context.Context, tenantID, productID uuid.UUID) (*Product, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a Directory backed by the directory_* read models.
func NewRepository(db *gorm.DB) Directory {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Directory {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Shop(ctx context.Context, tenantID, shopID uuid.UUID) (*Shop, error) {
	var row models.DirectoryShop
	err := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ? AND active = ?", shopID, tenantID, true).
		First(&row).Error
	if err != nil {
		return nil, notFound(err, "shop", shopID)
	}
	shop := toShop(row)
	return &shop, nil
}

func (r *repository) Shops(ctx context.Context, tenantID uuid.UUID, shopIDs []uuid.UUID) (map[uuid.UUID]Shop, error) {
	out := make(map[uuid.UUID]Shop, len(shopIDs))
	if len(shopIDs) == 0 {
		return out, nil
	}
	var rows []models.DirectoryShop
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id IN ?", tenantID, shopIDs).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = toShop(row)
	}
	return out, nil
}

func (r *repository) Supplier(ctx context.Context, tenantID, supplierID uuid.UUID) (*Supplier, error) {
	var row models.DirectorySupplier
	err := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ? AND active = ?", supplierID, tenantID, true).
		First(&row).Error
	if err != nil {
		return nil, notFound(err, "supplier", supplierID)
	}
	return &Supplier{ID: row.ID, Name: row.Name}, nil
}

func (r *repository) Product(ctx context.Context, tenantID, productID uuid.UUID) (*Product, error) {
	var row models.DirectoryProduct
	err := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ? AND active = ?", productID, tenantID, true).
		First(&row).Error
	if err != nil {
		return nil, notFound(err, "product", productID)
	}
	return &Product{ID: row.ID, SupplierID: row.SupplierID, Name: row.Name, SKU: row.SKU}, nil
}

func toShop(row models.DirectoryShop) Shop {
	return Shop{
		ID:        row.ID,
		Name:      row.Name,
		AreaGroup: row.AreaGroup,
		Address:   row.Address,
		Location:  row.Location,
	}
}

func notFound(err error, kind string, id uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("%s not found", kind)).
			WithDetails(map[string]any{kind + "_id": id})
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("lookup %s", kind))
}
