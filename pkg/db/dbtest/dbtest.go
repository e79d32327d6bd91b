// Package dbtest opens migrated in-memory SQLite databases for tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/groupbuy-backend/pkg/db"
	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
)

// Open returns a client over a private in-memory database with every model
// migrated. A single connection keeps SQLite writers serialized.
func Open(t testing.TB) *db.Client {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db.Wrap(conn)
}

// Directory holds seeded directory rows.
type Directory struct {
	TenantID   uuid.UUID
	SupplierID uuid.UUID
	ProductID  uuid.UUID
	Shops      []uuid.UUID
}

// SeedDirectory inserts one supplier, one product and shopCount shops in
// areaGroup.
func SeedDirectory(t testing.TB, client *db.Client, areaGroup string, shopCount int) Directory {
	t.Helper()
	dir := Directory{
		TenantID:   uuid.New(),
		SupplierID: uuid.New(),
		ProductID:  uuid.New(),
	}
	conn := client.DB()
	must(t, conn.Create(&models.DirectorySupplier{ID: dir.SupplierID, TenantID: dir.TenantID, Name: "Township Wholesale", Active: true}).Error)
	must(t, conn.Create(&models.DirectoryProduct{ID: dir.ProductID, TenantID: dir.TenantID, SupplierID: dir.SupplierID, Name: "Maize meal 10kg", SKU: "MM-10", Active: true}).Error)
	for i := 0; i < shopCount; i++ {
		dir.Shops = append(dir.Shops, SeedShop(t, client, dir.TenantID, areaGroup, fmt.Sprintf("Spaza %d", i+1)))
	}
	return dir
}

// SeedShop inserts a single active shop.
func SeedShop(t testing.TB, client *db.Client, tenantID uuid.UUID, areaGroup, name string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	must(t, client.DB().Create(&models.DirectoryShop{
		ID:        id,
		TenantID:  tenantID,
		Name:      name,
		AreaGroup: areaGroup,
		Address:   name + ", " + areaGroup,
		Active:    true,
	}).Error)
	return id
}

func must(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}
