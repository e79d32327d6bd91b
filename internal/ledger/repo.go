package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/groupbuy-backend/pkg/db"
	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
)

// Repository persists commitments and the pool counters they drive.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindActive(ctx context.Context, poolID, shopID uuid.UUID) (*models.PoolParticipation, error)
	ListActive(ctx context.Context, poolID uuid.UUID) ([]models.PoolParticipation, error)
	CountActive(ctx context.Context, poolID uuid.UUID) (int64, error)
	SumActive(ctx context.Context, poolID uuid.UUID) (int64, error)
	Insert(ctx context.Context, participation *models.PoolParticipation) error
	MarkWithdrawn(ctx context.Context, participationID uuid.UUID, at time.Time) error
	ApplyDelta(ctx context.Context, poolID uuid.UUID, expectedVersion, delta int64, status enums.PoolStatus) (bool, error)
	Counters(ctx context.Context, poolID uuid.UUID, share bool) (*Counters, error)
}

// Counters are the ledger-owned columns of the pool row.
type Counters struct {
	CurrentQuantity int64
	Version         int64
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindActive(ctx context.Context, poolID, shopID uuid.UUID) (*models.PoolParticipation, error) {
	var participation models.PoolParticipation
	err := r.db.WithContext(ctx).
		Where("pool_id = ? AND shop_id = ? AND withdrawn_at IS NULL", poolID, shopID).
		First(&participation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &participation, nil
}

func (r *repository) ListActive(ctx context.Context, poolID uuid.UUID) ([]models.PoolParticipation, error) {
	var rows []models.PoolParticipation
	if err := r.db.WithContext(ctx).
		Where("pool_id = ? AND withdrawn_at IS NULL", poolID).
		Order("joined_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) CountActive(ctx context.Context, poolID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PoolParticipation{}).
		Where("pool_id = ? AND withdrawn_at IS NULL", poolID).
		Count(&count).Error
	return count, err
}

func (r *repository) SumActive(ctx context.Context, poolID uuid.UUID) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).
		Model(&models.PoolParticipation{}).
		Select("COALESCE(SUM(quantity_committed), 0)").
		Where("pool_id = ? AND withdrawn_at IS NULL", poolID).
		Scan(&sum).Error
	return sum, err
}

func (r *repository) Insert(ctx context.Context, participation *models.PoolParticipation) error {
	return r.db.WithContext(ctx).Create(participation).Error
}

func (r *repository) MarkWithdrawn(ctx context.Context, participationID uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.PoolParticipation{}).
		Where("id = ? AND withdrawn_at IS NULL", participationID).
		Updates(map[string]any{"withdrawn_at": at, "updated_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ApplyDelta moves current_quantity by delta and bumps the version, guarded
// by expectedVersion. It reports false when another writer got there first.
func (r *repository) ApplyDelta(ctx context.Context, poolID uuid.UUID, expectedVersion, delta int64, status enums.PoolStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Pool{}).
		Where("id = ? AND version = ?", poolID, expectedVersion).
		Updates(map[string]any{
			"current_quantity": gorm.Expr("current_quantity + ?", delta),
			"version":          gorm.Expr("version + 1"),
			"status":           status,
			"updated_at":       time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Counters reads quantity and version. With share set on Postgres the row is
// held FOR SHARE so concurrent writers wait for the caller's transaction.
func (r *repository) Counters(ctx context.Context, poolID uuid.UUID, share bool) (*Counters, error) {
	query := r.db.WithContext(ctx).Model(&models.Pool{}).
		Select("current_quantity, version").
		Where("id = ?", poolID)
	if share && db.IsPostgresDialect(r.db.Dialector.Name()) {
		query = query.Clauses(clause.Locking{Strength: "SHARE"})
	}
	var out Counters
	res := query.Scan(&out)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &out, nil
}
