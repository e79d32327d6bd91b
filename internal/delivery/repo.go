package delivery

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
)

// Repository persists runs, stops and proofs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateRun(ctx context.Context, run *models.DeliveryRun) error
	FindRun(ctx context.Context, tenantID, runID uuid.UUID) (*models.DeliveryRun, error)
	FindRunByPool(ctx context.Context, tenantID, poolID uuid.UUID) (*models.DeliveryRun, error)
	FindStop(ctx context.Context, tenantID, stopID uuid.UUID) (*models.DeliveryStop, error)
	UpdateRun(ctx context.Context, runID uuid.UUID, from []enums.DeliveryRunStatus, updates map[string]any) (bool, error)
	UpdateStop(ctx context.Context, stopID uuid.UUID, from []enums.DeliveryStopStatus, updates map[string]any) (bool, error)
	AddProof(ctx context.Context, proof *models.DeliveryProof) error
	FindPool(ctx context.Context, tenantID, poolID uuid.UUID) (*models.Pool, error)
	ConfirmedParticipants(ctx context.Context, poolID uuid.UUID) ([]models.PoolParticipation, error)
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

func (r *repository) CreateRun(ctx context.Context, run *models.DeliveryRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// FindRun loads the run with stops in sequence order and their proofs.
func (r *repository) FindRun(ctx context.Context, tenantID, runID uuid.UUID) (*models.DeliveryRun, error) {
	var run models.DeliveryRun
	err := r.db.WithContext(ctx).
		Preload("Stops", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence_number ASC")
		}).
		Preload("Stops.Proofs", func(db *gorm.DB) *gorm.DB {
			return db.Order("captured_at ASC")
		}).
		Where("id = ? AND tenant_id = ?", runID, tenantID).
		First(&run).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// FindRunByPool returns nil when the pool has no run.
func (r *repository) FindRunByPool(ctx context.Context, tenantID, poolID uuid.UUID) (*models.DeliveryRun, error) {
	var run models.DeliveryRun
	err := r.db.WithContext(ctx).
		Where("pool_id = ? AND tenant_id = ?", poolID, tenantID).
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *repository) FindStop(ctx context.Context, tenantID, stopID uuid.UUID) (*models.DeliveryStop, error) {
	var stop models.DeliveryStop
	err := r.db.WithContext(ctx).
		Joins("JOIN delivery_runs ON delivery_runs.id = delivery_stops.run_id").
		Where("delivery_stops.id = ? AND delivery_runs.tenant_id = ?", stopID, tenantID).
		First(&stop).Error
	if err != nil {
		return nil, err
	}
	return &stop, nil
}

func (r *repository) UpdateRun(ctx context.Context, runID uuid.UUID, from []enums.DeliveryRunStatus, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.DeliveryRun{}).
		Where("id = ? AND status IN ?", runID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) UpdateStop(ctx context.Context, stopID uuid.UUID, from []enums.DeliveryStopStatus, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.DeliveryStop{}).
		Where("id = ? AND status IN ?", stopID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) AddProof(ctx context.Context, proof *models.DeliveryProof) error {
	if proof.CapturedAt.IsZero() {
		proof.CapturedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(proof).Error
}

func (r *repository) FindPool(ctx context.Context, tenantID, poolID uuid.UUID) (*models.Pool, error) {
	var pool models.Pool
	err := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", poolID, tenantID).
		First(&pool).Error
	if err != nil {
		return nil, err
	}
	return &pool, nil
}

// ConfirmedParticipants lists the confirmed, active commitments of a pool in
// join order.
func (r *repository) ConfirmedParticipants(ctx context.Context, poolID uuid.UUID) ([]models.PoolParticipation, error) {
	var rows []models.PoolParticipation
	err := r.db.WithContext(ctx).
		Where("pool_id = ? AND is_confirmed = ? AND withdrawn_at IS NULL", poolID, true).
		Order("joined_at ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}
