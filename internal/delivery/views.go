package delivery

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
	"github.com/angelmondragon/groupbuy-backend/pkg/types"
)

// DriverRunView is what a driver needs to work through a run in order.
type DriverRunView struct {
	RunID         uuid.UUID               `json:"run_id"`
	RunNumber     string                  `json:"run_number"`
	Status        enums.DeliveryRunStatus `json:"status"`
	ScheduledDate time.Time               `json:"scheduled_date"`
	DriverName    *string                 `json:"driver_name,omitempty"`
	VehicleRef    *string                 `json:"vehicle_ref,omitempty"`
	Stops         []DriverStopView        `json:"stops"`
}

type DriverStopView struct {
	StopID         uuid.UUID                `json:"stop_id"`
	SequenceNumber int                      `json:"sequence_number"`
	ShopID         uuid.UUID                `json:"shop_id"`
	ShopName       string                   `json:"shop_name"`
	Address        string                   `json:"address"`
	Location       *types.GeographyPoint    `json:"location,omitempty"`
	Status         enums.DeliveryStopStatus `json:"status"`
	ArrivedAt      *time.Time               `json:"arrived_at,omitempty"`
	CompletedAt    *time.Time               `json:"completed_at,omitempty"`
}

// DeliveryTracking summarizes progress and cost allocation of a run.
type DeliveryTracking struct {
	RunID             uuid.UUID               `json:"run_id"`
	RunNumber         string                  `json:"run_number"`
	PoolID            *uuid.UUID              `json:"pool_id,omitempty"`
	Status            enums.DeliveryRunStatus `json:"status"`
	TotalDeliveryCost decimal.Decimal         `json:"total_delivery_cost"`
	CostPerStop       decimal.Decimal         `json:"cost_per_stop"`
	TotalStops        int                     `json:"total_stops"`
	CompletedStops    int                     `json:"completed_stops"`
	FailedStops       int                     `json:"failed_stops"`
	StartedAt         *time.Time              `json:"started_at,omitempty"`
	CompletedAt       *time.Time              `json:"completed_at,omitempty"`
	Stops             []TrackingStop          `json:"stops"`
}

type TrackingStop struct {
	StopID         uuid.UUID                `json:"stop_id"`
	SequenceNumber int                      `json:"sequence_number"`
	ShopID         uuid.UUID                `json:"shop_id"`
	Status         enums.DeliveryStopStatus `json:"status"`
	CostShare      decimal.Decimal          `json:"cost_share"`
	ArrivedAt      *time.Time               `json:"arrived_at,omitempty"`
	CompletedAt    *time.Time               `json:"completed_at,omitempty"`
	FailedAt       *time.Time               `json:"failed_at,omitempty"`
	FailureReason  *string                  `json:"failure_reason,omitempty"`
	HasProof       bool                     `json:"has_proof"`
	ProofCount     int                      `json:"proof_count"`
}

// GetDriverRunView returns the stops in sequence with shop names.
func (s *Service) GetDriverRunView(ctx context.Context, actor types.Actor, runID uuid.UUID) (*DriverRunView, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	run, err := s.loadRun(ctx, nil, actor.TenantID, runID)
	if err != nil {
		return nil, err
	}
	if err := authorizeDriver(actor, run); err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(run.Stops))
	for _, stop := range run.Stops {
		ids = append(ids, stop.ShopID)
	}
	shops, err := s.directory.Shops(ctx, actor.TenantID, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup shops")
	}

	view := &DriverRunView{
		RunID:         run.ID,
		RunNumber:     run.RunNumber,
		Status:        run.Status,
		ScheduledDate: run.ScheduledDate,
		DriverName:    run.DriverName,
		VehicleRef:    run.VehicleRef,
		Stops:         make([]DriverStopView, 0, len(run.Stops)),
	}
	for _, stop := range run.Stops {
		view.Stops = append(view.Stops, DriverStopView{
			StopID:         stop.ID,
			SequenceNumber: stop.SequenceNumber,
			ShopID:         stop.ShopID,
			ShopName:       shops[stop.ShopID].Name,
			Address:        stop.Address,
			Location:       stop.Location,
			Status:         stop.Status,
			ArrivedAt:      stop.ArrivedAt,
			CompletedAt:    stop.CompletedAt,
		})
	}
	return view, nil
}

// GetDeliveryTracking is visible to anyone in the tenant.
func (s *Service) GetDeliveryTracking(ctx context.Context, actor types.Actor, runID uuid.UUID) (*DeliveryTracking, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	run, err := s.loadRun(ctx, nil, actor.TenantID, runID)
	if err != nil {
		return nil, err
	}
	return buildTracking(run), nil
}

func buildTracking(run *models.DeliveryRun) *DeliveryTracking {
	tracking := &DeliveryTracking{
		RunID:             run.ID,
		RunNumber:         run.RunNumber,
		PoolID:            run.PoolID,
		Status:            run.Status,
		TotalDeliveryCost: run.TotalDeliveryCost,
		CostPerStop:       run.CostPerStop,
		TotalStops:        len(run.Stops),
		StartedAt:         run.StartedAt,
		CompletedAt:       run.CompletedAt,
		Stops:             make([]TrackingStop, 0, len(run.Stops)),
	}
	for _, stop := range run.Stops {
		switch stop.Status {
		case enums.DeliveryStopStatusCompleted:
			tracking.CompletedStops++
		case enums.DeliveryStopStatusFailed:
			tracking.FailedStops++
		}
		tracking.Stops = append(tracking.Stops, TrackingStop{
			StopID:         stop.ID,
			SequenceNumber: stop.SequenceNumber,
			ShopID:         stop.ShopID,
			Status:         stop.Status,
			CostShare:      stop.CostShare,
			ArrivedAt:      stop.ArrivedAt,
			CompletedAt:    stop.CompletedAt,
			FailedAt:       stop.FailedAt,
			FailureReason:  stop.FailureReason,
			HasProof:       len(stop.Proofs) > 0,
			ProofCount:     len(stop.Proofs),
		})
	}
	return tracking
}
