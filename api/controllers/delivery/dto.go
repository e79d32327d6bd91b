package delivery

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	internaldelivery "github.com/angelmondragon/groupbuy-backend/internal/delivery"
	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
	"github.com/angelmondragon/groupbuy-backend/pkg/types"
)

type stopRequest struct {
	ShopID   uuid.UUID             `json:"shop_id" validate:"required"`
	Address  string                `json:"address" validate:"max=300"`
	Location *types.GeographyPoint `json:"location,omitempty" validate:"omitempty"`
}

type createRunRequest struct {
	PoolID            *uuid.UUID      `json:"pool_id,omitempty"`
	ScheduledDate     time.Time       `json:"scheduled_date" validate:"required"`
	TotalDeliveryCost decimal.Decimal `json:"total_delivery_cost" validate:"gte=0"`
	Stops             []stopRequest   `json:"stops" validate:"dive"`
}

type assignDriverRequest struct {
	DriverID   uuid.UUID `json:"driver_id" validate:"required"`
	DriverName string    `json:"driver_name" validate:"required,max=200"`
	VehicleRef string    `json:"vehicle_ref" validate:"max=100"`
}

type arriveRequest struct {
	At *time.Time `json:"at,omitempty"`
}

type proofRequest struct {
	Kind      enums.ProofKind `json:"kind" validate:"required"`
	Reference string          `json:"reference" validate:"max=500"`
	SignedBy  string          `json:"signed_by" validate:"max=200"`
	Note      string          `json:"note" validate:"max=1000"`
}

type completeRequest struct {
	At    *time.Time    `json:"at,omitempty"`
	Proof *proofRequest `json:"proof,omitempty"`
}

type failRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type runResponse struct {
	ID                uuid.UUID               `json:"id"`
	RunNumber         string                  `json:"run_number"`
	PoolID            *uuid.UUID              `json:"pool_id,omitempty"`
	ScheduledDate     time.Time               `json:"scheduled_date"`
	TotalDeliveryCost decimal.Decimal         `json:"total_delivery_cost"`
	ParticipantCount  int                     `json:"participant_count"`
	CostPerStop       decimal.Decimal         `json:"cost_per_stop"`
	Status            enums.DeliveryRunStatus `json:"status"`
	DriverID          *uuid.UUID              `json:"driver_id,omitempty"`
	DriverName        *string                 `json:"driver_name,omitempty"`
	VehicleRef        *string                 `json:"vehicle_ref,omitempty"`
	StartedAt         *time.Time              `json:"started_at,omitempty"`
	CompletedAt       *time.Time              `json:"completed_at,omitempty"`
	Stops             []stopResponse          `json:"stops,omitempty"`
}

type stopResponse struct {
	ID             uuid.UUID                `json:"id"`
	RunID          uuid.UUID                `json:"run_id"`
	ShopID         uuid.UUID                `json:"shop_id"`
	SequenceNumber int                      `json:"sequence_number"`
	Address        string                   `json:"address"`
	Location       *types.GeographyPoint    `json:"location,omitempty"`
	CostShare      decimal.Decimal          `json:"cost_share"`
	Status         enums.DeliveryStopStatus `json:"status"`
	ArrivedAt      *time.Time               `json:"arrived_at,omitempty"`
	CompletedAt    *time.Time               `json:"completed_at,omitempty"`
	FailedAt       *time.Time               `json:"failed_at,omitempty"`
	FailureReason  *string                  `json:"failure_reason,omitempty"`
	ProofCount     int                      `json:"proof_count"`
}

func (r createRunRequest) toInput() internaldelivery.CreateRunInput {
	input := internaldelivery.CreateRunInput{
		PoolID:            r.PoolID,
		ScheduledDate:     r.ScheduledDate,
		TotalDeliveryCost: r.TotalDeliveryCost,
	}
	for _, stop := range r.Stops {
		input.Stops = append(input.Stops, internaldelivery.StopInput{
			ShopID:   stop.ShopID,
			Address:  stop.Address,
			Location: stop.Location,
		})
	}
	return input
}

func (p *proofRequest) toInput() *internaldelivery.ProofInput {
	if p == nil {
		return nil
	}
	return &internaldelivery.ProofInput{
		Kind:      p.Kind,
		Reference: p.Reference,
		SignedBy:  p.SignedBy,
		Note:      p.Note,
	}
}

func toRunResponse(run models.DeliveryRun) runResponse {
	resp := runResponse{
		ID:                run.ID,
		RunNumber:         run.RunNumber,
		PoolID:            run.PoolID,
		ScheduledDate:     run.ScheduledDate,
		TotalDeliveryCost: run.TotalDeliveryCost,
		ParticipantCount:  run.ParticipantCount,
		CostPerStop:       run.CostPerStop,
		Status:            run.Status,
		DriverID:          run.DriverID,
		DriverName:        run.DriverName,
		VehicleRef:        run.VehicleRef,
		StartedAt:         run.StartedAt,
		CompletedAt:       run.CompletedAt,
	}
	for _, stop := range run.Stops {
		resp.Stops = append(resp.Stops, toStopResponse(stop))
	}
	return resp
}

func toStopResponse(stop models.DeliveryStop) stopResponse {
	return stopResponse{
		ID:             stop.ID,
		RunID:          stop.RunID,
		ShopID:         stop.ShopID,
		SequenceNumber: stop.SequenceNumber,
		Address:        stop.Address,
		Location:       stop.Location,
		CostShare:      stop.CostShare,
		Status:         stop.Status,
		ArrivedAt:      stop.ArrivedAt,
		CompletedAt:    stop.CompletedAt,
		FailedAt:       stop.FailedAt,
		FailureReason:  stop.FailureReason,
		ProofCount:     len(stop.Proofs),
	}
}
