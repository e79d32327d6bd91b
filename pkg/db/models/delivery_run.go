package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
	"github.com/angelmondragon/groupbuy-backend/pkg/types"
)

// DeliveryRun is one shared trip serving several shops.
type DeliveryRun struct {
	ID                uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	RunNumber         string                  `gorm:"column:run_number;not null;uniqueIndex"`
	TenantID          uuid.UUID               `gorm:"column:tenant_id;type:uuid;not null;index"`
	PoolID            *uuid.UUID              `gorm:"column:pool_id;type:uuid;index"`
	ScheduledDate     time.Time               `gorm:"column:scheduled_date;not null"`
	TotalDeliveryCost decimal.Decimal         `gorm:"column:total_delivery_cost;type:numeric(14,2);not null"`
	ParticipantCount  int                     `gorm:"column:participant_count;not null"`
	CostPerStop       decimal.Decimal         `gorm:"column:cost_per_stop;type:numeric(14,2);not null"`
	Status            enums.DeliveryRunStatus `gorm:"column:status;type:text;not null;default:'scheduled'"`
	DriverID          *uuid.UUID              `gorm:"column:driver_id;type:uuid"`
	DriverName        *string                 `gorm:"column:driver_name"`
	VehicleRef        *string                 `gorm:"column:vehicle_ref"`
	StartedAt         *time.Time              `gorm:"column:started_at"`
	CompletedAt       *time.Time              `gorm:"column:completed_at"`
	Stops             []DeliveryStop          `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *DeliveryRun) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// DeliveryStop is a single shop visit within a run. SequenceNumber runs 1..N.
type DeliveryStop struct {
	ID             uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	RunID          uuid.UUID                `gorm:"column:run_id;type:uuid;not null;uniqueIndex:ux_delivery_stops_run_sequence"`
	ShopID         uuid.UUID                `gorm:"column:shop_id;type:uuid;not null;index"`
	SequenceNumber int                      `gorm:"column:sequence_number;not null;uniqueIndex:ux_delivery_stops_run_sequence"`
	Address        string                   `gorm:"column:address;not null;default:''"`
	Location       *types.GeographyPoint    `gorm:"column:location;type:geography"`
	CostShare      decimal.Decimal          `gorm:"column:cost_share;type:numeric(14,2);not null"`
	Status         enums.DeliveryStopStatus `gorm:"column:status;type:text;not null;default:'scheduled'"`
	ArrivedAt      *time.Time               `gorm:"column:arrived_at"`
	CompletedAt    *time.Time               `gorm:"column:completed_at"`
	FailedAt       *time.Time               `gorm:"column:failed_at"`
	FailureReason  *string                  `gorm:"column:failure_reason"`
	Proofs         []DeliveryProof          `gorm:"foreignKey:StopID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *DeliveryStop) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// DeliveryProof is evidence captured when a stop completes. Reference points
// at externally stored media or a captured PIN hash.
type DeliveryProof struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	StopID     uuid.UUID       `gorm:"column:stop_id;type:uuid;not null;index"`
	Kind       enums.ProofKind `gorm:"column:kind;type:text;not null"`
	Reference  string          `gorm:"column:reference;not null;default:''"`
	SignedBy   *string         `gorm:"column:signed_by"`
	Note       *string         `gorm:"column:note"`
	CapturedAt time.Time       `gorm:"column:captured_at;not null"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (p *DeliveryProof) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
