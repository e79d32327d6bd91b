package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PoolCreatedEvent announces a newly opened pool.
type PoolCreatedEvent struct {
	PoolID          uuid.UUID       `json:"pool_id"`
	PoolNumber      string          `json:"pool_number"`
	TenantID        uuid.UUID       `json:"tenant_id"`
	ProductID       uuid.UUID       `json:"product_id"`
	SupplierID      uuid.UUID       `json:"supplier_id"`
	InitiatorShopID uuid.UUID       `json:"initiator_shop_id"`
	AreaGroup       string          `json:"area_group"`
	MinimumQuantity int64           `json:"minimum_quantity"`
	MaximumQuantity *int64          `json:"maximum_quantity,omitempty"`
	FinalUnitPrice  decimal.Decimal `json:"final_unit_price"`
	CloseDate       time.Time       `json:"close_date"`
}

// PoolJoinedEvent is emitted for each accepted commitment.
type PoolJoinedEvent struct {
	PoolID          uuid.UUID `json:"pool_id"`
	ShopID          uuid.UUID `json:"shop_id"`
	ParticipationID uuid.UUID `json:"participation_id"`
	Quantity        int64     `json:"quantity"`
	CurrentQuantity int64     `json:"current_quantity"`
	Version         int64     `json:"version"`
}

// PoolWithdrawnEvent is emitted when a shop releases its commitment.
type PoolWithdrawnEvent struct {
	PoolID          uuid.UUID `json:"pool_id"`
	ShopID          uuid.UUID `json:"shop_id"`
	Quantity        int64     `json:"quantity"`
	CurrentQuantity int64     `json:"current_quantity"`
	Reopened        bool      `json:"reopened"`
}

// PoolThresholdReachedEvent fires when the minimum is first met.
type PoolThresholdReachedEvent struct {
	PoolID          uuid.UUID `json:"pool_id"`
	CurrentQuantity int64     `json:"current_quantity"`
	MinimumQuantity int64     `json:"minimum_quantity"`
}

// PoolConfirmedEvent carries the settlement outcome.
type PoolConfirmedEvent struct {
	PoolID           uuid.UUID       `json:"pool_id"`
	OrderID          uuid.UUID       `json:"order_id"`
	OrderNumber      string          `json:"order_number"`
	TotalQuantity    int64           `json:"total_quantity"`
	Total            decimal.Decimal `json:"total"`
	ParticipantCount int             `json:"participant_count"`
	ShopIDs          []uuid.UUID     `json:"shop_ids"`
}

// PoolClosedEvent covers expiry and cancellation.
type PoolClosedEvent struct {
	PoolID          uuid.UUID   `json:"pool_id"`
	Status          string      `json:"status"`
	CurrentQuantity int64       `json:"current_quantity"`
	Reason          string      `json:"reason,omitempty"`
	ShopIDs         []uuid.UUID `json:"shop_ids"`
}

// PoolDeadlineExtendedEvent records the one-time deadline extension.
type PoolDeadlineExtendedEvent struct {
	PoolID        uuid.UUID `json:"pool_id"`
	PreviousClose time.Time `json:"previous_close"`
	NewClose      time.Time `json:"new_close"`
}

// AggregatedOrderCreatedEvent is consumed by supplier integrations.
type AggregatedOrderCreatedEvent struct {
	OrderID              uuid.UUID       `json:"order_id"`
	OrderNumber          string          `json:"order_number"`
	PoolID               uuid.UUID       `json:"pool_id"`
	SupplierID           uuid.UUID       `json:"supplier_id"`
	ProductID            uuid.UUID       `json:"product_id"`
	TotalQuantity        int64           `json:"total_quantity"`
	Subtotal             decimal.Decimal `json:"subtotal"`
	TaxAmount            decimal.Decimal `json:"tax_amount"`
	ShippingCost         decimal.Decimal `json:"shipping_cost"`
	Total                decimal.Decimal `json:"total"`
	ExpectedDeliveryDate time.Time       `json:"expected_delivery_date"`
}

// DeliveryRunCreatedEvent announces a scheduled run.
type DeliveryRunCreatedEvent struct {
	RunID         uuid.UUID   `json:"run_id"`
	RunNumber     string      `json:"run_number"`
	PoolID        *uuid.UUID  `json:"pool_id,omitempty"`
	ScheduledDate time.Time   `json:"scheduled_date"`
	ShopIDs       []uuid.UUID `json:"shop_ids"`
}

// DeliveryStopCompletedEvent lets the receiving shop know goods arrived.
type DeliveryStopCompletedEvent struct {
	RunID     uuid.UUID `json:"run_id"`
	StopID    uuid.UUID `json:"stop_id"`
	ShopID    uuid.UUID `json:"shop_id"`
	ProofKind string    `json:"proof_kind"`
	At        time.Time `json:"at"`
}

// DeliveryRunCompletedEvent fires once every stop is terminal.
type DeliveryRunCompletedEvent struct {
	RunID          uuid.UUID `json:"run_id"`
	RunNumber      string    `json:"run_number"`
	CompletedStops int       `json:"completed_stops"`
	FailedStops    int       `json:"failed_stops"`
	CompletedAt    time.Time `json:"completed_at"`
}
