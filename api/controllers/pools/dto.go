package pools

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	internalpools "github.com/angelmondragon/groupbuy-backend/internal/pools"
	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
)

type createPoolRequest struct {
	ProductID              uuid.UUID        `json:"product_id" validate:"required"`
	SupplierID             uuid.UUID        `json:"supplier_id" validate:"required"`
	Title                  string           `json:"title" validate:"max=200"`
	MinimumQuantity        int64            `json:"minimum_quantity" validate:"gt=0"`
	MaximumQuantity        *int64           `json:"maximum_quantity,omitempty" validate:"omitempty,gtefield=MinimumQuantity"`
	UnitPrice              decimal.Decimal  `json:"unit_price" validate:"gt=0"`
	BulkDiscountPercentage *decimal.Decimal `json:"bulk_discount_percentage,omitempty" validate:"omitempty,gt=0,lt=100"`
	PoolPrice              *decimal.Decimal `json:"pool_price,omitempty" validate:"omitempty,gt=0"`
	EstimatedShippingCost  decimal.Decimal  `json:"estimated_shipping_cost" validate:"gte=0"`
	CloseDate              time.Time        `json:"close_date" validate:"required"`
	AreaGroup              string           `json:"area_group" validate:"required,max=100"`
}

type joinRequest struct {
	Quantity int64 `json:"quantity" validate:"gt=0"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type extendRequest struct {
	CloseDate time.Time `json:"close_date" validate:"required"`
}

type poolResponse struct {
	ID                     uuid.UUID        `json:"id"`
	PoolNumber             string           `json:"pool_number"`
	ProductID              uuid.UUID        `json:"product_id"`
	SupplierID             uuid.UUID        `json:"supplier_id"`
	InitiatorShopID        uuid.UUID        `json:"initiator_shop_id"`
	Title                  string           `json:"title"`
	AreaGroup              string           `json:"area_group"`
	Status                 enums.PoolStatus `json:"status"`
	MinimumQuantity        int64            `json:"minimum_quantity"`
	MaximumQuantity        *int64           `json:"maximum_quantity,omitempty"`
	CurrentQuantity        int64            `json:"current_quantity"`
	RemainingCapacity      *int64           `json:"remaining_capacity,omitempty"`
	UnitPrice              decimal.Decimal  `json:"unit_price"`
	BulkDiscountPercentage decimal.Decimal  `json:"bulk_discount_percentage"`
	FinalUnitPrice         decimal.Decimal  `json:"final_unit_price"`
	EstimatedShippingCost  decimal.Decimal  `json:"estimated_shipping_cost"`
	OpenDate               time.Time        `json:"open_date"`
	CloseDate              time.Time        `json:"close_date"`
	ExtendedOnce           bool             `json:"extended_once"`
	AggregatedOrderID      *uuid.UUID       `json:"aggregated_order_id,omitempty"`
	ConfirmedAt            *time.Time       `json:"confirmed_at,omitempty"`
	ExpiredAt              *time.Time       `json:"expired_at,omitempty"`
	CancelledAt            *time.Time       `json:"cancelled_at,omitempty"`
}

type participationResponse struct {
	ID                uuid.UUID       `json:"id"`
	PoolID            uuid.UUID       `json:"pool_id"`
	ShopID            uuid.UUID       `json:"shop_id"`
	QuantityCommitted int64           `json:"quantity_committed"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	ShippingShare     decimal.Decimal `json:"shipping_share"`
	Total             decimal.Decimal `json:"total"`
	IsConfirmed       bool            `json:"is_confirmed"`
	JoinedAt          time.Time       `json:"joined_at"`
	ConfirmedAt       *time.Time      `json:"confirmed_at,omitempty"`
	WithdrawnAt       *time.Time      `json:"withdrawn_at,omitempty"`
}

type orderResponse struct {
	ID                   uuid.UUID                   `json:"id"`
	OrderNumber          string                      `json:"order_number"`
	PoolID               uuid.UUID                   `json:"pool_id"`
	SupplierID           uuid.UUID                   `json:"supplier_id"`
	ProductID            uuid.UUID                   `json:"product_id"`
	TotalQuantity        int64                       `json:"total_quantity"`
	UnitPrice            decimal.Decimal             `json:"unit_price"`
	Subtotal             decimal.Decimal             `json:"subtotal"`
	TaxRate              decimal.Decimal             `json:"tax_rate"`
	TaxAmount            decimal.Decimal             `json:"tax_amount"`
	ShippingCost         decimal.Decimal             `json:"shipping_cost"`
	Total                decimal.Decimal             `json:"total"`
	ParticipantCount     int                         `json:"participant_count"`
	OrderDate            time.Time                   `json:"order_date"`
	ExpectedDeliveryDate time.Time                   `json:"expected_delivery_date"`
	Status               enums.AggregatedOrderStatus `json:"status"`
}

type detailResponse struct {
	Pool         poolResponse            `json:"pool"`
	Participants []participationResponse `json:"participants"`
}

type confirmResponse struct {
	Pool         poolResponse            `json:"pool"`
	Order        orderResponse           `json:"order"`
	Participants []participationResponse `json:"participants"`
}

func (r createPoolRequest) toInput() internalpools.CreateInput {
	return internalpools.CreateInput{
		ProductID:              r.ProductID,
		SupplierID:             r.SupplierID,
		Title:                  r.Title,
		MinimumQuantity:        r.MinimumQuantity,
		MaximumQuantity:        r.MaximumQuantity,
		UnitPrice:              r.UnitPrice,
		BulkDiscountPercentage: r.BulkDiscountPercentage,
		PoolPrice:              r.PoolPrice,
		EstimatedShippingCost:  r.EstimatedShippingCost,
		CloseDate:              r.CloseDate,
		AreaGroup:              r.AreaGroup,
	}
}

func toPoolResponse(p models.Pool) poolResponse {
	return poolResponse{
		ID:                     p.ID,
		PoolNumber:             p.PoolNumber,
		ProductID:              p.ProductID,
		SupplierID:             p.SupplierID,
		InitiatorShopID:        p.InitiatorShopID,
		Title:                  p.Title,
		AreaGroup:              p.AreaGroup,
		Status:                 p.Status,
		MinimumQuantity:        p.MinimumQuantity,
		MaximumQuantity:        p.MaximumQuantity,
		CurrentQuantity:        p.CurrentQuantity,
		RemainingCapacity:      p.RemainingCapacity(),
		UnitPrice:              p.UnitPrice,
		BulkDiscountPercentage: p.BulkDiscountPercentage,
		FinalUnitPrice:         p.FinalUnitPrice,
		EstimatedShippingCost:  p.EstimatedShippingCost,
		OpenDate:               p.OpenDate,
		CloseDate:              p.CloseDate,
		ExtendedOnce:           p.ExtendedOnce,
		AggregatedOrderID:      p.AggregatedOrderID,
		ConfirmedAt:            p.ConfirmedAt,
		ExpiredAt:              p.ExpiredAt,
		CancelledAt:            p.CancelledAt,
	}
}

func toParticipationResponse(p models.PoolParticipation) participationResponse {
	return participationResponse{
		ID:                p.ID,
		PoolID:            p.PoolID,
		ShopID:            p.ShopID,
		QuantityCommitted: p.QuantityCommitted,
		UnitPrice:         p.UnitPrice,
		Subtotal:          p.Subtotal,
		ShippingShare:     p.ShippingShare,
		Total:             p.Total,
		IsConfirmed:       p.IsConfirmed,
		JoinedAt:          p.JoinedAt,
		ConfirmedAt:       p.ConfirmedAt,
		WithdrawnAt:       p.WithdrawnAt,
	}
}

func toParticipationResponses(rows []models.PoolParticipation) []participationResponse {
	out := make([]participationResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, toParticipationResponse(row))
	}
	return out
}

func toOrderResponse(o models.AggregatedPurchaseOrder) orderResponse {
	return orderResponse{
		ID:                   o.ID,
		OrderNumber:          o.OrderNumber,
		PoolID:               o.PoolID,
		SupplierID:           o.SupplierID,
		ProductID:            o.ProductID,
		TotalQuantity:        o.TotalQuantity,
		UnitPrice:            o.UnitPrice,
		Subtotal:             o.Subtotal,
		TaxRate:              o.TaxRate,
		TaxAmount:            o.TaxAmount,
		ShippingCost:         o.ShippingCost,
		Total:                o.Total,
		ParticipantCount:     o.ParticipantCount,
		OrderDate:            o.OrderDate,
		ExpectedDeliveryDate: o.ExpectedDeliveryDate,
		Status:               o.Status,
	}
}
