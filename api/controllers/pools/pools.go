package pools

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/groupbuy-backend/api/middleware"
	"github.com/angelmondragon/groupbuy-backend/api/responses"
	"github.com/angelmondragon/groupbuy-backend/api/validators"
	"github.com/angelmondragon/groupbuy-backend/internal/discovery"
	internalpools "github.com/angelmondragon/groupbuy-backend/internal/pools"
	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
	"github.com/angelmondragon/groupbuy-backend/pkg/pagination"
	"github.com/angelmondragon/groupbuy-backend/pkg/types"
)

// Service is the pool lifecycle surface the handlers drive.
type Service interface {
	Create(ctx context.Context, actor types.Actor, input internalpools.CreateInput) (*models.Pool, error)
	Get(ctx context.Context, actor types.Actor, poolID uuid.UUID) (*internalpools.Detail, error)
	Join(ctx context.Context, actor types.Actor, poolID uuid.UUID, quantity int64) (*models.PoolParticipation, error)
	Withdraw(ctx context.Context, actor types.Actor, poolID uuid.UUID) (*models.PoolParticipation, error)
	Confirm(ctx context.Context, actor types.Actor, poolID uuid.UUID) (*internalpools.ConfirmResult, error)
	Cancel(ctx context.Context, actor types.Actor, poolID uuid.UUID, reason string) (*models.Pool, error)
	ExtendDeadline(ctx context.Context, actor types.Actor, poolID uuid.UUID, newClose time.Time) (*models.Pool, error)
}

// Discovery is the read side used by the listing handlers.
type Discovery interface {
	ListOpenPools(ctx context.Context, actor types.Actor, filter discovery.Filter, page pagination.Params) (*discovery.ListResult, error)
	ListNearbyOpportunities(ctx context.Context, actor types.Actor, shopID uuid.UUID, maxKm float64, productID *uuid.UUID) ([]discovery.Opportunity, error)
}

// Create opens a pool initiated by the caller's shop.
func Create(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.RequestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body createPoolRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		body.Title = validators.SanitizeString(body.Title, 200)
		body.AreaGroup = validators.SanitizeString(body.AreaGroup, 100)

		pool, err := svc.Create(r.Context(), actor, body.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toPoolResponse(*pool))
	}
}

// Get returns a pool with its active commitments.
func Get(svc Service, logg *logger.Logger) http.HandlerFunc {
	return withPool(logg, func(w http.ResponseWriter, r *http.Request, actor types.Actor, poolID uuid.UUID) {
		detail, err := svc.Get(r.Context(), actor, poolID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detailResponse{
			Pool:         toPoolResponse(detail.Pool),
			Participants: toParticipationResponses(detail.Participants),
		})
	})
}

// Join commits the caller's shop to a quantity.
func Join(svc Service, logg *logger.Logger) http.HandlerFunc {
	return withPool(logg, func(w http.ResponseWriter, r *http.Request, actor types.Actor, poolID uuid.UUID) {
		var body joinRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		participation, err := svc.Join(r.Context(), actor, poolID, body.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toParticipationResponse(*participation))
	})
}

// Withdraw releases the caller's commitment.
func Withdraw(svc Service, logg *logger.Logger) http.HandlerFunc {
	return withPool(logg, func(w http.ResponseWriter, r *http.Request, actor types.Actor, poolID uuid.UUID) {
		participation, err := svc.Withdraw(r.Context(), actor, poolID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toParticipationResponse(*participation))
	})
}

// Confirm settles the pool into an aggregated purchase order.
func Confirm(svc Service, logg *logger.Logger) http.HandlerFunc {
	return withPool(logg, func(w http.ResponseWriter, r *http.Request, actor types.Actor, poolID uuid.UUID) {
		result, err := svc.Confirm(r.Context(), actor, poolID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, confirmResponse{
			Pool:         toPoolResponse(result.Pool),
			Order:        toOrderResponse(result.Order),
			Participants: toParticipationResponses(result.Participants),
		})
	})
}

// Cancel closes the pool on behalf of its initiator.
func Cancel(svc Service, logg *logger.Logger) http.HandlerFunc {
	return withPool(logg, func(w http.ResponseWriter, r *http.Request, actor types.Actor, poolID uuid.UUID) {
		var body cancelRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		pool, err := svc.Cancel(r.Context(), actor, poolID, validators.SanitizeString(body.Reason, 500))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toPoolResponse(*pool))
	})
}

// Extend moves the close date once.
func Extend(svc Service, logg *logger.Logger) http.HandlerFunc {
	return withPool(logg, func(w http.ResponseWriter, r *http.Request, actor types.Actor, poolID uuid.UUID) {
		var body extendRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		pool, err := svc.ExtendDeadline(r.Context(), actor, poolID, body.CloseDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toPoolResponse(*pool))
	})
}

// ListOpen pages through joinable pools of the caller's tenant.
func ListOpen(svc Discovery, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.RequestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.ParseQueryUUID(r, "product_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter := discovery.Filter{
			AreaGroup: validators.SanitizeString(r.URL.Query().Get("area_group"), 100),
			ProductID: productID,
		}
		page := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		result, err := svc.ListOpenPools(r.Context(), actor, filter, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// ListNearby returns open pools in the caller's area it has not joined.
// A coordinator passes shop_id to look on behalf of a shop.
func ListNearby(svc Discovery, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.RequestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		maxKm, err := validators.ParseQueryFloat(r, "max_km", 0)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.ParseQueryUUID(r, "product_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		shopID := actor.ShopID
		if explicit, err := validators.ParseQueryUUID(r, "shop_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		} else if explicit != nil {
			shopID = *explicit
		}
		if shopID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "shop_id is required").
				WithDetails(map[string]any{"field": "shop_id"}))
			return
		}

		items, err := svc.ListNearbyOpportunities(r.Context(), actor, shopID, maxKm, productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": items})
	}
}

type poolHandler func(w http.ResponseWriter, r *http.Request, actor types.Actor, poolID uuid.UUID)

func withPool(logg *logger.Logger, fn poolHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.RequestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		poolID, err := validators.PathUUID(r, "poolID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithPoolID(ctx, poolID.String())
		}
		fn(w, r.WithContext(ctx), actor, poolID)
	}
}
