package delivery

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/groupbuy-backend/api/middleware"
	"github.com/angelmondragon/groupbuy-backend/api/responses"
	"github.com/angelmondragon/groupbuy-backend/api/validators"
	internaldelivery "github.com/angelmondragon/groupbuy-backend/internal/delivery"
	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
	"github.com/angelmondragon/groupbuy-backend/pkg/types"
)

// Service is the delivery allocator surface the handlers drive.
type Service interface {
	CreateRun(ctx context.Context, actor types.Actor, input internaldelivery.CreateRunInput) (*models.DeliveryRun, error)
	AssignDriver(ctx context.Context, actor types.Actor, runID uuid.UUID, input internaldelivery.DriverInput) (*models.DeliveryRun, error)
	StartRun(ctx context.Context, actor types.Actor, runID uuid.UUID) (*models.DeliveryRun, error)
	RecordArrival(ctx context.Context, actor types.Actor, stopID uuid.UUID, at time.Time) (*models.DeliveryStop, error)
	RecordCompletion(ctx context.Context, actor types.Actor, stopID uuid.UUID, at time.Time, proof *internaldelivery.ProofInput) (*models.DeliveryStop, error)
	FailStop(ctx context.Context, actor types.Actor, stopID uuid.UUID, reason string) (*models.DeliveryStop, error)
	GetDriverRunView(ctx context.Context, actor types.Actor, runID uuid.UUID) (*internaldelivery.DriverRunView, error)
	GetDeliveryTracking(ctx context.Context, actor types.Actor, runID uuid.UUID) (*internaldelivery.DeliveryTracking, error)
}

// CreateRun schedules a shared delivery run.
func CreateRun(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.RequestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body createRunRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		run, err := svc.CreateRun(r.Context(), actor, body.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toRunResponse(*run))
	}
}

// AssignDriver attaches a driver and vehicle to a scheduled run.
func AssignDriver(svc Service, logg *logger.Logger) http.HandlerFunc {
	return withID(logg, "runID", func(w http.ResponseWriter, r *http.Request, actor types.Actor, runID uuid.UUID) {
		var body assignDriverRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		run, err := svc.AssignDriver(r.Context(), actor, runID, internaldelivery.DriverInput{
			DriverID:   body.DriverID,
			DriverName: validators.SanitizeString(body.DriverName, 200),
			VehicleRef: validators.SanitizeString(body.VehicleRef, 100),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toRunResponse(*run))
	})
}

func StartRun(svc Service, logg *logger.Logger) http.HandlerFunc {
	return withID(logg, "runID", func(w http.ResponseWriter, r *http.Request, actor types.Actor, runID uuid.UUID) {
		run, err := svc.StartRun(r.Context(), actor, runID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toRunResponse(*run))
	})
}

func DriverView(svc Service, logg *logger.Logger) http.HandlerFunc {
	return withID(logg, "runID", func(w http.ResponseWriter, r *http.Request, actor types.Actor, runID uuid.UUID) {
		view, err := svc.GetDriverRunView(r.Context(), actor, runID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	})
}

func Tracking(svc Service, logg *logger.Logger) http.HandlerFunc {
	return withID(logg, "runID", func(w http.ResponseWriter, r *http.Request, actor types.Actor, runID uuid.UUID) {
		tracking, err := svc.GetDeliveryTracking(r.Context(), actor, runID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, tracking)
	})
}

// Arrive stamps the driver's arrival; without a body the server clock is used.
func Arrive(svc Service, logg *logger.Logger) http.HandlerFunc {
	return withID(logg, "stopID", func(w http.ResponseWriter, r *http.Request, actor types.Actor, stopID uuid.UUID) {
		var body arriveRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		stop, err := svc.RecordArrival(r.Context(), actor, stopID, timeOrZero(body.At))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toStopResponse(*stop))
	})
}

// Complete marks the stop delivered with optional proof.
func Complete(svc Service, logg *logger.Logger) http.HandlerFunc {
	return withID(logg, "stopID", func(w http.ResponseWriter, r *http.Request, actor types.Actor, stopID uuid.UUID) {
		var body completeRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		stop, err := svc.RecordCompletion(r.Context(), actor, stopID, timeOrZero(body.At), body.Proof.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toStopResponse(*stop))
	})
}

func Fail(svc Service, logg *logger.Logger) http.HandlerFunc {
	return withID(logg, "stopID", func(w http.ResponseWriter, r *http.Request, actor types.Actor, stopID uuid.UUID) {
		var body failRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		stop, err := svc.FailStop(r.Context(), actor, stopID, validators.SanitizeString(body.Reason, 500))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toStopResponse(*stop))
	})
}

type idHandler func(w http.ResponseWriter, r *http.Request, actor types.Actor, id uuid.UUID)

func withID(logg *logger.Logger, param string, fn idHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.RequestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.PathUUID(r, param)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := r.Context()
		if logg != nil && param == "runID" {
			ctx = logg.WithRunID(ctx, id.String())
		} else if logg != nil {
			ctx = logg.WithField(ctx, "stop_id", id.String())
		}
		fn(w, r.WithContext(ctx), actor, id)
	}
}

func timeOrZero(at *time.Time) time.Time {
	if at == nil {
		return time.Time{}
	}
	return *at
}
