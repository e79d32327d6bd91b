package delivery

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/groupbuy-backend/api/middleware"
	internaldelivery "github.com/angelmondragon/groupbuy-backend/internal/delivery"
	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
	"github.com/angelmondragon/groupbuy-backend/pkg/types"
)

type stubDeliveryService struct {
	createFn   func(ctx context.Context, actor types.Actor, input internaldelivery.CreateRunInput) (*models.DeliveryRun, error)
	assignFn   func(ctx context.Context, actor types.Actor, runID uuid.UUID, input internaldelivery.DriverInput) (*models.DeliveryRun, error)
	startFn    func(ctx context.Context, actor types.Actor, runID uuid.UUID) (*models.DeliveryRun, error)
	arriveFn   func(ctx context.Context, actor types.Actor, stopID uuid.UUID, at time.Time) (*models.DeliveryStop, error)
	completeFn func(ctx context.Context, actor types.Actor, stopID uuid.UUID, at time.Time, proof *internaldelivery.ProofInput) (*models.DeliveryStop, error)
	failFn     func(ctx context.Context, actor types.Actor, stopID uuid.UUID, reason string) (*models.DeliveryStop, error)
	viewFn     func(ctx context.Context, actor types.Actor, runID uuid.UUID) (*internaldelivery.DriverRunView, error)
	trackingFn func(ctx context.Context, actor types.Actor, runID uuid.UUID) (*internaldelivery.DeliveryTracking, error)
}

func (s *stubDeliveryService) CreateRun(ctx context.Context, actor types.Actor, input internaldelivery.CreateRunInput) (*models.DeliveryRun, error) {
	return s.createFn(ctx, actor, input)
}

func (s *stubDeliveryService) AssignDriver(ctx context.Context, actor types.Actor, runID uuid.UUID, input internaldelivery.DriverInput) (*models.DeliveryRun, error) {
	return s.assignFn(ctx, actor, runID, input)
}

func (s *stubDeliveryService) StartRun(ctx context.Context, actor types.Actor, runID uuid.UUID) (*models.DeliveryRun, error) {
	return s.startFn(ctx, actor, runID)
}

func (s *stubDeliveryService) RecordArrival(ctx context.Context, actor types.Actor, stopID uuid.UUID, at time.Time) (*models.DeliveryStop, error) {
	return s.arriveFn(ctx, actor, stopID, at)
}

func (s *stubDeliveryService) RecordCompletion(ctx context.Context, actor types.Actor, stopID uuid.UUID, at time.Time, proof *internaldelivery.ProofInput) (*models.DeliveryStop, error) {
	return s.completeFn(ctx, actor, stopID, at, proof)
}

func (s *stubDeliveryService) FailStop(ctx context.Context, actor types.Actor, stopID uuid.UUID, reason string) (*models.DeliveryStop, error) {
	return s.failFn(ctx, actor, stopID, reason)
}

func (s *stubDeliveryService) GetDriverRunView(ctx context.Context, actor types.Actor, runID uuid.UUID) (*internaldelivery.DriverRunView, error) {
	return s.viewFn(ctx, actor, runID)
}

func (s *stubDeliveryService) GetDeliveryTracking(ctx context.Context, actor types.Actor, runID uuid.UUID) (*internaldelivery.DeliveryTracking, error) {
	return s.trackingFn(ctx, actor, runID)
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func coordinator() types.Actor {
	return types.Actor{TenantID: uuid.New(), UserID: uuid.New(), Role: enums.ActorRoleCoordinator}
}

func newRequest(t *testing.T, method, body string, actor types.Actor, params map[string]string) *http.Request {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, "/", reader)
	req = req.WithContext(middleware.WithActor(req.Context(), actor))
	rc := chi.NewRouteContext()
	for k, v := range params {
		rc.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestCreateRunMapsStops(t *testing.T) {
	actor := coordinator()
	shopA, shopB := uuid.New(), uuid.New()
	svc := &stubDeliveryService{createFn: func(_ context.Context, _ types.Actor, input internaldelivery.CreateRunInput) (*models.DeliveryRun, error) {
		require.Len(t, input.Stops, 2)
		assert.Equal(t, shopA, input.Stops[0].ShopID)
		require.NotNil(t, input.Stops[1].Location)
		assert.Equal(t, -26.0, input.Stops[1].Location.Lat)
		assert.True(t, input.TotalDeliveryCost.Equal(decimal.NewFromInt(400)))
		assert.Nil(t, input.PoolID)
		run := &models.DeliveryRun{ID: uuid.New(), RunNumber: "DR-20260220-0001", ParticipantCount: 2, CostPerStop: decimal.NewFromInt(200), Status: enums.DeliveryRunStatusScheduled}
		for i, stop := range input.Stops {
			run.Stops = append(run.Stops, models.DeliveryStop{ID: uuid.New(), RunID: run.ID, ShopID: stop.ShopID, SequenceNumber: i + 1, CostShare: decimal.NewFromInt(200)})
		}
		return run, nil
	}}
	body := `{"scheduled_date":"2026-02-21T06:00:00Z","total_delivery_cost":"400.00","stops":[
		{"shop_id":"` + shopA.String() + `"},
		{"shop_id":"` + shopB.String() + `","address":"12 Main Rd","location":{"lat":-26.0,"lng":28.2}}]}`
	rec := httptest.NewRecorder()
	CreateRun(svc, testLogger())(rec, newRequest(t, http.MethodPost, body, actor, nil))

	require.Equal(t, http.StatusCreated, rec.Code)
	var envelope struct {
		Data runResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "DR-20260220-0001", envelope.Data.RunNumber)
	require.Len(t, envelope.Data.Stops, 2)
	assert.Equal(t, 2, envelope.Data.Stops[1].SequenceNumber)
}

func TestCreateRunSurfacesEmptyRun(t *testing.T) {
	actor := coordinator()
	svc := &stubDeliveryService{createFn: func(context.Context, types.Actor, internaldelivery.CreateRunInput) (*models.DeliveryRun, error) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery run needs at least one stop").
			WithDetails(map[string]any{"reason": "empty_run"})
	}}
	rec := httptest.NewRecorder()
	CreateRun(svc, testLogger())(rec, newRequest(t, http.MethodPost, `{"scheduled_date":"2026-02-21T06:00:00Z","total_delivery_cost":"400","stops":[]}`, actor, nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "empty_run")
}

func TestCompleteForwardsProof(t *testing.T) {
	driver := types.Actor{TenantID: uuid.New(), UserID: uuid.New(), Role: enums.ActorRoleDriver}
	stopID := uuid.New()
	svc := &stubDeliveryService{completeFn: func(_ context.Context, _ types.Actor, got uuid.UUID, at time.Time, proof *internaldelivery.ProofInput) (*models.DeliveryStop, error) {
		assert.Equal(t, stopID, got)
		assert.True(t, at.IsZero())
		require.NotNil(t, proof)
		assert.Equal(t, enums.ProofKindSignature, proof.Kind)
		assert.Equal(t, "N. Dlamini", proof.SignedBy)
		return &models.DeliveryStop{ID: got, Status: enums.DeliveryStopStatusCompleted, Proofs: []models.DeliveryProof{{Kind: proof.Kind}}}, nil
	}}
	rec := httptest.NewRecorder()
	body := `{"proof":{"kind":"signature","reference":"sig-123","signed_by":"N. Dlamini"}}`
	Complete(svc, testLogger())(rec, newRequest(t, http.MethodPost, body, driver, map[string]string{"stopID": stopID.String()}))

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data stopResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, 1, envelope.Data.ProofCount)
}

func TestCompleteWithoutBody(t *testing.T) {
	driver := types.Actor{TenantID: uuid.New(), UserID: uuid.New(), Role: enums.ActorRoleDriver}
	svc := &stubDeliveryService{completeFn: func(_ context.Context, _ types.Actor, id uuid.UUID, _ time.Time, proof *internaldelivery.ProofInput) (*models.DeliveryStop, error) {
		assert.Nil(t, proof)
		return &models.DeliveryStop{ID: id, Status: enums.DeliveryStopStatusCompleted}, nil
	}}
	rec := httptest.NewRecorder()
	Complete(svc, testLogger())(rec, newRequest(t, http.MethodPost, "", driver, map[string]string{"stopID": uuid.NewString()}))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestArriveUsesProvidedTime(t *testing.T) {
	driver := types.Actor{TenantID: uuid.New(), UserID: uuid.New(), Role: enums.ActorRoleDriver}
	want := time.Date(2026, 2, 21, 8, 15, 0, 0, time.UTC)
	svc := &stubDeliveryService{arriveFn: func(_ context.Context, _ types.Actor, id uuid.UUID, at time.Time) (*models.DeliveryStop, error) {
		assert.True(t, at.Equal(want))
		return &models.DeliveryStop{ID: id, Status: enums.DeliveryStopStatusArrived, ArrivedAt: &at}, nil
	}}
	rec := httptest.NewRecorder()
	Arrive(svc, testLogger())(rec, newRequest(t, http.MethodPost, `{"at":"2026-02-21T08:15:00Z"}`, driver, map[string]string{"stopID": uuid.NewString()}))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestArriveInvalidStateOnClosedRun(t *testing.T) {
	driver := types.Actor{TenantID: uuid.New(), UserID: uuid.New(), Role: enums.ActorRoleDriver}
	svc := &stubDeliveryService{arriveFn: func(context.Context, types.Actor, uuid.UUID, time.Time) (*models.DeliveryStop, error) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidState, "run is completed")
	}}
	rec := httptest.NewRecorder()
	Arrive(svc, testLogger())(rec, newRequest(t, http.MethodPost, "", driver, map[string]string{"stopID": uuid.NewString()}))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestFailRequiresReason(t *testing.T) {
	driver := types.Actor{TenantID: uuid.New(), UserID: uuid.New(), Role: enums.ActorRoleDriver}
	svc := &stubDeliveryService{failFn: func(context.Context, types.Actor, uuid.UUID, string) (*models.DeliveryStop, error) {
		t.Fatal("service must not be called")
		return nil, nil
	}}
	rec := httptest.NewRecorder()
	Fail(svc, testLogger())(rec, newRequest(t, http.MethodPost, `{"reason":""}`, driver, map[string]string{"stopID": uuid.NewString()}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAssignDriverAndStart(t *testing.T) {
	actor := coordinator()
	runID := uuid.New()
	driverID := uuid.New()
	svc := &stubDeliveryService{
		assignFn: func(_ context.Context, _ types.Actor, id uuid.UUID, input internaldelivery.DriverInput) (*models.DeliveryRun, error) {
			assert.Equal(t, driverID, input.DriverID)
			assert.Equal(t, "Sipho", input.DriverName)
			return &models.DeliveryRun{ID: id, DriverID: &input.DriverID, DriverName: &input.DriverName}, nil
		},
		startFn: func(_ context.Context, _ types.Actor, id uuid.UUID) (*models.DeliveryRun, error) {
			return &models.DeliveryRun{ID: id, Status: enums.DeliveryRunStatusInProgress}, nil
		},
	}
	params := map[string]string{"runID": runID.String()}

	rec := httptest.NewRecorder()
	AssignDriver(svc, testLogger())(rec, newRequest(t, http.MethodPost, `{"driver_id":"`+driverID.String()+`","driver_name":" Sipho "}`, actor, params))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	StartRun(svc, testLogger())(rec, newRequest(t, http.MethodPost, "", actor, params))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), string(enums.DeliveryRunStatusInProgress))
}

func TestReadViews(t *testing.T) {
	actor := coordinator()
	runID := uuid.New()
	svc := &stubDeliveryService{
		viewFn: func(_ context.Context, _ types.Actor, id uuid.UUID) (*internaldelivery.DriverRunView, error) {
			return &internaldelivery.DriverRunView{RunID: id, Stops: []internaldelivery.DriverStopView{{ShopName: "Spaza 1"}}}, nil
		},
		trackingFn: func(_ context.Context, _ types.Actor, id uuid.UUID) (*internaldelivery.DeliveryTracking, error) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery run not found")
		},
	}
	params := map[string]string{"runID": runID.String()}

	rec := httptest.NewRecorder()
	DriverView(svc, testLogger())(rec, newRequest(t, http.MethodGet, "", actor, params))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Spaza 1")

	rec = httptest.NewRecorder()
	Tracking(svc, testLogger())(rec, newRequest(t, http.MethodGet, "", actor, params))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
