package delivery

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/groupbuy-backend/internal/directory"
	"github.com/angelmondragon/groupbuy-backend/internal/sequence"
	"github.com/angelmondragon/groupbuy-backend/pkg/db"
	"github.com/angelmondragon/groupbuy-backend/pkg/db/dbtest"
	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
	"github.com/angelmondragon/groupbuy-backend/pkg/locks"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
	"github.com/angelmondragon/groupbuy-backend/pkg/money"
	"github.com/angelmondragon/groupbuy-backend/pkg/outbox"
	"github.com/angelmondragon/groupbuy-backend/pkg/types"
)

var now = time.Date(2026, 2, 20, 7, 30, 0, 0, time.UTC)

type fixture struct {
	svc         *Service
	client      *db.Client
	dir         dbtest.Directory
	coordinator types.Actor
}

func newFixture(t *testing.T, shops int) *fixture {
	t.Helper()
	client := dbtest.Open(t)
	conn := client.DB()
	seq, err := sequence.NewDBSequencer(conn)
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		DB:         client,
		Repository: NewRepository(conn),
		Directory:  directory.NewRepository(conn),
		Sequencer:  seq,
		Outbox:     outbox.NewService(outbox.NewRepository(conn), nil),
		Locker:     locks.NewKeyedMutex(),
		Logger:     logger.New(logger.Options{ServiceName: "delivery-test", Output: io.Discard}),
		Now:        func() time.Time { return now },
	})
	require.NoError(t, err)
	dir := dbtest.SeedDirectory(t, client, "tembisa", shops)
	return &fixture{
		svc:         svc,
		client:      client,
		dir:         dir,
		coordinator: types.Actor{TenantID: dir.TenantID, UserID: uuid.New(), Role: enums.ActorRoleCoordinator},
	}
}

func (f *fixture) stops(n int) []StopInput {
	out := make([]StopInput, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, StopInput{ShopID: f.dir.Shops[i]})
	}
	return out
}

func (f *fixture) createRun(t *testing.T, n int, cost string) *models.DeliveryRun {
	t.Helper()
	run, err := f.svc.CreateRun(context.Background(), f.coordinator, CreateRunInput{
		ScheduledDate:     now.Add(24 * time.Hour),
		TotalDeliveryCost: decimal.RequireFromString(cost),
		Stops:             f.stops(n),
	})
	require.NoError(t, err)
	return run
}

func (f *fixture) events(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.client.DB().Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&count).Error)
	return count
}

func TestCreateRunSplitsCostEqually(t *testing.T) {
	f := newFixture(t, 4)
	run := f.createRun(t, 4, "400")

	assert.Equal(t, "DR-20260220-0001", run.RunNumber)
	assert.Equal(t, enums.DeliveryRunStatusScheduled, run.Status)
	assert.Equal(t, 4, run.ParticipantCount)
	assert.Equal(t, "100.00", run.CostPerStop.StringFixed(2))

	tracking, err := f.svc.GetDeliveryTracking(context.Background(), f.coordinator, run.ID)
	require.NoError(t, err)
	require.Len(t, tracking.Stops, 4)
	for i, stop := range tracking.Stops {
		assert.Equal(t, i+1, stop.SequenceNumber)
		assert.Equal(t, f.dir.Shops[i], stop.ShopID)
		assert.Equal(t, "100.00", stop.CostShare.StringFixed(2))
		assert.False(t, stop.HasProof)
	}
	assert.Equal(t, int64(1), f.events(t, enums.EventDeliveryRunCreated))
}

func TestCreateRunRemainderOnLastStop(t *testing.T) {
	f := newFixture(t, 3)
	run := f.createRun(t, 3, "100")

	shares := make([]decimal.Decimal, 0, 3)
	for _, stop := range run.Stops {
		shares = append(shares, stop.CostShare)
	}
	assert.Equal(t, "33.33", run.CostPerStop.StringFixed(2))
	assert.Equal(t, "33.33", shares[0].StringFixed(2))
	assert.Equal(t, "33.34", shares[2].StringFixed(2))
	assert.True(t, money.Sum(shares...).Equal(decimal.NewFromInt(100)))
}

func TestCreateRunRejectsInvalidInput(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	base := CreateRunInput{ScheduledDate: now, TotalDeliveryCost: decimal.NewFromInt(50)}

	_, err := f.svc.CreateRun(ctx, f.coordinator, base)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Equal(t, map[string]any{"reason": ReasonEmptyRun}, typed.Details())

	dup := base
	dup.Stops = []StopInput{{ShopID: f.dir.Shops[0]}, {ShopID: f.dir.Shops[0]}}
	_, err = f.svc.CreateRun(ctx, f.coordinator, dup)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	unknown := base
	unknown.Stops = []StopInput{{ShopID: uuid.New()}}
	_, err = f.svc.CreateRun(ctx, f.coordinator, unknown)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	shopActor := types.Actor{TenantID: f.dir.TenantID, ShopID: f.dir.Shops[0], Role: enums.ActorRoleShopOwner}
	withStops := base
	withStops.Stops = f.stops(1)
	_, err = f.svc.CreateRun(ctx, shopActor, withStops)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestCreateRunFromConfirmedPool(t *testing.T) {
	f := newFixture(t, 3)
	conn := f.client.DB()
	pool := models.Pool{
		ID:                     uuid.New(),
		PoolNumber:             "GB-20260218-0001",
		TenantID:               f.dir.TenantID,
		ProductID:              f.dir.ProductID,
		SupplierID:             f.dir.SupplierID,
		InitiatorShopID:        f.dir.Shops[0],
		MinimumQuantity:        10,
		UnitPrice:              decimal.NewFromInt(10),
		BulkDiscountPercentage: decimal.NewFromInt(10),
		FinalUnitPrice:         decimal.NewFromInt(9),
		CurrentQuantity:        20,
		OpenDate:               now.Add(-72 * time.Hour),
		CloseDate:              now.Add(-time.Hour),
		EstimatedShippingCost:  decimal.NewFromInt(90),
		AreaGroup:              "tembisa",
		Status:                 enums.PoolStatusConfirmed,
		Version:                3,
	}
	require.NoError(t, conn.Create(&pool).Error)
	// second shop joined first; third shop withdrew before confirmation
	joined := []struct {
		shop      uuid.UUID
		at        time.Time
		confirmed bool
		withdrawn bool
	}{
		{f.dir.Shops[1], now.Add(-60 * time.Hour), true, false},
		{f.dir.Shops[0], now.Add(-50 * time.Hour), true, false},
		{f.dir.Shops[2], now.Add(-40 * time.Hour), false, true},
	}
	for _, j := range joined {
		p := models.PoolParticipation{
			ID: uuid.New(), PoolID: pool.ID, TenantID: pool.TenantID, ShopID: j.shop,
			QuantityCommitted: 10, UnitPrice: pool.FinalUnitPrice, Subtotal: decimal.NewFromInt(90),
			ShippingShare: decimal.NewFromInt(45), Total: decimal.NewFromInt(135),
			IsConfirmed: j.confirmed, JoinedAt: j.at,
		}
		if j.withdrawn {
			at := j.at.Add(time.Hour)
			p.WithdrawnAt = &at
		}
		require.NoError(t, conn.Create(&p).Error)
	}

	poolID := pool.ID
	input := CreateRunInput{PoolID: &poolID, ScheduledDate: now.Add(48 * time.Hour), TotalDeliveryCost: decimal.NewFromInt(120)}
	run, err := f.svc.CreateRun(context.Background(), f.coordinator, input)
	require.NoError(t, err)
	require.Len(t, run.Stops, 2)
	assert.Equal(t, f.dir.Shops[1], run.Stops[0].ShopID)
	assert.Equal(t, f.dir.Shops[0], run.Stops[1].ShopID)
	assert.Equal(t, "Spaza 2, tembisa", run.Stops[0].Address)
	assert.Equal(t, "60.00", run.CostPerStop.StringFixed(2))

	_, err = f.svc.CreateRun(context.Background(), f.coordinator, input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestCreateRunFromOpenPoolFails(t *testing.T) {
	f := newFixture(t, 1)
	pool := models.Pool{
		ID: uuid.New(), PoolNumber: "GB-20260218-0009", TenantID: f.dir.TenantID,
		ProductID: f.dir.ProductID, SupplierID: f.dir.SupplierID, InitiatorShopID: f.dir.Shops[0],
		MinimumQuantity: 10, UnitPrice: decimal.NewFromInt(10), BulkDiscountPercentage: decimal.NewFromInt(10),
		FinalUnitPrice: decimal.NewFromInt(9), OpenDate: now, CloseDate: now.Add(time.Hour),
		EstimatedShippingCost: decimal.Zero, AreaGroup: "tembisa", Status: enums.PoolStatusOpen, Version: 1,
	}
	require.NoError(t, f.client.DB().Create(&pool).Error)
	_, err := f.svc.CreateRun(context.Background(), f.coordinator, CreateRunInput{
		PoolID: &pool.ID, ScheduledDate: now, TotalDeliveryCost: decimal.NewFromInt(10),
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidState))
}

func TestStopLifecycleCompletesRun(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	run := f.createRun(t, 2, "80")
	driverID := uuid.New()
	driver := types.Actor{TenantID: f.dir.TenantID, UserID: driverID, Role: enums.ActorRoleDriver}

	_, err := f.svc.RecordArrival(ctx, driver, run.Stops[0].ID, time.Time{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	assigned, err := f.svc.AssignDriver(ctx, f.coordinator, run.ID, DriverInput{DriverID: driverID, DriverName: "Thabo", VehicleRef: "GP 123-456"})
	require.NoError(t, err)
	require.NotNil(t, assigned.DriverName)
	assert.Equal(t, "Thabo", *assigned.DriverName)

	arrived, err := f.svc.RecordArrival(ctx, driver, run.Stops[0].ID, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, enums.DeliveryStopStatusArrived, arrived.Status)

	_, err = f.svc.RecordArrival(ctx, driver, run.Stops[0].ID, now.Add(time.Hour))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidState))

	completed, err := f.svc.RecordCompletion(ctx, driver, run.Stops[0].ID, now.Add(90*time.Minute), &ProofInput{
		Kind: enums.ProofKindSignature, Reference: "sig-001", SignedBy: "Mrs Dlamini",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.DeliveryStopStatusCompleted, completed.Status)

	_, err = f.svc.RecordCompletion(ctx, driver, run.Stops[0].ID, time.Time{}, nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidState))

	tracking, err := f.svc.GetDeliveryTracking(ctx, f.coordinator, run.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.DeliveryRunStatusInProgress, tracking.Status)
	assert.True(t, tracking.Stops[0].HasProof)
	assert.Equal(t, 1, tracking.Stops[0].ProofCount)

	_, err = f.svc.FailStop(ctx, driver, run.Stops[1].ID, "shop closed")
	require.NoError(t, err)

	tracking, err = f.svc.GetDeliveryTracking(ctx, f.coordinator, run.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.DeliveryRunStatusCompleted, tracking.Status)
	assert.Equal(t, 1, tracking.CompletedStops)
	assert.Equal(t, 1, tracking.FailedStops)
	assert.NotNil(t, tracking.CompletedAt)
	assert.Equal(t, int64(1), f.events(t, enums.EventDeliveryStopCompleted))
	assert.Equal(t, int64(1), f.events(t, enums.EventDeliveryRunCompleted))

	_, err = f.svc.RecordArrival(ctx, f.coordinator, run.Stops[1].ID, time.Time{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidState))
}

func TestStartRunOnlyFromScheduled(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	run := f.createRun(t, 1, "10")

	started, err := f.svc.StartRun(ctx, f.coordinator, run.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.DeliveryRunStatusInProgress, started.Status)
	assert.NotNil(t, started.StartedAt)

	_, err = f.svc.StartRun(ctx, f.coordinator, run.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidState))

	_, err = f.svc.StartRun(ctx, f.coordinator, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestDriverRunViewListsStopsInOrder(t *testing.T) {
	f := newFixture(t, 3)
	run := f.createRun(t, 3, "90")

	view, err := f.svc.GetDriverRunView(context.Background(), f.coordinator, run.ID)
	require.NoError(t, err)
	require.Len(t, view.Stops, 3)
	assert.Equal(t, "Spaza 1", view.Stops[0].ShopName)
	assert.Equal(t, "Spaza 3", view.Stops[2].ShopName)
	assert.Equal(t, 3, view.Stops[2].SequenceNumber)

	stranger := types.Actor{TenantID: uuid.New(), Role: enums.ActorRoleCoordinator}
	_, err = f.svc.GetDriverRunView(context.Background(), stranger, run.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestCompletionRejectsUnknownProofKind(t *testing.T) {
	f := newFixture(t, 1)
	run := f.createRun(t, 1, "10")
	_, err := f.svc.RecordCompletion(context.Background(), f.coordinator, run.Stops[0].ID, time.Time{}, &ProofInput{Kind: "hologram"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
