package bootstrap

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/groupbuy-backend/internal/delivery"
	"github.com/angelmondragon/groupbuy-backend/internal/directory"
	"github.com/angelmondragon/groupbuy-backend/internal/discovery"
	"github.com/angelmondragon/groupbuy-backend/internal/ledger"
	"github.com/angelmondragon/groupbuy-backend/internal/pools"
	"github.com/angelmondragon/groupbuy-backend/internal/sequence"
	"github.com/angelmondragon/groupbuy-backend/internal/settlement"
	"github.com/angelmondragon/groupbuy-backend/pkg/config"
	"github.com/angelmondragon/groupbuy-backend/pkg/db"
	"github.com/angelmondragon/groupbuy-backend/pkg/locks"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
	"github.com/angelmondragon/groupbuy-backend/pkg/metrics"
	"github.com/angelmondragon/groupbuy-backend/pkg/outbox"
	"github.com/angelmondragon/groupbuy-backend/pkg/redis"
)

// Engine is the assembled group-buying core shared by the binaries.
type Engine struct {
	Pools     *pools.Service
	Delivery  *delivery.Service
	Discovery *discovery.Service
	Outbox    *outbox.Repository
}

// Params carries the process-level clients. Redis may be nil when neither
// distributed locks nor redis sequences are enabled.
type Params struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       *db.Client
	Redis    *redis.Client
	Registry prometheus.Registerer
}

// Build wires every service over one database handle.
func Build(p Params) (*Engine, error) {
	if p.Config == nil || p.Logger == nil || p.DB == nil {
		return nil, fmt.Errorf("config, logger and db are required")
	}
	cfg := p.Config
	conn := p.DB.DB()

	locker, err := newLocker(p)
	if err != nil {
		return nil, err
	}
	sequencer, err := newSequencer(p)
	if err != nil {
		return nil, err
	}

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn), conn)
	if err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	settler, err := settlement.NewService(settlement.NewRepository(conn), sequencer, settlement.Config{
		TaxRate:  cfg.GroupBuy.Tax(),
		LeadTime: cfg.GroupBuy.DeliveryLeadTime,
	})
	if err != nil {
		return nil, fmt.Errorf("settlement: %w", err)
	}

	dir := directory.NewRepository(conn)
	outboxRepo := outbox.NewRepository(conn)
	emitter := outbox.NewService(outboxRepo, p.Logger)
	poolMetrics := metrics.NewPoolMetrics(p.Registry)

	poolSvc, err := pools.NewService(pools.ServiceParams{
		DB:         p.DB,
		Repository: pools.NewRepository(conn),
		Ledger:     ledgerSvc,
		Settler:    settler,
		Directory:  dir,
		Sequencer:  sequencer,
		Outbox:     emitter,
		Locker:     locker,
		Metrics:    poolMetrics,
		Logger:     p.Logger,
		Retry: pools.RetryPolicy{
			Attempts:  cfg.GroupBuy.RetryAttempts,
			BaseDelay: cfg.GroupBuy.RetryBaseDelay,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("pools: %w", err)
	}

	deliverySvc, err := delivery.NewService(delivery.ServiceParams{
		DB:         p.DB,
		Repository: delivery.NewRepository(conn),
		Directory:  dir,
		Sequencer:  sequencer,
		Outbox:     emitter,
		Locker:     locker,
		Metrics:    poolMetrics,
		Logger:     p.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("delivery: %w", err)
	}

	discoveryParams := discovery.ServiceParams{
		Repository: discovery.NewRepository(conn),
		Directory:  dir,
		Logger:     p.Logger,
	}
	if cfg.FeatureFlags.NearbyDistance {
		distance, err := discovery.NewInitiatorDistance(dir)
		if err != nil {
			return nil, fmt.Errorf("nearby distance: %w", err)
		}
		discoveryParams.Distance = distance
	}
	discoverySvc, err := discovery.NewService(discoveryParams)
	if err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}

	return &Engine{
		Pools:     poolSvc,
		Delivery:  deliverySvc,
		Discovery: discoverySvc,
		Outbox:    outboxRepo,
	}, nil
}

// newLocker always serializes in-process; the redis lock is layered on top
// when several API replicas share the database.
func newLocker(p Params) (locks.Locker, error) {
	local := locks.NewKeyedMutex()
	if !p.Config.FeatureFlags.DistributedLocks {
		return local, nil
	}
	if p.Redis == nil {
		return nil, fmt.Errorf("distributed locks require redis")
	}
	remote, err := locks.NewRedisLocker(p.Redis, p.Config.GroupBuy.LockTTL, p.Config.GroupBuy.LockWait, p.Logger)
	if err != nil {
		return nil, fmt.Errorf("redis locker: %w", err)
	}
	return locks.Chain{local, remote}, nil
}

func newSequencer(p Params) (sequence.Sequencer, error) {
	if p.Config.FeatureFlags.RedisSequences {
		if p.Redis == nil {
			return nil, fmt.Errorf("redis sequences require redis")
		}
		return sequence.NewRedisSequencer(p.Redis)
	}
	return sequence.NewDBSequencer(p.DB.DB())
}
