package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	HTTP         HTTPConfig
	FeatureFlags FeatureFlagsConfig
	GroupBuy     GroupBuyConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.useSQLite()
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.GroupBuy.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"GROUPBUY_APP_ENV" required:"true"`
	Port         string `envconfig:"GROUPBUY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"GROUPBUY_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"GROUPBUY_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"GROUPBUY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

type ServiceConfig struct {
	Kind string `envconfig:"GROUPBUY_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"GROUPBUY_DB_DSN"`
	Driver string `envconfig:"GROUPBUY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"GROUPBUY_DB_HOST"`
	LegacyPort     int    `envconfig:"GROUPBUY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"GROUPBUY_DB_USER"`
	LegacyPassword string `envconfig:"GROUPBUY_DB_PASSWORD"`
	LegacyName     string `envconfig:"GROUPBUY_DB_NAME"`
	LegacySSLMode  string `envconfig:"GROUPBUY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GROUPBUY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GROUPBUY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GROUPBUY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GROUPBUY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// SlowQuery is the duration past which statements are logged at warn.
	SlowQuery time.Duration `envconfig:"GROUPBUY_DB_SLOW_QUERY" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"GROUPBUY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"GROUPBUY_REDIS_ADDR"`
	Password     string        `envconfig:"GROUPBUY_REDIS_PASSWORD"`
	DB           int           `envconfig:"GROUPBUY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GROUPBUY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GROUPBUY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GROUPBUY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GROUPBUY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GROUPBUY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"GROUPBUY_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"GROUPBUY_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"GROUPBUY_JWT_EXPIRATION_MINUTES" required:"true"`
}

// HTTPConfig shapes the public API surface.
type HTTPConfig struct {
	CORSOrigins     []string      `envconfig:"GROUPBUY_CORS_ORIGINS" default:"http://localhost:3000"`
	RateLimit       int           `envconfig:"GROUPBUY_RATE_LIMIT" default:"120"`
	RateLimitWindow time.Duration `envconfig:"GROUPBUY_RATE_LIMIT_WINDOW" default:"1m"`
}

type FeatureFlagsConfig struct {
	UseSQLite        bool `envconfig:"GROUPBUY_USE_SQLITE" default:"false"`
	AutoMigrate      bool `envconfig:"GROUPBUY_AUTO_MIGRATE" default:"false"`
	DistributedLocks bool `envconfig:"GROUPBUY_DISTRIBUTED_LOCKS" default:"true"`
	RedisSequences   bool `envconfig:"GROUPBUY_REDIS_SEQUENCES" default:"false"`
	NearbyDistance   bool `envconfig:"GROUPBUY_NEARBY_DISTANCE" default:"false"`
}

// GroupBuyConfig holds the pool and delivery tunables.
type GroupBuyConfig struct {
	TaxRate             string        `envconfig:"GROUPBUY_TAX_RATE" default:"0.15"`
	DeliveryLeadTime    time.Duration `envconfig:"GROUPBUY_DELIVERY_LEAD_TIME" default:"168h"`
	RetryAttempts       int           `envconfig:"GROUPBUY_RETRY_ATTEMPTS" default:"3"`
	RetryBaseDelay      time.Duration `envconfig:"GROUPBUY_RETRY_BASE_DELAY" default:"25ms"`
	LockTTL             time.Duration `envconfig:"GROUPBUY_LOCK_TTL" default:"30s"`
	LockWait            time.Duration `envconfig:"GROUPBUY_LOCK_WAIT" default:"5s"`
	ExpirySweepInterval time.Duration `envconfig:"GROUPBUY_EXPIRY_SWEEP_INTERVAL" default:"5m"`
}

// Tax returns the configured tax rate as a decimal fraction.
func (g GroupBuyConfig) Tax() decimal.Decimal {
	rate, err := decimal.NewFromString(strings.TrimSpace(g.TaxRate))
	if err != nil {
		return decimal.RequireFromString(DefaultTaxRate)
	}
	return rate
}

func (g GroupBuyConfig) validate() error {
	rate, err := decimal.NewFromString(strings.TrimSpace(g.TaxRate))
	if err != nil {
		return fmt.Errorf("%s must be a decimal fraction: %w", EnvTaxRate, err)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%s must be within [0, 1)", EnvTaxRate)
	}
	if g.RetryAttempts <= 0 {
		return fmt.Errorf("%s must be positive", EnvRetryAttempts)
	}
	return nil
}

type GCPConfig struct {
	ProjectID string `envconfig:"GROUPBUY_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	PoolsTopic        string `envconfig:"GROUPBUY_PUBSUB_POOLS_TOPIC" default:"gb-pool-events"`
	DeliveryTopic     string `envconfig:"GROUPBUY_PUBSUB_DELIVERY_TOPIC" default:"gb-delivery-events"`
	NotificationTopic string `envconfig:"GROUPBUY_PUBSUB_NOTIFICATION_TOPIC" default:"gb-notification-events"`
	// CreateMissingTopics creates absent topics at startup. Meant for the
	// emulator and dev projects.
	CreateMissingTopics bool `envconfig:"GROUPBUY_PUBSUB_CREATE_TOPICS" default:"false"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"GROUPBUY_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"GROUPBUY_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"GROUPBUY_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"GROUPBUY_OUTBOX_RETENTION" default:"720h"`
}

// useSQLite switches the connection to a local sqlite file for dev runs.
func (db *DBConfig) useSQLite() {
	db.Driver = DBDriverSQLite
	if db.DSN == "" || strings.HasPrefix(db.DSN, "postgres") {
		db.DSN = DefaultSQLiteDSN
	}
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
