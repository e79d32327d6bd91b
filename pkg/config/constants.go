package config

const (
	EnvPrefix = "GROUPBUY"

	AppEnvDev = "dev"

	EnvAppEnv = "GROUPBUY_APP_ENV"
	EnvPort   = "GROUPBUY_APP_PORT"

	EnvDBDSN  = "GROUPBUY_DB_DSN"
	EnvDBHost = "GROUPBUY_DB_HOST"
	EnvDBUser = "GROUPBUY_DB_USER"
	EnvDBName = "GROUPBUY_DB_NAME"

	EnvRedisURL = "GROUPBUY_REDIS_URL"

	EnvJWTSecret  = "GROUPBUY_JWT_SECRET"
	EnvJWTIssuer  = "GROUPBUY_JWT_ISSUER"
	EnvJWTExpMins = "GROUPBUY_JWT_EXPIRATION_MINUTES"

	EnvTaxRate       = "GROUPBUY_TAX_RATE"
	EnvRetryAttempts = "GROUPBUY_RETRY_ATTEMPTS"

	DefaultTaxRate = "0.15"

	DBDriverSQLite   = "sqlite"
	DefaultSQLiteDSN = "file:groupbuy.db?_foreign_keys=on"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
