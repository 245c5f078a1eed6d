package config

const EnvPrefix = "STOCKLEDGER"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Environment variable names, mirrored from the struct tags for tests and tooling.
const (
	EnvAppEnv       = "STOCKLEDGER_APP_ENV"
	EnvPort         = "STOCKLEDGER_APP_PORT"
	EnvLogLevel     = "STOCKLEDGER_LOG_LEVEL"
	EnvLogFormat    = "STOCKLEDGER_LOG_FORMAT"
	EnvLogWarnStack = "STOCKLEDGER_LOG_WARN_STACK"

	EnvDBDSN      = "STOCKLEDGER_DB_DSN"
	EnvDBDriver   = "STOCKLEDGER_DB_DRIVER"
	EnvDBHost     = "STOCKLEDGER_DB_HOST"
	EnvDBPort     = "STOCKLEDGER_DB_PORT"
	EnvDBUser     = "STOCKLEDGER_DB_USER"
	EnvDBPassword = "STOCKLEDGER_DB_PASSWORD"
	EnvDBName     = "STOCKLEDGER_DB_NAME"
	EnvDBSSLMode  = "STOCKLEDGER_DB_SSLMODE"

	EnvRedisURL = "STOCKLEDGER_REDIS_URL"

	EnvJWTSecret  = "STOCKLEDGER_JWT_SECRET"
	EnvJWTIssuer  = "STOCKLEDGER_JWT_ISSUER"
	EnvJWTExpMins = "STOCKLEDGER_JWT_EXPIRATION_MINUTES"

	EnvAutoMigrate = "STOCKLEDGER_AUTO_MIGRATE"

	EnvTenancyBaseDomain   = "STOCKLEDGER_TENANCY_BASE_DOMAIN"
	EnvTenancyHostCacheTTL = "STOCKLEDGER_TENANCY_HOST_CACHE_TTL"

	EnvOrdersNumberRetries = "STOCKLEDGER_ORDERS_NUMBER_RETRIES"

	EnvGCPProjectID         = "STOCKLEDGER_GCP_PROJECT_ID"
	EnvPubSubInventoryTopic = "STOCKLEDGER_PUBSUB_INVENTORY_TOPIC"

	EnvCronInterval = "STOCKLEDGER_CRON_INTERVAL"

	// EnvTestDBDSN points package tests at a real postgres instance.
	EnvTestDBDSN = "STOCKLEDGER_TEST_DB_DSN"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
