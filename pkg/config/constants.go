package config

// EnvPrefix is passed to envconfig; every field carries its full key so the prefix only
// matters for fields without an explicit tag.
const EnvPrefix = "PACKFINDERZ"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	BackendCookie  = "cookie"
	BackendRedis   = "redis"
	BackendRecords = "records"
	BackendLocal   = "local"
	BackendMemory  = "memory"
)

const (
	EnvAppEnv = "PACKFINDERZ_APP_ENV"
	EnvPort   = "PACKFINDERZ_APP_PORT"

	EnvCartCurrency   = "PACKFINDERZ_CART_CURRENCY"
	EnvCartTaxRate    = "PACKFINDERZ_CART_TAX_RATE"
	EnvCartShipping   = "PACKFINDERZ_CART_SHIPPING"
	EnvCartStorageKey = "PACKFINDERZ_CART_STORAGE_KEY"
	EnvCartBackend    = "PACKFINDERZ_CART_BACKEND"

	EnvRedisURL  = "PACKFINDERZ_REDIS_URL"
	EnvRedisAddr = "PACKFINDERZ_REDIS_ADDR"

	EnvDBDSN    = "PACKFINDERZ_DB_DSN"
	EnvDBDriver = "PACKFINDERZ_DB_DRIVER"
	EnvDBHost   = "PACKFINDERZ_DB_HOST"
	EnvDBUser   = "PACKFINDERZ_DB_USER"
	EnvDBName   = "PACKFINDERZ_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
