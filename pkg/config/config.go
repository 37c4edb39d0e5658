package config

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App     AppConfig
	Cart    CartConfig
	Cookie  CookieConfig
	LocalKV LocalKVConfig
	Redis   RedisConfig
	DB      DBConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Cart.validate(); err != nil {
		return nil, err
	}
	if cfg.Cart.Backend == BackendRecords {
		if err := cfg.DB.ensureDSN(); err != nil {
			return nil, err
		}
	}
	if cfg.Cart.Backend == BackendRedis && cfg.Redis.URL == "" && cfg.Redis.Address == "" {
		return nil, fmt.Errorf("%s or %s is required for the redis backend", EnvRedisURL, EnvRedisAddr)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"PACKFINDERZ_APP_ENV" required:"true"`
	Port         string   `envconfig:"PACKFINDERZ_APP_PORT" default:"8080"`
	LogLevel     string   `envconfig:"PACKFINDERZ_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"PACKFINDERZ_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"PACKFINDERZ_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// CartConfig carries the rate configuration and persistence choice for every cart store
// the process builds.
type CartConfig struct {
	Currency         string  `envconfig:"PACKFINDERZ_CART_CURRENCY" default:"USD"`
	TaxRate          float64 `envconfig:"PACKFINDERZ_CART_TAX_RATE" default:"0"`
	Shipping         float64 `envconfig:"PACKFINDERZ_CART_SHIPPING" default:"0"`
	StorageKey       string  `envconfig:"PACKFINDERZ_CART_STORAGE_KEY" default:"cart"`
	ValidateOnChange bool    `envconfig:"PACKFINDERZ_CART_VALIDATE_ON_CHANGE" default:"true"`
	Backend          string  `envconfig:"PACKFINDERZ_CART_BACKEND" default:"cookie"`

	WriteTimeout     time.Duration `envconfig:"PACKFINDERZ_CART_WRITE_TIMEOUT" default:"10s"`
	IdempotencyTTL   time.Duration `envconfig:"PACKFINDERZ_CART_IDEMPOTENCY_TTL" default:"24h"`
	MaxSnapshotBytes int           `envconfig:"PACKFINDERZ_CART_MAX_SNAPSHOT_BYTES" default:"1048576"`
}

func (c CartConfig) validate() error {
	switch c.Backend {
	case BackendCookie, BackendRedis, BackendRecords, BackendLocal, BackendMemory:
	default:
		return fmt.Errorf("%s must be one of cookie, redis, records, local, memory (got %q)", EnvCartBackend, c.Backend)
	}
	if c.TaxRate < 0 {
		return fmt.Errorf("%s must be non-negative", EnvCartTaxRate)
	}
	if c.Shipping < 0 {
		return fmt.Errorf("%s must be non-negative", EnvCartShipping)
	}
	if strings.TrimSpace(c.StorageKey) == "" {
		return fmt.Errorf("%s must not be empty", EnvCartStorageKey)
	}
	return nil
}

type CookieConfig struct {
	Path     string        `envconfig:"PACKFINDERZ_COOKIE_PATH" default:"/"`
	Domain   string        `envconfig:"PACKFINDERZ_COOKIE_DOMAIN"`
	MaxAge   time.Duration `envconfig:"PACKFINDERZ_COOKIE_MAX_AGE" default:"720h"`
	Secure   bool          `envconfig:"PACKFINDERZ_COOKIE_SECURE" default:"true"`
	HTTPOnly bool          `envconfig:"PACKFINDERZ_COOKIE_HTTP_ONLY" default:"true"`
	SameSite string        `envconfig:"PACKFINDERZ_COOKIE_SAMESITE" default:"lax"`
}

// SameSiteMode maps the configured value onto net/http; unknown values fall back to Lax.
func (c CookieConfig) SameSiteMode() http.SameSite {
	switch strings.ToLower(strings.TrimSpace(c.SameSite)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

type LocalKVConfig struct {
	Path           string        `envconfig:"PACKFINDERZ_LOCAL_KV_PATH" default:"cart.db"`
	QuotaBytes     int           `envconfig:"PACKFINDERZ_LOCAL_KV_QUOTA_BYTES" default:"5242880"`
	SessionIdleTTL time.Duration `envconfig:"PACKFINDERZ_SESSION_KV_IDLE_TTL" default:"30m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PACKFINDERZ_REDIS_URL"`
	Address      string        `envconfig:"PACKFINDERZ_REDIS_ADDR"`
	Password     string        `envconfig:"PACKFINDERZ_REDIS_PASSWORD"`
	DB           int           `envconfig:"PACKFINDERZ_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PACKFINDERZ_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PACKFINDERZ_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PACKFINDERZ_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PACKFINDERZ_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PACKFINDERZ_REDIS_WRITE_TIMEOUT" default:"5s"`
	CartTTL      time.Duration `envconfig:"PACKFINDERZ_REDIS_CART_TTL" default:"720h"`
}

type DBConfig struct {
	DSN    string `envconfig:"PACKFINDERZ_DB_DSN"`
	Driver string `envconfig:"PACKFINDERZ_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PACKFINDERZ_DB_HOST"`
	LegacyPort     int    `envconfig:"PACKFINDERZ_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PACKFINDERZ_DB_USER"`
	LegacyPassword string `envconfig:"PACKFINDERZ_DB_PASSWORD"`
	LegacyName     string `envconfig:"PACKFINDERZ_DB_NAME"`
	LegacySSLMode  string `envconfig:"PACKFINDERZ_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PACKFINDERZ_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PACKFINDERZ_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PACKFINDERZ_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PACKFINDERZ_DB_CONN_MAX_IDLE_TIME" default:"10m"`
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
