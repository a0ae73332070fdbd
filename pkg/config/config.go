package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Cart          CartConfig
	Coupons       CouponConfig
	Checkout      CheckoutConfig
	Media         MediaConfig
	GCP           GCPConfig
	GCS           GCSConfig
	PubSub        PubSubConfig
	Stripe        StripeConfig
	Outbox        OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TRENDORA_APP_ENV" required:"true"`
	Port         string `envconfig:"TRENDORA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TRENDORA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TRENDORA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"TRENDORA_DB_DSN"`
	Driver string `envconfig:"TRENDORA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TRENDORA_DB_HOST"`
	LegacyPort     int    `envconfig:"TRENDORA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TRENDORA_DB_USER"`
	LegacyPassword string `envconfig:"TRENDORA_DB_PASSWORD"`
	LegacyName     string `envconfig:"TRENDORA_DB_NAME"`
	LegacySSLMode  string `envconfig:"TRENDORA_DB_SSLMODE" default:"disable"`

	// UseSQLite swaps the postgres dialector for sqlite. Local-only
	// escape hatch; DSN then points at a sqlite file.
	UseSQLite bool `envconfig:"TRENDORA_USE_SQLITE" default:"false"`

	MaxOpenConns    int           `envconfig:"TRENDORA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TRENDORA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TRENDORA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TRENDORA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TRENDORA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TRENDORA_REDIS_ADDR"`
	Password     string        `envconfig:"TRENDORA_REDIS_PASSWORD"`
	DB           int           `envconfig:"TRENDORA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TRENDORA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TRENDORA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TRENDORA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TRENDORA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TRENDORA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"TRENDORA_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"TRENDORA_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"TRENDORA_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"TRENDORA_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"TRENDORA_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"TRENDORA_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"TRENDORA_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"TRENDORA_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"TRENDORA_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"TRENDORA_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"TRENDORA_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"TRENDORA_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"TRENDORA_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"TRENDORA_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"TRENDORA_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"TRENDORA_AUTO_MIGRATE" default:"false"`
}

// CartConfig tunes how cart mutations are coalesced before they commit.
type CartConfig struct {
	MutationQuietWindow time.Duration `envconfig:"TRENDORA_CART_MUTATION_QUIET_WINDOW" default:"500ms"`
	SettleTimeout       time.Duration `envconfig:"TRENDORA_CART_SETTLE_TIMEOUT" default:"10s"`
}

type CouponConfig struct {
	AppliedTTL time.Duration `envconfig:"TRENDORA_COUPON_APPLIED_TTL" default:"72h"`
}

type CheckoutConfig struct {
	Currency string `envconfig:"TRENDORA_CHECKOUT_CURRENCY" default:"usd"`
}

type MediaConfig struct {
	MaxUploadMB         int `envconfig:"TRENDORA_MAX_UPLOAD_MB" default:"20"`
	MaxImagesPerProduct int `envconfig:"TRENDORA_MEDIA_MAX_IMAGES_PER_PRODUCT" default:"8"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"TRENDORA_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"TRENDORA_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"TRENDORA_GCP_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName string `envconfig:"TRENDORA_GCS_BUCKET_NAME"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"TRENDORA_PUBSUB_ORDERS_TOPIC" default:"trendora-order-events"`
	OrdersSubscription string `envconfig:"TRENDORA_PUBSUB_ORDERS_SUBSCRIPTION"`
}

type StripeConfig struct {
	APIKey string `envconfig:"TRENDORA_STRIPE_API_KEY"`
	Secret string `envconfig:"TRENDORA_STRIPE_SECRET"`
	Env    string `envconfig:"TRENDORA_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"TRENDORA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"TRENDORA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"TRENDORA_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
