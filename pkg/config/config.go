package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App       AppConfig
	Service   ServiceConfig
	DB        DBConfig
	Redis     RedisConfig
	Square    SquareConfig
	Stripe    StripeConfig
	GCP       GCPConfig
	PubSub    PubSubConfig
	Invoice   InvoiceConfig
	Reconcile ReconcileConfig
	Outbox    OutboxConfig
	Flags     FeatureFlagsConfig
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
	Env          string `envconfig:"LODGETIX_APP_ENV" required:"true"`
	Port         string `envconfig:"LODGETIX_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"LODGETIX_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LODGETIX_LOG_WARN_STACK" default:"false"`
	CORSOrigins  string `envconfig:"LODGETIX_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"LODGETIX_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"LODGETIX_DB_DSN"`
	Driver string `envconfig:"LODGETIX_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LODGETIX_DB_HOST"`
	LegacyPort     int    `envconfig:"LODGETIX_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LODGETIX_DB_USER"`
	LegacyPassword string `envconfig:"LODGETIX_DB_PASSWORD"`
	LegacyName     string `envconfig:"LODGETIX_DB_NAME"`
	LegacySSLMode  string `envconfig:"LODGETIX_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LODGETIX_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LODGETIX_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LODGETIX_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LODGETIX_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LODGETIX_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LODGETIX_REDIS_ADDR"`
	Password     string        `envconfig:"LODGETIX_REDIS_PASSWORD"`
	DB           int           `envconfig:"LODGETIX_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LODGETIX_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LODGETIX_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LODGETIX_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LODGETIX_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LODGETIX_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type SquareConfig struct {
	AccessToken string `envconfig:"LODGETIX_SQUARE_ACCESS_TOKEN"`
	Env         string `envconfig:"LODGETIX_SQUARE_ENV" default:"production"`
	LocationIDs string `envconfig:"LODGETIX_SQUARE_LOCATION_IDS"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "production"
	}
	return env
}

// Locations splits the configured comma separated location ids.
func (s SquareConfig) Locations() []string {
	raw := strings.Split(s.LocationIDs, ",")
	out := make([]string, 0, len(raw))
	for _, id := range raw {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

type StripeConfig struct {
	APIKey string `envconfig:"LODGETIX_STRIPE_API_KEY"`
	Env    string `envconfig:"LODGETIX_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type GCPConfig struct {
	ProjectID              string `envconfig:"LODGETIX_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"LODGETIX_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"LODGETIX_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	ReconcileTopic string `envconfig:"LODGETIX_PUBSUB_RECONCILE_TOPIC" default:"lt-reconcile-events"`
}

type InvoiceConfig struct {
	CustomerPrefix string `envconfig:"LODGETIX_INVOICE_CUSTOMER_PREFIX" default:"LTIV"`
	SupplierPrefix string `envconfig:"LODGETIX_INVOICE_SUPPLIER_PREFIX" default:"LTSP"`

	SupplierName     string `envconfig:"LODGETIX_INVOICE_SUPPLIER_NAME" default:"LodgeTix"`
	SupplierABN      string `envconfig:"LODGETIX_INVOICE_SUPPLIER_ABN"`
	SupplierAddress  string `envconfig:"LODGETIX_INVOICE_SUPPLIER_ADDRESS"`
	PlatformName     string `envconfig:"LODGETIX_INVOICE_PLATFORM_NAME" default:"United Grand Lodge of NSW & ACT"`
	PlatformABN      string `envconfig:"LODGETIX_INVOICE_PLATFORM_ABN"`
	DefaultCurrency  string `envconfig:"LODGETIX_INVOICE_DEFAULT_CURRENCY" default:"AUD"`
	DueDays          int    `envconfig:"LODGETIX_INVOICE_DUE_DAYS" default:"30"`
	StripeFeeRate    string `envconfig:"LODGETIX_INVOICE_STRIPE_SOFTWARE_FEE_RATE" default:"0.033"`
	SquareFeeRate    string `envconfig:"LODGETIX_INVOICE_SQUARE_SOFTWARE_FEE_RATE" default:"0.028"`
	CounterName      string `envconfig:"LODGETIX_INVOICE_COUNTER_NAME" default:"customer_invoice"`
	LedgerCounter    string `envconfig:"LODGETIX_INVOICE_LEDGER_COUNTER_NAME" default:"transaction_sequence"`
	MaxErrorMessages int    `envconfig:"LODGETIX_INVOICE_MAX_ERROR_MESSAGES" default:"10"`
}

type ReconcileConfig struct {
	BatchSize          int           `envconfig:"LODGETIX_RECONCILE_BATCH_SIZE" default:"50"`
	ImportConcurrency  int           `envconfig:"LODGETIX_RECONCILE_IMPORT_CONCURRENCY" default:"10"`
	MaxPendingChecks   int           `envconfig:"LODGETIX_RECONCILE_MAX_PENDING_CHECKS" default:"4"`
	SweepInterval      time.Duration `envconfig:"LODGETIX_RECONCILE_SWEEP_INTERVAL" default:"1h"`
	ImportLookback     time.Duration `envconfig:"LODGETIX_RECONCILE_IMPORT_LOOKBACK" default:"168h"`
	OutboxRetentionAge time.Duration `envconfig:"LODGETIX_RECONCILE_OUTBOX_RETENTION_AGE" default:"720h"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"LODGETIX_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"LODGETIX_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"LODGETIX_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"LODGETIX_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"LODGETIX_AUTO_MIGRATE" default:"false"`
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
