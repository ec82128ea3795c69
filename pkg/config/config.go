package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the envconfig prefix shared by every binary.
const EnvPrefix = "FIELDSYNC"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App      AppConfig
	DB       DBConfig
	Crypto   CryptoConfig
	Sync     SyncConfig
	Delivery DeliveryConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Crypto.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FIELDSYNC_APP_ENV" default:"dev"`
	LogLevel     string `envconfig:"FIELDSYNC_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FIELDSYNC_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	// Path is the on-device sqlite file. ":memory:" is accepted for tests.
	Path            string        `envconfig:"FIELDSYNC_DB_PATH" default:"fieldsync.db"`
	BusyTimeout     time.Duration `envconfig:"FIELDSYNC_DB_BUSY_TIMEOUT" default:"5s"`
	MaxOpenConns    int           `envconfig:"FIELDSYNC_DB_MAX_OPEN_CONNS" default:"1"`
	ConnMaxLifetime time.Duration `envconfig:"FIELDSYNC_DB_CONN_MAX_LIFETIME" default:"1h"`
}

type CryptoConfig struct {
	// KDFIterations is the PBKDF2-SHA256 work factor. Deliberately slow.
	KDFIterations int    `envconfig:"FIELDSYNC_KDF_ITERATIONS" default:"310000"`
	KDFSalt       string `envconfig:"FIELDSYNC_KDF_SALT" default:"fieldsync-device-store-v1"`
	KeyLen        int    `envconfig:"FIELDSYNC_KDF_KEY_LEN" default:"32"`
}

func (c CryptoConfig) validate() error {
	if c.KDFIterations < 1 {
		return fmt.Errorf("kdf iterations must be positive")
	}
	if c.KeyLen != 32 {
		return fmt.Errorf("key length must be 32 bytes for the configured AEAD")
	}
	if strings.TrimSpace(c.KDFSalt) == "" {
		return fmt.Errorf("kdf salt is required")
	}
	return nil
}

type SyncConfig struct {
	EndpointURL    string        `envconfig:"FIELDSYNC_SYNC_ENDPOINT_URL"`
	Credential     string        `envconfig:"FIELDSYNC_SYNC_CREDENTIAL"`
	BatchSize      int           `envconfig:"FIELDSYNC_SYNC_BATCH_SIZE" default:"50"`
	PollInterval   time.Duration `envconfig:"FIELDSYNC_SYNC_POLL_INTERVAL" default:"30s"`
	MaxBackoff     time.Duration `envconfig:"FIELDSYNC_SYNC_MAX_BACKOFF" default:"5m"`
	RequestTimeout time.Duration `envconfig:"FIELDSYNC_SYNC_REQUEST_TIMEOUT" default:"15s"`
}

type DeliveryConfig struct {
	FacilityRadiusMeters float64 `envconfig:"FIELDSYNC_FACILITY_RADIUS_METERS" default:"100"`
}
