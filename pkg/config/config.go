package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Billing      BillingConfig
	Cron         CronConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"RENTSTACK_APP_ENV" required:"true"`
	Port         string `envconfig:"RENTSTACK_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"RENTSTACK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"RENTSTACK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"RENTSTACK_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN string `envconfig:"RENTSTACK_DB_DSN"`

	Host     string `envconfig:"RENTSTACK_DB_HOST"`
	Port     int    `envconfig:"RENTSTACK_DB_PORT" default:"5432"`
	User     string `envconfig:"RENTSTACK_DB_USER"`
	Password string `envconfig:"RENTSTACK_DB_PASSWORD"`
	Name     string `envconfig:"RENTSTACK_DB_NAME"`
	SSLMode  string `envconfig:"RENTSTACK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"RENTSTACK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"RENTSTACK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"RENTSTACK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"RENTSTACK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("either RENTSTACK_DB_DSN or host/user/name settings are required")
	}
	d.DSN = fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"RENTSTACK_REDIS_URL"`
	Address      string        `envconfig:"RENTSTACK_REDIS_ADDR"`
	Password     string        `envconfig:"RENTSTACK_REDIS_PASSWORD"`
	DB           int           `envconfig:"RENTSTACK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"RENTSTACK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"RENTSTACK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"RENTSTACK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"RENTSTACK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"RENTSTACK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"RENTSTACK_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"RENTSTACK_JWT_ISSUER" default:"rentstack"`
	ExpirationMinutes int    `envconfig:"RENTSTACK_JWT_EXPIRATION_MINUTES" default:"60"`
}

// AccessTokenTTL returns the access token TTL configured in minutes.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type BillingConfig struct {
	// ReminderLeadDays controls how many days before the due date the
	// reminder job fires.
	ReminderLeadDays int `envconfig:"RENTSTACK_BILLING_REMINDER_LEAD_DAYS" default:"3"`
	// DueDayCap avoids invalid due dates in short months.
	DueDayCap int `envconfig:"RENTSTACK_BILLING_DUE_DAY_CAP" default:"28"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"RENTSTACK_CRON_INTERVAL" default:"24h"`
	LockTTL  time.Duration `envconfig:"RENTSTACK_CRON_LOCK_TTL" default:"25h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"RENTSTACK_FEATURE_AUTO_MIGRATE" default:"false"`
}
