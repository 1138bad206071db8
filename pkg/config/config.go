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
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Settlement   SettlementConfig
	Donations    DonationsConfig
	GiftCards    GiftCardsConfig
	Transparency TransparencyConfig
	Web          WebConfig
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
	Env          string `envconfig:"WISHBEE_APP_ENV" required:"true"`
	Port         string `envconfig:"WISHBEE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"WISHBEE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"WISHBEE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"WISHBEE_DB_DSN"`
	Driver string `envconfig:"WISHBEE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"WISHBEE_DB_HOST"`
	LegacyPort     int    `envconfig:"WISHBEE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"WISHBEE_DB_USER"`
	LegacyPassword string `envconfig:"WISHBEE_DB_PASSWORD"`
	LegacyName     string `envconfig:"WISHBEE_DB_NAME"`
	LegacySSLMode  string `envconfig:"WISHBEE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"WISHBEE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"WISHBEE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"WISHBEE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"WISHBEE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"WISHBEE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"WISHBEE_REDIS_ADDR"`
	Password     string        `envconfig:"WISHBEE_REDIS_PASSWORD"`
	DB           int           `envconfig:"WISHBEE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"WISHBEE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"WISHBEE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"WISHBEE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"WISHBEE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"WISHBEE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"WISHBEE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"WISHBEE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"WISHBEE_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"WISHBEE_AUTO_MIGRATE" default:"false"`
}

// SettlementConfig carries the numeric policy around balance settlement.
// Every threshold lives here rather than in code so product can tune it.
type SettlementConfig struct {
	MinCardBalance      decimal.Decimal `envconfig:"WISHBEE_SETTLEMENT_MIN_CARD_BALANCE" default:"1.00"`
	ExternalCallTimeout time.Duration   `envconfig:"WISHBEE_SETTLEMENT_CALL_TIMEOUT" default:"30s"`
	SessionTTL          time.Duration   `envconfig:"WISHBEE_SETTLEMENT_SESSION_TTL" default:"30m"`
}

type DonationsConfig struct {
	ProcessorBaseURL string          `envconfig:"WISHBEE_DONATION_PROCESSOR_BASE_URL" required:"true"`
	FeePercent       decimal.Decimal `envconfig:"WISHBEE_DONATION_FEE_PERCENT" default:"0.029"`
	FeeFlat          decimal.Decimal `envconfig:"WISHBEE_DONATION_FEE_FLAT" default:"0.30"`
}

type GiftCardsConfig struct {
	IssuerBaseURL string `envconfig:"WISHBEE_GIFTCARD_ISSUER_BASE_URL" required:"true"`
}

type TransparencyConfig struct {
	EmailBaseURL string        `envconfig:"WISHBEE_TRANSPARENCY_EMAIL_BASE_URL"`
	SendTimeout  time.Duration `envconfig:"WISHBEE_TRANSPARENCY_SEND_TIMEOUT" default:"10s"`
}

type WebConfig struct {
	// PublicBaseURL is the origin used to compose user-facing receipt links.
	PublicBaseURL string `envconfig:"WISHBEE_PUBLIC_BASE_URL" default:"https://wishbee.ai"`
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
