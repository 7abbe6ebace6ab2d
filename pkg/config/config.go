package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Orders       OrdersConfig
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
	Env          string `envconfig:"COOPMARKET_APP_ENV" required:"true"`
	Port         string `envconfig:"COOPMARKET_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"COOPMARKET_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"COOPMARKET_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"COOPMARKET_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"COOPMARKET_DB_DSN"`
	Driver string `envconfig:"COOPMARKET_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"COOPMARKET_DB_HOST"`
	Port     int    `envconfig:"COOPMARKET_DB_PORT" default:"5432"`
	User     string `envconfig:"COOPMARKET_DB_USER"`
	Password string `envconfig:"COOPMARKET_DB_PASSWORD"`
	Name     string `envconfig:"COOPMARKET_DB_NAME"`
	SSLMode  string `envconfig:"COOPMARKET_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"COOPMARKET_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"COOPMARKET_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"COOPMARKET_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"COOPMARKET_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"COOPMARKET_REDIS_URL" required:"true"`
	Address      string        `envconfig:"COOPMARKET_REDIS_ADDR"`
	Password     string        `envconfig:"COOPMARKET_REDIS_PASSWORD"`
	DB           int           `envconfig:"COOPMARKET_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"COOPMARKET_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"COOPMARKET_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"COOPMARKET_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"COOPMARKET_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"COOPMARKET_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// OrdersConfig carries the order lifecycle policy knobs.
type OrdersConfig struct {
	AutoConfirmGraceDays int `envconfig:"COOPMARKET_ORDERS_AUTO_CONFIRM_GRACE_DAYS" default:"3"`
	DelayedReminderDays  int `envconfig:"COOPMARKET_ORDERS_DELAYED_REMINDER_DAYS" default:"2"`
}

// AutoConfirmGrace returns the grace window as a duration.
func (o OrdersConfig) AutoConfirmGrace() time.Duration {
	days := o.AutoConfirmGraceDays
	if days <= 0 {
		days = 3
	}
	return time.Duration(days) * 24 * time.Hour
}

type CronConfig struct {
	Interval time.Duration `envconfig:"COOPMARKET_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"COOPMARKET_CRON_LOCK_TTL" default:"2h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"COOPMARKET_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range requiredDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
