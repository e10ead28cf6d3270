package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Store drivers accepted by STORE_DRIVER.
const (
	DriverFile   = "file"
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"
)

type Config struct {
	Port       string        `env:"PORT,       default=3001"`
	Env        string        `env:"ENV,        default=development"`
	LogLevel   string        `env:"LOG_LEVEL,  default=info"`
	JWTSecret  string        `env:"JWT_SECRET, required"`
	TokenTTL   time.Duration `env:"TOKEN_TTL,  default=1h"`
	BcryptCost int           `env:"BCRYPT_COST, default=10"`

	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS, default=http://localhost:3000"`
	ActivityWorkers    int           `env:"ACTIVITY_WORKERS,     default=4"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT,     default=10s"`

	Store  StoreConfig
	Mongo  MongoConfig
	SQLite SQLiteConfig
	Redis  RedisConfig
}

type StoreConfig struct {
	Driver   string `env:"STORE_DRIVER, default=file"`
	DataFile string `env:"DATA_FILE,    default=db.json"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=task_manager"`
}

type SQLiteConfig struct {
	Path string `env:"SQLITE_PATH, default=tasks.db"`
}

// RedisConfig configures the idempotency store. An empty Addr disables it.
type RedisConfig struct {
	Addr           string        `env:"REDIS_ADDR"`
	Password       string        `env:"REDIS_PASSWORD"`
	DB             int           `env:"REDIS_DB,        default=0"`
	Timeout        time.Duration `env:"REDIS_TIMEOUT,   default=5s"`
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL, default=24h"`

	// IdempotencyWait bounds how long a request waits on a concurrent one
	// holding the same key.
	IdempotencyWait time.Duration `env:"IDEMPOTENCY_WAIT, default=2s"`
}

// IsDevelopment reports whether human-friendly logging should be used.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	cfg, err := LoadFrom(context.Background(), envconfig.OsLookuper())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

// LoadFrom reads configuration through l and validates it.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: l,
	}); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case DriverFile, DriverMongo, DriverSQLite:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (want file, mongo or sqlite)", c.Store.Driver)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost)
	}
	return nil
}
