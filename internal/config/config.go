// Package config resolves the service settings from defaults, command-line
// flags, a `.env` file and environment variables (in that order of
// precedence, the environment winning). The resulting Config is never
// mutated after New returns.
package config

import (
	"flag"
	"fmt"
	"log"
	"net"
	"net/url"
	"strconv"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds the resolved settings of the service.
type Config struct {
	RunAddr             string        `env:"SERVER_ADDRESS" validate:"hostname_port"`
	LogLevel            string        `env:"LOG_LEVEL" validate:"loglevel"`
	PostgresUser        string        `env:"POSTGRES_USER"`
	PostgresPassword    string        `env:"POSTGRES_PASSWORD"`
	PostgresDB          string        `env:"POSTGRES_DB"`
	PostgresHost        string        `env:"POSTGRES_HOST"`
	PostgresPort        int           `env:"POSTGRES_PORT" validate:"gte=1,lte=65535"`
	DatabaseDSNOverride string        `env:"DATABASE_DSN"`
	DBConnectionTimeout time.Duration `env:"DB_CONNECTION_TIMEOUT"`
	DBPoolSize          int           `env:"DB_POOL_SIZE" validate:"gte=1"`
	DBMaxOverflow       int           `env:"DB_MAX_OVERFLOW" validate:"gte=0"`
	MigrationsDir       string        `env:"MIGRATIONS_DIR"`
	InMemoryStorage     bool          `env:"IN_MEMORY_STORAGE"`
}

var defaultConfig = Config{
	RunAddr:             ":8080",
	LogLevel:            "info",
	PostgresUser:        "postgres",
	PostgresPassword:    "postgres",
	PostgresDB:          "users",
	PostgresHost:        "db",
	PostgresPort:        5432,
	DatabaseDSNOverride: "",
	DBConnectionTimeout: 10 * time.Second,
	DBPoolSize:          10,
	DBMaxOverflow:       20,
	MigrationsDir:       "cmd/usersvc/migrations",
	InMemoryStorage:     false,
}

// DatabaseDSN returns the connection URI of the relational store.
// An explicit DATABASE_DSN overrides the URI derived from the
// POSTGRES_* fields.
func (c *Config) DatabaseDSN() string {
	if c.DatabaseDSNOverride != "" {
		return c.DatabaseDSNOverride
	}

	return fmt.Sprintf(
		"postgres://%s@%s/%s?sslmode=disable",
		url.UserPassword(c.PostgresUser, c.PostgresPassword).String(),
		net.JoinHostPort(c.PostgresHost, strconv.Itoa(c.PostgresPort)),
		url.PathEscape(c.PostgresDB),
	)
}

func validateLogLevel(fieldLevel validator.FieldLevel) bool {
	allowedLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}

	return allowedLogLevels[fieldLevel.Field().String()]
}

func (c *Config) validate() error {
	validate := validator.New()

	err := validate.RegisterValidation("loglevel", validateLogLevel)
	if err != nil {
		return err
	}

	return validate.Struct(c)
}

// InitOption configures the behavior of New.
type InitOption func(*initOptions)

type initOptions struct {
	disableFlagsParsing bool
}

// WithDisableFlagsParsing disables command-line flag parsing.
// Tests use it to keep `go test` flags out of the config flag set.
func WithDisableFlagsParsing(disableFlagsParsing bool) InitOption {
	return func(options *initOptions) {
		options.disableFlagsParsing = disableFlagsParsing
	}
}

// New resolves the configuration and validates it. A malformed value
// (for example a non-numeric POSTGRES_PORT) is returned as an error so
// the process fails at startup rather than lazily.
func New(optionsProto ...InitOption) (*Config, error) {
	options := &initOptions{}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	if err := godotenv.Load(); err != nil {
		log.Printf("Unable to load .env file: %v", err)
	}

	cfg := defaultConfig

	if !options.disableFlagsParsing {
		flag.StringVar(&cfg.RunAddr, "a", cfg.RunAddr, "address and port to run server")
		flag.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "logger level")
		flag.StringVar(&cfg.PostgresUser, "pg-user", cfg.PostgresUser, "postgres user")
		flag.StringVar(&cfg.PostgresPassword, "pg-password", cfg.PostgresPassword, "postgres password")
		flag.StringVar(&cfg.PostgresDB, "pg-db", cfg.PostgresDB, "postgres database name")
		flag.StringVar(&cfg.PostgresHost, "pg-host", cfg.PostgresHost, "postgres host")
		flag.IntVar(&cfg.PostgresPort, "pg-port", cfg.PostgresPort, "postgres port")
		flag.StringVar(&cfg.DatabaseDSNOverride, "d", cfg.DatabaseDSNOverride, "explicit database connection string (overrides the pg-* flags)")
		flag.StringVar(&cfg.MigrationsDir, "m", cfg.MigrationsDir, "directory with goose migrations")
		flag.BoolVar(&cfg.InMemoryStorage, "memory", cfg.InMemoryStorage, "use the in-memory storage instead of postgres")
		flag.Parse()
	}

	var valuesFromEnv Config
	if err := env.Parse(&valuesFromEnv); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	applyEnvOverrides(&cfg, &valuesFromEnv)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func applyEnvOverrides(cfg, fromEnv *Config) {
	if fromEnv.RunAddr != "" {
		cfg.RunAddr = fromEnv.RunAddr
	}

	if fromEnv.LogLevel != "" {
		cfg.LogLevel = fromEnv.LogLevel
	}

	if fromEnv.PostgresUser != "" {
		cfg.PostgresUser = fromEnv.PostgresUser
	}

	if fromEnv.PostgresPassword != "" {
		cfg.PostgresPassword = fromEnv.PostgresPassword
	}

	if fromEnv.PostgresDB != "" {
		cfg.PostgresDB = fromEnv.PostgresDB
	}

	if fromEnv.PostgresHost != "" {
		cfg.PostgresHost = fromEnv.PostgresHost
	}

	if fromEnv.PostgresPort != 0 {
		cfg.PostgresPort = fromEnv.PostgresPort
	}

	if fromEnv.DatabaseDSNOverride != "" {
		cfg.DatabaseDSNOverride = fromEnv.DatabaseDSNOverride
	}

	if fromEnv.DBConnectionTimeout != 0 {
		cfg.DBConnectionTimeout = fromEnv.DBConnectionTimeout
	}

	if fromEnv.DBPoolSize != 0 {
		cfg.DBPoolSize = fromEnv.DBPoolSize
	}

	if fromEnv.DBMaxOverflow != 0 {
		cfg.DBMaxOverflow = fromEnv.DBMaxOverflow
	}

	if fromEnv.MigrationsDir != "" {
		cfg.MigrationsDir = fromEnv.MigrationsDir
	}

	if fromEnv.InMemoryStorage {
		cfg.InMemoryStorage = true
	}
}
