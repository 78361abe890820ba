package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Env      string `yaml:"env"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	// StoreDriver is "postgres" or "memory".
	StoreDriver   string `yaml:"store_driver"`
	DBURL         string `yaml:"database_url"`
	DBMaxConns    int32  `yaml:"db_max_conns"`
	RunMigrations bool   `yaml:"run_migrations"`

	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`

	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`

	TracingEnabled bool   `yaml:"tracing_enabled"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`

	BcryptCost      int           `yaml:"bcrypt_cost"`
	AuthRateLimit   int           `yaml:"auth_rate_limit"`
	AuthRateWindow  time.Duration `yaml:"auth_rate_window"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	SeedStaff SeedStaff `yaml:"seed_staff"`
}

// SeedStaff is an optional staff account created on startup when absent.
type SeedStaff struct {
	Email      string `yaml:"email"`
	Password   string `yaml:"password"`
	FullName   string `yaml:"full_name"`
	Department string `yaml:"department"`
}

func defaults() Config {
	return Config{
		Env:                "dev",
		Port:               8080,
		StoreDriver:        "postgres",
		DBMaxConns:         5,
		RunMigrations:      true,
		CacheTTL:           30 * time.Second,
		CORSAllowedOrigins: []string{"*"},
		OTLPEndpoint:       "localhost:4317",
		BcryptCost:         12,
		AuthRateLimit:      10,
		AuthRateWindow:     time.Minute,
		MaxBodyBytes:       1 << 20,
		RequestTimeout:     3 * time.Second,
		ShutdownTimeout:    10 * time.Second,
		SeedStaff: SeedStaff{
			FullName:   "Platform Staff",
			Department: "Administration",
		},
	}
}

// Load reads .env (if any), then the YAML file named by CONFIG_FILE (if any),
// then environment variables, each layer overriding the previous one.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if cfg.DBURL == "" {
		cfg.DBURL = buildDBURL()
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
		if cfg.Env == "dev" {
			cfg.LogLevel = "debug"
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	var err error

	cfg.Env = getEnv("APP_ENV", cfg.Env)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.StoreDriver = getEnv("STORE_DRIVER", cfg.StoreDriver)
	cfg.DBURL = getEnv("DATABASE_URL", cfg.DBURL)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint)

	cfg.SeedStaff.Email = getEnv("SEED_STAFF_EMAIL", cfg.SeedStaff.Email)
	cfg.SeedStaff.Password = getEnv("SEED_STAFF_PASSWORD", cfg.SeedStaff.Password)
	cfg.SeedStaff.FullName = getEnv("SEED_STAFF_NAME", cfg.SeedStaff.FullName)
	cfg.SeedStaff.Department = getEnv("SEED_STAFF_DEPARTMENT", cfg.SeedStaff.Department)

	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.CORSAllowedOrigins = splitList(v)
	}

	if cfg.Port, err = getEnvInt("PORT", cfg.Port); err != nil {
		return err
	}
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", cfg.RedisDB); err != nil {
		return err
	}
	if cfg.BcryptCost, err = getEnvInt("BCRYPT_COST", cfg.BcryptCost); err != nil {
		return err
	}
	if cfg.AuthRateLimit, err = getEnvInt("AUTH_RATE_LIMIT", cfg.AuthRateLimit); err != nil {
		return err
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", int(cfg.DBMaxConns))
	if err != nil {
		return err
	}
	cfg.DBMaxConns = int32(maxConns)

	maxBody, err := getEnvInt("MAX_BODY_BYTES", int(cfg.MaxBodyBytes))
	if err != nil {
		return err
	}
	cfg.MaxBodyBytes = int64(maxBody)

	if cfg.RunMigrations, err = getEnvBool("RUN_MIGRATIONS", cfg.RunMigrations); err != nil {
		return err
	}
	if cfg.TracingEnabled, err = getEnvBool("TRACING_ENABLED", cfg.TracingEnabled); err != nil {
		return err
	}

	if cfg.CacheTTL, err = getEnvDuration("CACHE_TTL", cfg.CacheTTL); err != nil {
		return err
	}
	if cfg.AuthRateWindow, err = getEnvDuration("AUTH_RATE_WINDOW", cfg.AuthRateWindow); err != nil {
		return err
	}
	if cfg.RequestTimeout, err = getEnvDuration("REQUEST_TIMEOUT", cfg.RequestTimeout); err != nil {
		return err
	}
	if cfg.ShutdownTimeout, err = getEnvDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return err
	}

	return nil
}

func (c Config) validate() error {
	switch c.StoreDriver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("STORE_DRIVER must be postgres or memory, got %q", c.StoreDriver)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}

	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost)
	}

	if c.AuthRateLimit <= 0 || c.AuthRateWindow <= 0 {
		return fmt.Errorf("AUTH_RATE_LIMIT and AUTH_RATE_WINDOW must be positive")
	}

	if (c.SeedStaff.Email == "") != (c.SeedStaff.Password == "") {
		return fmt.Errorf("SEED_STAFF_EMAIL and SEED_STAFF_PASSWORD must be set together")
	}

	return nil
}

// IsProd reports whether the service runs in production mode.
func (c Config) IsProd() bool {
	return c.Env == "prod"
}

// buildDBURL assembles the store DSN from parts. DB_PASSWORD is the store access key.
func buildDBURL() string {
	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "younginnovators")
	pass := getEnv("DB_PASSWORD", "younginnovators")
	name := getEnv("DB_NAME", "younginnovators")
	ssl := getEnv("DB_SSLMODE", "disable")

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, pass),
		Host:     host + ":" + port,
		Path:     "/" + name,
		RawQuery: "sslmode=" + url.QueryEscape(ssl),
	}
	return u.String()
}

// WithTimeout bounds a store call; a nil parent falls back to context.Background.
func WithTimeout(parent context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}

	num, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return num, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
