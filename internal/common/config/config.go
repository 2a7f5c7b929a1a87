package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AlibekovAA/session-auth/internal/common/constants"
)

var (
	ErrMissingRequiredEnv = errors.New("missing required environment variable")
	ErrInvalidConfig      = errors.New("invalid configuration")
)

const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

type AuthConfig struct {
	HTTPPort       string        `yaml:"http_port" validate:"required,numeric"`
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"required"`
	CookieSecure   bool          `yaml:"cookie_secure"`

	AccountBackend string `yaml:"account_backend" validate:"oneof=postgres memory"`
	SlotBackend    string `yaml:"slot_backend" validate:"oneof=postgres redis memory"`
	DatabaseURL    string `yaml:"database_url" validate:"required_if=AccountBackend postgres"`
	RedisURL       string `yaml:"redis_url" validate:"required_if=SlotBackend redis"`
	RunMigrations  bool   `yaml:"run_migrations"`

	AccessTokenSecret  string        `yaml:"access_token_secret" validate:"required,min=32"`
	RefreshTokenSecret string        `yaml:"refresh_token_secret" validate:"required,min=32,nefield=AccessTokenSecret"`
	AccessTokenTTL     time.Duration `yaml:"access_token_ttl" validate:"required"`
	RefreshTokenTTL    time.Duration `yaml:"refresh_token_ttl" validate:"required,gtfield=AccessTokenTTL"`
	TokenIssuer        string        `yaml:"token_issuer" validate:"required"`

	PasswordHash string `yaml:"password_hash" validate:"oneof=bcrypt argon2id"`

	CircuitBreakerThreshold int32         `yaml:"cb_threshold" validate:"gt=0"`
	CircuitBreakerTimeout   time.Duration `yaml:"cb_timeout" validate:"required"`
	CircuitBreakerReset     time.Duration `yaml:"cb_reset" validate:"required"`

	SlotCleanupInterval time.Duration `yaml:"slot_cleanup_interval" validate:"required"`

	BootstrapUsername string `yaml:"bootstrap_username" validate:"omitempty,min=3,max=32"`
	BootstrapEmail    string `yaml:"bootstrap_email" validate:"omitempty,email"`
	BootstrapPassword string `yaml:"bootstrap_password" validate:"required_with=BootstrapUsername"`

	LogDir   string `yaml:"log_dir"`
	LogLevel string `yaml:"log_level"`
}

func defaultAuthConfig() AuthConfig {
	return AuthConfig{
		HTTPPort:                constants.DefaultAuthHTTPPort,
		RequestTimeout:          constants.DefaultAuthRequestTimeout,
		CookieSecure:            true,
		AccountBackend:          constants.DefaultAccountBackend,
		SlotBackend:             constants.DefaultSlotBackend,
		RunMigrations:           true,
		AccessTokenTTL:          constants.DefaultAccessTokenTTL,
		RefreshTokenTTL:         constants.DefaultRefreshTokenTTL,
		TokenIssuer:             constants.DefaultTokenIssuer,
		PasswordHash:            constants.DefaultPasswordHashAlgorithm,
		CircuitBreakerThreshold: constants.DefaultCircuitBreakerThreshold,
		CircuitBreakerTimeout:   constants.DefaultCircuitBreakerTimeout,
		CircuitBreakerReset:     constants.DefaultCircuitBreakerReset,
		SlotCleanupInterval:     constants.DefaultSlotCleanupInterval,
		LogLevel:                "INFO",
	}
}

// LoadAuthConfig layers defaults, the optional YAML file named by
// AUTH_CONFIG_FILE and environment variables, in that order, then
// validates the result.
func LoadAuthConfig() (AuthConfig, error) {
	cfg := defaultAuthConfig()

	if path := getEnv("AUTH_CONFIG_FILE", ""); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return AuthConfig{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return AuthConfig{}, err
	}

	if err := cfg.Validate(); err != nil {
		return AuthConfig{}, err
	}

	return cfg, nil
}

func loadFile(path string, cfg *AuthConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *AuthConfig) error {
	cfg.HTTPPort = getEnv("AUTH_HTTP_PORT", cfg.HTTPPort)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.AccountBackend = getEnv("AUTH_ACCOUNT_BACKEND", cfg.AccountBackend)
	cfg.SlotBackend = getEnv("AUTH_SLOT_BACKEND", cfg.SlotBackend)
	cfg.AccessTokenSecret = getEnv("ACCESS_TOKEN_SECRET", cfg.AccessTokenSecret)
	cfg.RefreshTokenSecret = getEnv("REFRESH_TOKEN_SECRET", cfg.RefreshTokenSecret)
	cfg.TokenIssuer = getEnv("AUTH_TOKEN_ISSUER", cfg.TokenIssuer)
	cfg.PasswordHash = getEnv("AUTH_PASSWORD_HASH", cfg.PasswordHash)
	cfg.BootstrapUsername = getEnv("AUTH_BOOTSTRAP_USERNAME", cfg.BootstrapUsername)
	cfg.BootstrapEmail = getEnv("AUTH_BOOTSTRAP_EMAIL", cfg.BootstrapEmail)
	cfg.BootstrapPassword = getEnv("AUTH_BOOTSTRAP_PASSWORD", cfg.BootstrapPassword)
	cfg.LogDir = getEnv("LOG_DIR", cfg.LogDir)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	var err error
	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"AUTH_REQUEST_TIMEOUT", &cfg.RequestTimeout},
		{"ACCESS_TOKEN_TTL", &cfg.AccessTokenTTL},
		{"REFRESH_TOKEN_TTL", &cfg.RefreshTokenTTL},
		{"AUTH_CB_TIMEOUT", &cfg.CircuitBreakerTimeout},
		{"AUTH_CB_RESET", &cfg.CircuitBreakerReset},
		{"AUTH_SLOT_CLEANUP_INTERVAL", &cfg.SlotCleanupInterval},
	}
	for _, d := range durations {
		if *d.dst, err = getDurationEnv(d.key, *d.dst); err != nil {
			return err
		}
	}

	threshold, err := getIntEnv("AUTH_CB_THRESHOLD", int(cfg.CircuitBreakerThreshold))
	if err != nil {
		return err
	}
	cfg.CircuitBreakerThreshold = int32(threshold)

	if cfg.CookieSecure, err = getBoolEnv("AUTH_COOKIE_SECURE", cfg.CookieSecure); err != nil {
		return err
	}
	if cfg.RunMigrations, err = getBoolEnv("AUTH_RUN_MIGRATIONS", cfg.RunMigrations); err != nil {
		return err
	}

	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c AuthConfig) Validate() error {
	if c.AccessTokenSecret == "" {
		return fmt.Errorf("%w: ACCESS_TOKEN_SECRET", ErrMissingRequiredEnv)
	}
	if c.RefreshTokenSecret == "" {
		return fmt.Errorf("%w: REFRESH_TOKEN_SECRET", ErrMissingRequiredEnv)
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.SlotBackend == BackendPostgres && c.AccountBackend != BackendPostgres {
		return fmt.Errorf("%w: postgres slot backend requires postgres account backend", ErrInvalidConfig)
	}
	return nil
}

// Redacted returns a copy safe to log.
func (c AuthConfig) Redacted() AuthConfig {
	const mask = "[redacted]"
	if c.AccessTokenSecret != "" {
		c.AccessTokenSecret = mask
	}
	if c.RefreshTokenSecret != "" {
		c.RefreshTokenSecret = mask
	}
	if c.BootstrapPassword != "" {
		c.BootstrapPassword = mask
	}
	if c.DatabaseURL != "" {
		c.DatabaseURL = mask
	}
	if c.RedisURL != "" {
		c.RedisURL = mask
	}
	return c
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
	}
	return d, nil
}

func getIntEnv(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
	}
	return i, nil
}

func getBoolEnv(key string, fallback bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
	}
	return b, nil
}
