package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"

	accountdomain "github.com/AlibekovAA/session-auth/internal/account/domain"
	accountrepo "github.com/AlibekovAA/session-auth/internal/account/repository"
	authrepo "github.com/AlibekovAA/session-auth/internal/auth/repository"
	"github.com/AlibekovAA/session-auth/internal/auth/service"
	"github.com/AlibekovAA/session-auth/internal/common/clock"
	"github.com/AlibekovAA/session-auth/internal/common/config"
	"github.com/AlibekovAA/session-auth/internal/common/constants"
	commoncrypto "github.com/AlibekovAA/session-auth/internal/common/crypto"
	"github.com/AlibekovAA/session-auth/internal/common/db"
	commonhttp "github.com/AlibekovAA/session-auth/internal/common/http"
	"github.com/AlibekovAA/session-auth/internal/common/logger"
	"github.com/AlibekovAA/session-auth/internal/common/resilience"
	srv "github.com/AlibekovAA/session-auth/internal/common/server"
)

// AuthApp holds the process-wide dependencies of the auth service. Pool and
// Redis are nil when no configured backend needs them.
type AuthApp struct {
	Log             *logger.Logger
	Config          config.AuthConfig
	Clock           clock.Clock
	Pool            *pgxpool.Pool
	Redis           redis.UniversalClient
	Accounts        accountrepo.Repository
	Slots           authrepo.SlotStore
	AccountsBreaker *resilience.CircuitBreaker
	SlotsBreaker    *resilience.CircuitBreaker
	Hasher          commoncrypto.PasswordHasher
}

func NewAuthApp(ctx context.Context) (*AuthApp, error) {
	log, err := initializeLogger("auth")
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg, err := config.LoadAuthConfig()
	if err != nil {
		log.Errorf("failed to load config: %v", err)
		return nil, err
	}

	if err := log.Initialize(cfg.LogDir, "auth", cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log.Infof("auth config loaded: %+v", cfg.Redacted())

	return Setup(ctx, log, cfg, clock.NewRealClock())
}

// Setup opens the backends named by cfg. ctx must outlive the app since
// background pool metrics are tied to it.
func Setup(ctx context.Context, log *logger.Logger, cfg config.AuthConfig, clk clock.Clock) (*AuthApp, error) {
	hasher, err := commoncrypto.NewPasswordHasher(cfg.PasswordHash)
	if err != nil {
		return nil, err
	}

	app := &AuthApp{
		Log:    log,
		Config: cfg,
		Clock:  clk,
		Hasher: hasher,
	}

	if cfg.AccountBackend == config.BackendPostgres || cfg.SlotBackend == config.BackendPostgres {
		if err := app.initializePostgres(ctx); err != nil {
			return nil, err
		}
	}
	if cfg.SlotBackend == config.BackendRedis {
		if err := app.initializeRedis(ctx); err != nil {
			app.close()
			return nil, err
		}
	}

	switch cfg.AccountBackend {
	case config.BackendPostgres:
		app.Accounts = accountrepo.NewPgRepository(app.Pool, log)
	default:
		app.Accounts = accountrepo.NewMemoryRepository()
	}

	switch cfg.SlotBackend {
	case config.BackendPostgres:
		app.Slots = authrepo.NewPgSlotStore(app.Pool, clk)
	case config.BackendRedis:
		app.Slots = authrepo.NewRedisSlotStore(app.Redis, constants.RedisKeyPrefix, clk)
	default:
		app.Slots = authrepo.NewMemorySlotStore(clk)
	}

	app.AccountsBreaker = app.newBreaker("account_store", service.IsAccountStoreFailure)
	app.SlotsBreaker = app.newBreaker("session_slot_store", service.IsSlotStoreFailure)

	log.Infof("auth backends ready: accounts=%s slots=%s", cfg.AccountBackend, cfg.SlotBackend)
	return app, nil
}

func (a *AuthApp) initializePostgres(ctx context.Context) error {
	pool, err := db.NewPool(ctx, a.Log, a.Config.DatabaseURL)
	if err != nil {
		return err
	}
	a.Pool = pool

	if a.Config.RunMigrations {
		if err := db.RunMigrations(ctx, a.Log, pool); err != nil {
			pool.Close()
			return err
		}
	}
	return nil
}

func (a *AuthApp) initializeRedis(ctx context.Context) error {
	opts, err := redis.ParseURL(a.Config.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to parse redis url: %w", err)
	}
	opts.DialTimeout = constants.RedisDialTimeout
	opts.ReadTimeout = constants.RedisReadTimeout
	opts.WriteTimeout = constants.RedisWriteTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	a.Redis = client
	a.Log.Infof("redis connection established: %s", opts.Addr)
	return nil
}

func (a *AuthApp) newBreaker(name string, isFailure func(error) bool) *resilience.CircuitBreaker {
	return resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Threshold:  a.Config.CircuitBreakerThreshold,
		Timeout:    a.Config.CircuitBreakerTimeout,
		ResetAfter: a.Config.CircuitBreakerReset,
		Name:       name,
		IsFailure:  isFailure,
		Clock:      a.Clock,
		Logger:     a.Log,
	})
}

// SeedAccount creates the configured bootstrap account. An account that
// already exists is left untouched.
func (a *AuthApp) SeedAccount(ctx context.Context) error {
	if a.Config.BootstrapUsername == "" {
		return nil
	}

	hash, err := a.Hasher.Hash(a.Config.BootstrapPassword)
	if err != nil {
		return fmt.Errorf("failed to hash bootstrap password: %w", err)
	}

	account := accountdomain.Account{
		ID:           accountdomain.ID(uuid.NewString()),
		Username:     a.Config.BootstrapUsername,
		Email:        a.Config.BootstrapEmail,
		PasswordHash: hash,
		CreatedAt:    a.Clock.Now().UTC(),
	}
	if account.Email == "" {
		account.Email = account.Username + "@localhost"
	}

	err = a.Accounts.Create(ctx, account)
	switch {
	case errors.Is(err, accountrepo.ErrAccountAlreadyExists):
		a.Log.Infof("bootstrap account %q already exists", account.Username)
		return nil
	case err != nil:
		return fmt.Errorf("failed to create bootstrap account: %w", err)
	}

	a.Log.WithFields(ctx, logger.Fields{
		"account_id": string(account.ID),
		"action":     "bootstrap_account_created",
	}).Infof("bootstrap account %q created", account.Username)
	return nil
}

func (a *AuthApp) HealthChecks() []commonhttp.HealthCheck {
	var checks []commonhttp.HealthCheck
	if a.Pool != nil {
		checks = append(checks, commonhttp.HealthCheck{
			Name: "postgres",
			Check: func(ctx context.Context) error {
				return a.Pool.Ping(ctx)
			},
		})
	}
	if a.Redis != nil {
		checks = append(checks, commonhttp.HealthCheck{
			Name: "redis",
			Check: func(ctx context.Context) error {
				return a.Redis.Ping(ctx).Err()
			},
		})
	}
	return checks
}

// ShutdownHooks release the backends. They run after the HTTP server has
// drained.
func (a *AuthApp) ShutdownHooks() []srv.ShutdownHook {
	return []srv.ShutdownHook{
		func(ctx context.Context) error {
			a.Log.Infof("auth service: closing backends")
			return a.close()
		},
	}
}

func (a *AuthApp) close() error {
	var errs []error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	return errors.Join(errs...)
}

func initializeLogger(serviceName string) (*logger.Logger, error) {
	return logger.New(os.Getenv("LOG_DIR"), serviceName, os.Getenv("LOG_LEVEL"))
}
