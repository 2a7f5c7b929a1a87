package repository

import (
	"context"
	"time"

	"github.com/AlibekovAA/session-auth/internal/account/domain"
	"github.com/AlibekovAA/session-auth/internal/common/db"
	"github.com/AlibekovAA/session-auth/internal/common/logger"
)

const accountsTable = "accounts"

type PgRepository struct {
	pool db.Querier
	log  *logger.Logger
}

func NewPgRepository(pool db.Querier, log *logger.Logger) *PgRepository {
	return &PgRepository{pool: pool, log: log}
}

func (r *PgRepository) Create(ctx context.Context, account domain.Account) error {
	start := time.Now()
	_, err := r.pool.Exec(
		ctx,
		`INSERT INTO accounts (id, username, email, password_hash) VALUES ($1, $2, $3, $4)`,
		string(account.ID),
		domain.NormalizeIdentifier(account.Username),
		domain.NormalizeIdentifier(account.Email),
		account.PasswordHash,
	)
	if _, ok := db.UniqueViolation(err); ok {
		db.MeasureQueryDuration("create account", accountsTable, start)
		return ErrAccountAlreadyExists
	}
	return db.HandleExecError(err, "create account", accountsTable, start)
}

func (r *PgRepository) FindByIdentifier(ctx context.Context, identifier string) (domain.Account, error) {
	return r.findOne(
		ctx,
		"find account by identifier",
		`SELECT id, username, email, password_hash, created_at
		 FROM accounts
		 WHERE username = $1 OR email = $1
		 LIMIT 1`,
		domain.NormalizeIdentifier(identifier),
	)
}

func (r *PgRepository) FindByID(ctx context.Context, id domain.ID) (domain.Account, error) {
	return r.findOne(
		ctx,
		"find account by id",
		`SELECT id, username, email, password_hash, created_at FROM accounts WHERE id = $1`,
		string(id),
	)
}

func (r *PgRepository) findOne(ctx context.Context, operation, query string, arg any) (domain.Account, error) {
	var account domain.Account

	err := db.RetryWithBackoff(ctx, r.log, db.DefaultRetryConfig, func() error {
		start := time.Now()
		err := r.pool.QueryRow(ctx, query, arg).Scan(
			&account.ID,
			&account.Username,
			&account.Email,
			&account.PasswordHash,
			&account.CreatedAt,
		)
		return db.HandleQueryError(err, ErrAccountNotFound, operation, accountsTable, start)
	})
	if err != nil {
		return domain.Account{}, err
	}

	return account, nil
}
