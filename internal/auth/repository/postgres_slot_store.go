package repository

import (
	"context"
	"time"

	authdomain "github.com/AlibekovAA/session-auth/internal/auth/domain"
	"github.com/AlibekovAA/session-auth/internal/common/clock"
	"github.com/AlibekovAA/session-auth/internal/common/db"
)

const accountsTable = "accounts"

// PgSlotStore keeps the slot in the refresh_token_* columns of the
// accounts row. Conditional updates take the row lock, which serializes
// concurrent rotations of the same account.
type PgSlotStore struct {
	pool  db.Querier
	clock clock.Clock
}

func NewPgSlotStore(pool db.Querier, clk clock.Clock) *PgSlotStore {
	return &PgSlotStore{pool: pool, clock: clk}
}

func (s *PgSlotStore) Store(ctx context.Context, accountID string, slot authdomain.Slot) error {
	start := time.Now()
	tag, err := s.pool.Exec(
		ctx,
		`UPDATE accounts
		 SET refresh_token_hash = $2, refresh_token_expires_at = $3, updated_at = NOW()
		 WHERE id = $1`,
		accountID,
		slot.TokenHash,
		slot.ExpiresAt,
	)
	if err := db.HandleExecError(err, "store session slot", accountsTable, start); err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotOwnerNotFound
	}
	return nil
}

func (s *PgSlotStore) Load(ctx context.Context, accountID string) (authdomain.Slot, error) {
	start := time.Now()

	var hash *string
	var expiresAt *time.Time
	err := s.pool.QueryRow(
		ctx,
		`SELECT refresh_token_hash, refresh_token_expires_at FROM accounts WHERE id = $1`,
		accountID,
	).Scan(&hash, &expiresAt)
	if err := db.HandleQueryError(err, ErrSlotOwnerNotFound, "load session slot", accountsTable, start); err != nil {
		return authdomain.Slot{}, err
	}

	if hash == nil || *hash == "" {
		return authdomain.Slot{}, ErrSlotEmpty
	}

	slot := authdomain.Slot{TokenHash: *hash}
	if expiresAt != nil {
		slot.ExpiresAt = *expiresAt
	}
	return slot, nil
}

func (s *PgSlotStore) CompareAndSwap(ctx context.Context, accountID, expectedHash string, next authdomain.Slot) (bool, error) {
	start := time.Now()
	tag, err := s.pool.Exec(
		ctx,
		`UPDATE accounts
		 SET refresh_token_hash = $3, refresh_token_expires_at = $4, updated_at = NOW()
		 WHERE id = $1 AND refresh_token_hash = $2 AND refresh_token_expires_at > $5`,
		accountID,
		expectedHash,
		next.TokenHash,
		next.ExpiresAt,
		s.clock.Now(),
	)
	if err := db.HandleExecError(err, "rotate session slot", accountsTable, start); err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PgSlotStore) Clear(ctx context.Context, accountID string) error {
	start := time.Now()
	_, err := s.pool.Exec(
		ctx,
		`UPDATE accounts
		 SET refresh_token_hash = NULL, refresh_token_expires_at = NULL, updated_at = NOW()
		 WHERE id = $1`,
		accountID,
	)
	return db.HandleExecError(err, "clear session slot", accountsTable, start)
}

func (s *PgSlotStore) DeleteExpired(ctx context.Context) (int64, error) {
	start := time.Now()
	tag, err := s.pool.Exec(
		ctx,
		`UPDATE accounts
		 SET refresh_token_hash = NULL, refresh_token_expires_at = NULL, updated_at = NOW()
		 WHERE refresh_token_expires_at <= $1`,
		s.clock.Now(),
	)
	if err := db.HandleExecError(err, "delete expired session slots", accountsTable, start); err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
