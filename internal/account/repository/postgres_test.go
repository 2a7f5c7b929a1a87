package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/jackc/pgconn"
	pgx "github.com/jackc/pgx/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlibekovAA/session-auth/internal/account/domain"
	"github.com/AlibekovAA/session-auth/internal/common/logger"
)

type fakeRow struct {
	scanFunc func(dest ...interface{}) error
}

func (r fakeRow) Scan(dest ...interface{}) error {
	return r.scanFunc(dest...)
}

type fakeQuerier struct {
	execFunc     func(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	queryRowFunc func(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (q *fakeQuerier) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	return q.execFunc(ctx, sql, args...)
}

func (q *fakeQuerier) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return q.queryRowFunc(ctx, sql, args...)
}

var createdAt = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func scanAlice(dest ...interface{}) error {
	*(dest[0].(*domain.ID)) = "acc-1"
	*(dest[1].(*string)) = "alice"
	*(dest[2].(*string)) = "alice@example.com"
	*(dest[3].(*string)) = "hash"
	*(dest[4].(*time.Time)) = createdAt
	return nil
}

func newPgRepo(q *fakeQuerier) *PgRepository {
	return NewPgRepository(q, logger.NewWriter(io.Discard, "test", "ERROR"))
}

func TestPgRepository_FindByIdentifierNormalizes(t *testing.T) {
	var gotSQL string
	var gotArgs []interface{}
	repo := newPgRepo(&fakeQuerier{
		queryRowFunc: func(_ context.Context, sql string, args ...interface{}) pgx.Row {
			gotSQL, gotArgs = sql, args
			return fakeRow{scanFunc: scanAlice}
		},
	})

	account, err := repo.FindByIdentifier(context.Background(), "  Alice@Example.COM ")
	require.NoError(t, err)

	assert.Contains(t, gotSQL, "username = $1 OR email = $1")
	assert.Equal(t, []interface{}{"alice@example.com"}, gotArgs)
	assert.Equal(t, domain.ID("acc-1"), account.ID)
	assert.Equal(t, "hash", account.PasswordHash)
	assert.Equal(t, createdAt, account.CreatedAt)
}

func TestPgRepository_FindByIDNotFound(t *testing.T) {
	calls := 0
	repo := newPgRepo(&fakeQuerier{
		queryRowFunc: func(context.Context, string, ...interface{}) pgx.Row {
			calls++
			return fakeRow{scanFunc: func(...interface{}) error { return pgx.ErrNoRows }}
		},
	})

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrAccountNotFound)
	assert.Equal(t, 1, calls, "not found must not be retried")
}

func TestPgRepository_FindByIDRetriesConnectionErrors(t *testing.T) {
	calls := 0
	repo := newPgRepo(&fakeQuerier{
		queryRowFunc: func(context.Context, string, ...interface{}) pgx.Row {
			calls++
			if calls == 1 {
				return fakeRow{scanFunc: func(...interface{}) error {
					return &pgconn.PgError{Code: "08006"}
				}}
			}
			return fakeRow{scanFunc: scanAlice}
		},
	})

	account, err := repo.FindByID(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ID("acc-1"), account.ID)
	assert.Equal(t, 2, calls)
}

func TestPgRepository_Create(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{name: "inserted"},
		{name: "duplicate", err: &pgconn.PgError{Code: "23505", ConstraintName: "accounts_username_key"}, wantErr: ErrAccountAlreadyExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotArgs []interface{}
			repo := newPgRepo(&fakeQuerier{
				execFunc: func(_ context.Context, _ string, args ...interface{}) (pgconn.CommandTag, error) {
					gotArgs = args
					if tt.err != nil {
						return nil, tt.err
					}
					return pgconn.CommandTag("INSERT 0 1"), nil
				},
			})

			err := repo.Create(context.Background(), domain.Account{
				ID:           "acc-1",
				Username:     " Alice ",
				Email:        "Alice@Example.com",
				PasswordHash: "hash",
			})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []interface{}{"acc-1", "alice", "alice@example.com", "hash"}, gotArgs)
		})
	}
}

func TestPgRepository_CreateFailure(t *testing.T) {
	repo := newPgRepo(&fakeQuerier{
		execFunc: func(context.Context, string, ...interface{}) (pgconn.CommandTag, error) {
			return nil, errors.New("connection reset")
		},
	})

	err := repo.Create(context.Background(), domain.Account{ID: "acc-1", Username: "alice", Email: "a@b.c"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAccountAlreadyExists)
}
