package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgconn"
	pgx "github.com/jackc/pgx/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlibekovAA/session-auth/internal/common/clock"
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

func updated(n int) pgconn.CommandTag {
	return pgconn.CommandTag(fmt.Sprintf("UPDATE %d", n))
}

func TestPgSlotStore_CompareAndSwap(t *testing.T) {
	clk := clock.NewMockClock(testNow)

	tests := []struct {
		name    string
		rows    int
		err     error
		want    bool
		wantErr bool
	}{
		{name: "current hash swaps", rows: 1, want: true},
		{name: "lost race", rows: 0, want: false},
		{name: "store failure", err: errors.New("connection reset"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotSQL string
			var gotArgs []interface{}
			store := NewPgSlotStore(&fakeQuerier{
				execFunc: func(_ context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
					gotSQL, gotArgs = sql, args
					if tt.err != nil {
						return nil, tt.err
					}
					return updated(tt.rows), nil
				},
			}, clk)

			next := slot("h2")
			swapped, err := store.CompareAndSwap(context.Background(), "acc-1", "h1", next)
			if tt.wantErr {
				require.Error(t, err)
				assert.False(t, swapped)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, swapped)

			assert.Contains(t, gotSQL, "refresh_token_hash = $2")
			assert.Contains(t, gotSQL, "refresh_token_expires_at > $5")
			require.Len(t, gotArgs, 5)
			assert.Equal(t, "acc-1", gotArgs[0])
			assert.Equal(t, "h1", gotArgs[1])
			assert.Equal(t, "h2", gotArgs[2])
			assert.Equal(t, next.ExpiresAt, gotArgs[3])
			assert.Equal(t, testNow, gotArgs[4])
		})
	}
}

// rowLockedAccounts applies the conditional update the way Postgres does
// under a row lock: one statement at a time against the current value.
type rowLockedAccounts struct {
	mu   sync.Mutex
	hash string
}

func (a *rowLockedAccounts) exec(_ context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !strings.Contains(sql, "refresh_token_hash = $2") {
		return nil, fmt.Errorf("unexpected statement: %s", sql)
	}
	if args[1].(string) != a.hash {
		return updated(0), nil
	}
	a.hash = args[2].(string)
	return updated(1), nil
}

func TestPgSlotStore_ConcurrentCompareAndSwapHasOneWinner(t *testing.T) {
	accounts := &rowLockedAccounts{hash: "h0"}
	store := NewPgSlotStore(&fakeQuerier{execFunc: accounts.exec}, clock.NewMockClock(testNow))

	const workers = 32
	var wins atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			swapped, err := store.CompareAndSwap(context.Background(), "acc-1", "h0", slot(fmt.Sprintf("next-%d", i)))
			assert.NoError(t, err)
			if swapped {
				wins.Add(1)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.NotEqual(t, "h0", accounts.hash)
}

func TestPgSlotStore_Store(t *testing.T) {
	clk := clock.NewMockClock(testNow)

	t.Run("existing account", func(t *testing.T) {
		store := NewPgSlotStore(&fakeQuerier{
			execFunc: func(context.Context, string, ...interface{}) (pgconn.CommandTag, error) {
				return updated(1), nil
			},
		}, clk)
		assert.NoError(t, store.Store(context.Background(), "acc-1", slot("h1")))
	})

	t.Run("missing account", func(t *testing.T) {
		store := NewPgSlotStore(&fakeQuerier{
			execFunc: func(context.Context, string, ...interface{}) (pgconn.CommandTag, error) {
				return updated(0), nil
			},
		}, clk)
		assert.ErrorIs(t, store.Store(context.Background(), "ghost", slot("h1")), ErrSlotOwnerNotFound)
	})
}

func TestPgSlotStore_Load(t *testing.T) {
	clk := clock.NewMockClock(testNow)
	expires := testNow.Add(time.Hour)

	tests := []struct {
		name     string
		scan     func(dest ...interface{}) error
		wantHash string
		wantErr  error
	}{
		{
			name: "held slot",
			scan: func(dest ...interface{}) error {
				hash := "h1"
				*(dest[0].(**string)) = &hash
				*(dest[1].(**time.Time)) = &expires
				return nil
			},
			wantHash: "h1",
		},
		{
			name: "null hash",
			scan: func(dest ...interface{}) error {
				*(dest[0].(**string)) = nil
				*(dest[1].(**time.Time)) = nil
				return nil
			},
			wantErr: ErrSlotEmpty,
		},
		{
			name:    "missing account",
			scan:    func(...interface{}) error { return pgx.ErrNoRows },
			wantErr: ErrSlotOwnerNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewPgSlotStore(&fakeQuerier{
				queryRowFunc: func(_ context.Context, _ string, args ...interface{}) pgx.Row {
					assert.Equal(t, []interface{}{"acc-1"}, args)
					return fakeRow{scanFunc: tt.scan}
				},
			}, clk)

			got, err := store.Load(context.Background(), "acc-1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHash, got.TokenHash)
			assert.Equal(t, expires, got.ExpiresAt)
		})
	}
}

func TestPgSlotStore_ClearAndDeleteExpired(t *testing.T) {
	clk := clock.NewMockClock(testNow)
	var statements []string
	store := NewPgSlotStore(&fakeQuerier{
		execFunc: func(_ context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
			statements = append(statements, sql)
			if strings.Contains(sql, "refresh_token_expires_at <= $1") {
				assert.Equal(t, []interface{}{testNow}, args)
				return updated(3), nil
			}
			return updated(0), nil
		},
	}, clk)
	ctx := context.Background()

	require.NoError(t, store.Clear(ctx, "acc-1"))

	deleted, err := store.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
	require.Len(t, statements, 2)
	assert.Contains(t, statements[0], "refresh_token_hash = NULL")
}

func TestPgSlotStore_DeleteExpiredFailure(t *testing.T) {
	store := NewPgSlotStore(&fakeQuerier{
		execFunc: func(context.Context, string, ...interface{}) (pgconn.CommandTag, error) {
			return nil, errors.New("connection reset")
		},
	}, clock.NewMockClock(testNow))

	deleted, err := store.DeleteExpired(context.Background())
	assert.Error(t, err)
	assert.Zero(t, deleted)
}
