package db

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/jackc/pgconn"
	pgx "github.com/jackc/pgx/v4"

	"github.com/AlibekovAA/session-auth/internal/common/logger"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"no rows", pgx.ErrNoRows, false},
		{"deadline", context.DeadlineExceeded, false},
		{"connection failure", &pgconn.PgError{Code: "08006"}, true},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryableError(tt.err); got != tt.want {
				t.Fatalf("IsRetryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetryWithBackoff_RetriesTransientErrors(t *testing.T) {
	log := logger.NewWriter(io.Discard, "test", "ERROR")
	attempts := 0

	err := RetryWithBackoff(context.Background(), log, fastRetryConfig(), func() error {
		attempts++
		if attempts < 3 {
			return &pgconn.PgError{Code: "40P01"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryWithBackoff_StopsOnPermanentError(t *testing.T) {
	log := logger.NewWriter(io.Discard, "test", "ERROR")
	attempts := 0

	err := RetryWithBackoff(context.Background(), log, fastRetryConfig(), func() error {
		attempts++
		return pgx.ErrNoRows
	})
	if !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestUniqueViolation(t *testing.T) {
	constraint, ok := UniqueViolation(&pgconn.PgError{Code: "23505", ConstraintName: "accounts_email_key"})
	if !ok || constraint != "accounts_email_key" {
		t.Fatalf("expected accounts_email_key, got %q ok=%v", constraint, ok)
	}
	if _, ok := UniqueViolation(errors.New("other")); ok {
		t.Fatal("expected plain error not to be a unique violation")
	}
}
