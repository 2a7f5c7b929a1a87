package repository

import (
	"context"
	"errors"

	authdomain "github.com/AlibekovAA/session-auth/internal/auth/domain"
)

var (
	ErrSlotEmpty         = errors.New("session slot is empty")
	ErrSlotOwnerNotFound = errors.New("session slot owner not found")
)

// SlotStore persists one refresh token digest per account.
type SlotStore interface {
	// Store overwrites the slot unconditionally.
	Store(ctx context.Context, accountID string, slot authdomain.Slot) error
	// Load returns ErrSlotEmpty when no token is held.
	Load(ctx context.Context, accountID string) (authdomain.Slot, error)
	// CompareAndSwap replaces the slot only if it currently holds
	// expectedHash. The boolean is false when another writer got there first.
	CompareAndSwap(ctx context.Context, accountID, expectedHash string, next authdomain.Slot) (bool, error)
	// Clear empties the slot. Clearing an empty slot is not an error.
	Clear(ctx context.Context, accountID string) error
}

// ExpiredSlotSweeper is implemented by stores that do not expire entries
// on their own.
type ExpiredSlotSweeper interface {
	DeleteExpired(ctx context.Context) (int64, error)
}
