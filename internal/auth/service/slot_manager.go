package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"

	authdomain "github.com/AlibekovAA/session-auth/internal/auth/domain"
	authrepo "github.com/AlibekovAA/session-auth/internal/auth/repository"
	"github.com/AlibekovAA/session-auth/internal/common/clock"
	"github.com/AlibekovAA/session-auth/internal/common/logger"
)

type CircuitBreaker interface {
	Call(ctx context.Context, fn func(context.Context) error) error
}

// HashToken is the at-rest form of a refresh token. Equal digests imply
// equal token strings.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// SessionSlotManager owns the single active refresh token of each account.
type SessionSlotManager struct {
	store   authrepo.SlotStore
	breaker CircuitBreaker
	clock   clock.Clock
	log     *logger.Logger
}

func NewSessionSlotManager(store authrepo.SlotStore, breaker CircuitBreaker, clk clock.Clock, log *logger.Logger) *SessionSlotManager {
	return &SessionSlotManager{
		store:   store,
		breaker: breaker,
		clock:   clk,
		log:     log,
	}
}

func (m *SessionSlotManager) Store(ctx context.Context, accountID string, token authdomain.Token) error {
	slot := authdomain.Slot{TokenHash: HashToken(token.Value), ExpiresAt: token.ExpiresAt}
	err := m.breaker.Call(ctx, func(ctx context.Context) error {
		return m.store.Store(ctx, accountID, slot)
	})
	if err != nil {
		incrementSlotErrors("store")
		return err
	}
	return nil
}

// Matches reports whether raw is the account's current refresh token.
// An empty or expired slot never matches.
func (m *SessionSlotManager) Matches(ctx context.Context, accountID, raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}

	var slot authdomain.Slot
	err := m.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		slot, err = m.store.Load(ctx, accountID)
		return err
	})
	if errors.Is(err, authrepo.ErrSlotEmpty) || errors.Is(err, authrepo.ErrSlotOwnerNotFound) {
		return false, nil
	}
	if err != nil {
		incrementSlotErrors("load")
		return false, err
	}

	if slot.ExpiredAt(m.clock.Now()) {
		return false, nil
	}

	presented := HashToken(raw)
	return subtle.ConstantTimeCompare([]byte(presented), []byte(slot.TokenHash)) == 1, nil
}

// Rotate replaces presented with next only if presented is still current.
func (m *SessionSlotManager) Rotate(ctx context.Context, accountID, presented string, next authdomain.Token) (bool, error) {
	nextSlot := authdomain.Slot{TokenHash: HashToken(next.Value), ExpiresAt: next.ExpiresAt}

	var swapped bool
	err := m.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		swapped, err = m.store.CompareAndSwap(ctx, accountID, HashToken(presented), nextSlot)
		return err
	})
	if err != nil {
		incrementSlotErrors("rotate")
		return false, err
	}
	return swapped, nil
}

func (m *SessionSlotManager) Clear(ctx context.Context, accountID string) error {
	err := m.breaker.Call(ctx, func(ctx context.Context) error {
		return m.store.Clear(ctx, accountID)
	})
	if err != nil {
		incrementSlotErrors("clear")
		return err
	}
	return nil
}
