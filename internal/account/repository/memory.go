package repository

import (
	"context"
	"sync"
	"time"

	"github.com/AlibekovAA/session-auth/internal/account/domain"
)

// MemoryRepository keeps accounts in process memory. Used when
// AUTH_ACCOUNT_BACKEND=memory and in tests.
type MemoryRepository struct {
	mu         sync.RWMutex
	byID       map[domain.ID]domain.Account
	byUsername map[string]domain.ID
	byEmail    map[string]domain.ID
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:       make(map[domain.ID]domain.Account),
		byUsername: make(map[string]domain.ID),
		byEmail:    make(map[string]domain.ID),
	}
}

func (r *MemoryRepository) Create(_ context.Context, account domain.Account) error {
	account.Username = domain.NormalizeIdentifier(account.Username)
	account.Email = domain.NormalizeIdentifier(account.Email)
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[account.ID]; ok {
		return ErrAccountAlreadyExists
	}
	if _, ok := r.byUsername[account.Username]; ok {
		return ErrAccountAlreadyExists
	}
	if _, ok := r.byEmail[account.Email]; ok {
		return ErrAccountAlreadyExists
	}

	r.byID[account.ID] = account
	r.byUsername[account.Username] = account.ID
	r.byEmail[account.Email] = account.ID
	return nil
}

func (r *MemoryRepository) FindByIdentifier(_ context.Context, identifier string) (domain.Account, error) {
	key := domain.NormalizeIdentifier(identifier)

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUsername[key]
	if !ok {
		id, ok = r.byEmail[key]
	}
	if !ok {
		return domain.Account{}, ErrAccountNotFound
	}
	return r.byID[id], nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id domain.ID) (domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.byID[id]
	if !ok {
		return domain.Account{}, ErrAccountNotFound
	}
	return account, nil
}

// Delete removes an account. It is not part of Repository and exists so
// tests can exercise refresh against a vanished account.
func (r *MemoryRepository) Delete(_ context.Context, id domain.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.byID[id]
	if !ok {
		return
	}
	delete(r.byID, id)
	delete(r.byUsername, account.Username)
	delete(r.byEmail, account.Email)
}
