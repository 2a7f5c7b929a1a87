package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	accountdomain "github.com/AlibekovAA/session-auth/internal/account/domain"
	accountrepo "github.com/AlibekovAA/session-auth/internal/account/repository"
	authdomain "github.com/AlibekovAA/session-auth/internal/auth/domain"
	authrepo "github.com/AlibekovAA/session-auth/internal/auth/repository"
	"github.com/AlibekovAA/session-auth/internal/auth/token"
	"github.com/AlibekovAA/session-auth/internal/common/clock"
	commoncrypto "github.com/AlibekovAA/session-auth/internal/common/crypto"
	"github.com/AlibekovAA/session-auth/internal/common/logger"
	"github.com/AlibekovAA/session-auth/internal/common/resilience"
)

const (
	alicePassword = "wonderland-42"
	aliceID       = "6f1c2b8e-3a4d-4e5f-9a0b-1c2d3e4f5a6b"
)

// mockSlotStore delegates to a real store unless a function is set.
type mockSlotStore struct {
	next      authrepo.SlotStore
	storeFunc func(ctx context.Context, accountID string, slot authdomain.Slot) error
	loadFunc  func(ctx context.Context, accountID string) (authdomain.Slot, error)
	casFunc   func(ctx context.Context, accountID, expectedHash string, next authdomain.Slot) (bool, error)
	clearFunc func(ctx context.Context, accountID string) error
}

func (m *mockSlotStore) Store(ctx context.Context, accountID string, slot authdomain.Slot) error {
	if m.storeFunc != nil {
		return m.storeFunc(ctx, accountID, slot)
	}
	return m.next.Store(ctx, accountID, slot)
}

func (m *mockSlotStore) Load(ctx context.Context, accountID string) (authdomain.Slot, error) {
	if m.loadFunc != nil {
		return m.loadFunc(ctx, accountID)
	}
	return m.next.Load(ctx, accountID)
}

func (m *mockSlotStore) CompareAndSwap(ctx context.Context, accountID, expectedHash string, next authdomain.Slot) (bool, error) {
	if m.casFunc != nil {
		return m.casFunc(ctx, accountID, expectedHash, next)
	}
	return m.next.CompareAndSwap(ctx, accountID, expectedHash, next)
}

func (m *mockSlotStore) Clear(ctx context.Context, accountID string) error {
	if m.clearFunc != nil {
		return m.clearFunc(ctx, accountID)
	}
	return m.next.Clear(ctx, accountID)
}

type mockAccountRepo struct {
	accountrepo.Repository
	findByIdentifierFunc func(ctx context.Context, identifier string) (accountdomain.Account, error)
	findByIDFunc         func(ctx context.Context, id accountdomain.ID) (accountdomain.Account, error)
}

func (m *mockAccountRepo) FindByIdentifier(ctx context.Context, identifier string) (accountdomain.Account, error) {
	if m.findByIdentifierFunc != nil {
		return m.findByIdentifierFunc(ctx, identifier)
	}
	return m.Repository.FindByIdentifier(ctx, identifier)
}

func (m *mockAccountRepo) FindByID(ctx context.Context, id accountdomain.ID) (accountdomain.Account, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return m.Repository.FindByID(ctx, id)
}

type testEnv struct {
	service  *AuthService
	memory   *accountrepo.MemoryRepository
	accounts *mockAccountRepo
	slots    *mockSlotStore
	codec    *token.Codec
	clock    *clock.MockClock
}

func newBreaker(name string, threshold int32, isFailure func(error) bool, clk clock.Clock) *resilience.CircuitBreaker {
	return resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Threshold:  threshold,
		Timeout:    time.Second,
		ResetAfter: time.Minute,
		Name:       name,
		IsFailure:  isFailure,
		Clock:      clk,
	})
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithThreshold(t, 100)
}

func newTestEnvWithThreshold(t *testing.T, threshold int32) *testEnv {
	t.Helper()

	log := logger.NewWriter(io.Discard, "test", "ERROR")
	mockClock := clock.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	hasher := &commoncrypto.BcryptHasher{Cost: 4}

	codec, err := token.NewCodec(token.Config{
		AccessSecret:  strings.Repeat("a", 32),
		RefreshSecret: strings.Repeat("r", 32),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    240 * time.Hour,
		Issuer:        "session-auth-test",
	}, commoncrypto.NewUUIDGenerator(), mockClock)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	memory := accountrepo.NewMemoryRepository()
	hash, err := hasher.Hash(alicePassword)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := memory.Create(context.Background(), accountdomain.Account{
		ID:           aliceID,
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: hash,
	}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	verifier, err := NewCredentialVerifier(hasher)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	accounts := &mockAccountRepo{Repository: memory}
	slots := &mockSlotStore{next: authrepo.NewMemorySlotStore(mockClock)}
	slotManager := NewSessionSlotManager(
		slots,
		newBreaker("test_slots", threshold, IsSlotStoreFailure, mockClock),
		mockClock,
		log,
	)

	svc := NewAuthService(
		accounts,
		newBreaker("test_accounts", threshold, IsAccountStoreFailure, mockClock),
		verifier,
		codec,
		slotManager,
		log,
	)

	return &testEnv{
		service:  svc,
		memory:   memory,
		accounts: accounts,
		slots:    slots,
		codec:    codec,
		clock:    mockClock,
	}
}

func (e *testEnv) login(t *testing.T) AuthResult {
	t.Helper()
	result, err := e.service.Login(context.Background(), LoginInput{Identifier: "alice", Password: alicePassword})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	return result
}

func accountWithHash(hash string) accountdomain.Account {
	return accountdomain.Account{ID: aliceID, Username: "alice", Email: "alice@example.com", PasswordHash: hash}
}
