package service

import (
	"fmt"

	"github.com/google/uuid"

	accountdomain "github.com/AlibekovAA/session-auth/internal/account/domain"
	commoncrypto "github.com/AlibekovAA/session-auth/internal/common/crypto"
)

// CredentialVerifier checks a presented password against an account's
// stored digest. It has no side effects.
type CredentialVerifier struct {
	hasher    commoncrypto.PasswordHasher
	dummyHash string
}

func NewCredentialVerifier(hasher commoncrypto.PasswordHasher) (*CredentialVerifier, error) {
	dummy, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &CredentialVerifier{hasher: hasher, dummyHash: dummy}, nil
}

func (v *CredentialVerifier) Verify(account accountdomain.Account, password string) bool {
	if account.PasswordHash == "" || password == "" {
		v.Burn(password)
		return false
	}
	return v.hasher.Compare(account.PasswordHash, password) == nil
}

// Burn spends the same work as a real comparison so an unknown identifier
// is not distinguishable from a wrong password by timing.
func (v *CredentialVerifier) Burn(password string) {
	_ = v.hasher.Compare(v.dummyHash, password)
}
