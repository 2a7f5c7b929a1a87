package crypto

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/AlibekovAA/session-auth/internal/common/constants"
)

var (
	ErrMismatchedPassword = errors.New("password does not match hash")
	ErrInvalidHash        = errors.New("invalid password hash")
	ErrUnknownAlgorithm   = errors.New("unknown password hash algorithm")
)

const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash string, password string) error
}

type BcryptHasher struct {
	Cost int
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = constants.DefaultBcryptCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (h *BcryptHasher) Compare(hash string, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrMismatchedPassword
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	return nil
}

// DispatchHasher hashes new passwords with the preferred algorithm and
// verifies stored digests with whichever algorithm produced them.
type DispatchHasher struct {
	preferred PasswordHasher
	bcrypt    PasswordHasher
	argon2id  PasswordHasher
}

func NewPasswordHasher(algorithm string) (*DispatchHasher, error) {
	h := &DispatchHasher{
		bcrypt:   &BcryptHasher{},
		argon2id: &Argon2idHasher{},
	}
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "", AlgorithmBcrypt:
		h.preferred = h.bcrypt
	case AlgorithmArgon2id:
		h.preferred = h.argon2id
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, algorithm)
	}
	return h, nil
}

func (h *DispatchHasher) Hash(password string) (string, error) {
	return h.preferred.Hash(password)
}

func (h *DispatchHasher) Compare(hash string, password string) error {
	switch {
	case strings.HasPrefix(hash, "$argon2id$"):
		return h.argon2id.Compare(hash, password)
	case strings.HasPrefix(hash, "$2a$"), strings.HasPrefix(hash, "$2b$"), strings.HasPrefix(hash, "$2y$"):
		return h.bcrypt.Compare(hash, password)
	default:
		return ErrInvalidHash
	}
}
