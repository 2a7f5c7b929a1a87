package repository

import (
	"context"
	"errors"

	"github.com/AlibekovAA/session-auth/internal/account/domain"
)

var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountAlreadyExists = errors.New("account already exists")
)

type Repository interface {
	Create(ctx context.Context, account domain.Account) error
	// FindByIdentifier matches the identifier against username or email.
	FindByIdentifier(ctx context.Context, identifier string) (domain.Account, error)
	FindByID(ctx context.Context, id domain.ID) (domain.Account, error)
}
