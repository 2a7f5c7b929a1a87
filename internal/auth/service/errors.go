package service

import (
	"context"
	"errors"
	"net/http"

	accountrepo "github.com/AlibekovAA/session-auth/internal/account/repository"
	authrepo "github.com/AlibekovAA/session-auth/internal/auth/repository"
	commonerrors "github.com/AlibekovAA/session-auth/internal/common/errors"
)

var (
	ErrAccountNotFound = commonerrors.NewDomainError(
		"ACCOUNT_NOT_FOUND",
		commonerrors.CategoryUnauthorized,
		http.StatusUnauthorized,
		"account not found",
	)

	ErrInvalidCredentials = commonerrors.NewDomainError(
		"INVALID_CREDENTIALS",
		commonerrors.CategoryAuth,
		http.StatusUnauthorized,
		"invalid credentials",
	)

	ErrMissingToken = commonerrors.NewDomainError(
		"MISSING_REFRESH_TOKEN",
		commonerrors.CategoryUnauthorized,
		http.StatusUnauthorized,
		"refresh token is required",
	)

	ErrInvalidToken = commonerrors.NewDomainError(
		"INVALID_REFRESH_TOKEN",
		commonerrors.CategoryUnauthorized,
		http.StatusUnauthorized,
		"invalid refresh token",
	)

	ErrExpiredToken = commonerrors.NewDomainError(
		"REFRESH_TOKEN_EXPIRED",
		commonerrors.CategoryUnauthorized,
		http.StatusUnauthorized,
		"refresh token has expired",
	)

	ErrTokenReuseOrStale = commonerrors.NewDomainError(
		"REFRESH_TOKEN_REUSED",
		commonerrors.CategoryUnauthorized,
		http.StatusUnauthorized,
		"refresh token is no longer valid",
	)

	ErrSessionPersist = commonerrors.NewDomainError(
		"SESSION_PERSIST_FAILED",
		commonerrors.CategoryInternal,
		http.StatusInternalServerError,
		"failed to persist session",
	)

	ErrIdentifierRequired = commonerrors.NewDomainError(
		"IDENTIFIER_REQUIRED",
		commonerrors.CategoryValidation,
		http.StatusBadRequest,
		"username or email is required",
	)

	ErrServiceUnavailable = commonerrors.NewDomainError(
		"SERVICE_UNAVAILABLE",
		commonerrors.CategoryExternal,
		http.StatusServiceUnavailable,
		"service temporarily unavailable",
	)
)

// IsAccountStoreFailure is the circuit breaker predicate for account
// lookups. A missing account is an answer, not a failure.
func IsAccountStoreFailure(err error) bool {
	return !errors.Is(err, accountrepo.ErrAccountNotFound) && !errors.Is(err, context.Canceled)
}

// IsSlotStoreFailure is the circuit breaker predicate for slot store calls.
func IsSlotStoreFailure(err error) bool {
	return !errors.Is(err, authrepo.ErrSlotEmpty) &&
		!errors.Is(err, authrepo.ErrSlotOwnerNotFound) &&
		!errors.Is(err, context.Canceled)
}

func storeUnavailable(err error, fallback commonerrors.DomainError) error {
	if errors.Is(err, commonerrors.ErrCircuitOpen) {
		return ErrServiceUnavailable.WithCause(err)
	}
	return fallback.WithCause(err)
}
