package service

import (
	"context"
	"errors"
	"strings"
	"time"

	accountdomain "github.com/AlibekovAA/session-auth/internal/account/domain"
	accountrepo "github.com/AlibekovAA/session-auth/internal/account/repository"
	authdomain "github.com/AlibekovAA/session-auth/internal/auth/domain"
	"github.com/AlibekovAA/session-auth/internal/auth/token"
	commonerrors "github.com/AlibekovAA/session-auth/internal/common/errors"
	"github.com/AlibekovAA/session-auth/internal/common/logger"
)

type AuthService struct {
	accounts        accountrepo.Repository
	accountsBreaker CircuitBreaker
	verifier        *CredentialVerifier
	codec           TokenCodec
	issuer          *TokenIssuer
	slots           *SessionSlotManager
	log             *logger.Logger
}

func NewAuthService(
	accounts accountrepo.Repository,
	accountsBreaker CircuitBreaker,
	verifier *CredentialVerifier,
	codec TokenCodec,
	slots *SessionSlotManager,
	log *logger.Logger,
) *AuthService {
	return &AuthService{
		accounts:        accounts,
		accountsBreaker: accountsBreaker,
		verifier:        verifier,
		codec:           codec,
		issuer:          NewTokenIssuer(codec, slots, log),
		slots:           slots,
		log:             log,
	}
}

type LoginInput struct {
	Identifier string
	Password   string
}

type AuthResult struct {
	AccountID        string
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

func resultFromPair(accountID string, pair authdomain.Pair) AuthResult {
	return AuthResult{
		AccountID:        accountID,
		AccessToken:      pair.Access.Value,
		RefreshToken:     pair.Refresh.Value,
		AccessExpiresAt:  pair.Access.ExpiresAt,
		RefreshExpiresAt: pair.Refresh.ExpiresAt,
	}
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	identifier := accountdomain.NormalizeIdentifier(input.Identifier)

	s.log.WithFields(ctx, logger.Fields{
		"identifier": maskIdentifier(identifier),
		"action":     "login_attempt",
	}).Debug("login attempt")

	if identifier == "" {
		incrementLoginAttempts("rejected")
		return AuthResult{}, ErrIdentifierRequired
	}

	account, err := s.findAccount(ctx, func(ctx context.Context) (accountdomain.Account, error) {
		return s.accounts.FindByIdentifier(ctx, identifier)
	})
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			s.verifier.Burn(input.Password)
			s.log.WithFields(ctx, logger.Fields{
				"identifier": maskIdentifier(identifier),
				"action":     "login_account_not_found",
			}).Warn("login failed: account not found")
			incrementLoginAttempts("invalid_credentials")
			return AuthResult{}, ErrInvalidCredentials
		}
		s.log.WithFields(ctx, logger.Fields{
			"identifier": maskIdentifier(identifier),
			"action":     "login_account_lookup_failed",
		}).Errorf("login failed: account lookup error: %v", err)
		incrementLoginAttempts("error")
		return AuthResult{}, err
	}

	if !s.verifier.Verify(account, input.Password) {
		s.log.WithFields(ctx, logger.Fields{
			"account_id": string(account.ID),
			"action":     "login_invalid_password",
		}).Warn("login failed: invalid password")
		incrementLoginAttempts("invalid_credentials")
		return AuthResult{}, ErrInvalidCredentials
	}

	result, err := s.IssuePair(ctx, string(account.ID))
	if err != nil {
		incrementLoginAttempts("error")
		return AuthResult{}, err
	}

	s.log.WithFields(ctx, logger.Fields{
		"account_id": string(account.ID),
		"action":     "login_success",
	}).Info("login success")
	incrementLoginAttempts("success")

	return result, nil
}

// IssuePair mints a fresh pair for an already authenticated account and
// makes its refresh token the only valid one.
func (s *AuthService) IssuePair(ctx context.Context, accountID string) (AuthResult, error) {
	pair, err := s.issuer.IssuePair(ctx, accountID)
	if err != nil {
		return AuthResult{}, err
	}
	return resultFromPair(accountID, pair), nil
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (AuthResult, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		s.log.WithFields(ctx, logger.Fields{
			"action": "refresh_missing_token",
		}).Warn("refresh failed: token missing")
		return AuthResult{}, ErrMissingToken
	}

	accountID, err := s.codec.Verify(authdomain.KindRefresh, refreshToken)
	if err != nil {
		if errors.Is(err, token.ErrExpiredToken) {
			incrementRefreshTokensExpired()
			s.log.WithFields(ctx, logger.Fields{
				"action": "refresh_token_expired",
			}).Info("refresh failed: token expired")
			return AuthResult{}, ErrExpiredToken
		}
		incrementRefreshTokensInvalid()
		s.log.WithFields(ctx, logger.Fields{
			"action": "refresh_token_invalid",
		}).Warnf("refresh failed: %v", err)
		return AuthResult{}, ErrInvalidToken
	}

	if _, err := s.findAccount(ctx, func(ctx context.Context) (accountdomain.Account, error) {
		return s.accounts.FindByID(ctx, accountdomain.ID(accountID))
	}); err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"account_id": accountID,
			"action":     "refresh_account_lookup_failed",
		}).Warnf("refresh failed: %v", err)
		return AuthResult{}, err
	}

	current, err := s.slots.Matches(ctx, accountID, refreshToken)
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"account_id": accountID,
			"action":     "refresh_slot_load_failed",
		}).Errorf("refresh failed: %v", err)
		return AuthResult{}, storeUnavailable(err, ErrSessionPersist)
	}
	if !current {
		s.reportReuse(ctx, accountID)
		return AuthResult{}, ErrTokenReuseOrStale
	}

	pair, err := s.issuer.RotatePair(ctx, accountID, refreshToken)
	if err != nil {
		if errors.Is(err, ErrTokenReuseOrStale) {
			s.reportReuse(ctx, accountID)
		}
		return AuthResult{}, err
	}

	s.log.WithFields(ctx, logger.Fields{
		"account_id": accountID,
		"action":     "refresh_success",
	}).Info("refresh token rotated")

	return resultFromPair(accountID, pair), nil
}

// Logout empties the account's slot. Calling it again is harmless.
func (s *AuthService) Logout(ctx context.Context, accountID string) error {
	if err := s.slots.Clear(ctx, accountID); err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"account_id": accountID,
			"action":     "logout_failed",
		}).Errorf("logout failed: %v", err)
		return storeUnavailable(err, ErrSessionPersist)
	}

	incrementLogouts()
	s.log.WithFields(ctx, logger.Fields{
		"account_id": accountID,
		"action":     "logout_success",
	}).Info("logout success")
	return nil
}

func (s *AuthService) reportReuse(ctx context.Context, accountID string) {
	incrementRefreshTokenReuse()
	s.log.WithFields(ctx, logger.Fields{
		"account_id": accountID,
		"action":     "refresh_token_reuse_detected",
	}).Warn("refresh token is not the current one for this account")
}

func (s *AuthService) findAccount(
	ctx context.Context,
	lookup func(context.Context) (accountdomain.Account, error),
) (accountdomain.Account, error) {
	var account accountdomain.Account
	err := s.accountsBreaker.Call(ctx, func(ctx context.Context) error {
		var err error
		account, err = lookup(ctx)
		return err
	})
	switch {
	case err == nil:
		return account, nil
	case errors.Is(err, accountrepo.ErrAccountNotFound):
		return accountdomain.Account{}, ErrAccountNotFound
	case errors.Is(err, commonerrors.ErrCircuitOpen):
		return accountdomain.Account{}, ErrServiceUnavailable.WithCause(err)
	default:
		return accountdomain.Account{}, commonerrors.ErrInternalError.WithCause(err)
	}
}

// maskIdentifier keeps enough of a username or email to correlate log
// lines without writing the full value.
func maskIdentifier(identifier string) string {
	local, domain, isEmail := strings.Cut(identifier, "@")
	if local == "" {
		return "***"
	}
	masked := string([]rune(local)[:1]) + "***"
	if isEmail {
		masked += "@" + domain
	}
	return masked
}
