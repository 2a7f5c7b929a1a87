package service

import (
	"context"
	"fmt"

	authdomain "github.com/AlibekovAA/session-auth/internal/auth/domain"
	commonerrors "github.com/AlibekovAA/session-auth/internal/common/errors"
	"github.com/AlibekovAA/session-auth/internal/common/logger"
)

type TokenCodec interface {
	Issue(kind authdomain.Kind, subjectID string) (authdomain.Token, error)
	Verify(kind authdomain.Kind, raw string) (string, error)
}

// TokenIssuer mints access/refresh pairs and records the refresh half in
// the account's session slot. A pair is never returned unless the slot
// write succeeded.
type TokenIssuer struct {
	codec TokenCodec
	slots *SessionSlotManager
	log   *logger.Logger
}

func NewTokenIssuer(codec TokenCodec, slots *SessionSlotManager, log *logger.Logger) *TokenIssuer {
	return &TokenIssuer{codec: codec, slots: slots, log: log}
}

func (ti *TokenIssuer) mint(accountID string) (authdomain.Pair, error) {
	access, err := ti.codec.Issue(authdomain.KindAccess, accountID)
	if err != nil {
		return authdomain.Pair{}, commonerrors.ErrInternalError.WithCause(fmt.Errorf("issue access token: %w", err))
	}
	refresh, err := ti.codec.Issue(authdomain.KindRefresh, accountID)
	if err != nil {
		return authdomain.Pair{}, commonerrors.ErrInternalError.WithCause(fmt.Errorf("issue refresh token: %w", err))
	}
	return authdomain.Pair{Access: access, Refresh: refresh}, nil
}

func (ti *TokenIssuer) IssuePair(ctx context.Context, accountID string) (authdomain.Pair, error) {
	pair, err := ti.mint(accountID)
	if err != nil {
		return authdomain.Pair{}, err
	}

	if err := ti.slots.Store(ctx, accountID, pair.Refresh); err != nil {
		ti.log.WithFields(ctx, logger.Fields{
			"account_id": accountID,
			"action":     "session_slot_store_failed",
		}).Errorf("failed to store refresh token: %v", err)
		return authdomain.Pair{}, storeUnavailable(err, ErrSessionPersist)
	}

	incrementTokenPairIssued()
	return pair, nil
}

// RotatePair mints a new pair and swaps it into the slot only if presented
// is still the current refresh token.
func (ti *TokenIssuer) RotatePair(ctx context.Context, accountID, presented string) (authdomain.Pair, error) {
	pair, err := ti.mint(accountID)
	if err != nil {
		return authdomain.Pair{}, err
	}

	swapped, err := ti.slots.Rotate(ctx, accountID, presented, pair.Refresh)
	if err != nil {
		ti.log.WithFields(ctx, logger.Fields{
			"account_id": accountID,
			"action":     "session_slot_rotate_failed",
		}).Errorf("failed to rotate refresh token: %v", err)
		return authdomain.Pair{}, storeUnavailable(err, ErrSessionPersist)
	}
	if !swapped {
		return authdomain.Pair{}, ErrTokenReuseOrStale
	}

	incrementTokenPairIssued()
	incrementRefreshTokensRotated()
	return pair, nil
}
