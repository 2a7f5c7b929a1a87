package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	authdomain "github.com/AlibekovAA/session-auth/internal/auth/domain"
	"github.com/AlibekovAA/session-auth/internal/common/clock"
	"github.com/AlibekovAA/session-auth/internal/common/constants"
	commoncrypto "github.com/AlibekovAA/session-auth/internal/common/crypto"
)

var (
	ErrInvalidToken = errors.New("token is not valid")
	ErrExpiredToken = errors.New("token has expired")
	ErrInvalidKind  = errors.New("unknown token kind")
	ErrInvalidSetup = errors.New("invalid token codec configuration")
)

type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

type claims struct {
	jwt.RegisteredClaims
	Kind authdomain.Kind `json:"typ"`
}

type kindParams struct {
	secret []byte
	ttl    time.Duration
}

// Codec signs and verifies HS256 tokens. Each kind has its own secret so a
// token of one kind never verifies as the other.
type Codec struct {
	params      map[authdomain.Kind]kindParams
	issuer      string
	idGenerator commoncrypto.IDGenerator
	clock       clock.Clock
}

func NewCodec(cfg Config, idGenerator commoncrypto.IDGenerator, clk clock.Clock) (*Codec, error) {
	if len(cfg.AccessSecret) < constants.JWTSecretMinLength || len(cfg.RefreshSecret) < constants.JWTSecretMinLength {
		return nil, fmt.Errorf("%w: secrets must be at least %d bytes", ErrInvalidSetup, constants.JWTSecretMinLength)
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, fmt.Errorf("%w: access and refresh secrets must differ", ErrInvalidSetup)
	}
	if cfg.AccessTTL <= 0 || cfg.AccessTTL >= cfg.RefreshTTL {
		return nil, fmt.Errorf("%w: access ttl must be positive and shorter than refresh ttl", ErrInvalidSetup)
	}

	return &Codec{
		params: map[authdomain.Kind]kindParams{
			authdomain.KindAccess:  {secret: []byte(cfg.AccessSecret), ttl: cfg.AccessTTL},
			authdomain.KindRefresh: {secret: []byte(cfg.RefreshSecret), ttl: cfg.RefreshTTL},
		},
		issuer:      cfg.Issuer,
		idGenerator: idGenerator,
		clock:       clk,
	}, nil
}

func (c *Codec) TTL(kind authdomain.Kind) time.Duration {
	return c.params[kind].ttl
}

func (c *Codec) Issue(kind authdomain.Kind, subjectID string) (authdomain.Token, error) {
	p, ok := c.params[kind]
	if !ok {
		return authdomain.Token{}, ErrInvalidKind
	}
	if subjectID == "" {
		return authdomain.Token{}, fmt.Errorf("%w: empty subject", ErrInvalidToken)
	}

	jti, err := c.idGenerator.NewID()
	if err != nil {
		return authdomain.Token{}, fmt.Errorf("generate token id: %w", err)
	}

	now := c.clock.Now()
	expiresAt := jwt.NewNumericDate(now.Add(p.ttl))
	tokenClaims := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   subjectID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: expiresAt,
		},
		Kind: kind,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims).SignedString(p.secret)
	if err != nil {
		return authdomain.Token{}, fmt.Errorf("sign %s token: %w", kind, err)
	}

	return authdomain.Token{
		Kind:      kind,
		Value:     signed,
		SubjectID: subjectID,
		ExpiresAt: expiresAt.Time,
	}, nil
}

// Verify returns the subject of a token of the given kind. Signature is
// checked before expiry, so a forged token that is also expired reports
// ErrInvalidToken.
func (c *Codec) Verify(kind authdomain.Kind, raw string) (string, error) {
	p, ok := c.params[kind]
	if !ok {
		return "", ErrInvalidKind
	}
	if raw == "" {
		return "", ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.clock.Now),
		jwt.WithExpirationRequired(),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	var parsed claims
	_, err := jwt.NewParser(opts...).ParseWithClaims(raw, &parsed, func(*jwt.Token) (any, error) {
		return p.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if parsed.Kind != kind {
		return "", fmt.Errorf("%w: expected %s token, got %q", ErrInvalidToken, kind, parsed.Kind)
	}
	if parsed.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return parsed.Subject, nil
}

func (c *Codec) VerifyAccess(raw string) (string, error) {
	return c.Verify(authdomain.KindAccess, raw)
}
