package domain

import "time"

// Kind distinguishes the two token families. Each kind has its own
// signing secret and lifetime.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

func (k Kind) Valid() bool {
	return k == KindAccess || k == KindRefresh
}

type Token struct {
	Kind      Kind
	Value     string
	SubjectID string
	ExpiresAt time.Time
}

type Pair struct {
	Access  Token
	Refresh Token
}

// Slot is the persisted form of an account's single active refresh token.
// Only a digest of the token is stored.
type Slot struct {
	TokenHash string
	ExpiresAt time.Time
}

func (s Slot) Empty() bool {
	return s.TokenHash == ""
}

func (s Slot) ExpiredAt(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
