package domain

import (
	"strings"
	"time"
)

type ID string

type Account struct {
	ID           ID
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// NormalizeIdentifier lower-cases and trims a username or email so that
// lookups are case-insensitive.
func NormalizeIdentifier(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
