package token

import (
	"errors"
	"strings"
	"testing"
	"time"

	authdomain "github.com/AlibekovAA/session-auth/internal/auth/domain"
	"github.com/AlibekovAA/session-auth/internal/common/clock"
	commoncrypto "github.com/AlibekovAA/session-auth/internal/common/crypto"
)

var testConfig = Config{
	AccessSecret:  strings.Repeat("a", 32),
	RefreshSecret: strings.Repeat("r", 32),
	AccessTTL:     15 * time.Minute,
	RefreshTTL:    240 * time.Hour,
	Issuer:        "session-auth-test",
}

func newTestCodec(t *testing.T) (*Codec, *clock.MockClock) {
	t.Helper()
	mockClock := clock.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	codec, err := NewCodec(testConfig, commoncrypto.NewUUIDGenerator(), mockClock)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	return codec, mockClock
}

func TestCodec_IssueAndVerify(t *testing.T) {
	codec, mockClock := newTestCodec(t)

	for _, kind := range []authdomain.Kind{authdomain.KindAccess, authdomain.KindRefresh} {
		tok, err := codec.Issue(kind, "account-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if tok.Kind != kind || tok.SubjectID != "account-1" {
			t.Fatalf("unexpected token metadata: %+v", tok)
		}
		if want := mockClock.Now().Add(codec.TTL(kind)); !tok.ExpiresAt.Equal(want) {
			t.Fatalf("expected expiry %v, got %v", want, tok.ExpiresAt)
		}

		subject, err := codec.Verify(kind, tok.Value)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if subject != "account-1" {
			t.Fatalf("expected subject account-1, got %s", subject)
		}
	}
}

func TestCodec_TokensAreUniqueWithinOneSecond(t *testing.T) {
	codec, _ := newTestCodec(t)

	first, err := codec.Issue(authdomain.KindRefresh, "account-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	second, err := codec.Issue(authdomain.KindRefresh, "account-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if first.Value == second.Value {
		t.Fatal("expected distinct token strings for the same subject and instant")
	}
}

func TestCodec_RejectsWrongKind(t *testing.T) {
	codec, _ := newTestCodec(t)

	access, err := codec.Issue(authdomain.KindAccess, "account-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if _, err := codec.Verify(authdomain.KindRefresh, access.Value); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for access token used as refresh, got %v", err)
	}
}

func TestCodec_RejectsMalformed(t *testing.T) {
	codec, _ := newTestCodec(t)

	for _, raw := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := codec.Verify(authdomain.KindRefresh, raw); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected ErrInvalidToken for %q, got %v", raw, err)
		}
	}
}

func TestCodec_RejectsForeignSignature(t *testing.T) {
	codec, _ := newTestCodec(t)

	otherCfg := testConfig
	otherCfg.RefreshSecret = strings.Repeat("x", 32)
	other, err := NewCodec(otherCfg, commoncrypto.NewUUIDGenerator(), clock.NewRealClock())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	forged, err := other.Issue(authdomain.KindRefresh, "account-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if _, err := codec.Verify(authdomain.KindRefresh, forged.Value); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestCodec_Expired(t *testing.T) {
	codec, mockClock := newTestCodec(t)

	tok, err := codec.Issue(authdomain.KindRefresh, "account-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	mockClock.Advance(codec.TTL(authdomain.KindRefresh) + time.Second)

	if _, err := codec.Verify(authdomain.KindRefresh, tok.Value); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestCodec_ExpiredForgeryIsInvalid(t *testing.T) {
	codec, mockClock := newTestCodec(t)

	otherCfg := testConfig
	otherCfg.RefreshSecret = strings.Repeat("x", 32)
	other, err := NewCodec(otherCfg, commoncrypto.NewUUIDGenerator(), mockClock)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	forged, err := other.Issue(authdomain.KindRefresh, "account-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	mockClock.Advance(codec.TTL(authdomain.KindRefresh) + time.Second)

	if _, err := codec.Verify(authdomain.KindRefresh, forged.Value); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestNewCodec_ValidatesConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"short access secret", func(c *Config) { c.AccessSecret = "short" }},
		{"equal secrets", func(c *Config) { c.RefreshSecret = c.AccessSecret }},
		{"access ttl equals refresh ttl", func(c *Config) { c.AccessTTL = c.RefreshTTL }},
		{"zero access ttl", func(c *Config) { c.AccessTTL = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig
			tt.mutate(&cfg)
			if _, err := NewCodec(cfg, commoncrypto.NewUUIDGenerator(), clock.NewRealClock()); !errors.Is(err, ErrInvalidSetup) {
				t.Fatalf("expected ErrInvalidSetup, got %v", err)
			}
		})
	}
}
