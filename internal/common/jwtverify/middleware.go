package jwtverify

import (
	"context"
	"net/http"
	"strings"

	"github.com/AlibekovAA/session-auth/internal/common/constants"
	commonhttp "github.com/AlibekovAA/session-auth/internal/common/http"
	"github.com/AlibekovAA/session-auth/internal/common/logger"
	"github.com/AlibekovAA/session-auth/internal/observability/metrics"
)

// AccessVerifier validates a raw access token and returns its subject.
type AccessVerifier interface {
	VerifyAccess(raw string) (string, error)
}

type Claims struct {
	AccountID string
}

type contextKey string

const claimsKey contextKey = "jwt_claims"

// Middleware admits requests carrying a valid access token, taken from the
// Authorization bearer header or, failing that, the access token cookie.
func Middleware(verifier AccessVerifier, log *logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			traceID := commonhttp.TraceIDFromContext(ctx)

			raw := extractToken(r)
			if raw == "" {
				log.WithFields(ctx, logger.Fields{
					"path":   r.URL.Path,
					"action": "jwt_missing",
				}).Warn("jwt auth failed: missing access token")
				commonhttp.WriteErrorEnvelope(w, http.StatusUnauthorized, commonhttp.CodeMissingAuthorization, "missing or invalid authorization", nil, traceID)
				return
			}

			metrics.JWTValidationsTotal.Inc()
			accountID, err := verifier.VerifyAccess(raw)
			if err != nil {
				metrics.JWTValidationsFailed.Inc()
				log.WithFields(ctx, logger.Fields{
					"path":   r.URL.Path,
					"action": "jwt_invalid",
				}).Warnf("jwt auth failed: %v", err)
				commonhttp.WriteErrorEnvelope(w, http.StatusUnauthorized, commonhttp.CodeInvalidToken, "invalid token", nil, traceID)
				return
			}

			if err := commonhttp.ValidateUUID(accountID); err != nil {
				metrics.JWTValidationsFailed.Inc()
				log.WithFields(ctx, logger.Fields{
					"path":   r.URL.Path,
					"action": "jwt_invalid_subject",
				}).Warnf("jwt auth failed: subject is not a valid id: %v", err)
				commonhttp.WriteErrorEnvelope(w, http.StatusUnauthorized, commonhttp.CodeInvalidToken, "invalid token", nil, traceID)
				return
			}

			ctx = context.WithValue(ctx, claimsKey, Claims{AccountID: accountID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func FromContext(ctx context.Context) (Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(Claims)
	return claims, ok
}

func extractToken(r *http.Request) string {
	if raw := r.Header.Get("Authorization"); strings.HasPrefix(raw, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))
	}
	if cookie, err := r.Cookie(constants.AccessTokenCookieName); err == nil {
		return cookie.Value
	}
	return ""
}
