package service

import (
	"github.com/AlibekovAA/session-auth/internal/observability/metrics"
)

func incrementLoginAttempts(outcome string) {
	metrics.LoginAttemptsTotal.WithLabelValues(outcome).Inc()
}

func incrementTokenPairIssued() {
	metrics.AccessTokensIssued.Inc()
	metrics.RefreshTokensIssued.Inc()
}

func incrementRefreshTokensRotated() {
	metrics.RefreshTokensRotated.Inc()
}

func incrementRefreshTokenReuse() {
	metrics.RefreshTokenReuseDetected.Inc()
}

func incrementRefreshTokensExpired() {
	metrics.RefreshTokensExpired.Inc()
}

func incrementRefreshTokensInvalid() {
	metrics.RefreshTokensInvalid.Inc()
}

func incrementLogouts() {
	metrics.LogoutsTotal.Inc()
}

func incrementSlotErrors(operation string) {
	metrics.SessionSlotErrors.WithLabelValues(operation).Inc()
}
