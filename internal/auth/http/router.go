package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AlibekovAA/session-auth/internal/auth/service"
	"github.com/AlibekovAA/session-auth/internal/common/constants"
	commonhttp "github.com/AlibekovAA/session-auth/internal/common/http"
	"github.com/AlibekovAA/session-auth/internal/common/jwtverify"
	"github.com/AlibekovAA/session-auth/internal/common/logger"
)

const refreshCookiePath = "/api/auth"

// AuthProtocol is the part of service.AuthService the transport needs.
type AuthProtocol interface {
	Login(ctx context.Context, input service.LoginInput) (service.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (service.AuthResult, error)
	Logout(ctx context.Context, accountID string) error
}

type Options struct {
	CookieSecure   bool
	RequestTimeout time.Duration
}

type loginRequest struct {
	Username   string `json:"username" validate:"omitempty,max=255"`
	Email      string `json:"email" validate:"omitempty,email,max=255"`
	Identifier string `json:"identifier" validate:"omitempty,max=255"`
	Password   string `json:"password" validate:"max=1024"`
}

func (r loginRequest) identifier() string {
	for _, v := range []string{r.Identifier, r.Username, r.Email} {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

type refreshRequest struct {
	RefreshToken      string `json:"refresh_token" validate:"omitempty,max=4096"`
	RefreshTokenCamel string `json:"refreshToken" validate:"omitempty,max=4096"`
}

type tokenResponse struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type Handler struct {
	auth AuthProtocol
	opts Options
	log  *logger.Logger
}

func NewHandler(auth AuthProtocol, verifier jwtverify.AccessVerifier, opts Options, log *logger.Logger) http.Handler {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = constants.DefaultAuthRequestTimeout
	}

	h := &Handler{auth: auth, opts: opts, log: log}
	post := commonhttp.RequireMethod(http.MethodPost)
	timeout := commonhttp.WithTimeout(opts.RequestTimeout)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", post(timeout(h.login)))
	mux.HandleFunc("/api/auth/refresh", post(timeout(h.refresh)))
	mux.Handle("/api/auth/logout", post(jwtverify.Middleware(verifier, log)(timeout(h.logout)).ServeHTTP))
	return mux
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := commonhttp.DecodeJSON(r, &req); err != nil {
		h.log.WithFields(r.Context(), logger.Fields{
			"ip":     commonhttp.GetClientIP(r),
			"action": "login_invalid_json",
		}).Warnf("login failed: invalid json: %v", err)
		commonhttp.WriteErrorEnvelope(w, http.StatusBadRequest, commonhttp.CodeInvalidJSON, "invalid json", nil, commonhttp.TraceIDFromContext(r.Context()))
		return
	}
	if !h.validate(w, r, req) {
		return
	}

	result, err := h.auth.Login(r.Context(), service.LoginInput{
		Identifier: req.identifier(),
		Password:   req.Password,
	})
	if err != nil {
		h.logFailure(r, "login_failed", err)
		commonhttp.HandleError(w, r, err, h.log)
		return
	}

	h.writeTokens(w, result)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	token := ""
	if cookie, err := r.Cookie(constants.RefreshTokenCookieName); err == nil {
		token = cookie.Value
	}

	if token == "" {
		var req refreshRequest
		if err := commonhttp.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
			h.log.WithFields(r.Context(), logger.Fields{
				"ip":     commonhttp.GetClientIP(r),
				"action": "refresh_invalid_json",
			}).Warnf("refresh failed: invalid json: %v", err)
			commonhttp.WriteErrorEnvelope(w, http.StatusBadRequest, commonhttp.CodeInvalidJSON, "invalid json", nil, commonhttp.TraceIDFromContext(r.Context()))
			return
		}
		if !h.validate(w, r, req) {
			return
		}
		token = req.RefreshToken
		if token == "" {
			token = req.RefreshTokenCamel
		}
	}

	result, err := h.auth.Refresh(r.Context(), token)
	if err != nil {
		h.logFailure(r, "refresh_failed", err)
		if forcesReauth(err) {
			h.clearCookies(w)
		}
		commonhttp.HandleError(w, r, err, h.log)
		return
	}

	h.writeTokens(w, result)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := jwtverify.FromContext(r.Context())
	if !ok {
		commonhttp.WriteErrorEnvelope(w, http.StatusUnauthorized, commonhttp.CodeMissingAuthorization, "missing or invalid authorization", nil, commonhttp.TraceIDFromContext(r.Context()))
		return
	}

	if err := h.auth.Logout(r.Context(), claims.AccountID); err != nil {
		commonhttp.HandleError(w, r, err, h.log)
		return
	}

	h.clearCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) logFailure(r *http.Request, action string, err error) {
	h.log.WithFields(r.Context(), logger.Fields{
		"ip":     commonhttp.GetClientIP(r),
		"path":   r.URL.Path,
		"action": action,
	}).Infof("request rejected: %v", err)
}

func (h *Handler) validate(w http.ResponseWriter, r *http.Request, req any) bool {
	details, err := commonhttp.ValidateStruct(req)
	if err == nil {
		return true
	}
	commonhttp.WriteErrorEnvelope(w, http.StatusBadRequest, commonhttp.CodeValidationFailed, "validation failed", details, commonhttp.TraceIDFromContext(r.Context()))
	return false
}

// forcesReauth reports whether a refresh failure leaves the client with
// nothing usable, so its cookies should go too.
func forcesReauth(err error) bool {
	return errors.Is(err, service.ErrExpiredToken) ||
		errors.Is(err, service.ErrInvalidToken) ||
		errors.Is(err, service.ErrTokenReuseOrStale) ||
		errors.Is(err, service.ErrAccountNotFound)
}

func (h *Handler) writeTokens(w http.ResponseWriter, result service.AuthResult) {
	h.setCookie(w, constants.AccessTokenCookieName, "/", result.AccessToken, result.AccessExpiresAt)
	h.setCookie(w, constants.RefreshTokenCookieName, refreshCookiePath, result.RefreshToken, result.RefreshExpiresAt)

	commonhttp.WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken:      result.AccessToken,
		RefreshToken:     result.RefreshToken,
		AccessExpiresAt:  result.AccessExpiresAt,
		RefreshExpiresAt: result.RefreshExpiresAt,
	})
}

func (h *Handler) setCookie(w http.ResponseWriter, name, path, value string, expiresAt time.Time) {
	if value == "" {
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  expiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   h.opts.CookieSecure,
	})
}

func (h *Handler) clearCookies(w http.ResponseWriter) {
	for name, path := range map[string]string{
		constants.AccessTokenCookieName:  "/",
		constants.RefreshTokenCookieName: refreshCookiePath,
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     path,
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
			Secure:   h.opts.CookieSecure,
		})
	}
}
