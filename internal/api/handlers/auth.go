package handlers

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hugh/agentops/internal/api/dto"
	"github.com/hugh/agentops/internal/api/middleware"
	"github.com/hugh/agentops/internal/auth"
	"github.com/hugh/agentops/pkg/crypto"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStateTTL    = 10 * time.Minute
)

var errMissingRefresh = errors.New("missing refresh token")

type CookieConfig struct {
	Name   string
	Domain string
	Secure bool
}

type AuthHandler struct {
	authService *auth.Service
	providers   map[auth.Provider]auth.OAuthProvider
	cookie      CookieConfig
	appURL      string
	logger      *slog.Logger
}

type AuthHandlerConfig struct {
	AuthService *auth.Service
	Providers   map[auth.Provider]auth.OAuthProvider
	Cookie      CookieConfig
	AppURL      string
	Logger      *slog.Logger
}

func NewAuthHandler(cfg AuthHandlerConfig) *AuthHandler {
	if cfg.Cookie.Name == "" {
		cfg.Cookie.Name = "rt"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &AuthHandler{
		authService: cfg.AuthService,
		providers:   cfg.Providers,
		cookie:      cfg.Cookie,
		appURL:      cfg.AppURL,
		logger:      cfg.Logger,
	}
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req dto.SignupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.authService.Signup(r.Context(), auth.SignupInput{
		Name:             req.Name,
		Email:            req.Email,
		Password:         req.Password,
		OrganizationName: req.OrganizationName,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.writeSession(w, http.StatusCreated, session)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.writeSession(w, http.StatusOK, session)
}

// Refresh rotates the refresh cookie and returns a new access token.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	raw, err := h.refreshCookie(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Missing refresh token"})
		return
	}

	session, err := h.authService.Refresh(r.Context(), raw)
	if err != nil {
		h.clearRefreshCookie(w)
		writeError(w, r, h.logger, err)
		return
	}

	h.setRefreshCookie(w, session.RefreshToken)
	writeJSON(w, http.StatusOK, dto.RefreshResponse{AccessToken: session.AccessToken})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	raw, _ := h.refreshCookie(r)
	if err := h.authService.Logout(r.Context(), middleware.GetUserID(r.Context()), raw); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.clearRefreshCookie(w)
	writeSuccess(w)
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.ForgotPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.authService.ForgotPassword(r.Context(), req.Email); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w)
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.ResetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.authService.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	// every refresh token is gone server side; drop ours too
	h.clearRefreshCookie(w)
	writeSuccess(w)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.Me(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewUserDTO(user))
}

// OAuthStart redirects to the provider named in the path.
func (h *AuthHandler) OAuthStart(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.providers[auth.Provider(chi.URLParam(r, "provider"))]
	if !ok {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Unknown OAuth provider"})
		return
	}

	state, err := crypto.RandomHex(16)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		Domain:   h.cookie.Domain,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(oauthStateTTL.Seconds()),
	})
	http.Redirect(w, r, provider.AuthCodeURL(state), http.StatusFound)
}

// OAuthCallback finishes the code flow and hands the access token to the
// frontend in the URL fragment.
func (h *AuthHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.providers[auth.Provider(chi.URLParam(r, "provider"))]
	if !ok {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Unknown OAuth provider"})
		return
	}

	q := r.URL.Query()
	cookie, err := r.Cookie(oauthStateCookie)
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Value: "", Path: "/", Domain: h.cookie.Domain, MaxAge: -1, HttpOnly: true})
	if err != nil || cookie.Value == "" || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(q.Get("state"))) != 1 {
		h.redirectOAuthError(w, r, "invalid_state")
		return
	}
	if e := q.Get("error"); e != "" {
		h.redirectOAuthError(w, r, e)
		return
	}

	profile, err := provider.Exchange(r.Context(), q.Get("code"))
	if err != nil {
		h.logger.WarnContext(r.Context(), "oauth exchange failed", "provider", provider.Name(), "error", err)
		h.redirectOAuthError(w, r, "exchange_failed")
		return
	}
	session, err := h.authService.OAuthLogin(r.Context(), *profile)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "oauth login failed", "provider", provider.Name(), "error", err)
		h.redirectOAuthError(w, r, "login_failed")
		return
	}

	h.setRefreshCookie(w, session.RefreshToken)
	http.Redirect(w, r, h.appURL+"/oauth/callback#accessToken="+url.QueryEscape(session.AccessToken), http.StatusFound)
}

// writeSession sets the refresh cookie and writes {user, accessToken}.
func (h *AuthHandler) writeSession(w http.ResponseWriter, status int, session *auth.Session) {
	h.setRefreshCookie(w, session.RefreshToken)
	writeJSON(w, status, dto.AuthResponse{
		User:        dto.NewUserDTO(session.User),
		AccessToken: session.AccessToken,
	})
}

func (h *AuthHandler) redirectOAuthError(w http.ResponseWriter, r *http.Request, reason string) {
	http.Redirect(w, r, h.appURL+"/oauth/callback#error="+url.QueryEscape(reason), http.StatusFound)
}

func (h *AuthHandler) refreshCookie(r *http.Request) (string, error) {
	c, err := r.Cookie(h.cookie.Name)
	if err != nil || c.Value == "" {
		return "", errMissingRefresh
	}
	return c.Value, nil
}

func (h *AuthHandler) setRefreshCookie(w http.ResponseWriter, raw string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    raw,
		Path:     "/",
		Domain:   h.cookie.Domain,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.authService.RefreshTTL().Seconds()),
	})
}

func (h *AuthHandler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		Domain:   h.cookie.Domain,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
