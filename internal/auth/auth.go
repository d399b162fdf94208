package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc"
	"golang.org/x/oauth2"

	"flowstore/backend/internal/config"
)

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

type contextKey string

// userIDKey carries the authenticated principal id through the request
// context.
const userIDKey contextKey = "user_id"

// UserID extracts the authenticated principal id from a request context.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// WithUserID returns a context carrying the principal id. Exported for
// handler tests.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// Auth performs OpenID Connect authentication against the configured
// identity provider. The store endpoints only need an authenticated
// principal with an id; everything beyond that is the IdP's business.
type Auth struct {
	oauth2Config *oauth2.Config
	verifier     *oidc.IDTokenVerifier
	apiVerifier  *oidc.IDTokenVerifier
	logger       Logger
	bypass       bool
}

// New creates a new Auth object using values from the application
// configuration. An empty issuer switches to local dev bypass with a
// fixed principal.
func New(ctx context.Context, cfg *config.Config, logger Logger) (*Auth, error) {
	if cfg.Auth.Issuer == "" {
		if logger != nil {
			logger.Info("auth: no issuer configured, running with dev bypass principal")
		}
		return &Auth{logger: logger, bypass: true}, nil
	}

	if cfg.Auth.ClientID == "" || cfg.Auth.ClientSecret == "" || cfg.Auth.RedirectURL == "" {
		return nil, errors.New("auth configuration is incomplete")
	}

	provider, err := oidc.NewProvider(ctx, cfg.Auth.Issuer)
	if err != nil {
		return nil, err
	}

	oauth2Config := &oauth2.Config{
		ClientID:     cfg.Auth.ClientID,
		ClientSecret: cfg.Auth.ClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  cfg.Auth.RedirectURL,
		Scopes:       AllScopes,
	}

	return &Auth{
		oauth2Config: oauth2Config,
		verifier:     provider.Verifier(&oidc.Config{ClientID: cfg.Auth.ClientID}),
		// Access tokens often carry a different audience than the
		// client id, so the bearer verifier skips that check.
		apiVerifier: provider.Verifier(&oidc.Config{SkipClientIDCheck: true}),
		logger:      logger,
	}, nil
}

// LoginHandler initiates the OAuth2 authorization code flow. A random
// state value is stored in a cookie to mitigate CSRF attacks.
func (a *Auth) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if a.bypass {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	state, err := generateState()
	if err != nil {
		http.Error(w, "failed to generate state", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "oauthstate",
		Value:    state,
		HttpOnly: true,
		Path:     "/",
	})

	http.Redirect(w, r, a.oauth2Config.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// CallbackHandler handles the redirect back from the IdP: verifies the
// state parameter, exchanges the code for tokens, validates the ID
// token, and sets a session cookie containing the raw ID token.
func (a *Auth) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	if a.bypass {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	cookie, err := r.Cookie("oauthstate")
	if err != nil || r.URL.Query().Get("state") != cookie.Value {
		http.Error(w, "invalid state", http.StatusBadRequest)
		return
	}

	token, err := a.oauth2Config.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		http.Error(w, "token exchange failed", http.StatusInternalServerError)
		return
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		http.Error(w, "no id_token in token response", http.StatusInternalServerError)
		return
	}

	if _, err := a.verifier.Verify(r.Context(), rawIDToken); err != nil {
		http.Error(w, "failed to verify id token", http.StatusUnauthorized)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "id_token",
		Value:    rawIDToken,
		HttpOnly: true,
		Path:     "/",
	})

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// RequireAuth is middleware that ensures a valid bearer token or ID
// token cookie is present and injects the principal id into the request
// context.
func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.bypass {
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), "dev@localhost")))
			return
		}

		var token *oidc.IDToken
		var err error

		// Authorization header first, for API clients
		if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
			rawToken := strings.TrimPrefix(authHeader, "Bearer ")
			token, err = a.apiVerifier.Verify(r.Context(), rawToken)
			if err != nil {
				http.Error(w, "invalid token: "+err.Error(), http.StatusUnauthorized)
				return
			}
		} else {
			cookie, cookieErr := r.Cookie("id_token")
			if cookieErr != nil {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			token, err = a.verifier.Verify(r.Context(), cookie.Value)
			if err != nil {
				http.Error(w, "invalid token: "+err.Error(), http.StatusUnauthorized)
				return
			}
		}

		var claims struct {
			Subject string `json:"sub"`
			Email   string `json:"email"`
		}
		if err := token.Claims(&claims); err != nil {
			http.Error(w, "failed to parse token claims", http.StatusUnauthorized)
			return
		}
		userID := claims.Subject
		if userID == "" {
			userID = claims.Email
		}
		if userID == "" {
			http.Error(w, "token carries no principal id", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

// LogoutHandler clears the session cookie and redirects to the home page.
func (a *Auth) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:   "id_token",
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
