package server

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/gatewaylabs/console/server/signinstate"
)

// generateRandomString creates a random base64url string
func generateRandomString(length int) string {
	b := make([]byte, length)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// generateCodeChallenge creates a PKCE code challenge from a verifier
func generateCodeChallenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// SignInHandler starts the sign-in detour: it parks the PKCE verifier,
// nonce, and the caller's return path, then hands the browser to the
// control plane's authorization endpoint.
func (s *Server) SignInHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := sessionFromContext(r.Context())

		oidcConfig, err := s.getOidcConfig(r.Context())
		if err != nil {
			s.log.Error().Err(err).Msg("sign-in: provider discovery failed")
			http.Error(w, "sign-in is unavailable", http.StatusBadGateway)
			return
		}

		// An alternate sign-in path must never reuse a stale credential.
		session.Broker.Clear()

		state := generateRandomString(32)
		verifier := generateRandomString(32)
		nonce := generateRandomString(16)

		returnURL := r.URL.Query().Get("return_to")
		if !isLocalPath(returnURL) {
			returnURL = RouteHome
		}

		if err := s.signInState.Upsert(state, &signinstate.State{
			SessionID:    session.ID,
			CodeVerifier: verifier,
			Nonce:        nonce,
			ReturnURL:    returnURL,
			CreatedAt:    time.Now(),
		}); err != nil {
			s.log.Error().Err(err).Msg("sign-in: failed to park state")
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		authURL := oidcConfig.OAuth2Config.AuthCodeURL(
			state,
			oidc.Nonce(nonce),
			oauth2.SetAuthURLParam("code_challenge", generateCodeChallenge(verifier)),
			oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		)
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// SignInCallbackHandler finishes the detour. The code exchange rides the
// session's cookie jar so the control plane's refresh cookie lands where
// later renewals will find it; the access token seeds the broker.
func (s *Server) SignInCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := sessionFromContext(r.Context())

		state := r.FormValue("state")
		code := r.FormValue("code")
		errorParam := r.FormValue("error")

		if errorParam != "" {
			http.Error(w, "Authorization failed: "+errorParam, http.StatusBadRequest)
			return
		}
		if code == "" || state == "" {
			http.Error(w, "Missing code or state parameter", http.StatusBadRequest)
			return
		}

		signInState, err := s.signInState.Get(state)
		if err != nil {
			http.Error(w, "Invalid state parameter", http.StatusBadRequest)
			return
		}
		// Clean up state after use
		if err := s.signInState.Delete(state); err != nil {
			http.Error(w, "Invalid state parameter", http.StatusInternalServerError)
			return
		}
		if signInState.SessionID != session.ID {
			http.Error(w, "Sign-in state belongs to another session", http.StatusBadRequest)
			return
		}

		oidcConfig, err := s.getOidcConfig(r.Context())
		if err != nil {
			http.Error(w, "sign-in is unavailable", http.StatusBadGateway)
			return
		}

		// Exchange through the session's cookie jar.
		exchangeCtx := oidc.ClientContext(r.Context(), session.Client.HTTPClient())
		oauth2Token, err := oidcConfig.OAuth2Config.Exchange(
			exchangeCtx,
			code,
			oauth2.SetAuthURLParam("code_verifier", signInState.CodeVerifier),
		)
		if err != nil {
			s.log.Error().Err(err).Msg("sign-in: token exchange failed")
			http.Error(w, "Token exchange failed", http.StatusBadGateway)
			return
		}

		rawIDToken, ok := oauth2Token.Extra("id_token").(string)
		if !ok {
			http.Error(w, "No ID token in response", http.StatusBadGateway)
			return
		}

		idToken, err := oidcConfig.OidcVerifier.Verify(r.Context(), rawIDToken)
		if err != nil {
			http.Error(w, "ID token verification failed", http.StatusUnauthorized)
			return
		}

		var claims struct {
			Nonce string `json:"nonce"`
			Email string `json:"email"`
		}
		if err := idToken.Claims(&claims); err != nil {
			http.Error(w, "Failed to extract claims", http.StatusBadGateway)
			return
		}
		// Validate nonce to prevent replay attacks
		if claims.Nonce != signInState.Nonce {
			http.Error(w, "Invalid nonce", http.StatusUnauthorized)
			return
		}

		session.Broker.SetToken(oauth2Token.AccessToken)
		s.log.Info().Str("email", claims.Email).Msg("sign-in complete")

		// Resume where the detour started, e.g. the invitation page.
		http.Redirect(w, r, signInState.ReturnURL, http.StatusSeeOther)
	}
}

// SignOutHandler drops the credential and the browser session.
func (s *Server) SignOutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := sessionFromContext(r.Context())
		session.Broker.Clear()
		if err := s.sessions.Delete(session.ID); err != nil {
			s.log.Warn().Err(err).Msg("sign-out: failed to delete session")
		}
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookieName,
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			MaxAge:   -1,
		})
		http.Redirect(w, r, RouteHome, http.StatusSeeOther)
	}
}

// isLocalPath rejects return targets that would leave the console.
func isLocalPath(path string) bool {
	return strings.HasPrefix(path, "/") && !strings.HasPrefix(path, "//")
}
