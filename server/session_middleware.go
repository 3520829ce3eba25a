package server

import (
	"context"
	"net/http"

	"github.com/gatewaylabs/console/sessions"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeySession stores the browser session
	ContextKeySession ContextKey = "session"

	// sessionCookieName identifies the browser to the console
	sessionCookieName = "console_session"
)

// RequireSession ensures every request runs inside a browser session,
// creating one on first contact. The session cookie is the only state
// the browser itself holds.
func (s *Server) RequireSession() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			session := s.sessionFromRequest(r)
			if session == nil {
				var err error
				session, err = s.sessions.Create()
				if err != nil {
					s.log.Error().Err(err).Msg("failed to create browser session")
					http.Error(w, "internal server error", http.StatusInternalServerError)
					return
				}
				s.setSessionCookie(w, r, session)
			}

			ctx := context.WithValue(r.Context(), ContextKeySession, session)
			next(w, r.WithContext(ctx))
		}
	}
}

func (s *Server) sessionFromRequest(r *http.Request) *sessions.Session {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	session, err := s.sessions.Get(cookie.Value)
	if err != nil {
		return nil
	}
	return session
}

func (s *Server) setSessionCookie(w http.ResponseWriter, r *http.Request, session *sessions.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    session.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
	})
}

// sessionFromContext returns the session placed by RequireSession.
func sessionFromContext(ctx context.Context) *sessions.Session {
	session, _ := ctx.Value(ContextKeySession).(*sessions.Session)
	return session
}
