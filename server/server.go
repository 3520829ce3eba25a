// Package server hosts the console's session core behind HTTP: one
// server-side session per browser, a sign-in boundary against the
// gateway control plane, and the invitation workflow endpoints. Screens
// are rendered elsewhere; everything here speaks JSON or redirects.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/gatewaylabs/console/internal/config"
	"github.com/gatewaylabs/console/invitations/pending"
	"github.com/gatewaylabs/console/server/signinstate"
	"github.com/gatewaylabs/console/sessions"
)

// OidcConfig bundles the discovered provider pieces for the sign-in
// boundary.
type OidcConfig struct {
	OidcProvider *oidc.Provider
	OAuth2Config *oauth2.Config
	OidcVerifier *oidc.IDTokenVerifier
}

type Server struct {
	env         string // Environment (e.g., "DEV", "PROD")
	mux         *http.ServeMux
	routes      []string
	config      config.Config
	sessions    *sessions.Manager
	signInState signinstate.Repo
	log         zerolog.Logger

	oidcConfig     *OidcConfig
	oidcConfigLock sync.RWMutex
}

// Option modifies a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// WithOidcConfig pre-seeds the provider configuration instead of lazy
// discovery (primarily for testing against a fake provider).
func WithOidcConfig(cfg *OidcConfig) Option {
	return func(s *Server) {
		s.oidcConfig = cfg
	}
}

func New(cfg config.Config, options ...Option) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("[Server New] config is required")
	}

	s := &Server{
		mux:         http.NewServeMux(),
		config:      cfg,
		signInState: signinstate.NewInMemoryRepo(),
		log:         zerolog.Nop(),
	}
	s.env = cfg.GetEnv()
	for _, opt := range options {
		opt(s)
	}

	s.sessions = sessions.NewManager(
		sessions.NewInMemoryRepo(),
		pending.NewInMemoryRepo(),
		cfg.GetControlPlaneURL(),
		cfg.GetSessionTTL(),
		sessions.WithLogger(s.log),
	)

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			s.log.Info().Str("method", parts[0]).Str("path", parts[1]).Msg("route")
		} else {
			s.log.Info().Str("path", parts[0]).Msg("route")
		}
	}
}

// getOidcConfig discovers the control plane's OIDC endpoints once and
// caches the result.
func (s *Server) getOidcConfig(ctx context.Context) (*OidcConfig, error) {
	s.oidcConfigLock.RLock()
	cached := s.oidcConfig
	s.oidcConfigLock.RUnlock()
	if cached != nil {
		return cached, nil
	}

	provider, err := oidc.NewProvider(ctx, s.config.GetIssuerURL())
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	clientID := s.config.GetOAuthClientID()
	cfg := &OidcConfig{
		OidcProvider: provider,
		OAuth2Config: &oauth2.Config{
			ClientID:    clientID,
			Endpoint:    provider.Endpoint(),
			RedirectURL: s.config.GetBaseURL() + RouteSignInCallback,
			Scopes:      []string{oidc.ScopeOpenID, "profile", "email", oidc.ScopeOfflineAccess},
		},
		OidcVerifier: provider.Verifier(&oidc.Config{
			ClientID: clientID,
		}),
	}

	s.oidcConfigLock.Lock()
	s.oidcConfig = cfg
	s.oidcConfigLock.Unlock()

	return cfg, nil
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
