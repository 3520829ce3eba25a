package config

import (
	"strings"
	"time"
)

// EnvVars holds every environment variable the console reads. Parsing is
// done once in New via caarlos0/env.
type EnvVars struct {
	Port              string        `env:"PORT" envDefault:"8080"`
	AppName           string        `env:"APP_NAME" envDefault:"Gateway Console"`
	BaseURL           string        `env:"BASE_URL" envDefault:"http://localhost:8080"`
	ControlPlaneURL   string        `env:"CONTROL_PLANE_URL" envDefault:"http://localhost:8000"`
	Env               string        `env:"ENV" envDefault:"DEV"`
	SessionTTL        time.Duration `env:"SESSION_TTL" envDefault:"12h"`
	DoneRedirectDelay time.Duration `env:"DONE_REDIRECT_DELAY" envDefault:"2s"`
	IssuerURL         string        `env:"ISSUER_URL"`
	OAuthClientID     string        `env:"OAUTH_CLIENT_ID" envDefault:"gateway-console"`
	SignInPath        string        `env:"SIGNIN_PATH" envDefault:"/auth/signin"`
}

var _ EnvConfig = EnvVars{}
var _ SessionConfig = EnvVars{}
var _ SignInConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.Port
	if port != "" && port[0] != ':' {
		port = ":" + port
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetBaseURL() string {
	return strings.TrimSuffix(e.BaseURL, "/")
}

func (e EnvVars) GetControlPlaneURL() string {
	return strings.TrimSuffix(e.ControlPlaneURL, "/")
}

func (e EnvVars) GetEnv() string {
	return strings.ToUpper(e.Env)
}

func (e EnvVars) GetSessionTTL() time.Duration {
	return e.SessionTTL
}

func (e EnvVars) GetDoneRedirectDelay() time.Duration {
	return e.DoneRedirectDelay
}

// GetIssuerURL returns the OIDC issuer. It defaults to the control plane,
// which hosts the authorization endpoints for the console.
func (e EnvVars) GetIssuerURL() string {
	if e.IssuerURL == "" {
		return e.GetControlPlaneURL()
	}
	return strings.TrimSuffix(e.IssuerURL, "/")
}

func (e EnvVars) GetOAuthClientID() string {
	return e.OAuthClientID
}

func (e EnvVars) GetSignInPath() string {
	return e.SignInPath
}
