package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config interface {
	EnvConfig
	SessionConfig
	SignInConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetBaseURL() string
	GetControlPlaneURL() string
	GetEnv() string
}

type SessionConfig interface {
	GetSessionTTL() time.Duration
	GetDoneRedirectDelay() time.Duration
}

type SignInConfig interface {
	GetIssuerURL() string
	GetOAuthClientID() string
	GetSignInPath() string
}

type mainConfig struct {
	EnvVars
}

// New parses the environment into a Config. Missing optional variables
// fall back to the defaults declared on EnvVars.
func New() (Config, error) {
	var vars EnvVars
	if err := env.Parse(&vars); err != nil {
		return nil, fmt.Errorf("config.New: %w", err)
	}
	return mainConfig{EnvVars: vars}, nil
}

// MustNew is New for entrypoints that cannot continue without config.
func MustNew() Config {
	c, err := New()
	if err != nil {
		panic(err)
	}
	return c
}
