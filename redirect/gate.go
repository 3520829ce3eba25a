// Package redirect sends an unauthenticated user to sign-in exactly once
// per mount, carrying enough context to resume the invitation workflow
// afterwards.
package redirect

import (
	"net/url"
	"sync"

	"github.com/rs/zerolog"
)

// Navigator performs the actual navigation. In the hosted console it
// writes an HTTP 302; tests record the destination.
type Navigator interface {
	Navigate(url string)
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(url string)

// Navigate implements Navigator.
func (f NavigatorFunc) Navigate(url string) {
	f(url)
}

// latchState is the gate's one-shot latch. It is a tagged state rather
// than an ad hoc boolean so every redirect attempt checks the same value.
type latchState int

const (
	latchArmed latchState = iota
	latchFired
)

// Gate issues at most one redirect to sign-in for its lifetime,
// regardless of how many times the surrounding state re-derives the
// unauthenticated condition.
type Gate struct {
	signInURL string
	nav       Navigator
	log       zerolog.Logger

	mu    sync.Mutex
	latch latchState
}

// GateOption modifies a Gate.
type GateOption func(*Gate)

// WithLogger sets the gate logger.
func WithLogger(log zerolog.Logger) GateOption {
	return func(g *Gate) {
		g.log = log
	}
}

// NewGate creates a gate that redirects to signInURL via nav.
func NewGate(signInURL string, nav Navigator, options ...GateOption) *Gate {
	g := &Gate{
		signInURL: signInURL,
		nav:       nav,
		log:       zerolog.Nop(),
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// Redirect fires the gate. It returns true only the first time; later
// calls are no-ops.
func (g *Gate) Redirect(returnPath string) bool {
	g.mu.Lock()
	if g.latch == latchFired {
		g.mu.Unlock()
		return false
	}
	g.latch = latchFired
	g.mu.Unlock()

	target := SignInURL(g.signInURL, returnPath)
	g.log.Debug().Str("return_path", returnPath).Msg("redirecting to sign-in")
	g.nav.Navigate(target)
	return true
}

// Fired reports whether the gate has already redirected.
func (g *Gate) Fired() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.latch == latchFired
}

// SignInURL appends the return path to the sign-in entry point.
func SignInURL(signInURL, returnPath string) string {
	if returnPath == "" {
		return signInURL
	}
	sep := "?"
	if u, err := url.Parse(signInURL); err == nil && u.RawQuery != "" {
		sep = "&"
	}
	return signInURL + sep + "return_to=" + url.QueryEscape(returnPath)
}

// ReturnPath builds the path the resolver resumes from after sign-in: the
// invitation page addressed by the original token and, when known, the
// canonical invitation id.
func ReturnPath(basePath, token, invitationID string) string {
	params := url.Values{}
	params.Set("token", token)
	if invitationID != "" {
		params.Set("invitation_id", invitationID)
	}
	return basePath + "?" + params.Encode()
}
