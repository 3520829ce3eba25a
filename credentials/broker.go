// Package credentials owns the in-process access credential for one
// browser session and coordinates its renewal. The broker is the only
// component allowed to mutate the cached credential.
package credentials

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/gatewaylabs/console/controlplane"
	consoleerrors "github.com/gatewaylabs/console/internal/errors"
)

// Issuer exchanges the session's refresh artifact for a fresh credential.
// Implemented by controlplane.Client. A missing session must surface as
// ErrAuthenticationRequired, not as a generic failure.
type Issuer interface {
	IssueToken(ctx context.Context, actAs *controlplane.ActAs) (string, error)
}

// renewal is the shared handle for one in-flight renewal. Every caller
// that arrives while it is outstanding awaits the same outcome.
type renewal struct {
	done  chan struct{}
	token string
	err   error
}

// Broker is the single source of truth for the current access credential.
// At most one credential is cached and at most one renewal is in flight.
type Broker struct {
	issuer Issuer
	log    zerolog.Logger

	mu       sync.Mutex
	token    string
	inflight *renewal
}

// BrokerOption modifies a Broker.
type BrokerOption func(*Broker)

// WithLogger sets the broker logger.
func WithLogger(log zerolog.Logger) BrokerOption {
	return func(b *Broker) {
		b.log = log
	}
}

// NewBroker creates a broker that renews through the given issuer.
func NewBroker(issuer Issuer, options ...BrokerOption) *Broker {
	b := &Broker{
		issuer: issuer,
		log:    zerolog.Nop(),
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

// TokenOption scopes a renewal request.
type TokenOption func(*tokenOptions)

type tokenOptions struct {
	actAs *controlplane.ActAs
}

// ActAs asks the issuer to scope the credential to an organization role.
// Callers that join an in-flight renewal inherit its scope instead.
func ActAs(organizationID, role string) TokenOption {
	return func(o *tokenOptions) {
		o.actAs = &controlplane.ActAs{OrganizationID: organizationID, Role: role}
	}
}

// Token returns the cached credential, joins an in-flight renewal, or
// starts one. An empty credential with a nil error means the session is
// unauthenticated; errors are transport failures and are retryable.
func (b *Broker) Token(ctx context.Context, options ...TokenOption) (string, error) {
	var opts tokenOptions
	for _, opt := range options {
		opt(&opts)
	}

	b.mu.Lock()
	if b.token != "" {
		token := b.token
		b.mu.Unlock()
		return token, nil
	}
	if b.inflight != nil {
		r := b.inflight
		b.mu.Unlock()
		return b.await(ctx, r)
	}
	r := &renewal{done: make(chan struct{})}
	b.inflight = r
	b.mu.Unlock()

	go b.renew(r, opts.actAs)
	return b.await(ctx, r)
}

// SetToken caches a credential obtained out of band, e.g. right after an
// explicit sign-in exchange. A previous credential is discarded.
func (b *Broker) SetToken(token string) {
	b.mu.Lock()
	b.token = token
	b.mu.Unlock()
}

// Clear discards the cached credential and detaches any in-flight
// renewal so an alternate sign-in path starts from a clean slate. The
// detached renewal still resolves for callers already awaiting it, but
// its result is no longer cached.
func (b *Broker) Clear() {
	b.mu.Lock()
	b.token = ""
	b.inflight = nil
	b.mu.Unlock()
}

// renew performs the single coordinated renewal for handle r.
func (b *Broker) renew(r *renewal, actAs *controlplane.ActAs) {
	// The renewal request rides the session cookie only; it never
	// carries the previous access credential.
	token, err := b.issuer.IssueToken(context.Background(), actAs)

	switch {
	case err == nil:
		r.token = token
	case consoleerrors.Is(err, consoleerrors.ErrAuthenticationRequired):
		// No session. Resolve to empty rather than failing.
		b.log.Debug().Msg("credential renewal: no session")
	default:
		b.log.Warn().Err(err).Msg("credential renewal failed")
		r.err = fmt.Errorf("%w: %w", consoleerrors.ErrRenewalFailed, err)
	}

	b.mu.Lock()
	if b.inflight == r {
		b.inflight = nil
		if r.err == nil {
			b.token = r.token
		}
	}
	b.mu.Unlock()

	close(r.done)
}

// await blocks on a renewal handle until it resolves or ctx is done.
func (b *Broker) await(ctx context.Context, r *renewal) (string, error) {
	select {
	case <-r.done:
		return r.token, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
