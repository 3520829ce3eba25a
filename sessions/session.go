// Package sessions keeps one server-side session per browser. The
// session owns the cookie jar that carries the control plane's refresh
// cookie, the credential broker built on top of it, and the pending
// invitation record — everything whose lifetime must match the browsing
// session and nothing more.
package sessions

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gatewaylabs/console/controlplane"
	"github.com/gatewaylabs/console/credentials"
	"github.com/gatewaylabs/console/invitations/pending"
)

// Session is the per-browser state.
type Session struct {
	ID        string
	CreatedAt time.Time
	ExpiresAt time.Time

	// Client and Broker are bound to this session's cookie jar.
	Client *controlplane.Client
	Broker *credentials.Broker
}

// bearerSource adapts the broker to the client's authorization hook.
type bearerSource struct {
	broker *credentials.Broker
}

func (s bearerSource) Token(ctx context.Context) (string, error) {
	return s.broker.Token(ctx)
}

// Manager creates, looks up, and ends browser sessions.
type Manager struct {
	repo            Repo
	pendingRepo     pending.Repo
	controlPlaneURL string
	ttl             time.Duration
	log             zerolog.Logger
	nowFunc         func() time.Time
}

// ManagerOption modifies a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(log zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.log = log
	}
}

// WithNowFunc sets the now time function (primarily for testing).
func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// NewManager creates a session manager backed by the given repos.
func NewManager(repo Repo, pendingRepo pending.Repo, controlPlaneURL string, ttl time.Duration, options ...ManagerOption) *Manager {
	m := &Manager{
		repo:            repo,
		pendingRepo:     pendingRepo,
		controlPlaneURL: controlPlaneURL,
		ttl:             ttl,
		log:             zerolog.Nop(),
		nowFunc:         time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// Create builds a fresh session with its own cookie jar, control-plane
// client, and credential broker.
func (m *Manager) Create() (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	log := m.log.With().Str("session_id", id[:8]).Logger()

	client := controlplane.New(m.controlPlaneURL, &http.Client{Jar: jar}, controlplane.WithLogger(log))
	broker := credentials.NewBroker(client, credentials.WithLogger(log))
	client.SetBearerSource(bearerSource{broker: broker})

	now := m.nowFunc()
	session := &Session{
		ID:        id,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
		Client:    client,
		Broker:    broker,
	}
	if err := m.repo.Upsert(id, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Get returns a live session by ID.
func (m *Manager) Get(sessionID string) (*Session, error) {
	return m.repo.Get(sessionID)
}

// Delete ends a session and drops its pending invitation record with it.
func (m *Manager) Delete(sessionID string) error {
	if err := m.pendingRepo.Delete(sessionID); err != nil {
		m.log.Warn().Err(err).Msg("dropping pending invitation with session")
	}
	return m.repo.Delete(sessionID)
}

// PendingStore returns the pending-invitation accessor bound to a
// session.
func (m *Manager) PendingStore(sessionID string) *pending.Store {
	return pending.NewStore(m.pendingRepo, sessionID, pending.WithLogger(m.log))
}
