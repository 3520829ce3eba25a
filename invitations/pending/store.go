package pending

import (
	"github.com/rs/zerolog"
)

// Store is the accessor for one session's pending invitation record. All
// reads and writes go through it so the write-if-changed rule is enforced
// in a single place instead of being scattered through workflow code.
type Store struct {
	repo      Repo
	sessionID string
	log       zerolog.Logger
}

// StoreOption modifies a Store.
type StoreOption func(*Store)

// WithLogger sets the store logger.
func WithLogger(log zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.log = log
	}
}

// NewStore binds a repo to one browser session.
func NewStore(repo Repo, sessionID string, options ...StoreOption) *Store {
	s := &Store{
		repo:      repo,
		sessionID: sessionID,
		log:       zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Load reads whatever was last persisted for this session.
func (s *Store) Load() (Record, bool, error) {
	return s.repo.Get(s.sessionID)
}

// Persist writes the record only when it differs by value from the one
// already stored. Re-deriving the same record is therefore free and
// cannot amplify into repeated writes.
func (s *Store) Persist(next Record) error {
	current, ok, err := s.repo.Get(s.sessionID)
	if err != nil {
		return err
	}
	if ok && current.Equal(next) {
		return nil
	}
	s.log.Debug().
		Str("invitation_id", next.InvitationID).
		Str("organization_id", next.OrganizationID).
		Msg("persisting pending invitation")
	return s.repo.Put(s.sessionID, next)
}

// Clear removes the record once the workflow reaches a terminal state.
func (s *Store) Clear() error {
	return s.repo.Delete(s.sessionID)
}
