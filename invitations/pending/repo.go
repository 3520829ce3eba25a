package pending

// Repo is the session-scoped persistence boundary for pending invitation
// records. Implementations must keep a record for the lifetime of the
// browsing session and no longer.
type Repo interface {
	// Get retrieves the record for a session; ok is false when none is
	// stored.
	Get(sessionID string) (record Record, ok bool, err error)

	// Put stores the record for a session, replacing any previous one.
	Put(sessionID string, record Record) error

	// Delete removes the record for a session. Deleting a missing
	// record is not an error.
	Delete(sessionID string) error
}
