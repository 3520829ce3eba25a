package sessions

// Repo defines the interface for browser session storage. Sessions are
// ephemeral by design; losing them only forces a fresh sign-in.
type Repo interface {
	// Upsert creates or updates a session
	Upsert(sessionID string, session *Session) error

	// Get retrieves a live session by ID
	Get(sessionID string) (*Session, error)

	// Delete removes a session by ID
	Delete(sessionID string) error
}
