package signinstate

import "time"

// State holds everything an in-flight sign-in needs to resume: the PKCE
// verifier and nonce for the exchange, and the path the user came from so
// the invitation workflow can pick up where it left off.
type State struct {
	SessionID    string
	CodeVerifier string
	Nonce        string
	ReturnURL    string
	CreatedAt    time.Time
}

type Repo interface {
	Upsert(state string, signInState *State) error
	Get(state string) (*State, error)
	Delete(state string) error
}
