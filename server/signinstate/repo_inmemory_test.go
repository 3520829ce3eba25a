package signinstate_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	consoleerrors "github.com/gatewaylabs/console/internal/errors"
	"github.com/gatewaylabs/console/server/signinstate"
)

func TestUpsertGetDelete(t *testing.T) {
	repo := signinstate.NewInMemoryRepo()

	state := &signinstate.State{
		SessionID:    "sess-1",
		CodeVerifier: "verifier",
		Nonce:        "nonce",
		ReturnURL:    "/invitations/accept?token=tok",
		CreatedAt:    time.Now(),
	}
	require.NoError(t, repo.Upsert("state-1", state))

	got, err := repo.Get("state-1")
	require.NoError(t, err)
	require.Equal(t, *state, *got)

	// The repo hands out copies, not its stored pointer.
	got.CodeVerifier = "tampered"
	again, err := repo.Get("state-1")
	require.NoError(t, err)
	require.Equal(t, "verifier", again.CodeVerifier)

	require.NoError(t, repo.Delete("state-1"))
	_, err = repo.Get("state-1")
	require.ErrorIs(t, err, consoleerrors.ErrSignInStateNotFound)
}

func TestGetUnknownState(t *testing.T) {
	repo := signinstate.NewInMemoryRepo()

	_, err := repo.Get("missing")
	require.ErrorIs(t, err, consoleerrors.ErrSignInStateNotFound)
}

func TestStaleStateIsRejected(t *testing.T) {
	repo := signinstate.NewInMemoryRepo()

	require.NoError(t, repo.Upsert("state-1", &signinstate.State{
		SessionID: "sess-1",
		CreatedAt: time.Now().Add(-time.Hour),
	}))

	_, err := repo.Get("state-1")
	require.ErrorIs(t, err, consoleerrors.ErrSignInStateExpired)
}
