package invitations_test

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/gatewaylabs/console/controlplane"
	"github.com/gatewaylabs/console/credentials"
	consoleerrors "github.com/gatewaylabs/console/internal/errors"
	"github.com/gatewaylabs/console/invitations"
	"github.com/gatewaylabs/console/invitations/pending"
	"github.com/gatewaylabs/console/redirect"
)

type stubIssuer struct {
	token string
	err   error
}

func (s stubIssuer) IssueToken(ctx context.Context, actAs *controlplane.ActAs) (string, error) {
	return s.token, s.err
}

type respondRecord struct {
	organizationID string
	req            controlplane.RespondInvitationRequest
}

// fakeAPI records which lookup variant was used and what the respond
// calls carried.
type fakeAPI struct {
	mu sync.Mutex

	detail     *controlplane.InvitationDetail
	lookupErr  error
	respondErr error

	byTokenCalls int
	byIDCalls    int
	byOrgCalls   int
	accepts      []respondRecord
	rejects      []respondRecord
}

func (f *fakeAPI) copyDetail() *controlplane.InvitationDetail {
	if f.detail == nil {
		return nil
	}
	d := *f.detail
	return &d
}

func (f *fakeAPI) InvitationByToken(ctx context.Context, token string) (*controlplane.InvitationDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byTokenCalls++
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	return f.copyDetail(), nil
}

func (f *fakeAPI) InvitationByID(ctx context.Context, invitationID string) (*controlplane.InvitationDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byIDCalls++
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	return f.copyDetail(), nil
}

func (f *fakeAPI) OrganizationInvitation(ctx context.Context, organizationID, invitationID string) (*controlplane.InvitationDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byOrgCalls++
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	return f.copyDetail(), nil
}

func (f *fakeAPI) AcceptInvitation(ctx context.Context, organizationID string, req controlplane.RespondInvitationRequest) (*controlplane.InvitationDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accepts = append(f.accepts, respondRecord{organizationID, req})
	if f.respondErr != nil {
		return nil, f.respondErr
	}
	d := f.copyDetail()
	d.Status = controlplane.InvitationAccepted
	return d, nil
}

func (f *fakeAPI) RejectInvitation(ctx context.Context, organizationID string, req controlplane.RespondInvitationRequest) (*controlplane.InvitationDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejects = append(f.rejects, respondRecord{organizationID, req})
	if f.respondErr != nil {
		return nil, f.respondErr
	}
	d := f.copyDetail()
	d.Status = controlplane.InvitationRejected
	return d, nil
}

func pendingDetail() *controlplane.InvitationDetail {
	return &controlplane.InvitationDetail{
		InvitationID:   "inv-1",
		OrganizationID: "org-1",
		Email:          "invitee@example.com",
		Role:           "member",
		Status:         controlplane.InvitationPending,
	}
}

// navRecorder captures navigations from timer goroutines.
type navRecorder struct {
	mu   sync.Mutex
	urls []string
}

func (n *navRecorder) Navigate(url string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.urls = append(n.urls, url)
}

func (n *navRecorder) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.urls...)
}

// fixture wires a resolver over fakes; the zero issuer is authenticated.
type fixture struct {
	broker   *credentials.Broker
	repo     *pending.InMemoryRepo
	store    *pending.Store
	api      *fakeAPI
	gate     *redirect.Gate
	signIns  *navRecorder
	home     *navRecorder
	resolver *invitations.Resolver
}

func newFixture(t *testing.T, issuer credentials.Issuer, api *fakeAPI, options ...invitations.ResolverOption) *fixture {
	t.Helper()
	if issuer == nil {
		issuer = stubIssuer{token: "opaque-credential"}
	}

	broker := credentials.NewBroker(issuer)
	repo := pending.NewInMemoryRepo()
	store := pending.NewStore(repo, "sess-1")

	signIns := &navRecorder{}
	gate := redirect.NewGate("/auth/signin", signIns)

	home := &navRecorder{}
	options = append([]invitations.ResolverOption{
		invitations.WithHomeNavigation(home, "/"),
		invitations.WithDoneDelay(5 * time.Millisecond),
	}, options...)

	return &fixture{
		broker:   broker,
		repo:     repo,
		store:    store,
		api:      api,
		gate:     gate,
		signIns:  signIns,
		home:     home,
		resolver: invitations.NewResolver(broker, store, api, gate, options...),
	}
}

func TestResolveBlankTokenIsIncompleteLink(t *testing.T) {
	f := newFixture(t, nil, &fakeAPI{detail: pendingDetail()})
	require.NoError(t, f.store.Persist(pending.Record{Token: "stale"}))

	require.NoError(t, f.resolver.Resolve(context.Background(), invitations.Params{Token: "  "}))

	state := f.resolver.State()
	require.True(t, state.IncompleteLink)
	require.Equal(t, invitations.StepCollect, state.Step)
	require.Equal(t, invitations.AuthChecking, state.AuthState, "never enters checking")
	require.False(t, state.CanRespond)

	_, ok, err := f.store.Load()
	require.NoError(t, err)
	require.False(t, ok, "stale record is cleared for a malformed link")
	require.Empty(t, f.signIns.all())
}

func TestResolveUnauthenticatedRedirectsOnce(t *testing.T) {
	api := &fakeAPI{detail: pendingDetail()}
	f := newFixture(t, stubIssuer{err: consoleerrors.ErrAuthenticationRequired}, api)

	params := invitations.Params{Token: "tok", InvitationID: "inv-1"}
	require.NoError(t, f.resolver.Resolve(context.Background(), params))

	state := f.resolver.State()
	require.Equal(t, invitations.AuthUnauthenticated, state.AuthState)
	require.Equal(t, invitations.StepCollect, state.Step)

	require.Len(t, f.signIns.all(), 1)
	target, err := url.Parse(f.signIns.all()[0])
	require.NoError(t, err)
	returnTo, err := url.Parse(target.Query().Get("return_to"))
	require.NoError(t, err)
	require.Equal(t, "/invitations/accept", returnTo.Path)
	require.Equal(t, "tok", returnTo.Query().Get("token"))
	require.Equal(t, "inv-1", returnTo.Query().Get("invitation_id"))

	// The record survives for the resume after sign-in.
	record, ok, err := f.store.Load()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, pending.Record{Token: "tok", InvitationID: "inv-1"}, record)

	// Re-deriving the unauthenticated state never redirects again.
	require.NoError(t, f.resolver.Resolve(context.Background(), params))
	require.Len(t, f.signIns.all(), 1)
	require.Zero(t, api.byTokenCalls+api.byIDCalls+api.byOrgCalls, "no lookup without a credential")
}

func TestResolveTokenOnlyRefinesAndReviews(t *testing.T) {
	api := &fakeAPI{detail: pendingDetail()}
	f := newFixture(t, nil, api)

	require.NoError(t, f.resolver.Resolve(context.Background(), invitations.Params{Token: "tok"}))

	state := f.resolver.State()
	require.Equal(t, invitations.AuthAuthenticated, state.AuthState)
	require.Equal(t, invitations.StepReview, state.Step)
	require.True(t, state.CanRespond)
	require.Equal(t, 1, api.byTokenCalls)

	record, ok, err := f.store.Load()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, pending.Record{Token: "tok", InvitationID: "inv-1", OrganizationID: "org-1"}, record)

	// The refined record upgrades the next resolve to the scoped lookup.
	require.NoError(t, f.resolver.Resolve(context.Background(), invitations.Params{Token: "tok"}))
	require.Equal(t, 1, api.byTokenCalls)
	require.Equal(t, 1, api.byOrgCalls)
}

func TestResolveDifferentTokenReplacesRecord(t *testing.T) {
	api := &fakeAPI{detail: pendingDetail()}
	f := newFixture(t, nil, api)
	require.NoError(t, f.store.Persist(pending.Record{
		Token: "old-tok", InvitationID: "inv-old", OrganizationID: "org-old",
	}))

	require.NoError(t, f.resolver.Resolve(context.Background(), invitations.Params{Token: "tok"}))

	record, ok, err := f.store.Load()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "tok", record.Token)
	require.Equal(t, "inv-1", record.InvitationID, "stale addressing from another workflow is dropped")
	require.Equal(t, 1, api.byTokenCalls, "stale identifiers must not scope the lookup")
}

func TestResolveServerWinsOnConflict(t *testing.T) {
	api := &fakeAPI{detail: pendingDetail()}
	f := newFixture(t, nil, api)

	// The link carried an id the server disagrees with.
	require.NoError(t, f.resolver.Resolve(context.Background(), invitations.Params{
		Token: "tok", InvitationID: "inv-mistyped",
	}))

	require.Equal(t, 1, api.byIDCalls)
	state := f.resolver.State()
	require.Equal(t, invitations.StepReview, state.Step)
	require.Equal(t, pending.Record{Token: "tok", InvitationID: "inv-1", OrganizationID: "org-1"}, state.Record)

	record, _, err := f.store.Load()
	require.NoError(t, err)
	require.Equal(t, "inv-1", record.InvitationID, "canonical server value wins")
}

func TestResolveTerminalStatusBlocksActions(t *testing.T) {
	detail := pendingDetail()
	detail.Status = controlplane.InvitationCanceled
	api := &fakeAPI{detail: detail}
	f := newFixture(t, nil, api)

	require.NoError(t, f.resolver.Resolve(context.Background(), invitations.Params{Token: "tok"}))

	state := f.resolver.State()
	require.Equal(t, invitations.StepReview, state.Step)
	require.False(t, state.CanRespond)

	err := f.resolver.Accept(context.Background())
	require.ErrorIs(t, err, consoleerrors.ErrInvitationNotPending)
	require.Empty(t, api.accepts, "no network call for a terminal invitation")
}

func TestAcceptMovesToDoneAndNavigatesHomeOnce(t *testing.T) {
	api := &fakeAPI{detail: pendingDetail()}
	f := newFixture(t, nil, api)

	require.NoError(t, f.resolver.Resolve(context.Background(), invitations.Params{Token: "tok"}))
	require.NoError(t, f.resolver.Accept(context.Background()))

	state := f.resolver.State()
	require.Equal(t, invitations.StepDone, state.Step)
	require.Equal(t, controlplane.InvitationAccepted, state.Detail.Status)
	require.False(t, state.CanRespond)

	require.Len(t, api.accepts, 1)
	require.Equal(t, "org-1", api.accepts[0].organizationID)
	require.Equal(t, controlplane.RespondInvitationRequest{
		InvitationID: "inv-1", Token: "tok",
	}, api.accepts[0].req)

	_, ok, err := f.store.Load()
	require.NoError(t, err)
	require.False(t, ok, "pending record is cleared once the workflow is done")

	require.Eventually(t, func() bool {
		return len(f.home.all()) == 1
	}, time.Second, 2*time.Millisecond)
	time.Sleep(15 * time.Millisecond)
	require.Len(t, f.home.all(), 1, "home navigation happens exactly once")
	require.Equal(t, "/", f.home.all()[0])
}

func TestRejectUsesRejectEndpoint(t *testing.T) {
	api := &fakeAPI{detail: pendingDetail()}
	f := newFixture(t, nil, api)

	require.NoError(t, f.resolver.Resolve(context.Background(), invitations.Params{Token: "tok"}))
	require.NoError(t, f.resolver.Reject(context.Background()))

	require.Empty(t, api.accepts)
	require.Len(t, api.rejects, 1)
	require.Equal(t, controlplane.InvitationRejected, f.resolver.State().Detail.Status)
}

func TestRespondFailsFastWithoutOrganization(t *testing.T) {
	detail := pendingDetail()
	detail.OrganizationID = ""
	api := &fakeAPI{detail: detail}
	f := newFixture(t, nil, api)

	require.NoError(t, f.resolver.Resolve(context.Background(), invitations.Params{Token: "tok"}))

	err := f.resolver.Accept(context.Background())
	require.ErrorIs(t, err, consoleerrors.ErrMissingOrganization)
	require.Empty(t, api.accepts, "fail fast, no network call")

	state := f.resolver.State()
	require.Equal(t, invitations.StepReview, state.Step, "the review stays actionable")
	require.ErrorIs(t, state.ActionError, consoleerrors.ErrMissingOrganization)
}

func TestRespondFailureStaysInline(t *testing.T) {
	api := &fakeAPI{detail: pendingDetail(), respondErr: consoleerrors.ErrActionRejected}
	f := newFixture(t, nil, api)

	require.NoError(t, f.resolver.Resolve(context.Background(), invitations.Params{Token: "tok"}))

	err := f.resolver.Accept(context.Background())
	require.ErrorIs(t, err, consoleerrors.ErrActionRejected)

	state := f.resolver.State()
	require.Equal(t, invitations.StepReview, state.Step)
	require.ErrorIs(t, state.ActionError, consoleerrors.ErrActionRejected)

	_, ok, loadErr := f.store.Load()
	require.NoError(t, loadErr)
	require.True(t, ok, "a failed action never clears the pending record")

	// The failure clears on the next successful action.
	api.mu.Lock()
	api.respondErr = nil
	api.mu.Unlock()
	require.NoError(t, f.resolver.Accept(context.Background()))
	require.NoError(t, f.resolver.State().ActionError)
	require.Equal(t, invitations.StepDone, f.resolver.State().Step)
}

func TestLoadFailureIsRetryable(t *testing.T) {
	api := &fakeAPI{detail: pendingDetail(), lookupErr: consoleerrors.ErrInternal}
	f := newFixture(t, nil, api)

	err := f.resolver.Resolve(context.Background(), invitations.Params{Token: "tok"})
	require.ErrorIs(t, err, consoleerrors.ErrInternal)

	state := f.resolver.State()
	require.ErrorIs(t, state.LoadError, consoleerrors.ErrInternal)
	require.Equal(t, invitations.StepCollect, state.Step)

	api.mu.Lock()
	api.lookupErr = nil
	api.mu.Unlock()

	require.NoError(t, f.resolver.Retry(context.Background()))
	state = f.resolver.State()
	require.NoError(t, state.LoadError)
	require.Equal(t, invitations.StepReview, state.Step)
}

func TestTeardownDiscardsLateResults(t *testing.T) {
	api := &fakeAPI{detail: pendingDetail()}
	f := newFixture(t, nil, api)

	f.resolver.Teardown()
	require.NoError(t, f.resolver.Resolve(context.Background(), invitations.Params{Token: "tok"}))

	state := f.resolver.State()
	require.NotEqual(t, invitations.StepReview, state.Step, "results after teardown are discarded")
	require.Empty(t, f.signIns.all())
}

func TestTeardownSuppressesHomeNavigation(t *testing.T) {
	api := &fakeAPI{detail: pendingDetail()}
	f := newFixture(t, nil, api, invitations.WithDoneDelay(10*time.Millisecond))

	require.NoError(t, f.resolver.Resolve(context.Background(), invitations.Params{Token: "tok"}))
	require.NoError(t, f.resolver.Accept(context.Background()))
	f.resolver.Teardown()

	time.Sleep(30 * time.Millisecond)
	require.Empty(t, f.home.all(), "navigation scheduled before teardown must not fire")
}

func TestResolveFlagsEmailMismatch(t *testing.T) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "user-1",
		"email":   "someone.else@example.com",
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)

	api := &fakeAPI{detail: pendingDetail()}
	f := newFixture(t, stubIssuer{token: signed}, api)

	require.NoError(t, f.resolver.Resolve(context.Background(), invitations.Params{Token: "tok"}))

	state := f.resolver.State()
	require.True(t, state.EmailMismatch)
	require.Equal(t, invitations.StepReview, state.Step)
	require.True(t, state.CanRespond, "the warning is advisory; the backend decides")
}

func TestResolveMatchingEmailIsNotMismatch(t *testing.T) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": "INVITEE@example.com",
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)

	api := &fakeAPI{detail: pendingDetail()}
	f := newFixture(t, stubIssuer{token: signed}, api)

	require.NoError(t, f.resolver.Resolve(context.Background(), invitations.Params{Token: "tok"}))
	require.False(t, f.resolver.State().EmailMismatch, "comparison is case-insensitive")
}
