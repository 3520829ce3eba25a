// Package invitations resolves organization invitations: it settles the
// caller's auth state, fetches the invitation through the most specific
// lookup the pending record allows, and exposes the accept/reject
// actions.
package invitations

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gatewaylabs/console/controlplane"
	"github.com/gatewaylabs/console/credentials"
	consoleerrors "github.com/gatewaylabs/console/internal/errors"
	"github.com/gatewaylabs/console/invitations/pending"
	"github.com/gatewaylabs/console/redirect"
)

// AuthState is derived from the credential broker, never stored.
type AuthState int

const (
	AuthChecking AuthState = iota
	AuthUnauthenticated
	AuthAuthenticated
)

func (s AuthState) String() string {
	switch s {
	case AuthUnauthenticated:
		return "unauthenticated"
	case AuthAuthenticated:
		return "authenticated"
	default:
		return "checking"
	}
}

// Step governs what the workflow renders and permits.
type Step int

const (
	StepCollect Step = iota
	StepReview
	StepDone
)

func (s Step) String() string {
	switch s {
	case StepReview:
		return "review"
	case StepDone:
		return "done"
	default:
		return "collect"
	}
}

// API is the slice of the control-plane client the resolver needs.
type API interface {
	InvitationByToken(ctx context.Context, token string) (*controlplane.InvitationDetail, error)
	InvitationByID(ctx context.Context, invitationID string) (*controlplane.InvitationDetail, error)
	OrganizationInvitation(ctx context.Context, organizationID, invitationID string) (*controlplane.InvitationDetail, error)
	AcceptInvitation(ctx context.Context, organizationID string, req controlplane.RespondInvitationRequest) (*controlplane.InvitationDetail, error)
	RejectInvitation(ctx context.Context, organizationID string, req controlplane.RespondInvitationRequest) (*controlplane.InvitationDetail, error)
}

// Params is the invitation addressing information carried by the URL.
type Params struct {
	Token          string
	InvitationID   string
	OrganizationID string
}

// State is an immutable snapshot of the workflow for rendering.
type State struct {
	AuthState      AuthState
	Step           Step
	Record         pending.Record
	Detail         *controlplane.InvitationDetail
	IncompleteLink bool
	EmailMismatch  bool
	LoadError      error
	ActionError    error
	CanRespond     bool
}

const defaultDoneDelay = 2 * time.Second

// Resolver drives the invitation workflow state machine for one mount.
type Resolver struct {
	broker    *credentials.Broker
	store     *pending.Store
	api       API
	gate      *redirect.Gate
	homeNav   redirect.Navigator
	homeURL   string
	basePath  string
	doneDelay time.Duration
	log       zerolog.Logger

	mu         sync.Mutex
	cancelled  bool
	navigated  bool
	authState  AuthState
	step       Step
	record     pending.Record
	detail     *controlplane.InvitationDetail
	incomplete bool
	mismatch   bool
	loadErr    error
	actionErr  error
	lastParams Params
}

// ResolverOption modifies a Resolver.
type ResolverOption func(*Resolver)

// WithLogger sets the resolver logger.
func WithLogger(log zerolog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.log = log
	}
}

// WithDoneDelay sets the user-visible pause between a confirmed action
// and the navigation home.
func WithDoneDelay(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.doneDelay = d
	}
}

// WithHomeNavigation sets where, and through what, the workflow lands
// after it is done.
func WithHomeNavigation(nav redirect.Navigator, homeURL string) ResolverOption {
	return func(r *Resolver) {
		r.homeNav = nav
		r.homeURL = homeURL
	}
}

// WithBasePath sets the invitation page path encoded into the sign-in
// return path.
func WithBasePath(path string) ResolverOption {
	return func(r *Resolver) {
		r.basePath = path
	}
}

// NewResolver creates a resolver for one mount of the invitation page.
func NewResolver(broker *credentials.Broker, store *pending.Store, api API, gate *redirect.Gate, options ...ResolverOption) *Resolver {
	r := &Resolver{
		broker:    broker,
		store:     store,
		api:       api,
		gate:      gate,
		basePath:  "/invitations/accept",
		homeURL:   "/",
		doneDelay: defaultDoneDelay,
		log:       zerolog.Nop(),
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Resolve runs the state machine from the top: collect the addressing
// information, settle auth state, fire the redirect gate when the session
// is missing, otherwise look the invitation up and move to review.
// A returned error is a recoverable load failure; Retry re-runs the same
// attempt.
func (r *Resolver) Resolve(ctx context.Context, params Params) error {
	r.mu.Lock()
	r.lastParams = params
	r.loadErr = nil
	r.mu.Unlock()

	if strings.TrimSpace(params.Token) == "" {
		// Malformed link: terminal display, never enters checking.
		r.mu.Lock()
		r.incomplete = true
		r.step = StepCollect
		r.mu.Unlock()
		if err := r.store.Clear(); err != nil {
			r.log.Warn().Err(err).Msg("clearing pending invitation for malformed link")
		}
		return nil
	}

	record, err := r.collect(params)
	if err != nil {
		return r.failLoad(err)
	}

	r.setAuthState(AuthChecking)

	token, err := r.broker.Token(ctx)
	if err != nil {
		return r.failLoad(err)
	}
	if r.isCancelled() {
		return nil
	}

	if token == "" {
		r.setAuthState(AuthUnauthenticated)
		r.gate.Redirect(redirect.ReturnPath(r.basePath, record.Token, record.InvitationID))
		return nil
	}
	r.setAuthState(AuthAuthenticated)

	detail, err := r.lookup(ctx, record)
	if err != nil {
		return r.failLoad(err)
	}
	if r.isCancelled() {
		return nil
	}

	record, err = r.reconcile(record, detail)
	if err != nil {
		return r.failLoad(err)
	}

	mismatch := emailMismatch(token, detail.Email)

	r.mu.Lock()
	r.record = record
	r.detail = detail
	r.mismatch = mismatch
	r.step = StepReview
	r.mu.Unlock()
	return nil
}

// Retry re-runs the last attempt after a recoverable load failure.
func (r *Resolver) Retry(ctx context.Context) error {
	r.mu.Lock()
	params := r.lastParams
	r.mu.Unlock()
	return r.Resolve(ctx, params)
}

// Accept accepts the invitation under review.
func (r *Resolver) Accept(ctx context.Context) error {
	return r.respond(ctx, r.api.AcceptInvitation)
}

// Reject rejects the invitation under review.
func (r *Resolver) Reject(ctx context.Context) error {
	return r.respond(ctx, r.api.RejectInvitation)
}

// Teardown marks the mount as gone; results of in-flight work arriving
// afterwards are discarded instead of being applied.
func (r *Resolver) Teardown() {
	r.mu.Lock()
	r.cancelled = true
	r.mu.Unlock()
}

// State returns a snapshot of the workflow.
func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return State{
		AuthState:      r.authState,
		Step:           r.step,
		Record:         r.record,
		Detail:         r.detail,
		IncompleteLink: r.incomplete,
		EmailMismatch:  r.mismatch,
		LoadError:      r.loadErr,
		ActionError:    r.actionErr,
		CanRespond:     r.step == StepReview && r.detail != nil && r.detail.Status == controlplane.InvitationPending,
	}
}

// collect merges the URL addressing information with whatever survived
// the sign-in detour. A different token means a different workflow
// instance; the stale record is replaced wholesale.
func (r *Resolver) collect(params Params) (pending.Record, error) {
	record := pending.Record{
		Token:          params.Token,
		InvitationID:   params.InvitationID,
		OrganizationID: params.OrganizationID,
	}

	stored, ok, err := r.store.Load()
	if err != nil {
		return pending.Record{}, err
	}
	if ok && stored.Token == params.Token {
		record = stored.Refine(params.InvitationID, params.OrganizationID)
	}

	if err := r.store.Persist(record); err != nil {
		return pending.Record{}, err
	}

	r.mu.Lock()
	r.record = record
	r.mu.Unlock()
	return record, nil
}

// lookup performs the decided detail fetch.
func (r *Resolver) lookup(ctx context.Context, record pending.Record) (*controlplane.InvitationDetail, error) {
	lookup := DecideLookup(record)
	switch lookup.Kind {
	case LookupOrganization:
		return r.api.OrganizationInvitation(ctx, lookup.OrganizationID, lookup.InvitationID)
	case LookupInvitation:
		return r.api.InvitationByID(ctx, lookup.InvitationID)
	default:
		return r.api.InvitationByToken(ctx, lookup.Token)
	}
}

// reconcile refines the persisted record with the canonical identifiers
// the backend returned. When a previously persisted concrete value
// disagrees, the server value wins and the record is rebuilt for the
// current workflow.
func (r *Resolver) reconcile(record pending.Record, detail *controlplane.InvitationDetail) (pending.Record, error) {
	if record.Conflicts(detail.InvitationID, detail.OrganizationID) {
		r.log.Warn().
			Str("stored_invitation_id", record.InvitationID).
			Str("canonical_invitation_id", detail.InvitationID).
			Msg("pending invitation record conflicts with server; rebuilding")
		record = pending.Record{Token: record.Token}
	}
	record = record.Refine(detail.InvitationID, detail.OrganizationID)
	if err := r.store.Persist(record); err != nil {
		return pending.Record{}, err
	}
	return record, nil
}

type respondCall func(ctx context.Context, organizationID string, req controlplane.RespondInvitationRequest) (*controlplane.InvitationDetail, error)

// respond runs accept or reject with the shared guards: review step,
// pending status, and fully resolved addressing. Failures stay inline and
// never clear the pending record, so a retry needs no re-navigation.
func (r *Resolver) respond(ctx context.Context, call respondCall) error {
	r.mu.Lock()
	if r.step != StepReview || r.detail == nil {
		r.mu.Unlock()
		return consoleerrors.ErrInvitationNotFound
	}
	if r.detail.Status != controlplane.InvitationPending {
		err := consoleerrors.ErrInvitationNotPending
		r.actionErr = err
		r.mu.Unlock()
		return err
	}
	record := r.record
	detail := r.detail
	r.actionErr = nil
	r.mu.Unlock()

	organizationID := detail.OrganizationID
	if organizationID == "" {
		organizationID = record.OrganizationID
	}
	invitationID := detail.InvitationID
	if invitationID == "" {
		invitationID = record.InvitationID
	}
	if organizationID == "" || invitationID == "" {
		// Fail fast before any network call.
		err := consoleerrors.ErrMissingOrganization
		r.mu.Lock()
		r.actionErr = err
		r.mu.Unlock()
		return err
	}

	updated, err := call(ctx, organizationID, controlplane.RespondInvitationRequest{
		InvitationID: invitationID,
		Token:        record.Token,
	})
	if r.isCancelled() {
		return nil
	}
	if err != nil {
		r.mu.Lock()
		r.actionErr = err
		r.mu.Unlock()
		return err
	}

	r.mu.Lock()
	r.detail = updated
	r.step = StepDone
	r.mu.Unlock()

	if err := r.store.Clear(); err != nil {
		r.log.Warn().Err(err).Msg("clearing pending invitation after response")
	}

	r.scheduleHomeNavigation()
	return nil
}

// scheduleHomeNavigation navigates to the default landing area exactly
// once, after the user-visible delay.
func (r *Resolver) scheduleHomeNavigation() {
	if r.homeNav == nil {
		return
	}
	time.AfterFunc(r.doneDelay, func() {
		r.mu.Lock()
		if r.cancelled || r.navigated {
			r.mu.Unlock()
			return
		}
		r.navigated = true
		r.mu.Unlock()
		r.homeNav.Navigate(r.homeURL)
	})
}

func (r *Resolver) setAuthState(state AuthState) {
	r.mu.Lock()
	r.authState = state
	r.mu.Unlock()
}

func (r *Resolver) isCancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled
}

func (r *Resolver) failLoad(err error) error {
	r.mu.Lock()
	if !r.cancelled {
		r.loadErr = err
	}
	r.mu.Unlock()
	return err
}

// emailMismatch reports whether the invitation is addressed to somebody
// other than the signed-in user. The backend enforces this on accept;
// surfacing it early saves a doomed round-trip.
func emailMismatch(rawToken, invitationEmail string) bool {
	identity, err := credentials.ParseIdentity(rawToken)
	if err != nil || identity.Email == "" || invitationEmail == "" {
		return false
	}
	return !strings.EqualFold(identity.Email, invitationEmail)
}
