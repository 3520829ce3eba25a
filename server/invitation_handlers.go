package server

import (
	"encoding/json"
	"net/http"

	"github.com/gatewaylabs/console/controlplane"
	"github.com/gatewaylabs/console/invitations"
	"github.com/gatewaylabs/console/redirect"
	"github.com/gatewaylabs/console/sessions"
)

type respondKind int

const (
	respondAccept respondKind = iota
	respondReject
)

// flowState is the JSON snapshot the front end renders from.
type flowState struct {
	AuthState      string                         `json:"auth_state"`
	Step           string                         `json:"step"`
	Detail         *controlplane.InvitationDetail `json:"detail,omitempty"`
	IncompleteLink bool                           `json:"incomplete_link"`
	EmailMismatch  bool                           `json:"email_mismatch"`
	LoadError      string                         `json:"load_error,omitempty"`
	ActionError    string                         `json:"action_error,omitempty"`
	CanRespond     bool                           `json:"can_respond"`
	RedirectTo     string                         `json:"redirect_to,omitempty"`
	HomeURL        string                         `json:"home_url,omitempty"`
	HomeDelayMs    int64                          `json:"home_delay_ms,omitempty"`
}

// newResolver builds a resolver for one request. The gate's navigator
// captures the sign-in destination so it travels back as part of the
// JSON snapshot; the front end performs the actual navigation.
func (s *Server) newResolver(session *sessions.Session, capture *captureNavigator) *invitations.Resolver {
	gate := redirect.NewGate(RouteSignIn, capture, redirect.WithLogger(s.log))
	return invitations.NewResolver(
		session.Broker,
		s.sessions.PendingStore(session.ID),
		session.Client,
		gate,
		invitations.WithLogger(s.log),
		invitations.WithBasePath(RouteInvitationPage),
		invitations.WithDoneDelay(s.config.GetDoneRedirectDelay()),
	)
}

// captureNavigator records the one destination the gate fires.
type captureNavigator struct {
	url string
}

func (n *captureNavigator) Navigate(url string) {
	n.url = url
}

func invitationParams(r *http.Request) invitations.Params {
	q := r.URL.Query()
	return invitations.Params{
		Token:          q.Get("token"),
		InvitationID:   q.Get("invitation_id"),
		OrganizationID: q.Get("organization_id"),
	}
}

// InvitationFlowHandler resolves the invitation addressed by the query
// parameters and returns the workflow snapshot.
func (s *Server) InvitationFlowHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := sessionFromContext(r.Context())
		capture := &captureNavigator{}
		resolver := s.newResolver(session, capture)
		defer resolver.Teardown()

		if err := resolver.Resolve(r.Context(), invitationParams(r)); err != nil {
			s.log.Warn().Err(err).Msg("invitation resolve failed")
		}
		s.renderFlowState(w, resolver.State(), capture.url)
	}
}

// InvitationRespondHandler resolves and then accepts or rejects in one
// round-trip; the resolver lives for exactly this request.
func (s *Server) InvitationRespondHandler(kind respondKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := sessionFromContext(r.Context())
		capture := &captureNavigator{}
		resolver := s.newResolver(session, capture)
		defer resolver.Teardown()

		if err := resolver.Resolve(r.Context(), invitationParams(r)); err != nil {
			s.log.Warn().Err(err).Msg("invitation resolve failed")
			s.renderFlowState(w, resolver.State(), capture.url)
			return
		}

		var err error
		if kind == respondAccept {
			err = resolver.Accept(r.Context())
		} else {
			err = resolver.Reject(r.Context())
		}
		if err != nil {
			s.log.Warn().Err(err).Msg("invitation response failed")
		}
		s.renderFlowState(w, resolver.State(), capture.url)
	}
}

func (s *Server) renderFlowState(w http.ResponseWriter, state invitations.State, redirectTo string) {
	out := flowState{
		AuthState:      state.AuthState.String(),
		Step:           state.Step.String(),
		Detail:         state.Detail,
		IncompleteLink: state.IncompleteLink,
		EmailMismatch:  state.EmailMismatch,
		CanRespond:     state.CanRespond,
		RedirectTo:     redirectTo,
	}
	if state.LoadError != nil {
		out.LoadError = state.LoadError.Error()
	}
	if state.ActionError != nil {
		out.ActionError = state.ActionError.Error()
	}
	if state.Step == invitations.StepDone {
		out.HomeURL = RouteHome
		out.HomeDelayMs = s.config.GetDoneRedirectDelay().Milliseconds()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		s.log.Error().Err(err).Msg("failed to encode flow state")
	}
}
