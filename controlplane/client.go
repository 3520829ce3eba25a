// Package controlplane is the REST client for the gateway control-plane
// API. One Client is bound to one browser session: its http.Client owns
// the cookie jar carrying the control plane's refresh cookie.
package controlplane

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	consoleerrors "github.com/gatewaylabs/console/internal/errors"
)

const (
	routeIssueToken        = "/v1/auth/token"
	routeInvitationLookup  = "/v1/organizations/invitations/lookup"
	routeInvitationGet     = "/v1/organizations/invitations/get"
	routeOrgInvitationGet  = "/v1/organizations/%s/get-invitation"
	routeAcceptInvitation  = "/v1/organizations/%s/accept-invitation"
	routeRejectInvitation  = "/v1/organizations/%s/reject-invitation"
	headerRequestID        = "X-Request-ID"
	headerAuthorization    = "Authorization"
	bearerPrefix           = "Bearer "
	maxErrorResponseLength = 4096
)

// BearerSource supplies the access credential for authorized calls.
// Implemented by credentials.Broker; an empty credential with a nil error
// means the caller has no session.
type BearerSource interface {
	Token(ctx context.Context) (string, error)
}

// Client calls the gateway control plane on behalf of one browser session.
type Client struct {
	baseURL    string
	httpClient *http.Client
	bearer     BearerSource
	log        zerolog.Logger
}

// ClientOption modifies a Client.
type ClientOption func(*Client)

// WithLogger sets the client logger.
func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// New creates a control-plane client. httpClient must carry the session's
// cookie jar; pass nil to use a fresh client with no jar (tests).
func New(baseURL string, httpClient *http.Client, options ...ClientOption) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		log:        zerolog.Nop(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// SetBearerSource wires the credential broker in after construction; the
// broker itself depends on this client for renewal.
func (c *Client) SetBearerSource(src BearerSource) {
	c.bearer = src
}

// HTTPClient exposes the underlying client so the sign-in exchange can
// ride the same cookie jar.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// IssueToken exchanges the session cookie for a fresh access credential.
// A 401 means "no session" and is reported as ErrAuthenticationRequired,
// never as a transport failure. The request never carries a bearer.
func (c *Client) IssueToken(ctx context.Context, actAs *ActAs) (string, error) {
	var resp TokenResponse
	err := c.do(ctx, http.MethodPost, routeIssueToken, nil, IssueTokenRequest{ActAs: actAs}, &resp, false)
	if err != nil {
		return "", errors.Wrap(err, "Client.IssueToken")
	}
	return resp.Token, nil
}

// InvitationByToken looks an invitation up by its opaque emailed token.
func (c *Client) InvitationByToken(ctx context.Context, token string) (*InvitationDetail, error) {
	q := url.Values{"token": {token}}
	var detail InvitationDetail
	if err := c.do(ctx, http.MethodGet, routeInvitationLookup, q, nil, &detail, true); err != nil {
		return nil, errors.Wrap(err, "Client.InvitationByToken")
	}
	return &detail, nil
}

// InvitationByID looks an invitation up by its canonical identifier.
func (c *Client) InvitationByID(ctx context.Context, invitationID string) (*InvitationDetail, error) {
	q := url.Values{"invitation_id": {invitationID}}
	var detail InvitationDetail
	if err := c.do(ctx, http.MethodGet, routeInvitationGet, q, nil, &detail, true); err != nil {
		return nil, errors.Wrap(err, "Client.InvitationByID")
	}
	return &detail, nil
}

// OrganizationInvitation is the organization-scoped detail endpoint, the
// most specific of the three lookups.
func (c *Client) OrganizationInvitation(ctx context.Context, organizationID, invitationID string) (*InvitationDetail, error) {
	q := url.Values{"invitation_id": {invitationID}}
	path := fmt.Sprintf(routeOrgInvitationGet, url.PathEscape(organizationID))
	var detail InvitationDetail
	if err := c.do(ctx, http.MethodGet, path, q, nil, &detail, true); err != nil {
		return nil, errors.Wrap(err, "Client.OrganizationInvitation")
	}
	return &detail, nil
}

// AcceptInvitation accepts a pending invitation.
func (c *Client) AcceptInvitation(ctx context.Context, organizationID string, req RespondInvitationRequest) (*InvitationDetail, error) {
	path := fmt.Sprintf(routeAcceptInvitation, url.PathEscape(organizationID))
	var detail InvitationDetail
	if err := c.do(ctx, http.MethodPost, path, nil, req, &detail, true); err != nil {
		return nil, errors.Wrap(err, "Client.AcceptInvitation")
	}
	return &detail, nil
}

// RejectInvitation rejects a pending invitation.
func (c *Client) RejectInvitation(ctx context.Context, organizationID string, req RespondInvitationRequest) (*InvitationDetail, error) {
	path := fmt.Sprintf(routeRejectInvitation, url.PathEscape(organizationID))
	var detail InvitationDetail
	if err := c.do(ctx, http.MethodPost, path, nil, req, &detail, true); err != nil {
		return nil, errors.Wrap(err, "Client.RejectInvitation")
	}
	return &detail, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, authorized bool) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "marshal request")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerRequestID, uuid.New().String())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if authorized {
		if c.bearer == nil {
			return consoleerrors.ErrAuthenticationRequired
		}
		token, err := c.bearer.Token(ctx)
		if err != nil {
			return errors.Wrap(err, "acquire credential")
		}
		if token == "" {
			return consoleerrors.ErrAuthenticationRequired
		}
		req.Header.Set(headerAuthorization, bearerPrefix+token)
	}

	c.log.Debug().Str("method", method).Str("path", path).Msg("control-plane request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "control-plane request")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.statusError(resp)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

// statusError maps backend status codes onto the console error taxonomy.
func (c *Client) statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorResponseLength))
	detail := ""
	var envelope errorResponse
	if json.Unmarshal(raw, &envelope) == nil {
		detail = envelope.Detail
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return consoleerrors.ErrAuthenticationRequired
	case http.StatusNotFound:
		return consoleerrors.ErrInvitationNotFound
	case http.StatusForbidden, http.StatusConflict, http.StatusBadRequest:
		if detail != "" {
			return fmt.Errorf("%w: %s", consoleerrors.ErrActionRejected, detail)
		}
		return consoleerrors.ErrActionRejected
	default:
		if detail == "" {
			detail = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("control plane returned %d: %s", resp.StatusCode, detail)
	}
}
