package controlplane

import "time"

// InvitationStatus is the lifecycle status of an organization invitation.
// Every status except pending is terminal.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationRejected InvitationStatus = "rejected"
	InvitationCanceled InvitationStatus = "canceled"
)

// IsTerminal reports whether no further accept/reject action is permitted.
func (s InvitationStatus) IsTerminal() bool {
	return s != InvitationPending && s != ""
}

// ActAs scopes an issued credential to a specific organization and role.
type ActAs struct {
	OrganizationID string `json:"organization_id"`
	Role           string `json:"role"`
}

// IssueTokenRequest is the body of POST /v1/auth/token. The refresh
// artifact travels in the session cookie, never in the body.
type IssueTokenRequest struct {
	ActAs *ActAs `json:"act_as,omitempty"`
}

// TokenResponse carries the issued bearer credential.
type TokenResponse struct {
	Token string `json:"token"`
}

// InvitationDetail is the server-of-record view of an organization
// invitation. The console only ever holds a read-only snapshot.
type InvitationDetail struct {
	InvitationID   string           `json:"invitation_id"`
	OrganizationID string           `json:"organization_id"`
	Email          string           `json:"email"`
	InviterName    string           `json:"inviter_name,omitempty"`
	Role           string           `json:"role"`
	Status         InvitationStatus `json:"status"`
	ExpiresAt      time.Time        `json:"expires_at"`
	UsedAt         *time.Time       `json:"used_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// RespondInvitationRequest is the body of the accept/reject endpoints.
type RespondInvitationRequest struct {
	InvitationID string `json:"invitation_id"`
	Token        string `json:"token"`
}

// errorResponse is the backend's error envelope.
type errorResponse struct {
	Detail string `json:"detail"`
}
