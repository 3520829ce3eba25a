// Package pending bridges invitation context across the sign-in detour.
// The record it keeps is the minimal addressing information needed to
// resume resolving an invitation once the user is authenticated again.
package pending

// Record is the persisted addressing state for one invitation workflow.
// Token is immutable for the lifetime of a workflow instance; the two
// identifiers start empty and are refined once the backend reports the
// canonical values.
type Record struct {
	InvitationID   string `json:"invitationId,omitempty"`
	Token          string `json:"token"`
	OrganizationID string `json:"organizationId,omitempty"`
}

// Equal reports value equality; the Store uses it to suppress redundant
// writes.
func (r Record) Equal(other Record) bool {
	return r == other
}

// Refine fills empty identifier fields from canonical backend values.
// Concrete values already present are left untouched; Conflicts reports
// whether the backend disagreed with them.
func (r Record) Refine(invitationID, organizationID string) Record {
	if r.InvitationID == "" {
		r.InvitationID = invitationID
	}
	if r.OrganizationID == "" {
		r.OrganizationID = organizationID
	}
	return r
}

// Conflicts reports whether the backend's canonical identifiers disagree
// with concrete values already persisted. A conflict means the record
// belongs to an earlier, different invitation.
func (r Record) Conflicts(invitationID, organizationID string) bool {
	if r.InvitationID != "" && invitationID != "" && r.InvitationID != invitationID {
		return true
	}
	if r.OrganizationID != "" && organizationID != "" && r.OrganizationID != organizationID {
		return true
	}
	return false
}
