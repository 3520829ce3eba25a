package invitations

import "github.com/gatewaylabs/console/invitations/pending"

// LookupKind tags which detail endpoint a lookup should target.
type LookupKind int

const (
	// LookupOrganization targets the organization-scoped detail endpoint.
	LookupOrganization LookupKind = iota
	// LookupInvitation targets the id-scoped detail endpoint.
	LookupInvitation
	// LookupToken targets the token-scoped lookup endpoint.
	LookupToken
)

// Lookup is the request variant produced by DecideLookup.
type Lookup struct {
	Kind           LookupKind
	OrganizationID string
	InvitationID   string
	Token          string
}

// DecideLookup picks the most specific lookup the pending record allows:
// organization+id, then id, then the bare token. It is a pure function of
// the record so the tie-break order is testable in isolation.
func DecideLookup(record pending.Record) Lookup {
	switch {
	case record.OrganizationID != "" && record.InvitationID != "":
		return Lookup{
			Kind:           LookupOrganization,
			OrganizationID: record.OrganizationID,
			InvitationID:   record.InvitationID,
		}
	case record.InvitationID != "":
		return Lookup{
			Kind:         LookupInvitation,
			InvitationID: record.InvitationID,
		}
	default:
		return Lookup{
			Kind:  LookupToken,
			Token: record.Token,
		}
	}
}
