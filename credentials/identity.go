package credentials

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/gatewaylabs/console/controlplane"
)

// Identity is the display view of the signed-in user carried inside the
// access credential. It is decoded without verification: the credential
// stays an opaque bearer for authorization purposes and the backend is
// the only verifier. Never use these claims for expiry decisions.
type Identity struct {
	UserID string
	Name   string
	Email  string
	ActAs  *controlplane.ActAs
}

// ParseIdentity extracts the identity claims from a raw credential.
func ParseIdentity(rawToken string) (*Identity, error) {
	unverified, _, err := jwt.NewParser().ParseUnverified(rawToken, jwt.MapClaims{})
	if err != nil {
		return nil, errors.Wrap(err, "credentials.ParseIdentity")
	}

	claims, ok := unverified.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("credentials.ParseIdentity: error extracting claims")
	}

	identity := &Identity{}
	identity.UserID, _ = claims["user_id"].(string)
	identity.Name, _ = claims["name"].(string)
	identity.Email, _ = claims["email"].(string)

	if actAs, ok := claims["act_as"].(map[string]any); ok {
		orgID, _ := actAs["organization_id"].(string)
		role, _ := actAs["role"].(string)
		if orgID != "" || role != "" {
			identity.ActAs = &controlplane.ActAs{OrganizationID: orgID, Role: role}
		}
	}

	return identity, nil
}
