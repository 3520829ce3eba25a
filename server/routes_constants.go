package server

const (
	// Sign-in boundary
	RouteSignIn         = "/auth/signin"
	RouteSignInCallback = "/auth/callback"
	RouteSignOut        = "/auth/signout"

	// Invitation workflow
	RouteInvitationFlow   = "/api/invitation-flow"
	RouteInvitationAccept = "/api/invitation-flow/accept"
	RouteInvitationReject = "/api/invitation-flow/reject"

	// Where the invitation page lives in the front end; encoded into the
	// sign-in return path so the workflow resumes after the detour.
	RouteInvitationPage = "/invitations/accept"

	// Default landing area after a finished workflow
	RouteHome = "/"
)
