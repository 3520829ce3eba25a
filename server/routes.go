package server

func (s *Server) initRoutes() {
	// Sign-in boundary
	s.RegisterRouteFunc("GET "+RouteSignIn, ChainMiddleware(s.SignInHandler(), s.StdMiddleware(s.RequireSession())...))
	s.RegisterRouteFunc("GET "+RouteSignInCallback, ChainMiddleware(s.SignInCallbackHandler(), s.StdMiddleware(s.RequireSession())...))
	s.RegisterRouteFunc("GET "+RouteSignOut, ChainMiddleware(s.SignOutHandler(), s.StdMiddleware(s.RequireSession())...))

	// Invitation workflow
	s.RegisterRouteFunc("GET "+RouteInvitationFlow, ChainMiddleware(s.InvitationFlowHandler(), s.StdMiddleware(s.RequireSession())...))
	s.RegisterRouteFunc("POST "+RouteInvitationAccept, ChainMiddleware(s.InvitationRespondHandler(respondAccept), s.StdMiddleware(s.RequireSession())...))
	s.RegisterRouteFunc("POST "+RouteInvitationReject, ChainMiddleware(s.InvitationRespondHandler(respondReject), s.StdMiddleware(s.RequireSession())...))
}
