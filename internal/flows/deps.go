package flows

// Deps groups flow dependency sets. The root Gate builds this once and delegates
// request methods to the matching flow implementation.
type Deps struct {
	Authenticate AuthenticateDeps
	Refresh      RefreshSessionDeps
	Login        LoginDeps
	Logout       LogoutDeps
}
