package auth

// LoginPageData encapsulates rendering state for the login screen.
type LoginPageData struct {
	Email     string
	Message   string
	Error     string
	Remember  bool
	Next      string
	LoginPath string
	CSRFToken string
	// SignedInAs is set when the visitor already holds a session.
	SignedInAs string
	// PasswordField hides the password input for authenticators that ignore it.
	PasswordField bool
	// TokenField renders a hidden id_token input populated by a client SDK.
	TokenField bool
}

// Action returns the form action, defaulting to /login.
func (d LoginPageData) Action() string {
	if d.LoginPath == "" {
		return "/login"
	}
	return d.LoginPath
}
