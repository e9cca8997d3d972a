package model

// Credential is the access/refresh token pair issued by the auth endpoints.
// Both tokens are opaque signed strings with an embedded expiry claim readable
// without server contact. The pair is always replaced atomically -- readers
// must never observe a half-updated pair.
type Credential struct {
	AccessToken  string
	RefreshToken string
}

// IsZero reports whether no credential is held.
func (c Credential) IsZero() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}

// Identity is the authenticated user profile returned at login and kept
// alongside the credential pair.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Avatar   string `json:"avatar"`
}

// Session bundles the credential pair with the authenticated identity.
// Identity is nil for a credential obtained without a profile payload.
type Session struct {
	Credential Credential
	Identity   *Identity
}

// Captcha is a server-generated captcha challenge used by the registration
// and guest-comment forms.
type Captcha struct {
	Key      string
	ImageURL string
}

// Registration is the payload for creating a new account.
type Registration struct {
	Username     string
	Email        string
	Password     string
	FirstName    string
	LastName     string
	CaptchaKey   string
	CaptchaValue string
}
