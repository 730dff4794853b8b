package ports

import "github.com/veriford/trustcore/core"

// SessionCookie is the payload carried by the signed session artifact.
// The credential pair is sealed before signing so the cookie stays opaque
// to the browser.
type SessionCookie struct {
	SessionID     string
	UserID        string
	Access        core.Credential
	Refresh       core.Credential
	TermsAccepted bool
}

// SessionSigner mints and verifies the opaque session cookie.
type SessionSigner interface {
	Mint(cookie *SessionCookie) (string, error)

	// Parse verifies the signature and unseals the payload; tampered or
	// malformed cookies map to core.ErrInvalidCookie.
	Parse(value string) (*SessionCookie, error)
}
