package ports

import (
	"context"

	"github.com/veriford/trustcore/core"
)

// TokenStore holds credential sets. Session containers are short lived and
// destroyed at logout; offline credentials are keyed by user identity and
// survive session destruction.
type TokenStore interface {
	// SaveSession atomically replaces the credential set for a session.
	SaveSession(ctx context.Context, sessionID string, set *core.CredentialSet) error

	// GetSession returns core.ErrSessionNotFound when no set exists.
	GetSession(ctx context.Context, sessionID string) (*core.CredentialSet, error)

	// DeleteSession destroys the session container. Offline credentials
	// are not touched.
	DeleteSession(ctx context.Context, sessionID string) error

	// SaveOffline durably persists an offline credential for a user.
	SaveOffline(ctx context.Context, userID string, cred core.Credential) error

	// GetOffline returns core.ErrSessionNotFound when the user has no
	// offline credential.
	GetOffline(ctx context.Context, userID string) (core.Credential, error)

	// DeleteOffline removes a user's offline credential.
	DeleteOffline(ctx context.Context, userID string) error
}
