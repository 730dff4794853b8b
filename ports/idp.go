package ports

import (
	"context"
	"time"
)

// TokenResponse is what the identity provider returns from an exchange
// or refresh call.
type TokenResponse struct {
	AccessToken      string
	RefreshToken     string
	OfflineToken     string
	IDToken          string
	ExpiresIn        time.Duration
	RefreshExpiresIn time.Duration
}

// IdentityProvider is the external OAuth/OIDC collaborator. This core never
// reimplements its cryptography; grant failures surface as
// core.ErrInvalidGrant.
type IdentityProvider interface {
	// ExchangeCode trades an authorization code for the credential tiers.
	ExchangeCode(ctx context.Context, code, redirectURI string) (*TokenResponse, error)

	// Refresh rotates a refresh (or offline) credential. The returned
	// refresh token replaces the one passed in; providers rotate on use.
	Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error)

	// UserInfo fetches identity claims for an access credential.
	UserInfo(ctx context.Context, accessToken string) (map[string]any, error)
}
