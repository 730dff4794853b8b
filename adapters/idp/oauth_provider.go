package idp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/veriford/trustcore/config"
	"github.com/veriford/trustcore/core"
	"github.com/veriford/trustcore/ports"
)

// OAuthProvider implements the IdentityProvider interface against a
// realm-scoped OIDC provider. Offline sessions are granted through the
// refresh grant when the offline_access scope is requested: the refresh
// token of every response doubles as the offline credential, so providers
// that rotate it on use surface the fresh offline value on each refresh
// and callers must persist it from there.
type OAuthProvider struct {
	conf    *oauth2.Config
	client  *http.Client
	timeout time.Duration

	userInfoURL string
	offline     bool
}

// NewOAuthProvider builds the provider from configuration.
func NewOAuthProvider(cfg config.IdPConfig) ports.IdentityProvider {
	base := strings.TrimSuffix(cfg.BaseURL, "/") + "/realms/" + cfg.Realm + "/protocol/openid-connect"

	offline := false
	for _, s := range cfg.Scopes {
		if s == "offline_access" {
			offline = true
			break
		}
	}

	return &OAuthProvider{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  base + "/auth",
				TokenURL: base + "/token",
			},
		},
		client:      &http.Client{Timeout: cfg.Timeout.Std()},
		timeout:     cfg.Timeout.Std(),
		userInfoURL: base + "/userinfo",
		offline:     offline,
	}
}

// callCtx bounds the call and routes oauth2's internal HTTP through the
// timeout-bearing client.
func (p *OAuthProvider) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	return context.WithValue(ctx, oauth2.HTTPClient, p.client), cancel
}

// ExchangeCode trades an authorization code for the credential tiers
func (p *OAuthProvider) ExchangeCode(ctx context.Context, code, redirectURI string) (*ports.TokenResponse, error) {
	ctx, cancel := p.callCtx(ctx)
	defer cancel()

	opts := []oauth2.AuthCodeOption{}
	if redirectURI != "" {
		opts = append(opts, oauth2.SetAuthURLParam("redirect_uri", redirectURI))
	}

	tok, err := p.conf.Exchange(ctx, code, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrIdpExchangeFailed, err)
	}

	return p.toResponse(tok), nil
}

// Refresh rotates a refresh or offline credential
func (p *OAuthProvider) Refresh(ctx context.Context, refreshToken string) (*ports.TokenResponse, error) {
	ctx, cancel := p.callCtx(ctx)
	defer cancel()

	tok, err := p.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode == "invalid_grant" {
			return nil, fmt.Errorf("%w: %v", core.ErrInvalidGrant, err)
		}
		return nil, fmt.Errorf("refresh failed: %w", err)
	}

	resp := p.toResponse(tok)
	if resp.RefreshToken == "" {
		// Some providers omit the rotated token when rotation is
		// disabled; the old value stays valid then.
		resp.RefreshToken = refreshToken
	}

	return resp, nil
}

// UserInfo fetches identity claims for an access credential
func (p *OAuthProvider) UserInfo(ctx context.Context, accessToken string) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo returned status %d", resp.StatusCode)
	}

	var claims map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo: %w", err)
	}

	return claims, nil
}

func (p *OAuthProvider) toResponse(tok *oauth2.Token) *ports.TokenResponse {
	resp := &ports.TokenResponse{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}

	if !tok.Expiry.IsZero() {
		resp.ExpiresIn = time.Until(tok.Expiry)
	}
	if idToken, ok := tok.Extra("id_token").(string); ok {
		resp.IDToken = idToken
	}
	if v, ok := tok.Extra("refresh_expires_in").(float64); ok {
		resp.RefreshExpiresIn = time.Duration(v) * time.Second
	}
	if p.offline {
		resp.OfflineToken = tok.RefreshToken
	}

	return resp
}
