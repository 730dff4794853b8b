package signer

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veriford/trustcore/core"
	"github.com/veriford/trustcore/ports"
)

func testCookie() *ports.SessionCookie {
	now := time.Now()
	return &ports.SessionCookie{
		SessionID: "sess-1",
		UserID:    "user-1",
		Access: core.Credential{
			Kind: core.CredentialAccess, Value: "access-token", IssuedAt: now, TTL: 5 * time.Minute,
		},
		Refresh: core.Credential{
			Kind: core.CredentialRefresh, Value: "refresh-token", IssuedAt: now, TTL: 30 * time.Minute,
		},
		TermsAccepted: true,
	}
}

func TestMintParseRoundTrip(t *testing.T) {
	s := NewJWTSigner("sign-secret", "seal-secret")

	value, err := s.Mint(testCookie())
	require.NoError(t, err)

	parsed, err := s.Parse(value)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", parsed.SessionID)
	assert.Equal(t, "user-1", parsed.UserID)
	assert.Equal(t, "access-token", parsed.Access.Value)
	assert.Equal(t, "refresh-token", parsed.Refresh.Value)
	assert.True(t, parsed.TermsAccepted)
	assert.WithinDuration(t, testCookie().Refresh.ExpiresAt(), parsed.Refresh.ExpiresAt(), time.Second)
}

func TestCookieCarriesNoClearTokenMaterial(t *testing.T) {
	s := NewJWTSigner("sign-secret", "seal-secret")

	value, err := s.Mint(testCookie())
	require.NoError(t, err)

	assert.NotContains(t, value, "access-token")
	assert.NotContains(t, value, "refresh-token")
}

func TestParseRejectsTamperedCookie(t *testing.T) {
	s := NewJWTSigner("sign-secret", "seal-secret")

	value, err := s.Mint(testCookie())
	require.NoError(t, err)

	// Flip a character in the payload segment.
	parts := strings.Split(value, ".")
	require.Len(t, parts, 3)
	payload := []byte(parts[1])
	if payload[0] == 'A' {
		payload[0] = 'B'
	} else {
		payload[0] = 'A'
	}
	tampered := parts[0] + "." + string(payload) + "." + parts[2]

	_, err = s.Parse(tampered)
	assert.ErrorIs(t, err, core.ErrInvalidCookie)
}

func TestParseRejectsWrongSigningKey(t *testing.T) {
	minter := NewJWTSigner("sign-secret", "seal-secret")
	verifier := NewJWTSigner("other-secret", "seal-secret")

	value, err := minter.Mint(testCookie())
	require.NoError(t, err)

	_, err = verifier.Parse(value)
	assert.ErrorIs(t, err, core.ErrInvalidCookie)
}

func TestParseRejectsWrongSealKey(t *testing.T) {
	minter := NewJWTSigner("sign-secret", "seal-secret")
	verifier := NewJWTSigner("sign-secret", "other-seal")

	value, err := minter.Mint(testCookie())
	require.NoError(t, err)

	_, err = verifier.Parse(value)
	assert.ErrorIs(t, err, core.ErrInvalidCookie)
}

func TestParseRejectsGarbage(t *testing.T) {
	s := NewJWTSigner("sign-secret", "seal-secret")

	_, err := s.Parse("not-a-cookie")
	assert.ErrorIs(t, err, core.ErrInvalidCookie)
}

func TestParseRejectsExpiredCookie(t *testing.T) {
	s := NewJWTSigner("sign-secret", "seal-secret")

	cookie := testCookie()
	cookie.Refresh.IssuedAt = time.Now().Add(-time.Hour)

	value, err := s.Mint(cookie)
	require.NoError(t, err)

	_, err = s.Parse(value)
	assert.ErrorIs(t, err, core.ErrInvalidCookie)
}
