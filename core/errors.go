package core

import "errors"

var (
	// ErrSessionExpired is returned when every credential tier is exhausted
	// and the caller must force a new login.
	ErrSessionExpired = errors.New("session has expired")

	// ErrSessionNotFound is returned when no credential set exists for a session
	ErrSessionNotFound = errors.New("session not found")

	// ErrNoRiskToken is returned when a login attempt carries no risk token
	ErrNoRiskToken = errors.New("no risk token provided")

	// ErrRiskRejected is a policy decision, not a fault
	ErrRiskRejected = errors.New("login rejected by risk assessment")

	// ErrRiskUnavailable is returned when the risk provider faults or times out
	ErrRiskUnavailable = errors.New("risk assessment service unavailable")

	// ErrInvalidGrant is returned by the identity provider when a refresh
	// or offline credential is no longer accepted.
	ErrInvalidGrant = errors.New("invalid grant")

	// ErrIdpExchangeFailed is returned when the authorization-code exchange fails
	ErrIdpExchangeFailed = errors.New("identity provider exchange failed")

	// ErrAuditUnavailable is returned when the audit store cannot be written
	ErrAuditUnavailable = errors.New("audit store unavailable")

	// ErrInvalidCookie is returned when a session cookie fails verification
	ErrInvalidCookie = errors.New("invalid session cookie")
)
