// Package metrics keeps in-process counters for the login trust core.
// Counters are plain atomics; exporters can poll Snapshot at their own
// cadence.
package metrics

import "sync/atomic"

// Counters tracks operational events that must stay observable even when
// the user-facing flow succeeds.
type Counters struct {
	loginsAllowed  atomic.Uint64
	loginsBlocked  atomic.Uint64
	loginErrors    atomic.Uint64
	riskFailOpen   atomic.Uint64
	auditWriteFail atomic.Uint64
	refreshCalls   atomic.Uint64
	sessionExpired atomic.Uint64
}

// New creates a zeroed counter set for injection.
func New() *Counters {
	return &Counters{}
}

// LoginAllowed records an allowed attempt.
func (c *Counters) LoginAllowed() { c.loginsAllowed.Add(1) }

// LoginBlocked records a blocked attempt.
func (c *Counters) LoginBlocked() { c.loginsBlocked.Add(1) }

// LoginError records a faulted attempt.
func (c *Counters) LoginError() { c.loginErrors.Add(1) }

// RiskFailOpen records a risk-provider fault that was let through.
// A rising value means the system is running in degraded (open) mode.
func (c *Counters) RiskFailOpen() { c.riskFailOpen.Add(1) }

// AuditWriteFailed records a lost audit write. Silent audit loss is the
// failure this counter exists to surface.
func (c *Counters) AuditWriteFailed() { c.auditWriteFail.Add(1) }

// RefreshCall records one IdP refresh round-trip.
func (c *Counters) RefreshCall() { c.refreshCalls.Add(1) }

// SessionExpired records a session that exhausted every credential tier.
func (c *Counters) SessionExpired() { c.sessionExpired.Add(1) }

// Snapshot returns the current counter values.
func (c *Counters) Snapshot() map[string]uint64 {
	return map[string]uint64{
		"logins_allowed":     c.loginsAllowed.Load(),
		"logins_blocked":     c.loginsBlocked.Load(),
		"login_errors":       c.loginErrors.Load(),
		"risk_fail_open":     c.riskFailOpen.Load(),
		"audit_write_failed": c.auditWriteFail.Load(),
		"idp_refresh_calls":  c.refreshCalls.Load(),
		"sessions_expired":   c.sessionExpired.Load(),
	}
}
