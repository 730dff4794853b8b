package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/veriford/trustcore/config"
	"github.com/veriford/trustcore/core"
	"github.com/veriford/trustcore/internal/metrics"
	"github.com/veriford/trustcore/ports"
)

// SessionState names the per-session lifecycle states.
type SessionState string

const (
	StateValid             SessionState = "VALID"
	StateRefreshing        SessionState = "REFRESHING"
	StateOfflineRefreshing SessionState = "OFFLINE_REFRESHING"
	StateExpired           SessionState = "EXPIRED"
)

// Session identifies one authenticated session and its owning user.
type Session struct {
	ID     string
	UserID string
}

// LifecycleManager keeps a session's access credential valid with minimal
// IdP round-trips, cascading to the refresh and then offline tiers.
type LifecycleManager struct {
	idp      ports.IdentityProvider
	store    ports.TokenStore
	counters *metrics.Counters
	logger   *slog.Logger

	accessTTL  time.Duration
	refreshTTL time.Duration
	offlineTTL time.Duration

	// One in-flight refresh per session; concurrent callers wait for it
	// instead of issuing their own IdP calls. Providers rotate refresh
	// tokens on use, so uncoalesced calls would invalidate each other.
	group singleflight.Group

	now func() time.Time
}

// NewLifecycleManager creates a new lifecycle manager
func NewLifecycleManager(idp ports.IdentityProvider, store ports.TokenStore, cfg config.TokensConfig, counters *metrics.Counters, logger *slog.Logger) *LifecycleManager {
	return &LifecycleManager{
		idp:        idp,
		store:      store,
		counters:   counters,
		logger:     logger,
		accessTTL:  cfg.AccessTTL.Std(),
		refreshTTL: cfg.RefreshTTL.Std(),
		offlineTTL: cfg.OfflineTTL.Std(),
		now:        time.Now,
	}
}

// Initialize stores the credential tiers obtained from a code exchange and
// puts the session in the VALID state.
func (m *LifecycleManager) Initialize(ctx context.Context, session Session, resp *ports.TokenResponse) (*core.CredentialSet, error) {
	set, err := m.buildSet(resp, core.Credential{})
	if err != nil {
		return nil, err
	}

	if err := m.store.SaveSession(ctx, session.ID, set); err != nil {
		return nil, fmt.Errorf("failed to store session credentials: %w", err)
	}

	if set.HasOffline() {
		if err := m.store.SaveOffline(ctx, session.UserID, set.Offline); err != nil {
			return nil, fmt.Errorf("failed to store offline credential: %w", err)
		}
	}

	m.logger.Info("session initialized", "session_id", session.ID, "state", StateValid)
	return set, nil
}

// EnsureValid returns an unexpired access credential for the session,
// refreshing through the tiers as needed. Concurrent calls for the same
// session coalesce into one refresh; different sessions never share a lock.
// Returns core.ErrSessionExpired when every tier is exhausted.
func (m *LifecycleManager) EnsureValid(ctx context.Context, session Session) (core.Credential, error) {
	set, err := m.store.GetSession(ctx, session.ID)
	if err != nil {
		if errors.Is(err, core.ErrSessionNotFound) {
			return core.Credential{}, core.ErrSessionExpired
		}
		return core.Credential{}, err
	}

	if !set.Access.Expired(m.now()) {
		return set.Access, nil
	}

	// The refresh must finish even if this caller goes away: a half-written
	// credential set is worse than a wasted write, and followers of the
	// same flight still need the result.
	refreshCtx := context.WithoutCancel(ctx)

	v, err, _ := m.group.Do(session.ID, func() (any, error) {
		return m.refresh(refreshCtx, session)
	})
	if err != nil {
		return core.Credential{}, err
	}

	return v.(core.Credential), nil
}

// CurrentSet returns the stored credential set for a session.
func (m *LifecycleManager) CurrentSet(ctx context.Context, session Session) (*core.CredentialSet, error) {
	return m.store.GetSession(ctx, session.ID)
}

// Logout destroys the session container. The user's offline credential
// survives for unattended re-authentication.
func (m *LifecycleManager) Logout(ctx context.Context, session Session) error {
	if err := m.store.DeleteSession(ctx, session.ID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	m.logger.Info("session destroyed", "session_id", session.ID)
	return nil
}

// refresh drives the state machine for one coalesced flight.
func (m *LifecycleManager) refresh(ctx context.Context, session Session) (core.Credential, error) {
	// Re-read: a flight that settled just before this one may already
	// have rotated the set.
	set, err := m.store.GetSession(ctx, session.ID)
	if err != nil {
		if errors.Is(err, core.ErrSessionNotFound) {
			return core.Credential{}, core.ErrSessionExpired
		}
		return core.Credential{}, err
	}

	now := m.now()
	if !set.Access.Expired(now) {
		return set.Access, nil
	}

	if !set.Refresh.Expired(now) {
		m.logger.Info("refreshing session", "session_id", session.ID, "state", StateRefreshing)

		cred, err := m.rotate(ctx, session, set.Refresh.Value, set.Offline)
		if err == nil {
			return cred, nil
		}
		if !errors.Is(err, core.ErrInvalidGrant) {
			return core.Credential{}, err
		}
		// Refresh tier rejected; fall through to the offline tier.
	}

	offline := set.Offline
	if offline.Expired(now) {
		if stored, err := m.store.GetOffline(ctx, session.UserID); err == nil {
			offline = stored
		}
	}

	if !offline.Expired(now) {
		m.logger.Info("refreshing session from offline tier", "session_id", session.ID, "state", StateOfflineRefreshing)

		cred, err := m.offlineRefresh(ctx, session, offline)
		if err == nil {
			return cred, nil
		}
		if !errors.Is(err, core.ErrInvalidGrant) {
			return core.Credential{}, err
		}
	}

	m.logger.Warn("session credentials exhausted", "session_id", session.ID, "state", StateExpired)
	m.counters.SessionExpired()

	if err := m.store.DeleteSession(ctx, session.ID); err != nil {
		m.logger.Error("failed to delete expired session", "session_id", session.ID, "error", err)
	}

	return core.Credential{}, core.ErrSessionExpired
}

// rotate exchanges a refresh credential for a new access+refresh pair and
// atomically replaces the stored set. The pre-rotation refresh value is
// never reused.
func (m *LifecycleManager) rotate(ctx context.Context, session Session, refreshToken string, offline core.Credential) (core.Credential, error) {
	m.counters.RefreshCall()

	resp, err := m.idp.Refresh(ctx, refreshToken)
	if err != nil {
		return core.Credential{}, err
	}

	set, err := m.buildSet(resp, offline)
	if err != nil {
		return core.Credential{}, err
	}

	if err := m.store.SaveSession(ctx, session.ID, set); err != nil {
		return core.Credential{}, fmt.Errorf("failed to store rotated credentials: %w", err)
	}

	// Providers that rotate offline tokens on use hand the fresh value
	// back with the refresh response; the durable copy must follow it or
	// the offline fallback dies after the first rotation.
	if resp.OfflineToken != "" && set.HasOffline() {
		if err := m.store.SaveOffline(ctx, session.UserID, set.Offline); err != nil {
			return core.Credential{}, fmt.Errorf("failed to store rotated offline credential: %w", err)
		}
	}

	m.logger.Info("session refreshed", "session_id", session.ID, "state", StateValid)
	return set.Access, nil
}

// offlineRefresh exchanges the offline credential for a new refresh
// credential and then re-enters the refresh flow with it.
func (m *LifecycleManager) offlineRefresh(ctx context.Context, session Session, offline core.Credential) (core.Credential, error) {
	m.counters.RefreshCall()

	resp, err := m.idp.Refresh(ctx, offline.Value)
	if err != nil {
		return core.Credential{}, err
	}

	if resp.OfflineToken != "" {
		rotated := m.credential(core.CredentialOffline, resp.OfflineToken, m.offlineTTL)
		if err := m.store.SaveOffline(ctx, session.UserID, rotated); err != nil {
			return core.Credential{}, fmt.Errorf("failed to store rotated offline credential: %w", err)
		}
		offline = rotated
	}

	m.logger.Info("offline tier produced new refresh credential", "session_id", session.ID, "state", StateRefreshing)
	return m.rotate(ctx, session, resp.RefreshToken, offline)
}

func (m *LifecycleManager) buildSet(resp *ports.TokenResponse, offline core.Credential) (*core.CredentialSet, error) {
	accessTTL := m.accessTTL
	if resp.ExpiresIn > 0 {
		accessTTL = resp.ExpiresIn
	}
	refreshTTL := m.refreshTTL
	if resp.RefreshExpiresIn > 0 {
		refreshTTL = resp.RefreshExpiresIn
	}

	// A provider misconfiguration must not fail the login; the access tier
	// just expires earlier than the provider advertised.
	if accessTTL >= refreshTTL {
		m.logger.Warn("provider access lifetime not below refresh lifetime, clamping",
			"access_ttl", accessTTL,
			"refresh_ttl", refreshTTL,
		)
		accessTTL = refreshTTL / 2
	}

	if resp.OfflineToken != "" {
		offline = m.credential(core.CredentialOffline, resp.OfflineToken, m.offlineTTL)
	}

	return core.NewCredentialSet(
		m.credential(core.CredentialAccess, resp.AccessToken, accessTTL),
		m.credential(core.CredentialRefresh, resp.RefreshToken, refreshTTL),
		offline,
	)
}

func (m *LifecycleManager) credential(kind core.CredentialKind, value string, ttl time.Duration) core.Credential {
	return core.Credential{
		Kind:     kind,
		Value:    value,
		IssuedAt: m.now(),
		TTL:      ttl,
	}
}
