package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/veriford/trustcore/config"
	"github.com/veriford/trustcore/core"
	"github.com/veriford/trustcore/ports"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRiskConfig() config.RiskConfig {
	return config.RiskConfig{
		SiteKey:        "site-key",
		ExpectedAction: "LOGIN",
		ScoreThreshold: 0.3,
		BlockLabels: []string{
			"suspicious-login-activity",
			"suspicious-account-creation",
			"many-related-accounts",
		},
		Timeout: config.Duration(time.Second),
	}
}

func testTokensConfig() config.TokensConfig {
	return config.TokensConfig{
		AccessTTL:  config.Duration(5 * time.Minute),
		RefreshTTL: config.Duration(30 * time.Minute),
		OfflineTTL: config.Duration(24 * time.Hour),
	}
}

// fakeIdP simulates a provider that rotates refresh tokens on use:
// a value already consumed is rejected with an invalid grant.
type fakeIdP struct {
	mu sync.Mutex

	exchangeCalls int
	refreshCalls  []string
	used          map[string]bool
	reusable      map[string]bool
	seq           int

	grantOffline bool
	exchangeErr  error
	refreshErr   error
	userInfoErr  error
}

func newFakeIdP() *fakeIdP {
	return &fakeIdP{
		used:     make(map[string]bool),
		reusable: make(map[string]bool),
	}
}

func (f *fakeIdP) ExchangeCode(ctx context.Context, code, redirectURI string) (*ports.TokenResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}

	f.exchangeCalls++
	f.seq++
	resp := &ports.TokenResponse{
		AccessToken:  fmt.Sprintf("access-%d", f.seq),
		RefreshToken: fmt.Sprintf("refresh-%d", f.seq),
	}
	if f.grantOffline {
		resp.OfflineToken = fmt.Sprintf("offline-%d", f.seq)
		f.reusable[resp.OfflineToken] = true
	}
	return resp, nil
}

func (f *fakeIdP) Refresh(ctx context.Context, refreshToken string) (*ports.TokenResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.refreshCalls = append(f.refreshCalls, refreshToken)

	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	if f.used[refreshToken] {
		return nil, fmt.Errorf("%w: token already consumed", core.ErrInvalidGrant)
	}
	if !f.reusable[refreshToken] {
		f.used[refreshToken] = true
	}

	f.seq++
	resp := &ports.TokenResponse{
		AccessToken:  fmt.Sprintf("access-%d", f.seq),
		RefreshToken: fmt.Sprintf("refresh-%d", f.seq),
	}
	if f.grantOffline {
		resp.OfflineToken = fmt.Sprintf("offline-%d", f.seq)
		f.reusable[resp.OfflineToken] = true
	}
	return resp, nil
}

func (f *fakeIdP) UserInfo(ctx context.Context, accessToken string) (map[string]any, error) {
	if f.userInfoErr != nil {
		return nil, f.userInfoErr
	}
	return map[string]any{"sub": "user-1"}, nil
}

func (f *fakeIdP) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.refreshCalls)
}

// fakeAssessor returns a canned assessment or error.
type fakeAssessor struct {
	mu         sync.Mutex
	calls      []core.AssessmentRequest
	assessment *core.RiskAssessment
	err        error
}

func (f *fakeAssessor) Assess(ctx context.Context, req core.AssessmentRequest) (*core.RiskAssessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	copied := *f.assessment
	return &copied, nil
}

// fakeAudit counts writes and optionally fails them.
type fakeAudit struct {
	mu        sync.Mutex
	events    []*core.LoginEvent
	recordErr error
}

func (f *fakeAudit) Record(ctx context.Context, event *core.LoginEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.recordErr != nil {
		return f.recordErr
	}
	copied := *event
	f.events = append(f.events, &copied)
	return nil
}

func (f *fakeAudit) List(ctx context.Context, filter ports.EventFilter) ([]*core.LoginEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*core.LoginEvent(nil), f.events...), nil
}

func (f *fakeAudit) Annotate(ctx context.Context, eventID, annotation string) (bool, error) {
	return false, nil
}

func (f *fakeAudit) BlockedStats(ctx context.Context, since time.Time) (map[core.Outcome]int, error) {
	return map[core.Outcome]int{}, nil
}

func (f *fakeAudit) PotentialFalsePositives(ctx context.Context, since time.Time) ([]*core.LoginEvent, error) {
	return nil, nil
}

func (f *fakeAudit) recorded() []*core.LoginEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*core.LoginEvent(nil), f.events...)
}

// fakeSigner mints a transparent cookie value for assertions.
type fakeSigner struct{}

func (fakeSigner) Mint(cookie *ports.SessionCookie) (string, error) {
	return "cookie:" + cookie.SessionID, nil
}

func (fakeSigner) Parse(value string) (*ports.SessionCookie, error) {
	return nil, core.ErrInvalidCookie
}

// fakePublisher records published events.
type fakePublisher struct {
	mu     sync.Mutex
	events []*core.LoginEvent
}

func (f *fakePublisher) PublishLogin(ctx context.Context, event *core.LoginEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}
