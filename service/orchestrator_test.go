package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veriford/trustcore/adapters/store"
	"github.com/veriford/trustcore/core"
	"github.com/veriford/trustcore/internal/metrics"
)

type orchestratorFixture struct {
	orchestrator *Orchestrator
	idp          *fakeIdP
	assessor     *fakeAssessor
	audit        *fakeAudit
	publisher    *fakePublisher
	counters     *metrics.Counters
}

func newOrchestratorFixture() *orchestratorFixture {
	idp := newFakeIdP()
	assessor := &fakeAssessor{assessment: passingAssessment()}
	auditStore := &fakeAudit{}
	publisher := &fakePublisher{}
	counters := metrics.New()
	logger := testLogger()

	engine := NewRiskEngine(assessor, testRiskConfig(), "hash-secret", logger)
	lifecycle := NewLifecycleManager(idp, store.NewMemoryStore(), testTokensConfig(), counters, logger)
	orchestrator := NewOrchestrator(engine, idp, lifecycle, auditStore, publisher, fakeSigner{}, counters, logger)

	return &orchestratorFixture{
		orchestrator: orchestrator,
		idp:          idp,
		assessor:     assessor,
		audit:        auditStore,
		publisher:    publisher,
		counters:     counters,
	}
}

func callbackRequest() CallbackRequest {
	return CallbackRequest{
		Code:          "auth-code",
		RedirectURI:   "https://app.example.com/auth/callback",
		RiskToken:     "risk-token",
		UserIP:        "203.0.113.7",
		UserAgent:     "test-agent",
		Email:         "user@example.com",
		TermsAccepted: true,
	}
}

func TestHandleCallbackAllowed(t *testing.T) {
	f := newOrchestratorFixture()

	result, err := f.orchestrator.HandleCallback(context.Background(), callbackRequest())
	require.NoError(t, err)

	assert.Equal(t, core.OutcomeAllowed, result.Outcome)
	assert.False(t, result.Blocked)
	assert.Equal(t, "user-1", result.UserID)
	assert.Equal(t, "cookie:"+result.SessionID, result.Cookie)
	assert.Equal(t, 1, f.idp.exchangeCalls)

	events := f.audit.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, core.OutcomeAllowed, events[0].Outcome)
	assert.Equal(t, "assessments/abc", events[0].AssessmentRef)
	assert.True(t, events[0].Allowed)
}

func TestHandleCallbackBlockedNoToken(t *testing.T) {
	f := newOrchestratorFixture()

	req := callbackRequest()
	req.RiskToken = ""
	result, err := f.orchestrator.HandleCallback(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, result.Blocked)
	assert.Equal(t, core.OutcomeBlockedNoToken, result.Outcome)
	assert.Empty(t, result.Cookie)
	assert.Zero(t, f.idp.exchangeCalls, "blocked attempts never reach the IdP")
	assert.Empty(t, f.assessor.calls, "no provider call without a token")

	events := f.audit.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, core.OutcomeBlockedNoToken, events[0].Outcome)
}

func TestHandleCallbackBlockedRiskRejected(t *testing.T) {
	f := newOrchestratorFixture()
	f.assessor.assessment.Score = 0.1

	result, err := f.orchestrator.HandleCallback(context.Background(), callbackRequest())
	require.NoError(t, err)

	assert.True(t, result.Blocked)
	assert.Equal(t, core.OutcomeBlockedRiskRejected, result.Outcome)
	assert.Zero(t, f.idp.exchangeCalls)

	events := f.audit.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, core.OutcomeBlockedRiskRejected, events[0].Outcome)
	assert.InDelta(t, 0.1, events[0].Score, 1e-9)
	assert.False(t, events[0].Allowed)
}

// A risk-provider fault lets the user in but is recorded as an error, not
// as a clean allow.
func TestHandleCallbackRiskFaultFailsOpen(t *testing.T) {
	f := newOrchestratorFixture()
	f.assessor.err = context.DeadlineExceeded

	result, err := f.orchestrator.HandleCallback(context.Background(), callbackRequest())
	require.NoError(t, err)

	assert.False(t, result.Blocked)
	assert.Equal(t, core.OutcomeError, result.Outcome)
	assert.NotEmpty(t, result.Cookie, "fail open still creates the session")
	assert.Equal(t, 1, f.idp.exchangeCalls)

	events := f.audit.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, core.OutcomeError, events[0].Outcome)
	assert.NotEmpty(t, events[0].ErrorDetail)

	assert.Equal(t, uint64(1), f.counters.Snapshot()["risk_fail_open"])
}

// An IdP exchange failure is fatal; it never fails open.
func TestHandleCallbackExchangeFailure(t *testing.T) {
	f := newOrchestratorFixture()
	f.idp.exchangeErr = errors.New("connection refused")

	result, err := f.orchestrator.HandleCallback(context.Background(), callbackRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrIdpExchangeFailed)
	assert.Nil(t, result)

	events := f.audit.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, core.OutcomeError, events[0].Outcome)
	assert.Contains(t, events[0].ErrorDetail, "connection refused")
}

func TestHandleCallbackUserInfoFailureIsFatal(t *testing.T) {
	f := newOrchestratorFixture()
	f.idp.userInfoErr = errors.New("userinfo unavailable")

	_, err := f.orchestrator.HandleCallback(context.Background(), callbackRequest())
	assert.ErrorIs(t, err, core.ErrIdpExchangeFailed)

	events := f.audit.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, core.OutcomeError, events[0].Outcome)
}

// Exactly one audit record per invocation, whichever branch fires.
func TestHandleCallbackSingleAuditWritePerBranch(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(f *orchestratorFixture, req *CallbackRequest)
		outcome core.Outcome
	}{
		{"allowed", func(f *orchestratorFixture, req *CallbackRequest) {}, core.OutcomeAllowed},
		{"blocked no token", func(f *orchestratorFixture, req *CallbackRequest) {
			req.RiskToken = ""
		}, core.OutcomeBlockedNoToken},
		{"blocked rejected", func(f *orchestratorFixture, req *CallbackRequest) {
			f.assessor.assessment.Valid = false
		}, core.OutcomeBlockedRiskRejected},
		{"risk fault", func(f *orchestratorFixture, req *CallbackRequest) {
			f.assessor.err = errors.New("provider down")
		}, core.OutcomeError},
		{"exchange failure", func(f *orchestratorFixture, req *CallbackRequest) {
			f.idp.exchangeErr = errors.New("exchange down")
		}, core.OutcomeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOrchestratorFixture()
			req := callbackRequest()
			tt.prepare(f, &req)

			f.orchestrator.HandleCallback(context.Background(), req)

			events := f.audit.recorded()
			require.Len(t, events, 1)
			assert.Equal(t, tt.outcome, events[0].Outcome)
		})
	}
}

// A storage fault on the audit path never blocks the decision already made.
func TestHandleCallbackAuditFailureDoesNotBlock(t *testing.T) {
	f := newOrchestratorFixture()
	f.audit.recordErr = core.ErrAuditUnavailable

	result, err := f.orchestrator.HandleCallback(context.Background(), callbackRequest())
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeAllowed, result.Outcome)
	assert.NotEmpty(t, result.Cookie)

	assert.Equal(t, uint64(1), f.counters.Snapshot()["audit_write_failed"])
}

func TestHandleCallbackPublishesLoginEvent(t *testing.T) {
	f := newOrchestratorFixture()

	_, err := f.orchestrator.HandleCallback(context.Background(), callbackRequest())
	require.NoError(t, err)

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, core.OutcomeAllowed, f.publisher.events[0].Outcome)
}
