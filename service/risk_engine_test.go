package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veriford/trustcore/core"
)

func passingAssessment() *core.RiskAssessment {
	return &core.RiskAssessment{
		Ref:           "assessments/abc",
		Valid:         true,
		ActionMatches: true,
		Score:         0.9,
	}
}

func testContext() LoginContext {
	return LoginContext{
		RiskToken: "risk-token",
		UserIP:    "203.0.113.7",
		UserAgent: "test-agent",
		Email:     "User@Example.com",
	}
}

func TestEvaluateAllowed(t *testing.T) {
	assessor := &fakeAssessor{assessment: passingAssessment()}
	engine := NewRiskEngine(assessor, testRiskConfig(), "hash-secret", testLogger())

	decision := engine.Evaluate(context.Background(), testContext())

	assert.Equal(t, core.OutcomeAllowed, decision.Outcome)
	require.NotNil(t, decision.Assessment)
	assert.Equal(t, "assessments/abc", decision.Assessment.Ref)
}

func TestEvaluateScoreBelowThreshold(t *testing.T) {
	assessment := passingAssessment()
	assessment.Score = 0.1
	assessor := &fakeAssessor{assessment: assessment}
	engine := NewRiskEngine(assessor, testRiskConfig(), "hash-secret", testLogger())

	decision := engine.Evaluate(context.Background(), testContext())

	assert.Equal(t, core.OutcomeBlockedRiskRejected, decision.Outcome)
}

func TestEvaluateNoTokenSkipsProvider(t *testing.T) {
	assessor := &fakeAssessor{assessment: passingAssessment()}
	engine := NewRiskEngine(assessor, testRiskConfig(), "hash-secret", testLogger())

	lc := testContext()
	lc.RiskToken = ""
	decision := engine.Evaluate(context.Background(), lc)

	assert.Equal(t, core.OutcomeBlockedNoToken, decision.Outcome)
	assert.Empty(t, assessor.calls, "provider must not be called without a token")
}

func TestEvaluateSuspiciousLabelBlocksDespiteHighScore(t *testing.T) {
	assessment := passingAssessment()
	assessment.Score = 0.8
	assessment.SuspiciousLabels = []string{"suspicious-login-activity"}
	assessor := &fakeAssessor{assessment: assessment}
	engine := NewRiskEngine(assessor, testRiskConfig(), "hash-secret", testLogger())

	decision := engine.Evaluate(context.Background(), testContext())

	assert.Equal(t, core.OutcomeBlockedRiskRejected, decision.Outcome)
}

func TestEvaluateUnknownLabelDoesNotBlock(t *testing.T) {
	assessment := passingAssessment()
	assessment.SuspiciousLabels = []string{"some-informational-label"}
	assessor := &fakeAssessor{assessment: assessment}
	engine := NewRiskEngine(assessor, testRiskConfig(), "hash-secret", testLogger())

	decision := engine.Evaluate(context.Background(), testContext())

	assert.Equal(t, core.OutcomeAllowed, decision.Outcome)
}

func TestEvaluateProviderFaultFailsOpen(t *testing.T) {
	assessor := &fakeAssessor{err: context.DeadlineExceeded}
	engine := NewRiskEngine(assessor, testRiskConfig(), "hash-secret", testLogger())

	decision := engine.Evaluate(context.Background(), testContext())

	assert.Equal(t, core.OutcomeError, decision.Outcome)
	assert.Error(t, decision.Err)
	assert.Nil(t, decision.Assessment)
}

// Flipping any single conjunct to false while the others hold must flip the
// decision to blocked.
func TestEvaluateConjunctBoundaries(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(a *core.RiskAssessment)
	}{
		{"invalid token", func(a *core.RiskAssessment) { a.Valid = false }},
		{"action mismatch", func(a *core.RiskAssessment) { a.ActionMatches = false }},
		{"score below threshold", func(a *core.RiskAssessment) { a.Score = 0.29 }},
		{"blocked label", func(a *core.RiskAssessment) {
			a.SuspiciousLabels = []string{"many-related-accounts"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assessment := passingAssessment()
			tt.mutate(assessment)
			assessor := &fakeAssessor{assessment: assessment}
			engine := NewRiskEngine(assessor, testRiskConfig(), "hash-secret", testLogger())

			decision := engine.Evaluate(context.Background(), testContext())
			assert.Equal(t, core.OutcomeBlockedRiskRejected, decision.Outcome)
		})
	}
}

func TestEvaluateScoreAtThresholdAllows(t *testing.T) {
	assessment := passingAssessment()
	assessment.Score = 0.3
	assessor := &fakeAssessor{assessment: assessment}
	engine := NewRiskEngine(assessor, testRiskConfig(), "hash-secret", testLogger())

	decision := engine.Evaluate(context.Background(), testContext())
	assert.Equal(t, core.OutcomeAllowed, decision.Outcome)
}

func TestHashedAccountIDDeterministicAndKeyed(t *testing.T) {
	assessor := &fakeAssessor{assessment: passingAssessment()}
	engine := NewRiskEngine(assessor, testRiskConfig(), "hash-secret", testLogger())

	engine.Evaluate(context.Background(), testContext())

	lc := testContext()
	lc.Email = " user@example.com "
	engine.Evaluate(context.Background(), lc)

	require.Len(t, assessor.calls, 2)
	assert.NotEmpty(t, assessor.calls[0].HashedAccountID)
	// Case and whitespace in the claimed email do not change the identity
	assert.Equal(t, assessor.calls[0].HashedAccountID, assessor.calls[1].HashedAccountID)
	assert.NotEqual(t, "user@example.com", assessor.calls[0].HashedAccountID)

	otherKey := NewRiskEngine(assessor, testRiskConfig(), "other-secret", testLogger())
	otherKey.Evaluate(context.Background(), testContext())

	require.Len(t, assessor.calls, 3)
	assert.NotEqual(t, assessor.calls[0].HashedAccountID, assessor.calls[2].HashedAccountID)
}
