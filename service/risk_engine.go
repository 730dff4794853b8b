package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"

	"github.com/veriford/trustcore/config"
	"github.com/veriford/trustcore/core"
	"github.com/veriford/trustcore/ports"
)

// LoginContext carries the ambient request signals of one login attempt.
type LoginContext struct {
	RiskToken string
	UserIP    string
	UserAgent string
	Email     string
}

// Decision is the engine's verdict for one attempt. Assessment is nil when
// no provider call was made (missing token) or the call faulted.
type Decision struct {
	Outcome    core.Outcome
	Assessment *core.RiskAssessment
	Err        error
}

// RiskEngine converts request signals into a binary login decision
type RiskEngine struct {
	assessor ports.RiskAssessor
	logger   *slog.Logger

	siteKey        string
	expectedAction string
	threshold      float64
	blockLabels    map[string]struct{}
	hashSecret     []byte
}

// NewRiskEngine creates a new risk decision engine
func NewRiskEngine(assessor ports.RiskAssessor, cfg config.RiskConfig, hashSecret string, logger *slog.Logger) *RiskEngine {
	labels := make(map[string]struct{}, len(cfg.BlockLabels))
	for _, l := range cfg.BlockLabels {
		labels[l] = struct{}{}
	}

	return &RiskEngine{
		assessor:       assessor,
		logger:         logger,
		siteKey:        cfg.SiteKey,
		expectedAction: cfg.ExpectedAction,
		threshold:      cfg.ScoreThreshold,
		blockLabels:    labels,
		hashSecret:     []byte(hashSecret),
	}
}

// Evaluate runs the decision rule for one attempt. A missing token blocks
// without calling the provider; a provider fault yields OutcomeError, which
// the orchestrator treats as allowed (fail open) but records distinctly.
func (e *RiskEngine) Evaluate(ctx context.Context, lc LoginContext) Decision {
	if lc.RiskToken == "" {
		e.logger.Warn("login attempt without risk token",
			"user_ip", lc.UserIP,
			"user_agent", lc.UserAgent,
		)
		return Decision{Outcome: core.OutcomeBlockedNoToken}
	}

	assessment, err := e.assessor.Assess(ctx, core.AssessmentRequest{
		SiteKey:         e.siteKey,
		Token:           lc.RiskToken,
		ExpectedAction:  e.expectedAction,
		UserIP:          lc.UserIP,
		UserAgent:       lc.UserAgent,
		HashedAccountID: e.hashAccountID(lc.Email),
		Email:           lc.Email,
	})
	if err != nil {
		e.logger.Error("risk assessment unavailable, failing open", "error", err)
		return Decision{Outcome: core.OutcomeError, Err: err}
	}

	// Each conjunct is evaluated on its own so the audit trail carries the
	// full diagnostic picture even when an earlier one already failed.
	scoreOK := assessment.Score >= e.threshold
	labelBlocked := ""
	for label := range e.blockLabels {
		if assessment.HasLabel(label) {
			labelBlocked = label
			break
		}
	}

	allowed := assessment.Valid && assessment.ActionMatches && scoreOK && labelBlocked == ""

	e.logger.Info("risk assessment evaluated",
		"assessment_ref", assessment.Ref,
		"valid", assessment.Valid,
		"action_matches", assessment.ActionMatches,
		"score", assessment.Score,
		"score_ok", scoreOK,
		"blocked_label", labelBlocked,
		"allowed", allowed,
	)

	if !allowed {
		return Decision{Outcome: core.OutcomeBlockedRiskRejected, Assessment: assessment}
	}
	return Decision{Outcome: core.OutcomeAllowed, Assessment: assessment}
}

// hashAccountID derives the deterministic, keyed, non-reversible account
// identifier the provider correlates attempts with.
func (e *RiskEngine) hashAccountID(email string) string {
	if email == "" {
		return ""
	}

	mac := hmac.New(sha256.New, e.hashSecret)
	mac.Write([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(mac.Sum(nil))
}
