package core

import "time"

// Outcome classifies how a login attempt ended.
type Outcome string

const (
	// OutcomeAllowed means the attempt passed the risk decision.
	OutcomeAllowed Outcome = "ALLOWED"
	// OutcomeBlockedNoToken means no risk token accompanied the attempt.
	OutcomeBlockedNoToken Outcome = "BLOCKED_NO_TOKEN"
	// OutcomeBlockedRiskRejected means the risk decision rule evaluated false.
	OutcomeBlockedRiskRejected Outcome = "BLOCKED_RISK_REJECTED"
	// OutcomeError means a fault occurred; for risk-provider faults the
	// attempt is still let through (fail open) but recorded as an error.
	OutcomeError Outcome = "ERROR"
)

// Blocked reports whether the outcome denies session creation.
func (o Outcome) Blocked() bool {
	return o == OutcomeBlockedNoToken || o == OutcomeBlockedRiskRejected
}

// Annotation values fed back to the risk provider after fraud review.
const (
	AnnotationLegitimate = "LEGITIMATE"
	AnnotationFraudulent = "FRAUDULENT"
)

// LoginEvent is one immutable record per login attempt. Records are only
// ever appended; annotation marks review state without rewriting the
// attempt itself.
type LoginEvent struct {
	ID        string
	Timestamp time.Time

	UserIP    string
	UserAgent string
	Email     string

	Outcome Outcome

	// Derived from the risk assessment, when one was made.
	AssessmentRef string
	Score         float64
	TokenValid    bool
	Allowed       bool

	ErrorDetail string

	Annotated   bool
	Annotation  string
	AnnotatedAt *time.Time
}
