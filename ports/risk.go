package ports

import (
	"context"

	"github.com/veriford/trustcore/core"
)

// RiskAssessor is the external risk-assessment collaborator.
// A transport or provider fault is an error; a low score is not.
type RiskAssessor interface {
	Assess(ctx context.Context, req core.AssessmentRequest) (*core.RiskAssessment, error)
}
