package core

// RiskAssessment is the evaluated result of one risk-provider call.
// It is produced once per login attempt and never mutated.
type RiskAssessment struct {
	// Ref is the provider's assessment resource name, kept for
	// later annotation.
	Ref string

	Valid            bool
	ActionMatches    bool
	Score            float64
	Reasons          []string
	SuspiciousLabels []string
}

// HasLabel reports whether the assessment carries the given fraud label.
func (a RiskAssessment) HasLabel(label string) bool {
	for _, l := range a.SuspiciousLabels {
		if l == label {
			return true
		}
	}
	return false
}

// AssessmentRequest carries the request-context signals sent to the
// risk provider.
type AssessmentRequest struct {
	SiteKey         string
	Token           string
	ExpectedAction  string
	UserIP          string
	UserAgent       string
	HashedAccountID string
	Email           string
}
