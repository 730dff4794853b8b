package risk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/veriford/trustcore/core"
	"github.com/veriford/trustcore/ports"
)

// HTTPAssessor implements the RiskAssessor interface against the risk
// provider's assessment endpoint. Every call carries the configured
// timeout; without it a hung provider would make fail-open unreachable.
type HTTPAssessor struct {
	url     string
	apiKey  string
	client  *http.Client
	timeout time.Duration
}

// NewHTTPAssessor creates a new assessment client
func NewHTTPAssessor(url, apiKey string, timeout time.Duration) ports.RiskAssessor {
	return &HTTPAssessor{
		url:     url,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

type assessmentRequest struct {
	SiteKey         string `json:"siteKey"`
	Token           string `json:"token"`
	ExpectedAction  string `json:"expectedAction"`
	UserIP          string `json:"userIp"`
	UserAgent       string `json:"userAgent"`
	HashedAccountID string `json:"hashedAccountId"`
	Email           string `json:"email"`
}

type assessmentResponse struct {
	Name             string   `json:"name"`
	Valid            bool     `json:"valid"`
	Action           string   `json:"action"`
	Score            float64  `json:"score"`
	Reasons          []string `json:"reasons"`
	SuspiciousLabels []string `json:"suspiciousLabels"`
}

// Assess submits the request context and returns the provider's verdict
func (a *HTTPAssessor) Assess(ctx context.Context, req core.AssessmentRequest) (*core.RiskAssessment, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	payload, err := json.Marshal(assessmentRequest{
		SiteKey:         req.SiteKey,
		Token:           req.Token,
		ExpectedAction:  req.ExpectedAction,
		UserIP:          req.UserIP,
		UserAgent:       req.UserAgent,
		HashedAccountID: req.HashedAccountID,
		Email:           req.Email,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal assessment request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrRiskUnavailable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrRiskUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: assessment returned status %d", core.ErrRiskUnavailable, resp.StatusCode)
	}

	var body assessmentResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrRiskUnavailable, err)
	}

	return &core.RiskAssessment{
		Ref:              body.Name,
		Valid:            body.Valid,
		ActionMatches:    body.Action == req.ExpectedAction,
		Score:            body.Score,
		Reasons:          body.Reasons,
		SuspiciousLabels: body.SuspiciousLabels,
	}, nil
}
