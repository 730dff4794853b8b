package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/veriford/trustcore/core"
	"github.com/veriford/trustcore/internal/metrics"
	"github.com/veriford/trustcore/ports"
)

// CallbackRequest is the context extracted from one inbound login callback.
type CallbackRequest struct {
	Code        string
	RedirectURI string
	RiskToken   string
	UserIP      string
	UserAgent   string
	Email       string

	TermsAccepted bool
}

// CallbackResult tells the transport how to answer the caller. Cookie is
// only set on success; Blocked results redirect back to login without
// exposing why.
type CallbackResult struct {
	Outcome   core.Outcome
	Blocked   bool
	SessionID string
	UserID    string
	Cookie    string
}

// Orchestrator sequences the risk decision, the IdP exchange, credential
// initialization, the audit write and cookie issuance for one login
// callback.
type Orchestrator struct {
	engine    *RiskEngine
	idp       ports.IdentityProvider
	lifecycle *LifecycleManager
	audit     ports.AuditStore
	publisher ports.EventPublisher
	signer    ports.SessionSigner
	counters  *metrics.Counters
	logger    *slog.Logger
}

// NewOrchestrator creates a new callback orchestrator
func NewOrchestrator(
	engine *RiskEngine,
	idp ports.IdentityProvider,
	lifecycle *LifecycleManager,
	audit ports.AuditStore,
	publisher ports.EventPublisher,
	signer ports.SessionSigner,
	counters *metrics.Counters,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		engine:    engine,
		idp:       idp,
		lifecycle: lifecycle,
		audit:     audit,
		publisher: publisher,
		signer:    signer,
		counters:  counters,
		logger:    logger,
	}
}

// HandleCallback runs one login attempt end to end. Exactly one login event
// is written per invocation, whichever branch is taken. The risk decision
// gates the token exchange; a risk-provider fault fails open while an IdP
// exchange failure is fatal.
func (o *Orchestrator) HandleCallback(ctx context.Context, req CallbackRequest) (*CallbackResult, error) {
	// Token exchange, credential persistence and the audit write must run
	// to completion even if the client disconnects mid-flow.
	detached := context.WithoutCancel(ctx)

	decision := o.engine.Evaluate(ctx, LoginContext{
		RiskToken: req.RiskToken,
		UserIP:    req.UserIP,
		UserAgent: req.UserAgent,
		Email:     req.Email,
	})

	event := o.newEvent(req, decision)
	defer o.record(detached, event)

	if decision.Outcome.Blocked() {
		o.counters.LoginBlocked()
		return &CallbackResult{Outcome: decision.Outcome, Blocked: true}, nil
	}

	if decision.Outcome == core.OutcomeError {
		// Degraded mode: the provider faulted and the attempt is let
		// through, recorded as an error rather than a clean allow.
		o.counters.RiskFailOpen()
	}

	tokens, err := o.idp.ExchangeCode(detached, req.Code, req.RedirectURI)
	if err != nil {
		o.counters.LoginError()
		event.Outcome = core.OutcomeError
		event.ErrorDetail = err.Error()
		return nil, fmt.Errorf("%w: %v", core.ErrIdpExchangeFailed, err)
	}

	userID, err := o.resolveUser(detached, tokens.AccessToken)
	if err != nil {
		o.counters.LoginError()
		event.Outcome = core.OutcomeError
		event.ErrorDetail = err.Error()
		return nil, fmt.Errorf("%w: %v", core.ErrIdpExchangeFailed, err)
	}

	session := Session{ID: uuid.New().String(), UserID: userID}

	set, err := o.lifecycle.Initialize(detached, session, tokens)
	if err != nil {
		o.counters.LoginError()
		event.Outcome = core.OutcomeError
		event.ErrorDetail = err.Error()
		return nil, err
	}

	cookie, err := o.signer.Mint(&ports.SessionCookie{
		SessionID:     session.ID,
		UserID:        userID,
		Access:        set.Access,
		Refresh:       set.Refresh,
		TermsAccepted: req.TermsAccepted,
	})
	if err != nil {
		o.counters.LoginError()
		event.Outcome = core.OutcomeError
		event.ErrorDetail = err.Error()
		return nil, fmt.Errorf("failed to mint session cookie: %w", err)
	}

	if decision.Outcome == core.OutcomeError {
		o.counters.LoginError()
	} else {
		o.counters.LoginAllowed()
	}

	return &CallbackResult{
		Outcome:   decision.Outcome,
		SessionID: session.ID,
		UserID:    userID,
		Cookie:    cookie,
	}, nil
}

// resolveUser derives the stable user identity from the IdP's claims.
func (o *Orchestrator) resolveUser(ctx context.Context, accessToken string) (string, error) {
	claims, err := o.idp.UserInfo(ctx, accessToken)
	if err != nil {
		return "", fmt.Errorf("failed to fetch user claims: %w", err)
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", fmt.Errorf("user claims carry no subject")
	}

	return sub, nil
}

func (o *Orchestrator) newEvent(req CallbackRequest, decision Decision) *core.LoginEvent {
	event := &core.LoginEvent{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		UserIP:    req.UserIP,
		UserAgent: req.UserAgent,
		Email:     req.Email,
		Outcome:   decision.Outcome,
	}

	if decision.Assessment != nil {
		event.AssessmentRef = decision.Assessment.Ref
		event.Score = decision.Assessment.Score
		event.TokenValid = decision.Assessment.Valid
		event.Allowed = decision.Outcome == core.OutcomeAllowed
	}
	if decision.Err != nil {
		event.ErrorDetail = decision.Err.Error()
	}

	return event
}

// record writes the audit trail. The decision is already made; a storage
// fault here is logged and counted, never propagated.
func (o *Orchestrator) record(ctx context.Context, event *core.LoginEvent) {
	if err := o.audit.Record(ctx, event); err != nil {
		o.counters.AuditWriteFailed()
		o.logger.Error("failed to record login event",
			"event_id", event.ID,
			"outcome", event.Outcome,
			"error", err,
		)
	}

	if o.publisher != nil {
		if err := o.publisher.PublishLogin(ctx, event); err != nil {
			o.logger.Warn("failed to publish login event", "event_id", event.ID, "error", err)
		}
	}
}
