package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/veriford/trustcore/config"
	"github.com/veriford/trustcore/core"
	"github.com/veriford/trustcore/ports"
	"github.com/veriford/trustcore/service"
)

const loginPath = "/login"

// AuthHandlers contains HTTP handlers for the login trust endpoints
type AuthHandlers struct {
	orchestrator *service.Orchestrator
	lifecycle    *service.LifecycleManager
	signer       ports.SessionSigner
	audit        ports.AuditStore

	cookieName   string
	cookieDomain string
	cookieTTL    time.Duration
	production   bool
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(
	orchestrator *service.Orchestrator,
	lifecycle *service.LifecycleManager,
	signer ports.SessionSigner,
	audit ports.AuditStore,
	cfg *config.Config,
) *AuthHandlers {
	return &AuthHandlers{
		orchestrator: orchestrator,
		lifecycle:    lifecycle,
		signer:       signer,
		audit:        audit,
		cookieName:   cfg.Cookie.Name,
		cookieDomain: cfg.Cookie.Domain,
		cookieTTL:    cfg.Tokens.RefreshTTL.Std(),
		production:   cfg.Production(),
	}
}

// Callback handles the inbound login callback from the identity provider
func (h *AuthHandlers) Callback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing authorization code"})
		return
	}

	riskToken := c.Query("risk_token")
	if riskToken == "" {
		riskToken = c.GetHeader("X-Risk-Token")
	}

	req := service.CallbackRequest{
		Code:          code,
		RedirectURI:   c.Query("redirect_uri"),
		RiskToken:     riskToken,
		UserIP:        ClientIP(c.Request),
		UserAgent:     c.Request.UserAgent(),
		Email:         c.Query("email"),
		TermsAccepted: c.Query("terms_accepted") == "true",
	}

	result, err := h.orchestrator.HandleCallback(c.Request.Context(), req)
	if err != nil {
		// The exchange path is fatal and retryable; never reveal more
		if errors.Is(err, core.ErrIdpExchangeFailed) {
			c.JSON(http.StatusBadGateway, gin.H{"error": "Authentication failed, please try again"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Authentication failed"})
		return
	}

	if result.Blocked {
		// Generic indicator only; score and labels stay in the audit trail
		c.Redirect(http.StatusFound, loginPath+"?blocked=1")
		return
	}

	h.setSessionCookie(c, result.Cookie)
	c.JSON(http.StatusOK, gin.H{
		"session_id": result.SessionID,
		"user_id":    result.UserID,
	})
}

// Refresh re-validates the session cookie, rotating credentials as needed
func (h *AuthHandlers) Refresh(c *gin.Context) {
	cookie, ok := h.sessionFromCookie(c)
	if !ok {
		return
	}

	session := service.Session{ID: cookie.SessionID, UserID: cookie.UserID}

	if _, err := h.lifecycle.EnsureValid(c.Request.Context(), session); err != nil {
		if errors.Is(err, core.ErrSessionExpired) {
			h.clearSessionCookie(c)
			c.Redirect(http.StatusFound, loginPath)
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to refresh session"})
		return
	}

	set, err := h.lifecycle.CurrentSet(c.Request.Context(), session)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to refresh session"})
		return
	}

	minted, err := h.signer.Mint(&ports.SessionCookie{
		SessionID:     cookie.SessionID,
		UserID:        cookie.UserID,
		Access:        set.Access,
		Refresh:       set.Refresh,
		TermsAccepted: cookie.TermsAccepted,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to refresh session"})
		return
	}

	h.setSessionCookie(c, minted)
	c.JSON(http.StatusOK, gin.H{"message": "Session refreshed"})
}

// Logout destroys the session container and clears the cookie
func (h *AuthHandlers) Logout(c *gin.Context) {
	cookie, ok := h.sessionFromCookie(c)
	if !ok {
		return
	}

	session := service.Session{ID: cookie.SessionID, UserID: cookie.UserID}
	if err := h.lifecycle.Logout(c.Request.Context(), session); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to logout"})
		return
	}

	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Me returns the identity attached to the validated session
func (h *AuthHandlers) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"user_id":        c.GetString(ctxUserID),
		"session_id":     c.GetString(ctxSessionID),
		"terms_accepted": c.GetBool(ctxTermsAccepted),
	})
}

// ListEvents returns audit records for fraud review
func (h *AuthHandlers) ListEvents(c *gin.Context) {
	filter := ports.EventFilter{Limit: 100}

	if outcome := c.Query("outcome"); outcome != "" {
		filter.Outcomes = []core.Outcome{core.Outcome(outcome)}
	}
	if from := c.Query("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid from timestamp"})
			return
		}
		filter.From = t
	}
	if to := c.Query("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid to timestamp"})
			return
		}
		filter.To = t
	}
	if limit := c.Query("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		filter.Limit = n
	}

	events, err := h.audit.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events})
}

// AnnotateEvent records the fraud-review verdict for one event
func (h *AuthHandlers) AnnotateEvent(c *gin.Context) {
	var req struct {
		Annotation string `json:"annotation" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if req.Annotation != core.AnnotationLegitimate && req.Annotation != core.AnnotationFraudulent {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Annotation must be LEGITIMATE or FRAUDULENT"})
		return
	}

	updated, err := h.audit.Annotate(c.Request.Context(), c.Param("id"), req.Annotation)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to annotate event"})
		return
	}
	if !updated {
		c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Annotated"})
}

// FalsePositives lists blocked attempts whose IP later logged in
// successfully, for review prioritization
func (h *AuthHandlers) FalsePositives(c *gin.Context) {
	days := 30
	if d := c.Query("days"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid days"})
			return
		}
		days = n
	}

	events, err := h.audit.PotentialFalsePositives(c.Request.Context(), time.Now().AddDate(0, 0, -days))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query false positives"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events})
}

// Stats summarizes outcomes over a look-back window
func (h *AuthHandlers) Stats(c *gin.Context) {
	days := 30
	if d := c.Query("days"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid days"})
			return
		}
		days = n
	}

	stats, err := h.audit.BlockedStats(c.Request.Context(), time.Now().AddDate(0, 0, -days))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute stats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

func (h *AuthHandlers) sessionFromCookie(c *gin.Context) (*ports.SessionCookie, bool) {
	value, err := c.Cookie(h.cookieName)
	if err != nil {
		c.Redirect(http.StatusFound, loginPath)
		return nil, false
	}

	cookie, err := h.signer.Parse(value)
	if err != nil {
		h.clearSessionCookie(c)
		c.Redirect(http.StatusFound, loginPath)
		return nil, false
	}

	return cookie, true
}

func (h *AuthHandlers) setSessionCookie(c *gin.Context, value string) {
	c.SetSameSite(h.sameSite())
	c.SetCookie(h.cookieName, value, int(h.cookieTTL.Seconds()), "/", h.cookieDomain, h.production, true)
}

func (h *AuthHandlers) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(h.sameSite())
	c.SetCookie(h.cookieName, "", -1, "/", h.cookieDomain, h.production, true)
}

// Relaxed outside production so local setups without TLS still work
func (h *AuthHandlers) sameSite() http.SameSite {
	if h.production {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}
