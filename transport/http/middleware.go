package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/veriford/trustcore/core"
	"github.com/veriford/trustcore/ports"
	"github.com/veriford/trustcore/service"
)

const (
	ctxUserID        = "userID"
	ctxSessionID     = "sessionID"
	ctxTermsAccepted = "termsAccepted"
)

// SessionMiddleware validates the session cookie and keeps the access
// credential fresh before protected handlers run. Expired sessions
// silently redirect to login.
func SessionMiddleware(signer ports.SessionSigner, lifecycle *service.LifecycleManager, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, err := c.Cookie(cookieName)
		if err != nil {
			c.Redirect(http.StatusFound, loginPath)
			c.Abort()
			return
		}

		cookie, err := signer.Parse(value)
		if err != nil {
			c.Redirect(http.StatusFound, loginPath)
			c.Abort()
			return
		}

		session := service.Session{ID: cookie.SessionID, UserID: cookie.UserID}

		if _, err := lifecycle.EnsureValid(c.Request.Context(), session); err != nil {
			if errors.Is(err, core.ErrSessionExpired) {
				c.Redirect(http.StatusFound, loginPath)
			} else {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Session validation failed"})
				return
			}
			c.Abort()
			return
		}

		c.Set(ctxUserID, cookie.UserID)
		c.Set(ctxSessionID, cookie.SessionID)
		c.Set(ctxTermsAccepted, cookie.TermsAccepted)

		c.Next()
	}
}
