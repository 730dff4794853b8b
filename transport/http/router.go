package http

import (
	"github.com/gin-gonic/gin"

	"github.com/veriford/trustcore/ports"
	"github.com/veriford/trustcore/service"
)

// SetupRouter sets up the Gin router
func SetupRouter(handlers *AuthHandlers, signer ports.SessionSigner, lifecycle *service.LifecycleManager, cookieName string) *gin.Engine {
	router := gin.Default()

	// Login flow
	auth := router.Group("/auth")
	{
		auth.GET("/callback", handlers.Callback)
		auth.POST("/refresh", handlers.Refresh)
		auth.POST("/logout", handlers.Logout)
	}

	// Protected API routes
	api := router.Group("/api")
	api.Use(SessionMiddleware(signer, lifecycle, cookieName))
	{
		api.GET("/me", handlers.Me)
	}

	// Fraud-review read side
	audit := router.Group("/audit")
	audit.Use(SessionMiddleware(signer, lifecycle, cookieName))
	{
		audit.GET("/events", handlers.ListEvents)
		audit.POST("/events/:id/annotate", handlers.AnnotateEvent)
		audit.GET("/stats", handlers.Stats)
		audit.GET("/false-positives", handlers.FalsePositives)
	}

	return router
}
