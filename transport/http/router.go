package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/tokengate/service"
)

// SetupRouter sets up the Gin router
func SetupRouter(authService *service.AuthService, chatService *service.ChatService, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(RequestLogger(logger), gin.Recovery())

	// Create handlers
	handlers := NewAuthHandlers(authService)
	chat := NewChatHandlers(chatService)

	router.GET("/health", handlers.Health)

	api := router.Group("/api")
	{
		api.POST("/auth/nonce", handlers.Nonce)
		api.POST("/auth/verify", handlers.Verify)
		api.POST("/access/check", handlers.CheckAccess)

		// Session-protected routes
		requireSession := SessionMiddleware(authService)
		api.GET("/session", requireSession, handlers.Session)
		api.POST("/agent/chat", requireSession, chat.Chat)
	}

	return router
}
