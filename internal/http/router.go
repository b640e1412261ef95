package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"silvery-chat/internal/service"
)

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	authSvc *service.AuthService,
	limiter service.RequestRateLimiter,
	chatH *ChatHandler,
	convH *ConversationHandler,
	redeemH *RedeemHandler,
	configH *ConfigHandler,
	adminH *AdminHandler,
) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()

	r.Use(zapLoggerMiddleware(logger), gin.Recovery())
	if limiter != nil {
		r.Use(rateLimitMiddleware(limiter))
	}

	r.GET("/config/:key", configH.GetConfig)

	authed := r.Group("", AuthMiddleware(authSvc))
	authed.POST("/chat", chatH.StreamChat)
	authed.POST("/conversations", convH.CreateConversation)
	authed.GET("/conversations", convH.ListConversations)
	authed.GET("/conversations/:id/messages", convH.ListMessages)
	authed.DELETE("/conversations/:id", convH.DeleteConversation)
	authed.POST("/redeem", redeemH.Redeem)

	admin := authed.Group("/admin", RequireAdmin())
	admin.POST("/codes", adminH.GenerateCodes)
	admin.POST("/entitlements", adminH.GrantEntitlement)
	admin.DELETE("/entitlements/:id", adminH.RevokeEntitlement)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// rateLimitMiddleware corta requests por encima del límite por cliente.
func rateLimitMiddleware(limiter service.RequestRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests. Please wait a moment and try again."})
			c.Abort()
			return
		}
		c.Next()
	}
}
