package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"silvery-chat/internal/service"
)

const authClaimsKey = "auth_claims"

// AuthMiddleware valida bearer tokens y guarda claims en el contexto.
func AuthMiddleware(authSvc *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authSvc == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
			c.Abort()
			return
		}

		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			c.Abort()
			return
		}

		token := strings.TrimSpace(header[len("Bearer "):])
		claims, err := authSvc.ParseAccessToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		c.Set(authClaimsKey, claims)
		c.Next()
	}
}

// RequireAdmin exige el rol administrativo en los claims ya validados.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetAuthClaims(c)
		if !ok || !claims.IsAdmin() {
			c.JSON(http.StatusForbidden, gin.H{"error": "admin required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetAuthClaims obtiene claims desde el contexto.
func GetAuthClaims(c *gin.Context) (service.Claims, bool) {
	val, ok := c.Get(authClaimsKey)
	if !ok {
		return service.Claims{}, false
	}
	claims, ok := val.(service.Claims)
	return claims, ok
}
