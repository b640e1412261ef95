package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"silvery-chat/internal/service"
)

// RedeemHandler expone el canje de códigos de acceso.
type RedeemHandler struct {
	logger *zap.Logger
	redeem *service.RedeemService
}

func NewRedeemHandler(logger *zap.Logger, redeem *service.RedeemService) *RedeemHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedeemHandler{logger: logger, redeem: redeem}
}

// Redeem maneja POST /redeem. Los errores son específicos y accionables:
// código inválido, ya canjeado o acceso ya vigente.
func (h *RedeemHandler) Redeem(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Code) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please enter a valid code"})
		return
	}

	_, err := h.redeem.Redeem(c.Request.Context(), claims.UserID, req.Code)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": "Lifetime access granted! Welcome to Silvery."})
	case errors.Is(err, service.ErrRedeemInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please enter a valid code"})
	case errors.Is(err, service.ErrCodeNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Invalid code. Please check and try again."})
	case errors.Is(err, service.ErrCodeAlreadyRedeemed):
		c.JSON(http.StatusConflict, gin.H{"error": "This code has already been redeemed."})
	case errors.Is(err, service.ErrAlreadyEntitled):
		c.JSON(http.StatusConflict, gin.H{"error": "You already have lifetime access!"})
	default:
		h.logger.Error("redeem failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong. Please try again."})
	}
}
