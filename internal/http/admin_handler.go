package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"silvery-chat/internal/service"
)

// AdminHandler agrupa operaciones administrativas: generación de códigos
// y gestión manual de entitlements.
type AdminHandler struct {
	logger *zap.Logger
	redeem *service.RedeemService
	access *service.AccessService
}

func NewAdminHandler(logger *zap.Logger, redeem *service.RedeemService, access *service.AccessService) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{logger: logger, redeem: redeem, access: access}
}

// GenerateCodes maneja POST /admin/codes.
func (h *AdminHandler) GenerateCodes(c *gin.Context) {
	var req struct {
		Count int `json:"count"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	codes, err := h.redeem.GenerateCodes(c.Request.Context(), req.Count)
	if errors.Is(err, service.ErrRedeemInvalidInput) || errors.Is(err, service.ErrBatchTooLarge) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Count must be between 1 and 100"})
		return
	}
	if err != nil {
		h.logger.Error("code generation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong. Please try again."})
		return
	}

	out := make([]string, 0, len(codes))
	for _, cc := range codes {
		out = append(out, cc.Code)
	}
	c.JSON(http.StatusCreated, gin.H{"codes": out})
}

// GrantEntitlement maneja POST /admin/entitlements.
func (h *AdminHandler) GrantEntitlement(c *gin.Context) {
	var req struct {
		UserID    string     `json:"userId"`
		Type      string     `json:"type"`
		Source    string     `json:"source"`
		ExpiresAt *time.Time `json:"expiresAt"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if req.Source == "" {
		req.Source = "admin"
	}

	ent, err := h.access.Grant(c.Request.Context(), req.UserID, req.Type, req.Source, req.ExpiresAt)
	if errors.Is(err, service.ErrAccessInvalidInput) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if err != nil {
		h.logger.Error("entitlement grant failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong. Please try again."})
		return
	}

	c.JSON(http.StatusCreated, ent)
}

// RevokeEntitlement maneja DELETE /admin/entitlements/:id.
func (h *AdminHandler) RevokeEntitlement(c *gin.Context) {
	id := c.Param("id")

	err := h.access.Revoke(c.Request.Context(), id)
	if errors.Is(err, service.ErrAccessInvalidInput) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if err != nil {
		h.logger.Error("entitlement revoke failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong. Please try again."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
