package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"silvery-chat/internal/repository"
)

// ConfigHandler expone lectura pública de configuración dinámica.
type ConfigHandler struct {
	logger *zap.Logger
	config repository.ConfigRepository
}

func NewConfigHandler(logger *zap.Logger, config repository.ConfigRepository) *ConfigHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConfigHandler{logger: logger, config: config}
}

// GetConfig maneja GET /config/:key.
func (h *ConfigHandler) GetConfig(c *gin.Context) {
	key := c.Param("key")

	value, err := h.config.Get(c.Request.Context(), key)
	if errors.Is(err, pgx.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	if err != nil {
		h.logger.Error("config lookup failed", zap.String("key", key), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong. Please try again."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"key": key, "value": value})
}
