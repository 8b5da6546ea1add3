package auth

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-webinar/notifications/pkg/response"
)

// Handler exchanges the configured admin API key for a short-lived JWT.
type Handler struct {
	jwtService  *JWTService
	adminAPIKey string
	logger      *zap.Logger
}

// NewHandler creates an auth handler. An empty adminAPIKey disables token
// issuance entirely.
func NewHandler(jwtService *JWTService, adminAPIKey string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{jwtService: jwtService, adminAPIKey: adminAPIKey, logger: logger}
}

// TokenRequest is the body for POST /auth/token.
type TokenRequest struct {
	APIKey string `json:"apiKey" binding:"required"`
}

// Token handles POST /auth/token.
func (h *Handler) Token(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "apiKey required")
		return
	}
	if h.adminAPIKey == "" || subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(h.adminAPIKey)) != 1 {
		response.Unauthorized(c, "invalid api key")
		return
	}
	token, err := h.jwtService.Generate(RoleAdmin)
	if err != nil {
		h.logger.Error("generate admin token failed", zap.Error(err))
		response.Internal(c, "failed to issue token")
		return
	}
	response.OK(c, gin.H{"token": token})
}
