package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"

	"secret_santa/internal/service"
	"secret_santa/internal/utils"
)

// AuthHandler 處理與登入相關的請求
type AuthHandler struct {
	authService *service.AuthService
	tokens      *utils.TokenManager
}

func NewAuthHandler(authService *service.AuthService, tokens *utils.TokenManager) *AuthHandler {
	return &AuthHandler{authService: authService, tokens: tokens}
}

// LoginInput 定義登入請求的結構
type LoginInput struct {
	Secret string `json:"secret" binding:"required"`
}

// Login 先比對管理員密碼，再以密碼查詢參與者
func (h *AuthHandler) Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, err)
		return
	}

	if h.authService.IsAdmin(input.Secret) {
		token, err := h.tokens.GenerateToken("", utils.RoleAdmin)
		if err != nil {
			logger.Errorf("generate admin token: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token", "code": "token_error"})
			return
		}
		logger.Info("admin logged in")
		c.JSON(http.StatusOK, gin.H{"token": token, "role": utils.RoleAdmin})
		return
	}

	participant, err := h.authService.Login(c.Request.Context(), input.Secret)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := h.tokens.GenerateToken(participant.ID, utils.RoleParticipant)
	if err != nil {
		logger.Errorf("generate token participant_id=%s: %v", participant.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token", "code": "token_error"})
		return
	}

	logger.Infof("participant logged in participant_id=%s", participant.ID)
	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"role":  utils.RoleParticipant,
		"participant": service.Candidate{
			ID:   participant.ID,
			Name: participant.Name,
		},
	})
}
