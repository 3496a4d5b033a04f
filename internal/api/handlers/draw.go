package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"secret_santa/internal/middleware"
	"secret_santa/internal/service"
)

// DrawHandler 處理參與者的抽籤請求
type DrawHandler struct {
	drawService *service.DrawService
}

func NewDrawHandler(drawService *service.DrawService) *DrawHandler {
	return &DrawHandler{drawService: drawService}
}

// Me 回傳目前登入的參與者與他的抽籤狀態
func (h *DrawHandler) Me(c *gin.Context) {
	participantID := c.GetString(middleware.ContextParticipantID)

	state, err := h.drawService.GetDrawState(c.Request.Context(), participantID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"participant_id": participantID,
		"draw":           state,
	})
}

// GetDrawState 回傳抽到的人，或目前可抽名單的大小
func (h *DrawHandler) GetDrawState(c *gin.Context) {
	state, err := h.drawService.GetDrawState(c.Request.Context(), c.GetString(middleware.ContextParticipantID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// PerformDraw 不經過動畫直接抽籤
func (h *DrawHandler) PerformDraw(c *gin.Context) {
	result, err := h.drawService.PerformDraw(c.Request.Context(), c.GetString(middleware.ContextParticipantID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}
