package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"secret_santa/internal/service"
)

// AdminHandler 處理管理介面的請求
type AdminHandler struct {
	adminService *service.AdminService
}

func NewAdminHandler(adminService *service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// ListParticipants 回傳所有參與者，包含登入密碼
func (h *AdminHandler) ListParticipants(c *gin.Context) {
	participants, err := h.adminService.ListParticipants(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, participants)
}

func (h *AdminHandler) AddParticipant(c *gin.Context) {
	var input struct {
		Name   string `json:"name" binding:"required"`
		Secret string `json:"secret" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, err)
		return
	}

	participant, err := h.adminService.AddParticipant(c.Request.Context(), input.Name, input.Secret)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, participant)
}

func (h *AdminHandler) DeleteParticipant(c *gin.Context) {
	if err := h.adminService.DeleteParticipant(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) ListAssignments(c *gin.Context) {
	views, err := h.adminService.ListAssignmentsWithNames(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *AdminHandler) Summary(c *gin.Context) {
	summary, err := h.adminService.Summary(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Reset 刪除所有抽籤結果，讓所有人重新抽籤
func (h *AdminHandler) Reset(c *gin.Context) {
	result, err := h.adminService.ResetAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
