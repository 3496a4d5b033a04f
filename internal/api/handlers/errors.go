package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"

	"secret_santa/internal/service"
)

// errorStatus 把服務層錯誤對應到 HTTP 狀態碼與錯誤代碼
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, service.ErrParticipantNotFound):
		return http.StatusNotFound, "participant_not_found"
	case errors.Is(err, service.ErrDrawConflict):
		return http.StatusConflict, "draw_conflict"
	case errors.Is(err, service.ErrExhaustedPool):
		return http.StatusConflict, "exhausted_pool"
	case errors.Is(err, service.ErrAlreadyDrawn):
		return http.StatusConflict, "already_drawn"
	case errors.Is(err, service.ErrSelfAssignment):
		return http.StatusBadRequest, "self_assignment"
	case errors.Is(err, service.ErrInvalidParticipant):
		return http.StatusBadRequest, "invalid_participant"
	case errors.Is(err, service.ErrRevealAbandoned):
		return http.StatusConflict, "reveal_abandoned"
	default:
		return http.StatusInternalServerError, "store_error"
	}
}

func respondError(c *gin.Context, err error) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}

func respondBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "bad_request"})
}
