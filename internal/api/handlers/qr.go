package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
	qrcode "github.com/skip2/go-qrcode"
)

// QRHandler 產生分享連結的 QR code，讓參與者用手機掃描進入
type QRHandler struct {
	publicURL string
}

func NewQRHandler(publicURL string) *QRHandler {
	return &QRHandler{publicURL: publicURL}
}

func (h *QRHandler) Get(c *gin.Context) {
	if h.publicURL == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "server.public_url is not configured", "code": "not_configured"})
		return
	}

	png, err := qrcode.Encode(h.publicURL, qrcode.Medium, 256)
	if err != nil {
		logger.Errorf("qr encode %q: %v", h.publicURL, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate qr code", "code": "qr_error"})
		return
	}
	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, "image/png", png)
}
