package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
	"github.com/gorilla/websocket"

	"secret_santa/internal/middleware"
	"secret_santa/internal/service"
)

// 定義 WebSocket 升級器
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // 前端與 API 可能不同源，身份由 token 驗證
	},
}

const writeWait = 10 * time.Second

// RevealMessage 是抽籤動畫串流送出的訊息
type RevealMessage struct {
	Type   string               `json:"type"` // spin, result, error
	Frame  *service.RevealFrame `json:"frame,omitempty"`
	Result *service.DrawResult  `json:"result,omitempty"`
	Error  string               `json:"error,omitempty"`
	Code   string               `json:"code,omitempty"`
}

// WebSocketHandler 處理抽籤動畫與事件訂閱兩種 WebSocket 連接
type WebSocketHandler struct {
	drawService *service.DrawService
	events      *service.EventHub
}

func NewWebSocketHandler(drawService *service.DrawService, events *service.EventHub) *WebSocketHandler {
	return &WebSocketHandler{
		drawService: drawService,
		events:      events,
	}
}

// HandleEvents 訂閱名單變動事件，連線會保持到客戶端離開
func (h *WebSocketHandler) HandleEvents(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warningf("websocket upgrade failed: %v", err)
		return
	}
	h.events.HandleConnection(conn, c.GetString(middleware.ContextParticipantID))
}

// HandleReveal 以動畫方式抽籤：送出一連串 spin 畫面，最後送出 result 或 error。
// 客戶端在動畫期間斷線時放棄這次抽籤。
func (h *WebSocketHandler) HandleReveal(c *gin.Context) {
	participantID := c.GetString(middleware.ContextParticipantID)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warningf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// 讀取端只用來偵測斷線
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(msg RevealMessage) error {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(msg)
	}

	result, err := h.drawService.Reveal(ctx, participantID, func(frame service.RevealFrame) error {
		return send(RevealMessage{Type: "spin", Frame: &frame})
	})
	if err != nil {
		_, code := errorStatus(err)
		if code == "store_error" {
			logger.Errorf("reveal participant_id=%s: %v", participantID, err)
		}
		send(RevealMessage{Type: "error", Error: err.Error(), Code: code})
	} else {
		send(RevealMessage{Type: "result", Result: result})
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
