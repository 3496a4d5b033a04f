package service

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/logger"
	"github.com/gorilla/websocket"
)

const (
	EventAssignmentCommitted = "assignment_committed"
	EventLedgerReset         = "ledger_reset"
	EventParticipantDeleted  = "participant_deleted"
)

// Event 通知在線的客戶端名單已經改變，客戶端收到後重新查詢自己的狀態
type Event struct {
	Type          string    `json:"type"`
	ParticipantID string    `json:"participant_id,omitempty"`
	Time          time.Time `json:"time"`
}

type Publisher interface {
	Publish(event Event)
}

// Client 代表一個訂閱事件的 WebSocket 連線
type Client struct {
	Conn          *websocket.Conn
	ParticipantID string
	SendChan      chan Event
}

// EventHub 管理所有訂閱事件的 WebSocket 連線
type EventHub struct {
	clients    map[*Client]struct{}
	clientsMux sync.RWMutex
}

func NewEventHub() *EventHub {
	return &EventHub{
		clients: make(map[*Client]struct{}),
	}
}

// HandleConnection 註冊連線並阻塞到連線關閉為止
func (h *EventHub) HandleConnection(conn *websocket.Conn, participantID string) {
	client := &Client{
		Conn:          conn,
		ParticipantID: participantID,
		SendChan:      make(chan Event, 16),
	}

	h.addClient(client)

	done := make(chan struct{})
	defer func() {
		h.removeClient(client)
		close(client.SendChan)
		<-done
		conn.Close()
	}()

	go func() {
		defer close(done)
		h.writePump(client)
	}()
	h.readPump(client)
}

// readPump 只負責處理 pong 與偵測斷線，客戶端送來的內容會被忽略
func (h *EventHub) readPump(client *Client) {
	client.Conn.SetReadLimit(512)
	client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warningf("websocket unexpected close error: %v", err)
			}
			return
		}
	}
}

func (h *EventHub) writePump(client *Client) {
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-client.SendChan:
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			payload, err := json.Marshal(event)
			if err != nil {
				logger.Errorf("event encoding error: %v", err)
				continue
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Publish 把事件送給所有在線客戶端，佇列已滿的客戶端會略過這次事件
func (h *EventHub) Publish(event Event) {
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()

	for client := range h.clients {
		select {
		case client.SendChan <- event:
		default:
			logger.Warningf("event dropped participant_id=%s type=%s", client.ParticipantID, event.Type)
		}
	}
}

func (h *EventHub) addClient(client *Client) {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()
	h.clients[client] = struct{}{}
}

func (h *EventHub) removeClient(client *Client) {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()
	delete(h.clients, client)
}

// ClientCount 回傳目前在線的客戶端數量
func (h *EventHub) ClientCount() int {
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()
	return len(h.clients)
}
