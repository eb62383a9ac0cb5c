package jobs

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"storyreel/logger"
	"storyreel/model"
)

// MessageType 消息类型
type MessageType string

const (
	MsgTypeStatus MessageType = "status" // 任务状态更新
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 32
)

// WSMessage is the envelope sent to progress subscribers.
type WSMessage struct {
	Type      MessageType      `json:"type"`
	Status    *model.JobStatus `json:"status,omitempty"`
	Timestamp int64            `json:"timestamp"`
}

// Client is one websocket subscriber to a job's progress.
type Client struct {
	Hub   *Hub
	Conn  *websocket.Conn
	Send  chan []byte
	JobID string
}

// NewClient creates a subscriber for jobID on conn.
func NewClient(hub *Hub, conn *websocket.Conn, jobID string) *Client {
	return &Client{Hub: hub, Conn: conn, Send: make(chan []byte, sendBuffer), JobID: jobID}
}

// Hub fans job status updates out to websocket subscribers.
type Hub struct {
	// 任务 -> 客户端集合
	jobs map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMessage

	mu       sync.RWMutex
	done     chan struct{}
	stopOnce sync.Once
}

type broadcastMessage struct {
	JobID   string
	Message []byte
}

// NewHub 创建 Hub
func NewHub() *Hub {
	return &Hub{
		jobs:       make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMessage, 256),
		done:       make(chan struct{}),
	}
}

// Run 启动 Hub 主循环
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeClient(client)
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.broadcastToJob(msg)

		case <-h.done:
			h.cleanup()
			return
		}
	}
}

// Stop 停止 Hub
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.jobs[client.JobID] == nil {
		h.jobs[client.JobID] = make(map[*Client]bool)
	}
	h.jobs[client.JobID][client] = true
	logger.Debug("progress subscriber registered", logger.String("jobId", client.JobID))
}

// removeClient 移除客户端（需要持有锁）
func (h *Hub) removeClient(client *Client) {
	clients, ok := h.jobs[client.JobID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.Send)
	if len(clients) == 0 {
		delete(h.jobs, client.JobID)
	}
	logger.Debug("progress subscriber removed", logger.String("jobId", client.JobID))
}

func (h *Hub) broadcastToJob(msg *broadcastMessage) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.jobs[msg.JobID]))
	for client := range h.jobs[msg.JobID] {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	var slow []*Client
	for _, client := range clients {
		select {
		case client.Send <- msg.Message:
		default:
			slow = append(slow, client)
		}
	}
	if len(slow) == 0 {
		return
	}
	// 发送缓冲区满，移除客户端
	h.mu.Lock()
	for _, client := range slow {
		h.removeClient(client)
	}
	h.mu.Unlock()
}

func (h *Hub) cleanup() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for jobID, clients := range h.jobs {
		for client := range clients {
			close(client.Send)
		}
		delete(h.jobs, jobID)
	}
}

// Register subscribes client, queueing initial first when it is not nil so
// the subscriber starts from the current state. After Stop the client is
// closed immediately.
func (h *Hub) Register(client *Client, initial *model.JobStatus) {
	if initial != nil {
		if data, err := encodeStatus(initial); err == nil {
			client.Send <- data
		}
	}
	select {
	case h.register <- client:
	case <-h.done:
		close(client.Send)
	}
}

// Unregister removes client.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish sends status to every subscriber of its job. It never blocks on
// subscribers; when the hub is saturated the update is dropped.
func (h *Hub) Publish(status *model.JobStatus) {
	data, err := encodeStatus(status)
	if err != nil {
		logger.Warn("failed to marshal job status", logger.ErrorField(err))
		return
	}
	select {
	case h.broadcast <- &broadcastMessage{JobID: status.ID, Message: data}:
	case <-h.done:
	default:
		logger.Warn("progress hub saturated, dropping update", logger.String("jobId", status.ID))
	}
}

func encodeStatus(status *model.JobStatus) ([]byte, error) {
	return json.Marshal(&WSMessage{Type: MsgTypeStatus, Status: status, Timestamp: time.Now().UnixMilli()})
}

// ClientCount returns the number of subscribers for jobID.
func (h *Hub) ClientCount(jobID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.jobs[jobID])
}

// ReadPump 读取消息循环. Subscribers have nothing to say; reading only
// serves control frames and notices the connection closing.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(512)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error",
					logger.ErrorField(err),
					logger.String("jobId", c.JobID))
			}
			return
		}
	}
}

// WritePump 写入消息循环
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub 关闭了通道
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
