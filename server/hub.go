package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"LocalFM/core/apperr"
	"LocalFM/core/player"
	"LocalFM/logger"

	"github.com/gorilla/websocket"
)

// MessageType 消息类型
type MessageType string

const (
	MsgTypeState MessageType = "state" // 播放状态快照
	MsgTypeError MessageType = "error" // 控制命令失败
	MsgTypePong  MessageType = "pong"  // 心跳响应
)

// WSMessage is what the server pushes to clients.
type WSMessage struct {
	Type      MessageType   `json:"type"`
	State     *player.State `json:"state,omitempty"`
	Code      apperr.Code   `json:"code,omitempty"`
	Message   string        `json:"message,omitempty"`
	Timestamp int64         `json:"timestamp"`
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 16
)

// Client is one websocket connection on the state hub.
type Client struct {
	Hub      *StateHub
	Conn     *websocket.Conn
	Send     chan []byte
	Username string

	mu     sync.Mutex
	closed bool
}

func NewClient(hub *StateHub, conn *websocket.Conn, username string) *Client {
	return &Client{Hub: hub, Conn: conn, Send: make(chan []byte, sendBuffer), Username: username}
}

// trySend queues data unless the buffer is full or Send is closed.
func (c *Client) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// StateHub fans player state out to every connected client.
type StateHub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	mu   sync.RWMutex
	done chan struct{}
	once sync.Once
}

func NewStateHub() *StateHub {
	return &StateHub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
	}
}

// Run 启动 Hub 主循环
func (h *StateHub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			logger.Debug("状态客户端已注册", logger.String("user", c.Username))

		case c := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(c)
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.fanOut(msg)

		case <-h.done:
			h.mu.Lock()
			for c := range h.clients {
				h.removeLocked(c)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop 停止 Hub, closing every client's send channel.
func (h *StateHub) Stop() {
	h.once.Do(func() { close(h.done) })
}

func (h *StateHub) removeLocked(c *Client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.closeSend()
		logger.Debug("状态客户端已注销", logger.String("user", c.Username))
	}
}

func (h *StateHub) fanOut(msg []byte) {
	h.mu.RLock()
	list := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		list = append(list, c)
	}
	h.mu.RUnlock()

	for _, c := range list {
		if !c.trySend(msg) {
			// 发送缓冲区满，移除客户端
			h.mu.Lock()
			h.removeLocked(c)
			h.mu.Unlock()
		}
	}
}

// Register adds a client. It returns false once the hub has stopped.
func (h *StateHub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *StateHub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// BroadcastState queues a state snapshot for every client.
func (h *StateHub) BroadcastState(st player.State) error {
	data, err := encodeMessage(&WSMessage{Type: MsgTypeState, State: &st})
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- data:
	case <-h.done:
	}
	return nil
}

// ClientCount is the number of registered clients.
func (h *StateHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func encodeMessage(msg *WSMessage) ([]byte, error) {
	msg.Timestamp = time.Now().UnixMilli()
	return json.Marshal(msg)
}

// ========== Client 方法 ==========

// ReadPump reads control commands until the connection drops.
func (c *Client) ReadPump(ctx context.Context, handle func(ctx context.Context, cmd Command) error) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket 读取错误", logger.ErrorField(err), logger.String("user", c.Username))
			}
			return
		}

		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			c.SendMessage(&WSMessage{Type: MsgTypeError, Code: apperr.CodeInvalidArgument, Message: "invalid message format"})
			continue
		}
		if cmd.Type == CmdPing {
			c.SendMessage(&WSMessage{Type: MsgTypePong})
			continue
		}
		if err := handle(ctx, cmd); err != nil {
			msg := &WSMessage{Type: MsgTypeError, Code: apperr.CodeOf(err), Message: err.Error()}
			var ae *apperr.Error
			if errors.As(err, &ae) {
				msg.Message = ae.Message
			}
			c.SendMessage(msg)
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

// SendMessage queues msg for this client, dropping it when the buffer is full.
func (c *Client) SendMessage(msg *WSMessage) {
	data, err := encodeMessage(msg)
	if err != nil {
		logger.Warn("消息编码失败", logger.ErrorField(err))
		return
	}
	c.trySend(data)
}
