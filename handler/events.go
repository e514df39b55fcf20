package handler

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/KodaTao/ai-chat/config"
)

// 事件类型
const (
	EventConversationCreated = "conversation.created"
	EventConversationUpdated = "conversation.updated"
	EventConversationDeleted = "conversation.deleted"
	EventMessageCreated      = "message.created"
	EventFileUploaded        = "file.uploaded"
	EventFileDeleted         = "file.deleted"

	eventPing = "PING"
	eventPong = "PONG"
)

// Event 推送给订阅端的消息结构
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Subscriber 一个 WebSocket 订阅连接
// mu 只保护 closed/send，socket 写入由 writeMu 串行化
type Subscriber struct {
	conn      *websocket.Conn
	send      chan []byte
	writeWait time.Duration
	mu        sync.Mutex
	closed    bool
	writeMu   sync.Mutex
}

func (s *Subscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.send)
		s.conn.Close()
	}
}

func (s *Subscriber) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// enqueue 非阻塞投递，缓冲区满时丢弃
func (s *Subscriber) enqueue(data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.send <- data:
		return true
	default:
		return false
	}
}

// write 带写超时，对端不读时最多阻塞 writeWait
func (s *Subscriber) write(data []byte) error {
	if s.isClosed() {
		return websocket.ErrCloseSent
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub 管理所有事件订阅连接
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*Subscriber]struct{}
	cfg         config.WebSocketConfig
	logger      *zap.Logger
}

func NewHub(cfg config.WebSocketConfig, logger *zap.Logger) *Hub {
	return &Hub{
		subscribers: make(map[*Subscriber]struct{}),
		cfg:         cfg,
		logger:      logger,
	}
}

// Count 当前订阅数
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Publish 广播事件，不会阻塞调用方
func (h *Hub) Publish(eventType string, payload interface{}) {
	data, err := json.Marshal(Event{Type: eventType, Payload: payload})
	if err != nil {
		h.logger.Error("marshal event", zap.String("type", eventType), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subscribers {
		if !sub.enqueue(data) {
			h.logger.Warn("subscriber buffer full, dropping event", zap.String("type", eventType))
		}
	}
}

// Close 断开所有订阅
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subscribers
	h.subscribers = make(map[*Subscriber]struct{})
	h.mu.Unlock()

	for sub := range subs {
		sub.Close()
	}
}

// HandleWS 处理 /ws/events 连接请求
func (h *Hub) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sub := &Subscriber{
		conn:      conn,
		send:      make(chan []byte, 256),
		writeWait: h.writeTimeout(),
	}

	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("subscriber connected", zap.String("remote", c.ClientIP()))

	go h.writePump(sub)
	go h.pingPump(sub)
	h.readPump(sub)
}

func (h *Hub) readTimeout() time.Duration {
	return time.Duration(h.cfg.PingInterval+h.cfg.PongTimeout) * time.Second
}

func (h *Hub) writeTimeout() time.Duration {
	if h.cfg.PongTimeout <= 0 {
		return time.Second
	}
	return time.Duration(h.cfg.PongTimeout) * time.Second
}

// readPump 只用于保活：任何消息都刷新读超时
func (h *Hub) readPump(sub *Subscriber) {
	defer func() {
		h.mu.Lock()
		delete(h.subscribers, sub)
		h.mu.Unlock()
		sub.Close()
		h.logger.Debug("subscriber disconnected")
	}()

	sub.conn.SetReadDeadline(time.Now().Add(h.readTimeout()))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(h.readTimeout()))
	})

	for {
		_, data, err := sub.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
		sub.conn.SetReadDeadline(time.Now().Add(h.readTimeout()))

		var evt Event
		if err := json.Unmarshal(data, &evt); err != nil {
			h.logger.Debug("ignoring invalid client message", zap.Error(err))
			continue
		}
		if evt.Type != eventPong {
			h.logger.Debug("ignoring client message", zap.String("type", evt.Type))
		}
	}
}

// writePump 写失败（含写超时）时断开连接，readPump 随之退出并注销
func (h *Hub) writePump(sub *Subscriber) {
	for data := range sub.send {
		if err := sub.write(data); err != nil {
			h.logger.Debug("websocket write failed", zap.Error(err))
			sub.Close()
			return
		}
	}
}

// pingPump 定期发送应用层 PING，订阅端回复 PONG
func (h *Hub) pingPump(sub *Subscriber) {
	ticker := time.NewTicker(time.Duration(h.cfg.PingInterval) * time.Second)
	defer ticker.Stop()

	ping, _ := json.Marshal(Event{Type: eventPing})
	for range ticker.C {
		if err := sub.write(ping); err != nil {
			return
		}
	}
}
