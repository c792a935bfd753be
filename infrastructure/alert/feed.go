package alert

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	feedSendBuffer   = 64
	feedWriteTimeout = 10 * time.Second
	feedPingInterval = 30 * time.Second
)

// feedMessage 推送给 websocket 订阅者的 JSON 结构
type feedMessage struct {
	Level   string                 `json:"level"`
	Message string                 `json:"message"`
	Fields  map[string]interface{} `json:"fields,omitempty"`
	Ts      string                 `json:"ts"`
}

// FeedChannel 把告警广播给所有 websocket 订阅者（/feed）。
// 慢订阅者的缓冲满时丢弃消息，不阻塞扫描。
type FeedChannel struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	clients  map[*feedClient]struct{}
	closed   bool
}

type feedClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *feedClient) close() {
	c.once.Do(func() { close(c.send) })
}

// NewFeedChannel 创建广播通道。allowedOrigins 为空时只接受同源（或不带 Origin）
// 的连接；"*" 放行任意来源。
func NewFeedChannel(allowedOrigins []string) *FeedChannel {
	return &FeedChannel{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		clients: make(map[*feedClient]struct{}),
	}
}

// originChecker 返回 nil 时 gorilla 使用默认的同源检查。
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimRight(strings.ToLower(o), "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.ToLower(origin)]
		return ok
	}
}

// Name 返回通道名称
func (f *FeedChannel) Name() string { return "feed" }

// Subscribers 当前订阅者数量
func (f *FeedChannel) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.clients)
}

// Send 广播告警；没有订阅者时直接成功。
func (f *FeedChannel) Send(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(feedMessage{
		Level:   alert.Level,
		Message: alert.Message,
		Fields:  alert.Fields,
		Ts:      alert.Timestamp.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	for c := range f.clients {
		select {
		case c.send <- payload:
		default:
		}
	}
	return nil
}

// ServeHTTP 升级为 websocket 并注册订阅者。
func (f *FeedChannel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &feedClient{conn: conn, send: make(chan []byte, feedSendBuffer)}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		conn.Close()
		return
	}
	f.clients[c] = struct{}{}
	f.mu.Unlock()

	go f.writePump(c)
	f.readPump(c)
}

// readPump 只用于感知断开，订阅者发来的内容被忽略。
func (f *FeedChannel) readPump(c *feedClient) {
	defer f.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (f *FeedChannel) writePump(c *feedClient) {
	ticker := time.NewTicker(feedPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (f *FeedChannel) remove(c *feedClient) {
	f.mu.Lock()
	delete(f.clients, c)
	f.mu.Unlock()
	c.close()
}

// Close 断开所有订阅者，之后的连接直接拒绝。
func (f *FeedChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for c := range f.clients {
		delete(f.clients, c)
		c.close()
	}
	return nil
}
