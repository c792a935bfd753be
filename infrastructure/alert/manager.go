package alert

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Alert 告警/信号通知
type Alert struct {
	Level     string                 // "INFO", "WARNING", "ERROR", "CRITICAL"
	Message   string                 // 人类可读消息，如 "🚀 LONG (Top50) [binance] BTCUSDT"
	Timestamp time.Time              // 告警时间
	Fields    map[string]interface{} // 附加字段
}

// Channel 告警通道接口
type Channel interface {
	Send(ctx context.Context, alert Alert) error
	Name() string
}

// ErrThrottled 同一条告警仍在限流窗口内，未发往任何通道。
var ErrThrottled = errors.New("alert throttled")

// DeliveryError 通知投递失败；不回滚信号检测，也不影响后续通知。
type DeliveryError struct {
	Channel string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver via %s: %v", e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Manager 告警管理器
type Manager struct {
	channels []Channel
	mirrors  []Channel
	throttle *Throttler
	mu       sync.RWMutex
}

// Throttler 告警限流器；interval<=0 时不限流（信号每轮都会重复推送）。
type Throttler struct {
	lastSent map[string]time.Time
	interval time.Duration
	mu       sync.RWMutex
}

// NewThrottler 创建限流器
func NewThrottler(interval time.Duration) *Throttler {
	return &Throttler{
		lastSent: make(map[string]time.Time),
		interval: interval,
	}
}

// Allow 检查是否允许发送（限流）
func (t *Throttler) Allow(key string) bool {
	if t.interval <= 0 {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	lastTime, exists := t.lastSent[key]

	if !exists || now.Sub(lastTime) >= t.interval {
		t.lastSent[key] = now
		return true
	}

	return false
}

// NewManager 创建告警管理器
func NewManager(channels []Channel, throttleInterval time.Duration) *Manager {
	return &Manager{
		channels: channels,
		throttle: NewThrottler(throttleInterval),
	}
}

// SendAlert 发送到所有通道；只有全部通道失败时才返回 *DeliveryError，
// 被限流时返回 ErrThrottled。
func (m *Manager) SendAlert(ctx context.Context, alert Alert) error {
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}
	if alert.Level == "" {
		alert.Level = "INFO"
	}

	key := fmt.Sprintf("%s:%s", alert.Level, alert.Message)
	if !m.throttle.Allow(key) {
		return ErrThrottled
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var lastErr *DeliveryError
	successCount := 0

	for _, ch := range m.channels {
		if err := ch.Send(ctx, alert); err != nil {
			lastErr = &DeliveryError{Channel: ch.Name(), Err: err}
		} else {
			successCount++
		}
	}

	for _, ch := range m.mirrors {
		_ = ch.Send(ctx, alert)
	}

	if successCount == 0 && lastErr != nil {
		return lastErr
	}
	return nil
}

// SendWarning 发送WARNING级别告警
func (m *Manager) SendWarning(ctx context.Context, message string, fields map[string]interface{}) error {
	return m.SendAlert(ctx, Alert{Level: "WARNING", Message: message, Fields: fields})
}

// SendError 发送ERROR级别告警
func (m *Manager) SendError(ctx context.Context, message string, fields map[string]interface{}) error {
	return m.SendAlert(ctx, Alert{Level: "ERROR", Message: message, Fields: fields})
}

// AddChannel 添加告警通道
func (m *Manager) AddChannel(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = append(m.channels, ch)
}

// AddMirror 添加镜像通道（日志、websocket 推送等）：收到每条告警的副本，
// 成败不计入投递结果
func (m *Manager) AddMirror(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mirrors = append(m.mirrors, ch)
}

// GetChannels 获取所有通道
func (m *Manager) GetChannels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.channels))
	for _, ch := range m.channels {
		names = append(names, ch.Name())
	}
	return names
}
