package alert

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// LogChannel 日志告警通道（zap 结构化输出）
type LogChannel struct {
	logger *zap.Logger
	name   string
}

// NewLogChannel 创建日志告警通道
func NewLogChannel(name string, logger *zap.Logger) *LogChannel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogChannel{logger: logger, name: name}
}

// Send 发送告警到日志
func (c *LogChannel) Send(ctx context.Context, alert Alert) error {
	fields := make([]zap.Field, 0, len(alert.Fields)+2)
	fields = append(fields, zap.String("level", alert.Level), zap.Time("alert_ts", alert.Timestamp))
	for _, k := range sortedKeys(alert.Fields) {
		fields = append(fields, zap.Any(k, alert.Fields[k]))
	}
	c.logger.Info(alert.Message, fields...)
	return nil
}

// Name 返回通道名称
func (c *LogChannel) Name() string {
	return c.name
}

// ConsoleChannel 控制台告警通道（彩色输出）
type ConsoleChannel struct {
	name string
	out  io.Writer
	mu   sync.Mutex
}

// NewConsoleChannel 创建控制台告警通道
func NewConsoleChannel(name string) *ConsoleChannel {
	return &ConsoleChannel{name: name, out: os.Stdout}
}

// Send 发送告警到控制台（带颜色）
func (c *ConsoleChannel) Send(ctx context.Context, alert Alert) error {
	colorReset := "\033[0m"
	colorCode := ""

	switch alert.Level {
	case "INFO":
		colorCode = "\033[32m" // 绿色
	case "WARNING":
		colorCode = "\033[33m" // 黄色
	case "ERROR":
		colorCode = "\033[31m" // 红色
	case "CRITICAL":
		colorCode = "\033[35m" // 紫色
	default:
		colorCode = colorReset
	}

	msg := fmt.Sprintf("%s[%s]%s %s - %s",
		colorCode,
		alert.Level,
		colorReset,
		alert.Timestamp.Format("2006-01-02 15:04:05"),
		alert.Message,
	)

	if len(alert.Fields) > 0 {
		msg += " |"
		for _, k := range sortedKeys(alert.Fields) {
			msg += fmt.Sprintf(" %s=%v", k, alert.Fields[k])
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.out, msg)
	return err
}

// Name 返回通道名称
func (c *ConsoleChannel) Name() string {
	return c.name
}

// MockChannel 模拟告警通道（用于测试），并发安全
type MockChannel struct {
	name      string
	alerts    []Alert
	shouldErr bool
	mu        sync.Mutex
}

// NewMockChannel 创建模拟告警通道
func NewMockChannel(name string) *MockChannel {
	return &MockChannel{
		name:   name,
		alerts: make([]Alert, 0),
	}
}

// Send 记录告警（用于测试验证）
func (c *MockChannel) Send(ctx context.Context, alert Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shouldErr {
		return fmt.Errorf("mock error")
	}
	c.alerts = append(c.alerts, alert)
	return nil
}

// Name 返回通道名称
func (c *MockChannel) Name() string {
	return c.name
}

// GetAlerts 获取所有接收到的告警
func (c *MockChannel) GetAlerts() []Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Alert(nil), c.alerts...)
}

// SetShouldError 设置是否返回错误
func (c *MockChannel) SetShouldError(shouldErr bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shouldErr = shouldErr
}

// Clear 清空告警记录
func (c *MockChannel) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = make([]Alert, 0)
}

// Count 返回接收到的告警数量
func (c *MockChannel) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.alerts)
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
