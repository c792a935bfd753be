package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTelegramAPI Telegram Bot API 地址
const DefaultTelegramAPI = "https://api.telegram.org"

// TelegramChannel 通过 Bot API sendMessage 推送纯文本消息
type TelegramChannel struct {
	name     string
	baseURL  string
	botToken string
	chatID   string
	client   *http.Client
}

// NewTelegramChannel 创建 Telegram 通道；baseURL 为空时使用官方地址
func NewTelegramChannel(botToken, chatID, baseURL string) *TelegramChannel {
	if baseURL == "" {
		baseURL = DefaultTelegramAPI
	}
	return &TelegramChannel{
		name:     "telegram",
		baseURL:  baseURL,
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type telegramResp struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send 发送消息，HTTP 非 200 或 ok=false 视为失败
func (t *TelegramChannel) Send(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(map[string]interface{}{
		"chat_id":                  t.chatID,
		"text":                     alert.Message,
		"disable_web_page_preview": true,
	})
	if err != nil {
		return fmt.Errorf("telegram: marshal: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var tr telegramResp
	_ = json.Unmarshal(raw, &tr)
	if resp.StatusCode != http.StatusOK || !tr.OK {
		return fmt.Errorf("telegram: status %d: %s", resp.StatusCode, tr.Description)
	}
	return nil
}

// Name 返回通道名称
func (t *TelegramChannel) Name() string {
	return t.name
}
