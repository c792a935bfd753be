package alert

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelegramChannelSend(t *testing.T) {
	var got map[string]interface{}
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	defer srv.Close()

	ch := NewTelegramChannel("123:abc", "-1001", srv.URL)
	err := ch.Send(context.Background(), Alert{Message: "🚀 LONG (Top50) [binance] BTCUSDT"})
	require.NoError(t, err)

	assert.Equal(t, "/bot123:abc/sendMessage", path)
	assert.Equal(t, "-1001", got["chat_id"])
	assert.Equal(t, "🚀 LONG (Top50) [binance] BTCUSDT", got["text"])
	_, hasParseMode := got["parse_mode"]
	assert.False(t, hasParseMode)
	assert.Equal(t, "telegram", ch.Name())
}

func TestTelegramChannelErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"非200", http.StatusUnauthorized, `{"ok":false,"description":"Unauthorized"}`},
		{"ok=false", http.StatusOK, `{"ok":false,"description":"chat not found"}`},
		{"非JSON", http.StatusOK, `<html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			ch := NewTelegramChannel("t", "c", srv.URL)
			assert.Error(t, ch.Send(context.Background(), Alert{Message: "x"}))
		})
	}
}

func TestTelegramFailureSurfacesAsDeliveryError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	mgr := NewManager([]Channel{NewTelegramChannel("t", "c", srv.URL)}, 0)
	err := mgr.SendError(context.Background(), "x", nil)

	var derr *DeliveryError
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, "telegram", derr.Channel)
}

func TestWebhookChannelSend(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ch := NewWebhookChannel(srv.URL)
	ts := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	err := ch.Send(context.Background(), Alert{
		Level:     "INFO",
		Message:   "🔻 SHORT (Top50) [aster] ETHUSDT",
		Timestamp: ts,
		Fields:    map[string]interface{}{"symbol": "ETHUSDT"},
	})
	require.NoError(t, err)

	assert.Equal(t, "INFO", got["level"])
	assert.Equal(t, "🔻 SHORT (Top50) [aster] ETHUSDT", got["message"])
	assert.Equal(t, "2026-01-02T03:00:00Z", got["ts"])
	assert.Equal(t, map[string]interface{}{"symbol": "ETHUSDT"}, got["fields"])
}

func TestWebhookChannelStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookChannel(srv.URL).Send(context.Background(), Alert{Message: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestWebhookChannelContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := NewWebhookChannel(srv.URL).Send(ctx, Alert{Message: "x"})
	assert.Error(t, err)
}

func TestFeedChannelBroadcast(t *testing.T) {
	feed := NewFeedChannel(nil)
	srv := httptest.NewServer(feed)
	defer srv.Close()
	defer feed.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return feed.Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	err = feed.Send(context.Background(), Alert{
		Level:     "INFO",
		Message:   "🚀 LONG (Top50) [binance] BTCUSDT",
		Timestamp: time.Now(),
	})
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg feedMessage
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, "INFO", msg.Level)
	assert.Equal(t, "🚀 LONG (Top50) [binance] BTCUSDT", msg.Message)
}

func TestFeedChannelNoSubscribers(t *testing.T) {
	feed := NewFeedChannel(nil)
	assert.NoError(t, feed.Send(context.Background(), Alert{Message: "x"}))
	assert.Equal(t, 0, feed.Subscribers())
	assert.Equal(t, "feed", feed.Name())
}

func TestFeedChannelUnsubscribeOnDisconnect(t *testing.T) {
	feed := NewFeedChannel(nil)
	srv := httptest.NewServer(feed)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return feed.Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return feed.Subscribers() == 0 }, time.Second, 10*time.Millisecond)
}

func TestFeedChannelOriginPolicy(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		wantOK  bool
	}{
		{"默认拒绝跨域", nil, "https://evil.example", false},
		{"默认允许无 Origin", nil, "", true},
		{"白名单命中", []string{"https://dash.example/"}, "https://dash.example", true},
		{"白名单未命中", []string{"https://dash.example"}, "https://evil.example", false},
		{"通配", []string{"*"}, "https://any.example", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feed := NewFeedChannel(tt.allowed)
			srv := httptest.NewServer(feed)
			defer srv.Close()
			defer feed.Close()

			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}
			conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), header)
			if tt.wantOK {
				require.NoError(t, err)
				conn.Close()
				return
			}
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		})
	}
}
