package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todobus/todobus/internal/config"
	"github.com/todobus/todobus/internal/config/channel"
	"github.com/todobus/todobus/internal/schema"
)

type recordingNotifier struct {
	name string
	err  error

	mu    sync.Mutex
	items []schema.Item
}

func (r *recordingNotifier) Name() string { return r.name }

func (r *recordingNotifier) Notify(_ context.Context, item schema.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, item)
	return r.err
}

func TestManager_FansOutAndJoinsErrors(t *testing.T) {
	ok := &recordingNotifier{name: "ok"}
	bad := &recordingNotifier{name: "bad", err: errors.New("offline")}
	m := NewManager(bad, ok)

	item := schema.Item{ID: 1, Content: "buy milk"}
	err := m.Notify(context.Background(), item)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: offline")
	assert.Equal(t, []schema.Item{item}, ok.items, "a failing notifier must not stop the others")
	assert.Equal(t, []string{"bad", "ok"}, m.Enabled())
}

func TestManager_FromConfigDisabled(t *testing.T) {
	cfg := config.DefaultConfig()
	m, err := FromConfig(&cfg.Notify)
	require.NoError(t, err)
	assert.Empty(t, m.Enabled())
	assert.NoError(t, m.Notify(context.Background(), schema.Item{ID: 1}))
}

func TestManager_FromConfigBadChatID(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Notify.Telegram.Enabled = true
	cfg.Notify.Telegram.ChatID = "not-a-number"
	_, err := FromConfig(&cfg.Notify)
	assert.Error(t, err)
}

func TestSlack_PostsWebhook(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSlack(&channel.SlackConfig{Enabled: true, WebhookURL: srv.URL, Channel: "#todos", Username: "todobus"})
	require.NoError(t, s.Notify(context.Background(), schema.Item{ID: 2, Content: "call mom"}))

	assert.Equal(t, "New todo #2: call mom", got["text"])
	assert.Equal(t, "#todos", got["channel"])
	assert.Equal(t, "todobus", got["username"])
}

func TestSlack_ReportsHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no_service", http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewSlack(&channel.SlackConfig{WebhookURL: srv.URL})
	assert.Error(t, s.Notify(context.Background(), schema.Item{ID: 1, Content: "x"}))
}

// fakeBotAPI answers getMe and sendMessage like the Telegram Bot API.
func fakeBotAPI(t *testing.T, token string, sent chan<- map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/bot" + token + "/getMe":
			io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"todobus","username":"todobus_bot"}}`)
		case "/bot" + token + "/sendMessage":
			require.NoError(t, r.ParseForm())
			sent <- map[string]string{"chat_id": r.FormValue("chat_id"), "text": r.FormValue("text")}
			io.WriteString(w, `{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"},"text":"ok"}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"ok":false,"error_code":404,"description":"Not Found"}`)
		}
	}))
}

func TestTelegram_SendsMessage(t *testing.T) {
	sent := make(chan map[string]string, 1)
	srv := fakeBotAPI(t, "123:abc", sent)
	defer srv.Close()

	tg, err := NewTelegram(&channel.TelegramConfig{
		Enabled:     true,
		Token:       "123:abc",
		ChatID:      " 42 ",
		APIEndpoint: srv.URL + "/bot%s/%s",
	})
	require.NoError(t, err)
	require.NoError(t, tg.Notify(context.Background(), schema.Item{ID: 1, Content: "buy milk"}))

	msg := <-sent
	assert.Equal(t, "42", msg["chat_id"])
	assert.Equal(t, "New todo #1: buy milk", msg["text"])
}

func TestTelegram_AuthFailure(t *testing.T) {
	srv := fakeBotAPI(t, "right", make(chan map[string]string, 1))
	defer srv.Close()

	tg, err := NewTelegram(&channel.TelegramConfig{Token: "wrong", ChatID: "1", APIEndpoint: srv.URL + "/bot%s/%s"})
	require.NoError(t, err)
	err = tg.Notify(context.Background(), schema.Item{ID: 1})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "telegram auth"))
}
