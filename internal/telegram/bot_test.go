package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"family-ops/internal/metrics"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatUsageReport(t *testing.T) {
	usage := []metrics.DailyUsage{
		{Date: "2024-06-04", TotalPrompt: 900, TotalCompletion: 100, TotalExecution: 3, TotalFallback: 1},
		{Date: "2024-06-03", TotalPrompt: 400, TotalCompletion: 50, TotalExecution: 1},
	}
	health := metrics.SysHealth{AllocMB: 12, SysMB: 30, Goroutines: 9, DataDiskSize: "1.5 MB"}

	out := FormatUsageReport(usage, health)

	assert.True(t, strings.HasPrefix(out, "📊 *Usage & Health Report*"))
	assert.Contains(t, out, "• *2024-06-04*: 1000 tokens (3 runs, 1 fallback)\n")
	assert.Contains(t, out, "• *2024-06-03*: 450 tokens (1 runs)\n")
	assert.Contains(t, out, "• RAM: 12MB (Alloc) / 30MB (Sys)")
	assert.Contains(t, out, "• Disk Data: 1.5 MB")

	assert.Contains(t, FormatUsageReport(nil, health), "_No data yet_")
}

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func TestNotifierSendsToChat(t *testing.T) {
	api := &fakeSender{}
	n := NewNotifierWithAPI(api, 42, nil)

	require.NoError(t, n.Notify(context.Background(), "Meal plan ready"))
	require.NoError(t, n.SendReport(context.Background(), nil, metrics.SysHealth{}))

	require.Len(t, api.sent, 2)
	assert.Equal(t, int64(42), api.sent[0].ChatID)
	assert.Equal(t, "Meal plan ready", api.sent[0].Text)
	assert.Empty(t, api.sent[0].ParseMode)
	assert.Equal(t, tgbotapi.ModeMarkdown, api.sent[1].ParseMode)
}

func TestNotifierErrors(t *testing.T) {
	n := NewNotifierWithAPI(&fakeSender{err: errors.New("chat not found")}, 42, nil)
	assert.ErrorContains(t, n.Notify(context.Background(), "hi"), "chat not found")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewNotifierWithAPI(&fakeSender{}, 42, nil).Notify(ctx, "hi"), context.Canceled)
}

func TestNotifierAgainstBotAPI(t *testing.T) {
	var mu sync.Mutex
	var texts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Family","username":"familyops_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			assert.NoError(t, r.ParseForm())
			mu.Lock()
			texts = append(texts, r.FormValue("text"))
			mu.Unlock()
			assert.Equal(t, "42", r.FormValue("chat_id"))
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	api, err := tgbotapi.NewBotAPIWithClient("token", srv.URL+"/bot%s/%s", srv.Client())
	require.NoError(t, err)
	assert.Equal(t, "familyops_bot", api.Self.UserName)

	n := NewNotifierWithAPI(api, 42, nil)
	require.NoError(t, n.Notify(context.Background(), "Packing list ready"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"Packing list ready"}, texts)
}

func TestLogNotifier(t *testing.T) {
	assert.NoError(t, NewLogNotifier(nil).Notify(context.Background(), "hello"))
}
