// Package telegram delivers household notifications to a Telegram chat.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"family-ops/internal/config"
	"family-ops/internal/metrics"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sink receives notification text.
type Sink interface {
	Notify(ctx context.Context, message string) error
}

// Sender is the part of tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier posts messages to one chat.
type Notifier struct {
	api    Sender
	chatID int64
	logger *slog.Logger
}

// NewNotifier connects to the Bot API with token.
func NewNotifier(token string, chatID int64, logger *slog.Logger) (*Notifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("telegram.authorized", "account", api.Self.UserName)
	return NewNotifierWithAPI(api, chatID, logger), nil
}

// NewNotifierWithAPI creates a Notifier over an existing API client.
func NewNotifierWithAPI(api Sender, chatID int64, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{api: api, chatID: chatID, logger: logger}
}

// Notify sends message as plain text.
func (n *Notifier) Notify(ctx context.Context, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := n.api.Send(tgbotapi.NewMessage(n.chatID, message)); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

// SendReport sends a Markdown usage report.
func (n *Notifier) SendReport(ctx context.Context, usage []metrics.DailyUsage, health metrics.SysHealth) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(n.chatID, FormatUsageReport(usage, health))
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram report: %w", err)
	}
	return nil
}

// LogNotifier writes notifications to the log.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, message string) error {
	n.logger.Info("notify", "message", message)
	return nil
}

// NewFromConfig returns a Telegram notifier when a bot token is configured
// and a LogNotifier otherwise, or when the bot cannot be reached.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) Sink {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TelegramBotToken == "" {
		return NewLogNotifier(logger)
	}
	n, err := NewNotifier(cfg.TelegramBotToken, cfg.TelegramChatID, logger)
	if err != nil {
		logger.Warn("telegram.unavailable", "err", err)
		return NewLogNotifier(logger)
	}
	return n
}

// FormatUsageReport renders daily generation usage and process health.
func FormatUsageReport(usage []metrics.DailyUsage, health metrics.SysHealth) string {
	var sb strings.Builder
	sb.WriteString("📊 *Usage & Health Report*\n\n")

	sb.WriteString("🗓 *Recent Generation Activity*\n")
	if len(usage) == 0 {
		sb.WriteString("_No data yet_\n")
	}
	for _, d := range usage {
		fmt.Fprintf(&sb, "• *%s*: %d tokens (%d runs", d.Date, d.TotalPrompt+d.TotalCompletion, d.TotalExecution)
		if d.TotalFallback > 0 {
			fmt.Fprintf(&sb, ", %d fallback", d.TotalFallback)
		}
		sb.WriteString(")\n")
	}

	sb.WriteString("\n🧠 *System Health*\n")
	fmt.Fprintf(&sb, "• RAM: %dMB (Alloc) / %dMB (Sys)\n", health.AllocMB, health.SysMB)
	fmt.Fprintf(&sb, "• Goroutines: %d\n", health.Goroutines)
	fmt.Fprintf(&sb, "• Disk Data: %s\n", health.DataDiskSize)
	return sb.String()
}
