package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"farewatch/internal/config"
)

const telegramAPIBase = "https://api.telegram.org"

// Telegram delivers messages through the Telegram bot API.
type Telegram struct {
	logger  *slog.Logger
	client  *http.Client
	baseURL string
	token   string
	chatID  string
}

// NewTelegram creates a Telegram notifier.
func NewTelegram(logger *slog.Logger, cfg config.TelegramConfig) *Telegram {
	return &Telegram{
		logger:  logger,
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: telegramAPIBase,
		token:   cfg.Token,
		chatID:  cfg.ChatID,
	}
}

// Deliver sends one HTML-formatted message to the configured chat.
func (t *Telegram) Deliver(ctx context.Context, message string) error {
	if t.token == "" || t.chatID == "" {
		return fmt.Errorf("telegram token and chat_id must be configured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	form := url.Values{
		"chat_id":    {t.chatID},
		"text":       {message},
		"parse_mode": {"HTML"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram responded %d", resp.StatusCode)
	}
	return nil
}

// LogOnly writes messages to the log instead of a chat, used when Telegram
// credentials are absent.
type LogOnly struct {
	Logger *slog.Logger
}

// Deliver logs the message.
func (l LogOnly) Deliver(_ context.Context, message string) error {
	l.Logger.Info("deal notification", "message", message)
	return nil
}

var (
	_ Notifier = (*Telegram)(nil)
	_ Notifier = LogOnly{}
)
