package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const telegramAPI = "https://api.telegram.org"

// TelegramNotifier sends alerts through the Telegram Bot API.
type TelegramNotifier struct {
	apiBase  string
	botToken string
	chatID   string
	client   *http.Client
}

// NewTelegramNotifier creates a notifier posting to chatID as the bot
// identified by botToken.
func NewTelegramNotifier(botToken, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		apiBase:  telegramAPI,
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramNotifier) Send(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(struct {
		ChatID    string `json:"chat_id"`
		Text      string `json:"text"`
		ParseMode string `json:"parse_mode"`
	}{t.chatID, telegramText(alert), "MarkdownV2"})
	if err != nil {
		return fmt.Errorf("telegram: marshal: %w", err)
	}

	endpoint := t.apiBase + "/bot" + t.botToken + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		// the URL carries the bot token; keep it out of logs
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("telegram: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram: unexpected status %d", resp.StatusCode)
	}
	slog.Debug("telegram alert sent", "title", alert.Title)
	return nil
}

// telegramText renders the alert as MarkdownV2: bold title, body, then the
// series, error kind and trace id as monospace lines.
func telegramText(a Alert) string {
	var b strings.Builder
	switch a.Level {
	case AlertCritical:
		b.WriteString("🚨 ")
	case AlertWarning:
		b.WriteString("⚠️ ")
	default:
		b.WriteString("ℹ️ ")
	}
	b.WriteString("*" + escapeMarkdown(a.Title) + "*\n\n")
	b.WriteString(escapeMarkdown(a.Message))

	for _, f := range [][2]string{{"series", a.Series}, {"kind", a.Kind}, {"trace", a.TraceID}} {
		if f[1] != "" {
			b.WriteString("\n" + f[0] + ": `" + escapeCode(f[1]) + "`")
		}
	}
	return b.String()
}

// escapeMarkdown escapes MarkdownV2 special characters in plain text.
func escapeMarkdown(s string) string {
	const specials = "_*[]()~`>#+-=|{}.!\\"
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(specials, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// escapeCode escapes text inside a MarkdownV2 code span.
func escapeCode(s string) string {
	return strings.NewReplacer("\\", "\\\\", "`", "\\`").Replace(s)
}
