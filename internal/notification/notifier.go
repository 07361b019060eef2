// Package notification delivers operator alerts (webhook, Telegram, log).
package notification

import (
	"context"
	"errors"
	"log/slog"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert is one operator notification. Title is the subject line and
// Message the body; the remaining fields locate the failure and are empty
// for process-wide alerts.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`

	Series  string `json:"series,omitempty"` // model.SeriesKey, "1h:BTC/USDT"
	Kind    string `json:"kind,omitempty"`   // error kind: fetch, store, compute, unknown
	TraceID string `json:"trace_id,omitempty"`
}

// attrs returns the non-empty context fields as slog key/value pairs.
func (a Alert) attrs() []any {
	var out []any
	for _, kv := range [][2]string{{"series", a.Series}, {"kind", a.Kind}, {"trace_id", a.TraceID}} {
		if kv[1] != "" {
			out = append(out, kv[0], kv[1])
		}
	}
	return out
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier is a simple notifier that logs alerts (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	args := append([]any{"level", alert.Level, "title", alert.Title, "message", alert.Message}, alert.attrs()...)
	slog.Warn("alert", args...)
	return nil
}

// Multi sends every alert to all backends and joins their errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
