// Package store composes the primary row store with best-effort publication.
package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/saidmurad/cryptobot-sub000/internal/model"
)

// NamedSink is a RowSink with a label used in logs and metrics.
type NamedSink struct {
	Name string
	Sink model.RowSink
}

// Fanout appends to the primary store and, once the row is committed,
// publishes it to every sink. Sink failures never fail the append.
type Fanout struct {
	model.RowStore

	mu    sync.RWMutex
	sinks []NamedSink

	// OnSinkError is called when a sink rejects a row (for metrics).
	OnSinkError func(sink string)
}

// NewFanout wraps primary.
func NewFanout(primary model.RowStore, sinks ...NamedSink) *Fanout {
	return &Fanout{RowStore: primary, sinks: sinks}
}

// AddSink registers another sink.
func (f *Fanout) AddSink(name string, s model.RowSink) {
	f.mu.Lock()
	f.sinks = append(f.sinks, NamedSink{Name: name, Sink: s})
	f.mu.Unlock()
}

// Append commits row to the primary store, then publishes it.
func (f *Fanout) Append(ctx context.Context, row model.IndicatorRow) error {
	if err := f.RowStore.Append(ctx, row); err != nil {
		return err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, s := range f.sinks {
		if err := s.Sink.PublishRow(ctx, row); err != nil {
			if f.OnSinkError != nil {
				f.OnSinkError(s.Name)
			}
			slog.Warn("row publish failed", "sink", s.Name, "row", row.Key(), "error", err)
		}
	}
	return nil
}
