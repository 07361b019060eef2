package indengine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/saidmurad/cryptobot-sub000/internal/model"
)

const (
	defaultRowsLimit = 100
	maxRowsLimit     = 1000
)

// seriesCounter reports the persisted length of a series.
type seriesCounter interface {
	Count(ctx context.Context, inst model.Instrument, tf model.Timeframe) (int, error)
}

// latestSource serves the newest published row JSON, "" when none.
type latestSource interface {
	Latest(ctx context.Context, inst model.Instrument, tf model.Timeframe) (string, error)
}

// registerAPI mounts the read-only REST endpoints:
//
//	GET /api/rows?instrument=BTC/USDT&timeframe=1h&limit=100
//	GET /api/rows/latest?instrument=BTC/USDT&timeframe=1h
//	GET /api/invalid
func (svc *Service) registerAPI(mux *http.ServeMux) {
	var latest latestSource
	if svc.publisher != nil && svc.cfg.Redis.Publish {
		latest = svc.publisher
	}
	mux.HandleFunc("/api/rows", rowsHandler(svc.store, svc.sql))
	mux.HandleFunc("/api/rows/latest", latestHandler(svc.store, latest))
	mux.HandleFunc("/api/invalid", invalidHandler(svc.invalid))
}

// seriesParams reads instrument and timeframe. Instruments are matched
// upper-case, as configured.
func seriesParams(r *http.Request) (model.Instrument, model.Timeframe, error) {
	q := r.URL.Query()
	inst := model.Instrument(strings.ToUpper(strings.TrimSpace(q.Get("instrument"))))
	if inst == "" {
		return "", 0, errors.New("instrument is required")
	}
	tf, err := model.ParseTimeframe(q.Get("timeframe"))
	if err != nil {
		return "", 0, err
	}
	return inst, tf, nil
}

// rowsHandler serves the newest rows of a series, oldest first. When counter
// is set the full series length is returned in X-Total-Count.
func rowsHandler(store model.RowStore, counter seriesCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "GET only", http.StatusMethodNotAllowed)
			return
		}
		inst, tf, err := seriesParams(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		limit := defaultRowsLimit
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			limit = min(n, maxRowsLimit)
		}

		rows, err := store.RecentRows(r.Context(), inst, tf, limit)
		if err != nil {
			slog.Error("api: read rows failed", "instrument", inst, "timeframe", tf.String(), "error", err)
			http.Error(w, "store unavailable", http.StatusInternalServerError)
			return
		}
		if counter != nil {
			if n, err := counter.Count(r.Context(), inst, tf); err == nil {
				w.Header().Set("X-Total-Count", strconv.Itoa(n))
			}
		}

		out := make([]json.RawMessage, len(rows))
		for i, row := range rows {
			out[i] = row.JSON()
		}
		writeJSON(w, out)
	}
}

// latestHandler serves the newest row of a series from the publication
// cache when available, falling back to the store.
func latestHandler(store model.RowStore, cache latestSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inst, tf, err := seriesParams(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if cache != nil {
			s, err := cache.Latest(r.Context(), inst, tf)
			if err != nil {
				slog.Warn("api: latest cache read failed", "instrument", inst, "timeframe", tf.String(), "error", err)
			} else if s != "" {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(s))
				return
			}
		}

		rows, err := store.RecentRows(r.Context(), inst, tf, 1)
		if err != nil {
			slog.Error("api: read latest row failed", "instrument", inst, "timeframe", tf.String(), "error", err)
			http.Error(w, "store unavailable", http.StatusInternalServerError)
			return
		}
		if len(rows) == 0 {
			http.Error(w, "no rows for series", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(rows[0].JSON())
	}
}

func invalidHandler(set *InvalidSet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"count":       set.Len(),
			"instruments": set.List(),
		})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("api: encode response failed", "error", err)
	}
}
