package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// Pinger is satisfied by *sql.DB and *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthStatus tracks the health of the engine's dependencies and shards.
type HealthStatus struct {
	mu sync.RWMutex

	RedisEnabled   bool
	RedisConnected bool
	StoreOK        bool
	RedisLatencyMs float64
	StoreLatencyMs float64
	LastCheckAt    time.Time
	StartedAt      time.Time
	PassStaleAfter time.Duration

	lastPass map[string]time.Time // key: "tf/shard"
	lastBeat map[string]time.Time
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
		lastPass:  make(map[string]time.Time),
		lastBeat:  make(map[string]time.Time),
	}
}

// RecordPass marks a completed shard pass.
func (h *HealthStatus) RecordPass(shard string, at time.Time) {
	h.mu.Lock()
	h.lastPass[shard] = at
	h.lastBeat[shard] = at
	h.mu.Unlock()
}

// Heartbeat marks progress inside a pass. A long catch-up pass keeps its
// shard fresh as long as windows keep completing.
func (h *HealthStatus) Heartbeat(shard string, at time.Time) {
	h.mu.Lock()
	h.lastBeat[shard] = at
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisEnabled = true
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckStore pings the row store and records latency + health.
func (h *HealthStatus) CheckStore(ctx context.Context, db Pinger) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.StoreOK = err == nil
	h.StoreLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks. rdb may be nil.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, db Pinger, interval time.Duration) {
	check := func() {
		probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if rdb != nil {
			h.CheckRedis(probeCtx, rdb)
		}
		if db != nil {
			h.CheckStore(probeCtx, db)
		}
	}
	check()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				check()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK

	var stale []string
	if h.PassStaleAfter > 0 {
		for shard, at := range h.lastBeat {
			if time.Since(at) > h.PassStaleAfter {
				stale = append(stale, shard)
			}
		}
	}
	if (h.RedisEnabled && !h.RedisConnected) || len(stale) > 0 {
		overallStatus = "degraded"
	}
	if !h.StoreOK {
		overallStatus = "unhealthy"
		httpCode = http.StatusServiceUnavailable
	}

	passes := make(map[string]string, len(h.lastPass))
	for shard, at := range h.lastPass {
		passes[shard] = at.UTC().Format(time.RFC3339)
	}
	beats := make(map[string]string, len(h.lastBeat))
	for shard, at := range h.lastBeat {
		beats[shard] = at.UTC().Format(time.RFC3339)
	}

	status := struct {
		Status         string            `json:"status"`
		Uptime         string            `json:"uptime"`
		RedisEnabled   bool              `json:"redis_enabled"`
		RedisConnected bool              `json:"redis_connected"`
		RedisLatencyMs float64           `json:"redis_latency_ms"`
		StoreOK        bool              `json:"store_ok"`
		StoreLatencyMs float64           `json:"store_latency_ms"`
		LastPass       map[string]string `json:"last_pass"`
		LastHeartbeat  map[string]string `json:"last_heartbeat"`
		StaleShards    []string          `json:"stale_shards,omitempty"`
		LastCheckAt    string            `json:"last_check_at"`
	}{
		Status:         overallStatus,
		Uptime:         time.Since(h.StartedAt).Round(time.Second).String(),
		RedisEnabled:   h.RedisEnabled,
		RedisConnected: h.RedisConnected,
		RedisLatencyMs: h.RedisLatencyMs,
		StoreOK:        h.StoreOK,
		StoreLatencyMs: h.StoreLatencyMs,
		LastPass:       passes,
		LastHeartbeat:  beats,
		StaleShards:    stale,
		LastCheckAt:    h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}
