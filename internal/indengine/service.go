package indengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/saidmurad/cryptobot-sub000/config"
	"github.com/saidmurad/cryptobot-sub000/internal/gateway"
	"github.com/saidmurad/cryptobot-sub000/internal/marketdata"
	"github.com/saidmurad/cryptobot-sub000/internal/marketdata/binance"
	"github.com/saidmurad/cryptobot-sub000/internal/metrics"
	"github.com/saidmurad/cryptobot-sub000/internal/model"
	"github.com/saidmurad/cryptobot-sub000/internal/notification"
	"github.com/saidmurad/cryptobot-sub000/internal/ratelimit"
	"github.com/saidmurad/cryptobot-sub000/internal/store"
	redisstore "github.com/saidmurad/cryptobot-sub000/internal/store/redis"
	"github.com/saidmurad/cryptobot-sub000/internal/store/sqlstore"
)

const (
	rateLimitKey     = "ratelimit:exchange"
	livenessInterval = 15 * time.Second
	shutdownTimeout  = 5 * time.Second
)

// Service wires the indicator engine: store, exchange client, publication,
// metrics and the shard orchestrator.
type Service struct {
	cfg *config.Config

	sql       *sqlstore.Store
	store     *store.Fanout
	rdb       *goredis.Client
	publisher *redisstore.Publisher
	hub       *gateway.Hub
	breaker   *marketdata.CircuitBreaker
	notifier  notification.Notifier
	invalid   *InvalidSet

	registry *prometheus.Registry
	prom     *metrics.Metrics
	health   *metrics.HealthStatus
	server   *metrics.Server

	orch *Orchestrator
}

// New connects to the store (and Redis when enabled) and builds every
// runner. Nothing is started until Run.
func New(cfg *config.Config) (*Service, error) {
	svc := &Service{
		cfg:      cfg,
		invalid:  NewInvalidSet(),
		registry: prometheus.NewRegistry(),
		health:   metrics.NewHealthStatus(),
		hub:      gateway.NewHub(),
	}
	svc.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	svc.prom = metrics.NewMetrics(svc.registry)
	// runners heartbeat per fetched window, so long catch-up passes stay fresh
	svc.health.PassStaleAfter = 3*cfg.PollInterval + time.Minute

	// ---- Row store ----
	if cfg.Store.Driver == "sqlite3" && !strings.HasPrefix(cfg.Store.DSN, ":memory:") {
		if dir := filepath.Dir(cfg.Store.DSN); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create store dir: %w", err)
			}
		}
	}
	var err error
	svc.sql, err = sqlstore.Open(cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, err
	}
	svc.store = store.NewFanout(svc.sql)
	svc.store.OnSinkError = func(sink string) {
		svc.prom.SinkErrors.WithLabelValues(sink).Inc()
	}

	// ---- Redis (optional) ----
	if cfg.Redis.Enabled() {
		svc.publisher, err = redisstore.New(redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
		})
		if err != nil {
			svc.sql.Close()
			return nil, err
		}
		svc.rdb = svc.publisher.Client()
		if cfg.Redis.Publish {
			svc.store.AddSink("redis", svc.publisher)
		}
	}

	svc.hub.OnDrop = svc.prom.WSDrops.Inc
	svc.store.AddSink("websocket", svc.hub)

	// ---- Notifications ----
	notifiers := notification.Multi{notification.NewLogNotifier()}
	if cfg.Notify.WebhookURL != "" {
		notifiers = append(notifiers, notification.NewWebhookNotifier(cfg.Notify.WebhookURL))
	}
	if cfg.Notify.TelegramBotToken != "" {
		notifiers = append(notifiers, notification.NewTelegramNotifier(cfg.Notify.TelegramBotToken, cfg.Notify.TelegramChatID))
	}
	svc.notifier = notifiers

	// ---- Exchange client ----
	var limiter model.RateLimiter
	switch {
	case cfg.Exchange.RateLimitPerMinute <= 0:
	case cfg.Redis.SharedRateLimit:
		limiter = ratelimit.NewRedis(svc.rdb, rateLimitKey, cfg.Exchange.RateLimitPerMinute, time.Minute)
	default:
		limiter = ratelimit.NewLocal(cfg.Exchange.RateLimitPerMinute, 0)
	}
	svc.breaker = marketdata.NewCircuitBreaker(cfg.Exchange.BreakerFailures, cfg.Exchange.BreakerReset)
	svc.breaker.OnStateChange = svc.onBreakerChange
	market := marketdata.NewGuarded(binance.New(cfg.Exchange.BaseURL), limiter, svc.breaker)

	// ---- Orchestrator ----
	svc.orch, err = NewOrchestrator(Plan{
		Instruments: cfg.InstrumentList(),
		Timeframes:  cfg.TimeframeList(),
		Shards:      cfg.Shards,
		Epoch:       cfg.Epoch,
		RequestCap:  cfg.RequestCap,
		Options: Options{
			PollInterval:      cfg.PollInterval,
			MaxWindowsPerPass: cfg.MaxWindowsPerPass,
			Once:              cfg.RunOnce,
		},
	}, Deps{
		Store:    svc.store,
		Market:   market,
		Invalid:  svc.invalid,
		Notifier: svc.notifier,
		Metrics:  svc.prom,
		Health:   svc.health,
	})
	if err != nil {
		svc.close()
		return nil, err
	}

	// ---- HTTP ----
	svc.server = metrics.NewServer(cfg.HTTPAddr, svc.health, svc.registry)
	svc.hub.Register(svc.server.Mux)
	svc.registerAPI(svc.server.Mux)

	return svc, nil
}

// Run starts the HTTP server and every shard runner, then blocks until ctx
// is cancelled or, in bounded-run mode, until every runner finished its pass.
func (svc *Service) Run(ctx context.Context) error {
	cfg := svc.cfg
	slog.Info("starting indicator engine",
		"instruments", len(cfg.Instruments),
		"timeframes", cfg.Timeframes,
		"shards", cfg.Shards,
		"store", cfg.Store.Driver,
		"redis_publish", cfg.Redis.Publish,
		"run_once", cfg.RunOnce)

	svc.health.StartLivenessChecker(ctx, svc.rdb, svc.sql.DB(), livenessInterval)
	svc.server.Start()

	if err := svc.orch.Start(ctx); err != nil {
		svc.shutdown()
		return err
	}
	err := svc.orch.Wait()

	svc.shutdown()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (svc *Service) onBreakerChange(from, to marketdata.State) {
	svc.prom.BreakerState.Set(float64(to))
	slog.Warn("exchange circuit breaker state change", "from", from.String(), "to", to.String())
	if to != marketdata.StateOpen {
		return
	}
	svc.prom.BreakerTrips.Inc()

	// called with the breaker locked; deliver asynchronously
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		err := svc.notifier.Send(ctx, notification.Alert{
			Level:   notification.AlertCritical,
			Title:   "indicator engine: exchange circuit open",
			Message: fmt.Sprintf("exchange requests suspended for %s after repeated failures", svc.cfg.Exchange.BreakerReset),
		})
		if err != nil {
			slog.Warn("notification failed", "error", err)
		}
	}()
}

func (svc *Service) shutdown() {
	slog.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := svc.server.Stop(ctx); err != nil {
		slog.Warn("http server shutdown", "error", err)
	}
	svc.close()
	slog.Info("shutdown complete")
}

func (svc *Service) close() {
	if svc.publisher != nil {
		svc.publisher.Close()
	}
	if svc.sql != nil {
		svc.sql.Close()
	}
}
