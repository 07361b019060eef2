// Package config loads the indicator engine configuration from struct
// defaults, an optional YAML file, an optional .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/saidmurad/cryptobot-sub000/internal/model"
)

// Config holds all application configuration.
type Config struct {
	Instruments []string          `yaml:"instruments" validate:"required,min=1,dive,required,contains=/"`
	Timeframes  []string          `yaml:"timeframes" default:"[\"15m\",\"1h\",\"4h\",\"1d\"]" validate:"required,min=1,dive,oneof=15m 1h 4h 1d"`
	Shards      int               `yaml:"shards" default:"1" validate:"min=1"`
	EpochOrigin string            `yaml:"epoch_origin" default:"2017-08-17T00:00:00Z" validate:"datetime=2006-01-02T15:04:05Z07:00"`
	Epochs      map[string]string `yaml:"epoch_origins" validate:"dive,keys,oneof=15m 1h 4h 1d,endkeys,datetime=2006-01-02T15:04:05Z07:00"`

	PollInterval      time.Duration `yaml:"poll_interval" default:"60s" validate:"min=1s"`
	RequestCap        int           `yaml:"request_cap" default:"1000" validate:"min=1,max=1000"`
	MaxWindowsPerPass int           `yaml:"max_windows_per_pass" default:"50" validate:"min=1"`
	RunOnce           bool          `yaml:"run_once"`

	Store    StoreConfig    `yaml:"store"`
	Redis    RedisConfig    `yaml:"redis"`
	Exchange ExchangeConfig `yaml:"exchange"`
	Notify   NotifyConfig   `yaml:"notify"`
	HTTPAddr string         `yaml:"http_addr" default:":9095"`
	LogLevel string         `yaml:"log_level" default:"info" validate:"oneof=debug info warn error"`
}

// StoreConfig selects the row store.
type StoreConfig struct {
	Driver string `yaml:"driver" default:"sqlite3" validate:"oneof=sqlite3 postgres"`
	DSN    string `yaml:"dsn" default:"data/indicators.db" validate:"required"`
}

// RedisConfig enables row publication and the shared rate limiter.
type RedisConfig struct {
	Addr            string `yaml:"addr" default:"localhost:6379"`
	Password        string `yaml:"password"`
	Publish         bool   `yaml:"publish"`
	SharedRateLimit bool   `yaml:"shared_rate_limit"`
}

// Enabled reports whether any feature needs a Redis connection.
func (r RedisConfig) Enabled() bool { return r.Publish || r.SharedRateLimit }

// ExchangeConfig configures the market-data client.
type ExchangeConfig struct {
	BaseURL            string        `yaml:"base_url" default:"https://api.binance.com" validate:"url"`
	RateLimitPerMinute int           `yaml:"rate_limit_per_minute" default:"600" validate:"min=0"`
	BreakerFailures    int           `yaml:"breaker_failures" default:"5" validate:"min=1"`
	BreakerReset       time.Duration `yaml:"breaker_reset" default:"30s"`
}

// NotifyConfig configures operator alerts. Empty values disable a backend.
type NotifyConfig struct {
	WebhookURL       string `yaml:"webhook_url" validate:"omitempty,url"`
	TelegramBotToken string `yaml:"telegram_bot_token" validate:"required_with=TelegramChatID"`
	TelegramChatID   string `yaml:"telegram_chat_id" validate:"required_with=TelegramBotToken"`
}

var validate = validator.New()

// Load builds the configuration. Precedence, lowest first: struct defaults,
// YAML file named by CONFIG_FILE, .env file, process environment.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	c := &Config{}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := defaults.Set(c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	for _, inst := range c.InstrumentList() {
		if !inst.Valid() {
			return fmt.Errorf("invalid config: instrument %q must be BASE/QUOTE with alphanumeric sides", inst)
		}
	}
	if c.Shards > len(c.Instruments) {
		slog.Warn("more shards than instruments, some shards will be empty",
			"shards", c.Shards, "instruments", len(c.Instruments))
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("INSTRUMENTS"); v != "" {
		c.Instruments = splitList(v)
	}
	if v := os.Getenv("TIMEFRAMES"); v != "" {
		c.Timeframes = splitList(v)
	}
	if v := os.Getenv("EPOCH_ORIGIN"); v != "" {
		c.EpochOrigin = v
	}
	if v := os.Getenv("STORE_DRIVER"); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv("STORE_DSN"); v != "" {
		c.Store.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("EXCHANGE_BASE_URL"); v != "" {
		c.Exchange.BaseURL = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		c.HTTPAddr = v
	}
	if v := os.Getenv("WEBHOOK_URL"); v != "" {
		c.Notify.WebhookURL = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Notify.TelegramBotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Notify.TelegramChatID = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = strings.ToLower(v)
	}

	var err error
	if c.Shards, err = envInt("SHARDS", c.Shards); err != nil {
		return err
	}
	if c.RequestCap, err = envInt("REQUEST_CAP", c.RequestCap); err != nil {
		return err
	}
	if c.MaxWindowsPerPass, err = envInt("MAX_WINDOWS_PER_PASS", c.MaxWindowsPerPass); err != nil {
		return err
	}
	if c.Exchange.RateLimitPerMinute, err = envInt("RATE_LIMIT_PER_MINUTE", c.Exchange.RateLimitPerMinute); err != nil {
		return err
	}
	if c.PollInterval, err = envDuration("POLL_INTERVAL", c.PollInterval); err != nil {
		return err
	}
	if c.RunOnce, err = envBool("RUN_ONCE", c.RunOnce); err != nil {
		return err
	}
	if c.Redis.Publish, err = envBool("REDIS_PUBLISH", c.Redis.Publish); err != nil {
		return err
	}
	if c.Redis.SharedRateLimit, err = envBool("RATE_LIMIT_SHARED", c.Redis.SharedRateLimit); err != nil {
		return err
	}
	return nil
}

// InstrumentList returns the configured instruments.
func (c *Config) InstrumentList() []model.Instrument {
	out := make([]model.Instrument, len(c.Instruments))
	for i, s := range c.Instruments {
		out[i] = model.Instrument(strings.ToUpper(strings.TrimSpace(s)))
	}
	return out
}

// TimeframeList returns the configured timeframes. Validate guarantees
// every entry parses.
func (c *Config) TimeframeList() []model.Timeframe {
	out := make([]model.Timeframe, 0, len(c.Timeframes))
	for _, s := range c.Timeframes {
		if tf, err := model.ParseTimeframe(s); err == nil {
			out = append(out, tf)
		}
	}
	return out
}

// Epoch returns the first candle time of an empty series on tf.
func (c *Config) Epoch(tf model.Timeframe) time.Time {
	if s, ok := c.Epochs[tf.String()]; ok {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.UTC()
		}
	}
	t, _ := time.Parse(time.RFC3339, c.EpochOrigin)
	return t.UTC()
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
