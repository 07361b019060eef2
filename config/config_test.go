package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saidmurad/cryptobot-sub000/internal/model"
)

func TestLoad_DefaultsAndEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("INSTRUMENTS", "btc/usdt, ETH/USDT ,")
	t.Setenv("SHARDS", "2")
	t.Setenv("POLL_INTERVAL", "5s")
	t.Setenv("RUN_ONCE", "true")

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []model.Instrument{"BTC/USDT", "ETH/USDT"}, c.InstrumentList())
	assert.Equal(t, model.AllTimeframes(), c.TimeframeList())
	assert.Equal(t, 2, c.Shards)
	assert.Equal(t, 5*time.Second, c.PollInterval)
	assert.True(t, c.RunOnce)
	assert.Equal(t, 1000, c.RequestCap)
	assert.Equal(t, 50, c.MaxWindowsPerPass)
	assert.Equal(t, "sqlite3", c.Store.Driver)
	assert.Equal(t, "https://api.binance.com", c.Exchange.BaseURL)
	assert.False(t, c.Redis.Enabled())
	assert.Equal(t, time.Date(2017, 8, 17, 0, 0, 0, 0, time.UTC), c.Epoch(model.TF1h))
}

func TestLoad_YAMLWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
instruments: [SOL/USDT, ADA/USDT, XRP/USDT]
timeframes: [1h, 1d]
shards: 3
epoch_origin: "2020-01-01T00:00:00Z"
epoch_origins:
  1d: "2019-06-01T00:00:00Z"
store:
  driver: postgres
  dsn: postgres://engine@localhost/ind?sslmode=disable
redis:
  publish: true
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("SHARDS", "1")

	c, err := Load()
	require.NoError(t, err)

	assert.Len(t, c.Instruments, 3)
	assert.Equal(t, []model.Timeframe{model.TF1h, model.TF1d}, c.TimeframeList())
	assert.Equal(t, 1, c.Shards)
	assert.Equal(t, "postgres", c.Store.Driver)
	assert.True(t, c.Redis.Enabled())
	assert.Equal(t, time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC), c.Epoch(model.TF1d))
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), c.Epoch(model.TF1h))
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("CONFIG_FILE", "")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("INSTRUMENTS=BNB/USDT\nTIMEFRAMES=4h\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("INSTRUMENTS")
		os.Unsetenv("TIMEFRAMES")
	})

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []model.Instrument{"BNB/USDT"}, c.InstrumentList())
	assert.Equal(t, []model.Timeframe{model.TF4h}, c.TimeframeList())
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"no instruments":    {"INSTRUMENTS": ""},
		"bad instrument":    {"INSTRUMENTS": "BTCUSDT"},
		"illegal symbol":    {"INSTRUMENTS": "BTC/USDT,ETH$/USDT"},
		"bad timeframe":     {"INSTRUMENTS": "BTC/USDT", "TIMEFRAMES": "5m"},
		"zero shards":       {"INSTRUMENTS": "BTC/USDT", "SHARDS": "0"},
		"cap too large":     {"INSTRUMENTS": "BTC/USDT", "REQUEST_CAP": "5000"},
		"bad driver":        {"INSTRUMENTS": "BTC/USDT", "STORE_DRIVER": "mysql"},
		"bad epoch":         {"INSTRUMENTS": "BTC/USDT", "EPOCH_ORIGIN": "yesterday"},
		"telegram half set": {"INSTRUMENTS": "BTC/USDT", "TELEGRAM_BOT_TOKEN": "x"},
		"unparsable int":    {"INSTRUMENTS": "BTC/USDT", "SHARDS": "two"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			chdir(t, t.TempDir())
			t.Setenv("CONFIG_FILE", "")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
