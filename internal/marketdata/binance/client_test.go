package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saidmurad/cryptobot-sub000/internal/model"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func kline(open time.Time, close string) string {
	return fmt.Sprintf(`[%d,"1.0","2.0","0.5","%s","10.5",%d,"0",1,"0","0","0"]`,
		open.UnixMilli(), close, open.Add(time.Hour).UnixMilli()-1)
}

func TestFetchCandles_ParsesKlines(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, klinesPath, r.URL.Path)
		gotQuery = r.URL.RawQuery
		fmt.Fprintf(w, "[%s,%s]", kline(t0, "42000.10"), kline(t0.Add(time.Hour), "42100.25"))
	}))
	defer srv.Close()

	c := New(srv.URL)
	candles, err := c.FetchCandles(context.Background(), "BTC/USDT", model.TF1h, t0, t0.Add(5*time.Hour))
	require.NoError(t, err)
	require.Len(t, candles, 2)

	assert.Equal(t, t0, candles[0].OpenTime)
	assert.InDelta(t, 42000.10, candles[0].Close, 1e-9)
	assert.InDelta(t, 42100.25, candles[1].Close, 1e-9)
	assert.InDelta(t, 10.5, candles[1].Volume, 1e-9)

	assert.Contains(t, gotQuery, "symbol=BTCUSDT")
	assert.Contains(t, gotQuery, "interval=1h")
	assert.Contains(t, gotQuery, fmt.Sprintf("startTime=%d", t0.UnixMilli()))
}

func TestFetchCandles_InvalidSymbol(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"code":-1121,"msg":"Invalid symbol."}`)
	}))
	defer srv.Close()

	_, err := New(srv.URL).FetchCandles(context.Background(), "NOPE/USDT", model.TF1d, t0, t0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidInstrument))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, -1121, apiErr.Code)
}

func TestAPIError_IllegalSymbolIsPermanent(t *testing.T) {
	tests := []struct {
		err     APIError
		invalid bool
	}{
		{APIError{Status: 400, Code: -1121, Msg: "Invalid symbol."}, true},
		{APIError{Status: 400, Code: -1100, Msg: "Illegal characters found in parameter 'symbol'; legal range is '^[A-Z0-9-_.]{1,20}$'."}, true},
		{APIError{Status: 400, Code: -1100, Msg: "Illegal characters found in parameter 'interval'."}, false},
		{APIError{Status: 429, Code: -1003, Msg: "Too many requests."}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.invalid, errors.Is(&tt.err, model.ErrInvalidInstrument), tt.err.Msg)
	}
}

func TestFetchCandles_IllegalSymbol(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"code":-1100,"msg":"Illegal characters found in parameter 'symbol'; legal range is '^[A-Z0-9-_.]{1,20}$'."}`)
	}))
	defer srv.Close()

	_, err := New(srv.URL).FetchCandles(context.Background(), "BTC$/USDT", model.TF1h, t0, t0)
	assert.ErrorIs(t, err, model.ErrInvalidInstrument)
}

func TestFetchCandles_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL).FetchCandles(context.Background(), "BTC/USDT", model.TF1d, t0, t0)
	require.Error(t, err)
	assert.False(t, errors.Is(err, model.ErrInvalidInstrument))
	assert.Contains(t, err.Error(), "502")
}

func TestFetchCandles_Pages(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var start int64
		fmt.Sscan(r.URL.Query().Get("startTime"), &start)
		from := time.UnixMilli(start).UTC()

		n := MaxLimit
		if calls > 1 {
			n = 3
		}
		parts := make([]string, n)
		for i := range parts {
			parts[i] = kline(from.Add(time.Duration(i)*15*time.Minute), "1")
		}
		fmt.Fprintf(w, "[%s]", strings.Join(parts, ","))
	}))
	defer srv.Close()

	end := t0.Add(time.Duration(MaxLimit+2) * 15 * time.Minute)
	candles, err := New(srv.URL).FetchCandles(context.Background(), "ETH/USDT", model.TF15m, t0, end)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Len(t, candles, MaxLimit+3)
	assert.Equal(t, end, candles[len(candles)-1].OpenTime)
}

func TestFetchCandles_EmptyWindow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "[]")
	}))
	defer srv.Close()

	candles, err := New(srv.URL).FetchCandles(context.Background(), "BTC/USDT", model.TF4h, t0, t0.Add(8*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, candles)
}
