// Package binance fetches completed klines from the Binance spot REST API.
package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/saidmurad/cryptobot-sub000/internal/model"
)

const (
	DefaultBaseURL = "https://api.binance.com"
	klinesPath     = "/api/v3/klines"

	// MaxLimit is the largest page the klines endpoint serves.
	MaxLimit = 1000

	codeIllegalChars  = -1100
	codeInvalidSymbol = -1121
)

// APIError is the error body returned by the exchange.
type APIError struct {
	Status int    `json:"-"`
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance: status %d code %d: %s", e.Status, e.Code, e.Msg)
}

// Unwrap maps exchange codes onto engine error kinds. An unknown symbol and
// a symbol the exchange rejects as malformed are both permanent.
func (e *APIError) Unwrap() error {
	switch {
	case e.Code == codeInvalidSymbol:
		return model.ErrInvalidInstrument
	case e.Code == codeIllegalChars && strings.Contains(e.Msg, "'symbol'"):
		return model.ErrInvalidInstrument
	}
	return nil
}

// Client implements model.MarketData.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client. An empty baseURL selects DefaultBaseURL.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// FetchCandles returns the klines opening in [from, to], paging as needed.
func (c *Client) FetchCandles(ctx context.Context, inst model.Instrument, tf model.Timeframe, from, to time.Time) ([]model.Candle, error) {
	var out []model.Candle
	cursor := from.UTC()
	for !cursor.After(to) {
		page, err := c.klines(ctx, inst.Symbol(), tf.String(), cursor, to.UTC())
		if err != nil {
			return out, err
		}
		if len(page) == 0 {
			break
		}
		out = append(out, page...)
		if len(page) < MaxLimit {
			break
		}
		cursor = tf.Next(page[len(page)-1].OpenTime)
	}
	return out, nil
}

func (c *Client) klines(ctx context.Context, symbol, interval string, from, to time.Time) ([]model.Candle, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("startTime", strconv.FormatInt(from.UnixMilli(), 10))
	params.Set("endTime", strconv.FormatInt(to.UnixMilli(), 10))
	params.Set("limit", strconv.Itoa(MaxLimit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+klinesPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("binance: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("binance: klines %s %s: %w", symbol, interval, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("binance: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: resp.StatusCode}
		if jerr := json.Unmarshal(body, apiErr); jerr != nil || apiErr.Msg == "" {
			apiErr.Msg = string(body)
		}
		return nil, apiErr
	}

	var raw [][]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("binance: parse klines: %w", err)
	}

	candles := make([]model.Candle, 0, len(raw))
	for _, k := range raw {
		cdl, err := parseKline(k)
		if err != nil {
			return nil, fmt.Errorf("binance: %s %s: %w", symbol, interval, err)
		}
		candles = append(candles, cdl)
	}
	slog.Debug("klines fetched", "symbol", symbol, "interval", interval, "count", len(candles))
	return candles, nil
}

// parseKline decodes [openTime, open, high, low, close, volume, ...].
func parseKline(k []json.RawMessage) (model.Candle, error) {
	if len(k) < 6 {
		return model.Candle{}, errors.New("short kline")
	}
	var openMs int64
	if err := json.Unmarshal(k[0], &openMs); err != nil {
		return model.Candle{}, fmt.Errorf("open time: %w", err)
	}

	var vals [5]float64
	for i := range vals {
		var s string
		if err := json.Unmarshal(k[i+1], &s); err != nil {
			return model.Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return model.Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		vals[i] = d.InexactFloat64()
	}

	return model.Candle{
		OpenTime: time.UnixMilli(openMs).UTC(),
		Open:     vals[0],
		High:     vals[1],
		Low:      vals[2],
		Close:    vals[3],
		Volume:   vals[4],
	}, nil
}
