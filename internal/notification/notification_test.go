package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var alert = Alert{
	Level:   AlertWarning,
	Title:   "shard 1h/0",
	Message: "fetch BTC/USDT: timeout",
	Series:  "1h:BTC/USDT",
	Kind:    "fetch",
	TraceID: "1h-0-abc",
}

func TestWebhookNotifier_PostsJSON(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "1h-0-abc", r.Header.Get("X-Trace-Id"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, NewWebhookNotifier(srv.URL).Send(context.Background(), alert))
	assert.Equal(t, "WARNING", got["level"])
	assert.Equal(t, alert.Title, got["title"])
	assert.Equal(t, alert.Message, got["message"])
	assert.Equal(t, "indengine", got["source"])
	assert.Equal(t, "1h:BTC/USDT", got["series"])
	assert.Equal(t, "fetch", got["kind"])
	assert.Equal(t, "1h-0-abc", got["trace_id"])
	assert.NotEmpty(t, got["sent_at"])
}

func TestWebhookNotifier_OmitsEmptyContext(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("X-Trace-Id"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	plain := Alert{Level: AlertCritical, Title: "exchange circuit open", Message: "suspended"}
	require.NoError(t, NewWebhookNotifier(srv.URL).Send(context.Background(), plain))
	assert.NotContains(t, got, "series")
	assert.NotContains(t, got, "kind")
	assert.NotContains(t, got, "trace_id")
}

func TestWebhookNotifier_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL).Send(context.Background(), alert)
	assert.ErrorContains(t, err, "500")
}

func TestTelegramNotifier_EscapesMarkdown(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/botTOKEN/sendMessage"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	}))
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "42")
	n.apiBase = srv.URL
	require.NoError(t, n.Send(context.Background(), alert))

	assert.Equal(t, "42", body["chat_id"])
	assert.Equal(t, "MarkdownV2", body["parse_mode"])
	assert.Contains(t, body["text"], `BTC/USDT: timeout`)
	assert.Contains(t, body["text"], `shard 1h/0`)
	assert.Contains(t, body["text"], "series: `1h:BTC/USDT`")
	assert.Contains(t, body["text"], "kind: `fetch`")
	assert.Contains(t, body["text"], "trace: `1h-0-abc`")
}

func TestTelegramNotifier_TokenNotInError(t *testing.T) {
	n := NewTelegramNotifier("SECRET", "42")
	n.apiBase = "http://127.0.0.1:1"
	err := n.Send(context.Background(), alert)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRET")
}

func TestEscapeMarkdown(t *testing.T) {
	assert.Equal(t, `a\_b\.c\!`, escapeMarkdown("a_b.c!"))
	assert.Equal(t, "a\\`b", escapeCode("a`b"))
}

type fakeNotifier struct {
	sent []Alert
	err  error
}

func (f *fakeNotifier) Send(_ context.Context, a Alert) error {
	f.sent = append(f.sent, a)
	return f.err
}

func TestMulti_SendsToAllAndJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	a, b, c := &fakeNotifier{}, &fakeNotifier{err: boom}, &fakeNotifier{}

	err := Multi{a, b, c}.Send(context.Background(), alert)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, a.sent, 1)
	assert.Len(t, c.sent, 1)

	assert.NoError(t, Multi{a, NewLogNotifier()}.Send(context.Background(), alert))
}
