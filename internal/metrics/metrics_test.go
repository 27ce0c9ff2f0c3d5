package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PixPMusic/gopher-learn/internal/engine"
	"github.com/PixPMusic/gopher-learn/internal/event"
	"github.com/PixPMusic/gopher-learn/internal/mapping"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestRegistryExportsEngineCounters(t *testing.T) {
	e := engine.New(engine.Options{EventQueue: 1})
	r := NewRegistry(e)

	e.Load(&mapping.Plan{})
	assert.True(t, e.Submit(event.MidiEvent(event.StatusControlChange, 0, 1, 64)))
	assert.False(t, e.Submit(event.MidiEvent(event.StatusControlChange, 0, 1, 65)))
	e.ProcessBlock(time.Millisecond)

	body := scrape(t, r.Handler())
	assert.Contains(t, body, "gopher_learn_engine_events_total 1")
	assert.Contains(t, body, `gopher_learn_engine_dropped_total{queue="events"} 1`)
	assert.Contains(t, body, `gopher_learn_engine_dropped_total{queue="feedback"} 0`)
	assert.Contains(t, body, "gopher_learn_engine_plans_applied_total 1")
	assert.Contains(t, body, "gopher_learn_engine_generation 1")
	assert.Contains(t, body, "go_goroutines")
}

func TestServe(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	r := NewRegistry(engine.New(engine.Options{}))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Serve(ctx, addr, nil) }()

	var body []byte
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, err = io.ReadAll(resp.Body)
		return err == nil && resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, string(body), "gopher_learn_engine_events_total 0")

	cancel()
	require.NoError(t, <-done)
}
