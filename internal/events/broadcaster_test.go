package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hostyard/hostyard/internal/config"
	"github.com/hostyard/hostyard/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func broadcasterConfig(endpoint string, enabled bool) *config.Config {
	return &config.Config{
		Events: config.EventsConfig{
			Enabled:    enabled,
			Endpoint:   endpoint,
			BufferSize: 4,
			MaxRetries: 2,
			RetryDelay: 10 * time.Millisecond,
		},
	}
}

func TestBroadcaster_DeliversEvents(t *testing.T) {
	var mu sync.Mutex
	var received []Event

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev Event
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ev))
		mu.Lock()
		received = append(received, ev)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	b := NewBroadcaster(broadcasterConfig(srv.URL, true), zaptest.NewLogger(t))
	defer b.Close()

	err := b.BroadcastEvent(context.Background(), Event{Type: HostCreated, HostID: "h1"})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, HostCreated, received[0].Type)
	assert.Equal(t, types.HostID("h1"), received[0].HostID)
	assert.NotZero(t, received[0].Timestamp)
}

func TestBroadcaster_RetriesOnFailure(t *testing.T) {
	var attempts atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Fail the first attempt, succeed afterwards
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b := NewBroadcaster(broadcasterConfig(srv.URL, true), zaptest.NewLogger(t))
	defer b.Close()

	require.NoError(t, b.BroadcastEvent(context.Background(), Event{Type: HostDeleted, HostID: "h1"}))

	assert.Eventually(t, func() bool {
		return attempts.Load() >= 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBroadcaster_DisabledIgnoresEvents(t *testing.T) {
	var delivered atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		delivered.Add(1)
	}))
	defer srv.Close()

	b := NewBroadcaster(broadcasterConfig(srv.URL, false), zaptest.NewLogger(t))
	defer b.Close()

	require.NoError(t, b.BroadcastEvent(context.Background(), Event{Type: HostCreated, HostID: "h1"}))

	// Give a hypothetical delivery goroutine time to misbehave
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, delivered.Load())
}
