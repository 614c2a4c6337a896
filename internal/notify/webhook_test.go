package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRouteCompletedPostsEvent(t *testing.T) {
	var received RouteCompletedEvent
	var header http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	wh := NewWebhook(discardLogger(), server.URL)
	event := RouteCompletedEvent{
		EventID:       "4fe8a0a5-5f6d-4e37-9f6a-0b6f2f9e41ce",
		RuteroID:      12,
		RouteName:     "Ruta Centro",
		ResolvedCount: 4,
		TotalCount:    4,
		CompletedAt:   time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC),
	}
	require.NoError(t, wh.RouteCompleted(context.Background(), event))

	assert.Equal(t, event, received)
	assert.Equal(t, "application/json", header.Get("Content-Type"))
	assert.Equal(t, "route.completed", header.Get("X-Distriflow-Event"))
}

func TestRouteCompletedReportsEndpointFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 4xx is not retried; the call fails fast.
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	wh := NewWebhook(discardLogger(), server.URL)
	err := wh.RouteCompleted(context.Background(), RouteCompletedEvent{RuteroID: 1})
	assert.Error(t, err)
}

func TestRouteCompletedDisabledWithoutURL(t *testing.T) {
	wh := NewWebhook(discardLogger(), "")
	assert.NoError(t, wh.RouteCompleted(context.Background(), RouteCompletedEvent{RuteroID: 1}))
}
