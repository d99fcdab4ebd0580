package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirewire/resumeq/internal/core"
	"github.com/hirewire/resumeq/internal/notify"
)

func TestEventsHandlerRelaysHubEvents(t *testing.T) {
	hub := notify.NewHub()
	h := NewEventsHandler(hub, testLogger())

	srv := httptest.NewServer(http.HandlerFunc(h.Handle))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	defer func() { _ = conn.Close() }()

	// The subscription is registered during the upgrade handshake, but give
	// the handler goroutine a moment to reach it.
	require.Eventually(t, func() bool {
		return hub.SubscriberCount() == 1
	}, time.Second, 10*time.Millisecond)

	jobID := uuid.New()
	hub.Broadcast(core.QueueEvent{Event: "queue.updated", JobID: &jobID})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	var event core.QueueEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "queue.updated", event.Event)
	require.NotNil(t, event.JobID)
	assert.Equal(t, jobID, *event.JobID)
}

func TestEventsHandlerUnsubscribesOnClose(t *testing.T) {
	hub := notify.NewHub()
	h := NewEventsHandler(hub, testLogger())

	srv := httptest.NewServer(http.HandlerFunc(h.Handle))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Eventually(t, func() bool {
		return hub.SubscriberCount() == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return hub.SubscriberCount() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestEventsHandlerRejectsPlainRequest(t *testing.T) {
	h := NewEventsHandler(notify.NewHub(), testLogger())

	rec := httptest.NewRecorder()
	h.Handle(rec, httptest.NewRequest("GET", "/queue/events", nil))

	assert.Equal(t, 400, rec.Code)
}
