package handler_test

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/smartdom/crm-api/internal/http/handler"
	"github.com/smartdom/crm-api/internal/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type closedSource struct{}

func (closedSource) Subscribe() (<-chan realtime.Event, func()) {
	ch := make(chan realtime.Event)
	close(ch)
	return ch, func() {}
}

func TestEventsHandler_Stream(t *testing.T) {
	hub := realtime.NewHub(4)
	h := handler.NewEventsHandler(hub, 50*time.Millisecond, zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(h.Stream))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": connected\n", line)
	require.Equal(t, 1, hub.Subscribers())

	id := uuid.New()
	require.NoError(t, hub.Publish(ctx, realtime.NewEvent(realtime.EntityObject, id, realtime.ActionUpdated)))

	var event, data string
	for event == "" || data == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event: "))
		case strings.HasPrefix(line, "data: "):
			data = line
		}
	}
	assert.Equal(t, realtime.EntityObject, event)
	assert.Contains(t, data, id.String())

	cancel()
	assert.Eventually(t, func() bool { return hub.Subscribers() == 0 }, 2*time.Second, 20*time.Millisecond)
}

func TestEventsHandler_SourceClosed(t *testing.T) {
	h := handler.NewEventsHandler(closedSource{}, time.Minute, zap.NewNop())
	w := httptest.NewRecorder()
	h.Stream(w, httptest.NewRequest(http.MethodGet, "/events", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ": connected\n\n", w.Body.String())
}
