package notifications

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jordanlanch/estatecrm/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, srv *httptest.Server, origin string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met")
}

func TestHub_PublishToUser(t *testing.T) {
	hub := NewHub([]string{"http://localhost:3000"}, nil, nil)
	defer hub.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(w, r, 7)
	}))
	defer srv.Close()

	conn := dial(t, srv, "http://localhost:3000")
	waitFor(t, func() bool { return hub.Connections(7) == 1 })

	assert.Equal(t, 0, hub.Publish(8, Event{Type: EventNotification}))
	delivered := hub.Publish(7, Event{Type: EventNotification, Data: schema.Notification{ID: 1, UserID: 7, Title: "New lead"}})
	assert.Equal(t, 1, delivered)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got struct {
		Type string              `json:"type"`
		Data schema.Notification `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, EventNotification, got.Type)
	assert.Equal(t, "New lead", got.Data.Title)

	require.NoError(t, conn.Close())
	waitFor(t, func() bool { return hub.Connections(7) == 0 })
}

func TestHub_RejectsForeignOrigin(t *testing.T) {
	hub := NewHub([]string{"http://localhost:3000"}, nil, nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(w, r, 1)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
