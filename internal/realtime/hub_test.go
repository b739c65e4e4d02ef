package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, hub *Hub, userID string) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(userID, w, r)
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
	})

	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event Event
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func waitForRoom(t *testing.T, hub *Hub, room string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		hub.mu.RLock()
		_, ok := hub.rooms[room]
		hub.mu.RUnlock()
		if ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("room %s never materialised", room)
}

func TestHubDeliversPersonalEvents(t *testing.T) {
	hub := NewHub(nil)
	conn := dialHub(t, hub, "user-1")
	waitForRoom(t, hub, userRoom("user-1"))

	hub.BroadcastToUser("user-1", Event{Event: "notification-created", Data: map[string]string{"id": "n1"}})

	event := readEvent(t, conn)
	require.Equal(t, "notification-created", event.Event)
}

func TestHubListRoomIsExclusive(t *testing.T) {
	hub := NewHub(nil)
	conn := dialHub(t, hub, "user-2")
	waitForRoom(t, hub, userRoom("user-2"))

	require.NoError(t, conn.WriteJSON(controlMessage{Action: "join_list", ListID: "list-a"}))
	waitForRoom(t, hub, listRoom("list-a"))

	// Joining another list leaves the first.
	require.NoError(t, conn.WriteJSON(controlMessage{Action: "join_list", ListID: "list-b"}))
	waitForRoom(t, hub, listRoom("list-b"))

	hub.BroadcastToList("list-a", Event{Event: "task-created", ListID: "list-a"})
	hub.BroadcastToList("list-b", Event{Event: "task-updated", ListID: "list-b"})

	event := readEvent(t, conn)
	require.Equal(t, "task-updated", event.Event)
	require.Equal(t, "list-b", event.ListID)
}

func TestHubRejectsUnauthorizedListJoin(t *testing.T) {
	hub := NewHub(func(ctx context.Context, uid, listID string) bool {
		return listID == "allowed"
	})
	conn := dialHub(t, hub, "user-3")
	waitForRoom(t, hub, userRoom("user-3"))

	require.NoError(t, conn.WriteJSON(controlMessage{Action: "join_list", ListID: "forbidden"}))
	require.NoError(t, conn.WriteJSON(controlMessage{Action: "join_list", ListID: "allowed"}))
	waitForRoom(t, hub, listRoom("allowed"))

	hub.mu.RLock()
	_, forbiddenExists := hub.rooms[listRoom("forbidden")]
	hub.mu.RUnlock()
	require.False(t, forbiddenExists)

	hub.BroadcastToList("allowed", Event{Event: "task-created", ListID: "allowed"})
	event := readEvent(t, conn)
	require.Equal(t, "task-created", event.Event)
}

func TestHubPingControl(t *testing.T) {
	hub := NewHub(nil)
	conn := dialHub(t, hub, "user-4")
	waitForRoom(t, hub, userRoom("user-4"))

	require.NoError(t, conn.WriteJSON(controlMessage{Action: "ping"}))
	event := readEvent(t, conn)
	require.Equal(t, "pong", event.Event)
}

func TestHubBroadcastToUsers(t *testing.T) {
	hub := NewHub(nil)
	first := dialHub(t, hub, "user-5")
	second := dialHub(t, hub, "user-6")
	waitForRoom(t, hub, userRoom("user-5"))
	waitForRoom(t, hub, userRoom("user-6"))

	hub.BroadcastToUsers([]string{"user-5", "user-6"}, Event{Event: "list-created"})

	require.Equal(t, "list-created", readEvent(t, first).Event)
	require.Equal(t, "list-created", readEvent(t, second).Event)
}
