package realtime

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/taskhive/taskhive/pkg/logger"
	"github.com/taskhive/taskhive/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 16 // 64 KiB

	defaultBufferSize = 64
)

// Event is a JSON payload delivered to subscribed clients. Delivery is
// best-effort with no replay; clients reload authoritative state on
// reconnect or list switch.
type Event struct {
	Event  string `json:"event"`
	ListID string `json:"list_id,omitempty"`
	Data   any    `json:"data,omitempty"`
}

type controlMessage struct {
	Action string `json:"action"`
	ListID string `json:"list_id,omitempty"`
}

// MembershipFunc authorizes a list-room join for the given user.
type MembershipFunc func(ctx context.Context, uid, listID string) bool

// Hub coordinates realtime rooms. Every connection sits in its personal room
// for the session lifetime and in at most one list room at a time.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*connection]struct{}
	upgrader websocket.Upgrader
	canJoin  MembershipFunc
	log      *zap.Logger
}

// NewHub constructs a realtime hub. canJoin may be nil, in which case all
// list-room joins are accepted (used by tests with pre-authorized clients).
func NewHub(canJoin MembershipFunc) *Hub {
	return &Hub{
		rooms:   make(map[string]map[*connection]struct{}),
		canJoin: canJoin,
		log:     logger.WithModule("realtime"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				originHost := hostWithoutPort(origin)
				requestHost := hostWithoutPort(r.Host)
				return originHost == requestHost || isLoopback(originHost)
			},
		},
	}
}

// Serve upgrades the HTTP connection and registers the client. The personal
// room is joined immediately; list rooms are joined via control messages.
func (h *Hub) Serve(userID string, w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", zap.Error(err))
		return
	}

	client := newConnection(h, conn, userID)
	h.join(client, userRoom(userID))
	metrics.RealtimeConnections.Inc()

	go client.writeLoop()
	client.readLoop()
}

// BroadcastToUser delivers an event to every connection on the user's
// personal room. Publishing to an empty room is not an error.
func (h *Hub) BroadcastToUser(uid string, event Event) {
	h.broadcast(userRoom(uid), event)
}

// BroadcastToUsers delivers an event to each of the supplied users.
func (h *Hub) BroadcastToUsers(uids []string, event Event) {
	for _, uid := range uids {
		h.BroadcastToUser(uid, event)
	}
}

// BroadcastToList delivers an event to every client currently in the list's room.
func (h *Hub) BroadcastToList(listID string, event Event) {
	h.broadcast(listRoom(listID), event)
}

func (h *Hub) broadcast(room string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[room] {
		h.enqueue(client, event)
	}
}

func (h *Hub) join(client *connection, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*connection]struct{})
	}
	h.rooms[room][client] = struct{}{}
}

func (h *Hub) leave(client *connection, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client, room)
}

func (h *Hub) removeLocked(client *connection, room string) {
	members := h.rooms[room]
	if members == nil {
		return
	}
	delete(members, client)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

func (h *Hub) unregister(client *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeLocked(client, userRoom(client.userID))
	if client.listRoom != "" {
		h.removeLocked(client, client.listRoom)
	}
}

func (h *Hub) enqueue(client *connection, event Event) {
	select {
	case client.send <- event:
	default:
		h.log.Warn("dropping backpressure client", zap.String("user_id", client.userID))
		// close acquires the hub lock; enqueue may run under it.
		go client.close()
	}
}

// switchList moves the connection to a new list room, leaving any previous
// one first. Joining is explicit leave-then-join, never additive.
func (h *Hub) switchList(client *connection, listID string) {
	if h.canJoin != nil && !h.canJoin(context.Background(), client.userID, listID) {
		h.log.Warn("rejecting unauthorized list join",
			zap.String("user_id", client.userID),
			zap.String("list_id", listID),
		)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if client.listRoom != "" {
		h.removeLocked(client, client.listRoom)
		client.listRoom = ""
	}

	room := listRoom(listID)
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*connection]struct{})
	}
	h.rooms[room][client] = struct{}{}
	client.listRoom = room
}

func (h *Hub) leaveList(client *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client.listRoom != "" {
		h.removeLocked(client, client.listRoom)
		client.listRoom = ""
	}
}

type connection struct {
	hub      *Hub
	socket   *websocket.Conn
	userID   string
	listRoom string
	send     chan Event
	once     sync.Once
}

func newConnection(hub *Hub, conn *websocket.Conn, userID string) *connection {
	return &connection{
		hub:    hub,
		socket: conn,
		userID: userID,
		send:   make(chan Event, defaultBufferSize),
	}
}

func (c *connection) readLoop() {
	defer c.close()

	c.socket.SetReadLimit(maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("unexpected close", zap.String("user_id", c.userID), zap.Error(err))
			}
			break
		}

		if len(payload) == 0 {
			continue
		}

		var ctrl controlMessage
		if err := json.Unmarshal(payload, &ctrl); err != nil {
			c.hub.log.Debug("invalid control payload", zap.String("user_id", c.userID), zap.Error(err))
			continue
		}

		switch strings.ToLower(strings.TrimSpace(ctrl.Action)) {
		case "join_list":
			if listID := strings.TrimSpace(ctrl.ListID); listID != "" {
				c.hub.switchList(c, listID)
			}
		case "leave_list":
			c.hub.leaveList(c)
		case "ping":
			c.hub.enqueue(c, Event{Event: "pong"})
		default:
			c.hub.log.Debug("unsupported control action",
				zap.String("action", ctrl.Action),
				zap.String("user_id", c.userID),
			)
		}
	}
}

func (c *connection) writeLoop() {
	defer c.close()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.socket.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *connection) close() {
	c.once.Do(func() {
		c.hub.unregister(c)
		metrics.RealtimeConnections.Dec()
		close(c.send)
		_ = c.socket.Close()
	})
}

func userRoom(uid string) string {
	return "user:" + uid
}

func listRoom(listID string) string {
	return "list:" + listID
}

func hostWithoutPort(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}

	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		parsed, err := http.NewRequest(http.MethodGet, host, nil)
		if err == nil {
			return hostWithoutPort(parsed.URL.Host)
		}
	}

	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func isLoopback(host string) bool {
	ip := net.ParseIP(host)
	if ip != nil {
		return ip.IsLoopback()
	}
	return strings.EqualFold(host, "localhost")
}
