package fanout

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"newsriver/app/ingest"
)

const (
	EventConnected = "connected"
	EventIngest    = "ingest"
	EventKeepAlive = "keepalive"
)

// Event is one message pushed to live observers.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Connection is one live observer. The hub owns it exclusively: events and
// keep-alives feed the same outbound channel, and the single consumer on the
// transport side drains Events until Done closes. Delivery is best-effort;
// an observer that stops draining is evicted, not waited on.
type Connection struct {
	ID     string
	filter string

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// Events is the outbound channel consumed by the transport writer.
func (c *Connection) Events() <-chan Event {
	return c.events
}

// Done closes when the connection has been unregistered.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

func (c *Connection) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Hub maintains the registry of connected observers and fans ingestion
// events out to all of them. Registry mutations are serialized; delivery to
// distinct connections is independent, so one dead observer cannot block the
// others.
type Hub struct {
	mu          sync.Mutex
	connections map[string]*Connection
	keepAlive   time.Duration
}

func NewHub(keepAlive time.Duration) *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		keepAlive:   keepAlive,
	}
}

var _ ingest.Notifier = (*Hub)(nil)

// Register adds an observer. filter is "" or "all" for everything, or a
// disposition name ("new", "updated") to receive only cycles that produced
// that disposition. The connected event is queued immediately.
func (h *Hub) Register(filter string) *Connection {
	conn := &Connection{
		ID:     uuid.NewString(),
		filter: filter,
		events: make(chan Event, 16),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	h.connections[conn.ID] = conn
	h.mu.Unlock()

	conn.events <- Event{Type: EventConnected}

	go h.keepAliveLoop(conn)

	slog.Debug("Observer connected", "connection", conn.ID, "filter", filter)
	return conn
}

// Unregister removes an observer and releases its resources. Safe to call
// more than once and concurrently with an in-flight broadcast; the last
// write may be dropped silently.
func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	_, present := h.connections[conn.ID]
	delete(h.connections, conn.ID)
	h.mu.Unlock()

	conn.close()

	if present {
		slog.Debug("Observer disconnected", "connection", conn.ID)
	}
}

// Broadcast attempts delivery to every registered connection. A connection
// whose outbound channel is no longer drained is marked dead and evicted
// without affecting delivery to the rest.
func (h *Hub) Broadcast(event Event) {
	for _, conn := range h.snapshot() {
		if !h.deliver(conn, event) {
			slog.Warn("Evicting dead observer", "connection", conn.ID)
			h.Unregister(conn)
		}
	}
}

// BroadcastIngest implements ingest.Notifier.
func (h *Hub) BroadcastIngest(result ingest.CycleResult) {
	h.Broadcast(Event{Type: EventIngest, Data: result})
}

// ConnectionCount returns the number of registered observers.
func (h *Hub) ConnectionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.connections)
}

// Close unregisters every observer; used at process shutdown.
func (h *Hub) Close() {
	for _, conn := range h.snapshot() {
		h.Unregister(conn)
	}
}

func (h *Hub) snapshot() []*Connection {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns := make([]*Connection, 0, len(h.connections))
	for _, conn := range h.connections {
		conns = append(conns, conn)
	}
	return conns
}

func (h *Hub) deliver(conn *Connection, event Event) bool {
	if !conn.wants(event) {
		return true
	}

	select {
	case conn.events <- event:
		return true
	case <-conn.done:
		return true
	default:
		return false
	}
}

// keepAliveLoop ticks independently of broadcasts so idle stretches between
// ingestion cycles do not starve the observer's transport timeouts.
func (h *Hub) keepAliveLoop(conn *Connection) {
	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-conn.done:
			return
		case <-ticker.C:
			if !h.deliver(conn, Event{Type: EventKeepAlive}) {
				slog.Warn("Evicting dead observer", "connection", conn.ID)
				h.Unregister(conn)
				return
			}
		}
	}
}

func (c *Connection) wants(event Event) bool {
	if c.filter == "" || c.filter == "all" || event.Type != EventIngest {
		return true
	}

	result, ok := event.Data.(ingest.CycleResult)
	if !ok {
		return true
	}

	switch c.filter {
	case "new":
		return result.New > 0
	case "updated":
		return result.Updated > 0
	default:
		return true
	}
}
