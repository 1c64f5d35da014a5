package sse

import (
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/taskflow/realtime/internal/metrics"
)

// Registry is the authoritative table of open connections, keyed by user id.
// Mutations are short critical sections that never touch transport I/O;
// fan-out iterates a snapshot taken under a read lock.
type Registry struct {
	clock      clockwork.Clock
	bufferSize int

	mu    sync.RWMutex
	conns map[int64]*Connection
}

// NewRegistry creates an empty registry. bufferSize is the per-connection
// outbound buffer; zero means the default.
func NewRegistry(clock clockwork.Clock, bufferSize int) *Registry {
	return &Registry{
		clock:      clock,
		bufferSize: bufferSize,
		conns:      make(map[int64]*Connection),
	}
}

// Open registers a new connection for userID over the given stream. If the
// user already has one, it is swapped out atomically and closed best-effort;
// a late write on the old connection can never resurrect its registry entry.
func (r *Registry) Open(userID int64, stream Stream) *Connection {
	conn := newConnection(userID, stream, r.clock, r.bufferSize)
	conn.onWriteError = func(c *Connection) { r.release(c, metrics.ReasonTransport) }

	r.mu.Lock()
	old := r.conns[userID]
	if old != nil {
		// Reconnect keeps the boards the user was watching; the client
		// does not have to re-subscribe after a replace.
		for _, boardID := range old.Boards() {
			conn.Subscribe(boardID)
		}
	}
	r.conns[userID] = conn
	total := len(r.conns)
	r.mu.Unlock()

	if old != nil {
		old.Close()
		metrics.ConnectionsReplacedTotal.Inc()
		metrics.ConnectionsClosedTotal.WithLabelValues(metrics.ReasonReplaced).Inc()
		slog.Info("Replaced existing connection", "user_id", userID, "old_connection_id", old.ID().String())
	}

	metrics.ConnectionsOpenedTotal.Inc()
	metrics.ActiveConnections.Set(float64(total))
	slog.Info("Connection opened", "user_id", userID, "connection_id", conn.ID().String(), "total_connections", total)
	return conn
}

// Close removes and closes the connection for userID, if any. Closing an
// absent user is a no-op.
func (r *Registry) Close(userID int64) {
	r.mu.Lock()
	conn := r.conns[userID]
	if conn != nil {
		delete(r.conns, userID)
	}
	total := len(r.conns)
	r.mu.Unlock()

	if conn == nil {
		return
	}

	conn.Close()
	metrics.ConnectionsClosedTotal.WithLabelValues(metrics.ReasonExplicit).Inc()
	metrics.ActiveConnections.Set(float64(total))
	slog.Info("Connection closed", "user_id", userID, "total_connections", total)
}

// Release removes a specific connection instance, used by send-failure
// eviction and transport error callbacks. If the user has since reconnected,
// the map holds a different instance and only the stale connection is
// closed, never the replacement.
func (r *Registry) Release(conn *Connection) {
	r.release(conn, metrics.ReasonSendFailure)
}

func (r *Registry) release(conn *Connection, reason string) {
	r.mu.Lock()
	current, ok := r.conns[conn.userID]
	removed := ok && current == conn
	if removed {
		delete(r.conns, conn.userID)
	}
	total := len(r.conns)
	r.mu.Unlock()

	conn.Close()

	if removed {
		metrics.ConnectionsClosedTotal.WithLabelValues(reason).Inc()
		metrics.ActiveConnections.Set(float64(total))
		slog.Info("Connection released", "user_id", conn.userID, "connection_id", conn.ID().String(), "reason", reason, "total_connections", total)
	}
}

// Subscribe adds a board subscription for userID. Silent no-op if the user
// has no open connection.
func (r *Registry) Subscribe(userID, boardID int64) {
	if conn, ok := r.Get(userID); ok {
		conn.Subscribe(boardID)
		slog.Debug("Subscribed to board", "user_id", userID, "board_id", boardID)
	}
}

// Unsubscribe removes a board subscription for userID. Silent no-op if the
// user has no open connection.
func (r *Registry) Unsubscribe(userID, boardID int64) {
	if conn, ok := r.Get(userID); ok {
		conn.Unsubscribe(boardID)
		slog.Debug("Unsubscribed from board", "user_id", userID, "board_id", boardID)
	}
}

// Get returns the live connection for userID.
func (r *Registry) Get(userID int64) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[userID]
	return conn, ok
}

// IsConnected reports whether userID has an open connection.
func (r *Registry) IsConnected(userID int64) bool {
	_, ok := r.Get(userID)
	return ok
}

// Count returns the number of open connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Snapshot returns a point-in-time view of all connections for fan-out
// iteration. Sends against the snapshot happen without holding the registry
// lock, so a slow client cannot block registry mutations.
func (r *Registry) Snapshot() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		out = append(out, conn)
	}
	return out
}

// CloseAll tears down every connection, used during shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	conns := make([]*Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	r.conns = make(map[int64]*Connection)
	r.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
		metrics.ConnectionsClosedTotal.WithLabelValues(metrics.ReasonShutdown).Inc()
	}
	metrics.ActiveConnections.Set(0)

	if len(conns) > 0 {
		slog.Info("All connections closed", "count", len(conns))
	}
}
