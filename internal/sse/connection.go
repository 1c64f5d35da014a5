package sse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/taskflow/realtime/internal/event"
)

const defaultSendBufferSize = 16

// Sentinel errors returned by Connection.Send. Either one means the
// connection is no longer usable and must be released from the registry.
var (
	ErrConnectionClosed = fmt.Errorf("sse: connection closed")
	ErrSlowClient       = fmt.Errorf("sse: send buffer full, client too slow")
)

// Stream is the transport handle a Connection owns exclusively. Write emits
// one framed SSE message. Implementations must tolerate concurrent Close.
type Stream interface {
	Write(eventName string, data []byte) error
	Close() error
}

type frame struct {
	name string
	data []byte
}

// Connection is one live push stream bound to a single user. Outbound
// messages go through a buffered channel drained by a single writer
// goroutine, so Send never blocks on transport I/O and per-caller send order
// is preserved.
type Connection struct {
	userID int64
	id     uuid.UUID
	stream Stream
	clock  clockwork.Clock

	createdAt time.Time

	mu           sync.Mutex
	boards       map[int64]struct{}
	lastActiveAt time.Time
	closed       bool

	sendCh   chan frame
	done     chan struct{} // close signal
	finished chan struct{} // closed after the writer goroutine has exited
	stopOnce sync.Once

	// onWriteError fires once when the transport reports a write failure.
	// Wired by the registry to release this exact connection instance.
	onWriteError func(*Connection)
}

func newConnection(userID int64, stream Stream, clock clockwork.Clock, bufferSize int) *Connection {
	if bufferSize <= 0 {
		bufferSize = defaultSendBufferSize
	}
	now := clock.Now()
	c := &Connection{
		userID:       userID,
		id:           uuid.New(),
		stream:       stream,
		clock:        clock,
		createdAt:    now,
		boards:       make(map[int64]struct{}),
		lastActiveAt: now,
		sendCh:       make(chan frame, bufferSize),
		done:         make(chan struct{}),
		finished:     make(chan struct{}),
	}
	go c.run()
	return c
}

func (c *Connection) run() {
	defer close(c.finished)
	defer func() { _ = c.stream.Close() }()

	for {
		select {
		case f := <-c.sendCh:
			if err := c.stream.Write(f.name, f.data); err != nil {
				slog.Debug("Stream write failed", "user_id", c.userID, "connection_id", c.id.String(), "error", err)
				c.Close()
				if c.onWriteError != nil {
					c.onWriteError(c)
				}
				return
			}
		case <-c.done:
			return
		}
	}
}

// UserID returns the user this connection is bound to.
func (c *Connection) UserID() int64 { return c.userID }

// ID returns the connection instance id. A reconnect of the same user yields
// a new id; the registry uses it to tell a stale connection from its
// replacement.
func (c *Connection) ID() uuid.UUID { return c.id }

// CreatedAt returns the connection creation time.
func (c *Connection) CreatedAt() time.Time { return c.createdAt }

// LastActiveAt returns the time of the last successful send.
func (c *Connection) LastActiveAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActiveAt
}

// Subscribe adds a board to the subscription set. Subscribing twice to the
// same board is a no-op.
func (c *Connection) Subscribe(boardID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.boards[boardID] = struct{}{}
}

// Unsubscribe removes a board from the subscription set. Removing a board
// that was never subscribed is a no-op.
func (c *Connection) Unsubscribe(boardID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.boards, boardID)
}

// SubscribedTo reports whether the connection watches the given board.
func (c *Connection) SubscribedTo(boardID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.boards[boardID]
	return ok
}

// Boards returns the current subscription set.
func (c *Connection) Boards() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int64, 0, len(c.boards))
	for id := range c.boards {
		out = append(out, id)
	}
	return out
}

// Send enqueues one event for delivery. It never blocks: a closed connection
// returns ErrConnectionClosed, a full buffer returns ErrSlowClient. A
// successful enqueue updates lastActiveAt. Enqueue order from a single
// caller is the delivery order on the wire.
func (c *Connection) Send(ev event.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("sse: marshal event: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrConnectionClosed
	}

	select {
	case c.sendCh <- frame{name: string(ev.Type), data: data}:
		c.lastActiveAt = c.clock.Now()
		c.mu.Unlock()
		return nil
	default:
		c.mu.Unlock()
		return ErrSlowClient
	}
}

// Close transitions the connection to its terminal state. Idempotent. The
// stream is closed by the writer goroutine on its way out; Done unblocks
// once that has happened.
func (c *Connection) Close() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
	})
}

// Done is closed once the connection is fully torn down (writer goroutine
// exited, stream closed). The transport handler blocks on it before
// returning, so no write can race the end of the HTTP response.
func (c *Connection) Done() <-chan struct{} { return c.finished }
