package broadcast

import (
	"log/slog"
	"time"

	"github.com/taskflow/realtime/internal/event"
	"github.com/taskflow/realtime/internal/metrics"
	"github.com/taskflow/realtime/internal/sse"
)

// Forwarder pushes board/global events to sibling instances. Implemented by
// relay.Relay; nil when the service runs standalone.
type Forwarder interface {
	Forward(ev event.Event)
}

// Broadcaster routes one event to the right set of connections. It holds no
// state of its own beyond its collaborators: recipient selection is a pure
// predicate over a registry snapshot, and each send is an independent
// non-blocking enqueue, so one slow client never delays the others.
type Broadcaster struct {
	registry  *sse.Registry
	forwarder Forwarder
}

func NewBroadcaster(registry *sse.Registry) *Broadcaster {
	return &Broadcaster{registry: registry}
}

// UseForwarder attaches a cross-instance forwarder. Must be called before
// the broadcaster starts receiving traffic.
func (b *Broadcaster) UseForwarder(f Forwarder) {
	b.forwarder = f
}

// SendToUser delivers an event to a single user. An absent user is a silent
// no-op: the recipient may simply not be online.
func (b *Broadcaster) SendToUser(userID int64, ev event.Event) {
	conn, ok := b.registry.Get(userID)
	if !ok {
		return
	}
	b.send(conn, ev)
}

// SendToBoard fans an event out to every connection subscribed to the
// event's board, excluding the user who triggered it. A nil board id is a
// caller bug, not a runtime condition.
func (b *Broadcaster) SendToBoard(ev event.Event) {
	if ev.BoardID == nil {
		panic("broadcast: SendToBoard requires a board id")
	}
	b.fanOut(ev, boardSubscribers)
	b.forward(ev)
}

// SendToAll delivers an event to every open connection except the triggering
// user, ignoring board subscriptions.
func (b *Broadcaster) SendToAll(ev event.Event) {
	b.fanOut(ev, allConnections)
	if ev.Type != event.TypeHeartbeat {
		b.forward(ev)
	}
}

// Dispatch applies an event that arrived from another instance: local
// fan-out only, never re-forwarded.
func (b *Broadcaster) Dispatch(ev event.Event) {
	if ev.Type == event.TypeConnected || ev.Type == event.TypeHeartbeat {
		return
	}
	if ev.BoardID != nil {
		b.fanOut(ev, boardSubscribers)
	} else {
		b.fanOut(ev, allConnections)
	}
}

// scope selects which connections a fan-out considers before sender
// exclusion is applied.
type scope int

const (
	boardSubscribers scope = iota
	allConnections
)

func (b *Broadcaster) fanOut(ev event.Event, sc scope) {
	start := time.Now()
	defer func() {
		metrics.FanOutDuration.Observe(time.Since(start).Seconds())
	}()

	delivered := 0
	for _, conn := range b.registry.Snapshot() {
		if !shouldReceive(conn, ev, sc) {
			continue
		}
		if b.send(conn, ev) {
			delivered++
		}
	}

	if ev.Type != event.TypeHeartbeat {
		slog.Debug("Event fanned out", "type", string(ev.Type), "recipients", delivered)
	}
}

// send delivers to one connection and evicts it on failure. A failure here
// never propagates to the publishing caller; the other recipients of the
// same fan-out are unaffected.
func (b *Broadcaster) send(conn *sse.Connection, ev event.Event) bool {
	if err := conn.Send(ev); err != nil {
		slog.Warn("Send failed, evicting connection",
			"user_id", conn.UserID(),
			"connection_id", conn.ID().String(),
			"type", string(ev.Type),
			"error", err,
		)
		metrics.SendFailuresTotal.Inc()
		b.registry.Release(conn)
		return false
	}
	metrics.EventsSentTotal.WithLabelValues(string(ev.Type)).Inc()
	return true
}

func (b *Broadcaster) forward(ev event.Event) {
	if b.forwarder != nil {
		b.forwarder.Forward(ev)
	}
}

// shouldReceive is the recipient-selection predicate: the triggering user is
// always excluded; board membership applies only to board-scoped fan-outs.
func shouldReceive(conn *sse.Connection, ev event.Event, sc scope) bool {
	if ev.TriggeredBy != nil && conn.UserID() == *ev.TriggeredBy {
		return false
	}
	if sc == boardSubscribers && ev.BoardID != nil && !conn.SubscribedTo(*ev.BoardID) {
		return false
	}
	return true
}
