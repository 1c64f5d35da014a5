package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/taskflow/realtime/internal/event"
	"github.com/taskflow/realtime/internal/metrics"
)

const (
	// Channel carries all relayed events between instances.
	Channel = "realtime:events"

	publishTimeout = 2 * time.Second
)

// Sink applies a relayed event to this instance's connections.
// Implemented by broadcast.Broadcaster.Dispatch.
type Sink interface {
	Dispatch(ev event.Event)
}

// envelope wraps an event with the publishing instance's id so the
// subscriber can drop its own messages.
type envelope struct {
	Origin uuid.UUID   `json:"origin"`
	Event  event.Event `json:"event"`
}

// Relay bridges fan-out between instances over Redis pub/sub. Each instance
// publishes its board/global events to one shared channel and applies
// everything it receives from other instances to its local connections.
type Relay struct {
	rdb        *redis.Client
	sink       Sink
	instanceID uuid.UUID
}

// New creates a relay from a Redis URL (e.g., "redis://localhost:6379") and
// verifies connectivity.
func New(ctx context.Context, redisURL string, sink Sink) (*Relay, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("relay: parse redis URL: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("relay: ping: %w", err)
	}

	return &Relay{
		rdb:        rdb,
		sink:       sink,
		instanceID: uuid.New(),
	}, nil
}

// InstanceID identifies this relay in published envelopes.
func (r *Relay) InstanceID() uuid.UUID { return r.instanceID }

// Forward publishes an event to the relay channel. Failures are logged and
// counted, never surfaced: cross-instance delivery is best effort, exactly
// like local delivery.
func (r *Relay) Forward(ev event.Event) {
	data, err := json.Marshal(envelope{Origin: r.instanceID, Event: ev})
	if err != nil {
		slog.Error("Failed to marshal relay envelope", "type", string(ev.Type), "error", err)
		metrics.RelayErrorsTotal.Inc()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := r.rdb.Publish(ctx, Channel, data).Err(); err != nil {
		slog.Error("Failed to publish relay event", "type", string(ev.Type), "error", err)
		metrics.RelayErrorsTotal.Inc()
		return
	}
	metrics.RelayPublishedTotal.Inc()
}

// Run subscribes to the relay channel and dispatches incoming events from
// other instances until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.rdb.Subscribe(ctx, Channel)
	defer sub.Close()

	// Wait for subscription confirmation before reporting started.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("relay: subscribe: %w", err)
	}

	slog.Info("Relay subscribed", "channel", Channel, "instance_id", r.instanceID.String())

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.handleMessage([]byte(msg.Payload))
		}
	}
}

func (r *Relay) handleMessage(payload []byte) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		slog.Warn("Dropping malformed relay message", "error", err)
		metrics.RelayErrorsTotal.Inc()
		return
	}

	if env.Origin == r.instanceID {
		metrics.RelaySkippedTotal.Inc()
		return
	}

	metrics.RelayReceivedTotal.Inc()
	r.sink.Dispatch(env.Event)
}

// Ping verifies Redis connectivity, used by readiness checks.
func (r *Relay) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Close releases the Redis connection.
func (r *Relay) Close() error {
	return r.rdb.Close()
}
