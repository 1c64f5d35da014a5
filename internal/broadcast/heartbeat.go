package broadcast

import (
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/taskflow/realtime/internal/event"
	"github.com/taskflow/realtime/internal/metrics"
	"github.com/taskflow/realtime/internal/sse"
)

// DefaultHeartbeatInterval keeps idle connections alive past typical proxy
// idle timeouts.
const DefaultHeartbeatInterval = 30 * time.Second

// HeartbeatScheduler pushes a heartbeat event to every open connection on a
// fixed interval, using the broadcaster's send/evict path. A failed
// heartbeat evicts that connection and never perturbs the timer.
type HeartbeatScheduler struct {
	broadcaster *Broadcaster
	registry    *sse.Registry
	clock       clockwork.Clock
	interval    time.Duration
	stopCh      chan struct{}
	done        chan struct{}
}

// NewHeartbeatScheduler starts the heartbeat loop. interval <= 0 falls back
// to DefaultHeartbeatInterval.
func NewHeartbeatScheduler(broadcaster *Broadcaster, registry *sse.Registry, clock clockwork.Clock, interval time.Duration) *HeartbeatScheduler {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	h := &HeartbeatScheduler{
		broadcaster: broadcaster,
		registry:    registry,
		clock:       clock,
		interval:    interval,
		stopCh:      make(chan struct{}),
		done:        make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *HeartbeatScheduler) run() {
	defer close(h.done)

	ticker := h.clock.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			h.tick()
		case <-h.stopCh:
			return
		}
	}
}

func (h *HeartbeatScheduler) tick() {
	metrics.HeartbeatTicksTotal.Inc()

	count := h.registry.Count()
	if count == 0 {
		return
	}

	start := time.Now()
	slog.Debug("Sending heartbeat", "connections", count)

	h.broadcaster.SendToAll(event.Heartbeat())

	metrics.HeartbeatDuration.Observe(time.Since(start).Seconds())
}

// Stop halts the scheduler and waits for the loop to exit.
func (h *HeartbeatScheduler) Stop() {
	close(h.stopCh)
	<-h.done
}
