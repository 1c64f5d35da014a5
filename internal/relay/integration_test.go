package relay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/taskflow/realtime/internal/event"
)

func startRedis(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	return "redis://" + endpoint
}

func waitForEvents(t *testing.T, sink *recordingSink, n int) []event.Event {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if events := sink.all(); len(events) >= n {
			return events
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d relayed events", n)
	return nil
}

func TestRelay_CrossInstanceDelivery(t *testing.T) {
	redisURL := startRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sinkA := &recordingSink{}
	relayA, err := New(ctx, redisURL, sinkA)
	require.NoError(t, err)
	t.Cleanup(func() { _ = relayA.Close() })

	sinkB := &recordingSink{}
	relayB, err := New(ctx, redisURL, sinkB)
	require.NoError(t, err)
	t.Cleanup(func() { _ = relayB.Close() })

	go func() { _ = relayA.Run(ctx) }()
	go func() { _ = relayB.Run(ctx) }()

	// Give both subscribers a moment to confirm before publishing.
	require.Eventually(t, func() bool {
		return relayA.Ping(ctx) == nil && relayB.Ping(ctx) == nil
	}, 5*time.Second, 50*time.Millisecond)
	time.Sleep(200 * time.Millisecond)

	relayA.Forward(event.ItemCreated(10, map[string]any{"itemId": 1}, 2))

	// B receives A's event; A skips its own.
	events := waitForEvents(t, sinkB, 1)
	assert.Equal(t, event.TypeItemCreated, events[0].Type)
	require.NotNil(t, events[0].BoardID)
	assert.Equal(t, int64(10), *events[0].BoardID)

	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, sinkA.all())
}

func TestRelay_PingAndClose(t *testing.T) {
	redisURL := startRedis(t)
	ctx := context.Background()

	sink := &recordingSink{}
	r, err := New(ctx, redisURL, sink)
	require.NoError(t, err)

	assert.NoError(t, r.Ping(ctx))
	assert.NoError(t, r.Close())
}

func TestRelay_NewRejectsBadURL(t *testing.T) {
	_, err := New(context.Background(), "not-a-url", &recordingSink{})
	assert.Error(t, err)
}
