package sse

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskflow/realtime/internal/event"
)

// memStream collects written frames on a channel. Setting failErr makes
// every subsequent Write fail, simulating a broken client.
type memStream struct {
	mu      sync.Mutex
	frames  chan recordedFrame
	failErr error
	closed  bool
}

type recordedFrame struct {
	name string
	data []byte
}

func newMemStream() *memStream {
	return &memStream{frames: make(chan recordedFrame, 64)}
}

func (s *memStream) Write(eventName string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.frames <- recordedFrame{name: eventName, data: data}
	return nil
}

func (s *memStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *memStream) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

func (s *memStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *memStream) next(t *testing.T) recordedFrame {
	t.Helper()
	select {
	case f := <-s.frames:
		return f
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
		return recordedFrame{}
	}
}

func (s *memStream) expectNone(t *testing.T) {
	t.Helper()
	select {
	case f := <-s.frames:
		t.Fatalf("unexpected frame %q", f.name)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestConnection_SendDeliversFrame(t *testing.T) {
	stream := newMemStream()
	conn := newConnection(1, stream, clockwork.NewRealClock(), 0)
	t.Cleanup(conn.Close)

	require.NoError(t, conn.Send(event.Heartbeat()))

	f := stream.next(t)
	assert.Equal(t, "heartbeat", f.name)
	assert.Contains(t, string(f.data), `"type":"heartbeat"`)
}

func TestConnection_SendPreservesOrder(t *testing.T) {
	stream := newMemStream()
	conn := newConnection(1, stream, clockwork.NewRealClock(), 0)
	t.Cleanup(conn.Close)

	require.NoError(t, conn.Send(event.ItemCreated(10, "a", 2)))
	require.NoError(t, conn.Send(event.ItemUpdated(10, "b", 2)))
	require.NoError(t, conn.Send(event.ItemDeleted(10, "c", 2)))

	assert.Equal(t, "item:created", stream.next(t).name)
	assert.Equal(t, "item:updated", stream.next(t).name)
	assert.Equal(t, "item:deleted", stream.next(t).name)
}

func TestConnection_SendUpdatesLastActive(t *testing.T) {
	fakeClock := clockwork.NewFakeClock()
	stream := newMemStream()
	conn := newConnection(1, stream, fakeClock, 0)
	t.Cleanup(conn.Close)

	opened := conn.LastActiveAt()
	fakeClock.Advance(10 * time.Second)

	require.NoError(t, conn.Send(event.Heartbeat()))
	assert.Equal(t, opened.Add(10*time.Second), conn.LastActiveAt())
}

func TestConnection_SendAfterClose(t *testing.T) {
	stream := newMemStream()
	conn := newConnection(1, stream, clockwork.NewRealClock(), 0)

	conn.Close()
	<-conn.Done()

	err := conn.Send(event.Heartbeat())
	assert.ErrorIs(t, err, ErrConnectionClosed)
	assert.True(t, stream.isClosed(), "stream should be closed with the connection")
}

func TestConnection_SlowClientBufferFull(t *testing.T) {
	// A stream that never drains: block the writer goroutine on an
	// unbuffered channel, then overfill the send buffer.
	blocked := &blockingStream{release: make(chan struct{})}
	conn := newConnection(1, blocked, clockwork.NewRealClock(), 2)
	t.Cleanup(func() {
		close(blocked.release)
		conn.Close()
	})

	// First send is picked up by the writer and blocks; two more fill the
	// buffer. The next one must fail instead of blocking.
	require.NoError(t, conn.Send(event.Heartbeat()))
	blocked.waitUntilWriting(t)
	require.NoError(t, conn.Send(event.Heartbeat()))
	require.NoError(t, conn.Send(event.Heartbeat()))

	err := conn.Send(event.Heartbeat())
	assert.ErrorIs(t, err, ErrSlowClient)
}

func TestConnection_WriteErrorClosesAndNotifies(t *testing.T) {
	stream := newMemStream()
	stream.fail(errors.New("broken pipe"))

	conn := newConnection(1, stream, clockwork.NewRealClock(), 0)

	var notifyOnce sync.Once
	notified := make(chan *Connection, 1)
	conn.onWriteError = func(c *Connection) {
		notifyOnce.Do(func() { notified <- c })
	}

	require.NoError(t, conn.Send(event.Heartbeat()))

	select {
	case c := <-notified:
		assert.Same(t, conn, c)
	case <-time.After(time.Second):
		t.Fatal("write error callback not invoked")
	}

	<-conn.Done()
	assert.ErrorIs(t, conn.Send(event.Heartbeat()), ErrConnectionClosed)
}

func TestConnection_SubscriptionIdempotence(t *testing.T) {
	stream := newMemStream()
	conn := newConnection(1, stream, clockwork.NewRealClock(), 0)
	t.Cleanup(conn.Close)

	for range 5 {
		conn.Subscribe(10)
	}
	assert.Equal(t, []int64{10}, conn.Boards())
	assert.True(t, conn.SubscribedTo(10))

	conn.Unsubscribe(99) // never subscribed, no-op
	assert.Equal(t, []int64{10}, conn.Boards())

	conn.Unsubscribe(10)
	assert.Empty(t, conn.Boards())
	assert.False(t, conn.SubscribedTo(10))
}

// blockingStream parks the writer goroutine inside Write until released.
type blockingStream struct {
	mu      sync.Mutex
	writing bool
	release chan struct{}
}

func (s *blockingStream) Write(string, []byte) error {
	s.mu.Lock()
	s.writing = true
	s.mu.Unlock()
	<-s.release
	return nil
}

func (s *blockingStream) Close() error { return nil }

func (s *blockingStream) waitUntilWriting(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		w := s.writing
		s.mu.Unlock()
		if w {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("writer goroutine never entered Write")
}
