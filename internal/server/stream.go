package server

import (
	"fmt"
	"sync"

	"github.com/labstack/echo/v4"
)

// eventStream adapts an HTTP response to the sse.Stream interface. Frames
// follow the text/event-stream format: "event: <type>\ndata: <json>\n\n",
// flushed after every write so events are not held back by buffering.
type eventStream struct {
	mu       sync.Mutex
	response *echo.Response
}

func newEventStream(response *echo.Response) *eventStream {
	return &eventStream{response: response}
}

func (s *eventStream) Write(eventName string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := fmt.Fprintf(s.response, "event: %s\ndata: %s\n\n", eventName, data); err != nil {
		return err
	}
	s.response.Flush()
	return nil
}

// Close is a no-op: the stream's lifetime is the handler's, which returns
// once the connection is done and thereby ends the HTTP response.
func (s *eventStream) Close() error { return nil }
