// Package sse holds the connection registry for Server-Sent Event streams.
//
// One Connection per user, replace-on-reconnect. Each Connection drains a
// buffered outbound channel on its own writer goroutine, so registry
// mutations and fan-out never wait on transport I/O.
package sse
