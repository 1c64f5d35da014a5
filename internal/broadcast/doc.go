// Package broadcast turns domain events into per-connection sends.
//
// The Broadcaster fans out over a registry snapshot with the triggering user
// excluded; the HeartbeatScheduler reuses the same send/evict path on a
// fixed tick; the Publisher is the typed facade the CRUD layers call.
package broadcast
