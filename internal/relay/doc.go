// Package relay fans events out across service instances via Redis pub/sub.
//
// Each instance tags published envelopes with its own id and skips them on
// receipt, so an event reaches every instance's local connections exactly
// once. Heartbeats and connected notices never cross the relay.
package relay
