// Package server implements the HTTP surface using Echo framework.
//
// Routes: SSE stream lifecycle (/api/events), board subscriptions, status
// queries, and observability (health, metrics, version). The SSE handler
// owns the transport lifetime; registry and broadcaster do the rest.
package server
