// Package server exposes the HTTP surface of the board: the WebSocket
// endpoint clients sync over, a read-only notes listing, health and
// Prometheus metrics endpoints.
package server
