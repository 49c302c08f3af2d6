// Package websocket provides real-time event streaming via WebSocket.
//
// Clients can connect to /api/v1/executions/ws to receive real-time
// updates about pipeline execution: phase changes, per-module progress,
// log entries and results.
package websocket
