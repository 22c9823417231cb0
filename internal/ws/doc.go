// Package ws pushes run-created events to connected UI clients over
// WebSocket, so dashboards refresh without polling.
package ws
