// Package ws streams live library view snapshots to WebSocket clients.
// Each connection holds one engine subscription; closing the connection
// cancels the subscription with no leak.
package ws
