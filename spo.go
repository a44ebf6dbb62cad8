// Package spo is a Go client for the Space Operator workflow service. The
// wire format lives in pkg/value and pkg/api, the WebSocket session in
// pkg/ws and the REST calls in pkg/rest
package spo

const (
	Name    = "spo-relay"
	Version = "0.1.0"
)
