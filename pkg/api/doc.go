// Package api defines the wire types exchanged with the flow service
//
// This package contains the request and response frames of the WebSocket
// protocol, the events pushed over subscriptions, signature requests and the
// transactions built from them, and the parameter and output shapes of the
// REST endpoints
package api
