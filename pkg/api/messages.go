package api

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/space-operator/spo-go/pkg/value"
)

type (
	// Method names a WebSocket RPC call
	Method string

	// Request is a client to server frame
	Request struct {
		ID     RequestID `json:"id"`
		Method Method    `json:"method"`
		Params any       `json:"params"`
	}

	// Response is a server to client frame. Frames carrying an ID answer a
	// request, frames carrying a StreamID belong to a subscription
	Response struct {
		ID       *RequestID      `json:"id,omitempty"`
		StreamID *StreamID       `json:"stream_id,omitempty"`
		Ok       json.RawMessage `json:"Ok,omitempty"`
		Err      json.RawMessage `json:"Err,omitempty"`
	}

	// AuthenticateParams carries the bearer token for the handshake
	AuthenticateParams struct {
		Token string `json:"token"`
	}

	// Identity is the principal confirmed by the server after authentication
	Identity struct {
		UserID    string           `json:"user_id,omitempty"`
		PublicKey *value.PublicKey `json:"pubkey,omitempty"`
		FlowRunID FlowRunID        `json:"flow_run_id,omitempty"`
	}

	// SubscribeFlowRunEventsParams selects the run to stream. Token overrides
	// the connection credential, as issued for unverified runs
	SubscribeFlowRunEventsParams struct {
		FlowRunID FlowRunID `json:"flow_run_id"`
		Token     string    `json:"token,omitempty"`
	}

	// SubscribeSignatureRequestsParams is empty on the wire
	SubscribeSignatureRequestsParams struct{}

	// SubscribeResult is the Ok payload of every subscribe call
	SubscribeResult struct {
		StreamID StreamID `json:"stream_id"`
	}
)

const (
	MethodAuthenticate               Method = "Authenticate"
	MethodSubscribeFlowRunEvents     Method = "SubscribeFlowRunEvents"
	MethodSubscribeSignatureRequests Method = "SubscribeSignatureRequests"
)

var (
	ErrNoResult   = errors.New("response has neither Ok nor Err")
	ErrResultType = errors.New("unexpected result payload")
)

var nullJSON = []byte("null")

// IsErr reports whether the response carries an Err payload
func (r *Response) IsErr() bool {
	return present(r.Err)
}

// IsOk reports whether the response carries an Ok payload
func (r *Response) IsOk() bool {
	return present(r.Ok)
}

// ErrMessage renders the Err payload as text. String payloads are unquoted,
// anything else is returned as raw JSON
func (r *Response) ErrMessage() string {
	if !r.IsErr() {
		return ""
	}
	var msg string
	if err := json.Unmarshal(r.Err, &msg); err == nil {
		return msg
	}
	return string(r.Err)
}

// DecodeOk unmarshals the Ok payload into dst
func (r *Response) DecodeOk(dst any) error {
	if !r.IsOk() {
		return ErrNoResult
	}
	if err := json.Unmarshal(r.Ok, dst); err != nil {
		return errors.Join(ErrResultType, err)
	}
	return nil
}

func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, nullJSON)
}
