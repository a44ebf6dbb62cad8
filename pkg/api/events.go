package api

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/space-operator/spo-go/pkg/value"
)

type (
	// EventKind names the kind of a pushed subscription event
	EventKind string

	// StreamFrame is a push frame delivered to a subscription
	StreamFrame struct {
		StreamID StreamID        `json:"stream_id"`
		Event    EventKind       `json:"event"`
		Data     json.RawMessage `json:"data"`
	}

	// Event is a decoded push event. SignatureRequest is populated only for
	// events of kind EventSignatureRequest
	Event struct {
		SignatureRequest *SignatureRequest
		Kind             EventKind
		Data             json.RawMessage
		StreamID         StreamID
	}

	// FlowStartEvent marks the beginning of a run
	FlowStartEvent struct {
		FlowRunID FlowRunID `json:"flow_run_id"`
		Time      string    `json:"time"`
	}

	// FlowErrorEvent reports a run-level failure
	FlowErrorEvent struct {
		FlowRunID FlowRunID `json:"flow_run_id"`
		Time      string    `json:"time"`
		Error     string    `json:"error"`
	}

	// FlowLogEvent carries a run-level log line
	FlowLogEvent struct {
		FlowRunID FlowRunID `json:"flow_run_id"`
		Time      string    `json:"time"`
		Level     string    `json:"level"`
		Module    string    `json:"module,omitempty"`
		Content   string    `json:"content"`
	}

	// FlowFinishEvent carries the final output of a run
	FlowFinishEvent struct {
		FlowRunID FlowRunID   `json:"flow_run_id"`
		Time      string      `json:"time"`
		NotRun    []NodeID    `json:"not_run,omitempty"`
		Output    value.Value `json:"output"`
	}

	// NodeStartEvent marks the start of one node invocation
	NodeStartEvent struct {
		FlowRunID FlowRunID   `json:"flow_run_id"`
		Time      string      `json:"time"`
		NodeID    NodeID      `json:"node_id"`
		Times     int         `json:"times"`
		Input     value.Value `json:"input"`
	}

	// NodeOutputEvent carries the output of one node invocation
	NodeOutputEvent struct {
		FlowRunID FlowRunID   `json:"flow_run_id"`
		Time      string      `json:"time"`
		NodeID    NodeID      `json:"node_id"`
		Times     int         `json:"times"`
		Output    value.Value `json:"output"`
	}

	// NodeErrorEvent reports a failed node invocation
	NodeErrorEvent struct {
		FlowRunID FlowRunID `json:"flow_run_id"`
		Time      string    `json:"time"`
		NodeID    NodeID    `json:"node_id"`
		Times     int       `json:"times"`
		Error     string    `json:"error"`
	}
)

const (
	EventFlowStart        EventKind = "FlowStart"
	EventFlowError        EventKind = "FlowError"
	EventFlowLog          EventKind = "FlowLog"
	EventFlowFinish       EventKind = "FlowFinish"
	EventNodeStart        EventKind = "NodeStart"
	EventNodeOutput       EventKind = "NodeOutput"
	EventNodeError        EventKind = "NodeError"
	EventNodeLog          EventKind = "NodeLog"
	EventNodeFinish       EventKind = "NodeFinish"
	EventSignatureRequest EventKind = "SignatureRequest"
	EventAPIInput         EventKind = "ApiInput"
)

// DecodeEvent turns a push frame into an Event, decoding the payload of
// signature requests
func DecodeEvent(frame *StreamFrame) (*Event, error) {
	ev := &Event{
		StreamID: frame.StreamID,
		Kind:     frame.Event,
		Data:     frame.Data,
	}
	if frame.Event != EventSignatureRequest {
		return ev, nil
	}

	var req SignatureRequest
	if err := json.Unmarshal(frame.Data, &req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSignatureRequest, err)
	}
	ev.SignatureRequest = &req
	return ev, nil
}

// PeekFlowRunID extracts the flow_run_id field of an event payload without
// decoding the rest of it
func (e *Event) PeekFlowRunID() FlowRunID {
	return FlowRunID(gjson.GetBytes(e.Data, "flow_run_id").String())
}

// Decode unmarshals the event payload into dst
func (e *Event) Decode(dst any) error {
	return json.Unmarshal(e.Data, dst)
}

// IsTerminal reports whether the event ends its flow run
func (e *Event) IsTerminal() bool {
	return e.Kind == EventFlowFinish
}
