package api

import "strconv"

type (
	// FlowID identifies a flow definition
	FlowID int64

	// FlowRunID identifies one execution of a flow
	FlowRunID string

	// NodeID identifies a node within a flow
	NodeID string

	// RequestID correlates a request frame with its response
	RequestID uint32

	// StreamID identifies a server-push subscription
	StreamID uint32
)

func (id FlowID) String() string {
	return strconv.FormatInt(int64(id), 10)
}
