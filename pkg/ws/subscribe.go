package ws

import (
	"context"
	"fmt"

	"github.com/space-operator/spo-go/internal/rpc"
	"github.com/space-operator/spo-go/pkg/api"
	"github.com/space-operator/spo-go/pkg/log"
)

type (
	// Handler receives subscription events on the connection's read loop.
	// It must not wait on a Send made through the same Conn unless wrapped
	// with Serialized
	Handler = rpc.Handler

	// Subscription is returned by the subscribe calls. Release stops local
	// delivery
	Subscription = rpc.Subscription
)

// SubscribeFlowRunEvents streams the events of one flow run. token, when
// set, overrides the connection's credential for this run, as issued by
// unverified flow starts
func (c *Conn) SubscribeFlowRunEvents(
	ctx context.Context, runID api.FlowRunID, token string, h Handler,
) (*Subscription, error) {
	return c.subscribe(ctx, api.MethodSubscribeFlowRunEvents,
		api.SubscribeFlowRunEventsParams{
			FlowRunID: runID,
			Token:     token,
		}, h,
	)
}

// SubscribeSignatureRequests streams the signature requests addressed to
// the authenticated user
func (c *Conn) SubscribeSignatureRequests(
	ctx context.Context, h Handler,
) (*Subscription, error) {
	return c.subscribe(ctx, api.MethodSubscribeSignatureRequests,
		api.SubscribeSignatureRequestsParams{}, h,
	)
}

func (c *Conn) subscribe(
	ctx context.Context, method api.Method, params any, h Handler,
) (*Subscription, error) {
	var sub *Subscription
	var decodeErr error

	// registration happens on the read loop so no event that follows the
	// response can arrive before the handler exists
	resp, err := c.send(ctx, method, params, func(resp *api.Response) {
		if resp.IsErr() {
			return
		}
		var res api.SubscribeResult
		if err := resp.DecodeOk(&res); err != nil {
			decodeErr = err
			return
		}
		sub = c.reg.Register(res.StreamID, h)
	})
	if err != nil {
		return nil, err
	}
	if resp.IsErr() {
		return nil, &ProtocolError{
			Method:  method,
			Message: resp.ErrMessage(),
		}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrProtocol, method, decodeErr)
	}

	c.logger.Info("Subscribed",
		log.Method(method),
		log.StreamID(sub.ID()))
	return sub, nil
}
