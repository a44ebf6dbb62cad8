package helpers

import "github.com/space-operator/spo-go/pkg/api"

// OkFrame builds a successful response to request id
func OkFrame(id api.RequestID, payload any) map[string]any {
	return map[string]any{"id": id, "Ok": payload}
}

// ErrFrame builds a failed response to request id
func ErrFrame(id api.RequestID, msg string) map[string]any {
	return map[string]any{"id": id, "Err": msg}
}

// EventFrame builds a push frame for a subscription
func EventFrame(
	stream api.StreamID, kind api.EventKind, data any,
) map[string]any {
	return map[string]any{
		"stream_id": stream,
		"event":     kind,
		"data":      data,
	}
}

// Reply answers every request with the same Ok payload
func Reply(payload any) MethodHandler {
	return func(r Request) []any {
		return []any{OkFrame(r.ID, payload)}
	}
}

// Reject answers every request with the same Err message
func Reject(msg string) MethodHandler {
	return func(r Request) []any {
		return []any{ErrFrame(r.ID, msg)}
	}
}

// Subscribe answers with a stream id and immediately pushes events to it,
// in the same burst as the response
func Subscribe(stream api.StreamID, events ...map[string]any) MethodHandler {
	return func(r Request) []any {
		res := []any{OkFrame(r.ID, api.SubscribeResult{StreamID: stream})}
		for _, ev := range events {
			res = append(res, ev)
		}
		return res
	}
}

// Hold records the request without replying
func Hold() MethodHandler {
	return func(Request) []any {
		return nil
	}
}
