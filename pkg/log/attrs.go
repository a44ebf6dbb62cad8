package log

import (
	"log/slog"
	"strconv"
)

func FlowRunID[T ~string](id T) slog.Attr {
	return slog.String("flow_run_id", string(id))
}

func FlowID[T ~int64](id T) slog.Attr {
	return slog.String("flow_id", strconv.FormatInt(int64(id), 10))
}

func StreamID[T ~uint32](id T) slog.Attr {
	return slog.Uint64("stream_id", uint64(id))
}

func RequestID[T ~uint32](id T) slog.Attr {
	return slog.Uint64("request_id", uint64(id))
}

func Method[T ~string](m T) slog.Attr {
	return slog.String("method", string(m))
}

func ConnID(id string) slog.Attr {
	return slog.String("conn_id", id)
}

func PublicKey(pk interface{ String() string }) slog.Attr {
	return slog.String("pubkey", pk.String())
}

func Error(err error) slog.Attr {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return slog.String("error", msg)
}

func ErrorString(msg string) slog.Attr {
	return slog.String("error", msg)
}
