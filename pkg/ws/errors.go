package ws

import (
	"errors"
	"fmt"

	"github.com/space-operator/spo-go/pkg/api"
)

// ProtocolError carries the Err payload the server returned for a call
type ProtocolError struct {
	Method  api.Method
	Message string
}

var (
	ErrNotConnected      = errors.New("not connected")
	ErrConnectionClosed  = errors.New("connection closed")
	ErrAlreadyConnected  = errors.New("already connected")
	ErrDialFailed        = errors.New("failed to dial")
	ErrWriteFailed       = errors.New("failed to write frame")
	ErrAuthFailed        = errors.New("authentication failed")
	ErrProtocol          = errors.New("server returned error")
	ErrPublicKeyMismatch = errors.New("public key does not match request")
	ErrSignatureNull     = errors.New("signature is null")
	ErrNoSubmitter       = errors.New("no signature submitter configured")
	ErrSubmitRejected    = errors.New("signature submission rejected")
)

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrProtocol, e.Method, e.Message)
}

func (e *ProtocolError) Unwrap() error {
	return ErrProtocol
}
