package errors

import (
	"errors"

	"github.com/gorilla/websocket"
)

// MapToCloseCode translates the error taxonomy into a websocket close
// code surfaced to the client. Storage failures close the connection:
// an unconfirmed append must never be followed by a broadcast implying
// it was saved.
func MapToCloseCode(err error) int {
	switch {
	case errors.Is(err, ErrInvalidIdentity), errors.Is(err, ErrUnknownPeer):
		return websocket.ClosePolicyViolation
	case errors.Is(err, ErrStorageUnavailable):
		return websocket.CloseInternalServerErr
	default:
		return websocket.CloseInternalServerErr
	}
}
