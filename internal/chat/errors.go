package chat

import "errors"

var (
	// ErrRoomNotFound is returned by Connect when the room name does not
	// resolve to a persisted room. No registry or presence state is
	// created in that case.
	ErrRoomNotFound = errors.New("room not found")

	// ErrMalformedInput is returned by Receive for payloads that are not
	// valid JSON or are missing a non-empty body field. The message is
	// dropped and the connection stays active.
	ErrMalformedInput = errors.New("malformed message payload")

	// ErrInvalidState is returned when an operation is attempted on a
	// handle outside its valid lifecycle state. It is never fatal.
	ErrInvalidState = errors.New("connection is not active")
)
