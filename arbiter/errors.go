package arbiter

import "errors"

var (
	// ErrTimeout indicates no terminator arrived within ResponseTimeout and no
	// info lines were collected either, treated as a connection error by
	// callers.
	ErrTimeout = errors.New("arbiter: response timeout")
	// ErrDisconnected indicates the underlying transport failed while a
	// command was in flight.
	ErrDisconnected = errors.New("arbiter: transport disconnected")
)
