package transport

import "errors"

// ErrNotConnected is returned by Write or Read when called before a
// successful Open, or after Close.
var ErrNotConnected = errors.New("transport: not connected")
