package transport

import (
	"bytes"
	"os/exec"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Helper shells out to an external command-line helper for each AT command
// instead of owning a persistent connection. A call to Write runs the helper
// with the AT line (CR/CRLF stripped) as an argument and captures its
// standard output; the next Read returns that output exactly once.
//
// Open and Close are no-ops: the "connection" is logically always up, since
// there is nothing to hold open between invocations.
type Helper struct {
	// Path is the helper executable, resolved via exec.LookPath semantics.
	Path string
	// FeatureFlag, if non-empty, is passed as an extra argument ahead of the
	// AT line (e.g. a helper that multiplexes several protocols).
	FeatureFlag string

	mu      sync.Mutex
	pending []byte
}

// NewHelper creates a Helper transport invoking the named executable.
func NewHelper(path, featureFlag string) *Helper {
	return &Helper{Path: path, FeatureFlag: featureFlag}
}

// Open is a no-op; the helper-process transport has no persistent state to
// establish.
func (h *Helper) Open() bool { return true }

// Close is a no-op.
func (h *Helper) Close() error { return nil }

// Write runs the helper with p (trimmed of its trailing CR) as its final
// argument and buffers its stdout for the next Read.
func (h *Helper) Write(p []byte) (int, error) {
	line := strings.TrimRight(string(p), "\r\n")

	args := make([]string, 0, 2)
	if h.FeatureFlag != "" {
		args = append(args, h.FeatureFlag)
	}
	args = append(args, line)

	var stdout bytes.Buffer
	cmd := exec.Command(h.Path, args...)
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return 0, errors.WithMessage(err, "transport: helper invocation failed")
	}

	h.mu.Lock()
	h.pending = stdout.Bytes()
	h.mu.Unlock()

	return len(p), nil
}

// Read returns the output captured by the most recent Write, once. Subsequent
// calls return an empty, error-free slice until the next Write.
func (h *Helper) Read(max int) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.pending) == 0 {
		return nil, nil
	}
	n := len(h.pending)
	if n > max {
		n = max
	}
	out := h.pending[:n]
	h.pending = h.pending[n:]
	return out, nil
}
