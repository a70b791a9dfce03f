package notify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const separator = "--------------------------------------------------"

// LogFile appends each notification to a local file, one timestamped block
// per job, separated by a dashed line.
type LogFile struct {
	Path string

	mu sync.Mutex
}

// NewLogFile resolves path to an absolute location, creates its parent
// directory if needed, and verifies the file is writable before returning.
func NewLogFile(path string) (*LogFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.WithMessage(err, "notify: resolve log file path")
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, errors.WithMessage(err, "notify: create log file directory")
	}
	f, err := os.OpenFile(abs, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.WithMessage(err, "notify: log file is not writable")
	}
	f.Close()

	return &LogFile{Path: abs}, nil
}

// Enqueue implements Channel by writing synchronously; file appends are
// cheap enough not to need batching.
func (l *LogFile) Enqueue(job Job) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()

	fmt.Fprintf(f, "%s\n%s: %s\n%s\n",
		job.CreatedAt.Format(time.RFC3339), job.SenderLabel, job.Body, separator)
}

// Run implements Channel; LogFile has no background work, so Run simply
// waits for cancellation.
func (l *LogFile) Run(ctx context.Context) {
	<-ctx.Done()
}
