package arbiter_test

import (
	"errors"
	"sync"
)

var errReadFailed = errors.New("fakeTransport: read failed")

// fakeTransport is a queue-based transport.Transport double modeled on
// i4energy-sms-gateway's TestTransport: writes are recorded, and queued
// chunks are handed back one at a time by Read without ever blocking past
// what is already queued.
type fakeTransport struct {
	mu      sync.Mutex
	written [][]byte
	queue   [][]byte
	failing bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{}
}

func (f *fakeTransport) Open() bool { return true }

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]byte(nil), p...)
	f.written = append(f.written, cp)
	return len(p), nil
}

func (f *fakeTransport) Read(max int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return nil, errReadFailed
	}
	if len(f.queue) == 0 {
		return nil, nil
	}
	next := f.queue[0]
	f.queue = f.queue[1:]
	if len(next) > max {
		panic("fakeTransport: chunk larger than max requested")
	}
	return next, nil
}

// push queues raw bytes to be returned by a future Read.
func (f *fakeTransport) push(data string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, []byte(data))
}

func (f *fakeTransport) setFailing() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = true
}

func (f *fakeTransport) lastWritten() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.written) == 0 {
		return ""
	}
	return string(f.written[len(f.written)-1])
}
