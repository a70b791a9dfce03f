package notify_test

import (
	"context"
	"sync"
	"testing"

	"github.com/across-iot/cellgw/notify"
)

type recordingChannel struct {
	mu   sync.Mutex
	jobs []notify.Job
}

func (c *recordingChannel) Enqueue(job notify.Job) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobs = append(c.jobs, job)
}

func (c *recordingChannel) Run(ctx context.Context) {
	<-ctx.Done()
}

func (c *recordingChannel) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.jobs)
}

func TestManager_PublishFansOutToAllChannels(t *testing.T) {
	a := &recordingChannel{}
	b := &recordingChannel{}
	m := notify.NewManager(nil, nil, a, b)

	m.Publish("new_sms", "13800138000", "hello")

	if a.len() != 1 || b.len() != 1 {
		t.Fatalf("a=%d b=%d, want 1 each", a.len(), b.len())
	}
}

func TestManager_DisabledKindIsDropped(t *testing.T) {
	a := &recordingChannel{}
	m := notify.NewManager(map[string]bool{"new_sms": false}, nil, a)

	m.Publish("new_sms", "13800138000", "hello")

	if a.len() != 0 {
		t.Fatalf("a=%d, want 0 for a disabled kind", a.len())
	}
}

func TestManager_EmptyBodyIsDropped(t *testing.T) {
	a := &recordingChannel{}
	m := notify.NewManager(nil, nil, a)

	m.Publish("signal", "sender", "")

	if a.len() != 0 {
		t.Fatalf("a=%d, want 0 for an empty body", a.len())
	}
}
