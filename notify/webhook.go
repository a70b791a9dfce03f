package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	// MaxPending bounds the webhook's queue; the oldest job is dropped on
	// overflow.
	MaxPending = 1000
	// BatchInterval is how often queued jobs are flushed in one request.
	BatchInterval = 60 * time.Second
	// postTimeout bounds a single delivery attempt.
	postTimeout = 5 * time.Second
	// maxAttempts is the number of delivery attempts per batch before the
	// batch is dropped.
	maxAttempts = 3
)

type webhookText struct {
	Content string `json:"content"`
}

type webhookPayload struct {
	MsgType string      `json:"msgtype"`
	Text    webhookText `json:"text"`
}

type webhookResult struct {
	ErrCode int `json:"errcode"`
}

// Webhook delivers batched notifications to an HTTP endpoint as a single
// JSON POST, retrying with linear backoff on failure.
type Webhook struct {
	URL    string
	Client *http.Client
	Log    *slog.Logger

	mu      sync.Mutex
	pending []Job
}

// NewWebhook creates a Webhook channel posting to url.
func NewWebhook(url string, log *slog.Logger) *Webhook {
	if log == nil {
		log = slog.Default()
	}
	return &Webhook{
		URL:    url,
		Client: &http.Client{Timeout: postTimeout},
		Log:    log,
	}
}

// Enqueue implements Channel.
func (w *Webhook) Enqueue(job Job) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.pending) >= MaxPending {
		w.pending = w.pending[1:]
	}
	w.pending = append(w.pending, job)
}

// Run implements Channel, flushing the queue every BatchInterval.
func (w *Webhook) Run(ctx context.Context) {
	ticker := time.NewTicker(BatchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Flush(ctx)
		}
	}
}

// Flush delivers whatever is currently queued immediately, retrying per the
// same policy as the periodic batch. Run calls it on every tick. Run does
// not flush on cancellation: jobs still queued when ctx is canceled are not
// delivered.
func (w *Webhook) Flush(ctx context.Context) {
	w.mu.Lock()
	batch := w.pending
	w.pending = nil
	w.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	payload := webhookPayload{MsgType: "text", Text: webhookText{Content: digest(batch)}}
	body, err := json.Marshal(payload)
	if err != nil {
		w.Log.Error("notify: failed to marshal webhook batch", "error", err)
		return
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if w.post(ctx, body) {
			return
		}
		if attempt < maxAttempts {
			select {
			case <-time.After(time.Duration(attempt) * time.Second):
			case <-ctx.Done():
				return
			}
		}
	}
	w.Log.Warn("notify: dropping webhook batch after exhausting retries", "messages", len(batch))
}

// digest renders a batch for a single webhook POST: a single entry gets its
// kind-specific template (render), while multiple entries are folded into a
// numbered digest, one line per job.
func digest(batch []Job) string {
	if len(batch) == 1 {
		return render(batch[0])
	}
	var b strings.Builder
	for i, job := range batch {
		fmt.Fprintf(&b, "%d. [%s] %s: %s\n", i+1, job.Kind, job.SenderLabel, job.Body)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Notification kinds, mirroring the urc.Kind* constants a Job.Kind is set
// from; duplicated here rather than imported to avoid a urc->notify->urc
// dependency from ever forming.
const (
	kindNewSMS       = "new_sms"
	kindIncomingCall = "incoming_call"
	kindMemoryFull   = "memory_full"
	kindSignal       = "signal"
)

// render formats a single job per its kind-specific template (spec §4.5):
// SMS and incoming-call notifications get a labeled Chinese header, memory-
// full notifications are a fixed warning, and a signal sample is already
// pre-formatted by the handler that produced it.
func render(job Job) string {
	switch job.Kind {
	case kindNewSMS:
		return fmt.Sprintf("📱 新短信通知\n发送者: %s\n内容: %s", job.SenderLabel, job.Body)
	case kindIncomingCall:
		return fmt.Sprintf("📞 来电提醒\n号码: %s\n%s", job.SenderLabel, job.Body)
	case kindMemoryFull:
		return "⚠️ 存储空间已满"
	case kindSignal:
		return job.Body
	default:
		return job.Body
	}
}

func (w *Webhook) post(ctx context.Context, body []byte) bool {
	reqCtx, cancel := context.WithTimeout(ctx, postTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		w.Log.Error("notify: failed to build webhook request", "error", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.Client.Do(req)
	if err != nil {
		w.Log.Warn("notify: webhook request failed", "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		w.Log.Warn("notify: webhook returned non-200", "status", resp.StatusCode)
		return false
	}

	var result webhookResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		w.Log.Warn("notify: webhook response was not valid JSON", "error", err)
		return false
	}
	return result.ErrCode == 0
}
