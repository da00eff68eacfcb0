// Package notify delivers presence events to an outbound webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/msomdec/workville/internal/domain"
)

// Event types carried in Event.Type.
const (
	TypeStatusChanged = "status_changed"
	TypeWorkSummary   = "work_summary"
)

// Event is the JSON envelope posted to the webhook.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Data       any       `json:"data"`
}

type statusChangedData struct {
	UserID         int64         `json:"userId"`
	Username       string        `json:"username"`
	PreviousStatus domain.Status `json:"previousStatus"`
	NewStatus      domain.Status `json:"newStatus"`
	Timestamp      time.Time     `json:"timestamp"`
}

type workSummaryData struct {
	UserID          int64     `json:"userId"`
	Username        string    `json:"username"`
	DurationMinutes int       `json:"durationMinutes"`
	BreakMinutes    int       `json:"breakMinutes"`
	WorkLogSnapshot string    `json:"workLogSnapshot,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// Nop discards every event. It is used when no webhook is configured.
type Nop struct{}

func (Nop) StatusChanged(domain.StatusChanged) {}
func (Nop) WorkSummary(domain.WorkSummary)     {}

const (
	defaultQueueSize = 64
	defaultTimeout   = 5 * time.Second
)

// Webhook posts events to a URL from a single background worker. Events are
// queued without blocking the caller and dropped when the queue is full.
// Delivery is attempted once.
type Webhook struct {
	url    string
	client *http.Client
	logger *slog.Logger
	queue  chan Event

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// Option configures a Webhook.
type Option func(*Webhook)

// WithHTTPClient replaces the default client, which times out after 5s.
func WithHTTPClient(c *http.Client) Option {
	return func(w *Webhook) { w.client = c }
}

// WithQueueSize sets how many undelivered events may be buffered.
func WithQueueSize(n int) Option {
	return func(w *Webhook) {
		if n > 0 {
			w.queue = make(chan Event, n)
		}
	}
}

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Webhook) { w.logger = l }
}

// NewWebhook starts a webhook notifier. Call Close to flush and stop it.
func NewWebhook(url string, opts ...Option) *Webhook {
	w := &Webhook{
		url:    url,
		client: &http.Client{Timeout: defaultTimeout},
		logger: slog.Default(),
		queue:  make(chan Event, defaultQueueSize),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	go w.run()
	return w
}

// StatusChanged queues a status change event.
func (w *Webhook) StatusChanged(e domain.StatusChanged) {
	w.enqueue(TypeStatusChanged, e.Timestamp, statusChangedData{
		UserID:         e.UserID,
		Username:       e.Username,
		PreviousStatus: e.PreviousStatus,
		NewStatus:      e.NewStatus,
		Timestamp:      e.Timestamp,
	})
}

// WorkSummary queues a work summary event.
func (w *Webhook) WorkSummary(e domain.WorkSummary) {
	w.enqueue(TypeWorkSummary, e.Timestamp, workSummaryData{
		UserID:          e.UserID,
		Username:        e.Username,
		DurationMinutes: e.DurationMinutes,
		BreakMinutes:    e.BreakMinutes,
		WorkLogSnapshot: e.WorkLogSnapshot,
		Timestamp:       e.Timestamp,
	})
}

func (w *Webhook) enqueue(typ string, at time.Time, data any) {
	ev := Event{ID: uuid.NewString(), Type: typ, OccurredAt: at, Data: data}

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.logger.Warn("webhook closed, dropping event", "event_id", ev.ID, "type", typ)
		return
	}
	select {
	case w.queue <- ev:
	default:
		w.logger.Warn("webhook queue full, dropping event", "event_id", ev.ID, "type", typ)
	}
}

func (w *Webhook) run() {
	defer close(w.done)
	for ev := range w.queue {
		if err := w.deliver(context.Background(), ev); err != nil {
			w.logger.Error("deliver webhook event", "event_id", ev.ID, "type", ev.Type, "error", err)
		}
	}
}

func (w *Webhook) deliver(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Workville-Event-Id", ev.ID)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post event: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	return nil
}

// Close stops accepting events and waits for queued ones to be delivered or
// for ctx to expire.
func (w *Webhook) Close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
