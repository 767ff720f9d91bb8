package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrWorkerNotConfigured = errors.New("outbox: worker missing dependencies")

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultRetryDelay   = 5 * time.Second
	defaultSource       = "app://campusfind"
)

type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// Worker relays claimed outbox documents to Kafka as CloudEvents. Each poll
// drains every due document before sleeping, so a burst of writes does not
// wait one tick per event. Failed dispatches are rescheduled with the
// per-attempt backoff and picked up again later.
type Worker struct {
	Store       *Store
	Producer    Producer
	Logger      *slog.Logger
	Interval    time.Duration
	TopicPrefix string
	Source      string
	ID          string
	Backoff     []time.Duration
}

func (w *Worker) Run(ctx context.Context) error {
	if w.Store == nil || w.Producer == nil {
		return ErrWorkerNotConfigured
	}
	workerID := w.workerID()
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.drain(ctx, workerID); err != nil {
				return err
			}
		}
	}
}

// drain dispatches documents until the store has nothing due. Only a store
// error stops the worker; dispatch failures just reschedule the document.
func (w *Worker) drain(ctx context.Context, workerID string) error {
	for {
		doc, err := w.Store.Claim(ctx, workerID)
		if err != nil {
			return fmt.Errorf("outbox: claim: %w", err)
		}
		if doc == nil {
			return nil
		}
		w.dispatch(ctx, doc)
	}
}

func (w *Worker) dispatch(ctx context.Context, doc *EventDocument) {
	payload, headers, err := w.envelope(doc)
	if err != nil {
		w.reschedule(ctx, doc, err)
		return
	}
	topic := w.topicFor(doc.Name)
	if err := w.Producer.Publish(ctx, topic, doc.Aggregate, payload, headers); err != nil {
		w.reschedule(ctx, doc, err)
		return
	}
	if err := w.Store.MarkSent(ctx, doc.ID); err != nil {
		w.logger().Warn("outbox mark-sent failed", "event_id", doc.ID, "error", err)
		return
	}
	w.logger().Debug("outbox event published", "event_id", doc.ID, "name", doc.Name, "topic", topic)
}

func (w *Worker) reschedule(ctx context.Context, doc *EventDocument, cause error) {
	retryAt := time.Now().Add(w.backoff(doc.Attempts))
	w.logger().Warn("outbox dispatch failed",
		"event_id", doc.ID,
		"name", doc.Name,
		"attempts", doc.Attempts+1,
		"retry_at", retryAt,
		"error", cause,
	)
	if err := w.Store.MarkFailed(ctx, doc.ID, retryAt, cause.Error()); err != nil {
		w.logger().Warn("outbox mark-failed failed", "event_id", doc.ID, "error", err)
	}
}

// envelope wraps the stored payload in a CloudEvents 1.0 JSON envelope.
// A traceparent header recorded with the event is promoted into the envelope
// so consumers can continue the trace.
func (w *Worker) envelope(doc *EventDocument) ([]byte, map[string]string, error) {
	var data map[string]any
	if err := json.Unmarshal(doc.Payload, &data); err != nil {
		return nil, nil, fmt.Errorf("outbox: decode payload: %w", err)
	}
	evt := map[string]any{
		"specversion":     "1.0",
		"id":              uuid.NewString(),
		"type":            doc.Name + ".v1",
		"source":          w.source(),
		"time":            doc.OccurredAt,
		"datacontenttype": "application/json",
		"data":            data,
	}
	if trace, ok := doc.Headers["traceparent"]; ok {
		evt["traceparent"] = trace
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, nil, fmt.Errorf("outbox: encode envelope: %w", err)
	}
	headers := map[string]string{"content-type": "application/cloudevents+json"}
	for k, v := range doc.Headers {
		headers[k] = v
	}
	return payload, headers, nil
}

// topicFor routes an event by its name prefix: "items.created" goes to
// "items.events.v1", "chat.message_sent" to "chat.events.v1".
func (w *Worker) topicFor(name string) string {
	base, _, found := strings.Cut(name, ".")
	if !found || base == "" {
		base = name
	}
	return w.TopicPrefix + base + ".events.v1"
}

func (w *Worker) backoff(attempts int) time.Duration {
	if len(w.Backoff) == 0 {
		return defaultRetryDelay
	}
	if attempts >= len(w.Backoff) {
		return w.Backoff[len(w.Backoff)-1]
	}
	return w.Backoff[attempts]
}

func (w *Worker) workerID() string {
	if w.ID != "" {
		return w.ID
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		return uuid.NewString()
	}
	return host + "-" + uuid.NewString()[:8]
}

func (w *Worker) interval() time.Duration {
	if w.Interval <= 0 {
		return defaultPollInterval
	}
	return w.Interval
}

func (w *Worker) source() string {
	if w.Source != "" {
		return w.Source
	}
	return defaultSource
}

func (w *Worker) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}
