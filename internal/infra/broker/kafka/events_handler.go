package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
)

// IntegrationEvent is the decoded CloudEvents envelope published by the
// outbox worker.
type IntegrationEvent struct {
	ID     string          `json:"id"`
	Type   string          `json:"type"`
	Source string          `json:"source"`
	Time   time.Time       `json:"time"`
	Data   json.RawMessage `json:"data"`
}

// EventSink receives decoded integration events, e.g. a notification fan-out.
type EventSink interface {
	Consume(ctx context.Context, evt IntegrationEvent) error
}

// EventsHandler decodes CloudEvents payloads off the wire and forwards them
// to the sink. Malformed payloads are logged and acknowledged; redelivery
// cannot fix them.
type EventsHandler struct {
	Sink   EventSink
	Logger *slog.Logger
}

func (h *EventsHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var evt IntegrationEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		h.logger().Warn("dropping malformed event", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		return nil
	}
	if h.Sink == nil {
		h.logger().Debug("event received", "type", evt.Type, "id", evt.ID)
		return nil
	}
	return h.Sink.Consume(ctx, evt)
}

func (h *EventsHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
