package outbox

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerTopicRouting(t *testing.T) {
	w := &Worker{}
	assert.Equal(t, "items.events.v1", w.topicFor("items.created"))
	assert.Equal(t, "chat.events.v1", w.topicFor("chat.message_sent"))
	assert.Equal(t, "items.events.v1", w.topicFor("items"))

	prefixed := &Worker{TopicPrefix: "staging."}
	assert.Equal(t, "staging.items.events.v1", prefixed.topicFor("items.resolved"))
}

func TestWorkerBackoffSchedule(t *testing.T) {
	w := &Worker{Backoff: []time.Duration{time.Second, 5 * time.Second}}
	assert.Equal(t, time.Second, w.backoff(0))
	assert.Equal(t, 5*time.Second, w.backoff(1))
	assert.Equal(t, 5*time.Second, w.backoff(7), "past the schedule the last delay repeats")

	bare := &Worker{}
	assert.Equal(t, defaultRetryDelay, bare.backoff(0))
}

func TestWorkerEnvelope(t *testing.T) {
	w := &Worker{}
	doc := &EventDocument{
		ID:         "evt-1",
		Name:       "items.created",
		Aggregate:  "item-1",
		Payload:    []byte(`{"item_id":"item-1"}`),
		Headers:    map[string]string{"traceparent": "00-abc-def-01"},
		OccurredAt: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}

	payload, headers, err := w.envelope(doc)
	require.NoError(t, err)
	assert.Equal(t, "application/cloudevents+json", headers["content-type"])
	assert.Equal(t, "00-abc-def-01", headers["traceparent"])

	var evt map[string]any
	require.NoError(t, json.Unmarshal(payload, &evt))
	assert.Equal(t, "1.0", evt["specversion"])
	assert.Equal(t, "items.created.v1", evt["type"])
	assert.Equal(t, "app://campusfind", evt["source"])
	assert.Equal(t, "00-abc-def-01", evt["traceparent"])
	assert.Equal(t, map[string]any{"item_id": "item-1"}, evt["data"])
	assert.NotEmpty(t, evt["id"])

	_, _, err = w.envelope(&EventDocument{Payload: []byte("not json")})
	require.Error(t, err)
}
