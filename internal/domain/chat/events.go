package chat

import (
	"time"

	"campusfind/internal/domain/items"
)

type MessageSentEvent struct {
	MessageID MessageID    `json:"message_id"`
	ItemID    items.ItemID `json:"item_id"`
	SenderID  string       `json:"sender_id"`
	At        time.Time    `json:"at"`
}

func (e MessageSentEvent) EventName() string     { return "chat.message_sent" }
func (e MessageSentEvent) AggregateID() string   { return string(e.ItemID) }
func (e MessageSentEvent) OccurredAt() time.Time { return e.At }
