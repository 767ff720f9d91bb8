package dto

import (
	"time"

	"campusfind/internal/app/inbox"
	domainchat "campusfind/internal/domain/chat"
)

type Message struct {
	ID              string    `json:"id"`
	ItemID          string    `json:"item_id"`
	SenderID        string    `json:"sender_id"`
	SenderName      string    `json:"sender_name,omitempty"`
	SenderAvatarURL string    `json:"sender_avatar_url,omitempty"`
	Content         string    `json:"content"`
	CreatedAt       time.Time `json:"created_at"`
}

type MessageList struct {
	Messages []Message `json:"messages"`
}

type SendMessageResponse struct {
	Message Message `json:"message"`
	Bound   bool    `json:"bound"`
}

func MapMessage(msg *domainchat.Message) Message {
	if msg == nil {
		return Message{}
	}
	return Message{
		ID:              string(msg.ID),
		ItemID:          string(msg.ItemID),
		SenderID:        msg.SenderID,
		SenderName:      msg.SenderName,
		SenderAvatarURL: msg.SenderAvatarURL,
		Content:         msg.Content,
		CreatedAt:       msg.CreatedAt,
	}
}

func MapMessages(msgs []*domainchat.Message) MessageList {
	out := MessageList{Messages: make([]Message, 0, len(msgs))}
	for _, msg := range msgs {
		out.Messages = append(out.Messages, MapMessage(msg))
	}
	return out
}

// InboxConversation is one row of the aggregated inbox snapshot.
type InboxConversation struct {
	Item        Item      `json:"item"`
	LastMessage *Message  `json:"last_message,omitempty"`
	EffectiveAt time.Time `json:"effective_at"`
}

type InboxSnapshot struct {
	Conversations []InboxConversation `json:"conversations"`
}

func MapInbox(list []inbox.Conversation) InboxSnapshot {
	out := InboxSnapshot{Conversations: make([]InboxConversation, 0, len(list))}
	for _, conv := range list {
		row := InboxConversation{
			Item:        MapItem(conv.Item),
			EffectiveAt: conv.EffectiveTime(),
		}
		if conv.LastMessage != nil {
			msg := MapMessage(conv.LastMessage)
			row.LastMessage = &msg
		}
		out.Conversations = append(out.Conversations, row)
	}
	return out
}
