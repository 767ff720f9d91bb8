package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"campusfind/internal/domain/items"
)

var (
	ErrIDRequired     = errors.New("chat: message id is required")
	ErrItemRequired   = errors.New("chat: item id is required")
	ErrSenderRequired = errors.New("chat: sender is required")
	ErrEmptyContent   = errors.New("chat: content is empty")
)

type MessageID string

// Message is one entry in an item's thread. Immutable once written; ordered
// within the thread by (CreatedAt, Seq), both assigned by the store.
type Message struct {
	ID              MessageID
	ItemID          items.ItemID
	SenderID        string
	SenderName      string
	SenderAvatarURL string
	Content         string
	CreatedAt       time.Time
	Seq             int64
}

type CreateParams struct {
	ID              MessageID
	ItemID          items.ItemID
	SenderID        string
	SenderName      string
	SenderAvatarURL string
	Content         string
}

// NewMessage validates the caller-supplied fields. CreatedAt and Seq stay
// zero; the thread store assigns them on append.
func NewMessage(params CreateParams) (*Message, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, ErrIDRequired
	}
	if strings.TrimSpace(string(params.ItemID)) == "" {
		return nil, ErrItemRequired
	}
	if strings.TrimSpace(params.SenderID) == "" {
		return nil, ErrSenderRequired
	}
	content := strings.TrimSpace(params.Content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	return &Message{
		ID:              params.ID,
		ItemID:          params.ItemID,
		SenderID:        strings.TrimSpace(params.SenderID),
		SenderName:      strings.TrimSpace(params.SenderName),
		SenderAvatarURL: strings.TrimSpace(params.SenderAvatarURL),
		Content:         content,
	}, nil
}

// ThreadRepository persists per-item message threads.
type ThreadRepository interface {
	// Append stores the message, assigning CreatedAt and Seq.
	Append(ctx context.Context, msg *Message) error
	// Latest returns the newest message, or (nil, nil) for an empty thread.
	Latest(ctx context.Context, itemID items.ItemID) (*Message, error)
	// All returns the thread ascending by (CreatedAt, Seq).
	All(ctx context.Context, itemID items.ItemID) ([]*Message, error)
}

// LatestWatch is a live query over one item's newest message. Updates
// delivers the latest message (nil while the thread is empty) after every
// append; Cancel stops the watch and closes the channel.
type LatestWatch interface {
	Updates() <-chan *Message
	Cancel()
}

type Watcher interface {
	WatchLatest(ctx context.Context, itemID items.ItemID) (LatestWatch, error)
}
