package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"campusfind/internal/app/access"
	"campusfind/internal/app/apperr"
	"campusfind/internal/app/outbox"
	"campusfind/internal/app/uow"
	domainchat "campusfind/internal/domain/chat"
	domainitems "campusfind/internal/domain/items"
)

// SendMessageCommand carries one message into an item's thread. The sender
// identity comes from the resolved principal, never from the payload.
type SendMessageCommand struct {
	ItemID string
	Sender access.Viewer
	Text   string
}

type SendMessageResult struct {
	Message *domainchat.Message
	// Bound reports whether this send created the participant pairing.
	Bound bool
}

// SendMessageHandler runs the first-contact binding protocol: inside one
// transaction it re-reads the item, binds the two-party participant set on a
// non-owner's first message, and appends the message. Concurrent first
// messages race on the participants field; the transaction decides exactly
// one winner and the loser surfaces PERMISSION_DENIED with nothing written.
type SendMessageHandler struct {
	UoWFactory uow.Factory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Now        func() time.Time
}

var ErrUnitOfWorkRequired = errors.New("chat: unit of work factory required")

func (h *SendMessageHandler) Handle(ctx context.Context, cmd SendMessageCommand) (*SendMessageResult, error) {
	text := strings.TrimSpace(cmd.Text)
	if text == "" {
		return nil, apperr.InvalidArg("message text is required")
	}
	if !cmd.Sender.Authenticated() {
		return nil, apperr.Unauthenticated("sign in to send messages")
	}
	if strings.TrimSpace(cmd.ItemID) == "" {
		return nil, apperr.InvalidArg("item id is required")
	}

	unit, ok := uow.FromContext(ctx)
	managed := false
	committed := false
	if !ok {
		if h.UoWFactory == nil {
			return nil, ErrUnitOfWorkRequired
		}
		var err error
		unit, err = h.UoWFactory.Begin(ctx, uow.TxOptions{})
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeInternal, "begin transaction", err)
		}
		ctx = uow.ContextWithUnitOfWork(unit.InjectContext(ctx), unit)
		managed = true
	}
	if managed {
		defer func() {
			if !committed {
				_ = unit.Rollback(ctx)
			}
		}()
	}

	// Fresh read inside the transaction; the access check before the UI
	// opened the compose box may be stale by now.
	item, err := unit.Items().ByID(ctx, domainitems.ItemID(cmd.ItemID))
	if err != nil {
		if errors.Is(err, domainitems.ErrNotFound) {
			return nil, apperr.NotFound("item not found")
		}
		return nil, apperr.Wrap(apperr.CodeInternal, "load item", err)
	}

	decision := access.Decide(cmd.Sender, item)
	switch decision.Outcome {
	case access.Blocked:
		return nil, apperr.Forbidden("conversation already has its two participants")
	case access.Closed:
		return nil, apperr.Forbidden("item is resolved; the conversation is closed")
	case access.Unauthenticated:
		return nil, apperr.Unauthenticated("sign in to send messages")
	}

	now := h.now()
	bound := false
	if !item.ConversationOpen() && !item.IsOwner(cmd.Sender.ID) {
		if err := item.BindParticipants(cmd.Sender.ID, now); err != nil {
			return nil, apperr.Wrap(apperr.CodePermissionDenied, "bind participants", err)
		}
		if err := unit.Items().Save(ctx, item); err != nil {
			if errors.Is(err, uow.ErrConflict) {
				// The version check failed: another first message bound
				// the participant set between our read and this write.
				return nil, apperr.Forbidden("conversation already has its two participants")
			}
			return nil, apperr.Wrap(apperr.CodeInternal, "save item", err)
		}
		bound = true
	} else if item.ConversationOpen() && !item.HasParticipant(cmd.Sender.ID) {
		return nil, apperr.Forbidden("conversation already has its two participants")
	}

	msg, err := domainchat.NewMessage(domainchat.CreateParams{
		ID:              domainchat.MessageID(uuid.NewString()),
		ItemID:          item.ID,
		SenderID:        cmd.Sender.ID,
		SenderName:      cmd.Sender.Name,
		SenderAvatarURL: cmd.Sender.AvatarURL,
		Content:         text,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInvalidArgument, "build message", err)
	}
	if err := unit.Threads().Append(ctx, msg); err != nil {
		if errors.Is(err, uow.ErrConflict) {
			return nil, apperr.Forbidden("conversation already has its two participants")
		}
		return nil, apperr.Wrap(apperr.CodeInternal, "append message", err)
	}

	pending := item.PendingEvents()
	item.ClearEvents()
	events := append(pending, domainchat.MessageSentEvent{
		MessageID: msg.ID,
		ItemID:    item.ID,
		SenderID:  msg.SenderID,
		At:        msg.CreatedAt,
	})
	if err := outbox.RecordDomainEvents(ctx, h.Outbox, h.encoder(), events); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "record events", err)
	}

	if managed {
		if err := unit.Commit(ctx); err != nil {
			if errors.Is(err, uow.ErrConflict) {
				// Two first messages raced and this one lost; the
				// participant set belongs to the winner now.
				return nil, apperr.Forbidden("conversation already has its two participants")
			}
			return nil, apperr.Wrap(apperr.CodeInternal, "commit", err)
		}
		committed = true
	}

	return &SendMessageResult{Message: msg, Bound: bound}, nil
}

func (h *SendMessageHandler) encoder() outbox.EventEncoder {
	if h.Encoder != nil {
		return h.Encoder
	}
	return outbox.JSONEventEncoder{}
}

func (h *SendMessageHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}
