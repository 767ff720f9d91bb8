package chat

import (
	"context"
	"errors"
	"strings"

	"campusfind/internal/app/access"
	"campusfind/internal/app/apperr"
	"campusfind/internal/app/handlers/support"
	"campusfind/internal/app/uow"
	domainchat "campusfind/internal/domain/chat"
	domainitems "campusfind/internal/domain/items"
)

type ListMessagesQuery struct {
	ItemID string
	Viewer access.Viewer
}

type ListMessagesResult struct {
	Item     *domainitems.Item
	Messages []*domainchat.Message
	Decision access.Decision
}

// ListMessagesHandler returns an item's thread in server-timestamp order,
// gated by the access controller.
type ListMessagesHandler struct {
	UoWFactory uow.Factory
}

func (h *ListMessagesHandler) Handle(ctx context.Context, query ListMessagesQuery) (*ListMessagesResult, error) {
	if strings.TrimSpace(query.ItemID) == "" {
		return nil, apperr.InvalidArg("item id is required")
	}
	unit, ctx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "begin transaction", err)
	}
	defer cleanup()

	item, err := unit.Items().ByID(ctx, domainitems.ItemID(query.ItemID))
	if err != nil {
		if errors.Is(err, domainitems.ErrNotFound) {
			return nil, apperr.NotFound("item not found")
		}
		return nil, apperr.Wrap(apperr.CodeInternal, "load item", err)
	}

	decision := access.Decide(query.Viewer, item)
	if !decision.CanRead {
		if decision.Outcome == access.Unauthenticated {
			return nil, apperr.Unauthenticated("sign in to view messages")
		}
		return nil, apperr.Forbidden("you are not part of this conversation")
	}

	messages, err := unit.Threads().All(ctx, item.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "load messages", err)
	}
	return &ListMessagesResult{Item: item, Messages: messages, Decision: decision}, nil
}
