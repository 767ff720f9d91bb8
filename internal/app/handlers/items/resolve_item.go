package items

import (
	"context"
	"errors"
	"strings"
	"time"

	"campusfind/internal/app/access"
	"campusfind/internal/app/apperr"
	"campusfind/internal/app/outbox"
	"campusfind/internal/app/uow"
	domainitems "campusfind/internal/domain/items"
)

type ResolveItemCommand struct {
	ItemID string
	Viewer access.Viewer
}

type ResolveItemResult struct {
	Item *domainitems.Item
}

// ResolveItemHandler marks an item returned. Only the owner may do this; the
// status write is the owner's alone, participants are never touched here.
type ResolveItemHandler struct {
	UoWFactory uow.Factory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Now        func() time.Time
}

func (h *ResolveItemHandler) Handle(ctx context.Context, cmd ResolveItemCommand) (*ResolveItemResult, error) {
	if !cmd.Viewer.Authenticated() {
		return nil, apperr.Unauthenticated("sign in required")
	}
	if strings.TrimSpace(cmd.ItemID) == "" {
		return nil, apperr.InvalidArg("item id is required")
	}
	if h.UoWFactory == nil {
		return nil, ErrUnitOfWorkRequired
	}

	unit, err := h.UoWFactory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "begin transaction", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(ctx)
		}
	}()
	ctx = unit.InjectContext(ctx)

	item, err := unit.Items().ByID(ctx, domainitems.ItemID(cmd.ItemID))
	if err != nil {
		if errors.Is(err, domainitems.ErrNotFound) {
			return nil, apperr.NotFound("item not found")
		}
		return nil, apperr.Wrap(apperr.CodeInternal, "load item", err)
	}
	if !item.IsOwner(cmd.Viewer.ID) {
		return nil, apperr.Forbidden("only the poster can resolve an item")
	}

	now := time.Now()
	if h.Now != nil {
		now = h.Now()
	}
	item.Resolve(now)
	if err := unit.Items().Save(ctx, item); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "save item", err)
	}
	pending := item.PendingEvents()
	item.ClearEvents()
	encoder := h.Encoder
	if encoder == nil {
		encoder = outbox.JSONEventEncoder{}
	}
	if err := outbox.RecordDomainEvents(ctx, h.Outbox, encoder, pending); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "record events", err)
	}
	if err := unit.Commit(ctx); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "commit", err)
	}
	committed = true
	return &ResolveItemResult{Item: item}, nil
}
