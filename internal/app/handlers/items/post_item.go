package items

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"campusfind/internal/app/access"
	"campusfind/internal/app/apperr"
	"campusfind/internal/app/outbox"
	"campusfind/internal/app/uow"
	domainitems "campusfind/internal/domain/items"
)

var ErrUnitOfWorkRequired = errors.New("items: unit of work factory required")

type PostItemCommand struct {
	Owner       access.Viewer
	Name        string
	Status      domainitems.Status
	Category    string
	Description string
	Location    string
	Date        string
	ImageURL    string
}

type PostItemResult struct {
	Item *domainitems.Item
}

// PostItemHandler creates a Lost or Found listing owned by the poster.
type PostItemHandler struct {
	UoWFactory uow.Factory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Now        func() time.Time
}

func (h *PostItemHandler) Handle(ctx context.Context, cmd PostItemCommand) (*PostItemResult, error) {
	if !cmd.Owner.Authenticated() {
		return nil, apperr.Unauthenticated("sign in to post items")
	}
	if h.UoWFactory == nil {
		return nil, ErrUnitOfWorkRequired
	}

	now := time.Now().UTC()
	if h.Now != nil {
		now = h.Now().UTC()
	}
	item, err := domainitems.NewItem(domainitems.CreateParams{
		ID:          domainitems.ItemID(uuid.NewString()),
		OwnerID:     cmd.Owner.ID,
		Name:        cmd.Name,
		Status:      cmd.Status,
		Category:    cmd.Category,
		Description: cmd.Description,
		Location:    cmd.Location,
		Date:        cmd.Date,
		ImageURL:    cmd.ImageURL,
		Now:         now,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInvalidArgument, "invalid listing", err)
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

	if err := unit.Items().Save(ctx, item); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "save item", err)
	}
	pending := item.PendingEvents()
	item.ClearEvents()
	if err := outbox.RecordDomainEvents(ctx, h.Outbox, h.encoder(), pending); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "record events", err)
	}
	if err := unit.Commit(ctx); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "commit", err)
	}
	committed = true
	return &PostItemResult{Item: item}, nil
}

func (h *PostItemHandler) encoder() outbox.EventEncoder {
	if h.Encoder != nil {
		return h.Encoder
	}
	return outbox.JSONEventEncoder{}
}
