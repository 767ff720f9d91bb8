package items

import (
	"context"
	"errors"
	"strings"

	"campusfind/internal/app/access"
	"campusfind/internal/app/apperr"
	"campusfind/internal/app/handlers/support"
	"campusfind/internal/app/uow"
	domainitems "campusfind/internal/domain/items"
)

type GetItemQuery struct {
	ItemID string
	Viewer access.Viewer
}

type GetItemResult struct {
	Item     *domainitems.Item
	Decision access.Decision
}

type GetItemHandler struct {
	UoWFactory uow.Factory
}

func (h *GetItemHandler) Handle(ctx context.Context, query GetItemQuery) (*GetItemResult, error) {
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
	return &GetItemResult{Item: item, Decision: access.Decide(query.Viewer, item)}, nil
}

type ListItemsQuery struct {
	Filter domainitems.Filter
}

type ListItemsResult struct {
	Items []*domainitems.Item
}

type ListItemsHandler struct {
	UoWFactory uow.Factory
}

func (h *ListItemsHandler) Handle(ctx context.Context, query ListItemsQuery) (*ListItemsResult, error) {
	unit, ctx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "begin transaction", err)
	}
	defer cleanup()

	list, err := unit.Items().List(ctx, query.Filter)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "list items", err)
	}
	return &ListItemsResult{Items: list}, nil
}
