package dto

import (
	"time"

	"campusfind/internal/app/access"
	domainitems "campusfind/internal/domain/items"
)

type Item struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	Name         string    `json:"name"`
	Status       string    `json:"status"`
	Category     string    `json:"category"`
	Description  string    `json:"description,omitempty"`
	Location     string    `json:"location"`
	Date         string    `json:"date,omitempty"`
	ImageURL     string    `json:"image_url,omitempty"`
	Participants []string  `json:"participants,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ItemView pairs an item with the viewer's access decision so the client can
// render the contact button without re-deriving the rules.
type ItemView struct {
	Item   Item         `json:"item"`
	Access AccessResult `json:"access"`
}

type AccessResult struct {
	Outcome     string `json:"outcome"`
	Pending     bool   `json:"pending"`
	CanRead     bool   `json:"can_read"`
	CanSend     bool   `json:"can_send"`
	CTALabel    string `json:"cta_label"`
	CTADisabled bool   `json:"cta_disabled"`
}

type ItemList struct {
	Items []Item `json:"items"`
}

func MapItem(item *domainitems.Item) Item {
	if item == nil {
		return Item{}
	}
	return Item{
		ID:           string(item.ID),
		OwnerID:      item.OwnerID,
		Name:         item.Name,
		Status:       string(item.Status),
		Category:     item.Category,
		Description:  item.Description,
		Location:     item.Location,
		Date:         item.Date,
		ImageURL:     item.ImageURL,
		Participants: append([]string(nil), item.Participants...),
		CreatedAt:    item.CreatedAt,
		UpdatedAt:    item.UpdatedAt,
	}
}

func MapItems(items []*domainitems.Item) ItemList {
	out := ItemList{Items: make([]Item, 0, len(items))}
	for _, item := range items {
		out.Items = append(out.Items, MapItem(item))
	}
	return out
}

func MapAccess(d access.Decision) AccessResult {
	return AccessResult{
		Outcome:     string(d.Outcome),
		Pending:     d.Pending,
		CanRead:     d.CanRead,
		CanSend:     d.CanSend,
		CTALabel:    d.CTALabel,
		CTADisabled: d.CTADisabled,
	}
}
