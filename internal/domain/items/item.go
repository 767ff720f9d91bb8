package items

import (
	"context"
	"errors"
	"strings"
	"time"

	"campusfind/internal/domain/shared/events"
)

var (
	ErrIDRequired       = errors.New("items: id is required")
	ErrOwnerRequired    = errors.New("items: owner is required")
	ErrNameRequired     = errors.New("items: name is required")
	ErrInvalidStatus    = errors.New("items: status must be Lost or Found")
	ErrInvalidCategory  = errors.New("items: unknown category")
	ErrInvalidLocation  = errors.New("items: unknown location")
	ErrAlreadyBound     = errors.New("items: conversation participants already bound")
	ErrOwnerSelfContact = errors.New("items: owner cannot be the contacting party")
	ErrNotFound         = errors.New("items: not found")
)

type ItemID string

type Status string

const (
	StatusLost     Status = "Lost"
	StatusFound    Status = "Found"
	StatusResolved Status = "Resolved"
)

// Categories is the posting vocabulary shown in the listing form.
var Categories = []string{
	"Electronics",
	"Books",
	"ID Cards",
	"Accessories",
	"Clothing",
	"Bags",
	"Other",
}

// Locations is the campus location vocabulary.
var Locations = []string{
	"Hostel",
	"Library",
	"Classroom",
	"Cafeteria",
	"Sports Complex",
	"Admin Building",
	"Other",
}

// Item is a posted lost-or-found listing. Participants holds the two
// conversation parties once the first non-owner message binds them; it is
// empty before that and never grows past two entries.
type Item struct {
	ID           ItemID
	OwnerID      string
	Name         string
	Status       Status
	Category     string
	Description  string
	Location     string
	Date         string // ISO 8601 date the item was lost/found
	ImageURL     string
	Participants []string
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	events.EventRecorder
}

type Filter struct {
	Status   Status
	Category string
	Location string
	Query    string
	OwnerID  string
}

type Repository interface {
	ByID(ctx context.Context, id ItemID) (*Item, error)
	Save(ctx context.Context, item *Item) error
	List(ctx context.Context, filter Filter) ([]*Item, error)
	// ForUser returns items the user owns or participates in.
	ForUser(ctx context.Context, userID string) ([]*Item, error)
}

// SetWatch is a live query over the set of items qualifying for one user.
// Updates delivers the full current set after every change; Cancel stops the
// watch and closes the channel.
type SetWatch interface {
	Updates() <-chan []*Item
	Cancel()
}

// Watcher opens live item-set queries for the inbox aggregator.
type Watcher interface {
	WatchForUser(ctx context.Context, userID string) (SetWatch, error)
}

type CreateParams struct {
	ID          ItemID
	OwnerID     string
	Name        string
	Status      Status
	Category    string
	Description string
	Location    string
	Date        string
	ImageURL    string
	Now         time.Time
}

func NewItem(params CreateParams) (*Item, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, ErrIDRequired
	}
	if strings.TrimSpace(params.OwnerID) == "" {
		return nil, ErrOwnerRequired
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if params.Status != StatusLost && params.Status != StatusFound {
		return nil, ErrInvalidStatus
	}
	if !vocabContains(Categories, params.Category) {
		return nil, ErrInvalidCategory
	}
	if !vocabContains(Locations, params.Location) {
		return nil, ErrInvalidLocation
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	item := &Item{
		ID:          params.ID,
		OwnerID:     strings.TrimSpace(params.OwnerID),
		Name:        name,
		Status:      params.Status,
		Category:    params.Category,
		Description: strings.TrimSpace(params.Description),
		Location:    params.Location,
		Date:        strings.TrimSpace(params.Date),
		ImageURL:    strings.TrimSpace(params.ImageURL),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	item.Record(ItemCreatedEvent{ItemID: item.ID, OwnerID: item.OwnerID, Status: item.Status, At: now})
	return item, nil
}

// Resolve marks the item returned to its owner. Idempotent.
func (i *Item) Resolve(now time.Time) {
	if i.Status == StatusResolved {
		return
	}
	now = now.UTC()
	i.Status = StatusResolved
	i.UpdatedAt = now
	i.Record(ItemResolvedEvent{ItemID: i.ID, OwnerID: i.OwnerID, At: now})
}

// BindParticipants fixes the two conversation parties: the owner and the
// first non-owner to message. It may succeed at most once per item.
func (i *Item) BindParticipants(contactID string, now time.Time) error {
	contactID = strings.TrimSpace(contactID)
	if contactID == "" || contactID == i.OwnerID {
		return ErrOwnerSelfContact
	}
	if len(i.Participants) != 0 {
		return ErrAlreadyBound
	}
	now = now.UTC()
	i.Participants = []string{i.OwnerID, contactID}
	i.UpdatedAt = now
	i.Record(ParticipantsBoundEvent{ItemID: i.ID, OwnerID: i.OwnerID, ContactID: contactID, At: now})
	return nil
}

// ConversationOpen reports whether the participant pair has been bound.
func (i *Item) ConversationOpen() bool {
	return len(i.Participants) > 0
}

func (i *Item) HasParticipant(userID string) bool {
	for _, p := range i.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

func (i *Item) IsOwner(userID string) bool {
	return userID != "" && userID == i.OwnerID
}

func vocabContains(vocab []string, value string) bool {
	for _, v := range vocab {
		if v == value {
			return true
		}
	}
	return false
}
