package items

import "time"

type ItemCreatedEvent struct {
	ItemID  ItemID    `json:"item_id"`
	OwnerID string    `json:"owner_id"`
	Status  Status    `json:"status"`
	At      time.Time `json:"at"`
}

func (e ItemCreatedEvent) EventName() string     { return "items.created" }
func (e ItemCreatedEvent) AggregateID() string   { return string(e.ItemID) }
func (e ItemCreatedEvent) OccurredAt() time.Time { return e.At }

type ItemResolvedEvent struct {
	ItemID  ItemID    `json:"item_id"`
	OwnerID string    `json:"owner_id"`
	At      time.Time `json:"at"`
}

func (e ItemResolvedEvent) EventName() string     { return "items.resolved" }
func (e ItemResolvedEvent) AggregateID() string   { return string(e.ItemID) }
func (e ItemResolvedEvent) OccurredAt() time.Time { return e.At }

type ParticipantsBoundEvent struct {
	ItemID    ItemID    `json:"item_id"`
	OwnerID   string    `json:"owner_id"`
	ContactID string    `json:"contact_id"`
	At        time.Time `json:"at"`
}

func (e ParticipantsBoundEvent) EventName() string     { return "items.participants_bound" }
func (e ParticipantsBoundEvent) AggregateID() string   { return string(e.ItemID) }
func (e ParticipantsBoundEvent) OccurredAt() time.Time { return e.At }
