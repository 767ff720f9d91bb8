package items

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validParams() CreateParams {
	return CreateParams{
		ID:          "item-1",
		OwnerID:     "owner-1",
		Name:        "Blue Backpack",
		Status:      StatusLost,
		Category:    "Bags",
		Description: "Left in the reading hall",
		Location:    "Library",
		Date:        "2026-03-01",
		Now:         time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestNewItemValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*CreateParams)
		want   error
	}{
		{"missing id", func(p *CreateParams) { p.ID = " " }, ErrIDRequired},
		{"missing owner", func(p *CreateParams) { p.OwnerID = "" }, ErrOwnerRequired},
		{"missing name", func(p *CreateParams) { p.Name = "  " }, ErrNameRequired},
		{"resolved at creation", func(p *CreateParams) { p.Status = StatusResolved }, ErrInvalidStatus},
		{"unknown status", func(p *CreateParams) { p.Status = "Misplaced" }, ErrInvalidStatus},
		{"unknown category", func(p *CreateParams) { p.Category = "Gadgets" }, ErrInvalidCategory},
		{"unknown location", func(p *CreateParams) { p.Location = "Rooftop" }, ErrInvalidLocation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params := validParams()
			tc.mutate(&params)
			_, err := NewItem(params)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestNewItemTrimsAndRecords(t *testing.T) {
	params := validParams()
	params.Name = "  Blue Backpack  "
	params.Description = " Left in the reading hall "

	item, err := NewItem(params)
	require.NoError(t, err)
	assert.Equal(t, "Blue Backpack", item.Name)
	assert.Equal(t, "Left in the reading hall", item.Description)
	assert.Empty(t, item.Participants)
	assert.False(t, item.ConversationOpen())
	assert.Equal(t, params.Now, item.CreatedAt)

	recorded := item.PendingEvents()
	require.Len(t, recorded, 1)
	created, ok := recorded[0].(ItemCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, ItemID("item-1"), created.ItemID)
}

func TestBindParticipants(t *testing.T) {
	item, err := NewItem(validParams())
	require.NoError(t, err)
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	require.NoError(t, item.BindParticipants("finder-1", now))
	if diff := cmp.Diff([]string{"owner-1", "finder-1"}, item.Participants); diff != "" {
		t.Fatalf("participants mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, item.ConversationOpen())
	assert.True(t, item.HasParticipant("finder-1"))
	assert.True(t, item.HasParticipant("owner-1"))
	assert.False(t, item.HasParticipant("stranger"))
}

func TestBindParticipantsOnlyOnce(t *testing.T) {
	item, err := NewItem(validParams())
	require.NoError(t, err)
	now := time.Now()

	require.NoError(t, item.BindParticipants("finder-1", now))
	before := append([]string(nil), item.Participants...)

	err = item.BindParticipants("finder-2", now)
	assert.ErrorIs(t, err, ErrAlreadyBound)
	if diff := cmp.Diff(before, item.Participants); diff != "" {
		t.Fatalf("losing bind mutated participants (-want +got):\n%s", diff)
	}
}

func TestBindParticipantsRejectsOwner(t *testing.T) {
	item, err := NewItem(validParams())
	require.NoError(t, err)

	assert.ErrorIs(t, item.BindParticipants("owner-1", time.Now()), ErrOwnerSelfContact)
	assert.ErrorIs(t, item.BindParticipants("  ", time.Now()), ErrOwnerSelfContact)
	assert.Empty(t, item.Participants)
}

func TestResolveIdempotent(t *testing.T) {
	item, err := NewItem(validParams())
	require.NoError(t, err)
	item.ClearEvents()

	first := time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC)
	item.Resolve(first)
	assert.Equal(t, StatusResolved, item.Status)
	assert.Equal(t, first, item.UpdatedAt)
	require.Len(t, item.PendingEvents(), 1)

	item.ClearEvents()
	item.Resolve(first.Add(time.Hour))
	assert.Equal(t, first, item.UpdatedAt)
	assert.Empty(t, item.PendingEvents())
}
