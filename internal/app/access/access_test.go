package access

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainitems "campusfind/internal/domain/items"
)

func testItem(t *testing.T, status domainitems.Status, participants []string) *domainitems.Item {
	t.Helper()
	item, err := domainitems.NewItem(domainitems.CreateParams{
		ID:       "item-1",
		OwnerID:  "owner",
		Name:     "Blue Backpack",
		Status:   domainitems.StatusLost,
		Category: "Bags",
		Location: "Library",
		Now:      time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	item.Status = status
	item.Participants = participants
	return item
}

func TestDecideTotality(t *testing.T) {
	viewers := map[string]Viewer{
		"anonymous": {},
		"owner":     {ID: "owner"},
		"partyA":    {ID: "alice"},
		"partyB":    {ID: "bob"},
		"stranger":  {ID: "mallory"},
	}
	statuses := []domainitems.Status{domainitems.StatusLost, domainitems.StatusFound, domainitems.StatusResolved}
	participantSets := map[string][]string{
		"unbound": nil,
		"bound":   {"owner", "alice"},
	}
	valid := map[Outcome]bool{
		Unauthenticated: true,
		Closed:          true,
		OwnerView:       true,
		OpenToContact:   true,
		ParticipantView: true,
		Blocked:         true,
	}

	for vName, viewer := range viewers {
		for _, status := range statuses {
			for pName, parts := range participantSets {
				item := testItem(t, status, parts)
				decision := Decide(viewer, item)
				assert.Truef(t, valid[decision.Outcome],
					"viewer=%s status=%s participants=%s produced %q", vName, status, pName, decision.Outcome)
			}
		}
	}
}

func TestDecideOutcomes(t *testing.T) {
	tests := []struct {
		name         string
		viewer       Viewer
		status       domainitems.Status
		participants []string
		want         Outcome
		wantRead     bool
		wantSend     bool
	}{
		{"anonymous is redirected", Viewer{}, domainitems.StatusLost, nil, Unauthenticated, false, false},
		{"owner views own thread", Viewer{ID: "owner"}, domainitems.StatusFound, nil, OwnerView, true, false},
		{"first contact open", Viewer{ID: "alice"}, domainitems.StatusLost, nil, OpenToContact, true, true},
		{"bound participant", Viewer{ID: "alice"}, domainitems.StatusLost, []string{"owner", "alice"}, ParticipantView, true, true},
		{"third party blocked", Viewer{ID: "mallory"}, domainitems.StatusFound, []string{"owner", "alice"}, Blocked, false, false},
		{"resolved closes contact even when unbound", Viewer{ID: "alice"}, domainitems.StatusResolved, nil, Closed, false, false},
		{"resolved keeps participant read access", Viewer{ID: "alice"}, domainitems.StatusResolved, []string{"owner", "alice"}, Closed, true, false},
		{"resolved keeps owner read access", Viewer{ID: "owner"}, domainitems.StatusResolved, []string{"owner", "alice"}, Closed, true, false},
		{"resolved blocks stranger reads", Viewer{ID: "mallory"}, domainitems.StatusResolved, []string{"owner", "alice"}, Closed, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := testItem(t, tt.status, tt.participants)
			decision := Decide(tt.viewer, item)
			assert.Equal(t, tt.want, decision.Outcome)
			assert.Equal(t, tt.wantRead, decision.CanRead, "CanRead")
			assert.Equal(t, tt.wantSend, decision.CanSend, "CanSend")
		})
	}
}

func TestDecidePendingStates(t *testing.T) {
	item := testItem(t, domainitems.StatusLost, nil)

	loading := Decide(Viewer{ID: "alice", Loading: true}, item)
	assert.True(t, loading.Pending)
	assert.False(t, loading.CanSend)

	missing := Decide(Viewer{ID: "alice"}, nil)
	assert.True(t, missing.Pending)
	assert.False(t, missing.CanRead)
}

func TestCallToActionLabels(t *testing.T) {
	lost := testItem(t, domainitems.StatusLost, nil)
	found := testItem(t, domainitems.StatusFound, nil)

	assert.Equal(t, "Contact Owner", Decide(Viewer{ID: "alice"}, lost).CTALabel)
	assert.Equal(t, "Contact Finder", Decide(Viewer{ID: "alice"}, found).CTALabel)
	// The login label names the same counterpart the signed-in label does.
	assert.Equal(t, "Log in to Contact Owner", Decide(Viewer{}, lost).CTALabel)
	assert.Equal(t, "Log in to Contact Finder", Decide(Viewer{}, found).CTALabel)

	ownerOnFound := Decide(Viewer{ID: "owner"}, found)
	assert.Equal(t, "View Messages", ownerOnFound.CTALabel)
	assert.False(t, ownerOnFound.CTADisabled)

	ownerOnLost := Decide(Viewer{ID: "owner"}, lost)
	assert.Equal(t, "This is your item", ownerOnLost.CTALabel)
	assert.True(t, ownerOnLost.CTADisabled)
}
