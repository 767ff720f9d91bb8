package access

import (
	domainitems "campusfind/internal/domain/items"
)

// Outcome is the access decision for one (viewer, item) pair.
type Outcome string

const (
	// Unauthenticated: no signed-in viewer; the UI redirects to login.
	Unauthenticated Outcome = "UNAUTHENTICATED"
	// Closed: the item is Resolved; historical participants keep read
	// access but new contact is disabled.
	Closed Outcome = "CLOSED"
	// OwnerView: the viewer posted the item; reads the thread, cannot be
	// the contacting party.
	OwnerView Outcome = "OWNER_VIEW"
	// OpenToContact: nobody has messaged yet; the viewer's first message
	// binds the conversation.
	OpenToContact Outcome = "OPEN_TO_CONTACT"
	// ParticipantView: the viewer is one of the two bound parties.
	ParticipantView Outcome = "PARTICIPANT_VIEW"
	// Blocked: a third party may not join a bound conversation.
	Blocked Outcome = "BLOCKED"
)

// Viewer is the identity-provider view of the requesting user. A zero ID
// means anonymous; Loading marks the transient state before the provider
// has settled.
type Viewer struct {
	ID        string
	Name      string
	AvatarURL string
	Loading   bool
}

func (v Viewer) Authenticated() bool { return !v.Loading && v.ID != "" }

// Decision is the full gate result consumed by the UI and the send path.
type Decision struct {
	Outcome Outcome
	// Pending is set while the viewer or item is still loading; the
	// outcome is provisional and no navigation should happen yet.
	Pending bool
	// CanRead reports whether message history is visible to this viewer.
	CanRead bool
	// CanSend reports whether a send attempt is worth making. The binding
	// protocol re-checks inside its transaction regardless.
	CanSend bool
	// CTALabel and CTADisabled drive the contact button.
	CTALabel    string
	CTADisabled bool
}

// Decide gates thread access for a viewer on an item. Pure and total: every
// reachable input yields exactly one outcome, and absent data is a valid
// input, not an error.
func Decide(viewer Viewer, item *domainitems.Item) Decision {
	if item == nil {
		return Decision{Outcome: Unauthenticated, Pending: true, CTADisabled: true}
	}
	if viewer.Loading {
		return Decision{Outcome: Unauthenticated, Pending: true, CTALabel: loginLabel(item.Status), CTADisabled: true}
	}
	if !viewer.Authenticated() {
		return Decision{Outcome: Unauthenticated, CTALabel: loginLabel(item.Status)}
	}
	if item.Status == domainitems.StatusResolved {
		canRead := item.IsOwner(viewer.ID) || item.HasParticipant(viewer.ID)
		return Decision{
			Outcome:     Closed,
			CanRead:     canRead,
			CTALabel:    "Item resolved",
			CTADisabled: true,
		}
	}
	if item.IsOwner(viewer.ID) {
		return Decision{
			Outcome:     OwnerView,
			CanRead:     true,
			CTALabel:    ownerLabel(item.Status),
			CTADisabled: item.Status != domainitems.StatusFound,
		}
	}
	if !item.ConversationOpen() {
		return Decision{
			Outcome:  OpenToContact,
			CanRead:  true,
			CanSend:  true,
			CTALabel: contactLabel(item.Status),
		}
	}
	if item.HasParticipant(viewer.ID) {
		return Decision{
			Outcome:  ParticipantView,
			CanRead:  true,
			CanSend:  true,
			CTALabel: contactLabel(item.Status),
		}
	}
	return Decision{Outcome: Blocked, CTALabel: "Conversation in progress", CTADisabled: true}
}

// CanReadHistory answers the standalone history query without building the
// full decision at call sites that only gate reads.
func CanReadHistory(viewer Viewer, item *domainitems.Item) bool {
	return Decide(viewer, item).CanRead
}

func contactLabel(status domainitems.Status) string {
	if status == domainitems.StatusLost {
		return "Contact Owner"
	}
	return "Contact Finder"
}

func loginLabel(status domainitems.Status) string {
	return "Log in to " + contactLabel(status)
}

func ownerLabel(status domainitems.Status) string {
	if status == domainitems.StatusFound {
		return "View Messages"
	}
	return "This is your item"
}
