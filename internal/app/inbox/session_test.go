package inbox

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusfind/internal/app/uow"
	domainchat "campusfind/internal/domain/chat"
	domainitems "campusfind/internal/domain/items"
	"campusfind/internal/infra/storage/memory"
)

const waitFor = 2 * time.Second

func newItem(t *testing.T, id, owner string, createdAt time.Time) *domainitems.Item {
	t.Helper()
	item, err := domainitems.NewItem(domainitems.CreateParams{
		ID:       domainitems.ItemID(id),
		OwnerID:  owner,
		Name:     "Item " + id,
		Status:   domainitems.StatusLost,
		Category: "Other",
		Location: "Library",
		Now:      createdAt,
	})
	require.NoError(t, err)
	return item
}

func commitItems(t *testing.T, store *memory.Store, items ...*domainitems.Item) {
	t.Helper()
	factory := memory.Factory{Store: store}
	unit, err := factory.Begin(context.Background(), uow.TxOptions{})
	require.NoError(t, err)
	for _, item := range items {
		require.NoError(t, unit.Items().Save(context.Background(), item))
	}
	require.NoError(t, unit.Commit(context.Background()))
}

func commitMessage(t *testing.T, store *memory.Store, itemID, sender, text string) {
	t.Helper()
	factory := memory.Factory{Store: store}
	unit, err := factory.Begin(context.Background(), uow.TxOptions{})
	require.NoError(t, err)
	msg, err := domainchat.NewMessage(domainchat.CreateParams{
		ID:       domainchat.MessageID("msg-" + itemID + "-" + text),
		ItemID:   domainitems.ItemID(itemID),
		SenderID: sender,
		Content:  text,
	})
	require.NoError(t, err)
	require.NoError(t, unit.Threads().Append(context.Background(), msg))
	require.NoError(t, unit.Commit(context.Background()))
}

// awaitSnapshot drains Updates until the predicate holds or the deadline
// passes. Intermediate snapshots are legal; only the final shape is asserted.
func awaitSnapshot(t *testing.T, s *Session, match func([]Conversation) bool) []Conversation {
	t.Helper()
	deadline := time.After(waitFor)
	for {
		select {
		case list, ok := <-s.Updates():
			require.True(t, ok, "updates channel closed before expected snapshot")
			if match(list) {
				return list
			}
		case <-deadline:
			t.Fatal("timed out waiting for inbox snapshot")
		}
	}
}

func itemIDs(list []Conversation) []string {
	out := make([]string, 0, len(list))
	for _, c := range list {
		out = append(out, string(c.Item.ID))
	}
	return out
}

func TestSessionInitialSnapshot(t *testing.T) {
	store := memory.NewStore()
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	commitItems(t, store,
		newItem(t, "a", "u1", base),
		newItem(t, "b", "u1", base.Add(time.Hour)),
		newItem(t, "other", "u2", base),
	)

	s, err := Open(context.Background(), "u1", store, store, slog.Default())
	require.NoError(t, err)
	defer s.Close()

	list := awaitSnapshot(t, s, func(l []Conversation) bool { return len(l) == 2 })
	// Empty threads fall back to creation time; b is newer.
	assert.Equal(t, []string{"b", "a"}, itemIDs(list))
	for _, c := range list {
		assert.Nil(t, c.LastMessage)
	}
	assert.Equal(t, StateReady, s.State())
}

func TestSessionNewMessageReorders(t *testing.T) {
	store := memory.NewStore()
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	commitItems(t, store,
		newItem(t, "a", "u1", base),
		newItem(t, "b", "u1", base.Add(time.Hour)),
	)

	s, err := Open(context.Background(), "u1", store, store, slog.Default())
	require.NoError(t, err)
	defer s.Close()

	awaitSnapshot(t, s, func(l []Conversation) bool { return len(l) == 2 })

	commitMessage(t, store, "a", "u2", "found it near the gym")

	list := awaitSnapshot(t, s, func(l []Conversation) bool {
		return len(l) == 2 && l[0].LastMessage != nil
	})
	assert.Equal(t, []string{"a", "b"}, itemIDs(list))
	assert.Equal(t, "found it near the gym", list[0].LastMessage.Content)
}

func TestSessionPicksUpNewItem(t *testing.T) {
	store := memory.NewStore()
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	commitItems(t, store, newItem(t, "a", "u1", base))

	s, err := Open(context.Background(), "u1", store, store, slog.Default())
	require.NoError(t, err)
	defer s.Close()

	awaitSnapshot(t, s, func(l []Conversation) bool { return len(l) == 1 })

	commitItems(t, store, newItem(t, "b", "u1", base.Add(time.Hour)))

	list := awaitSnapshot(t, s, func(l []Conversation) bool { return len(l) == 2 })
	assert.Equal(t, []string{"b", "a"}, itemIDs(list))

	// The new row is live too, not just present.
	commitMessage(t, store, "b", "u2", "is this yours?")
	list = awaitSnapshot(t, s, func(l []Conversation) bool {
		return len(l) == 2 && l[0].LastMessage != nil
	})
	assert.Equal(t, "b", string(list[0].Item.ID))
}

func TestSessionSeesBoundConversation(t *testing.T) {
	store := memory.NewStore()
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	item := newItem(t, "a", "owner", base)
	commitItems(t, store, item)

	// u2 is not yet a participant; their inbox starts empty.
	s, err := Open(context.Background(), "u2", store, store, slog.Default())
	require.NoError(t, err)
	defer s.Close()

	factory := memory.Factory{Store: store}
	unit, err := factory.Begin(context.Background(), uow.TxOptions{})
	require.NoError(t, err)
	bound, err := unit.Items().ByID(context.Background(), item.ID)
	require.NoError(t, err)
	require.NoError(t, bound.BindParticipants("u2", base.Add(time.Minute)))
	require.NoError(t, unit.Items().Save(context.Background(), bound))
	require.NoError(t, unit.Commit(context.Background()))

	list := awaitSnapshot(t, s, func(l []Conversation) bool { return len(l) == 1 })
	assert.Equal(t, "a", string(list[0].Item.ID))
}

func TestSessionMergesOwnedAndParticipatedItems(t *testing.T) {
	store := memory.NewStore()
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	owned1 := newItem(t, "mine-1", "u2", base)
	owned2 := newItem(t, "mine-2", "u2", base.Add(time.Hour))
	theirs := newItem(t, "theirs", "owner", base.Add(2*time.Hour))
	require.NoError(t, theirs.BindParticipants("u2", base.Add(2*time.Hour)))
	commitItems(t, store, owned1, owned2, theirs)

	// Someone else's bound conversation does not leak into u2's inbox.
	commitItems(t, store, newItem(t, "unrelated", "owner", base))

	s, err := Open(context.Background(), "u2", store, store, slog.Default())
	require.NoError(t, err)
	defer s.Close()

	list := awaitSnapshot(t, s, func(l []Conversation) bool { return len(l) == 3 })
	assert.Equal(t, []string{"theirs", "mine-2", "mine-1"}, itemIDs(list))

	// A message on an owned row lifts it above the participated row.
	commitMessage(t, store, "mine-1", "u3", "I think I saw it")
	list = awaitSnapshot(t, s, func(l []Conversation) bool {
		return len(l) == 3 && l[0].LastMessage != nil
	})
	assert.Equal(t, []string{"mine-1", "theirs", "mine-2"}, itemIDs(list))
}

func TestSessionDeterministicTieOrder(t *testing.T) {
	store := memory.NewStore()
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	commitItems(t, store,
		newItem(t, "b", "u1", base),
		newItem(t, "a", "u1", base),
		newItem(t, "c", "u1", base),
	)

	s, err := Open(context.Background(), "u1", store, store, slog.Default())
	require.NoError(t, err)
	defer s.Close()

	list := awaitSnapshot(t, s, func(l []Conversation) bool { return len(l) == 3 })
	assert.Equal(t, []string{"a", "b", "c"}, itemIDs(list))
}

func TestSessionCloseReleasesWatches(t *testing.T) {
	store := memory.NewStore()
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	commitItems(t, store,
		newItem(t, "a", "u1", base),
		newItem(t, "b", "u1", base.Add(time.Hour)),
	)

	s, err := Open(context.Background(), "u1", store, store, slog.Default())
	require.NoError(t, err)
	awaitSnapshot(t, s, func(l []Conversation) bool { return len(l) == 2 })
	assert.Equal(t, 3, store.OpenWatchCount(), "one set watch plus two thread watches")

	s.Close()
	assert.Equal(t, 0, store.OpenWatchCount())
	assert.Equal(t, StateIdle, s.State())

	_, ok := <-s.Updates()
	assert.False(t, ok, "updates channel must close on teardown")
}

func TestSessionContextCancelTearsDown(t *testing.T) {
	store := memory.NewStore()
	commitItems(t, store, newItem(t, "a", "u1", time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)))

	ctx, cancel := context.WithCancel(context.Background())
	s, err := Open(ctx, "u1", store, store, slog.Default())
	require.NoError(t, err)
	awaitSnapshot(t, s, func(l []Conversation) bool { return len(l) == 1 })

	cancel()
	// Close is still safe after the context already stopped the run loop.
	s.Close()
	assert.Equal(t, 0, store.OpenWatchCount())
}

func TestSessionRejectsEmptyUser(t *testing.T) {
	store := memory.NewStore()
	_, err := Open(context.Background(), "  ", store, store, nil)
	assert.ErrorIs(t, err, ErrUserRequired)
}

// flakyThreads fails WatchLatest for one item id and delegates the rest.
type flakyThreads struct {
	inner  domainchat.Watcher
	broken domainitems.ItemID
}

func (f flakyThreads) WatchLatest(ctx context.Context, itemID domainitems.ItemID) (domainchat.LatestWatch, error) {
	if itemID == f.broken {
		return nil, errors.New("subscription refused")
	}
	return f.inner.WatchLatest(ctx, itemID)
}

func TestSessionDegradesBrokenThreadWatch(t *testing.T) {
	store := memory.NewStore()
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	commitItems(t, store,
		newItem(t, "a", "u1", base),
		newItem(t, "b", "u1", base.Add(time.Hour)),
	)

	threads := flakyThreads{inner: store, broken: "b"}
	s, err := Open(context.Background(), "u1", store, threads, slog.Default())
	require.NoError(t, err)
	defer s.Close()

	// Both rows appear; the broken one just never gets message updates.
	list := awaitSnapshot(t, s, func(l []Conversation) bool { return len(l) == 2 })
	assert.Equal(t, []string{"b", "a"}, itemIDs(list))

	commitMessage(t, store, "a", "u2", "still live")
	list = awaitSnapshot(t, s, func(l []Conversation) bool {
		return len(l) == 2 && l[0].LastMessage != nil
	})
	assert.Equal(t, "a", string(list[0].Item.ID))
}

// scriptedSetWatch lets the test drive the qualifying item set directly.
type scriptedSetWatch struct {
	ch   chan []*domainitems.Item
	once sync.Once
}

func (w *scriptedSetWatch) Updates() <-chan []*domainitems.Item { return w.ch }

func (w *scriptedSetWatch) Cancel() { w.once.Do(func() { close(w.ch) }) }

type scriptedSets struct {
	watch *scriptedSetWatch
}

func (s scriptedSets) WatchForUser(ctx context.Context, userID string) (domainitems.SetWatch, error) {
	return s.watch, nil
}

func TestSessionReconcileCancelsDepartedWatches(t *testing.T) {
	store := memory.NewStore()
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	a := newItem(t, "a", "u1", base)
	b := newItem(t, "b", "u1", base.Add(time.Hour))
	commitItems(t, store, a, b)

	sets := scriptedSets{watch: &scriptedSetWatch{ch: make(chan []*domainitems.Item, 1)}}
	sets.watch.ch <- []*domainitems.Item{a, b}

	s, err := Open(context.Background(), "u1", sets, store, slog.Default())
	require.NoError(t, err)
	defer s.Close()

	awaitSnapshot(t, s, func(l []Conversation) bool { return len(l) == 2 })
	assert.Equal(t, 2, store.OpenWatchCount(), "one thread watch per row")

	sets.watch.ch <- []*domainitems.Item{a}

	list := awaitSnapshot(t, s, func(l []Conversation) bool { return len(l) == 1 })
	assert.Equal(t, []string{"a"}, itemIDs(list))

	deadline := time.After(waitFor)
	for store.OpenWatchCount() != 1 {
		select {
		case <-deadline:
			t.Fatalf("departed item's thread watch not cancelled, %d watches open", store.OpenWatchCount())
		case <-time.After(10 * time.Millisecond):
		}
	}
}
