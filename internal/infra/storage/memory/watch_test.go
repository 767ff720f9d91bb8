package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusfind/internal/app/uow"
	domainchat "campusfind/internal/domain/chat"
	domainitems "campusfind/internal/domain/items"
)

func storeItem(t *testing.T, store *Store, id, owner string, created time.Time) *domainitems.Item {
	t.Helper()
	item, err := domainitems.NewItem(domainitems.CreateParams{
		ID:       domainitems.ItemID(id),
		OwnerID:  owner,
		Name:     "Item " + id,
		Status:   domainitems.StatusLost,
		Category: "Other",
		Location: "Library",
		Now:      created,
	})
	require.NoError(t, err)

	factory := Factory{Store: store}
	unit, err := factory.Begin(context.Background(), uow.TxOptions{})
	require.NoError(t, err)
	require.NoError(t, unit.Items().Save(context.Background(), item))
	require.NoError(t, unit.Commit(context.Background()))
	return item
}

func storeMessage(t *testing.T, store *Store, itemID domainitems.ItemID, sender, content string) {
	t.Helper()
	msg, err := domainchat.NewMessage(domainchat.CreateParams{
		ID:       domainchat.MessageID(content),
		ItemID:   itemID,
		SenderID: sender,
		Content:  content,
	})
	require.NoError(t, err)

	factory := Factory{Store: store}
	unit, err := factory.Begin(context.Background(), uow.TxOptions{})
	require.NoError(t, err)
	require.NoError(t, unit.Threads().Append(context.Background(), msg))
	require.NoError(t, unit.Commit(context.Background()))
}

func recvSet(t *testing.T, watch domainitems.SetWatch) []*domainitems.Item {
	t.Helper()
	select {
	case set, ok := <-watch.Updates():
		require.True(t, ok, "watch channel closed")
		return set
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for set update")
		return nil
	}
}

func recvLatest(t *testing.T, watch domainchat.LatestWatch) *domainchat.Message {
	t.Helper()
	select {
	case msg, ok := <-watch.Updates():
		require.True(t, ok, "watch channel closed")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for latest update")
		return nil
	}
}

func TestWatchForUserInitialSnapshot(t *testing.T) {
	store := NewStore()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	storeItem(t, store, "a", "u1", base)
	storeItem(t, store, "b", "u2", base.Add(time.Minute))

	watch, err := store.WatchForUser(context.Background(), "u1")
	require.NoError(t, err)
	defer watch.Cancel()

	set := recvSet(t, watch)
	require.Len(t, set, 1)
	assert.Equal(t, domainitems.ItemID("a"), set[0].ID)
}

func TestWatchForUserSeesNewItems(t *testing.T) {
	store := NewStore()
	watch, err := store.WatchForUser(context.Background(), "u1")
	require.NoError(t, err)
	defer watch.Cancel()

	assert.Empty(t, recvSet(t, watch))

	created := storeItem(t, store, "a", "u1", time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	set := recvSet(t, watch)
	require.Len(t, set, 1)
	ignore := cmpopts.IgnoreFields(domainitems.Item{}, "EventRecorder")
	if diff := cmp.Diff(created, set[0], ignore); diff != "" {
		t.Fatalf("delivered item mismatch (-want +got):\n%s", diff)
	}
}

func TestWatchForUserConflates(t *testing.T) {
	store := NewStore()
	watch, err := store.WatchForUser(context.Background(), "u1")
	require.NoError(t, err)
	defer watch.Cancel()

	// Do not read between writes: the one-slot channel must keep only the
	// newest snapshot.
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	storeItem(t, store, "a", "u1", base)
	storeItem(t, store, "b", "u1", base.Add(time.Minute))
	storeItem(t, store, "c", "u1", base.Add(2*time.Minute))

	set := recvSet(t, watch)
	require.Len(t, set, 3)
	assert.Equal(t, domainitems.ItemID("c"), set[0].ID)
}

func TestWatchLatestDeliversMessages(t *testing.T) {
	store := NewStore()
	item := storeItem(t, store, "a", "u1", time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))

	watch, err := store.WatchLatest(context.Background(), item.ID)
	require.NoError(t, err)
	defer watch.Cancel()

	assert.Nil(t, recvLatest(t, watch), "empty thread delivers nil")

	storeMessage(t, store, item.ID, "u2", "hello")
	storeMessage(t, store, item.ID, "u2", "still there?")

	var last *domainchat.Message
	deadline := time.After(2 * time.Second)
	for last == nil || last.Content != "still there?" {
		select {
		case msg := <-watch.Updates():
			last = msg
		case <-deadline:
			t.Fatal("timed out waiting for newest message")
		}
	}
	assert.Equal(t, "u2", last.SenderID)
}

func TestWatchCancelClosesAndUnregisters(t *testing.T) {
	store := NewStore()
	watch, err := store.WatchForUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, store.OpenWatchCount())

	watch.Cancel()
	watch.Cancel() // second cancel is a no-op

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-watch.Updates():
			if !ok {
				assert.Equal(t, 0, store.OpenWatchCount())
				return
			}
		case <-deadline:
			t.Fatal("channel did not close after cancel")
		}
	}
}

func TestWatchContextCancelTearsDown(t *testing.T) {
	store := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	watch, err := store.WatchLatest(ctx, "a")
	require.NoError(t, err)

	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-watch.Updates():
			if !ok {
				assert.Equal(t, 0, store.OpenWatchCount())
				return
			}
		case <-deadline:
			t.Fatal("channel did not close after context cancel")
		}
	}
}
