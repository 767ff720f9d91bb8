package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusfind/internal/app/access"
	"campusfind/internal/app/apperr"
	"campusfind/internal/app/uow"
	domainitems "campusfind/internal/domain/items"
	"campusfind/internal/infra/storage/memory"
)

func seedItem(t *testing.T, store *memory.Store, owner string) *domainitems.Item {
	t.Helper()
	item, err := domainitems.NewItem(domainitems.CreateParams{
		ID:       domainitems.ItemID("item-" + owner),
		OwnerID:  owner,
		Name:     "Black Umbrella",
		Status:   domainitems.StatusFound,
		Category: "Other",
		Location: "Cafeteria",
		Now:      time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	factory := memory.Factory{Store: store}
	unit, err := factory.Begin(context.Background(), uow.TxOptions{})
	require.NoError(t, err)
	require.NoError(t, unit.Items().Save(context.Background(), item))
	require.NoError(t, unit.Commit(context.Background()))
	return item
}

func newHandler(store *memory.Store) *SendMessageHandler {
	return &SendMessageHandler{
		UoWFactory: memory.Factory{Store: store},
		Outbox:     memory.NewOutbox(),
	}
}

func threadLen(t *testing.T, store *memory.Store, itemID string) int {
	t.Helper()
	factory := memory.Factory{Store: store}
	unit, err := factory.Begin(context.Background(), uow.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	defer unit.Rollback(context.Background())
	msgs, err := unit.Threads().All(context.Background(), domainitems.ItemID(itemID))
	require.NoError(t, err)
	return len(msgs)
}

func loadItem(t *testing.T, store *memory.Store, itemID string) *domainitems.Item {
	t.Helper()
	factory := memory.Factory{Store: store}
	unit, err := factory.Begin(context.Background(), uow.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	defer unit.Rollback(context.Background())
	item, err := unit.Items().ByID(context.Background(), domainitems.ItemID(itemID))
	require.NoError(t, err)
	return item
}

func TestSendMessageBindsFirstContact(t *testing.T) {
	store := memory.NewStore()
	item := seedItem(t, store, "owner")
	handler := newHandler(store)

	result, err := handler.Handle(context.Background(), SendMessageCommand{
		ItemID: string(item.ID),
		Sender: access.Viewer{ID: "alice", Name: "Alice", AvatarURL: "https://avatars/alice"},
		Text:   "  I think this is mine!  ",
	})
	require.NoError(t, err)
	assert.True(t, result.Bound)
	assert.Equal(t, "I think this is mine!", result.Message.Content)
	assert.False(t, result.Message.CreatedAt.IsZero())

	stored := loadItem(t, store, string(item.ID))
	assert.ElementsMatch(t, []string{"owner", "alice"}, stored.Participants)
}

func TestSendMessageOwnerDoesNotBind(t *testing.T) {
	store := memory.NewStore()
	item := seedItem(t, store, "owner")
	handler := newHandler(store)

	result, err := handler.Handle(context.Background(), SendMessageCommand{
		ItemID: string(item.ID),
		Sender: access.Viewer{ID: "owner", Name: "Owner"},
		Text:   "Still looking for the owner of this.",
	})
	require.NoError(t, err)
	assert.False(t, result.Bound)

	stored := loadItem(t, store, string(item.ID))
	assert.Empty(t, stored.Participants)
	assert.Equal(t, 1, threadLen(t, store, string(item.ID)))
}

func TestSendMessageConcurrentFirstContact(t *testing.T) {
	store := memory.NewStore()
	item := seedItem(t, store, "u1")
	handler := newHandler(store)

	results := make(map[string]error, 2)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, sender := range []string{"u2", "u3"} {
		wg.Add(1)
		go func(sender string) {
			defer wg.Done()
			_, err := handler.Handle(context.Background(), SendMessageCommand{
				ItemID: string(item.ID),
				Sender: access.Viewer{ID: sender, Name: sender},
				Text:   "hello from " + sender,
			})
			mu.Lock()
			results[sender] = err
			mu.Unlock()
		}(sender)
	}
	wg.Wait()

	var winners, losers int
	for sender, err := range results {
		if err == nil {
			winners++
			stored := loadItem(t, store, string(item.ID))
			assert.ElementsMatch(t, []string{"u1", sender}, stored.Participants)
		} else {
			losers++
			assert.Equal(t, apperr.CodePermissionDenied, apperr.CodeOf(err))
		}
	}
	assert.Equal(t, 1, winners, "exactly one sender must win the binding race")
	assert.Equal(t, 1, losers)
	assert.Equal(t, 1, threadLen(t, store, string(item.ID)), "loser must not append")
}

// conflictAtSaveFactory wraps the memory factory so that item saves fail the
// way the document store reports a lost version check, before commit.
type conflictAtSaveFactory struct {
	inner memory.Factory
}

func (f conflictAtSaveFactory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	unit, err := f.inner.Begin(ctx, opts)
	if err != nil {
		return nil, err
	}
	return conflictAtSaveUnit{UnitOfWork: unit}, nil
}

type conflictAtSaveUnit struct {
	uow.UnitOfWork
}

func (u conflictAtSaveUnit) Items() domainitems.Repository {
	return conflictAtSaveItems{Repository: u.UnitOfWork.Items()}
}

type conflictAtSaveItems struct {
	domainitems.Repository
}

func (conflictAtSaveItems) Save(context.Context, *domainitems.Item) error {
	return uow.ErrConflict
}

func TestSendMessageSaveConflictIsPermissionDenied(t *testing.T) {
	store := memory.NewStore()
	item := seedItem(t, store, "u1")
	handler := &SendMessageHandler{
		UoWFactory: conflictAtSaveFactory{inner: memory.Factory{Store: store}},
		Outbox:     memory.NewOutbox(),
	}

	_, err := handler.Handle(context.Background(), SendMessageCommand{
		ItemID: string(item.ID),
		Sender: access.Viewer{ID: "u2", Name: "u2"},
		Text:   "is this yours?",
	})
	require.Error(t, err)
	assert.Equal(t, apperr.CodePermissionDenied, apperr.CodeOf(err))
	assert.Equal(t, 0, threadLen(t, store, string(item.ID)), "race loser must not append")
}

func TestSendMessageRejectsLateJoiner(t *testing.T) {
	store := memory.NewStore()
	item := seedItem(t, store, "u1")
	handler := newHandler(store)

	_, err := handler.Handle(context.Background(), SendMessageCommand{
		ItemID: string(item.ID),
		Sender: access.Viewer{ID: "u2"},
		Text:   "first!",
	})
	require.NoError(t, err)

	_, err = handler.Handle(context.Background(), SendMessageCommand{
		ItemID: string(item.ID),
		Sender: access.Viewer{ID: "u3"},
		Text:   "let me in",
	})
	require.Error(t, err)
	assert.Equal(t, apperr.CodePermissionDenied, apperr.CodeOf(err))
	assert.Equal(t, 1, threadLen(t, store, string(item.ID)))

	stored := loadItem(t, store, string(item.ID))
	assert.ElementsMatch(t, []string{"u1", "u2"}, stored.Participants)
}

func TestSendMessageOrdering(t *testing.T) {
	store := memory.NewStore()
	item := seedItem(t, store, "owner")
	handler := newHandler(store)

	texts := []string{"one", "two", "three", "four"}
	senders := []string{"alice", "owner", "alice", "owner"}
	for i, text := range texts {
		_, err := handler.Handle(context.Background(), SendMessageCommand{
			ItemID: string(item.ID),
			Sender: access.Viewer{ID: senders[i]},
			Text:   text,
		})
		require.NoError(t, err)
	}

	factory := memory.Factory{Store: store}
	unit, err := factory.Begin(context.Background(), uow.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	defer unit.Rollback(context.Background())
	msgs, err := unit.Threads().All(context.Background(), item.ID)
	require.NoError(t, err)
	require.Len(t, msgs, len(texts))
	for i, msg := range msgs {
		assert.Equal(t, texts[i], msg.Content)
		if i > 0 {
			assert.False(t, msg.CreatedAt.Before(msgs[i-1].CreatedAt), "timestamps must be non-decreasing")
		}
	}
}

func TestSendMessageValidation(t *testing.T) {
	store := memory.NewStore()
	item := seedItem(t, store, "owner")
	handler := newHandler(store)

	_, err := handler.Handle(context.Background(), SendMessageCommand{
		ItemID: string(item.ID),
		Sender: access.Viewer{ID: "alice"},
		Text:   "   ",
	})
	assert.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))

	_, err = handler.Handle(context.Background(), SendMessageCommand{
		ItemID: string(item.ID),
		Sender: access.Viewer{},
		Text:   "hi",
	})
	assert.Equal(t, apperr.CodeUnauthenticated, apperr.CodeOf(err))

	_, err = handler.Handle(context.Background(), SendMessageCommand{
		ItemID: "missing",
		Sender: access.Viewer{ID: "alice"},
		Text:   "hi",
	})
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))

	assert.Equal(t, 0, threadLen(t, store, string(item.ID)))
}

func TestSendMessageResolvedItemClosed(t *testing.T) {
	store := memory.NewStore()
	item := seedItem(t, store, "owner")
	handler := newHandler(store)

	_, err := handler.Handle(context.Background(), SendMessageCommand{
		ItemID: string(item.ID),
		Sender: access.Viewer{ID: "alice"},
		Text:   "is this still around?",
	})
	require.NoError(t, err)

	factory := memory.Factory{Store: store}
	unit, err := factory.Begin(context.Background(), uow.TxOptions{})
	require.NoError(t, err)
	stored, err := unit.Items().ByID(context.Background(), item.ID)
	require.NoError(t, err)
	stored.Resolve(time.Now())
	require.NoError(t, unit.Items().Save(context.Background(), stored))
	require.NoError(t, unit.Commit(context.Background()))

	_, err = handler.Handle(context.Background(), SendMessageCommand{
		ItemID: string(item.ID),
		Sender: access.Viewer{ID: "alice"},
		Text:   "hello?",
	})
	require.Error(t, err)
	assert.Equal(t, apperr.CodePermissionDenied, apperr.CodeOf(err))
	assert.Equal(t, 1, threadLen(t, store, string(item.ID)))
}
