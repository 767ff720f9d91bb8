package memory

import (
	"context"
	"sync"

	domainchat "campusfind/internal/domain/chat"
	domainitems "campusfind/internal/domain/items"
)

// hub routes store change notifications to live watches. Each subscription
// owns a one-slot conflating channel: a slow consumer only ever observes the
// newest snapshot, never a backlog.
type hub struct {
	mu         sync.Mutex
	nextID     int
	setSubs    map[int]*setSub
	latestSubs map[int]*latestSub
}

func newHub() *hub {
	return &hub{
		setSubs:    make(map[int]*setSub),
		latestSubs: make(map[int]*latestSub),
	}
}

type setSub struct {
	userID string

	mu     sync.Mutex
	closed bool
	ch     chan []*domainitems.Item
	cancel func()
}

func (s *setSub) Updates() <-chan []*domainitems.Item { return s.ch }

func (s *setSub) Cancel() { s.cancel() }

func (s *setSub) push(set []*domainitems.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- set:
	default:
		select {
		case <-s.ch:
		default:
		}
		s.ch <- set
	}
}

func (s *setSub) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

type latestSub struct {
	itemID domainitems.ItemID

	mu     sync.Mutex
	closed bool
	ch     chan *domainchat.Message
	cancel func()
}

func (s *latestSub) Updates() <-chan *domainchat.Message { return s.ch }

func (s *latestSub) Cancel() { s.cancel() }

func (s *latestSub) push(msg *domainchat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- msg:
	default:
		select {
		case <-s.ch:
		default:
		}
		s.ch <- msg
	}
}

func (s *latestSub) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

func (h *hub) watchSet(ctx context.Context, store *Store, userID string) (domainitems.SetWatch, error) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	sub := &setSub{
		userID: userID,
		ch:     make(chan []*domainitems.Item, 1),
	}
	var once sync.Once
	sub.cancel = func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.setSubs, id)
			h.mu.Unlock()
			sub.close()
		})
	}
	h.setSubs[id] = sub
	h.mu.Unlock()

	if ctx != nil {
		go func() {
			<-ctx.Done()
			sub.cancel()
		}()
	}

	// Initial snapshot so the subscriber does not wait for the first write.
	sub.push(store.itemsForUser(userID))
	return sub, nil
}

func (h *hub) watchLatest(ctx context.Context, store *Store, itemID domainitems.ItemID) (domainchat.LatestWatch, error) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	sub := &latestSub{
		itemID: itemID,
		ch:     make(chan *domainchat.Message, 1),
	}
	var once sync.Once
	sub.cancel = func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.latestSubs, id)
			h.mu.Unlock()
			sub.close()
		})
	}
	h.latestSubs[id] = sub
	h.mu.Unlock()

	if ctx != nil {
		go func() {
			<-ctx.Done()
			sub.cancel()
		}()
	}

	sub.push(store.latest(itemID))
	return sub, nil
}

func (h *hub) notifyItem(store *Store, itemID domainitems.ItemID) {
	h.mu.Lock()
	subs := make([]*latestSub, 0)
	for _, sub := range h.latestSubs {
		if sub.itemID == itemID {
			subs = append(subs, sub)
		}
	}
	h.mu.Unlock()
	if len(subs) == 0 {
		return
	}
	latest := store.latest(itemID)
	for _, sub := range subs {
		sub.push(latest)
	}
}

func (h *hub) notifySets(store *Store) {
	h.mu.Lock()
	subs := make([]*setSub, 0, len(h.setSubs))
	for _, sub := range h.setSubs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()
	for _, sub := range subs {
		sub.push(store.itemsForUser(sub.userID))
	}
}

// SubscriberCount reports open watches. Test hook for leak assertions.
func (h *hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.setSubs) + len(h.latestSubs)
}

// OpenWatchCount exposes the hub's live subscription count.
func (s *Store) OpenWatchCount() int {
	return s.hub.SubscriberCount()
}
