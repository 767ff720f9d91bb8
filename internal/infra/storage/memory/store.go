package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	domainchat "campusfind/internal/domain/chat"
	domainitems "campusfind/internal/domain/items"
	"campusfind/internal/domain/shared/events"
)

// Store keeps items and message threads in memory and pushes change
// notifications to registered watches. It backs tests and the zero-dependency
// dev mode; the Mongo implementations replace it in real deployments.
type Store struct {
	mu        sync.RWMutex
	items     map[domainitems.ItemID]*domainitems.Item
	threads   map[domainitems.ItemID][]*domainchat.Message
	lastStamp map[domainitems.ItemID]time.Time
	lastSeq   map[domainitems.ItemID]int64
	hub       *hub
	now       func() time.Time

	// txMu serializes transactions; the memory unit of work holds it from
	// Begin to Commit/Rollback so the binding protocol's
	// read-check-write runs without interleaving.
	txMu sync.Mutex
}

func NewStore() *Store {
	return &Store{
		items:     make(map[domainitems.ItemID]*domainitems.Item),
		threads:   make(map[domainitems.ItemID][]*domainchat.Message),
		lastStamp: make(map[domainitems.ItemID]time.Time),
		lastSeq:   make(map[domainitems.ItemID]int64),
		hub:       newHub(),
		now:       time.Now,
	}
}

// SetClock overrides the message timestamp source. Test hook.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) getItem(id domainitems.ItemID) (*domainitems.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return nil, false
	}
	return cloneItem(item), true
}

func (s *Store) itemsForUser(userID string) []*domainitems.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domainitems.Item
	for _, item := range s.items {
		if item.IsOwner(userID) || item.HasParticipant(userID) {
			out = append(out, cloneItem(item))
		}
	}
	sortItems(out)
	return out
}

func (s *Store) listItems(filter domainitems.Filter) []*domainitems.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domainitems.Item
	for _, item := range s.items {
		if !matchesFilter(item, filter) {
			continue
		}
		out = append(out, cloneItem(item))
	}
	sortItems(out)
	return out
}

func (s *Store) latest(itemID domainitems.ItemID) *domainchat.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	thread := s.threads[itemID]
	if len(thread) == 0 {
		return nil
	}
	return cloneMessage(thread[len(thread)-1])
}

func (s *Store) allMessages(itemID domainitems.ItemID) []*domainchat.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	thread := s.threads[itemID]
	out := make([]*domainchat.Message, 0, len(thread))
	for _, msg := range thread {
		out = append(out, cloneMessage(msg))
	}
	return out
}

// stamp assigns the next server timestamp and sequence for a thread,
// monotonically non-decreasing even against a coarse or rewound clock.
// Caller must hold txMu.
func (s *Store) stamp(itemID domainitems.ItemID, staged int64) (time.Time, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	if last, ok := s.lastStamp[itemID]; ok && !now.After(last) {
		now = last.Add(time.Nanosecond)
	}
	s.lastStamp[itemID] = now
	return now, s.lastSeq[itemID] + staged + 1
}

// apply installs a committed transaction's writes and fans out change
// notifications. Caller must hold txMu.
func (s *Store) apply(items map[domainitems.ItemID]*domainitems.Item, messages []*domainchat.Message) {
	affected := make(map[domainitems.ItemID]bool)

	s.mu.Lock()
	for id, item := range items {
		s.items[id] = cloneItem(item)
		affected[id] = true
	}
	for _, msg := range messages {
		s.threads[msg.ItemID] = append(s.threads[msg.ItemID], cloneMessage(msg))
		s.lastSeq[msg.ItemID]++
		affected[msg.ItemID] = true
	}
	s.mu.Unlock()

	for id := range affected {
		s.hub.notifyItem(s, id)
	}
	if len(items) > 0 || len(messages) > 0 {
		s.hub.notifySets(s)
	}
}

// WatchForUser implements domainitems.Watcher.
func (s *Store) WatchForUser(ctx context.Context, userID string) (domainitems.SetWatch, error) {
	return s.hub.watchSet(ctx, s, userID)
}

// WatchLatest implements domainchat.Watcher.
func (s *Store) WatchLatest(ctx context.Context, itemID domainitems.ItemID) (domainchat.LatestWatch, error) {
	return s.hub.watchLatest(ctx, s, itemID)
}

func matchesFilter(item *domainitems.Item, filter domainitems.Filter) bool {
	if filter.Status != "" && item.Status != filter.Status {
		return false
	}
	if filter.Category != "" && item.Category != filter.Category {
		return false
	}
	if filter.Location != "" && item.Location != filter.Location {
		return false
	}
	if filter.OwnerID != "" && item.OwnerID != filter.OwnerID {
		return false
	}
	if filter.Query != "" {
		q := strings.ToLower(filter.Query)
		if !strings.Contains(strings.ToLower(item.Name), q) &&
			!strings.Contains(strings.ToLower(item.Description), q) {
			return false
		}
	}
	return true
}

func sortItems(list []*domainitems.Item) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
}

func cloneItem(item *domainitems.Item) *domainitems.Item {
	if item == nil {
		return nil
	}
	copied := *item
	copied.Participants = append([]string(nil), item.Participants...)
	copied.EventRecorder = events.EventRecorder{}
	return &copied
}

func cloneMessage(msg *domainchat.Message) *domainchat.Message {
	if msg == nil {
		return nil
	}
	copied := *msg
	return &copied
}
