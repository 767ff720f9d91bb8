package inbox

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	domainchat "campusfind/internal/domain/chat"
	domainitems "campusfind/internal/domain/items"
)

var ErrUserRequired = errors.New("inbox: user id is required")

// Conversation is the derived inbox row: an item the user owns or
// participates in, paired with the newest message in its thread, if any.
type Conversation struct {
	Item        *domainitems.Item
	LastMessage *domainchat.Message
}

// EffectiveTime orders the inbox: latest message time when a message
// exists, the item's own creation time otherwise.
func (c Conversation) EffectiveTime() time.Time {
	if c.LastMessage != nil {
		return c.LastMessage.CreatedAt
	}
	if c.Item != nil {
		return c.Item.CreatedAt
	}
	return time.Time{}
}

type State string

const (
	StateIdle        State = "IDLE"
	StateSubscribing State = "SUBSCRIBING"
	StateFanningOut  State = "FANNING_OUT"
	StateReady       State = "READY"
	StateUpdating    State = "UPDATING"
)

// Session aggregates one user's conversations into a live, recency-ordered
// list. It keeps an explicit map of item id to latest-message watch and
// reconciles it against every item-set update: watches are opened for items
// entering the set and cancelled for items leaving it, so nothing leaks
// across set changes or teardown.
type Session struct {
	userID  string
	threads domainchat.Watcher
	logger  *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
	out    chan []Conversation

	mu      sync.Mutex
	state   State
	entries map[domainitems.ItemID]*entry
}

type entry struct {
	item  *domainitems.Item
	last  *domainchat.Message // nil for an empty thread
	ready bool                // first latest-message snapshot received
	watch domainchat.LatestWatch
}

type latestUpdate struct {
	itemID domainitems.ItemID
	msg    *domainchat.Message
}

// Open starts a session for the given user. The returned session emits a
// fresh full snapshot on Updates after every observed change; Close (or
// cancelling ctx) tears down every subscription.
func Open(ctx context.Context, userID string, itemSets domainitems.Watcher, threads domainchat.Watcher, logger *slog.Logger) (*Session, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserRequired
	}
	if logger == nil {
		logger = slog.Default()
	}

	runCtx, cancel := context.WithCancel(ctx)
	s := &Session{
		userID:  userID,
		threads: threads,
		logger:  logger,
		cancel:  cancel,
		done:    make(chan struct{}),
		out:     make(chan []Conversation, 1),
		state:   StateSubscribing,
		entries: make(map[domainitems.ItemID]*entry),
	}

	setWatch, err := itemSets.WatchForUser(runCtx, userID)
	if err != nil {
		cancel()
		s.setState(StateIdle)
		return nil, err
	}

	updates := make(chan latestUpdate)
	go s.run(runCtx, setWatch, updates)
	return s, nil
}

// Updates emits the aggregated conversation list, most recent first. Slow
// consumers only ever see the newest snapshot; intermediate ones are
// conflated away.
func (s *Session) Updates() <-chan []Conversation {
	return s.out
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close tears the session down: the top-level item-set watch, every
// per-item watch, and the run goroutine. Safe to call more than once.
func (s *Session) Close() {
	s.cancel()
	<-s.done
}

func (s *Session) run(ctx context.Context, setWatch domainitems.SetWatch, updates chan latestUpdate) {
	defer close(s.done)
	defer close(s.out)
	defer s.teardown(setWatch)

	for {
		select {
		case <-ctx.Done():
			return
		case set, ok := <-setWatch.Updates():
			if !ok {
				s.logger.Warn("inbox item-set watch closed", "user_id", s.userID)
				return
			}
			s.reconcile(ctx, set, updates)
			s.emit()
		case upd := <-updates:
			if s.applyLatest(upd) {
				s.emit()
			}
		}
	}
}

// reconcile diffs the new qualifying item set against the current map:
// items that left have their watches cancelled and entries dropped, items
// that entered get a latest-message watch opened, items that stayed take
// the refreshed item document.
func (s *Session) reconcile(ctx context.Context, set []*domainitems.Item, updates chan latestUpdate) {
	s.setState(StateFanningOut)

	seen := make(map[domainitems.ItemID]bool, len(set))
	for _, item := range set {
		seen[item.ID] = true

		s.mu.Lock()
		existing, ok := s.entries[item.ID]
		if ok {
			existing.item = item
			s.mu.Unlock()
			continue
		}
		e := &entry{item: item}
		s.entries[item.ID] = e
		s.mu.Unlock()

		watch, err := s.threads.WatchLatest(ctx, item.ID)
		if err != nil {
			// One broken thread subscription degrades only its own row:
			// the item still shows, keyed by its creation time.
			s.logger.Warn("inbox thread watch failed", "user_id", s.userID, "item_id", item.ID, "error", err)
			s.mu.Lock()
			e.ready = true
			s.mu.Unlock()
			continue
		}
		s.mu.Lock()
		e.watch = watch
		s.mu.Unlock()
		go s.forward(ctx, item.ID, watch, updates)
	}

	s.mu.Lock()
	for id, e := range s.entries {
		if seen[id] {
			continue
		}
		if e.watch != nil {
			e.watch.Cancel()
		}
		delete(s.entries, id)
	}
	s.mu.Unlock()
}

// forward pumps one thread watch into the session's single event stream.
// It exits when the watch is cancelled (channel closed) or the session ends.
func (s *Session) forward(ctx context.Context, itemID domainitems.ItemID, watch domainchat.LatestWatch, updates chan latestUpdate) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-watch.Updates():
			if !ok {
				return
			}
			select {
			case updates <- latestUpdate{itemID: itemID, msg: msg}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *Session) applyLatest(upd latestUpdate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[upd.itemID]
	if !ok {
		// Watch for an item that already left the set; its cancel is in
		// flight and the update is stale.
		return false
	}
	e.last = upd.msg
	e.ready = true
	if s.state == StateReady {
		s.state = StateUpdating
	}
	return true
}

// emit recomputes the sorted list from the entry map and publishes it.
// Ordering is deterministic: effective timestamp descending, then item id.
func (s *Session) emit() {
	s.mu.Lock()
	allReady := true
	list := make([]Conversation, 0, len(s.entries))
	for _, e := range s.entries {
		if !e.ready {
			allReady = false
		}
		list = append(list, Conversation{Item: e.item, LastMessage: e.last})
	}
	if !allReady {
		// Fan-out still in flight; wait for the first full pass before
		// publishing a partial inbox.
		s.mu.Unlock()
		return
	}
	s.state = StateReady
	s.mu.Unlock()

	sort.Slice(list, func(i, j int) bool {
		ti, tj := list[i].EffectiveTime(), list[j].EffectiveTime()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return list[i].Item.ID < list[j].Item.ID
	})

	// Conflate: keep only the newest snapshot buffered.
	select {
	case s.out <- list:
	default:
		select {
		case <-s.out:
		default:
		}
		s.out <- list
	}
}

func (s *Session) teardown(setWatch domainitems.SetWatch) {
	setWatch.Cancel()
	s.mu.Lock()
	for id, e := range s.entries {
		if e.watch != nil {
			e.watch.Cancel()
		}
		delete(s.entries, id)
	}
	s.state = StateIdle
	s.mu.Unlock()
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}
