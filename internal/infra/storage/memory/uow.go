package memory

import (
	"context"
	"errors"

	"campusfind/internal/app/uow"
	domainchat "campusfind/internal/domain/chat"
	domainitems "campusfind/internal/domain/items"
	domainuser "campusfind/internal/domain/user"
)

// ErrFactoryMisconfigured indicates a missing store or repository.
var ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")

// Factory starts serialized in-memory transactions. Begin takes the store's
// transaction lock and holds it until Commit or Rollback, so every
// transaction observes a quiescent store: the read-check-write sequence of
// the binding protocol cannot interleave with a competing sender.
type Factory struct {
	Store *Store
	Users domainuser.Repository
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.Store == nil {
		return nil, ErrFactoryMisconfigured
	}
	f.Store.txMu.Lock()
	return &Unit{
		store:       f.Store,
		users:       f.Users,
		stagedItems: make(map[domainitems.ItemID]*domainitems.Item),
	}, nil
}

// Unit stages writes until Commit; Rollback discards them. Reads see the
// transaction's own staged writes layered over the store.
type Unit struct {
	store       *Store
	users       domainuser.Repository
	stagedItems map[domainitems.ItemID]*domainitems.Item
	stagedMsgs  []*domainchat.Message
	finished    bool
}

func (u *Unit) Items() domainitems.Repository { return &txItems{unit: u} }

func (u *Unit) Threads() domainchat.ThreadRepository { return &txThreads{unit: u} }

func (u *Unit) Users() domainuser.Repository { return u.users }

func (u *Unit) Commit(ctx context.Context) error {
	if u.finished {
		return nil
	}
	u.finished = true
	u.store.apply(u.stagedItems, u.stagedMsgs)
	u.store.txMu.Unlock()
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	if u.finished {
		return nil
	}
	u.finished = true
	u.stagedItems = nil
	u.stagedMsgs = nil
	u.store.txMu.Unlock()
	return nil
}

// InjectContext is a no-op; memory transactions do not ride the context.
func (u *Unit) InjectContext(ctx context.Context) context.Context { return ctx }

type txItems struct {
	unit *Unit
}

func (r *txItems) ByID(ctx context.Context, id domainitems.ItemID) (*domainitems.Item, error) {
	if staged, ok := r.unit.stagedItems[id]; ok {
		return cloneItem(staged), nil
	}
	item, ok := r.unit.store.getItem(id)
	if !ok {
		return nil, domainitems.ErrNotFound
	}
	return item, nil
}

func (r *txItems) Save(ctx context.Context, item *domainitems.Item) error {
	if item == nil {
		return domainitems.ErrIDRequired
	}
	r.unit.stagedItems[item.ID] = cloneItem(item)
	return nil
}

func (r *txItems) List(ctx context.Context, filter domainitems.Filter) ([]*domainitems.Item, error) {
	return r.overlay(r.unit.store.listItems(filter), func(item *domainitems.Item) bool {
		return matchesFilter(item, filter)
	}), nil
}

func (r *txItems) ForUser(ctx context.Context, userID string) ([]*domainitems.Item, error) {
	return r.overlay(r.unit.store.itemsForUser(userID), func(item *domainitems.Item) bool {
		return item.IsOwner(userID) || item.HasParticipant(userID)
	}), nil
}

// overlay replaces committed entries with this transaction's staged versions
// and appends staged items the base query missed.
func (r *txItems) overlay(base []*domainitems.Item, match func(*domainitems.Item) bool) []*domainitems.Item {
	seen := make(map[domainitems.ItemID]bool, len(base))
	out := base[:0]
	for _, item := range base {
		seen[item.ID] = true
		if staged, ok := r.unit.stagedItems[item.ID]; ok {
			if !match(staged) {
				continue
			}
			item = cloneItem(staged)
		}
		out = append(out, item)
	}
	for id, staged := range r.unit.stagedItems {
		if !seen[id] && match(staged) {
			out = append(out, cloneItem(staged))
		}
	}
	sortItems(out)
	return out
}

type txThreads struct {
	unit *Unit
}

func (r *txThreads) Append(ctx context.Context, msg *domainchat.Message) error {
	if msg == nil {
		return domainchat.ErrIDRequired
	}
	staged := int64(0)
	for _, m := range r.unit.stagedMsgs {
		if m.ItemID == msg.ItemID {
			staged++
		}
	}
	msg.CreatedAt, msg.Seq = r.unit.store.stamp(msg.ItemID, staged)
	r.unit.stagedMsgs = append(r.unit.stagedMsgs, cloneMessage(msg))
	return nil
}

func (r *txThreads) Latest(ctx context.Context, itemID domainitems.ItemID) (*domainchat.Message, error) {
	for i := len(r.unit.stagedMsgs) - 1; i >= 0; i-- {
		if r.unit.stagedMsgs[i].ItemID == itemID {
			return cloneMessage(r.unit.stagedMsgs[i]), nil
		}
	}
	return r.unit.store.latest(itemID), nil
}

func (r *txThreads) All(ctx context.Context, itemID domainitems.ItemID) ([]*domainchat.Message, error) {
	out := r.unit.store.allMessages(itemID)
	for _, msg := range r.unit.stagedMsgs {
		if msg.ItemID == itemID {
			out = append(out, cloneMessage(msg))
		}
	}
	return out, nil
}

var _ uow.Factory = Factory{}
