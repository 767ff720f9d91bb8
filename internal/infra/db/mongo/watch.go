package mongo

import (
	"context"
	"log/slog"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainchat "campusfind/internal/domain/chat"
	domainitems "campusfind/internal/domain/items"
)

// Watchers implements the live-query interfaces on top of Mongo change
// streams. Each watch re-runs its query on every relevant stream event and
// conflates results into a one-slot channel, so consumers always observe the
// newest state and never a backlog.
type Watchers struct {
	Items   *ItemRepository
	Threads *ThreadRepository
	DB      *mongo.Database
	Logger  *slog.Logger
}

func (w *Watchers) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}

// WatchForUser implements domainitems.Watcher.
func (w *Watchers) WatchForUser(ctx context.Context, userID string) (domainitems.SetWatch, error) {
	runCtx, cancel := context.WithCancel(ctx)
	stream, err := w.DB.Collection("items").Watch(runCtx, mongo.Pipeline{},
		options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		cancel()
		return nil, err
	}

	sw := &setWatch{ch: make(chan []*domainitems.Item, 1), cancel: cancel}
	snapshot, err := w.Items.ForUser(runCtx, userID)
	if err != nil {
		cancel()
		_ = stream.Close(context.Background())
		return nil, err
	}
	sw.push(snapshot)

	go func() {
		defer sw.close()
		defer stream.Close(context.Background())
		for stream.Next(runCtx) {
			set, err := w.Items.ForUser(runCtx, userID)
			if err != nil {
				if runCtx.Err() != nil {
					return
				}
				w.logger().Warn("item-set requery failed", "user_id", userID, "error", err)
				continue
			}
			sw.push(set)
		}
	}()
	return sw, nil
}

// WatchLatest implements domainchat.Watcher.
func (w *Watchers) WatchLatest(ctx context.Context, itemID domainitems.ItemID) (domainchat.LatestWatch, error) {
	runCtx, cancel := context.WithCancel(ctx)
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"fullDocument.item_id": string(itemID)}}},
	}
	stream, err := w.DB.Collection("messages").Watch(runCtx, pipeline,
		options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		cancel()
		return nil, err
	}

	lw := &latestWatch{ch: make(chan *domainchat.Message, 1), cancel: cancel}
	latest, err := w.Threads.Latest(runCtx, itemID)
	if err != nil {
		cancel()
		_ = stream.Close(context.Background())
		return nil, err
	}
	lw.push(latest)

	go func() {
		defer lw.close()
		defer stream.Close(context.Background())
		for stream.Next(runCtx) {
			msg, err := w.Threads.Latest(runCtx, itemID)
			if err != nil {
				if runCtx.Err() != nil {
					return
				}
				w.logger().Warn("thread requery failed", "item_id", itemID, "error", err)
				continue
			}
			lw.push(msg)
		}
	}()
	return lw, nil
}

type setWatch struct {
	ch     chan []*domainitems.Item
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

func (s *setWatch) Updates() <-chan []*domainitems.Item { return s.ch }

func (s *setWatch) Cancel() { s.cancel() }

func (s *setWatch) push(set []*domainitems.Item) {
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

func (s *setWatch) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

type latestWatch struct {
	ch     chan *domainchat.Message
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

func (l *latestWatch) Updates() <-chan *domainchat.Message { return l.ch }

func (l *latestWatch) Cancel() { l.cancel() }

func (l *latestWatch) push(msg *domainchat.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	select {
	case l.ch <- msg:
	default:
		select {
		case <-l.ch:
		default:
		}
		l.ch <- msg
	}
}

func (l *latestWatch) close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.closed = true
		close(l.ch)
	}
}
