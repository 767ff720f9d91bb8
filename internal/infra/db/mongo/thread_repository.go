package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainchat "campusfind/internal/domain/chat"
	domainitems "campusfind/internal/domain/items"
)

type ThreadRepository struct {
	col      *mongo.Collection
	counters *mongo.Collection
	now      func() time.Time
}

func NewThreadRepository(db *mongo.Database) *ThreadRepository {
	return &ThreadRepository{
		col:      db.Collection("messages"),
		counters: db.Collection("thread_counters"),
		now:      time.Now,
	}
}

// Append stores the message, assigning CreatedAt and a per-thread sequence
// number from the counters collection. Both writes ride the ambient session
// so the counter increment aborts with the transaction.
func (r *ThreadRepository) Append(ctx context.Context, msg *domainchat.Message) error {
	seq, err := r.nextSeq(ctx, msg.ItemID)
	if err != nil {
		return err
	}
	msg.CreatedAt = r.now().UTC()
	msg.Seq = seq
	_, err = r.col.InsertOne(ctx, newMessageDocument(msg))
	return err
}

func (r *ThreadRepository) Latest(ctx context.Context, itemID domainitems.ItemID) (*domainchat.Message, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "seq", Value: -1}})
	var doc messageDocument
	if err := r.col.FindOne(ctx, bson.M{"item_id": string(itemID)}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return doc.toMessage(), nil
}

func (r *ThreadRepository) All(ctx context.Context, itemID domainitems.ItemID) ([]*domainchat.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "seq", Value: 1}})
	cursor, err := r.col.Find(ctx, bson.M{"item_id": string(itemID)}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var out []*domainchat.Message
	for cursor.Next(ctx) {
		var doc messageDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toMessage())
	}
	return out, cursor.Err()
}

func (r *ThreadRepository) nextSeq(ctx context.Context, itemID domainitems.ItemID) (int64, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": string(itemID)},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&doc)
	if err != nil {
		return 0, err
	}
	return doc.Seq, nil
}

type messageDocument struct {
	ID              string `bson:"_id"`
	ItemID          string `bson:"item_id"`
	SenderID        string `bson:"sender_id"`
	SenderName      string `bson:"sender_name"`
	SenderAvatarURL string `bson:"sender_avatar_url"`
	Content         string `bson:"content"`
	CreatedAt       int64  `bson:"created_at"`
	Seq             int64  `bson:"seq"`
}

func newMessageDocument(msg *domainchat.Message) messageDocument {
	return messageDocument{
		ID:              string(msg.ID),
		ItemID:          string(msg.ItemID),
		SenderID:        msg.SenderID,
		SenderName:      msg.SenderName,
		SenderAvatarURL: msg.SenderAvatarURL,
		Content:         msg.Content,
		CreatedAt:       msg.CreatedAt.UnixMilli(),
		Seq:             msg.Seq,
	}
}

func (d messageDocument) toMessage() *domainchat.Message {
	return &domainchat.Message{
		ID:              domainchat.MessageID(d.ID),
		ItemID:          domainitems.ItemID(d.ItemID),
		SenderID:        d.SenderID,
		SenderName:      d.SenderName,
		SenderAvatarURL: d.SenderAvatarURL,
		Content:         d.Content,
		CreatedAt:       timestampToTime(d.CreatedAt),
		Seq:             d.Seq,
	}
}
