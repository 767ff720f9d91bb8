package outbox

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	appoutbox "campusfind/internal/app/outbox"
)

const (
	statusPending = "pending"
	statusSending = "sending"
	statusSent    = "sent"
)

// claimLease bounds how long a crashed worker can hold a document before
// another worker may reclaim it.
const claimLease = 30 * time.Second

// Store persists outbox records in Mongo. Add rides the caller's session
// context, so the record commits atomically with the business write.
type Store struct {
	col *mongo.Collection
}

func NewStore(db *mongo.Database) *Store {
	return &Store{col: db.Collection("outbox")}
}

// EventDocument is the stored shape of one pending integration event.
type EventDocument struct {
	ID          string            `bson:"_id"`
	Name        string            `bson:"name"`
	Aggregate   string            `bson:"aggregate"`
	Payload     []byte            `bson:"payload"`
	Headers     map[string]string `bson:"headers"`
	OccurredAt  time.Time         `bson:"occurred_at"`
	Status      string            `bson:"status"`
	Attempts    int               `bson:"attempts"`
	NextAttempt time.Time         `bson:"next_attempt"`
	ClaimedBy   string            `bson:"claimed_by"`
	ClaimedAt   time.Time         `bson:"claimed_at"`
	LastError   string            `bson:"last_error"`
}

// Add implements the transactional outbox contract.
func (s *Store) Add(ctx context.Context, record appoutbox.EventRecord) error {
	doc := EventDocument{
		ID:          record.ID,
		Name:        record.Name,
		Aggregate:   record.Aggregate,
		Payload:     record.Payload,
		Headers:     record.Headers,
		OccurredAt:  record.OccurredAt,
		Status:      statusPending,
		NextAttempt: time.Now().UTC(),
	}
	_, err := s.col.InsertOne(ctx, doc)
	return err
}

// Claim atomically takes the oldest dispatchable document for this worker.
// Returns (nil, nil) when nothing is due.
func (s *Store) Claim(ctx context.Context, workerID string) (*EventDocument, error) {
	now := time.Now().UTC()
	filter := bson.M{
		"status":       bson.M{"$in": bson.A{statusPending, statusSending}},
		"next_attempt": bson.M{"$lte": now},
		"$or": bson.A{
			bson.M{"status": statusPending},
			bson.M{"claimed_at": bson.M{"$lte": now.Add(-claimLease)}},
		},
	}
	update := bson.M{"$set": bson.M{
		"status":     statusSending,
		"claimed_by": workerID,
		"claimed_at": now,
	}}
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "occurred_at", Value: 1}}).
		SetReturnDocument(options.After)
	var doc EventDocument
	err := s.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *Store) MarkSent(ctx context.Context, id string) error {
	_, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status":  statusSent,
		"sent_at": time.Now().UTC(),
	}})
	return err
}

func (s *Store) MarkFailed(ctx context.Context, id string, nextAttempt time.Time, reason string) error {
	_, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"status":       statusPending,
			"next_attempt": nextAttempt.UTC(),
			"last_error":   reason,
		},
		"$inc": bson.M{"attempts": 1},
	})
	return err
}
