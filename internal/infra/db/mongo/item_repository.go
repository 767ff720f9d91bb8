package mongo

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"campusfind/internal/app/uow"
	domainitems "campusfind/internal/domain/items"
)

type ItemRepository struct {
	col *mongo.Collection
}

func NewItemRepository(db *mongo.Database) *ItemRepository {
	return &ItemRepository{col: db.Collection("items")}
}

func (r *ItemRepository) ByID(ctx context.Context, id domainitems.ItemID) (*domainitems.Item, error) {
	var doc itemDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainitems.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

// Save upserts with a version CAS; a matched-nothing update means another
// transaction won the write on this document and surfaces as uow.ErrConflict.
func (r *ItemRepository) Save(ctx context.Context, item *domainitems.Item) error {
	doc := newItemDocument(item)
	filter := bson.M{"_id": doc.ID, "version": item.Version}
	doc.Version = item.Version + 1
	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(true)
	res, err := r.col.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) || isWriteConflict(err) {
			return uow.ErrConflict
		}
		return err
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return uow.ErrConflict
	}
	item.Version = doc.Version
	return nil
}

func (r *ItemRepository) List(ctx context.Context, filter domainitems.Filter) ([]*domainitems.Item, error) {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = string(filter.Status)
	}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.Location != "" {
		query["location"] = filter.Location
	}
	if filter.OwnerID != "" {
		query["owner_id"] = filter.OwnerID
	}
	items, err := r.find(ctx, query)
	if err != nil {
		return nil, err
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		q = strings.ToLower(q)
		filtered := items[:0]
		for _, item := range items {
			if strings.Contains(strings.ToLower(item.Name), q) ||
				strings.Contains(strings.ToLower(item.Description), q) {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}
	return items, nil
}

func (r *ItemRepository) ForUser(ctx context.Context, userID string) ([]*domainitems.Item, error) {
	query := bson.M{"$or": bson.A{
		bson.M{"owner_id": userID},
		bson.M{"participants": userID},
	}}
	return r.find(ctx, query)
}

func (r *ItemRepository) find(ctx context.Context, query bson.M) ([]*domainitems.Item, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.col.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var out []*domainitems.Item
	for cursor.Next(ctx) {
		var doc itemDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAggregate())
	}
	return out, cursor.Err()
}

type itemDocument struct {
	ID           string   `bson:"_id"`
	OwnerID      string   `bson:"owner_id"`
	Name         string   `bson:"name"`
	Status       string   `bson:"status"`
	Category     string   `bson:"category"`
	Description  string   `bson:"description"`
	Location     string   `bson:"location"`
	Date         string   `bson:"date"`
	ImageURL     string   `bson:"image_url"`
	Participants []string `bson:"participants"`
	CreatedAt    int64    `bson:"created_at"`
	UpdatedAt    int64    `bson:"updated_at"`
	Version      int64    `bson:"version"`
}

func newItemDocument(item *domainitems.Item) itemDocument {
	return itemDocument{
		ID:           string(item.ID),
		OwnerID:      item.OwnerID,
		Name:         item.Name,
		Status:       string(item.Status),
		Category:     item.Category,
		Description:  item.Description,
		Location:     item.Location,
		Date:         item.Date,
		ImageURL:     item.ImageURL,
		Participants: item.Participants,
		CreatedAt:    item.CreatedAt.UnixMilli(),
		UpdatedAt:    item.UpdatedAt.UnixMilli(),
		Version:      item.Version,
	}
}

func (d itemDocument) toAggregate() *domainitems.Item {
	return &domainitems.Item{
		ID:           domainitems.ItemID(d.ID),
		OwnerID:      d.OwnerID,
		Name:         d.Name,
		Status:       domainitems.Status(d.Status),
		Category:     d.Category,
		Description:  d.Description,
		Location:     d.Location,
		Date:         d.Date,
		ImageURL:     d.ImageURL,
		Participants: d.Participants,
		CreatedAt:    timestampToTime(d.CreatedAt),
		UpdatedAt:    timestampToTime(d.UpdatedAt),
		Version:      d.Version,
	}
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
