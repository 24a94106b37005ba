// internal/app/store/revisionitems/revisionitemstore.go
package revisionitems

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/prephub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the Mongo collection holding live revision items.
const CollectionName = "revision_items"

var (
	// ErrNotFound means no item matched the user-scoped lookup.
	ErrNotFound = errors.New("revision item not found")
	// ErrDuplicate means the write would create a second item for the same
	// question in the same bucket. Callers resolve it; it is never shown to users.
	ErrDuplicate = errors.New("revision item already exists in bucket")
)

// Store provides access to the revision_items collection.
// Every method is scoped by user id.
type Store struct {
	c *mongo.Collection
}

// New creates a revision item store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(CollectionName)}
}

// IndexModels returns the indexes the store relies on.
// The unique key is what makes UpsertIfAbsent idempotent.
func IndexModels() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "question_key", Value: 1},
				{Key: "bucket", Value: 1},
			},
			Options: options.Index().SetName("uniq_revision_user_question_bucket").SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "bucket", Value: 1},
				{Key: "bucket_due_at", Value: 1},
			},
			Options: options.Index().SetName("idx_revision_user_bucket_due"),
		},
	}
}

func keyFilter(userID, questionKey string, b models.Bucket) bson.M {
	return bson.M{"user_id": userID, "question_key": questionKey, "bucket": b}
}

// UpsertIfAbsent inserts it unless an item with the same (user, question, bucket)
// exists, in which case the existing item is returned with created=false.
// A duplicate-key race with a concurrent writer resolves the same way.
func (s *Store) UpsertIfAbsent(ctx context.Context, it models.RevisionItem) (models.RevisionItem, bool, error) {
	it = Normalize(it)
	now := time.Now().UTC()
	if it.CreatedAt.IsZero() {
		it.CreatedAt = now
	}
	it.UpdatedAt = &now
	it.ID = primitive.NewObjectID()

	filter := keyFilter(it.UserID, it.QuestionKey, it.Bucket)
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var got models.RevisionItem
	err := s.c.FindOneAndUpdate(ctx, filter, bson.M{"$setOnInsert": it}, opts).Decode(&got)
	if err != nil {
		if wafflemongo.IsDup(err) {
			existing, ferr := s.FindByKey(ctx, it.UserID, it.QuestionKey, it.Bucket)
			if ferr != nil {
				return models.RevisionItem{}, false, ferr
			}
			return existing, false, nil
		}
		return models.RevisionItem{}, false, err
	}
	return got, got.ID == it.ID, nil
}

// FindByID returns the user's item with the given id.
func (s *Store) FindByID(ctx context.Context, userID string, id primitive.ObjectID) (models.RevisionItem, error) {
	var it models.RevisionItem
	err := s.c.FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&it)
	if err == mongo.ErrNoDocuments {
		return models.RevisionItem{}, ErrNotFound
	}
	return it, err
}

// FindByKey returns the user's item for a question in one bucket.
func (s *Store) FindByKey(ctx context.Context, userID, questionKey string, b models.Bucket) (models.RevisionItem, error) {
	var it models.RevisionItem
	err := s.c.FindOne(ctx, keyFilter(userID, questionKey, b)).Decode(&it)
	if err == mongo.ErrNoDocuments {
		return models.RevisionItem{}, ErrNotFound
	}
	return it, err
}

// FindDueBucket returns the bucket's items due strictly before asOf.
func (s *Store) FindDueBucket(ctx context.Context, userID string, b models.Bucket, asOf time.Time) ([]models.RevisionItem, error) {
	return s.List(ctx, Filter{UserID: userID, Bucket: b, DueBefore: asOf})
}

// List returns the items matching f, soonest due first.
func (s *Store) List(ctx context.Context, f Filter) ([]models.RevisionItem, error) {
	cur, err := s.c.Find(ctx, f.bson(), options.Find().SetSort(sortSpec))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.RevisionItem
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// BulkAdvance moves every item matching f to bucket b (when b is set) with
// the given due date. Items whose move would collide with an existing record
// in b are left where they are. Returns the number of items changed.
func (s *Store) BulkAdvance(ctx context.Context, f Filter, b models.Bucket, dueAt time.Time) (int64, error) {
	ch := Changes{BucketDueAt: dueAt}
	if b != "" && b != f.Bucket {
		ch.Bucket = b
	}
	upd := ch.bson(time.Now().UTC())

	res, err := s.c.UpdateMany(ctx, f.bson(), upd)
	if err == nil {
		return res.ModifiedCount, nil
	}
	if !wafflemongo.IsDup(err) || ch.Bucket == "" {
		return 0, err
	}

	// Some targets already hold the question. UpdateMany stops at the
	// first conflict, so finish the rest one by one and skip collisions.
	var moved int64
	if res != nil {
		moved = res.ModifiedCount
	}
	remaining, lerr := s.List(ctx, f)
	if lerr != nil {
		return moved, lerr
	}
	for _, it := range remaining {
		r, uerr := s.c.UpdateOne(ctx, bson.M{"_id": it.ID, "user_id": it.UserID}, upd)
		if uerr != nil {
			if wafflemongo.IsDup(uerr) {
				continue
			}
			return moved, uerr
		}
		moved += r.ModifiedCount
	}
	return moved, nil
}

// Update applies ch to one item and returns the updated item.
// Returns ErrDuplicate when a bucket change collides with an existing item.
func (s *Store) Update(ctx context.Context, userID string, id primitive.ObjectID, ch Changes) (models.RevisionItem, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var it models.RevisionItem
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id, "user_id": userID}, ch.bson(time.Now().UTC()), opts).Decode(&it)
	switch {
	case err == nil:
		return it, nil
	case err == mongo.ErrNoDocuments:
		return models.RevisionItem{}, ErrNotFound
	case wafflemongo.IsDup(err):
		return models.RevisionItem{}, ErrDuplicate
	default:
		return models.RevisionItem{}, err
	}
}

// DeleteAndReturn removes one item and returns what was removed.
func (s *Store) DeleteAndReturn(ctx context.Context, userID string, id primitive.ObjectID) (models.RevisionItem, error) {
	var it models.RevisionItem
	err := s.c.FindOneAndDelete(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&it)
	if err == mongo.ErrNoDocuments {
		return models.RevisionItem{}, ErrNotFound
	}
	return it, err
}
