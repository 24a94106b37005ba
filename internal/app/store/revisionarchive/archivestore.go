// internal/app/store/revisionarchive/archivestore.go
package revisionarchive

import (
	"context"
	"time"

	"github.com/dalemusser/prephub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the Mongo collection holding monthly archives.
const CollectionName = "revision_archives"

// Store provides access to the revision_archives collection.
// There is one document per (user_id, month_key); items are only ever added.
type Store struct {
	c *mongo.Collection
}

// New creates an archive store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(CollectionName)}
}

// IndexModels returns the indexes the store relies on.
func IndexModels() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "month_key", Value: 1}},
			Options: options.Index().SetName("uniq_archive_user_month").SetUnique(true),
		},
	}
}

// ensureDoc creates the month document if it is missing.
func (s *Store) ensureDoc(ctx context.Context, userID, monthKey string, now time.Time) error {
	filter := bson.M{"user_id": userID, "month_key": monthKey}
	update := bson.M{
		"$setOnInsert": bson.M{
			"_id":        primitive.NewObjectID(),
			"user_id":    userID,
			"month_key":  monthKey,
			"items":      bson.A{},
			"created_at": now,
		},
	}
	_, err := s.c.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil && wafflemongo.IsDup(err) {
		// A concurrent writer created it first.
		return nil
	}
	return err
}

// AddItems adds each item to the month document unless an item with the
// same ItemKey is already there. Returns the keys that were newly added,
// so re-archiving the same items reports nothing and changes nothing.
func (s *Store) AddItems(ctx context.Context, userID, monthKey string, items []models.ArchivedItem) ([]string, error) {
	if len(items) == 0 {
		return nil, nil
	}
	now := time.Now().UTC()
	if err := s.ensureDoc(ctx, userID, monthKey, now); err != nil {
		return nil, err
	}

	var added []string
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if it.ItemKey == "" || seen[it.ItemKey] {
			continue
		}
		seen[it.ItemKey] = true

		filter := bson.M{
			"user_id":        userID,
			"month_key":      monthKey,
			"items.item_key": bson.M{"$ne": it.ItemKey},
		}
		update := bson.M{
			"$push": bson.M{"items": it},
			"$set":  bson.M{"updated_at": now},
		}
		res, err := s.c.UpdateOne(ctx, filter, update)
		if err != nil {
			return added, err
		}
		if res.ModifiedCount == 1 {
			added = append(added, it.ItemKey)
		}
	}
	return added, nil
}

// RemoveItems pulls the given keys from a month document. It exists only
// to undo an AddItems whose surrounding transition failed.
func (s *Store) RemoveItems(ctx context.Context, userID, monthKey string, itemKeys []string) error {
	if len(itemKeys) == 0 {
		return nil
	}
	_, err := s.c.UpdateOne(ctx,
		bson.M{"user_id": userID, "month_key": monthKey},
		bson.M{"$pull": bson.M{"items": bson.M{"item_key": bson.M{"$in": itemKeys}}}},
	)
	return err
}

// Get returns the user's archive for a month. A month with no archive yet
// yields an empty document, not an error.
func (s *Store) Get(ctx context.Context, userID, monthKey string) (models.MonthlyArchive, error) {
	var doc models.MonthlyArchive
	err := s.c.FindOne(ctx, bson.M{"user_id": userID, "month_key": monthKey}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return models.MonthlyArchive{UserID: userID, MonthKey: monthKey, Items: []models.ArchivedItem{}}, nil
	}
	if err != nil {
		return models.MonthlyArchive{}, err
	}
	return doc, nil
}

// ListByUser returns every archive month for the user, newest first.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]models.MonthlyArchive, error) {
	opts := options.Find().SetSort(bson.D{{Key: "month_key", Value: -1}})
	cur, err := s.c.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.MonthlyArchive
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
