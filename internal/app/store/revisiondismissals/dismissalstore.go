// internal/app/store/revisiondismissals/dismissalstore.go
package revisiondismissals

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

// CollectionName is the Mongo collection holding dismissals.
const CollectionName = "revision_dismissals"

// Store provides access to the revision_dismissals collection.
// There is one document per (user_id, question_key) holding the latest dismissal.
type Store struct {
	c *mongo.Collection
}

// New creates a dismissal store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(CollectionName)}
}

// IndexModels returns the indexes the store relies on.
func IndexModels() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "question_key", Value: 1}},
			Options: options.Index().SetName("uniq_dismissal_user_question").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "at", Value: 1}},
			Options: options.Index().SetName("idx_dismissal_user_at"),
		},
	}
}

// Record upserts the dismissal for (userID, questionKey). An older at never
// replaces a newer one.
func (s *Store) Record(ctx context.Context, userID, questionKey string, reason models.DismissalReason, at time.Time) error {
	filter := bson.M{"user_id": userID, "question_key": questionKey}
	update := bson.M{
		"$setOnInsert": bson.M{"_id": primitive.NewObjectID()},
		"$max":         bson.M{"at": at.UTC()},
		"$set":         bson.M{"reason": reason},
	}
	_, err := s.c.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil && wafflemongo.IsDup(err) {
		// Lost an upsert race; apply to the document that won.
		_, err = s.c.UpdateOne(ctx, filter, bson.M{
			"$max": bson.M{"at": at.UTC()},
			"$set": bson.M{"reason": reason},
		})
	}
	return err
}

// ListSince returns the user's dismissals at or after since.
func (s *Store) ListSince(ctx context.Context, userID string, since time.Time) ([]models.Dismissal, error) {
	cur, err := s.c.Find(ctx, bson.M{"user_id": userID, "at": bson.M{"$gte": since.UTC()}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Dismissal
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
