// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/prephub/internal/app/store/revisionarchive"
	"github.com/dalemusser/prephub/internal/app/store/revisiondismissals"
	"github.com/dalemusser/prephub/internal/app/store/revisionitems"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Set is the desired index set of one collection.
type Set struct {
	Collection string
	Models     []mongo.IndexModel
}

// Sets lists every collection the scheduler owns with its indexes.
func Sets() []Set {
	return []Set{
		{Collection: revisionitems.CollectionName, Models: revisionitems.IndexModels()},
		{Collection: revisionarchive.CollectionName, Models: revisionarchive.IndexModels()},
		{Collection: revisiondismissals.CollectionName, Models: revisiondismissals.IndexModels()},
	}
}

/*
EnsureAll is called at startup. Reconciling a set is idempotent.
Errors are aggregated so every problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string
	for _, s := range Sets() {
		if err := ensureIndexSet(ctx, db.Collection(s.Collection), s.Models); err != nil {
			problems = append(problems, s.Collection+": "+err.Error())
		}
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Reconcile a set of desired indexes for one collection                      */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

type desiredIndex struct {
	model  mongo.IndexModel
	name   string
	unique bool
	sig    string
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func describe(m mongo.IndexModel) (desiredIndex, error) {
	keys, ok := m.Keys.(bson.D)
	if !ok {
		return desiredIndex{}, fmt.Errorf("index keys must be bson.D, got %T", m.Keys)
	}
	d := desiredIndex{model: m, sig: keySig(keys)}
	if m.Options != nil {
		if m.Options.Name != nil {
			d.name = *m.Options.Name
		}
		if m.Options.Unique != nil {
			d.unique = *m.Options.Unique
		}
	}
	return d, nil
}

// isOptionsConflictErr reports Mongo/DocDB's answer to creating an index whose
// keys already exist under another name or with other options.
func isOptionsConflictErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "IndexOptionsConflict")
}

// listExisting maps key signature to the collection's current index.
func listExisting(ctx context.Context, coll *mongo.Collection) (map[string]existingIndex, error) {
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := map[string]existingIndex{}
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		out[keySig(idx.Key)] = idx
	}
	return out, cur.Err()
}

// recreate drops the index named old and creates d in its place.
func recreate(ctx context.Context, coll *mongo.Collection, old string, d desiredIndex) error {
	if _, err := coll.Indexes().DropOne(ctx, old); err != nil {
		return fmt.Errorf("drop %s: %w", old, err)
	}
	if _, err := coll.Indexes().CreateOne(ctx, d.model); err != nil {
		if wafflemongo.IsDup(err) && d.unique {
			return fmt.Errorf("cannot create unique index (duplicates present on %s)", d.sig)
		}
		return err
	}
	return nil
}

func ensureOne(ctx context.Context, coll *mongo.Collection, d desiredIndex, existing map[string]existingIndex) (string, error) {
	if ex, ok := existing[d.sig]; ok {
		exUnique := ex.Unique != nil && *ex.Unique
		switch {
		case exUnique != d.unique:
			return "recreated", recreate(ctx, coll, ex.Name, d)
		case d.name != "" && ex.Name != d.name:
			return "renamed", recreate(ctx, coll, ex.Name, d)
		default:
			return "reused", nil
		}
	}

	_, err := coll.Indexes().CreateOne(ctx, d.model)
	if !isOptionsConflictErr(err) {
		return "created", err
	}

	// The keys exist after all, under options the listing did not show.
	fresh, lerr := listExisting(ctx, coll)
	if lerr != nil {
		return "", errors.Join(err, lerr)
	}
	ex, ok := fresh[d.sig]
	if !ok {
		return "", err
	}
	if (ex.Unique != nil && *ex.Unique) == d.unique {
		return "reused", nil
	}
	return "recreated", recreate(ctx, coll, ex.Name, d)
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	existing, err := listExisting(ctx, coll)
	if err != nil {
		// A collection that does not exist yet lists no indexes on some servers.
		zap.L().Debug("listing indexes failed; creating from scratch",
			zap.String("collection", coll.Name()),
			zap.Error(err))
		existing = map[string]existingIndex{}
	}

	var errs []string
	for _, m := range models {
		d, err := describe(m)
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}

		start := time.Now()
		action, err := ensureOne(ctx, coll, d, existing)
		if err != nil {
			zap.L().Warn("index ensure failed",
				zap.String("collection", coll.Name()),
				zap.String("name", d.name),
				zap.String("keys", d.sig),
				zap.Bool("unique", d.unique),
				zap.Error(err))
			errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), d.name, err))
			continue
		}
		zap.L().Info("index ensured",
			zap.String("collection", coll.Name()),
			zap.String("name", d.name),
			zap.String("keys", d.sig),
			zap.Bool("unique", d.unique),
			zap.String("action", action),
			zap.String("took", time.Since(start).String()))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
