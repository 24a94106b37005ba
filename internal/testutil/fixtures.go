package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/prephub/internal/app/store/revisionarchive"
	"github.com/dalemusser/prephub/internal/app/store/revisionitems"
	"github.com/dalemusser/prephub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures seeds revision data into a test database.
type Fixtures struct {
	db      *mongo.Database
	t       *testing.T
	items   *revisionitems.Store
	archive *revisionarchive.Store
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{
		db:      db,
		t:       t,
		items:   revisionitems.New(db),
		archive: revisionarchive.New(db),
	}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateItem stores a leetcode item in bucket b due at due.
func (f *Fixtures) CreateItem(ctx context.Context, userID, ref string, d models.Difficulty, b models.Bucket, due time.Time) models.RevisionItem {
	f.t.Helper()
	it, created, err := f.items.UpsertIfAbsent(ctx, models.RevisionItem{
		UserID:      userID,
		Source:      "leetcode",
		Ref:         ref,
		Title:       ref,
		Difficulty:  d,
		Bucket:      b,
		BucketDueAt: due,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		f.t.Fatalf("CreateItem(%s): %v", ref, err)
	}
	if !created {
		f.t.Fatalf("CreateItem(%s): already in %s", ref, b)
	}
	return it
}

// CreateArchived records completed items in the user's archive for monthKey.
func (f *Fixtures) CreateArchived(ctx context.Context, userID, monthKey string, items ...models.ArchivedItem) {
	f.t.Helper()
	if _, err := f.archive.AddItems(ctx, userID, monthKey, items); err != nil {
		f.t.Fatalf("CreateArchived(%s): %v", monthKey, err)
	}
}
