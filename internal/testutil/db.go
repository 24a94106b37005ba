package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// DefaultTestMongoURI is used when PREPHUB_TEST_MONGO_URI is unset.
const DefaultTestMongoURI = "mongodb://localhost:27017"

// TestContext returns a context bounded for a single test's database work.
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

// SetupTestDB connects to the test MongoDB and returns a fresh, uniquely
// named database that is dropped when the test finishes.
// The test is skipped when no server is reachable.
func SetupTestDB(t *testing.T) *mongo.Database {
	t.Helper()

	uri := os.Getenv("PREPHUB_TEST_MONGO_URI")
	if uri == "" {
		uri = DefaultTestMongoURI
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(2*time.Second))
	if err != nil {
		t.Skipf("mongo unavailable (%s): %v", uri, err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		t.Skipf("mongo unavailable (%s): %v", uri, err)
	}

	db := client.Database(fmt.Sprintf("prephub_test_%s", primitive.NewObjectID().Hex()))
	t.Cleanup(func() {
		cctx, ccancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer ccancel()
		_ = db.Drop(cctx)
		_ = client.Disconnect(cctx)
	})
	return db
}
