// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/prephub/internal/app/system/submissions"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	// FeedCache is set when redis_url is configured; nil means the feed
	// cache lives in-process.
	FeedCache *submissions.RedisCache
}
