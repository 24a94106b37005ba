// Package revision is the revision bucket scheduler: the rules that move a
// user's practice items between the today, week and month buckets, fold in
// solves reported by the submission feed, and archive finished months.
//
// Nothing here runs in the background. Every step runs inside the request
// that needs it, and every mutating step is safe to repeat.
package revision

import (
	"context"
	"time"

	"github.com/dalemusser/prephub/internal/app/store/revisionitems"
	"github.com/dalemusser/prephub/internal/app/system/timebound"
	"github.com/dalemusser/prephub/internal/app/system/txn"
	"github.com/dalemusser/prephub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ItemStore is the persistence the scheduler needs for live items.
// revisionitems.Store implements it against MongoDB.
type ItemStore interface {
	UpsertIfAbsent(ctx context.Context, it models.RevisionItem) (models.RevisionItem, bool, error)
	FindByID(ctx context.Context, userID string, id primitive.ObjectID) (models.RevisionItem, error)
	FindByKey(ctx context.Context, userID, questionKey string, b models.Bucket) (models.RevisionItem, error)
	List(ctx context.Context, f revisionitems.Filter) ([]models.RevisionItem, error)
	BulkAdvance(ctx context.Context, f revisionitems.Filter, b models.Bucket, dueAt time.Time) (int64, error)
	Update(ctx context.Context, userID string, id primitive.ObjectID, ch revisionitems.Changes) (models.RevisionItem, error)
	DeleteAndReturn(ctx context.Context, userID string, id primitive.ObjectID) (models.RevisionItem, error)
}

// ArchiveStore is the persistence for monthly archives.
// revisionarchive.Store implements it against MongoDB.
type ArchiveStore interface {
	AddItems(ctx context.Context, userID, monthKey string, items []models.ArchivedItem) ([]string, error)
	RemoveItems(ctx context.Context, userID, monthKey string, itemKeys []string) error
	Get(ctx context.Context, userID, monthKey string) (models.MonthlyArchive, error)
	ListByUser(ctx context.Context, userID string) ([]models.MonthlyArchive, error)
}

// DismissalStore remembers questions a user removed without archiving.
// revisiondismissals.Store implements it against MongoDB.
type DismissalStore interface {
	Record(ctx context.Context, userID, questionKey string, reason models.DismissalReason, at time.Time) error
	ListSince(ctx context.Context, userID string, since time.Time) ([]models.Dismissal, error)
}

type noDismissals struct{}

func (noDismissals) Record(context.Context, string, string, models.DismissalReason, time.Time) error {
	return nil
}

func (noDismissals) ListSince(context.Context, string, time.Time) ([]models.Dismissal, error) {
	return nil, nil
}

// Deps are the collaborators shared by every engine. Dismissals may be nil,
// in which case deleted questions can be auto-enrolled again.
type Deps struct {
	Items      ItemStore
	Archive    ArchiveStore
	Dismissals DismissalStore
	Tx         txn.Transactor
	Calendar   timebound.Boundaries
	Clock      timebound.Clock
	Log        *zap.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Tx == nil {
		d.Tx = txn.Direct{}
	}
	if d.Dismissals == nil {
		d.Dismissals = noDismissals{}
	}
	if d.Calendar == nil {
		d.Calendar = timebound.Default()
	}
	if d.Clock == nil {
		d.Clock = timebound.SystemClock{}
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return d
}

// User identifies whose items a call operates on. Username is the
// account name on the submission feed and may be empty.
type User struct {
	ID       string
	Username string
}
