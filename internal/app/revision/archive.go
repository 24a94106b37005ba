package revision

import (
	"context"
	"errors"

	"github.com/dalemusser/prephub/internal/app/store/revisionitems"
	"github.com/dalemusser/prephub/internal/app/system/telemetry"
	"github.com/dalemusser/prephub/internal/domain/models"
	"go.uber.org/zap"
)

// Archiver writes completed month items into per-month archives.
type Archiver struct {
	d Deps
}

// NewArchiver creates an Archiver.
func NewArchiver(d Deps) *Archiver {
	return &Archiver{d: d.withDefaults()}
}

// Added maps month keys to the item keys an Archive call newly wrote.
type Added map[string][]string

// Archive groups items by the civil month of their month completion (now,
// for items without one) and adds each to that month's archive. Items
// already archived for the month are skipped, so repeating a call adds nothing.
func (a *Archiver) Archive(ctx context.Context, userID string, items []models.RevisionItem) (Added, error) {
	now := a.d.Clock.Now()

	groups := make(map[string][]models.ArchivedItem)
	var months []string
	for _, it := range items {
		at := now
		if it.MonthCompletedAt != nil {
			at = *it.MonthCompletedAt
		}
		mk := a.d.Calendar.MonthKey(at)
		if _, ok := groups[mk]; !ok {
			months = append(months, mk)
		}
		groups[mk] = append(groups[mk], it.ArchivedItem(at))
	}

	added := make(Added, len(months))
	for _, mk := range months {
		keys, err := a.d.Archive.AddItems(ctx, userID, mk, groups[mk])
		if len(keys) > 0 {
			added[mk] = keys
			telemetry.RecordArchiveAdded(len(keys))
		}
		if err != nil {
			return added, err
		}
	}
	return added, nil
}

// Undo removes exactly the entries an Archive call added.
func (a *Archiver) Undo(ctx context.Context, userID string, added Added) error {
	var errs []error
	for mk, keys := range added {
		if err := a.d.Archive.RemoveItems(ctx, userID, mk, keys); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CleanupStale archives and deletes month items whose completion predates
// the current civil month. Returns how many live items it removed.
func (a *Archiver) CleanupStale(ctx context.Context, userID string) (int, error) {
	now := a.d.Clock.Now()
	stale, err := a.d.Items.List(ctx, revisionitems.Filter{
		UserID:               userID,
		Bucket:               models.BucketMonth,
		MonthCompletedBefore: a.d.Calendar.StartOfMonth(now),
	})
	if err != nil {
		return 0, storeErr("cleanup: list", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	// Archive first. A crash before the deletes leaves the items live, and
	// the next run re-archives them as a no-op.
	if _, err := a.Archive(ctx, userID, stale); err != nil {
		return 0, storeErr("cleanup: archive", err)
	}

	removed := 0
	for _, it := range stale {
		if _, err := a.d.Items.DeleteAndReturn(ctx, userID, it.ID); err != nil {
			if errors.Is(err, revisionitems.ErrNotFound) {
				continue
			}
			return removed, storeErr("cleanup: delete", err)
		}
		removed++
	}
	if removed > 0 {
		a.d.Log.Info("archived stale month items",
			zap.String("user_id", userID),
			zap.Int("count", removed))
	}
	return removed, nil
}

// History returns every archived month for the user, newest first.
func (a *Archiver) History(ctx context.Context, userID string) ([]models.MonthlyArchive, error) {
	months, err := a.d.Archive.ListByUser(ctx, userID)
	if err != nil {
		return nil, storeErr("history", err)
	}
	if months == nil {
		months = []models.MonthlyArchive{}
	}
	return months, nil
}
