package revision

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/prephub/internal/app/store/revisionitems"
	"github.com/dalemusser/prephub/internal/app/system/timebound"
	"github.com/dalemusser/prephub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Outcome says what a completion did to the item.
type Outcome string

const (
	// OutcomePromoted moved the item to another bucket in place.
	OutcomePromoted Outcome = "promoted"
	// OutcomeMerged folded the item into the record already in the target bucket.
	OutcomeMerged Outcome = "merged"
	// OutcomeRescheduled kept the item in its bucket with a later due date.
	OutcomeRescheduled Outcome = "rescheduled"
	// OutcomeRemoved deleted a one-shot item.
	OutcomeRemoved Outcome = "removed"
	// OutcomeArchived moved a month item into the monthly archive.
	OutcomeArchived Outcome = "archived"
)

// CompleteRequest is an explicit "mark complete" from the user.
// Scope must name the bucket the item is currently in.
type CompleteRequest struct {
	ItemID             primitive.ObjectID
	Scope              models.Bucket
	PromoteEasyToMonth bool
}

// CompleteResult reports the transition. Item is the live record the
// question now lives in; it is nil for removed and archived outcomes.
type CompleteResult struct {
	Outcome  Outcome              `json:"outcome"`
	Item     *models.RevisionItem `json:"item,omitempty"`
	Archived *models.ArchivedItem `json:"archived,omitempty"`
	MonthKey string               `json:"month_key,omitempty"`
}

// Completer applies the per-bucket completion state machine. Each
// transition runs in one transaction when the store supports it and is
// otherwise ordered so that a failed second write is compensated.
type Completer struct {
	d        Deps
	archiver *Archiver
}

// NewCompleter creates a Completer.
func NewCompleter(d Deps, archiver *Archiver) *Completer {
	d = d.withDefaults()
	if archiver == nil {
		archiver = NewArchiver(d)
	}
	return &Completer{d: d, archiver: archiver}
}

// Complete marks the user's item complete for its bucket.
func (c *Completer) Complete(ctx context.Context, userID string, req CompleteRequest) (CompleteResult, error) {
	if userID == "" {
		return CompleteResult{}, invalid("user", "required")
	}
	if req.ItemID.IsZero() {
		return CompleteResult{}, invalid("itemId", "required")
	}
	if _, ok := models.ParseBucket(string(req.Scope)); !ok {
		return CompleteResult{}, invalid("scope", "must be today, week or month")
	}

	it, err := c.d.Items.FindByID(ctx, userID, req.ItemID)
	if err != nil {
		return CompleteResult{}, storeErr("complete: find", err)
	}
	if it.Bucket != req.Scope {
		return CompleteResult{}, invalid("scope", "item is in the "+string(it.Bucket)+" bucket")
	}

	now := c.d.Clock.Now()
	switch it.Bucket {
	case models.BucketToday:
		return c.completeToday(ctx, it, now, now)
	case models.BucketWeek:
		return c.completeWeek(ctx, it, req.PromoteEasyToMonth, now)
	default:
		return c.completeMonth(ctx, it, now)
	}
}

// todayPromotionDue is the week due date for an item leaving today.
// On Friday and Saturday the item skips the nearly finished week.
func (c *Completer) todayPromotionDue(now time.Time) time.Time {
	if timebound.IsLateWeek(now) {
		return c.d.Calendar.NextWeekDueAt(now)
	}
	return c.d.Calendar.WeekDueAt(now)
}

// completeToday moves a today item to week, or folds it into the week
// record that already holds the question. completedAt is recorded as the
// completion instant; now drives the new due date.
func (c *Completer) completeToday(ctx context.Context, it models.RevisionItem, completedAt, now time.Time) (CompleteResult, error) {
	week, err := c.d.Items.FindByKey(ctx, it.UserID, it.QuestionKey, models.BucketWeek)
	switch {
	case err == nil:
		return c.foldInto(ctx, it, week, revisionitems.Changes{LastCompletedAt: later(week.LastCompletedAt, completedAt)})
	case !errors.Is(err, revisionitems.ErrNotFound):
		return CompleteResult{}, storeErr("complete today: find week", err)
	}

	updated, err := c.d.Items.Update(ctx, it.UserID, it.ID, revisionitems.Changes{
		Bucket:              models.BucketWeek,
		BucketDueAt:         c.todayPromotionDue(now),
		LastCompletedAt:     &completedAt,
		ClearWeekCompleted:  true,
		ClearMonthCompleted: true,
	})
	if errors.Is(err, revisionitems.ErrDuplicate) {
		// A week record appeared since the lookup.
		week, ferr := c.d.Items.FindByKey(ctx, it.UserID, it.QuestionKey, models.BucketWeek)
		if ferr != nil {
			return CompleteResult{}, storeErr("complete today: find week", ferr)
		}
		return c.foldInto(ctx, it, week, revisionitems.Changes{LastCompletedAt: later(week.LastCompletedAt, completedAt)})
	}
	if err != nil {
		return CompleteResult{}, storeErr("complete today: promote", err)
	}
	return CompleteResult{Outcome: OutcomePromoted, Item: &updated}, nil
}

func (c *Completer) completeWeek(ctx context.Context, it models.RevisionItem, promoteEasy bool, now time.Time) (CompleteResult, error) {
	if models.IsOneShotSource(it.Source) {
		if err := c.d.Dismissals.Record(ctx, it.UserID, it.QuestionKey, models.DismissedOneShot, now); err != nil {
			return CompleteResult{}, storeErr("complete week: record one-shot", err)
		}
		if _, err := c.d.Items.DeleteAndReturn(ctx, it.UserID, it.ID); err != nil {
			return CompleteResult{}, storeErr("complete week: remove one-shot", err)
		}
		return CompleteResult{Outcome: OutcomeRemoved}, nil
	}

	if it.Difficulty.PromotesToMonth() || promoteEasy {
		updated, err := c.d.Items.Update(ctx, it.UserID, it.ID, revisionitems.Changes{
			Bucket:              models.BucketMonth,
			BucketDueAt:         c.d.Calendar.MonthDueAt(now),
			LastCompletedAt:     &now,
			WeekCompletedAt:     &now,
			ClearMonthCompleted: true,
		})
		if errors.Is(err, revisionitems.ErrDuplicate) {
			month, ferr := c.d.Items.FindByKey(ctx, it.UserID, it.QuestionKey, models.BucketMonth)
			if ferr != nil {
				return CompleteResult{}, storeErr("complete week: find month", ferr)
			}
			return c.foldInto(ctx, it, month, revisionitems.Changes{
				LastCompletedAt: later(month.LastCompletedAt, now),
				WeekCompletedAt: &now,
			})
		}
		if err != nil {
			return CompleteResult{}, storeErr("complete week: promote", err)
		}
		return CompleteResult{Outcome: OutcomePromoted, Item: &updated}, nil
	}

	// Stays in week. The new due date must move past the current one even
	// when completed ahead of schedule.
	due := c.d.Calendar.WeekDueAt(now)
	if !due.After(it.BucketDueAt) {
		due = c.d.Calendar.WeekDueAt(it.BucketDueAt)
	}
	updated, err := c.d.Items.Update(ctx, it.UserID, it.ID, revisionitems.Changes{
		BucketDueAt:     due,
		LastCompletedAt: &now,
		WeekCompletedAt: &now,
	})
	if err != nil {
		return CompleteResult{}, storeErr("complete week: reschedule", err)
	}
	return CompleteResult{Outcome: OutcomeRescheduled, Item: &updated}, nil
}

// completeMonth archives the item, then deletes the live record. If the
// delete fails the archive entries this call added are removed again.
func (c *Completer) completeMonth(ctx context.Context, it models.RevisionItem, now time.Time) (CompleteResult, error) {
	it.MonthCompletedAt = &now
	mk := c.d.Calendar.MonthKey(now)

	err := c.d.Tx.WithinTx(ctx, func(ctx context.Context) error {
		added, err := c.archiver.Archive(ctx, it.UserID, []models.RevisionItem{it})
		if err != nil {
			return errors.Join(err, c.archiver.Undo(ctx, it.UserID, added))
		}
		if _, err := c.d.Items.DeleteAndReturn(ctx, it.UserID, it.ID); err != nil {
			if uerr := c.archiver.Undo(ctx, it.UserID, added); uerr != nil {
				c.d.Log.Error("month completion: archive compensation failed",
					zap.String("user_id", it.UserID),
					zap.String("question_key", it.QuestionKey),
					zap.Error(uerr))
				return errors.Join(err, uerr)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return CompleteResult{}, storeErr("complete month", err)
	}

	archived := it.ArchivedItem(now)
	return CompleteResult{Outcome: OutcomeArchived, Archived: &archived, MonthKey: mk}, nil
}

// foldInto applies ch to dst and deletes src, leaving one record for the
// question. When the delete fails dst's markers are put back.
func (c *Completer) foldInto(ctx context.Context, src, dst models.RevisionItem, ch revisionitems.Changes) (CompleteResult, error) {
	var merged models.RevisionItem
	err := c.d.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		merged, err = c.d.Items.Update(ctx, dst.UserID, dst.ID, ch)
		if err != nil {
			return err
		}
		if _, err := c.d.Items.DeleteAndReturn(ctx, src.UserID, src.ID); err != nil {
			if errors.Is(err, revisionitems.ErrNotFound) {
				// A concurrent request already folded it.
				return nil
			}
			_, rerr := c.d.Items.Update(ctx, dst.UserID, dst.ID, revisionitems.Restore(dst))
			return errors.Join(err, rerr)
		}
		return nil
	})
	if err != nil {
		return CompleteResult{}, storeErr("fold", err)
	}
	return CompleteResult{Outcome: OutcomeMerged, Item: &merged}, nil
}

// later returns a pointer to whichever of prev and t is later.
func later(prev *time.Time, t time.Time) *time.Time {
	if prev != nil && prev.After(t) {
		p := *prev
		return &p
	}
	return &t
}
