package revisionitems

import (
	"sort"
	"strings"
	"time"

	"github.com/dalemusser/prephub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/prephub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
)

// Filter selects a user's items. Zero-valued fields do not constrain.
type Filter struct {
	UserID string
	Bucket models.Bucket

	// DueBefore matches bucket_due_at strictly before the instant.
	DueBefore time.Time

	// MonthIncomplete matches items with no month completion recorded.
	MonthIncomplete bool

	// MonthCompletedBefore matches month_completed_at strictly before the instant.
	MonthCompletedBefore time.Time
}

func (f Filter) bson() bson.M {
	q := bson.M{"user_id": f.UserID}
	if f.Bucket != "" {
		q["bucket"] = f.Bucket
	}
	if !f.DueBefore.IsZero() {
		q["bucket_due_at"] = bson.M{"$lt": f.DueBefore}
	}
	switch {
	case f.MonthIncomplete:
		q["month_completed_at"] = nil
	case !f.MonthCompletedBefore.IsZero():
		q["month_completed_at"] = bson.M{"$lt": f.MonthCompletedBefore}
	}
	return q
}

// Matches evaluates the filter in memory with the same semantics as the
// Mongo query.
func (f Filter) Matches(it models.RevisionItem) bool {
	if it.UserID != f.UserID {
		return false
	}
	if f.Bucket != "" && it.Bucket != f.Bucket {
		return false
	}
	if !f.DueBefore.IsZero() && !it.BucketDueAt.Before(f.DueBefore) {
		return false
	}
	switch {
	case f.MonthIncomplete:
		return it.MonthCompletedAt == nil
	case !f.MonthCompletedBefore.IsZero():
		return it.MonthCompletedAt != nil && it.MonthCompletedAt.Before(f.MonthCompletedBefore)
	}
	return true
}

// Changes describes a partial update. Zero-valued fields are left alone.
type Changes struct {
	Bucket      models.Bucket
	BucketDueAt time.Time

	LastCompletedAt  *time.Time
	WeekCompletedAt  *time.Time
	MonthCompletedAt *time.Time

	ClearLastCompleted  bool
	ClearWeekCompleted  bool
	ClearMonthCompleted bool
}

func (c Changes) bson(now time.Time) bson.M {
	set := bson.M{"updated_at": now}
	unset := bson.M{}

	if c.Bucket != "" {
		set["bucket"] = c.Bucket
	}
	if !c.BucketDueAt.IsZero() {
		set["bucket_due_at"] = c.BucketDueAt.UTC()
	}
	if c.ClearLastCompleted {
		unset["last_completed_at"] = ""
	} else if c.LastCompletedAt != nil {
		set["last_completed_at"] = c.LastCompletedAt.UTC()
	}
	if c.ClearWeekCompleted {
		unset["week_completed_at"] = ""
	} else if c.WeekCompletedAt != nil {
		set["week_completed_at"] = c.WeekCompletedAt.UTC()
	}
	if c.ClearMonthCompleted {
		unset["month_completed_at"] = ""
	} else if c.MonthCompletedAt != nil {
		set["month_completed_at"] = c.MonthCompletedAt.UTC()
	}

	upd := bson.M{"$set": set}
	if len(unset) > 0 {
		upd["$unset"] = unset
	}
	return upd
}

// Apply returns it with the changes applied, mirroring the Mongo update.
func (c Changes) Apply(it models.RevisionItem, now time.Time) models.RevisionItem {
	if c.Bucket != "" {
		it.Bucket = c.Bucket
	}
	if !c.BucketDueAt.IsZero() {
		it.BucketDueAt = c.BucketDueAt.UTC()
	}
	if c.ClearLastCompleted {
		it.LastCompletedAt = nil
	} else if c.LastCompletedAt != nil {
		t := c.LastCompletedAt.UTC()
		it.LastCompletedAt = &t
	}
	if c.ClearWeekCompleted {
		it.WeekCompletedAt = nil
	} else if c.WeekCompletedAt != nil {
		t := c.WeekCompletedAt.UTC()
		it.WeekCompletedAt = &t
	}
	if c.ClearMonthCompleted {
		it.MonthCompletedAt = nil
	} else if c.MonthCompletedAt != nil {
		t := c.MonthCompletedAt.UTC()
		it.MonthCompletedAt = &t
	}
	it.UpdatedAt = &now
	return it
}

// Restore returns the Changes that put the item's completion markers back to
// their current values, set or cleared.
func Restore(it models.RevisionItem) Changes {
	return Changes{
		LastCompletedAt:     it.LastCompletedAt,
		WeekCompletedAt:     it.WeekCompletedAt,
		MonthCompletedAt:    it.MonthCompletedAt,
		ClearLastCompleted:  it.LastCompletedAt == nil,
		ClearWeekCompleted:  it.WeekCompletedAt == nil,
		ClearMonthCompleted: it.MonthCompletedAt == nil,
	}
}

// Normalize derives the stored fields of an item. The store calls it before
// every insert; callers never set QuestionKey or DifficultyRank themselves.
func Normalize(it models.RevisionItem) models.RevisionItem {
	it.UserID = strings.TrimSpace(it.UserID)
	it.Source = strings.ToLower(strings.TrimSpace(it.Source))
	it.Ref = strings.TrimSpace(it.Ref)
	it.Title = htmlsanitize.PlainText(it.Title)
	if it.Title == "" {
		it.Title = it.Ref
	}
	it.Link = strings.TrimSpace(it.Link)
	it.Difficulty = models.ParseDifficulty(string(it.Difficulty))
	it.DifficultyRank = it.Difficulty.Rank()
	it.QuestionKey = models.QuestionKey(it.Source, it.Ref)
	it.BucketDueAt = it.BucketDueAt.UTC()
	return it
}

// sortSpec is the listing order: soonest due first, then easier first.
var sortSpec = bson.D{
	{Key: "bucket_due_at", Value: 1},
	{Key: "difficulty_rank", Value: 1},
	{Key: "created_at", Value: 1},
}

// SortItems orders items the way List returns them.
func SortItems(items []models.RevisionItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.BucketDueAt.Equal(b.BucketDueAt) {
			return a.BucketDueAt.Before(b.BucketDueAt)
		}
		if a.DifficultyRank != b.DifficultyRank {
			return a.DifficultyRank < b.DifficultyRank
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}
