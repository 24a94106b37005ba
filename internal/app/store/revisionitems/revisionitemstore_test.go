package revisionitems_test

import (
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/prephub/internal/app/store/revisionitems"
	"github.com/dalemusser/prephub/internal/domain/models"
	"github.com/dalemusser/prephub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newStore(t *testing.T) *revisionitems.Store {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if _, err := db.Collection(revisionitems.CollectionName).Indexes().CreateMany(ctx, revisionitems.IndexModels()); err != nil {
		t.Fatalf("create indexes: %v", err)
	}
	return revisionitems.New(db)
}

func item(user, ref string, b models.Bucket, due time.Time) models.RevisionItem {
	return models.RevisionItem{
		UserID:      user,
		Source:      "LeetCode",
		Ref:         ref,
		Title:       ref,
		Difficulty:  "medium",
		Bucket:      b,
		BucketDueAt: due,
	}
}

func TestUpsertIfAbsent_NormalizesAndCreates(t *testing.T) {
	s := newStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	due := time.Date(2025, 3, 9, 23, 59, 59, 0, time.UTC)
	got, created, err := s.UpsertIfAbsent(ctx, item("u1", "Two-Sum", models.BucketWeek, due))
	if err != nil {
		t.Fatalf("UpsertIfAbsent failed: %v", err)
	}
	if !created {
		t.Error("expected created=true on first insert")
	}
	if got.QuestionKey != "leetcode:two-sum" {
		t.Errorf("QuestionKey: got %q, want %q", got.QuestionKey, "leetcode:two-sum")
	}
	if got.Difficulty != models.DifficultyMedium || got.DifficultyRank != 2 {
		t.Errorf("difficulty: got %q rank %d", got.Difficulty, got.DifficultyRank)
	}
	if got.ID.IsZero() {
		t.Error("expected ID to be assigned")
	}
}

func TestUpsertIfAbsent_DuplicateReturnsExisting(t *testing.T) {
	s := newStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	due := time.Date(2025, 3, 9, 23, 59, 59, 0, time.UTC)
	first, _, err := s.UpsertIfAbsent(ctx, item("u1", "two-sum", models.BucketWeek, due))
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}
	second, created, err := s.UpsertIfAbsent(ctx, item("u1", "TWO-SUM", models.BucketWeek, due.Add(48*time.Hour)))
	if err != nil {
		t.Fatalf("duplicate insert should not error: %v", err)
	}
	if created {
		t.Error("expected created=false for duplicate")
	}
	if second.ID != first.ID {
		t.Errorf("expected existing ID %s, got %s", first.ID.Hex(), second.ID.Hex())
	}
	if !second.BucketDueAt.Equal(first.BucketDueAt) {
		t.Error("duplicate insert must not overwrite the existing due date")
	}

	// Same question in another bucket is a separate record.
	_, created, err = s.UpsertIfAbsent(ctx, item("u1", "two-sum", models.BucketMonth, due))
	if err != nil || !created {
		t.Fatalf("month insert: created=%v err=%v", created, err)
	}
}

func TestFindByID_ScopedToUser(t *testing.T) {
	s := newStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	it, _, err := s.UpsertIfAbsent(ctx, item("u1", "lru-cache", models.BucketToday, time.Now().UTC()))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := s.FindByID(ctx, "u2", it.ID); !errors.Is(err, revisionitems.ErrNotFound) {
		t.Errorf("expected ErrNotFound for other user, got %v", err)
	}
	if _, err := s.FindByID(ctx, "u1", primitive.NewObjectID()); !errors.Is(err, revisionitems.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestBulkAdvance_SkipsCollisions(t *testing.T) {
	s := newStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	past := time.Date(2025, 3, 2, 23, 59, 59, 0, time.UTC)
	newDue := time.Date(2025, 3, 9, 23, 59, 59, 0, time.UTC)

	for _, ref := range []string{"a", "b", "c"} {
		if _, _, err := s.UpsertIfAbsent(ctx, item("u1", ref, models.BucketWeek, past)); err != nil {
			t.Fatalf("insert %s: %v", ref, err)
		}
	}
	// "b" is already in today.
	if _, _, err := s.UpsertIfAbsent(ctx, item("u1", "b", models.BucketToday, newDue)); err != nil {
		t.Fatalf("insert today b: %v", err)
	}

	f := revisionitems.Filter{UserID: "u1", Bucket: models.BucketWeek, DueBefore: newDue}
	n, err := s.BulkAdvance(ctx, f, models.BucketToday, newDue)
	if err != nil {
		t.Fatalf("BulkAdvance failed: %v", err)
	}
	if n != 2 {
		t.Errorf("moved: got %d, want 2", n)
	}

	left, err := s.List(ctx, revisionitems.Filter{UserID: "u1", Bucket: models.BucketWeek})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(left) != 1 || left[0].Ref != "b" {
		t.Errorf("expected only b left in week, got %+v", left)
	}
}

func TestUpdate_DuplicateBucket(t *testing.T) {
	s := newStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	now := time.Now().UTC()
	today, _, _ := s.UpsertIfAbsent(ctx, item("u1", "two-sum", models.BucketToday, now))
	if _, _, err := s.UpsertIfAbsent(ctx, item("u1", "two-sum", models.BucketWeek, now)); err != nil {
		t.Fatalf("insert week: %v", err)
	}

	_, err := s.Update(ctx, "u1", today.ID, revisionitems.Changes{Bucket: models.BucketWeek})
	if !errors.Is(err, revisionitems.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
}

func TestUpdate_ClearsCompletionMarkers(t *testing.T) {
	s := newStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	it, _, _ := s.UpsertIfAbsent(ctx, item("u1", "trie", models.BucketWeek, now))

	it, err := s.Update(ctx, "u1", it.ID, revisionitems.Changes{WeekCompletedAt: &now})
	if err != nil || it.WeekCompletedAt == nil {
		t.Fatalf("set week completion: %v", err)
	}
	it, err = s.Update(ctx, "u1", it.ID, revisionitems.Changes{ClearWeekCompleted: true})
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if it.WeekCompletedAt != nil {
		t.Error("expected week_completed_at cleared")
	}
}

func TestDeleteAndReturn(t *testing.T) {
	s := newStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	it, _, _ := s.UpsertIfAbsent(ctx, item("u1", "trie", models.BucketMonth, time.Now().UTC()))
	got, err := s.DeleteAndReturn(ctx, "u1", it.ID)
	if err != nil {
		t.Fatalf("DeleteAndReturn failed: %v", err)
	}
	if got.QuestionKey != "leetcode:trie" {
		t.Errorf("returned item: got %q", got.QuestionKey)
	}
	if _, err := s.DeleteAndReturn(ctx, "u1", it.ID); !errors.Is(err, revisionitems.ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestFindDueBucket(t *testing.T) {
	s := newStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	asOf := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)
	seed := []models.RevisionItem{
		item("u1", "overdue", models.BucketWeek, asOf.Add(-time.Hour)),
		item("u1", "on-time", models.BucketWeek, asOf),
		item("u1", "other-bucket", models.BucketToday, asOf.Add(-time.Hour)),
		item("u2", "overdue", models.BucketWeek, asOf.Add(-time.Hour)),
	}
	for _, it := range seed {
		if _, _, err := s.UpsertIfAbsent(ctx, it); err != nil {
			t.Fatalf("seed %s: %v", it.Ref, err)
		}
	}

	got, err := s.FindDueBucket(ctx, "u1", models.BucketWeek, asOf)
	if err != nil {
		t.Fatalf("FindDueBucket failed: %v", err)
	}
	if len(got) != 1 || got[0].Ref != "overdue" {
		t.Errorf("got %+v, want only u1's overdue week item", got)
	}
}
