package revision_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dalemusser/prephub/internal/app/revision"
	"github.com/dalemusser/prephub/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestAdd_WeekOnWednesdayDueSunday(t *testing.T) {
	e := newEnv(t, wed)
	it := e.add(t, "two-sum", models.DifficultyEasy, models.BucketWeek)

	assert.Equal(t, "leetcode:two-sum", it.QuestionKey)
	assert.Equal(t, models.BucketWeek, it.Bucket)
	assert.True(t, it.BucketDueAt.Equal(endOfSun), "due = %s", it.BucketDueAt)
	assert.Equal(t, 1, it.DifficultyRank)
}

func TestAdd_DefaultDueByBucket(t *testing.T) {
	e := newEnv(t, wed)
	today := e.add(t, "a", models.DifficultyHard, models.BucketToday)
	month := e.add(t, "b", models.DifficultyHard, models.BucketMonth)

	assert.True(t, today.BucketDueAt.Equal(endOfWed))
	assert.True(t, month.BucketDueAt.Equal(endOfMarch))
}

func TestAdd_DuplicateReturnsExisting(t *testing.T) {
	e := newEnv(t, wed)
	first := e.add(t, "two-sum", models.DifficultyEasy, models.BucketWeek)

	e.clock.Set(fri)
	again, created, err := e.svc.Add(context.Background(), userID, revision.AddRequest{
		Source: "LeetCode", Ref: "Two-Sum", Bucket: "WEEK",
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)
	assert.True(t, again.BucketDueAt.Equal(endOfSun), "duplicate add must not move the due date")
	assert.Len(t, e.items.All(), 1)
}

func TestAdd_Validation(t *testing.T) {
	e := newEnv(t, wed)
	tests := []struct {
		name  string
		req   revision.AddRequest
		field string
	}{
		{"missing source", revision.AddRequest{Ref: "x", Bucket: "week"}, "source"},
		{"missing ref", revision.AddRequest{Source: "leetcode", Bucket: "week"}, "ref"},
		{"bad bucket", revision.AddRequest{Source: "leetcode", Ref: "x", Bucket: "year"}, "bucket"},
		{"colon in source", revision.AddRequest{Source: "a:b", Ref: "x", Bucket: "week"}, "source"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := e.svc.Add(context.Background(), userID, tt.req)
			require.ErrorIs(t, err, revision.ErrValidation)
			var ve *revision.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}
	assert.Empty(t, e.items.All())
}

func TestAdd_PersistenceError(t *testing.T) {
	e := newEnv(t, wed)
	e.items.FailOn("UpsertIfAbsent", errors.New("connection refused"))

	_, _, err := e.svc.Add(context.Background(), userID, revision.AddRequest{Source: "leetcode", Ref: "x", Bucket: "today"})
	require.ErrorIs(t, err, revision.ErrPersistence)
	assert.NotErrorIs(t, err, revision.ErrValidation)
}

func TestMove(t *testing.T) {
	e := newEnv(t, wed)
	it := e.add(t, "trie", models.DifficultyMedium, models.BucketToday)

	moved, err := e.svc.Move(context.Background(), userID, it.ID, "month")
	require.NoError(t, err)
	assert.Equal(t, it.ID, moved.ID)
	assert.Equal(t, models.BucketMonth, moved.Bucket)
	assert.True(t, moved.BucketDueAt.Equal(endOfMarch))
}

func TestMove_IntoOccupiedBucketKeepsExisting(t *testing.T) {
	e := newEnv(t, wed)
	today := e.add(t, "trie", models.DifficultyMedium, models.BucketToday)
	week := e.add(t, "trie", models.DifficultyMedium, models.BucketWeek)

	got, err := e.svc.Move(context.Background(), userID, today.ID, "week")
	require.NoError(t, err)
	assert.Equal(t, week.ID, got.ID)

	all := e.items.All()
	requireUnique(t, all)
	require.Len(t, all, 1)
	assert.Equal(t, models.BucketWeek, all[0].Bucket)
}

func TestMove_SameBucketIsNoop(t *testing.T) {
	e := newEnv(t, wed)
	it := e.add(t, "trie", models.DifficultyMedium, models.BucketWeek)
	e.clock.Set(fri)

	got, err := e.svc.Move(context.Background(), userID, it.ID, "week")
	require.NoError(t, err)
	assert.True(t, got.BucketDueAt.Equal(it.BucketDueAt))
}

func TestMove_Errors(t *testing.T) {
	e := newEnv(t, wed)
	it := e.add(t, "trie", models.DifficultyMedium, models.BucketWeek)

	_, err := e.svc.Move(context.Background(), userID, it.ID, "someday")
	assert.ErrorIs(t, err, revision.ErrValidation)

	_, err = e.svc.Move(context.Background(), "other-user", it.ID, "month")
	assert.ErrorIs(t, err, revision.ErrNotFound)

	_, err = e.svc.Move(context.Background(), userID, primitive.NilObjectID, "month")
	assert.ErrorIs(t, err, revision.ErrValidation)
}

func TestDelete(t *testing.T) {
	e := newEnv(t, wed)
	it := e.add(t, "trie", models.DifficultyMedium, models.BucketWeek)

	got, err := e.svc.Delete(context.Background(), userID, it.ID)
	require.NoError(t, err)
	assert.Equal(t, it.ID, got.ID)
	assert.Empty(t, e.items.All())

	_, err = e.svc.Delete(context.Background(), userID, it.ID)
	assert.ErrorIs(t, err, revision.ErrNotFound)
}

func TestDelete_RecordFailureKeepsItem(t *testing.T) {
	e := newEnv(t, wed)
	it := e.add(t, "trie", models.DifficultyMedium, models.BucketWeek)
	e.dismissals.FailOn("Record", errors.New("no primary"))

	_, err := e.svc.Delete(context.Background(), userID, it.ID)
	assert.ErrorIs(t, err, revision.ErrPersistence)
	assert.Len(t, e.items.All(), 1)
}
