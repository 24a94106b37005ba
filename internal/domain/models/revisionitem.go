package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Bucket is one of the three recurring review tiers.
type Bucket string

const (
	BucketToday Bucket = "today"
	BucketWeek  Bucket = "week"
	BucketMonth Bucket = "month"
)

// Buckets lists every bucket in review order.
var Buckets = []Bucket{BucketToday, BucketWeek, BucketMonth}

// ParseBucket accepts a bucket name in any case.
func ParseBucket(s string) (Bucket, bool) {
	switch Bucket(strings.ToLower(strings.TrimSpace(s))) {
	case BucketToday:
		return BucketToday, true
	case BucketWeek:
		return BucketWeek, true
	case BucketMonth:
		return BucketMonth, true
	}
	return "", false
}

// Difficulty is the problem difficulty reported by the origin system.
// The zero value means unknown.
type Difficulty string

const (
	DifficultyUnknown Difficulty = ""
	DifficultyEasy    Difficulty = "Easy"
	DifficultyMedium  Difficulty = "Medium"
	DifficultyHard    Difficulty = "Hard"
)

// ParseDifficulty maps free-form input onto a Difficulty; anything
// unrecognised is DifficultyUnknown.
func ParseDifficulty(s string) Difficulty {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy":
		return DifficultyEasy
	case "medium":
		return DifficultyMedium
	case "hard":
		return DifficultyHard
	}
	return DifficultyUnknown
}

// Rank orders difficulties for sorting (unknown sorts last).
func (d Difficulty) Rank() int {
	switch d {
	case DifficultyEasy:
		return 1
	case DifficultyMedium:
		return 2
	case DifficultyHard:
		return 3
	}
	return 9
}

// PromotesToMonth reports whether completing a week review always moves
// the question on to the month bucket.
func (d Difficulty) PromotesToMonth() bool {
	return d == DifficultyMedium || d == DifficultyHard
}

// SourceWeeklyStar marks a one-shot item starred for the current week only.
// It is removed on completion instead of recurring.
const SourceWeeklyStar = "weekly_star"

// IsOneShotSource reports whether items from source are deleted on week completion.
func IsOneShotSource(source string) bool {
	return strings.EqualFold(strings.TrimSpace(source), SourceWeeklyStar)
}

// QuestionKey builds the normalized "source:ref" identity of a question.
func QuestionKey(source, ref string) string {
	return strings.ToLower(strings.TrimSpace(source)) + ":" + strings.ToLower(strings.TrimSpace(ref))
}

// RevisionItem is one tracked question instance within one bucket.
//
// (UserID, QuestionKey, Bucket) is unique. The same question may live in
// several buckets at once, never twice in the same bucket.
type RevisionItem struct {
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID string             `bson:"user_id" json:"-"`

	QuestionKey string `bson:"question_key" json:"question_key"`
	Source      string `bson:"source" json:"source"`
	Ref         string `bson:"ref" json:"ref"`
	Title       string `bson:"title" json:"title"`
	Link        string `bson:"link,omitempty" json:"link,omitempty"`

	Difficulty     Difficulty `bson:"difficulty,omitempty" json:"difficulty,omitempty"`
	DifficultyRank int        `bson:"difficulty_rank" json:"-"`

	Bucket      Bucket    `bson:"bucket" json:"bucket"`
	BucketDueAt time.Time `bson:"bucket_due_at" json:"bucket_due_at"`

	LastCompletedAt  *time.Time `bson:"last_completed_at,omitempty" json:"last_completed_at,omitempty"`
	WeekCompletedAt  *time.Time `bson:"week_completed_at,omitempty" json:"week_completed_at,omitempty"`
	MonthCompletedAt *time.Time `bson:"month_completed_at,omitempty" json:"month_completed_at,omitempty"`

	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt *time.Time `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// ArchivedItem converts a completed month item into its archive entry.
func (it RevisionItem) ArchivedItem(completedAt time.Time) ArchivedItem {
	return ArchivedItem{
		ItemKey:     it.QuestionKey,
		Source:      it.Source,
		Ref:         it.Ref,
		Title:       it.Title,
		Difficulty:  it.Difficulty,
		Link:        it.Link,
		CompletedAt: completedAt,
	}
}
