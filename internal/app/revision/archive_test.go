package revision_test

import (
	"context"
	"testing"
	"time"

	"github.com/dalemusser/prephub/internal/app/revision"
	"github.com/dalemusser/prephub/internal/domain/models"
	"github.com/stretchr/testify/require"
)

func monthItem(ref string, completed *time.Time) models.RevisionItem {
	return models.RevisionItem{
		UserID:           userID,
		QuestionKey:      models.QuestionKey("leetcode", ref),
		Source:           "leetcode",
		Ref:              ref,
		Title:            ref,
		Difficulty:       models.DifficultyHard,
		Bucket:           models.BucketMonth,
		MonthCompletedAt: completed,
	}
}

func TestArchive_GroupsByCivilMonth(t *testing.T) {
	e := newEnv(t, wed)
	ctx := context.Background()
	a := revision.NewArchiver(e.deps)

	feb := time.Date(2025, 2, 20, 12, 0, 0, 0, time.UTC)
	// 19:00 UTC on Feb 28 is already March 1 in the archive zone.
	lateFeb := time.Date(2025, 2, 28, 19, 0, 0, 0, time.UTC)

	added, err := a.Archive(ctx, userID, []models.RevisionItem{
		monthItem("lru-cache", &feb),
		monthItem("word-ladder", &lateFeb),
		monthItem("trie", nil),
	})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"leetcode:lru-cache"}, added["2025-02"])
	require.ElementsMatch(t, []string{"leetcode:word-ladder", "leetcode:trie"}, added["2025-03"])

	march, err := e.archive.Get(ctx, userID, "2025-03")
	require.NoError(t, err)
	require.Len(t, march.Items, 2)
}

func TestArchive_RepeatAddsNothing(t *testing.T) {
	e := newEnv(t, wed)
	ctx := context.Background()
	a := revision.NewArchiver(e.deps)

	items := []models.RevisionItem{monthItem("lru-cache", &wed), monthItem("trie", &wed)}
	_, err := a.Archive(ctx, userID, items)
	require.NoError(t, err)

	added, err := a.Archive(ctx, userID, items)
	require.NoError(t, err)
	require.Empty(t, added)

	march, err := e.archive.Get(ctx, userID, "2025-03")
	require.NoError(t, err)
	require.Len(t, march.Items, 2)
}

func TestArchive_UndoRemovesOnlyWhatWasAdded(t *testing.T) {
	e := newEnv(t, wed)
	ctx := context.Background()
	a := revision.NewArchiver(e.deps)

	_, err := a.Archive(ctx, userID, []models.RevisionItem{monthItem("lru-cache", &wed)})
	require.NoError(t, err)

	added, err := a.Archive(ctx, userID, []models.RevisionItem{
		monthItem("lru-cache", &wed),
		monthItem("trie", &wed),
	})
	require.NoError(t, err)
	require.Equal(t, revision.Added{"2025-03": {"leetcode:trie"}}, added)

	require.NoError(t, a.Undo(ctx, userID, added))

	march, err := e.archive.Get(ctx, userID, "2025-03")
	require.NoError(t, err)
	require.Len(t, march.Items, 1)
	require.Equal(t, "leetcode:lru-cache", march.Items[0].ItemKey)
}
