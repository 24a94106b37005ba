package revision_test

import (
	"context"
	"testing"
	"time"

	"github.com/dalemusser/prephub/internal/app/revision"
	"github.com/dalemusser/prephub/internal/app/system/timebound"
	"github.com/dalemusser/prephub/internal/domain/models"
	"github.com/dalemusser/prephub/internal/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const userID = "user-1"

var (
	// Wednesday 2025-03-05 10:00 UTC.
	wed = time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)
	fri = time.Date(2025, 3, 7, 10, 0, 0, 0, time.UTC)
	sun = time.Date(2025, 3, 9, 10, 0, 0, 0, time.UTC)

	endOfWed    = time.Date(2025, 3, 5, 23, 59, 59, 999e6, time.UTC)
	endOfSun    = time.Date(2025, 3, 9, 23, 59, 59, 999e6, time.UTC)
	endOfNxtSun = time.Date(2025, 3, 16, 23, 59, 59, 999e6, time.UTC)
	// Last millisecond of March in IST.
	endOfMarch = time.Date(2025, 3, 31, 18, 29, 59, 999e6, time.UTC)
)

type env struct {
	items      *testutil.MemItems
	archive    *testutil.MemArchive
	dismissals *testutil.MemDismissals
	feed       *testutil.FakeFeed
	clock      *timebound.FixedClock
	svc        *revision.Service
	deps       revision.Deps
}

func newEnv(t *testing.T, now time.Time) *env {
	t.Helper()
	e := &env{
		items:      testutil.NewMemItems(),
		archive:    testutil.NewMemArchive(),
		dismissals: testutil.NewMemDismissals(),
		feed:       testutil.NewFakeFeed(),
		clock:      timebound.NewFixedClock(now),
	}
	e.deps = revision.Deps{
		Items:      e.items,
		Archive:    e.archive,
		Dismissals: e.dismissals,
		Calendar:   timebound.Default(),
		Clock:      e.clock,
		Log:        zaptest.NewLogger(t),
	}
	e.svc = revision.NewService(e.deps, e.feed, e.feed, revision.ReconcileConfig{Source: "leetcode", Limit: 20})
	return e
}

func (e *env) add(t *testing.T, ref string, d models.Difficulty, b models.Bucket) models.RevisionItem {
	t.Helper()
	it, created, err := e.svc.Add(context.Background(), userID, revision.AddRequest{
		Source:     "leetcode",
		Ref:        ref,
		Title:      ref,
		Difficulty: string(d),
		Bucket:     string(b),
	})
	require.NoError(t, err)
	require.True(t, created, "expected %s to be new in %s", ref, b)
	return it
}

// requireUnique fails if two live items share (user, question, bucket).
func requireUnique(t *testing.T, items []models.RevisionItem) {
	t.Helper()
	seen := map[string]bool{}
	for _, it := range items {
		k := it.UserID + "|" + it.QuestionKey + "|" + string(it.Bucket)
		require.False(t, seen[k], "duplicate live item %s", k)
		seen[k] = true
	}
}

func byKey(items []models.RevisionItem, key string) []models.RevisionItem {
	var out []models.RevisionItem
	for _, it := range items {
		if it.QuestionKey == key {
			out = append(out, it)
		}
	}
	return out
}
