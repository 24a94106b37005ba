package revision

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/dalemusser/prephub/internal/app/store/revisionitems"
	"github.com/dalemusser/prephub/internal/app/system/submissions"
	"github.com/dalemusser/prephub/internal/app/system/telemetry"
	"github.com/dalemusser/prephub/internal/app/system/timebound"
	"github.com/dalemusser/prephub/internal/domain/models"
	"go.uber.org/zap"
)

// ReconcileConfig tunes the submission feed reconciliation.
type ReconcileConfig struct {
	Source        string        // item source the feed reports on (default "leetcode")
	Limit         int           // how many recent submissions to fetch
	EnrollWindow  time.Duration // solves older than this are not auto-enrolled
	FeedTimeout   time.Duration // bound on each outbound feed call
	LookupTimeout time.Duration // bound on each catalog lookup
}

func (c ReconcileConfig) withDefaults() ReconcileConfig {
	c.Source = strings.ToLower(strings.TrimSpace(c.Source))
	if c.Source == "" {
		c.Source = "leetcode"
	}
	if c.Limit <= 0 {
		c.Limit = submissions.DefaultLimit
	}
	if c.EnrollWindow <= 0 {
		c.EnrollWindow = 7 * 24 * time.Hour
	}
	if c.FeedTimeout <= 0 {
		c.FeedTimeout = 5 * time.Second
	}
	if c.LookupTimeout <= 0 {
		c.LookupTimeout = 2 * time.Second
	}
	return c
}

// Solve is the latest accepted submission for one problem.
type Solve struct {
	Ref        string
	Title      string
	AcceptedAt time.Time
}

// LatestAccepted reduces feed entries to the latest solve per problem,
// keyed by lowercased ref. Entries without a ref or with an unusable
// timestamp are dropped.
func LatestAccepted(entries []submissions.Accepted) map[string]Solve {
	out := make(map[string]Solve, len(entries))
	for _, e := range entries {
		ref := strings.TrimSpace(e.ProblemRef)
		if ref == "" {
			continue
		}
		at, err := timebound.FromEpochSeconds(e.AcceptedAtEpochSeconds)
		if err != nil {
			continue
		}
		key := strings.ToLower(ref)
		if prev, ok := out[key]; ok && !at.After(prev.AcceptedAt) {
			continue
		}
		out[key] = Solve{Ref: ref, Title: e.Title, AcceptedAt: at}
	}
	return out
}

// ReconcileResult summarizes one reconciliation run.
type ReconcileResult struct {
	// Latest is the latest accepted instant per question key.
	Latest    map[string]time.Time
	Completed int
	Merged    int
	Enrolled  int
}

// Reconciler matches feed solves against stored items.
type Reconciler struct {
	d         Deps
	feed      submissions.Feed
	catalog   submissions.Catalog
	completer *Completer
	cfg       ReconcileConfig
}

// NewReconciler creates a Reconciler. feed and catalog may be nil, in
// which case reconciliation does nothing and enrolled items keep an
// unknown difficulty.
func NewReconciler(d Deps, feed submissions.Feed, catalog submissions.Catalog, completer *Completer, cfg ReconcileConfig) *Reconciler {
	d = d.withDefaults()
	if completer == nil {
		completer = NewCompleter(d, nil)
	}
	return &Reconciler{d: d, feed: feed, catalog: catalog, completer: completer, cfg: cfg.withDefaults()}
}

// Reconcile fetches the user's recent solves, completes today items solved
// during the current task day and enrolls recent solves that no bucket holds
// yet. A feed failure returns an error wrapping submissions.ErrFeedUnavailable
// and changes nothing. Store failures on single items do not stop the rest.
func (r *Reconciler) Reconcile(ctx context.Context, u User, now time.Time) (ReconcileResult, error) {
	res := ReconcileResult{Latest: map[string]time.Time{}}
	if r.feed == nil || strings.TrimSpace(u.Username) == "" {
		return res, nil
	}

	fctx, cancel := context.WithTimeout(ctx, r.cfg.FeedTimeout)
	entries, err := r.feed.FetchRecentAccepted(fctx, u.Username, r.cfg.Limit)
	cancel()
	if err != nil {
		if !errors.Is(err, submissions.ErrFeedUnavailable) {
			err = errors.Join(submissions.ErrFeedUnavailable, err)
		}
		return res, err
	}

	latest := LatestAccepted(entries)
	for _, s := range latest {
		res.Latest[models.QuestionKey(r.cfg.Source, s.Ref)] = s.AcceptedAt
	}
	if len(latest) == 0 {
		return res, nil
	}

	var errs []error
	if err := r.completeSolvedToday(ctx, u.ID, latest, now, &res); err != nil {
		errs = append(errs, err)
	}
	if err := r.enrollRecent(ctx, u.ID, latest, now, &res); err != nil {
		errs = append(errs, err)
	}
	return res, errors.Join(errs...)
}

func (r *Reconciler) completeSolvedToday(ctx context.Context, userID string, latest map[string]Solve, now time.Time, res *ReconcileResult) error {
	today, err := r.d.Items.List(ctx, revisionitems.Filter{UserID: userID, Bucket: models.BucketToday})
	if err != nil {
		return storeErr("reconcile: list today", err)
	}

	start := r.d.Calendar.StartOfTaskDay(now)
	end := r.d.Calendar.EndOfTaskDay(now)

	var errs []error
	for _, it := range today {
		if !strings.EqualFold(it.Source, r.cfg.Source) {
			continue
		}
		solve, ok := latest[strings.ToLower(it.Ref)]
		if !ok {
			continue
		}
		if solve.AcceptedAt.Before(start) || solve.AcceptedAt.After(end) {
			continue
		}
		if it.LastCompletedAt != nil && !solve.AcceptedAt.After(*it.LastCompletedAt) {
			continue
		}

		out, err := r.completer.completeToday(ctx, it, solve.AcceptedAt, now)
		if err != nil {
			r.d.Log.Warn("reconcile: auto-complete failed",
				zap.String("user_id", userID),
				zap.String("question_key", it.QuestionKey),
				zap.Error(err))
			errs = append(errs, err)
			continue
		}
		if out.Outcome == OutcomeMerged {
			res.Merged++
			telemetry.RecordReconcile("merged")
		} else {
			res.Completed++
			telemetry.RecordReconcile("completed")
		}
	}
	return errors.Join(errs...)
}

func (r *Reconciler) enrollRecent(ctx context.Context, userID string, latest map[string]Solve, now time.Time, res *ReconcileResult) error {
	all, err := r.d.Items.List(ctx, revisionitems.Filter{UserID: userID})
	if err != nil {
		return storeErr("reconcile: list items", err)
	}
	held := make(map[string]bool, len(all))
	for _, it := range all {
		held[it.QuestionKey] = true
	}

	cutoff := now.Add(-r.cfg.EnrollWindow)
	settled, err := r.settledSince(ctx, userID, cutoff, now)
	if err != nil {
		return err
	}
	refs := make([]string, 0, len(latest))
	for k := range latest {
		refs = append(refs, k)
	}
	sort.Strings(refs)

	var errs []error
	for _, k := range refs {
		s := latest[k]
		key := models.QuestionKey(r.cfg.Source, s.Ref)
		if held[key] || s.AcceptedAt.Before(cutoff) || s.AcceptedAt.After(now) {
			continue
		}
		if at, ok := settled[key]; ok && !s.AcceptedAt.After(at) {
			continue
		}

		it := models.RevisionItem{
			UserID:      userID,
			Source:      r.cfg.Source,
			Ref:         s.Ref,
			Title:       s.Title,
			Link:        submissions.ProblemLink(s.Ref),
			Bucket:      models.BucketWeek,
			BucketDueAt: r.enrollDue(s.AcceptedAt, now),
			CreatedAt:   now,
		}
		r.describe(ctx, &it)

		_, created, err := r.d.Items.UpsertIfAbsent(ctx, it)
		if err != nil {
			r.d.Log.Warn("reconcile: auto-enroll failed",
				zap.String("user_id", userID),
				zap.String("question_key", key),
				zap.Error(err))
			errs = append(errs, storeErr("reconcile: enroll", err))
			continue
		}
		held[key] = true
		if created {
			res.Enrolled++
			telemetry.RecordReconcile("enrolled")
		}
	}
	return errors.Join(errs...)
}

// enrollDue dates a new week item from its solve. A boundary that has
// already passed falls back to the next one after now.
func (r *Reconciler) enrollDue(acceptedAt, now time.Time) time.Time {
	due := r.d.Calendar.WeekDueAt(acceptedAt)
	if !due.After(now) {
		due = r.d.Calendar.WeekDueAt(now)
	}
	return due
}

// settledSince maps question keys to the latest time the user archived or
// dismissed them within [since, now]. A solve at or before that time has
// already been accounted for.
func (r *Reconciler) settledSince(ctx context.Context, userID string, since, now time.Time) (map[string]time.Time, error) {
	out := make(map[string]time.Time)
	mark := func(key string, at time.Time) {
		if prev, ok := out[key]; !ok || at.After(prev) {
			out[key] = at
		}
	}

	last := r.d.Calendar.MonthKey(now)
	for t := since; ; t = r.d.Calendar.MonthDueAt(t).Add(time.Millisecond) {
		mk := r.d.Calendar.MonthKey(t)
		doc, err := r.d.Archive.Get(ctx, userID, mk)
		if err != nil {
			return nil, storeErr("reconcile: read archive", err)
		}
		for _, a := range doc.Items {
			mark(a.ItemKey, a.CompletedAt)
		}
		if mk == last || !t.Before(now) {
			break
		}
	}

	dismissed, err := r.d.Dismissals.ListSince(ctx, userID, since)
	if err != nil {
		return nil, storeErr("reconcile: read dismissals", err)
	}
	for _, d := range dismissed {
		mark(d.QuestionKey, d.At)
	}
	return out, nil
}

// describe fills title and difficulty from the catalog when it answers.
func (r *Reconciler) describe(ctx context.Context, it *models.RevisionItem) {
	if r.catalog == nil {
		return
	}
	lctx, cancel := context.WithTimeout(ctx, r.cfg.LookupTimeout)
	defer cancel()

	p, err := r.catalog.LookupProblem(lctx, it.Ref)
	if err != nil {
		r.d.Log.Debug("reconcile: catalog lookup failed",
			zap.String("ref", it.Ref),
			zap.Error(err))
		return
	}
	if p.Title != "" {
		it.Title = p.Title
	}
	it.Difficulty = p.Difficulty
}
