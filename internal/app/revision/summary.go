package revision

import (
	"context"
	"time"

	"github.com/dalemusser/prephub/internal/app/store/revisionitems"
	"github.com/dalemusser/prephub/internal/app/system/submissions"
	"github.com/dalemusser/prephub/internal/app/system/telemetry"
	"github.com/dalemusser/prephub/internal/domain/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SummaryItem is a live item plus the latest accepted submission the feed
// reported for its question, if any.
type SummaryItem struct {
	models.RevisionItem
	LastAcceptedAt *time.Time `json:"last_accepted_at,omitempty"`
}

// Summary is the partitioned view returned to the caller.
type Summary struct {
	RunID             string                `json:"run_id"`
	GeneratedAt       time.Time             `json:"generated_at"`
	MonthKey          string                `json:"month_key"`
	Today             []SummaryItem         `json:"today"`
	Week              []SummaryItem         `json:"week"`
	Month             []SummaryItem         `json:"month"`
	ArchivedThisMonth []models.ArchivedItem `json:"archived_this_month"`
}

// Service is the scheduler's entry point for the command surface.
type Service struct {
	d          Deps
	archiver   *Archiver
	rollover   *Rollover
	completer  *Completer
	reconciler *Reconciler
}

// NewService wires the engines together. feed and catalog may be nil.
func NewService(d Deps, feed submissions.Feed, catalog submissions.Catalog, cfg ReconcileConfig) *Service {
	d = d.withDefaults()
	archiver := NewArchiver(d)
	completer := NewCompleter(d, archiver)
	return &Service{
		d:          d,
		archiver:   archiver,
		rollover:   NewRollover(d),
		completer:  completer,
		reconciler: NewReconciler(d, feed, catalog, completer, cfg),
	}
}

// summaryRun is the state one Summary call threads through its steps.
type summaryRun struct {
	user     User
	now      time.Time
	monthKey string
	log      *zap.Logger

	latest   map[string]time.Time
	items    []models.RevisionItem
	archived models.MonthlyArchive
}

// step is one stage of the summary pipeline. A failing best-effort step is
// logged and skipped; a failing required step fails the request.
type step struct {
	name     string
	required bool
	run      func(ctx context.Context, r *summaryRun) error
}

// pipeline is the fixed step order. Later steps observe the writes of
// earlier ones.
func (s *Service) pipeline() []step {
	steps := []step{
		{name: "cleanup", run: s.cleanupStep},
		{name: "reconcile", run: s.reconcileStep},
	}
	for _, rs := range s.rollover.Steps() {
		steps = append(steps, step{
			name: rs.Name,
			run: func(ctx context.Context, r *summaryRun) error {
				_, err := rs.Run(ctx, r.user.ID, r.now)
				return err
			},
		})
	}
	return append(steps, step{name: "read", required: true, run: s.readStep})
}

// Summary brings the user's items up to date and returns them partitioned
// by bucket. Only a failure to read the final state is returned.
func (s *Service) Summary(ctx context.Context, u User) (Summary, error) {
	if u.ID == "" {
		return Summary{}, invalid("user", "required")
	}

	now := s.d.Clock.Now()
	runID := uuid.NewString()
	r := &summaryRun{
		user:     u,
		now:      now,
		monthKey: s.d.Calendar.MonthKey(now),
		log:      s.d.Log.With(zap.String("run_id", runID), zap.String("user_id", u.ID)),
	}

	for _, st := range s.pipeline() {
		err := st.run(ctx, r)
		if err == nil {
			continue
		}
		if st.required {
			r.log.Error("summary step failed", zap.String("step", st.name), zap.Error(err))
			return Summary{}, storeErr(st.name, err)
		}
		telemetry.RecordStepFailure(st.name)
		r.log.Warn("summary step skipped", zap.String("step", st.name), zap.Error(err))
	}

	out := Summary{
		RunID:             runID,
		GeneratedAt:       now,
		MonthKey:          r.monthKey,
		Today:             []SummaryItem{},
		Week:              []SummaryItem{},
		Month:             []SummaryItem{},
		ArchivedThisMonth: r.archived.Items,
	}
	if out.ArchivedThisMonth == nil {
		out.ArchivedThisMonth = []models.ArchivedItem{}
	}

	revisionitems.SortItems(r.items)
	for _, it := range r.items {
		si := SummaryItem{RevisionItem: it}
		if at, ok := r.latest[it.QuestionKey]; ok {
			si.LastAcceptedAt = &at
		}
		switch it.Bucket {
		case models.BucketToday:
			out.Today = append(out.Today, si)
		case models.BucketWeek:
			out.Week = append(out.Week, si)
		case models.BucketMonth:
			out.Month = append(out.Month, si)
		}
	}
	return out, nil
}

func (s *Service) cleanupStep(ctx context.Context, r *summaryRun) error {
	_, err := s.archiver.CleanupStale(ctx, r.user.ID)
	return err
}

func (s *Service) reconcileStep(ctx context.Context, r *summaryRun) error {
	res, err := s.reconciler.Reconcile(ctx, r.user, r.now)
	r.latest = res.Latest
	if res.Completed+res.Merged+res.Enrolled > 0 {
		r.log.Info("reconciled submissions",
			zap.Int("completed", res.Completed),
			zap.Int("merged", res.Merged),
			zap.Int("enrolled", res.Enrolled))
	}
	return err
}

// readStep loads live items and this month's archive in parallel.
func (s *Service) readStep(ctx context.Context, r *summaryRun) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := s.d.Items.List(gctx, revisionitems.Filter{UserID: r.user.ID})
		r.items = items
		return err
	})
	g.Go(func() error {
		doc, err := s.d.Archive.Get(gctx, r.user.ID, r.monthKey)
		r.archived = doc
		return err
	})
	return g.Wait()
}
