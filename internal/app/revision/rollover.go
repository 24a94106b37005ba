package revision

import (
	"context"
	"time"

	"github.com/dalemusser/prephub/internal/app/store/revisionitems"
	"github.com/dalemusser/prephub/internal/app/system/telemetry"
	"github.com/dalemusser/prephub/internal/domain/models"
)

// Rollover step names, in the order they must run.
const (
	StepTodayRollover   = "today_rollover"
	StepSundayPromotion = "sunday_promotion"
	StepWeekRollover    = "week_rollover"
	StepMonthRollover   = "month_rollover"
)

// Rollover carries overdue items forward to their next cycle boundary.
// Each step is a single bulk update and a no-op on already-advanced state.
type Rollover struct {
	d Deps
}

// NewRollover creates a Rollover.
func NewRollover(d Deps) *Rollover {
	return &Rollover{d: d.withDefaults()}
}

// RolloverStep is one ordered rollover step.
type RolloverStep struct {
	Name string
	Run  func(ctx context.Context, userID string, now time.Time) (int64, error)
}

// Steps lists the steps in execution order. Each later step reads the
// state the earlier ones wrote.
func (r *Rollover) Steps() []RolloverStep {
	return []RolloverStep{
		{Name: StepTodayRollover, Run: r.TodayRollover},
		{Name: StepSundayPromotion, Run: r.SundayPromotion},
		{Name: StepWeekRollover, Run: r.WeekRollover},
		{Name: StepMonthRollover, Run: r.MonthRollover},
	}
}

func (r *Rollover) advance(ctx context.Context, step string, f revisionitems.Filter, b models.Bucket, due time.Time) (int64, error) {
	n, err := r.d.Items.BulkAdvance(ctx, f, b, due)
	if err != nil {
		return n, storeErr(step, err)
	}
	telemetry.RecordRollover(step, n)
	return n, nil
}

// TodayRollover slides unfinished today items from earlier days onto the
// current task day.
func (r *Rollover) TodayRollover(ctx context.Context, userID string, now time.Time) (int64, error) {
	cal := r.d.Calendar
	return r.advance(ctx, StepTodayRollover, revisionitems.Filter{
		UserID:    userID,
		Bucket:    models.BucketToday,
		DueBefore: cal.StartOfTaskDay(now),
	}, "", cal.TodayDueAt(now))
}

// SundayPromotion runs only on a UTC Sunday. Week items due before the
// start of the day move into today. Items whose question is already in
// today stay put.
func (r *Rollover) SundayPromotion(ctx context.Context, userID string, now time.Time) (int64, error) {
	if now.UTC().Weekday() != time.Sunday {
		return 0, nil
	}
	cal := r.d.Calendar
	return r.advance(ctx, StepSundayPromotion, revisionitems.Filter{
		UserID:    userID,
		Bucket:    models.BucketWeek,
		DueBefore: cal.StartOfTaskDay(now),
	}, models.BucketToday, cal.TodayDueAt(now))
}

// WeekRollover pushes overdue week items to the next weekly boundary.
func (r *Rollover) WeekRollover(ctx context.Context, userID string, now time.Time) (int64, error) {
	cal := r.d.Calendar
	return r.advance(ctx, StepWeekRollover, revisionitems.Filter{
		UserID:    userID,
		Bucket:    models.BucketWeek,
		DueBefore: cal.StartOfTaskDay(now),
	}, "", cal.WeekDueAt(now))
}

// MonthRollover pushes unfinished month items from past months to the end
// of the current month.
func (r *Rollover) MonthRollover(ctx context.Context, userID string, now time.Time) (int64, error) {
	cal := r.d.Calendar
	return r.advance(ctx, StepMonthRollover, revisionitems.Filter{
		UserID:          userID,
		Bucket:          models.BucketMonth,
		MonthIncomplete: true,
		DueBefore:       cal.StartOfMonth(now),
	}, "", cal.MonthDueAt(now))
}
