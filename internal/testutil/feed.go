package testutil

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dalemusser/prephub/internal/app/system/submissions"
)

// FakeFeed is a scripted submission feed and catalog.
type FakeFeed struct {
	mu       sync.Mutex
	entries  []submissions.Accepted
	problems map[string]submissions.Problem
	err      error
	calls    int
}

// NewFakeFeed creates a feed that reports no submissions.
func NewFakeFeed() *FakeFeed {
	return &FakeFeed{problems: make(map[string]submissions.Problem)}
}

// Accept records an accepted submission at t.
func (f *FakeFeed) Accept(ref string, t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, submissions.Accepted{
		ProblemRef:             ref,
		Title:                  ref,
		AcceptedAtEpochSeconds: float64(t.Unix()),
	})
}

// AddRaw records an entry exactly as given, including malformed ones.
func (f *FakeFeed) AddRaw(e submissions.Accepted) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
}

// SetProblem registers catalog metadata for a ref.
func (f *FakeFeed) SetProblem(p submissions.Problem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.problems[strings.ToLower(p.Ref)] = p
}

// Fail makes every call return err; nil restores normal behaviour.
func (f *FakeFeed) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Calls reports how many times FetchRecentAccepted ran.
func (f *FakeFeed) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// FetchRecentAccepted implements submissions.Feed. Entries are returned
// newest-recorded first, capped at limit.
func (f *FakeFeed) FetchRecentAccepted(ctx context.Context, username string, limit int) ([]submissions.Accepted, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]submissions.Accepted, 0, len(f.entries))
	for i := len(f.entries) - 1; i >= 0; i-- {
		out = append(out, f.entries[i])
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// LookupProblem implements submissions.Catalog.
func (f *FakeFeed) LookupProblem(_ context.Context, ref string) (submissions.Problem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return submissions.Problem{}, f.err
	}
	p, ok := f.problems[strings.ToLower(ref)]
	if !ok {
		return submissions.Problem{}, submissions.ErrProblemNotFound
	}
	return p, nil
}
