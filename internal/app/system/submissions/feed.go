// Package submissions talks to the external submission feed: the read-only
// log of a user's accepted solutions on the origin judge.
//
// The feed is optional to the scheduler. Every error it returns wraps
// ErrFeedUnavailable so callers can treat all failures as "no data".
package submissions

import (
	"context"
	"errors"

	"github.com/dalemusser/prephub/internal/domain/models"
)

var (
	// ErrFeedUnavailable wraps every failure to reach or decode the feed.
	ErrFeedUnavailable = errors.New("submission feed unavailable")
	// ErrProblemNotFound means the catalog has no problem with that ref.
	ErrProblemNotFound = errors.New("problem not found")
)

// Accepted is one accepted submission exactly as the feed reported it.
// Entries are not validated here; a missing ref or a non-positive
// timestamp marks an entry as malformed.
type Accepted struct {
	ProblemRef             string  `json:"problem_ref"`
	Title                  string  `json:"title,omitempty"`
	AcceptedAtEpochSeconds float64 `json:"accepted_at"`
}

// Problem is catalog metadata for one problem.
type Problem struct {
	Ref        string            `json:"ref"`
	Title      string            `json:"title"`
	Difficulty models.Difficulty `json:"difficulty,omitempty"`
}

// Feed returns a user's most recent accepted submissions, newest first.
type Feed interface {
	FetchRecentAccepted(ctx context.Context, username string, limit int) ([]Accepted, error)
}

// Catalog resolves problem metadata by ref.
type Catalog interface {
	LookupProblem(ctx context.Context, ref string) (Problem, error)
}

// ProblemLink is the public problem page for a LeetCode slug.
func ProblemLink(ref string) string {
	return "https://leetcode.com/problems/" + ref + "/"
}
