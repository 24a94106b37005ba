package revision

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/prephub/internal/app/store/revisionitems"
	"github.com/dalemusser/prephub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AddRequest adds a question to a bucket.
type AddRequest struct {
	Source     string `json:"source"`
	Ref        string `json:"ref"`
	Title      string `json:"title"`
	Difficulty string `json:"difficulty,omitempty"`
	Link       string `json:"link,omitempty"`
	Bucket     string `json:"bucket"`
}

// Add creates the item unless the bucket already holds the question, in
// which case the existing item is returned with created=false.
func (s *Service) Add(ctx context.Context, userID string, req AddRequest) (models.RevisionItem, bool, error) {
	if strings.TrimSpace(userID) == "" {
		return models.RevisionItem{}, false, invalid("user", "required")
	}
	if strings.TrimSpace(req.Source) == "" {
		return models.RevisionItem{}, false, invalid("source", "required")
	}
	if strings.TrimSpace(req.Ref) == "" {
		return models.RevisionItem{}, false, invalid("ref", "required")
	}
	if strings.Contains(req.Source, ":") {
		return models.RevisionItem{}, false, invalid("source", "must not contain ':'")
	}
	b, ok := models.ParseBucket(req.Bucket)
	if !ok {
		return models.RevisionItem{}, false, invalid("bucket", "must be today, week or month")
	}

	now := s.d.Clock.Now()
	it, created, err := s.d.Items.UpsertIfAbsent(ctx, models.RevisionItem{
		UserID:      userID,
		Source:      req.Source,
		Ref:         req.Ref,
		Title:       req.Title,
		Link:        req.Link,
		Difficulty:  models.Difficulty(req.Difficulty),
		Bucket:      b,
		BucketDueAt: s.d.Calendar.DueAt(b, now),
		CreatedAt:   now,
	})
	if err != nil {
		return models.RevisionItem{}, false, storeErr("add", err)
	}
	return it, created, nil
}

// Move puts an item into another bucket with that bucket's default due
// date. If the target bucket already holds the question, the moved record
// is dropped and the existing one returned.
func (s *Service) Move(ctx context.Context, userID string, id primitive.ObjectID, target string) (models.RevisionItem, error) {
	if id.IsZero() {
		return models.RevisionItem{}, invalid("itemId", "required")
	}
	b, ok := models.ParseBucket(target)
	if !ok {
		return models.RevisionItem{}, invalid("targetBucket", "must be today, week or month")
	}

	it, err := s.d.Items.FindByID(ctx, userID, id)
	if err != nil {
		return models.RevisionItem{}, storeErr("move: find", err)
	}
	if it.Bucket == b {
		return it, nil
	}

	now := s.d.Clock.Now()
	moved, err := s.d.Items.Update(ctx, userID, id, revisionitems.Changes{
		Bucket:      b,
		BucketDueAt: s.d.Calendar.DueAt(b, now),
	})
	if errors.Is(err, revisionitems.ErrDuplicate) {
		existing, ferr := s.d.Items.FindByKey(ctx, userID, it.QuestionKey, b)
		if ferr != nil {
			return models.RevisionItem{}, storeErr("move: find existing", ferr)
		}
		if _, derr := s.d.Items.DeleteAndReturn(ctx, userID, id); derr != nil && !errors.Is(derr, revisionitems.ErrNotFound) {
			return models.RevisionItem{}, storeErr("move: drop source", derr)
		}
		return existing, nil
	}
	if err != nil {
		return models.RevisionItem{}, storeErr("move", err)
	}
	return moved, nil
}

// Delete removes a live item without archiving it. Solves of the question
// accepted before now are not auto-enrolled again.
func (s *Service) Delete(ctx context.Context, userID string, id primitive.ObjectID) (models.RevisionItem, error) {
	if id.IsZero() {
		return models.RevisionItem{}, invalid("itemId", "required")
	}
	it, err := s.d.Items.FindByID(ctx, userID, id)
	if err != nil {
		return models.RevisionItem{}, storeErr("delete: find", err)
	}
	if err := s.d.Dismissals.Record(ctx, userID, it.QuestionKey, models.DismissedDeleted, s.d.Clock.Now()); err != nil {
		return models.RevisionItem{}, storeErr("delete: record", err)
	}
	it, err = s.d.Items.DeleteAndReturn(ctx, userID, id)
	if err != nil {
		return models.RevisionItem{}, storeErr("delete", err)
	}
	return it, nil
}

// Complete marks an item complete for its bucket.
func (s *Service) Complete(ctx context.Context, userID string, req CompleteRequest) (CompleteResult, error) {
	return s.completer.Complete(ctx, userID, req)
}

// History lists the user's archived months, newest first.
func (s *Service) History(ctx context.Context, userID string) ([]models.MonthlyArchive, error) {
	return s.archiver.History(ctx, userID)
}
