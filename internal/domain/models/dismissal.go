package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DismissalReason records why a question left the live buckets without
// being archived.
type DismissalReason string

const (
	DismissedDeleted DismissalReason = "deleted"
	DismissedOneShot DismissalReason = "one_shot"
)

// Dismissal marks the last time a user removed a question from the live
// buckets. Solves accepted at or before At are not auto-enrolled again.
type Dismissal struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	UserID      string             `bson:"user_id" json:"-"`
	QuestionKey string             `bson:"question_key" json:"question_key"`
	Reason      DismissalReason    `bson:"reason" json:"reason"`
	At          time.Time          `bson:"at" json:"at"`
}
