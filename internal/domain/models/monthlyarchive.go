package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ArchivedItem is one completed month review kept in a MonthlyArchive.
// ItemKey is unique within its archive document.
type ArchivedItem struct {
	ItemKey     string     `bson:"item_key" json:"item_key"`
	Source      string     `bson:"source" json:"source"`
	Ref         string     `bson:"ref" json:"ref"`
	Title       string     `bson:"title" json:"title"`
	Difficulty  Difficulty `bson:"difficulty,omitempty" json:"difficulty,omitempty"`
	Link        string     `bson:"link,omitempty" json:"link,omitempty"`
	CompletedAt time.Time  `bson:"completed_at" json:"completed_at"`
}

// MonthlyArchive holds a user's month-bucket completions for one civil
// month (MonthKey "2006-01" in the archive time zone). Documents are
// created lazily and only ever grow.
type MonthlyArchive struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	UserID   string             `bson:"user_id" json:"-"`
	MonthKey string             `bson:"month_key" json:"month_key"`
	Items    []ArchivedItem     `bson:"items" json:"items"`

	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt *time.Time `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}
