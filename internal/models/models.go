package models

import "errors"

// Post states. A post is visible to the public only when published.
const (
	StateHeld      = "held"
	StatePublished = "published"
)

// DefaultChannel is used when a post is submitted without a channel.
const DefaultChannel = "confess-here"

// ErrPostNotFound is returned when an operation needs a post that does not exist.
var ErrPostNotFound = errors.New("post not found")

// Post represents a single anonymous confession.
type Post struct {
	ID      string `gorm:"primaryKey;size:36" json:"id"`
	Text    string `gorm:"not null" json:"text"`
	Channel string `gorm:"not null;index" json:"channel"`
	State   string `gorm:"not null;index" json:"state"`
	TS      int64  `gorm:"column:ts;not null;index" json:"ts"` // epoch milliseconds

	Reactions map[string]int `gorm:"-" json:"reactions,omitempty"`
}

// Reaction counts how many times a post received a given kind of reaction.
type Reaction struct {
	ID     uint   `gorm:"primaryKey" json:"-"`
	PostID string `gorm:"not null;uniqueIndex:idx_reactions_post_kind" json:"postId"`
	Kind   string `gorm:"not null;uniqueIndex:idx_reactions_post_kind" json:"kind"`
	Count  int    `gorm:"not null;default:0" json:"count"`
}

// AuditEntry is an append-only record of a moderation or admin action.
// Target may reference a post that no longer exists.
type AuditEntry struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Action  string `gorm:"not null;index" json:"action"`
	Target  string `gorm:"index" json:"target"`
	Details string `json:"details"`
	TS      int64  `gorm:"column:ts;not null" json:"ts"`
}

func (AuditEntry) TableName() string { return "audit" }

// PostUpdate carries the fields an admin may change. Empty strings mean
// "leave unchanged".
type PostUpdate struct {
	State string `json:"state,omitempty"`
	Text  string `json:"text,omitempty"`
}

// ValidState reports whether s is one of the known post states.
func ValidState(s string) bool {
	return s == StateHeld || s == StatePublished
}
