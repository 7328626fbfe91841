package models

import (
	"database/sql"
)

// Mention is one occurrence of a user tagging another user in a tweet body.
// User refs are nullable so edges survive account deletion.
type Mention struct {
	ID          int64         `gorm:"primaryKey;autoIncrement;column:id"`
	TweetID     int64         `gorm:"not null;index:flock_mentions_tweet_idx;column:tweet_id"`
	MentionByID sql.NullInt64 `gorm:"column:mention_by_id"`
	MentionToID sql.NullInt64 `gorm:"column:mention_to_id"`

	// Relationships
	MentionBy *User `gorm:"foreignKey:MentionByID;references:ID"`
	MentionTo *User `gorm:"foreignKey:MentionToID;references:ID"`
}

// TableName specifies the table name for Mention
func (Mention) TableName() string {
	return "flock_mentions"
}
