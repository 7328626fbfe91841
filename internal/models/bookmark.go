package models

import (
	"time"
)

// Bookmark marks a tweet as saved by a user. Existence of the row is the
// bookmarked state.
type Bookmark struct {
	UserID    int64     `gorm:"primaryKey;column:user_id"`
	TweetID   int64     `gorm:"primaryKey;column:tweet_id"`
	CreatedAt time.Time `gorm:"not null;index:flock_bookmarks_created_idx,sort:desc;column:created_at"`

	// Relationships
	User  *User  `gorm:"foreignKey:UserID;references:ID"`
	Tweet *Tweet `gorm:"foreignKey:TweetID;references:ID"`
}

// TableName specifies the table name for Bookmark
func (Bookmark) TableName() string {
	return "flock_bookmarks"
}
