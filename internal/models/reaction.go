package models

import (
	"time"
)

// Reaction stance constants
const (
	StanceLike    int16 = 1
	StanceDislike int16 = 2
)

// Reaction holds a user's like/dislike stance on a tweet. One row per
// (user, tweet); absence of a row means no reaction. Stance moves happen
// in a single transaction, so like and dislike can never coexist.
type Reaction struct {
	UserID    int64     `gorm:"primaryKey;column:user_id"`
	TweetID   int64     `gorm:"primaryKey;column:tweet_id"`
	Stance    int16     `gorm:"type:smallint;not null;column:stance"`
	CreatedAt time.Time `gorm:"not null;index:flock_reactions_created_idx,sort:desc;column:created_at"`

	// Relationships
	User  *User  `gorm:"foreignKey:UserID;references:ID"`
	Tweet *Tweet `gorm:"foreignKey:TweetID;references:ID"`
}

// TableName specifies the table name for Reaction
func (Reaction) TableName() string {
	return "flock_reactions"
}
