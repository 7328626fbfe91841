package models

import (
	"time"
)

// Fellowship represents a follow relationship
type Fellowship struct {
	FollowerID  int64     `gorm:"primaryKey;column:follower_id"`
	FollowingID int64     `gorm:"primaryKey;column:following_id"`
	CreatedAt   time.Time `gorm:"not null;index:flock_fellowships_created_idx,sort:desc;column:created_at"`

	// Relationships
	Follower  *User `gorm:"foreignKey:FollowerID;references:ID"`
	Following *User `gorm:"foreignKey:FollowingID;references:ID"`
}

// TableName specifies the table name for Fellowship
func (Fellowship) TableName() string {
	return "flock_fellowships"
}

// MutedUser suppresses notifications and feed entries from the muted user.
type MutedUser struct {
	MuterID   int64     `gorm:"primaryKey;column:muter_id"`
	MutedID   int64     `gorm:"primaryKey;column:muted_id"`
	CreatedAt time.Time `gorm:"not null;column:created_at"`

	// Relationships
	Muter *User `gorm:"foreignKey:MuterID;references:ID"`
	Muted *User `gorm:"foreignKey:MutedID;references:ID"`
}

// TableName specifies the table name for MutedUser
func (MutedUser) TableName() string {
	return "flock_muted_users"
}

// BlockedUser represents a block relationship
type BlockedUser struct {
	BlockerID int64     `gorm:"primaryKey;column:blocker_id"`
	BlockedID int64     `gorm:"primaryKey;column:blocked_id"`
	CreatedAt time.Time `gorm:"not null;index:flock_block_list_created_idx,sort:desc;column:created_at"`

	// Relationships
	Blocker *User `gorm:"foreignKey:BlockerID;references:ID"`
	Blocked *User `gorm:"foreignKey:BlockedID;references:ID"`
}

// TableName specifies the table name for BlockedUser
func (BlockedUser) TableName() string {
	return "flock_block_list"
}
