package models

import (
	"database/sql"
	"time"
)

// User represents a registered account
type User struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:id"`
	Username  string    `gorm:"type:varchar(32);not null;uniqueIndex:flock_users_ux1;column:username"`
	CreatedAt time.Time `gorm:"not null;column:created_at"`

	// Profile fields
	DisplayName sql.NullString `gorm:"type:varchar(50);column:display_name"`
	Bio         sql.NullString `gorm:"type:varchar(160);column:bio"`
	IsPrivate   bool           `gorm:"not null;default:false;column:is_private"`
	IsActive    bool           `gorm:"not null;default:true;column:is_active"`

	// Social stats, maintained by the follow toggle
	FollowersCount int64 `gorm:"not null;default:0;column:followers_count"`
	FollowingCount int64 `gorm:"not null;default:0;column:following_count"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "flock_users"
}
