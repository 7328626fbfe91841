package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Vote represents a poll attached to a tweet. Once ExpireDate has passed,
// Result is frozen on the first read and never recomputed.
type Vote struct {
	ID         uuid.UUID      `gorm:"primaryKey;type:varchar(36);column:id"`
	OwnerID    int64          `gorm:"not null;column:owner_id"`
	ExpireDate time.Time      `gorm:"not null;column:expire_date"`
	Result     sql.NullString `gorm:"type:text;column:result"`
	CreatedAt  time.Time      `gorm:"not null;column:created_at"`

	// Relationships
	Owner *User `gorm:"foreignKey:OwnerID;references:ID"`
}

// TableName specifies the table name for Vote
func (Vote) TableName() string {
	return "flock_votes"
}

// Expired reports whether the poll is closed as of now.
func (v *Vote) Expired(now time.Time) bool {
	return v.ExpireDate.Before(now)
}

// Choice is one answer option with a monotonically-incrementing count.
type Choice struct {
	ID        uuid.UUID `gorm:"primaryKey;type:varchar(36);column:id"`
	Title     string    `gorm:"type:varchar(512);not null;column:title"`
	Count     int64     `gorm:"not null;default:0;column:count"`
	CreatedAt time.Time `gorm:"not null;column:created_at"`
}

// TableName specifies the table name for Choice
func (Choice) TableName() string {
	return "flock_choices"
}

// VoteChoice is a join row attaching a choice to a poll.
type VoteChoice struct {
	VoteID   uuid.UUID `gorm:"primaryKey;type:varchar(36);column:vote_id"`
	ChoiceID uuid.UUID `gorm:"primaryKey;type:varchar(36);column:choice_id"`
}

// TableName specifies the table name for VoteChoice
func (VoteChoice) TableName() string {
	return "flock_vote_choices"
}

// VoteBallot records a user's single participation in a poll. The unique
// key makes double-submission lose at the storage layer, not just in an
// application-level existence check.
type VoteBallot struct {
	UserID    int64     `gorm:"primaryKey;column:user_id"`
	VoteID    uuid.UUID `gorm:"primaryKey;type:varchar(36);column:vote_id"`
	ChoiceID  uuid.UUID `gorm:"type:varchar(36);not null;column:choice_id"`
	CreatedAt time.Time `gorm:"not null;column:created_at"`
}

// TableName specifies the table name for VoteBallot
func (VoteBallot) TableName() string {
	return "flock_vote_ballots"
}
