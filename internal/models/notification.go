package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// NotificationType identifies the action a notification reports.
type NotificationType string

// Notification type constants
const (
	NotifyTypeLike    NotificationType = "like"
	NotifyTypeRetweet NotificationType = "retweet"
	NotifyTypeMention NotificationType = "mention"
	NotifyTypeMessage NotificationType = "message"
	NotifyTypeEvent   NotificationType = "event"
)

// NotifyGroupTwitter is the namespace for the micro-blogging product.
const NotifyGroupTwitter = "twitter"

// Notification represents one feed entry for a recipient. The composite
// trigger key (actor, recipient, group, type, subject) is deliberately
// NOT unique at the storage layer: the async dispatcher may legitimately
// write identical rows, while the toggle-notify path enforces uniqueness
// itself under a row lock.
type Notification struct {
	ID uuid.UUID `gorm:"primaryKey;type:varchar(36);column:id"`

	PerformedByID sql.NullInt64 `gorm:"index:flock_notifs_trigger_idx;column:performed_by_id"`
	PerformedOnID int64         `gorm:"not null;index:flock_notifs_trigger_idx;index:flock_notifs_dst_idx;column:performed_on_id"`

	Type  NotificationType `gorm:"type:varchar(8);not null;index:flock_notifs_trigger_idx;column:type"`
	Group string           `gorm:"type:varchar(32);not null;index:flock_notifs_trigger_idx;column:group_name"`

	SubjectKind ContentKind `gorm:"type:varchar(16);not null;index:flock_notifs_trigger_idx;index:flock_notifs_subject_idx;column:subject_kind"`
	SubjectID   string      `gorm:"type:varchar(64);not null;index:flock_notifs_trigger_idx;index:flock_notifs_subject_idx;column:subject_id"`

	CreatedAt time.Time    `gorm:"not null;index:flock_notifs_created_idx,sort:desc;column:created_at"`
	ReadAt    sql.NullTime `gorm:"column:read_at"`

	// Relationships
	PerformedBy *User `gorm:"foreignKey:PerformedByID;references:ID"`
	PerformedOn *User `gorm:"foreignKey:PerformedOnID;references:ID"`
}

// TableName specifies the table name for Notification
func (Notification) TableName() string {
	return "flock_notifications"
}

// Subject returns the polymorphic reference carried by the notification.
func (n *Notification) Subject() Ref {
	return Ref{Kind: n.SubjectKind, ID: n.SubjectID}
}
