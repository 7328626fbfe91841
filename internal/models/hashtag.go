package models

import (
	"time"
)

// Hashtag represents a tag keyed by its normalized name ("#" + lower-case
// token). UsageCount tracks live tweet associations and is only ever moved
// by atomic field-level increments.
type Hashtag struct {
	Name       string    `gorm:"primaryKey;type:varchar(255);column:name"`
	UsageCount int64     `gorm:"not null;default:0;index:flock_hashtags_usage_idx,sort:desc;column:usage_count"`
	UpdatedAt  time.Time `gorm:"not null;column:updated_at"`
}

// TableName specifies the table name for Hashtag
func (Hashtag) TableName() string {
	return "flock_hashtags"
}
