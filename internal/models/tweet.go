package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Tweet represents a tweet, reply, retweet, or quote-tweet.
// A row with RetweetOfID set and Body null is a pure retweet; with both
// set it is a quote-tweet.
type Tweet struct {
	ID        int64          `gorm:"primaryKey;autoIncrement;column:id"`
	AuthorID  int64          `gorm:"not null;index:flock_tweets_author_idx;column:author_id"`
	Body      sql.NullString `gorm:"type:varchar(5000);column:body"`
	Images    sql.NullString `gorm:"type:text;column:images"`
	CreatedAt time.Time      `gorm:"not null;index:flock_tweets_created_idx,sort:desc;column:created_at"`

	ReplyToID   sql.NullInt64 `gorm:"index:flock_tweets_reply_idx;column:reply_to_id"`
	RetweetOfID sql.NullInt64 `gorm:"index:flock_tweets_retweet_idx;column:retweet_of_id"`

	// Optional attached poll
	VoteID *uuid.UUID `gorm:"type:varchar(36);column:vote_id"`

	// Denormalized counters
	LikesCount    int64 `gorm:"not null;default:0;column:likes_count"`
	DislikesCount int64 `gorm:"not null;default:0;column:dislikes_count"`
	ViewsCount    int64 `gorm:"not null;default:0;column:views_count"`
	MentionsCount int64 `gorm:"not null;default:0;column:mentions_count"`
	RetweetsCount int64 `gorm:"not null;default:0;column:retweets_count"`

	// Polymorphic related item reference
	RelatedItemKind sql.NullString `gorm:"type:varchar(16);index:flock_tweets_related_idx;column:related_item_kind"`
	RelatedItemID   sql.NullString `gorm:"type:varchar(64);index:flock_tweets_related_idx;column:related_item_id"`

	// Relationships. The self-referencing keys cascade so the schema
	// agrees with the service-level tree delete.
	Author    *User  `gorm:"foreignKey:AuthorID;references:ID"`
	ReplyTo   *Tweet `gorm:"foreignKey:ReplyToID;references:ID;constraint:OnDelete:CASCADE"`
	RetweetOf *Tweet `gorm:"foreignKey:RetweetOfID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for Tweet
func (Tweet) TableName() string {
	return "flock_tweets"
}

// IsPureRetweet reports whether the tweet is a bodyless retweet.
func (t *Tweet) IsPureRetweet() bool {
	return t.RetweetOfID.Valid && !t.Body.Valid
}

// TweetHashtag is a join row linking a tweet to a hashtag it used.
type TweetHashtag struct {
	TweetID     int64  `gorm:"primaryKey;column:tweet_id"`
	HashtagName string `gorm:"primaryKey;type:varchar(255);column:hashtag_name"`
}

// TableName specifies the table name for TweetHashtag
func (TweetHashtag) TableName() string {
	return "flock_tweet_hashtags"
}
