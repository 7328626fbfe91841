package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/flocknet/flockmind/internal/models"
)

// TweetRepository provides tweet-related database operations
type TweetRepository struct {
	*Repository
}

// NewTweetRepository creates a new tweet repository
func NewTweetRepository(repo *Repository) *TweetRepository {
	return &TweetRepository{Repository: repo}
}

// GetByID retrieves a tweet by ID
func (r *TweetRepository) GetByID(ctx context.Context, id int64) (*models.Tweet, error) {
	var tweet models.Tweet
	if err := r.db.WithContext(ctx).First(&tweet, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tweet, nil
}

// Create creates a new tweet
func (r *TweetRepository) Create(ctx context.Context, tx *gorm.DB, tweet *models.Tweet) error {
	return tx.WithContext(ctx).Create(tweet).Error
}

// AdjustCounter applies an atomic field-level delta to one of the tweet's
// denormalized counters. Decrements are floored at zero.
func (r *TweetRepository) AdjustCounter(ctx context.Context, tx *gorm.DB, tweetID int64, column string, delta int64) error {
	q := tx.WithContext(ctx).Model(&models.Tweet{}).Where("id = ?", tweetID)
	if delta < 0 {
		q = q.Where(column+" >= ?", -delta)
	}
	return q.UpdateColumn(column, gorm.Expr(column+" + ?", delta)).Error
}

// Replies lists direct replies to a tweet, newest first.
func (r *TweetRepository) Replies(ctx context.Context, tweetID int64, limit int) ([]*models.Tweet, error) {
	var tweets []*models.Tweet
	err := r.db.WithContext(ctx).
		Where("reply_to_id = ?", tweetID).
		Order("created_at DESC").
		Limit(limit).
		Find(&tweets).Error
	return tweets, err
}

// Retweeters lists author ids of pure retweets of a tweet.
func (r *TweetRepository) Retweeters(ctx context.Context, tweetID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&models.Tweet{}).
		Where("retweet_of_id = ? AND body IS NULL", tweetID).
		Pluck("author_id", &ids).Error
	return ids, err
}

// HashtagRepository provides hashtag-related database operations
type HashtagRepository struct {
	*Repository
}

// NewHashtagRepository creates a new hashtag repository
func NewHashtagRepository(repo *Repository) *HashtagRepository {
	return &HashtagRepository{Repository: repo}
}

// GetByName retrieves a hashtag by its normalized name
func (r *HashtagRepository) GetByName(ctx context.Context, name string) (*models.Hashtag, error) {
	var hashtag models.Hashtag
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&hashtag).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &hashtag, nil
}

// EnsureExists creates the hashtag row on first use. Concurrent creators
// race on the primary key and the loser proceeds with the existing row.
func (r *HashtagRepository) EnsureExists(ctx context.Context, tx *gorm.DB, name string) error {
	hashtag := &models.Hashtag{Name: name, UpdatedAt: time.Now().UTC()}
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(hashtag).Error
}

// AdjustUsage applies an atomic delta to usage_count. Decrements are
// guarded so the counter never goes negative.
func (r *HashtagRepository) AdjustUsage(ctx context.Context, tx *gorm.DB, name string, delta int64) error {
	q := tx.WithContext(ctx).Model(&models.Hashtag{}).Where("name = ?", name)
	if delta < 0 {
		q = q.Where("usage_count >= ?", -delta)
	}
	return q.UpdateColumns(map[string]interface{}{
		"usage_count": gorm.Expr("usage_count + ?", delta),
		"updated_at":  time.Now().UTC(),
	}).Error
}

// LinkTweet bulk-inserts tweet-hashtag join rows.
func (r *HashtagRepository) LinkTweet(ctx context.Context, tx *gorm.DB, joins []models.TweetHashtag) error {
	if len(joins) == 0 {
		return nil
	}
	batch := len(joins)
	if batch > 250 {
		batch = 250
	}
	return tx.WithContext(ctx).CreateInBatches(joins, batch).Error
}

// NamesForTweet returns the hashtag names currently linked to a tweet.
func (r *HashtagRepository) NamesForTweet(ctx context.Context, tx *gorm.DB, tweetID int64) ([]string, error) {
	var names []string
	err := tx.WithContext(ctx).Model(&models.TweetHashtag{}).
		Where("tweet_id = ?", tweetID).
		Pluck("hashtag_name", &names).Error
	return names, err
}

// UnlinkTweet removes all join rows for a tweet.
func (r *HashtagRepository) UnlinkTweet(ctx context.Context, tx *gorm.DB, tweetID int64) error {
	return tx.WithContext(ctx).Where("tweet_id = ?", tweetID).Delete(&models.TweetHashtag{}).Error
}

// Trending lists hashtags used within the window, heaviest usage first.
func (r *HashtagRepository) Trending(ctx context.Context, since time.Time, limit int) ([]*models.Hashtag, error) {
	if limit <= 0 || limit > 20 {
		limit = 20
	}
	var hashtags []*models.Hashtag
	err := r.db.WithContext(ctx).
		Where("updated_at > ?", since).
		Order("usage_count DESC").
		Limit(limit).
		Find(&hashtags).Error
	return hashtags, err
}

// MentionRepository provides mention-edge database operations
type MentionRepository struct {
	*Repository
}

// NewMentionRepository creates a new mention repository
func NewMentionRepository(repo *Repository) *MentionRepository {
	return &MentionRepository{Repository: repo}
}

// Create creates a new mention edge
func (r *MentionRepository) Create(ctx context.Context, tx *gorm.DB, mention *models.Mention) error {
	return tx.WithContext(ctx).Create(mention).Error
}

// IDsForTweet returns the edge ids attached to a tweet.
func (r *MentionRepository) IDsForTweet(ctx context.Context, tx *gorm.DB, tweetID int64) ([]int64, error) {
	var ids []int64
	err := tx.WithContext(ctx).Model(&models.Mention{}).
		Where("tweet_id = ?", tweetID).
		Pluck("id", &ids).Error
	return ids, err
}

// DeleteForTweet purges all mention edges attached to a tweet.
func (r *MentionRepository) DeleteForTweet(ctx context.Context, tx *gorm.DB, tweetID int64) error {
	return tx.WithContext(ctx).Where("tweet_id = ?", tweetID).Delete(&models.Mention{}).Error
}
