package mention

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/flocknet/flockmind/internal/db"
	"github.com/flocknet/flockmind/internal/models"
)

// Resolver applies and removes the side effects of a tweet body's tokens.
type Resolver struct {
	users    *db.UserRepository
	hashtags *db.HashtagRepository
	mentions *db.MentionRepository
	notifs   *db.NotificationRepository
	logger   *zap.Logger
}

// NewResolver creates a new mention resolver
func NewResolver(repo *db.Repository, logger *zap.Logger) *Resolver {
	return &Resolver{
		users:    db.NewUserRepository(repo),
		hashtags: db.NewHashtagRepository(repo),
		mentions: db.NewMentionRepository(repo),
		notifs:   db.NewNotificationRepository(repo),
		logger:   logger,
	}
}

// Apply records hashtag usage and mention edges for a tweet body inside
// the caller's transaction. Hashtag rows are created lazily and bumped
// with atomic field increments; join rows go in as one bulk insert.
// Usernames that resolve to no user are silently dropped.
func (r *Resolver) Apply(ctx context.Context, tx *gorm.DB, tweet *models.Tweet, authorID int64) error {
	if !tweet.Body.Valid {
		return nil
	}
	body := tweet.Body.String

	joins := make([]models.TweetHashtag, 0)
	for token := range Hashtags(body) {
		name := "#" + strings.ToLower(token)
		if err := r.hashtags.EnsureExists(ctx, tx, name); err != nil {
			return err
		}
		if err := r.hashtags.AdjustUsage(ctx, tx, name, 1); err != nil {
			return err
		}
		joins = append(joins, models.TweetHashtag{TweetID: tweet.ID, HashtagName: name})
	}
	if err := r.hashtags.LinkTweet(ctx, tx, joins); err != nil {
		return err
	}

	tokens := Usernames(body)
	if len(tokens) == 0 {
		return nil
	}
	usernames := make([]string, 0, len(tokens))
	for token := range tokens {
		usernames = append(usernames, token)
	}

	mentioned, err := r.users.GetByUsernames(ctx, usernames)
	if err != nil {
		return err
	}

	for _, user := range mentioned {
		edge := &models.Mention{
			TweetID:     tweet.ID,
			MentionByID: sql.NullInt64{Int64: authorID, Valid: true},
			MentionToID: sql.NullInt64{Int64: user.ID, Valid: true},
		}
		if err := r.mentions.Create(ctx, tx, edge); err != nil {
			return err
		}
		if user.ID == authorID {
			continue
		}
		notif := &models.Notification{
			PerformedByID: sql.NullInt64{Int64: authorID, Valid: true},
			PerformedOnID: user.ID,
			Type:          models.NotifyTypeMention,
			Group:         models.NotifyGroupTwitter,
			SubjectKind:   models.KindMention,
			SubjectID:     strconv.FormatInt(edge.ID, 10),
		}
		if err := r.notifs.Create(ctx, tx, notif); err != nil {
			return err
		}
	}

	r.logger.Debug("Applied mention resolution",
		zap.Int64("tweet_id", tweet.ID),
		zap.Int("hashtags", len(joins)),
		zap.Int("mentions", len(mentioned)))

	return nil
}

// Remove purges all mention edges attached to a tweet along with the
// notifications whose subject is one of those edges. Callers re-run Apply
// with the new body afterwards.
func (r *Resolver) Remove(ctx context.Context, tx *gorm.DB, tweetID int64) error {
	ids, err := r.mentions.IDsForTweet(ctx, tx, tweetID)
	if err != nil {
		return err
	}
	if len(ids) > 0 {
		subjects := make([]string, len(ids))
		for i, id := range ids {
			subjects[i] = strconv.FormatInt(id, 10)
		}
		if err := r.notifs.DeleteBySubjects(ctx, tx, models.KindMention, subjects); err != nil {
			return err
		}
	}
	return r.mentions.DeleteForTweet(ctx, tx, tweetID)
}

// ClearHashtags unlinks a tweet's hashtags and decrements their usage
// counters. Edit and delete share this path, so counters stay symmetric
// with apply-time increments.
func (r *Resolver) ClearHashtags(ctx context.Context, tx *gorm.DB, tweetID int64) error {
	names, err := r.hashtags.NamesForTweet(ctx, tx, tweetID)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := r.hashtags.AdjustUsage(ctx, tx, name, -1); err != nil {
			return err
		}
	}
	return r.hashtags.UnlinkTweet(ctx, tx, tweetID)
}
