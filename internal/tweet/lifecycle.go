// Package tweet implements the tweet lifecycle: creation with mention
// and hashtag resolution, edits with symmetric counter rollback, deletes
// with dependent-row cleanup, and the engagement toggles (reactions,
// bookmarks, views).
package tweet

import (
	"context"
	"database/sql"
	"errors"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/flocknet/flockmind/internal/db"
	"github.com/flocknet/flockmind/internal/errs"
	"github.com/flocknet/flockmind/internal/mention"
	"github.com/flocknet/flockmind/internal/models"
	"github.com/flocknet/flockmind/internal/notify"
	"github.com/flocknet/flockmind/internal/toggle"
)

// MaxBodyRunes caps the post-sanitization body length.
const MaxBodyRunes = 5000

// Service owns tweet mutations. Reads that need no invariants go
// straight through the repositories.
type Service struct {
	repo     *db.Repository
	tweets   *db.TweetRepository
	users    *db.UserRepository
	notifs   *db.NotificationRepository
	resolver *mention.Resolver
	dispatch *notify.Dispatcher
	sanitize *bluemonday.Policy
	logger   *zap.Logger
}

// NewService creates a new tweet lifecycle service
func NewService(repo *db.Repository, resolver *mention.Resolver, dispatch *notify.Dispatcher, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		tweets:   db.NewTweetRepository(repo),
		users:    db.NewUserRepository(repo),
		notifs:   db.NewNotificationRepository(repo),
		resolver: resolver,
		dispatch: dispatch,
		sanitize: bluemonday.StrictPolicy(),
		logger:   logger,
	}
}

// CreateInput carries everything a new tweet may set at birth. Author,
// parent references, and the poll attachment are immutable afterwards.
type CreateInput struct {
	AuthorID    int64
	Body        *string
	Images      *string
	ReplyToID   *int64
	RetweetOfID *int64
	VoteID      *uuid.UUID
	RelatedItem *models.Ref
}

// Create validates and persists a new tweet, resolves its hashtags and
// mentions inside the same transaction, and enqueues reply/retweet
// notifications after commit.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Tweet, error) {
	body, err := s.cleanBody(in.Body)
	if err != nil {
		return nil, err
	}
	if !body.Valid && in.RetweetOfID == nil {
		return nil, errs.Validation("body", "tweet body is required")
	}

	if in.RelatedItem != nil {
		if !in.RelatedItem.Kind.Valid() {
			return nil, errs.Validation("related_item", "unknown content kind")
		}
		entity, err := s.repo.Resolve(ctx, *in.RelatedItem)
		if err != nil {
			return nil, err
		}
		if entity == nil {
			return nil, errs.Validation("related_item", "referenced entity does not exist")
		}
	}

	tweet := &models.Tweet{
		AuthorID:  in.AuthorID,
		Body:      body,
		VoteID:    in.VoteID,
		CreatedAt: time.Now().UTC(),
	}
	if in.Images != nil {
		tweet.Images = sql.NullString{String: *in.Images, Valid: true}
	}
	if in.ReplyToID != nil {
		tweet.ReplyToID = sql.NullInt64{Int64: *in.ReplyToID, Valid: true}
	}
	if in.RetweetOfID != nil {
		tweet.RetweetOfID = sql.NullInt64{Int64: *in.RetweetOfID, Valid: true}
	}
	if in.RelatedItem != nil {
		tweet.RelatedItemKind = sql.NullString{String: string(in.RelatedItem.Kind), Valid: true}
		tweet.RelatedItemID = sql.NullString{String: in.RelatedItem.ID, Valid: true}
	}

	var parent, target *models.Tweet
	err = s.repo.Transaction(ctx, func(tx *gorm.DB) error {
		if in.ReplyToID != nil {
			parent, err = s.loadForUpdate(ctx, tx, *in.ReplyToID)
			if err != nil {
				return err
			}
		}
		if in.RetweetOfID != nil {
			target, err = s.loadForUpdate(ctx, tx, *in.RetweetOfID)
			if err != nil {
				return err
			}
			if target.IsPureRetweet() {
				return errs.Validation("retweet_of", "cannot retweet a retweet")
			}
		}

		if err := s.tweets.Create(ctx, tx, tweet); err != nil {
			return err
		}
		if err := s.resolver.Apply(ctx, tx, tweet, in.AuthorID); err != nil {
			return err
		}

		if parent != nil {
			if err := s.tweets.AdjustCounter(ctx, tx, parent.ID, "mentions_count", 1); err != nil {
				return err
			}
		}
		if target != nil {
			if err := s.tweets.AdjustCounter(ctx, tx, target.ID, "retweets_count", 1); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if parent != nil {
		s.dispatch.Dispatch(models.TweetRef(tweet.ID), parent.AuthorID, in.AuthorID,
			models.NotifyTypeMention, &parent.ID)
	}
	if target != nil {
		// A pure retweet points the notification at the original tweet;
		// a quote-tweet points at the new one so the quote is readable.
		subject := models.TweetRef(tweet.ID)
		if tweet.IsPureRetweet() {
			subject = models.TweetRef(target.ID)
		}
		s.dispatch.Dispatch(subject, target.AuthorID, in.AuthorID,
			models.NotifyTypeRetweet, nil)
	}

	s.logger.Info("Tweet created",
		zap.Int64("tweet_id", tweet.ID),
		zap.Int64("author_id", in.AuthorID),
		zap.Bool("reply", parent != nil),
		zap.Bool("retweet", target != nil))

	return tweet, nil
}

// Update replaces the body of an authored tweet. Hashtag counters and
// mention edges from the old body are rolled back before the new body is
// resolved, so edits stay symmetric with creation.
func (s *Service) Update(ctx context.Context, tweetID, actorID int64, newBody string) (*models.Tweet, error) {
	body, err := s.cleanBody(&newBody)
	if err != nil {
		return nil, err
	}
	if !body.Valid {
		return nil, errs.Validation("body", "tweet body is required")
	}

	var tweet *models.Tweet
	err = s.repo.Transaction(ctx, func(tx *gorm.DB) error {
		tweet, err = s.loadForUpdate(ctx, tx, tweetID)
		if err != nil {
			return err
		}
		if tweet.AuthorID != actorID {
			return errs.ErrNotFound
		}
		if tweet.IsPureRetweet() {
			return errs.Validation("body", "a retweet has no body to edit")
		}

		if err := s.resolver.ClearHashtags(ctx, tx, tweet.ID); err != nil {
			return err
		}
		if err := s.resolver.Remove(ctx, tx, tweet.ID); err != nil {
			return err
		}

		tweet.Body = body
		if err := tx.WithContext(ctx).Model(tweet).UpdateColumn("body", body).Error; err != nil {
			return err
		}
		return s.resolver.Apply(ctx, tx, tweet, tweet.AuthorID)
	})
	if err != nil {
		return nil, err
	}
	return tweet, nil
}

// Delete removes an authored tweet and everything hanging off it:
// hashtag links (with counter rollback), mention edges and their
// notifications, reactions, bookmarks, and notifications pointing at the
// tweet itself. Replies and retweets of the deleted tweet die with it,
// recursively, so no row is left with a dangling parent reference.
// Counters bumped at creation are rolled back on tweets that survive.
func (s *Service) Delete(ctx context.Context, tweetID, actorID int64) error {
	return s.repo.Transaction(ctx, func(tx *gorm.DB) error {
		tweet, err := s.loadForUpdate(ctx, tx, tweetID)
		if err != nil {
			return err
		}
		if tweet.AuthorID != actorID {
			return errs.ErrNotFound
		}

		victims, err := s.collectTree(ctx, tx, tweet)
		if err != nil {
			return err
		}
		doomed := make(map[int64]bool, len(victims))
		for _, v := range victims {
			doomed[v.ID] = true
		}

		// Leaves first, so every row is scrubbed before its parent.
		for i := len(victims) - 1; i >= 0; i-- {
			if err := s.scrub(ctx, tx, victims[i], doomed); err != nil {
				return err
			}
		}
		return nil
	})
}

// collectTree gathers the tweet plus every reply and retweet hanging off
// it, transitively. The result is ordered parents before children.
func (s *Service) collectTree(ctx context.Context, tx *gorm.DB, root *models.Tweet) ([]*models.Tweet, error) {
	victims := []*models.Tweet{root}
	for cursor := 0; cursor < len(victims); cursor++ {
		var children []*models.Tweet
		err := db.LockForUpdate(tx.WithContext(ctx)).
			Where("reply_to_id = ? OR retweet_of_id = ?", victims[cursor].ID, victims[cursor].ID).
			Find(&children).Error
		if err != nil {
			return nil, err
		}
		victims = append(victims, children...)
	}
	return victims, nil
}

// scrub removes one tweet row and its dependents. Parent counters are
// only rolled back on tweets outside the doomed set.
func (s *Service) scrub(ctx context.Context, tx *gorm.DB, tweet *models.Tweet, doomed map[int64]bool) error {
	if err := s.resolver.ClearHashtags(ctx, tx, tweet.ID); err != nil {
		return err
	}
	if err := s.resolver.Remove(ctx, tx, tweet.ID); err != nil {
		return err
	}

	if err := tx.WithContext(ctx).Where("tweet_id = ?", tweet.ID).Delete(&models.Reaction{}).Error; err != nil {
		return err
	}
	if err := tx.WithContext(ctx).Where("tweet_id = ?", tweet.ID).Delete(&models.Bookmark{}).Error; err != nil {
		return err
	}
	if err := s.notifs.DeleteBySubjects(ctx, tx, models.KindTweet, []string{models.TweetRef(tweet.ID).ID}); err != nil {
		return err
	}

	if tweet.ReplyToID.Valid && !doomed[tweet.ReplyToID.Int64] {
		if err := s.tweets.AdjustCounter(ctx, tx, tweet.ReplyToID.Int64, "mentions_count", -1); err != nil {
			return err
		}
	}
	if tweet.RetweetOfID.Valid && !doomed[tweet.RetweetOfID.Int64] {
		if err := s.tweets.AdjustCounter(ctx, tx, tweet.RetweetOfID.Int64, "retweets_count", -1); err != nil {
			return err
		}
	}

	return tx.WithContext(ctx).Delete(tweet).Error
}

// React flips the actor's stance on a tweet. One row per (user, tweet)
// holds the current stance; the three transitions are create, remove on
// repeat, and swap when the opposite stance is requested. Counters move
// with the row inside the same transaction. Returns whether a reaction
// is active after the call and the confirmation message.
func (s *Service) React(ctx context.Context, tweetID, actorID int64, stance int16) (bool, string, error) {
	if stance != models.StanceLike && stance != models.StanceDislike {
		return false, "", errs.Validation("stance", "unknown reaction stance")
	}

	var active bool
	var created bool
	var authorID int64
	err := s.repo.Transaction(ctx, func(tx *gorm.DB) error {
		tweet, err := s.loadForUpdate(ctx, tx, tweetID)
		if err != nil {
			return err
		}
		authorID = tweet.AuthorID

		var existing models.Reaction
		err = db.LockForUpdate(tx.WithContext(ctx)).
			Where("user_id = ? AND tweet_id = ?", actorID, tweet.ID).
			First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			reaction := &models.Reaction{
				UserID:    actorID,
				TweetID:   tweet.ID,
				Stance:    stance,
				CreatedAt: time.Now().UTC(),
			}
			if err := tx.WithContext(ctx).Create(reaction).Error; err != nil {
				return err
			}
			if err := s.tweets.AdjustCounter(ctx, tx, tweet.ID, stanceColumn(stance), 1); err != nil {
				return err
			}
			active, created = true, true
			return nil

		case err != nil:
			return err

		case existing.Stance == stance:
			if err := tx.WithContext(ctx).
				Where("user_id = ? AND tweet_id = ?", actorID, tweet.ID).
				Delete(&models.Reaction{}).Error; err != nil {
				return err
			}
			if err := s.tweets.AdjustCounter(ctx, tx, tweet.ID, stanceColumn(stance), -1); err != nil {
				return err
			}
			active = false
			return nil

		default:
			if err := tx.WithContext(ctx).Model(&models.Reaction{}).
				Where("user_id = ? AND tweet_id = ?", actorID, tweet.ID).
				UpdateColumn("stance", stance).Error; err != nil {
				return err
			}
			if err := s.tweets.AdjustCounter(ctx, tx, tweet.ID, stanceColumn(existing.Stance), -1); err != nil {
				return err
			}
			if err := s.tweets.AdjustCounter(ctx, tx, tweet.ID, stanceColumn(stance), 1); err != nil {
				return err
			}
			active, created = true, true
			return nil
		}
	})
	if err != nil {
		return false, "", err
	}

	if created && stance == models.StanceLike {
		s.dispatch.Dispatch(models.TweetRef(tweetID), authorID, actorID,
			models.NotifyTypeLike, nil)
	}
	return active, toggle.Message("Tweet", stanceList(stance), active), nil
}

// Like flips the actor's like on a tweet.
func (s *Service) Like(ctx context.Context, tweetID, actorID int64) (bool, string, error) {
	return s.React(ctx, tweetID, actorID, models.StanceLike)
}

// Dislike flips the actor's dislike on a tweet.
func (s *Service) Dislike(ctx context.Context, tweetID, actorID int64) (bool, string, error) {
	return s.React(ctx, tweetID, actorID, models.StanceDislike)
}

// Bookmark toggles the actor's bookmark on a tweet. Returns the new
// state and the confirmation message.
func (s *Service) Bookmark(ctx context.Context, tweetID, actorID int64) (bool, string, error) {
	var active bool
	err := s.repo.Transaction(ctx, func(tx *gorm.DB) error {
		tweet, err := s.tweets.GetByID(ctx, tweetID)
		if err != nil {
			return err
		}
		if tweet == nil {
			return errs.ErrNotFound
		}
		bookmark := &models.Bookmark{
			UserID:    actorID,
			TweetID:   tweetID,
			CreatedAt: time.Now().UTC(),
		}
		active, err = toggle.Flip(ctx, tx, bookmark, map[string]interface{}{
			"user_id":  actorID,
			"tweet_id": tweetID,
		})
		return err
	})
	if err != nil {
		return false, "", err
	}
	return active, toggle.Message("Tweet", "bookmarks", active), nil
}

// IsBookmarked reports whether the actor bookmarked the tweet.
func (s *Service) IsBookmarked(ctx context.Context, tweetID, actorID int64) (bool, error) {
	return toggle.IsActive[models.Bookmark](ctx, s.repo.DB(), actorID, map[string]interface{}{
		"user_id":  actorID,
		"tweet_id": tweetID,
	})
}

// Stance returns the actor's current reaction stance, zero when none.
func (s *Service) Stance(ctx context.Context, tweetID, actorID int64) (int16, error) {
	if actorID == 0 {
		return 0, nil
	}
	var reaction models.Reaction
	err := s.repo.DB().WithContext(ctx).
		Where("user_id = ? AND tweet_id = ?", actorID, tweetID).
		First(&reaction).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return reaction.Stance, nil
}

// RegisterView bumps the view counter. Views are best-effort and never
// deduplicated per viewer.
func (s *Service) RegisterView(ctx context.Context, tweetID int64) error {
	return s.tweets.AdjustCounter(ctx, s.repo.DB(), tweetID, "views_count", 1)
}

// Get loads a tweet, mapping absence to the not-found sentinel.
func (s *Service) Get(ctx context.Context, tweetID int64) (*models.Tweet, error) {
	tweet, err := s.tweets.GetByID(ctx, tweetID)
	if err != nil {
		return nil, err
	}
	if tweet == nil {
		return nil, errs.ErrNotFound
	}
	return tweet, nil
}

// cleanBody strips markup, unescapes entities, and enforces the length
// cap. A nil or whitespace-only body comes back null.
func (s *Service) cleanBody(raw *string) (sql.NullString, error) {
	if raw == nil {
		return sql.NullString{}, nil
	}
	cleaned := strings.TrimSpace(html.UnescapeString(s.sanitize.Sanitize(*raw)))
	if cleaned == "" {
		return sql.NullString{}, nil
	}
	if utf8.RuneCountInString(cleaned) > MaxBodyRunes {
		return sql.NullString{}, errs.Validation("body", "tweet body exceeds maximum length")
	}
	return sql.NullString{String: cleaned, Valid: true}, nil
}

// loadForUpdate locks and returns a tweet row inside tx.
func (s *Service) loadForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*models.Tweet, error) {
	var tweet models.Tweet
	err := db.LockForUpdate(tx.WithContext(ctx)).First(&tweet, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tweet, nil
}

func stanceColumn(stance int16) string {
	if stance == models.StanceDislike {
		return "dislikes_count"
	}
	return "likes_count"
}

func stanceList(stance int16) string {
	if stance == models.StanceDislike {
		return "dislikes"
	}
	return "likes"
}
