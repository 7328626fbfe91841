// Package social implements the directed user relations: follow, mute,
// and block. All three are toggles over uniquely-keyed edge rows; follow
// additionally maintains the denormalized follower counters.
package social

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/flocknet/flockmind/internal/cache"
	"github.com/flocknet/flockmind/internal/db"
	"github.com/flocknet/flockmind/internal/errs"
	"github.com/flocknet/flockmind/internal/models"
	"github.com/flocknet/flockmind/internal/toggle"
)

// Relation flag names used in cache keys.
const (
	relationFollow = "follow"
	relationMute   = "mute"
	relationBlock  = "block"
)

// relationTTL bounds staleness when an invalidation is lost.
const relationTTL = 10 * time.Minute

// Service owns the user relation toggles and their cached reads.
type Service struct {
	repo   *db.Repository
	users  *db.UserRepository
	cache  *cache.Cache
	logger *zap.Logger
}

// NewService creates a new social relations service
func NewService(repo *db.Repository, c *cache.Cache, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		users:  db.NewUserRepository(repo),
		cache:  c,
		logger: logger,
	}
}

// Follow toggles actor following target and keeps both users' follower
// counters in step with the edge. Returns the new state and the
// confirmation message.
func (s *Service) Follow(ctx context.Context, actorID, targetID int64) (bool, string, error) {
	target, err := s.validatePair(ctx, actorID, targetID)
	if err != nil {
		return false, "", err
	}

	var active bool
	err = s.repo.Transaction(ctx, func(tx *gorm.DB) error {
		edge := &models.Fellowship{
			FollowerID:  actorID,
			FollowingID: targetID,
			CreatedAt:   time.Now().UTC(),
		}
		active, err = toggle.Flip(ctx, tx, edge, map[string]interface{}{
			"follower_id":  actorID,
			"following_id": targetID,
		})
		if err != nil {
			return err
		}

		delta := int64(1)
		if !active {
			delta = -1
		}
		if err := s.users.AdjustFollowCounts(ctx, tx, targetID, delta, 0); err != nil {
			return err
		}
		return s.users.AdjustFollowCounts(ctx, tx, actorID, 0, delta)
	})
	if err != nil {
		return false, "", err
	}

	s.invalidate(relationFollow, actorID, targetID)
	return active, toggle.Message(displayName(target), "following", active), nil
}

// Mute toggles actor muting target. Muted actors are suppressed from the
// actor's notification fan-out.
func (s *Service) Mute(ctx context.Context, actorID, targetID int64) (bool, string, error) {
	target, err := s.validatePair(ctx, actorID, targetID)
	if err != nil {
		return false, "", err
	}

	var active bool
	err = s.repo.Transaction(ctx, func(tx *gorm.DB) error {
		edge := &models.MutedUser{
			MuterID:   actorID,
			MutedID:   targetID,
			CreatedAt: time.Now().UTC(),
		}
		active, err = toggle.Flip(ctx, tx, edge, map[string]interface{}{
			"muter_id": actorID,
			"muted_id": targetID,
		})
		return err
	})
	if err != nil {
		return false, "", err
	}

	s.invalidate(relationMute, actorID, targetID)
	return active, toggle.Message(displayName(target), "muted", active), nil
}

// Block toggles actor blocking target. Blocked users cannot open direct
// message conversations with the blocker.
func (s *Service) Block(ctx context.Context, actorID, targetID int64) (bool, string, error) {
	target, err := s.validatePair(ctx, actorID, targetID)
	if err != nil {
		return false, "", err
	}

	var active bool
	err = s.repo.Transaction(ctx, func(tx *gorm.DB) error {
		edge := &models.BlockedUser{
			BlockerID: actorID,
			BlockedID: targetID,
			CreatedAt: time.Now().UTC(),
		}
		active, err = toggle.Flip(ctx, tx, edge, map[string]interface{}{
			"blocker_id": actorID,
			"blocked_id": targetID,
		})
		return err
	})
	if err != nil {
		return false, "", err
	}

	s.invalidate(relationBlock, actorID, targetID)
	return active, toggle.Message(displayName(target), "blocked", active), nil
}

// IsFollowing reports whether actor follows target.
func (s *Service) IsFollowing(ctx context.Context, actorID, targetID int64) (bool, error) {
	return s.cachedRelation(ctx, relationFollow, actorID, targetID, func() (bool, error) {
		return toggle.IsActive[models.Fellowship](ctx, s.repo.DB(), actorID, map[string]interface{}{
			"follower_id":  actorID,
			"following_id": targetID,
		})
	})
}

// IsMuted reports whether actor muted target.
func (s *Service) IsMuted(ctx context.Context, actorID, targetID int64) (bool, error) {
	return s.cachedRelation(ctx, relationMute, actorID, targetID, func() (bool, error) {
		return toggle.IsActive[models.MutedUser](ctx, s.repo.DB(), actorID, map[string]interface{}{
			"muter_id": actorID,
			"muted_id": targetID,
		})
	})
}

// IsBlocked reports whether actor blocked target.
func (s *Service) IsBlocked(ctx context.Context, actorID, targetID int64) (bool, error) {
	return s.cachedRelation(ctx, relationBlock, actorID, targetID, func() (bool, error) {
		return toggle.IsActive[models.BlockedUser](ctx, s.repo.DB(), actorID, map[string]interface{}{
			"blocker_id": actorID,
			"blocked_id": targetID,
		})
	})
}

// Followers lists ids of users following the target.
func (s *Service) Followers(ctx context.Context, targetID int64) ([]int64, error) {
	var ids []int64
	err := s.repo.DB().WithContext(ctx).Model(&models.Fellowship{}).
		Where("following_id = ?", targetID).
		Pluck("follower_id", &ids).Error
	return ids, err
}

// Following lists ids of users the actor follows.
func (s *Service) Following(ctx context.Context, actorID int64) ([]int64, error) {
	var ids []int64
	err := s.repo.DB().WithContext(ctx).Model(&models.Fellowship{}).
		Where("follower_id = ?", actorID).
		Pluck("following_id", &ids).Error
	return ids, err
}

// cachedRelation is the read-through path for one directed flag. Cache
// failures fall back to the database.
func (s *Service) cachedRelation(ctx context.Context, relation string, actorID, targetID int64, load func() (bool, error)) (bool, error) {
	if actorID == 0 {
		return false, nil
	}

	key := cache.RelationKey(relation, actorID, targetID)
	if val, err := s.cache.Get(key); err == nil {
		return val == "1", nil
	} else if !errors.Is(err, cache.ErrCacheMiss) && !errors.Is(err, cache.ErrCacheDisabled) {
		s.logger.Warn("Relation cache read failed", zap.String("key", key), zap.Error(err))
	}

	active, err := load()
	if err != nil {
		return false, err
	}

	val := "0"
	if active {
		val = "1"
	}
	if err := s.cache.Set(key, val, relationTTL); err != nil && !errors.Is(err, cache.ErrCacheDisabled) {
		s.logger.Warn("Relation cache write failed", zap.String("key", key), zap.Error(err))
	}
	return active, nil
}

// invalidate drops the cached flag after a toggle.
func (s *Service) invalidate(relation string, actorID, targetID int64) {
	key := cache.RelationKey(relation, actorID, targetID)
	if err := s.cache.Delete(key); err != nil && !errors.Is(err, cache.ErrCacheDisabled) {
		s.logger.Warn("Relation cache invalidation failed", zap.String("key", key), zap.Error(err))
	}
}

// validatePair rejects self-directed relations and loads the target.
func (s *Service) validatePair(ctx context.Context, actorID, targetID int64) (*models.User, error) {
	if actorID == targetID {
		return nil, errs.Validation("target", "cannot target yourself")
	}
	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, errs.ErrNotFound
	}
	return target, nil
}

func displayName(u *models.User) string {
	if u.DisplayName.Valid && u.DisplayName.String != "" {
		return u.DisplayName.String
	}
	return u.Username
}
