package db

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"

	"github.com/flocknet/flockmind/internal/models"
)

// Repository provides database access methods
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// DB exposes the underlying gorm handle for transactional scoping.
func (r *Repository) DB() *gorm.DB {
	return r.db
}

// Transaction runs fn inside one all-or-nothing unit of work.
func (r *Repository) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

// Resolve loads the concrete entity a polymorphic reference points at.
// It returns (nil, nil) when the row no longer exists. Row-id kinds get
// their id parsed so the query parameter matches the column type.
func (r *Repository) Resolve(ctx context.Context, ref models.Ref) (interface{}, error) {
	load := func(dest interface{}, id interface{}) (interface{}, error) {
		if err := r.db.WithContext(ctx).Where("id = ?", id).First(dest).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return dest, nil
	}
	loadRowID := func(dest interface{}) (interface{}, error) {
		id, err := ParseEntityID(ref)
		if err != nil {
			return nil, err
		}
		return load(dest, id)
	}

	switch ref.Kind {
	case models.KindTweet:
		return loadRowID(&models.Tweet{})
	case models.KindMention:
		return loadRowID(&models.Mention{})
	case models.KindUser:
		return loadRowID(&models.User{})
	case models.KindMessage:
		return load(&models.Message{}, ref.ID)
	case models.KindVote:
		return load(&models.Vote{}, ref.ID)
	case models.KindChoice:
		return load(&models.Choice{}, ref.ID)
	default:
		return nil, fmt.Errorf("unknown content kind %q", ref.Kind)
	}
}

// UserRepository provides user-related database operations
type UserRepository struct {
	*Repository
}

// NewUserRepository creates a new user repository
func NewUserRepository(repo *Repository) *UserRepository {
	return &UserRepository{Repository: repo}
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetByUsernames retrieves multiple users by usernames
func (r *UserRepository) GetByUsernames(ctx context.Context, usernames []string) ([]*models.User, error) {
	var users []*models.User
	if err := r.db.WithContext(ctx).Where("username IN ?", usernames).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// AdjustFollowCounts applies atomic deltas to the denormalized follower
// and following counters of a user.
func (r *UserRepository) AdjustFollowCounts(ctx context.Context, tx *gorm.DB, userID int64, followersDelta, followingDelta int64) error {
	updates := map[string]interface{}{}
	if followersDelta != 0 {
		updates["followers_count"] = gorm.Expr("followers_count + ?", followersDelta)
	}
	if followingDelta != 0 {
		updates["following_count"] = gorm.Expr("following_count + ?", followingDelta)
	}
	if len(updates) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).UpdateColumns(updates).Error
}

// ParseEntityID converts a polymorphic reference id back to a row id.
func ParseEntityID(ref models.Ref) (int64, error) {
	id, err := strconv.ParseInt(ref.ID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s reference id %q: %w", ref.Kind, ref.ID, err)
	}
	return id, nil
}
