package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/flocknet/flockmind/internal/errs"
	"github.com/flocknet/flockmind/internal/models"
)

// NotificationRepository provides notification-related database operations
type NotificationRepository struct {
	*Repository
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(repo *Repository) *NotificationRepository {
	return &NotificationRepository{Repository: repo}
}

// Create creates a new notification
func (r *NotificationRepository) Create(ctx context.Context, tx *gorm.DB, notif *models.Notification) error {
	if notif.ID == uuid.Nil {
		notif.ID = uuid.New()
	}
	if notif.CreatedAt.IsZero() {
		notif.CreatedAt = time.Now().UTC()
	}
	return tx.WithContext(ctx).Create(notif).Error
}

// ListForUser lists a recipient's notifications in one group, newest
// first. A non-zero since narrows the window.
func (r *NotificationRepository) ListForUser(ctx context.Context, userID int64, group string, since time.Time, limit int) ([]*models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	q := r.db.WithContext(ctx).
		Where("performed_on_id = ? AND group_name = ?", userID, group)
	if !since.IsZero() {
		q = q.Where("created_at >= ?", since)
	}
	var notifs []*models.Notification
	err := q.Order("created_at DESC").Limit(limit).Find(&notifs).Error
	return notifs, err
}

// CountUnread counts a recipient's notifications with read_at still null.
func (r *NotificationRepository) CountUnread(ctx context.Context, userID int64, group string, since time.Time) (int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("performed_on_id = ? AND group_name = ? AND read_at IS NULL", userID, group)
	if !since.IsZero() {
		q = q.Where("created_at >= ?", since)
	}
	var count int64
	err := q.Count(&count).Error
	return count, err
}

// MarkRead stamps read_at on a notification owned by userID. It fails with
// a not-found signal when the row is absent, foreign, or already read.
// Row-level locking prevents double-processing under concurrent calls.
func (r *NotificationRepository) MarkRead(ctx context.Context, id uuid.UUID, userID int64) error {
	return r.Transaction(ctx, func(tx *gorm.DB) error {
		var notif models.Notification
		err := LockForUpdate(tx.WithContext(ctx)).
			Where("id = ? AND performed_on_id = ? AND read_at IS NULL", id, userID).
			First(&notif).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.ErrNotFound
			}
			return err
		}
		return tx.WithContext(ctx).Model(&notif).
			UpdateColumn("read_at", time.Now().UTC()).Error
	})
}

// DeleteBySubjects removes notifications whose polymorphic subject matches
// one of the given ids. Used when a tweet edit purges its mention edges.
func (r *NotificationRepository) DeleteBySubjects(ctx context.Context, tx *gorm.DB, kind models.ContentKind, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return tx.WithContext(ctx).
		Where("subject_kind = ? AND subject_id IN ?", kind, ids).
		Delete(&models.Notification{}).Error
}
