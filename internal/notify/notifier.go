// Package notify owns notification creation: the synchronous toggle path
// keyed on the identical-trigger composite, the asynchronous best-effort
// dispatcher, and the recipient-facing read side.
package notify

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/flocknet/flockmind/internal/db"
	"github.com/flocknet/flockmind/internal/models"
)

// Notifier is the manager-level notification path. Unlike the dispatcher,
// Notify toggles: repeating the identical trigger removes the existing
// notification instead of duplicating it.
type Notifier struct {
	repo   *db.Repository
	notifs *db.NotificationRepository
	logger *zap.Logger
}

// NewNotifier creates a new notifier
func NewNotifier(repo *db.Repository, logger *zap.Logger) *Notifier {
	return &Notifier{
		repo:   repo,
		notifs: db.NewNotificationRepository(repo),
		logger: logger,
	}
}

// Notify creates a notification for recipient, or removes the existing
// one when the identical (actor, recipient, group, type, subject) trigger
// repeats. Returns whether the notification now exists. The uniqueness of
// the trigger key is enforced here under a row lock, not by the storage
// layer — the async dispatcher is allowed to write duplicate rows.
func (n *Notifier) Notify(ctx context.Context, actorID, recipientID int64, group string, typ models.NotificationType, subject models.Ref) (bool, error) {
	var created bool
	err := n.repo.Transaction(ctx, func(tx *gorm.DB) error {
		var existing models.Notification
		err := db.LockForUpdate(tx.WithContext(ctx)).
			Where("performed_by_id = ? AND performed_on_id = ? AND group_name = ? AND type = ? AND subject_kind = ? AND subject_id = ?",
				actorID, recipientID, group, typ, subject.Kind, subject.ID).
			First(&existing).Error
		if err == nil {
			return tx.WithContext(ctx).Delete(&existing).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		notif := &models.Notification{
			ID:            uuid.New(),
			PerformedByID: sql.NullInt64{Int64: actorID, Valid: actorID != 0},
			PerformedOnID: recipientID,
			Type:          typ,
			Group:         group,
			SubjectKind:   subject.Kind,
			SubjectID:     subject.ID,
			CreatedAt:     time.Now().UTC(),
		}
		if err := tx.WithContext(ctx).Create(notif).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}

// List returns recipient notifications, newest first.
func (n *Notifier) List(ctx context.Context, recipientID int64, group string, since time.Time, limit int) ([]*models.Notification, error) {
	return n.notifs.ListForUser(ctx, recipientID, group, since, limit)
}

// CountUnread counts recipient notifications not yet marked read.
func (n *Notifier) CountUnread(ctx context.Context, recipientID int64, group string, since time.Time) (int64, error) {
	return n.notifs.CountUnread(ctx, recipientID, group, since)
}

// MarkRead stamps one notification read for its recipient.
func (n *Notifier) MarkRead(ctx context.Context, id uuid.UUID, recipientID int64) error {
	return n.notifs.MarkRead(ctx, id, recipientID)
}
