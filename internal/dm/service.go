// Package dm implements direct messages: block-checked sends into a
// per-pair conversation and the seen flag for recipients.
package dm

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/flocknet/flockmind/internal/db"
	"github.com/flocknet/flockmind/internal/errs"
	"github.com/flocknet/flockmind/internal/models"
	"github.com/flocknet/flockmind/internal/notify"
)

// Service owns direct message sends and conversation reads.
type Service struct {
	repo     *db.Repository
	users    *db.UserRepository
	dispatch *notify.Dispatcher
	logger   *zap.Logger
}

// NewService creates a new direct message service
func NewService(repo *db.Repository, dispatch *notify.Dispatcher, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		users:    db.NewUserRepository(repo),
		dispatch: dispatch,
		logger:   logger,
	}
}

// Send delivers one message from author to contact. Sends are rejected
// when either side blocks the other. The conversation row for the pair
// is created on first contact; a MESSAGE notification is enqueued after
// commit.
func (s *Service) Send(ctx context.Context, authorID, contactID int64, body string) (*models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, errs.Validation("body", "message body is required")
	}
	if authorID == contactID {
		return nil, errs.Validation("contact", "cannot message yourself")
	}

	contact, err := s.users.GetByID(ctx, contactID)
	if err != nil {
		return nil, err
	}
	if contact == nil {
		return nil, errs.ErrNotFound
	}

	blocked, err := s.pairBlocked(ctx, authorID, contactID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, errs.Validation("contact", "messaging is blocked between these users")
	}

	now := time.Now().UTC()
	message := &models.Message{
		ID:        uuid.New(),
		AuthorID:  sql.NullInt64{Int64: authorID, Valid: true},
		ContactID: sql.NullInt64{Int64: contactID, Valid: true},
		Body:      body,
		CreatedAt: now,
	}

	err = s.repo.Transaction(ctx, func(tx *gorm.DB) error {
		conversation, err := s.ensureConversation(ctx, tx, authorID, contactID, now)
		if err != nil {
			return err
		}
		if err := tx.WithContext(ctx).Create(message).Error; err != nil {
			return err
		}
		join := &models.ConversationMessage{
			ConversationID: conversation.ID,
			MessageID:      message.ID,
			CreatedAt:      now,
		}
		if err := tx.WithContext(ctx).Create(join).Error; err != nil {
			return err
		}
		return tx.WithContext(ctx).Model(conversation).
			UpdateColumn("updated_at", now).Error
	})
	if err != nil {
		return nil, err
	}

	s.dispatch.Dispatch(models.MessageRef(message.ID), contactID, authorID,
		models.NotifyTypeMessage, nil)

	return message, nil
}

// MarkSeen flags a message seen by its recipient.
func (s *Service) MarkSeen(ctx context.Context, messageID uuid.UUID, actorID int64) error {
	res := s.repo.DB().WithContext(ctx).Model(&models.Message{}).
		Where("id = ? AND contact_id = ? AND seen = ?", messageID, actorID, false).
		UpdateColumn("seen", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Messages lists a conversation's messages, newest first, for one of its
// participants.
func (s *Service) Messages(ctx context.Context, conversationID uuid.UUID, actorID int64, limit int) ([]*models.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	var conversation models.Conversation
	err := s.repo.DB().WithContext(ctx).First(&conversation, "id = ?", conversationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if conversation.StarterParticipantID.Int64 != actorID && conversation.ContactParticipantID.Int64 != actorID {
		return nil, errs.ErrNotFound
	}

	var ids []uuid.UUID
	err = s.repo.DB().WithContext(ctx).Model(&models.ConversationMessage{}).
		Where("conversation_id = ?", conversationID).
		Pluck("message_id", &ids).Error
	if err != nil {
		return nil, err
	}

	var messages []*models.Message
	err = s.repo.DB().WithContext(ctx).
		Where("id IN ?", ids).
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

// Conversations lists the actor's conversations, most recently active
// first.
func (s *Service) Conversations(ctx context.Context, actorID int64, limit int) ([]*models.Conversation, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	var conversations []*models.Conversation
	err := s.repo.DB().WithContext(ctx).
		Where("starter_participant_id = ? OR contact_participant_id = ?", actorID, actorID).
		Order("updated_at DESC").
		Limit(limit).
		Find(&conversations).Error
	return conversations, err
}

// ensureConversation finds or creates the conversation for a participant
// pair. The pair is looked up in both orderings so each pair has exactly
// one conversation regardless of who wrote first.
func (s *Service) ensureConversation(ctx context.Context, tx *gorm.DB, authorID, contactID int64, now time.Time) (*models.Conversation, error) {
	var conversation models.Conversation
	err := tx.WithContext(ctx).
		Where("(starter_participant_id = ? AND contact_participant_id = ?) OR (starter_participant_id = ? AND contact_participant_id = ?)",
			authorID, contactID, contactID, authorID).
		First(&conversation).Error
	if err == nil {
		return &conversation, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	conversation = models.Conversation{
		ID:                   uuid.New(),
		StarterParticipantID: sql.NullInt64{Int64: authorID, Valid: true},
		ContactParticipantID: sql.NullInt64{Int64: contactID, Valid: true},
		UpdatedAt:            now,
	}
	if err := tx.WithContext(ctx).Create(&conversation).Error; err != nil {
		return nil, err
	}
	return &conversation, nil
}

// pairBlocked reports whether either participant blocks the other.
func (s *Service) pairBlocked(ctx context.Context, a, b int64) (bool, error) {
	var count int64
	err := s.repo.DB().WithContext(ctx).Model(&models.BlockedUser{}).
		Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)", a, b, b, a).
		Count(&count).Error
	return count > 0, err
}
