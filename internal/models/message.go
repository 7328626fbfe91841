package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Message is one direct message between two users.
type Message struct {
	ID        uuid.UUID     `gorm:"primaryKey;type:varchar(36);column:id"`
	AuthorID  sql.NullInt64 `gorm:"column:author_id"`
	ContactID sql.NullInt64 `gorm:"index:flock_messages_contact_idx;column:contact_id"`
	Body      string        `gorm:"type:text;not null;column:body"`
	Seen      bool          `gorm:"not null;default:false;column:seen"`
	CreatedAt time.Time     `gorm:"not null;index:flock_messages_created_idx,sort:desc;column:created_at"`
}

// TableName specifies the table name for Message
func (Message) TableName() string {
	return "flock_messages"
}

// Conversation groups messages between a fixed participant pair.
type Conversation struct {
	ID                   uuid.UUID     `gorm:"primaryKey;type:varchar(36);column:id"`
	StarterParticipantID sql.NullInt64 `gorm:"uniqueIndex:flock_conversations_ux1;column:starter_participant_id"`
	ContactParticipantID sql.NullInt64 `gorm:"uniqueIndex:flock_conversations_ux1;column:contact_participant_id"`
	UpdatedAt            time.Time     `gorm:"not null;index:flock_conversations_updated_idx,sort:desc;column:updated_at"`
}

// TableName specifies the table name for Conversation
func (Conversation) TableName() string {
	return "flock_conversations"
}

// ConversationMessage attaches a message to a conversation.
type ConversationMessage struct {
	ConversationID uuid.UUID `gorm:"primaryKey;type:varchar(36);column:conversation_id"`
	MessageID      uuid.UUID `gorm:"primaryKey;type:varchar(36);column:message_id"`
	CreatedAt      time.Time `gorm:"not null;column:created_at"`
}

// TableName specifies the table name for ConversationMessage
func (ConversationMessage) TableName() string {
	return "flock_conversation_messages"
}
