package models

import "github.com/google/uuid"

// Notification represents a message notification shown to a user. One row per
// user and conversation: repeated messages coalesce into it instead of
// stacking.
type Notification struct {
	Model
	UserID         uuid.UUID `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_user_conv_note"`
	ConversationID uuid.UUID `json:"conversation_id" gorm:"type:uuid;not null;uniqueIndex:idx_user_conv_note"`
	SenderName     string    `json:"sender_name"`
	Preview        string    `json:"preview"`
	IsRead         bool      `json:"is_read" gorm:"default:false"`
}

// DeviceToken is a registered push target. Registration is idempotent on the
// token value.
type DeviceToken struct {
	Model
	UserID uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	Token  string    `json:"token" gorm:"uniqueIndex;not null"`
}
