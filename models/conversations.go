package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation kinds. Service conversations are opened by the service-matching
// flow and carry system messages with a visibility allow-list.
const (
	ConversationDirect  = "direct"
	ConversationGroup   = "group"
	ConversationService = "service"
)

type Conversation struct {
	ID           uuid.UUID                 `gorm:"type:uuid;primaryKey" json:"id"`
	Kind         string                    `gorm:"not null;default:direct" json:"kind"`
	Participants []ConversationParticipant `gorm:"foreignKey:ConversationID" json:"participants"`

	// Chat options. Each one is a single-field update from the pipeline.
	Blocked           bool      `gorm:"default:false" json:"blocked"`
	BlockedBy         uuid.UUID `gorm:"type:uuid" json:"blocked_by,omitempty"`
	MessageTimer      int       `gorm:"default:0" json:"message_timer"` // seconds, 0 = disabled
	ScreenshotBlocked bool      `gorm:"default:false" json:"screenshot_blocked"`

	// Public key of the peer for encrypted direct chats. Empty means plaintext.
	RecipientPublicKey string `json:"recipient_public_key,omitempty"`

	// Group metadata. Unset for direct conversations.
	GroupName     string    `json:"group_name,omitempty"`
	GroupPhotoURL string    `json:"group_photo_url,omitempty"`
	CreatorID     uuid.UUID `gorm:"type:uuid" json:"creator_id,omitempty"`

	// Last message preview, denormalized for conversation lists.
	LastMessage   string    `json:"last_message"`
	LastSenderID  uuid.UUID `gorm:"type:uuid" json:"last_sender_id,omitempty"`
	LastMessageAt time.Time `json:"last_message_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConversationParticipant is the membership row. The unread counter lives here
// so every participant has their own and increments stay atomic adds.
type ConversationParticipant struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_conv_user" json:"conversation_id"`
	UserID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_conv_user" json:"user_id"`
	UnreadCount    int       `gorm:"default:0" json:"unread_count"`
	IsAdmin        bool      `gorm:"default:false" json:"is_admin"`
	JoinedAt       time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

// ParticipantIDs returns the participant user ids in join order.
func (c *Conversation) ParticipantIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(c.Participants))
	for _, p := range c.Participants {
		ids = append(ids, p.UserID)
	}
	return ids
}

// HasParticipant reports whether userID belongs to the conversation.
func (c *Conversation) HasParticipant(userID uuid.UUID) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// IsAdmin reports whether userID is a group admin or the group creator.
func (c *Conversation) IsAdmin(userID uuid.UUID) bool {
	if c.CreatorID == userID {
		return true
	}
	for _, p := range c.Participants {
		if p.UserID == userID && p.IsAdmin {
			return true
		}
	}
	return false
}

// ChatOptions is the denormalized projection of conversation settings the UI
// consumes. Rebuilt whenever the conversation row changes.
type ChatOptions struct {
	Blocked           bool                 `json:"blocked"`
	BlockedBy         uuid.UUID            `json:"blocked_by,omitempty"`
	MessageTimer      int                  `json:"message_timer"`
	ScreenshotBlocked bool                 `json:"screenshot_blocked"`
	GroupName         string               `json:"group_name,omitempty"`
	GroupPhotoURL     string               `json:"group_photo_url,omitempty"`
	CreatorID         uuid.UUID            `json:"creator_id,omitempty"`
	AdminIDs          []uuid.UUID          `json:"admin_ids,omitempty"`
	Members           map[uuid.UUID]Member `json:"members"`
}

// Member is the display cache entry for one participant.
type Member struct {
	Fullname     string `json:"fullname"`
	ThumbNailURL string `json:"thumbnail_url,omitempty"`
}

// Options projects the conversation into its ChatOptions view. The member
// display cache is filled in by the caller from resolved users.
func (c *Conversation) Options(members map[uuid.UUID]Member) ChatOptions {
	opts := ChatOptions{
		Blocked:           c.Blocked,
		BlockedBy:         c.BlockedBy,
		MessageTimer:      c.MessageTimer,
		ScreenshotBlocked: c.ScreenshotBlocked,
		GroupName:         c.GroupName,
		GroupPhotoURL:     c.GroupPhotoURL,
		CreatorID:         c.CreatorID,
		Members:           members,
	}
	for _, p := range c.Participants {
		if p.IsAdmin {
			opts.AdminIDs = append(opts.AdminIDs, p.UserID)
		}
	}
	return opts
}
