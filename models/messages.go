package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Message kinds.
const (
	MessageText    = "text"
	MessageImage   = "image"
	MessageVideo   = "video"
	MessageAudio   = "audio"
	MessageFile    = "file"
	MessageSystem  = "system"
	MessageService = "service_request"
)

// Message content is immutable once created. Only the delivery, read and
// tombstone sets change afterwards; delete-for-everyone removes the row.
type Message struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null;index" json:"conversation_id"`
	SenderID       uuid.UUID `gorm:"type:uuid;not null" json:"sender_id"`
	Kind           string    `gorm:"not null;default:text" json:"kind"`

	// Body holds the plaintext. For encrypted messages Body is empty and the
	// ciphertext fields carry base64 payloads.
	Body            string `json:"body,omitempty"`
	Ciphertext      string `json:"ciphertext,omitempty"`
	Nonce           string `json:"nonce,omitempty"`
	SenderPublicKey string `json:"sender_public_key,omitempty"`

	// Attachment metadata, set for image/video/audio/file kinds.
	AttachmentURL      string  `json:"attachment_url,omitempty"`
	AttachmentName     string  `json:"attachment_name,omitempty"`
	AttachmentSize     int64   `json:"attachment_size,omitempty"`
	AttachmentMime     string  `json:"attachment_mime,omitempty"`
	AttachmentDuration float64 `json:"attachment_duration,omitempty"` // seconds, audio/video

	// VisibleTo restricts service/system messages to an allow-list of user
	// ids, serialized as JSON. Empty means visible to all participants.
	VisibleTo string `gorm:"type:text" json:"-"`

	// CreatedAt is the authoritative ordering key, assigned by the database.
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`

	Deliveries []MessageDelivery  `gorm:"foreignKey:MessageID" json:"deliveries"`
	Reads      []MessageRead      `gorm:"foreignKey:MessageID" json:"reads"`
	Tombstones []MessageTombstone `gorm:"foreignKey:MessageID" json:"-"`
}

// MessageDelivery records that a participant's device received the message.
// The composite unique index makes re-marking a no-op.
type MessageDelivery struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	MessageID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_msg_delivered" json:"message_id"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_msg_delivered" json:"user_id"`
	DeliveredAt time.Time `gorm:"autoCreateTime" json:"delivered_at"`
}

// MessageRead records that a participant opened the message.
type MessageRead struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	MessageID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_msg_read" json:"message_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_msg_read" json:"user_id"`
	ReadAt    time.Time `gorm:"autoCreateTime" json:"read_at"`
}

// MessageTombstone hides a message from one participant without affecting
// the others ("delete for me").
type MessageTombstone struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	MessageID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_msg_tombstone" json:"message_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_msg_tombstone" json:"user_id"`
	DeletedAt time.Time `gorm:"autoCreateTime" json:"deleted_at"`
}

// IsEncrypted reports whether the message carries ciphertext.
func (m *Message) IsEncrypted() bool {
	return m.Ciphertext != ""
}

// HasAttachment reports whether the message carries an attachment.
func (m *Message) HasAttachment() bool {
	return m.AttachmentURL != ""
}

// DeliveredTo reports whether userID is in the delivery set.
func (m *Message) DeliveredTo(userID uuid.UUID) bool {
	for _, d := range m.Deliveries {
		if d.UserID == userID {
			return true
		}
	}
	return false
}

// ReadBy reports whether userID is in the read set.
func (m *Message) ReadBy(userID uuid.UUID) bool {
	for _, r := range m.Reads {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

// DeletedFor reports whether userID tombstoned the message.
func (m *Message) DeletedFor(userID uuid.UUID) bool {
	for _, t := range m.Tombstones {
		if t.UserID == userID {
			return true
		}
	}
	return false
}

// VisibleToUser honors the allow-list on service/system messages.
func (m *Message) VisibleToUser(userID uuid.UUID) bool {
	if m.VisibleTo == "" {
		return true
	}
	var ids []uuid.UUID
	if err := json.Unmarshal([]byte(m.VisibleTo), &ids); err != nil {
		return true
	}
	for _, id := range ids {
		if id == userID {
			return true
		}
	}
	return false
}

// SetVisibleTo serializes the allow-list onto the message.
func (m *Message) SetVisibleTo(ids []uuid.UUID) error {
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	m.VisibleTo = string(raw)
	return nil
}

// Preview returns the text used for conversation previews and notifications.
// Encrypted bodies never leak into previews.
func (m *Message) Preview() string {
	switch m.Kind {
	case MessageImage:
		return "📷 Photo"
	case MessageVideo:
		return "🎥 Video"
	case MessageAudio:
		return "🎤 Voice note"
	case MessageFile:
		return "📎 " + m.AttachmentName
	default:
		if m.IsEncrypted() {
			return "New message"
		}
		return m.Body
	}
}
