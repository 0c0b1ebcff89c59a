package db

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/techagentng/achat/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReceiptBatch carries every receipt mutation a feed update produced for one
// user, applied in a single transaction. Deliver and Read are set-union
// operations: re-applying them is a no-op, so repeated snapshot delivery of
// the same message cannot double-acknowledge.
type ReceiptBatch struct {
	Deliver []uuid.UUID
	Read    []uuid.UUID
}

type ChatRepository interface {
	CreateConversation(conv *models.Conversation) error
	GetConversation(id uuid.UUID) (*models.Conversation, error)
	ListConversations(userID uuid.UUID) ([]models.Conversation, error)
	GetParticipant(convID, userID uuid.UUID) (*models.ConversationParticipant, error)

	SaveMessage(msg *models.Message, preview string) error
	GetMessage(id uuid.UUID) (*models.Message, error)
	GetRecentMessages(convID, userID uuid.UUID, limit int) ([]models.Message, error)

	ApplyReceipts(convID, userID uuid.UUID, batch ReceiptBatch) ([]uuid.UUID, error)
	MarkConversationRead(convID, userID uuid.UUID) error
	ResetUnread(convID, userID uuid.UUID) error

	AddTombstone(messageID, userID uuid.UUID) error
	DeleteMessageForEveryone(messageID uuid.UUID) error

	SetBlocked(convID uuid.UUID, blocked bool, by uuid.UUID) error
	SetMessageTimer(convID uuid.UUID, seconds int) error
	SetScreenshotBlocked(convID uuid.UUID, blocked bool) error
}

type chatRepo struct {
	DB *gorm.DB
}

func NewChatRepo(db *GormDB) ChatRepository {
	return &chatRepo{db.DB}
}

func (c *chatRepo) CreateConversation(conv *models.Conversation) error {
	if conv.ID == uuid.Nil {
		conv.ID = uuid.New()
	}
	if err := c.DB.Create(conv).Error; err != nil {
		return errors.Wrap(err, "failed to create conversation")
	}
	return nil
}

func (c *chatRepo) GetConversation(id uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	err := c.DB.Preload("Participants").First(&conv, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (c *chatRepo) ListConversations(userID uuid.UUID) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := c.DB.Preload("Participants").
		Joins("JOIN conversation_participants cp ON cp.conversation_id = conversations.id").
		Where("cp.user_id = ?", userID).
		Order("conversations.last_message_at DESC").
		Find(&convs).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list conversations")
	}
	return convs, nil
}

func (c *chatRepo) GetParticipant(convID, userID uuid.UUID) (*models.ConversationParticipant, error) {
	var p models.ConversationParticipant
	err := c.DB.Where("conversation_id = ? AND user_id = ?", convID, userID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SaveMessage persists a new message and, in the same transaction, updates
// the conversation preview, bumps every other participant's unread counter
// with an atomic add, and records the sender's own delivery receipt.
func (c *chatRepo) SaveMessage(msg *models.Message, preview string) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	return c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return errors.Wrap(err, "failed to save message")
		}

		err := tx.Model(&models.Conversation{}).
			Where("id = ?", msg.ConversationID).
			Updates(map[string]interface{}{
				"last_message":    preview,
				"last_sender_id":  msg.SenderID,
				"last_message_at": msg.CreatedAt,
			}).Error
		if err != nil {
			return errors.Wrap(err, "failed to update conversation preview")
		}

		err = tx.Model(&models.ConversationParticipant{}).
			Where("conversation_id = ? AND user_id <> ?", msg.ConversationID, msg.SenderID).
			Update("unread_count", gorm.Expr("unread_count + ?", 1)).Error
		if err != nil {
			return errors.Wrap(err, "failed to increment unread counters")
		}

		delivery := models.MessageDelivery{MessageID: msg.ID, UserID: msg.SenderID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&delivery).Error; err != nil {
			return errors.Wrap(err, "failed to record sender delivery")
		}
		return nil
	})
}

func (c *chatRepo) GetMessage(id uuid.UUID) (*models.Message, error) {
	var msg models.Message
	err := c.DB.Preload("Deliveries").Preload("Reads").Preload("Tombstones").
		First(&msg, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// GetRecentMessages returns the newest messages first, skipping messages the
// user tombstoned. Callers reverse the slice for display.
func (c *chatRepo) GetRecentMessages(convID, userID uuid.UUID, limit int) ([]models.Message, error) {
	var msgs []models.Message
	err := c.DB.Preload("Deliveries").Preload("Reads").Preload("Tombstones").
		Where("conversation_id = ?", convID).
		Where("id NOT IN (?)", c.DB.Model(&models.MessageTombstone{}).
			Select("message_id").Where("user_id = ?", userID)).
		Order("created_at DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to load messages")
	}
	return msgs, nil
}

// ApplyReceipts records delivery and read receipts and reports which delivery
// rows were newly inserted. Callers key notification decisions on the newly
// delivered set, which makes them idempotent across repeated feed updates.
func (c *chatRepo) ApplyReceipts(convID, userID uuid.UUID, batch ReceiptBatch) ([]uuid.UUID, error) {
	var newlyDelivered []uuid.UUID
	err := c.DB.Transaction(func(tx *gorm.DB) error {
		for _, msgID := range batch.Deliver {
			delivery := models.MessageDelivery{MessageID: msgID, UserID: userID}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&delivery)
			if res.Error != nil {
				return errors.Wrap(res.Error, "failed to record delivery")
			}
			if res.RowsAffected > 0 {
				newlyDelivered = append(newlyDelivered, msgID)
			}
		}

		for _, msgID := range batch.Read {
			read := models.MessageRead{MessageID: msgID, UserID: userID}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&read).Error; err != nil {
				return errors.Wrap(err, "failed to record read receipt")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return newlyDelivered, nil
}

// ResetUnread zeroes the user's unread counter without touching read
// receipts. Used on the hot path while the user is viewing the conversation.
func (c *chatRepo) ResetUnread(convID, userID uuid.UUID) error {
	err := c.DB.Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", convID, userID).
		Update("unread_count", 0).Error
	if err != nil {
		return errors.Wrap(err, "failed to reset unread counter")
	}
	return nil
}

// MarkConversationRead resets the unread counter to zero and adds the user to
// the read set of every message from other senders, all in one transaction.
func (c *chatRepo) MarkConversationRead(convID, userID uuid.UUID) error {
	return c.DB.Transaction(func(tx *gorm.DB) error {
		var unreadIDs []uuid.UUID
		err := tx.Model(&models.Message{}).
			Where("conversation_id = ? AND sender_id <> ?", convID, userID).
			Where("id NOT IN (?)", tx.Model(&models.MessageRead{}).
				Select("message_id").Where("user_id = ?", userID)).
			Pluck("id", &unreadIDs).Error
		if err != nil {
			return errors.Wrap(err, "failed to find unread messages")
		}

		for _, msgID := range unreadIDs {
			read := models.MessageRead{MessageID: msgID, UserID: userID}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&read).Error; err != nil {
				return errors.Wrap(err, "failed to record read receipt")
			}
		}

		err = tx.Model(&models.ConversationParticipant{}).
			Where("conversation_id = ? AND user_id = ?", convID, userID).
			Update("unread_count", 0).Error
		if err != nil {
			return errors.Wrap(err, "failed to reset unread counter")
		}
		return nil
	})
}

func (c *chatRepo) AddTombstone(messageID, userID uuid.UUID) error {
	tombstone := models.MessageTombstone{MessageID: messageID, UserID: userID}
	err := c.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&tombstone).Error
	if err != nil {
		return errors.Wrap(err, "failed to tombstone message")
	}
	return nil
}

func (c *chatRepo) DeleteMessageForEveryone(messageID uuid.UUID) error {
	return c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("message_id = ?", messageID).Delete(&models.MessageDelivery{}).Error; err != nil {
			return errors.Wrap(err, "failed to delete delivery receipts")
		}
		if err := tx.Where("message_id = ?", messageID).Delete(&models.MessageRead{}).Error; err != nil {
			return errors.Wrap(err, "failed to delete read receipts")
		}
		if err := tx.Where("message_id = ?", messageID).Delete(&models.MessageTombstone{}).Error; err != nil {
			return errors.Wrap(err, "failed to delete tombstones")
		}
		if err := tx.Delete(&models.Message{}, "id = ?", messageID).Error; err != nil {
			return errors.Wrap(err, "failed to delete message")
		}
		return nil
	})
}

func (c *chatRepo) SetBlocked(convID uuid.UUID, blocked bool, by uuid.UUID) error {
	updates := map[string]interface{}{"blocked": blocked, "blocked_by": uuid.Nil}
	if blocked {
		updates["blocked_by"] = by
	}
	err := c.DB.Model(&models.Conversation{}).Where("id = ?", convID).Updates(updates).Error
	if err != nil {
		return errors.Wrap(err, "failed to update block state")
	}
	return nil
}

func (c *chatRepo) SetMessageTimer(convID uuid.UUID, seconds int) error {
	err := c.DB.Model(&models.Conversation{}).Where("id = ?", convID).
		Update("message_timer", seconds).Error
	if err != nil {
		return errors.Wrap(err, "failed to update message timer")
	}
	return nil
}

func (c *chatRepo) SetScreenshotBlocked(convID uuid.UUID, blocked bool) error {
	err := c.DB.Model(&models.Conversation{}).Where("id = ?", convID).
		Update("screenshot_blocked", blocked).Error
	if err != nil {
		return errors.Wrap(err, "failed to update screenshot prevention")
	}
	return nil
}
