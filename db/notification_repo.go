package db

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/techagentng/achat/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type NotificationRepository interface {
	UpsertNotification(note *models.Notification) error
	ListUnread(userID uuid.UUID) ([]models.Notification, error)
	MarkRead(userID, conversationID uuid.UUID) error
	RegisterDeviceToken(userID uuid.UUID, token string) error
	DeviceTokens(userID uuid.UUID) ([]string, error)
}

type notificationRepo struct {
	DB *gorm.DB
}

func NewNotificationRepo(db *GormDB) NotificationRepository {
	return &notificationRepo{db.DB}
}

// UpsertNotification keeps a single row per user and conversation so repeated
// messages coalesce instead of stacking.
func (n *notificationRepo) UpsertNotification(note *models.Notification) error {
	if note.ID == uuid.Nil {
		note.ID = uuid.New()
	}
	err := n.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "conversation_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"sender_name": note.SenderName,
			"preview":     note.Preview,
			"is_read":     false,
		}),
	}).Create(note).Error
	if err != nil {
		return errors.Wrap(err, "failed to upsert notification")
	}
	return nil
}

func (n *notificationRepo) ListUnread(userID uuid.UUID) ([]models.Notification, error) {
	var notes []models.Notification
	err := n.DB.Where("user_id = ? AND is_read = ?", userID, false).
		Order("updated_at DESC").Find(&notes).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list notifications")
	}
	return notes, nil
}

func (n *notificationRepo) MarkRead(userID, conversationID uuid.UUID) error {
	err := n.DB.Model(&models.Notification{}).
		Where("user_id = ? AND conversation_id = ?", userID, conversationID).
		Update("is_read", true).Error
	if err != nil {
		return errors.Wrap(err, "failed to mark notification read")
	}
	return nil
}

func (n *notificationRepo) RegisterDeviceToken(userID uuid.UUID, token string) error {
	row := models.DeviceToken{UserID: userID, Token: token}
	row.ID = uuid.New()
	err := n.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
	if err != nil {
		return errors.Wrap(err, "failed to register device token")
	}
	return nil
}

func (n *notificationRepo) DeviceTokens(userID uuid.UUID) ([]string, error) {
	var tokens []string
	err := n.DB.Model(&models.DeviceToken{}).Where("user_id = ?", userID).
		Pluck("token", &tokens).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list device tokens")
	}
	return tokens, nil
}
