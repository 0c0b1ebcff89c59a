package services

import (
	"context"
	"log"

	"firebase.google.com/go/messaging"
	"github.com/google/uuid"
	"github.com/techagentng/achat/db"
	"github.com/techagentng/achat/models"
)

// NotificationService raises message notifications for users who are not
// viewing the conversation. Push delivery is strictly best effort: every
// failure is logged and swallowed, a notification must never fail a send.
type NotificationService interface {
	ShowMessageNotification(ctx context.Context, userID, conversationID uuid.UUID, senderName, preview string)
	RegisterDevice(userID uuid.UUID, token string) error
	ListUnread(userID uuid.UUID) ([]models.Notification, error)
	MarkRead(userID, conversationID uuid.UUID) error
}

type notificationService struct {
	notificationRepo db.NotificationRepository
	authRepo         db.AuthRepository
	messagingClient  *messaging.Client // nil disables push entirely
}

func NewNotificationService(notificationRepo db.NotificationRepository, authRepo db.AuthRepository, messagingClient *messaging.Client) NotificationService {
	return &notificationService{
		notificationRepo: notificationRepo,
		authRepo:         authRepo,
		messagingClient:  messagingClient,
	}
}

func (n *notificationService) ShowMessageNotification(ctx context.Context, userID, conversationID uuid.UUID, senderName, preview string) {
	note := &models.Notification{
		UserID:         userID,
		ConversationID: conversationID,
		SenderName:     senderName,
		Preview:        preview,
	}
	if err := n.notificationRepo.UpsertNotification(note); err != nil {
		log.Printf("failed to store notification: %v", err)
	}

	if n.messagingClient == nil {
		return
	}

	user, err := n.authRepo.FindUserByID(userID)
	if err != nil {
		log.Printf("notification user lookup failed: %v", err)
		return
	}

	tokens, err := n.notificationRepo.DeviceTokens(userID)
	if err != nil {
		log.Printf("device token lookup failed: %v", err)
		return
	}

	for _, token := range tokens {
		// The conversation id doubles as collapse key and tag so repeated
		// messages in one chat replace the previous notification instead of
		// stacking.
		android := &messaging.AndroidConfig{
			CollapseKey: conversationID.String(),
			Notification: &messaging.AndroidNotification{
				Tag: conversationID.String(),
			},
		}
		if user.NotifySound {
			android.Notification.Sound = "default"
		}
		if user.NotifyVibrate {
			android.Notification.DefaultVibrateTimings = true
		}

		msg := &messaging.Message{
			Token: token,
			Notification: &messaging.Notification{
				Title: senderName,
				Body:  preview,
			},
			Android: android,
		}
		if _, err := n.messagingClient.Send(ctx, msg); err != nil {
			log.Printf("push to device failed: %v", err)
		}
	}
}

// RegisterDevice records a push target. Registering the same token twice is
// a no-op.
func (n *notificationService) RegisterDevice(userID uuid.UUID, token string) error {
	return n.notificationRepo.RegisterDeviceToken(userID, token)
}

func (n *notificationService) ListUnread(userID uuid.UUID) ([]models.Notification, error) {
	return n.notificationRepo.ListUnread(userID)
}

func (n *notificationService) MarkRead(userID, conversationID uuid.UUID) error {
	return n.notificationRepo.MarkRead(userID, conversationID)
}
