package services

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/techagentng/achat/models"
)

type noteKey struct {
	user uuid.UUID
	conv uuid.UUID
}

type fakeNotificationRepo struct {
	mu     sync.Mutex
	notes  map[noteKey]*models.Notification
	tokens map[uuid.UUID]map[string]bool
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{
		notes:  make(map[noteKey]*models.Notification),
		tokens: make(map[uuid.UUID]map[string]bool),
	}
}

func (f *fakeNotificationRepo) UpsertNotification(note *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := noteKey{note.UserID, note.ConversationID}
	if existing, ok := f.notes[key]; ok {
		existing.SenderName = note.SenderName
		existing.Preview = note.Preview
		existing.IsRead = false
		return nil
	}
	copied := *note
	f.notes[key] = &copied
	return nil
}

func (f *fakeNotificationRepo) ListUnread(userID uuid.UUID) ([]models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Notification
	for key, note := range f.notes {
		if key.user == userID && !note.IsRead {
			out = append(out, *note)
		}
	}
	return out, nil
}

func (f *fakeNotificationRepo) MarkRead(userID, conversationID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if note, ok := f.notes[noteKey{userID, conversationID}]; ok {
		note.IsRead = true
	}
	return nil
}

func (f *fakeNotificationRepo) RegisterDeviceToken(userID uuid.UUID, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tokens[userID] == nil {
		f.tokens[userID] = make(map[string]bool)
	}
	f.tokens[userID][token] = true
	return nil
}

func (f *fakeNotificationRepo) DeviceTokens(userID uuid.UUID) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for token := range f.tokens[userID] {
		out = append(out, token)
	}
	return out, nil
}

func TestNotificationsCoalescePerConversation(t *testing.T) {
	repo := newFakeNotificationRepo()
	authRepo := newFakeAuthRepo()
	bob := authRepo.addUser("bob")
	svc := NewNotificationService(repo, authRepo, nil)

	convID := uuid.New()
	svc.ShowMessageNotification(context.Background(), bob.ID, convID, "alice", "first")
	svc.ShowMessageNotification(context.Background(), bob.ID, convID, "alice", "second")

	notes, err := svc.ListUnread(bob.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "second", notes[0].Preview)
}

func TestMarkReadClearsNotification(t *testing.T) {
	repo := newFakeNotificationRepo()
	authRepo := newFakeAuthRepo()
	bob := authRepo.addUser("bob")
	svc := NewNotificationService(repo, authRepo, nil)

	convID := uuid.New()
	svc.ShowMessageNotification(context.Background(), bob.ID, convID, "alice", "hello")
	require.NoError(t, svc.MarkRead(bob.ID, convID))

	notes, err := svc.ListUnread(bob.ID)
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestRegisterDeviceIsIdempotent(t *testing.T) {
	repo := newFakeNotificationRepo()
	authRepo := newFakeAuthRepo()
	bob := authRepo.addUser("bob")
	svc := NewNotificationService(repo, authRepo, nil)

	require.NoError(t, svc.RegisterDevice(bob.ID, "token-1"))
	require.NoError(t, svc.RegisterDevice(bob.ID, "token-1"))

	tokens, err := repo.DeviceTokens(bob.ID)
	require.NoError(t, err)
	assert.Len(t, tokens, 1)
}
