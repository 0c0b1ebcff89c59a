package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/techagentng/achat/db"
	"github.com/techagentng/achat/models"
	"gorm.io/gorm"
)

func newID() uuid.UUID { return uuid.New() }

// fakeChatRepo is an in-memory db.ChatRepository with the same receipt and
// counter semantics as the real one.
type fakeChatRepo struct {
	mu sync.Mutex

	convs      map[uuid.UUID]*models.Conversation
	messages   []*models.Message
	deliveries map[uuid.UUID]map[uuid.UUID]bool
	reads      map[uuid.UUID]map[uuid.UUID]bool
	tombstones map[uuid.UUID]map[uuid.UUID]bool
	unread     map[uuid.UUID]map[uuid.UUID]int

	// failSaves makes the next n SaveMessage calls fail.
	failSaves int
	saveCalls int

	// loadGate, when set, blocks GetRecentMessages until closed.
	loadGate chan struct{}
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{
		convs:      make(map[uuid.UUID]*models.Conversation),
		deliveries: make(map[uuid.UUID]map[uuid.UUID]bool),
		reads:      make(map[uuid.UUID]map[uuid.UUID]bool),
		tombstones: make(map[uuid.UUID]map[uuid.UUID]bool),
		unread:     make(map[uuid.UUID]map[uuid.UUID]int),
	}
}

func (f *fakeChatRepo) CreateConversation(conv *models.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if conv.ID == uuid.Nil {
		conv.ID = uuid.New()
	}
	f.convs[conv.ID] = conv
	f.unread[conv.ID] = make(map[uuid.UUID]int)
	return nil
}

func (f *fakeChatRepo) GetConversation(id uuid.UUID) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.convs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *conv
	return &copied, nil
}

func (f *fakeChatRepo) ListConversations(userID uuid.UUID) ([]models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Conversation
	for _, conv := range f.convs {
		if conv.HasParticipant(userID) {
			out = append(out, *conv)
		}
	}
	return out, nil
}

func (f *fakeChatRepo) GetParticipant(convID, userID uuid.UUID) (*models.ConversationParticipant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.convs[convID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	for i := range conv.Participants {
		if conv.Participants[i].UserID == userID {
			p := conv.Participants[i]
			p.UnreadCount = f.unread[convID][userID]
			return &p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeChatRepo) SaveMessage(msg *models.Message, preview string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveCalls++
	if f.failSaves > 0 {
		f.failSaves--
		return fmt.Errorf("simulated write failure")
	}

	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	f.messages = append(f.messages, msg)

	conv := f.convs[msg.ConversationID]
	conv.LastMessage = preview
	conv.LastSenderID = msg.SenderID
	conv.LastMessageAt = msg.CreatedAt
	for _, p := range conv.Participants {
		if p.UserID != msg.SenderID {
			f.unread[conv.ID][p.UserID]++
		}
	}
	f.markDeliveredLocked(msg.ID, msg.SenderID)
	return nil
}

func (f *fakeChatRepo) markDeliveredLocked(msgID, userID uuid.UUID) bool {
	if f.deliveries[msgID] == nil {
		f.deliveries[msgID] = make(map[uuid.UUID]bool)
	}
	if f.deliveries[msgID][userID] {
		return false
	}
	f.deliveries[msgID][userID] = true
	return true
}

func (f *fakeChatRepo) GetMessage(id uuid.UUID) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.ID == id {
			copied := *m
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeChatRepo) GetRecentMessages(convID, userID uuid.UUID, limit int) ([]models.Message, error) {
	f.mu.Lock()
	gate := f.loadGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Message
	for i := len(f.messages) - 1; i >= 0 && len(out) < limit; i-- {
		m := f.messages[i]
		if m.ConversationID != convID || f.tombstones[m.ID][userID] {
			continue
		}
		copied := *m
		for u := range f.deliveries[m.ID] {
			copied.Deliveries = append(copied.Deliveries, models.MessageDelivery{MessageID: m.ID, UserID: u})
		}
		for u := range f.reads[m.ID] {
			copied.Reads = append(copied.Reads, models.MessageRead{MessageID: m.ID, UserID: u})
		}
		out = append(out, copied)
	}
	return out, nil
}

func (f *fakeChatRepo) ApplyReceipts(convID, userID uuid.UUID, batch db.ReceiptBatch) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var newly []uuid.UUID
	for _, id := range batch.Deliver {
		if f.markDeliveredLocked(id, userID) {
			newly = append(newly, id)
		}
	}
	for _, id := range batch.Read {
		if f.reads[id] == nil {
			f.reads[id] = make(map[uuid.UUID]bool)
		}
		f.reads[id][userID] = true
	}
	return newly, nil
}

func (f *fakeChatRepo) MarkConversationRead(convID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.ConversationID == convID && m.SenderID != userID {
			if f.reads[m.ID] == nil {
				f.reads[m.ID] = make(map[uuid.UUID]bool)
			}
			f.reads[m.ID][userID] = true
		}
	}
	f.unread[convID][userID] = 0
	return nil
}

func (f *fakeChatRepo) ResetUnread(convID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unread[convID][userID] = 0
	return nil
}

func (f *fakeChatRepo) AddTombstone(messageID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tombstones[messageID] == nil {
		f.tombstones[messageID] = make(map[uuid.UUID]bool)
	}
	f.tombstones[messageID][userID] = true
	return nil
}

func (f *fakeChatRepo) DeleteMessageForEveryone(messageID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, m := range f.messages {
		if m.ID == messageID {
			f.messages = append(f.messages[:i], f.messages[i+1:]...)
			break
		}
	}
	delete(f.deliveries, messageID)
	delete(f.reads, messageID)
	delete(f.tombstones, messageID)
	return nil
}

func (f *fakeChatRepo) SetBlocked(convID uuid.UUID, blocked bool, by uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv := f.convs[convID]
	conv.Blocked = blocked
	if blocked {
		conv.BlockedBy = by
	} else {
		conv.BlockedBy = uuid.Nil
	}
	return nil
}

func (f *fakeChatRepo) SetMessageTimer(convID uuid.UUID, seconds int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.convs[convID].MessageTimer = seconds
	return nil
}

func (f *fakeChatRepo) SetScreenshotBlocked(convID uuid.UUID, blocked bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.convs[convID].ScreenshotBlocked = blocked
	return nil
}

func (f *fakeChatRepo) unreadCount(convID, userID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unread[convID][userID]
}

func (f *fakeChatRepo) isRead(msgID, userID uuid.UUID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads[msgID][userID]
}

// corruptCiphertext overwrites a stored message's ciphertext in place,
// simulating corruption at rest.
func (f *fakeChatRepo) corruptCiphertext(msgID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.ID == msgID {
			m.Ciphertext = "bm90IHJlYWwgY2lwaGVydGV4dA=="
			return
		}
	}
}

// fakeAuthRepo is an in-memory db.AuthRepository.
type fakeAuthRepo struct {
	mu        sync.Mutex
	users     map[uuid.UUID]*models.User
	blacklist map[string]bool
}

func newFakeAuthRepo() *fakeAuthRepo {
	return &fakeAuthRepo{
		users:     make(map[uuid.UUID]*models.User),
		blacklist: make(map[string]bool),
	}
}

func (f *fakeAuthRepo) addUser(fullname string) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &models.User{Fullname: fullname, Username: fullname, Email: fullname + "@example.com"}
	u.ID = uuid.New()
	f.users[u.ID] = u
	return u
}

func (f *fakeAuthRepo) CreateUser(user *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeAuthRepo) FindUserByEmail(email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeAuthRepo) FindUserByID(id uuid.UUID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

func (f *fakeAuthRepo) FindUsersByIDs(ids []uuid.UUID) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.User
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeAuthRepo) IsEmailExist(email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return fmt.Errorf("duplicate key value violates unique constraint: email exists")
		}
	}
	return nil
}

func (f *fakeAuthRepo) UpdateUserProfile(userID uuid.UUID, updates map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if v, ok := updates["fullname"].(string); ok {
		u.Fullname = v
	}
	if v, ok := updates["public_key"].(string); ok {
		u.PublicKey = v
	}
	return nil
}

func (f *fakeAuthRepo) UpdateUserImage(userID uuid.UUID, thumbNailURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[userID]; ok {
		u.ThumbNailURL = thumbNailURL
	}
	return nil
}

func (f *fakeAuthRepo) SetResetToken(email, token string) error {
	u, err := f.FindUserByEmail(email)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u.ResetToken = token
	return nil
}

func (f *fakeAuthRepo) FindUserByResetToken(token string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ResetToken == token && token != "" {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeAuthRepo) UpdatePassword(userID uuid.UUID, hashedPassword string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.HashedPassword = hashedPassword
	u.ResetToken = ""
	return nil
}

func (f *fakeAuthRepo) AddToBlacklist(token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blacklist[token] = true
	return nil
}

func (f *fakeAuthRepo) IsTokenInBlacklist(token string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blacklist[token]
}

// fakeMediaRepo records uploads and deletes without touching the network.
type fakeMediaRepo struct {
	mu      sync.Mutex
	uploads []string
	deletes []string
	failAll bool
}

func (f *fakeMediaRepo) UploadMedia(ctx context.Context, key string, body []byte, contentType string, metadata map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return "", fmt.Errorf("simulated upload failure")
	}
	f.uploads = append(f.uploads, key)
	return "https://bucket.s3.region.amazonaws.com/" + key, nil
}

func (f *fakeMediaRepo) DeleteMedia(ctx context.Context, fileURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, fileURL)
	return nil
}

func (f *fakeMediaRepo) uploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

// fakeNotifier records notifications instead of pushing.
type fakeNotifier struct {
	mu        sync.Mutex
	shown     []string
	readMarks []uuid.UUID
}

func (f *fakeNotifier) ShowMessageNotification(ctx context.Context, userID, conversationID uuid.UUID, senderName, preview string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shown = append(f.shown, senderName+": "+preview)
}

func (f *fakeNotifier) RegisterDevice(userID uuid.UUID, token string) error { return nil }

func (f *fakeNotifier) ListUnread(userID uuid.UUID) ([]models.Notification, error) {
	return nil, nil
}

func (f *fakeNotifier) MarkRead(userID, conversationID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readMarks = append(f.readMarks, conversationID)
	return nil
}

func (f *fakeNotifier) shownCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.shown)
}
