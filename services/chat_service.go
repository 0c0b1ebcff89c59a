package services

import (
	"context"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/techagentng/achat/config"
	"github.com/techagentng/achat/db"
	errs "github.com/techagentng/achat/errors"
	"github.com/techagentng/achat/models"
	"gorm.io/gorm"
)

const (
	// sendAttempts bounds the retry loop around message persistence.
	sendAttempts = 3
	sendBackoff  = 200 * time.Millisecond

	// Placeholder rendered when a ciphertext cannot be opened. One bad
	// message never poisons the rest of the feed.
	undecryptableBody = "[message unavailable]"

	unknownMemberName = "Unknown user"
)

// SendInput is everything a send carries besides the sender identity.
type SendInput struct {
	Text       string
	Attachment *Attachment
}

// ChatService owns conversation lifecycle and message operations. Live
// per-conversation views are opened with NewSession.
type ChatService interface {
	CreateDirectConversation(userID, peerID uuid.UUID) (*models.Conversation, error)
	CreateGroupConversation(creatorID uuid.UUID, name, photoURL string, memberIDs []uuid.UUID) (*models.Conversation, error)
	OpenServiceConversation(requesterID, providerID uuid.UUID, note string) (*models.Conversation, error)
	ListConversations(userID uuid.UUID) ([]models.Conversation, error)
	GetMessages(convID, userID uuid.UUID) ([]ChatMessage, error)

	SendMessage(ctx context.Context, convID, senderID uuid.UUID, in SendInput) (*models.Message, error)
	DeleteMessage(ctx context.Context, messageID, userID uuid.UUID, forEveryone bool) error
	MarkConversationRead(convID, userID uuid.UUID) error

	BlockConversation(convID, userID uuid.UUID, blocked bool) error
	SetMessageTimer(convID, userID uuid.UUID, seconds int) error
	SetScreenshotBlocked(convID, userID uuid.UUID, blocked bool) error

	NewSession(convID, userID uuid.UUID) (*ChatSession, error)
}

type chatService struct {
	chatRepo  db.ChatRepository
	mediaRepo db.MediaRepository
	authRepo  db.AuthRepository
	enc       EncryptionService
	notifier  NotificationService
	broker    *FeedBroker
	pageSize  int
}

func NewChatService(chatRepo db.ChatRepository, mediaRepo db.MediaRepository, authRepo db.AuthRepository, enc EncryptionService, notifier NotificationService, broker *FeedBroker, conf *config.Config) ChatService {
	pageSize := conf.ChatPageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	return &chatService{
		chatRepo:  chatRepo,
		mediaRepo: mediaRepo,
		authRepo:  authRepo,
		enc:       enc,
		notifier:  notifier,
		broker:    broker,
		pageSize:  pageSize,
	}
}

// CreateDirectConversation opens a two-party chat. If the peer has published
// a public key the conversation is created encrypted; otherwise plaintext.
func (s *chatService) CreateDirectConversation(userID, peerID uuid.UUID) (*models.Conversation, error) {
	if userID == peerID {
		return nil, errs.ErrBadRequest
	}
	peer, err := s.authRepo.FindUserByID(peerID)
	if err != nil {
		return nil, errs.ErrNotFound
	}

	conv := &models.Conversation{
		Kind:               models.ConversationDirect,
		RecipientPublicKey: peer.PublicKey,
		Participants: []models.ConversationParticipant{
			{UserID: userID},
			{UserID: peerID},
		},
	}
	if err := s.chatRepo.CreateConversation(conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *chatService) CreateGroupConversation(creatorID uuid.UUID, name, photoURL string, memberIDs []uuid.UUID) (*models.Conversation, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(memberIDs) == 0 {
		return nil, errs.ErrBadRequest
	}

	participants := []models.ConversationParticipant{{UserID: creatorID, IsAdmin: true}}
	for _, id := range memberIDs {
		if id == creatorID {
			continue
		}
		participants = append(participants, models.ConversationParticipant{UserID: id})
	}

	conv := &models.Conversation{
		Kind:          models.ConversationGroup,
		GroupName:     name,
		GroupPhotoURL: photoURL,
		CreatorID:     creatorID,
		Participants:  participants,
	}
	if err := s.chatRepo.CreateConversation(conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// OpenServiceConversation starts the chat a successful service match
// produces. The opening system message is visible to the matched pair only.
func (s *chatService) OpenServiceConversation(requesterID, providerID uuid.UUID, note string) (*models.Conversation, error) {
	conv := &models.Conversation{
		Kind: models.ConversationService,
		Participants: []models.ConversationParticipant{
			{UserID: requesterID},
			{UserID: providerID},
		},
	}
	if err := s.chatRepo.CreateConversation(conv); err != nil {
		return nil, err
	}

	msg := &models.Message{
		ConversationID: conv.ID,
		SenderID:       requesterID,
		Kind:           models.MessageSystem,
		Body:           note,
	}
	if err := msg.SetVisibleTo([]uuid.UUID{requesterID, providerID}); err != nil {
		return nil, err
	}
	if err := s.chatRepo.SaveMessage(msg, msg.Preview()); err != nil {
		return nil, err
	}
	s.broker.Publish(FeedEvent{Type: EventMessageCreated, ConversationID: conv.ID, MessageID: msg.ID, Message: msg})
	return conv, nil
}

func (s *chatService) ListConversations(userID uuid.UUID) ([]models.Conversation, error) {
	return s.chatRepo.ListConversations(userID)
}

// GetMessages returns the latest page in chronological order, decorated the
// same way a live session renders them.
func (s *chatService) GetMessages(convID, userID uuid.UUID) ([]ChatMessage, error) {
	conv, err := s.requireParticipant(convID, userID)
	if err != nil {
		return nil, err
	}

	msgs, err := s.chatRepo.GetRecentMessages(convID, userID, s.pageSize)
	if err != nil {
		return nil, err
	}

	view := &ChatSession{svc: s, convID: convID, userID: userID}
	view.members = s.resolveMembers(conv.ParticipantIDs())

	out := make([]ChatMessage, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		if !msgs[i].VisibleToUser(userID) {
			continue
		}
		out = append(out, view.decorate(&msgs[i]))
	}
	return out, nil
}

// SendMessage validates, encrypts when the conversation has a recipient key,
// and persists with a bounded retry. Persistence updates the preview and adds
// one to every other participant's unread counter in the same transaction, so
// counters move exactly once per message no matter how many devices are
// listening.
func (s *chatService) SendMessage(ctx context.Context, convID, senderID uuid.UUID, in SendInput) (*models.Message, error) {
	conv, err := s.chatRepo.GetConversation(convID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	if !conv.HasParticipant(senderID) {
		return nil, errs.ErrPermissionDenied
	}
	if conv.Blocked {
		return nil, errs.ErrConversationBlocked
	}

	text := strings.TrimSpace(in.Text)
	if text == "" && in.Attachment == nil {
		return nil, errs.ErrBadRequest
	}

	msg := &models.Message{
		ConversationID: convID,
		SenderID:       senderID,
		Kind:           models.MessageText,
		Body:           text,
	}
	if in.Attachment != nil {
		msg.Kind = in.Attachment.Kind
		msg.AttachmentURL = in.Attachment.URL
		msg.AttachmentName = in.Attachment.Filename
		msg.AttachmentSize = in.Attachment.Size
		msg.AttachmentMime = in.Attachment.MimeType
		msg.AttachmentDuration = in.Attachment.Duration
	}

	if conv.RecipientPublicKey != "" && text != "" {
		ciphertext, nonce, senderPub, err := s.enc.EncryptMessage(text)
		if err != nil {
			return nil, err
		}
		msg.Body = ""
		msg.Ciphertext = ciphertext
		msg.Nonce = nonce
		msg.SenderPublicKey = senderPub
	}

	preview := msg.Preview()
	backoff := sendBackoff
	for attempt := 1; ; attempt++ {
		err = s.chatRepo.SaveMessage(msg, preview)
		if err == nil {
			break
		}
		if attempt == sendAttempts {
			log.Printf("send failed after %d attempts: %v", sendAttempts, err)
			return nil, errs.ErrSendFailed
		}
		select {
		case <-ctx.Done():
			return nil, errs.ErrSendFailed
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	s.broker.Publish(FeedEvent{Type: EventMessageCreated, ConversationID: convID, MessageID: msg.ID, Message: msg})
	return msg, nil
}

// DeleteMessage removes a message for everyone or tombstones it for one user.
// Delete-for-everyone is allowed for the sender, and in groups for admins and
// the creator. Attachment blobs are removed best effort.
func (s *chatService) DeleteMessage(ctx context.Context, messageID, userID uuid.UUID, forEveryone bool) error {
	msg, err := s.chatRepo.GetMessage(messageID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return errs.ErrNotFound
		}
		return err
	}
	conv, err := s.chatRepo.GetConversation(msg.ConversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(userID) {
		return errs.ErrPermissionDenied
	}

	if !forEveryone {
		if err := s.chatRepo.AddTombstone(messageID, userID); err != nil {
			log.Printf("tombstone failed: %v", err)
			return errs.ErrDeleteFailed
		}
		return nil
	}

	allowed := msg.SenderID == userID
	if !allowed && conv.Kind == models.ConversationGroup {
		allowed = conv.IsAdmin(userID)
	}
	if !allowed {
		return errs.ErrPermissionDenied
	}

	if msg.HasAttachment() {
		if err := s.mediaRepo.DeleteMedia(ctx, msg.AttachmentURL); err != nil {
			log.Printf("attachment cleanup failed for message %s: %v", messageID, err)
		}
	}

	if err := s.chatRepo.DeleteMessageForEveryone(messageID); err != nil {
		log.Printf("delete failed: %v", err)
		return errs.ErrDeleteFailed
	}
	s.broker.Publish(FeedEvent{Type: EventMessageDeleted, ConversationID: msg.ConversationID, MessageID: messageID})
	return nil
}

func (s *chatService) MarkConversationRead(convID, userID uuid.UUID) error {
	return s.chatRepo.MarkConversationRead(convID, userID)
}

func (s *chatService) BlockConversation(convID, userID uuid.UUID, blocked bool) error {
	conv, err := s.requireParticipant(convID, userID)
	if err != nil {
		return err
	}
	// Only the blocker may lift a block.
	if !blocked && conv.Blocked && conv.BlockedBy != userID {
		return errs.ErrPermissionDenied
	}
	if err := s.chatRepo.SetBlocked(convID, blocked, userID); err != nil {
		return err
	}
	s.publishConversation(convID)
	return nil
}

func (s *chatService) SetMessageTimer(convID, userID uuid.UUID, seconds int) error {
	if seconds < 0 {
		return errs.ErrBadRequest
	}
	if _, err := s.requireParticipant(convID, userID); err != nil {
		return err
	}
	if err := s.chatRepo.SetMessageTimer(convID, seconds); err != nil {
		return err
	}
	s.publishConversation(convID)
	return nil
}

func (s *chatService) SetScreenshotBlocked(convID, userID uuid.UUID, blocked bool) error {
	if _, err := s.requireParticipant(convID, userID); err != nil {
		return err
	}
	if err := s.chatRepo.SetScreenshotBlocked(convID, blocked); err != nil {
		return err
	}
	s.publishConversation(convID)
	return nil
}

func (s *chatService) requireParticipant(convID, userID uuid.UUID) (*models.Conversation, error) {
	conv, err := s.chatRepo.GetConversation(convID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, errs.ErrPermissionDenied
	}
	return conv, nil
}

func (s *chatService) publishConversation(convID uuid.UUID) {
	conv, err := s.chatRepo.GetConversation(convID)
	if err != nil {
		log.Printf("conversation reload failed: %v", err)
		return
	}
	s.broker.Publish(FeedEvent{Type: EventConversationUpdated, ConversationID: convID, Conversation: conv})
}

// ChatMessage is the decorated message a session hands to its consumer:
// plaintext resolved, sender display name attached.
type ChatMessage struct {
	models.Message
	Text       string `json:"text"`
	SenderName string `json:"sender_name"`
}

// ChatSession is one user's live view of one conversation. It loads the
// latest page, subscribes to the feed, acknowledges deliveries, counts reads,
// and raises notifications while the user is not viewing. All feed failures
// are stored on the session, never panicked or thrown across the loop.
type ChatSession struct {
	svc    *chatService
	convID uuid.UUID
	userID uuid.UUID

	mu       sync.Mutex
	viewing  bool
	loading  bool
	messages []ChatMessage
	options  models.ChatOptions
	members  map[uuid.UUID]models.Member
	lastErr  error

	events <-chan FeedEvent
	cancel func()
	ready  chan struct{}
	done   chan struct{}
}

// NewSession attaches to a conversation. A missing conversation or a
// non-participant fails fast; everything else degrades.
func (s *chatService) NewSession(convID, userID uuid.UUID) (*ChatSession, error) {
	conv, err := s.chatRepo.GetConversation(convID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, errs.ErrPermissionDenied
	}

	sess := &ChatSession{
		svc:     s,
		convID:  convID,
		userID:  userID,
		loading: true,
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}
	sess.members = s.resolveMembers(conv.ParticipantIDs())
	sess.options = conv.Options(sess.members)

	// Subscribe before the initial load so messages sent in between are not
	// lost; the receipt path deduplicates any overlap.
	sess.events, sess.cancel = s.broker.Subscribe(convID)

	go sess.start()
	return sess, nil
}

// start loads the history page asynchronously, then hands over to the event
// loop. Events published during the load queue on the subscription and are
// deduplicated against the page.
func (sess *ChatSession) start() {
	msgs, err := sess.svc.chatRepo.GetRecentMessages(sess.convID, sess.userID, sess.svc.pageSize)
	if err != nil {
		sess.setErr(err)
	}

	sess.mu.Lock()
	// Newest first from the repo; display wants chronological.
	for i := len(msgs) - 1; i >= 0; i-- {
		if !msgs[i].VisibleToUser(sess.userID) {
			continue
		}
		sess.messages = append(sess.messages, sess.decorate(&msgs[i]))
	}
	sess.loading = false
	sess.mu.Unlock()

	sess.ackLoaded(msgs)
	close(sess.ready)
	sess.run()
}

// resolveMembers builds the display cache. Lookup failures fall back to a
// placeholder so one bad profile cannot block the whole chat from loading.
func (s *chatService) resolveMembers(ids []uuid.UUID) map[uuid.UUID]models.Member {
	members := make(map[uuid.UUID]models.Member, len(ids))
	users, err := s.authRepo.FindUsersByIDs(ids)
	if err != nil {
		log.Printf("member resolution failed: %v", err)
	}
	byID := make(map[uuid.UUID]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			members[id] = models.Member{Fullname: u.Fullname, ThumbNailURL: u.ThumbNailURL}
		} else {
			members[id] = models.Member{Fullname: unknownMemberName}
		}
	}
	return members
}

// decorate resolves the display form of a message. Undecryptable ciphertext
// renders as a placeholder in that one slot.
func (sess *ChatSession) decorate(msg *models.Message) ChatMessage {
	cm := ChatMessage{Message: *msg}
	if member, ok := sess.members[msg.SenderID]; ok {
		cm.SenderName = member.Fullname
	} else {
		cm.SenderName = unknownMemberName
	}

	if !msg.IsEncrypted() {
		cm.Text = msg.Body
		return cm
	}
	text, err := sess.svc.enc.DecryptMessage(msg.Ciphertext, msg.Nonce, msg.SenderPublicKey)
	if err != nil {
		cm.Text = undecryptableBody
		return cm
	}
	cm.Text = text
	return cm
}

// ackLoaded acknowledges delivery for the initial page. Receipts are set
// unions, so reattaching never double-acknowledges.
func (sess *ChatSession) ackLoaded(msgs []models.Message) {
	var batch db.ReceiptBatch
	for i := range msgs {
		if !msgs[i].DeliveredTo(sess.userID) {
			batch.Deliver = append(batch.Deliver, msgs[i].ID)
		}
	}
	if len(batch.Deliver) == 0 {
		return
	}
	if _, err := sess.svc.chatRepo.ApplyReceipts(sess.convID, sess.userID, batch); err != nil {
		sess.setErr(err)
	}
}

func (sess *ChatSession) run() {
	for ev := range sess.events {
		switch ev.Type {
		case EventMessageCreated:
			sess.handleIncoming(ev.Message)
		case EventMessageDeleted:
			sess.handleDeleted(ev.MessageID)
		case EventConversationUpdated:
			sess.handleConversationUpdate(ev.Conversation)
		}
	}
	close(sess.done)
}

// handleIncoming is the per-update pipeline: decorate, acknowledge delivery,
// read or notify depending on focus.
func (sess *ChatSession) handleIncoming(msg *models.Message) {
	if msg == nil || !msg.VisibleToUser(sess.userID) {
		return
	}

	sess.mu.Lock()
	for i := range sess.messages {
		if sess.messages[i].ID == msg.ID {
			sess.mu.Unlock()
			return
		}
	}
	sess.messages = append(sess.messages, sess.decorate(msg))
	sort.SliceStable(sess.messages, func(i, j int) bool {
		return sess.messages[i].CreatedAt.Before(sess.messages[j].CreatedAt)
	})
	viewing := sess.viewing
	sess.mu.Unlock()

	batch := db.ReceiptBatch{Deliver: []uuid.UUID{msg.ID}}
	fromOther := msg.SenderID != sess.userID
	if fromOther && viewing {
		batch.Read = append(batch.Read, msg.ID)
	}

	newlyDelivered, err := sess.svc.chatRepo.ApplyReceipts(sess.convID, sess.userID, batch)
	if err != nil {
		sess.setErr(err)
		return
	}

	if !fromOther {
		return
	}
	if viewing {
		// The send already bumped our counter; viewing keeps it pinned at 0.
		if err := sess.svc.chatRepo.ResetUnread(sess.convID, sess.userID); err != nil {
			sess.setErr(err)
		}
		return
	}
	// Notify once per message: only on the update that actually inserted the
	// delivery row.
	if len(newlyDelivered) > 0 {
		cm := sess.decorate(msg)
		preview := msg.Preview()
		if msg.IsEncrypted() {
			preview = "New message"
		}
		sess.svc.notifier.ShowMessageNotification(context.Background(), sess.userID, sess.convID, cm.SenderName, preview)
	}
}

func (sess *ChatSession) handleDeleted(messageID uuid.UUID) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	for i := range sess.messages {
		if sess.messages[i].ID == messageID {
			sess.messages = append(sess.messages[:i], sess.messages[i+1:]...)
			return
		}
	}
}

func (sess *ChatSession) handleConversationUpdate(conv *models.Conversation) {
	if conv == nil {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.options = conv.Options(sess.members)
}

// SetViewing flips chat focus. Entering the conversation marks everything
// read and clears both the unread counter and any stored notification.
func (sess *ChatSession) SetViewing(viewing bool) {
	sess.mu.Lock()
	was := sess.viewing
	sess.viewing = viewing
	sess.mu.Unlock()

	if viewing && !was {
		if err := sess.svc.chatRepo.MarkConversationRead(sess.convID, sess.userID); err != nil {
			sess.setErr(err)
		}
		if err := sess.svc.notifier.MarkRead(sess.userID, sess.convID); err != nil {
			log.Printf("notification clear failed: %v", err)
		}
	}
}

// Send posts a message from the session user.
func (sess *ChatSession) Send(ctx context.Context, in SendInput) (*models.Message, error) {
	return sess.svc.SendMessage(ctx, sess.convID, sess.userID, in)
}

// Delete removes a message, honoring the delete-for-everyone permission rule.
func (sess *ChatSession) Delete(ctx context.Context, messageID uuid.UUID, forEveryone bool) error {
	return sess.svc.DeleteMessage(ctx, messageID, sess.userID, forEveryone)
}

// Block, SetMessageTimer and SetScreenshotBlocked mirror the chat options
// panel. Failures land in the session error state instead of propagating.
func (sess *ChatSession) Block(blocked bool) {
	if err := sess.svc.BlockConversation(sess.convID, sess.userID, blocked); err != nil {
		sess.setErr(err)
	}
}

func (sess *ChatSession) SetMessageTimer(seconds int) {
	if err := sess.svc.SetMessageTimer(sess.convID, sess.userID, seconds); err != nil {
		sess.setErr(err)
	}
}

func (sess *ChatSession) SetScreenshotBlocked(blocked bool) {
	if err := sess.svc.SetScreenshotBlocked(sess.convID, sess.userID, blocked); err != nil {
		sess.setErr(err)
	}
}

// Render resolves the display form of one message for this session's user.
func (sess *ChatSession) Render(msg *models.Message) ChatMessage {
	return sess.decorate(msg)
}

// Messages returns a copy of the current chronological view.
func (sess *ChatSession) Messages() []ChatMessage {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	out := make([]ChatMessage, len(sess.messages))
	copy(out, sess.messages)
	return out
}

// Options returns the current chat options projection.
func (sess *ChatSession) Options() models.ChatOptions {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.options
}

// Loading reports whether the initial history load is still in flight.
func (sess *ChatSession) Loading() bool {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.loading
}

// Ready is closed once the initial history load has finished.
func (sess *ChatSession) Ready() <-chan struct{} {
	return sess.ready
}

// Viewing reports whether the user currently has the conversation in focus.
func (sess *ChatSession) Viewing() bool {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.viewing
}

// Err returns and clears the stored pipeline error.
func (sess *ChatSession) Err() error {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	err := sess.lastErr
	sess.lastErr = nil
	return err
}

func (sess *ChatSession) setErr(err error) {
	log.Printf("chat session %s/%s: %v", sess.convID, sess.userID, err)
	sess.mu.Lock()
	sess.lastErr = err
	sess.mu.Unlock()
}

// Close detaches from the feed and waits for the loop to drain.
func (sess *ChatSession) Close() {
	sess.cancel()
	<-sess.done
}
