package services

import (
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/techagentng/achat/models"
)

type FeedEventType string

const (
	EventMessageCreated      FeedEventType = "message_created"
	EventMessageDeleted      FeedEventType = "message_deleted"
	EventConversationUpdated FeedEventType = "conversation_updated"
)

// FeedEvent is one push from the live feed: a new or deleted message, or a
// change to the conversation document itself.
type FeedEvent struct {
	Type           FeedEventType        `json:"type"`
	ConversationID uuid.UUID            `json:"conversation_id"`
	MessageID      uuid.UUID            `json:"message_id,omitempty"`
	Message        *models.Message      `json:"message,omitempty"`
	Conversation   *models.Conversation `json:"conversation,omitempty"`
}

const feedBuffer = 64

// FeedBroker fans conversation events out to live subscribers. Services
// publish after their writes commit; chat sessions and websocket clients
// subscribe per conversation. A subscriber that falls behind loses events
// rather than blocking the publisher.
type FeedBroker struct {
	mu     sync.RWMutex
	nextID int
	subs   map[uuid.UUID]map[int]chan FeedEvent
}

func NewFeedBroker() *FeedBroker {
	return &FeedBroker{
		subs: make(map[uuid.UUID]map[int]chan FeedEvent),
	}
}

// Subscribe registers a listener for one conversation. The returned cancel
// func removes the listener and closes the channel; it is safe to call more
// than once.
func (b *FeedBroker) Subscribe(convID uuid.UUID) (<-chan FeedEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	ch := make(chan FeedEvent, feedBuffer)
	if b.subs[convID] == nil {
		b.subs[convID] = make(map[int]chan FeedEvent)
	}
	b.subs[convID][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if listeners, ok := b.subs[convID]; ok {
				if c, ok := listeners[id]; ok {
					delete(listeners, id)
					close(c)
				}
				if len(listeners) == 0 {
					delete(b.subs, convID)
				}
			}
		})
	}
	return ch, cancel
}

func (b *FeedBroker) Publish(ev FeedEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[ev.ConversationID] {
		select {
		case ch <- ev:
		default:
			log.Printf("feed subscriber for conversation %s is behind, dropping %s", ev.ConversationID, ev.Type)
		}
	}
}

// Subscribers reports the number of live listeners for a conversation.
func (b *FeedBroker) Subscribers(convID uuid.UUID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[convID])
}
