package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedBrokerDeliversToConversationSubscribers(t *testing.T) {
	b := NewFeedBroker()
	convID := uuid.New()
	otherID := uuid.New()

	ch, cancel := b.Subscribe(convID)
	defer cancel()
	other, cancelOther := b.Subscribe(otherID)
	defer cancelOther()

	b.Publish(FeedEvent{Type: EventMessageCreated, ConversationID: convID})

	select {
	case ev := <-ch:
		assert.Equal(t, EventMessageCreated, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive event")
	}

	select {
	case <-other:
		t.Fatal("event leaked into another conversation")
	default:
	}
}

func TestFeedBrokerDropsWhenSubscriberIsBehind(t *testing.T) {
	b := NewFeedBroker()
	convID := uuid.New()

	_, cancel := b.Subscribe(convID)
	defer cancel()

	// Publish must never block, even with nobody draining.
	done := make(chan struct{})
	go func() {
		for i := 0; i < feedBuffer*2; i++ {
			b.Publish(FeedEvent{Type: EventMessageCreated, ConversationID: convID})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestFeedBrokerCancelIsIdempotent(t *testing.T) {
	b := NewFeedBroker()
	convID := uuid.New()

	ch, cancel := b.Subscribe(convID)
	require.Equal(t, 1, b.Subscribers(convID))

	cancel()
	cancel()
	assert.Equal(t, 0, b.Subscribers(convID))

	_, open := <-ch
	assert.False(t, open)

	// Publishing after the last unsubscribe is a no-op.
	b.Publish(FeedEvent{Type: EventMessageDeleted, ConversationID: convID})
}
