package server

import (
	"context"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/techagentng/achat/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// socketFrame is the envelope both directions speak on the chat socket.
type socketFrame struct {
	Type        string    `json:"type"`
	Text        string    `json:"text,omitempty"`
	Viewing     bool      `json:"viewing,omitempty"`
	MessageID   uuid.UUID `json:"message_id,omitempty"`
	ForEveryone bool      `json:"for_everyone,omitempty"`
}

// safeConn serializes writes; gorilla connections allow one writer at a time.
type safeConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *safeConn) writeJSON(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

// handleChatSocket attaches a live chat session to a websocket. The client
// receives the history page and every subsequent feed event, and drives the
// session with focus, send and delete frames.
func (s *Server) handleChatSocket() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, convID, ok := s.conversationScope(c)
		if !ok {
			return
		}

		sess, err := s.ChatService.NewSession(convID, userID)
		if err != nil {
			handleError(c, err)
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			sess.Close()
			log.Printf("websocket upgrade failed: %v", err)
			return
		}
		sc := &safeConn{conn: conn}

		events, cancel := s.FeedBroker.Subscribe(convID)

		<-sess.Ready()
		if err := sc.writeJSON(gin.H{
			"type":     "history",
			"messages": sess.Messages(),
			"options":  sess.Options(),
		}); err != nil {
			cancel()
			sess.Close()
			conn.Close()
			return
		}

		// The gin context is not safe to share with the reader goroutine;
		// only the request context crosses over.
		ctx := c.Request.Context()

		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				var frame socketFrame
				if err := conn.ReadJSON(&frame); err != nil {
					return
				}
				s.handleSocketFrame(ctx, sc, sess, frame)
			}
		}()

		for {
			select {
			case <-done:
				cancel()
				sess.Close()
				conn.Close()
				return
			case ev, open := <-events:
				if !open {
					sess.Close()
					conn.Close()
					return
				}
				if err := s.relayFeedEvent(sc, sess, userID, ev); err != nil {
					cancel()
					sess.Close()
					conn.Close()
					return
				}
			}
		}
	}
}

func (s *Server) handleSocketFrame(ctx context.Context, sc *safeConn, sess *services.ChatSession, frame socketFrame) {
	switch frame.Type {
	case "focus":
		sess.SetViewing(frame.Viewing)
	case "send":
		if _, err := sess.Send(ctx, services.SendInput{Text: frame.Text}); err != nil {
			sc.writeJSON(gin.H{"type": "error", "error": err.Error()})
		}
	case "delete":
		if err := sess.Delete(ctx, frame.MessageID, frame.ForEveryone); err != nil {
			sc.writeJSON(gin.H{"type": "error", "error": err.Error()})
		}
	default:
		sc.writeJSON(gin.H{"type": "error", "error": "unknown frame type"})
	}

	if err := sess.Err(); err != nil {
		sc.writeJSON(gin.H{"type": "error", "error": err.Error()})
	}
}

func (s *Server) relayFeedEvent(sc *safeConn, sess *services.ChatSession, userID uuid.UUID, ev services.FeedEvent) error {
	switch ev.Type {
	case services.EventMessageCreated:
		if ev.Message == nil || !ev.Message.VisibleToUser(userID) {
			return nil
		}
		return sc.writeJSON(gin.H{"type": "message", "message": sess.Render(ev.Message)})
	case services.EventMessageDeleted:
		return sc.writeJSON(gin.H{"type": "message_deleted", "message_id": ev.MessageID})
	case services.EventConversationUpdated:
		return sc.writeJSON(gin.H{"type": "options", "options": sess.Options()})
	}
	return nil
}
