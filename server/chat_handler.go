package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	errs "github.com/techagentng/achat/errors"
	"github.com/techagentng/achat/server/response"
	"github.com/techagentng/achat/services"
)

func (s *Server) handleCreateDirectConversation() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			response.JSON(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
			return
		}

		body := struct {
			PeerID uuid.UUID `json:"peer_id" binding:"required"`
		}{}
		if err := decode(c, &body); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, err)
			return
		}

		conv, err := s.ChatService.CreateDirectConversation(userID, body.PeerID)
		if err != nil {
			handleError(c, err)
			return
		}
		response.JSON(c, "conversation created", http.StatusCreated, conv, nil)
	}
}

func (s *Server) handleCreateGroupConversation() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			response.JSON(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
			return
		}

		body := struct {
			Name     string      `json:"name" binding:"required"`
			PhotoURL string      `json:"photo_url"`
			Members  []uuid.UUID `json:"members" binding:"required"`
		}{}
		if err := decode(c, &body); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, err)
			return
		}

		conv, err := s.ChatService.CreateGroupConversation(userID, body.Name, body.PhotoURL, body.Members)
		if err != nil {
			handleError(c, err)
			return
		}
		response.JSON(c, "group created", http.StatusCreated, conv, nil)
	}
}

func (s *Server) handleListConversations() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			response.JSON(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
			return
		}

		convs, err := s.ChatService.ListConversations(userID)
		if err != nil {
			handleError(c, err)
			return
		}
		response.JSON(c, "", http.StatusOK, convs, nil)
	}
}

func (s *Server) handleGetMessages() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, convID, ok := s.conversationScope(c)
		if !ok {
			return
		}

		messages, err := s.ChatService.GetMessages(convID, userID)
		if err != nil {
			handleError(c, err)
			return
		}
		response.JSON(c, "", http.StatusOK, messages, nil)
	}
}

func (s *Server) handleSendMessage() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, convID, ok := s.conversationScope(c)
		if !ok {
			return
		}

		body := struct {
			Text       string               `json:"text"`
			Attachment *services.Attachment `json:"attachment"`
		}{}
		if err := decode(c, &body); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, err)
			return
		}

		msg, err := s.ChatService.SendMessage(c.Request.Context(), convID, userID, services.SendInput{
			Text:       body.Text,
			Attachment: body.Attachment,
		})
		if err != nil {
			handleError(c, err)
			return
		}
		response.JSON(c, "message sent", http.StatusCreated, msg, nil)
	}
}

func (s *Server) handleUploadMedia() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, convID, ok := s.conversationScope(c)
		if !ok {
			return
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			response.JSON(c, "missing or invalid file", http.StatusBadRequest, nil, err)
			return
		}

		opts := services.UploadOptions{ConversationID: convID, UserID: userID}
		if d := c.PostForm("duration"); d != "" {
			// Duration is reported by the capturing client for audio/video.
			if parsed, err := strconv.ParseFloat(d, 64); err == nil {
				opts.Duration = parsed
			}
		}

		attachment, err := s.MediaService.ProcessAndUploadMedia(c.Request.Context(), fileHeader, opts)
		if err != nil {
			handleError(c, err)
			return
		}
		response.JSON(c, "upload successful", http.StatusCreated, attachment, nil)
	}
}

func (s *Server) handleMarkConversationRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, convID, ok := s.conversationScope(c)
		if !ok {
			return
		}
		if err := s.ChatService.MarkConversationRead(convID, userID); err != nil {
			handleError(c, err)
			return
		}
		if err := s.NotificationService.MarkRead(userID, convID); err != nil {
			handleError(c, err)
			return
		}
		response.JSON(c, "conversation marked read", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleBlockConversation() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, convID, ok := s.conversationScope(c)
		if !ok {
			return
		}

		body := struct {
			Blocked bool `json:"blocked"`
		}{}
		if err := decode(c, &body); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, err)
			return
		}
		if err := s.ChatService.BlockConversation(convID, userID, body.Blocked); err != nil {
			handleError(c, err)
			return
		}
		response.JSON(c, "block state updated", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleSetMessageTimer() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, convID, ok := s.conversationScope(c)
		if !ok {
			return
		}

		body := struct {
			Seconds int `json:"seconds"`
		}{}
		if err := decode(c, &body); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, err)
			return
		}
		if err := s.ChatService.SetMessageTimer(convID, userID, body.Seconds); err != nil {
			handleError(c, err)
			return
		}
		response.JSON(c, "message timer updated", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleSetScreenshotBlocked() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, convID, ok := s.conversationScope(c)
		if !ok {
			return
		}

		body := struct {
			Blocked bool `json:"blocked"`
		}{}
		if err := decode(c, &body); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, err)
			return
		}
		if err := s.ChatService.SetScreenshotBlocked(convID, userID, body.Blocked); err != nil {
			handleError(c, err)
			return
		}
		response.JSON(c, "screenshot prevention updated", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleDeleteMessage() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			response.JSON(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
			return
		}
		messageID, err := uuid.Parse(c.Param("messageID"))
		if err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.ErrBadRequest)
			return
		}

		forEveryone := c.Query("for_everyone") == "true"
		if err := s.ChatService.DeleteMessage(c.Request.Context(), messageID, userID, forEveryone); err != nil {
			handleError(c, err)
			return
		}
		response.JSON(c, "message deleted", http.StatusOK, nil, nil)
	}
}

// conversationScope pulls the authenticated user and the conversation id out
// of the request, responding itself on failure.
func (s *Server) conversationScope(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := currentUserID(c)
	if !ok {
		response.JSON(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
		return uuid.Nil, uuid.Nil, false
	}
	convID, err := uuid.Parse(c.Param("conversationID"))
	if err != nil {
		response.JSON(c, "", http.StatusBadRequest, nil, errs.ErrBadRequest)
		return uuid.Nil, uuid.Nil, false
	}
	return userID, convID, true
}
