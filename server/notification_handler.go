package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	errs "github.com/techagentng/achat/errors"
	"github.com/techagentng/achat/server/response"
)

func (s *Server) handleRegisterDeviceToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			response.JSON(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
			return
		}

		body := struct {
			Token string `json:"token" binding:"required"`
		}{}
		if err := decode(c, &body); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, err)
			return
		}
		if err := s.NotificationService.RegisterDevice(userID, body.Token); err != nil {
			handleError(c, err)
			return
		}
		response.JSON(c, "device registered", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleListNotifications() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			response.JSON(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
			return
		}
		notes, err := s.NotificationService.ListUnread(userID)
		if err != nil {
			handleError(c, err)
			return
		}
		response.JSON(c, "", http.StatusOK, notes, nil)
	}
}

func (s *Server) handleMarkNotificationRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			response.JSON(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
			return
		}
		convID, err := uuid.Parse(c.Param("conversationID"))
		if err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.ErrBadRequest)
			return
		}
		if err := s.NotificationService.MarkRead(userID, convID); err != nil {
			handleError(c, err)
			return
		}
		response.JSON(c, "notification cleared", http.StatusOK, nil, nil)
	}
}
