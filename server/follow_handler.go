package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	errs "github.com/techagentng/achat/errors"
	"github.com/techagentng/achat/server/response"
)

// followScope pulls the authenticated user and the target user id out of the
// request, responding itself on failure.
func followScope(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := currentUserID(c)
	if !ok {
		response.JSON(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
		return uuid.Nil, uuid.Nil, false
	}
	targetID, err := uuid.Parse(c.Param("userID"))
	if err != nil {
		response.JSON(c, "", http.StatusBadRequest, nil, errs.ErrBadRequest)
		return uuid.Nil, uuid.Nil, false
	}
	return userID, targetID, true
}

func (s *Server) handleFollow() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, targetID, ok := followScope(c)
		if !ok {
			return
		}
		if err := s.FollowService.Follow(userID, targetID); err != nil {
			handleError(c, err)
			return
		}
		response.JSON(c, "followed", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleUnfollow() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, targetID, ok := followScope(c)
		if !ok {
			return
		}
		if err := s.FollowService.Unfollow(userID, targetID); err != nil {
			handleError(c, err)
			return
		}
		response.JSON(c, "unfollowed", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleFollowers() gin.HandlerFunc {
	return func(c *gin.Context) {
		_, targetID, ok := followScope(c)
		if !ok {
			return
		}
		users, err := s.FollowService.Followers(targetID)
		if err != nil {
			handleError(c, err)
			return
		}
		response.JSON(c, "", http.StatusOK, users, nil)
	}
}

func (s *Server) handleFollowing() gin.HandlerFunc {
	return func(c *gin.Context) {
		_, targetID, ok := followScope(c)
		if !ok {
			return
		}
		users, err := s.FollowService.Following(targetID)
		if err != nil {
			handleError(c, err)
			return
		}
		response.JSON(c, "", http.StatusOK, users, nil)
	}
}

func (s *Server) handleFollowCounts() gin.HandlerFunc {
	return func(c *gin.Context) {
		_, targetID, ok := followScope(c)
		if !ok {
			return
		}
		counts, err := s.FollowService.Counts(targetID)
		if err != nil {
			handleError(c, err)
			return
		}
		response.JSON(c, "", http.StatusOK, counts, nil)
	}
}
