package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	errs "github.com/techagentng/achat/errors"
	"github.com/techagentng/achat/server/response"
)

func (s *Server) handleCreateServiceRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			response.JSON(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
			return
		}

		body := struct {
			Category    string `json:"category" binding:"required"`
			Description string `json:"description" binding:"required"`
		}{}
		if err := decode(c, &body); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, err)
			return
		}

		req, err := s.ServiceRequestService.CreateRequest(userID, body.Category, body.Description)
		if err != nil {
			handleError(c, err)
			return
		}
		response.JSON(c, "service request created", http.StatusCreated, req, nil)
	}
}

func (s *Server) handleListOpenServiceRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqs, err := s.ServiceRequestService.ListOpenRequests(c.Query("category"))
		if err != nil {
			handleError(c, err)
			return
		}
		response.JSON(c, "", http.StatusOK, reqs, nil)
	}
}

func (s *Server) handleListMyServiceRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			response.JSON(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
			return
		}
		reqs, err := s.ServiceRequestService.ListMyRequests(userID)
		if err != nil {
			handleError(c, err)
			return
		}
		response.JSON(c, "", http.StatusOK, reqs, nil)
	}
}

func (s *Server) handleAcceptServiceRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			response.JSON(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
			return
		}
		requestID, err := uuid.Parse(c.Param("requestID"))
		if err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.ErrBadRequest)
			return
		}

		req, err := s.ServiceRequestService.AcceptRequest(requestID, userID)
		if err != nil {
			handleError(c, err)
			return
		}
		response.JSON(c, "request accepted", http.StatusOK, req, nil)
	}
}

func (s *Server) handleCloseServiceRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			response.JSON(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
			return
		}
		requestID, err := uuid.Parse(c.Param("requestID"))
		if err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.ErrBadRequest)
			return
		}
		if err := s.ServiceRequestService.CloseRequest(requestID, userID); err != nil {
			handleError(c, err)
			return
		}
		response.JSON(c, "request closed", http.StatusOK, nil, nil)
	}
}
