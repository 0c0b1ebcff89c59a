package services

import (
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/techagentng/achat/db"
	errs "github.com/techagentng/achat/errors"
	"github.com/techagentng/achat/models"
	"gorm.io/gorm"
)

// ServiceRequestService runs the marketplace flow: post a request, let a
// provider accept it, and drop the matched pair into a service conversation.
type ServiceRequestService interface {
	CreateRequest(requesterID uuid.UUID, category, description string) (*models.ServiceRequest, error)
	ListOpenRequests(category string) ([]models.ServiceRequest, error)
	ListMyRequests(userID uuid.UUID) ([]models.ServiceRequest, error)
	AcceptRequest(requestID, providerID uuid.UUID) (*models.ServiceRequest, error)
	CloseRequest(requestID, userID uuid.UUID) error
}

type serviceRequestService struct {
	requestRepo db.ServiceRequestRepository
	chatService ChatService
}

func NewServiceRequestService(requestRepo db.ServiceRequestRepository, chatService ChatService) ServiceRequestService {
	return &serviceRequestService{
		requestRepo: requestRepo,
		chatService: chatService,
	}
}

func (s *serviceRequestService) CreateRequest(requesterID uuid.UUID, category, description string) (*models.ServiceRequest, error) {
	req := &models.ServiceRequest{
		RequesterID: requesterID,
		Category:    category,
		Description: description,
		Status:      models.ServiceRequestOpen,
	}
	if err := models.ConformInput(req); err != nil {
		return nil, err
	}
	if req.Category == "" || req.Description == "" {
		return nil, errs.ErrBadRequest
	}
	if err := s.requestRepo.CreateRequest(req); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *serviceRequestService) ListOpenRequests(category string) ([]models.ServiceRequest, error) {
	return s.requestRepo.ListOpenRequests(category)
}

func (s *serviceRequestService) ListMyRequests(userID uuid.UUID) ([]models.ServiceRequest, error) {
	return s.requestRepo.ListRequestsByUser(userID)
}

// AcceptRequest matches an open request with a provider and opens the service
// conversation. The opening system message is visible only to the matched
// pair, so group observers of either party never see it.
func (s *serviceRequestService) AcceptRequest(requestID, providerID uuid.UUID) (*models.ServiceRequest, error) {
	req, err := s.requestRepo.GetRequest(requestID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	if req.RequesterID == providerID {
		return nil, errs.ErrBadRequest
	}
	if req.Status != models.ServiceRequestOpen {
		return nil, errs.ErrBadRequest
	}

	note := fmt.Sprintf("Service request accepted: %s", req.Description)
	conv, err := s.chatService.OpenServiceConversation(req.RequesterID, providerID, note)
	if err != nil {
		return nil, err
	}

	if err := s.requestRepo.MatchRequest(requestID, providerID, conv.ID); err != nil {
		// Another provider won the race. The conversation we opened is now
		// orphaned; log it and report the conflict.
		log.Printf("match lost for request %s, conversation %s orphaned", requestID, conv.ID)
		if err == gorm.ErrRecordNotFound {
			return nil, errs.ErrBadRequest
		}
		return nil, err
	}

	req.Status = models.ServiceRequestMatched
	req.ProviderID = providerID
	req.ConversationID = conv.ID
	return req, nil
}

func (s *serviceRequestService) CloseRequest(requestID, userID uuid.UUID) error {
	req, err := s.requestRepo.GetRequest(requestID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return errs.ErrNotFound
		}
		return err
	}
	if req.RequesterID != userID && req.ProviderID != userID {
		return errs.ErrPermissionDenied
	}
	return s.requestRepo.CloseRequest(requestID)
}
