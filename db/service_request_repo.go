package db

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/techagentng/achat/models"
	"gorm.io/gorm"
)

type ServiceRequestRepository interface {
	CreateRequest(req *models.ServiceRequest) error
	GetRequest(id uuid.UUID) (*models.ServiceRequest, error)
	ListOpenRequests(category string) ([]models.ServiceRequest, error)
	ListRequestsByUser(userID uuid.UUID) ([]models.ServiceRequest, error)
	MatchRequest(id, providerID, conversationID uuid.UUID) error
	CloseRequest(id uuid.UUID) error
}

type serviceRequestRepo struct {
	DB *gorm.DB
}

func NewServiceRequestRepo(db *GormDB) ServiceRequestRepository {
	return &serviceRequestRepo{db.DB}
}

func (s *serviceRequestRepo) CreateRequest(req *models.ServiceRequest) error {
	if err := s.DB.Create(req).Error; err != nil {
		return errors.Wrap(err, "failed to create service request")
	}
	return nil
}

func (s *serviceRequestRepo) GetRequest(id uuid.UUID) (*models.ServiceRequest, error) {
	var req models.ServiceRequest
	if err := s.DB.First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (s *serviceRequestRepo) ListOpenRequests(category string) ([]models.ServiceRequest, error) {
	var reqs []models.ServiceRequest
	q := s.DB.Where("status = ?", models.ServiceRequestOpen)
	if category != "" {
		q = q.Where("category = ?", category)
	}
	if err := q.Order("created_at DESC").Find(&reqs).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list open requests")
	}
	return reqs, nil
}

func (s *serviceRequestRepo) ListRequestsByUser(userID uuid.UUID) ([]models.ServiceRequest, error) {
	var reqs []models.ServiceRequest
	err := s.DB.Where("requester_id = ? OR provider_id = ?", userID, userID).
		Order("created_at DESC").Find(&reqs).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list user requests")
	}
	return reqs, nil
}

// MatchRequest transitions open → matched. The guard on status keeps two
// concurrent providers from matching the same request.
func (s *serviceRequestRepo) MatchRequest(id, providerID, conversationID uuid.UUID) error {
	res := s.DB.Model(&models.ServiceRequest{}).
		Where("id = ? AND status = ?", id, models.ServiceRequestOpen).
		Updates(map[string]interface{}{
			"status":          models.ServiceRequestMatched,
			"provider_id":     providerID,
			"conversation_id": conversationID,
		})
	if res.Error != nil {
		return errors.Wrap(res.Error, "failed to match request")
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *serviceRequestRepo) CloseRequest(id uuid.UUID) error {
	err := s.DB.Model(&models.ServiceRequest{}).Where("id = ?", id).
		Update("status", models.ServiceRequestClosed).Error
	if err != nil {
		return errors.Wrap(err, "failed to close request")
	}
	return nil
}
