package services

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "github.com/techagentng/achat/errors"
	"github.com/techagentng/achat/models"
	"gorm.io/gorm"
)

type fakeServiceRequestRepo struct {
	mu   sync.Mutex
	reqs map[uuid.UUID]*models.ServiceRequest
}

func newFakeServiceRequestRepo() *fakeServiceRequestRepo {
	return &fakeServiceRequestRepo{reqs: make(map[uuid.UUID]*models.ServiceRequest)}
}

func (f *fakeServiceRequestRepo) CreateRequest(req *models.ServiceRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	f.reqs[req.ID] = req
	return nil
}

func (f *fakeServiceRequestRepo) GetRequest(id uuid.UUID) (*models.ServiceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.reqs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *req
	return &copied, nil
}

func (f *fakeServiceRequestRepo) ListOpenRequests(category string) ([]models.ServiceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ServiceRequest
	for _, req := range f.reqs {
		if req.Status != models.ServiceRequestOpen {
			continue
		}
		if category != "" && req.Category != category {
			continue
		}
		out = append(out, *req)
	}
	return out, nil
}

func (f *fakeServiceRequestRepo) ListRequestsByUser(userID uuid.UUID) ([]models.ServiceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ServiceRequest
	for _, req := range f.reqs {
		if req.RequesterID == userID || req.ProviderID == userID {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (f *fakeServiceRequestRepo) MatchRequest(id, providerID, conversationID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.reqs[id]
	if !ok || req.Status != models.ServiceRequestOpen {
		return gorm.ErrRecordNotFound
	}
	req.Status = models.ServiceRequestMatched
	req.ProviderID = providerID
	req.ConversationID = conversationID
	return nil
}

func (f *fakeServiceRequestRepo) CloseRequest(id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.reqs[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	req.Status = models.ServiceRequestClosed
	return nil
}

func newServiceRequestHarness(t *testing.T) (*chatHarness, *fakeServiceRequestRepo, ServiceRequestService) {
	t.Helper()
	h := newChatHarness(t)
	repo := newFakeServiceRequestRepo()
	svc := NewServiceRequestService(repo, h.svc)
	return h, repo, svc
}

func TestAcceptRequestOpensServiceConversation(t *testing.T) {
	h, _, svc := newServiceRequestHarness(t)

	req, err := svc.CreateRequest(h.alice.ID, "Plumbing", "fix my sink")
	require.NoError(t, err)
	assert.Equal(t, "plumbing", req.Category)

	matched, err := svc.AcceptRequest(req.ID, h.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ServiceRequestMatched, matched.Status)
	assert.Equal(t, h.bob.ID, matched.ProviderID)
	require.NotEqual(t, uuid.Nil, matched.ConversationID)

	conv, err := h.chatRepo.GetConversation(matched.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, models.ConversationService, conv.Kind)
	assert.True(t, conv.HasParticipant(h.alice.ID))
	assert.True(t, conv.HasParticipant(h.bob.ID))

	msgs, err := h.svc.GetMessages(matched.ConversationID, h.bob.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.MessageSystem, msgs[0].Kind)
	assert.Contains(t, msgs[0].Text, "fix my sink")
}

func TestAcceptRequestRejectsOwnRequest(t *testing.T) {
	h, _, svc := newServiceRequestHarness(t)

	req, err := svc.CreateRequest(h.alice.ID, "plumbing", "fix my sink")
	require.NoError(t, err)

	_, err = svc.AcceptRequest(req.ID, h.alice.ID)
	assert.ErrorIs(t, err, errs.ErrBadRequest)
}

func TestAcceptRequestOnlyMatchesOnce(t *testing.T) {
	h, _, svc := newServiceRequestHarness(t)

	req, err := svc.CreateRequest(h.alice.ID, "plumbing", "fix my sink")
	require.NoError(t, err)

	_, err = svc.AcceptRequest(req.ID, h.bob.ID)
	require.NoError(t, err)

	_, err = svc.AcceptRequest(req.ID, h.carol.ID)
	assert.ErrorIs(t, err, errs.ErrBadRequest)
}

func TestCreateRequestValidatesInput(t *testing.T) {
	h, _, svc := newServiceRequestHarness(t)

	_, err := svc.CreateRequest(h.alice.ID, "  ", "")
	assert.ErrorIs(t, err, errs.ErrBadRequest)
}

func TestCloseRequestRequiresParty(t *testing.T) {
	h, repo, svc := newServiceRequestHarness(t)

	req, err := svc.CreateRequest(h.alice.ID, "plumbing", "fix my sink")
	require.NoError(t, err)

	err = svc.CloseRequest(req.ID, h.carol.ID)
	assert.ErrorIs(t, err, errs.ErrPermissionDenied)

	require.NoError(t, svc.CloseRequest(req.ID, h.alice.ID))
	stored, err := repo.GetRequest(req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ServiceRequestClosed, stored.Status)
}
