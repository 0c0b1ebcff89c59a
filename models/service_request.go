package models

import "github.com/google/uuid"

// Service request lifecycle.
const (
	ServiceRequestOpen    = "open"
	ServiceRequestMatched = "matched"
	ServiceRequestClosed  = "closed"
)

// ServiceRequest is a marketplace-style request posted by a user. Matching it
// with a provider opens a service conversation between the two.
type ServiceRequest struct {
	Model
	RequesterID    uuid.UUID `json:"requester_id" gorm:"type:uuid;not null;index"`
	Category       string    `json:"category" binding:"required" conform:"trim,lower"`
	Description    string    `json:"description" binding:"required" conform:"trim"`
	Status         string    `json:"status" gorm:"default:open"`
	ProviderID     uuid.UUID `json:"provider_id,omitempty" gorm:"type:uuid"`
	ConversationID uuid.UUID `json:"conversation_id,omitempty" gorm:"type:uuid"`
}
