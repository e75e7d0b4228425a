package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Categories accepted for new pickup requests.
var Categories = []string{
	"General Waste",
	"Recyclables",
	"Organic Waste",
	"Electronic Waste",
	"Hazardous Waste",
	"Mixed Waste",
}

// ValidCategory reports whether c is a known waste category.
func ValidCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

type PickupRequest struct {
	ID        primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	Citizen   primitive.ObjectID  `json:"citizen" bson:"citizen"`
	Collector *primitive.ObjectID `json:"collector,omitempty" bson:"collector,omitempty"`
	Category  string              `json:"category" bson:"category"`
	Address   string              `json:"address" bson:"address"`
	Latitude  *float64            `json:"latitude,omitempty" bson:"latitude,omitempty"`
	Longitude *float64            `json:"longitude,omitempty" bson:"longitude,omitempty"`

	ScheduledAt time.Time `json:"scheduledAt" bson:"scheduledAt"`
	Status      Status    `json:"status" bson:"status"`

	AcceptedAt            *time.Time `json:"acceptedAt,omitempty" bson:"acceptedAt,omitempty"`
	OnTheWayAt            *time.Time `json:"onTheWayAt,omitempty" bson:"onTheWayAt,omitempty"`
	CollectedAt           *time.Time `json:"collectedAt,omitempty" bson:"collectedAt,omitempty"`
	CompletionRequestedAt *time.Time `json:"completionRequestedAt,omitempty" bson:"completionRequestedAt,omitempty"`
	CompletionApprovedAt  *time.Time `json:"completionApprovedAt,omitempty" bson:"completionApprovedAt,omitempty"`
	CompletedAt           *time.Time `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
	RejectedAt            *time.Time `json:"rejectedAt,omitempty" bson:"rejectedAt,omitempty"`
	CancelledAt           *time.Time `json:"cancelledAt,omitempty" bson:"cancelledAt,omitempty"`

	RejectedBy  *primitive.ObjectID `json:"rejectedBy,omitempty" bson:"rejectedBy,omitempty"`
	CancelledBy *primitive.ObjectID `json:"cancelledBy,omitempty" bson:"cancelledBy,omitempty"`

	Images      []string `json:"images" bson:"images"`
	ProofImages []string `json:"proofImages" bson:"proofImages"`

	Notes             string   `json:"notes,omitempty" bson:"notes,omitempty"`
	Weight            *float64 `json:"weight,omitempty" bson:"weight,omitempty"`
	Volume            *float64 `json:"volume,omitempty" bson:"volume,omitempty"`
	CompletionNotes   string   `json:"completionNotes,omitempty" bson:"completionNotes,omitempty"`
	RejectionFeedback string   `json:"rejectionFeedback,omitempty" bson:"rejectionFeedback,omitempty"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// HasLocation reports whether both coordinates are set.
func (r *PickupRequest) HasLocation() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// OwnedBy reports whether userID created the request.
func (r *PickupRequest) OwnedBy(userID primitive.ObjectID) bool {
	return r.Citizen == userID
}

// AssignedTo reports whether userID is the accepting collector.
func (r *PickupRequest) AssignedTo(userID primitive.ObjectID) bool {
	return r.Collector != nil && *r.Collector == userID
}
