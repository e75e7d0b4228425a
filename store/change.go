package store

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/its-tarun-2505/Trashure/models"
)

// Condition is what the stored request must look like for a write to apply.
type Condition struct {
	Status     models.Status
	Citizen    *primitive.ObjectID
	Collector  *primitive.ObjectID
	Unassigned bool
}

func (c Condition) filter(id primitive.ObjectID) bson.M {
	f := bson.M{"_id": id, "status": c.Status}
	if c.Citizen != nil {
		f["citizen"] = *c.Citizen
	}
	switch {
	case c.Collector != nil:
		f["collector"] = *c.Collector
	case c.Unassigned:
		f["collector"] = nil
	}
	return f
}

func (c Condition) matches(r *models.PickupRequest) bool {
	if r.Status != c.Status {
		return false
	}
	if c.Citizen != nil && r.Citizen != *c.Citizen {
		return false
	}
	if c.Collector != nil && !r.AssignedTo(*c.Collector) {
		return false
	}
	if c.Unassigned && r.Collector != nil {
		return false
	}
	return true
}

// Change is the effect of a transition. The timestamp field stamped with At
// depends on the target status.
type Change struct {
	Status            models.Status
	At                time.Time
	Collector         *primitive.ObjectID
	CompletionNotes   *string
	RejectionFeedback *string
	RejectedBy        *primitive.ObjectID
	CancelledBy       *primitive.ObjectID
}

// timestampFields maps a target status to the fields it stamps.
var timestampFields = map[models.Status][]string{
	models.StatusAccepted:          {"acceptedAt"},
	models.StatusOnTheWay:          {"onTheWayAt"},
	models.StatusCollected:         {"collectedAt"},
	models.StatusPendingCompletion: {"completionRequestedAt"},
	models.StatusCompleted:         {"completionApprovedAt", "completedAt"},
	models.StatusRejected:          {"rejectedAt"},
	models.StatusCancelled:         {"cancelledAt"},
}

func (c Change) setDoc() bson.M {
	set := bson.M{"status": c.Status, "updatedAt": c.At}
	for _, f := range timestampFields[c.Status] {
		set[f] = c.At
	}
	if c.Collector != nil {
		set["collector"] = *c.Collector
	}
	if c.CompletionNotes != nil {
		set["completionNotes"] = *c.CompletionNotes
	}
	if c.RejectionFeedback != nil {
		set["rejectionFeedback"] = *c.RejectionFeedback
	}
	if c.RejectedBy != nil {
		set["rejectedBy"] = *c.RejectedBy
	}
	if c.CancelledBy != nil {
		set["cancelledBy"] = *c.CancelledBy
	}
	return set
}

func (c Change) apply(r *models.PickupRequest) {
	at := c.At
	r.Status = c.Status
	r.UpdatedAt = at
	for _, f := range timestampFields[c.Status] {
		t := at
		switch f {
		case "acceptedAt":
			r.AcceptedAt = &t
		case "onTheWayAt":
			r.OnTheWayAt = &t
		case "collectedAt":
			r.CollectedAt = &t
		case "completionRequestedAt":
			r.CompletionRequestedAt = &t
		case "completionApprovedAt":
			r.CompletionApprovedAt = &t
		case "completedAt":
			r.CompletedAt = &t
		case "rejectedAt":
			r.RejectedAt = &t
		case "cancelledAt":
			r.CancelledAt = &t
		}
	}
	if c.Collector != nil {
		id := *c.Collector
		r.Collector = &id
	}
	if c.CompletionNotes != nil {
		r.CompletionNotes = *c.CompletionNotes
	}
	if c.RejectionFeedback != nil {
		r.RejectionFeedback = *c.RejectionFeedback
	}
	if c.RejectedBy != nil {
		id := *c.RejectedBy
		r.RejectedBy = &id
	}
	if c.CancelledBy != nil {
		id := *c.CancelledBy
		r.CancelledBy = &id
	}
}
