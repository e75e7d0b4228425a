package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/its-tarun-2505/Trashure/auth"
	"github.com/its-tarun-2505/Trashure/blob"
	"github.com/its-tarun-2505/Trashure/lifecycle"
	"github.com/its-tarun-2505/Trashure/logging"
	"github.com/its-tarun-2505/Trashure/models"
	"github.com/its-tarun-2505/Trashure/store"
	"github.com/its-tarun-2505/Trashure/utils/errors"
)

// Layouts accepted for scheduledAt, tried in order. The zone-less ones are
// read in the service's configured location.
var scheduleLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// RequestService drives pickup requests through their lifecycle. Every
// status change is a conditional write; the in-memory check before it only
// produces the precise error.
type RequestService struct {
	requests store.Requests
	notify   *NotificationService
	blobs    blob.Store
	log      logging.Logger
	loc      *time.Location
	now      func() time.Time
}

func NewRequestService(requests store.Requests, notify *NotificationService, blobs blob.Store, loc *time.Location, log logging.Logger) *RequestService {
	if loc == nil {
		loc = time.Local
	}
	return &RequestService{
		requests: requests,
		notify:   notify,
		blobs:    blobs,
		log:      log,
		loc:      loc,
		now:      time.Now,
	}
}

type CreateRequestInput struct {
	Category    string   `json:"category"`
	Address     string   `json:"address"`
	ScheduledAt string   `json:"scheduledAt"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Images      []string `json:"images"`
	Notes       string   `json:"notes"`
	Weight      *float64 `json:"weight"`
	Volume      *float64 `json:"volume"`
}

// ParseSchedule reads a scheduledAt value.
func (s *RequestService) ParseSchedule(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range scheduleLayouts {
		if t, err := time.ParseInLocation(layout, raw, s.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Validation("invalid scheduledAt")
}

// Create files a new pending request owned by the calling citizen.
func (s *RequestService) Create(ctx context.Context, p auth.Principal, in CreateRequestInput) (*models.PickupRequest, error) {
	if p.Role != models.RoleCitizen {
		return nil, errors.Forbidden("only citizens can create pickup requests")
	}
	address := strings.TrimSpace(in.Address)
	if in.Category == "" || address == "" || strings.TrimSpace(in.ScheduledAt) == "" {
		return nil, errors.Validation("category, address and scheduledAt are required")
	}
	if !models.ValidCategory(in.Category) {
		return nil, errors.Validation("unknown category " + in.Category)
	}
	scheduled, err := s.ParseSchedule(in.ScheduledAt)
	if err != nil {
		return nil, err
	}
	if in.Latitude != nil || in.Longitude != nil {
		if err := ValidateCoordinates(in.Latitude, in.Longitude); err != nil {
			return nil, err
		}
	}
	for _, v := range []*float64{in.Weight, in.Volume} {
		if v != nil && *v < 0 {
			return nil, errors.Validation("weight and volume must not be negative")
		}
	}

	images := make([]string, 0, len(in.Images))
	for _, raw := range in.Images {
		data, ct, err := blob.DecodeDataURL(raw)
		if err != nil {
			continue
		}
		url, err := s.blobs.Put(ctx, "requests/"+p.UserID.Hex(), data, ct)
		if err != nil {
			s.discard(ctx, images)
			return nil, errors.Wrap(err, "UPLOAD_ERROR", "failed to store image", http.StatusInternalServerError)
		}
		images = append(images, url)
	}

	now := s.now()
	r := &models.PickupRequest{
		Citizen:     p.UserID,
		Category:    in.Category,
		Address:     address,
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		ScheduledAt: scheduled,
		Status:      models.StatusPending,
		Images:      images,
		ProofImages: []string{},
		Notes:       strings.TrimSpace(in.Notes),
		Weight:      in.Weight,
		Volume:      in.Volume,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.requests.Create(ctx, r); err != nil {
		s.discard(ctx, images)
		return nil, errors.Wrap(err, "DB_ERROR", "failed to create request", http.StatusInternalServerError)
	}
	s.log.Info(ctx, "pickup request created", "request", r.ID.Hex(), "citizen", p.UserID.Hex())
	return r, nil
}

func (s *RequestService) load(ctx context.Context, id primitive.ObjectID) (*models.PickupRequest, error) {
	r, err := s.requests.FindByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return nil, errors.NotFound("pickup request not found")
		}
		return nil, errors.Wrap(err, "DB_ERROR", "failed to load request", http.StatusInternalServerError)
	}
	return r, nil
}

// guard loads the request and runs the rule's checks in order: existence,
// role, ownership, status.
func (s *RequestService) guard(ctx context.Context, p auth.Principal, id primitive.ObjectID, action lifecycle.Action) (*models.PickupRequest, lifecycle.Rule, error) {
	r, err := s.load(ctx, id)
	if err != nil {
		return nil, lifecycle.Rule{}, err
	}
	rule, ok := lifecycle.Lookup(action, p.Role)
	if !ok {
		return nil, lifecycle.Rule{}, errors.Forbidden(fmt.Sprintf("a %s cannot %s a request", p.Role, action))
	}
	if err := rule.Check(r, p.UserID, p.Role); err != nil {
		return nil, rule, err
	}
	return r, rule, nil
}

func condition(rule lifecycle.Rule, r *models.PickupRequest, actor primitive.ObjectID) store.Condition {
	cond := store.Condition{Status: r.Status}
	switch rule.Owner {
	case lifecycle.Unassigned:
		cond.Unassigned = true
	case lifecycle.OwnerCitizen:
		cond.Citizen = &actor
	case lifecycle.AssignedCollector:
		cond.Collector = &actor
	}
	return cond
}

// lost turns a failed conditional write into the error the caller would
// have got had it arrived a moment later.
func (s *RequestService) lost(ctx context.Context, p auth.Principal, id primitive.ObjectID, rule lifecycle.Rule) error {
	fresh, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := rule.Check(fresh, p.UserID, p.Role); err != nil {
		return err
	}
	return errors.InvalidTransition(string(fresh.Status), rule.Target())
}

func (s *RequestService) transition(ctx context.Context, p auth.Principal, id primitive.ObjectID, action lifecycle.Action, build func(*store.Change)) (*models.PickupRequest, error) {
	r, rule, err := s.guard(ctx, p, id, action)
	if err != nil {
		return nil, err
	}
	change := store.Change{Status: rule.To, At: s.now()}
	if build != nil {
		build(&change)
	}
	updated, err := s.requests.Transition(ctx, id, condition(rule, r, p.UserID), change)
	if err != nil {
		if stderrors.Is(err, store.ErrConditionFailed) {
			return nil, s.lost(ctx, p, id, rule)
		}
		return nil, errors.Wrap(err, "DB_ERROR", "failed to update request", http.StatusInternalServerError)
	}
	s.log.Info(ctx, "pickup request transitioned",
		"request", id.Hex(), "from", r.Status, "to", updated.Status, "actor", p.UserID.Hex())
	return updated, nil
}

// Accept assigns a pending request to the calling collector.
func (s *RequestService) Accept(ctx context.Context, p auth.Principal, id primitive.ObjectID) (*models.PickupRequest, error) {
	r, err := s.transition(ctx, p, id, lifecycle.ActionAccept, func(c *store.Change) {
		c.Collector = &p.UserID
	})
	if err != nil {
		return nil, err
	}
	s.notify.Emit(ctx, r.Citizen, "Pickup accepted",
		fmt.Sprintf("A collector accepted your %s pickup scheduled for %s.", r.Category, s.day(r.ScheduledAt)),
		models.NotificationTypePickup)
	return r, nil
}

// Statuses a collector may set through the status endpoint.
var collectorTargets = map[models.Status]lifecycle.Action{
	models.StatusOnTheWay:  lifecycle.ActionStartRoute,
	models.StatusCollected: lifecycle.ActionCollect,
	models.StatusCancelled: lifecycle.ActionCancel,
}

// Advance moves an assigned request to on-the-way, collected or cancelled.
func (s *RequestService) Advance(ctx context.Context, p auth.Principal, id primitive.ObjectID, target string) (*models.PickupRequest, error) {
	to := models.Status(strings.TrimSpace(target))
	action, ok := collectorTargets[to]
	if !ok {
		return nil, errors.Validation("status must be one of on-the-way, collected, cancelled")
	}
	r, err := s.transition(ctx, p, id, action, func(c *store.Change) {
		if to == models.StatusCancelled {
			c.CancelledBy = &p.UserID
		}
	})
	if err != nil {
		return nil, err
	}
	switch to {
	case models.StatusOnTheWay:
		s.notify.Emit(ctx, r.Citizen, "Collector on the way",
			fmt.Sprintf("Your collector is on the way for the %s pickup at %s.", r.Category, r.Address),
			models.NotificationTypePickup)
	case models.StatusCollected:
		s.notify.Emit(ctx, r.Citizen, "Waste collected",
			fmt.Sprintf("Your %s has been collected.", r.Category), models.NotificationTypeSuccess)
	case models.StatusCancelled:
		s.notify.Emit(ctx, r.Citizen, "Pickup cancelled",
			fmt.Sprintf("The collector cancelled your %s pickup.", r.Category), models.NotificationTypeWarning)
	}
	return r, nil
}

// RequestCompletion asks the citizen to confirm a collected pickup.
func (s *RequestService) RequestCompletion(ctx context.Context, p auth.Principal, id primitive.ObjectID, notes string) (*models.PickupRequest, error) {
	notes = strings.TrimSpace(notes)
	r, err := s.transition(ctx, p, id, lifecycle.ActionRequestCompletion, func(c *store.Change) {
		c.CompletionNotes = &notes
	})
	if err != nil {
		return nil, err
	}
	s.notify.Emit(ctx, r.Citizen, "Completion requested",
		fmt.Sprintf("Your collector marked the %s pickup as done. Please review and approve it.", r.Category),
		models.NotificationTypeInfo)
	return r, nil
}

// Approve completes a request awaiting the citizen's confirmation.
func (s *RequestService) Approve(ctx context.Context, p auth.Principal, id primitive.ObjectID) (*models.PickupRequest, error) {
	r, err := s.transition(ctx, p, id, lifecycle.ActionApprove, nil)
	if err != nil {
		return nil, err
	}
	if r.Collector != nil {
		s.notify.Emit(ctx, *r.Collector, "Completion approved",
			fmt.Sprintf("The citizen approved the %s pickup at %s.", r.Category, r.Address),
			models.NotificationTypeSuccess)
	}
	return r, nil
}

// Reject refuses a completion. The request ends in rejected.
func (s *RequestService) Reject(ctx context.Context, p auth.Principal, id primitive.ObjectID, feedback string) (*models.PickupRequest, error) {
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return nil, errors.Validation("feedback is required")
	}
	r, err := s.transition(ctx, p, id, lifecycle.ActionReject, func(c *store.Change) {
		c.RejectionFeedback = &feedback
		c.RejectedBy = &p.UserID
	})
	if err != nil {
		return nil, err
	}
	if r.Collector != nil {
		s.notify.Emit(ctx, *r.Collector, "Completion rejected",
			fmt.Sprintf("The citizen rejected the %s pickup: %s", r.Category, feedback),
			models.NotificationTypeWarning)
	}
	return r, nil
}

// Cancel withdraws a request before completion is requested. Citizens
// cancel their own; collectors the ones assigned to them.
func (s *RequestService) Cancel(ctx context.Context, p auth.Principal, id primitive.ObjectID) (*models.PickupRequest, error) {
	r, err := s.transition(ctx, p, id, lifecycle.ActionCancel, func(c *store.Change) {
		c.CancelledBy = &p.UserID
	})
	if err != nil {
		return nil, err
	}
	switch {
	case p.Role == models.RoleCitizen && r.Collector != nil:
		s.notify.Emit(ctx, *r.Collector, "Pickup cancelled",
			fmt.Sprintf("The citizen cancelled the %s pickup at %s.", r.Category, r.Address),
			models.NotificationTypeWarning)
	case p.Role == models.RoleCollector:
		s.notify.Emit(ctx, r.Citizen, "Pickup cancelled",
			fmt.Sprintf("The collector cancelled your %s pickup.", r.Category), models.NotificationTypeWarning)
	}
	return r, nil
}

// UploadProof stores proof images for a collected request and appends
// their URLs. The status does not change.
func (s *RequestService) UploadProof(ctx context.Context, p auth.Principal, id primitive.ObjectID, uploads []Upload) (*models.PickupRequest, error) {
	files := make([]Upload, 0, len(uploads))
	for _, u := range uploads {
		if len(u.Data) > 0 {
			files = append(files, u)
		}
	}
	if len(files) == 0 {
		return nil, errors.Validation("at least one proof image is required")
	}
	r, rule, err := s.guard(ctx, p, id, lifecycle.ActionUploadProof)
	if err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(files))
	for _, f := range files {
		url, err := s.blobs.Put(ctx, "proofs/"+id.Hex(), f.Data, f.ContentType)
		if err != nil {
			return nil, errors.Wrap(err, "UPLOAD_ERROR", "failed to store proof image", http.StatusInternalServerError)
		}
		urls = append(urls, url)
	}

	updated, err := s.requests.AppendProof(ctx, id, condition(rule, r, p.UserID), urls, s.now())
	if err != nil {
		s.discard(ctx, urls)
		if stderrors.Is(err, store.ErrConditionFailed) {
			return nil, s.lost(ctx, p, id, rule)
		}
		return nil, errors.Wrap(err, "DB_ERROR", "failed to save proof images", http.StatusInternalServerError)
	}
	s.log.Info(ctx, "proof uploaded", "request", id.Hex(), "images", len(urls))
	return updated, nil
}

// discard removes blobs that never made it onto a request.
func (s *RequestService) discard(ctx context.Context, urls []string) {
	for _, u := range urls {
		if err := s.blobs.Delete(ctx, u); err != nil {
			s.log.Warn(ctx, "orphaned blob not removed", "url", u, "error", err)
		}
	}
}

func (s *RequestService) day(t time.Time) string {
	return t.In(s.loc).Format("Jan 2, 2006 15:04")
}
