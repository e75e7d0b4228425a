package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/its-tarun-2505/Trashure/models"
)

// Memory is a process-local Store used by tests and STORE_DRIVER=memory.
// A single mutex serializes writes, which makes Transition atomic.
type Memory struct {
	mu            sync.RWMutex
	users         map[primitive.ObjectID]*models.User
	requests      map[primitive.ObjectID]*models.PickupRequest
	notifications []models.Notification
	closed        bool
}

func NewMemory() *Memory {
	return &Memory{
		users:    make(map[primitive.ObjectID]*models.User),
		requests: make(map[primitive.ObjectID]*models.PickupRequest),
	}
}

func (m *Memory) Users() Users                 { return memUsers{m} }
func (m *Memory) Requests() Requests           { return memRequests{m} }
func (m *Memory) Notifications() Notifications { return memNotifications{m} }

// Ping fails once the store has been closed.
func (m *Memory) Ping(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

func (m *Memory) Close(context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

type memUsers struct{ m *Memory }

func (s memUsers) Create(_ context.Context, u *models.User) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, existing := range s.m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrDuplicate
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	s.m.users[u.ID] = cloneUser(u)
	return nil
}

func (s memUsers) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	u, ok := s.m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

func (s memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	for _, u := range s.m.users {
		if strings.EqualFold(u.Email, email) {
			return cloneUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (s memUsers) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	out := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.m.users[id]; ok {
			out = append(out, *cloneUser(u))
		}
	}
	return out, nil
}

func (s memUsers) Update(_ context.Context, id primitive.ObjectID, upd UserUpdate) (*models.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u, ok := s.m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.Email != "" && !strings.EqualFold(upd.Email, u.Email) {
		for _, other := range s.m.users {
			if other.ID != id && strings.EqualFold(other.Email, upd.Email) {
				return nil, ErrDuplicate
			}
		}
	}
	setIf(&u.Name, upd.Name)
	setIf(&u.Email, upd.Email)
	setIf(&u.Phone, upd.Phone)
	setIf(&u.Address, upd.Address)
	setIf(&u.PhotoURL, upd.PhotoURL)
	u.UpdatedAt = upd.At
	return cloneUser(u), nil
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

type memRequests struct{ m *Memory }

func (s memRequests) Create(_ context.Context, r *models.PickupRequest) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	if r.Images == nil {
		r.Images = []string{}
	}
	if r.ProofImages == nil {
		r.ProofImages = []string{}
	}
	s.m.requests[r.ID] = cloneRequest(r)
	return nil
}

func (s memRequests) FindByID(_ context.Context, id primitive.ObjectID) (*models.PickupRequest, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	r, ok := s.m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRequest(r), nil
}

func (s memRequests) Find(_ context.Context, q RequestQuery) ([]models.PickupRequest, error) {
	s.m.mu.RLock()
	out := make([]models.PickupRequest, 0)
	for _, r := range s.m.requests {
		if q.matches(r) {
			out = append(out, *cloneRequest(r))
		}
	}
	s.m.mu.RUnlock()

	key := func(r *models.PickupRequest) time.Time { return r.CreatedAt }
	if q.SortBy == SortScheduledAt {
		key = func(r *models.PickupRequest) time.Time { return r.ScheduledAt }
	}
	sort.SliceStable(out, func(i, j int) bool {
		ki, kj := key(&out[i]), key(&out[j])
		if ki.Equal(kj) {
			return out[i].ID.Hex() > out[j].ID.Hex()
		}
		return ki.After(kj)
	})
	return out, nil
}

func (q RequestQuery) matches(r *models.PickupRequest) bool {
	if q.Citizen != nil && r.Citizen != *q.Citizen {
		return false
	}
	if q.Collector != nil && !r.AssignedTo(*q.Collector) {
		return false
	}
	if q.Unassigned && r.Collector != nil {
		return false
	}
	if len(q.Statuses) > 0 {
		found := false
		for _, st := range q.Statuses {
			if r.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.Category != "" && r.Category != q.Category {
		return false
	}
	if q.From != nil && r.ScheduledAt.Before(*q.From) {
		return false
	}
	if q.To != nil && !r.ScheduledAt.Before(*q.To) {
		return false
	}
	return true
}

func (s memRequests) Transition(_ context.Context, id primitive.ObjectID, cond Condition, change Change) (*models.PickupRequest, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	r, ok := s.m.requests[id]
	if !ok || !cond.matches(r) {
		return nil, ErrConditionFailed
	}
	change.apply(r)
	return cloneRequest(r), nil
}

func (s memRequests) AppendProof(_ context.Context, id primitive.ObjectID, cond Condition, images []string, at time.Time) (*models.PickupRequest, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	r, ok := s.m.requests[id]
	if !ok || !cond.matches(r) {
		return nil, ErrConditionFailed
	}
	r.ProofImages = append(r.ProofImages, images...)
	r.UpdatedAt = at
	return cloneRequest(r), nil
}

type memNotifications struct{ m *Memory }

func (s memNotifications) Append(_ context.Context, n *models.Notification) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	s.m.notifications = append(s.m.notifications, *n)
	return nil
}

func (s memNotifications) ListByUser(_ context.Context, userID primitive.ObjectID) ([]models.Notification, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	out := make([]models.Notification, 0)
	// Walk backwards so equal timestamps still come out newest first.
	for i := len(s.m.notifications) - 1; i >= 0; i-- {
		if n := s.m.notifications[i]; n.User == userID {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.Latitude = cloneFloat(u.Latitude)
	c.Longitude = cloneFloat(u.Longitude)
	return &c
}

func cloneRequest(r *models.PickupRequest) *models.PickupRequest {
	c := *r
	c.Collector = cloneID(r.Collector)
	c.RejectedBy = cloneID(r.RejectedBy)
	c.CancelledBy = cloneID(r.CancelledBy)
	c.Latitude = cloneFloat(r.Latitude)
	c.Longitude = cloneFloat(r.Longitude)
	c.Weight = cloneFloat(r.Weight)
	c.Volume = cloneFloat(r.Volume)
	c.AcceptedAt = cloneTime(r.AcceptedAt)
	c.OnTheWayAt = cloneTime(r.OnTheWayAt)
	c.CollectedAt = cloneTime(r.CollectedAt)
	c.CompletionRequestedAt = cloneTime(r.CompletionRequestedAt)
	c.CompletionApprovedAt = cloneTime(r.CompletionApprovedAt)
	c.CompletedAt = cloneTime(r.CompletedAt)
	c.RejectedAt = cloneTime(r.RejectedAt)
	c.CancelledAt = cloneTime(r.CancelledAt)
	c.Images = cloneStrings(r.Images)
	c.ProofImages = cloneStrings(r.ProofImages)
	return &c
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneID(p *primitive.ObjectID) *primitive.ObjectID {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
