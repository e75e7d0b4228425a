package services

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/its-tarun-2505/Trashure/models"
	"github.com/its-tarun-2505/Trashure/store"
	"github.com/its-tarun-2505/Trashure/utils/errors"
)

// Date bucket names accepted by ListFilter.Date.
const (
	DateToday    = "today"
	DateTomorrow = "tomorrow"
	DateThisWeek = "this-week"
	DateNextWeek = "next-week"
)

// ListFilter narrows a role-scoped listing. Empty fields and "all" do not
// filter.
type ListFilter struct {
	Status    string
	Date      string
	Category  string
	Search    string
	Proximity []ProximityBucket
}

// RequestView is a pickup request with the parties' contact details and,
// for collectors, the distance to it.
type RequestView struct {
	models.PickupRequest
	CitizenInfo   *models.UserSummary `json:"citizenInfo,omitempty"`
	CollectorInfo *models.UserSummary `json:"collectorInfo,omitempty"`
	Distance      *float64            `json:"distance"`
}

// QueryService answers read-only questions scoped to the caller. Scoping is
// part of the store query, so nothing outside the caller's reach is loaded.
type QueryService struct {
	requests store.Requests
	users    *UserService
	loc      *time.Location
	now      func() time.Time
}

func NewQueryService(requests store.Requests, users *UserService, loc *time.Location) *QueryService {
	if loc == nil {
		loc = time.Local
	}
	return &QueryService{requests: requests, users: users, loc: loc, now: time.Now}
}

// DateWindow returns the [from, to) range of a date bucket anchored at
// local midnight. Weeks start on Sunday.
func DateWindow(bucket string, now time.Time, loc *time.Location) (time.Time, time.Time, bool) {
	n := now.In(loc)
	day := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc)
	wd := int(day.Weekday())
	switch bucket {
	case DateToday:
		return day, day.AddDate(0, 0, 1), true
	case DateTomorrow:
		return day.AddDate(0, 0, 1), day.AddDate(0, 0, 2), true
	case DateThisWeek:
		return day.AddDate(0, 0, -wd), day.AddDate(0, 0, 7-wd), true
	case DateNextWeek:
		return day.AddDate(0, 0, 7-wd), day.AddDate(0, 0, 14-wd), true
	}
	return time.Time{}, time.Time{}, false
}

func active(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && !strings.EqualFold(v, "all")
}

func (s *QueryService) baseQuery(f ListFilter) store.RequestQuery {
	var q store.RequestQuery
	if active(f.Status) {
		q.Statuses = []models.Status{models.Status(strings.TrimSpace(f.Status))}
	}
	if active(f.Category) {
		q.Category = strings.TrimSpace(f.Category)
	}
	if from, to, ok := DateWindow(strings.TrimSpace(f.Date), s.now(), s.loc); ok {
		q.From, q.To = &from, &to
	}
	return q
}

func (s *QueryService) run(ctx context.Context, q store.RequestQuery) ([]models.PickupRequest, error) {
	list, err := s.requests.Find(ctx, q)
	if err != nil {
		return nil, errors.Wrap(err, "DB_ERROR", "failed to load requests", http.StatusInternalServerError)
	}
	return list, nil
}

// views attaches user summaries and, when from is set, the distance from
// that user. Search is applied afterwards since it covers the citizen name.
func (s *QueryService) views(ctx context.Context, list []models.PickupRequest, from *models.User, f ListFilter) ([]RequestView, error) {
	ids := make([]primitive.ObjectID, 0, len(list)*2)
	for i := range list {
		ids = append(ids, list[i].Citizen)
		if list[i].Collector != nil {
			ids = append(ids, *list[i].Collector)
		}
	}
	users, err := s.users.Lookup(ctx, ids)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]RequestView, 0, len(list))
	for _, r := range list {
		v := RequestView{PickupRequest: r}
		citizen := users[r.Citizen]
		v.CitizenInfo = citizen.Summary()
		if r.Collector != nil {
			v.CollectorInfo = users[*r.Collector].Summary()
		}
		if needle != "" && !matchesSearch(needle, citizen, &r) {
			continue
		}
		if from != nil {
			v.Distance = DistanceKm(from.Latitude, from.Longitude, r.Latitude, r.Longitude)
			if !InAnyBucket(v.Distance, f.Proximity) {
				continue
			}
		}
		out = append(out, v)
	}
	return out, nil
}

func matchesSearch(needle string, citizen *models.User, r *models.PickupRequest) bool {
	if strings.Contains(strings.ToLower(r.Address), needle) {
		return true
	}
	return citizen != nil && strings.Contains(strings.ToLower(citizen.Name), needle)
}

// ListForCitizen returns the citizen's own requests, newest first.
func (s *QueryService) ListForCitizen(ctx context.Context, citizenID primitive.ObjectID, f ListFilter) ([]RequestView, error) {
	q := s.baseQuery(f)
	q.Citizen = &citizenID
	q.SortBy = store.SortCreatedAt
	list, err := s.run(ctx, q)
	if err != nil {
		return nil, err
	}
	f.Proximity = nil
	return s.views(ctx, list, nil, f)
}

// ListForCollector returns requests assigned to the collector, latest
// schedule first.
func (s *QueryService) ListForCollector(ctx context.Context, collectorID primitive.ObjectID, f ListFilter) ([]RequestView, error) {
	collector, err := s.users.GetUser(ctx, collectorID)
	if err != nil {
		return nil, err
	}
	q := s.baseQuery(f)
	q.Collector = &collectorID
	q.SortBy = store.SortScheduledAt
	list, err := s.run(ctx, q)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, list, collector, f)
}

// ListOpenForCollector returns pending, unassigned requests with their
// distance from the collector. The status filter does not apply.
func (s *QueryService) ListOpenForCollector(ctx context.Context, collectorID primitive.ObjectID, f ListFilter) ([]RequestView, error) {
	collector, err := s.users.GetUser(ctx, collectorID)
	if err != nil {
		return nil, err
	}
	f.Status = ""
	q := s.baseQuery(f)
	q.Statuses = []models.Status{models.StatusPending}
	q.Unassigned = true
	q.SortBy = store.SortCreatedAt
	list, err := s.run(ctx, q)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, list, collector, f)
}

func (s *QueryService) one(ctx context.Context, id primitive.ObjectID, visible func(*models.PickupRequest) bool) (*models.PickupRequest, error) {
	r, err := s.requests.FindByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return nil, errors.NotFound("pickup request not found")
		}
		return nil, errors.Wrap(err, "DB_ERROR", "failed to load request", http.StatusInternalServerError)
	}
	if !visible(r) {
		return nil, errors.NotFound("pickup request not found")
	}
	return r, nil
}

// GetForCitizen returns one of the citizen's requests.
func (s *QueryService) GetForCitizen(ctx context.Context, citizenID, id primitive.ObjectID) (*RequestView, error) {
	r, err := s.one(ctx, id, func(r *models.PickupRequest) bool { return r.OwnedBy(citizenID) })
	if err != nil {
		return nil, err
	}
	views, err := s.views(ctx, []models.PickupRequest{*r}, nil, ListFilter{})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// GetForCollector returns a request assigned to the collector.
func (s *QueryService) GetForCollector(ctx context.Context, collectorID, id primitive.ObjectID) (*RequestView, error) {
	r, err := s.one(ctx, id, func(r *models.PickupRequest) bool { return r.AssignedTo(collectorID) })
	if err != nil {
		return nil, err
	}
	collector, err := s.users.GetUser(ctx, collectorID)
	if err != nil {
		return nil, err
	}
	views, err := s.views(ctx, []models.PickupRequest{*r}, collector, ListFilter{})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}
