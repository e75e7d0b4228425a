package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/its-tarun-2505/Trashure/auth"
	"github.com/its-tarun-2505/Trashure/blob"
	"github.com/its-tarun-2505/Trashure/cache"
	"github.com/its-tarun-2505/Trashure/logging"
	"github.com/its-tarun-2505/Trashure/models"
	"github.com/its-tarun-2505/Trashure/store"
)

type fixture struct {
	store    *store.Memory
	blobs    *blob.Memory
	codec    *auth.Codec
	auth     *AuthService
	users    *UserService
	notify   *NotificationService
	requests *RequestService
	queries  *QueryService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logging.Discard()
	st := store.NewMemory()
	blobs := blob.NewMemory("http://files.test")
	codec := auth.NewCodec("test-secret", time.Hour)

	fx := &fixture{store: st, blobs: blobs, codec: codec}
	fx.auth = NewAuthService(st.Users(), cache.Noop{}, codec, log).WithHashCost(bcrypt.MinCost)
	fx.users = NewUserService(st.Users(), cache.Noop{}, blobs, log)
	fx.notify = NewNotificationService(st.Notifications(), log)
	fx.requests = NewRequestService(st.Requests(), fx.notify, blobs, time.UTC, log)
	fx.queries = NewQueryService(st.Requests(), fx.users, time.UTC)
	return fx
}

func (fx *fixture) user(t *testing.T, role models.Role, name string, lat, lng *float64) auth.Principal {
	t.Helper()
	u := &models.User{
		Role:      role,
		Name:      name,
		Email:     primitive.NewObjectID().Hex() + "@example.com",
		Phone:     "5551234567",
		Address:   name + "'s place",
		Latitude:  lat,
		Longitude: lng,
	}
	require.NoError(t, fx.store.Users().Create(context.Background(), u))
	return auth.Principal{UserID: u.ID, Role: role, Email: u.Email}
}

func (fx *fixture) citizen(t *testing.T) auth.Principal {
	return fx.user(t, models.RoleCitizen, "Citizen", nil, nil)
}

func (fx *fixture) collector(t *testing.T) auth.Principal {
	return fx.user(t, models.RoleCollector, "Collector", f(0), f(0))
}

func (fx *fixture) create(t *testing.T, p auth.Principal, in CreateRequestInput) *models.PickupRequest {
	t.Helper()
	if in.Category == "" {
		in.Category = "Recyclables"
	}
	if in.Address == "" {
		in.Address = "12 Elm St"
	}
	if in.ScheduledAt == "" {
		in.ScheduledAt = "2025-01-01T10:00"
	}
	r, err := fx.requests.Create(context.Background(), p, in)
	require.NoError(t, err)
	return r
}

// walk drives a fresh request along the happy path up to status.
func (fx *fixture) walk(t *testing.T, citizen, collector auth.Principal, to models.Status) *models.PickupRequest {
	t.Helper()
	ctx := context.Background()
	r := fx.create(t, citizen, CreateRequestInput{})
	var err error
	steps := []func() (*models.PickupRequest, error){
		func() (*models.PickupRequest, error) { return fx.requests.Accept(ctx, collector, r.ID) },
		func() (*models.PickupRequest, error) { return fx.requests.Advance(ctx, collector, r.ID, "on-the-way") },
		func() (*models.PickupRequest, error) { return fx.requests.Advance(ctx, collector, r.ID, "collected") },
		func() (*models.PickupRequest, error) { return fx.requests.RequestCompletion(ctx, collector, r.ID, "done") },
		func() (*models.PickupRequest, error) { return fx.requests.Approve(ctx, citizen, r.ID) },
	}
	for _, step := range steps {
		if r.Status == to {
			return r
		}
		r, err = step()
		require.NoError(t, err)
	}
	require.Equal(t, to, r.Status)
	return r
}

type failingNotifications struct{}

func (failingNotifications) Append(context.Context, *models.Notification) error {
	return errors.New("disk full")
}

func (failingNotifications) ListByUser(context.Context, primitive.ObjectID) ([]models.Notification, error) {
	return nil, errors.New("disk full")
}
