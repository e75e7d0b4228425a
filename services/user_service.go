package services

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/its-tarun-2505/Trashure/blob"
	"github.com/its-tarun-2505/Trashure/cache"
	"github.com/its-tarun-2505/Trashure/logging"
	"github.com/its-tarun-2505/Trashure/models"
	"github.com/its-tarun-2505/Trashure/store"
	"github.com/its-tarun-2505/Trashure/utils/errors"
)

type UserService struct {
	users store.Users
	cache cache.Users
	blobs blob.Store
	log   logging.Logger
	now   func() time.Time
}

func NewUserService(users store.Users, c cache.Users, blobs blob.Store, log logging.Logger) *UserService {
	return &UserService{users: users, cache: c, blobs: blobs, log: log, now: time.Now}
}

// Upload is a file received from a client.
type Upload struct {
	Data        []byte
	ContentType string
}

type ProfileUpdate struct {
	Name    string
	Email   string
	Phone   string
	Address string
	Photo   *Upload
}

// GetUser retrieves a user from the cache or the store.
func (s *UserService) GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	if u, ok := s.cache.Get(ctx, id); ok {
		return u, nil
	}
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return nil, errors.NotFound("user not found")
		}
		return nil, errors.Wrap(err, "DB_ERROR", "failed to load user", http.StatusInternalServerError)
	}
	if err := s.cache.Set(ctx, u); err != nil {
		s.log.Warn(ctx, "cache user failed", "user", id.Hex(), "error", err)
	}
	return u, nil
}

// UpdateProfile overwrites the non-empty fields and stores a new photo.
func (s *UserService) UpdateProfile(ctx context.Context, id primitive.ObjectID, in ProfileUpdate) (*models.User, error) {
	upd := store.UserUpdate{
		Name:    strings.TrimSpace(in.Name),
		Email:   NormalizeEmail(in.Email),
		Phone:   strings.TrimSpace(in.Phone),
		Address: strings.TrimSpace(in.Address),
		At:      s.now(),
	}
	if upd.Email != "" && !validEmail(upd.Email) {
		return nil, errors.Validation("invalid email")
	}
	if upd.Phone != "" && !validPhone(upd.Phone) {
		return nil, errors.Validation("enter a valid phone number (7-15 digits)")
	}
	if in.Photo != nil && len(in.Photo.Data) > 0 {
		url, err := s.blobs.Put(ctx, "users/"+id.Hex(), in.Photo.Data, in.Photo.ContentType)
		if err != nil {
			return nil, errors.Wrap(err, "UPLOAD_ERROR", "failed to store photo", http.StatusInternalServerError)
		}
		upd.PhotoURL = url
	}

	u, err := s.users.Update(ctx, id, upd)
	switch {
	case stderrors.Is(err, store.ErrNotFound):
		return nil, errors.NotFound("user not found")
	case stderrors.Is(err, store.ErrDuplicate):
		return nil, errors.Conflict("email already in use")
	case err != nil:
		return nil, errors.Wrap(err, "DB_ERROR", "failed to update user", http.StatusInternalServerError)
	}
	if err := s.cache.Set(ctx, u); err != nil {
		// The old profile must not outlive a failed refresh.
		s.log.Warn(ctx, "cache user failed", "user", id.Hex(), "error", err)
		if err := s.cache.Invalidate(ctx, id); err != nil {
			s.log.Warn(ctx, "invalidate cached user failed", "user", id.Hex(), "error", err)
		}
	}
	return u, nil
}

// Lookup loads several users at once, keyed by id. Missing ids are absent.
func (s *UserService) Lookup(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.User, error) {
	out := make(map[primitive.ObjectID]*models.User, len(ids))
	var missing []primitive.ObjectID
	for _, id := range ids {
		if _, seen := out[id]; seen {
			continue
		}
		if u, ok := s.cache.Get(ctx, id); ok {
			out[id] = u
			continue
		}
		out[id] = nil
		missing = append(missing, id)
	}
	if len(missing) > 0 {
		found, err := s.users.FindByIDs(ctx, missing)
		if err != nil {
			return nil, errors.Wrap(err, "DB_ERROR", "failed to load users", http.StatusInternalServerError)
		}
		for i := range found {
			u := &found[i]
			out[u.ID] = u
			if err := s.cache.Set(ctx, u); err != nil {
				s.log.Warn(ctx, "cache user failed", "user", u.ID.Hex(), "error", err)
			}
		}
	}
	for id, u := range out {
		if u == nil {
			delete(out, id)
		}
	}
	return out, nil
}
