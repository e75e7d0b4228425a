// Package store defines the persistence contracts for users, pickup requests
// and notifications, with a MongoDB implementation and an in-memory one.
//
// Every status change goes through Requests.Transition, a conditional write
// that only applies when the stored document still matches the expected
// status and ownership. Two concurrent attempts at the same move can never
// both succeed.
package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/its-tarun-2505/Trashure/models"
)

var (
	ErrNotFound        = errors.New("store: not found")
	ErrDuplicate       = errors.New("store: duplicate key")
	ErrConditionFailed = errors.New("store: condition not met")
	ErrClosed          = errors.New("store: closed")
)

// Store is an explicitly constructed handle over all repositories.
type Store interface {
	Users() Users
	Requests() Requests
	Notifications() Notifications
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

type Users interface {
	// Create inserts u and assigns its ID. Fails with ErrDuplicate when the
	// email is already registered.
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
	Update(ctx context.Context, id primitive.ObjectID, upd UserUpdate) (*models.User, error)
}

// UserUpdate lists profile fields to overwrite; empty strings are left alone.
type UserUpdate struct {
	Name     string
	Email    string
	Phone    string
	Address  string
	PhotoURL string
	At       time.Time
}

type Requests interface {
	Create(ctx context.Context, r *models.PickupRequest) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.PickupRequest, error)
	Find(ctx context.Context, q RequestQuery) ([]models.PickupRequest, error)
	// Transition applies change only when the stored request satisfies cond,
	// returning the updated document or ErrConditionFailed.
	Transition(ctx context.Context, id primitive.ObjectID, cond Condition, change Change) (*models.PickupRequest, error)
	// AppendProof pushes proof image URLs under the same conditional rule.
	AppendProof(ctx context.Context, id primitive.ObjectID, cond Condition, images []string, at time.Time) (*models.PickupRequest, error)
}

type Notifications interface {
	Append(ctx context.Context, n *models.Notification) error
	// ListByUser returns the user's notifications newest first.
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Notification, error)
}

// Sort keys for RequestQuery.
const (
	SortCreatedAt   = "createdAt"
	SortScheduledAt = "scheduledAt"
)

// RequestQuery narrows Requests.Find. Zero fields do not filter.
type RequestQuery struct {
	Citizen    *primitive.ObjectID
	Collector  *primitive.ObjectID
	Unassigned bool
	Statuses   []models.Status
	Category   string
	From       *time.Time // scheduledAt >= From
	To         *time.Time // scheduledAt < To
	// SortBy is SortCreatedAt (default) or SortScheduledAt, always descending.
	SortBy string
}
