package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Role         Role               `json:"role" bson:"role"`
	Name         string             `json:"name" bson:"name"`
	Email        string             `json:"email" bson:"email"`
	Phone        string             `json:"phone" bson:"phone"`
	Address      string             `json:"address" bson:"address"`
	PasswordHash string             `json:"-" bson:"password"`
	PhotoURL     string             `json:"photoUrl" bson:"photoUrl"`
	Latitude     *float64           `json:"latitude,omitempty" bson:"latitude,omitempty"`
	Longitude    *float64           `json:"longitude,omitempty" bson:"longitude,omitempty"`
	CreatedAt    time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// HasLocation reports whether both coordinates are set.
func (u *User) HasLocation() bool {
	return u != nil && u.Latitude != nil && u.Longitude != nil
}

// UserSummary is the subset of a user embedded in request views.
type UserSummary struct {
	ID       primitive.ObjectID `json:"id"`
	Name     string             `json:"name"`
	Email    string             `json:"email"`
	Phone    string             `json:"phone"`
	PhotoURL string             `json:"photoUrl,omitempty"`
}

func (u *User) Summary() *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, Phone: u.Phone, PhotoURL: u.PhotoURL}
}
