package auth

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/its-tarun-2505/Trashure/models"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal is the caller reconstructed from a verified token.
type Principal struct {
	UserID primitive.ObjectID
	Role   models.Role
	Email  string
}

// PrincipalFromClaims converts verified claims into a Principal.
func PrincipalFromClaims(c *Claims) (Principal, bool) {
	id, err := primitive.ObjectIDFromHex(c.Subject)
	if err != nil {
		return Principal{}, false
	}
	return Principal{UserID: id, Role: c.Role, Email: c.Email}, true
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
