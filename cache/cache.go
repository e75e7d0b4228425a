// Package cache keeps a read-through copy of user profiles in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/its-tarun-2505/Trashure/models"
)

// DefaultTTL is how long a cached profile lives.
const DefaultTTL = 24 * time.Hour

// Users caches profile lookups. Implementations never return the password
// hash, so the cache must not be used on the login path.
type Users interface {
	Get(ctx context.Context, id primitive.ObjectID) (*models.User, bool)
	Set(ctx context.Context, u *models.User) error
	Invalidate(ctx context.Context, id primitive.ObjectID) error
}

type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

// Dial opens a client and checks that the server answers.
func Dial(ctx context.Context, addr string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

func key(id primitive.ObjectID) string { return "user:" + id.Hex() }

func (c *Redis) Get(ctx context.Context, id primitive.ObjectID) (*models.User, bool) {
	raw, err := c.client.Get(ctx, key(id)).Bytes()
	if err != nil {
		return nil, false
	}
	var u models.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, false
	}
	return &u, true
}

func (c *Redis) Set(ctx context.Context, u *models.User) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key(u.ID), raw, c.ttl).Err()
}

func (c *Redis) Invalidate(ctx context.Context, id primitive.ObjectID) error {
	err := c.client.Del(ctx, key(id)).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

// Noop is used when no Redis address is configured.
type Noop struct{}

func (Noop) Get(context.Context, primitive.ObjectID) (*models.User, bool) { return nil, false }
func (Noop) Set(context.Context, *models.User) error                     { return nil }
func (Noop) Invalidate(context.Context, primitive.ObjectID) error        { return nil }
