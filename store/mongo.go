package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/its-tarun-2505/Trashure/models"
)

const (
	usersCollection         = "users"
	requestsCollection      = "pickuprequests"
	notificationsCollection = "notifications"
)

// Mongo is the MongoDB-backed Store.
type Mongo struct {
	client        *mongo.Client
	users         *mongo.Collection
	requests      *mongo.Collection
	notifications *mongo.Collection
}

// OpenMongo connects, pings and ensures indexes. The caller owns the result
// and must Close it.
func OpenMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(database)
	m := &Mongo{
		client:        client,
		users:         db.Collection(usersCollection),
		requests:      db.Collection(requestsCollection),
		notifications: db.Collection(notificationsCollection),
	}
	if err := m.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return m, nil
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	indexes := []struct {
		coll   *mongo.Collection
		models []mongo.IndexModel
	}{
		{m.users, []mongo.IndexModel{{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		}}},
		{m.requests, []mongo.IndexModel{
			{Keys: bson.D{{Key: "citizen", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "collector", Value: 1}, {Key: "scheduledAt", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		}},
		{m.notifications, []mongo.IndexModel{
			{Keys: bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}}},
		}},
	}
	for _, ix := range indexes {
		if _, err := ix.coll.Indexes().CreateMany(ctx, ix.models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", ix.coll.Name(), err)
		}
	}
	return nil
}

func (m *Mongo) Users() Users                 { return mongoUsers{m.users} }
func (m *Mongo) Requests() Requests           { return mongoRequests{m.requests} }
func (m *Mongo) Notifications() Notifications { return mongoNotifications{m.notifications} }

func (m *Mongo) Ping(ctx context.Context) error { return m.client.Ping(ctx, nil) }

func (m *Mongo) Close(ctx context.Context) error { return m.client.Disconnect(ctx) }

func decodeOne[T any](res *mongo.SingleResult) (*T, error) {
	var out T
	if err := res.Decode(&out); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

type mongoUsers struct{ c *mongo.Collection }

func (s mongoUsers) Create(ctx context.Context, u *models.User) error {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (s mongoUsers) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return decodeOne[models.User](s.c.FindOne(ctx, bson.M{"_id": id}))
}

func (s mongoUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return decodeOne[models.User](s.c.FindOne(ctx, bson.M{"email": email}))
}

func (s mongoUsers) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	out := []models.User{}
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s mongoUsers) Update(ctx context.Context, id primitive.ObjectID, upd UserUpdate) (*models.User, error) {
	set := bson.M{"updatedAt": upd.At}
	for field, v := range map[string]string{
		"name":     upd.Name,
		"email":    upd.Email,
		"phone":    upd.Phone,
		"address":  upd.Address,
		"photoUrl": upd.PhotoURL,
	} {
		if v != "" {
			set[field] = v
		}
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	u, err := decodeOne[models.User](s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts))
	if err != nil && mongo.IsDuplicateKeyError(err) {
		return nil, ErrDuplicate
	}
	return u, err
}

type mongoRequests struct{ c *mongo.Collection }

func (s mongoRequests) Create(ctx context.Context, r *models.PickupRequest) error {
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	// $push needs an array, never null.
	if r.Images == nil {
		r.Images = []string{}
	}
	if r.ProofImages == nil {
		r.ProofImages = []string{}
	}
	_, err := s.c.InsertOne(ctx, r)
	return err
}

func (s mongoRequests) FindByID(ctx context.Context, id primitive.ObjectID) (*models.PickupRequest, error) {
	return decodeOne[models.PickupRequest](s.c.FindOne(ctx, bson.M{"_id": id}))
}

func (q RequestQuery) filter() bson.M {
	f := bson.M{}
	if q.Citizen != nil {
		f["citizen"] = *q.Citizen
	}
	switch {
	case q.Collector != nil:
		f["collector"] = *q.Collector
	case q.Unassigned:
		f["collector"] = nil
	}
	if len(q.Statuses) > 0 {
		f["status"] = bson.M{"$in": q.Statuses}
	}
	if q.Category != "" {
		f["category"] = q.Category
	}
	if q.From != nil || q.To != nil {
		rng := bson.M{}
		if q.From != nil {
			rng["$gte"] = *q.From
		}
		if q.To != nil {
			rng["$lt"] = *q.To
		}
		f["scheduledAt"] = rng
	}
	return f
}

func (s mongoRequests) Find(ctx context.Context, q RequestQuery) ([]models.PickupRequest, error) {
	sortBy := SortCreatedAt
	if q.SortBy == SortScheduledAt {
		sortBy = SortScheduledAt
	}
	opts := options.Find().SetSort(bson.D{{Key: sortBy, Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.c.Find(ctx, q.filter(), opts)
	if err != nil {
		return nil, err
	}
	out := []models.PickupRequest{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s mongoRequests) Transition(ctx context.Context, id primitive.ObjectID, cond Condition, change Change) (*models.PickupRequest, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	r, err := decodeOne[models.PickupRequest](s.c.FindOneAndUpdate(ctx, cond.filter(id), bson.M{"$set": change.setDoc()}, opts))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrConditionFailed
	}
	return r, err
}

func (s mongoRequests) AppendProof(ctx context.Context, id primitive.ObjectID, cond Condition, images []string, at time.Time) (*models.PickupRequest, error) {
	update := bson.M{
		"$push": bson.M{"proofImages": bson.M{"$each": images}},
		"$set":  bson.M{"updatedAt": at},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	r, err := decodeOne[models.PickupRequest](s.c.FindOneAndUpdate(ctx, cond.filter(id), update, opts))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrConditionFailed
	}
	return r, err
}

type mongoNotifications struct{ c *mongo.Collection }

func (s mongoNotifications) Append(ctx context.Context, n *models.Notification) error {
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	_, err := s.c.InsertOne(ctx, n)
	return err
}

func (s mongoNotifications) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Notification, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.c.Find(ctx, bson.M{"user": userID}, opts)
	if err != nil {
		return nil, err
	}
	out := []models.Notification{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
