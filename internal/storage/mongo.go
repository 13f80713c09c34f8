// internal/storage/mongo.go
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"roomsync/internal/model"
)

const (
	UsersCollection   = "users"
	TenantsCollection = "tenants"
	RoomsCollection   = "rooms"
)

var ErrNotFound = errors.New("document not found")

// MongoStore reads and patches the boarding-house collections. It never
// inserts or deletes documents.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials uri and pings the server so a bad address fails here rather
// than on the first query.
func Connect(ctx context.Context, uri, database string, timeout time.Duration) (*MongoStore, error) {
	opts := options.Client().ApplyURI(uri).SetServerSelectionTimeout(timeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	return NewMongoStore(client.Database(database)), nil
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{client: db.Client(), db: db}
}

// Close disconnects the underlying client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

type userDoc struct {
	ID bson.RawValue `bson:"_id"`
}

type tenantDoc struct {
	ID         bson.RawValue `bson:"_id"`
	UserID     bson.RawValue `bson:"userId"`
	RoomNumber string        `bson:"roomNumber"`
	FirstName  string        `bson:"firstName"`
	LastName   string        `bson:"lastName"`
}

type roomDoc struct {
	ID            bson.RawValue `bson:"_id"`
	RoomNumber    string        `bson:"roomNumber"`
	CurrentTenant bson.RawValue `bson:"currentTenant"`
	Occupancy     struct {
		Current int `bson:"current"`
		Max     int `bson:"max"`
	} `bson:"occupancy"`
}

func (s *MongoStore) ListUsers(ctx context.Context) ([]model.User, error) {
	var docs []userDoc
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	if err := s.findAll(ctx, UsersCollection, bson.M{}, &docs, opts); err != nil {
		return nil, err
	}

	users := make([]model.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, model.User{ID: model.UserID(refString(d.ID))})
	}
	return users, nil
}

func (s *MongoStore) ListTenants(ctx context.Context) ([]model.Tenant, error) {
	var docs []tenantDoc
	opts := options.Find().SetProjection(bson.M{
		"_id": 1, "userId": 1, "roomNumber": 1, "firstName": 1, "lastName": 1,
	})
	if err := s.findAll(ctx, TenantsCollection, bson.M{}, &docs, opts); err != nil {
		return nil, err
	}

	tenants := make([]model.Tenant, 0, len(docs))
	for _, d := range docs {
		tenants = append(tenants, model.Tenant{
			ID:         model.TenantID(refString(d.ID)),
			UserID:     model.UserID(refString(d.UserID)),
			RoomNumber: d.RoomNumber,
			FirstName:  d.FirstName,
			LastName:   d.LastName,
		})
	}
	return tenants, nil
}

func (s *MongoStore) ListLinkedRooms(ctx context.Context) ([]model.Room, error) {
	var docs []roomDoc
	filter := bson.M{"currentTenant": bson.M{"$exists": true, "$ne": nil}}
	if err := s.findAll(ctx, RoomsCollection, filter, &docs); err != nil {
		return nil, err
	}

	rooms := make([]model.Room, 0, len(docs))
	for _, d := range docs {
		rooms = append(rooms, model.Room{
			ID:            model.RoomID(refString(d.ID)),
			RoomNumber:    d.RoomNumber,
			CurrentTenant: model.RawRef(refString(d.CurrentTenant)),
			Occupancy: model.Occupancy{
				Current: d.Occupancy.Current,
				Max:     d.Occupancy.Max,
			},
		})
	}
	return rooms, nil
}

func (s *MongoStore) SetRoomTenant(ctx context.Context, id model.RoomID, user model.UserID) error {
	return s.updateOne(ctx, RoomsCollection, string(id), bson.M{
		"currentTenant": refValue(string(user)),
	})
}

func (s *MongoStore) ClearRoomTenant(ctx context.Context, id model.RoomID) error {
	return s.updateOne(ctx, RoomsCollection, string(id), bson.M{
		"currentTenant":     nil,
		"occupancy.current": 0,
	})
}

func (s *MongoStore) SetTenantRoomNumber(ctx context.Context, id model.TenantID, roomNumber string) error {
	return s.updateOne(ctx, TenantsCollection, string(id), bson.M{
		"roomNumber": roomNumber,
	})
}

func (s *MongoStore) findAll(ctx context.Context, coll string, filter any, out any, opts ...*options.FindOptions) error {
	cur, err := s.db.Collection(coll).Find(ctx, filter, opts...)
	if err != nil {
		return fmt.Errorf("find %s: %w", coll, err)
	}
	if err := cur.All(ctx, out); err != nil {
		return fmt.Errorf("decode %s: %w", coll, err)
	}
	return nil
}

func (s *MongoStore) updateOne(ctx context.Context, coll, id string, set bson.M) error {
	res, err := s.db.Collection(coll).UpdateOne(ctx, idFilter(id), bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update %s %s: %w", coll, id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("update %s %s: %w", coll, id, ErrNotFound)
	}
	return nil
}

// refString renders an identifier field the way the rest of the module
// compares ids: ObjectIDs as hex, strings verbatim, null or missing as "".
func refString(v bson.RawValue) string {
	switch v.Type {
	case bsontype.ObjectID:
		return v.ObjectID().Hex()
	case bsontype.String:
		return v.StringValue()
	case bsontype.Null, bsontype.Undefined, 0:
		return ""
	default:
		return v.String()
	}
}

// refValue is the inverse of refString for writes and filters.
func refValue(id string) any {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return oid
	}
	return id
}

// idFilter matches a document by the id refString produced. Hex ids match
// either an ObjectID or a string _id holding the same hex.
func idFilter(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"_id": bson.M{"$in": bson.A{oid, id}}}
	}
	return bson.M{"_id": id}
}
