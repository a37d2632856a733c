package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"user_service/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoStorage struct {
	client *mongo.Client
	users  *mongo.Collection
}

// NewMongoStorage connects lazily, the first round trip to the cluster
// happens on Ping or on the first query.
func NewMongoStorage(ctx context.Context, uri, database, collection string) (*MongoStorage, error) {
	const op = "storage.NewMongoStorage"

	serverAPI := options.ServerAPI(options.ServerAPIVersion1).
		SetStrict(true).
		SetDeprecationErrors(true)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetServerAPIOptions(serverAPI))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return newMongoStorage(client.Database(database).Collection(collection)), nil
}

func newMongoStorage(users *mongo.Collection) *MongoStorage {
	return &MongoStorage{
		client: users.Database().Client(),
		users:  users,
	}
}

func (m *MongoStorage) InsertUser(ctx context.Context, user models.User) (models.InsertResult, error) {
	const op = "storage.InsertUser"

	doc := bson.M{}
	for k, v := range user.Fields {
		doc[k] = v
	}
	doc[models.FieldEmail] = user.Email
	doc[models.FieldPassword] = user.Password
	doc[models.FieldStatus] = string(user.Status)

	res, err := m.users.InsertOne(ctx, doc)
	if err != nil {
		return models.InsertResult{}, fmt.Errorf("%s: %w", op, err)
	}

	return models.InsertResult{
		Acknowledged: true,
		InsertedID:   idString(res.InsertedID),
	}, nil
}

func (m *MongoStorage) ListUsers(ctx context.Context) ([]models.User, error) {
	const op = "storage.ListUsers"

	cursor, err := m.users.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	users := make([]models.User, 0, len(docs))
	for _, doc := range docs {
		users = append(users, userFromDocument(doc))
	}

	return users, nil
}

func (m *MongoStorage) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	const op = "storage.GetUserByEmail"

	var doc bson.M
	err := m.users.FindOne(ctx, bson.M{models.FieldEmail: email}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.User{}, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return userFromDocument(doc), nil
}

func (m *MongoStorage) TouchLastLogin(ctx context.Context, email string, at time.Time) error {
	const op = "storage.TouchLastLogin"

	_, err := m.users.UpdateOne(ctx,
		bson.M{models.FieldEmail: email},
		bson.M{"$set": bson.M{models.FieldLastLogin: at}},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (m *MongoStorage) SetStatus(ctx context.Context, ids []string, status models.Status) (models.UpdateResult, error) {
	const op = "storage.SetStatus"

	objectIDs, err := parseObjectIDs(ids)
	if err != nil {
		return models.UpdateResult{}, fmt.Errorf("%s: %w", op, err)
	}
	if len(objectIDs) == 0 {
		return models.UpdateResult{Acknowledged: true}, nil
	}

	res, err := m.users.UpdateMany(ctx,
		bson.M{models.FieldID: bson.M{"$in": objectIDs}},
		bson.M{"$set": bson.M{models.FieldStatus: string(status)}},
	)
	if err != nil {
		return models.UpdateResult{}, fmt.Errorf("%s: %w", op, err)
	}

	return models.UpdateResult{
		Acknowledged:  true,
		MatchedCount:  res.MatchedCount,
		ModifiedCount: res.ModifiedCount,
	}, nil
}

func (m *MongoStorage) DeleteUsers(ctx context.Context, ids []string) (models.DeleteResult, error) {
	const op = "storage.DeleteUsers"

	objectIDs, err := parseObjectIDs(ids)
	if err != nil {
		return models.DeleteResult{}, fmt.Errorf("%s: %w", op, err)
	}
	if len(objectIDs) == 0 {
		return models.DeleteResult{Acknowledged: true}, nil
	}

	res, err := m.users.DeleteMany(ctx, bson.M{models.FieldID: bson.M{"$in": objectIDs}})
	if err != nil {
		return models.DeleteResult{}, fmt.Errorf("%s: %w", op, err)
	}

	return models.DeleteResult{
		Acknowledged: true,
		DeletedCount: res.DeletedCount,
	}, nil
}

func (m *MongoStorage) Ping(ctx context.Context) error {
	const op = "storage.Ping"

	err := m.client.Database("admin").RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (m *MongoStorage) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func parseObjectIDs(ids []string) ([]primitive.ObjectID, error) {
	objectIDs := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrInvalidID, id, err)
		}
		objectIDs = append(objectIDs, oid)
	}
	return objectIDs, nil
}

func userFromDocument(doc bson.M) models.User {
	user := models.User{
		Status: models.StatusActive,
		Fields: make(map[string]any, len(doc)),
	}

	for k, v := range doc {
		switch k {
		case models.FieldID:
			user.ID = idString(v)
		case models.FieldEmail:
			user.Email, _ = v.(string)
		case models.FieldPassword:
			user.Password, _ = v.(string)
		case models.FieldStatus:
			s, _ := v.(string)
			user.Status = models.ParseStatus(s)
		case models.FieldLastLogin:
			if dt, ok := v.(primitive.DateTime); ok {
				t := dt.Time().UTC()
				user.LastLogin = &t
			}
		default:
			user.Fields[k] = v
		}
	}

	return user
}

func idString(v any) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	case nil:
		return ""
	default:
		return fmt.Sprint(id)
	}
}
