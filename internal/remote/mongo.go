package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Connect opens a client and verifies the connection.
func Connect(ctx context.Context, uri, database string) (*mongo.Client, *mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	return client, client.Database(database), nil
}

// MongoStore is the production Store.
type MongoStore struct {
	db *mongo.Database
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

// EnsureIndexes creates the lookup indexes the services query on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	for coll, models := range indexModels() {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
	}
	return nil
}

func indexModels() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		Patients: {
			{Keys: bson.D{{Key: "team_id", Value: 1}, {Key: "cedula", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		Captures: {
			{Keys: bson.D{{Key: "patient_id", Value: 1}, {Key: "timestamp", Value: -1}}},
			{Keys: bson.D{{Key: "team_id", Value: 1}}},
		},
		Users: {
			// Identity-provider users may have no email; only real addresses are unique.
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"email": bson.M{"$gt": ""}})},
		},
		Teams: {
			{Keys: bson.D{{Key: "join_code", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		Reports: {
			{Keys: bson.D{{Key: "patient_id", Value: 1}}},
		},
	}
}

func (s *MongoStore) Create(ctx context.Context, coll string, doc any) (string, error) {
	m, err := prepareCreate(doc, time.Now())
	if err != nil {
		return "", err
	}
	if _, err := s.db.Collection(coll).InsertOne(ctx, m); err != nil {
		return "", fmt.Errorf("insert into %s: %w", coll, err)
	}
	return m["_id"].(string), nil
}

func (s *MongoStore) Get(ctx context.Context, coll, id string, out any) error {
	err := s.db.Collection(coll).FindOne(ctx, bson.M{"_id": id}).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s/%s: %w", coll, id, err)
	}
	return nil
}

func (s *MongoStore) Update(ctx context.Context, coll, id string, fields map[string]any) error {
	set := bson.M{}
	for k, v := range fields {
		set[k] = v
	}
	set["updated_at"] = primitive.NewDateTimeFromTime(time.Now())

	res, err := s.db.Collection(coll).UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", coll, id, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, coll, id string) error {
	res, err := s.db.Collection(coll).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", coll, id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Find(ctx context.Context, coll string, q Query, out any) error {
	filter := bson.D{}
	for _, f := range q.Where {
		filter = append(filter, bson.E{Key: f.Field, Value: f.Value})
	}

	opts := options.Find()
	if q.OrderBy != "" {
		dir := 1
		if q.Desc {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: q.OrderBy, Value: dir}})
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cur, err := s.db.Collection(coll).Find(ctx, filter, opts)
	if err != nil {
		return fmt.Errorf("find in %s: %w", coll, err)
	}
	if err := cur.All(ctx, out); err != nil {
		return fmt.Errorf("decode %s: %w", coll, err)
	}
	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

// prepareCreate flattens doc into a bson.M, assigns an id when missing and
// stamps both timestamps.
func prepareCreate(doc any, now time.Time) (bson.M, error) {
	m, err := toM(doc)
	if err != nil {
		return nil, err
	}
	if id, _ := m["_id"].(string); id == "" {
		m["_id"] = NewID()
	}
	ts := primitive.NewDateTimeFromTime(now)
	m["created_at"] = ts
	m["updated_at"] = ts
	return m, nil
}

func toM(doc any) (bson.M, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return m, nil
}
