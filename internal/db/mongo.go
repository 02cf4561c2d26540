package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"law_arch/internal/config"
	"law_arch/internal/models"
)

type MongoStore struct {
	client   *mongo.Client
	database *mongo.Database
	sections *mongo.Collection
	acts     *mongo.Collection
}

// OpenMongo connects, pings and makes sure the indexes exist.
func OpenMongo(ctx context.Context, cfg config.DBConfig) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Connection))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("can't ping MongoDB: %w", err)
	}

	s := NewMongoStore(client.Database(cfg.Database), cfg)
	if err := s.createIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("can't create indexes: %w", err)
	}
	return s, nil
}

// NewMongoStore wraps an existing database handle without touching the server.
func NewMongoStore(database *mongo.Database, cfg config.DBConfig) *MongoStore {
	sections, acts := cfg.Collections.Sections, cfg.Collections.Acts
	if sections == "" {
		sections = "sections"
	}
	if acts == "" {
		acts = "acts"
	}
	return &MongoStore{
		client:   database.Client(),
		database: database,
		sections: database.Collection(sections),
		acts:     database.Collection(acts),
	}
}

func (d *MongoStore) createIndexes(ctx context.Context) error {
	_, err := d.sections.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "act_key", Value: 1}, {Key: "position", Value: 1}}},
		{Keys: bson.D{{Key: "jurisdiction", Value: 1}}},
	})
	if err != nil {
		return err
	}
	_, err = d.acts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "jurisdiction", Value: 1}},
	})
	return err
}

// upsert replaces every field but the key of the document with _id key.
func upsert(ctx context.Context, coll *mongo.Collection, key string, rec any) error {
	data, err := bson.Marshal(rec)
	if err != nil {
		return err
	}
	var set bson.M
	if err := bson.Unmarshal(data, &set); err != nil {
		return err
	}
	delete(set, "_id")

	opts := options.Update().SetUpsert(true)
	_, err = coll.UpdateOne(ctx, bson.M{"_id": key}, bson.M{"$set": set}, opts)
	return err
}

func (d *MongoStore) UpsertSection(ctx context.Context, rec models.SectionRecord) error {
	if err := upsert(ctx, d.sections, rec.Key, rec); err != nil {
		return fmt.Errorf("upsert section %s: %w", rec.Key, err)
	}
	return nil
}

func (d *MongoStore) GetSection(ctx context.Context, key string) (*models.SectionRecord, error) {
	var rec models.SectionRecord
	err := d.sections.FindOne(ctx, bson.M{"_id": key}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get section %s: %w", key, err)
	}
	return &rec, nil
}

func (d *MongoStore) SectionsByAct(ctx context.Context, actKey string) ([]models.SectionRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "position", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := d.sections.Find(ctx, bson.M{"act_key": actKey}, opts)
	if err != nil {
		return nil, fmt.Errorf("find sections of %s: %w", actKey, err)
	}
	defer cursor.Close(ctx)

	var out []models.SectionRecord
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode sections of %s: %w", actKey, err)
	}
	return out, nil
}

func (d *MongoStore) UpsertAct(ctx context.Context, rec models.ActRecord) error {
	if err := upsert(ctx, d.acts, rec.Key, rec); err != nil {
		return fmt.Errorf("upsert act %s: %w", rec.Key, err)
	}
	return nil
}

func (d *MongoStore) GetAct(ctx context.Context, key string) (*models.ActRecord, error) {
	var rec models.ActRecord
	err := d.acts.FindOne(ctx, bson.M{"_id": key}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get act %s: %w", key, err)
	}
	return &rec, nil
}

// Stats counts the records of one jurisdiction with an aggregation over
// each collection.
func (d *MongoStore) Stats(ctx context.Context, jurisdiction string) (Stats, error) {
	var st Stats
	var err error
	if st.Sections, err = count(ctx, d.sections, jurisdiction); err != nil {
		return Stats{}, err
	}
	if st.Acts, err = count(ctx, d.acts, jurisdiction); err != nil {
		return Stats{}, err
	}
	return st, nil
}

func count(ctx context.Context, coll *mongo.Collection, jurisdiction string) (int, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{{Key: "jurisdiction", Value: jurisdiction}}}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("count %s in %s: %w", jurisdiction, coll.Name(), err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Total int `bson:"total"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, nil
	}
	return results[0].Total, nil
}

func (d *MongoStore) Ping(ctx context.Context) error {
	return d.client.Ping(ctx, nil)
}

func (d *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return d.client.Disconnect(ctx)
}
