package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/banquet-labs/banquet/lib/config"
	"github.com/banquet-labs/banquet/lib/typing"
	"github.com/banquet-labs/banquet/models"
)

// Store persists one document per entity key in a collection per feature view.
type Store struct {
	project  string
	database *mongo.Database
}

type featureDocument struct {
	ID             string         `bson:"_id"`
	EntityKey      string         `bson:"entityKey"`
	Values         map[string]any `bson:"values"`
	EventTimestamp time.Time      `bson:"eventTimestamp"`
	Created        time.Time      `bson:"created,omitempty"`
}

func LoadStore(ctx context.Context, project string, cfg *config.Mongo) (*Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("mongo config is nil")
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err = client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	slog.Info("Successfully connected to MongoDB", slog.String("database", cfg.Database))
	return &Store{
		project:  project,
		database: client.Database(cfg.Database),
	}, nil
}

func (s *Store) collection(viewName string) *mongo.Collection {
	return s.database.Collection(fmt.Sprintf("%s_%s", s.project, viewName))
}

func (s *Store) OnlineWrite(ctx context.Context, view models.FeatureView, rows []models.FeatureRow) (int, error) {
	collection := s.collection(view.Name)

	var written int
	for _, row := range rows {
		doc := featureDocument{
			ID:             row.EntityKey.Hash(),
			EntityKey:      row.EntityKey.Serialize(),
			Values:         row.Values,
			EventTimestamp: row.EventTimestamp.UTC(),
			Created:        row.Created.UTC(),
		}

		// Replace only when the incoming row is at least as fresh as the stored one.
		filter := bson.M{
			"_id": doc.ID,
			"eventTimestamp": bson.M{
				"$lte": doc.EventTimestamp,
			},
		}

		result, err := collection.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				// Upsert raced with a fresher document, nothing to do.
				continue
			}

			return written, fmt.Errorf("failed to write feature row: %w", err)
		}

		if result.ModifiedCount > 0 || result.UpsertedCount > 0 {
			written++
		}
	}

	return written, nil
}

func (s *Store) OnlineRead(ctx context.Context, view models.FeatureView, keys []models.EntityKey) ([]*models.FeatureRow, error) {
	hashes := make([]string, len(keys))
	keysByHash := make(map[string]int, len(keys))
	for idx, key := range keys {
		hashes[idx] = key.Hash()
		keysByHash[hashes[idx]] = idx
	}

	cursor, err := s.collection(view.Name).Find(ctx, bson.M{"_id": bson.M{"$in": hashes}})
	if err != nil {
		return nil, fmt.Errorf("failed to query feature rows: %w", err)
	}

	defer cursor.Close(ctx)

	results := make([]*models.FeatureRow, len(keys))
	for cursor.Next(ctx) {
		var doc featureDocument
		if err = cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode feature document: %w", err)
		}

		idx, found := keysByHash[doc.ID]
		if !found {
			continue
		}

		values := make(map[string]any, len(doc.Values))
		for _, feature := range view.Features {
			raw, found := doc.Values[feature.Name]
			if !found || raw == nil {
				continue
			}

			value, err := typing.CastValue(raw, feature.ValueType)
			if err != nil {
				return nil, fmt.Errorf("failed to cast feature %q: %w", feature.Name, err)
			}

			values[feature.Name] = value
		}

		results[idx] = &models.FeatureRow{
			EntityKey:      keys[idx],
			Values:         values,
			EventTimestamp: doc.EventTimestamp,
			Created:        doc.Created,
		}
	}

	if err = cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feature documents: %w", err)
	}

	return results, nil
}

func (s *Store) Update(ctx context.Context, _ []models.FeatureView, toDelete []models.FeatureView) error {
	return s.Teardown(ctx, toDelete)
}

func (s *Store) Teardown(ctx context.Context, views []models.FeatureView) error {
	for _, view := range views {
		if err := s.collection(view.Name).Drop(ctx); err != nil {
			return fmt.Errorf("failed to drop collection for view %q: %w", view.Name, err)
		}

		slog.Info("Dropped online state for feature view", slog.String("view", view.Name))
	}

	return nil
}
