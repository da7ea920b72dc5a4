package redis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/banquet-labs/banquet/lib/config"
	"github.com/banquet-labs/banquet/lib/jsonutil"
	"github.com/banquet-labs/banquet/lib/retry"
	"github.com/banquet-labs/banquet/lib/typing"
	"github.com/banquet-labs/banquet/models"
)

const (
	eventTimestampField   = "_ts"
	createdTimestampField = "_created"
)

var retryableNetworkErrors = []error{
	syscall.ECONNRESET,
	syscall.ECONNREFUSED,
	io.EOF,
	syscall.ETIMEDOUT,
}

// isRetryableError checks for common network and server errors that are retryable
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	for _, retryableErr := range retryableNetworkErrors {
		if errors.Is(err, retryableErr) {
			return true
		}
	}

	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return true
	}

	errMsg := err.Error()

	// Server busy or loading errors
	if strings.Contains(errMsg, "BUSY") ||
		strings.Contains(errMsg, "TRYAGAIN") ||
		strings.Contains(errMsg, "LOADING") {
		return true
	}

	// Connection pool errors
	if strings.Contains(errMsg, "connection pool timeout") ||
		strings.Contains(errMsg, "i/o timeout") {
		return true
	}

	// Cluster-specific retryable errors
	if strings.Contains(errMsg, "CLUSTERDOWN") ||
		strings.Contains(errMsg, "MOVED") ||
		strings.Contains(errMsg, "ASK") {
		return true
	}

	// Master/replica errors
	if strings.Contains(errMsg, "READONLY") ||
		strings.Contains(errMsg, "MASTERDOWN") {
		return true
	}

	return false
}

// Store keeps each entity's latest feature values in a Redis hash keyed by
// project, view name and entity key hash.
type Store struct {
	project     string
	redisClient *redis.Client
	retryCfg    retry.RetryConfig
}

func LoadStore(ctx context.Context, project string, cfg *config.Redis) (*Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config is nil")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.Database,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("Successfully connected to Redis",
		slog.String("host", cfg.Host),
		slog.Int("port", cfg.Port),
		slog.Int("database", cfg.Database),
	)

	return &Store{
		project:     project,
		redisClient: rdb,
		retryCfg: retry.NewRetryConfig(retry.NewRetryConfigArgs{
			JitterBaseMs:   50,
			JitterMaxMs:    3000,
			MaxAttempts:    5,
			IsRetryableErr: isRetryableError,
		}),
	}, nil
}

func (s *Store) hashKey(viewName, entityKeyHash string) string {
	return fmt.Sprintf("%s:%s:%s", s.project, viewName, entityKeyHash)
}

func encodeValue(value any) (string, error) {
	if ts, ok := value.(time.Time); ok {
		value = ts.Format(time.RFC3339Nano)
	}

	data, err := jsonutil.Marshal(value)
	if err != nil {
		return "", err
	}

	return string(data), nil
}

func decodeValue(raw string, valueType typing.ValueType) (any, error) {
	var value any
	if err := jsonutil.Unmarshal([]byte(raw), &value); err != nil {
		return nil, err
	}

	if value == nil {
		return nil, nil
	}

	return typing.CastValue(value, valueType)
}

func (s *Store) OnlineWrite(ctx context.Context, view models.FeatureView, rows []models.FeatureRow) (int, error) {
	var written int
	for _, row := range rows {
		key := s.hashKey(view.Name, row.EntityKey.Hash())

		// Skip rows older than what is already stored.
		existingTS, err := retry.WithRetries(s.retryCfg, func(_ int, _ error) (string, error) {
			result, err := s.redisClient.HGet(ctx, key, eventTimestampField).Result()
			if errors.Is(err, redis.Nil) {
				return "", nil
			}

			return result, err
		})
		if err != nil {
			return written, fmt.Errorf("failed to read stored event timestamp: %w", err)
		}

		if existingTS != "" {
			parsed, err := time.Parse(time.RFC3339Nano, existingTS)
			if err == nil && parsed.After(row.EventTimestamp) {
				continue
			}
		}

		fields := map[string]any{
			eventTimestampField: row.EventTimestamp.UTC().Format(time.RFC3339Nano),
		}
		if !row.Created.IsZero() {
			fields[createdTimestampField] = row.Created.UTC().Format(time.RFC3339Nano)
		}

		for name, value := range row.Values {
			encoded, err := encodeValue(value)
			if err != nil {
				return written, fmt.Errorf("failed to encode feature %q: %w", name, err)
			}

			fields[name] = encoded
		}

		if err = s.retryCfg.WithRetries(func(_ int, _ error) error {
			pipeline := s.redisClient.Pipeline()
			pipeline.HSet(ctx, key, fields)
			if view.TTL > 0 {
				pipeline.Expire(ctx, key, view.TTL)
			}

			_, execErr := pipeline.Exec(ctx)
			return execErr
		}); err != nil {
			return written, fmt.Errorf("failed to write feature row: %w", err)
		}

		written++
	}

	return written, nil
}

func (s *Store) OnlineRead(ctx context.Context, view models.FeatureView, keys []models.EntityKey) ([]*models.FeatureRow, error) {
	results := make([]*models.FeatureRow, len(keys))
	for idx, entityKey := range keys {
		key := s.hashKey(view.Name, entityKey.Hash())
		fields, err := retry.WithRetries(s.retryCfg, func(_ int, _ error) (map[string]string, error) {
			return s.redisClient.HGetAll(ctx, key).Result()
		})
		if err != nil {
			return nil, fmt.Errorf("failed to read feature row: %w", err)
		}

		if len(fields) == 0 {
			continue
		}

		row := models.FeatureRow{
			EntityKey: entityKey,
			Values:    make(map[string]any),
		}

		if raw, found := fields[eventTimestampField]; found {
			if row.EventTimestamp, err = time.Parse(time.RFC3339Nano, raw); err != nil {
				return nil, fmt.Errorf("failed to parse stored event timestamp: %w", err)
			}
		}
		if raw, found := fields[createdTimestampField]; found {
			if row.Created, err = time.Parse(time.RFC3339Nano, raw); err != nil {
				return nil, fmt.Errorf("failed to parse stored created timestamp: %w", err)
			}
		}

		for _, feature := range view.Features {
			raw, found := fields[feature.Name]
			if !found {
				continue
			}

			value, err := decodeValue(raw, feature.ValueType)
			if err != nil {
				return nil, fmt.Errorf("failed to decode feature %q: %w", feature.Name, err)
			}

			row.Values[feature.Name] = value
		}

		results[idx] = &row
	}

	return results, nil
}

func (s *Store) Update(ctx context.Context, _ []models.FeatureView, toDelete []models.FeatureView) error {
	return s.Teardown(ctx, toDelete)
}

// Teardown deletes every key written for the given views.
func (s *Store) Teardown(ctx context.Context, views []models.FeatureView) error {
	for _, view := range views {
		pattern := fmt.Sprintf("%s:%s:*", s.project, view.Name)
		iter := s.redisClient.Scan(ctx, 0, pattern, 0).Iterator()
		for iter.Next(ctx) {
			if err := s.redisClient.Del(ctx, iter.Val()).Err(); err != nil {
				return fmt.Errorf("failed to delete key %q: %w", iter.Val(), err)
			}
		}

		if err := iter.Err(); err != nil {
			return fmt.Errorf("failed to scan keys for view %q: %w", view.Name, err)
		}

		slog.Info("Dropped online state for feature view", slog.String("view", view.Name))
	}

	return nil
}
