package consumer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banquet-labs/banquet/featurestore"
	"github.com/banquet-labs/banquet/lib/config"
	"github.com/banquet-labs/banquet/lib/kafkalib"
	"github.com/banquet-labs/banquet/lib/telemetry/metrics"
	"github.com/banquet-labs/banquet/lib/typing"
	"github.com/banquet-labs/banquet/models"
	"github.com/banquet-labs/banquet/registry"
	"github.com/banquet-labs/banquet/stores/offline/file"
	"github.com/banquet-labs/banquet/stores/online/memory"
)

type fakeConsumer struct {
	batches   [][]kafkalib.Message
	committed []kafkalib.Message
	cancel    context.CancelFunc
}

func (f *fakeConsumer) Fetch(ctx context.Context) ([]kafkalib.Message, error) {
	if len(f.batches) == 0 {
		f.cancel()
		return nil, ctx.Err()
	}

	batch := f.batches[0]
	f.batches = f.batches[1:]
	return batch, nil
}

func (f *fakeConsumer) CommitMessages(_ context.Context, msgs ...kafkalib.Message) error {
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeConsumer) Close() {}

func testFeatureStore(t *testing.T) *featurestore.FeatureStore {
	dir := t.TempDir()
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "driver_stats.csv"),
		[]byte("driver_id,conv_rate,event_timestamp\n"), 0o644))

	batchSource := models.DataSource{
		Name:           "driver_stats_source",
		Type:           models.FileSource,
		TimestampField: "event_timestamp",
		Path:           "driver_stats.csv",
	}
	pushSource := models.DataSource{
		Name:        "driver_stats_push",
		Type:        models.PushSource,
		BatchSource: &batchSource,
	}

	contents := models.RepoContents{
		Project: "rideshare",
		Entities: []models.Entity{
			{Name: "driver", JoinKey: "driver_id", ValueType: typing.String},
		},
		DataSources: []models.DataSource{batchSource, pushSource},
		FeatureViews: []models.FeatureView{
			{
				Name:     "driver_hourly_stats",
				Entities: []string{"driver"},
				Features: []models.Feature{
					{Name: "conv_rate", ValueType: typing.Float64},
				},
				Online:       true,
				BatchSource:  batchSource,
				StreamSource: &pushSource,
			},
		},
	}

	cfg := config.Config{
		Project:  "rideshare",
		Provider: "local",
		Registry: config.Registry{Path: filepath.Join(dir, "registry.json")},
	}

	reg := registry.NewWithStore("rideshare", registry.NewFileStore(cfg.Registry.Path), 0)
	fs := featurestore.NewWithStores(cfg, reg, memory.NewStore(), file.NewStore(dir), metrics.NullMetricsProvider{})
	_, err := fs.Apply(context.Background(), contents, false)
	assert.NoError(t, err)
	return fs
}

func pushMessage(offset int64, value string) kafkalib.Message {
	return kafkalib.Message{
		Topic:     "driver_stats_push",
		Partition: 0,
		Offset:    offset,
		Value:     []byte(value),
	}
}

func TestTopicSources(t *testing.T) {
	ctx := context.Background()
	fs := testFeatureStore(t)

	topicSources, err := TopicSources(ctx, fs)
	assert.NoError(t, err)
	assert.Equal(t, map[string]string{"driver_stats_push": "driver_stats_push"}, topicSources)
}

func TestIngestor_FlushPushesAndCommits(t *testing.T) {
	ctx := context.Background()
	fs := testFeatureStore(t)
	consumer := &fakeConsumer{}
	ingestor := NewIngestor(fs, consumer, config.Stream{BufferRows: 100}, nil)

	ingestor.buffer.Add(pushMessage(4, ""), map[string]any{
		"driver_id":       "1001",
		"conv_rate":       0.9,
		"event_timestamp": "2024-01-01T00:00:00Z",
	})
	assert.NoError(t, ingestor.Flush(ctx, "test"))

	// Offsets are committed and the buffer is drained.
	assert.Len(t, consumer.committed, 1)
	assert.Equal(t, int64(4), consumer.committed[0].Offset)
	assert.Zero(t, ingestor.buffer.Size())

	response, err := fs.GetOnlineFeatures(ctx, featurestore.OnlineFeaturesRequest{
		Features: []string{"driver_hourly_stats:conv_rate"},
		Entities: map[string][]any{"driver_id": {"1001"}},
	})
	assert.NoError(t, err)
	assert.Equal(t, 0.9, response.Results[0].Values[0])
}

func TestIngestor_FlushUnknownSourceKeepsRows(t *testing.T) {
	ctx := context.Background()
	fs := testFeatureStore(t)
	consumer := &fakeConsumer{}
	ingestor := NewIngestor(fs, consumer, config.Stream{BufferRows: 100}, nil)

	ingestor.buffer.Add(kafkalib.Message{Topic: "unknown_push", Offset: 1},
		map[string]any{"driver_id": "1001"})

	assert.ErrorContains(t, ingestor.Flush(ctx, "test"), "unknown_push")
	assert.Empty(t, consumer.committed)
	assert.Equal(t, uint(1), ingestor.buffer.Size())
}

func TestIngestor_Run(t *testing.T) {
	fs := testFeatureStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	consumer := &fakeConsumer{
		cancel: cancel,
		batches: [][]kafkalib.Message{
			{
				pushMessage(0, `{"driver_id": "1001", "conv_rate": 0.7, "event_timestamp": "2024-01-01T00:00:00Z"}`),
				pushMessage(1, `not json`),
				pushMessage(2, `{"driver_id": "1002", "conv_rate": 0.3, "event_timestamp": "2024-01-01T00:00:00Z"}`),
			},
		},
	}

	// BufferRows of 2 forces a size flush on the first batch; the shutdown
	// flush covers anything left.
	ingestor := NewIngestor(fs, consumer, config.Stream{BufferRows: 2, FlushIntervalSeconds: 10},
		map[string]string{"driver_stats_push": "driver_stats_push"})
	assert.NoError(t, ingestor.Run(ctx))

	// The malformed message is committed alongside the valid ones.
	assert.Len(t, consumer.committed, 1)
	assert.Equal(t, int64(2), consumer.committed[0].Offset)

	response, err := fs.GetOnlineFeatures(context.Background(), featurestore.OnlineFeaturesRequest{
		Features: []string{"driver_hourly_stats:conv_rate"},
		Entities: map[string][]any{"driver_id": {"1001", "1002"}},
	})
	assert.NoError(t, err)
	assert.Equal(t, 0.7, response.Results[0].Values[0])
	assert.Equal(t, 0.3, response.Results[0].Values[1])
}
