package kafkalib

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"

	"github.com/banquet-labs/banquet/lib/config"
)

// Message is one consumed record.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
}

type Consumer interface {
	Fetch(ctx context.Context) ([]Message, error)
	CommitMessages(ctx context.Context, msgs ...Message) error
	Close()
}

type franzConsumer struct {
	client *kgo.Client
}

// NewConsumer builds a consumer-group client subscribed to the given topics.
// Offsets are committed explicitly, never automatically.
func NewConsumer(ctx context.Context, cfg config.Kafka, topics []string) (Consumer, error) {
	connection := NewConnection(cfg.EnableAWSMSKIAM, cfg.DisableTLS, cfg.Username, cfg.Password, DefaultTimeout)
	opts, err := connection.ClientOptions(ctx)
	if err != nil {
		return nil, err
	}

	opts = append(opts,
		kgo.SeedBrokers(BootstrapServers(cfg.BootstrapServer, true)...),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ConsumeTopics(topics...),
		kgo.DisableAutoCommit(),
	)

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	return &franzConsumer{client: client}, nil
}

func (f *franzConsumer) Fetch(ctx context.Context) ([]Message, error) {
	fetches := f.client.PollFetches(ctx)
	if errs := fetches.Errors(); len(errs) > 0 {
		var combined []error
		for _, fetchErr := range errs {
			combined = append(combined, fetchErr.Err)
		}

		return nil, NewFetchMessageError(errors.Join(combined...))
	}

	var out []Message
	fetches.EachRecord(func(record *kgo.Record) {
		out = append(out, Message{
			Topic:     record.Topic,
			Partition: record.Partition,
			Offset:    record.Offset,
			Key:       record.Key,
			Value:     record.Value,
		})
	})

	return out, nil
}

func (f *franzConsumer) CommitMessages(ctx context.Context, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}

	offsets := make(map[string]map[int32]kgo.EpochOffset)
	for _, msg := range msgs {
		if offsets[msg.Topic] == nil {
			offsets[msg.Topic] = make(map[int32]kgo.EpochOffset)
		}

		// Kafka expects the next offset to read, so commit offset + 1.
		existing, found := offsets[msg.Topic][msg.Partition]
		if !found || existing.Offset <= msg.Offset {
			offsets[msg.Topic][msg.Partition] = kgo.EpochOffset{Epoch: -1, Offset: msg.Offset + 1}
		}
	}

	var commitErr error
	f.client.CommitOffsetsSync(ctx, offsets, func(_ *kgo.Client, _ *kmsg.OffsetCommitRequest, _ *kmsg.OffsetCommitResponse, err error) {
		if err != nil {
			slog.Error("Sync commit callback failed", slog.Any("err", err))
			commitErr = err
		}
	})

	if commitErr != nil {
		return fmt.Errorf("failed to commit offsets: %w", commitErr)
	}

	return nil
}

func (f *franzConsumer) Close() {
	f.client.Close()
}
