// Package consumer ingests pushed rows from Kafka or SQS into the feature
// store. Each Kafka topic maps to the push source with the same name; offsets
// are committed only after the buffered rows reach the online store.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/banquet-labs/banquet/featurestore"
	"github.com/banquet-labs/banquet/lib/config"
	"github.com/banquet-labs/banquet/lib/jitter"
	"github.com/banquet-labs/banquet/lib/jsonutil"
	"github.com/banquet-labs/banquet/lib/kafkalib"
)

const (
	fetchBaseMs = 500
	fetchMaxMs  = 30_000
)

type Ingestor struct {
	fs       *featurestore.FeatureStore
	consumer kafkalib.Consumer
	cfg      config.Stream
	// topicSources maps a consumed topic to the push or stream source it feeds.
	topicSources map[string]string
	buffer       *rowBuffer
}

func NewIngestor(fs *featurestore.FeatureStore, kafkaConsumer kafkalib.Consumer, cfg config.Stream, topicSources map[string]string) *Ingestor {
	return &Ingestor{
		fs:           fs,
		consumer:     kafkaConsumer,
		cfg:          cfg,
		topicSources: topicSources,
		buffer:       newRowBuffer(),
	}
}

// TopicSources maps each Kafka topic to consume onto the stream source it
// feeds. Push sources are consumed under the source name; kafka sources under
// their configured topic.
func TopicSources(ctx context.Context, fs *featurestore.FeatureStore) (map[string]string, error) {
	views, err := fs.Registry().ListFeatureViews(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string)
	for _, view := range views {
		if !view.IsStream() {
			continue
		}

		source := view.StreamSource
		topic := source.Name
		if source.Topic != "" {
			topic = source.Topic
		}

		out[topic] = source.Name
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no stream feature views are registered")
	}

	return out, nil
}

func (i *Ingestor) sourceForTopic(topic string) string {
	if source, found := i.topicSources[topic]; found {
		return source
	}

	return topic
}

// Run polls until the context is cancelled, buffering rows and flushing when
// the buffer hits the configured row count. A final flush drains the buffer on
// shutdown.
func (i *Ingestor) Run(ctx context.Context) error {
	var fetchAttempts int
	for {
		if ctx.Err() != nil {
			return i.Flush(context.WithoutCancel(ctx), "shutdown")
		}

		msgs, err := i.consumer.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return i.Flush(context.WithoutCancel(ctx), "shutdown")
			}

			if _, isOk := kafkalib.IsFetchMessageError(err); isOk {
				fetchAttempts++
				sleep := jitter.Jitter(fetchBaseMs, fetchMaxMs, fetchAttempts)
				slog.Warn("Failed to fetch messages, backing off",
					slog.Any("err", err),
					slog.Duration("sleep", sleep),
				)
				time.Sleep(sleep)
				continue
			}

			return err
		}

		fetchAttempts = 0
		for _, msg := range msgs {
			var row map[string]any
			if err = jsonutil.Unmarshal(msg.Value, &row); err != nil {
				slog.Warn("Skipping message that is not a JSON object",
					slog.String("topic", msg.Topic),
					slog.Int64("offset", msg.Offset),
					slog.Any("err", err),
				)
				// Still tracked for commit so a bad message is not re-read forever.
				i.buffer.Add(msg, nil)
				continue
			}

			i.buffer.Add(msg, row)
		}

		if i.buffer.Size() >= i.cfg.BufferRows {
			if err = i.Flush(ctx, "size"); err != nil {
				slog.Warn("Flush failed, rows stay buffered", slog.Any("err", err))
			}
		}
	}
}

// Flush pushes every buffered source to the online store and commits the
// consumed offsets. Rows for a source that fails to push stay buffered for the
// next flush.
func (i *Ingestor) Flush(ctx context.Context, reason string) error {
	i.buffer.Lock()
	defer i.buffer.Unlock()

	var flushErrs []error
	for topic, entry := range i.buffer.data {
		if len(entry.rows) == 0 && len(entry.lastMessages) == 0 {
			continue
		}

		source := i.sourceForTopic(topic)
		start := time.Now()
		tags := map[string]string{
			"what":   "success",
			"source": source,
			"reason": reason,
		}

		if len(entry.rows) > 0 {
			if err := i.fs.Push(ctx, source, entry.rows, featurestore.PushModeOnline); err != nil {
				tags["what"] = "push_fail"
				flushErrs = append(flushErrs, fmt.Errorf("failed to push source %q: %w", source, err))
				i.fs.Metrics().Timing("stream.flush", time.Since(start), tags)
				continue
			}
		}

		if err := i.consumer.CommitMessages(ctx, entry.messages()...); err != nil {
			// The rows are already in the online store; re-reading them after a
			// restart is safe because stale event timestamps are skipped.
			tags["what"] = "commit_fail"
			flushErrs = append(flushErrs, fmt.Errorf("failed to commit offsets for source %q: %w", source, err))
		}

		i.fs.Metrics().Count("stream.rows", int64(len(entry.rows)), map[string]string{"source": source})
		i.fs.Metrics().Timing("stream.flush", time.Since(start), tags)

		i.buffer.size -= uint(len(entry.rows))
		delete(i.buffer.data, topic)
	}

	return errors.Join(flushErrs...)
}
