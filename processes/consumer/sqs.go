package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/banquet-labs/banquet/featurestore"
	"github.com/banquet-labs/banquet/lib/awslib"
	"github.com/banquet-labs/banquet/lib/config"
	"github.com/banquet-labs/banquet/lib/jsonutil"
)

const (
	sqsMaxMessages     = 10
	sqsWaitTimeSeconds = 20
)

// sqsEnvelope is the expected message body: one push source and its rows.
type sqsEnvelope struct {
	Source string           `json:"source"`
	Rows   []map[string]any `json:"rows"`
}

type SQSIngestor struct {
	fs       *featurestore.FeatureStore
	client   *sqs.Client
	queueURL string
}

func NewSQSIngestor(ctx context.Context, fs *featurestore.FeatureStore, cfg config.SQS) (*SQSIngestor, error) {
	awsConfig, err := awslib.NewDefaultConfig(ctx, cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws configuration: %w", err)
	}

	return &SQSIngestor{
		fs:       fs,
		client:   sqs.NewFromConfig(awsConfig),
		queueURL: cfg.QueueURL,
	}, nil
}

// Run long-polls the queue until the context is cancelled. Messages are
// deleted only after their rows land in the online store, so a failed push
// redelivers after the visibility timeout.
func (s *SQSIngestor) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		output, err := s.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(s.queueURL),
			MaxNumberOfMessages: sqsMaxMessages,
			WaitTimeSeconds:     sqsWaitTimeSeconds,
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			slog.Warn("Failed to receive messages", slog.Any("err", err))
			continue
		}

		for _, message := range output.Messages {
			if err = s.process(ctx, aws.ToString(message.Body)); err != nil {
				slog.Warn("Failed to process message, leaving it on the queue",
					slog.String("messageID", aws.ToString(message.MessageId)),
					slog.Any("err", err),
				)
				continue
			}

			if _, err = s.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
				QueueUrl:      aws.String(s.queueURL),
				ReceiptHandle: message.ReceiptHandle,
			}); err != nil {
				slog.Warn("Failed to delete message", slog.Any("err", err))
			}
		}
	}
}

func (s *SQSIngestor) process(ctx context.Context, body string) error {
	var envelope sqsEnvelope
	if err := jsonutil.Unmarshal([]byte(body), &envelope); err != nil {
		return fmt.Errorf("failed to parse message body: %w", err)
	}

	if envelope.Source == "" {
		return fmt.Errorf("message has no source")
	}

	if len(envelope.Rows) == 0 {
		return nil
	}

	if err := s.fs.Push(ctx, envelope.Source, envelope.Rows, featurestore.PushModeOnline); err != nil {
		return err
	}

	s.fs.Metrics().Count("stream.rows", int64(len(envelope.Rows)), map[string]string{"source": envelope.Source})
	return nil
}
