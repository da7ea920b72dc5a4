package config

import (
	"fmt"

	"github.com/banquet-labs/banquet/lib/stringutil"
)

type Kafka struct {
	// BootstrapServer is a comma-separated host:port list, following Kafka's
	// bootstrap.servers convention.
	BootstrapServer string `yaml:"bootstrapServer"`
	GroupID         string `yaml:"groupID"`

	Username        string `yaml:"username,omitempty"`
	Password        string `yaml:"password,omitempty"`
	EnableAWSMSKIAM bool   `yaml:"enableAWSMSKIAM,omitempty"`
	DisableTLS      bool   `yaml:"disableTLS,omitempty"`
}

func (k *Kafka) String() string {
	// Don't log credentials.
	return fmt.Sprintf("bootstrapServer=%s, groupID=%s, user_set=%v, pass_set=%v",
		k.BootstrapServer, k.GroupID, k.Username != "", k.Password != "")
}

type SQS struct {
	QueueURL string `yaml:"queueURL"`
	Region   string `yaml:"region"`
}

// Stream configures ingestion for stream feature views.
type Stream struct {
	Kafka *Kafka `yaml:"kafka,omitempty"`
	SQS   *SQS   `yaml:"sqs,omitempty"`

	FlushIntervalSeconds int  `yaml:"flushIntervalSeconds"`
	BufferRows           uint `yaml:"bufferRows"`
}

func (s *Stream) Validate() error {
	if s.Kafka == nil && s.SQS == nil {
		return fmt.Errorf("stream config needs kafka or sqs")
	}

	if s.Kafka != nil && stringutil.Empty(s.Kafka.BootstrapServer, s.Kafka.GroupID) {
		return fmt.Errorf("kafka settings are invalid: %s", s.Kafka.String())
	}

	if s.SQS != nil && stringutil.Empty(s.SQS.QueueURL, s.SQS.Region) {
		return fmt.Errorf("sqs queueURL and region are required")
	}

	return nil
}
