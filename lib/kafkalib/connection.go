package kafkalib

import (
	"cmp"
	"context"
	"crypto/tls"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	awsCfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl/aws"
	"github.com/twmb/franz-go/pkg/sasl/plain"
	"github.com/twmb/franz-go/pkg/sasl/scram"
)

const DefaultTimeout = 10 * time.Second

type Mechanism string

const (
	Plain       Mechanism = "PLAIN"
	ScramSha512 Mechanism = "SCRAM-SHA-512"
	AwsMskIam   Mechanism = "AWS-MSK-IAM"
)

type Connection struct {
	enableAWSMSKIAM bool
	disableTLS      bool
	username        string
	password        string

	timeout time.Duration
}

func NewConnection(enableAWSMSKIAM bool, disableTLS bool, username, password string, timeout time.Duration) Connection {
	return Connection{
		enableAWSMSKIAM: enableAWSMSKIAM,
		disableTLS:      disableTLS,
		username:        username,
		password:        password,
		timeout:         cmp.Or(timeout, DefaultTimeout),
	}
}

func (c Connection) Mechanism() Mechanism {
	if c.enableAWSMSKIAM {
		return AwsMskIam
	}

	// support azure event hub
	if c.username == "$ConnectionString" {
		return Plain
	}

	if c.username != "" && c.password != "" {
		return ScramSha512
	}

	return Plain
}

// ClientOptions builds the auth and TLS options for a franz-go client.
func (c Connection) ClientOptions(ctx context.Context, awsOptFns ...func(options *awsCfg.LoadOptions) error) ([]kgo.Opt, error) {
	opts := []kgo.Opt{kgo.DialTimeout(c.timeout)}

	switch c.Mechanism() {
	case ScramSha512:
		opts = append(opts, kgo.SASL(scram.Auth{
			User: c.username,
			Pass: c.password,
		}.AsSha512Mechanism()))
		if !c.disableTLS {
			opts = append(opts, kgo.DialTLSConfig(&tls.Config{}))
		}
	case AwsMskIam:
		_awsCfg, err := awsCfg.LoadDefaultConfig(ctx, awsOptFns...)
		if err != nil {
			return nil, fmt.Errorf("failed to load aws configuration: %w", err)
		}

		opts = append(opts, kgo.SASL(aws.ManagedStreamingIAM(func(ctx context.Context) (aws.Auth, error) {
			credentials, err := _awsCfg.Credentials.Retrieve(ctx)
			if err != nil {
				return aws.Auth{}, fmt.Errorf("failed to retrieve aws credentials: %w", err)
			}

			return aws.Auth{
				AccessKey:    credentials.AccessKeyID,
				SecretKey:    credentials.SecretAccessKey,
				SessionToken: credentials.SessionToken,
			}, nil
		})))
		// MSK always requires TLS for IAM auth.
		opts = append(opts, kgo.DialTLSConfig(&tls.Config{}))
	case Plain:
		if c.username != "" {
			opts = append(opts, kgo.SASL(plain.Auth{
				User: c.username,
				Pass: c.password,
			}.AsMechanism()))
		}
		if !c.disableTLS {
			opts = append(opts, kgo.DialTLSConfig(&tls.Config{}))
		}
	default:
		return nil, fmt.Errorf("unsupported kafka mechanism: %s", c.Mechanism())
	}

	return opts, nil
}

// BootstrapServers splits a comma-separated bootstrap.servers value.
func BootstrapServers(bootstrapServer string, shuffle bool) []string {
	parts := strings.Split(bootstrapServer, ",")
	if shuffle {
		rand.Shuffle(len(parts), func(i, j int) {
			parts[i], parts[j] = parts[j], parts[i]
		})
	}

	return parts
}
