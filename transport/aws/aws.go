// Package aws runs the nanofix message tap on SNS topics with SQS queues
// behind them for injection.
//
// Tap topics are dotted ("fix.inbound"), which SNS and SQS reject, so every
// name is mapped onto the AWS alphabet by EntityName before it reaches the
// API. Setting an endpoint targets LocalStack; an empty or malformed
// account id is then replaced by LocalStack's.
package aws

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-aws/sns"
	"github.com/ThreeDotsLabs/watermill-aws/sqs"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	amazonsns "github.com/aws/aws-sdk-go-v2/service/sns"
	amazonsqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	smithyendpoints "github.com/aws/smithy-go/endpoints"

	"github.com/drblury/nanofix/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "aws"

const (
	// LocalstackAccountID is used against a custom endpoint when no valid
	// account id is configured.
	LocalstackAccountID = "000000000000"
	accountIDLength     = 12

	// QueuePrefix namespaces the SQS queues created for inject topics.
	QueuePrefix = "nanofix-"
)

// DefaultConfigLoader loads the shared AWS configuration. Tests replace it.
var DefaultConfigLoader = awsconfig.LoadDefaultConfig

// TopicResolverFactory builds the ARN resolver. Tests replace it.
var TopicResolverFactory = sns.NewGenerateArnTopicResolver

// PublisherFactory builds the SNS publisher. Tests replace it.
var PublisherFactory = func(cfg sns.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return sns.NewPublisher(cfg, logger)
}

// SubscriberFactory builds the SNS to SQS subscriber. Tests replace it.
var SubscriberFactory = func(cfg sns.SubscriberConfig, sqsCfg sqs.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return sns.NewSubscriber(cfg, sqsCfg, logger)
}

// Register adds the SNS/SQS transport to the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.AWSCapabilities)
}

// Capabilities returns the capabilities of the SNS/SQS transport.
func Capabilities() transport.Capabilities {
	return transport.AWSCapabilities
}

// target is everything Build derives from the configuration before it
// creates clients.
type target struct {
	aws       aws.Config
	accountID string
	endpoint  *url.URL
}

// Build connects the tap to SNS and SQS.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	t, err := resolveTarget(ctx, cfg, logger)
	if err != nil {
		return transport.Transport{}, err
	}

	resolver, err := t.topicResolver()
	if err != nil {
		logger.Error("Failed to create SNS topic resolver", err, watermill.LogFields{
			"account_id": t.accountID,
			"region":     t.aws.Region,
		})
		return transport.Transport{}, err
	}
	logger.Info("Connecting tap to SNS", watermill.LogFields{
		"account_id": t.accountID,
		"region":     t.aws.Region,
		"localstack": t.endpoint != nil,
	})

	publisher, err := PublisherFactory(sns.PublisherConfig{
		TopicResolver: resolver,
		AWSConfig:     t.aws,
		OptFns:        t.snsOptions(),
		Marshaler:     sns.DefaultMarshalerUnmarshaler{},
	}, logger)
	if err != nil {
		return transport.Transport{}, err
	}

	subscriber, err := SubscriberFactory(
		sns.SubscriberConfig{
			AWSConfig:            t.aws,
			OptFns:               t.snsOptions(),
			TopicResolver:        resolver,
			GenerateSqsQueueName: queueName,
		},
		sqs.SubscriberConfig{
			AWSConfig: t.aws,
			OptFns:    t.sqsOptions(),
		},
		logger,
	)
	if err != nil {
		_ = publisher.Close()
		return transport.Transport{}, err
	}

	return transport.Transport{Publisher: publisher, Subscriber: subscriber}, nil
}

func resolveTarget(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (target, error) {
	var t target
	var opts []func(*awsconfig.LoadOptions) error

	region := cfg.GetAWSRegion()
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if key, secret := cfg.GetAWSAccessKeyID(), cfg.GetAWSSecretAccessKey(); key != "" && secret != "" {
		logger.Debug("Using static AWS credentials", nil)
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(key, secret, "")))
	}

	if raw := cfg.GetAWSEndpoint(); raw != "" {
		endpoint, err := url.Parse(raw)
		if err != nil {
			return target{}, fmt.Errorf("parse AWS endpoint %q: %w", raw, err)
		}
		t.endpoint = endpoint
	}

	loaded, err := DefaultConfigLoader(ctx, opts...)
	if err != nil {
		logger.Error("Failed to load AWS config", err, watermill.LogFields{"region": region})
		return target{}, err
	}
	// the loader may ignore WithRegion when a profile sets one
	if region != "" {
		loaded.Region = region
	}
	if t.endpoint != nil {
		loaded.BaseEndpoint = aws.String(t.endpoint.String())
	}
	t.aws = loaded
	t.accountID = accountID(cfg.GetAWSAccountID(), t.endpoint != nil, logger)
	return t, nil
}

// accountID trims quoting that env files tend to leave around the value.
func accountID(configured string, localstack bool, logger watermill.LoggerAdapter) string {
	id := strings.Trim(configured, "\"' ")
	if !localstack || len(id) == accountIDLength {
		return id
	}
	if id != "" {
		logger.Info("Ignoring malformed AWS account id for LocalStack", watermill.LogFields{"account_id": id})
	}
	return LocalstackAccountID
}

func (t target) topicResolver() (sns.TopicResolver, error) {
	next, err := TopicResolverFactory(t.accountID, t.aws.Region)
	if err != nil {
		return nil, err
	}
	return tapTopicResolver{next: next}, nil
}

func (t target) snsOptions() []func(*amazonsns.Options) {
	if t.endpoint == nil {
		return nil
	}
	return []func(*amazonsns.Options){
		amazonsns.WithEndpointResolverV2(sns.OverrideEndpointResolver{
			Endpoint: smithyendpoints.Endpoint{URI: *t.endpoint},
		}),
	}
}

func (t target) sqsOptions() []func(*amazonsqs.Options) {
	if t.endpoint == nil {
		return nil
	}
	return []func(*amazonsqs.Options){
		amazonsqs.WithEndpointResolverV2(sqs.OverrideEndpointResolver{
			Endpoint: smithyendpoints.Endpoint{URI: *t.endpoint},
		}),
	}
}

func queueName(_ context.Context, arn sns.TopicArn) (string, error) {
	topic, err := sns.ExtractTopicNameFromTopicArn(arn)
	if err != nil {
		return "", err
	}
	return QueuePrefix + string(topic), nil
}

// EntityName maps a tap topic such as "fix.inbound" onto the characters SNS
// topic and SQS queue names allow.
func EntityName(topic string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, topic)
}

type tapTopicResolver struct {
	next sns.TopicResolver
}

func (r tapTopicResolver) ResolveTopic(ctx context.Context, topic string) (sns.TopicArn, error) {
	return r.next.ResolveTopic(ctx, EntityName(topic))
}
