package awsbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/tendant/simple-resource/pkg/simpleresource"
)

// Config options for the AWS event publisher
type Config struct {
	Region string

	// Source is the event source recorded on every domain event
	// (default: "resource.api").
	Source string

	// EventBusName is the EventBridge bus to publish to (default:
	// "default").
	EventBusName string

	// QueueURL enables the async-processing queue when set.
	QueueURL string

	// TopicARN enables notifications when set.
	TopicARN string
}

// Publisher implements simpleresource.Publisher on EventBridge, SQS,
// and SNS. Queue and topic are optional; calls against an unconfigured
// channel are no-ops.
type Publisher struct {
	events *eventbridge.Client
	queue  *sqs.Client
	topic  *sns.Client
	config Config
}

// New creates a new AWS event publisher
func New(ctx context.Context, config Config) (*Publisher, error) {
	if config.Region == "" {
		config.Region = "us-east-1"
	}
	if config.Source == "" {
		config.Source = "resource.api"
	}
	if config.EventBusName == "" {
		config.EventBusName = "default"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(config.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Publisher{
		events: eventbridge.NewFromConfig(awsCfg),
		queue:  sqs.NewFromConfig(awsCfg),
		topic:  sns.NewFromConfig(awsCfg),
		config: config,
	}, nil
}

// PublishEvent publishes a domain event to the configured bus
func (p *Publisher) PublishEvent(ctx context.Context, event simpleresource.Event) error {
	detail, err := json.Marshal(event.Detail)
	if err != nil {
		return fmt.Errorf("failed to marshal event detail: %w", err)
	}

	result, err := p.events.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []ebtypes.PutEventsRequestEntry{
			{
				Source:       aws.String(p.config.Source),
				DetailType:   aws.String(event.Type),
				Detail:       aws.String(string(detail)),
				EventBusName: aws.String(p.config.EventBusName),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}
	if result.FailedEntryCount > 0 {
		return errors.New("event bus rejected the entry")
	}
	return nil
}

// Enqueue hands a message to the async-processing queue. No-op when no
// queue is configured.
func (p *Publisher) Enqueue(ctx context.Context, msg simpleresource.QueueMessage) error {
	if p.config.QueueURL == "" {
		return nil
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal queue message: %w", err)
	}

	_, err = p.queue.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.config.QueueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"category": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(msg.Category)),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue message: %w", err)
	}
	return nil
}

// Notify publishes to the configured topic. No-op when no topic is
// configured.
func (p *Publisher) Notify(ctx context.Context, subject, message string) error {
	if p.config.TopicARN == "" {
		return nil
	}

	_, err := p.topic.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.config.TopicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(message),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"eventType": {
				DataType:    aws.String("String"),
				StringValue: aws.String("notification"),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}
