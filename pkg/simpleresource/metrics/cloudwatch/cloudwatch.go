package cloudwatch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Config options for the CloudWatch metrics sink
type Config struct {
	Region string

	// Namespace for published metrics (default: "ResourceService").
	Namespace string
}

// api is the subset of the CloudWatch client used by the sink.
type api interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Sink implements simpleresource.MetricsSink on CloudWatch. Publication
// is fire-and-forget and happens off the caller's path: delivery
// failures are logged at debug level and dropped, and annotations are
// attached as dimensions to subsequent counts rather than published on
// their own.
type Sink struct {
	client    api
	namespace string
	logger    *slog.Logger

	mu         sync.Mutex
	dimensions map[string]string
}

// New creates a new CloudWatch metrics sink
func New(ctx context.Context, config Config) (*Sink, error) {
	if config.Region == "" {
		config.Region = "us-east-1"
	}
	if config.Namespace == "" {
		config.Namespace = "ResourceService"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(config.Region))
	if err != nil {
		return nil, err
	}

	return NewWithClient(cloudwatch.NewFromConfig(awsCfg), config.Namespace), nil
}

// NewWithClient creates a sink around an existing client
func NewWithClient(client api, namespace string) *Sink {
	return &Sink{
		client:     client,
		namespace:  namespace,
		logger:     slog.Default(),
		dimensions: make(map[string]string),
	}
}

// Count publishes a counter datum. Delivery runs in its own goroutine
// so the calling operation never waits on the metrics endpoint.
func (s *Sink) Count(name string, n int) {
	s.mu.Lock()
	dims := make([]types.Dimension, 0, len(s.dimensions))
	for k, v := range s.dimensions {
		dims = append(dims, types.Dimension{Name: aws.String(k), Value: aws.String(v)})
	}
	s.mu.Unlock()

	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(s.namespace),
		MetricData: []types.MetricDatum{
			{
				MetricName: aws.String(name),
				Value:      aws.Float64(float64(n)),
				Unit:       types.StandardUnitCount,
				Dimensions: dims,
			},
		},
	}

	go func() {
		if _, err := s.client.PutMetricData(context.Background(), input); err != nil {
			s.logger.Debug("metric publish failed", "metric", name, "error", err)
		}
	}()
}

// Annotate records a dimension applied to subsequent counts
func (s *Sink) Annotate(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dimensions[key] = value
}
