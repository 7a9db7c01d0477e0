package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/simple-resource/pkg/simpleresource"
	membackup "github.com/tendant/simple-resource/pkg/simpleresource/backup/memory"
	s3backup "github.com/tendant/simple-resource/pkg/simpleresource/backup/s3"
	"github.com/tendant/simple-resource/pkg/simpleresource/classify/comprehend"
	"github.com/tendant/simple-resource/pkg/simpleresource/events/awsbus"
	cwmetrics "github.com/tendant/simple-resource/pkg/simpleresource/metrics/cloudwatch"
	dynamostore "github.com/tendant/simple-resource/pkg/simpleresource/store/dynamodb"
	memorystore "github.com/tendant/simple-resource/pkg/simpleresource/store/memory"
	pgstore "github.com/tendant/simple-resource/pkg/simpleresource/store/postgres"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:        "8080",
		Environment: "development",
		StoreType:   "memory",
		BackupType:  "memory",
		Region:      "us-east-1",
	}
}

// ServerConfig represents server configuration for the simple-resource service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing
	Region      string

	// Primary store configuration
	StoreType     string // "memory", "dynamodb", "postgres"
	DatabaseURL   string // postgres connection string
	DynamoTable   string
	CategoryIndex string

	// Backup store configuration
	BackupType string // "memory", "s3"
	S3Bucket   string
	S3Endpoint string

	// Event configuration; AWS publishing is enabled when EventBusName
	// is set. Queue and topic stay optional within it.
	EventBusName string
	EventSource  string
	QueueURL     string
	TopicARN     string

	// Classifier and metrics
	EnablePIIDetection bool
	MetricsNamespace   string // CloudWatch publishing enabled when set
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	switch c.StoreType {
	case "memory":
	case "dynamodb":
		if c.DynamoTable == "" {
			return errors.New("dynamodb table is required when using dynamodb")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("database_url is required when using postgres")
		}
	default:
		return fmt.Errorf("store_type must be 'memory', 'dynamodb', or 'postgres', got %q", c.StoreType)
	}

	switch c.BackupType {
	case "memory":
	case "s3":
		if c.S3Bucket == "" {
			return errors.New("s3 bucket is required when using s3 backup")
		}
	default:
		return fmt.Errorf("backup_type must be 'memory' or 's3', got %q", c.BackupType)
	}

	return nil
}

// BuildService creates a Service instance from the server configuration
func (c *ServerConfig) BuildService(ctx context.Context) (simpleresource.Service, error) {
	var options []simpleresource.Option

	primary, err := c.buildPrimaryStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build primary store: %w", err)
	}
	options = append(options, simpleresource.WithPrimaryStore(primary))

	backup, err := c.buildBackupStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build backup store: %w", err)
	}
	options = append(options, simpleresource.WithBackupStore(backup))

	if c.EventBusName != "" {
		publisher, err := awsbus.New(ctx, awsbus.Config{
			Region:       c.Region,
			Source:       c.EventSource,
			EventBusName: c.EventBusName,
			QueueURL:     c.QueueURL,
			TopicARN:     c.TopicARN,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build event publisher: %w", err)
		}
		options = append(options, simpleresource.WithPublisher(publisher))
	}

	if c.EnablePIIDetection {
		classifier, err := comprehend.New(ctx, comprehend.Config{Region: c.Region})
		if err != nil {
			return nil, fmt.Errorf("failed to build classifier: %w", err)
		}
		options = append(options, simpleresource.WithClassifier(classifier))
	}

	if c.MetricsNamespace != "" {
		sink, err := cwmetrics.New(ctx, cwmetrics.Config{
			Region:    c.Region,
			Namespace: c.MetricsNamespace,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build metrics sink: %w", err)
		}
		options = append(options, simpleresource.WithMetrics(sink))
	}

	return simpleresource.New(options...)
}

// buildPrimaryStore creates a PrimaryStore based on the configuration
func (c *ServerConfig) buildPrimaryStore(ctx context.Context) (simpleresource.PrimaryStore, error) {
	switch c.StoreType {
	case "memory":
		return memorystore.New(), nil
	case "dynamodb":
		return dynamostore.New(ctx, dynamostore.Config{
			Region:        c.Region,
			Table:         c.DynamoTable,
			CategoryIndex: c.CategoryIndex,
		})
	case "postgres":
		pool, err := pgxpool.New(ctx, c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return pgstore.NewWithPool(pool), nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", c.StoreType)
	}
}

// buildBackupStore creates a BackupStore based on the configuration
func (c *ServerConfig) buildBackupStore(ctx context.Context) (simpleresource.BackupStore, error) {
	switch c.BackupType {
	case "memory":
		return membackup.New(), nil
	case "s3":
		return s3backup.New(ctx, s3backup.Config{
			Region:   c.Region,
			Bucket:   c.S3Bucket,
			Endpoint: c.S3Endpoint,
		})
	default:
		return nil, fmt.Errorf("unsupported backup type: %s", c.BackupType)
	}
}
