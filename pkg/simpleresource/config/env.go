package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// envConfig is the environment-variable surface, bound via cleanenv.
type envConfig struct {
	Port        string `env:"PORT" env-default:""`
	Environment string `env:"ENVIRONMENT" env-default:""`
	Region      string `env:"AWS_REGION" env-default:""`

	DatabaseURL   string `env:"DATABASE_URL" env-default:""`
	DynamoTable   string `env:"DYNAMODB_TABLE" env-default:""`
	CategoryIndex string `env:"DYNAMODB_CATEGORY_INDEX" env-default:""`

	S3Bucket   string `env:"S3_BUCKET" env-default:""`
	S3Endpoint string `env:"S3_ENDPOINT" env-default:""`

	EventBusName string `env:"EVENT_BUS_NAME" env-default:""`
	EventSource  string `env:"EVENT_SOURCE" env-default:""`
	QueueURL     string `env:"SQS_QUEUE_URL" env-default:""`
	TopicARN     string `env:"SNS_TOPIC_ARN" env-default:""`

	EnablePIIDetection bool   `env:"ENABLE_PII_DETECTION" env-default:"false"`
	MetricsNamespace   string `env:"METRICS_NAMESPACE" env-default:""`
}

// WithEnv applies environment variable overrides.
//
// Store selection is inferred: DATABASE_URL selects postgres,
// DYNAMODB_TABLE selects dynamodb, neither selects memory. Likewise
// S3_BUCKET selects the s3 backup tier and EVENT_BUS_NAME enables AWS
// event publishing.
func WithEnv() Option {
	return func(c *ServerConfig) error {
		var env envConfig
		if err := cleanenv.ReadEnv(&env); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}

		if env.Port != "" {
			c.Port = env.Port
		}
		if env.Environment != "" {
			c.Environment = env.Environment
		}
		if env.Region != "" {
			c.Region = env.Region
		}

		switch {
		case env.DatabaseURL != "":
			c.StoreType = "postgres"
			c.DatabaseURL = env.DatabaseURL
		case env.DynamoTable != "":
			c.StoreType = "dynamodb"
			c.DynamoTable = env.DynamoTable
			c.CategoryIndex = env.CategoryIndex
		}

		if env.S3Bucket != "" {
			c.BackupType = "s3"
			c.S3Bucket = env.S3Bucket
			c.S3Endpoint = env.S3Endpoint
		}

		if env.EventBusName != "" {
			c.EventBusName = env.EventBusName
			c.EventSource = env.EventSource
			c.QueueURL = env.QueueURL
			c.TopicARN = env.TopicARN
		}

		c.EnablePIIDetection = env.EnablePIIDetection
		if env.MetricsNamespace != "" {
			c.MetricsNamespace = env.MetricsNamespace
		}

		return nil
	}
}
