package config

// Programmatic options, for callers that wire configuration in code
// rather than from the environment.

// WithPort sets the HTTP listen port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the runtime environment name
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		c.Environment = env
		return nil
	}
}

// WithRegion sets the AWS region used by all AWS-backed collaborators
func WithRegion(region string) Option {
	return func(c *ServerConfig) error {
		c.Region = region
		return nil
	}
}

// WithDynamoDB selects the DynamoDB primary store
func WithDynamoDB(table, categoryIndex string) Option {
	return func(c *ServerConfig) error {
		c.StoreType = "dynamodb"
		c.DynamoTable = table
		c.CategoryIndex = categoryIndex
		return nil
	}
}

// WithPostgres selects the PostgreSQL primary store
func WithPostgres(databaseURL string) Option {
	return func(c *ServerConfig) error {
		c.StoreType = "postgres"
		c.DatabaseURL = databaseURL
		return nil
	}
}

// WithS3Backup selects the S3 backup store
func WithS3Backup(bucket, endpoint string) Option {
	return func(c *ServerConfig) error {
		c.BackupType = "s3"
		c.S3Bucket = bucket
		c.S3Endpoint = endpoint
		return nil
	}
}

// WithAWSEvents enables EventBridge publishing plus the optional queue
// and notification topic
func WithAWSEvents(busName, queueURL, topicARN string) Option {
	return func(c *ServerConfig) error {
		c.EventBusName = busName
		c.QueueURL = queueURL
		c.TopicARN = topicARN
		return nil
	}
}

// WithPIIDetection toggles the Comprehend classifier
func WithPIIDetection(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.EnablePIIDetection = enabled
		return nil
	}
}

// WithMetricsNamespace enables CloudWatch metrics under the namespace
func WithMetricsNamespace(namespace string) Option {
	return func(c *ServerConfig) error {
		c.MetricsNamespace = namespace
		return nil
	}
}
