package comprehend

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/comprehend"
	"github.com/aws/aws-sdk-go-v2/service/comprehend/types"
)

// Config options for the Comprehend classifier
type Config struct {
	Region string

	// LanguageCode for PII entity detection (default: "en").
	LanguageCode string
}

// Classifier implements simpleresource.Classifier using Comprehend PII
// entity detection. Errors are returned as-is; the orchestrator decides
// the fail-open policy, not this adapter.
type Classifier struct {
	client   *comprehend.Client
	language types.LanguageCode
}

// New creates a new Comprehend classifier
func New(ctx context.Context, config Config) (*Classifier, error) {
	if config.Region == "" {
		config.Region = "us-east-1"
	}
	if config.LanguageCode == "" {
		config.LanguageCode = "en"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(config.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Classifier{
		client:   comprehend.NewFromConfig(awsCfg),
		language: types.LanguageCode(config.LanguageCode),
	}, nil
}

// ContainsSensitiveData reports whether the text contains PII entities
func (c *Classifier) ContainsSensitiveData(ctx context.Context, text string) (bool, error) {
	result, err := c.client.DetectPiiEntities(ctx, &comprehend.DetectPiiEntitiesInput{
		Text:         &text,
		LanguageCode: c.language,
	})
	if err != nil {
		return false, fmt.Errorf("pii detection failed: %w", err)
	}
	return len(result.Entities) > 0, nil
}
