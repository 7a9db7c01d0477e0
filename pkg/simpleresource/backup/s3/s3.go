package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/tendant/simple-resource/pkg/simpleresource"
)

// Config options for the S3 backup store
type Config struct {
	Region          string // AWS region
	Bucket          string // S3 bucket name
	AccessKeyID     string // AWS access key ID
	SecretAccessKey string // AWS secret access key
	Endpoint        string // Optional custom endpoint for S3-compatible services
	UsePathStyle    bool   // Use path-style addressing (default: false)

	// ActivePrefix and ArchivePrefix separate the two tiers inside the
	// bucket. Defaults: "items" and "archive".
	ActivePrefix  string
	ArchivePrefix string

	// ArchiveStorageClass is the storage class for archived records
	// (default: GLACIER). The active tier always uses STANDARD.
	ArchiveStorageClass string

	// MinIO/S3-compatible service options
	CreateBucketIfNotExist bool // Create bucket if it doesn't exist
}

// Backend is an S3-compatible implementation of the
// simpleresource.BackupStore interface. Records are stored as JSON
// documents under <prefix>/<category>/<id>.json with AES256
// server-side encryption.
type Backend struct {
	client        *s3.Client
	uploader      *manager.Uploader
	bucket        string
	activePrefix  string
	archivePrefix string
	archiveClass  types.StorageClass
}

// New creates a new S3-compatible backup store
func New(ctx context.Context, config Config) (*Backend, error) {
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if config.Region == "" {
		config.Region = "us-east-1"
	}
	if config.ActivePrefix == "" {
		config.ActivePrefix = "items"
	}
	if config.ArchivePrefix == "" {
		config.ArchivePrefix = "archive"
	}
	if config.ArchiveStorageClass == "" {
		config.ArchiveStorageClass = string(types.StorageClassGlacier)
	}

	var awsCfg aws.Config
	var err error

	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(config.Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				config.AccessKeyID,
				config.SecretAccessKey,
				"",
			)),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(config.Region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Options []func(*s3.Options)
	if config.Endpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
			o.UsePathStyle = config.UsePathStyle
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Options...)

	backend := &Backend{
		client:        client,
		uploader:      manager.NewUploader(client),
		bucket:        config.Bucket,
		activePrefix:  config.ActivePrefix,
		archivePrefix: config.ArchivePrefix,
		archiveClass:  types.StorageClass(config.ArchiveStorageClass),
	}

	if config.CreateBucketIfNotExist {
		if err := backend.createBucketIfNotExists(ctx, config.Region); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return backend, nil
}

// createBucketIfNotExists creates the bucket if it doesn't exist
func (b *Backend) createBucketIfNotExists(ctx context.Context, region string) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.bucket),
	})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) &&
		!strings.Contains(err.Error(), "BadRequest") &&
		!strings.Contains(err.Error(), "NoSuchBucket") {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	createInput := &s3.CreateBucketInput{
		Bucket: aws.String(b.bucket),
	}
	if region != "us-east-1" {
		createInput.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(region),
		}
	}

	_, err = b.client.CreateBucket(ctx, createInput)
	if err != nil {
		if strings.Contains(err.Error(), "BucketAlreadyExists") ||
			strings.Contains(err.Error(), "BucketAlreadyOwnedByYou") {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

func (b *Backend) activeKey(category simpleresource.Category, id string) string {
	return fmt.Sprintf("%s/%s/%s.json", b.activePrefix, category, id)
}

func (b *Backend) archiveKey(category simpleresource.Category, id string) string {
	return fmt.Sprintf("%s/%s/%s.json", b.archivePrefix, category, id)
}

// PutActive mirrors a live record into the active tier
func (b *Backend) PutActive(ctx context.Context, res *simpleresource.Resource) error {
	body, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to marshal resource %s: %w", res.ID, err)
	}

	key := b.activeKey(res.Category, res.ID)
	_, err = b.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(b.bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(body),
		ContentType:          aws.String("application/json"),
		ServerSideEncryption: types.ServerSideEncryptionAes256,
		Metadata: map[string]string{
			"category": string(res.Category),
			"owner":    res.Owner,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to mirror resource %s to S3: %w", res.ID, err)
	}
	return nil
}

// GetActive fetches a mirrored record, or (nil, nil) when absent
func (b *Backend) GetActive(ctx context.Context, category simpleresource.Category, id string) (*simpleresource.Resource, error) {
	key := b.activeKey(category, id)
	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read backup %s: %w", key, err)
	}
	defer result.Body.Close()

	raw, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup %s: %w", key, err)
	}

	var res simpleresource.Resource
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("malformed backup document %s: %w", key, err)
	}
	return &res, nil
}

// DeleteActive removes the active-tier mirror copy
func (b *Backend) DeleteActive(ctx context.Context, category simpleresource.Category, id string) error {
	key := b.activeKey(category, id)
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete backup %s: %w", key, err)
	}
	return nil
}

// PutArchive writes an archived record to the cold tier
func (b *Backend) PutArchive(ctx context.Context, rec *simpleresource.ArchivedResource) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal archived resource %s: %w", rec.ID, err)
	}

	key := b.archiveKey(rec.Category, rec.ID)
	_, err = b.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(b.bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(body),
		ContentType:          aws.String("application/json"),
		ServerSideEncryption: types.ServerSideEncryptionAes256,
		StorageClass:         b.archiveClass,
		Metadata: map[string]string{
			"category":   string(rec.Category),
			"deleted-by": rec.DeletedBy,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to archive resource %s to S3: %w", rec.ID, err)
	}
	return nil
}
