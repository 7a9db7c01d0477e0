package dynamodb

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/tendant/simple-resource/pkg/simpleresource"
)

// Config options for the DynamoDB primary store
type Config struct {
	Region          string // AWS region
	Table           string // Table name
	CategoryIndex   string // GSI partitioned by category (default: category-index)
	AccessKeyID     string // AWS access key ID
	SecretAccessKey string // AWS secret access key
	Endpoint        string // Optional custom endpoint (DynamoDB Local)
}

// Store is a DynamoDB implementation of the simpleresource.PrimaryStore
// interface. The table's hash key is "id"; the category index is keyed
// by category with the id as its range key, so a descending scan yields
// newest-first for time-ordered ids.
type Store struct {
	client *dynamodb.Client
	table  string
	index  string
}

// New creates a new DynamoDB primary store
func New(ctx context.Context, config Config) (*Store, error) {
	if config.Table == "" {
		return nil, errors.New("table name is required")
	}
	if config.Region == "" {
		config.Region = "us-east-1"
	}
	if config.CategoryIndex == "" {
		config.CategoryIndex = "category-index"
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

	var opts []func(*dynamodb.Options)
	if config.Endpoint != "" {
		opts = append(opts, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
		})
	}

	return &Store{
		client: dynamodb.NewFromConfig(awsCfg, opts...),
		table:  config.Table,
		index:  config.CategoryIndex,
	}, nil
}

// NewWithClient creates a store around an existing client. Intended for
// callers that manage client lifecycle themselves.
func NewWithClient(client *dynamodb.Client, table, categoryIndex string) *Store {
	if categoryIndex == "" {
		categoryIndex = "category-index"
	}
	return &Store{client: client, table: table, index: categoryIndex}
}

// item is the table representation of a resource. Times are stored as
// RFC3339 strings except ttl, which DynamoDB expects as epoch seconds.
type item struct {
	ID        string                 `dynamodbav:"id"`
	Category  string                 `dynamodbav:"category"`
	Data      map[string]interface{} `dynamodbav:"data"`
	Owner     string                 `dynamodbav:"owner"`
	CreatedAt string                 `dynamodbav:"created_at"`
	UpdatedAt string                 `dynamodbav:"updated_at"`
	UpdatedBy string                 `dynamodbav:"updated_by,omitempty"`
	Version   int64                  `dynamodbav:"version"`
	TTL       int64                  `dynamodbav:"ttl"`
}

func toItem(res *simpleresource.Resource) item {
	return item{
		ID:        res.ID,
		Category:  string(res.Category),
		Data:      res.Data,
		Owner:     res.Owner,
		CreatedAt: res.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt: res.UpdatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedBy: res.UpdatedBy,
		Version:   res.Version,
		TTL:       res.ExpiresAt.Unix(),
	}
}

func fromItem(it item) (*simpleresource.Resource, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, it.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("malformed created_at on item %s: %w", it.ID, err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, it.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("malformed updated_at on item %s: %w", it.ID, err)
	}
	return &simpleresource.Resource{
		ID:        it.ID,
		Category:  simpleresource.Category(it.Category),
		Data:      it.Data,
		Owner:     it.Owner,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
		UpdatedBy: it.UpdatedBy,
		Version:   it.Version,
		ExpiresAt: time.Unix(it.TTL, 0).UTC(),
	}, nil
}

func (s *Store) PutIfNotExists(ctx context.Context, res *simpleresource.Resource) error {
	av, err := attributevalue.MarshalMap(toItem(res))
	if err != nil {
		return fmt.Errorf("failed to marshal resource %s: %w", res.ID, err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			return simpleresource.ErrAlreadyExists
		}
		return s.storeError("put_if_not_exists", res.ID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*simpleresource.Resource, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       idKey(id),
	})
	if err != nil {
		return nil, s.storeError("get", id, err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var it item
	if err := attributevalue.UnmarshalMap(result.Item, &it); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item %s: %w", id, err)
	}
	return fromItem(it)
}

func (s *Store) Put(ctx context.Context, res *simpleresource.Resource) error {
	av, err := attributevalue.MarshalMap(toItem(res))
	if err != nil {
		return fmt.Errorf("failed to marshal resource %s: %w", res.ID, err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	})
	if err != nil {
		return s.storeError("put", res.ID, err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, params simpleresource.UpdateParams) (*simpleresource.Resource, error) {
	update := expression.Set(
		expression.Name("updated_at"),
		expression.Value(params.Now.UTC().Format(time.RFC3339Nano)),
	).Set(
		expression.Name("updated_by"),
		expression.Value(params.UpdatedBy),
	).Set(
		expression.Name("version"),
		expression.Name("version").Plus(expression.Value(1)),
	)
	for field, value := range params.Fields {
		update = update.Set(expression.Name("data."+field), expression.Value(value))
	}

	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.AttributeExists(expression.Name("id"))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build update expression: %w", err)
	}

	result, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table),
		Key:                       idKey(params.ID),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			return nil, simpleresource.ErrNotFound
		}
		return nil, s.storeError("update", params.ID, err)
	}

	var it item
	if err := attributevalue.UnmarshalMap(result.Attributes, &it); err != nil {
		return nil, fmt.Errorf("failed to unmarshal updated item %s: %w", params.ID, err)
	}
	return fromItem(it)
}

func (s *Store) DeleteIfExists(ctx context.Context, id string) (bool, error) {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(s.table),
		Key:                 idKey(id),
		ConditionExpression: aws.String("attribute_exists(id)"),
	})
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			return false, nil
		}
		return false, s.storeError("delete", id, err)
	}
	return true, nil
}

func (s *Store) Query(ctx context.Context, q simpleresource.Query) (*simpleresource.ResourceList, error) {
	keyCond := expression.Key("category").Equal(expression.Value(string(q.Category)))
	builder := expression.NewBuilder().WithKeyCondition(keyCond)
	if q.CreatedAfter != nil {
		builder = builder.WithFilter(expression.Name("created_at").
			GreaterThanEqual(expression.Value(q.CreatedAfter.UTC().Format(time.RFC3339Nano))))
	}
	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query expression: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.table),
		IndexName:                 aws.String(s.index),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(int32(q.Limit)),
		ScanIndexForward:          aws.Bool(false), // newest first
	}
	if q.NextToken != "" {
		startKey, err := decodeToken(q.NextToken)
		if err != nil {
			return nil, err
		}
		input.ExclusiveStartKey = startKey
	}

	result, err := s.client.Query(ctx, input)
	if err != nil {
		return nil, s.storeError("query", string(q.Category), err)
	}

	items := make([]*simpleresource.Resource, 0, len(result.Items))
	for _, raw := range result.Items {
		var it item
		if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
			return nil, fmt.Errorf("failed to unmarshal queried item: %w", err)
		}
		res, err := fromItem(it)
		if err != nil {
			return nil, err
		}
		items = append(items, res)
	}

	list := &simpleresource.ResourceList{
		Items: items,
		Count: len(items),
	}
	if len(result.LastEvaluatedKey) > 0 {
		token, err := encodeToken(result.LastEvaluatedKey)
		if err != nil {
			return nil, err
		}
		list.NextToken = token
	}
	return list, nil
}

// storeError classifies an SDK failure. Throughput rejection is marked
// so the orchestrator can raise its operator alert; every other API
// fault surfaces as an upstream outage with retry semantics.
func (s *Store) storeError(op, key string, err error) error {
	throttled := false
	var throughput *types.ProvisionedThroughputExceededException
	if errors.As(err, &throughput) {
		throttled = true
	} else {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ThrottlingException" {
			throttled = true
		}
	}
	return &simpleresource.StoreError{
		Store:     "dynamodb",
		Op:        op,
		Key:       key,
		Throttled: throttled,
		Err:       fmt.Errorf("%w: %v", simpleresource.ErrUpstreamUnavailable, err),
	}
}

func idKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}

// The continuation token round-trips LastEvaluatedKey through JSON so
// callers only ever see an opaque string.
func encodeToken(key map[string]types.AttributeValue) (string, error) {
	plain := map[string]string{}
	for k, v := range key {
		sv, ok := v.(*types.AttributeValueMemberS)
		if !ok {
			return "", fmt.Errorf("unsupported attribute type in pagination key %q", k)
		}
		plain[k] = sv.Value
	}
	raw, err := json.Marshal(plain)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func decodeToken(token string) (map[string]types.AttributeValue, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("malformed continuation token: %w", err)
	}
	var plain map[string]string
	if err := json.Unmarshal(raw, &plain); err != nil {
		return nil, fmt.Errorf("malformed continuation token: %w", err)
	}
	key := make(map[string]types.AttributeValue, len(plain))
	for k, v := range plain {
		key[k] = &types.AttributeValueMemberS{Value: v}
	}
	return key, nil
}
