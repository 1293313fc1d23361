package sink

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/kneurasense/kneuraflow/internal/domain"
	"github.com/kneurasense/kneuraflow/internal/ports"
)

// PutItemAPI is the slice of the DynamoDB client used by the sink.
type PutItemAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoDBSink stores snapshots in a table keyed by patient_id (partition)
// and received_at (sort). Items expire through the table TTL on expires_at.
type DynamoDBSink struct {
	client    PutItemAPI
	tableName string
	ttl       time.Duration
	now       func() time.Time
}

func NewDynamoDBSink(client PutItemAPI, table string, ttl time.Duration) (*DynamoDBSink, error) {
	if client == nil {
		return nil, errors.New("dynamodb client is not initialized")
	}
	if table == "" {
		return nil, errors.New("dynamodb table name is required")
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &DynamoDBSink{client: client, tableName: table, ttl: ttl, now: time.Now}, nil
}

// NewDynamoDBClient loads the default AWS credential chain. endpoint may point
// at DynamoDB Local.
func NewDynamoDBClient(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

func (d *DynamoDBSink) Name() string { return "dynamodb" }

func (d *DynamoDBSink) WriteSnapshot(ctx context.Context, snap *domain.Snapshot) error {
	if snap == nil {
		return nil
	}
	item, err := attributevalue.MarshalMap(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	item["expires_at"] = &types.AttributeValueMemberN{
		Value: strconv.FormatInt(d.now().Add(d.ttl).Unix(), 10),
	}

	input := &dynamodb.PutItemInput{
		TableName:           aws.String(d.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(received_at)"),
	}

	_, err = d.client.PutItem(ctx, input)
	if err != nil {
		var dup *types.ConditionalCheckFailedException
		if errors.As(err, &dup) {
			return nil
		}
		return fmt.Errorf("failed to store snapshot in dynamodb: %w", err)
	}
	return nil
}

var _ ports.Sink = (*DynamoDBSink)(nil)
