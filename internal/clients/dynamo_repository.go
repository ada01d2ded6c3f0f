package clients

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/upilink/upilink/pkg/logging"
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// DynamoRepository persists client records to DynamoDB. Uniqueness of the
// baseUrl key and secret verification are both enforced with condition
// expressions, so concurrent writers cannot slip past the existence check.
type DynamoRepository struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

var _ Repository = (*DynamoRepository)(nil)

// NewDynamoRepository builds a repository backed by the provided DynamoDB client.
func NewDynamoRepository(client dynamoAPI, tableName string, logger *logging.Logger) *DynamoRepository {
	if client == nil {
		panic("clients: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("clients: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &DynamoRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

func (r *DynamoRepository) Get(ctx context.Context, baseURL string) (*ClientRecord, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"baseUrl": &types.AttributeValueMemberS{Value: baseURL},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("clients: failed to load record: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}

	var rec ClientRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("clients: failed to unmarshal record: %w", err)
	}
	return &rec, nil
}

// Create inserts a new record. The condition expression rejects the write when
// a record for the base URL already exists.
func (r *DynamoRepository) Create(ctx context.Context, rec *ClientRecord) error {
	if rec == nil {
		return errors.New("clients: record cannot be nil")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	rec.CreatedAt = now
	rec.UpdatedAt = now

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("clients: failed to marshal record: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(baseUrl)"),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("clients: failed to persist record: %w", err)
	}
	return nil
}

// Update applies the partial update in a single conditional UpdateItem, so the
// secret check and the write cannot interleave with a concurrent mutation.
func (r *DynamoRepository) Update(ctx context.Context, baseURL, verifyHash string, fields UpdateFields) (*ClientRecord, error) {
	if baseURL == "" {
		return nil, errors.New("clients: baseURL required")
	}

	names := map[string]string{
		"#updated": "updatedAt",
		"#secret":  "secretHash",
	}
	values := map[string]types.AttributeValue{
		":verify":  &types.AttributeValueMemberS{Value: verifyHash},
		":updated": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
	}
	expr := "SET #updated = :updated"

	if fields.UPIID != nil {
		names["#upi"] = "upiId"
		values[":upi"] = &types.AttributeValueMemberS{Value: *fields.UPIID}
		expr += ", #upi = :upi"
	}
	if fields.QRImagePath != nil {
		names["#qr"] = "qrImagePath"
		values[":qr"] = &types.AttributeValueMemberS{Value: *fields.QRImagePath}
		expr += ", #qr = :qr"
	}
	if fields.SecretHash != nil {
		values[":secret"] = &types.AttributeValueMemberS{Value: *fields.SecretHash}
		expr += ", #secret = :secret"
	}

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"baseUrl": &types.AttributeValueMemberS{Value: baseURL},
		},
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String("#secret = :verify"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return nil, ErrInvalidSecret
		}
		return nil, fmt.Errorf("clients: failed to update record: %w", err)
	}

	var rec ClientRecord
	if err := attributevalue.UnmarshalMap(out.Attributes, &rec); err != nil {
		return nil, fmt.Errorf("clients: failed to unmarshal updated record: %w", err)
	}
	return &rec, nil
}

func isConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
