package interactionlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	recordTTL = 90 * 24 * time.Hour
	// Fixed width so sort keys order lexically.
	sortKeyLayout = "2006-01-02T15:04:05.000000000Z"
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// dynamoItem is the table layout: partition key userId, sort key createdAt.
type dynamoItem struct {
	Record
	CreatedAt string `dynamodbav:"createdAt"`
	ExpiresAt int64  `dynamodbav:"expiresAt,omitempty"`
}

// DynamoLog stores records in DynamoDB with a 90 day TTL.
type DynamoLog struct {
	client    dynamoAPI
	tableName string
}

func NewDynamoLog(client dynamoAPI, tableName string) *DynamoLog {
	if client == nil {
		panic("interactionlog: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("interactionlog: table name cannot be empty")
	}
	return &DynamoLog{client: client, tableName: tableName}
}

func (l *DynamoLog) Append(ctx context.Context, rec Record) error {
	if rec.UserID == "" {
		return errors.New("interactionlog: user id required")
	}
	stamp(&rec)
	item, err := attributevalue.MarshalMap(dynamoItem{
		Record:    rec,
		CreatedAt: rec.CreatedAt.Format(sortKeyLayout),
		ExpiresAt: rec.CreatedAt.Add(recordTTL).Unix(),
	})
	if err != nil {
		return fmt.Errorf("interactionlog: marshal record: %w", err)
	}
	_, err = l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(l.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(createdAt)"),
	})
	if err != nil {
		return fmt.Errorf("interactionlog: append: %w", err)
	}
	return nil
}

func (l *DynamoLog) ListByUser(ctx context.Context, userID string, limit int) ([]Record, error) {
	out, err := l.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(l.tableName),
		KeyConditionExpression: aws.String("userId = :u"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":u": &types.AttributeValueMemberS{Value: userID},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(clampLimit(limit))),
	})
	if err != nil {
		return nil, fmt.Errorf("interactionlog: list by user: %w", err)
	}
	return decodeItems(out.Items)
}

// ListBetween scans the table; it is meant for batch exports, not request paths.
func (l *DynamoLog) ListBetween(ctx context.Context, from, to time.Time) ([]Record, error) {
	input := &dynamodb.ScanInput{
		TableName:        aws.String(l.tableName),
		FilterExpression: aws.String("createdAt >= :from AND createdAt < :to"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":from": &types.AttributeValueMemberS{Value: from.UTC().Format(sortKeyLayout)},
			":to":   &types.AttributeValueMemberS{Value: to.UTC().Format(sortKeyLayout)},
		},
	}
	var records []Record
	for {
		out, err := l.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("interactionlog: scan: %w", err)
		}
		page, err := decodeItems(out.Items)
		if err != nil {
			return nil, err
		}
		records = append(records, page...)
		if len(out.LastEvaluatedKey) == 0 {
			return records, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func decodeItems(items []map[string]types.AttributeValue) ([]Record, error) {
	records := make([]Record, 0, len(items))
	for _, raw := range items {
		var item dynamoItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, fmt.Errorf("interactionlog: unmarshal record: %w", err)
		}
		rec := item.Record
		if ts, err := time.Parse(sortKeyLayout, item.CreatedAt); err == nil {
			rec.CreatedAt = ts.UTC()
		}
		records = append(records, rec)
	}
	return records, nil
}
