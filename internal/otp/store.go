package otp

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/aws"
)

// Store persists challenges in DynamoDB, keyed by (email, issued_at).
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
}

// NewStore returns a challenge Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{client: client, tableName: tableName}
}

// Put stores c.
func (s *Store) Put(ctx context.Context, c Challenge) error {
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("marshal challenge: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(email)"),
	})
	if err != nil {
		return fmt.Errorf("put challenge: %w", err)
	}
	return nil
}

// Get loads one challenge. Returns (nil, nil) if it was consumed or never existed.
func (s *Store) Get(ctx context.Context, email string, issuedAt int64) (*Challenge, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            challengeKey(email, issuedAt),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get challenge: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var c Challenge
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, fmt.Errorf("unmarshal challenge: %w", err)
	}
	return &c, nil
}

// FindByCode returns challenges for email whose code equals code, newest first.
func (s *Store) FindByCode(ctx context.Context, email, code string) ([]Challenge, error) {
	out, err := s.client.Query(ctx, &dyn.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: awsString("email = :e"),
		FilterExpression:       awsString("#c = :c"),
		ExpressionAttributeNames: map[string]string{
			"#c": "code",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":e": &types.AttributeValueMemberS{Value: email},
			":c": &types.AttributeValueMemberS{Value: code},
		},
		ScanIndexForward: awsBool(false),
		ConsistentRead:   awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query challenges: %w", err)
	}
	var cs []Challenge
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &cs); err != nil {
		return nil, fmt.Errorf("unmarshal challenges: %w", err)
	}
	return cs, nil
}

// Consume deletes c if it still exists. It returns false when another caller
// consumed it first.
func (s *Store) Consume(ctx context.Context, c Challenge) (bool, error) {
	_, err := s.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName:           &s.tableName,
		Key:                 challengeKey(c.Email, c.IssuedAt),
		ConditionExpression: awsString("attribute_exists(email)"),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ConditionalCheckFailedException" {
			return false, nil
		}
		return false, fmt.Errorf("delete challenge: %w", err)
	}
	return true, nil
}

func challengeKey(email string, issuedAt int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"email":     &types.AttributeValueMemberS{Value: email},
		"issued_at": &types.AttributeValueMemberN{Value: strconv.FormatInt(issuedAt, 10)},
	}
}

func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }
