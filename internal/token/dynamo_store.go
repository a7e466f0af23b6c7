package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/autobid/auction-api/internal/models"
	apperrors "github.com/autobid/auction-api/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const userIndexName = "user_id-index"

// DynamoAPI is the subset of the DynamoDB client used by DynamoStore.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// tokenItem is the table layout: partition key "token", GSI "user_id-index"
// on user_id, and expires_at as the table's TTL attribute.
type tokenItem struct {
	Token       string    `dynamodbav:"token"`
	UserID      uint      `dynamodbav:"user_id"`
	CreatedDate time.Time `dynamodbav:"created_date"`
	ExpiresAt   int64     `dynamodbav:"expires_at"`
}

// DynamoStore keeps refresh tokens in a DynamoDB table.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
	now       func() time.Time
}

func NewDynamoStore(client DynamoAPI, tableName string) *DynamoStore {
	return &DynamoStore{client: client, tableName: tableName, now: time.Now}
}

func (s *DynamoStore) Save(ctx context.Context, rt *models.RefreshToken) error {
	if rt.CreatedDate.IsZero() {
		rt.CreatedDate = s.now().UTC()
	}
	item, err := attributevalue.MarshalMap(tokenItem{
		Token:       rt.Token,
		UserID:      rt.UserID,
		CreatedDate: rt.CreatedDate,
		ExpiresAt:   rt.ExpiresAt.Unix(),
	})
	if err != nil {
		return fmt.Errorf("token: marshal refresh token: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#t)"),
		ExpressionAttributeNames: map[string]string{"#t": "token"},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return apperrors.NewAppError(apperrors.CodeConflict, "Token already stored", err)
		}
		return fmt.Errorf("token: put refresh token: %w", err)
	}
	return nil
}

func (s *DynamoStore) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            tokenKey(token),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("token: get refresh token: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, apperrors.NotFound(msgTokenNotFound)
	}

	var item tokenItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("token: unmarshal refresh token: %w", err)
	}
	return &models.RefreshToken{
		Token:       item.Token,
		UserID:      item.UserID,
		CreatedDate: item.CreatedDate,
		ExpiresAt:   time.Unix(item.ExpiresAt, 0).UTC(),
	}, nil
}

func (s *DynamoStore) Delete(ctx context.Context, token string) error {
	out, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(s.tableName),
		Key:          tokenKey(token),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return fmt.Errorf("token: delete refresh token: %w", err)
	}
	if len(out.Attributes) == 0 {
		return apperrors.NotFound(msgTokenNotFound)
	}
	return nil
}

func (s *DynamoStore) DeleteByUser(ctx context.Context, userID uint) error {
	uid, err := attributevalue.Marshal(userID)
	if err != nil {
		return fmt.Errorf("token: marshal user id: %w", err)
	}

	var startKey map[string]types.AttributeValue
	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(s.tableName),
			IndexName:                 aws.String(userIndexName),
			KeyConditionExpression:    aws.String("user_id = :uid"),
			ExpressionAttributeValues: map[string]types.AttributeValue{":uid": uid},
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return fmt.Errorf("token: query user tokens: %w", err)
		}

		for _, raw := range out.Items {
			var item tokenItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return fmt.Errorf("token: unmarshal refresh token: %w", err)
			}
			if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
				TableName: aws.String(s.tableName),
				Key:       tokenKey(item.Token),
			}); err != nil {
				return fmt.Errorf("token: delete refresh token: %w", err)
			}
		}

		if len(out.LastEvaluatedKey) == 0 {
			return nil
		}
		startKey = out.LastEvaluatedKey
	}
}

func tokenKey(token string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"token": &types.AttributeValueMemberS{Value: token},
	}
}
