package token

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/autobid/auction-api/internal/models"
	apperrors "github.com/autobid/auction-api/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDynamo is an in-memory table keyed by "token".
type fakeDynamo struct {
	mu      sync.Mutex
	items   map[string]map[string]types.AttributeValue
	queries []*dynamodb.QueryInput
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func keyOf(key map[string]types.AttributeValue) string {
	return key["token"].(*types.AttributeValueMemberS).Value
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := keyOf(in.Item)
	if _, exists := f.items[k]; exists && in.ConditionExpression != nil {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("exists")}
	}
	f.items[k] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.items[keyOf(in.Key)]}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := keyOf(in.Key)
	old := f.items[k]
	delete(f.items, k)
	out := &dynamodb.DeleteItemOutput{}
	if in.ReturnValues == types.ReturnValueAllOld {
		out.Attributes = old
	}
	return out, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, in)
	want := in.ExpressionAttributeValues[":uid"].(*types.AttributeValueMemberN).Value

	out := &dynamodb.QueryOutput{}
	for _, item := range f.items {
		if item["user_id"].(*types.AttributeValueMemberN).Value == want {
			out.Items = append(out.Items, item)
		}
	}
	return out, nil
}

func TestDynamoStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDynamo()
	store := NewDynamoStore(fake, "tokens")

	expires := time.Now().Add(72 * time.Hour).Truncate(time.Second).UTC()
	require.NoError(t, store.Save(ctx, &models.RefreshToken{Token: "t1", UserID: 5, ExpiresAt: expires}))

	err := store.Save(ctx, &models.RefreshToken{Token: "t1", UserID: 5, ExpiresAt: expires})
	assert.True(t, apperrors.Is(err, apperrors.CodeConflict))

	var item tokenItem
	require.NoError(t, attributevalue.UnmarshalMap(fake.items["t1"], &item))
	assert.Equal(t, expires.Unix(), item.ExpiresAt)

	got, err := store.Find(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, uint(5), got.UserID)
	assert.True(t, expires.Equal(got.ExpiresAt))

	_, err = store.Find(ctx, "missing")
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))

	require.NoError(t, store.Delete(ctx, "t1"))
	assert.True(t, apperrors.Is(store.Delete(ctx, "t1"), apperrors.CodeNotFound))
}

func TestDynamoStoreDeleteByUser(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDynamo()
	store := NewDynamoStore(fake, "tokens")

	exp := time.Now().Add(time.Hour)
	require.NoError(t, store.Save(ctx, &models.RefreshToken{Token: "a", UserID: 1, ExpiresAt: exp}))
	require.NoError(t, store.Save(ctx, &models.RefreshToken{Token: "b", UserID: 1, ExpiresAt: exp}))
	require.NoError(t, store.Save(ctx, &models.RefreshToken{Token: "c", UserID: 2, ExpiresAt: exp}))

	require.NoError(t, store.DeleteByUser(ctx, 1))

	assert.Len(t, fake.items, 1)
	assert.Contains(t, fake.items, "c")
	require.Len(t, fake.queries, 1)
	assert.Equal(t, userIndexName, aws.ToString(fake.queries[0].IndexName))
}
