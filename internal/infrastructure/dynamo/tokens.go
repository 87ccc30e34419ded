package dynamo

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/juststore/internal/domain"
)

// EmailTokenRepo stores in-flight passcode exchanges.
// PK: user_id. expires_at is the table's TTL attribute.
type EmailTokenRepo struct {
	client    API
	tableName string
}

func NewEmailTokenRepo(client API, tableName string) *EmailTokenRepo {
	return &EmailTokenRepo{client: client, tableName: tableName}
}

func (r *EmailTokenRepo) Put(ctx context.Context, t *domain.EmailToken) error {
	item, err := attributevalue.MarshalMap(t)
	if err != nil {
		return fmt.Errorf("marshal email token: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// Get returns the token for userID. TTL deletion is lazy, so callers must
// still check ExpiresAt.
func (r *EmailTokenRepo) Get(ctx context.Context, userID string) (*domain.EmailToken, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldUserID, userID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, notFound("email token")
	}
	var t domain.EmailToken
	if err := attributevalue.UnmarshalMap(out.Item, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ReserveAttempt atomically counts one passcode attempt and returns the new
// total. With limit > 0 the write only succeeds while fewer than limit attempts
// have been recorded; a missing or exhausted token yields domain.ErrNotFound.
func (r *EmailTokenRepo) ReserveAttempt(ctx context.Context, userID string, limit int) (int, error) {
	cond := "attribute_exists(#k)"
	values := map[string]types.AttributeValue{
		":one": &types.AttributeValueMemberN{Value: "1"},
	}
	if limit > 0 {
		cond += " AND #a < :max"
		values[":max"] = &types.AttributeValueMemberN{Value: strconv.Itoa(limit)}
	}
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldUserID, userID),
		UpdateExpression:          aws.String("ADD #a :one"),
		ConditionExpression:       aws.String(cond),
		ExpressionAttributeNames:  map[string]string{"#a": fieldAttempts, "#k": fieldUserID},
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		if isConditionFailure(err) {
			return 0, notFound("email token")
		}
		return 0, err
	}
	var updated struct {
		Attempts int `dynamodbav:"attempts"`
	}
	if err := attributevalue.UnmarshalMap(out.Attributes, &updated); err != nil {
		return 0, err
	}
	return updated.Attempts, nil
}

// Consume deletes the token only if it still carries codeHash, so a passcode
// is redeemed at most once even when a reissue races the exchange.
func (r *EmailTokenRepo) Consume(ctx context.Context, userID, codeHash string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      strKey(fieldUserID, userID),
		ConditionExpression:      aws.String("#h = :h"),
		ExpressionAttributeNames: map[string]string{"#h": fieldCodeHash},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":h": &types.AttributeValueMemberS{Value: codeHash},
		},
	})
	if err != nil && isConditionFailure(err) {
		return notFound("email token")
	}
	return err
}

func (r *EmailTokenRepo) Delete(ctx context.Context, userID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(fieldUserID, userID),
	})
	return err
}

