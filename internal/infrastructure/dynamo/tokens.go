package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	goReset "github.com/MrEthical07/goReset"
)

// tokenItem is one row of the reset token table. PK: jti. ExpiresAtUnix is
// the table's TTL attribute.
type tokenItem struct {
	JTI           string `dynamodbav:"jti"`
	Email         string `dynamodbav:"email"`
	Token         string `dynamodbav:"token"`
	IssuedAt      string `dynamodbav:"issued_at"`
	ExpiresAt     string `dynamodbav:"expires_at"`
	ExpiresAtUnix int64  `dynamodbav:"expires_at_unix"`
}

// TokenSink records every minted reset token so the system that changes
// the password can look it up by jti.
type TokenSink struct {
	client    API
	tableName string
}

func NewTokenSink(client API, tableName string) *TokenSink {
	return &TokenSink{client: client, tableName: tableName}
}

var _ goReset.TokenSink = (*TokenSink)(nil)

// Persist writes token once; a second write for the same jti fails.
func (s *TokenSink) Persist(ctx context.Context, token goReset.IssuedToken) error {
	item, err := attributevalue.MarshalMap(tokenItem{
		JTI:           token.JTI,
		Email:         token.Email,
		Token:         token.Token,
		IssuedAt:      token.IssuedAt.UTC().Format(time.RFC3339),
		ExpiresAt:     token.ExpiresAt.UTC().Format(time.RFC3339),
		ExpiresAtUnix: token.ExpiresAt.Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#k)"),
		ExpressionAttributeNames: map[string]string{"#k": "jti"},
	})
	if err != nil {
		return fmt.Errorf("put token %s: %w", token.JTI, err)
	}
	return nil
}
