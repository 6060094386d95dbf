package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	goReset "github.com/MrEthical07/goReset"
)

type userItem struct {
	Email  string `dynamodbav:"email"`
	Enable *bool  `dynamodbav:"enable"`
}

// IdentityResolver answers goReset's "does this email have an account"
// from a users table with a GSI on email. Users whose enable attribute is
// false count as unknown.
type IdentityResolver struct {
	client    API
	tableName string
	indexName string
}

func NewIdentityResolver(client API, tableName, indexName string) *IdentityResolver {
	return &IdentityResolver{client: client, tableName: tableName, indexName: indexName}
}

var _ goReset.IdentityResolver = (*IdentityResolver)(nil)

func (r *IdentityResolver) Exists(ctx context.Context, email string) (bool, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(r.indexName),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": "email"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: email}},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return false, fmt.Errorf("query %s: %w", r.indexName, err)
	}
	if len(out.Items) == 0 {
		return false, nil
	}

	var u userItem
	if err := attributevalue.UnmarshalMap(out.Items[0], &u); err != nil {
		return false, fmt.Errorf("unmarshal user: %w", err)
	}
	if u.Enable != nil && !*u.Enable {
		return false, nil
	}
	return true, nil
}
