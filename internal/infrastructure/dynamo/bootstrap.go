package dynamo

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-api-verify/internal/config"
)

// TableCreator is the part of *dynamodb.Client Bootstrap needs.
type TableCreator interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// Bootstrap creates all DynamoDB tables and GSIs if they don't already exist.
// Safe to call on every startup; skips tables that already exist.
//
// TTL is not enabled on the verification tables: it would also expire
// verified rows, which must be kept.
func Bootstrap(ctx context.Context, client TableCreator, tables config.DynamoTables) error {
	var errs []error
	errs = append(errs, createTable(ctx, client, &dynamodb.CreateTableInput{
		TableName:   aws.String(tables.Users),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("user_id"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("email"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("phone"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("user_id"), KeyType: types.KeyTypeHash},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			gsi(indexEmail, "email", ""),
			gsi(indexPhone, "phone", ""),
		},
	}))

	errs = append(errs, createTable(ctx, client, &dynamodb.CreateTableInput{
		TableName:   aws.String(tables.EmailVerifications),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("verification_id"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("token"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("user_id"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("verification_id"), KeyType: types.KeyTypeHash},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			gsi(indexToken, "token", ""),
			gsi(indexUserID, "user_id", ""),
		},
	}))

	errs = append(errs, createTable(ctx, client, &dynamodb.CreateTableInput{
		TableName:   aws.String(tables.PhoneVerifications),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("verification_id"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("phone"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("created_at"), AttributeType: types.ScalarAttributeTypeN},
			{AttributeName: aws.String("user_id"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("verification_id"), KeyType: types.KeyTypeHash},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			gsi(indexPhoneCreatedAt, "phone", "created_at"),
			gsi(indexUserID, "user_id", ""),
		},
	}))
	return errors.Join(errs...)
}

// gsi builds a GSI descriptor. If sortKey is empty, only a hash key is added.
func gsi(indexName, hashKey, sortKey string) types.GlobalSecondaryIndex {
	ks := []types.KeySchemaElement{
		{AttributeName: aws.String(hashKey), KeyType: types.KeyTypeHash},
	}
	if sortKey != "" {
		ks = append(ks, types.KeySchemaElement{
			AttributeName: aws.String(sortKey), KeyType: types.KeyTypeRange,
		})
	}
	return types.GlobalSecondaryIndex{
		IndexName:  aws.String(indexName),
		KeySchema:  ks,
		Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
	}
}

func createTable(ctx context.Context, client TableCreator, input *dynamodb.CreateTableInput) error {
	_, err := client.CreateTable(ctx, input)
	if err != nil {
		// ResourceInUseException means the table already exists.
		var riue *types.ResourceInUseException
		if errors.As(err, &riue) {
			return nil
		}
		slog.Warn("could not create table", "table", *input.TableName, "err", err)
		return err
	}
	slog.Info("created table", "table", *input.TableName)
	return nil
}
