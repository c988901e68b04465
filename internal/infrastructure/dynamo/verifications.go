package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-api-verify/internal/domain"
)

const (
	indexToken          = "token-index"
	indexPhoneCreatedAt = "phone-created_at-index"
	indexUserID         = "user_id-index"
)

// verificationItem is the stored shape. Timestamps are Unix nanoseconds so
// they sort and compare numerically in key conditions and filters.
type verificationItem struct {
	ID         string `dynamodbav:"verification_id"`
	UserID     string `dynamodbav:"user_id"`
	Token      string `dynamodbav:"token,omitempty"`
	Phone      string `dynamodbav:"phone,omitempty"`
	Code       string `dynamodbav:"code,omitempty"`
	ExpiresAt  int64  `dynamodbav:"expires_at"`
	VerifiedAt *int64 `dynamodbav:"verified_at,omitempty"`
	CreatedAt  int64  `dynamodbav:"created_at"`
}

// VerificationRepo stores verification records for one flow.
// PK: verification_id. Email records are found through token-index, phone
// records through phone-created_at-index (newest first).
type VerificationRepo struct {
	client    API
	tableName string
	flow      domain.Flow
}

func NewEmailVerificationRepo(client API, tableName string) *VerificationRepo {
	return &VerificationRepo{client: client, tableName: tableName, flow: domain.FlowEmail}
}

func NewPhoneVerificationRepo(client API, tableName string) *VerificationRepo {
	return &VerificationRepo{client: client, tableName: tableName, flow: domain.FlowPhone}
}

func (r *VerificationRepo) Create(ctx context.Context, rec *domain.VerificationRecord) error {
	item, err := attributevalue.MarshalMap(r.toItem(rec))
	if err != nil {
		return fmt.Errorf("marshal verification: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(verification_id)"),
	})
	if isConditionFailed(err) {
		return fmt.Errorf("verification %s exists: %w", rec.ID, domain.ErrConflict)
	}
	return err
}

func (r *VerificationRepo) FindBySecret(ctx context.Context, secret string) (*domain.VerificationRecord, error) {
	if r.flow != domain.FlowEmail {
		return nil, fmt.Errorf("%s verifications are not indexed by secret: %w", r.flow, domain.ErrBadRequest)
	}
	return r.queryOne(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(indexToken),
		KeyConditionExpression:    aws.String("#k = :v"),
		ExpressionAttributeNames:  map[string]string{"#k": "token"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": strVal(secret)},
		Limit:                     aws.Int32(1),
	})
}

func (r *VerificationRepo) FindLatestByChannel(ctx context.Context, channel string) (*domain.VerificationRecord, error) {
	if r.flow != domain.FlowPhone {
		return nil, fmt.Errorf("%s verifications have no channel: %w", r.flow, domain.ErrBadRequest)
	}
	return r.queryOne(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(indexPhoneCreatedAt),
		KeyConditionExpression:    aws.String("#k = :v"),
		ExpressionAttributeNames:  map[string]string{"#k": "phone"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": strVal(channel)},
		ScanIndexForward:          aws.Bool(false),
		Limit:                     aws.Int32(1),
	})
}

// MarkVerified sets verified_at only while it is absent.
func (r *VerificationRepo) MarkVerified(ctx context.Context, id string, at time.Time) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           aws.String(r.tableName),
		Key:                                 strKey("verification_id", id),
		UpdateExpression:                    aws.String("SET verified_at = :at"),
		ConditionExpression:                 aws.String("attribute_exists(verification_id) AND attribute_not_exists(verified_at)"),
		ExpressionAttributeValues:           map[string]types.AttributeValue{":at": numVal(toNanos(at))},
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err == nil {
		return nil
	}
	if isConditionFailed(err) {
		if len(conditionFailedItem(err)) == 0 {
			return fmt.Errorf("verification %s: %w", id, domain.ErrNotFound)
		}
		return fmt.Errorf("verification %s already verified: %w", id, domain.ErrConflict)
	}
	return err
}

// PurgeExpired scans for unverified rows past expiry and deletes each one
// under the same condition, so a row verified mid-sweep is kept.
func (r *VerificationRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	p := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName:                 aws.String(r.tableName),
		FilterExpression:          aws.String("expires_at < :now AND attribute_not_exists(verified_at)"),
		ProjectionExpression:      aws.String("verification_id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":now": numVal(toNanos(now))},
	})
	var deleted int64
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return deleted, fmt.Errorf("scan expired verifications: %w", err)
		}
		for _, item := range page.Items {
			idAttr, ok := item["verification_id"].(*types.AttributeValueMemberS)
			if !ok {
				continue
			}
			_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
				TableName:                 aws.String(r.tableName),
				Key:                       strKey("verification_id", idAttr.Value),
				ConditionExpression:       aws.String("expires_at < :now AND attribute_not_exists(verified_at)"),
				ExpressionAttributeValues: map[string]types.AttributeValue{":now": numVal(toNanos(now))},
			})
			if isConditionFailed(err) {
				continue
			}
			if err != nil {
				return deleted, fmt.Errorf("delete verification %s: %w", idAttr.Value, err)
			}
			deleted++
		}
	}
	return deleted, nil
}

func (r *VerificationRepo) queryOne(ctx context.Context, in *dynamodb.QueryInput) (*domain.VerificationRecord, error) {
	out, err := r.client.Query(ctx, in)
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("verification not found: %w", domain.ErrNotFound)
	}
	var it verificationItem
	if err := attributevalue.UnmarshalMap(out.Items[0], &it); err != nil {
		return nil, fmt.Errorf("unmarshal verification: %w", err)
	}
	return r.fromItem(&it), nil
}

func (r *VerificationRepo) toItem(rec *domain.VerificationRecord) *verificationItem {
	it := &verificationItem{
		ID:        rec.ID,
		UserID:    rec.SubjectID,
		ExpiresAt: toNanos(rec.ExpiresAt),
		CreatedAt: toNanos(rec.CreatedAt),
	}
	if rec.VerifiedAt != nil {
		n := toNanos(*rec.VerifiedAt)
		it.VerifiedAt = &n
	}
	if r.flow == domain.FlowPhone {
		it.Phone = rec.Channel
		it.Code = rec.Secret
	} else {
		it.Token = rec.Secret
	}
	return it
}

func (r *VerificationRepo) fromItem(it *verificationItem) *domain.VerificationRecord {
	rec := &domain.VerificationRecord{
		ID:        it.ID,
		SubjectID: it.UserID,
		Channel:   it.Phone,
		Secret:    it.Token,
		ExpiresAt: fromNanos(it.ExpiresAt),
		CreatedAt: fromNanos(it.CreatedAt),
	}
	if r.flow == domain.FlowPhone {
		rec.Secret = it.Code
	}
	if it.VerifiedAt != nil {
		t := fromNanos(*it.VerifiedAt)
		rec.VerifiedAt = &t
	}
	return rec
}
