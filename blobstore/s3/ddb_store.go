package s3

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/redline/blobstore"
	"github.com/oklog/ulid/v2"
)

// DDBStore implements blobstore.Store on a DynamoDB table.
//
// DynamoDB conditional writes give cheap, strongly consistent
// compare-and-swap, which makes the table a good home for lock tokens. Combine
// it with an S3 Store through blobstore.SplitStore:
//
//	docs := s3.NewStore(s3Client, "bucket", "redline/")
//	locks := s3.NewDDBStore(ddbClient, "redline-locks")
//	store := blobstore.NewSplitStore(docs, "locks/", locks)
//
// Table schema:
//   - Partition key: name (string)
//   - Attributes: data (binary), rev (string, a fresh ULID on every write)
//
// Revisions never repeat, not even after a delete and re-create, so a stale
// holder can never match a newer item.
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name redline-locks \
//	  --attribute-definitions AttributeName=name,AttributeType=S \
//	  --key-schema AttributeName=name,KeyType=HASH \
//	  --billing-mode PAY_PER_REQUEST
type DDBStore struct {
	client    DDBClient
	tableName string
}

var _ blobstore.Store = (*DDBStore)(nil)

// DDBClient is the interface for DynamoDB operations.
type DDBClient interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

const (
	attrName = "name"
	attrData = "data"
	attrRev  = "rev"

	condNotExists = "attribute_not_exists(#n)"
	condRevEquals = "attribute_exists(#n) AND #r = :expected"
)

// NewDDBStore creates a new DynamoDB-backed store.
func NewDDBStore(client DDBClient, tableName string) *DDBStore {
	return &DDBStore{
		client:    client,
		tableName: tableName,
	}
}

func (s *DDBStore) itemKey(name string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrName: &types.AttributeValueMemberS{Value: name},
	}
}

// Get reads the item with a strongly consistent read.
func (s *DDBStore) Get(ctx context.Context, name string) ([]byte, blobstore.Revision, error) {
	resp, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            s.itemKey(name),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, blobstore.NoRevision, fmt.Errorf("failed to get item from DynamoDB: %w", err)
	}
	if len(resp.Item) == 0 {
		return nil, blobstore.NoRevision, blobstore.ErrNotFound
	}
	return decodeItem(resp.Item)
}

// Put replaces the item if its rev attribute equals expected.
func (s *DDBStore) Put(ctx context.Context, name string, data []byte, expected blobstore.Revision) (blobstore.Revision, error) {
	if expected == blobstore.NoRevision {
		return blobstore.NoRevision, blobstore.ErrConflict
	}
	next := newRev()

	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                s.item(name, data, next),
		ConditionExpression: aws.String(condRevEquals),
		ExpressionAttributeNames: map[string]string{
			"#n": attrName,
			"#r": attrRev,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberS{Value: string(expected)},
		},
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		return blobstore.NoRevision, conditionError(err)
	}
	return next, nil
}

// CreateIfAbsent writes the item if the name is unused.
func (s *DDBStore) CreateIfAbsent(ctx context.Context, name string, data []byte) (blobstore.Revision, error) {
	rev := newRev()
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                s.item(name, data, rev),
		ConditionExpression: aws.String(condNotExists),
		ExpressionAttributeNames: map[string]string{
			"#n": attrName,
		},
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return blobstore.NoRevision, blobstore.ErrExists
		}
		return blobstore.NoRevision, fmt.Errorf("failed to put item to DynamoDB: %w", err)
	}
	return rev, nil
}

// DeleteIfMatches deletes the item if its rev attribute equals expected.
func (s *DDBStore) DeleteIfMatches(ctx context.Context, name string, expected blobstore.Revision) error {
	if expected == blobstore.NoRevision {
		return blobstore.ErrConflict
	}

	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 s.itemKey(name),
		ConditionExpression: aws.String(condRevEquals),
		ExpressionAttributeNames: map[string]string{
			"#n": attrName,
			"#r": attrRev,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberS{Value: string(expected)},
		},
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		return conditionError(err)
	}
	return nil
}

// List scans the table for names with the given prefix.
func (s *DDBStore) List(ctx context.Context, prefix string) ([]string, error) {
	input := &dynamodb.ScanInput{
		TableName:                aws.String(s.tableName),
		ProjectionExpression:     aws.String("#n"),
		ExpressionAttributeNames: map[string]string{"#n": attrName},
		ConsistentRead:           aws.Bool(true),
	}
	if prefix != "" {
		input.FilterExpression = aws.String("begins_with(#n, :p)")
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":p": &types.AttributeValueMemberS{Value: prefix},
		}
	}

	var names []string
	paginator := dynamodb.NewScanPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan DynamoDB: %w", err)
		}
		for _, item := range page.Items {
			if n, ok := item[attrName].(*types.AttributeValueMemberS); ok {
				names = append(names, n.Value)
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *DDBStore) item(name string, data []byte, rev blobstore.Revision) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrName: &types.AttributeValueMemberS{Value: name},
		attrData: &types.AttributeValueMemberB{Value: data},
		attrRev:  &types.AttributeValueMemberS{Value: string(rev)},
	}
}

// conditionError distinguishes a missing item from a revision mismatch using
// the old item DynamoDB returns on a failed condition.
func conditionError(err error) error {
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		if len(condErr.Item) == 0 {
			return blobstore.ErrNotFound
		}
		return blobstore.ErrConflict
	}
	return fmt.Errorf("failed to write to DynamoDB: %w", err)
}

func decodeItem(item map[string]types.AttributeValue) ([]byte, blobstore.Revision, error) {
	dataAttr, ok := item[attrData].(*types.AttributeValueMemberB)
	if !ok {
		return nil, blobstore.NoRevision, errors.New("invalid data attribute in DynamoDB")
	}
	revAttr, ok := item[attrRev].(*types.AttributeValueMemberS)
	if !ok {
		return nil, blobstore.NoRevision, errors.New("invalid rev attribute in DynamoDB")
	}
	return dataAttr.Value, blobstore.Revision(revAttr.Value), nil
}

func newRev() blobstore.Revision {
	return blobstore.Revision(ulid.Make().String())
}
