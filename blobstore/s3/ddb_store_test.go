package s3

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/redline/blobstore"
	"github.com/hupe1980/redline/blobstore/storetest"
	"github.com/hupe1980/redline/lock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockDDBClient is an in-memory DynamoDB mock for testing.
// It understands the two condition expressions DDBStore issues.
type mockDDBClient struct {
	mu    sync.RWMutex
	items map[string]map[string]types.AttributeValue // name -> item
}

func newMockDDBClient() *mockDDBClient {
	return &mockDDBClient{
		items: make(map[string]map[string]types.AttributeValue),
	}
}

func (m *mockDDBClient) checkCondition(expr *string, values map[string]types.AttributeValue, name string) error {
	if expr == nil {
		return nil
	}
	cur, exists := m.items[name]
	failed := &types.ConditionalCheckFailedException{Message: aws.String("condition failed"), Item: cur}
	switch *expr {
	case condNotExists:
		if exists {
			return failed
		}
	case condRevEquals:
		if !exists {
			return failed
		}
		want := values[":expected"].(*types.AttributeValueMemberS).Value
		if cur[attrRev].(*types.AttributeValueMemberS).Value != want {
			return failed
		}
	}
	return nil
}

func (m *mockDDBClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name := params.Key[attrName].(*types.AttributeValueMemberS).Value
	return &dynamodb.GetItemOutput{Item: m.items[name]}, nil
}

func (m *mockDDBClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := params.Item[attrName].(*types.AttributeValueMemberS).Value
	if err := m.checkCondition(params.ConditionExpression, params.ExpressionAttributeValues, name); err != nil {
		return nil, err
	}
	m.items[name] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockDDBClient) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := params.Key[attrName].(*types.AttributeValueMemberS).Value
	if err := m.checkCondition(params.ConditionExpression, params.ExpressionAttributeValues, name); err != nil {
		return nil, err
	}
	delete(m.items, name)
	return &dynamodb.DeleteItemOutput{}, nil
}

func (m *mockDDBClient) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	prefix := ""
	if p, ok := params.ExpressionAttributeValues[":p"].(*types.AttributeValueMemberS); ok {
		prefix = p.Value
	}

	out := &dynamodb.ScanOutput{}
	for name := range m.items {
		if len(name) >= len(prefix) && name[:len(prefix)] == prefix {
			out.Items = append(out.Items, map[string]types.AttributeValue{
				attrName: &types.AttributeValueMemberS{Value: name},
			})
		}
	}
	return out, nil
}

func TestDDBStore_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) blobstore.Store {
		return NewDDBStore(newMockDDBClient(), "redline-locks")
	})
}

func TestDDBStore_RevisionsNeverRepeat(t *testing.T) {
	store := NewDDBStore(newMockDDBClient(), "redline-locks")
	ctx := context.Background()

	rev1, err := store.CreateIfAbsent(ctx, "locks/a.lock", []byte("t1"))
	require.NoError(t, err)
	rev2, err := store.Put(ctx, "locks/a.lock", []byte("t2"), rev1)
	require.NoError(t, err)
	assert.NotEqual(t, rev1, rev2)

	require.NoError(t, store.DeleteIfMatches(ctx, "locks/a.lock", rev2))
	rev3, err := store.CreateIfAbsent(ctx, "locks/a.lock", []byte("t3"))
	require.NoError(t, err)
	assert.NotEqual(t, rev1, rev3)
	assert.NotEqual(t, rev2, rev3)

	assert.ErrorIs(t, store.DeleteIfMatches(ctx, "locks/a.lock", rev1), blobstore.ErrConflict)

	_, err = store.Put(ctx, "locks/a.lock", []byte("t4"), blobstore.NoRevision)
	assert.ErrorIs(t, err, blobstore.ErrConflict)
}

func TestDDBStore_WithS3Split(t *testing.T) {
	docs := NewStore(newFakeS3(), "bucket", "redline/")
	locks := NewDDBStore(newMockDDBClient(), "redline-locks")

	storetest.Run(t, func(t *testing.T) blobstore.Store {
		return blobstore.NewSplitStore(NewStore(newFakeS3(), "bucket", "redline/"), "locks/", NewDDBStore(newMockDDBClient(), "redline-locks"))
	})

	store := blobstore.NewSplitStore(docs, "locks/", locks)
	ctx := context.Background()
	_, err := store.CreateIfAbsent(ctx, "locks/doc.lock", []byte("t"))
	require.NoError(t, err)

	_, _, err = docs.Get(ctx, "locks/doc.lock")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestDDBStore_StaleGuardCannotReleaseNewHolder(t *testing.T) {
	var (
		mu  sync.Mutex
		now = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	m := lock.NewManager(NewDDBStore(newMockDDBClient(), "redline-locks"),
		lock.WithTTL(time.Minute), lock.WithClock(clock))
	ctx := context.Background()

	stale, err := m.Acquire(ctx, []string{"doc"})
	require.NoError(t, err)

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()

	stealer, err := m.Acquire(ctx, []string{"doc"})
	require.NoError(t, err)
	require.NoError(t, stealer.Release(ctx))

	live, err := m.Acquire(ctx, []string{"doc"})
	require.NoError(t, err)

	err = stale.Release(ctx)
	assert.ErrorIs(t, err, lock.ErrStolen)

	tok, err := m.Inspect(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, live.HolderID(), tok.HolderID)
	require.NoError(t, live.Release(ctx))
}
