package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/vecdir/blobstore"
	"github.com/hupe1980/vecdir/internal/hash"
)

// DDBCommitStore stores blobs in S3 and commits each write to a DynamoDB
// ledger. Every Put uploads a new versioned object and then records it with a
// conditional write, so readers only ever see committed versions and
// concurrent writers of the same name cannot overwrite each other silently.
//
// Table schema:
//   - Partition key: blob (string) - the blob name
//   - Sort key: version (number) - monotonically increasing version
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name vecdir-commits \
//	  --attribute-definitions AttributeName=blob,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=blob,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type DDBCommitStore struct {
	s3Store   *Store
	ddbClient DDBClient
	tableName string
}

// DDBClient is the interface for DynamoDB operations.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

var _ DDBClient = (*dynamodb.Client)(nil)

// ErrConcurrentModification is returned when another writer committed the
// same version first.
var ErrConcurrentModification = errors.New("concurrent modification detected")

// ErrChecksumMismatch is returned when an object does not match its ledger
// entry.
var ErrChecksumMismatch = errors.New("blob checksum does not match commit ledger")

// NewDDBCommitStore creates a new S3+DynamoDB commit store.
func NewDDBCommitStore(s3Store *Store, ddbClient DDBClient, tableName string) *DDBCommitStore {
	return &DDBCommitStore{
		s3Store:   s3Store,
		ddbClient: ddbClient,
		tableName: tableName,
	}
}

type commit struct {
	version  uint64
	object   string
	checksum uint32
}

func versionedName(name string, version uint64) string {
	return fmt.Sprintf("%s.v%020d", name, version)
}

// Open opens the latest committed version of name and verifies its checksum.
func (s *DDBCommitStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	c, err := s.latest(ctx, name)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, blobstore.ErrNotFound
	}

	data, err := blobstore.ReadAll(ctx, s.s3Store, c.object)
	if err != nil {
		return nil, err
	}
	if hash.CRC32C(data) != c.checksum {
		return nil, fmt.Errorf("%w: %s version %d", ErrChecksumMismatch, name, c.version)
	}
	return &committedBlob{data: data}, nil
}

// Put uploads data as the next version of name and commits it.
func (s *DDBCommitStore) Put(ctx context.Context, name string, data []byte) error {
	c, err := s.latest(ctx, name)
	if err != nil {
		return err
	}
	next := uint64(1)
	if c != nil {
		next = c.version + 1
	}

	object := versionedName(name, next)
	if err := s.s3Store.Put(ctx, object, data); err != nil {
		return err
	}

	_, err = s.ddbClient.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"blob":     &types.AttributeValueMemberS{Value: name},
			"version":  &types.AttributeValueMemberN{Value: strconv.FormatUint(next, 10)},
			"object":   &types.AttributeValueMemberS{Value: object},
			"checksum": &types.AttributeValueMemberN{Value: strconv.FormatUint(uint64(hash.CRC32C(data)), 10)},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		_ = s.s3Store.Delete(ctx, object)
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrConcurrentModification
		}
		return fmt.Errorf("commit %s version %d: %w", name, next, err)
	}

	if c != nil {
		_ = s.s3Store.Delete(ctx, c.object)
	}
	return nil
}

// Delete removes every committed version of name.
func (s *DDBCommitStore) Delete(ctx context.Context, name string) error {
	for {
		c, err := s.latest(ctx, name)
		if err != nil {
			return err
		}
		if c == nil {
			return nil
		}
		_, err = s.ddbClient.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(s.tableName),
			Key: map[string]types.AttributeValue{
				"blob":    &types.AttributeValueMemberS{Value: name},
				"version": &types.AttributeValueMemberN{Value: strconv.FormatUint(c.version, 10)},
			},
		})
		if err != nil {
			return err
		}
		if err := s.s3Store.Delete(ctx, c.object); err != nil {
			return err
		}
	}
}

// List returns the names of committed blobs under prefix.
func (s *DDBCommitStore) List(ctx context.Context, prefix string) ([]string, error) {
	objects, err := s.s3Store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var names []string
	for _, obj := range objects {
		name, ok := stripVersion(obj)
		if !ok || seen[name] {
			continue
		}
		c, err := s.latest(ctx, name)
		if err != nil {
			return nil, err
		}
		if c != nil {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names, nil
}

func stripVersion(object string) (string, bool) {
	const suffix = len(".v") + 20
	if len(object) <= suffix || object[len(object)-suffix:len(object)-20] != ".v" {
		return "", false
	}
	return object[:len(object)-suffix], true
}

func (s *DDBCommitStore) latest(ctx context.Context, name string) (*commit, error) {
	resp, err := s.ddbClient.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("#b = :blob"),
		ExpressionAttributeNames: map[string]string{
			"#b": "blob",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":blob": &types.AttributeValueMemberS{Value: name},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("query commit ledger: %w", err)
	}
	if len(resp.Items) == 0 {
		return nil, nil
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return nil, errors.New("invalid version attribute in commit ledger")
	}
	objectAttr, ok := item["object"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, errors.New("invalid object attribute in commit ledger")
	}
	checksumAttr, ok := item["checksum"].(*types.AttributeValueMemberN)
	if !ok {
		return nil, errors.New("invalid checksum attribute in commit ledger")
	}

	version, err := strconv.ParseUint(versionAttr.Value, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse version: %w", err)
	}
	checksum, err := strconv.ParseUint(checksumAttr.Value, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("parse checksum: %w", err)
	}
	return &commit{version: version, object: objectAttr.Value, checksum: uint32(checksum)}, nil
}

type committedBlob struct {
	data []byte
}

func (b *committedBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off < 0 || off >= int64(len(b.data)) {
		return 0, io.EOF
	}
	n := copy(p, b.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *committedBlob) Close() error { return nil }

func (b *committedBlob) Size() int64 { return int64(len(b.data)) }

func (b *committedBlob) Bytes() ([]byte, error) { return b.data, nil }
