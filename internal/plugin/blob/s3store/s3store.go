package s3store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/chirino/chat-archive/internal/config"
	registryblob "github.com/chirino/chat-archive/internal/registry/blob"
)

func init() {
	registryblob.Register(registryblob.Plugin{
		Name:   "s3",
		Loader: load,
	})
}

func load(ctx context.Context) (registryblob.Store, error) {
	cfg := config.FromContext(ctx)
	if cfg == nil || cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3store: S3 bucket is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRequestChecksumCalculation(aws.RequestChecksumCalculationWhenRequired),
	)
	if err != nil {
		return nil, fmt.Errorf("s3store: load AWS config: %w", err)
	}
	endpoint := strings.TrimSpace(cfg.S3Endpoint)
	usePathStyle := cfg.S3UsePathStyle
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = usePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return New(client, cfg.S3Bucket, cfg.S3Prefix), nil
}

// New returns a Store backed by the given S3 client and bucket. prefix is
// applied to every key on access and stripped from listed keys.
func New(client *s3.Client, bucket, prefix string) *S3Store {
	return &S3Store{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(strings.TrimSpace(prefix), "/"),
	}
}

type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// s3Key returns the actual S3 object key for an archive key, applying the prefix if set.
func (s *S3Store) s3Key(key string) string {
	if s.prefix != "" {
		return s.prefix + "/" + key
	}
	return key
}

func (s *S3Store) archiveKey(s3Key string) string {
	if s.prefix != "" {
		return strings.TrimPrefix(s3Key, s.prefix+"/")
	}
	return s3Key
}

func (s *S3Store) List(ctx context.Context, prefix string, limit int) ([]registryblob.ObjectInfo, error) {
	listPrefix := s.s3Key(prefix)
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: &s.bucket,
		Prefix: &listPrefix,
	})
	var result []registryblob.ObjectInfo
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3store: list %q: %w", listPrefix, err)
		}
		for _, obj := range page.Contents {
			info := registryblob.ObjectInfo{
				Key:  s.archiveKey(aws.ToString(obj.Key)),
				Size: aws.ToInt64(obj.Size),
			}
			if obj.LastModified != nil {
				info.LastModified = *obj.LastModified
			}
			result = append(result, info)
			if limit > 0 && len(result) >= limit {
				return result, nil
			}
		}
	}
	return result, nil
}

func (s *S3Store) GetJSON(ctx context.Context, key string) (json.RawMessage, bool, error) {
	s3Key := s.s3Key(key)
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &s3Key,
	})
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("s3store: get object: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("s3store: read object %q: %w", key, err)
	}
	if !json.Valid(data) {
		return nil, false, fmt.Errorf("s3store: object %q: %w", key, registryblob.ErrInvalidJSON)
	}
	return json.RawMessage(data), true, nil
}

func (s *S3Store) PutJSON(ctx context.Context, key string, doc json.RawMessage) error {
	s3Key := s.s3Key(key)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &s.bucket,
		Key:           &s3Key,
		Body:          bytes.NewReader(doc),
		ContentLength: aws.Int64(int64(len(doc))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3store: put object: %w", err)
	}
	return nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	s3Key := s.s3Key(key)
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.bucket,
		Key:    &s3Key,
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("s3store: delete object: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

var _ registryblob.Store = (*S3Store)(nil)
