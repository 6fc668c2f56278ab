// Package s3store provides an S3 implementation of decisionlog.Store.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/triagedesk/internal/decisionlog"
)

var tracer = otel.Tracer("github.com/linnemanlabs/triagedesk/internal/decisionlog/s3store")

// maxObjectBytes caps a single record read. Decision records are a few KiB.
const maxObjectBytes = 8 << 20

// API is the subset of the S3 client the store uses.
type API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Store reads and writes decision records in S3.
type Store struct {
	client   API
	maxBytes int64
}

// New returns a Store backed by client.
func New(client API) *Store {
	return &Store{client: client, maxBytes: maxObjectBytes}
}

// NewFromConfig builds an S3 client from cfg. A non-empty endpoint switches to
// path-style addressing for S3-compatible servers.
func NewFromConfig(cfg aws.Config, endpoint string) *Store {
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return New(client)
}

// Get fetches an object body. A missing key returns ok=false and no error.
func (s *Store) Get(ctx context.Context, bucket, key string) ([]byte, bool, error) {
	ctx, span := startSpan(ctx, "s3store.Get", "GetObject", bucket)
	defer span.End()

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, false, nil
		}
		fail(span, err)
		return nil, false, fmt.Errorf("get object: %w", err)
	}
	defer func() { _ = out.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(out.Body, s.maxBytes+1))
	if err != nil {
		fail(span, err)
		return nil, false, fmt.Errorf("read object: %w", err)
	}
	if int64(len(body)) > s.maxBytes {
		err := fmt.Errorf("%w: over %d bytes", decisionlog.ErrTooLarge, s.maxBytes)
		fail(span, err)
		return nil, false, err
	}
	span.SetAttributes(attribute.Int("triagedesk.object.bytes", len(body)))
	return body, true, nil
}

// Put overwrites the object at key.
func (s *Store) Put(ctx context.Context, bucket, key string, body []byte) error {
	ctx, span := startSpan(ctx, "s3store.Put", "PutObject", bucket)
	defer span.End()

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		fail(span, err)
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// List returns one page of keys under prefix.
func (s *Store) List(ctx context.Context, bucket, prefix, token string) (*decisionlog.Page, error) {
	ctx, span := startSpan(ctx, "s3store.List", "ListObjectsV2", bucket)
	defer span.End()

	in := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	}
	if token != "" {
		in.ContinuationToken = aws.String(token)
	}

	out, err := s.client.ListObjectsV2(ctx, in)
	if err != nil {
		fail(span, err)
		return nil, fmt.Errorf("list objects: %w", err)
	}

	page := &decisionlog.Page{Keys: make([]string, 0, len(out.Contents))}
	for _, obj := range out.Contents {
		if k := aws.ToString(obj.Key); k != "" {
			page.Keys = append(page.Keys, k)
		}
	}
	if aws.ToBool(out.IsTruncated) {
		page.NextToken = aws.ToString(out.NextContinuationToken)
	}
	span.SetAttributes(attribute.Int("triagedesk.list.keys", len(page.Keys)))
	return page, nil
}

func startSpan(ctx context.Context, name, op, bucket string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("rpc.system", "aws-api"),
		attribute.String("rpc.service", "S3"),
		attribute.String("rpc.method", op),
		attribute.String("aws.s3.bucket", bucket),
	))
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
