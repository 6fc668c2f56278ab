// Package dynamostore provides a DynamoDB implementation of
// review.QueueStore and review.FeedbackStore.
package dynamostore

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/triagedesk/internal/decisionlog"
	"github.com/linnemanlabs/triagedesk/internal/review"
)

var tracer = otel.Tracer("github.com/linnemanlabs/triagedesk/internal/review/dynamostore")

// DefaultScanLimit is the number of items examined per scan call when the
// caller does not set one.
const DefaultScanLimit = 1000

// API is the subset of the DynamoDB client the store uses.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Store keeps queue items in one table keyed by id and feedback in another
// keyed by pk/sk.
type Store struct {
	client        API
	queueTable    string
	feedbackTable string
}

// New returns a Store backed by client.
func New(client API, queueTable, feedbackTable string) *Store {
	return &Store{client: client, queueTable: queueTable, feedbackTable: feedbackTable}
}

// NewFromConfig builds a DynamoDB client from cfg. A non-empty endpoint
// points the client at a local or compatible server.
func NewFromConfig(cfg aws.Config, endpoint, queueTable, feedbackTable string) *Store {
	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return New(client, queueTable, feedbackTable)
}

// item is the table representation. Timestamps are RFC 3339 strings so the
// table stays readable by other producers.
type item struct {
	ID         string `dynamodbav:"id"`
	Status     string `dynamodbav:"status"`
	Verdict    string `dynamodbav:"verdict,omitempty"`
	Actor      string `dynamodbav:"actor,omitempty"`
	Notes      string `dynamodbav:"notes,omitempty"`
	CreatedTS  string `dynamodbav:"created_ts,omitempty"`
	ResolvedTS string `dynamodbav:"resolved_ts,omitempty"`
	Decision   string `dynamodbav:"decision,omitempty"`
	Subject    string `dynamodbav:"subject,omitempty"`
	FromAddr   string `dynamodbav:"from_addr,omitempty"`
	FromDomain string `dynamodbav:"from_domain,omitempty"`
	RunID      string `dynamodbav:"run_id,omitempty"`
	LogBucket  string `dynamodbav:"log_bucket,omitempty"`
	LogKey     string `dynamodbav:"log_key,omitempty"`
}

type feedbackItem struct {
	PK         string `dynamodbav:"pk"`
	SK         string `dynamodbav:"sk"`
	QueueID    string `dynamodbav:"queue_id"`
	Verdict    string `dynamodbav:"verdict"`
	Actor      string `dynamodbav:"actor"`
	RunID      string `dynamodbav:"run_id"`
	FromAddr   string `dynamodbav:"from_addr,omitempty"`
	FromDomain string `dynamodbav:"from_domain"`
	TrustTier  string `dynamodbav:"trust_tier"`
	CreatedTS  string `dynamodbav:"created_ts"`
	LogBucket  string `dynamodbav:"log_bucket,omitempty"`
	LogKey     string `dynamodbav:"log_key,omitempty"`
}

// Get retrieves a queue item by ID.
func (s *Store) Get(ctx context.Context, id string) (*review.Item, bool, error) {
	ctx, span := startSpan(ctx, "dynamostore.Get", "GetItem", s.queueTable)
	defer span.End()

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.queueTable),
		Key:            idKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		fail(span, err)
		return nil, false, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, false, nil
	}

	it, err := decodeItem(out.Item)
	if err != nil {
		fail(span, err)
		return nil, false, err
	}
	return it, true, nil
}

// Put writes the whole queue item, replacing any previous version.
func (s *Store) Put(ctx context.Context, it *review.Item) error {
	ctx, span := startSpan(ctx, "dynamostore.Put", "PutItem", s.queueTable)
	defer span.End()

	av, err := attributevalue.MarshalMap(encodeItem(it))
	if err != nil {
		fail(span, err)
		return fmt.Errorf("marshal item: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.queueTable),
		Item:      av,
	}); err != nil {
		fail(span, err)
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

// Scan runs one DynamoDB scan call. Limit bounds the items examined before
// the status filter, so pages may be short or empty while LastKey is set.
func (s *Store) Scan(ctx context.Context, in review.ScanInput) (*review.ScanPage, error) {
	ctx, span := startSpan(ctx, "dynamostore.Scan", "Scan", s.queueTable)
	defer span.End()

	limit := in.Limit
	if limit <= 0 {
		limit = DefaultScanLimit
	}

	input := &dynamodb.ScanInput{
		TableName: aws.String(s.queueTable),
		Limit:     aws.Int32(int32(min(limit, 1<<30))),
	}
	if in.Status != "" {
		input.FilterExpression = aws.String("#s = :s")
		input.ExpressionAttributeNames = map[string]string{"#s": "status"}
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":s": &types.AttributeValueMemberS{Value: string(in.Status)},
		}
	}
	if in.StartKey != "" {
		input.ExclusiveStartKey = idKey(in.StartKey)
	}

	out, err := s.client.Scan(ctx, input)
	if err != nil {
		fail(span, err)
		return nil, fmt.Errorf("scan: %w", err)
	}

	page := &review.ScanPage{Items: make([]*review.Item, 0, len(out.Items))}
	for _, av := range out.Items {
		it, err := decodeItem(av)
		if err != nil {
			fail(span, err)
			return nil, err
		}
		page.Items = append(page.Items, it)
	}
	if key, ok := out.LastEvaluatedKey["id"].(*types.AttributeValueMemberS); ok {
		page.LastKey = key.Value
	}
	span.SetAttributes(
		attribute.Int("aws.dynamodb.scanned_count", int(out.ScannedCount)),
		attribute.Int("aws.dynamodb.count", int(out.Count)),
	)
	return page, nil
}

// PutFeedback writes one feedback row.
func (s *Store) PutFeedback(ctx context.Context, e *review.FeedbackEntry) error {
	ctx, span := startSpan(ctx, "dynamostore.PutFeedback", "PutItem", s.feedbackTable)
	defer span.End()

	av, err := attributevalue.MarshalMap(feedbackItem{
		PK:         e.PK,
		SK:         e.SK,
		QueueID:    e.QueueID,
		Verdict:    string(e.Verdict),
		Actor:      e.Actor,
		RunID:      e.RunID,
		FromAddr:   e.FromAddr,
		FromDomain: e.FromDomain,
		TrustTier:  e.TrustTier,
		CreatedTS:  e.CreatedAt.UTC().Format(time.RFC3339Nano),
		LogBucket:  e.LogBucket,
		LogKey:     e.LogKey,
	})
	if err != nil {
		fail(span, err)
		return fmt.Errorf("marshal feedback: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.feedbackTable),
		Item:      av,
	}); err != nil {
		fail(span, err)
		return fmt.Errorf("put feedback: %w", err)
	}
	return nil
}

func idKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}}
}

func encodeItem(it *review.Item) item {
	return item{
		ID:         it.ID,
		Status:     string(it.Status),
		Verdict:    string(it.Verdict),
		Actor:      it.Actor,
		Notes:      it.Notes,
		CreatedTS:  formatTime(it.CreatedAt),
		ResolvedTS: formatTime(it.ResolvedAt),
		Decision:   it.Decision,
		Subject:    it.Subject,
		FromAddr:   it.FromAddr,
		FromDomain: it.FromDomain,
		RunID:      it.RunID,
		LogBucket:  it.LogBucket,
		LogKey:     it.LogKey,
	}
}

func decodeItem(av map[string]types.AttributeValue) (*review.Item, error) {
	var raw item
	if err := attributevalue.UnmarshalMap(av, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return &review.Item{
		ID:         raw.ID,
		Status:     review.Status(raw.Status),
		Verdict:    review.Verdict(raw.Verdict),
		Actor:      raw.Actor,
		Notes:      raw.Notes,
		CreatedAt:  parseTime(raw.CreatedTS),
		ResolvedAt: parseTime(raw.ResolvedTS),
		Decision:   raw.Decision,
		Subject:    raw.Subject,
		FromAddr:   raw.FromAddr,
		FromDomain: raw.FromDomain,
		RunID:      raw.RunID,
		LogBucket:  raw.LogBucket,
		LogKey:     raw.LogKey,
	}, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime returns the zero time for empty or unparseable values; items
// written by other producers are not rejected over a timestamp.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := decisionlog.ParseTime(s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func startSpan(ctx context.Context, name, op, table string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "dynamodb"),
		attribute.String("db.operation.name", op),
		attribute.String("aws.dynamodb.table_names", table),
	))
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
