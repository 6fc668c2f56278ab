// Package pgstore provides a PostgreSQL implementation of review.QueueStore
// and review.FeedbackStore.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/triagedesk/internal/review"
)

var tracer = otel.Tracer("github.com/linnemanlabs/triagedesk/internal/review/pgstore")

//go:embed schema.sql
var schema string

// DefaultScanLimit is the page size used when a scan does not set one.
const DefaultScanLimit = 1000

// Store persists queue items and feedback in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on pool and returns a ready Store. The caller owns
// the pool.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const itemColumns = `id, status, verdict, actor, notes, created_at, resolved_at,
	decision, subject, from_addr, from_domain, run_id, log_bucket, log_key`

// Get retrieves a queue item by ID.
func (s *Store) Get(ctx context.Context, id string) (*review.Item, bool, error) {
	ctx, span := startSpan(ctx, "pgstore.Get", "SELECT")
	defer span.End()

	it, err := scanItem(s.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM queue_items WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		fail(span, err)
		return nil, false, err
	}
	return it, true, nil
}

// Put inserts or replaces a queue item.
func (s *Store) Put(ctx context.Context, it *review.Item) error {
	ctx, span := startSpan(ctx, "pgstore.Put", "UPSERT")
	defer span.End()

	query := `INSERT INTO queue_items (` + itemColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	ON CONFLICT (id) DO UPDATE SET
		status      = EXCLUDED.status,
		verdict     = EXCLUDED.verdict,
		actor       = EXCLUDED.actor,
		notes       = EXCLUDED.notes,
		created_at  = EXCLUDED.created_at,
		resolved_at = EXCLUDED.resolved_at,
		decision    = EXCLUDED.decision,
		subject     = EXCLUDED.subject,
		from_addr   = EXCLUDED.from_addr,
		from_domain = EXCLUDED.from_domain,
		run_id      = EXCLUDED.run_id,
		log_bucket  = EXCLUDED.log_bucket,
		log_key     = EXCLUDED.log_key`

	_, err := s.pool.Exec(ctx, query,
		it.ID, string(it.Status), string(it.Verdict), it.Actor, it.Notes,
		nullTime(it.CreatedAt), nullTime(it.ResolvedAt),
		it.Decision, it.Subject, it.FromAddr, it.FromDomain, it.RunID, it.LogBucket, it.LogKey,
	)
	if err != nil {
		err = fmt.Errorf("upsert queue item: %w", err)
		fail(span, err)
		return err
	}
	return nil
}

// Scan returns up to Limit items in ID order after StartKey. The status
// filter is applied in the query, so every page except the last is full.
func (s *Store) Scan(ctx context.Context, in review.ScanInput) (*review.ScanPage, error) {
	ctx, span := startSpan(ctx, "pgstore.Scan", "SELECT")
	defer span.End()

	limit := in.Limit
	if limit <= 0 {
		limit = DefaultScanLimit
	}

	// one extra row tells us whether another page exists
	rows, err := s.pool.Query(ctx,
		`SELECT `+itemColumns+` FROM queue_items
		 WHERE ($1 = '' OR status = $1) AND id > $2
		 ORDER BY id LIMIT $3`,
		string(in.Status), in.StartKey, limit+1,
	)
	if err != nil {
		err = fmt.Errorf("query queue items: %w", err)
		fail(span, err)
		return nil, err
	}
	defer rows.Close()

	page := &review.ScanPage{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			fail(span, err)
			return nil, err
		}
		page.Items = append(page.Items, it)
	}
	if err := rows.Err(); err != nil {
		err = fmt.Errorf("iterate queue items: %w", err)
		fail(span, err)
		return nil, err
	}

	if len(page.Items) > limit {
		page.Items = page.Items[:limit]
		page.LastKey = page.Items[limit-1].ID
	}
	span.SetAttributes(attribute.Int("db.rows", len(page.Items)))
	return page, nil
}

// PutFeedback inserts a feedback row. A repeated (pk, sk) overwrites.
func (s *Store) PutFeedback(ctx context.Context, e *review.FeedbackEntry) error {
	ctx, span := startSpan(ctx, "pgstore.PutFeedback", "UPSERT")
	defer span.End()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO feedback (pk, sk, queue_id, verdict, actor, run_id, from_addr, from_domain, trust_tier, created_at, log_bucket, log_key)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		 ON CONFLICT (pk, sk) DO UPDATE SET
			queue_id   = EXCLUDED.queue_id,
			verdict    = EXCLUDED.verdict,
			actor      = EXCLUDED.actor,
			run_id     = EXCLUDED.run_id,
			trust_tier = EXCLUDED.trust_tier`,
		e.PK, e.SK, e.QueueID, string(e.Verdict), e.Actor, e.RunID, e.FromAddr, e.FromDomain,
		e.TrustTier, e.CreatedAt, e.LogBucket, e.LogKey,
	)
	if err != nil {
		err = fmt.Errorf("insert feedback: %w", err)
		fail(span, err)
		return err
	}
	return nil
}

// FeedbackForDomain returns the feedback rows for a sender domain, newest
// first.
func (s *Store) FeedbackForDomain(ctx context.Context, domain string, limit int) ([]review.FeedbackEntry, error) {
	ctx, span := startSpan(ctx, "pgstore.FeedbackForDomain", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT pk, sk, queue_id, verdict, actor, run_id, from_addr, from_domain, trust_tier, created_at, log_bucket, log_key
		 FROM feedback WHERE pk = $1 ORDER BY sk DESC LIMIT $2`,
		"domain#"+domain, limit,
	)
	if err != nil {
		err = fmt.Errorf("query feedback: %w", err)
		fail(span, err)
		return nil, err
	}
	defer rows.Close()

	var out []review.FeedbackEntry
	for rows.Next() {
		var (
			e       review.FeedbackEntry
			verdict string
		)
		if err := rows.Scan(&e.PK, &e.SK, &e.QueueID, &verdict, &e.Actor, &e.RunID, &e.FromAddr,
			&e.FromDomain, &e.TrustTier, &e.CreatedAt, &e.LogBucket, &e.LogKey); err != nil {
			fail(span, err)
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		e.Verdict = review.Verdict(verdict)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		fail(span, err)
		return nil, fmt.Errorf("iterate feedback: %w", err)
	}
	return out, nil
}

func scanItem(row pgx.Row) (*review.Item, error) {
	var (
		it                    review.Item
		status, verdict       string
		createdAt, resolvedAt *time.Time
	)
	err := row.Scan(
		&it.ID, &status, &verdict, &it.Actor, &it.Notes, &createdAt, &resolvedAt,
		&it.Decision, &it.Subject, &it.FromAddr, &it.FromDomain, &it.RunID, &it.LogBucket, &it.LogKey,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan: %w", err)
	}
	it.Status = review.Status(status)
	it.Verdict = review.Verdict(verdict)
	if createdAt != nil {
		it.CreatedAt = createdAt.UTC()
	}
	if resolvedAt != nil {
		it.ResolvedAt = resolvedAt.UTC()
	}
	return &it, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func startSpan(ctx context.Context, name, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", op),
	))
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
