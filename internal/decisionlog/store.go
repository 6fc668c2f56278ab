package decisionlog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidRef is returned when a bucket or key is missing.
	ErrInvalidRef = errors.New("bucket and key are required")

	// ErrCorrupt marks an object that exists but is not a JSON object.
	ErrCorrupt = errors.New("corrupt decision record")

	// ErrTooLarge marks an object over the store's read limit.
	ErrTooLarge = errors.New("decision record too large")

	// ErrObjectNotFound is returned by Loader.Load when the object is absent.
	ErrObjectNotFound = errors.New("decision record not found")
)

// Ref locates a record in object storage.
type Ref struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// Valid reports whether both parts of the reference are set.
func (r Ref) Valid() bool {
	return r.Bucket != "" && r.Key != ""
}

func (r Ref) String() string {
	return r.Bucket + "/" + r.Key
}

// Page is one page of a listing.
type Page struct {
	Keys      []string
	NextToken string
}

// Store is the object storage contract for decision records.
type Store interface {
	Get(ctx context.Context, bucket, key string) ([]byte, bool, error)
	Put(ctx context.Context, bucket, key string, body []byte) error
	List(ctx context.Context, bucket, prefix, token string) (*Page, error)
}

// Loader reads and writes whole records with a bound on every call.
type Loader struct {
	store   Store
	timeout time.Duration
}

// NewLoader wraps store. A zero timeout means calls are bounded only by ctx.
func NewLoader(store Store, timeout time.Duration) *Loader {
	return &Loader{store: store, timeout: timeout}
}

// Store returns the underlying object store.
func (l *Loader) Store() Store {
	return l.store
}

// Load fetches and parses the record at ref.
func (l *Loader) Load(ctx context.Context, ref Ref) (Record, error) {
	if !ref.Valid() {
		return nil, ErrInvalidRef
	}
	ctx, cancel := l.bound(ctx)
	defer cancel()

	body, ok, err := l.store.Get(ctx, ref.Bucket, ref.Key)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", ref, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", ref, ErrObjectNotFound)
	}
	rec, err := Parse(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ref, err)
	}
	return rec, nil
}

// Save serializes rec and overwrites the object at ref.
func (l *Loader) Save(ctx context.Context, ref Ref, rec Record) error {
	if !ref.Valid() {
		return ErrInvalidRef
	}
	body, err := encode(rec)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", ref, err)
	}
	ctx, cancel := l.bound(ctx)
	defer cancel()
	if err := l.store.Put(ctx, ref.Bucket, ref.Key, body); err != nil {
		return fmt.Errorf("put %s: %w", ref, err)
	}
	return nil
}

// List returns one listing page, bounded like every other call.
func (l *Loader) List(ctx context.Context, bucket, prefix, token string) (*Page, error) {
	ctx, cancel := l.bound(ctx)
	defer cancel()
	return l.store.List(ctx, bucket, prefix, token)
}

// encode writes rec without HTML escaping so untouched string fields keep
// their original bytes.
func encode(rec Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func (l *Loader) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, l.timeout)
}
