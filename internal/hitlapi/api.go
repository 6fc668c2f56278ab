// Package hitlapi exposes the review queue, aggregation views and decision
// log lookups over HTTP.
package hitlapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/triagedesk/internal/aggregate"
	"github.com/linnemanlabs/triagedesk/internal/decisionlog"
	"github.com/linnemanlabs/triagedesk/internal/demo"
	"github.com/linnemanlabs/triagedesk/internal/review"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// ReviewService defines the review operations hitlapi needs.
type ReviewService interface {
	ListPending(ctx context.Context) ([]*review.PendingItem, error)
	Resolve(ctx context.Context, id, verdict, actor, notes string) (*review.Resolution, error)
	Stats(ctx context.Context) (*review.Stats, error)
}

// Aggregator defines the decision log views hitlapi needs.
type Aggregator interface {
	Metrics(ctx context.Context, windowDays int) (*aggregate.Report, error)
	History(ctx context.Context, from, to string) ([]aggregate.Row, error)
}

// RecordLoader reads a single decision record.
type RecordLoader interface {
	Load(ctx context.Context, ref decisionlog.Ref) (decisionlog.Record, error)
}

// Options holds the optional parts of the API.
type Options struct {
	// LogBucket, when set, is the only bucket log detail lookups may read.
	LogBucket string

	// Emitter enables the demo generator routes.
	Emitter demo.Emitter
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger    log.Logger
	svc       ReviewService
	agg       Aggregator
	logs      RecordLoader
	logBucket string
	emitter   demo.Emitter
}

// New creates a new API handler.
func New(logger log.Logger, svc ReviewService, agg Aggregator, logs RecordLoader, opts Options) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil || agg == nil || logs == nil {
		panic(xerrors.New("review service, aggregator and record loader are required"))
	}
	return &API{
		logger:    logger,
		svc:       svc,
		agg:       agg,
		logs:      logs,
		logBucket: opts.LogBucket,
		emitter:   opts.Emitter,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Route("/hitl", func(r chi.Router) {
			r.Get("/pending", a.handlePending)
			r.Get("/stats", a.handleStats)
			r.Post("/{id}/verdict", a.handleVerdict)
		})
		r.Get("/metrics", a.handleMetrics)
		r.Get("/history", a.handleHistory)
		r.Get("/log/detail", a.handleLogDetail)

		if a.emitter != nil {
			r.Route("/demo", func(r chi.Router) {
				r.Post("/start", a.handleDemo(a.emitter.Start))
				r.Post("/stop", a.handleDemo(a.emitter.Stop))
				r.Get("/status", a.handleDemo(a.emitter.Running))
			})
		}
	})
}

// envelope is the body of every response.
type envelope map[string]any

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeOK(w http.ResponseWriter, body envelope) {
	body["success"] = true
	writeJSON(w, http.StatusOK, body)
}

// writeError maps domain errors to a status. Client errors carry their
// message; anything else is logged and reported as an internal error.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error, msg string, kv ...any) {
	status := statusFor(err)
	text := err.Error()
	if status == http.StatusInternalServerError {
		a.logger.Error(r.Context(), err, msg, kv...)
		text = "internal error"
	}
	writeJSON(w, status, envelope{"success": false, "error": text})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, review.ErrInvalidVerdict),
		errors.Is(err, aggregate.ErrInvalidWindow),
		errors.Is(err, aggregate.ErrInvalidRange),
		errors.Is(err, decisionlog.ErrInvalidRef),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, review.ErrNotFound),
		errors.Is(err, decisionlog.ErrObjectNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// errBadRequest marks request validation failures raised by the handlers.
var errBadRequest = errors.New("bad request")

type badRequest string

func (e badRequest) Error() string        { return string(e) }
func (e badRequest) Is(target error) bool { return target == errBadRequest }
