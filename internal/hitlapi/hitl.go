package hitlapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func (a *API) handlePending(w http.ResponseWriter, r *http.Request) {
	items, err := a.svc.ListPending(r.Context())
	if err != nil {
		a.writeError(w, r, err, "failed to list pending items")
		return
	}
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.Int("triagedesk.pending.count", len(items)))
	writeOK(w, envelope{"items": items, "count": len(items)})
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := a.svc.Stats(r.Context())
	if err != nil {
		a.writeError(w, r, err, "failed to compute stats")
		return
	}
	writeOK(w, envelope{"stats": st})
}

type verdictRequest struct {
	Verdict string `json:"verdict"`
	Actor   string `json:"actor"`
	Notes   string `json:"notes"`
}

func (a *API) handleVerdict(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("triagedesk.queue.id", id))

	var req verdictRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusRequestEntityTooLarge, envelope{"success": false, "error": "request body too large"})
			return
		}
		a.writeError(w, r, badRequest("invalid payload"), "")
		return
	}

	res, err := a.svc.Resolve(r.Context(), id, req.Verdict, strings.TrimSpace(req.Actor), req.Notes)
	if err != nil {
		a.writeError(w, r, err, "failed to resolve queue item", "id", id)
		return
	}

	span.SetAttributes(
		attribute.String("triagedesk.verdict", string(res.Verdict)),
		attribute.Bool("triagedesk.s3_updated", res.LogUpdated),
		attribute.Bool("triagedesk.feedback_written", res.FeedbackWritten),
	)
	writeOK(w, envelope{"result": res})
}
