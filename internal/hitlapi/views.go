package hitlapi

import (
	"net/http"
	"strconv"

	"github.com/linnemanlabs/triagedesk/internal/decisionlog"
)

// defaultWindowDays applies when windowDays is omitted.
const defaultWindowDays = 7

func (a *API) handleMetrics(w http.ResponseWriter, r *http.Request) {
	window := defaultWindowDays
	if raw := r.URL.Query().Get("windowDays"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			a.writeError(w, r, badRequest("windowDays must be an integer"), "")
			return
		}
		window = n
	}

	rep, err := a.agg.Metrics(r.Context(), window)
	if err != nil {
		a.writeError(w, r, err, "failed to aggregate metrics", "window_days", window)
		return
	}
	writeOK(w, envelope{"metrics": rep})
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")
	if from == "" || to == "" {
		a.writeError(w, r, badRequest("from and to are required (YYYY-MM-DD)"), "")
		return
	}

	rows, err := a.agg.History(r.Context(), from, to)
	if err != nil {
		a.writeError(w, r, err, "failed to aggregate history", "from", from, "to", to)
		return
	}
	writeOK(w, envelope{"items": rows, "count": len(rows)})
}

func (a *API) handleLogDetail(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ref := decisionlog.Ref{Bucket: q.Get("bucket"), Key: q.Get("key")}
	if !ref.Valid() {
		a.writeError(w, r, decisionlog.ErrInvalidRef, "")
		return
	}
	if a.logBucket != "" && ref.Bucket != a.logBucket {
		a.writeError(w, r, badRequest("bucket not allowed"), "")
		return
	}

	rec, err := a.logs.Load(r.Context(), ref)
	if err != nil {
		a.writeError(w, r, err, "failed to load decision record", "bucket", ref.Bucket, "key", ref.Key)
		return
	}
	writeOK(w, envelope{
		"bucket": ref.Bucket,
		"key":    ref.Key,
		"record": rec,
		"fields": decisionlog.Extract(rec),
	})
}
