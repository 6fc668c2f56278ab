package decisionlog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Decision codes written by the classification pipeline.
const (
	DecisionAllow      = "ALLOW"
	DecisionQuarantine = "QUARANTINE"
	DecisionITReview   = "IT_REVIEW"
)

// agentKey is the decision-agent sub-structure introduced by newer pipelines.
const agentKey = "decision_agent"

// Record is a decision log document. It is kept loosely typed because the
// upstream schema has changed shape several times and unknown fields must
// survive a read-modify-write untouched.
type Record map[string]any

// Parse decodes a record, preserving numbers exactly.
func Parse(body []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: not a JSON object", ErrCorrupt)
	}
	return rec, nil
}

// HITL is the mutable human review sub-object.
type HITL struct {
	Status  string    `json:"status"`
	Actor   string    `json:"actor"`
	Verdict string    `json:"verdict"`
	Notes   string    `json:"notes"`
	TS      time.Time `json:"ts"`
}

func (h HITL) doc() map[string]any {
	return map[string]any{
		"status":  h.Status,
		"actor":   h.Actor,
		"verdict": h.Verdict,
		"notes":   h.Notes,
		"ts":      h.TS.UTC().Format(time.RFC3339Nano),
	}
}

// ApplyVerdict overwrites the hitl and queue sub-objects. The decision-agent
// copy of hitl is written only when the record already has a decision agent.
// Business fields are never touched.
func (r Record) ApplyVerdict(h HITL) {
	r["hitl"] = h.doc()
	if agent, ok := asObject(r[agentKey]); ok {
		agent["hitl"] = h.doc()
	}
	q, ok := asObject(r["queue"])
	if !ok {
		q = map[string]any{}
	}
	q["status"] = h.Status
	q["resolved_ts"] = h.TS.UTC().Format(time.RFC3339Nano)
	r["queue"] = q
}

// PartitionPrefix returns the listing prefix for the UTC day containing t.
func PartitionPrefix(prefix string, t time.Time) string {
	t = t.UTC()
	p := strings.TrimSuffix(prefix, "/")
	day := fmt.Sprintf("%04d/%02d/%02d/", t.Year(), int(t.Month()), t.Day())
	if p == "" {
		return day
	}
	return p + "/" + day
}

// ObjectKey returns the storage key for a record file in the partition of t.
func ObjectKey(prefix string, t time.Time, file string) string {
	if !strings.HasSuffix(file, ".json") {
		file += ".json"
	}
	return PartitionPrefix(prefix, t) + file
}

// DayStart truncates t to midnight UTC.
func DayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
