package decisionlog

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Fields are the display values resolved from a record. Pointer fields are nil
// when no candidate produced a value.
type Fields struct {
	From              string   `json:"from_addr_display,omitempty"`
	To                string   `json:"to_display,omitempty"`
	Subject           string   `json:"subject_display,omitempty"`
	BodyPreview       string   `json:"body_preview,omitempty"`
	Reasoning         *string  `json:"reasoning"`
	Classification    string   `json:"classification,omitempty"`
	Confidence        *float64 `json:"confidence,omitempty"`
	SenderRisk        *float64 `json:"sender_risk,omitempty"`
	PHIEntities       *int     `json:"phi_entities,omitempty"`
	ElapsedMS         *float64 `json:"elapsed_ms,omitempty"`
	AIDecision        string   `json:"ai_decision,omitempty"`
	AIDecisionText    string   `json:"ai_decision_text,omitempty"`
	HumanDecisionText string   `json:"human_decision_text,omitempty"`
	LatencyText       string   `json:"latency_text"`
}

type (
	stringAccessor = func(Record) (string, bool)
	numberAccessor = func(Record) (float64, bool)
)

// Candidate tables. Order encodes schema history: most specific nesting first,
// oldest flat shapes last.
var (
	bodyPreviewCandidates = []stringAccessor{
		stringAt("compact", "body_preview"),
		stringAt("body_preview"),
		stringAt("summary", "body_preview"),
	}

	reasoningCandidates = []stringAccessor{
		firstNoteReasoning,
		textAt("reasoning"),
		textAt("summary", "reasoning"),
		textAt(agentKey, "reasoning"),
		textAt(agentKey, "explanation"),
		textAt(agentKey, "reasons"),
		textAt("explanation"),
		textAt("decision_reasons"),
	}

	classificationCandidates = []stringAccessor{
		stringAt("summary", "classification"),
		stringAt(agentKey, "signals", "classification"),
	}

	decisionCandidates = []stringAccessor{
		stringAt(agentKey, "decision"),
		stringAt("decision"),
	}

	fromCandidates = []stringAccessor{
		stringAt("compact", "from", "addr"),
		stringAt("compact", "from"),
		stringAt("from", "addr"),
		stringAt("from"),
	}

	toCandidates = []stringAccessor{
		recipientsAt("compact", "to"),
		recipientsAt("to"),
	}

	subjectCandidates = []stringAccessor{
		stringAt("compact", "subject"),
		stringAt("subject"),
	}

	timestampCandidates = []stringAccessor{
		stringAt("timestamp"),
		stringAt("compact", "date_iso"),
		stringAt("queue", "resolved_ts"),
	}

	confidenceCandidates = []numberAccessor{
		numberAt("summary", "confidence"),
		numberAt(agentKey, "signals", "confidence"),
	}

	senderRiskCandidates = []numberAccessor{
		numberAt("summary", "sender_risk"),
		numberAt(agentKey, "signals", "sender_risk"),
		numberAt("risk"),
	}

	phiCandidates = []numberAccessor{
		numberAt(agentKey, "signals", "phi_entities"),
		numberAt("phi_entities"),
		numberAt("phi", "entities_detected"),
		boolAsNumber("summary", "has_phi"),
	}

	elapsedCandidates = []numberAccessor{
		numberAt("elapsed_ms"),
		numberAt("timings", "elapsed_ms"),
		featureNumber("timings.elapsed_ms"),
	}
)

// Extract resolves every display field from r. It has no side effects.
func Extract(r Record) Fields {
	f := Fields{
		From:           firstString(r, fromCandidates),
		To:             firstString(r, toCandidates),
		Subject:        firstString(r, subjectCandidates),
		BodyPreview:    firstString(r, bodyPreviewCandidates),
		Classification: firstString(r, classificationCandidates),
		AIDecision:     Decision(r),
	}
	if s, ok := first(r, reasoningCandidates); ok {
		f.Reasoning = &s
	}
	if v, ok := first(r, confidenceCandidates); ok {
		f.Confidence = &v
	}
	if v, ok := first(r, senderRiskCandidates); ok {
		f.SenderRisk = &v
	}
	if n, ok := PHIEntities(r); ok {
		f.PHIEntities = &n
	}
	if v, ok := ElapsedMS(r); ok {
		f.ElapsedMS = &v
	}
	f.AIDecisionText = DecisionText(f.AIDecision)
	f.HumanDecisionText = humanDecisionText(r)
	f.LatencyText = LatencyText(f.ElapsedMS)
	return f
}

// Decision returns the machine decision code, preferring the decision agent.
func Decision(r Record) string {
	return strings.ToUpper(firstString(r, decisionCandidates))
}

// Classification returns the classification label, if any.
func Classification(r Record) string {
	return firstString(r, classificationCandidates)
}

// PHIEntities returns the PHI entity count.
func PHIEntities(r Record) (int, bool) {
	v, ok := first(r, phiCandidates)
	if !ok {
		return 0, false
	}
	return int(v), true
}

// ElapsedMS returns the processing latency in milliseconds.
func ElapsedMS(r Record) (float64, bool) {
	return first(r, elapsedCandidates)
}

// Timestamp returns the record's effective timestamp.
func Timestamp(r Record) (time.Time, bool) {
	for _, get := range timestampCandidates {
		s, ok := get(r)
		if !ok {
			continue
		}
		if t, err := ParseTime(s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ID returns the record's correlation key.
func ID(r Record) string {
	if id, ok := stringAt("id")(r); ok {
		return id
	}
	id, _ := stringAt("message_id")(r)
	return id
}

// StatusCode returns the upstream status code recorded with the decision.
func StatusCode(r Record) (int, bool) {
	v, ok := numberAt("status")(r)
	if !ok {
		return 0, false
	}
	return int(v), true
}

// Review returns the top-level hitl status and verdict.
func Review(r Record) (status, verdict string) {
	status, _ = stringAt("hitl", "status")(r)
	verdict, _ = stringAt("hitl", "verdict")(r)
	return status, verdict
}

// DecisionText renders a decision code for display.
func DecisionText(code string) string {
	switch code {
	case DecisionAllow:
		return "Allow"
	case DecisionQuarantine:
		return "Quarantine"
	case DecisionITReview:
		return "IT Review"
	default:
		return code
	}
}

// LatencyText renders elapsed milliseconds: seconds with one decimal from one
// second upward, rounded whole milliseconds below, "-" when unknown.
func LatencyText(ms *float64) string {
	if ms == nil {
		return "-"
	}
	whole := math.Round(*ms)
	if whole >= 1000 {
		return fmt.Sprintf("%.1fs", *ms/1000)
	}
	return fmt.Sprintf("%dms", int64(whole))
}

func humanDecisionText(r Record) string {
	status, verdict := Review(r)
	if status == "resolved" && verdict != "" {
		text := "Blocked"
		if verdict == "allow" {
			text = "Allowed"
		}
		if actor, ok := stringAt("hitl", "actor")(r); ok {
			text += " by " + actor
		}
		return text
	}
	if qs, _ := stringAt("queue", "status")(r); qs == "pending" {
		return "Pending review"
	}
	return ""
}

func first[T any](r Record, cands []func(Record) (T, bool)) (T, bool) {
	for _, get := range cands {
		if v, ok := get(r); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func firstString(r Record, cands []stringAccessor) string {
	s, _ := first(r, cands)
	return s
}

// lookup walks nested objects.
func lookup(r Record, path ...string) (any, bool) {
	var cur any = map[string]any(r)
	for _, p := range path {
		m, ok := asObject(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

func asObject(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Record:
		return m, true
	}
	return nil, false
}

func stringAt(path ...string) stringAccessor {
	return func(r Record) (string, bool) {
		v, ok := lookup(r, path...)
		if !ok {
			return "", false
		}
		s, ok := v.(string)
		if !ok || s == "" {
			return "", false
		}
		return s, true
	}
}

// textAt accepts a string or a list of strings joined by blank lines.
func textAt(path ...string) stringAccessor {
	return func(r Record) (string, bool) {
		v, ok := lookup(r, path...)
		if !ok {
			return "", false
		}
		return joinText(v)
	}
}

// recipientsAt accepts a single address or a list of addresses.
func recipientsAt(path ...string) stringAccessor {
	return func(r Record) (string, bool) {
		v, ok := lookup(r, path...)
		if !ok {
			return "", false
		}
		s, ok := joinText(v)
		if !ok {
			return "", false
		}
		return strings.ReplaceAll(s, "\n\n", ", "), true
	}
}

func firstNoteReasoning(r Record) (string, bool) {
	v, ok := lookup(r, "content_notes")
	if !ok {
		return "", false
	}
	notes, ok := v.([]any)
	if !ok || len(notes) == 0 {
		return "", false
	}
	note, ok := asObject(notes[0])
	if !ok {
		return "", false
	}
	return joinText(note["reasoning"])
}

func joinText(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		if t == "" {
			return "", false
		}
		return t, true
	case []any:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			if s, ok := p.(string); ok && s != "" {
				parts = append(parts, s)
			}
		}
		if len(parts) == 0 {
			return "", false
		}
		return strings.Join(parts, "\n\n"), true
	case []string:
		return joinText(toAnySlice(t))
	}
	return "", false
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func numberAt(path ...string) numberAccessor {
	return func(r Record) (float64, bool) {
		v, ok := lookup(r, path...)
		if !ok {
			return 0, false
		}
		return toNumber(v)
	}
}

func featureNumber(name string) numberAccessor {
	return func(r Record) (float64, bool) {
		v, ok := lookup(r, "features")
		if !ok {
			return 0, false
		}
		m, ok := asObject(v)
		if !ok {
			return 0, false
		}
		n, ok := m[name]
		if !ok {
			return 0, false
		}
		return toNumber(n)
	}
}

func boolAsNumber(path ...string) numberAccessor {
	return func(r Record) (float64, bool) {
		v, ok := lookup(r, path...)
		if !ok {
			return 0, false
		}
		b, ok := v.(bool)
		if !ok {
			return 0, false
		}
		if b {
			return 1, true
		}
		return 0, true
	}
}

// toNumber accepts JSON numbers in any of the forms a decoder or a Go caller
// produces. Strings and booleans are not numbers.
func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// isoLayouts are tried in order. Zone-less forms are read as UTC.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseTime parses an ISO-8601 timestamp and returns it in UTC. Values
// without a zone designator are taken to be UTC.
func ParseTime(s string) (time.Time, error) {
	var err error
	for _, layout := range isoLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}
