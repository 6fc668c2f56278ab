// Package slack announces review verdicts to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/triagedesk/internal/review"
)

const (
	maxNotesLen = 2000
	httpTimeout = 10 * time.Second
)

// Notifier posts resolutions to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// New creates a new Slack notifier. If webhookURL is empty, notifications are
// a no-op.
func New(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout:   httpTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// NotifyResolution implements review.Notifier.
func (n *Notifier) NotifyResolution(ctx context.Context, item *review.Item, res *review.Resolution) error {
	if n.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(buildMessage(item, res))
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func buildMessage(item *review.Item, res *review.Resolution) map[string]any {
	blocks := []map[string]any{
		headerBlock(item, res),
		fieldsBlock(item, res),
	}
	if res.Notes != "" {
		blocks = append(blocks, notesBlock(res.Notes))
	}
	blocks = append(blocks, map[string]any{"type": "divider"}, contextBlock(res))
	return map[string]any{"blocks": blocks}
}

func headerBlock(item *review.Item, res *review.Resolution) map[string]any {
	subject := item.Subject
	if subject == "" {
		subject = item.ID
	}
	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": truncate(fmt.Sprintf("%s %s: %s", verdictEmoji(res.Verdict), verdictTitle(res.Verdict), subject), 150),
		},
	}
}

func fieldsBlock(item *review.Item, res *review.Resolution) map[string]any {
	actor := res.Actor
	if actor == "" {
		actor = "_unknown_"
	}
	fields := []map[string]any{
		{"type": "mrkdwn", "text": fmt.Sprintf("*Reviewer:* %s", actor)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Sender:* %s", orDash(item.FromAddr))},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Machine decision:* %s", orDash(item.Decision))},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Log updated:* %s", yesNo(res.LogUpdated))},
	}
	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func notesBlock(notes string) map[string]any {
	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Notes*\n\n%s", truncate(notes, maxNotesLen)),
		},
	}
}

func contextBlock(res *review.Resolution) map[string]any {
	return map[string]any{
		"type": "context",
		"elements": []map[string]any{
			{
				"type": "mrkdwn",
				"text": fmt.Sprintf("triagedesk • queue item %s • %s", res.ID, res.ResolvedAt.UTC().Format("2006-01-02 15:04 UTC")),
			},
		},
	}
}

func verdictTitle(v review.Verdict) string {
	if v == review.VerdictAllow {
		return "Allowed"
	}
	return "Blocked"
}

func verdictEmoji(v review.Verdict) string {
	if v == review.VerdictAllow {
		return "\U0001f7e2" // green circle
	}
	return "\U0001f534" // red circle
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
