// Package audit delivers batch summaries to an operator webhook.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"PostsScanner/internal/domain"
	"PostsScanner/internal/ports"
)

// WebhookSink posts one JSON summary per finished batch.
type WebhookSink struct {
	url    string
	client *http.Client
}

var _ ports.AuditSink = (*WebhookSink)(nil)

// NewWebhookSink registers the target URL. An empty URL yields a sink that
// silently drops events.
func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// EmitBatchAudit posts the summary. Delivery failure is reported to the
// caller; the batch itself has already committed.
func (w *WebhookSink) EmitBatchAudit(ctx context.Context, audit domain.BatchAudit) error {
	if w == nil || w.url == "" {
		return nil
	}

	body, err := json.Marshal(audit)
	if err != nil {
		return fmt.Errorf("marshal audit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("audit webhook error: %s", resp.Status)
	}

	return nil
}
