package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"PostsScanner/internal/domain"
	"PostsScanner/internal/ports"
	"PostsScanner/internal/ratelimit"
	"PostsScanner/internal/retry"
)

const (
	quotaNamespace = "aiQuota"
	quotaKey       = "completion"

	classifySystemPrompt = "You judge social media posts. Decide whether the post is a first-person " +
		"or family historical account (memoir, wartime memory, old family story) rather than news, " +
		"opinion, or promotion. Answer with a JSON object: " +
		`{"is_historic": bool, "confidence": integer 0-100, "reason": string}.`
)

var classifySchema = map[string]any{
	"is_historic": "bool",
	"confidence":  "integer [0,100]",
	"reason":      "string",
}

// ClassifyDeps wires the classification engine.
type ClassifyDeps struct {
	Repository  ports.PostRepository
	Completion  ports.CompletionClient
	Audit       ports.AuditSink
	Limiter     *ratelimit.Limiter
	Retry       retry.Policy
	Model       string
	Temperature float64
	BatchSize   int
	Logger      *slog.Logger
}

// Classifier runs bounded batches of posts through the AI verdict call.
type Classifier struct {
	repository  ports.PostRepository
	completion  ports.CompletionClient
	audit       ports.AuditSink
	limiter     *ratelimit.Limiter
	retryPolicy retry.Policy
	model       string
	temperature float64
	batchSize   int
	logger      *slog.Logger
	now         func() time.Time
}

// NewClassifier constructs the classification engine.
func NewClassifier(deps ClassifyDeps) *Classifier {
	batch := deps.BatchSize
	if batch <= 0 {
		batch = 20
	}
	return &Classifier{
		repository:  deps.Repository,
		completion:  deps.Completion,
		audit:       deps.Audit,
		limiter:     deps.Limiter,
		retryPolicy: deps.Retry,
		model:       deps.Model,
		temperature: deps.Temperature,
		batchSize:   batch,
		logger:      deps.Logger,
		now:         time.Now,
	}
}

type classifyResponse struct {
	IsHistoric *bool   `json:"is_historic"`
	Confidence any     `json:"confidence"`
	Reason     *string `json:"reason"`
}

// Run processes one batch of unclassified posts. A single item's failure
// never aborts the batch; a quota refusal ends it early without error.
func (c *Classifier) Run(ctx context.Context) error {
	if c.repository == nil || c.completion == nil {
		return nil
	}

	posts, err := c.repository.FetchUnclassified(ctx, c.batchSize)
	if err != nil {
		return fmt.Errorf("fetch unclassified: %w", err)
	}
	if len(posts) == 0 {
		return nil
	}

	started := c.now()
	var succeeded, failed int
	for _, post := range posts {
		if c.limiter != nil {
			if d := c.limiter.Allow(quotaNamespace, quotaKey); !d.Allowed {
				c.info("ai quota exhausted, ending batch early",
					"retry_after", d.RetryAfter, "remaining", len(posts)-succeeded-failed)
				break
			}
		}

		result, err := c.classifyOne(ctx, post)
		if err != nil {
			failed++
			c.warn("classification failed", "post_id", post.ID, "error", err)
			continue
		}

		if err := c.repository.CreateClassification(ctx, result); err != nil {
			failed++
			c.warn("persist classification failed", "post_id", post.ID, "error", err)
			continue
		}
		succeeded++
	}

	c.emitAudit(ctx, "classify", succeeded+failed, succeeded, failed, c.now().Sub(started))
	return nil
}

func (c *Classifier) classifyOne(ctx context.Context, post domain.CanonicalPost) (domain.ClassificationResult, error) {
	var content string
	err := retry.Do(ctx, c.retryPolicy, nil, func(ctx context.Context) error {
		var callErr error
		content, callErr = c.completion.Complete(ctx, ports.CompletionRequest{
			Model:          c.model,
			Temperature:    c.temperature,
			ResponseSchema: classifySchema,
			SystemPrompt:   classifySystemPrompt,
			UserContent:    post.Text,
		})
		return callErr
	})
	if err != nil {
		return domain.ClassificationResult{}, err
	}

	var parsed classifyResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return domain.ClassificationResult{}, fmt.Errorf("parse verdict: %w", err)
	}
	if parsed.IsHistoric == nil || parsed.Reason == nil {
		return domain.ClassificationResult{}, fmt.Errorf("verdict missing required fields")
	}

	return domain.ClassificationResult{
		PostID:     post.ID,
		IsHistoric: *parsed.IsHistoric,
		Confidence: ClampConfidence(parsed.Confidence),
		Reason:     *parsed.Reason,
		CreatedAt:  c.now().UTC(),
	}, nil
}

func (c *Classifier) emitAudit(ctx context.Context, job string, processed, succeeded, failed int, took time.Duration) {
	if c.audit == nil || succeeded == 0 {
		return
	}

	err := c.audit.EmitBatchAudit(ctx, domain.BatchAudit{
		Job:        job,
		Processed:  processed,
		Succeeded:  succeeded,
		Failed:     failed,
		Duration:   took,
		FinishedAt: c.now().UTC(),
	})
	if err != nil {
		c.warn("emit audit failed", "job", job, "error", err)
	}
}

// ClampConfidence coerces an arbitrary decoded JSON value into the [0,100]
// integer range. Non-numeric values and NaN collapse to 0; fractional values
// round half away from zero.
func ClampConfidence(v any) int {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0
		}
		f = parsed
	case int:
		f = float64(t)
	default:
		return 0
	}

	if math.IsNaN(f) {
		return 0
	}
	if f < 0 {
		return 0
	}
	if f > 100 {
		return 100
	}
	return int(math.Round(f))
}

func (c *Classifier) info(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

func (c *Classifier) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
