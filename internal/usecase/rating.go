package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"PostsScanner/internal/domain"
	"PostsScanner/internal/ports"
	"PostsScanner/internal/ratelimit"
	"PostsScanner/internal/retry"
)

const ratingSystemPrompt = "You rate the quality of historical first-person accounts on a 1-5 scale. " +
	"Consider narrative coherence, emotional depth, historical detail, and uniqueness. " +
	"Answer with a JSON object: " +
	`{"rating": integer 1-5, "factors": {"narrative": 1-5, "emotional": 1-5, "historical": 1-5, "uniqueness": 1-5}}.`

var ratingSchema = map[string]any{
	"rating": "integer [1,5]",
	"factors": map[string]any{
		"narrative":  "integer [1,5]",
		"emotional":  "integer [1,5]",
		"historical": "integer [1,5]",
		"uniqueness": "integer [1,5]",
	},
}

// RatingDeps wires the quality-rating engine.
type RatingDeps struct {
	Repository    ports.PostRepository
	Completion    ports.CompletionClient
	Audit         ports.AuditSink
	Limiter       *ratelimit.Limiter
	Retry         retry.Policy
	Model         string
	Temperature   float64
	BatchSize     int
	MinConfidence int
	Logger        *slog.Logger
}

// Rater scores posts already classified historic with enough confidence.
type Rater struct {
	repository    ports.PostRepository
	completion    ports.CompletionClient
	audit         ports.AuditSink
	limiter       *ratelimit.Limiter
	retryPolicy   retry.Policy
	model         string
	temperature   float64
	batchSize     int
	minConfidence int
	logger        *slog.Logger
	now           func() time.Time
}

// NewRater constructs the quality-rating engine.
func NewRater(deps RatingDeps) *Rater {
	batch := deps.BatchSize
	if batch <= 0 {
		batch = 10
	}
	return &Rater{
		repository:    deps.Repository,
		completion:    deps.Completion,
		audit:         deps.Audit,
		limiter:       deps.Limiter,
		retryPolicy:   deps.Retry,
		model:         deps.Model,
		temperature:   deps.Temperature,
		batchSize:     batch,
		minConfidence: deps.MinConfidence,
		logger:        deps.Logger,
		now:           time.Now,
	}
}

type ratingResponse struct {
	Rating  *int `json:"rating"`
	Factors *struct {
		Narrative  *int `json:"narrative"`
		Emotional  *int `json:"emotional"`
		Historical *int `json:"historical"`
		Uniqueness *int `json:"uniqueness"`
	} `json:"factors"`
}

// Run processes one batch of ratable posts with the same per-item isolation
// and quota semantics as classification.
func (r *Rater) Run(ctx context.Context) error {
	if r.repository == nil || r.completion == nil {
		return nil
	}

	posts, err := r.repository.FetchRatable(ctx, r.minConfidence, r.batchSize)
	if err != nil {
		return fmt.Errorf("fetch ratable: %w", err)
	}
	if len(posts) == 0 {
		return nil
	}

	started := r.now()
	var succeeded, failed int
	for _, post := range posts {
		if r.limiter != nil {
			if d := r.limiter.Allow(quotaNamespace, quotaKey); !d.Allowed {
				r.info("ai quota exhausted, ending batch early",
					"retry_after", d.RetryAfter, "remaining", len(posts)-succeeded-failed)
				break
			}
		}

		rating, err := r.rateOne(ctx, post)
		if err != nil {
			failed++
			r.warn("rating failed", "post_id", post.ID, "error", err)
			continue
		}

		if err := r.repository.CreateRating(ctx, rating); err != nil {
			failed++
			r.warn("persist rating failed", "post_id", post.ID, "error", err)
			continue
		}
		succeeded++
	}

	r.emitAudit(ctx, succeeded+failed, succeeded, failed, r.now().Sub(started))
	return nil
}

func (r *Rater) rateOne(ctx context.Context, post domain.CanonicalPost) (domain.QualityRating, error) {
	var content string
	err := retry.Do(ctx, r.retryPolicy, nil, func(ctx context.Context) error {
		var callErr error
		content, callErr = r.completion.Complete(ctx, ports.CompletionRequest{
			Model:          r.model,
			Temperature:    r.temperature,
			ResponseSchema: ratingSchema,
			SystemPrompt:   ratingSystemPrompt,
			UserContent:    post.Text,
		})
		return callErr
	})
	if err != nil {
		return domain.QualityRating{}, err
	}

	var parsed ratingResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return domain.QualityRating{}, fmt.Errorf("parse rating: %w", err)
	}
	if parsed.Rating == nil || parsed.Factors == nil ||
		parsed.Factors.Narrative == nil || parsed.Factors.Emotional == nil ||
		parsed.Factors.Historical == nil || parsed.Factors.Uniqueness == nil {
		return domain.QualityRating{}, fmt.Errorf("rating missing required fields")
	}

	// no clamp policy for ratings, out of range fails the item
	scores := []int{
		*parsed.Rating,
		*parsed.Factors.Narrative,
		*parsed.Factors.Emotional,
		*parsed.Factors.Historical,
		*parsed.Factors.Uniqueness,
	}
	for _, s := range scores {
		if s < 1 || s > 5 {
			return domain.QualityRating{}, fmt.Errorf("rating value %d out of range [1,5]", s)
		}
	}

	return domain.QualityRating{
		PostID: post.ID,
		Rating: *parsed.Rating,
		Factors: domain.RatingFactors{
			Narrative:  *parsed.Factors.Narrative,
			Emotional:  *parsed.Factors.Emotional,
			Historical: *parsed.Factors.Historical,
			Uniqueness: *parsed.Factors.Uniqueness,
		},
		CreatedAt: r.now().UTC(),
	}, nil
}

func (r *Rater) emitAudit(ctx context.Context, processed, succeeded, failed int, took time.Duration) {
	if r.audit == nil || succeeded == 0 {
		return
	}

	err := r.audit.EmitBatchAudit(ctx, domain.BatchAudit{
		Job:        "rating",
		Processed:  processed,
		Succeeded:  succeeded,
		Failed:     failed,
		Duration:   took,
		FinishedAt: r.now().UTC(),
	})
	if err != nil {
		r.warn("emit audit failed", "job", "rating", "error", err)
	}
}

func (r *Rater) info(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Info(msg, args...)
	}
}

func (r *Rater) warn(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}
