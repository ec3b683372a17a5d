package ports

import (
	"context"
	"time"

	"PostsScanner/internal/domain"
)

// PostRepository is the persistence collaborator consumed by the core.
// Schema and query mechanics live behind this interface.
type PostRepository interface {
	// FindPost looks up an existing canonical record by id, then fingerprint.
	FindPost(ctx context.Context, id, fingerprint string) (*domain.CanonicalPost, error)
	SavePost(ctx context.Context, post domain.CanonicalPost) error
	// FetchUnclassified returns up to limit posts with no classification,
	// oldest scraped first, ties broken by id.
	FetchUnclassified(ctx context.Context, limit int) ([]domain.CanonicalPost, error)
	// FetchRatable returns up to limit posts classified historic with
	// confidence >= minConfidence and no rating yet, same ordering.
	FetchRatable(ctx context.Context, minConfidence, limit int) ([]domain.CanonicalPost, error)
	CreateClassification(ctx context.Context, result domain.ClassificationResult) error
	CreateRating(ctx context.Context, rating domain.QualityRating) error
	// ExistingIDs reports which of the given ids are already persisted.
	ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error)
}

// CompletionRequest is the single request contract toward the AI collaborator.
type CompletionRequest struct {
	Model          string
	Temperature    float64
	ResponseSchema map[string]any
	SystemPrompt   string
	UserContent    string
}

// CompletionClient invokes the external AI service. Treated as fallible and
// slow; always called through the retry controller.
type CompletionClient interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// AuditSink receives one summary event per successful batch.
type AuditSink interface {
	EmitBatchAudit(ctx context.Context, audit domain.BatchAudit) error
}

// Page abstracts the live browser session owned by an external collaborator.
// Act operations report timeouts via errors carrying a Timeout() bool method.
type Page interface {
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, value string) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	HTML(ctx context.Context, selector string) (string, error)
}

// Scheduler controls when the lock-guarded jobs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
