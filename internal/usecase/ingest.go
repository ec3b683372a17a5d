package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"PostsScanner/internal/domain"
	"PostsScanner/internal/normalize"
	"PostsScanner/internal/ports"
)

// IngestDeps wires the normalization stage.
type IngestDeps struct {
	Repository    ports.PostRepository
	AuthorBaseURL string
	Logger        *slog.Logger
}

// IngestStats summarizes one ingestion pass.
type IngestStats struct {
	Received int
	Saved    int
	Skipped  int
}

// Ingestor reduces raw source items to canonical, deduplicated records.
type Ingestor struct {
	repository    ports.PostRepository
	authorBaseURL string
	logger        *slog.Logger
	now           func() time.Time
}

// NewIngestor constructs the normalization stage.
func NewIngestor(deps IngestDeps) *Ingestor {
	return &Ingestor{
		repository:    deps.Repository,
		authorBaseURL: deps.AuthorBaseURL,
		logger:        deps.Logger,
		now:           time.Now,
	}
}

// IngestBatch normalizes every raw item and persists the ones not already
// known. Items that clean down to nothing are skipped. A repository failure
// on one item does not abort the batch.
func (in *Ingestor) IngestBatch(ctx context.Context, items []domain.RawItem) (IngestStats, error) {
	stats := IngestStats{Received: len(items)}
	if in.repository == nil || len(items) == 0 {
		stats.Skipped = len(items)
		return stats, nil
	}

	posts := make([]domain.CanonicalPost, 0, len(items))
	for _, item := range items {
		post, ok := in.normalize(item)
		if !ok {
			stats.Skipped++
			continue
		}
		posts = append(posts, post)
	}

	ids := make([]string, len(posts))
	for i, post := range posts {
		ids[i] = post.ID
	}

	known, err := in.repository.ExistingIDs(ctx, ids)
	if err != nil {
		return stats, fmt.Errorf("load existing ids: %w", err)
	}

	seen := map[string]struct{}{}
	for _, post := range posts {
		if _, dup := seen[post.ID]; dup {
			stats.Skipped++
			continue
		}
		seen[post.ID] = struct{}{}

		if known[post.ID] {
			stats.Skipped++
			continue
		}

		existing, err := in.repository.FindPost(ctx, post.ID, post.Fingerprint)
		if err != nil {
			in.warn("dedup lookup failed", "post_id", post.ID, "error", err)
			stats.Skipped++
			continue
		}
		if existing != nil {
			stats.Skipped++
			continue
		}

		if err := in.repository.SavePost(ctx, post); err != nil {
			in.warn("save post failed", "post_id", post.ID, "error", err)
			stats.Skipped++
			continue
		}
		stats.Saved++
	}

	in.debug("ingest batch done", "received", stats.Received, "saved", stats.Saved, "skipped", stats.Skipped)
	return stats, nil
}

// normalize converges one source-tagged item onto the canonical record.
func (in *Ingestor) normalize(item domain.RawItem) (domain.CanonicalPost, bool) {
	text := normalize.CleanText(item.Text)
	if text == "" {
		return domain.CanonicalPost{}, false
	}

	authorLink := ""
	if item.AuthorHref != "" {
		if canonical, ok := normalize.CanonicalAuthorLink(item.AuthorHref, in.authorBaseURL); ok {
			authorLink = canonical
		}
	}

	// a permalink-embedded id outranks the DOM element id, which is not
	// stable across sessions
	fallbackID := item.FallbackID
	if id, ok := normalize.PermalinkID(item.PermalinkURL); ok {
		fallbackID = id
	}

	return domain.CanonicalPost{
		ID:          normalize.ResolvePostID(item.StructuredID, fallbackID, text, authorLink),
		Fingerprint: normalize.Fingerprint(text, authorLink),
		Text:        text,
		AuthorLink:  authorLink,
		ScrapedAt:   in.now().UTC(),
	}, true
}

func (in *Ingestor) debug(msg string, args ...any) {
	if in.logger != nil {
		in.logger.Debug(msg, args...)
	}
}

func (in *Ingestor) warn(msg string, args ...any) {
	if in.logger != nil {
		in.logger.Warn(msg, args...)
	}
}
