// Package storage persists canonical posts and their AI attachments in
// Postgres.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"PostsScanner/internal/domain"
	"PostsScanner/internal/ports"
)

// PostgresRepository implements ports.PostRepository over database/sql.
type PostgresRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.PostRepository = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// FindPost looks up a canonical record by id first, fingerprint second.
// A miss returns (nil, nil).
func (r *PostgresRepository) FindPost(ctx context.Context, id, fingerprint string) (*domain.CanonicalPost, error) {
	if r.db == nil {
		return nil, nil
	}

	if id != "" {
		post, err := r.findOne(ctx, sq.Eq{"id": id})
		if err != nil || post != nil {
			return post, err
		}
	}
	if fingerprint == "" {
		return nil, nil
	}
	return r.findOne(ctx, sq.Eq{"fingerprint": fingerprint})
}

func (r *PostgresRepository) findOne(ctx context.Context, where sq.Eq) (*domain.CanonicalPost, error) {
	query, args, err := r.builder.
		Select("id", "fingerprint", "body", "author_link", "scraped_at").
		From("posts").
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find query: %w", err)
	}

	var post domain.CanonicalPost
	row := r.db.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&post.ID, &post.Fingerprint, &post.Text, &post.AuthorLink, &post.ScrapedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan post: %w", err)
	}

	return &post, nil
}

// SavePost inserts the canonical record; an existing id is left untouched.
func (r *PostgresRepository) SavePost(ctx context.Context, post domain.CanonicalPost) error {
	if r.db == nil {
		return nil
	}

	query, args, err := r.builder.
		Insert("posts").
		Columns("id", "fingerprint", "body", "author_link", "scraped_at").
		Values(post.ID, post.Fingerprint, post.Text, post.AuthorLink, post.ScrapedAt).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

// FetchUnclassified returns up to limit posts with no classification row,
// oldest scraped first, ties broken by id.
func (r *PostgresRepository) FetchUnclassified(ctx context.Context, limit int) ([]domain.CanonicalPost, error) {
	if r.db == nil || limit <= 0 {
		return nil, nil
	}

	query, args, err := r.builder.
		Select("p.id", "p.fingerprint", "p.body", "p.author_link", "p.scraped_at").
		From("posts p").
		LeftJoin("classifications c ON c.post_id = p.id").
		Where(sq.Eq{"c.post_id": nil}).
		OrderBy("p.scraped_at ASC", "p.id ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build unclassified query: %w", err)
	}

	return r.queryPosts(ctx, query, args...)
}

// FetchRatable returns up to limit posts classified historic with confidence
// at or above minConfidence and no rating yet, same ordering.
func (r *PostgresRepository) FetchRatable(ctx context.Context, minConfidence, limit int) ([]domain.CanonicalPost, error) {
	if r.db == nil || limit <= 0 {
		return nil, nil
	}

	query, args, err := r.builder.
		Select("p.id", "p.fingerprint", "p.body", "p.author_link", "p.scraped_at").
		From("posts p").
		Join("classifications c ON c.post_id = p.id").
		LeftJoin("ratings rt ON rt.post_id = p.id").
		Where(sq.And{
			sq.Eq{"c.is_historic": true},
			sq.GtOrEq{"c.confidence": minConfidence},
			sq.Eq{"rt.post_id": nil},
		}).
		OrderBy("p.scraped_at ASC", "p.id ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ratable query: %w", err)
	}

	return r.queryPosts(ctx, query, args...)
}

// CreateClassification records the verdict; a second classification for the
// same post is rejected by the primary key.
func (r *PostgresRepository) CreateClassification(ctx context.Context, result domain.ClassificationResult) error {
	if r.db == nil {
		return nil
	}

	query, args, err := r.builder.
		Insert("classifications").
		Columns("post_id", "is_historic", "confidence", "reason", "created_at").
		Values(result.PostID, result.IsHistoric, result.Confidence, result.Reason, result.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build classification insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert classification: %w", err)
	}
	return nil
}

// CreateRating records the quality rating with its factor breakdown.
func (r *PostgresRepository) CreateRating(ctx context.Context, rating domain.QualityRating) error {
	if r.db == nil {
		return nil
	}

	factors, err := json.Marshal(rating.Factors)
	if err != nil {
		return fmt.Errorf("marshal factors: %w", err)
	}

	query, args, err := r.builder.
		Insert("ratings").
		Columns("post_id", "rating", "factors", "created_at").
		Values(rating.PostID, rating.Rating, factors, rating.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build rating insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert rating: %w", err)
	}
	return nil
}

// ExistingIDs returns the subset of ids already present in storage. Used to
// skip normalization work for bulk payloads.
func (r *PostgresRepository) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	if r.db == nil || len(ids) == 0 {
		return map[string]bool{}, nil
	}

	query := `SELECT id FROM posts WHERE id = ANY($1)`

	rows, err := r.db.QueryContext(ctx, query, pq.StringArray(ids))
	if err != nil {
		return nil, fmt.Errorf("query existing ids: %w", err)
	}
	defer rows.Close()

	result := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		result[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) queryPosts(ctx context.Context, query string, args ...any) ([]domain.CanonicalPost, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	var posts []domain.CanonicalPost
	for rows.Next() {
		var post domain.CanonicalPost
		if err := rows.Scan(&post.ID, &post.Fingerprint, &post.Text, &post.AuthorLink, &post.ScrapedAt); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return posts, nil
}
