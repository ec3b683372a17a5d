package usecase_test

import (
	"context"
	"errors"
	"sync"

	"PostsScanner/internal/domain"
	"PostsScanner/internal/ports"
)

// stubRepository is an in-memory ports.PostRepository for engine tests.
type stubRepository struct {
	mu              sync.Mutex
	posts           map[string]domain.CanonicalPost
	classifications map[string]domain.ClassificationResult
	ratings         map[string]domain.QualityRating
	unclassified    []domain.CanonicalPost
	ratable         []domain.CanonicalPost
	saveErr         error
}

var _ ports.PostRepository = (*stubRepository)(nil)

func newStubRepository() *stubRepository {
	return &stubRepository{
		posts:           map[string]domain.CanonicalPost{},
		classifications: map[string]domain.ClassificationResult{},
		ratings:         map[string]domain.QualityRating{},
	}
}

func (s *stubRepository) FindPost(_ context.Context, id, fingerprint string) (*domain.CanonicalPost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if post, ok := s.posts[id]; ok {
		return &post, nil
	}
	for _, post := range s.posts {
		if post.Fingerprint == fingerprint {
			return &post, nil
		}
	}
	return nil, nil
}

func (s *stubRepository) SavePost(_ context.Context, post domain.CanonicalPost) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts[post.ID] = post
	return nil
}

func (s *stubRepository) FetchUnclassified(_ context.Context, limit int) ([]domain.CanonicalPost, error) {
	if limit < len(s.unclassified) {
		return s.unclassified[:limit], nil
	}
	return s.unclassified, nil
}

func (s *stubRepository) FetchRatable(_ context.Context, _, limit int) ([]domain.CanonicalPost, error) {
	if limit < len(s.ratable) {
		return s.ratable[:limit], nil
	}
	return s.ratable, nil
}

func (s *stubRepository) CreateClassification(_ context.Context, result domain.ClassificationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.classifications[result.PostID]; exists {
		return errors.New("classification already exists")
	}
	s.classifications[result.PostID] = result
	return nil
}

func (s *stubRepository) CreateRating(_ context.Context, rating domain.QualityRating) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.ratings[rating.PostID]; exists {
		return errors.New("rating already exists")
	}
	s.ratings[rating.PostID] = rating
	return nil
}

func (s *stubRepository) ExistingIDs(_ context.Context, ids []string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := map[string]bool{}
	for _, id := range ids {
		if _, ok := s.posts[id]; ok {
			result[id] = true
		}
	}
	return result, nil
}

// stubCompletion replays canned responses per call, cycling on exhaustion.
type stubCompletion struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     int
}

var _ ports.CompletionClient = (*stubCompletion)(nil)

func (s *stubCompletion) Complete(context.Context, ports.CompletionRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if len(s.responses) == 0 {
		return "", errors.New("no canned response")
	}
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	return s.responses[i], nil
}

// stubAudit records emitted batch summaries.
type stubAudit struct {
	mu     sync.Mutex
	events []domain.BatchAudit
}

var _ ports.AuditSink = (*stubAudit)(nil)

func (s *stubAudit) EmitBatchAudit(_ context.Context, audit domain.BatchAudit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, audit)
	return nil
}

func (s *stubAudit) all() []domain.BatchAudit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.BatchAudit(nil), s.events...)
}
