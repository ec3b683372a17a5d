package httpapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"PostsScanner/internal/domain"
	"PostsScanner/internal/infrastructure/httpapi"
	"PostsScanner/internal/ports"
	"PostsScanner/internal/ratelimit"
	"PostsScanner/internal/usecase"
)

type memRepo struct {
	mu    sync.Mutex
	posts map[string]domain.CanonicalPost
}

var _ ports.PostRepository = (*memRepo)(nil)

func newMemRepo() *memRepo {
	return &memRepo{posts: map[string]domain.CanonicalPost{}}
}

func (m *memRepo) FindPost(_ context.Context, id, fingerprint string) (*domain.CanonicalPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if post, ok := m.posts[id]; ok {
		return &post, nil
	}
	for _, post := range m.posts {
		if fingerprint != "" && post.Fingerprint == fingerprint {
			return &post, nil
		}
	}
	return nil, nil
}

func (m *memRepo) SavePost(_ context.Context, post domain.CanonicalPost) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts[post.ID] = post
	return nil
}

func (m *memRepo) FetchUnclassified(context.Context, int) ([]domain.CanonicalPost, error) {
	return nil, nil
}

func (m *memRepo) FetchRatable(context.Context, int, int) ([]domain.CanonicalPost, error) {
	return nil, nil
}

func (m *memRepo) CreateClassification(context.Context, domain.ClassificationResult) error {
	return nil
}

func (m *memRepo) CreateRating(context.Context, domain.QualityRating) error { return nil }

func (m *memRepo) ExistingIDs(_ context.Context, ids []string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := map[string]bool{}
	for _, id := range ids {
		if _, ok := m.posts[id]; ok {
			result[id] = true
		}
	}
	return result, nil
}

func newTestServer(limiter *ratelimit.Limiter) (*memRepo, http.Handler) {
	repo := newMemRepo()
	ingestor := usecase.NewIngestor(usecase.IngestDeps{
		Repository:    repo,
		AuthorBaseURL: "https://www.facebook.com",
	})
	return repo, httpapi.NewServer(ingestor, repo, limiter, nil).Router()
}

func TestHealth(t *testing.T) {
	t.Parallel()

	_, handler := newTestServer(nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestIngestEndpoint(t *testing.T) {
	t.Parallel()

	repo, handler := newTestServer(nil)
	body := `{"items":[{"fallback_id":"p1","message":"A memory my father shared about the war."}]}`

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/posts", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool `json:"success"`
		Saved   int  `json:"saved"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Equal(t, 1, resp.Saved)
	require.Contains(t, repo.posts, "p1")
}

func TestIngestMalformedPayload(t *testing.T) {
	t.Parallel()

	_, handler := newTestServer(nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/posts", strings.NewReader(`{"items": [`)))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), `"success":false`)
}

func TestGetPost(t *testing.T) {
	t.Parallel()

	repo, handler := newTestServer(nil)
	repo.posts["p7"] = domain.CanonicalPost{
		ID:        "p7",
		Text:      "An old letter from 1943.",
		ScrapedAt: time.Now().UTC(),
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/posts/p7", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "An old letter from 1943.")

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/posts/missing", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimitRefusal(t *testing.T) {
	t.Parallel()

	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), map[string]ratelimit.Rule{
		"http": {Window: time.Minute, Max: 2},
	}, nil)
	_, handler := newTestServer(limiter)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/posts/none", nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/posts/none", nil))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
	require.Contains(t, rec.Body.String(), `"success":false`)
}

func TestRateLimitAllowListBypass(t *testing.T) {
	t.Parallel()

	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), map[string]ratelimit.Rule{
		"http": {Window: time.Minute, Max: 1},
	}, []string{"192.0.2.10"})
	_, handler := newTestServer(limiter)

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/posts/none", nil)
		req.Header.Set("X-Real-IP", "192.0.2.10")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNotFound, rec.Code)
	}
}

func TestHealthBypassesLimiter(t *testing.T) {
	t.Parallel()

	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), map[string]ratelimit.Rule{
		"http": {Window: time.Minute, Max: 1},
	}, nil)
	_, handler := newTestServer(limiter)

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}
