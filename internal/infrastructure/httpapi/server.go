// Package httpapi exposes the ingest and read-back endpoints.
package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"PostsScanner/internal/infrastructure/source"
	"PostsScanner/internal/ports"
	"PostsScanner/internal/ratelimit"
	"PostsScanner/internal/usecase"
)

const httpNamespace = "http"

// Server handles the inbound API surface.
type Server struct {
	ingestor   *usecase.Ingestor
	repository ports.PostRepository
	limiter    *ratelimit.Limiter
	logger     *slog.Logger
}

// NewServer wires handlers over the ingestion pipeline.
func NewServer(ingestor *usecase.Ingestor, repo ports.PostRepository, limiter *ratelimit.Limiter, log *slog.Logger) *Server {
	return &Server{
		ingestor:   ingestor,
		repository: repo,
		limiter:    limiter,
		logger:     log,
	}
}

// Router builds the chi router with limiter protection on the API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Group(func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Post("/api/posts", s.handleIngest)
		r.Get("/api/posts/{id}", s.handleGetPost)
	})

	return r
}

// HTTPServer wraps the router with the teacher-grade timeouts.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
}

type statusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type ingestResponse struct {
	Success  bool `json:"success"`
	Received int  `json:"received"`
	Saved    int  `json:"saved"`
	Skipped  int  `json:"skipped"`
}

// rateLimit refuses callers past the fixed window with 429 and retry
// guidance. The caller key is the RealIP-resolved remote address.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		key := callerKey(r)
		decision := s.limiter.Allow(httpNamespace, key)
		if !decision.Allowed {
			retryAfter := int(decision.RetryAfter / time.Second)
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeJSON(w, http.StatusTooManyRequests, statusResponse{
				Success: false,
				Message: fmt.Sprintf("rate limit exceeded, retry in %ds", retryAfter),
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleIngest accepts one batch-API payload and runs it through the
// normalization pipeline.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	items, err := source.DecodeBatch(http.MaxBytesReader(w, r.Body, 4<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, statusResponse{Success: false, Message: "malformed payload"})
		return
	}

	stats, err := s.ingestor.IngestBatch(r.Context(), items)
	if err != nil {
		s.warn("ingest request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, statusResponse{Success: false, Message: "ingestion failed"})
		return
	}

	writeJSON(w, http.StatusOK, ingestResponse{
		Success:  true,
		Received: stats.Received,
		Saved:    stats.Saved,
		Skipped:  stats.Skipped,
	})
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, statusResponse{Success: false, Message: "missing post id"})
		return
	}

	post, err := s.repository.FindPost(r.Context(), id, "")
	if err != nil {
		s.warn("post lookup failed", "post_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, statusResponse{Success: false, Message: "lookup failed"})
		return
	}
	if post == nil {
		writeJSON(w, http.StatusNotFound, statusResponse{Success: false, Message: "post not found"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":          post.ID,
		"fingerprint": post.Fingerprint,
		"text":        post.Text,
		"author_link": post.AuthorLink,
		"scraped_at":  post.ScrapedAt,
	})
}

// callerKey derives the limiter key from the request. RealIP middleware has
// already folded the standard headers into RemoteAddr, but raw header
// fallbacks cover handlers mounted without it.
func callerKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first, _, ok := strings.Cut(xff, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(xff)
	}
	if rip := r.Header.Get("X-Real-IP"); rip != "" {
		return strings.TrimSpace(rip)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
