// Package source defines the pluggable ingestion strategies and their
// registry.
package source

import (
	"context"
	"fmt"

	"PostsScanner/internal/domain"
)

// Source captures a single ingestion strategy (live DOM scrape, batch API
// payload, etc.). Collect returns raw items tagged with the strategy's
// origin.
type Source interface {
	Name() string
	Tag() domain.SourceTag
	Collect(ctx context.Context) ([]domain.RawItem, error)
}

// Registry keeps a mapping from source names to their implementations.
type Registry struct {
	sources map[string]Source
	order   []string
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: map[string]Source{}}
}

// Register adds or replaces a source implementation.
func (r *Registry) Register(src Source) {
	if r.sources == nil {
		r.sources = map[string]Source{}
	}
	if _, ok := r.sources[src.Name()]; !ok {
		r.order = append(r.order, src.Name())
	}
	r.sources[src.Name()] = src
}

// Resolve returns a source by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Source, error) {
	if src, ok := r.sources[name]; ok {
		return src, nil
	}
	return nil, fmt.Errorf("source %s is not registered", name)
}

// All returns every registered source in registration order.
func (r *Registry) All() []Source {
	out := make([]Source, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.sources[name])
	}
	return out
}
