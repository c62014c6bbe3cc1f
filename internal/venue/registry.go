package venue

import (
	"fmt"
	"sort"
	"sync"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// Registry holds the configured price sources keyed by venue id.
type Registry struct {
	sources map[string]domain.PriceSource
	mu      sync.RWMutex
}

// NewRegistry returns an empty registry. Call Register to add sources.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]domain.PriceSource)}
}

// Register adds a source under its venue id, replacing any previous one.
func (r *Registry) Register(s domain.PriceSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[s.Venue().ID] = s
}

// Get returns the source for a venue id.
func (r *Registry) Get(id string) (domain.PriceSource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[id]
	if !ok {
		return nil, fmt.Errorf("venue %q: %w", id, domain.ErrNotFound)
	}
	return s, nil
}

// Sources returns every registered source, sorted by venue id.
func (r *Registry) Sources() []domain.PriceSource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.PriceSource, 0, len(r.sources))
	for _, s := range r.sources {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Venue().ID < out[j].Venue().ID })
	return out
}

// Venues returns the metadata of every registered venue, sorted by id.
func (r *Registry) Venues() []domain.Venue {
	sources := r.Sources()
	out := make([]domain.Venue, len(sources))
	for i, s := range sources {
		out[i] = s.Venue()
	}
	return out
}
