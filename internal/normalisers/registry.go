package normalisers

import (
	"context"
	"fmt"
	"mime"
	"sort"
	"strings"
	"sync"

	"github.com/veritas-labs/lexquery/internal/core/domain"
	"github.com/veritas-labs/lexquery/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.NormaliserRegistry = (*Registry)(nil)

// fallbackPriorityCeiling separates fallback normalisers (priority below
// this) from format-specific ones.
const fallbackPriorityCeiling = 10

// Registry dispatches raw documents to the best matching normaliser.
// Format-specific normalisers win over fallbacks; among candidates for the
// same MIME type the highest priority is chosen.
type Registry struct {
	mu     sync.RWMutex
	byMIME map[string][]driven.Normaliser
	all    []driven.Normaliser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byMIME: make(map[string][]driven.Normaliser),
	}
}

// Register adds a normaliser. Registration order does not matter; dispatch
// is decided by MIME match and priority.
func (r *Registry) Register(n driven.Normaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.all = append(r.all, n)
	for _, mt := range n.SupportedMIMETypes() {
		key := canonicalMIME(mt)
		r.byMIME[key] = append(r.byMIME[key], n)
		sort.SliceStable(r.byMIME[key], func(i, j int) bool {
			return r.byMIME[key][i].Priority() > r.byMIME[key][j].Priority()
		})
	}
}

// Normalise transforms a raw document using the best matching normaliser.
// Unmatched text/* types go to the fallback normaliser; anything else is
// rejected with ErrUnsupportedType.
func (r *Registry) Normalise(ctx context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	n, err := r.pick(raw.MIMEType)
	if err != nil {
		return nil, err
	}
	return n.Normalise(ctx, raw)
}

// SupportedMIMETypes returns all MIME types that can be normalised, sorted.
func (r *Registry) SupportedMIMETypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.byMIME))
	for mt := range r.byMIME {
		types = append(types, mt)
	}
	sort.Strings(types)
	return types
}

func (r *Registry) pick(mimeType string) (driven.Normaliser, error) {
	key := canonicalMIME(mimeType)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if candidates := r.byMIME[key]; len(candidates) > 0 {
		return candidates[0], nil
	}

	if strings.HasPrefix(key, "text/") {
		if fb := r.fallback(); fb != nil {
			return fb, nil
		}
	}

	return nil, fmt.Errorf("%w: no normaliser for MIME type %q", domain.ErrUnsupportedType, mimeType)
}

// fallback returns the highest-priority fallback normaliser, or nil.
// Callers must hold the read lock.
func (r *Registry) fallback() driven.Normaliser {
	var best driven.Normaliser
	for _, n := range r.all {
		if n.Priority() >= fallbackPriorityCeiling {
			continue
		}
		if best == nil || n.Priority() > best.Priority() {
			best = n
		}
	}
	return best
}

// canonicalMIME lowercases a MIME type and drops parameters such as charset.
func canonicalMIME(mimeType string) string {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mt, _, _ = strings.Cut(mimeType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}
