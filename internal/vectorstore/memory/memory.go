package memory

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"sync"

	"topicrag/internal/domain"
)

// Index is an in-memory vector index using brute-force cosine similarity.
// Records live in per-namespace buckets; upserting an existing id replaces it.
type Index struct {
	mu        sync.RWMutex
	dimension int
	buckets   map[string]*bucket
}

type bucket struct {
	ids     []string
	vectors [][]float32
	meta    []map[string]any
	pos     map[string]int
}

// NewIndex creates an index. A dimension of 0 is fixed by the first upsert.
func NewIndex(dimension int) *Index {
	return &Index{dimension: dimension, buckets: make(map[string]*bucket)}
}

func (s *Index) Upsert(_ context.Context, namespace string, records []domain.VectorRecord) error {
	if namespace == "" {
		return errors.New("namespace is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if s.dimension == 0 {
			s.dimension = len(r.Values)
		}
		if len(r.Values) != s.dimension {
			return fmt.Errorf("vector %s: dimension %d, index expects %d", r.ID, len(r.Values), s.dimension)
		}
	}
	b, ok := s.buckets[namespace]
	if !ok {
		b = &bucket{pos: make(map[string]int)}
		s.buckets[namespace] = b
	}
	for _, r := range records {
		vec := append([]float32(nil), r.Values...)
		md := maps.Clone(r.Metadata)
		if i, ok := b.pos[r.ID]; ok {
			b.vectors[i], b.meta[i] = vec, md
			continue
		}
		b.pos[r.ID] = len(b.ids)
		b.ids = append(b.ids, r.ID)
		b.vectors = append(b.vectors, vec)
		b.meta = append(b.meta, md)
	}
	return nil
}

func (s *Index) Query(_ context.Context, namespace string, vector []float32, topK int, filter map[string]any) ([]domain.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 {
		topK = 5
	}
	b, ok := s.buckets[namespace]
	if !ok {
		return []domain.Match{}, nil
	}
	var cand []int
	for i := range b.ids {
		if matchesFilter(b.meta[i], filter) {
			cand = append(cand, i)
		}
	}
	scores := make([]float64, len(cand))
	for k, i := range cand {
		scores[k] = cosine(b.vectors[i], vector)
	}
	idxs := argsortDesc(scores)
	if topK > len(idxs) {
		topK = len(idxs)
	}
	results := make([]domain.Match, 0, topK)
	for _, k := range idxs[:topK] {
		i := cand[k]
		results = append(results, domain.Match{
			ID:       b.ids[i],
			Score:    scores[k],
			Metadata: maps.Clone(b.meta[i]),
		})
	}
	return results, nil
}

func (s *Index) Sample(_ context.Context, namespace string, limit int) ([]domain.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.buckets[namespace]
	if !ok {
		return nil, nil
	}
	n := min(limit, len(b.ids))
	out := make([]domain.Match, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.Match{ID: b.ids[i], Metadata: maps.Clone(b.meta[i])})
	}
	return out, nil
}

func (s *Index) DeleteNamespace(_ context.Context, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets, namespace)
	return nil
}

func (s *Index) DescribeStats(context.Context) (domain.IndexStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := domain.IndexStats{
		Dimension:  s.dimension,
		Namespaces: make(map[string]domain.NamespaceStats, len(s.buckets)),
	}
	for ns, b := range s.buckets {
		stats.Namespaces[ns] = domain.NamespaceStats{VectorCount: len(b.ids)}
		stats.TotalVectors += len(b.ids)
	}
	return stats, nil
}

// matchesFilter reports whether md has every key of filter with an equal value.
func matchesFilter(md, filter map[string]any) bool {
	for k, want := range filter {
		got, ok := md[k]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func cosine(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func argsortDesc(vals []float64) []int {
	idxs := make([]int, len(vals))
	for i := range vals {
		idxs[i] = i
	}
	quicksort(idxs, vals, 0, len(idxs)-1)
	return idxs
}

func quicksort(idxs []int, vals []float64, lo, hi int) {
	if lo >= hi {
		return
	}
	i, j := lo, hi
	pivot := vals[idxs[(lo+hi)/2]]
	for i <= j {
		for vals[idxs[i]] > pivot { // desc order
			i++
		}
		for vals[idxs[j]] < pivot {
			j--
		}
		if i <= j {
			idxs[i], idxs[j] = idxs[j], idxs[i]
			i++
			j--
		}
	}
	if lo < j {
		quicksort(idxs, vals, lo, j)
	}
	if i < hi {
		quicksort(idxs, vals, i, hi)
	}
}
