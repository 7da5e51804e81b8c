package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sync"
)

// Memory is a brute-force cosine index for tests and local runs.
type Memory struct {
	mu     sync.RWMutex
	dim    int
	points map[string]Point
}

// NewMemory creates an index. dim of zero accepts any dimension fixed by the
// first upsert.
func NewMemory(dim int) *Memory {
	return &Memory{dim: dim, points: map[string]Point{}}
}

func (m *Memory) Upsert(ctx context.Context, points []Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range points {
		if p.ID == "" {
			return fmt.Errorf("point id is required")
		}
		if m.dim == 0 {
			m.dim = len(p.Vector)
		}
		if len(p.Vector) != m.dim {
			return fmt.Errorf("point %q dimension mismatch: expected=%d got=%d", p.ID, m.dim, len(p.Vector))
		}
	}
	for _, p := range points {
		vec := make([]float32, len(p.Vector))
		copy(vec, p.Vector)
		m.points[p.ID] = Point{ID: p.ID, Vector: vec, Payload: p.Payload}
	}
	return nil
}

func (m *Memory) Search(ctx context.Context, vector []float32, limit int) ([]Match, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector required")
	}
	if limit <= 0 {
		limit = 10
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.dim != 0 && len(vector) != m.dim {
		return nil, fmt.Errorf("query vector dimension mismatch: expected=%d got=%d", m.dim, len(vector))
	}

	matches := make([]Match, 0, len(m.points))
	for _, p := range m.points {
		matches = append(matches, Match{ID: p.ID, Score: cosine(vector, p.Vector), Payload: p.Payload})
	}
	sortMatches(matches)
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Len returns the number of stored points.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.points)
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
