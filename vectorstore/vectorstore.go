package vectorstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Point is a vector with its payload.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// Match is a search hit.
type Match struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// Content returns the stored passage text of the match.
func (m Match) Content() string {
	s, _ := m.Payload["content"].(string)
	return s
}

// Source returns the document the passage came from.
func (m Match) Source() string {
	s, _ := m.Payload["source"].(string)
	return s
}

// Store is a similarity index over the reference corpus.
type Store interface {
	Upsert(ctx context.Context, points []Point) error
	Search(ctx context.Context, vector []float32, limit int) ([]Match, error)
}

var pointIDNamespace = uuid.MustParse("6d1c3b0e-93c4-4f7e-9a0c-52b7e1f0d7aa")

// ChunkPointID is stable for a (source, chunk index) pair, so ingesting the
// same document again overwrites its points.
func ChunkPointID(source string, index int) string {
	return uuid.NewSHA1(pointIDNamespace, []byte(fmt.Sprintf("%s#%d", source, index))).String()
}

// sortMatches orders by descending score with ids breaking ties.
func sortMatches(m []Match) {
	sort.SliceStable(m, func(i, j int) bool {
		if m[i].Score == m[j].Score {
			return m[i].ID < m[j].ID
		}
		return m[i].Score > m[j].Score
	})
}
