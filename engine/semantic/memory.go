package semantic

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"sync"

	"github.com/humanoid-academy/coursebot/engine/domain"
)

// Memory is an in-process Index using brute-force cosine similarity.
// It backs ingestion dry runs and tests.
type Memory struct {
	mu      sync.RWMutex
	name    string
	dims    int
	created bool
	seq     int
	points  map[string]memPoint
}

type memPoint struct {
	seq     int
	vector  []float32
	payload map[string]any
}

var _ Index = (*Memory)(nil)

// NewMemory returns an empty index; call EnsureCollection before use.
func NewMemory(name string) *Memory {
	return &Memory{name: name, points: make(map[string]memPoint)}
}

func (m *Memory) EnsureCollection(_ context.Context, dims int) error {
	if dims <= 0 {
		return fmt.Errorf("semantic: memory: invalid dimension %d", dims)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.created {
		if m.dims != dims {
			return domain.DimensionError("semantic: collection "+m.name, m.dims, dims)
		}
		return nil
	}
	m.created, m.dims = true, dims
	return nil
}

func (m *Memory) DeleteCollection(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created, m.dims = false, 0
	clear(m.points)
	return nil
}

func (m *Memory) Upsert(_ context.Context, points []Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.created {
		return fmt.Errorf("semantic: upsert %s: %w", m.name, domain.ErrCollectionMissing)
	}
	for _, p := range points {
		if len(p.Vector) != m.dims {
			return domain.DimensionError("semantic: upsert "+p.ID, m.dims, len(p.Vector))
		}
	}
	for _, p := range points {
		seq := m.seq
		if old, ok := m.points[p.ID]; ok {
			seq = old.seq
		} else {
			m.seq++
		}
		m.points[p.ID] = memPoint{seq: seq, vector: slices.Clone(p.Vector), payload: maps.Clone(p.Payload)}
	}
	return nil
}

func (m *Memory) DeleteByDocID(_ context.Context, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	maps.DeleteFunc(m.points, func(_ string, p memPoint) bool {
		id, _ := p.payload[KeyDocID].(string)
		return id == docID
	})
	return nil
}

// Search ranks by cosine similarity, ties broken by insertion order.
func (m *Memory) Search(_ context.Context, vector []float32, topK int) ([]SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.created {
		return nil, fmt.Errorf("semantic: search %s: %w", m.name, domain.ErrCollectionMissing)
	}
	if len(vector) != m.dims {
		return nil, domain.DimensionError("semantic: search", m.dims, len(vector))
	}
	if topK <= 0 {
		return nil, nil
	}

	type hit struct {
		SearchResult
		seq int
	}
	hits := make([]hit, 0, len(m.points))
	for id, p := range m.points {
		hits = append(hits, hit{
			SearchResult: SearchResult{ID: id, Score: cosine(vector, p.vector), Payload: maps.Clone(p.payload)},
			seq:          p.seq,
		})
	}
	slices.SortFunc(hits, func(a, b hit) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})

	n := min(topK, len(hits))
	out := make([]SearchResult, n)
	for i := range n {
		out[i] = hits[i].SearchResult
	}
	return out, nil
}

func (m *Memory) CollectionInfo(context.Context) (CollectionInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.created {
		return CollectionInfo{}, fmt.Errorf("semantic: collection %s: %w", m.name, domain.ErrCollectionMissing)
	}
	return CollectionInfo{
		Name:        m.name,
		PointsCount: uint64(len(m.points)),
		VectorSize:  uint64(m.dims),
		Distance:    "Cosine",
		Status:      "Green",
	}, nil
}

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
