package semantic

import (
	"cmp"
	"context"
	"slices"

	"github.com/humanoid-academy/coursebot/engine/domain"
)

// Fixture is a canned passage with a preset relevance score.
type Fixture struct {
	ID      string
	Score   float32
	Chapter string
	Section string
	URL     string
	Content string
}

// CourseFixtures is the passage set served in test mode.
var CourseFixtures = []Fixture{
	{ID: "doc_1", Score: 0.95, Chapter: "Module 1: ROS 2", Section: "Introduction to ROS 2 Architecture", URL: "/module-01-ros2/chapter-01-ros2-architecture", Content: "ROS 2 is a flexible framework for writing robot software..."},
	{ID: "doc_2", Score: 0.88, Chapter: "Module 1: ROS 2", Section: "Topics, Services, and Actions", URL: "/module-01-ros2/chapter-02-topics-services-actions", Content: "Topics enable asynchronous communication between nodes..."},
	{ID: "doc_3", Score: 0.82, Chapter: "Module 1: ROS 2", Section: "Building with rclpy", URL: "/module-01-ros2/chapter-03-building-with-rclpy", Content: "rclpy is the Python client library for ROS 2..."},
	{ID: "doc_4", Score: 0.76, Chapter: "Module 2: Simulation", Section: "Gazebo Physics Simulation", URL: "/module-02-simulation/intro", Content: "Gazebo provides realistic physics simulation..."},
	{ID: "doc_5", Score: 0.70, Chapter: "Module 3: NVIDIA Isaac", Section: "Isaac Sim Overview", URL: "/module-03-isaac/intro", Content: "NVIDIA Isaac Sim offers photorealistic simulation..."},
}

// Static serves a fixed passage list regardless of the query vector.
// Writes are accepted and discarded so test mode can exercise ingestion.
type Static struct {
	name     string
	dims     int
	fixtures []Fixture
}

var _ Index = (*Static)(nil)

// NewStatic returns a read-only index over fixtures, sorted by score.
func NewStatic(name string, dims int, fixtures []Fixture) *Static {
	fs := slices.Clone(fixtures)
	slices.SortStableFunc(fs, func(a, b Fixture) int { return cmp.Compare(b.Score, a.Score) })
	return &Static{name: name, dims: dims, fixtures: fs}
}

func (s *Static) EnsureCollection(_ context.Context, dims int) error {
	if dims != s.dims {
		return domain.DimensionError("semantic: collection "+s.name, s.dims, dims)
	}
	return nil
}

func (s *Static) DeleteCollection(context.Context) error { return nil }

func (s *Static) Upsert(context.Context, []Point) error { return nil }

func (s *Static) DeleteByDocID(context.Context, string) error { return nil }

func (s *Static) Search(_ context.Context, vector []float32, topK int) ([]SearchResult, error) {
	if len(vector) != s.dims {
		return nil, domain.DimensionError("semantic: search", s.dims, len(vector))
	}
	n := min(max(topK, 0), len(s.fixtures))
	out := make([]SearchResult, n)
	for i, f := range s.fixtures[:n] {
		out[i] = SearchResult{
			ID:    f.ID,
			Score: f.Score,
			Payload: map[string]any{
				KeyChapter: f.Chapter,
				KeySection: f.Section,
				KeyURL:     f.URL,
				KeyContent: f.Content,
			},
		}
	}
	return out, nil
}

func (s *Static) CollectionInfo(context.Context) (CollectionInfo, error) {
	return CollectionInfo{
		Name:        s.name,
		PointsCount: uint64(len(s.fixtures)),
		VectorSize:  uint64(s.dims),
		Distance:    "Cosine",
		Status:      "test_mode",
	}, nil
}
