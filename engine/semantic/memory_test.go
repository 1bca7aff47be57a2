package semantic

import (
	"context"
	"errors"
	"testing"

	"github.com/humanoid-academy/coursebot/engine/domain"
)

func seeded(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory("test")
	ctx := context.Background()
	if err := m.EnsureCollection(ctx, 3); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	err := m.Upsert(ctx, []Point{
		{ID: "a", Vector: []float32{1, 0, 0}, Payload: map[string]any{KeyDocID: "ros/nodes", KeyContent: "nodes"}},
		{ID: "b", Vector: []float32{0, 1, 0}, Payload: map[string]any{KeyDocID: "ros/topics", KeyContent: "topics"}},
		{ID: "c", Vector: []float32{0.7, 0.7, 0}, Payload: map[string]any{KeyDocID: "ros/nodes", KeyContent: "both"}},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	return m
}

func TestMemory_SearchOrder(t *testing.T) {
	m := seeded(t)
	res, err := m.Search(context.Background(), []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res) != 3 {
		t.Fatalf("expected 3 results, got %d", len(res))
	}
	if res[0].ID != "a" || res[1].ID != "c" || res[2].ID != "b" {
		t.Fatalf("unexpected order: %s %s %s", res[0].ID, res[1].ID, res[2].ID)
	}
	for i := 1; i < len(res); i++ {
		if res[i].Score > res[i-1].Score {
			t.Fatal("scores must be non-increasing")
		}
	}
}

func TestMemory_TopK(t *testing.T) {
	m := seeded(t)
	res, _ := m.Search(context.Background(), []float32{0, 1, 0}, 1)
	if len(res) != 1 || res[0].ID != "b" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestMemory_UpsertOverwrites(t *testing.T) {
	m := seeded(t)
	ctx := context.Background()
	if err := m.Upsert(ctx, []Point{{ID: "b", Vector: []float32{1, 0, 0}, Payload: map[string]any{KeyContent: "moved"}}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	info, _ := m.CollectionInfo(ctx)
	if info.PointsCount != 3 {
		t.Fatalf("overwrite should not add points, got %d", info.PointsCount)
	}
	res, _ := m.Search(ctx, []float32{1, 0, 0}, 2)
	// a and b now tie; insertion order keeps a first
	if res[0].ID != "a" || res[1].ID != "b" || res[1].String(KeyContent) != "moved" {
		t.Fatalf("unexpected results: %+v", res)
	}
}

func TestMemory_DimensionChecks(t *testing.T) {
	m := seeded(t)
	ctx := context.Background()
	if err := m.EnsureCollection(ctx, 4); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected mismatch on ensure, got %v", err)
	}
	if err := m.Upsert(ctx, []Point{{ID: "x", Vector: []float32{1}}}); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected mismatch on upsert, got %v", err)
	}
	if _, err := m.Search(ctx, []float32{1, 0}, 1); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected mismatch on search, got %v", err)
	}
}

func TestMemory_DeleteByDocID(t *testing.T) {
	m := seeded(t)
	ctx := context.Background()
	if err := m.DeleteByDocID(ctx, "ros/nodes"); err != nil {
		t.Fatalf("DeleteByDocID: %v", err)
	}
	res, _ := m.Search(ctx, []float32{1, 0, 0}, 5)
	if len(res) != 1 || res[0].ID != "b" {
		t.Fatalf("expected only b to remain, got %+v", res)
	}
}

func TestMemory_MissingCollection(t *testing.T) {
	m := seeded(t)
	ctx := context.Background()
	if err := m.DeleteCollection(ctx); err != nil {
		t.Fatalf("DeleteCollection: %v", err)
	}
	if _, err := m.Search(ctx, []float32{1, 0, 0}, 1); !errors.Is(err, domain.ErrCollectionMissing) {
		t.Fatalf("expected ErrCollectionMissing, got %v", err)
	}
	if _, err := m.CollectionInfo(ctx); !errors.Is(err, domain.ErrCollectionMissing) {
		t.Fatalf("expected ErrCollectionMissing, got %v", err)
	}
	// A rebuilt collection may use a new size.
	if err := m.EnsureCollection(ctx, 8); err != nil {
		t.Fatalf("EnsureCollection after delete: %v", err)
	}
}

func TestStatic_Fixtures(t *testing.T) {
	s := NewStatic("physical_ai_textbook", 384, CourseFixtures)
	ctx := context.Background()

	res, err := s.Search(ctx, make([]float32, 384), 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res) != 3 {
		t.Fatalf("expected 3, got %d", len(res))
	}
	if res[0].String(KeyChapter) != "Module 1: ROS 2" || res[0].Score != 0.95 {
		t.Fatalf("unexpected first fixture: %+v", res[0])
	}
	if _, err := s.Search(ctx, make([]float32, 3), 3); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	info, _ := s.CollectionInfo(ctx)
	if info.PointsCount != 5 || info.Status != "test_mode" {
		t.Fatalf("unexpected info: %+v", info)
	}
}
