package semantic

import (
	"context"
	"errors"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/humanoid-academy/coursebot/engine/domain"
)

// --- Mocks ---

type mockPoints struct {
	upsertReq  *pb.UpsertPoints
	upsertResp *pb.PointsOperationResponse
	upsertErr  error
	deleteReq  *pb.DeletePoints
	deleteResp *pb.PointsOperationResponse
	deleteErr  error
	searchReq  *pb.SearchPoints
	searchResp *pb.SearchResponse
	searchErr  error
}

func (m *mockPoints) Upsert(_ context.Context, in *pb.UpsertPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	m.upsertReq = in
	return m.upsertResp, m.upsertErr
}
func (m *mockPoints) Delete(_ context.Context, in *pb.DeletePoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	m.deleteReq = in
	return m.deleteResp, m.deleteErr
}
func (m *mockPoints) Search(_ context.Context, in *pb.SearchPoints, _ ...grpc.CallOption) (*pb.SearchResponse, error) {
	m.searchReq = in
	return m.searchResp, m.searchErr
}

type mockCollections struct {
	getResp    *pb.GetCollectionInfoResponse
	getErr     error
	listResp   *pb.ListCollectionsResponse
	listErr    error
	createReq  *pb.CreateCollection
	createResp *pb.CollectionOperationResponse
	createErr  error
	deleteResp *pb.CollectionOperationResponse
	deleteErr  error
}

func (m *mockCollections) Get(_ context.Context, _ *pb.GetCollectionInfoRequest, _ ...grpc.CallOption) (*pb.GetCollectionInfoResponse, error) {
	return m.getResp, m.getErr
}
func (m *mockCollections) List(_ context.Context, _ *pb.ListCollectionsRequest, _ ...grpc.CallOption) (*pb.ListCollectionsResponse, error) {
	return m.listResp, m.listErr
}
func (m *mockCollections) Create(_ context.Context, in *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	m.createReq = in
	return m.createResp, m.createErr
}
func (m *mockCollections) Delete(_ context.Context, _ *pb.DeleteCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	return m.deleteResp, m.deleteErr
}

func infoResp(size uint64, count uint64) *pb.GetCollectionInfoResponse {
	return &pb.GetCollectionInfoResponse{
		Result: &pb.CollectionInfo{
			Status:      pb.CollectionStatus_Green,
			PointsCount: &count,
			Config: &pb.CollectionConfig{
				Params: &pb.CollectionParams{
					VectorsConfig: &pb.VectorsConfig{
						Config: &pb.VectorsConfig_Params{
							Params: &pb.VectorParams{Size: size, Distance: pb.Distance_Cosine},
						},
					},
				},
			},
		},
	}
}

// --- Tests ---

func TestNewWithClients(t *testing.T) {
	vs := NewWithClients(&mockPoints{}, &mockCollections{}, "test")
	if vs.Name() != "test" {
		t.Fatalf("unexpected name %q", vs.Name())
	}
	if err := vs.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestNew_Lazy(t *testing.T) {
	vs, err := New("localhost:6334", "test", WithAPIKey("secret"))
	if err != nil {
		t.Fatalf("New should not dial eagerly: %v", err)
	}
	if err := vs.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestParseAddr(t *testing.T) {
	cases := []struct {
		in     string
		target string
		tls    bool
	}{
		{"localhost:6334", "localhost:6334", false},
		{"localhost", "localhost:6334", false},
		{"http://qdrant:6334", "qdrant:6334", false},
		{"https://xyz.cloud.qdrant.io", "xyz.cloud.qdrant.io:6334", true},
		{"https://xyz.cloud.qdrant.io:6334/", "xyz.cloud.qdrant.io:6334", true},
	}
	for _, c := range cases {
		target, tls := ParseAddr(c.in)
		if target != c.target || tls != c.tls {
			t.Errorf("ParseAddr(%q) = %q, %v; want %q, %v", c.in, target, tls, c.target, c.tls)
		}
	}
}

func TestEnsureCollection_AlreadyExists(t *testing.T) {
	cols := &mockCollections{
		listResp: &pb.ListCollectionsResponse{
			Collections: []*pb.CollectionDescription{{Name: "test"}},
		},
		getResp: infoResp(4, 10),
	}
	vs := NewWithClients(&mockPoints{}, cols, "test")
	if err := vs.EnsureCollection(context.Background(), 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cols.createReq != nil {
		t.Fatal("existing collection must not be recreated")
	}
}

func TestEnsureCollection_SizeMismatch(t *testing.T) {
	cols := &mockCollections{
		listResp: &pb.ListCollectionsResponse{
			Collections: []*pb.CollectionDescription{{Name: "test"}},
		},
		getResp: infoResp(1536, 10),
	}
	vs := NewWithClients(&mockPoints{}, cols, "test")
	err := vs.EnsureCollection(context.Background(), 384)
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestEnsureCollection_Creates(t *testing.T) {
	cols := &mockCollections{
		listResp:   &pb.ListCollectionsResponse{Collections: []*pb.CollectionDescription{{Name: "other"}}},
		createResp: &pb.CollectionOperationResponse{Result: true},
	}
	vs := NewWithClients(&mockPoints{}, cols, "test")
	if err := vs.EnsureCollection(context.Background(), 384); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	params := cols.createReq.GetVectorsConfig().GetParams()
	if params.GetSize() != 384 || params.GetDistance() != pb.Distance_Cosine {
		t.Fatalf("unexpected create params: %v", params)
	}
}

func TestEnsureCollection_ListError(t *testing.T) {
	cols := &mockCollections{listErr: errors.New("rpc fail")}
	vs := NewWithClients(&mockPoints{}, cols, "test")
	if err := vs.EnsureCollection(context.Background(), 4); err == nil {
		t.Fatal("expected error")
	}
}

func TestEnsureCollection_CreateError(t *testing.T) {
	cols := &mockCollections{
		listResp:  &pb.ListCollectionsResponse{Collections: []*pb.CollectionDescription{}},
		createErr: errors.New("create fail"),
	}
	vs := NewWithClients(&mockPoints{}, cols, "test")
	if err := vs.EnsureCollection(context.Background(), 4); err == nil {
		t.Fatal("expected error")
	}
}

func TestDeleteCollection(t *testing.T) {
	vs := NewWithClients(&mockPoints{}, &mockCollections{deleteResp: &pb.CollectionOperationResponse{Result: true}}, "test")
	if err := vs.DeleteCollection(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	vs = NewWithClients(&mockPoints{}, &mockCollections{deleteErr: errors.New("fail")}, "test")
	if err := vs.DeleteCollection(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestCollectionInfo(t *testing.T) {
	vs := NewWithClients(&mockPoints{}, &mockCollections{getResp: infoResp(384, 150)}, "physical_ai_textbook")
	info, err := vs.CollectionInfo(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := CollectionInfo{Name: "physical_ai_textbook", PointsCount: 150, VectorSize: 384, Distance: "Cosine", Status: "Green"}
	if info != want {
		t.Fatalf("got %+v, want %+v", info, want)
	}
}

func TestCollectionInfo_NotFound(t *testing.T) {
	cols := &mockCollections{getErr: status.Error(codes.NotFound, "no such collection")}
	vs := NewWithClients(&mockPoints{}, cols, "test")
	_, err := vs.CollectionInfo(context.Background())
	if !errors.Is(err, domain.ErrCollectionMissing) {
		t.Fatalf("expected ErrCollectionMissing, got %v", err)
	}
}

func TestUpsert_Empty(t *testing.T) {
	pts := &mockPoints{}
	vs := NewWithClients(pts, &mockCollections{}, "test")
	if err := vs.Upsert(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pts.upsertReq != nil {
		t.Fatal("empty upsert should not call qdrant")
	}
}

func TestUpsert_Success(t *testing.T) {
	pts := &mockPoints{upsertResp: &pb.PointsOperationResponse{}}
	vs := NewWithClients(pts, &mockCollections{}, "test")

	points := []Point{
		{
			ID:     PointID("intro_0"),
			Vector: []float32{1, 0, 0, 0},
			Payload: map[string]any{
				KeyContent:    "hello",
				KeyChunkIndex: 3,
				"count64":     int64(99),
				"score":       3.14,
				"active":      true,
				"other":       []int{1, 2},
			},
		},
	}
	if err := vs.Upsert(context.Background(), points); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pts.upsertReq.GetWait() {
		t.Fatal("upsert should wait for the write")
	}
	payload := pts.upsertReq.GetPoints()[0].GetPayload()
	if payload[KeyChunkIndex].GetIntegerValue() != 3 {
		t.Errorf("chunk_index not stored as integer: %v", payload[KeyChunkIndex])
	}
	if payload["other"].GetStringValue() != "[1 2]" {
		t.Errorf("unexpected fallback encoding: %v", payload["other"])
	}
}

func TestUpsert_Error(t *testing.T) {
	pts := &mockPoints{upsertErr: errors.New("fail")}
	vs := NewWithClients(pts, &mockCollections{}, "test")
	if err := vs.Upsert(context.Background(), []Point{{ID: "id1", Vector: []float32{1, 0}}}); err == nil {
		t.Fatal("expected error")
	}
}

func TestDeleteByDocID(t *testing.T) {
	pts := &mockPoints{deleteResp: &pb.PointsOperationResponse{}}
	vs := NewWithClients(pts, &mockCollections{}, "test")
	if err := vs.DeleteByDocID(context.Background(), "module-01-ros2/intro"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cond := pts.deleteReq.GetPoints().GetFilter().GetMust()[0].GetField()
	if cond.GetKey() != KeyDocID || cond.GetMatch().GetKeyword() != "module-01-ros2/intro" {
		t.Fatalf("unexpected filter: %v", cond)
	}

	pts.deleteErr = errors.New("fail")
	if err := vs.DeleteByDocID(context.Background(), "doc1"); err == nil {
		t.Fatal("expected error")
	}
}

func TestSearch_Success(t *testing.T) {
	pts := &mockPoints{
		searchResp: &pb.SearchResponse{
			Result: []*pb.ScoredPoint{
				{
					Id:    &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: "p1"}},
					Score: 0.95,
					Payload: map[string]*pb.Value{
						KeyContent:    {Kind: &pb.Value_StringValue{StringValue: "ROS 2 nodes"}},
						KeyChapter:    {Kind: &pb.Value_StringValue{StringValue: "Module 1: ROS 2"}},
						KeyChunkIndex: {Kind: &pb.Value_IntegerValue{IntegerValue: 2}},
					},
				},
			},
		},
	}
	vs := NewWithClients(pts, &mockCollections{}, "test")
	results, err := vs.Search(context.Background(), []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pts.searchReq.GetLimit() != 5 || !pts.searchReq.GetWithPayload().GetEnable() {
		t.Fatalf("unexpected request: %v", pts.searchReq)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1, got %d", len(results))
	}
	r := results[0]
	if r.ID != "p1" || r.Score != 0.95 {
		t.Error("wrong id/score")
	}
	if r.String(KeyContent) != "ROS 2 nodes" || r.String(KeyChapter) != "Module 1: ROS 2" {
		t.Errorf("wrong payload: %v", r.Payload)
	}
	if r.Payload[KeyChunkIndex] != int64(2) {
		t.Errorf("wrong chunk index: %v", r.Payload[KeyChunkIndex])
	}
}

func TestSearch_Error(t *testing.T) {
	pts := &mockPoints{searchErr: errors.New("fail")}
	vs := NewWithClients(pts, &mockCollections{}, "test")
	if _, err := vs.Search(context.Background(), []float32{1}, 5); err == nil {
		t.Fatal("expected error")
	}
}

func TestSearch_Empty(t *testing.T) {
	vs := NewWithClients(&mockPoints{searchResp: &pb.SearchResponse{}}, &mockCollections{}, "test")
	results, err := vs.Search(context.Background(), []float32{1}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected 0, got %d", len(results))
	}
}

func TestPointID_Stable(t *testing.T) {
	a, b := PointID("intro_0"), PointID("intro_0")
	if a != b {
		t.Fatal("PointID should be deterministic")
	}
	if a == PointID("intro_1") {
		t.Fatal("different keys should give different ids")
	}
}
