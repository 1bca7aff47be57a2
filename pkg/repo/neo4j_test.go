package repo

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

type topic struct {
	ID   string
	Name string
}

func topicToMap(t topic) map[string]any {
	return map[string]any{"id": t.ID, "name": t.Name}
}

func topicFromRecord(rec *neo4j.Record) (topic, error) {
	node, _, err := neo4j.GetRecordValue[dbtype.Node](rec, "n")
	if err != nil {
		return topic{}, err
	}
	id, _ := node.Props["id"].(string)
	name, _ := node.Props["name"].(string)
	return topic{ID: id, Name: name}, nil
}

type fakeResult struct {
	records []*neo4j.Record
	pos     int
	err     error
}

func (r *fakeResult) Next(context.Context) bool {
	if r.pos >= len(r.records) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeResult) Record() *neo4j.Record { return r.records[r.pos-1] }
func (r *fakeResult) Err() error            { return r.err }

type call struct {
	cypher string
	params map[string]any
}

type fakeSession struct {
	calls   []call
	records []*neo4j.Record
	runErr  error
	resErr  error
	closed  int
}

func (s *fakeSession) Run(_ context.Context, cypher string, params map[string]any) (Result, error) {
	s.calls = append(s.calls, call{cypher, params})
	if s.runErr != nil {
		return nil, s.runErr
	}
	return &fakeResult{records: s.records, err: s.resErr}, nil
}

func (s *fakeSession) Close(context.Context) error {
	s.closed++
	return nil
}

func nodeRecord(props map[string]any) *neo4j.Record {
	return &neo4j.Record{Keys: []string{"n"}, Values: []any{dbtype.Node{Props: props}}}
}

func newTopics(s *fakeSession, opts ...Neo4jOption[topic, string]) *Neo4jRepo[topic, string] {
	opts = append(opts, WithSession[topic, string](func(context.Context) Session { return s }))
	return NewNeo4jRepo[topic, string](nil, "Topic", topicToMap, topicFromRecord, opts...)
}

func TestNewNeo4jRepoDefaults(t *testing.T) {
	r := NewNeo4jRepo[topic, string](nil, "Topic", topicToMap, topicFromRecord,
		WithIDKey[topic, string]("slug"), WithDatabase[topic, string]("course"))
	if r.idKey != "slug" || r.database != "course" {
		t.Fatalf("options not applied: idKey=%s database=%s", r.idKey, r.database)
	}
	if r.Label() != "Topic" {
		t.Fatalf("expected label Topic, got %s", r.Label())
	}
	if NewNeo4jRepo[topic, string](nil, "Topic", nil, nil).idKey != "id" {
		t.Fatal("expected default idKey=id")
	}
}

func TestGet(t *testing.T) {
	s := &fakeSession{records: []*neo4j.Record{nodeRecord(map[string]any{"id": "ros2", "name": "ROS 2"})}}
	got, err := newTopics(s).Get(context.Background(), "ros2")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "ROS 2" {
		t.Fatalf("unexpected topic %+v", got)
	}
	if !strings.Contains(s.calls[0].cypher, "MATCH (n:Topic {id: $id})") || s.calls[0].params["id"] != "ros2" {
		t.Fatalf("unexpected query %+v", s.calls[0])
	}
	if s.closed != 1 {
		t.Fatalf("session should be closed once, got %d", s.closed)
	}
}

func TestGetNotFound(t *testing.T) {
	_, err := newTopics(&fakeSession{}).Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestList(t *testing.T) {
	s := &fakeSession{records: []*neo4j.Record{
		nodeRecord(map[string]any{"id": "a", "name": "A"}),
		nodeRecord(map[string]any{"id": "b", "name": "B"}),
	}}
	items, err := newTopics(s).List(context.Background(), ListOpts{Offset: 2, OrderBy: "name"})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 || items[1].ID != "b" {
		t.Fatalf("unexpected items %+v", items)
	}
	c := s.calls[0]
	if !strings.Contains(c.cypher, "ORDER BY n.name") {
		t.Fatalf("expected ordering by name: %s", c.cypher)
	}
	if c.params["limit"] != DefaultListLimit || c.params["offset"] != 2 {
		t.Fatalf("unexpected params %+v", c.params)
	}
}

func TestListRejectsOrderInjection(t *testing.T) {
	s := &fakeSession{}
	_, err := newTopics(s).List(context.Background(), ListOpts{OrderBy: "name DETACH DELETE n"})
	if err == nil {
		t.Fatal("expected invalid order property error")
	}
	if len(s.calls) != 0 {
		t.Fatal("no query should run")
	}
}

func TestSaveMerges(t *testing.T) {
	s := &fakeSession{}
	if err := newTopics(s).Save(context.Background(), topic{ID: "isaac", Name: "Isaac"}); err != nil {
		t.Fatal(err)
	}
	c := s.calls[0]
	if !strings.HasPrefix(c.cypher, "MERGE (n:Topic {id: $id}) SET n += $props") {
		t.Fatalf("unexpected cypher %s", c.cypher)
	}
	props := c.params["props"].(map[string]any)
	if c.params["id"] != "isaac" || props["name"] != "Isaac" {
		t.Fatalf("unexpected params %+v", c.params)
	}
}

func TestSaveMissingID(t *testing.T) {
	r := NewNeo4jRepo[topic, string](nil, "Topic",
		func(topic) map[string]any { return map[string]any{"name": "x"} }, topicFromRecord,
		WithSession[topic, string](func(context.Context) Session { return &fakeSession{} }))
	if err := r.Save(context.Background(), topic{}); err == nil {
		t.Fatal("expected missing id error")
	}
}

func TestDeleteDetaches(t *testing.T) {
	s := &fakeSession{}
	if err := newTopics(s).Delete(context.Background(), "x"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(s.calls[0].cypher, "DETACH DELETE n") {
		t.Fatalf("unexpected cypher %s", s.calls[0].cypher)
	}
}

func TestQueryErrors(t *testing.T) {
	boom := errors.New("connection refused")
	if err := newTopics(&fakeSession{runErr: boom}).Exec(context.Background(), "RETURN 1", nil); !errors.Is(err, boom) {
		t.Fatalf("expected run error, got %v", err)
	}
	if err := newTopics(&fakeSession{resErr: boom}).Exec(context.Background(), "RETURN 1", nil); !errors.Is(err, boom) {
		t.Fatalf("expected result error, got %v", err)
	}

	scanErr := errors.New("bad row")
	s := &fakeSession{records: []*neo4j.Record{nodeRecord(nil)}}
	err := newTopics(s).Query(context.Background(), "RETURN 1", nil, func(*neo4j.Record) error { return scanErr })
	if !errors.Is(err, scanErr) {
		t.Fatalf("expected scan error, got %v", err)
	}
}
