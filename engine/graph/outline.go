// Package graph keeps the course outline (Module -CONTAINS-> Page) in Neo4j.
// Ingestion writes it page by page; the API reads it back whole.
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/humanoid-academy/coursebot/engine/domain"
	"github.com/humanoid-academy/coursebot/pkg/repo"
)

// Page is one course page node.
type Page struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Chapter string `json:"chapter"`
	Path    string `json:"path,omitempty"`
}

// Module groups the pages of one chapter, in teaching order.
type Module struct {
	Name  string `json:"name"`
	Topic string `json:"topic,omitempty"`
	Pages []Page `json:"pages"`
}

// OutlineStore reads and writes the outline graph.
type OutlineStore struct {
	pages *repo.Neo4jRepo[Page, string]
	log   *slog.Logger
}

// New builds an OutlineStore on driver. Repository options are passed
// through to the page repository.
func New(driver neo4j.DriverWithContext, logger *slog.Logger, opts ...repo.Neo4jOption[Page, string]) *OutlineStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &OutlineStore{
		pages: repo.NewNeo4jRepo[Page, string](driver, "Page", pageToMap, pageFromRecord, opts...),
		log:   logger,
	}
}

// Connect opens a driver and verifies it can reach the server. An empty user
// connects without authentication.
func Connect(ctx context.Context, url, user, pass string) (neo4j.DriverWithContext, error) {
	auth := neo4j.NoAuth()
	if user != "" {
		auth = neo4j.BasicAuth(user, pass, "")
	}
	driver, err := neo4j.NewDriverWithContext(url, auth)
	if err != nil {
		return nil, fmt.Errorf("graph: connect: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("graph: verify %s: %w", url, err)
	}
	return driver, nil
}

const linkPage = `MATCH (p:Page {id: $id})
OPTIONAL MATCH (:Module)-[old:CONTAINS]->(p)
DELETE old
WITH DISTINCT p
MERGE (m:Module {name: $chapter})
SET m.rank = $rank, m.topic = $topic
MERGE (m)-[:CONTAINS]->(p)`

// SavePage upserts the page node and moves it under its chapter's module.
func (s *OutlineStore) SavePage(ctx context.Context, doc domain.Document) error {
	p := Page{ID: doc.ID, Title: doc.Title, URL: doc.URL, Chapter: doc.Chapter, Path: doc.Path}
	if err := s.pages.Save(ctx, p); err != nil {
		return fmt.Errorf("graph: save page %s: %w", doc.ID, err)
	}
	rank, topic := moduleRank(doc.Chapter)
	err := s.pages.Exec(ctx, linkPage, map[string]any{
		"id":      doc.ID,
		"chapter": doc.Chapter,
		"rank":    rank,
		"topic":   topic,
	})
	if err != nil {
		return fmt.Errorf("graph: link page %s: %w", doc.ID, err)
	}
	s.log.Debug("graph page saved", "doc_id", doc.ID, "module", doc.Chapter)
	return nil
}

// RemovePage deletes the page node and its module edge.
func (s *OutlineStore) RemovePage(ctx context.Context, id string) error {
	if err := s.pages.Delete(ctx, id); err != nil {
		return fmt.Errorf("graph: remove page %s: %w", id, err)
	}
	return nil
}

// Page returns one page by id.
func (s *OutlineStore) Page(ctx context.Context, id string) (Page, error) {
	return s.pages.Get(ctx, id)
}

const readOutline = `MATCH (m:Module)-[:CONTAINS]->(n:Page)
RETURN m.name AS module, m.topic AS topic, n
ORDER BY m.rank, m.name, n.id`

// Outline returns every module with its pages. Modules without pages are
// omitted.
func (s *OutlineStore) Outline(ctx context.Context) ([]Module, error) {
	var out []Module
	err := s.pages.Query(ctx, readOutline, nil, func(rec *neo4j.Record) error {
		name, _, err := neo4j.GetRecordValue[string](rec, "module")
		if err != nil {
			return err
		}
		page, err := pageFromRecord(rec)
		if err != nil {
			return err
		}
		if len(out) == 0 || out[len(out)-1].Name != name {
			topic, _ := rec.Get("topic")
			t, _ := topic.(string)
			out = append(out, Module{Name: name, Topic: t})
		}
		last := &out[len(out)-1]
		last.Pages = append(last.Pages, page)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("graph: outline: %w", err)
	}
	return out, nil
}

// moduleRank orders the four course modules first and General last.
func moduleRank(chapter string) (int64, string) {
	i := slices.IndexFunc(domain.CourseModules, func(m domain.CourseModule) bool { return m.Chapter == chapter })
	if i < 0 {
		return int64(len(domain.CourseModules)), ""
	}
	return int64(i), domain.CourseModules[i].Topic
}

func pageToMap(p Page) map[string]any {
	return map[string]any{
		"id":      p.ID,
		"title":   p.Title,
		"url":     p.URL,
		"chapter": p.Chapter,
		"path":    p.Path,
	}
}

func pageFromRecord(rec *neo4j.Record) (Page, error) {
	node, _, err := neo4j.GetRecordValue[dbtype.Node](rec, "n")
	if err != nil {
		return Page{}, err
	}
	return Page{
		ID:      strProp(node.Props, "id"),
		Title:   strProp(node.Props, "title"),
		URL:     strProp(node.Props, "url"),
		Chapter: strProp(node.Props, "chapter"),
		Path:    strProp(node.Props, "path"),
	}, nil
}

func strProp(props map[string]any, key string) string {
	if v, ok := props[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
