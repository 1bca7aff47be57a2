package repo

import (
	"context"
	"fmt"
	"regexp"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Result is the part of a neo4j result the repository reads.
type Result interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
	Err() error
}

// Session is the part of a neo4j session the repository uses.
type Session interface {
	Run(ctx context.Context, cypher string, params map[string]any) (Result, error)
	Close(ctx context.Context) error
}

// Neo4jRepo is a Repository over nodes carrying one label.
type Neo4jRepo[T any, ID comparable] struct {
	driver     neo4j.DriverWithContext
	database   string
	label      string
	idKey      string
	toMap      func(T) map[string]any
	fromRecord func(*neo4j.Record) (T, error)
	newSession func(ctx context.Context) Session
}

// Neo4jOption configures a Neo4jRepo.
type Neo4jOption[T any, ID comparable] func(*Neo4jRepo[T, ID])

// WithIDKey sets the property name used as the ID (default "id").
func WithIDKey[T any, ID comparable](key string) Neo4jOption[T, ID] {
	return func(r *Neo4jRepo[T, ID]) { r.idKey = key }
}

// WithDatabase selects a named database instead of the server default.
func WithDatabase[T any, ID comparable](name string) Neo4jOption[T, ID] {
	return func(r *Neo4jRepo[T, ID]) { r.database = name }
}

// WithSession replaces the driver session factory. Tests use it to script
// query results.
func WithSession[T any, ID comparable](fn func(ctx context.Context) Session) Neo4jOption[T, ID] {
	return func(r *Neo4jRepo[T, ID]) { r.newSession = fn }
}

// NewNeo4jRepo creates a repository for nodes labelled label. fromRecord
// reads the node bound to "n".
func NewNeo4jRepo[T any, ID comparable](
	driver neo4j.DriverWithContext,
	label string,
	toMap func(T) map[string]any,
	fromRecord func(*neo4j.Record) (T, error),
	opts ...Neo4jOption[T, ID],
) *Neo4jRepo[T, ID] {
	r := &Neo4jRepo[T, ID]{
		driver:     driver,
		label:      label,
		idKey:      "id",
		toMap:      toMap,
		fromRecord: fromRecord,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

var _ Repository[any, string] = (*Neo4jRepo[any, string])(nil)

// Label returns the node label.
func (r *Neo4jRepo[T, ID]) Label() string { return r.label }

type sessionAdapter struct {
	sess neo4j.SessionWithContext
}

func (a *sessionAdapter) Run(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	return a.sess.Run(ctx, cypher, params)
}

func (a *sessionAdapter) Close(ctx context.Context) error {
	return a.sess.Close(ctx)
}

func (r *Neo4jRepo[T, ID]) session(ctx context.Context) Session {
	if r.newSession != nil {
		return r.newSession(ctx)
	}
	return &sessionAdapter{sess: r.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: r.database})}
}

// Get returns the node whose id property equals id, or ErrNotFound.
func (r *Neo4jRepo[T, ID]) Get(ctx context.Context, id ID) (T, error) {
	var found []T
	cypher := fmt.Sprintf("MATCH (n:%s {%s: $id}) RETURN n LIMIT 1", r.label, r.idKey)
	err := r.Query(ctx, cypher, map[string]any{"id": id}, func(rec *neo4j.Record) error {
		v, err := r.fromRecord(rec)
		if err != nil {
			return err
		}
		found = append(found, v)
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	if len(found) == 0 {
		var zero T
		return zero, fmt.Errorf("%s %v: %w", r.label, id, ErrNotFound)
	}
	return found[0], nil
}

var propertyName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// List pages through the nodes ordered by opts.OrderBy.
func (r *Neo4jRepo[T, ID]) List(ctx context.Context, opts ListOpts) ([]T, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	order := r.idKey
	if opts.OrderBy != "" {
		if !propertyName.MatchString(opts.OrderBy) {
			return nil, fmt.Errorf("repo: list %s: invalid order property %q", r.label, opts.OrderBy)
		}
		order = opts.OrderBy
	}

	cypher := fmt.Sprintf("MATCH (n:%s) RETURN n ORDER BY n.%s SKIP $offset LIMIT $limit", r.label, order)
	params := map[string]any{"offset": opts.Offset, "limit": limit}

	var items []T
	err := r.Query(ctx, cypher, params, func(rec *neo4j.Record) error {
		item, err := r.fromRecord(rec)
		if err != nil {
			return err
		}
		items = append(items, item)
		return nil
	})
	return items, err
}

// Save merges the node on its id property and overwrites the mapped properties.
func (r *Neo4jRepo[T, ID]) Save(ctx context.Context, entity T) error {
	props := r.toMap(entity)
	id, ok := props[r.idKey]
	if !ok {
		return fmt.Errorf("repo: save %s: missing %q property", r.label, r.idKey)
	}
	cypher := fmt.Sprintf("MERGE (n:%s {%s: $id}) SET n += $props", r.label, r.idKey)
	return r.Exec(ctx, cypher, map[string]any{"id": id, "props": props})
}

// Delete removes the node and its relationships.
func (r *Neo4jRepo[T, ID]) Delete(ctx context.Context, id ID) error {
	cypher := fmt.Sprintf("MATCH (n:%s {%s: $id}) DETACH DELETE n", r.label, r.idKey)
	return r.Exec(ctx, cypher, map[string]any{"id": id})
}

// Exec runs a write statement and discards its records.
func (r *Neo4jRepo[T, ID]) Exec(ctx context.Context, cypher string, params map[string]any) error {
	return r.Query(ctx, cypher, params, nil)
}

// Query runs cypher in its own session and hands every record to scan.
// A nil scan drains the result.
func (r *Neo4jRepo[T, ID]) Query(ctx context.Context, cypher string, params map[string]any, scan func(*neo4j.Record) error) error {
	sess := r.session(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx, cypher, params)
	if err != nil {
		return fmt.Errorf("repo: %s: %w", r.label, err)
	}
	for res.Next(ctx) {
		if scan == nil {
			continue
		}
		if err := scan(res.Record()); err != nil {
			return fmt.Errorf("repo: %s: %w", r.label, err)
		}
	}
	if err := res.Err(); err != nil {
		return fmt.Errorf("repo: %s: %w", r.label, err)
	}
	return nil
}
