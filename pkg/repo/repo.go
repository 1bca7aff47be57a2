// Package repo defines a generic keyed repository and a Neo4j implementation.
package repo

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no entity has the requested id.
var ErrNotFound = errors.New("repo: not found")

// Repository stores entities of type T keyed by ID. Save is an upsert.
type Repository[T any, ID comparable] interface {
	Get(ctx context.Context, id ID) (T, error)
	List(ctx context.Context, opts ListOpts) ([]T, error)
	Save(ctx context.Context, entity T) error
	Delete(ctx context.Context, id ID) error
}

// ListOpts controls pagination and ordering for List.
type ListOpts struct {
	Offset int
	Limit  int
	// OrderBy is a property name; empty means the id property.
	OrderBy string
}

// DefaultListLimit applies when ListOpts.Limit is not positive.
const DefaultListLimit = 100
