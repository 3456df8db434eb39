// Package remote is the authoritative document store for patients, captures,
// teams, users and reports.
package remote

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrNotFound = errors.New("document not found")

const (
	Patients = "patients"
	Captures = "captures"
	Teams    = "teams"
	Users    = "users"
	Reports  = "reports"
)

// Filter is a single equality match on a document field.
type Filter struct {
	Field string
	Value any
}

// Query selects documents matching every filter, optionally ordered by one
// field. Limit <= 0 means no limit.
type Query struct {
	Where   []Filter
	OrderBy string
	Desc    bool
	Limit   int
}

// Where is shorthand for a Query with equality filters only.
func Where(field string, value any, more ...Filter) Query {
	return Query{Where: append([]Filter{{Field: field, Value: value}}, more...)}
}

// Store is document CRUD with collection/id addressing. created_at and
// updated_at are always set by the store, never by callers.
type Store interface {
	// Create inserts doc and returns its id. An empty _id gets a generated one.
	Create(ctx context.Context, coll string, doc any) (string, error)
	Get(ctx context.Context, coll, id string, out any) error
	Update(ctx context.Context, coll, id string, fields map[string]any) error
	Delete(ctx context.Context, coll, id string) error
	// Find decodes matching documents into out, which must be a pointer to a slice.
	Find(ctx context.Context, coll string, q Query, out any) error
	Ping(ctx context.Context) error
}

func NewID() string {
	return primitive.NewObjectID().Hex()
}
